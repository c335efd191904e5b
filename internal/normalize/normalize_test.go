package normalize

import "testing"

func TestFold(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercase passthrough", "rock", "rock"},
		{"uppercase", "ROCK", "rock"},
		{"accents stripped", "Café", "cafe"},
		{"mixed accents", "Été", "ete"},
		{"double spaces collapsed", "Chateau  fort", "chateau fort"},
		{"tabs and spaces", "hip \t hop", "hip hop"},
		{"ligature oe", "Bœuf", "boeuf"},
		{"cedilla", "Français", "francais"},
		{"n tilde", "Señor", "senor"},
		{"empty", "", ""},
		{"only spaces", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Fold(tt.input); got != tt.want {
				t.Errorf("Fold(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestDedupe(t *testing.T) {
	tests := []struct {
		name    string
		names   []string
		wantDup string
		wantOK  bool
	}{
		{"no duplicates", []string{"Rock", "Jazz", "Blues"}, "", false},
		{"case duplicate", []string{"Rock", "rock"}, "rock", true},
		{"accent duplicate", []string{"Electro", "Électro"}, "Électro", true},
		{"empty", nil, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dup, ok := Dedupe(tt.names)
			if ok != tt.wantOK || dup != tt.wantDup {
				t.Errorf("Dedupe(%v) = (%q, %v), want (%q, %v)", tt.names, dup, ok, tt.wantDup, tt.wantOK)
			}
		})
	}
}
