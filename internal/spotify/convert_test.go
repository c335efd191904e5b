package spotify

import (
	"errors"
	"reflect"
	"testing"

	"github.com/zmb3/spotify/v2"
)

func TestConvertPlaylist(t *testing.T) {
	p := spotify.SimplePlaylist{
		ID:   "pl123",
		Name: "Road Trip",
		Owner: spotify.User{
			DisplayName: "Alice",
		},
		Images: []spotify.Image{
			{URL: "https://img.example/cover-big.jpg"},
			{URL: "https://img.example/cover-small.jpg"},
		},
		ExternalURLs: map[string]string{
			"spotify": "https://open.spotify.com/playlist/pl123",
		},
	}
	p.Tracks.Total = 42

	got := convertPlaylist(p)
	want := Playlist{
		ID:          "pl123",
		Name:        "Road Trip",
		Owner:       "Alice",
		ImageURL:    "https://img.example/cover-big.jpg",
		TracksCount: 42,
		URL:         "https://open.spotify.com/playlist/pl123",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("convertPlaylist() = %+v, want %+v", got, want)
	}
}

func TestConvertPlaylistNoImage(t *testing.T) {
	p := spotify.SimplePlaylist{ID: "pl456", Name: "Empty Art"}

	got := convertPlaylist(p)
	if got.ImageURL != "" {
		t.Errorf("ImageURL = %q, want empty for playlist without cover", got.ImageURL)
	}
}

func TestConvertPlaylistTrack(t *testing.T) {
	ft := &spotify.FullTrack{
		SimpleTrack: spotify.SimpleTrack{
			ID:   "tr789",
			Name: "Daydream",
			Artists: []spotify.SimpleArtist{
				{Name: "Band A"},
				{Name: "Band B"},
			},
		},
	}

	got := convertPlaylistTrack(ft)
	want := Track{
		ID:      "tr789",
		Name:    "Daydream",
		Artists: []string{"Band A", "Band B"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("convertPlaylistTrack() = %+v, want %+v", got, want)
	}
}

func TestIsUnauthorized(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("boom"), false},
		{"401", spotify.Error{Status: 401, Message: "The access token expired"}, true},
		{"403", spotify.Error{Status: 403, Message: "Forbidden"}, true},
		{"429", spotify.Error{Status: 429, Message: "Too many requests"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUnauthorized(tt.err); got != tt.want {
				t.Errorf("IsUnauthorized(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
