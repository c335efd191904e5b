// Package normalize provides accent- and case-insensitive string folding,
// used to detect duplicate category names in classification requests.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ligatures have no canonical decomposition, so NFD leaves them alone.
var ligatures = strings.NewReplacer(
	"œ", "oe",
	"æ", "ae",
	"ß", "ss",
)

// Fold returns a canonical form of s for comparison: lowercase, accents
// stripped ("Café" -> "cafe"), ligatures expanded ("œ" -> "oe") and runs of
// whitespace collapsed to a single space.
func Fold(s string) string {
	lowered := strings.ToLower(s)

	// NFD splits letters from combining marks, runes.Remove drops the marks.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, lowered)
	if err != nil {
		folded = lowered
	}

	folded = ligatures.Replace(folded)
	return strings.Join(strings.Fields(folded), " ")
}

// Dedupe returns the first duplicate found in names under folding, along with
// true. It returns "" and false when all names are distinct.
func Dedupe(names []string) (string, bool) {
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		folded := Fold(name)
		if _, ok := seen[folded]; ok {
			return name, true
		}
		seen[folded] = struct{}{}
	}
	return "", false
}
