// Package classify implements AI track classification with a persistent
// cache: tracks already scored for every requested category are served from
// PostgreSQL, only the remainder is sent to the model, and fresh results are
// persisted idempotently.
package classify

// TrackRef identifies a provider track to classify.
type TrackRef struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Artists []string `json:"artists"`
}

// CategoryScore is the model's confidence (0-100) that a track belongs to
// one category. Scores are independent per category, not a distribution.
type CategoryScore struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// ClassifiedTrack is a track with a confidence score for every requested
// category.
type ClassifiedTrack struct {
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	Artists    []string        `json:"artists"`
	Categories []CategoryScore `json:"categories"`
}
