package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/acrezel/tracksort/internal/gemini"
)

// ErrInvalidModelResponse is returned when the model output is missing or
// does not match the expected JSON shape. The whole batch fails; nothing is
// partially accepted.
var ErrInvalidModelResponse = errors.New("invalid model response")

// TextGenerator abstracts the Gemini client for testing.
type TextGenerator interface {
	GenerateJSON(ctx context.Context, prompt string) (string, error)
}

// ModelClassifier scores tracks against user categories with a generative
// model. It is only ever called with tracks absent from the cache, and it
// batches all of them into a single model call.
type ModelClassifier struct {
	gen TextGenerator
}

// NewModelClassifier creates a ModelClassifier on top of a text generator.
func NewModelClassifier(gen TextGenerator) *ModelClassifier {
	return &ModelClassifier{gen: gen}
}

// Classify sends one prompt covering every track and every category, and
// parses the strict JSON array reply. A confidence is required for each
// requested category on each requested track; anything less fails the whole
// batch with ErrInvalidModelResponse.
func (c *ModelClassifier) Classify(ctx context.Context, tracks []TrackRef, categories []string) ([]ClassifiedTrack, error) {
	prompt, err := buildPrompt(tracks, categories)
	if err != nil {
		return nil, err
	}

	text, err := c.gen.GenerateJSON(ctx, prompt)
	if errors.Is(err, gemini.ErrEmptyResponse) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidModelResponse, err)
	}
	if err != nil {
		return nil, fmt.Errorf("calling model: %w", err)
	}

	var classified []ClassifiedTrack
	if err := json.Unmarshal([]byte(text), &classified); err != nil {
		return nil, fmt.Errorf("%w: parsing reply: %v", ErrInvalidModelResponse, err)
	}

	if err := validateReply(classified, tracks, categories); err != nil {
		return nil, err
	}
	return classified, nil
}

// buildPrompt renders the single classification prompt. Tracks and
// categories are embedded as JSON so the model sees exact ids and names.
func buildPrompt(tracks []TrackRef, categories []string) (string, error) {
	categoriesJSON, err := json.Marshal(categories)
	if err != nil {
		return "", fmt.Errorf("encoding categories: %w", err)
	}
	tracksJSON, err := json.Marshal(tracks)
	if err != nil {
		return "", fmt.Errorf("encoding tracks: %w", err)
	}

	var b strings.Builder
	b.WriteString("You are a music expert.\n")
	fmt.Fprintf(&b, "Here is a list of user-defined categories: %s.\n", categoriesJSON)
	fmt.Fprintf(&b, "Here is a list of tracks to classify: %s.\n\n", tracksJSON)
	b.WriteString(`TASK:
For each track, evaluate how well it belongs to EVERY category in the list.
Assign an independent confidence score between 0 and 100 for each category.

EXPECTED RESPONSE FORMAT:
A strict JSON array of objects. Each object must have:
- "id" (the track id)
- "title" (use the 'name' field of the provided tracks)
- "artists" (array of artist names)
- "categories" (an array of objects with "name" and "confidence" for EVERY category)

Example of the expected structure:
[{
  "id": "track123",
  "title": "Bohemian Rhapsody",
  "artists": ["Queen"],
  "categories": [
    { "name": "Rock", "confidence": 95 },
    { "name": "Pop", "confidence": 30 },
    { "name": "Jazz", "confidence": 15 }
  ]
}]`)
	return b.String(), nil
}

// validateReply enforces the response schema: every requested track present,
// every requested category scored on each of them. Confidences are clamped
// into [0, 100].
func validateReply(classified []ClassifiedTrack, tracks []TrackRef, categories []string) error {
	byID := make(map[string]*ClassifiedTrack, len(classified))
	for i := range classified {
		track := &classified[i]
		if track.ID == "" {
			return fmt.Errorf("%w: element %d has no id", ErrInvalidModelResponse, i)
		}
		byID[track.ID] = track
	}

	for _, ref := range tracks {
		track, ok := byID[ref.ID]
		if !ok {
			return fmt.Errorf("%w: track %q missing from reply", ErrInvalidModelResponse, ref.ID)
		}

		scored := make(map[string]struct{}, len(track.Categories))
		for i := range track.Categories {
			score := &track.Categories[i]
			scored[score.Name] = struct{}{}
			if score.Confidence < 0 {
				score.Confidence = 0
			}
			if score.Confidence > 100 {
				score.Confidence = 100
			}
		}
		for _, category := range categories {
			if _, ok := scored[category]; !ok {
				return fmt.Errorf("%w: track %q has no score for category %q", ErrInvalidModelResponse, ref.ID, category)
			}
		}
	}
	return nil
}
