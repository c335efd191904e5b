package classify

import (
	"github.com/acrezel/tracksort/internal/db"
)

// coveredTracks computes, from persisted classification rows, the tracks that
// are fully classified for the requested category set: a track qualifies iff
// it has a confidence row for every requested category. Partial coverage
// (some but not all categories) disqualifies the track entirely so it gets
// re-run for the whole set.
//
// Pure function over its inputs; rows are assumed pre-filtered to the
// requested categories. Output order follows the first appearance of each
// track in rows, not the caller's input order.
func coveredTracks(rows []db.ClassifiedRow, categories []string) []ClassifiedTrack {
	if len(rows) == 0 || len(categories) == 0 {
		return nil
	}

	requested := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		requested[c] = struct{}{}
	}

	byID := make(map[string]*ClassifiedTrack)
	seen := make(map[string]map[string]struct{})
	var order []string

	for _, row := range rows {
		if _, ok := requested[row.CategoryName]; !ok {
			continue
		}

		track, ok := byID[row.ProviderID]
		if !ok {
			track = &ClassifiedTrack{
				ID:      row.ProviderID,
				Title:   row.Title,
				Artists: row.Artists,
			}
			byID[row.ProviderID] = track
			seen[row.ProviderID] = make(map[string]struct{}, len(categories))
			order = append(order, row.ProviderID)
		}

		// Duplicate rows for the same category must not inflate coverage.
		if _, dup := seen[row.ProviderID][row.CategoryName]; dup {
			continue
		}
		seen[row.ProviderID][row.CategoryName] = struct{}{}

		track.Categories = append(track.Categories, CategoryScore{
			Name:       row.CategoryName,
			Confidence: row.Confidence,
		})
	}

	var covered []ClassifiedTrack
	for _, id := range order {
		if len(seen[id]) == len(categories) {
			covered = append(covered, *byID[id])
		}
	}
	return covered
}
