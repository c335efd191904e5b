package classify

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/acrezel/tracksort/internal/db"
)

// DefaultSaveConcurrency bounds how many tracks are persisted in parallel.
const DefaultSaveConcurrency = 5

// Repository adapts the PostgreSQL track store to the classify interfaces.
type Repository struct {
	db          *db.DB
	concurrency int
}

// RepositoryOption configures a Repository.
type RepositoryOption func(*Repository)

// WithSaveConcurrency sets the number of tracks persisted concurrently.
func WithSaveConcurrency(n int) RepositoryOption {
	return func(r *Repository) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// NewRepository creates a Repository over the database.
func NewRepository(database *db.DB, opts ...RepositoryOption) *Repository {
	r := &Repository{
		db:          database,
		concurrency: DefaultSaveConcurrency,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ClassifiedRows returns the persisted classification rows for the provider
// ids, restricted to the requested categories. Read-only.
func (r *Repository) ClassifiedRows(ctx context.Context, providerIDs, categories []string) ([]db.ClassifiedRow, error) {
	return r.db.Tracks().ClassifiedRows(ctx, providerIDs, categories)
}

// Save upserts each classified track and its per-category confidence rows.
// Tracks are persisted concurrently and the first failure cancels the rest;
// re-running a save is safe since every write is an upsert.
func (r *Repository) Save(ctx context.Context, tracks []ClassifiedTrack) error {
	if len(tracks) == 0 {
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for _, track := range tracks {
		track := track
		g.Go(func() error {
			return r.saveTrack(ctx, track)
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("persisting classifications: %w", err)
	}
	return nil
}

// saveTrack upserts one track row and its genre rows.
func (r *Repository) saveTrack(ctx context.Context, track ClassifiedTrack) error {
	record := db.Track{
		ProviderID: track.ID,
		Title:      track.Title,
		Artists:    track.Artists,
	}
	if err := r.db.Tracks().Upsert(ctx, &record); err != nil {
		return fmt.Errorf("track %q: %w", track.ID, err)
	}

	genres := make([]db.TrackGenre, len(track.Categories))
	for i, score := range track.Categories {
		genres[i] = db.TrackGenre{
			TrackID:      record.ID,
			CategoryName: score.Name,
			Confidence:   score.Confidence,
		}
	}
	if err := r.db.Tracks().UpsertGenres(ctx, genres); err != nil {
		return fmt.Errorf("track %q genres: %w", track.ID, err)
	}
	return nil
}
