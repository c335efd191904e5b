package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// TrackRepository handles track and track-genre database operations.
type TrackRepository struct {
	pool *pgxpool.Pool
}

// Upsert creates or updates a track keyed by its provider id, refreshing
// title and artists, and fills in the internal id.
func (r *TrackRepository) Upsert(ctx context.Context, track *Track) error {
	query := `
		INSERT INTO tracks (provider_id, title, artists, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (provider_id) DO UPDATE SET
			title = EXCLUDED.title,
			artists = EXCLUDED.artists,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`
	err := r.pool.QueryRow(ctx, query,
		track.ProviderID,
		track.Title,
		track.Artists,
	).Scan(&track.ID, &track.CreatedAt, &track.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting track: %w", err)
	}
	return nil
}

// UpsertGenres inserts or updates multiple genre rows for one track,
// overwriting confidence with the latest value.
func (r *TrackRepository) UpsertGenres(ctx context.Context, genres []TrackGenre) error {
	if len(genres) == 0 {
		return nil
	}

	query := `
		INSERT INTO track_genres (track_id, category_name, confidence, created_at, updated_at)
		SELECT *, NOW() FROM unnest($1::bigint[], $2::text[], $3::real[], $4::timestamptz[])
		ON CONFLICT (track_id, category_name) DO UPDATE SET
			confidence = EXCLUDED.confidence,
			updated_at = NOW()
	`

	trackIDs := make([]int64, len(genres))
	names := make([]string, len(genres))
	confidences := make([]float64, len(genres))
	createdAts := make([]time.Time, len(genres))

	now := time.Now()
	for i, g := range genres {
		trackIDs[i] = g.TrackID
		names[i] = g.CategoryName
		confidences[i] = g.Confidence
		createdAts[i] = now
	}

	_, err := r.pool.Exec(ctx, query, trackIDs, names, confidences, createdAts)
	if err != nil {
		return fmt.Errorf("batch upserting track genres: %w", err)
	}
	return nil
}

// ClassifiedRows retrieves the persisted classification rows for the given
// provider ids, restricted to the requested category names. Coverage checks
// are left to the caller.
func (r *TrackRepository) ClassifiedRows(ctx context.Context, providerIDs, categories []string) ([]ClassifiedRow, error) {
	if len(providerIDs) == 0 || len(categories) == 0 {
		return nil, nil
	}

	query := `
		SELECT t.provider_id, t.title, t.artists, g.category_name, g.confidence
		FROM tracks t
		JOIN track_genres g ON g.track_id = t.id
		WHERE t.provider_id = ANY($1) AND g.category_name = ANY($2)
		ORDER BY t.provider_id
	`
	rows, err := r.pool.Query(ctx, query, providerIDs, categories)
	if err != nil {
		return nil, fmt.Errorf("querying classified rows: %w", err)
	}
	defer rows.Close()

	var result []ClassifiedRow
	for rows.Next() {
		var row ClassifiedRow
		if err := rows.Scan(
			&row.ProviderID,
			&row.Title,
			&row.Artists,
			&row.CategoryName,
			&row.Confidence,
		); err != nil {
			return nil, fmt.Errorf("scanning classified row: %w", err)
		}
		result = append(result, row)
	}
	return result, rows.Err()
}
