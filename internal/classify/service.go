package classify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/acrezel/tracksort/internal/db"
)

// Store is the persistence surface the service needs: a read of existing
// classification rows and an idempotent write of fresh ones.
type Store interface {
	ClassifiedRows(ctx context.Context, providerIDs, categories []string) ([]db.ClassifiedRow, error)
	Save(ctx context.Context, tracks []ClassifiedTrack) error
}

// Classifier produces classifications for tracks absent from the cache.
type Classifier interface {
	Classify(ctx context.Context, tracks []TrackRef, categories []string) ([]ClassifiedTrack, error)
}

// Service orchestrates classification: cache lookup, one model call for the
// gaps, persistence, merge.
type Service struct {
	store  Store
	model  Classifier
	logger *log.Logger

	// flight collapses identical concurrent batches into one model call.
	flight singleflight.Group
}

// NewService creates a classification service.
func NewService(store Store, model Classifier, logger *log.Logger) *Service {
	return &Service{
		store:  store,
		model:  model,
		logger: logger,
	}
}

// ClassifyTracks returns a classification for every input track against
// every requested category. Tracks already persisted with full category
// coverage are served from the database; the rest go to the model in a
// single batch whose results are persisted before returning. A model or
// persistence failure fails the whole call: no partial result, no partial
// write. The boundary layer guarantees tracks and categories are non-empty.
//
// Result order is not guaranteed to match the input order. Identical
// concurrent requests share one in-flight execution.
func (s *Service) ClassifyTracks(ctx context.Context, tracks []TrackRef, categories []string) ([]ClassifiedTrack, error) {
	result, err, _ := s.flight.Do(batchKey(tracks, categories), func() (any, error) {
		return s.classify(ctx, tracks, categories)
	})
	if err != nil {
		return nil, err
	}
	return result.([]ClassifiedTrack), nil
}

func (s *Service) classify(ctx context.Context, tracks []TrackRef, categories []string) ([]ClassifiedTrack, error) {
	ids := make([]string, len(tracks))
	for i, t := range tracks {
		ids[i] = t.ID
	}

	rows, err := s.store.ClassifiedRows(ctx, ids, categories)
	if err != nil {
		return nil, fmt.Errorf("reading classification cache: %w", err)
	}
	cached := coveredTracks(rows, categories)

	known := make(map[string]struct{}, len(cached))
	for _, t := range cached {
		known[t.ID] = struct{}{}
	}
	var uncached []TrackRef
	for _, t := range tracks {
		if _, ok := known[t.ID]; !ok {
			uncached = append(uncached, t)
		}
	}

	if len(uncached) == 0 {
		s.logger.Debug("classification served from cache", "tracks", len(tracks), "categories", len(categories))
		return cached, nil
	}

	s.logger.Info("classifying tracks",
		"total", len(tracks), "cached", len(cached), "uncached", len(uncached), "categories", len(categories))

	fresh, err := s.model.Classify(ctx, uncached, categories)
	if err != nil {
		return nil, err
	}

	if err := s.store.Save(ctx, fresh); err != nil {
		return nil, err
	}

	return append(cached, fresh...), nil
}

// batchKey derives a stable single-flight key from the track id set and the
// category set, insensitive to input order.
func batchKey(tracks []TrackRef, categories []string) string {
	ids := make([]string, len(tracks))
	for i, t := range tracks {
		ids[i] = t.ID
	}
	sort.Strings(ids)

	cats := append([]string(nil), categories...)
	sort.Strings(cats)

	h := sha256.New()
	h.Write([]byte(strings.Join(ids, "\x00")))
	h.Write([]byte{0x1f})
	h.Write([]byte(strings.Join(cats, "\x00")))
	return hex.EncodeToString(h.Sum(nil))
}
