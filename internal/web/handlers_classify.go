package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/acrezel/tracksort/internal/classify"
	"github.com/acrezel/tracksort/internal/normalize"
)

type classifyRequest struct {
	Tracks     []classify.TrackRef `json:"tracks"`
	Categories []string            `json:"categories"`
}

// Classify runs the classification pipeline (POST /classify).
func (h *Handlers) Classify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if msg, ok := validateClassifyRequest(req); !ok {
		respondError(w, http.StatusBadRequest, msg)
		return
	}

	result, err := h.classifier.ClassifyTracks(r.Context(), req.Tracks, req.Categories)
	if err != nil {
		if errors.Is(err, classify.ErrInvalidModelResponse) {
			h.logger.Error("model returned an unusable reply", "err", err)
			respondError(w, http.StatusBadGateway, "classification model returned an unusable reply")
			return
		}
		h.logger.Error("classifying tracks", "err", err)
		respondError(w, http.StatusInternalServerError, "could not classify tracks")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func validateClassifyRequest(req classifyRequest) (string, bool) {
	if len(req.Tracks) == 0 {
		return "tracks must not be empty", false
	}
	if len(req.Categories) == 0 {
		return "categories must not be empty", false
	}
	for i, track := range req.Tracks {
		if track.ID == "" {
			return fmt.Sprintf("track at index %d has no id", i), false
		}
	}
	for i, category := range req.Categories {
		if strings.TrimSpace(category) == "" {
			return fmt.Sprintf("category at index %d is empty", i), false
		}
	}
	// Categories that only differ in case or diacritics collide in the
	// cache, so reject them up front.
	if dup, ok := normalize.Dedupe(req.Categories); ok {
		return fmt.Sprintf("duplicate category %q", dup), false
	}
	return "", true
}
