package db

import (
	"time"

	"github.com/google/uuid"
)

// User represents a local application account.
type User struct {
	ID           uuid.UUID
	Username     *string // nullable
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session represents an authenticated web session.
type Session struct {
	ID        string
	UserID    uuid.UUID
	CreatedAt time.Time
	ExpiresAt time.Time
}

// ConnectedAccount holds the OAuth tokens linking a user to an external
// music provider. Unique per (user, provider).
type ConnectedAccount struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	Provider       string
	ProviderUserID string
	AccessToken    string
	RefreshToken   string
	ExpiresAt      *time.Time // nullable
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Track represents a provider track known to the classification subsystem.
// ProviderID is the provider-assigned identifier (unique); ID is internal.
type Track struct {
	ID         int64
	ProviderID string
	Title      string
	Artists    []string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TrackGenre relates a track to one category name with a confidence score.
// Unique per (track, category name).
type TrackGenre struct {
	TrackID      int64
	CategoryName string
	Confidence   float64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ClassifiedRow is one (track, category) classification row joined with its
// track metadata, as returned by TrackRepository.ClassifiedRows.
type ClassifiedRow struct {
	ProviderID   string
	Title        string
	Artists      []string
	CategoryName string
	Confidence   float64
}
