package web

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	spotifyauth "github.com/zmb3/spotify/v2/auth"

	"github.com/acrezel/tracksort/internal/classify"
	"github.com/acrezel/tracksort/internal/db"
	"github.com/acrezel/tracksort/internal/spotify"
)

// UserStore is the persistence surface for local accounts.
type UserStore interface {
	Create(ctx context.Context, user *db.User) error
	Get(ctx context.Context, id uuid.UUID) (*db.User, error)
	GetByEmail(ctx context.Context, email string) (*db.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// AccountStore is the persistence surface for connected provider accounts.
type AccountStore interface {
	Upsert(ctx context.Context, account *db.ConnectedAccount) error
	Get(ctx context.Context, userID uuid.UUID, provider string) (*db.ConnectedAccount, error)
	Delete(ctx context.Context, userID uuid.UUID, provider string) error
}

// TokenSource yields a usable access token for a connected account,
// refreshing it when needed.
type TokenSource interface {
	ValidToken(ctx context.Context, account *db.ConnectedAccount) (string, error)
}

// ClassifyService runs track classification.
type ClassifyService interface {
	ClassifyTracks(ctx context.Context, tracks []classify.TrackRef, categories []string) ([]classify.ClassifiedTrack, error)
}

// SpotifyAPI is the slice of the Spotify client the handlers call.
type SpotifyAPI interface {
	CurrentProfile(ctx context.Context) (spotify.Profile, error)
	Playlists(ctx context.Context) ([]spotify.Playlist, error)
	PlaylistTracks(ctx context.Context, playlistID string) ([]spotify.Track, error)
}

// SpotifyClientFactory builds an API client around a bearer token.
type SpotifyClientFactory func(ctx context.Context, accessToken string) SpotifyAPI

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	users      UserStore
	accounts   AccountStore
	sessions   *Sessions
	tokens     TokenSource
	classifier ClassifyService
	auth       *spotifyauth.Authenticator
	newSpotify SpotifyClientFactory
	logger     *log.Logger
}

// HandlersConfig collects the dependencies of the HTTP handlers.
type HandlersConfig struct {
	Users      UserStore
	Accounts   AccountStore
	Sessions   *Sessions
	Tokens     TokenSource
	Classifier ClassifyService
	Auth       *spotifyauth.Authenticator
	NewSpotify SpotifyClientFactory
	Logger     *log.Logger
}

// NewHandlers creates a Handlers instance. A nil NewSpotify falls back to
// the real Spotify client.
func NewHandlers(cfg HandlersConfig) *Handlers {
	if cfg.NewSpotify == nil {
		cfg.NewSpotify = func(ctx context.Context, accessToken string) SpotifyAPI {
			return spotify.NewWithToken(ctx, accessToken)
		}
	}
	return &Handlers{
		users:      cfg.Users,
		accounts:   cfg.Accounts,
		sessions:   cfg.Sessions,
		tokens:     cfg.Tokens,
		classifier: cfg.Classifier,
		auth:       cfg.Auth,
		newSpotify: cfg.NewSpotify,
		logger:     cfg.Logger,
	}
}
