package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/acrezel/tracksort/internal/db"
)

// refreshMargin is how long before the recorded expiry a token is already
// treated as expired, covering clock skew and in-flight request latency.
const refreshMargin = 60 * time.Second

// DefaultTokenURL is Spotify's OAuth token endpoint.
const DefaultTokenURL = "https://accounts.spotify.com/api/token"

// TokenRefreshError reports a failed refresh exchange with the provider.
// A retry with the same refresh token will not succeed; the caller should
// surface an upstream-auth failure and prompt re-linking the account.
type TokenRefreshError struct {
	// StatusCode is the provider's HTTP status, 0 when the call never
	// reached the provider.
	StatusCode int
	// Body is the provider's response body, empty on transport errors.
	Body string

	err error
}

// Error implements the error interface.
func (e *TokenRefreshError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("token refresh rejected (%d): %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("token refresh failed: %v", e.err)
}

// Unwrap returns the underlying error.
func (e *TokenRefreshError) Unwrap() error {
	return e.err
}

// AccountStore persists refreshed tokens back to the connected account.
type AccountStore interface {
	UpdateTokens(ctx context.Context, id uuid.UUID, accessToken, refreshToken string, expiresAt time.Time) error
}

// TokenManager hands out valid provider access tokens, refreshing them
// through the OAuth refresh_token grant when they are near expiry.
type TokenManager struct {
	conf     *oauth2.Config
	accounts AccountStore
	logger   *log.Logger

	// flight collapses concurrent refreshes for the same account into one
	// upstream call.
	flight singleflight.Group

	// now is replaceable in tests.
	now func() time.Time
}

// TokenManagerConfig configures a TokenManager.
type TokenManagerConfig struct {
	ClientID     string
	ClientSecret string
	// TokenURL defaults to DefaultTokenURL.
	TokenURL string
}

// NewTokenManager creates a TokenManager backed by the given account store.
func NewTokenManager(cfg TokenManagerConfig, accounts AccountStore, logger *log.Logger) *TokenManager {
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	return &TokenManager{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL: tokenURL,
				// Spotify requires client credentials in the Basic header.
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		accounts: accounts,
		logger:   logger,
		now:      time.Now,
	}
}

// ValidToken returns a usable access token for the account. The stored token
// is returned as-is when it expires more than refreshMargin from now; in that
// case no network call is made, no state changes, and the common path stays
// cheap. Otherwise the token is refreshed, the new tokens are persisted
// exactly once through the account store, and the new token is returned.
//
// Concurrent callers for the same account share a single refresh exchange.
// The passed record is never written to, only read, so callers may share it;
// reload the account to observe the persisted tokens.
func (m *TokenManager) ValidToken(ctx context.Context, account *db.ConnectedAccount) (string, error) {
	if !m.expired(account) {
		return account.AccessToken, nil
	}

	token, err, _ := m.flight.Do(account.ID.String(), func() (any, error) {
		return m.refresh(ctx, *account)
	})
	if err != nil {
		return "", err
	}
	return token.(string), nil
}

// expired reports whether the access token must be refreshed before use.
// A missing expiry means we cannot trust the token at all.
func (m *TokenManager) expired(account *db.ConnectedAccount) bool {
	if account.AccessToken == "" || account.ExpiresAt == nil {
		return true
	}
	return !account.ExpiresAt.After(m.now().Add(refreshMargin))
}

// refresh performs the refresh_token grant and persists the new tokens. It
// takes the account by value so the refresh never writes to a record other
// goroutines may be reading.
func (m *TokenManager) refresh(ctx context.Context, account db.ConnectedAccount) (string, error) {
	m.logger.Info("refreshing provider token", "account", account.ID, "provider", account.Provider)

	src := m.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: account.RefreshToken})
	token, err := src.Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			return "", &TokenRefreshError{
				StatusCode: retrieveErr.Response.StatusCode,
				Body:       string(retrieveErr.Body),
				err:        err,
			}
		}
		return "", &TokenRefreshError{err: err}
	}

	account.AccessToken = token.AccessToken
	// The provider may omit the refresh token, meaning "keep the old one".
	if token.RefreshToken != "" {
		account.RefreshToken = token.RefreshToken
	}
	expiresAt := token.Expiry
	account.ExpiresAt = &expiresAt

	if err := m.accounts.UpdateTokens(ctx, account.ID, account.AccessToken, account.RefreshToken, expiresAt); err != nil {
		return "", fmt.Errorf("persisting refreshed tokens: %w", err)
	}

	return account.AccessToken, nil
}
