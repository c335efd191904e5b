// Package spotify provides a wrapper around the Spotify Web API.
package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"
)

// Client wraps the Spotify API client with convenience methods.
type Client struct {
	api *spotify.Client
}

// New creates a client wrapper around an already authenticated API client.
func New(api *spotify.Client) *Client {
	return &Client{api: api}
}

// NewWithToken builds a client from a bearer access token. Token refresh is
// handled elsewhere; the token is used as-is.
func NewWithToken(ctx context.Context, accessToken string) *Client {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	httpClient := oauth2.NewClient(ctx, src)
	return New(spotify.New(httpClient, spotify.WithRetry(true)))
}

// Profile identifies the Spotify account behind a token.
type Profile struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// CurrentProfile returns the profile of the user the token belongs to.
func (c *Client) CurrentProfile(ctx context.Context) (Profile, error) {
	user, err := c.api.CurrentUser(ctx)
	if err != nil {
		return Profile{}, fmt.Errorf("getting current user: %w", err)
	}
	return Profile{ID: user.ID, DisplayName: user.DisplayName}, nil
}

// IsUnauthorized reports whether err is a Spotify API rejection of the
// access token.
func IsUnauthorized(err error) bool {
	var apiErr spotify.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden
}
