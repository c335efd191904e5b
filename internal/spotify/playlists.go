package spotify

import (
	"context"
	"fmt"

	"github.com/zmb3/spotify/v2"
)

const pageLimit = 50

// Playlist is the subset of playlist metadata served to the frontend.
type Playlist struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Owner       string `json:"owner"`
	ImageURL    string `json:"imageUrl,omitempty"`
	TracksCount int    `json:"tracksCount"`
	URL         string `json:"url"`
}

// Playlists returns the current user's playlists, first page only. Fifty
// playlists cover the typical library; deeper pagination is not worth the
// extra round trips here.
func (c *Client) Playlists(ctx context.Context) ([]Playlist, error) {
	page, err := c.api.CurrentUsersPlaylists(ctx, spotify.Limit(pageLimit))
	if err != nil {
		return nil, fmt.Errorf("fetching playlists: %w", err)
	}

	playlists := make([]Playlist, 0, len(page.Playlists))
	for _, p := range page.Playlists {
		playlists = append(playlists, convertPlaylist(p))
	}
	return playlists, nil
}

func convertPlaylist(p spotify.SimplePlaylist) Playlist {
	playlist := Playlist{
		ID:          p.ID.String(),
		Name:        p.Name,
		Owner:       p.Owner.DisplayName,
		TracksCount: int(p.Tracks.Total),
		URL:         p.ExternalURLs["spotify"],
	}
	if len(p.Images) > 0 {
		playlist.ImageURL = p.Images[0].URL
	}
	return playlist
}
