package spotify

import (
	"context"
	"fmt"

	"github.com/zmb3/spotify/v2"
)

// Track is the track shape handed to classification: provider id, title,
// and the full artist list.
type Track struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Artists []string `json:"artists"`
}

// PlaylistTracks returns the tracks of a playlist, first page only, capped
// at 50 items. Podcast episodes and local files carry no track payload and
// are skipped.
func (c *Client) PlaylistTracks(ctx context.Context, playlistID string) ([]Track, error) {
	page, err := c.api.GetPlaylistItems(ctx, spotify.ID(playlistID), spotify.Limit(pageLimit))
	if err != nil {
		return nil, fmt.Errorf("fetching playlist %s tracks: %w", playlistID, err)
	}

	tracks := make([]Track, 0, len(page.Items))
	for _, item := range page.Items {
		if item.Track.Track == nil {
			continue
		}
		tracks = append(tracks, convertPlaylistTrack(item.Track.Track))
	}
	return tracks, nil
}

func convertPlaylistTrack(t *spotify.FullTrack) Track {
	artists := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		artists[i] = a.Name
	}
	return Track{
		ID:      t.ID.String(),
		Name:    t.Name,
		Artists: artists,
	}
}
