package web

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"html"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/acrezel/tracksort/internal/auth"
	"github.com/acrezel/tracksort/internal/db"
	"github.com/acrezel/tracksort/internal/spotify"
)

const providerSpotify = "spotify"

const oauthStateCookie = "spotify_oauth_state"

// The callback renders into a popup window; the page reports the outcome
// to the opener and closes itself.
const callbackSuccessHTML = `<!DOCTYPE html>
<html>
<head><title>Spotify Connection Successful</title></head>
<body>
<script>
if (window.opener) {
	window.opener.postMessage({ type: 'spotify-auth', success: true }, '*');
}
setTimeout(() => window.close(), 500);
</script>
<p>Connection successful! This window will close automatically...</p>
</body>
</html>`

const callbackErrorHTML = `<!DOCTYPE html>
<html>
<head><title>Spotify Connection Error</title></head>
<body>
<script>
if (window.opener) {
	window.opener.postMessage({ type: 'spotify-auth', success: false, error: %q }, '*');
}
window.close();
</script>
<p>Connection error. This window will close automatically...</p>
</body>
</html>`

// SpotifyRedirect starts the account-link flow (GET /spotify/redirect).
func (h *Handlers) SpotifyRedirect(w http.ResponseWriter, r *http.Request) {
	state, err := generateOAuthState()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "could not start authorization")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   300,
	})

	http.Redirect(w, r, h.auth.AuthURL(state), http.StatusTemporaryRedirect)
}

// SpotifyCallback finishes the link flow (GET /spotify/callback). The
// response is an HTML page that posts the outcome to the opener window.
func (h *Handlers) SpotifyCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || r.URL.Query().Get("state") != stateCookie.Value {
		h.callbackError(w, "state mismatch")
		return
	}

	// Clear the state cookie; it is single use.
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})

	if errMsg := r.URL.Query().Get("error"); errMsg != "" {
		h.callbackError(w, errMsg)
		return
	}

	token, err := h.auth.Token(r.Context(), stateCookie.Value, r)
	if err != nil {
		h.logger.Error("exchanging authorization code", "err", err)
		h.callbackError(w, "token exchange failed")
		return
	}

	profile, err := h.newSpotify(r.Context(), token.AccessToken).CurrentProfile(r.Context())
	if err != nil {
		h.logger.Error("fetching spotify profile", "err", err)
		h.callbackError(w, "could not fetch Spotify profile")
		return
	}

	expiresAt := token.Expiry
	account := &db.ConnectedAccount{
		UserID:         userIDFrom(r.Context()),
		Provider:       providerSpotify,
		ProviderUserID: profile.ID,
		AccessToken:    token.AccessToken,
		RefreshToken:   token.RefreshToken,
		ExpiresAt:      &expiresAt,
	}
	if err := h.accounts.Upsert(r.Context(), account); err != nil {
		h.logger.Error("saving connected account", "err", err)
		h.callbackError(w, "could not save connection")
		return
	}

	h.logger.Info("spotify account linked", "user", account.UserID, "spotifyUser", profile.ID)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, callbackSuccessHTML)
}

func (h *Handlers) callbackError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, callbackErrorHTML, html.EscapeString(message))
}

// SpotifyStatus reports whether the user has a linked Spotify account
// (GET /spotify/status).
func (h *Handlers) SpotifyStatus(w http.ResponseWriter, r *http.Request) {
	_, err := h.accounts.Get(r.Context(), userIDFrom(r.Context()), providerSpotify)
	respondJSON(w, http.StatusOK, map[string]bool{"connected": err == nil})
}

// SpotifyUnlink removes the linked Spotify account (POST /spotify/logout).
func (h *Handlers) SpotifyUnlink(w http.ResponseWriter, r *http.Request) {
	err := h.accounts.Delete(r.Context(), userIDFrom(r.Context()), providerSpotify)
	if errors.Is(err, db.ErrNotFound) {
		respondError(w, http.StatusNotFound, "no Spotify account connected")
		return
	}
	if err != nil {
		h.logger.Error("unlinking spotify account", "err", err)
		respondError(w, http.StatusInternalServerError, "could not unlink account")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Spotify account unlinked"})
}

// Playlists returns the user's Spotify playlists (GET /spotify/playlists).
func (h *Handlers) Playlists(w http.ResponseWriter, r *http.Request) {
	client, ok := h.spotifyClient(w, r)
	if !ok {
		return
	}

	playlists, err := client.Playlists(r.Context())
	if err != nil {
		h.spotifyError(w, err, "fetching playlists")
		return
	}
	respondJSON(w, http.StatusOK, playlists)
}

// PlaylistTracks returns the tracks of one playlist
// (GET /spotify/playlists/{playlistID}/tracks).
func (h *Handlers) PlaylistTracks(w http.ResponseWriter, r *http.Request) {
	playlistID := chi.URLParam(r, "playlistID")
	if playlistID == "" {
		respondError(w, http.StatusBadRequest, "missing playlist id")
		return
	}

	client, ok := h.spotifyClient(w, r)
	if !ok {
		return
	}

	tracks, err := client.PlaylistTracks(r.Context(), playlistID)
	if err != nil {
		h.spotifyError(w, err, "fetching playlist tracks")
		return
	}
	respondJSON(w, http.StatusOK, tracks)
}

// spotifyClient resolves the user's connected account into an API client
// with a live token. On failure it writes the response and returns false.
func (h *Handlers) spotifyClient(w http.ResponseWriter, r *http.Request) (SpotifyAPI, bool) {
	account, err := h.accounts.Get(r.Context(), userIDFrom(r.Context()), providerSpotify)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			respondError(w, http.StatusNotFound, "no Spotify account connected")
			return nil, false
		}
		h.logger.Error("loading connected account", "err", err)
		respondError(w, http.StatusInternalServerError, "could not load account")
		return nil, false
	}

	accessToken, err := h.tokens.ValidToken(r.Context(), account)
	if err != nil {
		var refreshErr *auth.TokenRefreshError
		if errors.As(err, &refreshErr) {
			h.logger.Warn("provider rejected token refresh", "status", refreshErr.StatusCode, "err", err)
			respondError(w, http.StatusUnauthorized, "Spotify authorization expired, re-link your Spotify account")
			return nil, false
		}
		h.logger.Error("refreshing access token", "err", err)
		respondError(w, http.StatusBadGateway, "could not refresh Spotify token")
		return nil, false
	}

	return h.newSpotify(r.Context(), accessToken), true
}

// spotifyError maps upstream API failures: a rejected token means the stored
// grant is dead and the account must be re-linked, anything else is the
// provider misbehaving.
func (h *Handlers) spotifyError(w http.ResponseWriter, err error, msg string) {
	if spotify.IsUnauthorized(err) {
		h.logger.Warn("spotify rejected the access token", "err", err)
		respondError(w, http.StatusUnauthorized, "Spotify authorization expired, re-link your Spotify account")
		return
	}
	h.logger.Error(msg, "err", err)
	respondError(w, http.StatusBadGateway, "could not reach Spotify")
}

func generateOAuthState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
