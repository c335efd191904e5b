package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	zspotify "github.com/zmb3/spotify/v2"

	"github.com/acrezel/tracksort/internal/auth"
	"github.com/acrezel/tracksort/internal/classify"
	"github.com/acrezel/tracksort/internal/db"
	"github.com/acrezel/tracksort/internal/spotify"
)

// memSessionStore keeps sessions in a map.
type memSessionStore struct {
	sessions map[string]*db.Session
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{sessions: make(map[string]*db.Session)}
}

func (s *memSessionStore) Create(_ context.Context, session *db.Session) error {
	s.sessions[session.ID] = session
	return nil
}

func (s *memSessionStore) Get(_ context.Context, id string) (*db.Session, error) {
	session, ok := s.sessions[id]
	if !ok || !session.ExpiresAt.After(time.Now()) {
		return nil, db.ErrNotFound
	}
	return session, nil
}

func (s *memSessionStore) Delete(_ context.Context, id string) error {
	delete(s.sessions, id)
	return nil
}

func (s *memSessionStore) DeleteForUser(_ context.Context, userID uuid.UUID) error {
	for id, session := range s.sessions {
		if session.UserID == userID {
			delete(s.sessions, id)
		}
	}
	return nil
}

// memUserStore keeps users in a map keyed by id.
type memUserStore struct {
	users map[uuid.UUID]*db.User
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: make(map[uuid.UUID]*db.User)}
}

func (s *memUserStore) Create(_ context.Context, user *db.User) error {
	for _, existing := range s.users {
		if existing.Email == user.Email {
			return db.ErrEmailTaken
		}
	}
	user.ID = uuid.New()
	s.users[user.ID] = user
	return nil
}

func (s *memUserStore) Get(_ context.Context, id uuid.UUID) (*db.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return user, nil
}

func (s *memUserStore) GetByEmail(_ context.Context, email string) (*db.User, error) {
	for _, user := range s.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, db.ErrNotFound
}

func (s *memUserStore) Delete(_ context.Context, id uuid.UUID) error {
	delete(s.users, id)
	return nil
}

// memAccountStore keeps connected accounts keyed by user id.
type memAccountStore struct {
	accounts map[uuid.UUID]*db.ConnectedAccount
}

func newMemAccountStore() *memAccountStore {
	return &memAccountStore{accounts: make(map[uuid.UUID]*db.ConnectedAccount)}
}

func (s *memAccountStore) Upsert(_ context.Context, account *db.ConnectedAccount) error {
	s.accounts[account.UserID] = account
	return nil
}

func (s *memAccountStore) Get(_ context.Context, userID uuid.UUID, provider string) (*db.ConnectedAccount, error) {
	account, ok := s.accounts[userID]
	if !ok || account.Provider != provider {
		return nil, db.ErrNotFound
	}
	return account, nil
}

func (s *memAccountStore) Delete(_ context.Context, userID uuid.UUID, provider string) error {
	if _, err := s.Get(context.Background(), userID, provider); err != nil {
		return err
	}
	delete(s.accounts, userID)
	return nil
}

// staticTokens hands out a fixed token or a fixed error.
type staticTokens struct {
	token string
	err   error
}

func (t *staticTokens) ValidToken(_ context.Context, _ *db.ConnectedAccount) (string, error) {
	return t.token, t.err
}

// fakeSpotifyAPI records the token it was built with.
type fakeSpotifyAPI struct {
	token     string
	profile   spotify.Profile
	playlists []spotify.Playlist
	tracks    []spotify.Track
	err       error
}

func (f *fakeSpotifyAPI) CurrentProfile(context.Context) (spotify.Profile, error) {
	return f.profile, f.err
}

func (f *fakeSpotifyAPI) Playlists(context.Context) ([]spotify.Playlist, error) {
	return f.playlists, f.err
}

func (f *fakeSpotifyAPI) PlaylistTracks(context.Context, string) ([]spotify.Track, error) {
	return f.tracks, f.err
}

// stubClassifier returns fixed classifications.
type stubClassifier struct {
	result []classify.ClassifiedTrack
	err    error
	calls  int
}

func (c *stubClassifier) ClassifyTracks(_ context.Context, tracks []classify.TrackRef, categories []string) ([]classify.ClassifiedTrack, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.result, nil
}

type testEnv struct {
	server     *Server
	users      *memUserStore
	accounts   *memAccountStore
	sessions   *memSessionStore
	tokens     *staticTokens
	api        *fakeSpotifyAPI
	classifier *stubClassifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		users:      newMemUserStore(),
		accounts:   newMemAccountStore(),
		sessions:   newMemSessionStore(),
		tokens:     &staticTokens{token: "valid-access-token"},
		api:        &fakeSpotifyAPI{},
		classifier: &stubClassifier{},
	}

	handlers := NewHandlers(HandlersConfig{
		Users:      env.users,
		Accounts:   env.accounts,
		Sessions:   NewSessions(env.sessions),
		Tokens:     env.tokens,
		Classifier: env.classifier,
		NewSpotify: func(_ context.Context, accessToken string) SpotifyAPI {
			env.api.token = accessToken
			return env.api
		},
		Logger: log.New(io.Discard),
	})

	env.server = NewServer(ServerConfig{Addr: ":0", AllowedOrigin: "http://localhost:3000"}, handlers, log.New(io.Discard))
	return env
}

func (env *testEnv) do(t *testing.T, method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshaling body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}

	rec := httptest.NewRecorder()
	env.server.Router().ServeHTTP(rec, req)
	return rec
}

// register creates a user and returns its session cookie.
func (env *testEnv) register(t *testing.T, email, password string) *http.Cookie {
	t.Helper()

	rec := env.do(t, http.MethodPost, "/auth/register", credentialsRequest{Email: email, Password: password}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register returned %d: %s", rec.Code, rec.Body.String())
	}
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == sessionCookieName && cookie.Value != "" {
			return cookie
		}
	}
	t.Fatal("register did not set a session cookie")
	return nil
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)

	cookie := env.register(t, "alice@example.com", "s3cret")
	if cookie == nil {
		t.Fatal("no cookie")
	}

	// Same email again is rejected.
	rec := env.do(t, http.MethodPost, "/auth/register", credentialsRequest{Email: "Alice@Example.com", Password: "other"}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("duplicate register returned %d, want 400", rec.Code)
	}

	// Wrong password.
	rec = env.do(t, http.MethodPost, "/auth/login", credentialsRequest{Email: "alice@example.com", Password: "wrong"}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad login returned %d, want 401", rec.Code)
	}

	// Unknown user gets the same answer as a wrong password.
	rec = env.do(t, http.MethodPost, "/auth/login", credentialsRequest{Email: "bob@example.com", Password: "s3cret"}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unknown user login returned %d, want 401", rec.Code)
	}

	// Correct credentials.
	rec = env.do(t, http.MethodPost, "/auth/login", credentialsRequest{Email: "alice@example.com", Password: "s3cret"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login returned %d: %s", rec.Code, rec.Body.String())
	}
	user := decodeJSON[userResponse](t, rec)
	if user.Email != "alice@example.com" {
		t.Errorf("login user email = %q", user.Email)
	}
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body credentialsRequest
	}{
		{"empty email", credentialsRequest{Password: "pw"}},
		{"empty password", credentialsRequest{Email: "a@b.c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/auth/register", tt.body, nil)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("returned %d, want 400", rec.Code)
			}
		})
	}
}

func TestRequireAuth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/auth/me", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no cookie returned %d, want 401", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/auth/me", nil, &http.Cookie{Name: sessionCookieName, Value: "bogus"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bogus cookie returned %d, want 401", rec.Code)
	}

	cookie := env.register(t, "alice@example.com", "s3cret")
	rec = env.do(t, http.MethodGet, "/auth/me", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("authenticated /auth/me returned %d", rec.Code)
	}
	user := decodeJSON[userResponse](t, rec)
	if user.Email != "alice@example.com" {
		t.Errorf("me email = %q", user.Email)
	}
}

func TestLogoutInvalidatesSession(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.register(t, "alice@example.com", "s3cret")

	rec := env.do(t, http.MethodPost, "/auth/logout", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout returned %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/auth/me", nil, cookie)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("me after logout returned %d, want 401", rec.Code)
	}
}

func TestDeleteUser(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.register(t, "alice@example.com", "s3cret")

	rec := env.do(t, http.MethodPost, "/auth/delete_user", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete_user returned %d", rec.Code)
	}

	if len(env.users.users) != 0 {
		t.Error("user still present after deletion")
	}
	if len(env.sessions.sessions) != 0 {
		t.Error("sessions still present after deletion")
	}

	rec = env.do(t, http.MethodPost, "/auth/login", credentialsRequest{Email: "alice@example.com", Password: "s3cret"}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("login after deletion returned %d, want 401", rec.Code)
	}
}

func TestSpotifyStatus(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.register(t, "alice@example.com", "s3cret")

	rec := env.do(t, http.MethodGet, "/spotify/status", nil, cookie)
	status := decodeJSON[map[string]bool](t, rec)
	if status["connected"] {
		t.Error("connected = true before linking")
	}

	env.linkAccount(t, cookie)

	rec = env.do(t, http.MethodGet, "/spotify/status", nil, cookie)
	status = decodeJSON[map[string]bool](t, rec)
	if !status["connected"] {
		t.Error("connected = false after linking")
	}
}

// linkAccount stores a connected account for the cookie's user directly.
func (env *testEnv) linkAccount(t *testing.T, cookie *http.Cookie) {
	t.Helper()
	session, err := env.sessions.Get(context.Background(), cookie.Value)
	if err != nil {
		t.Fatalf("resolving session: %v", err)
	}
	expires := time.Now().Add(time.Hour)
	err = env.accounts.Upsert(context.Background(), &db.ConnectedAccount{
		UserID:         session.UserID,
		Provider:       "spotify",
		ProviderUserID: "spotify-user-1",
		AccessToken:    "stored-token",
		RefreshToken:   "stored-refresh",
		ExpiresAt:      &expires,
	})
	if err != nil {
		t.Fatalf("upserting account: %v", err)
	}
}

func TestSpotifyUnlink(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.register(t, "alice@example.com", "s3cret")

	rec := env.do(t, http.MethodPost, "/spotify/logout", nil, cookie)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unlink without account returned %d, want 404", rec.Code)
	}

	env.linkAccount(t, cookie)

	rec = env.do(t, http.MethodPost, "/spotify/logout", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Errorf("unlink returned %d, want 200", rec.Code)
	}
	if len(env.accounts.accounts) != 0 {
		t.Error("account still present after unlink")
	}
}

func TestPlaylists(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.register(t, "alice@example.com", "s3cret")

	rec := env.do(t, http.MethodGet, "/spotify/playlists", nil, cookie)
	if rec.Code != http.StatusNotFound {
		t.Errorf("playlists without account returned %d, want 404", rec.Code)
	}

	env.linkAccount(t, cookie)
	env.api.playlists = []spotify.Playlist{{ID: "pl1", Name: "Focus", TracksCount: 12}}

	rec = env.do(t, http.MethodGet, "/spotify/playlists", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("playlists returned %d: %s", rec.Code, rec.Body.String())
	}
	playlists := decodeJSON[[]spotify.Playlist](t, rec)
	if len(playlists) != 1 || playlists[0].ID != "pl1" {
		t.Errorf("playlists = %+v", playlists)
	}
	if env.api.token != "valid-access-token" {
		t.Errorf("client built with token %q, want the one from the token source", env.api.token)
	}
}

func TestPlaylistsTokenRefreshFailure(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.register(t, "alice@example.com", "s3cret")
	env.linkAccount(t, cookie)
	env.tokens.err = errors.New("refresh token rejected")

	rec := env.do(t, http.MethodGet, "/spotify/playlists", nil, cookie)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("playlists with failing refresh returned %d, want 502", rec.Code)
	}
}

func TestPlaylistsRefreshRejectedPromptsRelink(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.register(t, "alice@example.com", "s3cret")
	env.linkAccount(t, cookie)
	env.tokens.err = &auth.TokenRefreshError{StatusCode: 400, Body: `{"error":"invalid_grant"}`}

	rec := env.do(t, http.MethodGet, "/spotify/playlists", nil, cookie)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("playlists with rejected refresh returned %d, want 401", rec.Code)
	}
	resp := decodeJSON[errorResponse](t, rec)
	if !strings.Contains(resp.Error, "re-link") {
		t.Errorf("error = %q, want a re-link prompt", resp.Error)
	}
}

func TestPlaylistsUnauthorizedAPIPromptsRelink(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.register(t, "alice@example.com", "s3cret")
	env.linkAccount(t, cookie)
	env.api.err = zspotify.Error{Status: http.StatusUnauthorized, Message: "The access token expired"}

	rec := env.do(t, http.MethodGet, "/spotify/playlists", nil, cookie)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("playlists with rejected token returned %d, want 401", rec.Code)
	}
	resp := decodeJSON[errorResponse](t, rec)
	if !strings.Contains(resp.Error, "re-link") {
		t.Errorf("error = %q, want a re-link prompt", resp.Error)
	}

	// Other upstream failures stay a gateway error.
	env.api.err = errors.New("spotify is down")
	rec = env.do(t, http.MethodGet, "/spotify/playlists", nil, cookie)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("playlists with upstream outage returned %d, want 502", rec.Code)
	}
}

func TestPlaylistTracks(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.register(t, "alice@example.com", "s3cret")
	env.linkAccount(t, cookie)
	env.api.tracks = []spotify.Track{{ID: "tr1", Name: "Song", Artists: []string{"A"}}}

	rec := env.do(t, http.MethodGet, "/spotify/playlists/pl1/tracks", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("tracks returned %d: %s", rec.Code, rec.Body.String())
	}
	tracks := decodeJSON[[]spotify.Track](t, rec)
	if len(tracks) != 1 || tracks[0].ID != "tr1" {
		t.Errorf("tracks = %+v", tracks)
	}
}

func TestClassifyValidation(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.register(t, "alice@example.com", "s3cret")

	track := classify.TrackRef{ID: "t1", Name: "Song", Artists: []string{"A"}}
	tests := []struct {
		name    string
		body    classifyRequest
		wantMsg string
	}{
		{"no tracks", classifyRequest{Categories: []string{"Rock"}}, "tracks must not be empty"},
		{"no categories", classifyRequest{Tracks: []classify.TrackRef{track}}, "categories must not be empty"},
		{"blank category", classifyRequest{Tracks: []classify.TrackRef{track}, Categories: []string{"Rock", "  "}}, "category at index 1 is empty"},
		{"track without id", classifyRequest{Tracks: []classify.TrackRef{{Name: "x"}}, Categories: []string{"Rock"}}, "track at index 0 has no id"},
		{"duplicate category", classifyRequest{Tracks: []classify.TrackRef{track}, Categories: []string{"Rock", "ROCK"}}, `duplicate category "ROCK"`},
		{"accent duplicate", classifyRequest{Tracks: []classify.TrackRef{track}, Categories: []string{"Electro", "Éléctro"}}, `duplicate category "Éléctro"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/classify", tt.body, cookie)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("returned %d, want 400", rec.Code)
			}
			resp := decodeJSON[errorResponse](t, rec)
			if !strings.Contains(resp.Error, tt.wantMsg) {
				t.Errorf("error = %q, want it to contain %q", resp.Error, tt.wantMsg)
			}
		})
	}

	if env.classifier.calls != 0 {
		t.Errorf("classifier called %d times on invalid input, want 0", env.classifier.calls)
	}
}

func TestClassify(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.register(t, "alice@example.com", "s3cret")

	env.classifier.result = []classify.ClassifiedTrack{{
		ID:      "t1",
		Title:   "Song",
		Artists: []string{"A"},
		Categories: []classify.CategoryScore{
			{Name: "Rock", Confidence: 88},
			{Name: "Jazz", Confidence: 3},
		},
	}}

	body := classifyRequest{
		Tracks:     []classify.TrackRef{{ID: "t1", Name: "Song", Artists: []string{"A"}}},
		Categories: []string{"Rock", "Jazz"},
	}
	rec := env.do(t, http.MethodPost, "/classify", body, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("classify returned %d: %s", rec.Code, rec.Body.String())
	}

	result := decodeJSON[[]classify.ClassifiedTrack](t, rec)
	if len(result) != 1 || result[0].ID != "t1" || len(result[0].Categories) != 2 {
		t.Errorf("result = %+v", result)
	}
}

func TestClassifyModelFailure(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.register(t, "alice@example.com", "s3cret")

	env.classifier.err = classify.ErrInvalidModelResponse
	body := classifyRequest{
		Tracks:     []classify.TrackRef{{ID: "t1", Name: "Song", Artists: []string{"A"}}},
		Categories: []string{"Rock"},
	}
	rec := env.do(t, http.MethodPost, "/classify", body, cookie)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("classify with invalid model reply returned %d, want 502", rec.Code)
	}
}
