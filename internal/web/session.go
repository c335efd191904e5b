// Package web provides the HTTP API server.
package web

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/acrezel/tracksort/internal/db"
)

const (
	sessionCookieName = "tracksort_session"
	sessionTTL        = 7 * 24 * time.Hour
)

// SessionStore is the persistence surface for sessions.
type SessionStore interface {
	Create(ctx context.Context, session *db.Session) error
	Get(ctx context.Context, id string) (*db.Session, error)
	Delete(ctx context.Context, id string) error
	DeleteForUser(ctx context.Context, userID uuid.UUID) error
}

// Sessions manages cookie-backed sessions. A session carries only the user
// id and its expiry; provider tokens live on the connected account.
type Sessions struct {
	store SessionStore
}

// NewSessions creates a session manager over the given store.
func NewSessions(store SessionStore) *Sessions {
	return &Sessions{store: store}
}

// Start creates a session for the user and sets its cookie.
func (s *Sessions) Start(ctx context.Context, w http.ResponseWriter, userID uuid.UUID) (*db.Session, error) {
	id, err := generateSessionID()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	session := &db.Session{
		ID:        id,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(sessionTTL),
	}
	if err := s.store.Create(ctx, session); err != nil {
		return nil, err
	}

	setSessionCookie(w, session)
	return session, nil
}

// FromRequest resolves the session behind the request cookie. Returns
// db.ErrNotFound for a missing cookie and for unknown or expired sessions.
func (s *Sessions) FromRequest(r *http.Request) (*db.Session, error) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return nil, db.ErrNotFound
	}
	return s.store.Get(r.Context(), cookie.Value)
}

// End deletes the session and clears its cookie.
func (s *Sessions) End(ctx context.Context, w http.ResponseWriter, id string) error {
	clearSessionCookie(w)
	return s.store.Delete(ctx, id)
}

// EndAll deletes every session of the user and clears the cookie.
func (s *Sessions) EndAll(ctx context.Context, w http.ResponseWriter, userID uuid.UUID) error {
	clearSessionCookie(w)
	return s.store.DeleteForUser(ctx, userID)
}

func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func setSessionCookie(w http.ResponseWriter, session *db.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    session.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(time.Until(session.ExpiresAt).Seconds()),
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}
