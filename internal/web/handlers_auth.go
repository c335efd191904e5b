package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/acrezel/tracksort/internal/auth"
	"github.com/acrezel/tracksort/internal/db"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
}

// Register creates a local account and logs it in (POST /auth/register).
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.logger.Error("hashing password", "err", err)
		respondError(w, http.StatusInternalServerError, "could not create user")
		return
	}

	user := &db.User{Email: req.Email, PasswordHash: hash}
	if err := h.users.Create(r.Context(), user); err != nil {
		if errors.Is(err, db.ErrEmailTaken) {
			respondError(w, http.StatusBadRequest, "email already in use")
			return
		}
		h.logger.Error("creating user", "err", err)
		respondError(w, http.StatusInternalServerError, "could not create user")
		return
	}

	if _, err := h.sessions.Start(r.Context(), w, user.ID); err != nil {
		h.logger.Error("starting session", "err", err)
		respondError(w, http.StatusInternalServerError, "could not start session")
		return
	}

	respondJSON(w, http.StatusCreated, userResponse{ID: user.ID, Email: user.Email})
}

// Login authenticates a local account (POST /auth/login).
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))

	user, err := h.users.GetByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			respondError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		h.logger.Error("looking up user", "err", err)
		respondError(w, http.StatusInternalServerError, "could not log in")
		return
	}

	if err := auth.VerifyPassword(user.PasswordHash, req.Password); err != nil {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if _, err := h.sessions.Start(r.Context(), w, user.ID); err != nil {
		h.logger.Error("starting session", "err", err)
		respondError(w, http.StatusInternalServerError, "could not start session")
		return
	}

	respondJSON(w, http.StatusOK, userResponse{ID: user.ID, Email: user.Email})
}

// Logout ends the current session (POST /auth/logout).
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.End(r.Context(), w, sessionIDFrom(r.Context())); err != nil {
		h.logger.Error("ending session", "err", err)
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// Me returns the authenticated user (GET /auth/me).
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Get(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	respondJSON(w, http.StatusOK, userResponse{ID: user.ID, Email: user.Email})
}

// DeleteUser removes the authenticated account and all its sessions
// (POST /auth/delete_user). Connected accounts and classifications cascade
// in the database.
func (h *Handlers) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r.Context())

	if err := h.sessions.EndAll(r.Context(), w, userID); err != nil {
		h.logger.Error("ending sessions", "err", err)
	}

	if err := h.users.Delete(r.Context(), userID); err != nil {
		h.logger.Error("deleting user", "err", err)
		respondError(w, http.StatusInternalServerError, "could not delete user")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "user deleted"})
}
