package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"outgo/internal/auth"
	"outgo/internal/core"
	"outgo/internal/storage"
)

const minPasswordLength = 8

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}

	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	req.Username = sanitizeInput(req.Username)
	if err := core.ValidateUsername(req.Username); err != nil {
		respondError(w, http.StatusUnprocessableEntity, "username must be 3-32 characters of letters, digits, '_', '.' or '-'")
		return
	}
	if len(req.Password) < minPasswordLength {
		respondError(w, http.StatusUnprocessableEntity, "password must be at least 8 characters")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		slog.ErrorContext(r.Context(), "Password hashing failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	user, err := s.deps.Users.CreateUser(r.Context(), req.Username, hash)
	if errors.Is(err, storage.ErrUsernameTaken) {
		respondError(w, http.StatusConflict, "username already taken")
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "User creation failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	slog.InfoContext(r.Context(), "User registered", "user_id", user.ID, "username", user.Username)
	respondJSON(w, http.StatusCreated, map[string]any{
		"id":       user.ID,
		"username": user.Username,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}

	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, hash, err := s.deps.Users.GetUserByUsername(r.Context(), sanitizeInput(req.Username))
	if errors.Is(err, storage.ErrNotFound) {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "User lookup failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := auth.CheckPassword(hash, req.Password); err != nil {
		if errors.Is(err, auth.ErrWrongPassword) {
			respondError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		slog.ErrorContext(r.Context(), "Password check failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	session, err := s.deps.Sessions.Create(user.ID, user.Username)
	if err != nil {
		slog.ErrorContext(r.Context(), "Session creation failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	slog.InfoContext(r.Context(), "User logged in", "user_id", user.ID, "username", user.Username)
	respondJSON(w, http.StatusOK, map[string]any{
		"id":       user.ID,
		"username": user.Username,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}

	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		if err := s.deps.Sessions.Delete(cookie.Value); err != nil {
			slog.ErrorContext(r.Context(), "Session deletion failed", "error", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}

	user, ok := currentUser(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	// Sessions carry only id and username; fetch the full record.
	full, err := s.deps.Users.GetUserByID(r.Context(), user.ID)
	if err != nil {
		slog.ErrorContext(r.Context(), "User lookup failed", "user_id", user.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"id":         full.ID,
		"username":   full.Username,
		"created_at": full.CreatedAt.Format(time.RFC3339),
	})
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"categories": core.DefaultCategories})
}
