package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	middleware "github.com/markdave123-py/CodeInsight/internal/api/middlewares"
	"github.com/markdave123-py/CodeInsight/internal/models"
	"github.com/markdave123-py/CodeInsight/internal/services"
)

// AuthService is the identity surface the auth endpoints use.
type AuthService interface {
	Signup(ctx context.Context, email, password, displayName string) (*models.User, error)
	Login(ctx context.Context, email, password, redirect string) (*services.LoginResult, error)
	Logout(ctx context.Context, token string) error
	Session(ctx context.Context, userID string) (services.SessionState, error)
}

type AuthHandler struct {
	users AuthService
	log   *slog.Logger
}

func NewAuthHandler(users AuthService, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{users: users, log: logger}
}

type signupRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Redirect string `json:"redirect"`
}

// Signup registers the user and signs them in.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	_, err := h.users.Signup(r.Context(), req.Email, req.Password, req.DisplayName)
	switch {
	case errors.Is(err, services.ErrInvalidSignup):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, services.ErrEmailTaken):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		h.log.Error("signup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "signup failed")
		return
	}

	res, err := h.users.Login(r.Context(), req.Email, req.Password, "")
	if err != nil {
		h.log.Error("login after signup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "signup failed")
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	res, err := h.users.Login(r.Context(), req.Email, req.Password, req.Redirect)
	if errors.Is(err, services.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		h.log.Error("login failed", "error", err)
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.users.Logout(r.Context(), middleware.TokenFromContext(r.Context())); err != nil {
		h.log.Error("logout failed", "error", err)
		writeError(w, http.StatusInternalServerError, "logout failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	state, err := h.users.Session(r.Context(), id)
	if err != nil {
		h.log.Error("session lookup failed", "user_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "session lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, state)
}
