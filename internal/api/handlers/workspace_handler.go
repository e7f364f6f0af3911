package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/markdave123-py/CodeInsight/internal/agent"
	"github.com/markdave123-py/CodeInsight/internal/models"
	"github.com/markdave123-py/CodeInsight/internal/services"
)

type SessionResolver interface {
	Session(ctx context.Context, userID string) (services.SessionState, error)
}

// WorkspaceHandler serves the dashboard shell. The first authenticated
// render provisions the user's collection.
type WorkspaceHandler struct {
	users       SessionResolver
	collections Provisioner
	docs        DocumentManager
	log         *slog.Logger
}

func NewWorkspaceHandler(users SessionResolver, collections Provisioner, docs DocumentManager, logger *slog.Logger) *WorkspaceHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkspaceHandler{users: users, collections: collections, docs: docs, log: logger}
}

type workspace struct {
	User        *models.User       `json:"user"`
	Collection  string             `json:"collection"`
	Documents   []models.Document  `json:"documents"`
	Suggestions []agent.Suggestion `json:"suggestions"`
}

func (h *WorkspaceHandler) GetWorkspace(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	state, err := h.users.Session(r.Context(), uid)
	if err != nil {
		h.log.Error("session lookup failed", "user_id", uid, "error", err)
		writeError(w, http.StatusInternalServerError, "session lookup failed")
		return
	}
	if !state.IsAuthenticated {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	collection, err := h.collections.GetOrCreate(r.Context(), uid)
	if err != nil {
		h.log.Error("provision collection failed", "user_id", uid, "error", err)
		writeError(w, http.StatusInternalServerError, "could not prepare your knowledge base")
		return
	}

	writeJSON(w, http.StatusOK, workspace{
		User:        state.User,
		Collection:  collection,
		Documents:   h.docs.List(r.Context(), collection),
		Suggestions: agent.Suggestions,
	})
}
