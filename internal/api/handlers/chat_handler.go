package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/markdave123-py/CodeInsight/internal/agent"
	"github.com/markdave123-py/CodeInsight/internal/models"
	"github.com/markdave123-py/CodeInsight/internal/services"
)

// Sessions hands out the per-user chat session.
type Sessions interface {
	Session(userID, collection string) *agent.Session
}

// MarkdownRenderer turns assistant markdown into HTML.
type MarkdownRenderer interface {
	Render(src string) (string, error)
}

type ChatHandler struct {
	sessions    Sessions
	collections Provisioner
	md          MarkdownRenderer
	log         *slog.Logger
}

func NewChatHandler(sessions Sessions, collections Provisioner, md MarkdownRenderer, logger *slog.Logger) *ChatHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatHandler{sessions: sessions, collections: collections, md: md, log: logger}
}

type transcriptMessage struct {
	models.ChatMessage
	HTML string `json:"html,omitempty"`
}

type transcript struct {
	Messages    []transcriptMessage `json:"messages"`
	Input       string              `json:"input"`
	IsLoading   bool                `json:"is_loading"`
	Suggestions []agent.Suggestion  `json:"suggestions,omitempty"`
}

func (h *ChatHandler) session(uid string) *agent.Session {
	return h.sessions.Session(uid, services.CollectionName(uid))
}

// GetChat returns the transcript. With ?render=html assistant messages carry rendered HTML.
func (h *ChatHandler) GetChat(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	s := h.session(uid)
	render := r.URL.Query().Get("render") == "html"

	msgs := s.Messages()
	out := transcript{Messages: make([]transcriptMessage, 0, len(msgs)), Input: s.Input(), IsLoading: s.IsLoading()}
	for _, m := range msgs {
		tm := transcriptMessage{ChatMessage: m}
		if render && m.Role == models.RoleAssistant && h.md != nil {
			html, err := h.md.Render(m.Content)
			if err != nil {
				h.log.Warn("render markdown failed", "message_id", m.ID, "error", err)
			} else {
				tm.HTML = html
			}
		}
		out.Messages = append(out.Messages, tm)
	}
	if len(msgs) == 0 {
		out.Suggestions = agent.Suggestions
	}
	writeJSON(w, http.StatusOK, out)
}

type inputRequest struct {
	Input string `json:"input"`
}

func (h *ChatHandler) SetInput(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req inputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	h.session(uid).SetInput(req.Input)
	w.WriteHeader(http.StatusNoContent)
}

// SendMessage submits the input and streams the reply as server-sent events.
// A body {"input": "..."} replaces the stored input first.
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req inputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	if _, err := h.collections.GetOrCreate(r.Context(), uid); err != nil {
		h.log.Error("provision collection failed", "user_id", uid, "error", err)
		writeError(w, http.StatusInternalServerError, "could not prepare your knowledge base")
		return
	}

	gen, err := h.session(uid).SubmitText(r.Context(), req.Input)
	switch {
	case errors.Is(err, agent.ErrGenerationInProgress):
		writeError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, agent.ErrEmptyInput):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "could not start reply")
		return
	}
	h.stream(w, r, gen)
}

// StreamPending re-attaches to the reply in flight, replaying it from the start.
func (h *ChatHandler) StreamPending(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	gen := h.session(uid).Pending()
	if gen == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.stream(w, r, gen)
}

func (h *ChatHandler) stream(w http.ResponseWriter, r *http.Request, gen *agent.Generation) {
	sse, ok := newSSEWriter(w)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	sub := gen.Subscribe()
	for {
		e, err := sub.Next(r.Context())
		if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
			return
		}
		if err != nil {
			h.log.Warn("chat stream ended", "message_id", gen.ID(), "error", err)
			return
		}
		if err := sse.send(string(e.Type), e); err != nil {
			return
		}
	}
}

func (h *ChatHandler) ResetChat(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	if err := h.session(uid).Reset(); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
