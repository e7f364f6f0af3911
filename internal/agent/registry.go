package agent

import (
	"log/slog"
	"sync"
)

// Registry keeps one session per user for the life of the process.
type Registry struct {
	agent    *Agent
	searcher Searcher
	log      *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry(a *Agent, s Searcher, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{agent: a, searcher: s, log: logger, sessions: make(map[string]*Session)}
}

// Session returns the user's session, creating it bound to collection on first use.
func (r *Registry) Session(userID, collection string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[userID]; ok {
		return s
	}
	s := NewSession(r.agent, NewRetrievalTool(r.searcher, collection, r.log))
	r.sessions[userID] = s
	return s
}
