package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/markdave123-py/CodeInsight/internal/metrics"
	"github.com/markdave123-py/CodeInsight/internal/models"
)

var (
	ErrGenerationInProgress = errors.New("a reply is still being generated")
	ErrEmptyInput           = errors.New("message is empty")
)

// Session is one user's conversation with the agent, bound to their collection.
type Session struct {
	agent *Agent
	tool  *RetrievalTool

	mu       sync.Mutex
	messages []models.ChatMessage
	input    string
	pending  *Generation
	now      func() time.Time
}

func NewSession(a *Agent, tool *RetrievalTool) *Session {
	return &Session{agent: a, tool: tool, now: time.Now}
}

// Collection is the collection the session searches.
func (s *Session) Collection() string { return s.tool.Collection() }

// Messages returns a copy of the transcript. A reply being generated is not included.
func (s *Session) Messages() []models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ChatMessage(nil), s.messages...)
}

func (s *Session) Input() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input
}

func (s *Session) SetInput(v string) {
	s.mu.Lock()
	s.input = v
	s.mu.Unlock()
}

func (s *Session) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

// Pending returns the generation in flight, or nil.
func (s *Session) Pending() *Generation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Submit sends the current input as a user message and starts a reply.
// The reply keeps running if ctx ends; only its values are inherited.
func (s *Session) Submit(ctx context.Context) (*Generation, error) {
	return s.SubmitText(ctx, "")
}

// SubmitText replaces the input with text, unless text is empty, and submits
// it. A refused call leaves the stored input untouched.
func (s *Session) SubmitText(ctx context.Context, text string) (*Generation, error) {
	s.mu.Lock()
	if s.pending != nil {
		s.mu.Unlock()
		return nil, ErrGenerationInProgress
	}
	if text != "" {
		s.input = text
	}
	text = strings.TrimSpace(s.input)
	if text == "" {
		s.mu.Unlock()
		return nil, ErrEmptyInput
	}
	s.messages = append(s.messages, models.ChatMessage{
		ID:        uuid.NewString(),
		Role:      models.RoleUser,
		Content:   text,
		CreatedAt: s.now().UTC(),
	})
	s.input = ""
	history := append([]models.ChatMessage(nil), s.messages...)
	gen := newGeneration(uuid.NewString())
	s.pending = gen
	s.mu.Unlock()

	go s.generate(context.WithoutCancel(ctx), gen, history)
	return gen, nil
}

func (s *Session) generate(ctx context.Context, gen *Generation, history []models.ChatMessage) {
	err := s.agent.run(ctx, gen, history, s.tool)

	// The transcript is settled before subscribers see completion.
	s.mu.Lock()
	if err == nil {
		s.messages = append(s.messages, gen.Snapshot())
	}
	s.pending = nil
	s.mu.Unlock()

	if err != nil {
		s.agent.log.Error("generation failed", "collection", s.tool.Collection(), "error", err)
		metrics.Generation(metrics.ResultError)
	} else {
		metrics.Generation(metrics.ResultOK)
	}
	gen.finish(err)
}

// Reset clears the transcript and input. It is refused while a reply is in flight.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending != nil {
		return ErrGenerationInProgress
	}
	s.messages = nil
	s.input = ""
	return nil
}
