package agent

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/markdave123-py/CodeInsight/internal/models"
)

// Generation is one in-flight assistant reply. Every event is kept, so a
// subscriber that joins late replays from the start. It finishes exactly once.
type Generation struct {
	mu       sync.Mutex
	events   []Event
	notify   chan struct{}
	done     chan struct{}
	finished bool
	msg      models.ChatMessage
	err      error
	onFinish []func(models.ChatMessage)
	onError  []func(error)
}

func newGeneration(messageID string) *Generation {
	g := &Generation{
		notify: make(chan struct{}),
		done:   make(chan struct{}),
		msg: models.ChatMessage{
			ID:        messageID,
			Role:      models.RoleAssistant,
			CreatedAt: time.Now().UTC(),
		},
	}
	g.emitLocked(newEvent(EventMessageStart, messageID))
	return g
}

func (g *Generation) ID() string { return g.msg.ID }

// emitLocked appends e and wakes every waiting subscriber. Caller holds mu.
func (g *Generation) emitLocked(e Event) {
	g.events = append(g.events, e)
	close(g.notify)
	g.notify = make(chan struct{})
}

func (g *Generation) appendText(delta string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.finished || delta == "" {
		return
	}
	g.msg.Content += delta
	e := newEvent(EventTextDelta, g.msg.ID)
	e.Content = delta
	g.emitLocked(e)
}

func (g *Generation) toolCall(inv models.ToolInvocation) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.finished {
		return
	}
	inv.State = models.ToolStateCall
	g.msg.ToolInvocations = append(g.msg.ToolInvocations, inv)
	e := newEvent(EventToolCall, g.msg.ID)
	e.Tool = &inv
	g.emitLocked(e)
}

func (g *Generation) toolResult(id, result string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.finished {
		return
	}
	for k := range g.msg.ToolInvocations {
		inv := &g.msg.ToolInvocations[k]
		if inv.ID != id {
			continue
		}
		inv.State = models.ToolStateResult
		inv.Result = result
		cp := *inv
		e := newEvent(EventToolResult, g.msg.ID)
		e.Tool = &cp
		g.emitLocked(e)
		return
	}
}

// finish settles the generation. Later calls are ignored.
func (g *Generation) finish(err error) {
	g.mu.Lock()
	if g.finished {
		g.mu.Unlock()
		return
	}
	g.finished = true
	g.err = err
	msg := g.snapshotLocked()
	if err != nil {
		e := newEvent(EventError, g.msg.ID)
		e.Error = err.Error()
		g.emitLocked(e)
	} else {
		e := newEvent(EventComplete, g.msg.ID)
		e.Message = &msg
		g.emitLocked(e)
	}
	close(g.done)
	onFinish, onError := g.onFinish, g.onError
	g.mu.Unlock()

	if err != nil {
		for _, fn := range onError {
			fn(err)
		}
		return
	}
	for _, fn := range onFinish {
		fn(msg)
	}
}

func (g *Generation) snapshotLocked() models.ChatMessage {
	msg := g.msg
	msg.ToolInvocations = append([]models.ToolInvocation(nil), g.msg.ToolInvocations...)
	return msg
}

// Snapshot returns the message as produced so far.
func (g *Generation) Snapshot() models.ChatMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshotLocked()
}

// OnFinish registers fn for successful completion; it runs at once if that already happened.
func (g *Generation) OnFinish(fn func(models.ChatMessage)) {
	g.mu.Lock()
	if !g.finished {
		g.onFinish = append(g.onFinish, fn)
		g.mu.Unlock()
		return
	}
	err, msg := g.err, g.snapshotLocked()
	g.mu.Unlock()
	if err == nil {
		fn(msg)
	}
}

// OnError registers fn for failure; it runs at once if that already happened.
func (g *Generation) OnError(fn func(error)) {
	g.mu.Lock()
	if !g.finished {
		g.onError = append(g.onError, fn)
		g.mu.Unlock()
		return
	}
	err := g.err
	g.mu.Unlock()
	if err != nil {
		fn(err)
	}
}

func (g *Generation) Done() <-chan struct{} { return g.done }

// Wait blocks until the generation finishes or ctx ends.
func (g *Generation) Wait(ctx context.Context) (models.ChatMessage, error) {
	select {
	case <-g.done:
	case <-ctx.Done():
		return models.ChatMessage{}, ctx.Err()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshotLocked(), g.err
}

// Subscribe returns a reader positioned at the first event.
func (g *Generation) Subscribe() *Subscription {
	return &Subscription{g: g}
}

type Subscription struct {
	g    *Generation
	next int
}

// Next returns the next event, io.EOF after the last one, or ctx's error.
func (s *Subscription) Next(ctx context.Context) (Event, error) {
	for {
		s.g.mu.Lock()
		if s.next < len(s.g.events) {
			e := s.g.events[s.next]
			s.next++
			s.g.mu.Unlock()
			return e, nil
		}
		if s.g.finished {
			s.g.mu.Unlock()
			return Event{}, io.EOF
		}
		wait := s.g.notify
		s.g.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return Event{}, ctx.Err()
		}
	}
}
