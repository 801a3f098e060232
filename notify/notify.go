// Package notify carries the console's user-facing collaborators: the toast
// sink and the confirmation prompt.
package notify

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

type Severity string

const (
	Success Severity = "success"
	Error   Severity = "error"
	Info    Severity = "info"
)

// Sink displays transient messages. Show must not block the caller.
type Sink interface {
	Show(message string, severity Severity)
}

// Confirmation describes a destructive action awaiting the user's approval.
type Confirmation struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Confirm string `json:"confirmText"`
	Cancel  string `json:"cancelText"`
}

// Prompt asks for approval. A false answer or an error aborts the action.
type Prompt interface {
	Confirm(ctx context.Context, c Confirmation) (bool, error)
}

// LogSink writes every toast to the logger.
type LogSink struct {
	Logger *log.Logger
}

func (s LogSink) Show(message string, severity Severity) {
	if s.Logger == nil {
		return
	}
	entry := s.Logger.WithFields(log.Fields{"toast": true, "severity": string(severity)})
	if severity == Error {
		entry.Warn(message)
		return
	}
	entry.Info(message)
}

// Toast is one entry of the feed history.
type Toast struct {
	Seq      uint64    `json:"seq"`
	Message  string    `json:"message"`
	Severity Severity  `json:"severity"`
	At       time.Time `json:"at"`
}

// Feed keeps the most recent toasts in memory so a browser can poll them.
type Feed struct {
	mu    sync.Mutex
	limit int
	seq   uint64
	items []Toast
	now   func() time.Time
}

func NewFeed(limit int) *Feed {
	if limit <= 0 {
		limit = 50
	}
	return &Feed{limit: limit, now: time.Now}
}

func (f *Feed) Show(message string, severity Severity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	f.items = append(f.items, Toast{Seq: f.seq, Message: message, Severity: severity, At: f.now()})
	if over := len(f.items) - f.limit; over > 0 {
		f.items = append([]Toast(nil), f.items[over:]...)
	}
}

// Since returns the toasts newer than seq, oldest first.
func (f *Feed) Since(seq uint64) []Toast {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Toast, 0, len(f.items))
	for _, t := range f.items {
		if t.Seq > seq {
			out = append(out, t)
		}
	}
	return out
}

func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

// Fanout forwards every toast to each of its sinks.
type Fanout []Sink

func (fs Fanout) Show(message string, severity Severity) {
	for _, s := range fs {
		if s != nil {
			s.Show(message, severity)
		}
	}
}

type confirmKey struct{}

// WithConfirmation records the user's answer on ctx for ContextPrompt.
func WithConfirmation(ctx context.Context, confirmed bool) context.Context {
	return context.WithValue(ctx, confirmKey{}, confirmed)
}

// ContextPrompt answers from the decision stored by WithConfirmation. A
// context without a decision is treated as declined.
type ContextPrompt struct{}

func (ContextPrompt) Confirm(ctx context.Context, _ Confirmation) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	ok, _ := ctx.Value(confirmKey{}).(bool)
	return ok, nil
}

// AlwaysConfirm approves every prompt. It is meant for scripted sessions.
type AlwaysConfirm struct{}

func (AlwaysConfirm) Confirm(context.Context, Confirmation) (bool, error) { return true, nil }
