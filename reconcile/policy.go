// Package reconcile implements the console's optimistic update policy:
// apply locally, call the API in the background, then confirm with the
// server's representation or revert and tell the user.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"event-planner/notify"
)

// ErrValidation marks a mutation rejected before anything was applied.
var ErrValidation = errors.New("validation failed")

// State is the lifecycle of one mutation.
type State int32

const (
	StateIdle State = iota
	StateApplied
	StateConfirmed
	StateRolledBack
	StateRejected
	StateAbandoned
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateApplied:
		return "applied"
	case StateConfirmed:
		return "confirmed"
	case StateRolledBack:
		return "rolled-back"
	case StateRejected:
		return "rejected"
	case StateAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// Settled reports whether s is terminal.
func (s State) Settled() bool {
	return s >= StateConfirmed
}

// Mutation describes one optimistic change of a single entity.
//
// Apply runs synchronously inside Submit and returns the closure that undoes
// exactly what it changed. Dispatch performs the remote call. Confirm folds
// the server's answer into local state. Refresh re-fetches aggregates the
// server recomputed; its failure is logged only.
type Mutation[T any] struct {
	Entity string
	Action string
	Key    string

	Validate func() error
	Apply    func() (revert func())
	Dispatch func(ctx context.Context) (T, error)
	Confirm  func(T)
	Refresh  func(ctx context.Context) error

	SuccessMessage string
	FailureMessage string
}

func (m Mutation[T]) failureMessage() string {
	if m.FailureMessage != "" {
		return m.FailureMessage
	}
	return fmt.Sprintf("Failed to %s %s", m.Action, m.Entity)
}

// Ticket tracks a submitted mutation.
type Ticket struct {
	seq   int64
	state atomic.Int32
	done  chan struct{}
	err   error
}

func newTicket(seq int64) *Ticket {
	return &Ticket{seq: seq, done: make(chan struct{})}
}

// Settled returns a ticket that is already resolved, for gestures that did
// not need the network.
func Settled(state State, err error) *Ticket {
	t := newTicket(0)
	t.settle(state, err)
	return t
}

func (t *Ticket) settle(state State, err error) {
	t.err = err
	t.state.Store(int32(state))
	close(t.done)
}

func (t *Ticket) Done() <-chan struct{} { return t.done }

func (t *Ticket) State() State { return State(t.state.Load()) }

func (t *Ticket) Seq() int64 { return t.seq }

// Err is the outcome of a settled ticket; nil while pending.
func (t *Ticket) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Wait blocks until the mutation settles or ctx ends.
func (t *Ticket) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Syncer runs mutations through the dispatcher and reports their outcome.
type Syncer struct {
	dispatcher *Dispatcher
	sink       notify.Sink
	log        *log.Logger
	clock      clock

	mu       sync.Mutex
	inflight map[string]int
}

func NewSyncer(d *Dispatcher, sink notify.Sink, logger *log.Logger) *Syncer {
	if logger == nil {
		panic("Logger is not initialized")
	}
	if sink == nil {
		sink = notify.LogSink{Logger: logger}
	}
	return &Syncer{
		dispatcher: d,
		sink:       sink,
		log:        logger,
		inflight:   make(map[string]int),
	}
}

// Sink is where the syncer reports outcomes.
func (s *Syncer) Sink() notify.Sink { return s.sink }

// Pending reports whether a mutation of key is still awaiting the server.
func (s *Syncer) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight[key] > 0
}

// InFlight counts unresolved mutations.
func (s *Syncer) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.inflight {
		n += c
	}
	return n
}

func (s *Syncer) track(key string, delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight[key] += delta
	if s.inflight[key] <= 0 {
		delete(s.inflight, key)
	}
}

// Submit applies m locally and resolves it against the server in the
// background. Concurrent mutations of the same key are not merged: the last
// one to resolve wins.
func Submit[T any](ctx context.Context, s *Syncer, m Mutation[T]) *Ticket {
	t := newTicket(s.clock.next())
	start := time.Now()

	if m.Validate != nil {
		if err := m.Validate(); err != nil {
			s.sink.Show(err.Error(), notify.Error)
			err = fmt.Errorf("%w: %w", ErrValidation, err)
			s.observe(ctx, m.Entity, m.Action, m.Key, t.Seq(), StateRejected, time.Since(start), err)
			t.settle(StateRejected, err)
			return t
		}
	}

	revert := func() {}
	if m.Apply != nil {
		if r := m.Apply(); r != nil {
			revert = r
		}
	}
	t.state.Store(int32(StateApplied))

	s.track(m.Key, 1)
	s.dispatcher.Go(func() {
		defer s.track(m.Key, -1)
		resolve(ctx, s, m, t, revert, start)
	})
	return t
}

func resolve[T any](ctx context.Context, s *Syncer, m Mutation[T], t *Ticket, revert func(), start time.Time) {
	v, err := dispatch(ctx, m)

	var state State
	switch {
	case err == nil:
		if m.Confirm != nil {
			m.Confirm(v)
		}
		if m.SuccessMessage != "" {
			s.sink.Show(m.SuccessMessage, notify.Success)
		}
		if m.Refresh != nil {
			if rerr := m.Refresh(ctx); rerr != nil {
				s.log.WithFields(log.Fields{"entity": m.Entity, "key": m.Key, "error": rerr.Error()}).
					Warn("refresh after mutation failed")
			}
		}
		state = StateConfirmed
	case ctx.Err() != nil:
		state = StateAbandoned
	default:
		revert()
		s.sink.Show(m.failureMessage(), notify.Error)
		state = StateRolledBack
	}

	s.observe(ctx, m.Entity, m.Action, m.Key, t.Seq(), state, time.Since(start), err)
	t.settle(state, err)
}

func dispatch[T any](ctx context.Context, m Mutation[T]) (v T, err error) {
	if m.Dispatch == nil {
		return v, nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s %s: panic: %v", m.Action, m.Entity, r)
		}
	}()
	return m.Dispatch(ctx)
}
