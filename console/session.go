package console

import (
	"context"
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"

	"event-planner/domain"
)

type loader interface {
	Load(ctx context.Context) error
}

// Session owns the controllers of one console user. Per-event controllers
// are built and loaded on first use and share the session's syncer, sink
// and prompt.
type Session struct {
	api  Planner
	deps Deps
	log  *log.Logger

	inbox     *Inbox
	events    *EventList
	calendar  *Calendar
	dashboard *Dashboard

	mu      sync.Mutex
	boards  map[domain.ID]*TaskBoard
	budgets map[domain.ID]*BudgetTracker
	guests  map[domain.ID]*GuestList
}

func NewSession(api Planner, deps Deps) *Session {
	if deps.Logger == nil {
		panic("console: nil logger")
	}
	return &Session{
		api:       api,
		deps:      deps,
		log:       deps.Logger,
		inbox:     NewInbox(api, deps),
		events:    NewEventList(api, deps),
		calendar:  NewCalendar(api),
		dashboard: NewDashboard(api),
		boards:    make(map[domain.ID]*TaskBoard),
		budgets:   make(map[domain.ID]*BudgetTracker),
		guests:    make(map[domain.ID]*GuestList),
	}
}

func (s *Session) Inbox() *Inbox { return s.inbox }

func (s *Session) Events() *EventList { return s.events }

func (s *Session) Calendar() *Calendar { return s.calendar }

func (s *Session) Dashboard() *Dashboard { return s.dashboard }

func (s *Session) Board(ctx context.Context, eventID domain.ID) (*TaskBoard, error) {
	return lazy(ctx, &s.mu, s.boards, eventID, func() *TaskBoard {
		return NewTaskBoard(eventID, s.api, s.deps)
	})
}

func (s *Session) Budget(ctx context.Context, eventID domain.ID) (*BudgetTracker, error) {
	return lazy(ctx, &s.mu, s.budgets, eventID, func() *BudgetTracker {
		return NewBudgetTracker(eventID, s.api, s.deps)
	})
}

func (s *Session) Guests(ctx context.Context, eventID domain.ID) (*GuestList, error) {
	return lazy(ctx, &s.mu, s.guests, eventID, func() *GuestList {
		return NewGuestList(eventID, s.api, s.deps)
	})
}

// lazy returns the loaded controller of eventID, building and loading it
// when missing. A controller whose first load fails is not kept.
func lazy[C loader](ctx context.Context, mu *sync.Mutex, m map[domain.ID]C, eventID domain.ID, build func() C) (C, error) {
	mu.Lock()
	c, ok := m[eventID]
	mu.Unlock()
	if ok {
		return c, nil
	}

	c = build()
	if err := c.Load(ctx); err != nil {
		var zero C
		return zero, err
	}

	mu.Lock()
	defer mu.Unlock()
	if existing, ok := m[eventID]; ok {
		return existing, nil
	}
	m[eventID] = c
	return c, nil
}

// Reload re-fetches every loaded controller, for instance after another
// console changed the data. Optimistic changes still in flight may be
// overwritten by the fetched state.
func (s *Session) Reload(ctx context.Context) error {
	s.mu.Lock()
	targets := make([]loader, 0, len(s.boards)+len(s.budgets)+len(s.guests)+2)
	for _, c := range s.boards {
		targets = append(targets, c)
	}
	for _, c := range s.budgets {
		targets = append(targets, c)
	}
	for _, c := range s.guests {
		targets = append(targets, c)
	}
	s.mu.Unlock()
	targets = append(targets, s.inbox)
	if s.events.isLoaded() {
		targets = append(targets, s.events)
	}

	var errs []error
	for _, c := range targets {
		if err := c.Load(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	err := errors.Join(errs...)
	if err != nil {
		s.log.WithFields(log.Fields{"failed": len(errs), "controllers": len(targets)}).
			Warnf("session reload incomplete: %v", err)
	}
	return err
}
