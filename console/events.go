package console

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"event-planner/domain"
	"event-planner/reconcile"
)

// EventList is the user's event list together with the event form.
type EventList struct {
	api  EventAPI
	deps Deps

	mu     sync.RWMutex
	events []domain.Event
	loaded bool
}

func NewEventList(api EventAPI, deps Deps) *EventList {
	return &EventList{api: api, deps: deps}
}

func (el *EventList) Load(ctx context.Context) error {
	events, err := el.api.Events(ctx)
	if err != nil {
		return fmt.Errorf("load events: %w", err)
	}
	el.mu.Lock()
	el.events = events
	el.loaded = true
	el.mu.Unlock()
	return nil
}

// Ensure loads the list unless it was loaded before.
func (el *EventList) Ensure(ctx context.Context) error {
	if el.isLoaded() {
		return nil
	}
	return el.Load(ctx)
}

func (el *EventList) isLoaded() bool {
	el.mu.RLock()
	defer el.mu.RUnlock()
	return el.loaded
}

func (el *EventList) Events() []domain.Event {
	el.mu.RLock()
	defer el.mu.RUnlock()
	return append([]domain.Event(nil), el.events...)
}

func (el *EventList) Event(id domain.ID) (domain.Event, bool) {
	el.mu.RLock()
	defer el.mu.RUnlock()
	i := el.index(id)
	if i < 0 {
		return domain.Event{}, false
	}
	return el.events[i], true
}

// Team fetches the people working on the event.
func (el *EventList) Team(ctx context.Context, id domain.ID) ([]domain.TeamMember, error) {
	team, err := el.api.EventTeam(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load team of %s: %w", id, err)
	}
	return team, nil
}

// Create appends the event under a temporary identity, replaced by the
// server's on success.
func (el *EventList) Create(ctx context.Context, in domain.EventInput) *reconcile.Ticket {
	in.Title = strings.TrimSpace(in.Title)
	in.Location = strings.TrimSpace(in.Location)
	if in.Type == "" {
		in.Type = domain.EventConference
	}
	if in.Status == "" {
		in.Status = domain.EventPlanning
	}
	tmp := in.Event()
	tmp.ID = tempID()

	return reconcile.Submit(ctx, el.deps.Syncer, reconcile.Mutation[domain.Event]{
		Entity:   "event",
		Action:   "create",
		Key:      "event:" + tmp.ID.String(),
		Validate: func() error { return validateEvent(tmp) },
		Apply: func() func() {
			el.mu.Lock()
			defer el.mu.Unlock()
			el.events = append(el.events, tmp)
			return func() { el.remove(tmp.ID) }
		},
		Dispatch: func(ctx context.Context) (domain.Event, error) {
			return el.api.CreateEvent(ctx, in)
		},
		Confirm: func(server domain.Event) {
			if server.ID == "" {
				return
			}
			el.replace(tmp.ID, server)
		},
		SuccessMessage: "Event created successfully",
		FailureMessage: "Failed to create event",
	})
}

// Update applies a partial update. A failure reverts only the fields the
// update changed.
func (el *EventList) Update(ctx context.Context, id domain.ID, changes domain.EventChanges) (*reconcile.Ticket, error) {
	current, ok := el.Event(id)
	if !ok {
		return nil, fmt.Errorf("%w: event %s", ErrNotFound, id)
	}
	if changes.Empty() {
		return reconcile.Settled(reconcile.StateConfirmed, nil), nil
	}
	if changes.Title != nil {
		changes.Title = domain.Ptr(strings.TrimSpace(*changes.Title))
	}
	if changes.Location != nil {
		changes.Location = domain.Ptr(strings.TrimSpace(*changes.Location))
	}

	return reconcile.Submit(ctx, el.deps.Syncer, reconcile.Mutation[domain.Event]{
		Entity: "event",
		Action: "update",
		Key:    "event:" + id.String(),
		Validate: func() error {
			merged := current
			changes.Apply(&merged)
			return validateEvent(merged)
		},
		Apply: func() func() {
			undo, ok := el.edit(id, changes)
			if !ok {
				return nil
			}
			return func() { el.edit(id, undo) }
		},
		Dispatch: func(ctx context.Context) (domain.Event, error) {
			return el.api.UpdateEvent(ctx, id, changes)
		},
		Confirm: func(server domain.Event) {
			if server.ID == "" && server.Title == "" {
				return
			}
			el.mu.Lock()
			defer el.mu.Unlock()
			if i := el.index(id); i >= 0 {
				el.events[i] = mergeEvent(el.events[i], server)
			}
		},
		SuccessMessage: "Event updated successfully",
		FailureMessage: "Failed to update event",
	}), nil
}

func (el *EventList) index(id domain.ID) int {
	for i, ev := range el.events {
		if ev.ID == id {
			return i
		}
	}
	return -1
}

func (el *EventList) remove(id domain.ID) {
	el.mu.Lock()
	defer el.mu.Unlock()
	if i := el.index(id); i >= 0 {
		el.events = append(el.events[:i:i], el.events[i+1:]...)
	}
}

func (el *EventList) replace(id domain.ID, ev domain.Event) {
	el.mu.Lock()
	defer el.mu.Unlock()
	if i := el.index(id); i >= 0 {
		el.events[i] = ev
	}
}

func (el *EventList) edit(id domain.ID, changes domain.EventChanges) (domain.EventChanges, bool) {
	el.mu.Lock()
	defer el.mu.Unlock()
	i := el.index(id)
	if i < 0 {
		return domain.EventChanges{}, false
	}
	return changes.Apply(&el.events[i]), true
}

// mergeEvent folds the server's answer into the local event. Fields the
// server left empty keep their local value.
func mergeEvent(local, server domain.Event) domain.Event {
	setIf(&local.Title, server.Title)
	setIf(&local.Type, server.Type)
	setIf(&local.Status, server.Status)
	setIf(&local.Description, server.Description)
	setIf(&local.StartDate, server.StartDate)
	setIf(&local.StartTime, server.StartTime)
	setIf(&local.EndDate, server.EndDate)
	setIf(&local.EndTime, server.EndTime)
	setIf(&local.Location, server.Location)
	setIf(&local.OrganizerID, server.OrganizerID)
	if server.Capacity != 0 {
		local.Capacity = server.Capacity
	}
	if server.Stats != nil {
		local.Stats = server.Stats
	}
	if server.Guests != nil {
		local.Guests = server.Guests
	}
	return local
}

func validateEvent(ev domain.Event) error {
	if ev.Title == "" || ev.StartDate == "" || ev.Location == "" {
		return errors.New("Please fill in all required fields")
	}
	if !domain.ValidEventType(ev.Type) {
		return fmt.Errorf("Unknown event type %q", ev.Type)
	}
	if !domain.ValidEventStatus(ev.Status) {
		return fmt.Errorf("Unknown event status %q", ev.Status)
	}
	start, err := time.Parse(calendarDateLayout, ev.StartDate)
	if err != nil {
		return errors.New("Invalid start date")
	}
	if ev.EndDate != "" {
		end, err := time.Parse(calendarDateLayout, ev.EndDate)
		if err != nil {
			return errors.New("Invalid end date")
		}
		if end.Before(start) {
			return errors.New("End date must not be before the start date")
		}
	}
	if ev.Capacity < 0 {
		return errors.New("Capacity must not be negative")
	}
	return nil
}
