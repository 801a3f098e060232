package console

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"

	"event-planner/aggregate"
	"event-planner/domain"
	"event-planner/reconcile"
)

// GuestList is the guest management view of one event.
type GuestList struct {
	eventID domain.ID
	api     GuestAPI
	deps    Deps

	mu     sync.RWMutex
	event  domain.Event
	guests []domain.EventGuest
}

func NewGuestList(eventID domain.ID, api GuestAPI, deps Deps) *GuestList {
	return &GuestList{eventID: eventID, api: api, deps: deps}
}

func (gl *GuestList) EventID() domain.ID { return gl.eventID }

// Load fetches the event and the global guest list and joins them.
func (gl *GuestList) Load(ctx context.Context) error {
	ev, err := gl.api.Event(ctx, gl.eventID)
	if err != nil {
		return fmt.Errorf("load event %s: %w", gl.eventID, err)
	}
	all, err := gl.api.Guests(ctx)
	if err != nil {
		return fmt.Errorf("load guests: %w", err)
	}
	joined := aggregate.JoinGuests(ev, all)
	gl.mu.Lock()
	gl.event = ev
	gl.guests = joined
	gl.mu.Unlock()
	return nil
}

func (gl *GuestList) Event() domain.Event {
	gl.mu.RLock()
	defer gl.mu.RUnlock()
	return gl.event
}

func (gl *GuestList) Guests() []domain.EventGuest {
	gl.mu.RLock()
	defer gl.mu.RUnlock()
	return append([]domain.EventGuest(nil), gl.guests...)
}

func (gl *GuestList) Stats() domain.EventStats {
	gl.mu.RLock()
	defer gl.mu.RUnlock()
	return aggregate.GuestStats(gl.guests)
}

// Invite adds a guest to the event. The guest shows at the end of the list
// under a temporary identity until the server answers.
func (gl *GuestList) Invite(ctx context.Context, in domain.GuestInput) *reconcile.Ticket {
	in.EventID = gl.eventID
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.TrimSpace(in.Email)
	if in.Group == "" {
		in.Group = domain.GroupNone
	}
	if in.Status == "" {
		in.Status = domain.GuestPending
	}
	tmp := domain.EventGuest{
		Guest: domain.Guest{
			ID:        tempID(),
			FirstName: in.FirstName,
			LastName:  in.LastName,
			Email:     in.Email,
			Phone:     in.Phone,
		},
		EventID: gl.eventID,
		Group:   in.Group,
		Status:  in.Status,
		Dietary: in.Dietary,
		Notes:   in.Notes,
	}

	return reconcile.Submit(ctx, gl.deps.Syncer, reconcile.Mutation[domain.EventGuest]{
		Entity:   "guest",
		Action:   "add",
		Key:      "guest:" + tmp.ID.String(),
		Validate: func() error { return validateGuest(in) },
		Apply: func() func() {
			gl.mu.Lock()
			defer gl.mu.Unlock()
			gl.guests = append(append([]domain.EventGuest(nil), gl.guests...), tmp)
			return func() { gl.remove(tmp.ID) }
		},
		Dispatch: func(ctx context.Context) (domain.EventGuest, error) {
			return gl.api.AddGuest(ctx, in)
		},
		Confirm: func(server domain.EventGuest) {
			gl.merge(tmp.ID, server)
		},
		SuccessMessage: "Guest added successfully",
		FailureMessage: "Failed to add guest",
	})
}

// Update changes the guest's participation in the event.
func (gl *GuestList) Update(ctx context.Context, id domain.ID, changes domain.EventGuestChanges) (*reconcile.Ticket, error) {
	if _, ok := gl.guest(id); !ok {
		return nil, fmt.Errorf("%w: guest %s", ErrNotFound, id)
	}

	return reconcile.Submit(ctx, gl.deps.Syncer, reconcile.Mutation[domain.EventGuest]{
		Entity: "guest",
		Action: "update",
		Key:    "guest:" + id.String(),
		Validate: func() error {
			if changes.Status != nil && !changes.Status.Valid() {
				return fmt.Errorf("Unknown status %q", *changes.Status)
			}
			if changes.Group != nil && !changes.Group.Valid() {
				return fmt.Errorf("Unknown group %q", *changes.Group)
			}
			return nil
		},
		Apply: func() func() {
			undo, ok := gl.edit(id, changes)
			if !ok {
				return nil
			}
			return func() { gl.edit(id, undo) }
		},
		Dispatch: func(ctx context.Context) (domain.EventGuest, error) {
			return gl.api.UpdateGuest(ctx, id, changes)
		},
		Confirm: func(server domain.EventGuest) {
			gl.merge(id, server)
		},
		SuccessMessage: "Guest updated successfully",
		FailureMessage: "Failed to update guest",
	}), nil
}

// Remove deletes the guest after the user confirms.
func (gl *GuestList) Remove(ctx context.Context, id domain.ID) (*reconcile.Ticket, error) {
	g, ok := gl.guest(id)
	if !ok {
		return nil, fmt.Errorf("%w: guest %s", ErrNotFound, id)
	}
	name := strings.TrimSpace(g.FirstName + " " + g.LastName)
	if err := gl.deps.confirm(ctx, deleteConfirmation("Guest", name)); err != nil {
		return nil, err
	}

	return reconcile.Submit(ctx, gl.deps.Syncer, reconcile.Mutation[noResult]{
		Entity: "guest",
		Action: "delete",
		Key:    "guest:" + id.String(),
		Apply: func() func() {
			removed, idx, ok := gl.remove(id)
			if !ok {
				return nil
			}
			return func() { gl.insert(removed, idx) }
		},
		Dispatch: func(ctx context.Context) (noResult, error) {
			return discard(gl.api.DeleteGuest(ctx, id))
		},
		SuccessMessage: "Guest removed",
		FailureMessage: "Failed to delete guest",
	}), nil
}

func (gl *GuestList) guest(id domain.ID) (domain.EventGuest, bool) {
	gl.mu.RLock()
	defer gl.mu.RUnlock()
	for _, g := range gl.guests {
		if g.Identity() == id {
			return g, true
		}
	}
	return domain.EventGuest{}, false
}

func (gl *GuestList) index(id domain.ID) int {
	for i, g := range gl.guests {
		if g.Identity() == id {
			return i
		}
	}
	return -1
}

func (gl *GuestList) remove(id domain.ID) (domain.EventGuest, int, bool) {
	gl.mu.Lock()
	defer gl.mu.Unlock()
	i := gl.index(id)
	if i < 0 {
		return domain.EventGuest{}, -1, false
	}
	g := gl.guests[i]
	out := make([]domain.EventGuest, 0, len(gl.guests)-1)
	out = append(out, gl.guests[:i]...)
	gl.guests = append(out, gl.guests[i+1:]...)
	return g, i, true
}

func (gl *GuestList) insert(g domain.EventGuest, idx int) {
	gl.mu.Lock()
	defer gl.mu.Unlock()
	if idx < 0 || idx > len(gl.guests) {
		idx = len(gl.guests)
	}
	out := make([]domain.EventGuest, 0, len(gl.guests)+1)
	out = append(out, gl.guests[:idx]...)
	out = append(out, g)
	gl.guests = append(out, gl.guests[idx:]...)
}

func (gl *GuestList) edit(id domain.ID, changes domain.EventGuestChanges) (domain.EventGuestChanges, bool) {
	gl.mu.Lock()
	defer gl.mu.Unlock()
	i := gl.index(id)
	if i < 0 {
		return domain.EventGuestChanges{}, false
	}
	out := append([]domain.EventGuest(nil), gl.guests...)
	undo := changes.Apply(&out[i])
	gl.guests = out
	return undo, true
}

// merge folds a server answer into the entry id. Empty server fields keep
// the local value: some endpoints answer with the participation only.
func (gl *GuestList) merge(id domain.ID, server domain.EventGuest) {
	gl.mu.Lock()
	defer gl.mu.Unlock()
	i := gl.index(id)
	if i < 0 {
		return
	}
	out := append([]domain.EventGuest(nil), gl.guests...)
	g := &out[i]
	setIf(&g.ID, server.Identity())
	setIf(&g.GuestID, server.GuestID)
	setIf(&g.FirstName, server.FirstName)
	setIf(&g.LastName, server.LastName)
	setIf(&g.Email, server.Email)
	setIf(&g.Phone, server.Phone)
	setIf(&g.GuestEventID, server.GuestEventID)
	setIf(&g.Group, server.Group)
	setIf(&g.Status, server.Status)
	setIf(&g.Dietary, server.Dietary)
	setIf(&g.Notes, server.Notes)
	gl.guests = out
}

func setIf[S ~string](dst *S, v S) {
	if v != "" {
		*dst = v
	}
}

func validateGuest(in domain.GuestInput) error {
	switch {
	case in.FirstName == "":
		return errors.New("First name is required")
	case in.LastName == "":
		return errors.New("Last name is required")
	case in.Email == "":
		return errors.New("Email is required")
	}
	if addr, err := mail.ParseAddress(in.Email); err != nil || addr.Address != in.Email {
		return errors.New("Invalid email address")
	}
	if !in.Group.Valid() {
		return fmt.Errorf("Unknown group %q", in.Group)
	}
	if !in.Status.Valid() {
		return fmt.Errorf("Unknown status %q", in.Status)
	}
	return nil
}
