package console

import (
	"context"
	"fmt"
	"sync"

	"event-planner/aggregate"
	"event-planner/domain"
	"event-planner/reconcile"
)

// Inbox is the user's notification feed.
type Inbox struct {
	api  FeedAPI
	deps Deps

	mu    sync.RWMutex
	items []domain.Notification
}

func NewInbox(api FeedAPI, deps Deps) *Inbox {
	return &Inbox{api: api, deps: deps}
}

func (in *Inbox) Load(ctx context.Context) error {
	ns, err := in.api.Notifications(ctx)
	if err != nil {
		return fmt.Errorf("load notifications: %w", err)
	}
	in.mu.Lock()
	in.items = ns
	in.mu.Unlock()
	return nil
}

// Items returns the feed, most urgent first.
func (in *Inbox) Items() []domain.Notification {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return aggregate.SortNotifications(in.items)
}

func (in *Inbox) UnreadCount() int {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return aggregate.UnreadCount(in.items)
}

func (in *Inbox) MarkRead(ctx context.Context, id domain.ID) (*reconcile.Ticket, error) {
	n, ok := in.notification(id)
	if !ok {
		return nil, fmt.Errorf("%w: notification %s", ErrNotFound, id)
	}
	if n.Read {
		return reconcile.Settled(reconcile.StateConfirmed, nil), nil
	}
	return in.submitRead(ctx, "read", "notification:"+id.String(), []domain.ID{id}, "Failed to mark notification as read"), nil
}

// MarkAllRead flags every unread notification. One failed call reverts the
// whole batch.
func (in *Inbox) MarkAllRead(ctx context.Context) *reconcile.Ticket {
	in.mu.RLock()
	var ids []domain.ID
	for _, n := range in.items {
		if !n.Read {
			ids = append(ids, n.ID)
		}
	}
	in.mu.RUnlock()
	if len(ids) == 0 {
		return reconcile.Settled(reconcile.StateConfirmed, nil)
	}
	return in.submitRead(ctx, "read-all", "notifications", ids, "Failed to mark notifications as read")
}

func (in *Inbox) submitRead(ctx context.Context, action, key string, ids []domain.ID, failure string) *reconcile.Ticket {
	return reconcile.Submit(ctx, in.deps.Syncer, reconcile.Mutation[noResult]{
		Entity: "notification",
		Action: action,
		Key:    key,
		Apply: func() func() {
			flipped := in.setRead(ids, true)
			return func() { in.setRead(flipped, false) }
		},
		Dispatch: func(ctx context.Context) (noResult, error) {
			for _, id := range ids {
				if err := in.api.MarkNotificationRead(ctx, id); err != nil {
					return noResult{}, err
				}
			}
			return noResult{}, nil
		},
		FailureMessage: failure,
	})
}

// setRead flags ids and returns the ones whose state actually changed.
func (in *Inbox) setRead(ids []domain.ID, read bool) []domain.ID {
	want := make(map[domain.ID]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	out := append([]domain.Notification(nil), in.items...)
	var changed []domain.ID
	for i := range out {
		if _, ok := want[out[i].ID]; ok && out[i].Read != read {
			out[i].Read = read
			changed = append(changed, out[i].ID)
		}
	}
	in.items = out
	return changed
}

func (in *Inbox) notification(id domain.ID) (domain.Notification, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	for _, n := range in.items {
		if n.ID == id {
			return n, true
		}
	}
	return domain.Notification{}, false
}
