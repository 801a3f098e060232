package aggregate

import (
	"strings"

	"event-planner/domain"
)

// JoinGuests resolves every guest reference embedded in ev against the
// global guest list. Identity-level fields (name, email, phone) come from the
// matched Guest; status, group, dietary and notes always come from the
// event's reference. A reference without a backing Guest becomes a
// placeholder built from its embedded name; one with neither is dropped.
func JoinGuests(ev domain.Event, all []domain.Guest) []domain.EventGuest {
	index := make(map[domain.ID]domain.Guest, len(all)*2)
	for _, g := range all {
		if g.ID != "" {
			index[g.ID] = g
		}
		if g.GuestID != "" {
			if _, taken := index[g.GuestID]; !taken {
				index[g.GuestID] = g
			}
		}
	}

	out := make([]domain.EventGuest, 0, len(ev.Guests))
	for _, ref := range ev.Guests {
		g, ok := index[ref.GuestID]
		if !ok {
			g, ok = placeholderGuest(ref)
			if !ok {
				continue
			}
		}
		out = append(out, domain.EventGuest{
			Guest: domain.Guest{
				ID:        domain.ResolveID(g.ID, g.GuestID, ref.GuestID),
				GuestID:   domain.ResolveID(g.GuestID, ref.GuestID),
				FirstName: g.FirstName,
				LastName:  g.LastName,
				Email:     g.Email,
				Phone:     g.Phone,
			},
			EventID: ev.ID,
			Group:   ref.Group,
			Status:  ref.Status,
			Dietary: ref.Dietary,
			Notes:   ref.Notes,
		})
	}
	return out
}

func placeholderGuest(ref domain.EventGuestRef) (domain.Guest, bool) {
	name := strings.TrimSpace(ref.Name)
	if name == "" {
		return domain.Guest{}, false
	}
	first, last, _ := strings.Cut(name, " ")
	return domain.Guest{
		GuestID:   ref.GuestID,
		FirstName: first,
		LastName:  strings.TrimSpace(last),
	}, true
}

// GuestStats counts guests per participation status.
func GuestStats(guests []domain.EventGuest) domain.EventStats {
	st := domain.EventStats{TotalGuests: len(guests)}
	for _, g := range guests {
		switch g.Status {
		case domain.GuestConfirmed:
			st.Confirmed++
		case domain.GuestPending:
			st.Pending++
		case domain.GuestDeclined:
			st.Declined++
		}
	}
	return st
}
