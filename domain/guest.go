package domain

type GuestStatus string

const (
	GuestConfirmed GuestStatus = "confirmed"
	GuestPending   GuestStatus = "pending"
	GuestDeclined  GuestStatus = "declined"
)

func (s GuestStatus) Valid() bool {
	return s == GuestConfirmed || s == GuestPending || s == GuestDeclined
}

type GuestGroup string

const (
	GroupVIP        GuestGroup = "vip"
	GroupFamily     GuestGroup = "family"
	GroupFriends    GuestGroup = "friends"
	GroupColleagues GuestGroup = "colleagues"
	GroupSpeaker    GuestGroup = "speaker"
	GroupSponsor    GuestGroup = "sponsor"
	GroupMedia      GuestGroup = "media"
	GroupAttendee   GuestGroup = "attendee"
	GroupNone       GuestGroup = "none"
)

func (g GuestGroup) Valid() bool {
	switch g {
	case GroupVIP, GroupFamily, GroupFriends, GroupColleagues, GroupSpeaker,
		GroupSponsor, GroupMedia, GroupAttendee, GroupNone:
		return true
	}
	return false
}

// Guest is a global contact record.
type Guest struct {
	ID        ID     `json:"_id"`
	GuestID   ID     `json:"guestId,omitempty"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
}

// Identity resolves the guest's identity: _id first, then guestId.
func (g Guest) Identity() ID { return ResolveID(g.ID, g.GuestID) }

// EventGuestRef is the participation entry embedded in an Event.
type EventGuestRef struct {
	GuestID ID          `json:"guestId"`
	Name    string      `json:"name"`
	Status  GuestStatus `json:"status"`
	Group   GuestGroup  `json:"group"`
	Dietary string      `json:"dietary,omitempty"`
	Notes   string      `json:"notes,omitempty"`
}

// EventGuest is a guest joined with its participation in one event. The
// identity-level fields come from Guest, the per-event fields always from
// the event's own reference.
type EventGuest struct {
	Guest
	GuestEventID ID          `json:"guestEventId,omitempty"`
	EventID      ID          `json:"eventId"`
	Group        GuestGroup  `json:"group"`
	Status       GuestStatus `json:"status"`
	Dietary      string      `json:"dietary,omitempty"`
	Notes        string      `json:"notes,omitempty"`
}

// GuestInput invites a new guest to an event.
type GuestInput struct {
	EventID   ID          `json:"eventId"`
	FirstName string      `json:"firstName"`
	LastName  string      `json:"lastName"`
	Email     string      `json:"email"`
	Phone     string      `json:"phone,omitempty"`
	Group     GuestGroup  `json:"group"`
	Status    GuestStatus `json:"status"`
	Dietary   string      `json:"dietary,omitempty"`
	Notes     string      `json:"notes,omitempty"`
}

// EventGuestChanges is a partial update of a guest's participation.
type EventGuestChanges struct {
	Status  *GuestStatus `json:"status,omitempty"`
	Group   *GuestGroup  `json:"group,omitempty"`
	Dietary *string      `json:"dietary,omitempty"`
	Notes   *string      `json:"notes,omitempty"`
}

// Apply writes the set fields into g and returns their previous values.
func (ch EventGuestChanges) Apply(g *EventGuest) EventGuestChanges {
	var prev EventGuestChanges
	if ch.Status != nil {
		prev.Status = Ptr(g.Status)
		g.Status = *ch.Status
	}
	if ch.Group != nil {
		prev.Group = Ptr(g.Group)
		g.Group = *ch.Group
	}
	if ch.Dietary != nil {
		prev.Dietary = Ptr(g.Dietary)
		g.Dietary = *ch.Dietary
	}
	if ch.Notes != nil {
		prev.Notes = Ptr(g.Notes)
		g.Notes = *ch.Notes
	}
	return prev
}
