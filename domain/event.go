package domain

import "time"

// Event is a planned event together with its embedded guest list.
type Event struct {
	ID          ID              `json:"_id"`
	Title       string          `json:"title"`
	Type        string          `json:"type"`
	Status      string          `json:"status"`
	StartDate   string          `json:"startDate"`
	StartTime   string          `json:"startTime,omitempty"`
	EndDate     string          `json:"endDate,omitempty"`
	EndTime     string          `json:"endTime,omitempty"`
	Location    string          `json:"location"`
	Description string          `json:"description,omitempty"`
	OrganizerID ID              `json:"organizerId"`
	Capacity    int             `json:"capacity,omitempty"`
	Stats       *EventStats     `json:"stats,omitempty"`
	Guests      []EventGuestRef `json:"guests,omitempty"`
}

const (
	EventConference = "conference"
	EventWedding    = "wedding"
	EventParty      = "party"
	EventMeeting    = "meeting"
	EventOther      = "other"

	EventPlanning  = "planning"
	EventActive    = "active"
	EventDraft     = "draft"
	EventCompleted = "completed"
)

func ValidEventType(t string) bool {
	switch t {
	case EventConference, EventWedding, EventParty, EventMeeting, EventOther:
		return true
	}
	return false
}

func ValidEventStatus(s string) bool {
	switch s {
	case EventPlanning, EventActive, EventDraft, EventCompleted:
		return true
	}
	return false
}

// EventInput carries the fields of the event form.
type EventInput struct {
	Title       string `json:"title"`
	Type        string `json:"type"`
	Status      string `json:"status"`
	Description string `json:"description,omitempty"`
	StartDate   string `json:"startDate"`
	StartTime   string `json:"startTime,omitempty"`
	EndDate     string `json:"endDate,omitempty"`
	EndTime     string `json:"endTime,omitempty"`
	Location    string `json:"location"`
	Capacity    int    `json:"capacity,omitempty"`
}

// Event returns the event the input describes, without an identity.
func (in EventInput) Event() Event {
	return Event{
		Title:       in.Title,
		Type:        in.Type,
		Status:      in.Status,
		Description: in.Description,
		StartDate:   in.StartDate,
		StartTime:   in.StartTime,
		EndDate:     in.EndDate,
		EndTime:     in.EndTime,
		Location:    in.Location,
		Capacity:    in.Capacity,
	}
}

// EventChanges carries a partial event update. Nil fields are left untouched.
type EventChanges struct {
	Title       *string `json:"title,omitempty"`
	Type        *string `json:"type,omitempty"`
	Status      *string `json:"status,omitempty"`
	Description *string `json:"description,omitempty"`
	StartDate   *string `json:"startDate,omitempty"`
	StartTime   *string `json:"startTime,omitempty"`
	EndDate     *string `json:"endDate,omitempty"`
	EndTime     *string `json:"endTime,omitempty"`
	Location    *string `json:"location,omitempty"`
	Capacity    *int    `json:"capacity,omitempty"`
}

func (c EventChanges) Empty() bool {
	return c == (EventChanges{})
}

// Apply writes the set fields into ev and returns their previous values.
func (c EventChanges) Apply(ev *Event) EventChanges {
	var prev EventChanges
	swap := func(dst *string, v *string) *string {
		if v == nil {
			return nil
		}
		old := *dst
		*dst = *v
		return &old
	}
	prev.Title = swap(&ev.Title, c.Title)
	prev.Type = swap(&ev.Type, c.Type)
	prev.Status = swap(&ev.Status, c.Status)
	prev.Description = swap(&ev.Description, c.Description)
	prev.StartDate = swap(&ev.StartDate, c.StartDate)
	prev.StartTime = swap(&ev.StartTime, c.StartTime)
	prev.EndDate = swap(&ev.EndDate, c.EndDate)
	prev.EndTime = swap(&ev.EndTime, c.EndTime)
	prev.Location = swap(&ev.Location, c.Location)
	if c.Capacity != nil {
		prev.Capacity = Ptr(ev.Capacity)
		ev.Capacity = *c.Capacity
	}
	return prev
}

// TeamMember is a person working on an event.
type TeamMember struct {
	ID     ID     `json:"id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	Email  string `json:"email,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

type EventStats struct {
	TotalGuests int `json:"totalGuests"`
	Confirmed   int `json:"confirmed"`
	Pending     int `json:"pending"`
	Declined    int `json:"declined"`
}

type TimelineItem struct {
	Time     string `json:"time"`
	Title    string `json:"title"`
	Location string `json:"location"`
}

// EventOption is an entry of the event picker.
type EventOption struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityWarning  Severity = "WARNING"
	SeverityInfo     Severity = "INFO"
)

// Rank orders severities, most urgent first. Unknown severities sort last.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityWarning:
		return 1
	case SeverityInfo:
		return 2
	}
	return 99
}

// Notification is an entry of the user's notification feed.
type Notification struct {
	ID          ID         `json:"_id"`
	EventID     ID         `json:"eventId,omitempty"`
	UserID      ID         `json:"userId"`
	Code        string     `json:"code"`
	Severity    Severity   `json:"severity"`
	TriggerType string     `json:"triggerType"`
	Message     string     `json:"message"`
	Read        bool       `json:"read"`
	CreatedAt   time.Time  `json:"createdAt"`
	ClosedAt    *time.Time `json:"closedAt,omitempty"`
}

// CalendarItem is an event or task placed on the calendar.
type CalendarItem struct {
	ID        ID     `json:"id"`
	Title     string `json:"title"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate,omitempty"`
	Type      string `json:"type"`
	Color     string `json:"color,omitempty"`
	Status    string `json:"status,omitempty"`
	EventID   ID     `json:"eventId,omitempty"`
}

type CalendarDay struct {
	Date           time.Time      `json:"date"`
	IsCurrentMonth bool           `json:"isCurrentMonth"`
	IsToday        bool           `json:"isToday"`
	Items          []CalendarItem `json:"items"`
}

// DashboardOverview is the raw overview returned by the API.
type DashboardOverview struct {
	TotalEvents    int `json:"totalEvents"`
	TotalGuests    int `json:"totalGuests"`
	TotalTasks     int `json:"totalTasks"`
	CompletedTasks int `json:"completedTasks"`
}

// DashboardStats is the overview as shown on the dashboard cards.
type DashboardStats struct {
	UpcomingEvents int `json:"upcomingEvents"`
	TotalGuests    int `json:"totalGuests"`
	PendingTasks   int `json:"pendingTasks"`
	CompletedTasks int `json:"completedTasks"`
}

type RecentEvent struct {
	ID       ID     `json:"id"`
	Title    string `json:"title"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Location string `json:"location"`
	Status   string `json:"status"`
	Month    string `json:"month"`
	Day      string `json:"day"`
}

type DashboardTask struct {
	ID        ID       `json:"id"`
	Title     string   `json:"title"`
	Priority  Priority `json:"priority"`
	Completed bool     `json:"completed"`
}
