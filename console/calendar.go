package console

import (
	"context"
	"fmt"
	"sync"
	"time"

	"event-planner/aggregate"
	"event-planner/apiclient"
	"event-planner/domain"
)

const calendarDateLayout = "2006-01-02"

// Calendar is the month view across events and tasks.
type Calendar struct {
	api CalendarAPI
	now func() time.Time

	mu      sync.RWMutex
	options []domain.EventOption
}

func NewCalendar(api CalendarAPI) *Calendar {
	return &Calendar{api: api, now: time.Now}
}

// LoadEvents fetches the options of the event filter.
func (c *Calendar) LoadEvents(ctx context.Context) error {
	opts, err := c.api.EventOptions(ctx)
	if err != nil {
		return fmt.Errorf("load event options: %w", err)
	}
	c.mu.Lock()
	c.options = opts
	c.mu.Unlock()
	return nil
}

// Events returns the options of the event filter.
func (c *Calendar) Events() []domain.EventOption {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.EventOption(nil), c.options...)
}

// Month fetches the items visible on the month grid and lays them out. An
// empty eventID shows every event.
func (c *Calendar) Month(ctx context.Context, year int, month time.Month, eventID domain.ID) ([]domain.CalendarDay, error) {
	today := c.now()
	first := time.Date(year, month, 1, 0, 0, 0, 0, today.Location())
	start := first.AddDate(0, 0, -int(first.Weekday()))
	end := start.AddDate(0, 0, 41)

	items, err := c.api.Calendar(ctx, apiclient.CalendarQuery{
		ViewType:  "month",
		StartDate: start.Format(calendarDateLayout),
		EndDate:   end.Format(calendarDateLayout),
		EventID:   eventID,
	})
	if err != nil {
		return nil, fmt.Errorf("load calendar %d-%02d: %w", year, int(month), err)
	}
	return aggregate.MonthGrid(year, month, today, aggregate.MergeCalendarItems(items.Events, items.Tasks)), nil
}
