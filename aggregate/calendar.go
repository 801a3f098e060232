package aggregate

import (
	"time"

	"event-planner/domain"
)

// gridDays is six weeks of seven days.
const gridDays = 42

// MonthGrid lays out the month view: the days of month padded with the
// tail of the previous month (weeks start on Sunday) and the head of the
// next one. Items land on every day between their start and end dates.
func MonthGrid(year int, month time.Month, today time.Time, items []domain.CalendarItem) []domain.CalendarDay {
	loc := today.Location()
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	start := first.AddDate(0, 0, -int(first.Weekday()))

	byDay := bucketItems(items, loc)
	days := make([]domain.CalendarDay, 0, gridDays)
	for i := 0; i < gridDays; i++ {
		d := start.AddDate(0, 0, i)
		days = append(days, domain.CalendarDay{
			Date:           d,
			IsCurrentMonth: d.Month() == month && d.Year() == year,
			IsToday:        sameDate(d, today),
			Items:          append([]domain.CalendarItem{}, byDay[dayKey(d)]...),
		})
	}
	return days
}

// MergeCalendarItems joins the event and task lists of a calendar response.
func MergeCalendarItems(events, tasks []domain.CalendarItem) []domain.CalendarItem {
	out := make([]domain.CalendarItem, 0, len(events)+len(tasks))
	out = append(out, events...)
	return append(out, tasks...)
}

func bucketItems(items []domain.CalendarItem, loc *time.Location) map[string][]domain.CalendarItem {
	out := make(map[string][]domain.CalendarItem)
	for _, it := range items {
		start := parseDate(it.StartDate)
		if start.IsZero() {
			continue
		}
		start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
		end := start
		if e := parseDate(it.EndDate); !e.IsZero() {
			e = time.Date(e.Year(), e.Month(), e.Day(), 0, 0, 0, 0, loc)
			if e.After(start) {
				end = e
			}
		}
		for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
			out[dayKey(d)] = append(out[dayKey(d)], it)
		}
	}
	return out
}

func dayKey(t time.Time) string { return t.Format("2006-01-02") }

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
