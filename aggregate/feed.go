package aggregate

import (
	"sort"

	"event-planner/domain"
)

// SortNotifications orders the feed CRITICAL, WARNING, INFO and, within a
// severity, newest first.
func SortNotifications(ns []domain.Notification) []domain.Notification {
	out := append([]domain.Notification(nil), ns...)
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := out[i].Severity.Rank(), out[j].Severity.Rank()
		if ri != rj {
			return ri < rj
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func UnreadCount(ns []domain.Notification) int {
	n := 0
	for _, x := range ns {
		if !x.Read {
			n++
		}
	}
	return n
}
