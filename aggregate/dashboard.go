package aggregate

import "event-planner/domain"

// DashboardStatsFrom maps the API overview to the dashboard cards.
func DashboardStatsFrom(o domain.DashboardOverview) domain.DashboardStats {
	return domain.DashboardStats{
		UpcomingEvents: o.TotalEvents,
		TotalGuests:    o.TotalGuests,
		PendingTasks:   max(o.TotalTasks-o.CompletedTasks, 0),
		CompletedTasks: o.CompletedTasks,
	}
}
