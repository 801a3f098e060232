package console

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"event-planner/aggregate"
	"event-planner/domain"
)

// Dashboard is the landing view and the per-event overview.
type Dashboard struct {
	api DashboardAPI
}

func NewDashboard(api DashboardAPI) *Dashboard {
	return &Dashboard{api: api}
}

func (d *Dashboard) Stats(ctx context.Context) (domain.DashboardStats, error) {
	o, err := d.api.DashboardOverview(ctx)
	if err != nil {
		return domain.DashboardStats{}, fmt.Errorf("load dashboard overview: %w", err)
	}
	return aggregate.DashboardStatsFrom(o), nil
}

func (d *Dashboard) RecentEvents(ctx context.Context) ([]domain.RecentEvent, error) {
	evs, err := d.api.RecentEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("load recent events: %w", err)
	}
	return evs, nil
}

func (d *Dashboard) Tasks(ctx context.Context) ([]domain.DashboardTask, error) {
	tasks, err := d.api.DashboardTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("load dashboard tasks: %w", err)
	}
	return tasks, nil
}

// EventOverview is the overview page of one event.
type EventOverview struct {
	Event    domain.Event          `json:"event"`
	Guests   domain.EventStats     `json:"guests"`
	Budget   domain.BudgetSummary  `json:"budget"`
	Health   aggregate.Health      `json:"health"`
	Timeline []domain.TimelineItem `json:"timeline"`
}

// Overview loads the event, its guest stats, budget health and timeline in
// parallel. Any failed call fails the overview.
func (d *Dashboard) Overview(ctx context.Context, eventID domain.ID) (EventOverview, error) {
	var out EventOverview
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		out.Event, err = d.api.Event(gctx, eventID)
		return err
	})
	g.Go(func() (err error) {
		out.Guests, err = d.api.EventStats(gctx, eventID)
		return err
	})
	g.Go(func() (err error) {
		out.Budget, err = d.api.BudgetSummary(gctx, eventID)
		return err
	})
	g.Go(func() (err error) {
		out.Timeline, err = d.api.EventTimeline(gctx, eventID)
		return err
	})
	if err := g.Wait(); err != nil {
		return EventOverview{}, fmt.Errorf("load overview of %s: %w", eventID, err)
	}
	out.Health = aggregate.BudgetHealth(out.Budget)
	return out, nil
}
