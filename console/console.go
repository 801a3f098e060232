// Package console holds the per-session view controllers of the event
// planning console. Controllers keep their entity lists in memory, mutate
// them optimistically through the reconcile policy and expose snapshots.
package console

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"event-planner/apiclient"
	"event-planner/domain"
	"event-planner/notify"
	"event-planner/reconcile"
)

var (
	ErrNoBudget  = errors.New("event has no budget")
	ErrNotFound  = errors.New("not found")
	ErrCancelled = errors.New("cancelled by user")
)

type TaskAPI interface {
	Tasks(ctx context.Context, eventID domain.ID) ([]domain.Task, error)
	CreateTask(ctx context.Context, in domain.TaskInput) (domain.Task, error)
	UpdateTask(ctx context.Context, id domain.ID, changes domain.TaskChanges) (domain.Task, error)
	UpdateTaskStatus(ctx context.Context, id domain.ID, status domain.TaskStatus) (domain.Task, error)
	DeleteTask(ctx context.Context, id domain.ID) error
}

type BudgetAPI interface {
	Budget(ctx context.Context, eventID domain.ID) (domain.Budget, error)
	CreateBudget(ctx context.Context, in domain.BudgetInput) (domain.Budget, error)
	UpdateBudget(ctx context.Context, eventID domain.ID, in domain.BudgetInput) (domain.Budget, error)
	CreateCategory(ctx context.Context, budgetID domain.ID, in domain.CategoryInput) (domain.Category, error)
	UpdateCategory(ctx context.Context, budgetID, categoryID domain.ID, changes domain.CategoryChanges) (domain.Category, error)
	DeleteCategory(ctx context.Context, budgetID, categoryID domain.ID) error
	Expenses(ctx context.Context, eventID domain.ID, f domain.ExpenseFilter) ([]domain.Expense, error)
	CreateExpense(ctx context.Context, eventID domain.ID, e domain.Expense) (domain.Expense, error)
	UpdateExpense(ctx context.Context, id domain.ID, changes domain.ExpenseChanges) (domain.Expense, error)
	DeleteExpense(ctx context.Context, id domain.ID) error
}

type GuestAPI interface {
	Event(ctx context.Context, id domain.ID) (domain.Event, error)
	Guests(ctx context.Context) ([]domain.Guest, error)
	AddGuest(ctx context.Context, in domain.GuestInput) (domain.EventGuest, error)
	UpdateGuest(ctx context.Context, id domain.ID, changes domain.EventGuestChanges) (domain.EventGuest, error)
	DeleteGuest(ctx context.Context, id domain.ID) error
}

type FeedAPI interface {
	Notifications(ctx context.Context) ([]domain.Notification, error)
	MarkNotificationRead(ctx context.Context, id domain.ID) error
}

type CalendarAPI interface {
	Calendar(ctx context.Context, q apiclient.CalendarQuery) (apiclient.CalendarItems, error)
	EventOptions(ctx context.Context) ([]domain.EventOption, error)
}

type EventAPI interface {
	Events(ctx context.Context) ([]domain.Event, error)
	CreateEvent(ctx context.Context, in domain.EventInput) (domain.Event, error)
	UpdateEvent(ctx context.Context, id domain.ID, changes domain.EventChanges) (domain.Event, error)
	EventTeam(ctx context.Context, id domain.ID) ([]domain.TeamMember, error)
}

type DashboardAPI interface {
	DashboardOverview(ctx context.Context) (domain.DashboardOverview, error)
	RecentEvents(ctx context.Context) ([]domain.RecentEvent, error)
	DashboardTasks(ctx context.Context) ([]domain.DashboardTask, error)
	Event(ctx context.Context, id domain.ID) (domain.Event, error)
	EventStats(ctx context.Context, id domain.ID) (domain.EventStats, error)
	EventTimeline(ctx context.Context, id domain.ID) ([]domain.TimelineItem, error)
	BudgetSummary(ctx context.Context, eventID domain.ID) (domain.BudgetSummary, error)
}

// Planner is everything the console asks of the planning API.
// *apiclient.Service implements it.
type Planner interface {
	TaskAPI
	BudgetAPI
	GuestAPI
	FeedAPI
	CalendarAPI
	EventAPI
	DashboardAPI
}

// Deps are the collaborators shared by every controller of a session.
type Deps struct {
	Syncer *reconcile.Syncer
	Prompt notify.Prompt
	Logger *log.Logger
}

func (d Deps) confirm(ctx context.Context, c notify.Confirmation) error {
	if d.Prompt == nil {
		return nil
	}
	ok, err := d.Prompt.Confirm(ctx, c)
	if err != nil {
		return err
	}
	if !ok {
		return ErrCancelled
	}
	return nil
}

func tempID() domain.ID {
	return domain.ID("tmp-" + uuid.NewString())
}

// IsTemp reports whether id was issued locally for an unconfirmed create.
func IsTemp(id domain.ID) bool {
	return strings.HasPrefix(id.String(), "tmp-")
}

func deleteConfirmation(kind, name string) notify.Confirmation {
	return notify.Confirmation{
		Title:   "Delete " + kind,
		Message: "Are you sure you want to delete \"" + name + "\"? This action cannot be undone.",
		Confirm: "Delete",
		Cancel:  "Cancel",
	}
}

type noResult struct{}

// discard adapts a delete call to the reconcile dispatch signature.
func discard(err error) (noResult, error) { return noResult{}, err }
