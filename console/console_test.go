package console

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	"event-planner/apiclient"
	"event-planner/domain"
	"event-planner/notify"
	"event-planner/reconcile"
)

var errBoom = errors.New("boom")

// fakePlanner serves canned data and records the calls it receives. fail
// maps a method name to the error it returns.
type fakePlanner struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]error

	tasks    []domain.Task
	budgets  []domain.Budget // successive Budget answers; the last one repeats
	expenses []domain.Expense
	event    domain.Event
	guests   []domain.Guest
	feed     []domain.Notification
	calendar apiclient.CalendarItems
	query    apiclient.CalendarQuery
	options  []domain.EventOption
	events   []domain.Event
	team     []domain.TeamMember

	created domain.Task
}

func newFakePlanner() *fakePlanner {
	return &fakePlanner{calls: map[string]int{}, fail: map[string]error{}}
}

func (f *fakePlanner) hit(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
	return f.fail[name]
}

func (f *fakePlanner) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakePlanner) failWith(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[name] = err
}

func (f *fakePlanner) Tasks(context.Context, domain.ID) ([]domain.Task, error) {
	if err := f.hit("Tasks"); err != nil {
		return nil, err
	}
	return append([]domain.Task(nil), f.tasks...), nil
}

func (f *fakePlanner) CreateTask(_ context.Context, in domain.TaskInput) (domain.Task, error) {
	if err := f.hit("CreateTask"); err != nil {
		return domain.Task{}, err
	}
	out := f.created
	out.Title, out.Status, out.Priority = in.Title, in.Status, in.Priority
	return out, nil
}

func (f *fakePlanner) UpdateTask(_ context.Context, id domain.ID, ch domain.TaskChanges) (domain.Task, error) {
	if err := f.hit("UpdateTask"); err != nil {
		return domain.Task{}, err
	}
	return domain.Task{}, nil
}

func (f *fakePlanner) UpdateTaskStatus(_ context.Context, id domain.ID, s domain.TaskStatus) (domain.Task, error) {
	if err := f.hit("UpdateTaskStatus"); err != nil {
		return domain.Task{}, err
	}
	return domain.Task{}, nil
}

func (f *fakePlanner) DeleteTask(context.Context, domain.ID) error { return f.hit("DeleteTask") }

func (f *fakePlanner) Budget(context.Context, domain.ID) (domain.Budget, error) {
	n := f.count("Budget")
	if err := f.hit("Budget"); err != nil {
		return domain.Budget{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.budgets) == 0 {
		return domain.Budget{}, nil
	}
	return f.budgets[min(n, len(f.budgets)-1)].Clone(), nil
}

func (f *fakePlanner) CreateBudget(_ context.Context, in domain.BudgetInput) (domain.Budget, error) {
	if err := f.hit("CreateBudget"); err != nil {
		return domain.Budget{}, err
	}
	b := domain.Budget{ID: "b-new", EventID: in.EventID, TotalBudget: *in.TotalBudget, Currency: *in.Currency}
	f.mu.Lock()
	f.budgets = append(f.budgets, b)
	f.mu.Unlock()
	return b, nil
}

func (f *fakePlanner) UpdateBudget(context.Context, domain.ID, domain.BudgetInput) (domain.Budget, error) {
	return domain.Budget{}, f.hit("UpdateBudget")
}

func (f *fakePlanner) CreateCategory(_ context.Context, _ domain.ID, in domain.CategoryInput) (domain.Category, error) {
	if err := f.hit("CreateCategory"); err != nil {
		return domain.Category{}, err
	}
	return domain.Category{ID: "c-new", Name: in.Name, AllocatedAmount: in.AllocatedAmount, Color: in.Color, Icon: in.Icon}, nil
}

func (f *fakePlanner) UpdateCategory(context.Context, domain.ID, domain.ID, domain.CategoryChanges) (domain.Category, error) {
	return domain.Category{}, f.hit("UpdateCategory")
}

func (f *fakePlanner) DeleteCategory(context.Context, domain.ID, domain.ID) error {
	return f.hit("DeleteCategory")
}

func (f *fakePlanner) Expenses(context.Context, domain.ID, domain.ExpenseFilter) ([]domain.Expense, error) {
	if err := f.hit("Expenses"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Expense(nil), f.expenses...), nil
}

func (f *fakePlanner) CreateExpense(_ context.Context, _ domain.ID, e domain.Expense) (domain.Expense, error) {
	if err := f.hit("CreateExpense"); err != nil {
		return domain.Expense{}, err
	}
	e.ID = "x-new"
	f.mu.Lock()
	f.expenses = append(f.expenses, e)
	f.mu.Unlock()
	return e, nil
}

func (f *fakePlanner) UpdateExpense(context.Context, domain.ID, domain.ExpenseChanges) (domain.Expense, error) {
	return domain.Expense{}, f.hit("UpdateExpense")
}

func (f *fakePlanner) DeleteExpense(context.Context, domain.ID) error { return f.hit("DeleteExpense") }

func (f *fakePlanner) Event(context.Context, domain.ID) (domain.Event, error) {
	return f.event, f.hit("Event")
}

func (f *fakePlanner) Guests(context.Context) ([]domain.Guest, error) {
	return f.guests, f.hit("Guests")
}

func (f *fakePlanner) AddGuest(_ context.Context, in domain.GuestInput) (domain.EventGuest, error) {
	if err := f.hit("AddGuest"); err != nil {
		return domain.EventGuest{}, err
	}
	return domain.EventGuest{Guest: domain.Guest{ID: "g-new"}, Status: in.Status}, nil
}

func (f *fakePlanner) UpdateGuest(context.Context, domain.ID, domain.EventGuestChanges) (domain.EventGuest, error) {
	return domain.EventGuest{}, f.hit("UpdateGuest")
}

func (f *fakePlanner) DeleteGuest(context.Context, domain.ID) error { return f.hit("DeleteGuest") }

func (f *fakePlanner) Notifications(context.Context) ([]domain.Notification, error) {
	return append([]domain.Notification(nil), f.feed...), f.hit("Notifications")
}

func (f *fakePlanner) MarkNotificationRead(context.Context, domain.ID) error {
	return f.hit("MarkNotificationRead")
}

func (f *fakePlanner) Calendar(_ context.Context, q apiclient.CalendarQuery) (apiclient.CalendarItems, error) {
	f.mu.Lock()
	f.query = q
	f.mu.Unlock()
	return f.calendar, f.hit("Calendar")
}

func (f *fakePlanner) EventOptions(context.Context) ([]domain.EventOption, error) {
	return f.options, f.hit("EventOptions")
}

func (f *fakePlanner) Events(context.Context) ([]domain.Event, error) {
	if err := f.hit("Events"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Event(nil), f.events...), nil
}

func (f *fakePlanner) CreateEvent(_ context.Context, in domain.EventInput) (domain.Event, error) {
	if err := f.hit("CreateEvent"); err != nil {
		return domain.Event{}, err
	}
	ev := in.Event()
	ev.ID = "ev-new"
	ev.OrganizerID = "u1"
	return ev, nil
}

func (f *fakePlanner) UpdateEvent(_ context.Context, id domain.ID, _ domain.EventChanges) (domain.Event, error) {
	if err := f.hit("UpdateEvent"); err != nil {
		return domain.Event{}, err
	}
	return domain.Event{ID: id, Stats: &domain.EventStats{TotalGuests: 12}}, nil
}

func (f *fakePlanner) EventTeam(context.Context, domain.ID) ([]domain.TeamMember, error) {
	return f.team, f.hit("EventTeam")
}

func (f *fakePlanner) DashboardOverview(context.Context) (domain.DashboardOverview, error) {
	return domain.DashboardOverview{TotalEvents: 3, TotalGuests: 40, TotalTasks: 10, CompletedTasks: 4}, f.hit("DashboardOverview")
}

func (f *fakePlanner) RecentEvents(context.Context) ([]domain.RecentEvent, error) {
	return nil, f.hit("RecentEvents")
}

func (f *fakePlanner) DashboardTasks(context.Context) ([]domain.DashboardTask, error) {
	return nil, f.hit("DashboardTasks")
}

func (f *fakePlanner) EventStats(context.Context, domain.ID) (domain.EventStats, error) {
	return domain.EventStats{TotalGuests: 2, Confirmed: 1, Pending: 1}, f.hit("EventStats")
}

func (f *fakePlanner) EventTimeline(context.Context, domain.ID) ([]domain.TimelineItem, error) {
	return []domain.TimelineItem{{Time: "09:00", Title: "Doors open"}}, f.hit("EventTimeline")
}

func (f *fakePlanner) BudgetSummary(context.Context, domain.ID) (domain.BudgetSummary, error) {
	return domain.BudgetSummary{Planned: 1000, Actual: 1100}, f.hit("BudgetSummary")
}

var _ Planner = (*fakePlanner)(nil)

type toastRecorder struct {
	mu     sync.Mutex
	toasts []string
	errs   int
}

func (r *toastRecorder) Show(message string, severity notify.Severity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toasts = append(r.toasts, message)
	if severity == notify.Error {
		r.errs++
	}
}

func (r *toastRecorder) errorCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errs
}

type fixedPrompt struct {
	answer bool
	asked  []notify.Confirmation
}

func (p *fixedPrompt) Confirm(_ context.Context, c notify.Confirmation) (bool, error) {
	p.asked = append(p.asked, c)
	return p.answer, nil
}

func newDeps(t *testing.T, prompt notify.Prompt) (Deps, *toastRecorder) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	d := reconcile.NewDispatcher(reconcile.DispatcherConfig{Workers: 2, Buffer: 8, HandoffTimeout: 10 * time.Millisecond}, logger)
	t.Cleanup(d.Close)
	sink := &toastRecorder{}
	return Deps{Syncer: reconcile.NewSyncer(d, sink, logger), Prompt: prompt, Logger: logger}, sink
}

func settle(t *testing.T, tk *reconcile.Ticket) reconcile.State {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	select {
	case <-tk.Done():
	case <-ctx.Done():
		t.Fatal("ticket did not settle")
	}
	return tk.State()
}
