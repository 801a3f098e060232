package apiclient

import (
	"context"
	"fmt"
	"net/url"

	"event-planner/domain"
)

// Service maps the console's operations onto the planning API's paths.
type Service struct {
	remote Remote
}

func NewService(r Remote) *Service {
	return &Service{remote: r}
}

func esc(id domain.ID) string { return url.PathEscape(id.String()) }

// Tasks

func (s *Service) Tasks(ctx context.Context, eventID domain.ID) ([]domain.Task, error) {
	resp, err := s.remote.Get(ctx, "/tasks?eventId="+url.QueryEscape(eventID.String()))
	if err != nil {
		return nil, err
	}
	return decodeMany[domain.Task, wireTask](resp)
}

func (s *Service) CreateTask(ctx context.Context, in domain.TaskInput) (domain.Task, error) {
	resp, err := s.remote.Post(ctx, "/tasks", in)
	if err != nil {
		return domain.Task{}, err
	}
	return decodeOne[domain.Task, wireTask](resp)
}

func (s *Service) UpdateTask(ctx context.Context, id domain.ID, changes domain.TaskChanges) (domain.Task, error) {
	resp, err := s.remote.Patch(ctx, "/tasks/"+esc(id), changes)
	if err != nil {
		return domain.Task{}, err
	}
	return decodeOne[domain.Task, wireTask](resp)
}

// UpdateTaskStatus persists a column move.
func (s *Service) UpdateTaskStatus(ctx context.Context, id domain.ID, status domain.TaskStatus) (domain.Task, error) {
	return s.UpdateTask(ctx, id, domain.TaskChanges{Status: &status})
}

func (s *Service) DeleteTask(ctx context.Context, id domain.ID) error {
	_, err := s.remote.Delete(ctx, "/tasks/"+esc(id))
	return err
}

// Budget

// Budget returns the event's budget. An event without one yields the empty
// placeholder budget and no error.
func (s *Service) Budget(ctx context.Context, eventID domain.ID) (domain.Budget, error) {
	resp, err := s.remote.Get(ctx, "/budget/"+esc(eventID))
	if IsNotFound(err) {
		return domain.Budget{EventID: eventID}, nil
	}
	if err != nil {
		return domain.Budget{}, err
	}
	b, err := decodeOne[domain.Budget, wireBudget](resp)
	if err != nil {
		return domain.Budget{}, err
	}
	if b.EventID == "" {
		b.EventID = eventID
	}
	return b, nil
}

func (s *Service) CreateBudget(ctx context.Context, in domain.BudgetInput) (domain.Budget, error) {
	resp, err := s.remote.Post(ctx, "/budget", in)
	if err != nil {
		return domain.Budget{}, err
	}
	return decodeOne[domain.Budget, wireBudget](resp)
}

func (s *Service) UpdateBudget(ctx context.Context, eventID domain.ID, in domain.BudgetInput) (domain.Budget, error) {
	resp, err := s.remote.Patch(ctx, "/budget/"+esc(eventID), in)
	if err != nil {
		return domain.Budget{}, err
	}
	return decodeOne[domain.Budget, wireBudget](resp)
}

func (s *Service) CreateCategory(ctx context.Context, budgetID domain.ID, in domain.CategoryInput) (domain.Category, error) {
	resp, err := s.remote.Post(ctx, fmt.Sprintf("/budget/%s/categories", esc(budgetID)), in)
	if err != nil {
		return domain.Category{}, err
	}
	return decodeOne[domain.Category, wireCategory](resp)
}

func (s *Service) UpdateCategory(ctx context.Context, budgetID, categoryID domain.ID, changes domain.CategoryChanges) (domain.Category, error) {
	resp, err := s.remote.Patch(ctx, fmt.Sprintf("/budget/%s/categories/%s", esc(budgetID), esc(categoryID)), changes)
	if err != nil {
		return domain.Category{}, err
	}
	return decodeOne[domain.Category, wireCategory](resp)
}

func (s *Service) DeleteCategory(ctx context.Context, budgetID, categoryID domain.ID) error {
	_, err := s.remote.Delete(ctx, fmt.Sprintf("/budget/%s/categories/%s", esc(budgetID), esc(categoryID)))
	return err
}

// Expenses

func (s *Service) Expenses(ctx context.Context, eventID domain.ID, f domain.ExpenseFilter) ([]domain.Expense, error) {
	path := fmt.Sprintf("/budget/%s/expenses", esc(eventID))
	q := url.Values{}
	if f.CategoryID != "" {
		q.Set("category", f.CategoryID.String())
	}
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	if f.SortBy != "" {
		q.Set("sortBy", f.SortBy)
	}
	if f.SortOrder != "" {
		q.Set("sortOrder", f.SortOrder)
	}
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	resp, err := s.remote.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	return decodeMany[domain.Expense, wireExpense](resp)
}

func (s *Service) CreateExpense(ctx context.Context, eventID domain.ID, e domain.Expense) (domain.Expense, error) {
	e.ID = ""
	resp, err := s.remote.Post(ctx, fmt.Sprintf("/budget/%s/expenses", esc(eventID)), e)
	if err != nil {
		return domain.Expense{}, err
	}
	return decodeOne[domain.Expense, wireExpense](resp)
}

func (s *Service) UpdateExpense(ctx context.Context, id domain.ID, changes domain.ExpenseChanges) (domain.Expense, error) {
	resp, err := s.remote.Patch(ctx, "/budget/expenses/"+esc(id), changes)
	if err != nil {
		return domain.Expense{}, err
	}
	return decodeOne[domain.Expense, wireExpense](resp)
}

func (s *Service) DeleteExpense(ctx context.Context, id domain.ID) error {
	_, err := s.remote.Delete(ctx, "/budget/expenses/"+esc(id))
	return err
}

// Events

func (s *Service) Events(ctx context.Context) ([]domain.Event, error) {
	resp, err := s.remote.Get(ctx, "/events")
	if err != nil {
		return nil, err
	}
	return decodeMany[domain.Event, wireEvent](resp)
}

func (s *Service) Event(ctx context.Context, id domain.ID) (domain.Event, error) {
	resp, err := s.remote.Get(ctx, "/events/"+esc(id))
	if err != nil {
		return domain.Event{}, err
	}
	return decodeOne[domain.Event, wireEvent](resp)
}

func (s *Service) CreateEvent(ctx context.Context, in domain.EventInput) (domain.Event, error) {
	resp, err := s.remote.Post(ctx, "/events", in)
	if err != nil {
		return domain.Event{}, err
	}
	return decodeOne[domain.Event, wireEvent](resp)
}

func (s *Service) UpdateEvent(ctx context.Context, id domain.ID, changes domain.EventChanges) (domain.Event, error) {
	resp, err := s.remote.Patch(ctx, "/events/"+esc(id), changes)
	if err != nil {
		return domain.Event{}, err
	}
	return decodeOne[domain.Event, wireEvent](resp)
}

// EventTeam lists the people working on the event.
func (s *Service) EventTeam(ctx context.Context, id domain.ID) ([]domain.TeamMember, error) {
	var team []domain.TeamMember
	resp, err := s.remote.Get(ctx, fmt.Sprintf("/events/%s/team", esc(id)))
	if err != nil {
		return nil, err
	}
	err = decodeData(resp, &team)
	return team, err
}

func (s *Service) EventStats(ctx context.Context, id domain.ID) (domain.EventStats, error) {
	var st domain.EventStats
	resp, err := s.remote.Get(ctx, fmt.Sprintf("/events/%s/stats", esc(id)))
	if err != nil {
		return st, err
	}
	err = decodeData(resp, &st)
	return st, err
}

func (s *Service) EventTimeline(ctx context.Context, id domain.ID) ([]domain.TimelineItem, error) {
	var items []domain.TimelineItem
	resp, err := s.remote.Get(ctx, fmt.Sprintf("/events/%s/timeline", esc(id)))
	if err != nil {
		return nil, err
	}
	err = decodeData(resp, &items)
	return items, err
}

func (s *Service) EventOptions(ctx context.Context) ([]domain.EventOption, error) {
	var opts []domain.EventOption
	resp, err := s.remote.Get(ctx, "/events/dropdown")
	if err != nil {
		return nil, err
	}
	err = decodeData(resp, &opts)
	return opts, err
}

func (s *Service) BudgetSummary(ctx context.Context, eventID domain.ID) (domain.BudgetSummary, error) {
	var sum domain.BudgetSummary
	resp, err := s.remote.Get(ctx, fmt.Sprintf("/events/%s/budget-summary", esc(eventID)))
	if err != nil {
		return sum, err
	}
	err = decodeData(resp, &sum)
	return sum, err
}

// Guests

func (s *Service) Guests(ctx context.Context) ([]domain.Guest, error) {
	resp, err := s.remote.Get(ctx, "/guests")
	if err != nil {
		return nil, err
	}
	return decodeMany[domain.Guest, wireGuest](resp)
}

func (s *Service) AddGuest(ctx context.Context, in domain.GuestInput) (domain.EventGuest, error) {
	resp, err := s.remote.Post(ctx, fmt.Sprintf("/events/%s/guests", esc(in.EventID)), in)
	if err != nil {
		return domain.EventGuest{}, err
	}
	return decodeOne[domain.EventGuest, wireEventGuest](resp)
}

func (s *Service) UpdateGuest(ctx context.Context, id domain.ID, changes domain.EventGuestChanges) (domain.EventGuest, error) {
	resp, err := s.remote.Patch(ctx, "/guests/"+esc(id), changes)
	if err != nil {
		return domain.EventGuest{}, err
	}
	return decodeOne[domain.EventGuest, wireEventGuest](resp)
}

func (s *Service) DeleteGuest(ctx context.Context, id domain.ID) error {
	_, err := s.remote.Delete(ctx, "/guests/"+esc(id))
	return err
}

// Dashboard

func (s *Service) DashboardOverview(ctx context.Context) (domain.DashboardOverview, error) {
	var o domain.DashboardOverview
	resp, err := s.remote.Get(ctx, "/dashboard/overview")
	if err != nil {
		return o, err
	}
	err = decodeData(resp, &o)
	return o, err
}

func (s *Service) RecentEvents(ctx context.Context) ([]domain.RecentEvent, error) {
	var out []domain.RecentEvent
	resp, err := s.remote.Get(ctx, "/dashboard/recent-events")
	if err != nil {
		return nil, err
	}
	err = decodeData(resp, &out)
	return out, err
}

func (s *Service) DashboardTasks(ctx context.Context) ([]domain.DashboardTask, error) {
	var out []domain.DashboardTask
	resp, err := s.remote.Get(ctx, "/dashboard/tasks")
	if err != nil {
		return nil, err
	}
	err = decodeData(resp, &out)
	return out, err
}

// CalendarQuery selects the calendar window.
type CalendarQuery struct {
	ViewType  string
	StartDate string
	EndDate   string
	EventID   domain.ID
}

// CalendarItems is the calendar payload: events and tasks listed apart.
type CalendarItems struct {
	Events []domain.CalendarItem `json:"events"`
	Tasks  []domain.CalendarItem `json:"tasks"`
}

func (s *Service) Calendar(ctx context.Context, q CalendarQuery) (CalendarItems, error) {
	v := url.Values{}
	v.Set("viewType", q.ViewType)
	v.Set("startDate", q.StartDate)
	v.Set("endDate", q.EndDate)
	if q.EventID != "" {
		v.Set("eventId", q.EventID.String())
	}
	var out CalendarItems
	resp, err := s.remote.Get(ctx, "/calendar?"+v.Encode())
	if err != nil {
		return out, err
	}
	err = decodeData(resp, &out)
	return out, err
}

// Notifications

func (s *Service) Notifications(ctx context.Context) ([]domain.Notification, error) {
	resp, err := s.remote.Get(ctx, "/notifications")
	if err != nil {
		return nil, err
	}
	return decodeMany[domain.Notification, wireNotification](resp)
}

func (s *Service) MarkNotificationRead(ctx context.Context, id domain.ID) error {
	_, err := s.remote.Post(ctx, fmt.Sprintf("/notifications/%s/read", esc(id)), nil)
	return err
}
