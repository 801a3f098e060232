package console

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"event-planner/aggregate"
	"event-planner/domain"
	"event-planner/reconcile"
)

const (
	defaultCategoryColor = "#3b82f6"
	defaultCategoryIcon  = "category"
	minAmount            = 0.01
)

// BudgetTracker is the budget and expense view of one event. Spend figures
// always come from the API; every expense or category change re-fetches
// the budget once the server accepts it.
type BudgetTracker struct {
	eventID domain.ID
	api     BudgetAPI
	deps    Deps
	group   singleflight.Group
	gen     atomic.Uint64 // bumped once the server accepts a mutation
	fetches atomic.Uint64

	mu       sync.RWMutex
	budget   domain.Budget
	expenses []domain.Expense
	loaded   uint64 // fetch sequence of the data held
}

func NewBudgetTracker(eventID domain.ID, api BudgetAPI, deps Deps) *BudgetTracker {
	return &BudgetTracker{eventID: eventID, api: api, deps: deps, budget: domain.Budget{EventID: eventID}}
}

func (bt *BudgetTracker) EventID() domain.ID { return bt.eventID }

// Load fetches the budget and the event's expenses. A fetch that finishes
// after a later-started one is dropped.
func (bt *BudgetTracker) Load(ctx context.Context) error {
	seq := bt.fetches.Add(1)
	b, err := bt.api.Budget(ctx, bt.eventID)
	if err != nil {
		return fmt.Errorf("load budget of %s: %w", bt.eventID, err)
	}
	expenses, err := bt.api.Expenses(ctx, bt.eventID, domain.ExpenseFilter{})
	if err != nil {
		return fmt.Errorf("load expenses of %s: %w", bt.eventID, err)
	}
	bt.mu.Lock()
	defer bt.mu.Unlock()
	if seq < bt.loaded {
		return nil
	}
	bt.budget = b
	bt.expenses = expenses
	bt.loaded = seq
	return nil
}

// Refresh re-fetches the aggregate. Concurrent refreshes share one fetch
// unless a mutation was accepted after that fetch began.
func (bt *BudgetTracker) Refresh(ctx context.Context) error {
	key := "refresh:" + strconv.FormatUint(bt.gen.Load(), 10)
	_, err, _ := bt.group.Do(key, func() (any, error) {
		return nil, bt.Load(ctx)
	})
	return err
}

func (bt *BudgetTracker) Budget() domain.Budget {
	bt.mu.RLock()
	defer bt.mu.RUnlock()
	return bt.budget.Clone()
}

// Summary derives the tracker header and category list.
func (bt *BudgetTracker) Summary() aggregate.Summary {
	bt.mu.RLock()
	defer bt.mu.RUnlock()
	return aggregate.Summarize(bt.budget)
}

// Expenses lists the expenses matching f.
func (bt *BudgetTracker) Expenses(f domain.ExpenseFilter) []domain.Expense {
	bt.mu.RLock()
	defer bt.mu.RUnlock()
	return aggregate.FilterExpenses(bt.expenses, f)
}

// refresh runs after the server accepted a mutation, so it must not join a
// fetch already in flight.
func (bt *BudgetTracker) refresh(ctx context.Context) error {
	bt.gen.Add(1)
	return bt.Refresh(ctx)
}

// CreateBudget starts a budget for the event.
func (bt *BudgetTracker) CreateBudget(ctx context.Context, total float64, currency string) (*reconcile.Ticket, error) {
	bt.mu.RLock()
	exists := !bt.budget.Empty()
	bt.mu.RUnlock()
	if exists {
		return bt.UpdateBudget(ctx, domain.BudgetInput{TotalBudget: &total, Currency: &currency})
	}
	if currency == "" {
		currency = "USD"
	}
	in := domain.BudgetInput{EventID: bt.eventID, TotalBudget: &total, Currency: &currency}

	return reconcile.Submit(ctx, bt.deps.Syncer, reconcile.Mutation[domain.Budget]{
		Entity:   "budget",
		Action:   "create",
		Key:      "budget:" + bt.eventID.String(),
		Validate: func() error { return validateTotal(total) },
		Apply:    bt.swapBudget(func(b *domain.Budget) { b.TotalBudget, b.Currency = total, currency }),
		Dispatch: func(ctx context.Context) (domain.Budget, error) {
			return bt.api.CreateBudget(ctx, in)
		},
		Confirm:        bt.confirmBudget,
		Refresh:        bt.refresh,
		SuccessMessage: "Budget created",
		FailureMessage: "Failed to create budget",
	}), nil
}

// UpdateBudget changes the total or currency of an existing budget.
func (bt *BudgetTracker) UpdateBudget(ctx context.Context, in domain.BudgetInput) (*reconcile.Ticket, error) {
	bt.mu.RLock()
	exists := !bt.budget.Empty()
	bt.mu.RUnlock()
	if !exists {
		return nil, ErrNoBudget
	}
	in.EventID = ""
	in.Categories = nil

	return reconcile.Submit(ctx, bt.deps.Syncer, reconcile.Mutation[domain.Budget]{
		Entity: "budget",
		Action: "update",
		Key:    "budget:" + bt.eventID.String(),
		Validate: func() error {
			if in.TotalBudget != nil {
				return validateTotal(*in.TotalBudget)
			}
			return nil
		},
		Apply: bt.swapBudget(func(b *domain.Budget) {
			if in.TotalBudget != nil {
				b.TotalBudget = *in.TotalBudget
			}
			if in.Currency != nil {
				b.Currency = *in.Currency
			}
		}),
		Dispatch: func(ctx context.Context) (domain.Budget, error) {
			return bt.api.UpdateBudget(ctx, bt.eventID, in)
		},
		Confirm:        bt.confirmBudget,
		Refresh:        bt.refresh,
		SuccessMessage: "Budget updated",
		FailureMessage: "Failed to update budget",
	}), nil
}

// swapBudget returns an Apply func editing the budget header. The revert
// puts back the total and currency only.
func (bt *BudgetTracker) swapBudget(edit func(*domain.Budget)) func() func() {
	return func() func() {
		bt.mu.Lock()
		defer bt.mu.Unlock()
		prevTotal, prevCurrency := bt.budget.TotalBudget, bt.budget.Currency
		edit(&bt.budget)
		return func() {
			bt.mu.Lock()
			defer bt.mu.Unlock()
			bt.budget.TotalBudget, bt.budget.Currency = prevTotal, prevCurrency
		}
	}
}

func (bt *BudgetTracker) confirmBudget(server domain.Budget) {
	if server.Empty() {
		return
	}
	bt.mu.Lock()
	defer bt.mu.Unlock()
	if server.Categories == nil {
		server.Categories = bt.budget.Categories
	}
	if server.EventID == "" {
		server.EventID = bt.eventID
	}
	bt.budget = server
}

// AddCategory appends a category under a temporary identity.
func (bt *BudgetTracker) AddCategory(ctx context.Context, in domain.CategoryInput) (*reconcile.Ticket, error) {
	budgetID, err := bt.budgetID()
	if err != nil {
		return nil, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Color == "" {
		in.Color = defaultCategoryColor
	}
	if in.Icon == "" {
		in.Icon = defaultCategoryIcon
	}
	tmp := domain.Category{ID: tempID(), Name: in.Name, AllocatedAmount: in.AllocatedAmount, Color: in.Color, Icon: in.Icon}

	return reconcile.Submit(ctx, bt.deps.Syncer, reconcile.Mutation[domain.Category]{
		Entity:   "category",
		Action:   "add",
		Key:      "category:" + tmp.ID.String(),
		Validate: func() error { return validateCategory(in.Name, in.AllocatedAmount) },
		Apply: func() func() {
			bt.mu.Lock()
			defer bt.mu.Unlock()
			bt.budget.Categories = append(bt.budget.Clone().Categories, tmp)
			return func() { bt.removeCategory(tmp.ID) }
		},
		Dispatch: func(ctx context.Context) (domain.Category, error) {
			return bt.api.CreateCategory(ctx, budgetID, in)
		},
		Confirm: func(server domain.Category) {
			bt.replaceCategory(tmp.ID, server)
		},
		Refresh:        bt.refresh,
		SuccessMessage: "Category added successfully",
		FailureMessage: "Failed to add category",
	}), nil
}

func (bt *BudgetTracker) UpdateCategory(ctx context.Context, id domain.ID, changes domain.CategoryChanges) (*reconcile.Ticket, error) {
	budgetID, err := bt.budgetID()
	if err != nil {
		return nil, err
	}
	current, ok := bt.Budget().Category(id)
	if !ok {
		return nil, fmt.Errorf("%w: category %s", ErrNotFound, id)
	}
	if changes.Name != nil {
		changes.Name = domain.Ptr(strings.TrimSpace(*changes.Name))
	}

	return reconcile.Submit(ctx, bt.deps.Syncer, reconcile.Mutation[domain.Category]{
		Entity: "category",
		Action: "update",
		Key:    "category:" + id.String(),
		Validate: func() error {
			name, allocated := current.Name, current.AllocatedAmount
			if changes.Name != nil {
				name = *changes.Name
			}
			if changes.AllocatedAmount != nil {
				allocated = *changes.AllocatedAmount
			}
			return validateCategory(name, allocated)
		},
		Apply: func() func() {
			undo, ok := bt.editCategory(id, changes)
			if !ok {
				return nil
			}
			return func() { bt.editCategory(id, undo) }
		},
		Dispatch: func(ctx context.Context) (domain.Category, error) {
			return bt.api.UpdateCategory(ctx, budgetID, id, changes)
		},
		Confirm: func(server domain.Category) {
			bt.replaceCategory(id, server)
		},
		Refresh:        bt.refresh,
		SuccessMessage: "Category updated successfully",
		FailureMessage: "Failed to update category",
	}), nil
}

func (bt *BudgetTracker) DeleteCategory(ctx context.Context, id domain.ID) (*reconcile.Ticket, error) {
	budgetID, err := bt.budgetID()
	if err != nil {
		return nil, err
	}
	current, ok := bt.Budget().Category(id)
	if !ok {
		return nil, fmt.Errorf("%w: category %s", ErrNotFound, id)
	}
	if err := bt.deps.confirm(ctx, deleteConfirmation("Category", current.Name)); err != nil {
		return nil, err
	}

	return reconcile.Submit(ctx, bt.deps.Syncer, reconcile.Mutation[noResult]{
		Entity: "category",
		Action: "delete",
		Key:    "category:" + id.String(),
		Apply: func() func() {
			c, idx, ok := bt.removeCategory(id)
			if !ok {
				return nil
			}
			return func() { bt.insertCategory(c, idx) }
		},
		Dispatch: func(ctx context.Context) (noResult, error) {
			return discard(bt.api.DeleteCategory(ctx, budgetID, id))
		},
		Refresh:        bt.refresh,
		SuccessMessage: "Category deleted successfully",
		FailureMessage: "Failed to delete category",
	}), nil
}

// AddExpense records an expense. The category's spend is not touched
// locally; the refresh after success brings the server's figures.
func (bt *BudgetTracker) AddExpense(ctx context.Context, e domain.Expense) (*reconcile.Ticket, error) {
	if _, err := bt.budgetID(); err != nil {
		return nil, err
	}
	e.ID = tempID()
	e.EventID = bt.eventID
	e.Description = strings.TrimSpace(e.Description)
	e.Vendor = strings.TrimSpace(e.Vendor)
	if e.Status == "" {
		e.Status = domain.ExpensePending
	}

	return reconcile.Submit(ctx, bt.deps.Syncer, reconcile.Mutation[domain.Expense]{
		Entity:   "expense",
		Action:   "add",
		Key:      "expense:" + e.ID.String(),
		Validate: func() error { return bt.validateExpense(e) },
		Apply: func() func() {
			bt.mu.Lock()
			defer bt.mu.Unlock()
			bt.expenses = append([]domain.Expense{e}, bt.expenses...)
			return func() { bt.removeExpense(e.ID) }
		},
		Dispatch: func(ctx context.Context) (domain.Expense, error) {
			return bt.api.CreateExpense(ctx, bt.eventID, e)
		},
		Confirm: func(server domain.Expense) {
			bt.replaceExpense(e.ID, server)
		},
		Refresh:        bt.refresh,
		SuccessMessage: "Expense added successfully",
		FailureMessage: "Failed to add expense",
	}), nil
}

func (bt *BudgetTracker) UpdateExpense(ctx context.Context, id domain.ID, changes domain.ExpenseChanges) (*reconcile.Ticket, error) {
	current, ok := bt.expense(id)
	if !ok {
		return nil, fmt.Errorf("%w: expense %s", ErrNotFound, id)
	}

	return reconcile.Submit(ctx, bt.deps.Syncer, reconcile.Mutation[domain.Expense]{
		Entity: "expense",
		Action: "update",
		Key:    "expense:" + id.String(),
		Validate: func() error {
			merged := current
			changes.Apply(&merged)
			return bt.validateExpense(merged)
		},
		Apply: func() func() {
			undo, ok := bt.editExpense(id, changes)
			if !ok {
				return nil
			}
			return func() { bt.editExpense(id, undo) }
		},
		Dispatch: func(ctx context.Context) (domain.Expense, error) {
			return bt.api.UpdateExpense(ctx, id, changes)
		},
		Confirm: func(server domain.Expense) {
			bt.replaceExpense(id, server)
		},
		Refresh:        bt.refresh,
		SuccessMessage: "Expense updated successfully",
		FailureMessage: "Failed to update expense",
	}), nil
}

func (bt *BudgetTracker) DeleteExpense(ctx context.Context, id domain.ID) (*reconcile.Ticket, error) {
	current, ok := bt.expense(id)
	if !ok {
		return nil, fmt.Errorf("%w: expense %s", ErrNotFound, id)
	}
	if err := bt.deps.confirm(ctx, deleteConfirmation("Expense", current.Description)); err != nil {
		return nil, err
	}

	return reconcile.Submit(ctx, bt.deps.Syncer, reconcile.Mutation[noResult]{
		Entity: "expense",
		Action: "delete",
		Key:    "expense:" + id.String(),
		Apply: func() func() {
			e, idx, ok := bt.removeExpense(id)
			if !ok {
				return nil
			}
			return func() { bt.insertExpense(e, idx) }
		},
		Dispatch: func(ctx context.Context) (noResult, error) {
			return discard(bt.api.DeleteExpense(ctx, id))
		},
		Refresh:        bt.refresh,
		SuccessMessage: "Expense deleted successfully",
		FailureMessage: "Failed to delete expense",
	}), nil
}

func (bt *BudgetTracker) budgetID() (domain.ID, error) {
	bt.mu.RLock()
	defer bt.mu.RUnlock()
	if bt.budget.Empty() {
		return "", ErrNoBudget
	}
	return bt.budget.ID, nil
}

func (bt *BudgetTracker) removeCategory(id domain.ID) (domain.Category, int, bool) {
	bt.mu.Lock()
	defer bt.mu.Unlock()
	for i, c := range bt.budget.Categories {
		if c.ID == id {
			cats := make([]domain.Category, 0, len(bt.budget.Categories)-1)
			cats = append(cats, bt.budget.Categories[:i]...)
			bt.budget.Categories = append(cats, bt.budget.Categories[i+1:]...)
			return c, i, true
		}
	}
	return domain.Category{}, -1, false
}

func (bt *BudgetTracker) insertCategory(c domain.Category, idx int) {
	bt.mu.Lock()
	defer bt.mu.Unlock()
	cats := bt.budget.Categories
	if idx < 0 || idx > len(cats) {
		idx = len(cats)
	}
	out := make([]domain.Category, 0, len(cats)+1)
	out = append(out, cats[:idx]...)
	out = append(out, c)
	bt.budget.Categories = append(out, cats[idx:]...)
}

func (bt *BudgetTracker) editCategory(id domain.ID, changes domain.CategoryChanges) (domain.CategoryChanges, bool) {
	bt.mu.Lock()
	defer bt.mu.Unlock()
	cats := bt.budget.Clone().Categories
	for i := range cats {
		if cats[i].ID == id {
			undo := changes.Apply(&cats[i])
			bt.budget.Categories = cats
			return undo, true
		}
	}
	return domain.CategoryChanges{}, false
}

func (bt *BudgetTracker) replaceCategory(id domain.ID, server domain.Category) {
	if server.ID == "" {
		return
	}
	bt.mu.Lock()
	defer bt.mu.Unlock()
	cats := bt.budget.Clone().Categories
	for i := range cats {
		if cats[i].ID == id {
			cats[i] = server
			bt.budget.Categories = cats
			return
		}
	}
}

func (bt *BudgetTracker) expense(id domain.ID) (domain.Expense, bool) {
	bt.mu.RLock()
	defer bt.mu.RUnlock()
	for _, e := range bt.expenses {
		if e.ID == id {
			return e, true
		}
	}
	return domain.Expense{}, false
}

func (bt *BudgetTracker) removeExpense(id domain.ID) (domain.Expense, int, bool) {
	bt.mu.Lock()
	defer bt.mu.Unlock()
	for i, e := range bt.expenses {
		if e.ID == id {
			out := make([]domain.Expense, 0, len(bt.expenses)-1)
			out = append(out, bt.expenses[:i]...)
			bt.expenses = append(out, bt.expenses[i+1:]...)
			return e, i, true
		}
	}
	return domain.Expense{}, -1, false
}

func (bt *BudgetTracker) insertExpense(e domain.Expense, idx int) {
	bt.mu.Lock()
	defer bt.mu.Unlock()
	if idx < 0 || idx > len(bt.expenses) {
		idx = len(bt.expenses)
	}
	out := make([]domain.Expense, 0, len(bt.expenses)+1)
	out = append(out, bt.expenses[:idx]...)
	out = append(out, e)
	bt.expenses = append(out, bt.expenses[idx:]...)
}

func (bt *BudgetTracker) editExpense(id domain.ID, changes domain.ExpenseChanges) (domain.ExpenseChanges, bool) {
	bt.mu.Lock()
	defer bt.mu.Unlock()
	out := append([]domain.Expense(nil), bt.expenses...)
	for i := range out {
		if out[i].ID == id {
			undo := changes.Apply(&out[i])
			bt.expenses = out
			return undo, true
		}
	}
	return domain.ExpenseChanges{}, false
}

func (bt *BudgetTracker) replaceExpense(id domain.ID, server domain.Expense) {
	if server.ID == "" {
		return
	}
	bt.mu.Lock()
	defer bt.mu.Unlock()
	out := append([]domain.Expense(nil), bt.expenses...)
	for i := range out {
		if out[i].ID == id {
			out[i] = server
			bt.expenses = out
			return
		}
	}
}

func validateTotal(total float64) error {
	if total < 0 {
		return errors.New("Total budget cannot be negative")
	}
	return nil
}

func validateCategory(name string, allocated float64) error {
	if len([]rune(strings.TrimSpace(name))) < 2 {
		return errors.New("Category name must be at least 2 characters")
	}
	if allocated < minAmount {
		return errors.New("Allocated amount must be at least 0.01")
	}
	return nil
}

func (bt *BudgetTracker) validateExpense(e domain.Expense) error {
	switch {
	case e.CategoryID == "":
		return errors.New("Category is required")
	case len([]rune(strings.TrimSpace(e.Description))) < 3:
		return errors.New("Description must be at least 3 characters")
	case strings.TrimSpace(e.Vendor) == "":
		return errors.New("Vendor is required")
	case e.Amount < minAmount:
		return errors.New("Amount must be at least 0.01")
	case strings.TrimSpace(e.Date) == "":
		return errors.New("Date is required")
	case !e.Status.Valid():
		return fmt.Errorf("Unknown status %q", e.Status)
	}
	if _, ok := bt.Budget().Category(e.CategoryID); !ok {
		return fmt.Errorf("Unknown category %s", e.CategoryID)
	}
	return nil
}
