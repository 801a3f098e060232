package domain

// Budget is the spending plan of an event. TotalSpent and every
// Category.SpentAmount are computed by the planning API from expenses and
// are never derived locally.
type Budget struct {
	ID          ID         `json:"_id"`
	EventID     ID         `json:"eventId"`
	TotalBudget float64    `json:"totalBudget"`
	TotalSpent  float64    `json:"totalSpent"`
	Currency    string     `json:"currency"`
	Categories  []Category `json:"categories"`
	CreatedAt   string     `json:"createdAt,omitempty"`
	UpdatedAt   string     `json:"updatedAt,omitempty"`
}

// Empty reports whether b is the placeholder shown before a budget exists.
func (b Budget) Empty() bool { return b.ID == "" }

// Category returns the category with the given identity.
func (b Budget) Category(id ID) (Category, bool) {
	for _, c := range b.Categories {
		if c.ID == id {
			return c, true
		}
	}
	return Category{}, false
}

// Clone returns a copy that shares no slices with b.
func (b Budget) Clone() Budget {
	out := b
	out.Categories = append([]Category(nil), b.Categories...)
	return out
}

type Category struct {
	ID              ID      `json:"_id"`
	Name            string  `json:"name"`
	AllocatedAmount float64 `json:"allocatedAmount"`
	SpentAmount     float64 `json:"spentAmount"`
	Color           string  `json:"color"`
	Icon            string  `json:"icon"`
}

// CategoryInput is the create payload of a category.
type CategoryInput struct {
	Name            string  `json:"name"`
	AllocatedAmount float64 `json:"allocatedAmount"`
	Color           string  `json:"color"`
	Icon            string  `json:"icon"`
}

// CategoryChanges is a partial category update. SpentAmount is absent on
// purpose: it belongs to the API.
type CategoryChanges struct {
	Name            *string  `json:"name,omitempty"`
	AllocatedAmount *float64 `json:"allocatedAmount,omitempty"`
	Color           *string  `json:"color,omitempty"`
	Icon            *string  `json:"icon,omitempty"`
}

// Apply writes the set fields into c and returns their previous values.
func (ch CategoryChanges) Apply(c *Category) CategoryChanges {
	var prev CategoryChanges
	if ch.Name != nil {
		prev.Name = Ptr(c.Name)
		c.Name = *ch.Name
	}
	if ch.AllocatedAmount != nil {
		prev.AllocatedAmount = Ptr(c.AllocatedAmount)
		c.AllocatedAmount = *ch.AllocatedAmount
	}
	if ch.Color != nil {
		prev.Color = Ptr(c.Color)
		c.Color = *ch.Color
	}
	if ch.Icon != nil {
		prev.Icon = Ptr(c.Icon)
		c.Icon = *ch.Icon
	}
	return prev
}

// BudgetInput creates or updates a budget.
type BudgetInput struct {
	EventID     ID              `json:"eventId,omitempty"`
	TotalBudget *float64        `json:"totalBudget,omitempty"`
	Currency    *string         `json:"currency,omitempty"`
	Categories  []CategoryInput `json:"categories,omitempty"`
}

type ExpenseStatus string

const (
	ExpensePending ExpenseStatus = "pending"
	ExpensePaid    ExpenseStatus = "paid"
	ExpenseOverdue ExpenseStatus = "overdue"
)

func (s ExpenseStatus) Valid() bool {
	return s == ExpensePending || s == ExpensePaid || s == ExpenseOverdue
}

type Expense struct {
	ID          ID            `json:"_id"`
	EventID     ID            `json:"eventId"`
	CategoryID  ID            `json:"categoryId"`
	Description string        `json:"description"`
	Vendor      string        `json:"vendor"`
	Amount      float64       `json:"amount"`
	Date        string        `json:"date"`
	Status      ExpenseStatus `json:"status"`
	Notes       string        `json:"notes,omitempty"`
}

// ExpenseChanges is a partial expense update.
type ExpenseChanges struct {
	CategoryID  *ID            `json:"categoryId,omitempty"`
	Description *string        `json:"description,omitempty"`
	Vendor      *string        `json:"vendor,omitempty"`
	Amount      *float64       `json:"amount,omitempty"`
	Date        *string        `json:"date,omitempty"`
	Status      *ExpenseStatus `json:"status,omitempty"`
	Notes       *string        `json:"notes,omitempty"`
}

// Apply writes the set fields into e and returns their previous values.
func (ch ExpenseChanges) Apply(e *Expense) ExpenseChanges {
	var prev ExpenseChanges
	if ch.CategoryID != nil {
		prev.CategoryID = Ptr(e.CategoryID)
		e.CategoryID = *ch.CategoryID
	}
	if ch.Description != nil {
		prev.Description = Ptr(e.Description)
		e.Description = *ch.Description
	}
	if ch.Vendor != nil {
		prev.Vendor = Ptr(e.Vendor)
		e.Vendor = *ch.Vendor
	}
	if ch.Amount != nil {
		prev.Amount = Ptr(e.Amount)
		e.Amount = *ch.Amount
	}
	if ch.Date != nil {
		prev.Date = Ptr(e.Date)
		e.Date = *ch.Date
	}
	if ch.Status != nil {
		prev.Status = Ptr(e.Status)
		e.Status = *ch.Status
	}
	if ch.Notes != nil {
		prev.Notes = Ptr(e.Notes)
		e.Notes = *ch.Notes
	}
	return prev
}

// ExpenseFilter narrows the expense list of the budget tracker.
type ExpenseFilter struct {
	CategoryID ID
	Status     ExpenseStatus
	SortBy     string // "date" or "amount"
	SortOrder  string // "asc" or "desc"
}

// BudgetSummary is the planned/actual pair shown on the event overview.
type BudgetSummary struct {
	Planned float64 `json:"planned"`
	Actual  float64 `json:"actual"`
}
