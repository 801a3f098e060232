// Package aggregate derives presentation metrics from snapshots of the
// console's entities. Every function is pure: inputs are never mutated and
// no function performs I/O.
package aggregate

import (
	"math"

	"event-planner/domain"
)

// Status classifies how an event is doing against its budget.
type Status string

const (
	StatusUnknown    Status = "unknown"
	StatusOverBudget Status = "over-budget"
	StatusWarning    Status = "warning"
	StatusOnTrack    Status = "on-track"
)

// warningThreshold is the share of the plan left below which a budget is
// reported as nearly spent.
const warningThreshold = 0.10

// Label is the text shown next to the status badge.
func (s Status) Label() string {
	switch s {
	case StatusOverBudget:
		return "Over Budget"
	case StatusWarning:
		return "Nearly Spent"
	case StatusOnTrack:
		return "On Track"
	default:
		return "Unknown"
	}
}

// CategorySpentPercentage returns round(spent / allocated * 100). A category
// with nothing allocated reports 0.
func CategorySpentPercentage(c domain.Category) int {
	if c.AllocatedAmount == 0 {
		return 0
	}
	return roundPercent(c.SpentAmount / c.AllocatedAmount)
}

// BudgetPercentage returns round(totalSpent / totalBudget * 100). A zero
// total budget is treated as 1.
func BudgetPercentage(b domain.Budget) int {
	total := b.TotalBudget
	if total == 0 {
		total = 1
	}
	return roundPercent(b.TotalSpent / total)
}

// TotalRemaining is totalBudget - totalSpent. Negative values mean the
// event is over budget.
func TotalRemaining(b domain.Budget) float64 {
	return b.TotalBudget - b.TotalSpent
}

// BudgetStatus classifies actual spend against the plan.
func BudgetStatus(planned, actual float64) Status {
	if planned == 0 {
		return StatusUnknown
	}
	variance := planned - actual
	if variance < 0 {
		return StatusOverBudget
	}
	if variance/planned < warningThreshold {
		return StatusWarning
	}
	return StatusOnTrack
}

// Health is the budget card of the event overview.
type Health struct {
	Percentage int     `json:"percentage"`
	Variance   float64 `json:"variance"`
	OverBudget bool    `json:"overBudget"`
	Status     Status  `json:"status"`
	Label      string  `json:"label"`
}

// BudgetHealth summarizes a planned/actual pair. The percentage is capped
// at 100 for the progress bar; the variance is not capped.
func BudgetHealth(s domain.BudgetSummary) Health {
	h := Health{Variance: s.Planned - s.Actual}
	h.OverBudget = h.Variance < 0
	if s.Planned != 0 {
		h.Percentage = min(roundPercent(s.Actual/s.Planned), 100)
	}
	h.Status = BudgetStatus(s.Planned, s.Actual)
	h.Label = h.Status.Label()
	return h
}

// CategoryView pairs a category with its spend ratio.
type CategoryView struct {
	domain.Category
	SpentPercentage int     `json:"spentPercentage"`
	Remaining       float64 `json:"remaining"`
}

// Summary is the budget tracker header and category list.
type Summary struct {
	Budget         domain.Budget  `json:"budget"`
	Exists         bool           `json:"exists"`
	TotalSpent     float64        `json:"totalSpent"`
	TotalRemaining float64        `json:"totalRemaining"`
	Percentage     int            `json:"percentage"`
	Status         Status         `json:"status"`
	Categories     []CategoryView `json:"categories"`
}

// Summarize derives the tracker view of b. Spend always comes from the
// server-computed fields of b.
func Summarize(b domain.Budget) Summary {
	s := Summary{
		Budget:         b.Clone(),
		Exists:         !b.Empty(),
		TotalSpent:     b.TotalSpent,
		TotalRemaining: TotalRemaining(b),
		Percentage:     BudgetPercentage(b),
		Status:         BudgetStatus(b.TotalBudget, b.TotalSpent),
		Categories:     make([]CategoryView, 0, len(b.Categories)),
	}
	for _, c := range b.Categories {
		s.Categories = append(s.Categories, CategoryView{
			Category:        c,
			SpentPercentage: CategorySpentPercentage(c),
			Remaining:       c.AllocatedAmount - c.SpentAmount,
		})
	}
	return s
}

// roundPercent rounds ratio*100 half up, the way the console always has.
func roundPercent(ratio float64) int {
	v := ratio * 100
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return int(math.Floor(v + 0.5))
}
