package aggregate

import (
	"sort"
	"time"

	"event-planner/domain"
)

// FilterExpenses returns the expenses matching f, newest first unless f asks
// for another order. The input slice is left untouched.
func FilterExpenses(expenses []domain.Expense, f domain.ExpenseFilter) []domain.Expense {
	out := make([]domain.Expense, 0, len(expenses))
	for _, e := range expenses {
		if f.CategoryID != "" && e.CategoryID != f.CategoryID {
			continue
		}
		if f.Status != "" && e.Status != f.Status {
			continue
		}
		out = append(out, e)
	}

	asc := f.SortOrder == "asc"
	byAmount := f.SortBy == "amount"
	sort.SliceStable(out, func(i, j int) bool {
		if byAmount {
			if asc {
				return out[i].Amount < out[j].Amount
			}
			return out[i].Amount > out[j].Amount
		}
		di, dj := parseDate(out[i].Date), parseDate(out[j].Date)
		if asc {
			return di.Before(dj)
		}
		return di.After(dj)
	})
	return out
}

// ExpenseTotal sums amounts. It is used for display of a filtered list only;
// category and budget spend always come from the API.
func ExpenseTotal(expenses []domain.Expense) float64 {
	var total float64
	for _, e := range expenses {
		total += e.Amount
	}
	return total
}

var dateLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

func parseDate(s string) time.Time {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
