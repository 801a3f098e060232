package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"event-planner/aggregate"
	"event-planner/console"
	"event-planner/domain"
)

type budgetResponse struct {
	Summary  aggregate.Summary `json:"summary"`
	Expenses []domain.Expense  `json:"expenses"`
}

func budgetView(bt *console.BudgetTracker, f domain.ExpenseFilter) budgetResponse {
	return budgetResponse{Summary: bt.Summary(), Expenses: bt.Expenses(f)}
}

func (s *server) tracker(c echo.Context) (*console.BudgetTracker, error) {
	return s.session.Budget(c.Request().Context(), domain.ID(c.Param("eventId")))
}

func (s *server) getBudget(c echo.Context) error {
	bt, err := s.tracker(c)
	if err != nil {
		return s.fail(c, err)
	}
	f := domain.ExpenseFilter{
		CategoryID: domain.ID(c.QueryParam("category")),
		Status:     domain.ExpenseStatus(c.QueryParam("status")),
		SortBy:     c.QueryParam("sortBy"),
		SortOrder:  c.QueryParam("sortOrder"),
	}
	return c.JSON(http.StatusOK, budgetView(bt, f))
}

type createBudgetRequest struct {
	TotalBudget float64 `json:"totalBudget"`
	Currency    string  `json:"currency"`
}

func (s *server) createBudget(c echo.Context) error {
	bt, err := s.tracker(c)
	if err != nil {
		return s.fail(c, err)
	}
	var req createBudgetRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	tk, err := bt.CreateBudget(mutationContext(c), req.TotalBudget, req.Currency)
	if err != nil {
		return s.fail(c, err)
	}
	return s.respondMutation(c, tk, func() any { return budgetView(bt, domain.ExpenseFilter{}) })
}

func (s *server) updateBudget(c echo.Context) error {
	bt, err := s.tracker(c)
	if err != nil {
		return s.fail(c, err)
	}
	var in domain.BudgetInput
	if err := bind(c, &in); err != nil {
		return err
	}
	tk, err := bt.UpdateBudget(mutationContext(c), in)
	if err != nil {
		return s.fail(c, err)
	}
	return s.respondMutation(c, tk, func() any { return budgetView(bt, domain.ExpenseFilter{}) })
}

func (s *server) addCategory(c echo.Context) error {
	bt, err := s.tracker(c)
	if err != nil {
		return s.fail(c, err)
	}
	var in domain.CategoryInput
	if err := bind(c, &in); err != nil {
		return err
	}
	tk, err := bt.AddCategory(mutationContext(c), in)
	if err != nil {
		return s.fail(c, err)
	}
	return s.respondMutation(c, tk, func() any { return budgetView(bt, domain.ExpenseFilter{}) })
}

func (s *server) updateCategory(c echo.Context) error {
	bt, err := s.tracker(c)
	if err != nil {
		return s.fail(c, err)
	}
	var changes domain.CategoryChanges
	if err := bind(c, &changes); err != nil {
		return err
	}
	tk, err := bt.UpdateCategory(mutationContext(c), domain.ID(c.Param("categoryId")), changes)
	if err != nil {
		return s.fail(c, err)
	}
	return s.respondMutation(c, tk, func() any { return budgetView(bt, domain.ExpenseFilter{}) })
}

func (s *server) deleteCategory(c echo.Context) error {
	bt, err := s.tracker(c)
	if err != nil {
		return s.fail(c, err)
	}
	tk, err := bt.DeleteCategory(mutationContext(c), domain.ID(c.Param("categoryId")))
	if err != nil {
		return s.fail(c, err)
	}
	return s.respondMutation(c, tk, func() any { return budgetView(bt, domain.ExpenseFilter{}) })
}

func (s *server) addExpense(c echo.Context) error {
	bt, err := s.tracker(c)
	if err != nil {
		return s.fail(c, err)
	}
	var e domain.Expense
	if err := bind(c, &e); err != nil {
		return err
	}
	tk, err := bt.AddExpense(mutationContext(c), e)
	if err != nil {
		return s.fail(c, err)
	}
	return s.respondMutation(c, tk, func() any { return budgetView(bt, domain.ExpenseFilter{}) })
}

func (s *server) updateExpense(c echo.Context) error {
	bt, err := s.tracker(c)
	if err != nil {
		return s.fail(c, err)
	}
	var changes domain.ExpenseChanges
	if err := bind(c, &changes); err != nil {
		return err
	}
	tk, err := bt.UpdateExpense(mutationContext(c), domain.ID(c.Param("expenseId")), changes)
	if err != nil {
		return s.fail(c, err)
	}
	return s.respondMutation(c, tk, func() any { return budgetView(bt, domain.ExpenseFilter{}) })
}

func (s *server) deleteExpense(c echo.Context) error {
	bt, err := s.tracker(c)
	if err != nil {
		return s.fail(c, err)
	}
	tk, err := bt.DeleteExpense(mutationContext(c), domain.ID(c.Param("expenseId")))
	if err != nil {
		return s.fail(c, err)
	}
	return s.respondMutation(c, tk, func() any { return budgetView(bt, domain.ExpenseFilter{}) })
}
