// Package api exposes the console controllers over HTTP for a browser
// front end.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"event-planner/apiclient"
	"event-planner/board"
	"event-planner/console"
	"event-planner/notify"
	"event-planner/reconcile"
)

// defaultWaitTimeout bounds how long ?wait=true holds a request open.
const defaultWaitTimeout = 30 * time.Second

type server struct {
	session     *console.Session
	feed        *notify.Feed
	log         *log.Logger
	waitTimeout time.Duration
}

// Register wires up all console routes on the provided Echo instance.
// deduper may be nil, which turns idempotency keys off.
func Register(e *echo.Echo, session *console.Session, feed *notify.Feed, deduper Deduper, logger *log.Logger) {
	if logger == nil {
		panic("Logger is not initialized")
	}
	s := &server{session: session, feed: feed, log: logger, waitTimeout: defaultWaitTimeout}
	e.JSONSerializer = sonicSerializer{}

	e.GET("/healthz", healthz)

	g := e.Group("/api", DecompressRequests(maxBodySize), Idempotent(deduper, logger))

	g.GET("/events", s.getEvents)
	g.POST("/events", s.createEvent)

	ev := g.Group("/events/:eventId")
	ev.PATCH("", s.updateEvent)
	ev.GET("/team", s.getTeam)
	ev.GET("/board", s.getBoard)
	ev.GET("/board/stream", s.streamBoard)
	ev.POST("/board/tasks", s.addTask)
	ev.PATCH("/board/tasks/:taskId", s.editTask)
	ev.DELETE("/board/tasks/:taskId", s.deleteTask)
	ev.POST("/board/tasks/:taskId/advance", s.advanceTask)
	ev.POST("/board/moves", s.moveTask)
	ev.POST("/board/reorders", s.reorderTasks)

	ev.GET("/budget", s.getBudget)
	ev.POST("/budget", s.createBudget)
	ev.PATCH("/budget", s.updateBudget)
	ev.POST("/budget/categories", s.addCategory)
	ev.PATCH("/budget/categories/:categoryId", s.updateCategory)
	ev.DELETE("/budget/categories/:categoryId", s.deleteCategory)
	ev.POST("/budget/expenses", s.addExpense)
	ev.PATCH("/budget/expenses/:expenseId", s.updateExpense)
	ev.DELETE("/budget/expenses/:expenseId", s.deleteExpense)

	ev.GET("/guests", s.getGuests)
	ev.POST("/guests", s.inviteGuest)
	ev.PATCH("/guests/:guestId", s.updateGuest)
	ev.DELETE("/guests/:guestId", s.removeGuest)

	ev.GET("/overview", s.getOverview)

	g.GET("/dashboard", s.getDashboard)
	g.GET("/notifications", s.getNotifications)
	g.POST("/notifications/read-all", s.markAllRead)
	g.POST("/notifications/:id/read", s.markRead)
	g.GET("/calendar", s.getCalendar)
	g.GET("/calendar/events", s.getCalendarEvents)
	g.GET("/toasts", s.getToasts)
}

func healthz(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

type mutationResponse struct {
	Seq      int64  `json:"seq"`
	State    string `json:"state"`
	Error    string `json:"error,omitempty"`
	Snapshot any    `json:"snapshot"`
}

// mutationContext detaches a mutation from the request: the server-side
// resolution must survive the 202 answer. The user's answer to a delete
// confirmation travels as ?confirm=true.
func mutationContext(c echo.Context) context.Context {
	ctx := context.WithoutCancel(c.Request().Context())
	confirmed, _ := strconv.ParseBool(c.QueryParam("confirm"))
	return notify.WithConfirmation(ctx, confirmed)
}

// respondMutation answers 202 with the optimistic snapshot, or waits for
// the outcome when ?wait=true is set.
func (s *server) respondMutation(c echo.Context, tk *reconcile.Ticket, snapshot func() any) error {
	status := http.StatusAccepted
	if wait, _ := strconv.ParseBool(c.QueryParam("wait")); wait {
		ctx, cancel := context.WithTimeout(c.Request().Context(), s.waitTimeout)
		_ = tk.Wait(ctx)
		cancel()
		status = outcomeStatus(tk.State())
	}
	if tk.State() == reconcile.StateRejected {
		status = http.StatusUnprocessableEntity
	}

	resp := mutationResponse{Seq: tk.Seq(), State: tk.State().String(), Snapshot: snapshot()}
	if err := tk.Err(); err != nil {
		resp.Error = err.Error()
	}
	return c.JSON(status, resp)
}

func outcomeStatus(st reconcile.State) int {
	switch st {
	case reconcile.StateConfirmed:
		return http.StatusOK
	case reconcile.StateRolledBack:
		return http.StatusBadGateway
	case reconcile.StateRejected:
		return http.StatusUnprocessableEntity
	case reconcile.StateAbandoned:
		return http.StatusRequestTimeout
	}
	return http.StatusAccepted
}

// fail maps controller and upstream errors to a status code.
func (s *server) fail(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	var apiErr *apiclient.Error
	switch {
	case errors.Is(err, board.ErrTaskNotFound), errors.Is(err, console.ErrNotFound), apiclient.IsNotFound(err):
		status = http.StatusNotFound
	case errors.Is(err, board.ErrUnknownColumn), errors.Is(err, board.ErrIndexOutOfRange):
		status = http.StatusBadRequest
	case errors.Is(err, board.ErrTaskNotInColumn), errors.Is(err, console.ErrNoBudget):
		status = http.StatusConflict
	case errors.Is(err, console.ErrCancelled):
		status = http.StatusPreconditionRequired
	case errors.Is(err, reconcile.ErrValidation):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &apiErr):
		status = http.StatusBadGateway
	}
	if status >= http.StatusInternalServerError {
		s.log.WithFields(log.Fields{"path": c.Path(), "status": status}).Errorf("request failed: %v", err)
	}
	return c.String(status, err.Error())
}

// bind decodes a JSON body strictly.
func bind(c echo.Context, v any) error {
	dec := sonic.ConfigStd.NewDecoder(c.Request().Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "body too large")
		}
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	return nil
}
