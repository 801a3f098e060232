package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	"event-planner/console"
	"event-planner/domain"
)

type guestsResponse struct {
	Guests []domain.EventGuest `json:"guests"`
	Stats  domain.EventStats   `json:"stats"`
}

func guestsView(gl *console.GuestList) guestsResponse {
	return guestsResponse{Guests: gl.Guests(), Stats: gl.Stats()}
}

func (s *server) guestList(c echo.Context) (*console.GuestList, error) {
	return s.session.Guests(c.Request().Context(), domain.ID(c.Param("eventId")))
}

func (s *server) getGuests(c echo.Context) error {
	gl, err := s.guestList(c)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, guestsView(gl))
}

func (s *server) inviteGuest(c echo.Context) error {
	gl, err := s.guestList(c)
	if err != nil {
		return s.fail(c, err)
	}
	var in domain.GuestInput
	if err := bind(c, &in); err != nil {
		return err
	}
	tk := gl.Invite(mutationContext(c), in)
	return s.respondMutation(c, tk, func() any { return guestsView(gl) })
}

func (s *server) updateGuest(c echo.Context) error {
	gl, err := s.guestList(c)
	if err != nil {
		return s.fail(c, err)
	}
	var changes domain.EventGuestChanges
	if err := bind(c, &changes); err != nil {
		return err
	}
	tk, err := gl.Update(mutationContext(c), domain.ID(c.Param("guestId")), changes)
	if err != nil {
		return s.fail(c, err)
	}
	return s.respondMutation(c, tk, func() any { return guestsView(gl) })
}

func (s *server) removeGuest(c echo.Context) error {
	gl, err := s.guestList(c)
	if err != nil {
		return s.fail(c, err)
	}
	tk, err := gl.Remove(mutationContext(c), domain.ID(c.Param("guestId")))
	if err != nil {
		return s.fail(c, err)
	}
	return s.respondMutation(c, tk, func() any { return guestsView(gl) })
}

func (s *server) getEvents(c echo.Context) error {
	el := s.session.Events()
	if err := el.Load(c.Request().Context()); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, el.Events())
}

func (s *server) createEvent(c echo.Context) error {
	el := s.session.Events()
	if err := el.Ensure(c.Request().Context()); err != nil {
		return s.fail(c, err)
	}
	var in domain.EventInput
	if err := bind(c, &in); err != nil {
		return err
	}
	tk := el.Create(mutationContext(c), in)
	return s.respondMutation(c, tk, func() any { return el.Events() })
}

func (s *server) updateEvent(c echo.Context) error {
	el := s.session.Events()
	if err := el.Ensure(c.Request().Context()); err != nil {
		return s.fail(c, err)
	}
	var changes domain.EventChanges
	if err := bind(c, &changes); err != nil {
		return err
	}
	tk, err := el.Update(mutationContext(c), domain.ID(c.Param("eventId")), changes)
	if err != nil {
		return s.fail(c, err)
	}
	return s.respondMutation(c, tk, func() any { return el.Events() })
}

func (s *server) getTeam(c echo.Context) error {
	team, err := s.session.Events().Team(c.Request().Context(), domain.ID(c.Param("eventId")))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, team)
}

func (s *server) getOverview(c echo.Context) error {
	ov, err := s.session.Dashboard().Overview(c.Request().Context(), domain.ID(c.Param("eventId")))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, ov)
}

type dashboardResponse struct {
	Stats        domain.DashboardStats  `json:"stats"`
	RecentEvents []domain.RecentEvent   `json:"recentEvents"`
	Tasks        []domain.DashboardTask `json:"tasks"`
}

func (s *server) getDashboard(c echo.Context) error {
	d := s.session.Dashboard()
	var out dashboardResponse
	g, ctx := errgroup.WithContext(c.Request().Context())
	g.Go(func() (err error) {
		out.Stats, err = d.Stats(ctx)
		return err
	})
	g.Go(func() (err error) {
		out.RecentEvents, err = d.RecentEvents(ctx)
		return err
	})
	g.Go(func() (err error) {
		out.Tasks, err = d.Tasks(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

type notificationsResponse struct {
	Items  []domain.Notification `json:"items"`
	Unread int                   `json:"unread"`
}

func notificationsView(in *console.Inbox) notificationsResponse {
	return notificationsResponse{Items: in.Items(), Unread: in.UnreadCount()}
}

func (s *server) getNotifications(c echo.Context) error {
	in := s.session.Inbox()
	if err := in.Load(c.Request().Context()); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, notificationsView(in))
}

func (s *server) markRead(c echo.Context) error {
	in := s.session.Inbox()
	tk, err := in.MarkRead(mutationContext(c), domain.ID(c.Param("id")))
	if err != nil {
		return s.fail(c, err)
	}
	return s.respondMutation(c, tk, func() any { return notificationsView(in) })
}

func (s *server) markAllRead(c echo.Context) error {
	in := s.session.Inbox()
	tk := in.MarkAllRead(mutationContext(c))
	return s.respondMutation(c, tk, func() any { return notificationsView(in) })
}

// getCalendar serves the month grid. year and month default to the
// current month.
func (s *server) getCalendar(c echo.Context) error {
	now := time.Now()
	year, month := now.Year(), int(now.Month())
	if v := c.QueryParam("year"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return c.String(http.StatusBadRequest, "invalid year")
		}
		year = n
	}
	if v := c.QueryParam("month"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 12 {
			return c.String(http.StatusBadRequest, "invalid month")
		}
		month = n
	}
	days, err := s.session.Calendar().Month(c.Request().Context(), year, time.Month(month), domain.ID(c.QueryParam("eventId")))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, days)
}

func (s *server) getCalendarEvents(c echo.Context) error {
	cal := s.session.Calendar()
	if err := cal.LoadEvents(c.Request().Context()); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, cal.Events())
}

// getToasts returns the notifications shown since ?since=<seq>.
func (s *server) getToasts(c echo.Context) error {
	var since uint64
	if v := c.QueryParam("since"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return c.String(http.StatusBadRequest, "invalid since")
		}
		since = n
	}
	return c.JSON(http.StatusOK, s.feed.Since(since))
}
