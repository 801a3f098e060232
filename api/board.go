package api

import (
	"net/http"
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"

	"event-planner/board"
	"event-planner/console"
	"event-planner/domain"
)

type boardResponse struct {
	Version uint64           `json:"version"`
	Columns board.Partitions `json:"columns"`
}

func boardView(tb *console.TaskBoard) boardResponse {
	return boardResponse{Version: tb.Version(), Columns: tb.Snapshot()}
}

func (s *server) taskBoard(c echo.Context) (*console.TaskBoard, error) {
	return s.session.Board(c.Request().Context(), domain.ID(c.Param("eventId")))
}

func (s *server) getBoard(c echo.Context) error {
	tb, err := s.taskBoard(c)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, boardView(tb))
}

// streamBoard pushes the board snapshot on connect and after every change
// until the client goes away.
func (s *server) streamBoard(c echo.Context) error {
	tb, err := s.taskBoard(c)
	if err != nil {
		return s.fail(c, err)
	}
	res := c.Response()
	flusher, ok := res.Writer.(http.Flusher)
	if !ok {
		return c.String(http.StatusInternalServerError, "stream unsupported")
	}
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)

	ctx := c.Request().Context()
	changed, stop := tb.Subscribe()
	defer stop()
	for {
		view := boardView(tb)
		data, err := sonic.Marshal(view)
		if err != nil {
			s.log.Errorf("encode board snapshot: %v", err)
			return err
		}
		frame := make([]byte, 0, len(data)+48)
		frame = append(frame, "event: board\nid: "...)
		frame = strconv.AppendUint(frame, view.Version, 10)
		frame = append(frame, "\ndata: "...)
		frame = append(frame, data...)
		frame = append(frame, "\n\n"...)
		if _, err := res.Write(frame); err != nil {
			s.log.Debugf("board stream closed: %v", err)
			return nil
		}
		flusher.Flush()
		select {
		case <-ctx.Done():
			return nil
		case <-changed:
		}
	}
}

func (s *server) addTask(c echo.Context) error {
	tb, err := s.taskBoard(c)
	if err != nil {
		return s.fail(c, err)
	}
	var in domain.TaskInput
	if err := bind(c, &in); err != nil {
		return err
	}
	tk := tb.Add(mutationContext(c), in)
	return s.respondMutation(c, tk, func() any { return boardView(tb) })
}

func (s *server) editTask(c echo.Context) error {
	tb, err := s.taskBoard(c)
	if err != nil {
		return s.fail(c, err)
	}
	var changes domain.TaskChanges
	if err := bind(c, &changes); err != nil {
		return err
	}
	tk, err := tb.Edit(mutationContext(c), domain.ID(c.Param("taskId")), changes)
	if err != nil {
		return s.fail(c, err)
	}
	return s.respondMutation(c, tk, func() any { return boardView(tb) })
}

func (s *server) deleteTask(c echo.Context) error {
	tb, err := s.taskBoard(c)
	if err != nil {
		return s.fail(c, err)
	}
	tk, err := tb.Delete(mutationContext(c), domain.ID(c.Param("taskId")))
	if err != nil {
		return s.fail(c, err)
	}
	return s.respondMutation(c, tk, func() any { return boardView(tb) })
}

func (s *server) advanceTask(c echo.Context) error {
	tb, err := s.taskBoard(c)
	if err != nil {
		return s.fail(c, err)
	}
	tk, err := tb.Advance(mutationContext(c), domain.ID(c.Param("taskId")))
	if err != nil {
		return s.fail(c, err)
	}
	return s.respondMutation(c, tk, func() any { return boardView(tb) })
}

type moveRequest struct {
	TaskID  domain.ID         `json:"taskId"`
	From    domain.TaskStatus `json:"from"`
	To      domain.TaskStatus `json:"to"`
	ToIndex *int              `json:"toIndex,omitempty"`
}

func (s *server) moveTask(c echo.Context) error {
	tb, err := s.taskBoard(c)
	if err != nil {
		return s.fail(c, err)
	}
	var req moveRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	index := -1
	if req.ToIndex != nil {
		index = *req.ToIndex
	}
	tk, err := tb.Move(mutationContext(c), req.TaskID, req.From, req.To, index)
	if err != nil {
		return s.fail(c, err)
	}
	return s.respondMutation(c, tk, func() any { return boardView(tb) })
}

type reorderRequest struct {
	Column domain.TaskStatus `json:"column"`
	From   int               `json:"from"`
	To     int               `json:"to"`
}

// reorderTasks changes the order within a column. The order is not
// persisted remotely, so the answer is final.
func (s *server) reorderTasks(c echo.Context) error {
	tb, err := s.taskBoard(c)
	if err != nil {
		return s.fail(c, err)
	}
	var req reorderRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := tb.Reorder(req.Column, req.From, req.To); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, boardView(tb))
}
