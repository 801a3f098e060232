package api

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus/hooks/test"

	"event-planner/apiclient"
	"event-planner/board"
	"event-planner/console"
	"event-planner/domain"
	"event-planner/notify"
	"event-planner/reconcile"
)

// memRemote answers API paths from a table of canned envelopes.
type memRemote struct {
	mu     sync.Mutex
	routes map[string]string
	errs   map[string]error
	calls  []string
}

func newMemRemote() *memRemote {
	return &memRemote{
		routes: map[string]string{
			"GET /tasks?eventId=e1": `[{"_id":"t1","title":"Book venue","status":"todo","priority":"high"},
				{"_id":"t2","title":"Send invites","status":"todo","priority":"low"},
				{"_id":"t3","title":"Print badges","status":"in-progress","priority":"low"}]`,
			"PATCH /tasks/t1":  `{"_id":"t1","title":"Book venue","status":"done","priority":"high"}`,
			"DELETE /tasks/t2": `null`,
			"GET /budget/e1": `{"_id":"b1","eventId":"e1","totalBudget":1000,"totalSpent":950,"currency":"USD",
				"categories":[{"categoryId":"c1","categoryName":"Venue","allocatedAmount":1000,"spentAmount":950}]}`,
			"GET /budget/e1/expenses": `[]`,
			"GET /events":             `[{"_id":"e1","title":"Tech Conference","type":"conference","status":"active","startDate":"2025-11-25","location":"Moscone"}]`,
			"POST /events":            `{"_id":"e9","title":"Retreat","type":"meeting","status":"planning","startDate":"2025-12-10","location":"Lake Tahoe"}`,
			"GET /events/e1/team":     `[{"id":"u1","name":"Sam","role":"Coordinator"}]`,
			"GET /notifications":      `[{"_id":"n1","severity":"INFO","message":"hi","read":false,"createdAt":"2025-11-01T10:00:00Z"}]`,
		},
		errs: map[string]error{},
	}
}

func (m *memRemote) serve(method, path string) (apiclient.Response, error) {
	key := method + " " + path
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, key)
	if err := m.errs[key]; err != nil {
		return apiclient.Response{}, err
	}
	data, ok := m.routes[key]
	if !ok {
		return apiclient.Response{}, &apiclient.Error{Method: method, Path: path, Status: http.StatusNotFound}
	}
	return apiclient.Response{Success: true, Data: json.RawMessage(data)}, nil
}

func (m *memRemote) Get(_ context.Context, path string) (apiclient.Response, error) {
	return m.serve(http.MethodGet, path)
}

func (m *memRemote) Post(_ context.Context, path string, _ any) (apiclient.Response, error) {
	return m.serve(http.MethodPost, path)
}

func (m *memRemote) Patch(_ context.Context, path string, _ any) (apiclient.Response, error) {
	return m.serve(http.MethodPatch, path)
}

func (m *memRemote) Delete(_ context.Context, path string) (apiclient.Response, error) {
	return m.serve(http.MethodDelete, path)
}

func (m *memRemote) failWith(key string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[key] = err
}

type harness struct {
	e      *echo.Echo
	remote *memRemote
	feed   *notify.Feed
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger, _ := test.NewNullLogger()
	d := reconcile.NewDispatcher(reconcile.DispatcherConfig{Workers: 2, Buffer: 8, HandoffTimeout: 10 * time.Millisecond}, logger)
	t.Cleanup(d.Close)
	feed := notify.NewFeed(20)
	remote := newMemRemote()
	session := console.NewSession(apiclient.NewService(remote), console.Deps{
		Syncer: reconcile.NewSyncer(d, feed, logger),
		Prompt: notify.ContextPrompt{},
		Logger: logger,
	})
	e := echo.New()
	Register(e, session, feed, nil, logger)
	return &harness{e: e, remote: remote, feed: feed}
}

func (h *harness) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	h.e.ServeHTTP(rec, req)
	return rec
}

type boardBody struct {
	Version uint64           `json:"version"`
	Columns board.Partitions `json:"columns"`
}

type mutationBody struct {
	Seq      int64     `json:"seq"`
	State    string    `json:"state"`
	Error    string    `json:"error"`
	Snapshot boardBody `json:"snapshot"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := sonic.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealthz(t *testing.T) {
	h := newHarness(t)
	if rec := h.do(http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestGetBoard(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodGet, "/api/events/e1/board", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	got := decode[boardBody](t, rec)
	if len(got.Columns.Todo) != 2 || len(got.Columns.InProgress) != 1 || got.Columns.Todo[0].ID != "t1" {
		t.Fatalf("unexpected board %+v", got)
	}
}

func TestGetBoardUpstreamFailure(t *testing.T) {
	h := newHarness(t)
	h.remote.failWith("GET /tasks?eventId=e1", &apiclient.Error{Method: "GET", Path: "/tasks", Status: http.StatusInternalServerError})
	if rec := h.do(http.MethodGet, "/api/events/e1/board", ""); rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
}

func TestMoveAnswersWithOptimisticSnapshot(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodPost, "/api/events/e1/board/moves", `{"taskId":"t1","from":"todo","to":"done"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	got := decode[mutationBody](t, rec)
	if len(got.Snapshot.Columns.Done) != 1 || got.Snapshot.Columns.Done[0].ID != "t1" {
		t.Fatalf("expected t1 in done already, got %+v", got.Snapshot.Columns)
	}
}

func TestMoveWaitReportsRollback(t *testing.T) {
	h := newHarness(t)
	h.remote.failWith("PATCH /tasks/t1", &apiclient.Error{Method: "PATCH", Path: "/tasks/t1", Status: http.StatusInternalServerError})

	rec := h.do(http.MethodPost, "/api/events/e1/board/moves?wait=true", `{"taskId":"t1","from":"todo","to":"done","toIndex":0}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d: %s", rec.Code, rec.Body.String())
	}
	got := decode[mutationBody](t, rec)
	if got.State != "rolled-back" || len(got.Snapshot.Columns.Todo) != 2 || got.Snapshot.Columns.Todo[0].ID != "t1" {
		t.Fatalf("expected t1 back at the top of todo, got %+v", got)
	}
	toasts := h.feed.Since(0)
	if len(toasts) != 1 || toasts[0].Message != "Failed to update task status" {
		t.Fatalf("unexpected toasts %+v", toasts)
	}
}

func TestMoveErrors(t *testing.T) {
	h := newHarness(t)
	cases := []struct {
		body string
		want int
	}{
		{`{"taskId":"t1","from":"todo","to":"archived"}`, http.StatusBadRequest},
		{`{"taskId":"t9","from":"todo","to":"done"}`, http.StatusNotFound},
		{`{"taskId":"t1","from":"done","to":"todo"}`, http.StatusConflict},
		{`{"taskId":"t1","unknown":true}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		if rec := h.do(http.MethodPost, "/api/events/e1/board/moves", tc.body); rec.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.body, tc.want, rec.Code)
		}
	}
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	h := newHarness(t)
	if rec := h.do(http.MethodDelete, "/api/events/e1/board/tasks/t2", ""); rec.Code != http.StatusPreconditionRequired {
		t.Fatalf("expected 428, got %d", rec.Code)
	}
	rec := h.do(http.MethodDelete, "/api/events/e1/board/tasks/t2?confirm=true&wait=true", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	got := decode[mutationBody](t, rec)
	if got.State != "confirmed" || len(got.Snapshot.Columns.Todo) != 1 {
		t.Fatalf("unexpected answer %+v", got)
	}
	if toasts := h.feed.Since(0); len(toasts) != 1 || toasts[0].Message != "Task deleted" {
		t.Fatalf("unexpected toasts %+v", toasts)
	}
}

func TestAddTaskValidation(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodPost, "/api/events/e1/board/tasks", `{"title":" "}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if got := decode[mutationBody](t, rec); got.State != "rejected" || got.Error == "" {
		t.Fatalf("unexpected answer %+v", got)
	}
}

func TestGzipRequestBody(t *testing.T) {
	h := newHarness(t)
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, _ = zw.Write([]byte(`{"column":"todo","from":0,"to":1}`))
	_ = zw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/events/e1/board/reorders", &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderContentEncoding, "gzip")
	rec := httptest.NewRecorder()
	h.e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	got := decode[boardBody](t, rec)
	if got.Columns.Todo[0].ID != "t2" || got.Columns.Todo[1].ID != "t1" {
		t.Fatalf("unexpected order %+v", got.Columns.Todo)
	}

	bad := httptest.NewRequest(http.MethodPost, "/api/events/e1/board/reorders", strings.NewReader("not gzip"))
	bad.Header.Set(echo.HeaderContentEncoding, "gzip")
	rec = httptest.NewRecorder()
	h.e.ServeHTTP(rec, bad)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid gzip, got %d", rec.Code)
	}
}

func TestGetBudgetSummary(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodGet, "/api/events/e1/budget", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var got struct {
		Summary struct {
			Percentage int    `json:"percentage"`
			Status     string `json:"status"`
			Categories []struct {
				ID   string `json:"_id"`
				Name string `json:"name"`
			} `json:"categories"`
		} `json:"summary"`
	}
	if err := sonic.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Summary.Percentage != 95 || got.Summary.Status != "warning" {
		t.Fatalf("unexpected summary %+v", got.Summary)
	}
	if len(got.Summary.Categories) != 1 || got.Summary.Categories[0].ID != "c1" || got.Summary.Categories[0].Name != "Venue" {
		t.Fatalf("unexpected categories %+v", got.Summary.Categories)
	}
}

func TestNotificationsAndToasts(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodGet, "/api/notifications", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"unread":1`) {
		t.Fatalf("unexpected notifications %d %s", rec.Code, rec.Body.String())
	}
	h.remote.failWith("POST /notifications/n1/read", &apiclient.Error{Method: "POST", Path: "/notifications/n1/read", Status: http.StatusServiceUnavailable})
	if rec := h.do(http.MethodPost, "/api/notifications/n1/read?wait=true", ""); rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}

	rec = h.do(http.MethodGet, "/api/toasts?since=0", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Failed to mark notification as read") {
		t.Fatalf("unexpected toasts %d %s", rec.Code, rec.Body.String())
	}
	if rec := h.do(http.MethodGet, "/api/toasts?since=x", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCalendarRejectsBadMonth(t *testing.T) {
	h := newHarness(t)
	if rec := h.do(http.MethodGet, "/api/calendar?month=13", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestStreamBoardSendsSnapshot(t *testing.T) {
	h := newHarness(t)
	if rec := h.do(http.MethodGet, "/api/events/e1/board", ""); rec.Code != http.StatusOK {
		t.Fatalf("preload failed: %d", rec.Code)
	}

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/events/e1/board/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		h.e.ServeHTTP(rec, req)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not stop")
	}

	if ct := rec.Header().Get(echo.HeaderContentType); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}
	body := rec.Body.String()
	if !strings.HasPrefix(body, "event: board\nid: ") || !strings.Contains(body, "\ndata: {") || !strings.Contains(body, `"t1"`) {
		t.Fatalf("unexpected frame %q", body)
	}
}

type eventsMutation struct {
	State    string         `json:"state"`
	Snapshot []domain.Event `json:"snapshot"`
}

func TestEventRoutes(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/api/events", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if events := decode[[]domain.Event](t, rec); len(events) != 1 || events[0].ID != "e1" {
		t.Fatalf("unexpected events %+v", events)
	}

	rec = h.do(http.MethodPost, "/api/events?wait=true", `{"title":"Retreat","type":"meeting","startDate":"2025-12-10","location":"Lake Tahoe"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	created := decode[eventsMutation](t, rec)
	if created.State != "confirmed" || len(created.Snapshot) != 2 || created.Snapshot[1].ID != "e9" {
		t.Fatalf("unexpected create answer %+v", created)
	}

	if rec := h.do(http.MethodPost, "/api/events", `{"title":"No place","startDate":"2025-12-10"}`); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}

	h.remote.failWith("PATCH /events/e1", &apiclient.Error{Method: "PATCH", Path: "/events/e1", Status: http.StatusInternalServerError})
	rec = h.do(http.MethodPatch, "/api/events/e1?wait=true", `{"location":"Javits Center"}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d: %s", rec.Code, rec.Body.String())
	}
	if updated := decode[eventsMutation](t, rec); updated.Snapshot[0].Location != "Moscone" {
		t.Fatalf("expected the location to be reverted, got %+v", updated.Snapshot[0])
	}
	if rec := h.do(http.MethodPatch, "/api/events/nope", `{"title":"x"}`); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	rec = h.do(http.MethodGet, "/api/events/e1/team", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"Coordinator"`) {
		t.Fatalf("unexpected team %d %s", rec.Code, rec.Body.String())
	}
}
