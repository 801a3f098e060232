package board

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/sirupsen/logrus/hooks/test"

	"event-planner/domain"
	"event-planner/notify"
	"event-planner/reconcile"
)

type updateCall struct {
	id     domain.ID
	status domain.TaskStatus
}

type stubUpdater struct {
	mu      sync.Mutex
	calls   []updateCall
	release chan struct{}
	err     error
	respond func(id domain.ID, status domain.TaskStatus) domain.Task
}

func (s *stubUpdater) UpdateTaskStatus(ctx context.Context, id domain.ID, status domain.TaskStatus) (domain.Task, error) {
	s.mu.Lock()
	s.calls = append(s.calls, updateCall{id, status})
	release, failure := s.release, s.err
	s.mu.Unlock()
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return domain.Task{}, ctx.Err()
		}
	}
	if failure != nil {
		return domain.Task{}, failure
	}
	if s.respond != nil {
		return s.respond(id, status), nil
	}
	return domain.Task{}, nil
}

func (s *stubUpdater) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type countingSink struct {
	mu     sync.Mutex
	errors []string
}

func (c *countingSink) Show(message string, severity notify.Severity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if severity == notify.Error {
		c.errors = append(c.errors, message)
	}
}

func (c *countingSink) errorMessages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.errors...)
}

func newReconciler(t *testing.T, up *stubUpdater) (*Reconciler, *countingSink) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	d := reconcile.NewDispatcher(reconcile.DispatcherConfig{Workers: 2, Buffer: 4}, logger)
	t.Cleanup(d.Close)
	sink := &countingSink{}
	b := New()
	b.Load(sampleTasks())
	return NewReconciler(b, up, reconcile.NewSyncer(d, sink, logger)), sink
}

func wait(t *testing.T, tk *reconcile.Ticket) error {
	t.Helper()
	select {
	case <-tk.Done():
		return tk.Err()
	case <-time.After(2 * time.Second):
		t.Fatal("move did not settle")
		return nil
	}
}

func TestMoveBookVenueToInProgress(t *testing.T) {
	up := &stubUpdater{
		release: make(chan struct{}),
		respond: func(id domain.ID, status domain.TaskStatus) domain.Task {
			return domain.Task{ID: id, Title: "Book Venue", Assignee: "Sam", Status: status}
		},
	}
	r, sink := newReconciler(t, up)

	tk, err := r.Move(context.Background(), "t1", domain.StatusTodo, domain.StatusInProgress, 0)
	if err != nil {
		t.Fatalf("move: %v", err)
	}

	p := r.Board().Snapshot()
	if got := ids(p.InProgress); !equalIDs(got, []domain.ID{"t1", "t3"}) {
		t.Fatalf("optimistic move not visible: %v", got)
	}
	if got := ids(p.Todo); !equalIDs(got, []domain.ID{"t2", "t5"}) {
		t.Fatalf("task still in source column: %v", got)
	}
	if p.Len() != 5 {
		t.Fatalf("partition completeness violated: %d", p.Len())
	}

	close(up.release)
	if err := wait(t, tk); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tk.State() != reconcile.StateConfirmed {
		t.Fatalf("unexpected state %s", tk.State())
	}
	task, _ := r.Board().Task("t1")
	if task.Status != domain.StatusInProgress || task.Assignee != "Sam" {
		t.Fatalf("server representation not applied: %+v", task)
	}
	if up.calls[0] != (updateCall{"t1", domain.StatusInProgress}) {
		t.Fatalf("unexpected remote call: %+v", up.calls)
	}
	if len(sink.errorMessages()) != 0 {
		t.Fatal("success must not notify an error")
	}
}

func TestMoveFailureRestoresExactSnapshot(t *testing.T) {
	up := &stubUpdater{err: errors.New("500")}
	r, sink := newReconciler(t, up)

	before, err := sonic.Marshal(r.Board().Snapshot())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	tk, err := r.Move(context.Background(), "t2", domain.StatusTodo, domain.StatusDone, 0)
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if err := wait(t, tk); err == nil {
		t.Fatal("expected failure")
	}
	if tk.State() != reconcile.StateRolledBack {
		t.Fatalf("unexpected state %s", tk.State())
	}

	after, err := sonic.Marshal(r.Board().Snapshot())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(before) != string(after) {
		t.Fatalf("rollback mismatch\nbefore: %s\nafter:  %s", before, after)
	}
	if msgs := sink.errorMessages(); len(msgs) != 1 || msgs[0] != "Failed to update task status" {
		t.Fatalf("expected exactly one failure notification, got %v", msgs)
	}
}

func TestMoveWithinColumnNeverCallsServer(t *testing.T) {
	up := &stubUpdater{}
	r, _ := newReconciler(t, up)

	tk, err := r.Move(context.Background(), "t1", domain.StatusTodo, domain.StatusTodo, 0)
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if tk.State() != reconcile.StateConfirmed {
		t.Fatalf("no-op move should settle immediately, got %s", tk.State())
	}
	version := r.Board().Version()

	if _, err := r.Move(context.Background(), "t1", domain.StatusTodo, domain.StatusTodo, 2); err != nil {
		t.Fatalf("reorder move: %v", err)
	}
	if got := ids(r.Board().Snapshot().Todo); !equalIDs(got, []domain.ID{"t2", "t5", "t1"}) {
		t.Fatalf("unexpected order: %v", got)
	}
	if r.Board().Version() == version {
		t.Fatal("expected reorder to change the board")
	}
	if up.callCount() != 0 {
		t.Fatalf("expected no remote calls, got %d", up.callCount())
	}
}

func TestMoveRejectsBadRequests(t *testing.T) {
	r, _ := newReconciler(t, &stubUpdater{})

	if _, err := r.Move(context.Background(), "nope", domain.StatusTodo, domain.StatusDone, 0); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
	if _, err := r.Move(context.Background(), "t3", domain.StatusTodo, domain.StatusDone, 0); !errors.Is(err, ErrTaskNotInColumn) {
		t.Fatalf("expected ErrTaskNotInColumn, got %v", err)
	}
	if _, err := r.Move(context.Background(), "t1", domain.StatusTodo, "archived", 0); !errors.Is(err, ErrUnknownColumn) {
		t.Fatalf("expected ErrUnknownColumn, got %v", err)
	}
}

func TestRollbackClampsPriorIndex(t *testing.T) {
	up := &stubUpdater{release: make(chan struct{}), err: errors.New("conflict")}
	r, _ := newReconciler(t, up)

	tk, err := r.Move(context.Background(), "t5", domain.StatusTodo, domain.StatusDone, -1)
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if _, _, err := r.Board().Remove("t1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, _, err := r.Board().Remove("t2"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	close(up.release)
	_ = wait(t, tk)

	if got := ids(r.Board().Snapshot().Todo); !equalIDs(got, []domain.ID{"t5"}) {
		t.Fatalf("expected clamped reinsertion, got %v", got)
	}
}

func TestAdvanceCyclesStatus(t *testing.T) {
	up := &stubUpdater{respond: func(id domain.ID, s domain.TaskStatus) domain.Task {
		return domain.Task{ID: id, Title: "Print Badges", Status: s}
	}}
	r, _ := newReconciler(t, up)

	tk, err := r.Advance(context.Background(), "t4")
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if err := wait(t, tk); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := ids(r.Board().Snapshot().Todo); !equalIDs(got, []domain.ID{"t1", "t2", "t5", "t4"}) {
		t.Fatalf("done task should wrap to the end of todo: %v", got)
	}
}

func TestConcurrentMovesLastResolutionWins(t *testing.T) {
	up := &stubUpdater{respond: func(id domain.ID, s domain.TaskStatus) domain.Task {
		return domain.Task{ID: id, Title: "Book Venue", Status: s}
	}}
	r, _ := newReconciler(t, up)
	gate := make(chan struct{})
	r.remote = &gatedUpdater{inner: up, gate: gate, status: domain.StatusDone}

	tk1, err := r.Move(context.Background(), "t1", domain.StatusTodo, domain.StatusDone, 0)
	if err != nil {
		t.Fatalf("first move: %v", err)
	}
	tk2, err := r.Move(context.Background(), "t1", domain.StatusDone, domain.StatusInProgress, 0)
	if err != nil {
		t.Fatalf("second move: %v", err)
	}
	if err := wait(t, tk2); err != nil {
		t.Fatalf("second move failed: %v", err)
	}
	close(gate)
	if err := wait(t, tk1); err != nil {
		t.Fatalf("first move failed: %v", err)
	}

	task, _ := r.Board().Task("t1")
	if task.Status != domain.StatusDone {
		t.Fatalf("expected the later resolution to win, got %s", task.Status)
	}
	if r.Board().Snapshot().Len() != 5 {
		t.Fatal("partition completeness violated")
	}
}

func TestMoveOfRemovedTaskIsRejected(t *testing.T) {
	up := &stubUpdater{}
	r, sink := newReconciler(t, up)

	if _, _, err := r.Board().Remove("t1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	tk := r.submit(context.Background(), "t1", domain.StatusDone, 0)
	if tk.State() != reconcile.StateRejected {
		t.Fatalf("unexpected state %s", tk.State())
	}
	if !errors.Is(tk.Err(), ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", tk.Err())
	}
	if up.callCount() != 0 {
		t.Fatal("a removed task must not be sent to the server")
	}
	if r.Board().Snapshot().Len() != 4 {
		t.Fatal("rejected move changed the board")
	}
	if len(sink.errorMessages()) != 0 {
		t.Fatalf("unexpected toasts %v", sink.errorMessages())
	}
}

func TestPartitionsStayCompleteUnderRandomOperations(t *testing.T) {
	up := &stubUpdater{respond: func(id domain.ID, s domain.TaskStatus) domain.Task {
		return domain.Task{ID: id, Title: "Synced " + id.String(), Status: s}
	}}
	r, _ := newReconciler(t, up)
	all := ids(r.Board().Snapshot().Column(domain.StatusTodo))
	all = append(all, ids(r.Board().Snapshot().InProgress)...)
	all = append(all, ids(r.Board().Snapshot().Done)...)
	rng := rand.New(rand.NewSource(20251115))

	for step := 0; step < 600; step++ {
		p := r.Board().Snapshot()
		col := domain.TaskStatuses[rng.Intn(len(domain.TaskStatuses))]
		column := p.Column(col)
		if len(column) == 0 {
			continue
		}
		from := rng.Intn(len(column))

		switch op := rng.Intn(3); op {
		case 0:
			if err := r.Board().Reorder(col, from, rng.Intn(len(column))); err != nil {
				t.Fatalf("step %d reorder: %v", step, err)
			}
		default:
			failing := op == 2
			up.mu.Lock()
			up.err = nil
			if failing {
				up.err = errors.New("503")
			}
			up.mu.Unlock()

			to := domain.TaskStatuses[rng.Intn(len(domain.TaskStatuses))]
			index := rng.Intn(len(p.Column(to))+2) - 1
			tk, err := r.Move(context.Background(), column[from].ID, col, to, index)
			if err != nil {
				t.Fatalf("step %d move: %v", step, err)
			}
			_ = wait(t, tk)
			if failing && col != to {
				if tk.State() != reconcile.StateRolledBack {
					t.Fatalf("step %d: expected rollback, got %s", step, tk.State())
				}
				after := r.Board().Snapshot()
				for _, s := range domain.TaskStatuses {
					if !equalIDs(ids(p.Column(s)), ids(after.Column(s))) {
						t.Fatalf("step %d: rollback changed %s: %v -> %v", step, s, ids(p.Column(s)), ids(after.Column(s)))
					}
				}
			}
		}
		assertPartitioned(t, r.Board(), all, step)
	}
}

// assertPartitioned checks that every task of want sits in exactly one
// column and that the column matches its status.
func assertPartitioned(t *testing.T, b *Board, want []domain.ID, step int) {
	t.Helper()
	p := b.Snapshot()
	seen := make(map[domain.ID]int, len(want))
	for _, s := range domain.TaskStatuses {
		for _, task := range p.Column(s) {
			seen[task.ID]++
			if task.Status != s {
				t.Fatalf("step %d: task %s in %s has status %s", step, task.ID, s, task.Status)
			}
			if stored, ok := b.Task(task.ID); !ok || stored.Status != s {
				t.Fatalf("step %d: stored task %s disagrees with column %s", step, task.ID, s)
			}
		}
	}
	if len(seen) != len(want) {
		t.Fatalf("step %d: expected %d tasks, found %d", step, len(want), len(seen))
	}
	for _, id := range want {
		if seen[id] != 1 {
			t.Fatalf("step %d: task %s appears %d times", step, id, seen[id])
		}
	}
}

// gatedUpdater holds calls for one status until gate closes.
type gatedUpdater struct {
	inner  *stubUpdater
	gate   chan struct{}
	status domain.TaskStatus
}

func (g *gatedUpdater) UpdateTaskStatus(ctx context.Context, id domain.ID, status domain.TaskStatus) (domain.Task, error) {
	if status == g.status {
		<-g.gate
	}
	return g.inner.UpdateTaskStatus(ctx, id, status)
}
