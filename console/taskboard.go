package console

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"event-planner/board"
	"event-planner/domain"
	"event-planner/reconcile"
)

// TaskBoard is the Kanban view of one event.
type TaskBoard struct {
	eventID domain.ID
	api     TaskAPI
	board   *board.Board
	rec     *board.Reconciler
	deps    Deps
}

func NewTaskBoard(eventID domain.ID, api TaskAPI, deps Deps) *TaskBoard {
	b := board.New()
	return &TaskBoard{
		eventID: eventID,
		api:     api,
		board:   b,
		rec:     board.NewReconciler(b, api, deps.Syncer),
		deps:    deps,
	}
}

func (tb *TaskBoard) EventID() domain.ID { return tb.eventID }

func (tb *TaskBoard) Load(ctx context.Context) error {
	tasks, err := tb.api.Tasks(ctx, tb.eventID)
	if err != nil {
		return fmt.Errorf("load tasks of %s: %w", tb.eventID, err)
	}
	tb.board.Load(tasks)
	return nil
}

func (tb *TaskBoard) Snapshot() board.Partitions { return tb.board.Snapshot() }

func (tb *TaskBoard) Version() uint64 { return tb.board.Version() }

// Subscribe signals board changes. Call the returned func to stop.
func (tb *TaskBoard) Subscribe() (<-chan struct{}, func()) { return tb.board.Subscribe() }

func (tb *TaskBoard) Move(ctx context.Context, id domain.ID, from, to domain.TaskStatus, toIndex int) (*reconcile.Ticket, error) {
	return tb.rec.Move(ctx, id, from, to, toIndex)
}

// Advance moves the task one step along todo, in-progress, done and back.
func (tb *TaskBoard) Advance(ctx context.Context, id domain.ID) (*reconcile.Ticket, error) {
	return tb.rec.Advance(ctx, id)
}

func (tb *TaskBoard) Reorder(column domain.TaskStatus, from, to int) error {
	return tb.board.Reorder(column, from, to)
}

// Add shows the task at the end of its column right away under a temporary
// identity, which the server's identity replaces on success.
func (tb *TaskBoard) Add(ctx context.Context, in domain.TaskInput) *reconcile.Ticket {
	in.EventID = tb.eventID
	in.Title = strings.TrimSpace(in.Title)
	in.Status = domain.NormalizeStatus(in.Status)
	if in.Priority == "" {
		in.Priority = domain.PriorityMedium
	}
	tmp := domain.Task{
		ID:          tempID(),
		EventID:     in.EventID,
		Title:       in.Title,
		Description: in.Description,
		Assignee:    in.Assignee,
		DueDate:     in.DueDate,
		Priority:    in.Priority,
		Status:      in.Status,
	}

	return reconcile.Submit(ctx, tb.deps.Syncer, reconcile.Mutation[domain.Task]{
		Entity:   "task",
		Action:   "add",
		Key:      "task:" + tmp.ID.String(),
		Validate: func() error { return validateTaskInput(in) },
		Apply: func() func() {
			if err := tb.board.Insert(tmp, -1); err != nil {
				return nil
			}
			return func() { _, _, _ = tb.board.Remove(tmp.ID) }
		},
		Dispatch: func(ctx context.Context) (domain.Task, error) {
			return tb.api.CreateTask(ctx, in)
		},
		Confirm: func(server domain.Task) {
			if server.ID == "" {
				return
			}
			_ = tb.board.Replace(tmp.ID, server)
		},
		SuccessMessage: "Task added successfully",
		FailureMessage: "Failed to add task",
	})
}

// Edit applies a partial update. A failure reverts only the fields the
// edit changed and puts a moved task back at its old index.
func (tb *TaskBoard) Edit(ctx context.Context, id domain.ID, changes domain.TaskChanges) (*reconcile.Ticket, error) {
	if _, ok := tb.board.Task(id); !ok {
		return nil, fmt.Errorf("%w: %s", board.ErrTaskNotFound, id)
	}
	if changes.Empty() {
		return reconcile.Settled(reconcile.StateConfirmed, nil), nil
	}

	return reconcile.Submit(ctx, tb.deps.Syncer, reconcile.Mutation[domain.Task]{
		Entity:   "task",
		Action:   "update",
		Key:      "task:" + id.String(),
		Validate: func() error { return validateTaskChanges(changes) },
		Apply: func() func() {
			undo, prev, err := tb.board.Edit(id, changes)
			if err != nil {
				return nil
			}
			return func() { _ = tb.board.Revert(id, undo, prev) }
		},
		Dispatch: func(ctx context.Context) (domain.Task, error) {
			return tb.api.UpdateTask(ctx, id, changes)
		},
		Confirm: func(server domain.Task) {
			tb.board.Confirm(id, server)
		},
		FailureMessage: "Failed to update task",
	}), nil
}

// Delete asks for confirmation, then removes the task optimistically. A
// failure puts it back where it was.
func (tb *TaskBoard) Delete(ctx context.Context, id domain.ID) (*reconcile.Ticket, error) {
	task, ok := tb.board.Task(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", board.ErrTaskNotFound, id)
	}
	if err := tb.deps.confirm(ctx, deleteConfirmation("Task", task.Title)); err != nil {
		return nil, err
	}

	return reconcile.Submit(ctx, tb.deps.Syncer, reconcile.Mutation[noResult]{
		Entity: "task",
		Action: "delete",
		Key:    "task:" + id.String(),
		Apply: func() func() {
			removed, at, err := tb.board.Remove(id)
			if err != nil {
				return nil
			}
			return func() { _ = tb.board.Restore(removed, at) }
		},
		Dispatch: func(ctx context.Context) (noResult, error) {
			return discard(tb.api.DeleteTask(ctx, id))
		},
		SuccessMessage: "Task deleted",
		FailureMessage: "Failed to delete task",
	}), nil
}

func validateTaskInput(in domain.TaskInput) error {
	if in.Title == "" {
		return errors.New("Title is required")
	}
	if !in.Priority.Valid() {
		return fmt.Errorf("Unknown priority %q", in.Priority)
	}
	return nil
}

func validateTaskChanges(ch domain.TaskChanges) error {
	if ch.Title != nil && strings.TrimSpace(*ch.Title) == "" {
		return errors.New("Title is required")
	}
	if ch.Priority != nil && !ch.Priority.Valid() {
		return fmt.Errorf("Unknown priority %q", *ch.Priority)
	}
	if ch.Status != nil && !ch.Status.Valid() {
		return fmt.Errorf("Unknown status %q", *ch.Status)
	}
	return nil
}
