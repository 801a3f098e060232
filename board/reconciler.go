package board

import (
	"context"
	"fmt"

	"event-planner/domain"
	"event-planner/reconcile"
)

// TaskUpdater persists a status change and returns the server's task.
type TaskUpdater interface {
	UpdateTaskStatus(ctx context.Context, id domain.ID, status domain.TaskStatus) (domain.Task, error)
}

// Reconciler moves tasks across columns: apply locally, persist remotely,
// then confirm or roll back.
type Reconciler struct {
	board  *Board
	remote TaskUpdater
	syncer *reconcile.Syncer
}

func NewReconciler(b *Board, remote TaskUpdater, syncer *reconcile.Syncer) *Reconciler {
	return &Reconciler{board: b, remote: remote, syncer: syncer}
}

func (r *Reconciler) Board() *Board { return r.board }

// Move drops task id from column from into column to at toIndex. Moves
// inside one column only reorder and never reach the server.
func (r *Reconciler) Move(ctx context.Context, id domain.ID, from, to domain.TaskStatus, toIndex int) (*reconcile.Ticket, error) {
	if !from.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, from)
	}
	if !to.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, to)
	}
	p, ok := r.board.Locate(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	if p.Status != from {
		return nil, fmt.Errorf("%w: %s is in %s, not %s", ErrTaskNotInColumn, id, p.Status, from)
	}

	if from == to {
		n := len(r.board.Snapshot().Column(from))
		if toIndex < 0 || toIndex >= n {
			toIndex = n - 1
		}
		if toIndex == p.Index {
			return reconcile.Settled(reconcile.StateConfirmed, nil), nil
		}
		if err := r.board.Reorder(from, p.Index, toIndex); err != nil {
			return nil, err
		}
		return reconcile.Settled(reconcile.StateConfirmed, nil), nil
	}

	return r.submit(ctx, id, to, toIndex), nil
}

// Advance cycles the task to the next status, appending it to that column.
func (r *Reconciler) Advance(ctx context.Context, id domain.ID) (*reconcile.Ticket, error) {
	t, ok := r.board.Task(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	return r.Move(ctx, id, t.Status, t.Status.Next(), -1)
}

// submit applies the move before handing it to the syncer. A task gone from
// the board by then is rejected without reaching the server.
func (r *Reconciler) submit(ctx context.Context, id domain.ID, to domain.TaskStatus, toIndex int) *reconcile.Ticket {
	prev, err := r.board.moveTo(id, to, toIndex)
	if err != nil {
		return reconcile.Settled(reconcile.StateRejected, err)
	}
	return reconcile.Submit(ctx, r.syncer, reconcile.Mutation[domain.Task]{
		Entity: "task",
		Action: "move",
		Key:    "task:" + id.String(),
		Apply: func() func() {
			return func() { r.board.revertMove(id, prev) }
		},
		Dispatch: func(ctx context.Context) (domain.Task, error) {
			return r.remote.UpdateTaskStatus(ctx, id, to)
		},
		Confirm: func(server domain.Task) {
			r.board.Confirm(id, server)
		},
		FailureMessage: "Failed to update task status",
	})
}
