// Package board keeps the Kanban partitions of an event's tasks and moves
// tasks between them optimistically.
package board

import (
	"errors"
	"fmt"
	"sync"

	"event-planner/domain"
)

var (
	ErrTaskNotFound    = errors.New("task not found")
	ErrTaskNotInColumn = errors.New("task is not in the source column")
	ErrUnknownColumn   = errors.New("unknown column")
	ErrIndexOutOfRange = errors.New("index out of range")
)

// Partitions is a snapshot of the three columns. Slices are never shared
// with the board.
type Partitions struct {
	Todo       []domain.Task `json:"todo"`
	InProgress []domain.Task `json:"inProgress"`
	Done       []domain.Task `json:"done"`
}

// Column returns the tasks of status s.
func (p Partitions) Column(s domain.TaskStatus) []domain.Task {
	switch s {
	case domain.StatusTodo:
		return p.Todo
	case domain.StatusInProgress:
		return p.InProgress
	case domain.StatusDone:
		return p.Done
	default:
		return nil
	}
}

func (p Partitions) Len() int {
	return len(p.Todo) + len(p.InProgress) + len(p.Done)
}

// Placement locates a task on the board.
type Placement struct {
	Status domain.TaskStatus `json:"status"`
	Index  int               `json:"index"`
}

// Board is the single writer of column membership. Every task sits in
// exactly the column named by its status.
type Board struct {
	mu      sync.RWMutex
	tasks   map[domain.ID]domain.Task
	order   map[domain.TaskStatus][]domain.ID
	version uint64
	broker  *broker
}

func New() *Board {
	return &Board{
		tasks:  make(map[domain.ID]domain.Task),
		order:  emptyOrder(),
		broker: newBroker(),
	}
}

func emptyOrder() map[domain.TaskStatus][]domain.ID {
	out := make(map[domain.TaskStatus][]domain.ID, len(domain.TaskStatuses))
	for _, s := range domain.TaskStatuses {
		out[s] = nil
	}
	return out
}

// Load replaces the board content. Unknown statuses land in todo; a repeated
// id keeps its first position and the last representation.
func (b *Board) Load(tasks []domain.Task) {
	b.mu.Lock()
	b.tasks = make(map[domain.ID]domain.Task, len(tasks))
	b.order = emptyOrder()
	for _, t := range tasks {
		t.Status = domain.NormalizeStatus(t.Status)
		if prev, ok := b.tasks[t.ID]; ok {
			b.order[prev.Status] = removeID(b.order[prev.Status], t.ID)
		}
		b.tasks[t.ID] = t
		b.order[t.Status] = append(b.order[t.Status], t.ID)
	}
	b.bump()
	b.mu.Unlock()
}

// Snapshot returns the current partitions.
func (b *Board) Snapshot() Partitions {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Partitions{
		Todo:       b.column(domain.StatusTodo),
		InProgress: b.column(domain.StatusInProgress),
		Done:       b.column(domain.StatusDone),
	}
}

func (b *Board) column(s domain.TaskStatus) []domain.Task {
	ids := b.order[s]
	out := make([]domain.Task, 0, len(ids))
	for _, id := range ids {
		out = append(out, b.tasks[id])
	}
	return out
}

// Version increases on every change.
func (b *Board) Version() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.version
}

func (b *Board) Task(id domain.ID) (domain.Task, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	t, ok := b.tasks[id]
	return t, ok
}

// Locate returns where id currently sits.
func (b *Board) Locate(id domain.ID) (Placement, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.locate(id)
}

func (b *Board) locate(id domain.ID) (Placement, bool) {
	t, ok := b.tasks[id]
	if !ok {
		return Placement{}, false
	}
	return Placement{Status: t.Status, Index: indexOf(b.order[t.Status], id)}, true
}

// Subscribe returns a channel signalled after changes and a func releasing it.
func (b *Board) Subscribe() (<-chan struct{}, func()) {
	ch := b.broker.subscribe()
	return ch, func() { b.broker.unsubscribe(ch) }
}

// Reorder moves a task within one column. It is a local-only change.
func (b *Board) Reorder(s domain.TaskStatus, from, to int) error {
	if !s.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownColumn, s)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := b.order[s]
	if from < 0 || from >= len(ids) || to < 0 || to >= len(ids) {
		return fmt.Errorf("%w: %d -> %d in %s of %d", ErrIndexOutOfRange, from, to, s, len(ids))
	}
	if from == to {
		return nil
	}
	id := ids[from]
	ids = append(ids[:from:from], ids[from+1:]...)
	b.order[s] = insertID(ids, id, to)
	b.bump()
	return nil
}

// Insert adds t to the column of its status at index, or at the end when
// index is negative or past the end.
func (b *Board) Insert(t domain.Task, index int) error {
	t.Status = domain.NormalizeStatus(t.Status)
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.tasks[t.ID]; exists {
		return fmt.Errorf("task %s already on board", t.ID)
	}
	b.tasks[t.ID] = t
	b.order[t.Status] = insertID(b.order[t.Status], t.ID, index)
	b.bump()
	return nil
}

// Replace swaps the task stored under id for t, keeping its position when
// the status is unchanged. t may carry a new identity.
func (b *Board) Replace(id domain.ID, t domain.Task) error {
	t.Status = domain.NormalizeStatus(t.Status)
	if t.ID == "" {
		t.ID = id
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	prev, ok := b.tasks[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	idx := indexOf(b.order[prev.Status], id)
	b.order[prev.Status] = removeID(b.order[prev.Status], id)
	delete(b.tasks, id)
	if other, clash := b.tasks[t.ID]; clash {
		b.order[other.Status] = removeID(b.order[other.Status], t.ID)
	}
	b.tasks[t.ID] = t
	if t.Status != prev.Status {
		idx = -1
	}
	b.order[t.Status] = insertID(b.order[t.Status], t.ID, idx)
	b.bump()
	return nil
}

// Update applies changes to the task and returns the previous values of the
// fields it touched. A status change moves the task to the end of its new
// column.
func (b *Board) Update(id domain.ID, changes domain.TaskChanges) (domain.TaskChanges, error) {
	undo, _, err := b.Edit(id, changes)
	return undo, err
}

// Edit is Update that also reports where the task sat before the change.
func (b *Board) Edit(id domain.ID, changes domain.TaskChanges) (domain.TaskChanges, Placement, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.locate(id)
	if !ok {
		return domain.TaskChanges{}, Placement{}, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	t := b.tasks[id]
	undo := changes.Apply(&t)
	t.Status = domain.NormalizeStatus(t.Status)
	b.tasks[id] = t
	if t.Status != p.Status {
		b.order[p.Status] = removeID(b.order[p.Status], id)
		b.order[t.Status] = append(b.order[t.Status], id)
	}
	b.bump()
	return undo, p, nil
}

// Revert applies the undo set of an Edit. When it restores a status, the
// task goes back to the index of p, clamped to the column's length.
func (b *Board) Revert(id domain.ID, undo domain.TaskChanges, p Placement) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.tasks[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	cur := t.Status
	undo.Apply(&t)
	t.Status = domain.NormalizeStatus(t.Status)
	b.tasks[id] = t
	if undo.Status != nil {
		b.order[cur] = removeID(b.order[cur], id)
		b.order[t.Status] = insertID(b.order[t.Status], id, p.Index)
	}
	b.bump()
	return nil
}

// Remove takes a task off the board and reports where it was.
func (b *Board) Remove(id domain.ID) (domain.Task, Placement, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.locate(id)
	if !ok {
		return domain.Task{}, Placement{}, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	t := b.tasks[id]
	delete(b.tasks, id)
	b.order[p.Status] = removeID(b.order[p.Status], id)
	b.bump()
	return t, p, nil
}

// Restore puts a removed task back at its placement, clamped to the
// column's current length.
func (b *Board) Restore(t domain.Task, p Placement) error {
	t.Status = p.Status
	return b.Insert(t, p.Index)
}

// moveTo changes the status of id and inserts it at index of the target
// column. It returns the placement the task had before.
func (b *Board) moveTo(id domain.ID, to domain.TaskStatus, index int) (Placement, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.locate(id)
	if !ok {
		return Placement{}, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	t := b.tasks[id]
	b.order[p.Status] = removeID(b.order[p.Status], id)
	t.Status = to
	b.tasks[id] = t
	b.order[to] = insertID(b.order[to], id, index)
	b.bump()
	return p, nil
}

// Confirm folds the server's representation of a task into the board. An
// empty payload or a task removed meanwhile is ignored.
func (b *Board) Confirm(id domain.ID, server domain.Task) {
	if server.ID == "" && server.Title == "" {
		return
	}
	b.mu.RLock()
	_, ok := b.tasks[id]
	b.mu.RUnlock()
	if !ok {
		return
	}
	_ = b.Replace(id, server)
}

// revertMove restores the prior status and position of id, even when
// another move has happened since.
func (b *Board) revertMove(id domain.ID, prev Placement) {
	_, _ = b.moveTo(id, prev.Status, prev.Index)
}

func (b *Board) bump() {
	b.version++
	b.broker.notify()
}

func indexOf(ids []domain.ID, id domain.ID) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

func removeID(ids []domain.ID, id domain.ID) []domain.ID {
	i := indexOf(ids, id)
	if i < 0 {
		return ids
	}
	out := make([]domain.ID, 0, len(ids)-1)
	out = append(out, ids[:i]...)
	return append(out, ids[i+1:]...)
}

func insertID(ids []domain.ID, id domain.ID, index int) []domain.ID {
	if index < 0 || index > len(ids) {
		index = len(ids)
	}
	out := make([]domain.ID, 0, len(ids)+1)
	out = append(out, ids[:index]...)
	out = append(out, id)
	return append(out, ids[index:]...)
}
