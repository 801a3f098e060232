package domain

import "strings"

// TaskStatus names a board column.
type TaskStatus string

const (
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in-progress"
	StatusDone       TaskStatus = "done"
)

// TaskStatuses lists the board columns in display order.
var TaskStatuses = [...]TaskStatus{StatusTodo, StatusInProgress, StatusDone}

func (s TaskStatus) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// Next returns the status a task advances to: todo -> in-progress -> done -> todo.
func (s TaskStatus) Next() TaskStatus {
	switch s {
	case StatusTodo:
		return StatusInProgress
	case StatusInProgress:
		return StatusDone
	default:
		return StatusTodo
	}
}

// Label is the human readable column name ("in progress").
func (s TaskStatus) Label() string {
	return strings.ReplaceAll(string(s), "-", " ")
}

// NormalizeStatus maps unknown or empty statuses to todo.
func NormalizeStatus(s TaskStatus) TaskStatus {
	s = TaskStatus(strings.ToLower(strings.TrimSpace(string(s))))
	if s.Valid() {
		return s
	}
	return StatusTodo
}

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

func (p Priority) Valid() bool {
	return p == PriorityHigh || p == PriorityMedium || p == PriorityLow
}

// Task represents a single board item of an event.
type Task struct {
	ID          ID         `json:"id"`
	EventID     ID         `json:"eventId,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Assignee    string     `json:"assignee,omitempty"`
	DueDate     string     `json:"dueDate,omitempty"`
	Priority    Priority   `json:"priority"`
	Status      TaskStatus `json:"status"`
}

// TaskInput carries the fields of a task created from the board form.
type TaskInput struct {
	EventID     ID         `json:"eventId"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Assignee    string     `json:"assignee,omitempty"`
	DueDate     string     `json:"dueDate,omitempty"`
	Priority    Priority   `json:"priority"`
	Status      TaskStatus `json:"status"`
}

// TaskChanges carries a partial task update. Nil fields are left untouched.
type TaskChanges struct {
	Title       *string     `json:"title,omitempty"`
	Description *string     `json:"description,omitempty"`
	Assignee    *string     `json:"assignee,omitempty"`
	DueDate     *string     `json:"dueDate,omitempty"`
	Priority    *Priority   `json:"priority,omitempty"`
	Status      *TaskStatus `json:"status,omitempty"`
}

func (c TaskChanges) Empty() bool {
	return c.Title == nil && c.Description == nil && c.Assignee == nil &&
		c.DueDate == nil && c.Priority == nil && c.Status == nil
}

// Apply writes the set fields into t and returns the previous values of
// exactly those fields, so that applying the result undoes the change.
func (c TaskChanges) Apply(t *Task) TaskChanges {
	var prev TaskChanges
	if c.Title != nil {
		prev.Title = Ptr(t.Title)
		t.Title = *c.Title
	}
	if c.Description != nil {
		prev.Description = Ptr(t.Description)
		t.Description = *c.Description
	}
	if c.Assignee != nil {
		prev.Assignee = Ptr(t.Assignee)
		t.Assignee = *c.Assignee
	}
	if c.DueDate != nil {
		prev.DueDate = Ptr(t.DueDate)
		t.DueDate = *c.DueDate
	}
	if c.Priority != nil {
		prev.Priority = Ptr(t.Priority)
		t.Priority = *c.Priority
	}
	if c.Status != nil {
		prev.Status = Ptr(t.Status)
		t.Status = *c.Status
	}
	return prev
}

// Ptr returns a pointer to v. Handy for building partial updates.
func Ptr[T any](v T) *T { return &v }
