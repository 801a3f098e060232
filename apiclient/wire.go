package apiclient

import (
	"bytes"

	"github.com/bytedance/sonic"

	"event-planner/domain"
)

// The API is inconsistent about identity keys: records may carry "id",
// "_id" or a feature key such as "categoryId". The wire types below accept
// all of them and resolve one identity.

type wire[T any] interface {
	value() T
}

type wireTask struct {
	domain.Task
	AltID domain.ID `json:"_id"`
}

func (w wireTask) value() domain.Task {
	t := w.Task
	t.ID = domain.ResolveID(w.Task.ID, w.AltID)
	t.Status = domain.NormalizeStatus(t.Status)
	return t
}

type wireCategory struct {
	domain.Category
	AltID        domain.ID `json:"id"`
	CategoryID   domain.ID `json:"categoryId"`
	CategoryName string    `json:"categoryName"`
}

func (w wireCategory) value() domain.Category {
	c := w.Category
	c.ID = domain.ResolveID(w.AltID, w.Category.ID, w.CategoryID)
	if w.CategoryName != "" {
		c.Name = w.CategoryName
	}
	return c
}

type wireBudget struct {
	domain.Budget
	AltID      domain.ID      `json:"id"`
	Categories []wireCategory `json:"categories"`
}

func (w wireBudget) value() domain.Budget {
	b := w.Budget
	b.ID = domain.ResolveID(w.AltID, w.Budget.ID)
	b.Categories = make([]domain.Category, 0, len(w.Categories))
	for _, c := range w.Categories {
		b.Categories = append(b.Categories, c.value())
	}
	return b
}

type wireExpense struct {
	domain.Expense
	AltID domain.ID `json:"id"`
}

func (w wireExpense) value() domain.Expense {
	e := w.Expense
	e.ID = domain.ResolveID(w.AltID, w.Expense.ID)
	return e
}

type wireGuest struct {
	domain.Guest
	AltID domain.ID `json:"id"`
}

func (w wireGuest) value() domain.Guest {
	g := w.Guest
	g.ID = domain.ResolveID(w.AltID, w.Guest.ID, w.GuestID)
	return g
}

type wireEventGuest struct {
	domain.EventGuest
	AltID domain.ID `json:"id"`
}

func (w wireEventGuest) value() domain.EventGuest {
	g := w.EventGuest
	g.ID = domain.ResolveID(w.AltID, w.EventGuest.ID, w.GuestID)
	return g
}

type wireEvent struct {
	domain.Event
	AltID domain.ID `json:"id"`
}

func (w wireEvent) value() domain.Event {
	ev := w.Event
	ev.ID = domain.ResolveID(w.AltID, w.Event.ID)
	return ev
}

type wireNotification struct {
	domain.Notification
	AltID domain.ID `json:"id"`
}

func (w wireNotification) value() domain.Notification {
	n := w.Notification
	n.ID = domain.ResolveID(w.AltID, w.Notification.ID)
	return n
}

func isNull(data []byte) bool {
	data = bytes.TrimSpace(data)
	return len(data) == 0 || bytes.Equal(data, []byte("null"))
}

// decodeData unmarshals the data member into out. Missing data leaves out
// untouched.
func decodeData(resp Response, out any) error {
	if isNull(resp.Data) {
		return nil
	}
	return sonic.Unmarshal(resp.Data, out)
}

func decodeOne[T any, W wire[T]](resp Response) (T, error) {
	var w W
	if err := decodeData(resp, &w); err != nil {
		var zero T
		return zero, err
	}
	if isNull(resp.Data) {
		var zero T
		return zero, nil
	}
	return w.value(), nil
}

func decodeMany[T any, W wire[T]](resp Response) ([]T, error) {
	var ws []W
	if err := decodeData(resp, &ws); err != nil {
		return nil, err
	}
	out := make([]T, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.value())
	}
	return out, nil
}
