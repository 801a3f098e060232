// Package apiclient talks to the planning API. Every endpoint answers with
// the {success, message, data} envelope.
package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Response is a decoded envelope. Data is left raw for the caller.
type Response struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Remote issues requests against paths relative to the API root.
type Remote interface {
	Get(ctx context.Context, path string) (Response, error)
	Post(ctx context.Context, path string, body any) (Response, error)
	Patch(ctx context.Context, path string, body any) (Response, error)
	Delete(ctx context.Context, path string) (Response, error)
}

// Error is a request the API refused, either with a non-2xx status or with
// success=false.
type Error struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, msg)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}
