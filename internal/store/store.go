// Package store defines the task-operations contract shared by every
// backend. The guest store, the server-side sqlite store and the remote
// HTTP adapter all expose this same shape, so callers never care which one
// they are talking to.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/Utre17/tasksmart/internal/models"
)

// ErrNotFound is returned when a task id does not exist for the calling
// principal. A record owned by someone else is reported the same way, so
// the error never leaks existence across accounts.
var ErrNotFound = errors.New("task not found")

// ErrUnauthorized is returned when no verified principal is present.
var ErrUnauthorized = errors.New("not authorized")

// Store is the task-operations interface routed by the task manager.
type Store interface {
	List(ctx context.Context) ([]models.Task, error)
	Create(ctx context.Context, draft models.Draft) (models.Task, error)
	Update(ctx context.Context, id int64, changes models.Changes) (models.Task, error)
	Complete(ctx context.Context, id int64, completed bool) (models.Task, error)
	Delete(ctx context.Context, id int64) error
	ClearCompleted(ctx context.Context) (int, error)
}

// RetryableError wraps transient infrastructure failures (network timeouts,
// backend unavailability) so callers can offer a retry instead of treating
// the operation as permanently failed.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable: %v", e.Err)
}

func (e *RetryableError) Unwrap() error { return e.Err }

// Retryable tags err as transient.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// IsRetryable reports whether err is tagged as transient.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}
