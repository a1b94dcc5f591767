package repo

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidDocument = errors.New("invalid document: cannot be nil")
	ErrInvalidID       = errors.New("invalid id: cannot be empty")
)

const (
	defaultWriteTimeout = 5 * time.Second
	defaultReadTimeout  = 30 * time.Second

	maxRetries     = 3
	baseRetryDelay = 100 * time.Millisecond
	maxRetryDelay  = 2 * time.Second
)

// ensureTimeout attaches a default deadline when the caller did not set one.
func ensureTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, hadDeadline := ctx.Deadline(); hadDeadline {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
