package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when a referenced row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a compare-and-set update matched no row,
	// meaning another writer got there first.
	ErrConflict = errors.New("conflict")
	// ErrUnavailable wraps the last error after retries against an
	// unreachable store are exhausted.
	ErrUnavailable = errors.New("store unavailable")
)

const (
	retryAttempts  = 3
	retryBaseDelay = 100 * time.Millisecond
)

// withRetry runs op, retrying transient failures with exponential backoff.
// Statement-level rejections and missing rows are returned immediately;
// only connection-level failures are worth repeating.
func withRetry(ctx context.Context, op func() error) error {
	delay := retryBaseDelay
	var err error
	for attempt := 0; attempt < retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
		err = op()
		if err == nil || !retryable(err) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// The server parsed and rejected the statement; retrying cannot help.
		return false
	}
	return true
}
