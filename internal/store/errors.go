// Package store implements the persistence layer over SQLite. Each entity
// gets its own store type holding the shared *sql.DB; all mutation of shared
// state goes through these stores so the uniqueness and atomicity invariants
// hold under concurrent requests.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

// Sentinel failures raised by the stores. Handlers translate these into HTTP
// status codes; anything else surfaces as an internal error.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidInput = errors.New("invalid input")
)

// isBusy reports whether err looks like transient SQLite writer contention.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// retryBusy runs fn, retrying exactly once after a short pause if it failed
// on writer contention. Non-transient errors surface immediately.
func retryBusy(ctx context.Context, fn func() error) error {
	backoff := retry.WithMaxRetries(1, retry.NewConstant(50*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := fn(); err != nil {
			if isBusy(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
}
