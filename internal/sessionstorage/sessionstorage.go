// Package sessionstorage implements key-value storage for session records
// with a sliding TTL. There is a redis driver for deployment and a ttlcache
// backed memory driver for development and tests.
package sessionstorage

import (
	"context"
	"errors"
	"time"

	"github.com/gemeente-forms/management/internal/sessioninfo"
)

var (
	// ErrNotFound is returned when no record exists for a session ID. The
	// session manager treats this the same as an expired session.
	ErrNotFound = errors.New("session not found")

	// ErrVersionMismatch is returned by Put when the stored record's
	// version no longer matches the record being written.
	ErrVersionMismatch = errors.New("session version mismatch")
)

// Store is the session record store.
type Store interface {
	// Get returns the record for sessionID, or ErrNotFound.
	Get(ctx context.Context, sessionID string) (*sessioninfo.Record, error)

	// Put writes the record under sessionID with the given TTL. The write
	// is conditional on rec.Version matching the stored version (zero for
	// a record that does not exist yet); on success the version in rec is
	// incremented.
	Put(ctx context.Context, sessionID string, rec *sessioninfo.Record, ttl time.Duration) error

	// Delete removes the record. Deleting a missing record is not an error.
	Delete(ctx context.Context, sessionID string) error

	// Touch extends the record's TTL without modifying it.
	Touch(ctx context.Context, sessionID string, ttl time.Duration) error
}
