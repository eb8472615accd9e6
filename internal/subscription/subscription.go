// Package subscription holds the durable registry of active watches: one
// record per user, bounded to a one-week lifetime.
package subscription

import (
	"context"
	"errors"
	"time"
)

// Lifetime bounds every subscription. Records older than this are removed by
// housekeeping, never by the per-subscription check itself.
const Lifetime = 7 * 24 * time.Hour

var ErrNotFound = errors.New("subscription not found")

// Subscription is one user's standing availability watch.
type Subscription struct {
	// UserID is the opaque stable subscriber identifier (Telegram chat ID
	// in string form). Unique key: a user has at most one subscription.
	UserID string
	// DepartmentID references a catalog.Department.
	DepartmentID string
	// AppointmentType must match the department's catalog literally.
	AppointmentType string
	// Interval is how often availability is re-checked. Validated against
	// the configured minimum at creation and never mutated afterwards;
	// changing it means cancel + recreate.
	Interval time.Duration
	// CreatedAt is the origin for expiry.
	CreatedAt time.Time
}

// ExpiresAt is when housekeeping will drop the record.
func (s Subscription) ExpiresAt() time.Time { return s.CreatedAt.Add(Lifetime) }

// Store is the durable subscription table. All mutation is atomic per
// user_id (last write wins); Remove is idempotent.
type Store interface {
	// Get returns ErrNotFound when the user has no subscription.
	Get(ctx context.Context, userID string) (Subscription, error)
	// Put inserts or overwrites the user's subscription.
	Put(ctx context.Context, sub Subscription) error
	// Remove reports whether a record was actually deleted.
	Remove(ctx context.Context, userID string) (bool, error)
	// ListAll returns every record; order is not significant.
	ListAll(ctx context.Context) ([]Subscription, error)
	// Expire removes every record with CreatedAt at or before cutoff and
	// returns the affected user IDs.
	Expire(ctx context.Context, cutoff time.Time) ([]string, error)
	Close() error
}
