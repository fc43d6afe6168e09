// Package cache holds the token cache contract, its backends, and the
// write-through Mirror the auth service reads from.
package cache

import (
	"context"
	"time"
)

// Cache stores a single token value with an optional expiry hint.
// A zero expiry means the value does not expire.
type Cache interface {
	Read(ctx context.Context) (value string, ok bool, err error)
	Write(ctx context.Context, value string, expiry time.Duration) error
	Drop(ctx context.Context) error
}

// expiresAt turns an expiry hint into an absolute time, nil for none.
func expiresAt(now time.Time, expiry time.Duration) *time.Time {
	if expiry <= 0 {
		return nil
	}
	t := now.Add(expiry).UTC()
	return &t
}
