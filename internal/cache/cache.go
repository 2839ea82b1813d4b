// Package cache provides the shared key-value store used for the dashboard
// cache, quota default overrides, and skip-recording markers. The production
// backend is Redis; an in-process store backs tests and single-node setups.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Well-known key layout. Keys are flat strings so both backends behave
// identically.
const (
	KeyDashboard       = "c:dashboard"
	KeyDefaultsMaxSize = "h:defaults:max_size"
	KeyDefaultsMaxColl = "h:defaults:max_coll"
)

// SkipKey returns the key marking url as non-recordable for user.
func SkipKey(user, url string) string {
	return "skip:" + user + ":" + url
}

// Store is the key-value store contract. SetEx with a zero TTL stores the
// value without expiry. Concurrent SetEx on the same key is last-write-wins.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetEx(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}
