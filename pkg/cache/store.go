package cache

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"pawpantry/larder/pkg/config"
)

// ErrNotFound is returned by Get when no entry exists for the key.
var ErrNotFound = errors.New("cache: entry not found")

// Entry is a cached response body.
type Entry struct {
	Key  string
	Body []byte

	// Tags group entries for invalidation, e.g. "wp".
	Tags []string

	StoredAt  time.Time
	ExpiresAt time.Time
}

// Fresh reports whether the entry may be served without revalidation.
func (e *Entry) Fresh(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}

// HasTag reports whether the entry carries tag.
func (e *Entry) HasTag(tag string) bool {
	return slices.Contains(e.Tags, tag)
}

func (e *Entry) clone() *Entry {
	c := *e
	c.Body = slices.Clone(e.Body)
	c.Tags = slices.Clone(e.Tags)
	return &c
}

// Store persists cache entries. Expired entries stay readable until they
// are pruned so callers can serve them as stale data.
type Store interface {
	// Get returns the entry for key or ErrNotFound.
	Get(ctx context.Context, key string) (*Entry, error)

	// Set inserts or replaces an entry. Stores with a capacity evict the
	// oldest entries to make room.
	Set(ctx context.Context, entry *Entry) error

	// Delete removes the entry for key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// InvalidateTag removes every entry carrying tag and returns how many
	// were removed.
	InvalidateTag(ctx context.Context, tag string) (int, error)

	// PruneExpired removes entries whose ExpiresAt is before the cutoff.
	PruneExpired(ctx context.Context, before time.Time) (int, error)

	// Purge removes every entry.
	Purge(ctx context.Context) (int, error)

	// Len returns the number of stored entries.
	Len(ctx context.Context) (int, error)

	Close() error
}

// Recorder receives cache measurements. *metrics.Collector satisfies it.
type Recorder interface {
	RecordCacheHit(cacheName string)
	RecordCacheMiss(cacheName string)
	RecordCacheEviction(cacheName string, count int)
	UpdateCacheSize(cacheName string, size int)
}

type noopRecorder struct{}

func (noopRecorder) RecordCacheHit(string)           {}
func (noopRecorder) RecordCacheMiss(string)          {}
func (noopRecorder) RecordCacheEviction(string, int) {}
func (noopRecorder) UpdateCacheSize(string, int)     {}

// Open creates the store selected by cfg.Backend.
func Open(cfg config.CacheConfig) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(cfg.MaxEntries), nil
	case "sqlite":
		return NewSQLiteStore(cfg.SQLite, cfg.MaxEntries)
	case "bolt":
		return NewBoltStore(cfg.Bolt, cfg.MaxEntries)
	default:
		return nil, fmt.Errorf("unsupported cache backend %q", cfg.Backend)
	}
}
