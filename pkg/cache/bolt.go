package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"pawpantry/larder/pkg/config"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketEntries = []byte("entries")
	bucketTags    = []byte("tags")
)

// tagSep separates tag and entry key in the tag index.
const tagSep = 0x00

// boltRecord is the stored form of an Entry.
type boltRecord struct {
	Body      []byte    `json:"body"`
	Tags      []string  `json:"tags,omitempty"`
	StoredAt  time.Time `json:"stored_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// BoltStore is a Store in a single bbolt file. The tags bucket indexes
// "tag\x00key" so invalidation is a prefix scan.
type BoltStore struct {
	db         *bolt.DB
	maxEntries int
	logger     *slog.Logger
}

// NewBoltStore opens (creating if needed) the bbolt database at cfg.Path.
func NewBoltStore(cfg config.BoltConfig, maxEntries int) (*BoltStore, error) {
	if cfg.Path == "" {
		return nil, errors.New("bolt path cannot be empty")
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	timeout := cfg.OpenTimeout
	if timeout == 0 {
		timeout = config.DefaultBoltOpenTimeout
	}

	db, err := bolt.Open(cfg.Path, 0o600, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketEntries, bucketTags} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	s := &BoltStore{
		db:         db,
		maxEntries: maxEntries,
		logger:     slog.Default().With("component", "cache.bolt"),
	}
	s.logger.Info("bolt cache opened", "path", cfg.Path, "max_entries", maxEntries)

	return s, nil
}

// Get implements Store.
func (s *BoltStore) Get(_ context.Context, key string) (*Entry, error) {
	var entry *Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		rec, err := getRecord(tx, key)
		if err != nil {
			return err
		}
		entry = rec.entry(key)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Set implements Store.
func (s *BoltStore) Set(_ context.Context, entry *Entry) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := deleteKey(tx, entry.Key); err != nil {
			return err
		}

		data, err := json.Marshal(boltRecord{
			Body:      entry.Body,
			Tags:      entry.Tags,
			StoredAt:  entry.StoredAt,
			ExpiresAt: entry.ExpiresAt,
		})
		if err != nil {
			return fmt.Errorf("failed to encode entry: %w", err)
		}
		if err := tx.Bucket(bucketEntries).Put([]byte(entry.Key), data); err != nil {
			return fmt.Errorf("failed to write entry: %w", err)
		}
		for _, tag := range entry.Tags {
			if err := tx.Bucket(bucketTags).Put(tagKey(tag, entry.Key), nil); err != nil {
				return fmt.Errorf("failed to write tag: %w", err)
			}
		}

		return s.evict(tx)
	})
}

// evict removes the oldest entries beyond maxEntries.
func (s *BoltStore) evict(tx *bolt.Tx) error {
	if s.maxEntries <= 0 {
		return nil
	}
	b := tx.Bucket(bucketEntries)
	over := countKeys(b) - s.maxEntries
	if over <= 0 {
		return nil
	}

	type aged struct {
		key      string
		storedAt time.Time
	}
	var all []aged
	err := b.ForEach(func(k, v []byte) error {
		var rec boltRecord
		if err := json.Unmarshal(v, &rec); err != nil {
			return err
		}
		all = append(all, aged{key: string(k), storedAt: rec.StoredAt})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to scan entries: %w", err)
	}

	slices.SortFunc(all, func(a, b aged) int {
		if c := a.storedAt.Compare(b.storedAt); c != 0 {
			return c
		}
		return bytes.Compare([]byte(a.key), []byte(b.key))
	})
	for _, a := range all[:over] {
		if err := deleteKey(tx, a.key); err != nil {
			return err
		}
	}
	return nil
}

// Delete implements Store.
func (s *BoltStore) Delete(_ context.Context, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return deleteKey(tx, key)
	})
}

// InvalidateTag implements Store.
func (s *BoltStore) InvalidateTag(_ context.Context, tag string) (int, error) {
	removed := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		prefix := tagKey(tag, "")

		var keys []string
		c := tx.Bucket(bucketTags).Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			keys = append(keys, string(k[len(prefix):]))
		}

		for _, key := range keys {
			if err := deleteKey(tx, key); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	return removed, err
}

// PruneExpired implements Store.
func (s *BoltStore) PruneExpired(_ context.Context, before time.Time) (int, error) {
	return s.removeWhere(func(rec *boltRecord) bool { return rec.ExpiresAt.Before(before) })
}

// Purge implements Store.
func (s *BoltStore) Purge(_ context.Context) (int, error) {
	return s.removeWhere(func(*boltRecord) bool { return true })
}

// Len implements Store.
func (s *BoltStore) Len(_ context.Context) (int, error) {
	n := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		n = countKeys(tx.Bucket(bucketEntries))
		return nil
	})
	return n, err
}

// Close implements Store.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) removeWhere(match func(*boltRecord) bool) (int, error) {
	removed := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		var keys []string
		err := tx.Bucket(bucketEntries).ForEach(func(k, v []byte) error {
			var rec boltRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			if match(&rec) {
				keys = append(keys, string(k))
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to scan entries: %w", err)
		}

		for _, key := range keys {
			if err := deleteKey(tx, key); err != nil {
				return err
			}
		}
		removed = len(keys)
		return nil
	})
	return removed, err
}

func getRecord(tx *bolt.Tx, key string) (*boltRecord, error) {
	data := tx.Bucket(bucketEntries).Get([]byte(key))
	if data == nil {
		return nil, ErrNotFound
	}
	var rec boltRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode entry: %w", err)
	}
	return &rec, nil
}

// deleteKey removes an entry and its tag index rows.
func deleteKey(tx *bolt.Tx, key string) error {
	rec, err := getRecord(tx, key)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	tags := tx.Bucket(bucketTags)
	for _, tag := range rec.Tags {
		if err := tags.Delete(tagKey(tag, key)); err != nil {
			return fmt.Errorf("failed to delete tag: %w", err)
		}
	}
	if err := tx.Bucket(bucketEntries).Delete([]byte(key)); err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	return nil
}

func countKeys(b *bolt.Bucket) int {
	n := 0
	c := b.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		n++
	}
	return n
}

func tagKey(tag, key string) []byte {
	b := make([]byte, 0, len(tag)+1+len(key))
	b = append(b, tag...)
	b = append(b, tagSep)
	return append(b, key...)
}

func (r *boltRecord) entry(key string) *Entry {
	return &Entry{
		Key:       key,
		Body:      r.Body,
		Tags:      r.Tags,
		StoredAt:  r.StoredAt,
		ExpiresAt: r.ExpiresAt,
	}
}
