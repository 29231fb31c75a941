package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"pawpantry/larder/pkg/config"

	_ "github.com/mattn/go-sqlite3" // registers "sqlite3" (cgo)
	_ "modernc.org/sqlite"          // registers "sqlite" (pure Go)
)

// SQLiteStore is a Store persisted in a SQLite database so cached content
// survives restarts. Tags live in a side table for indexed invalidation.
type SQLiteStore struct {
	db         *sql.DB
	maxEntries int
	logger     *slog.Logger
}

// NewSQLiteStore opens (creating if needed) the database at cfg.Path using
// cfg.Driver: "sqlite" (modernc, pure Go) or "sqlite3" (mattn, cgo).
func NewSQLiteStore(cfg config.SQLiteConfig, maxEntries int) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, errors.New("sqlite path cannot be empty")
	}
	driver := cfg.Driver
	if driver == "" {
		driver = config.DefaultSQLiteDriver
	}
	if driver != "sqlite" && driver != "sqlite3" {
		return nil, fmt.Errorf("unsupported sqlite driver %q", driver)
	}

	if dir := filepath.Dir(cfg.Path); dir != "." && cfg.Path != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	db, err := sql.Open(driver, cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports a single writer; one connection also keeps the
	// per-connection pragmas below in effect.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStore{
		db:         db,
		maxEntries: maxEntries,
		logger:     slog.Default().With("component", "cache.sqlite"),
	}

	if err := s.initialize(cfg); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info("sqlite cache opened",
		"path", cfg.Path,
		"driver", driver,
		"wal_mode", cfg.WALMode,
		"max_entries", maxEntries,
	)

	return s, nil
}

func (s *SQLiteStore) initialize(cfg config.SQLiteConfig) error {
	if cfg.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	busyTimeout := cfg.BusyTimeout
	if busyTimeout == 0 {
		busyTimeout = config.DefaultSQLiteBusyTimeout
	}
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", busyTimeout.Milliseconds())); err != nil {
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if _, err := s.db.Exec(sqliteSchema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, key string) (*Entry, error) {
	var (
		body                []byte
		storedAt, expiresAt int64
	)
	err := s.db.QueryRowContext(ctx, sqlSelectEntry, key).Scan(&body, &storedAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read entry: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlSelectTags, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read tags: %w", err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read tags: %w", err)
	}

	return &Entry{
		Key:       key,
		Body:      body,
		Tags:      tags,
		StoredAt:  time.Unix(0, storedAt),
		ExpiresAt: time.Unix(0, expiresAt),
	}, nil
}

// Set implements Store.
func (s *SQLiteStore) Set(ctx context.Context, entry *Entry) error {
	body := entry.Body
	if body == nil {
		body = []byte{}
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, sqlUpsertEntry, entry.Key, body, entry.StoredAt.UnixNano(), entry.ExpiresAt.UnixNano()); err != nil {
			return fmt.Errorf("failed to write entry: %w", err)
		}
		if _, err := tx.ExecContext(ctx, sqlDeleteTags, entry.Key); err != nil {
			return fmt.Errorf("failed to clear tags: %w", err)
		}
		for _, tag := range entry.Tags {
			if _, err := tx.ExecContext(ctx, sqlInsertTag, entry.Key, tag); err != nil {
				return fmt.Errorf("failed to write tag: %w", err)
			}
		}

		if s.maxEntries <= 0 {
			return nil
		}
		var count int
		if err := tx.QueryRowContext(ctx, sqlCountEntries).Scan(&count); err != nil {
			return fmt.Errorf("failed to count entries: %w", err)
		}
		if over := count - s.maxEntries; over > 0 {
			if _, err := tx.ExecContext(ctx, sqlEvictOldest, over); err != nil {
				return fmt.Errorf("failed to evict entries: %w", err)
			}
			if _, err := tx.ExecContext(ctx, sqlDeleteOrphans); err != nil {
				return fmt.Errorf("failed to clean tags: %w", err)
			}
			s.logger.Debug("evicted cache entries", "count", over)
		}
		return nil
	})
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, sqlDeleteEntry, key); err != nil {
			return fmt.Errorf("failed to delete entry: %w", err)
		}
		if _, err := tx.ExecContext(ctx, sqlDeleteTags, key); err != nil {
			return fmt.Errorf("failed to delete tags: %w", err)
		}
		return nil
	})
}

// InvalidateTag implements Store.
func (s *SQLiteStore) InvalidateTag(ctx context.Context, tag string) (int, error) {
	return s.deleteWhere(ctx, sqlDeleteTagged, tag)
}

// PruneExpired implements Store.
func (s *SQLiteStore) PruneExpired(ctx context.Context, before time.Time) (int, error) {
	return s.deleteWhere(ctx, sqlDeleteExpired, before.UnixNano())
}

// Purge implements Store.
func (s *SQLiteStore) Purge(ctx context.Context) (int, error) {
	return s.deleteWhere(ctx, sqlDeleteAll)
}

// Len implements Store.
func (s *SQLiteStore) Len(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, sqlCountEntries).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return count, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) deleteWhere(ctx context.Context, query string, args ...any) (int, error) {
	var removed int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to delete entries: %w", err)
		}
		removed, _ = res.RowsAffected()
		if _, err := tx.ExecContext(ctx, sqlDeleteOrphans); err != nil {
			return fmt.Errorf("failed to clean tags: %w", err)
		}
		return nil
	})
	return int(removed), err
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
