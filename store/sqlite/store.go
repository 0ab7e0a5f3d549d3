package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/xraph/griddispatch"
	"github.com/xraph/griddispatch/cluster"
	"github.com/xraph/griddispatch/failure"
	"github.com/xraph/griddispatch/job"
	"github.com/xraph/griddispatch/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Ensure Store implements all subsystem interfaces at compile time.
var (
	_ job.Queue     = (*Store)(nil)
	_ failure.Store = (*Store)(nil)
	_ cluster.Store = (*Store)(nil)
	_ store.Store   = (*Store)(nil)
)

// Store is a SQLite implementation of store.Store.
type Store struct {
	db     *sql.DB
	owned  bool
	logger *slog.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Open opens (or creates) the database at path. Use ":memory:" for a
// private in-memory database. The store owns the handle and closes it on
// Close.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("griddispatch/sqlite: open %s: %w", path, err)
	}
	// One connection: SQLite serializes writers anyway, and ":memory:"
	// databases are per connection.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("griddispatch/sqlite: %s: %w", pragma, err)
		}
	}

	s := New(db, opts...)
	s.owned = true
	return s, nil
}

// New wraps an existing handle. The caller owns the db lifecycle; Close
// leaves it open.
func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{
		db:     db,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB returns the underlying *sql.DB for advanced usage.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate runs all embedded SQL migration files in filename order, once
// each.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS griddispatch_migrations (
			filename   TEXT PRIMARY KEY,
			applied_at INTEGER NOT NULL
		)`,
	); err != nil {
		return fmt.Errorf("%w: create migrations table: %w", griddispatch.ErrMigrationFailed, err)
	}

	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("%w: read migrations: %w", griddispatch.ErrMigrationFailed, err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		var applied int
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM griddispatch_migrations WHERE filename = ?`,
			entry.Name(),
		).Scan(&applied); err != nil {
			return fmt.Errorf("%w: check %s: %w", griddispatch.ErrMigrationFailed, entry.Name(), err)
		}
		if applied > 0 {
			continue
		}

		data, err := fs.ReadFile(migrationsFS, "migrations/"+entry.Name())
		if err != nil {
			return fmt.Errorf("%w: read %s: %w", griddispatch.ErrMigrationFailed, entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("%w: execute %s: %w", griddispatch.ErrMigrationFailed, entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO griddispatch_migrations (filename, applied_at) VALUES (?, ?)`,
			entry.Name(), time.Now().UTC().UnixNano(),
		); err != nil {
			return fmt.Errorf("%w: record %s: %w", griddispatch.ErrMigrationFailed, entry.Name(), err)
		}

		s.logger.Info("applied migration", slog.String("file", entry.Name()))
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the handle when the store opened it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

// ── helpers ──────────────────────────────────────────────────────

// isNoRows returns true when err indicates no rows were found.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// isDuplicateKey checks if a SQLite error is a unique constraint violation.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Timestamps are stored as UTC unix nanoseconds.
func toNanos(t time.Time) int64 { return t.UTC().UnixNano() }

func fromNanos(n int64) time.Time { return time.Unix(0, n).UTC() }
