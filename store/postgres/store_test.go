//go:build integration

package postgres_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	pgmodule "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xraph/griddispatch/store"
	"github.com/xraph/griddispatch/store/postgres"
	"github.com/xraph/griddispatch/store/storetest"
)

// setupTestStore starts one Postgres container for the test and returns a
// migrated store.
func setupTestStore(t *testing.T) *postgres.Store {
	t.Helper()

	ctx := context.Background()

	container, err := pgmodule.Run(ctx,
		"postgres:16-alpine",
		pgmodule.WithDatabase("griddispatch_test"),
		pgmodule.WithUsername("test"),
		pgmodule.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if termErr := container.Terminate(ctx); termErr != nil {
			t.Logf("terminate container: %v", termErr)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("get connection string: %v", err)
	}

	s, err := postgres.New(ctx, connStr, postgres.WithLogger(slog.Default()))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if migErr := s.Migrate(ctx); migErr != nil {
		t.Fatalf("migrate: %v", migErr)
	}
	return s
}

func TestConformance(t *testing.T) {
	s := setupTestStore(t)

	storetest.Run(t, func(t *testing.T) store.Store {
		t.Helper()
		if _, err := s.Pool().Exec(context.Background(),
			`TRUNCATE griddispatch_queue, griddispatch_failures, griddispatch_nodes`,
		); err != nil {
			t.Fatalf("truncate: %v", err)
		}
		return s
	})
}

func TestMigrate_Idempotent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for range 2 {
		if err := s.Migrate(ctx); err != nil {
			t.Fatalf("Migrate: %v", err)
		}
	}

	var applied int
	if err := s.Pool().QueryRow(ctx,
		`SELECT COUNT(*) FROM griddispatch_migrations`,
	).Scan(&applied); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if applied != 1 {
		t.Errorf("applied migrations = %d, want 1", applied)
	}
}
