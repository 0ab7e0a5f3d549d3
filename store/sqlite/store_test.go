package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/xraph/griddispatch"
	"github.com/xraph/griddispatch/id"
	"github.com/xraph/griddispatch/store"
	"github.com/xraph/griddispatch/store/sqlite"
	"github.com/xraph/griddispatch/store/storetest"
)

func newTestStore(t *testing.T, path string) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return s
}

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return newTestStore(t, ":memory:")
	})
}

func TestQueueSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "griddispatch.db")
	ctx := context.Background()

	first := newTestStore(t, path)
	j := storetest.NewJob("work", id.NewTaskID())
	if err := first.Enqueue(ctx, j); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	second := newTestStore(t, path)
	got, err := second.TakeOne(ctx)
	if err != nil {
		t.Fatalf("TakeOne: %v", err)
	}
	if got == nil || got.ID.String() != j.ID.String() {
		t.Fatalf("TakeOne = %v, want %s", got, j.ID)
	}
}

func TestMigrate_RecordsEachFileOnce(t *testing.T) {
	s := newTestStore(t, ":memory:")
	ctx := context.Background()

	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	var applied int
	if err := s.DB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM griddispatch_migrations`,
	).Scan(&applied); err != nil {
		t.Fatalf("count: %v", err)
	}
	if applied != 1 {
		t.Errorf("applied = %d, want 1", applied)
	}
}

func TestNew_CallerOwnsHandle(t *testing.T) {
	owned := newTestStore(t, ":memory:")
	borrowed := sqlite.New(owned.DB())

	if err := borrowed.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := owned.Ping(context.Background()); err != nil {
		t.Fatalf("handle closed by borrowing store: %v", err)
	}

	err := borrowed.DeregisterNode(context.Background(), id.NewNodeID())
	if !errors.Is(err, griddispatch.ErrNodeNotFound) {
		t.Errorf("DeregisterNode = %v, want ErrNodeNotFound", err)
	}
}
