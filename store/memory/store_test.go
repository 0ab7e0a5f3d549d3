package memory_test

import (
	"context"
	"testing"

	"github.com/xraph/griddispatch/id"
	"github.com/xraph/griddispatch/store"
	"github.com/xraph/griddispatch/store/memory"
	"github.com/xraph/griddispatch/store/storetest"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(_ *testing.T) store.Store { return memory.New() })
}

func TestSnapshot_ReturnsCopiesInOrder(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	a := storetest.NewJob("a", id.NewTaskID())
	b := storetest.NewJob("b", id.NewTaskID())
	_ = s.Enqueue(ctx, a)
	_ = s.Enqueue(ctx, b)

	snap := s.Snapshot()
	if len(snap) != 2 || snap[0].Name != "a" || snap[1].Name != "b" {
		t.Fatalf("snapshot = %v", snap)
	}
	snap[0].Name = "mutated"
	if s.Snapshot()[0].Name != "a" {
		t.Error("snapshot must not alias queued jobs")
	}
}

func TestEnqueue_CopiesJob(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	j := storetest.NewJob("a", id.NewTaskID())
	_ = s.Enqueue(ctx, j)
	j.Name = "changed"

	got, _ := s.TakeOne(ctx)
	if got.Name != "a" {
		t.Errorf("queued job aliased caller's struct: name = %q", got.Name)
	}
}
