package job_test

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"testing"

	"github.com/xraph/griddispatch/id"
	"github.com/xraph/griddispatch/job"
)

type resizePayload struct {
	URL   string `json:"url"`
	Width int    `json:"width"`
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := job.NewRegistry()

	var got resizePayload
	job.RegisterDefinition(r, job.NewDefinition("resize", func(_ context.Context, p resizePayload) error {
		got = p
		return nil
	}))

	h, ok := r.Get("resize")
	if !ok {
		t.Fatal("expected handler to be registered")
	}

	payload, _ := json.Marshal(resizePayload{URL: "s3://bucket/a.png", Width: 640})
	out, err := h(context.Background(), payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != nil {
		t.Errorf("expected empty result, got %q", out)
	}
	if got.URL != "s3://bucket/a.png" || got.Width != 640 {
		t.Errorf("payload = %+v", got)
	}
}

func TestRegistry_ResultDefinition(t *testing.T) {
	r := job.NewRegistry()
	job.RegisterResultDefinition(r, job.NewResultDefinition("double", func(_ context.Context, n int) (int, error) {
		return n * 2, nil
	}))

	h, _ := r.Get("double")
	out, err := h(context.Background(), []byte("21"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out) != "42" {
		t.Errorf("result = %q, want %q", out, "42")
	}
}

func TestRegistry_GetUnknown(t *testing.T) {
	r := job.NewRegistry()
	if _, ok := r.Get("nonexistent"); ok {
		t.Fatal("expected no handler for unregistered job")
	}
}

func TestRegistry_Names(t *testing.T) {
	r := job.NewRegistry()
	job.RegisterDefinition(r, job.NewDefinition("job-a", func(_ context.Context, _ struct{}) error { return nil }))
	job.RegisterDefinition(r, job.NewDefinition("job-b", func(_ context.Context, _ struct{}) error { return nil }))

	names := r.Names()
	sort.Strings(names)
	if len(names) != 2 || names[0] != "job-a" || names[1] != "job-b" {
		t.Fatalf("names = %v", names)
	}
}

func TestRegistry_InvalidJSON(t *testing.T) {
	r := job.NewRegistry()
	job.RegisterDefinition(r, job.NewDefinition("typed-job", func(_ context.Context, _ resizePayload) error {
		t.Fatal("handler should not be called with invalid JSON")
		return nil
	}))

	h, _ := r.Get("typed-job")
	if _, err := h(context.Background(), []byte(`{invalid json`)); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestRegistry_HandlerError(t *testing.T) {
	r := job.NewRegistry()
	want := errors.New("handler failed")
	job.RegisterDefinition(r, job.NewDefinition("failing", func(_ context.Context, _ struct{}) error {
		return want
	}))

	h, _ := r.Get("failing")
	if _, err := h(context.Background(), nil); !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

func TestNew(t *testing.T) {
	task := id.NewTaskID()
	j, err := job.New("resize", task, resizePayload{URL: "a", Width: 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if j.ID.Prefix() != id.PrefixJob {
		t.Errorf("job id prefix = %q", j.ID.Prefix())
	}
	if j.TaskID.String() != task.String() {
		t.Errorf("task id = %q, want %q", j.TaskID, task)
	}
	if string(j.Payload) != `{"url":"a","width":1}` {
		t.Errorf("payload = %s", j.Payload)
	}
	if j.EnqueuedAt.IsZero() {
		t.Error("expected EnqueuedAt to be set")
	}

	empty, err := job.New("noop", task, nil)
	if err != nil {
		t.Fatalf("New(nil): %v", err)
	}
	if len(empty.Payload) != 0 {
		t.Errorf("expected empty payload, got %s", empty.Payload)
	}

	if _, err := job.New("bad", task, make(chan int)); err == nil {
		t.Error("expected marshal error for channel payload")
	}
}
