package job

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// HandlerFunc is a type-erased job handler. It receives the raw payload
// and returns the raw result.
type HandlerFunc func(ctx context.Context, payload []byte) ([]byte, error)

// Registry maps job names to type-erased handlers. It is safe for
// concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

// NewRegistry creates an empty job registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]HandlerFunc)}
}

// RegisterDefinition registers a typed definition. The payload is
// JSON-decoded into T before the handler runs; the result is empty.
//
// This is a package-level generic function because Go does not allow
// generic methods on non-generic receiver types.
func RegisterDefinition[T any](r *Registry, def *Definition[T]) {
	r.Register(def.Name, func(ctx context.Context, payload []byte) ([]byte, error) {
		t, err := decode[T](def.Name, payload)
		if err != nil {
			return nil, err
		}
		return nil, def.Handler(ctx, t)
	})
}

// RegisterResultDefinition registers a typed definition that returns a
// value. The value is JSON-encoded into the handler result.
func RegisterResultDefinition[T, R any](r *Registry, def *ResultDefinition[T, R]) {
	r.Register(def.Name, func(ctx context.Context, payload []byte) ([]byte, error) {
		t, err := decode[T](def.Name, payload)
		if err != nil {
			return nil, err
		}
		out, err := def.Handler(ctx, t)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(out)
		if err != nil {
			return nil, fmt.Errorf("marshal result for job %q: %w", def.Name, err)
		}
		return data, nil
	})
}

// Register installs a raw handler, replacing any previous one.
func (r *Registry) Register(name string, h HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
}

// Get returns the handler for the given job name.
func (r *Registry) Get(name string) (HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Names returns all registered job names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	return names
}

func decode[T any](name string, payload []byte) (T, error) {
	var t T
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &t); err != nil {
			return t, fmt.Errorf("unmarshal payload for job %q: %w", name, err)
		}
	}
	return t, nil
}
