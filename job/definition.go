package job

import "context"

// Definition is a typed job definition whose handler reports only an
// error. T is the payload type and must be JSON-serializable.
type Definition[T any] struct {
	// Name is the unique identifier for this job type.
	Name string

	// Handler processes the decoded payload.
	Handler func(ctx context.Context, payload T) error
}

// NewDefinition creates a typed job definition.
func NewDefinition[T any](name string, handler func(ctx context.Context, payload T) error) *Definition[T] {
	return &Definition[T]{Name: name, Handler: handler}
}

// ResultDefinition is a typed job definition whose handler produces a
// value. The value is JSON-encoded into the grid result.
type ResultDefinition[T, R any] struct {
	Name    string
	Handler func(ctx context.Context, payload T) (R, error)
}

// NewResultDefinition creates a typed job definition that returns a result.
func NewResultDefinition[T, R any](name string, handler func(ctx context.Context, payload T) (R, error)) *ResultDefinition[T, R] {
	return &ResultDefinition[T, R]{Name: name, Handler: handler}
}
