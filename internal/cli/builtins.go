package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/griddispatch/engine"
	"github.com/xraph/griddispatch/job"
)

// SleepInput is the payload of the built-in "sleep" job.
type SleepInput struct {
	Duration string `json:"duration"`
}

// EchoInput is the payload of the built-in "echo" job.
type EchoInput struct {
	Message string `json:"message"`
}

// registerBuiltins installs the jobs every node can run out of the box.
// Embedders register their own definitions on the engine instead.
func registerBuiltins(eng *engine.Engine) {
	engine.Register(eng, job.NewDefinition("noop", func(context.Context, struct{}) error {
		return nil
	}))

	engine.Register(eng, job.NewDefinition("sleep", func(ctx context.Context, in SleepInput) error {
		d, err := time.ParseDuration(in.Duration)
		if err != nil {
			return fmt.Errorf("sleep: %w", err)
		}
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}))

	engine.RegisterResult(eng, job.NewResultDefinition("echo", func(_ context.Context, in EchoInput) (EchoInput, error) {
		return in, nil
	}))
}
