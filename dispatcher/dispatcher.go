package dispatcher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/griddispatch/backoff"
	"github.com/xraph/griddispatch/ext"
	"github.com/xraph/griddispatch/grid"
	"github.com/xraph/griddispatch/job"
)

// Outcome describes what a single dispatch cycle did.
type Outcome int

const (
	// OutcomeNoCapacity means admission refused; the queue was not touched.
	OutcomeNoCapacity Outcome = iota
	// OutcomeIdle means the queue was empty or could not be read.
	OutcomeIdle
	// OutcomeRaceMiss means the queue emptied between the check and the claim.
	OutcomeRaceMiss
	// OutcomeSubmitFailed means a job was claimed and the grid rejected it.
	OutcomeSubmitFailed
	// OutcomeSubmitted means a job was claimed and handed to the grid.
	OutcomeSubmitted
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeNoCapacity:
		return "no_capacity"
	case OutcomeIdle:
		return "idle"
	case OutcomeRaceMiss:
		return "race_miss"
	case OutcomeSubmitFailed:
		return "submit_failed"
	case OutcomeSubmitted:
		return "submitted"
	default:
		return "unknown"
	}
}

// Claimed reports whether the cycle removed a job from the queue.
func (o Outcome) Claimed() bool {
	return o == OutcomeSubmitted || o == OutcomeSubmitFailed
}

// Admitter decides whether the node may claim another job.
type Admitter interface {
	Admit(ctx context.Context) bool
}

// Recorder persists a failure record for a job whose submission failed.
type Recorder interface {
	RecordError(ctx context.Context, j *job.Job, err error) error
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger. Start and end of execution are logged at
// debug level.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithExtensions sets the extension registry notified of lifecycle events.
func WithExtensions(r *ext.Registry) Option {
	return func(d *Dispatcher) { d.extensions = r }
}

// WithIdleBackoff sets the pause strategy between unproductive cycles and
// the ceiling applied to it. A zero ceiling leaves the strategy uncapped.
func WithIdleBackoff(s backoff.Strategy, ceiling time.Duration) Option {
	return func(d *Dispatcher) {
		d.idle = s
		d.maxIdle = ceiling
	}
}

// Dispatcher is a single node's dispatch loop.
type Dispatcher struct {
	queue      job.Queue
	admission  Admitter
	grid       grid.Grid
	failures   Recorder
	extensions *ext.Registry
	logger     *slog.Logger
	idle       backoff.Strategy
	maxIdle    time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a dispatcher over borrowed collaborators.
func New(queue job.Queue, admission Admitter, g grid.Grid, failures Recorder, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		queue:     queue,
		admission: admission,
		grid:      g,
		failures:  failures,
		logger:    slog.Default(),
		idle:      backoff.Idle(5*time.Millisecond, 250*time.Millisecond),
		maxIdle:   250 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.extensions == nil {
		d.extensions = ext.NewRegistry(d.logger)
	}
	return d
}

// Cycle runs one dispatch cycle. It never returns an error: every failure
// is either a no-op outcome or a recorded submission failure.
func (d *Dispatcher) Cycle(ctx context.Context) Outcome {
	if !d.admission.Admit(ctx) {
		return OutcomeNoCapacity
	}

	empty, err := d.queue.IsEmpty(ctx)
	if err != nil {
		d.logger.Warn("dispatcher: queue check failed", slog.String("error", err.Error()))
		return OutcomeIdle
	}
	if empty {
		return OutcomeIdle
	}

	j, err := d.queue.TakeOne(ctx)
	if err != nil {
		d.logger.Warn("dispatcher: claim failed", slog.String("error", err.Error()))
		return OutcomeIdle
	}
	if j == nil {
		return OutcomeRaceMiss
	}

	d.extensions.EmitJobClaimed(ctx, j)
	return d.submit(ctx, j)
}

func (d *Dispatcher) submit(ctx context.Context, j *job.Job) Outcome {
	d.logger.Debug("start execution",
		slog.String("job_id", j.ID.String()),
		slog.String("job_name", j.Name),
		slog.String("task_id", j.TaskID.String()),
	)

	future, err := d.grid.Submit(ctx, j)
	if err != nil {
		d.recordFailure(ctx, j, err)
		return OutcomeSubmitFailed
	}

	d.extensions.EmitJobSubmitted(ctx, j)

	hookCtx := context.WithoutCancel(ctx)
	future.OnComplete(func(r grid.Result) {
		attrs := []any{
			slog.String("job_id", j.ID.String()),
			slog.String("task_id", j.TaskID.String()),
			slog.Duration("elapsed", r.Elapsed),
		}
		if r.Err != nil {
			attrs = append(attrs, slog.String("error", r.Err.Error()))
		}
		d.logger.Debug("end execution", attrs...)
		d.extensions.EmitJobFinished(hookCtx, j, r)
	})
	return OutcomeSubmitted
}

// recordFailure writes the failure record even when ctx is already
// cancelled: the job has left the queue and this is its only trace.
func (d *Dispatcher) recordFailure(ctx context.Context, j *job.Job, submitErr error) {
	recCtx := context.WithoutCancel(ctx)

	d.logger.Warn("dispatcher: submission failed",
		slog.String("job_id", j.ID.String()),
		slog.String("task_id", j.TaskID.String()),
		slog.String("error", submitErr.Error()),
	)
	if err := d.failures.RecordError(recCtx, j, submitErr); err != nil {
		d.logger.Error("dispatcher: failed to record submission failure",
			slog.String("job_id", j.ID.String()),
			slog.String("task_id", j.TaskID.String()),
			slog.String("error", err.Error()),
		)
	}
	d.extensions.EmitSubmitFailed(recCtx, j, submitErr)
}

// Run loops until ctx is cancelled. Cancellation is checked once per
// iteration. Unproductive cycles back off per the idle strategy; a cycle
// that claims a job resets it so a ready queue is drained without pauses.
func (d *Dispatcher) Run(ctx context.Context) {
	streak := 0
	for ctx.Err() == nil {
		if d.Cycle(ctx).Claimed() {
			streak = 0
			continue
		}
		streak++
		d.pause(ctx, streak)
	}
}

func (d *Dispatcher) pause(ctx context.Context, streak int) {
	delay := d.idle.Delay(streak)
	if d.maxIdle > 0 && delay > d.maxIdle {
		delay = d.maxIdle
	}
	if delay <= 0 {
		return
	}

	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// Start runs the loop on a new goroutine. It returns immediately; a second
// call while running is a no-op. The loop outlives ctx's deadline and
// stops only through Stop.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return nil
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	d.cancel = cancel
	d.done = make(chan struct{})
	d.running = true

	d.logger.Info("dispatcher starting")

	go func(done chan struct{}) {
		defer close(done)
		d.Run(runCtx)
	}(d.done)
	return nil
}

// Stop cancels the loop and waits for the current cycle to finish or ctx
// to expire. Jobs already handed to the grid are not affected.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	cancel, done := d.cancel, d.done
	d.mu.Unlock()

	cancel()

	select {
	case <-done:
		d.logger.Info("dispatcher stopped")
		return nil
	case <-ctx.Done():
		d.logger.Warn("dispatcher stop timed out")
		return ctx.Err()
	}
}

// Running reports whether the loop is started.
func (d *Dispatcher) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}
