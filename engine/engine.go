package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	gu "github.com/xraph/go-utils/metrics"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/griddispatch"
	"github.com/xraph/griddispatch/admission"
	"github.com/xraph/griddispatch/backoff"
	"github.com/xraph/griddispatch/cluster"
	"github.com/xraph/griddispatch/dispatcher"
	"github.com/xraph/griddispatch/ext"
	"github.com/xraph/griddispatch/failure"
	"github.com/xraph/griddispatch/grid"
	"github.com/xraph/griddispatch/id"
	"github.com/xraph/griddispatch/job"
	mw "github.com/xraph/griddispatch/middleware"
	"github.com/xraph/griddispatch/observability"
)

const instrumentationName = "github.com/xraph/griddispatch"

// Engine is a fully wired node.
type Engine struct {
	node       *griddispatch.Node
	extensions *ext.Registry
	registry   *job.Registry
	queue      job.Queue
	membership cluster.Store
	failures   *failure.Service
	grid       *grid.Local
	view       *cluster.View
	admission  *admission.Controller
	dispatcher *dispatcher.Dispatcher
	reporter   *cluster.Reporter
	mws        []mw.Middleware
	jobTimeout time.Duration

	// OpenTelemetry providers (optional; nil means use global).
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	metricFactory  gu.MetricFactory
}

// Option configures an Engine.
type Option func(*Engine)

// WithExtension registers an extension with the engine.
func WithExtension(e ext.Extension) Option {
	return func(eng *Engine) {
		eng.extensions.Register(e)
	}
}

// WithMiddleware adds middleware to the grid's execution chain, after the
// default recover, tracing, metrics, and logging middleware.
func WithMiddleware(m mw.Middleware) Option {
	return func(eng *Engine) {
		eng.mws = append(eng.mws, m)
	}
}

// WithJobTimeout bounds each job's execution on the local grid.
func WithJobTimeout(d time.Duration) Option {
	return func(eng *Engine) {
		eng.jobTimeout = d
	}
}

// WithMembership sets the cluster registry used for topology and
// heartbeats. Defaults to the node's store.
func WithMembership(s cluster.Store) Option {
	return func(eng *Engine) {
		eng.membership = s
	}
}

// WithTracerProvider sets a custom OTel TracerProvider for the tracing
// middleware. If not set, the global provider is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(eng *Engine) {
		eng.tracerProvider = tp
	}
}

// WithMeterProvider sets a custom OTel MeterProvider for the metrics
// middleware. If not set, the global provider is used.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(eng *Engine) {
		eng.meterProvider = mp
	}
}

// WithMetricFactory sets the factory for the observability extension's
// counters.
func WithMetricFactory(f gu.MetricFactory) Option {
	return func(eng *Engine) {
		eng.metricFactory = f
	}
}

// Build wires the node's components and hands the loop, reporter, and
// extensions back to it. The node's store must implement job.Queue and
// failure.Store, and cluster.Store unless WithMembership is given.
func Build(n *griddispatch.Node, opts ...Option) (*Engine, error) {
	logger := n.Logger()
	store := n.Store()
	cfg := n.Config()

	if store == nil {
		return nil, griddispatch.ErrNoStore
	}

	queue, ok := store.(job.Queue)
	if !ok {
		return nil, fmt.Errorf("griddispatch: store does not implement job.Queue")
	}
	fs, ok := store.(failure.Store)
	if !ok {
		return nil, fmt.Errorf("griddispatch: store does not implement failure.Store")
	}

	eng := &Engine{
		node:       n,
		extensions: ext.NewRegistry(logger),
		registry:   job.NewRegistry(),
		queue:      queue,
	}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.membership == nil {
		cs, ok := store.(cluster.Store)
		if !ok {
			return nil, fmt.Errorf("griddispatch: store does not implement cluster.Store")
		}
		eng.membership = cs
	}

	// Observability extension.
	if eng.metricFactory != nil {
		eng.extensions.Register(observability.NewMetricsExtensionWithFactory(eng.metricFactory))
	} else {
		eng.extensions.Register(observability.NewMetricsExtension())
	}

	tracingMw := mw.Tracing()
	if eng.tracerProvider != nil {
		tracingMw = mw.TracingWithTracer(eng.tracerProvider.Tracer(instrumentationName))
	}
	metricsMw := mw.Metrics()
	if eng.meterProvider != nil {
		metricsMw = mw.MetricsWithMeter(eng.meterProvider.Meter(instrumentationName))
	}

	// Default stack: tracing → metrics → logging → timeout → user. The grid
	// converts panics that escape the chain.
	allMws := []mw.Middleware{
		tracingMw,
		metricsMw,
		mw.Logging(logger),
		mw.Timeout(eng.jobTimeout),
	}
	allMws = append(allMws, eng.mws...)

	eng.grid = grid.NewLocal(eng.registry,
		grid.WithMiddleware(allMws...),
		grid.WithMaxInFlight(cfg.MaxInFlight),
		grid.WithLogger(logger),
	)

	eng.view = cluster.NewView(eng.membership, n.ID(), cfg.PoolSize,
		cluster.WithLocalLoad(eng.grid.Active),
		cluster.WithStaleAfter(cfg.StaleNodeThreshold),
	)
	eng.admission = admission.NewController(eng.view,
		admission.WithLogger(logger),
		admission.WithRateLimit(cfg.SubmitRateLimit, cfg.SubmitRateBurst),
	)
	eng.failures = failure.NewService(fs, failure.WithNodeID(n.ID()))

	eng.dispatcher = dispatcher.New(queue, eng.admission, eng.grid, eng.failures,
		dispatcher.WithLogger(logger),
		dispatcher.WithExtensions(eng.extensions),
		dispatcher.WithIdleBackoff(backoff.Idle(cfg.IdleInterval, cfg.MaxIdleInterval), cfg.MaxIdleInterval),
	)

	eng.reporter = cluster.NewReporter(eng.membership,
		cluster.Node{
			ID:       n.ID(),
			Hostname: n.Hostname(),
			Capacity: cfg.PoolSize,
			State:    cluster.NodeActive,
		},
		eng.grid.Active,
		cluster.WithHeartbeatInterval(cfg.HeartbeatInterval),
		cluster.WithReapThreshold(cfg.StaleNodeThreshold),
		cluster.WithReporterLogger(logger),
	)

	// Wire back into the node.
	n.SetLoop(eng.dispatcher)
	n.SetReporter(eng.reporter)
	n.SetDrain(eng.grid.Close)
	n.SetExtensions(eng.extensions)

	return eng, nil
}

// Register registers a typed job definition with the engine.
func Register[T any](eng *Engine, def *job.Definition[T]) {
	job.RegisterDefinition(eng.registry, def)
}

// RegisterResult registers a typed job definition that produces a value.
func RegisterResult[T, R any](eng *Engine, def *job.ResultDefinition[T, R]) {
	job.RegisterResultDefinition(eng.registry, def)
}

// Enqueue encodes payload as JSON and appends a job for the named handler
// to the shared queue. Any node in the cluster may claim it.
func Enqueue[T any](ctx context.Context, eng *Engine, name string, taskID id.TaskID, payload T) (*job.Job, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload for job %q: %w", name, err)
	}
	return eng.EnqueueRaw(ctx, name, taskID, data)
}

// EnqueueRaw enqueues a job with a pre-serialized payload.
func (eng *Engine) EnqueueRaw(ctx context.Context, name string, taskID id.TaskID, payload []byte) (*job.Job, error) {
	if taskID.IsNil() {
		return nil, fmt.Errorf("%w: job %q has no task id", griddispatch.ErrInvalidJob, name)
	}
	j := &job.Job{
		ID:         id.NewJobID(),
		TaskID:     taskID,
		Name:       name,
		Payload:    payload,
		EnqueuedAt: time.Now().UTC(),
	}
	if err := eng.queue.Enqueue(ctx, j); err != nil {
		return nil, err
	}
	return j, nil
}

// Start registers the node and starts the dispatch loop.
func (eng *Engine) Start(ctx context.Context) error {
	return eng.node.Start(ctx)
}

// Stop halts the loop, drains in-flight jobs, and leaves the cluster.
func (eng *Engine) Stop(ctx context.Context) error {
	return eng.node.Stop(ctx)
}

// FreeCapacity returns this node's pool size minus the cluster's active
// jobs, computed from a fresh topology snapshot.
func (eng *Engine) FreeCapacity(ctx context.Context) (int, error) {
	return eng.admission.FreeCapacity(ctx)
}

// Topology returns the nodes admission currently counts.
func (eng *Engine) Topology(ctx context.Context) ([]*cluster.Node, error) {
	return eng.view.Topology(ctx)
}

// Failures returns the failure records of a task.
func (eng *Engine) Failures(ctx context.Context, taskID id.TaskID) ([]*failure.Record, error) {
	return eng.failures.ForTask(ctx, taskID)
}

// QueueLen returns the number of jobs waiting in the shared queue.
func (eng *Engine) QueueLen(ctx context.Context) (int64, error) {
	return eng.queue.Len(ctx)
}

// Extensions returns the extension registry.
func (eng *Engine) Extensions() *ext.Registry { return eng.extensions }

// Registry returns the job registry.
func (eng *Engine) Registry() *job.Registry { return eng.registry }

// Node returns the underlying Node.
func (eng *Engine) Node() *griddispatch.Node { return eng.node }

// Grid returns the local execution grid.
func (eng *Engine) Grid() *grid.Local { return eng.grid }

// Dispatcher returns the dispatch loop, e.g. to drive single cycles.
func (eng *Engine) Dispatcher() *dispatcher.Dispatcher { return eng.dispatcher }

// FailureService returns the failure recorder.
func (eng *Engine) FailureService() *failure.Service { return eng.failures }
