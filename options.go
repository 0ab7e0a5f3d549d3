package griddispatch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/xraph/griddispatch/id"
)

// Option configures a Node.
type Option func(*Node) error

// Storer is the minimal store interface held by the Node. It covers
// lifecycle operations only; the subsystem contracts (job.Queue,
// failure.Store, cluster.Store) are asserted by the engine package, which
// sits above them. Implementations satisfy store.Store.
type Storer interface {
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// runner is an internal interface for a start/stop lifecycle component.
type runner interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// extensionEmitter is an internal interface for extension lifecycle events.
type extensionEmitter interface {
	EmitShutdown(ctx context.Context)
}

// Node is one member of the compute cluster: its identity, configuration,
// and the lifecycle of its dispatch loop and membership reporter.
//
// Create one with New and functional options, then wire it with
// engine.Build. The Node holds its components behind internal interfaces
// to avoid import cycles.
type Node struct {
	id         id.NodeID
	hostname   string
	config     Config
	logger     *slog.Logger
	store      Storer
	extensions extensionEmitter
	reporter   runner
	loop       runner
	drain      func(ctx context.Context) error

	mu      sync.Mutex
	started bool
	stopped bool
}

// New creates a Node with the given options. A missing node id is
// generated; a missing hostname falls back to os.Hostname.
func New(opts ...Option) (*Node, error) {
	n := &Node{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(n); err != nil {
			return nil, err
		}
	}
	if err := n.config.Validate(); err != nil {
		return nil, err
	}
	if n.id.IsNil() {
		n.id = id.NewNodeID()
	}
	if n.hostname == "" {
		host, err := os.Hostname()
		if err != nil {
			host = "unknown"
		}
		n.hostname = host
	}
	return n, nil
}

// ID returns the node's cluster identity.
func (n *Node) ID() id.NodeID { return n.id }

// Hostname returns the hostname the node registers under.
func (n *Node) Hostname() string { return n.hostname }

// Logger returns the node's logger.
func (n *Node) Logger() *slog.Logger { return n.logger }

// Store returns the node's store.
func (n *Node) Store() Storer { return n.store }

// Config returns a copy of the node's configuration.
func (n *Node) Config() Config { return n.config }

// SetLoop sets the dispatch loop (called by the engine package).
func (n *Node) SetLoop(r runner) { n.loop = r }

// SetReporter sets the membership reporter (called by the engine package).
func (n *Node) SetReporter(r runner) { n.reporter = r }

// SetDrain sets the function that waits for in-flight local jobs during
// Stop (called by the engine package).
func (n *Node) SetDrain(fn func(ctx context.Context) error) { n.drain = fn }

// SetExtensions sets the extension emitter (called by the engine package).
func (n *Node) SetExtensions(e extensionEmitter) { n.extensions = e }

// Start registers the node with the cluster, then starts dispatching.
// A node is started at most once: after Stop its grid is closed, so Start
// returns ErrNodeStopped.
func (n *Node) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.loop == nil {
		return ErrNodeNotBuilt
	}
	if n.stopped {
		return ErrNodeStopped
	}
	if n.started {
		return nil
	}
	if n.reporter != nil {
		if err := n.reporter.Start(ctx); err != nil {
			return err
		}
	}
	if err := n.loop.Start(ctx); err != nil {
		if n.reporter != nil {
			_ = n.reporter.Stop(ctx)
		}
		return err
	}
	n.started = true
	return nil
}

// Stop halts dispatching, waits for in-flight local jobs, and leaves the
// cluster. The whole shutdown is bounded by ShutdownTimeout. The store is
// owned by the caller and stays open.
func (n *Node) Stop(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.started {
		return nil
	}
	n.started = false
	n.stopped = true

	if n.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.config.ShutdownTimeout)
		defer cancel()
	}

	if err := n.loop.Stop(ctx); err != nil {
		n.logger.Error("dispatch loop stop error", slog.String("error", err.Error()))
	}
	if n.drain != nil {
		if err := n.drain(ctx); err != nil {
			n.logger.Warn("in-flight jobs still running at shutdown", slog.String("error", err.Error()))
		}
	}
	if n.reporter != nil {
		if err := n.reporter.Stop(ctx); err != nil {
			n.logger.Error("cluster reporter stop error", slog.String("error", err.Error()))
		}
	}
	if n.extensions != nil {
		n.extensions.EmitShutdown(ctx)
	}
	return nil
}

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(n *Node) error {
		n.config = cfg
		return nil
	}
}

// WithPoolSize sets this node's configured pool size.
func WithPoolSize(size int) Option {
	return func(n *Node) error {
		n.config.PoolSize = size
		return nil
	}
}

// WithMaxInFlight caps jobs running on the local grid.
func WithMaxInFlight(limit int) Option {
	return func(n *Node) error {
		n.config.MaxInFlight = limit
		return nil
	}
}

// WithIdleInterval sets the idle backoff range. A zero initial interval
// makes the loop spin without sleeping.
func WithIdleInterval(initial, maxInterval time.Duration) Option {
	return func(n *Node) error {
		n.config.IdleInterval = initial
		n.config.MaxIdleInterval = maxInterval
		return nil
	}
}

// WithHeartbeatInterval sets how often the node publishes its load.
func WithHeartbeatInterval(d time.Duration) Option {
	return func(n *Node) error {
		n.config.HeartbeatInterval = d
		return nil
	}
}

// WithStaleNodeThreshold sets the age after which silent nodes leave the
// topology.
func WithStaleNodeThreshold(d time.Duration) Option {
	return func(n *Node) error {
		n.config.StaleNodeThreshold = d
		return nil
	}
}

// WithSubmitRateLimit caps local submissions per second.
func WithSubmitRateLimit(perSecond float64, burst int) Option {
	return func(n *Node) error {
		n.config.SubmitRateLimit = perSecond
		n.config.SubmitRateBurst = burst
		return nil
	}
}

// WithShutdownTimeout bounds Stop.
func WithShutdownTimeout(d time.Duration) Option {
	return func(n *Node) error {
		n.config.ShutdownTimeout = d
		return nil
	}
}

// WithNodeID sets the node identity, e.g. to keep it stable across
// restarts.
func WithNodeID(nodeID id.NodeID) Option {
	return func(n *Node) error {
		if nodeID.Prefix() != id.PrefixNode {
			return fmt.Errorf("%w: node id %q lacks the node prefix", ErrInvalidConfig, nodeID.String())
		}
		n.id = nodeID
		return nil
	}
}

// WithHostname sets the hostname the node registers under.
func WithHostname(host string) Option {
	return func(n *Node) error {
		n.hostname = host
		return nil
	}
}

// WithLogger sets the structured logger for the node.
func WithLogger(l *slog.Logger) Option {
	return func(n *Node) error {
		n.logger = l
		return nil
	}
}

// WithStore sets the persistence backend. It must implement Storer at
// minimum; typically it is a store.Store.
func WithStore(s Storer) Option {
	return func(n *Node) error {
		n.store = s
		return nil
	}
}
