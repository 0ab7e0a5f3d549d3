package cluster

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/griddispatch"
)

// ReporterOption configures a Reporter.
type ReporterOption func(*Reporter)

// WithHeartbeatInterval sets how often the node's active count is
// published.
func WithHeartbeatInterval(d time.Duration) ReporterOption {
	return func(r *Reporter) { r.interval = d }
}

// WithReapThreshold enables reaping of peers that have not heartbeated
// within d. Zero disables reaping.
func WithReapThreshold(d time.Duration) ReporterOption {
	return func(r *Reporter) { r.reapThreshold = d }
}

// WithReporterLogger sets the logger.
func WithReporterLogger(l *slog.Logger) ReporterOption {
	return func(r *Reporter) { r.logger = l }
}

// Reporter registers the local node, publishes its live active job count
// on every heartbeat, and deregisters it on Stop.
type Reporter struct {
	store         Store
	node          Node
	load          LoadFunc
	interval      time.Duration
	reapThreshold time.Duration
	logger        *slog.Logger

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewReporter creates a reporter for the given node entry. load supplies
// the live active count on each heartbeat.
func NewReporter(store Store, node Node, load LoadFunc, opts ...ReporterOption) *Reporter {
	r := &Reporter{
		store:    store,
		node:     node,
		load:     load,
		interval: 2 * time.Second,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start registers the node and launches the heartbeat goroutine.
func (r *Reporter) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return nil
	}
	if err := r.register(ctx); err != nil {
		return err
	}
	r.running = true
	r.stopCh = make(chan struct{})

	r.logger.Info("cluster node registered",
		slog.String("node_id", r.node.ID.String()),
		slog.String("hostname", r.node.Hostname),
		slog.Int("capacity", r.node.Capacity),
	)

	if r.interval > 0 {
		r.wg.Add(1)
		go r.heartbeatLoop(r.stopCh)
	}
	return nil
}

// Stop halts heartbeating and removes the node from the registry. A
// stopped reporter may be started again.
func (r *Reporter) Stop(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return nil
	}
	r.running = false
	close(r.stopCh)
	r.wg.Wait()

	if err := r.store.DeregisterNode(ctx, r.node.ID); err != nil && !errors.Is(err, griddispatch.ErrNodeNotFound) {
		r.logger.Warn("cluster node deregister failed",
			slog.String("node_id", r.node.ID.String()),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

func (r *Reporter) register(ctx context.Context) error {
	now := time.Now().UTC()
	n := r.node
	if n.State == "" {
		n.State = NodeActive
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	n.LastSeen = now
	if r.load != nil {
		n.ActiveJobs = r.load()
	}
	return r.store.RegisterNode(ctx, &n)
}

func (r *Reporter) heartbeatLoop(stop <-chan struct{}) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.Heartbeat(context.Background())
			if r.reapThreshold > 0 {
				r.reap(context.Background())
			}
		}
	}
}

// Heartbeat publishes the current active count once. A node that a peer
// reaped during a pause re-registers itself.
func (r *Reporter) Heartbeat(ctx context.Context) {
	active := 0
	if r.load != nil {
		active = r.load()
	}

	err := r.store.HeartbeatNode(ctx, r.node.ID, active)
	if errors.Is(err, griddispatch.ErrNodeNotFound) {
		err = r.register(ctx)
	}
	if err != nil {
		r.logger.Warn("cluster heartbeat failed",
			slog.String("node_id", r.node.ID.String()),
			slog.String("error", err.Error()),
		)
	}
}

func (r *Reporter) reap(ctx context.Context) {
	dead, err := r.store.ReapDeadNodes(ctx, r.reapThreshold)
	if err != nil {
		r.logger.Error("reap dead nodes error", slog.String("error", err.Error()))
		return
	}

	for _, n := range dead {
		if n.ID.String() == r.node.ID.String() {
			continue
		}
		if err := r.store.DeregisterNode(ctx, n.ID); err != nil && !errors.Is(err, griddispatch.ErrNodeNotFound) {
			r.logger.Error("reap: failed to deregister node",
				slog.String("node_id", n.ID.String()),
				slog.String("error", err.Error()),
			)
			continue
		}
		r.logger.Info("reaped dead node",
			slog.String("node_id", n.ID.String()),
			slog.String("hostname", n.Hostname),
		)
	}
}
