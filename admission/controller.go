package admission

import (
	"context"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/xraph/griddispatch/cluster"
)

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger used for metrics read failures.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithRateLimit caps admissions at perSecond sustained with the given
// burst. A non-positive perSecond disables the limit. Burst defaults to 1.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Controller) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// Controller evaluates cluster-wide admission for one node. It is safe for
// concurrent use.
type Controller struct {
	metrics cluster.Metrics
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewController creates an admission controller over the metrics provider.
func NewController(metrics cluster.Metrics, opts ...Option) *Controller {
	c := &Controller{
		metrics: metrics,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FreeCapacity returns the local pool size minus the sum of active jobs
// over a freshly read topology. The result may be zero or negative.
func (c *Controller) FreeCapacity(ctx context.Context) (int, error) {
	nodes, err := c.metrics.Topology(ctx)
	if err != nil {
		return 0, err
	}

	active := 0
	for _, n := range nodes {
		a, err := c.metrics.ActiveJobs(ctx, n)
		if err != nil {
			return 0, err
		}
		active += a
	}
	return c.metrics.LocalCapacity() - active, nil
}

// Admit reports whether the node may claim one more job. A metrics read
// error is treated as no capacity.
func (c *Controller) Admit(ctx context.Context) bool {
	free, err := c.FreeCapacity(ctx)
	if err != nil {
		c.logger.Warn("admission: cluster metrics unavailable",
			slog.String("error", err.Error()),
		)
		return false
	}
	if free <= 0 {
		return false
	}
	// The token is spent only once capacity is known to exist.
	if c.limiter != nil && !c.limiter.Allow() {
		return false
	}
	return true
}
