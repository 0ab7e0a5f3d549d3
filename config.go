package griddispatch

import (
	"fmt"
	"time"
)

// Config holds the per-node dispatcher configuration.
type Config struct {
	// PoolSize is this node's configured compute-pool size: the maximum
	// number of jobs its execution subsystem is willing to run at once.
	// Admission compares it against the active jobs of the whole cluster.
	PoolSize int

	// MaxInFlight caps jobs running on the local grid. Submissions beyond
	// it are rejected synchronously. Zero means no local cap.
	MaxInFlight int

	// IdleInterval is the first sleep after a cycle that found nothing to
	// do. Consecutive idle cycles back off exponentially up to
	// MaxIdleInterval. Zero disables idle sleeping (tight loop).
	IdleInterval time.Duration

	// MaxIdleInterval caps the idle backoff.
	MaxIdleInterval time.Duration

	// HeartbeatInterval is how often this node publishes its active job
	// count to the cluster registry.
	HeartbeatInterval time.Duration

	// StaleNodeThreshold excludes nodes whose last heartbeat is older than
	// this from the topology snapshot, and is the reaping threshold for
	// dead nodes. Zero keeps every registered node.
	StaleNodeThreshold time.Duration

	// SubmitRateLimit caps local submissions per second. Zero disables it.
	SubmitRateLimit float64

	// SubmitRateBurst is the token-bucket burst for SubmitRateLimit.
	SubmitRateBurst int

	// ShutdownTimeout bounds how long Stop waits for the loop and for
	// in-flight local jobs.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		PoolSize:           10,
		IdleInterval:       5 * time.Millisecond,
		MaxIdleInterval:    250 * time.Millisecond,
		HeartbeatInterval:  2 * time.Second,
		StaleNodeThreshold: 15 * time.Second,
		ShutdownTimeout:    30 * time.Second,
	}
}

// Validate reports configuration values that cannot work.
func (c Config) Validate() error {
	switch {
	case c.PoolSize < 0:
		return fmt.Errorf("%w: pool size %d is negative", ErrInvalidConfig, c.PoolSize)
	case c.MaxInFlight < 0:
		return fmt.Errorf("%w: max in-flight %d is negative", ErrInvalidConfig, c.MaxInFlight)
	case c.IdleInterval < 0 || c.MaxIdleInterval < 0:
		return fmt.Errorf("%w: idle intervals must not be negative", ErrInvalidConfig)
	case c.MaxIdleInterval > 0 && c.IdleInterval > c.MaxIdleInterval:
		return fmt.Errorf("%w: idle interval %s exceeds max %s", ErrInvalidConfig, c.IdleInterval, c.MaxIdleInterval)
	case c.SubmitRateLimit < 0:
		return fmt.Errorf("%w: submit rate limit must not be negative", ErrInvalidConfig)
	}
	return nil
}
