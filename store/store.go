// Package store defines the aggregate persistence interface. Each subsystem
// (job queue, failure records, cluster registry) defines its own store
// interface. The composite Store composes them all. Backends: Postgres,
// SQLite, Redis, and Memory.
package store

import (
	"context"

	"github.com/xraph/griddispatch/cluster"
	"github.com/xraph/griddispatch/failure"
	"github.com/xraph/griddispatch/job"
)

// Store is the aggregate persistence interface. A single backend
// implements every subsystem contract.
type Store interface {
	job.Queue
	failure.Store
	cluster.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
