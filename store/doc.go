// Package store defines the aggregate persistence interface.
//
// The composite interface:
//
//	type Store interface {
//	    job.Queue
//	    failure.Store
//	    cluster.Store
//
//	    Migrate(ctx context.Context) error
//	    Ping(ctx context.Context) error
//	    Close() error
//	}
//
// # Available Backends
//
//   - store/memory — in-memory store for development and testing
//   - store/postgres — PostgreSQL backend using pgx/v5
//   - store/sqlite — SQLite backend using modernc.org/sqlite
//   - store/redis — Redis backend using go-redis/v9
//
// Every backend's TakeOne is atomic across processes that share it,
// which is the only correctness guarantee the dispatch loop depends on.
// The memory backend is atomic only within one process.
//
// # Migrations
//
// Call Migrate once at startup to create or update the schema:
//
//	if err := s.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
package store
