// Package sqlite implements store.Store on SQLite through database/sql and
// the pure-Go modernc.org/sqlite driver. Suitable for single-host
// clusters, edge deployments, and tests. Claims are a single
// DELETE ... RETURNING statement, which SQLite executes atomically.
//
//	s, err := sqlite.Open("griddispatch.db")
//	if err != nil { ... }
//	defer s.Close()
//	if err := s.Migrate(ctx); err != nil { ... }
package sqlite
