// Package postgres implements store.Store on PostgreSQL with pgx/v5. The
// shared queue is a table drained with DELETE ... FOR UPDATE SKIP LOCKED
// so concurrent nodes never claim the same row. Schema changes ship as
// embedded SQL files applied by Migrate.
package postgres
