package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/xraph/griddispatch/failure"
	"github.com/xraph/griddispatch/id"
)

const failureColumns = `id, task_id, job_id, job_name, message, node_id, failed_at`

// SaveFailure inserts a failure record. Nil ids are stored as NULL.
func (s *Store) SaveFailure(ctx context.Context, r *failure.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO griddispatch_failures (`+failureColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.TaskID, r.JobID, r.JobName, r.Message, r.NodeID, toNanos(r.FailedAt),
	)
	if err != nil {
		return fmt.Errorf("griddispatch/sqlite: save failure: %w", err)
	}
	return nil
}

// ListFailures returns records ordered by failed_at.
func (s *Store) ListFailures(ctx context.Context, opts failure.ListOpts) ([]*failure.Record, error) {
	query := `SELECT ` + failureColumns + ` FROM griddispatch_failures`
	var args []any
	if !opts.TaskID.IsNil() {
		query += ` WHERE task_id = ?`
		args = append(args, opts.TaskID.String())
	}
	query += ` ORDER BY failed_at ASC, id ASC`

	// SQLite requires LIMIT before OFFSET; -1 means unbounded.
	if opts.Limit > 0 || opts.Offset > 0 {
		limit := -1
		if opts.Limit > 0 {
			limit = opts.Limit
		}
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("griddispatch/sqlite: list failures: %w", err)
	}
	defer rows.Close()

	var records []*failure.Record
	for rows.Next() {
		r, scanErr := scanFailure(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("griddispatch/sqlite: list failures rows: %w", err)
	}
	return records, nil
}

// CountFailures counts records for a task, or all records for Nil.
func (s *Store) CountFailures(ctx context.Context, taskID id.TaskID) (int64, error) {
	var (
		n   int64
		err error
	)
	if taskID.IsNil() {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM griddispatch_failures`).Scan(&n)
	} else {
		err = s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM griddispatch_failures WHERE task_id = ?`,
			taskID.String(),
		).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("griddispatch/sqlite: count failures: %w", err)
	}
	return n, nil
}

// PurgeFailures deletes records that failed before the cutoff.
func (s *Store) PurgeFailures(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM griddispatch_failures WHERE failed_at < ?`, toNanos(before),
	)
	if err != nil {
		return 0, fmt.Errorf("griddispatch/sqlite: purge failures: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("griddispatch/sqlite: purge rows affected: %w", err)
	}
	return n, nil
}

func scanFailure(rows *sql.Rows) (*failure.Record, error) {
	var (
		r        failure.Record
		failedAt int64
	)
	if err := rows.Scan(&r.ID, &r.TaskID, &r.JobID, &r.JobName, &r.Message, &r.NodeID, &failedAt); err != nil {
		return nil, fmt.Errorf("griddispatch/sqlite: scan failure: %w", err)
	}
	r.FailedAt = fromNanos(failedAt)
	return &r, nil
}
