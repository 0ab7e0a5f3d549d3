package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/xraph/griddispatch/failure"
	"github.com/xraph/griddispatch/id"
)

const failureColumns = `id, task_id, job_id, job_name, message, node_id, failed_at`

// SaveFailure inserts a failure record. Nil job and node ids are stored as
// NULL.
func (s *Store) SaveFailure(ctx context.Context, r *failure.Record) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO griddispatch_failures (`+failureColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.ID, r.TaskID, r.JobID, r.JobName, r.Message, r.NodeID, r.FailedAt,
	)
	if err != nil {
		return fmt.Errorf("griddispatch/postgres: save failure: %w", err)
	}
	return nil
}

// ListFailures returns records ordered by failed_at.
func (s *Store) ListFailures(ctx context.Context, opts failure.ListOpts) ([]*failure.Record, error) {
	query := `SELECT ` + failureColumns + ` FROM griddispatch_failures`
	args := []any{}
	if !opts.TaskID.IsNil() {
		args = append(args, opts.TaskID.String())
		query += fmt.Sprintf(` WHERE task_id = $%d`, len(args))
	}
	query += ` ORDER BY failed_at ASC, id ASC`
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("griddispatch/postgres: list failures: %w", err)
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
		return nil, fmt.Errorf("griddispatch/postgres: list failures rows: %w", err)
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
		err = s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM griddispatch_failures`).Scan(&n)
	} else {
		err = s.pool.QueryRow(ctx,
			`SELECT COUNT(*) FROM griddispatch_failures WHERE task_id = $1`,
			taskID.String(),
		).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("griddispatch/postgres: count failures: %w", err)
	}
	return n, nil
}

// PurgeFailures deletes records that failed before the cutoff.
func (s *Store) PurgeFailures(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM griddispatch_failures WHERE failed_at < $1`, before,
	)
	if err != nil {
		return 0, fmt.Errorf("griddispatch/postgres: purge failures: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanFailure(row pgx.Row) (*failure.Record, error) {
	var r failure.Record
	if err := row.Scan(&r.ID, &r.TaskID, &r.JobID, &r.JobName, &r.Message, &r.NodeID, &r.FailedAt); err != nil {
		return nil, fmt.Errorf("griddispatch/postgres: scan failure: %w", err)
	}
	r.FailedAt = r.FailedAt.UTC()
	return &r, nil
}
