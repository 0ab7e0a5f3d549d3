package sqlite

import (
	"context"
	"fmt"

	"github.com/xraph/griddispatch"
	"github.com/xraph/griddispatch/job"
)

// Enqueue inserts the job at the tail of the queue.
func (s *Store) Enqueue(ctx context.Context, j *job.Job) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO griddispatch_queue (id, task_id, name, payload, enqueued_at)
		VALUES (?, ?, ?, ?, ?)`,
		j.ID.String(), j.TaskID.String(), j.Name, j.Payload, toNanos(j.EnqueuedAt),
	)
	if err != nil {
		if isDuplicateKey(err) {
			return griddispatch.ErrJobAlreadyExists
		}
		return fmt.Errorf("griddispatch/sqlite: enqueue: %w", err)
	}
	return nil
}

// IsEmpty reports whether any row is queued.
func (s *Store) IsEmpty(ctx context.Context) (bool, error) {
	var exists int
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM griddispatch_queue)`,
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("griddispatch/sqlite: queue exists: %w", err)
	}
	return exists == 0, nil
}

// TakeOne deletes and returns the oldest row in one statement.
func (s *Store) TakeOne(ctx context.Context) (*job.Job, error) {
	var (
		j          job.Job
		enqueuedAt int64
	)
	err := s.db.QueryRowContext(ctx, `
		DELETE FROM griddispatch_queue
		WHERE id = (
			SELECT id FROM griddispatch_queue
			ORDER BY enqueued_at ASC, id ASC
			LIMIT 1
		)
		RETURNING id, task_id, name, payload, enqueued_at`,
	).Scan(&j.ID, &j.TaskID, &j.Name, &j.Payload, &enqueuedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("griddispatch/sqlite: take one: %w", err)
	}
	j.EnqueuedAt = fromNanos(enqueuedAt)
	return &j, nil
}

// Len returns the number of queued rows.
func (s *Store) Len(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM griddispatch_queue`,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("griddispatch/sqlite: queue count: %w", err)
	}
	return n, nil
}
