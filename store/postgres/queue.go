package postgres

import (
	"context"
	"fmt"

	"github.com/xraph/griddispatch"
	"github.com/xraph/griddispatch/job"
)

// Enqueue inserts the job at the tail of the queue.
func (s *Store) Enqueue(ctx context.Context, j *job.Job) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO griddispatch_queue (id, task_id, name, payload, enqueued_at)
		VALUES ($1, $2, $3, $4, $5)`,
		j.ID.String(), j.TaskID.String(), j.Name, j.Payload, j.EnqueuedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return griddispatch.ErrJobAlreadyExists
		}
		return fmt.Errorf("griddispatch/postgres: enqueue: %w", err)
	}
	return nil
}

// IsEmpty reports whether any row is queued.
func (s *Store) IsEmpty(ctx context.Context) (bool, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM griddispatch_queue)`,
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("griddispatch/postgres: queue exists: %w", err)
	}
	return !exists, nil
}

// TakeOne deletes and returns the oldest row. SKIP LOCKED makes a
// concurrent claimer move on to the next row instead of blocking, and the
// delete makes the claim final.
func (s *Store) TakeOne(ctx context.Context) (*job.Job, error) {
	var j job.Job
	err := s.pool.QueryRow(ctx, `
		DELETE FROM griddispatch_queue
		WHERE id = (
			SELECT id FROM griddispatch_queue
			ORDER BY enqueued_at ASC, id ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING id, task_id, name, payload, enqueued_at`,
	).Scan(&j.ID, &j.TaskID, &j.Name, &j.Payload, &j.EnqueuedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("griddispatch/postgres: take one: %w", err)
	}
	j.EnqueuedAt = j.EnqueuedAt.UTC()
	return &j, nil
}

// Len returns the number of queued rows.
func (s *Store) Len(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM griddispatch_queue`,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("griddispatch/postgres: queue count: %w", err)
	}
	return n, nil
}
