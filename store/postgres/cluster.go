package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/xraph/griddispatch"
	"github.com/xraph/griddispatch/cluster"
	"github.com/xraph/griddispatch/id"
)

const nodeColumns = `id, hostname, capacity, active_jobs, state, last_seen, metadata, created_at`

// RegisterNode upserts the node row.
func (s *Store) RegisterNode(ctx context.Context, n *cluster.Node) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO griddispatch_nodes (`+nodeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			hostname    = EXCLUDED.hostname,
			capacity    = EXCLUDED.capacity,
			active_jobs = EXCLUDED.active_jobs,
			state       = EXCLUDED.state,
			last_seen   = EXCLUDED.last_seen,
			metadata    = EXCLUDED.metadata`,
		n.ID.String(), n.Hostname, n.Capacity, n.ActiveJobs, string(n.State),
		n.LastSeen, n.Metadata, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("griddispatch/postgres: register node: %w", err)
	}
	return nil
}

// DeregisterNode deletes the node row.
func (s *Store) DeregisterNode(ctx context.Context, nodeID id.NodeID) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM griddispatch_nodes WHERE id = $1`, nodeID.String(),
	)
	if err != nil {
		return fmt.Errorf("griddispatch/postgres: deregister node: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return griddispatch.ErrNodeNotFound
	}
	return nil
}

// HeartbeatNode refreshes last_seen and active_jobs.
func (s *Store) HeartbeatNode(ctx context.Context, nodeID id.NodeID, activeJobs int) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE griddispatch_nodes
		SET last_seen = NOW(), active_jobs = $2
		WHERE id = $1`,
		nodeID.String(), activeJobs,
	)
	if err != nil {
		return fmt.Errorf("griddispatch/postgres: heartbeat node: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return griddispatch.ErrNodeNotFound
	}
	return nil
}

// ListNodes returns all nodes ordered by created_at.
func (s *Store) ListNodes(ctx context.Context) ([]*cluster.Node, error) {
	return s.queryNodes(ctx,
		`SELECT `+nodeColumns+` FROM griddispatch_nodes ORDER BY created_at ASC`,
	)
}

// ReapDeadNodes returns nodes whose last heartbeat is older than threshold.
func (s *Store) ReapDeadNodes(ctx context.Context, threshold time.Duration) ([]*cluster.Node, error) {
	cutoff := time.Now().UTC().Add(-threshold)
	return s.queryNodes(ctx,
		`SELECT `+nodeColumns+` FROM griddispatch_nodes WHERE last_seen < $1 ORDER BY created_at ASC`,
		cutoff,
	)
}

func (s *Store) queryNodes(ctx context.Context, query string, args ...any) ([]*cluster.Node, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("griddispatch/postgres: query nodes: %w", err)
	}
	defer rows.Close()

	var nodes []*cluster.Node
	for rows.Next() {
		n, scanErr := scanNode(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("griddispatch/postgres: query nodes rows: %w", err)
	}
	return nodes, nil
}

func scanNode(row pgx.Row) (*cluster.Node, error) {
	var (
		n     cluster.Node
		state string
	)
	if err := row.Scan(&n.ID, &n.Hostname, &n.Capacity, &n.ActiveJobs, &state,
		&n.LastSeen, &n.Metadata, &n.CreatedAt); err != nil {
		return nil, fmt.Errorf("griddispatch/postgres: scan node: %w", err)
	}
	n.State = cluster.NodeState(state)
	n.LastSeen = n.LastSeen.UTC()
	n.CreatedAt = n.CreatedAt.UTC()
	return &n, nil
}
