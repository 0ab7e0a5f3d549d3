package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/xraph/griddispatch"
	"github.com/xraph/griddispatch/cluster"
	"github.com/xraph/griddispatch/id"
)

const nodeColumns = `id, hostname, capacity, active_jobs, state, last_seen, metadata, created_at`

// RegisterNode upserts the node row.
func (s *Store) RegisterNode(ctx context.Context, n *cluster.Node) error {
	var metadata sql.NullString
	if len(n.Metadata) > 0 {
		b, err := json.Marshal(n.Metadata)
		if err != nil {
			return fmt.Errorf("griddispatch/sqlite: marshal metadata: %w", err)
		}
		metadata = sql.NullString{String: string(b), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO griddispatch_nodes (`+nodeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			hostname    = excluded.hostname,
			capacity    = excluded.capacity,
			active_jobs = excluded.active_jobs,
			state       = excluded.state,
			last_seen   = excluded.last_seen,
			metadata    = excluded.metadata`,
		n.ID.String(), n.Hostname, n.Capacity, n.ActiveJobs, string(n.State),
		toNanos(n.LastSeen), metadata, toNanos(n.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("griddispatch/sqlite: register node: %w", err)
	}
	return nil
}

// DeregisterNode deletes the node row.
func (s *Store) DeregisterNode(ctx context.Context, nodeID id.NodeID) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM griddispatch_nodes WHERE id = ?`, nodeID.String(),
	)
	if err != nil {
		return fmt.Errorf("griddispatch/sqlite: deregister node: %w", err)
	}
	return requireRow(res)
}

// HeartbeatNode refreshes last_seen and active_jobs.
func (s *Store) HeartbeatNode(ctx context.Context, nodeID id.NodeID, activeJobs int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE griddispatch_nodes
		SET last_seen = ?, active_jobs = ?
		WHERE id = ?`,
		toNanos(time.Now()), activeJobs, nodeID.String(),
	)
	if err != nil {
		return fmt.Errorf("griddispatch/sqlite: heartbeat node: %w", err)
	}
	return requireRow(res)
}

// ListNodes returns all nodes ordered by created_at.
func (s *Store) ListNodes(ctx context.Context) ([]*cluster.Node, error) {
	return s.queryNodes(ctx,
		`SELECT `+nodeColumns+` FROM griddispatch_nodes ORDER BY created_at ASC`,
	)
}

// ReapDeadNodes returns nodes whose last heartbeat is older than threshold.
func (s *Store) ReapDeadNodes(ctx context.Context, threshold time.Duration) ([]*cluster.Node, error) {
	cutoff := time.Now().Add(-threshold)
	return s.queryNodes(ctx,
		`SELECT `+nodeColumns+` FROM griddispatch_nodes WHERE last_seen < ? ORDER BY created_at ASC`,
		toNanos(cutoff),
	)
}

func (s *Store) queryNodes(ctx context.Context, query string, args ...any) ([]*cluster.Node, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("griddispatch/sqlite: query nodes: %w", err)
	}
	defer rows.Close()

	var nodes []*cluster.Node
	for rows.Next() {
		var (
			n                   cluster.Node
			state               string
			lastSeen, createdAt int64
			metadata            sql.NullString
		)
		if err := rows.Scan(&n.ID, &n.Hostname, &n.Capacity, &n.ActiveJobs, &state,
			&lastSeen, &metadata, &createdAt); err != nil {
			return nil, fmt.Errorf("griddispatch/sqlite: scan node: %w", err)
		}
		n.State = cluster.NodeState(state)
		n.LastSeen = fromNanos(lastSeen)
		n.CreatedAt = fromNanos(createdAt)
		if metadata.Valid {
			if err := json.Unmarshal([]byte(metadata.String), &n.Metadata); err != nil {
				return nil, fmt.Errorf("griddispatch/sqlite: unmarshal metadata: %w", err)
			}
		}
		nodes = append(nodes, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("griddispatch/sqlite: query nodes rows: %w", err)
	}
	return nodes, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("griddispatch/sqlite: rows affected: %w", err)
	}
	if n == 0 {
		return griddispatch.ErrNodeNotFound
	}
	return nil
}
