package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/griddispatch/failure"
	"github.com/xraph/griddispatch/id"
)

// SaveFailure stores the record and indexes it globally and by task.
func (s *Store) SaveFailure(ctx context.Context, r *failure.Record) error {
	fID := r.ID.String()
	body, err := encodeFailure(r)
	if err != nil {
		return fmt.Errorf("griddispatch/redis: save failure encode: %w", err)
	}

	z := goredis.Z{Score: timeScore(r.FailedAt), Member: fID}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.keys.failure(fID), body, 0)
	pipe.ZAdd(ctx, s.keys.failures(), z)
	pipe.ZAdd(ctx, s.keys.taskFailures(r.TaskID.String()), z)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("griddispatch/redis: save failure: %w", err)
	}
	return nil
}

// ListFailures pages through the global or per-task index in score order.
func (s *Store) ListFailures(ctx context.Context, opts failure.ListOpts) ([]*failure.Record, error) {
	index := s.keys.failures()
	if !opts.TaskID.IsNil() {
		index = s.keys.taskFailures(opts.TaskID.String())
	}

	start := int64(opts.Offset)
	stop := int64(-1)
	if opts.Limit > 0 {
		stop = start + int64(opts.Limit) - 1
	}

	ids, err := s.client.ZRange(ctx, index, start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("griddispatch/redis: list failures zrange: %w", err)
	}
	return s.loadFailures(ctx, ids)
}

// CountFailures returns the cardinality of the matching index.
func (s *Store) CountFailures(ctx context.Context, taskID id.TaskID) (int64, error) {
	index := s.keys.failures()
	if !taskID.IsNil() {
		index = s.keys.taskFailures(taskID.String())
	}
	n, err := s.client.ZCard(ctx, index).Result()
	if err != nil {
		return 0, fmt.Errorf("griddispatch/redis: count failures: %w", err)
	}
	return n, nil
}

// PurgeFailures removes records scored before the cutoff from the bodies
// and both indexes.
func (s *Store) PurgeFailures(ctx context.Context, before time.Time) (int64, error) {
	ids, err := s.client.ZRangeByScore(ctx, s.keys.failures(), &goredis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatFloat(timeScore(before), 'f', -1, 64),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("griddispatch/redis: purge zrangebyscore: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	records, err := s.loadFailures(ctx, ids)
	if err != nil {
		return 0, err
	}

	pipe := s.client.TxPipeline()
	for _, r := range records {
		fID := r.ID.String()
		pipe.Del(ctx, s.keys.failure(fID))
		pipe.ZRem(ctx, s.keys.taskFailures(r.TaskID.String()), fID)
	}
	members := make([]any, len(ids))
	for i, fID := range ids {
		members[i] = fID
	}
	pipe.ZRem(ctx, s.keys.failures(), members...)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("griddispatch/redis: purge failures: %w", err)
	}
	return int64(len(records)), nil
}

func (s *Store) loadFailures(ctx context.Context, ids []string) ([]*failure.Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, fID := range ids {
		keys[i] = s.keys.failure(fID)
	}

	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("griddispatch/redis: load failures mget: %w", err)
	}

	records := make([]*failure.Record, 0, len(vals))
	for _, v := range vals {
		body, ok := v.(string)
		if !ok {
			continue // index entry outlived its body
		}
		r, decErr := decodeFailure([]byte(body))
		if decErr != nil {
			return nil, decErr
		}
		records = append(records, r)
	}
	return records, nil
}
