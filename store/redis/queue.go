package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/griddispatch"
	"github.com/xraph/griddispatch/job"
)

// enqueueScript stores the body only if the id is new and queues the id
// in the same step.
//
//	KEYS[1] job body key   ARGV[1] body
//	KEYS[2] queue          ARGV[2] score, ARGV[3] job id
var enqueueScript = goredis.NewScript(`
if redis.call('SETNX', KEYS[1], ARGV[1]) == 0 then
  return 0
end
redis.call('ZADD', KEYS[2], ARGV[2], ARGV[3])
return 1
`)

// takeScript pops the oldest id and removes its body in one step, so no
// crash can leave a body behind without its queue entry. It returns nil
// on an empty queue, {id} for an orphaned id and {id, body} otherwise.
//
//	KEYS[1] queue          ARGV[1] job body key prefix
var takeScript = goredis.NewScript(`
local popped = redis.call('ZPOPMIN', KEYS[1], 1)
if #popped == 0 then
  return false
end
local id = popped[1]
local key = ARGV[1] .. id
local body = redis.call('GET', key)
redis.call('DEL', key)
if not body then
  return {id}
end
return {id, body}
`)

// Enqueue stores the job body and queues its id atomically. An id whose
// body already exists is rejected with ErrJobAlreadyExists.
func (s *Store) Enqueue(ctx context.Context, j *job.Job) error {
	jID := j.ID.String()

	body, err := encodeJob(j)
	if err != nil {
		return fmt.Errorf("griddispatch/redis: enqueue encode: %w", err)
	}

	added, err := enqueueScript.Run(ctx, s.client,
		[]string{s.keys.job(jID), s.keys.queue()},
		body, timeScore(j.EnqueuedAt), jID,
	).Int()
	if err != nil {
		return fmt.Errorf("griddispatch/redis: enqueue: %w", err)
	}
	if added == 0 {
		return griddispatch.ErrJobAlreadyExists
	}
	return nil
}

// IsEmpty reports whether the queue Sorted Set has no members.
func (s *Store) IsEmpty(ctx context.Context) (bool, error) {
	n, err := s.Len(ctx)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

// TakeOne claims the oldest job. The pop and the body removal run as one
// script, so exactly one caller receives a given job and its id can be
// enqueued again once claimed.
func (s *Store) TakeOne(ctx context.Context) (*job.Job, error) {
	vals, err := takeScript.Run(ctx, s.client, []string{s.keys.queue()}, s.keys.job("")).Slice()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("griddispatch/redis: take: %w", err)
	}

	jID, _ := vals[0].(string)
	if len(vals) < 2 {
		s.logger.Warn("queued job has no body, dropping", slog.String("job_id", jID))
		return nil, nil
	}
	body, ok := vals[1].(string)
	if !ok {
		return nil, fmt.Errorf("griddispatch/redis: take: unexpected body %T", vals[1])
	}
	return decodeJob([]byte(body))
}

// Len returns the number of queued jobs.
func (s *Store) Len(ctx context.Context) (int64, error) {
	n, err := s.client.ZCard(ctx, s.keys.queue()).Result()
	if err != nil {
		return 0, fmt.Errorf("griddispatch/redis: queue zcard: %w", err)
	}
	return n, nil
}
