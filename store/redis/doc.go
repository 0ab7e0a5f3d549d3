// Package redis implements store.Store on Redis. The shared queue is a
// Sorted Set of job ids scored by enqueue time; job bodies and failure
// records are msgpack blobs; nodes are Hashes so a heartbeat touches only
// two fields.
//
// The caller owns the client lifecycle:
//
//	client := goredis.NewClient(&goredis.Options{Addr: "localhost:6379"})
//	s := redis.New(client, redis.WithPrefix("prod:"))
//	if err := s.Ping(ctx); err != nil { ... }
package redis
