// Package redis implements store.Store on Redis. Each job is a Hash, and
// every state has a Sorted Set of job IDs scored by creation time, so a
// state query is a ZRANGE. Members with equal scores fall back to
// lexicographic order, which is the ID tie-break.
//
// Insert and the conditional update run as Lua scripts, making the state
// check, the hash write and the move between state sets one atomic step.
//
// Usage:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	s := redisstore.New(client)
//	if err := s.Ping(ctx); err != nil { ... }
package redis
