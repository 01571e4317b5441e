package registry

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ReplayStore tracks the last accepted action timestamp per identity, in
// epoch milliseconds. Exactly one implementation backs a given Registry.
type ReplayStore interface {
	Get(id string) (epochMillis int64, ok bool)
	Set(id string, epochMillis int64) error
}

// MemoryReplayStore is the default single-process backend.
type MemoryReplayStore struct {
	mu   sync.RWMutex
	last map[string]int64
}

// NewMemoryReplayStore creates an empty in-memory replay store, optionally
// seeded from a previously persisted store document.
func NewMemoryReplayStore(seed map[string]int64) *MemoryReplayStore {
	last := make(map[string]int64, len(seed))
	for k, v := range seed {
		last[k] = v
	}
	return &MemoryReplayStore{last: last}
}

func (s *MemoryReplayStore) Get(id string) (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.last[id]
	return v, ok
}

func (s *MemoryReplayStore) Set(id string, epochMillis int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		s.last = make(map[string]int64)
	}
	s.last[id] = epochMillis
	return nil
}

// Snapshot returns a copy of the current id->timestamp map, for
// persistence alongside the identity store document.
func (s *MemoryReplayStore) Snapshot() map[string]int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int64, len(s.last))
	for k, v := range s.last {
		out[k] = v
	}
	return out
}

// RedisReplayStore shares replay timestamps across multiple registry
// processes. Keys are namespaced under a caller-supplied prefix.
type RedisReplayStore struct {
	client *redis.Client
	prefix string
	ctx    context.Context
}

// NewRedisReplayStore wraps client, namespacing keys under prefix (e.g.
// "agentrust:replay:").
func NewRedisReplayStore(client *redis.Client, prefix string) *RedisReplayStore {
	return &RedisReplayStore{client: client, prefix: prefix, ctx: context.Background()}
}

func (s *RedisReplayStore) key(id string) string {
	return s.prefix + id
}

func (s *RedisReplayStore) Get(id string) (int64, bool) {
	val, err := s.client.Get(s.ctx, s.key(id)).Result()
	if err != nil {
		return 0, false
	}
	parsed, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false
	}
	return parsed, true
}

func (s *RedisReplayStore) Set(id string, epochMillis int64) error {
	return s.client.Set(s.ctx, s.key(id), strconv.FormatInt(epochMillis, 10), 0).Err()
}

func epochMillis(t time.Time) int64 {
	return t.UnixMilli()
}
