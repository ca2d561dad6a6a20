package frontier

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/maltedev/refurb-crawler/internal/urlutil"
	"github.com/redis/go-redis/v9"
)

// VisitedSet records URLs that have been dequeued. Add is an atomic
// insert-if-absent: it reports true only for the first caller.
type VisitedSet interface {
	Add(ctx context.Context, url string) (bool, error)
	Contains(ctx context.Context, url string) (bool, error)
}

type MemoryVisitedSet struct {
	mu   sync.Mutex
	urls map[string]struct{}
}

func NewMemoryVisitedSet() *MemoryVisitedSet {
	return &MemoryVisitedSet{urls: make(map[string]struct{})}
}

func (s *MemoryVisitedSet) Add(_ context.Context, url string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.urls[url]; ok {
		return false, nil
	}
	s.urls[url] = struct{}{}
	return true, nil
}

func (s *MemoryVisitedSet) Contains(_ context.Context, url string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.urls[url]
	return ok, nil
}

func (s *MemoryVisitedSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.urls)
}

// RedisClient is the subset of the redis client used by RedisVisitedSet.
type RedisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisVisitedSet keeps one key per URL under a run-scoped prefix so that
// separate runs and site-roots never share entries.
type RedisVisitedSet struct {
	client RedisClient
	prefix string
	ttl    time.Duration
}

func NewRedisVisitedSet(client RedisClient, prefix string, ttl time.Duration) *RedisVisitedSet {
	return &RedisVisitedSet{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

// VisitedKeyPrefix builds the key prefix for one site-root of one run.
func VisitedKeyPrefix(runID, tag string) string {
	return fmt.Sprintf("refurb:visited:%s:%s:", runID, tag)
}

func (s *RedisVisitedSet) key(url string) string {
	return s.prefix + urlutil.HashURL(url)
}

func (s *RedisVisitedSet) Add(ctx context.Context, url string) (bool, error) {
	added, err := s.client.SetNX(ctx, s.key(url), url, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark visited: %w", err)
	}
	return added, nil
}

func (s *RedisVisitedSet) Contains(ctx context.Context, url string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(url)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check visited: %w", err)
	}
	return n == 1, nil
}
