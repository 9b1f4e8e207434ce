package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateStore coordinates rate limiting counters for a specific key.
type RateStore interface {
	Increment(ctx context.Context, key string, window time.Duration) (count int, ttl time.Duration, err error)
}

// memoryRateStore provides process-local rate limiting. It is concurrency-safe.
type memoryRateStore struct {
	mu        sync.Mutex
	data      map[string]*memoryCounter
	clock     func() time.Time
	nextSweep time.Time
}

type memoryCounter struct {
	count     int
	windowEnd time.Time
}

// NewMemoryRateStore constructs an in-memory rate store.
func NewMemoryRateStore() RateStore {
	return newMemoryRateStore(time.Now)
}

func newMemoryRateStore(clock func() time.Time) *memoryRateStore {
	return &memoryRateStore{
		data:  make(map[string]*memoryCounter),
		clock: clock,
	}
}

func (s *memoryRateStore) Increment(_ context.Context, key string, window time.Duration) (int, time.Duration, error) {
	if window <= 0 {
		window = time.Minute
	}

	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if now.After(s.nextSweep) {
		for k, counter := range s.data {
			if now.After(counter.windowEnd) {
				delete(s.data, k)
			}
		}
		s.nextSweep = now.Add(time.Minute)
	}

	counter, ok := s.data[key]
	if !ok || now.After(counter.windowEnd) {
		counter = &memoryCounter{windowEnd: now.Add(window)}
		s.data[key] = counter
	}

	counter.count++

	return counter.count, counter.windowEnd.Sub(now), nil
}

// redisRateStore shares fixed-window counters between server replicas.
type redisRateStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisRateStore builds a RateStore on top of Redis. A nil client yields a nil store.
func NewRedisRateStore(client redis.UniversalClient, prefix string) RateStore {
	if client == nil {
		return nil
	}
	if prefix == "" {
		prefix = "studhelper:ratelimit:"
	}
	return &redisRateStore{client: client, prefix: prefix}
}

func (s *redisRateStore) Increment(ctx context.Context, key string, window time.Duration) (int, time.Duration, error) {
	if window <= 0 {
		window = time.Minute
	}
	fullKey := s.prefix + key

	count, err := s.client.Incr(ctx, fullKey).Result()
	if err != nil {
		return 0, 0, err
	}
	if count == 1 {
		if err := s.client.PExpire(ctx, fullKey, window).Err(); err != nil {
			return 0, 0, err
		}
		return 1, window, nil
	}

	ttl, err := s.client.PTTL(ctx, fullKey).Result()
	if err != nil {
		return 0, 0, err
	}
	if ttl < 0 {
		// Counter lost its expiry; restart the window rather than blocking forever.
		if err := s.client.PExpire(ctx, fullKey, window).Err(); err != nil {
			return 0, 0, err
		}
		ttl = window
	}
	return int(count), ttl, nil
}
