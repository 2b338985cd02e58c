// Package cache stores query responses in Redis. Keys include the index
// generation, so a changed index never serves stale entries.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang/snappy"
	"golang.org/x/sync/singleflight"

	"github.com/newsdex/newsdex/pkg/metrics"
	"github.com/newsdex/newsdex/pkg/resilience"
)

const keyPrefix = "search:"

// ErrMiss is returned by a Backend when a key is absent.
var ErrMiss = errors.New("cache miss")

// Backend is the key-value store behind the cache.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Key identifies one cached response.
type Key struct {
	Kind       string
	Query      string
	Limit      int
	Generation uint64
}

// String returns the Redis key. Whitespace differences in the query do
// not produce distinct keys.
func (k Key) String() string {
	normalized := strings.Join(strings.Fields(k.Query), " ")
	raw := fmt.Sprintf("%s|%d|%d|%s", k.Kind, k.Generation, k.Limit, normalized)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}

type QueryCache struct {
	backend Backend
	isMiss  func(error) bool
	ttl     time.Duration
	breaker *resilience.CircuitBreaker
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New returns a cache over backend. isMiss recognises the backend's
// absent-key error; ErrMiss is always treated as a miss.
func New(backend Backend, isMiss func(error) bool, ttl time.Duration, m *metrics.Metrics) *QueryCache {
	if m == nil {
		m = metrics.NewUnregistered()
	}
	miss := func(err error) bool {
		return errors.Is(err, ErrMiss) || (isMiss != nil && isMiss(err))
	}
	return &QueryCache{
		backend: backend,
		isMiss:  miss,
		ttl:     ttl,
		breaker: resilience.NewCircuitBreaker("query-cache", resilience.CircuitBreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     30 * time.Second,
			IsFailure:        func(err error) bool { return !miss(err) },
			OnStateChange: func(name string, to resilience.State) {
				m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			},
		}),
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

func (c *QueryCache) get(ctx context.Context, key string, out any) bool {
	var data []byte
	err := c.breaker.Execute(func() error {
		var err error
		data, err = c.backend.Get(ctx, key)
		return err
	})
	if err != nil {
		if !c.isMiss(err) && !errors.Is(err, resilience.ErrCircuitOpen) {
			c.logger.Warn("cache get failed", "key", key, "error", err)
		}
		return false
	}
	raw, err := snappy.Decode(nil, data)
	if err == nil {
		err = json.Unmarshal(raw, out)
	}
	if err != nil {
		c.logger.Warn("discarding unreadable cache entry", "key", key, "error", err)
		return false
	}
	return true
}

func (c *QueryCache) set(ctx context.Context, key string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.backend.Set(ctx, key, snappy.Encode(nil, raw), c.ttl)
	})
	if err != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// Fetch returns the cached value for key or computes, stores and returns
// it. Concurrent fetches of one key share a single compute. A nil cache
// always computes. The boolean reports a cache hit.
func Fetch[T any](ctx context.Context, c *QueryCache, key Key, compute func(ctx context.Context) (T, error)) (T, bool, error) {
	if c == nil {
		v, err := compute(ctx)
		return v, false, err
	}
	k := key.String()
	var cached T
	if c.get(ctx, k, &cached) {
		c.metrics.CacheHitsTotal.Inc()
		return cached, true, nil
	}
	c.metrics.CacheMissesTotal.Inc()

	v, err, _ := c.group.Do(k, func() (any, error) {
		var again T
		if c.get(ctx, k, &again) {
			return again, nil
		}
		computed, err := compute(ctx)
		if err != nil {
			return computed, err
		}
		c.set(ctx, k, computed)
		return computed, nil
	})
	if err != nil {
		var zero T
		return zero, false, err
	}
	return v.(T), false, nil
}

// Invalidate deletes every cached response.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	deleted, err := c.backend.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

// State reports the circuit breaker state guarding the backend.
func (c *QueryCache) State() resilience.State {
	return c.breaker.GetState()
}
