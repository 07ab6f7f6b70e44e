package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/gyndok/lancet-obesity-compass/internal/domain"
)

const keyPrefix = "compass:result:"

// cachedResult is the value stored in Redis
type cachedResult struct {
	Result    *domain.DiagnosticResult `json:"result"`
	CachedAt  time.Time                `json:"cached_at"`
	ExpiresAt time.Time                `json:"expires_at"`
}

// RedisCache stores diagnostic results in Redis behind a circuit breaker.
// Redis failures degrade to cache misses.
type RedisCache struct {
	redis      *redis.Client
	breaker    *gobreaker.CircuitBreaker
	defaultTTL time.Duration
	logger     *logrus.Logger
}

// NewRedisCache connects to the Redis instance named by config.RedisURL
func NewRedisCache(config domain.CacheConfig, logger *logrus.Logger) (*RedisCache, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	if config.PoolTimeout > 0 {
		opts.PoolTimeout = config.PoolTimeout
	}
	if config.MaxRetries > 0 {
		opts.MaxRetries = config.MaxRetries
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisCacheWithClient(client, config.DefaultTTL, logger), nil
}

// NewRedisCacheWithClient wraps an existing client
func NewRedisCacheWithClient(client *redis.Client, ttl time.Duration, logger *logrus.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "redis-result-cache",
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, redis.Nil)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	return &RedisCache{
		redis:      client,
		breaker:    breaker,
		defaultTTL: ttl,
		logger:     logger,
	}
}

// Get retrieves a cached result. Errors are logged and reported as misses.
func (c *RedisCache) Get(ctx context.Context, key string) (*domain.DiagnosticResult, bool) {
	redisKey := keyPrefix + key

	raw, err := c.breaker.Execute(func() (interface{}, error) {
		return c.redis.Get(ctx, redisKey).Bytes()
	})
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.logger.WithError(err).WithField("key", redisKey).Warn("Result cache lookup failed")
		return nil, false
	}

	var cached cachedResult
	if err := json.Unmarshal(raw.([]byte), &cached); err != nil {
		// Remove corrupted cache entry
		c.redis.Del(ctx, redisKey)
		return nil, false
	}

	if time.Now().After(cached.ExpiresAt) || cached.Result == nil {
		c.redis.Del(ctx, redisKey)
		return nil, false
	}

	return cached.Result, true
}

// Set stores result under key. A zero ttl uses the cache default.
func (c *RedisCache) Set(ctx context.Context, key string, result *domain.DiagnosticResult, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	now := time.Now()
	payload, err := json.Marshal(cachedResult{
		Result:    result,
		CachedAt:  now,
		ExpiresAt: now.Add(ttl),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal cached result: %w", err)
	}

	_, err = c.breaker.Execute(func() (interface{}, error) {
		return nil, c.redis.Set(ctx, keyPrefix+key, payload, ttl).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to store cached result: %w", err)
	}
	return nil
}

// Invalidate removes the cached result for key
func (c *RedisCache) Invalidate(ctx context.Context, key string) error {
	return c.redis.Del(ctx, keyPrefix+key).Err()
}

// Ping checks if the Redis connection is alive
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

// Health fails while the circuit breaker is open, otherwise pings Redis
func (c *RedisCache) Health(ctx context.Context) error {
	if state := c.breaker.State(); state == gobreaker.StateOpen {
		return fmt.Errorf("redis circuit breaker is %s", state)
	}
	return c.Ping(ctx)
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.redis.Close()
}
