package cache

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyndok/lancet-obesity-compass/internal/domain"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func sampleResult() *domain.DiagnosticResult {
	return &domain.DiagnosticResult{
		Classification: domain.PRECLINICAL_OBESITY,
		Confidence:     domain.MEDIUM,
		Criteria: domain.DiagnosticCriteria{
			ExcessAdiposityConfirmed: true,
			OrganDysfunction:         []string{},
			FunctionalLimitations:    []string{},
			RiskFactors:              []string{"Prediabetes (HbA1c 5.7-6.4%)"},
		},
		Recommendations: []string{"Preventive lifestyle intervention"},
		Reasoning:       "Excess adiposity confirmed without evidence of organ dysfunction or functional limitations.",
		AffectedSystems: []string{},
	}
}

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	return mr, NewRedisCacheWithClient(client, time.Minute, testLogger())
}

func TestMemoryCache_SetAndGet(t *testing.T) {
	c := NewMemoryCache(10, time.Minute)
	ctx := context.Background()

	_, ok := c.Get(ctx, "missing")
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", sampleResult(), 0))
	got, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, domain.PRECLINICAL_OBESITY, got.Classification)
	assert.Equal(t, 1, c.Len())
}

func TestMemoryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewMemoryCache(2, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", sampleResult(), 0))
	require.NoError(t, c.Set(ctx, "b", sampleResult(), 0))
	_, _ = c.Get(ctx, "a")
	require.NoError(t, c.Set(ctx, "c", sampleResult(), 0))

	_, ok := c.Get(ctx, "b")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "a")
	assert.True(t, ok)
	_, ok = c.Get(ctx, "c")
	assert.True(t, ok)
}

func TestMemoryCache_ExpiresEntries(t *testing.T) {
	c := NewMemoryCache(10, time.Hour)
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", sampleResult(), time.Minute))

	now = now.Add(2 * time.Minute)
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestMemoryCache_Close(t *testing.T) {
	c := NewMemoryCache(0, 0)
	require.NoError(t, c.Set(context.Background(), "k", sampleResult(), 0))
	require.NoError(t, c.Close())
	assert.Equal(t, 0, c.Len())
}

func TestRedisCache_SetAndGet(t *testing.T) {
	mr, c := setupTestRedis(t)
	ctx := context.Background()

	_, ok := c.Get(ctx, "abc")
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "abc", sampleResult(), 0))
	assert.True(t, mr.Exists(keyPrefix+"abc"))

	got, ok := c.Get(ctx, "abc")
	require.True(t, ok)
	assert.Equal(t, sampleResult(), got)
}

func TestRedisCache_RespectsTTL(t *testing.T) {
	mr, c := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "abc", sampleResult(), 30*time.Second))
	assert.Equal(t, 30*time.Second, mr.TTL(keyPrefix+"abc"))

	mr.FastForward(31 * time.Second)
	_, ok := c.Get(ctx, "abc")
	assert.False(t, ok)
}

func TestRedisCache_CorruptedEntryIsMiss(t *testing.T) {
	mr, c := setupTestRedis(t)
	require.NoError(t, mr.Set(keyPrefix+"bad", "{not json"))

	_, ok := c.Get(context.Background(), "bad")
	assert.False(t, ok)
	assert.False(t, mr.Exists(keyPrefix+"bad"))
}

func TestRedisCache_UnavailableDegradesToMiss(t *testing.T) {
	mr, c := setupTestRedis(t)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "abc", sampleResult(), 0))

	mr.Close()

	_, ok := c.Get(ctx, "abc")
	assert.False(t, ok)
	assert.Error(t, c.Set(ctx, "abc", sampleResult(), 0))
}

func TestRedisCache_HealthReportsOpenBreaker(t *testing.T) {
	mr, c := setupTestRedis(t)
	ctx := context.Background()
	require.NoError(t, c.Health(ctx))

	mr.Close()
	for i := 0; i < 3; i++ {
		_, ok := c.Get(ctx, "abc")
		assert.False(t, ok)
	}

	err := c.Health(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker")
}

func TestRedisCache_Invalidate(t *testing.T) {
	mr, c := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "abc", sampleResult(), 0))
	require.NoError(t, c.Invalidate(ctx, "abc"))
	assert.False(t, mr.Exists(keyPrefix+"abc"))
}

func TestNew_FallsBackToMemory(t *testing.T) {
	c := New(domain.CacheConfig{RedisURL: "redis://127.0.0.1:1/0", MaxItems: 5}, testLogger())
	_, isMemory := c.(*MemoryCache)
	assert.True(t, isMemory)

	c = New(domain.CacheConfig{}, testLogger())
	_, isMemory = c.(*MemoryCache)
	assert.True(t, isMemory)
}

func TestNew_UsesRedisWhenReachable(t *testing.T) {
	mr := miniredis.RunT(t)

	c := New(domain.CacheConfig{RedisURL: "redis://" + mr.Addr() + "/0"}, testLogger())
	defer c.Close()

	_, isRedis := c.(*RedisCache)
	assert.True(t, isRedis)
}
