package cache

import (
	"github.com/sirupsen/logrus"

	"github.com/gyndok/lancet-obesity-compass/internal/domain"
)

// New returns a Redis cache when a Redis URL is configured and reachable,
// and an in-memory cache otherwise.
func New(config domain.CacheConfig, logger *logrus.Logger) domain.ResultCache {
	if config.RedisURL != "" {
		redisCache, err := NewRedisCache(config, logger)
		if err == nil {
			logger.WithField("backend", "redis").Info("Result cache initialized")
			return redisCache
		}
		logger.WithError(err).Warn("Redis unavailable, falling back to in-memory result cache")
	}

	logger.WithFields(logrus.Fields{
		"backend":   "memory",
		"max_items": config.MaxItems,
	}).Info("Result cache initialized")
	return NewMemoryCache(config.MaxItems, config.DefaultTTL)
}
