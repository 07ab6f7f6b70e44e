package domain

import (
	"context"
	"time"
)

// AssessmentRepository persists evaluations for later review.
type AssessmentRepository interface {
	SaveAssessment(ctx context.Context, record *AssessmentRecord) error
	GetAssessment(ctx context.Context, id string) (*AssessmentRecord, error)
	ListAssessments(ctx context.Context, patientRef string, limit int) ([]*AssessmentRecord, error)
	ClassificationCounts(ctx context.Context) (map[Classification]int, error)
}

// ResultCache memoizes evaluation results by input hash.
type ResultCache interface {
	Get(ctx context.Context, key string) (*DiagnosticResult, bool)
	Set(ctx context.Context, key string, result *DiagnosticResult, ttl time.Duration) error
	Close() error
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetDatabaseConfig() *DatabaseConfig
	GetServerConfig() *ServerConfig
	GetCacheConfig() *CacheConfig
	GetLoggingConfig() *LoggingConfig
	Reload() error
	Validate() error
	GetDatabaseConnectionString() string
	IsProduction() bool
	IsDevelopment() bool
}
