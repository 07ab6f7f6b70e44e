package repository

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/gyndok/lancet-obesity-compass/internal/database"
	"github.com/gyndok/lancet-obesity-compass/internal/domain"
)

// generateTestPassword creates a random password for test databases
func generateTestPassword() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "test_fallback_password_123"
	}
	return "test_" + hex.EncodeToString(bytes)
}

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()
	testPassword := generateTestPassword()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword(testPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate PostgreSQL container: %v", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	config := database.Config{
		Host:        host,
		Port:        port.Int(),
		Database:    "testdb",
		Username:    "testuser",
		Password:    testPassword,
		MaxConns:    10,
		MinConns:    2,
		MaxConnLife: time.Hour,
		MaxConnIdle: time.Minute * 30,
		SSLMode:     "disable",
	}

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	runner, err := database.NewMigrationRunner(config.URL(), "../../migrations", logger)
	require.NoError(t, err)
	require.NoError(t, runner.Up(ctx))
	require.NoError(t, runner.Close())

	db, err := database.NewConnection(ctx, config, logger)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	return db
}

func sampleRecord(patientRef string, classification domain.Classification) *domain.AssessmentRecord {
	return &domain.AssessmentRecord{
		PatientRef: patientRef,
		VisitType:  domain.RETURN_VISIT,
		RequestID:  "req-1",
		Input: domain.PatientData{
			Anthropometrics: domain.AnthropometricData{
				Height: domain.Float(65),
				Weight: domain.Float(200),
			},
			Clinical: domain.ClinicalData{Hypertension: domain.Bool(true), PCOS: domain.Bool(false)},
		},
		Result: domain.DiagnosticResult{
			Classification:  classification,
			Confidence:      domain.LOW,
			Criteria:        domain.DiagnosticCriteria{ExcessAdiposityConfirmed: true, OrganDysfunction: []string{"Hypertension"}, FunctionalLimitations: []string{}, RiskFactors: []string{}},
			Recommendations: []string{"Comprehensive obesity management program"},
			Reasoning:       "Excess adiposity confirmed with evidence of organ dysfunction (1 systems affected).",
			AffectedSystems: []string{"Cardiovascular"},
		},
		ProcessingTimeMs: 3,
	}
}

func TestAssessmentRepository_SaveAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAssessmentRepository(db.Pool, logrus.New())
	ctx := context.Background()

	record := sampleRecord("MRN-100", domain.CLINICAL_OBESITY)
	require.NoError(t, repo.SaveAssessment(ctx, record))

	_, err := uuid.Parse(record.ID)
	require.NoError(t, err, "generated ID should be a UUID")
	assert.False(t, record.CreatedAt.IsZero())

	got, err := repo.GetAssessment(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, "MRN-100", got.PatientRef)
	assert.Equal(t, domain.RETURN_VISIT, got.VisitType)
	assert.Equal(t, record.Result, got.Result)
	require.NotNil(t, got.Input.Clinical.PCOS)
	assert.False(t, *got.Input.Clinical.PCOS, "present false survives the round trip")
	assert.Nil(t, got.Input.Clinical.SleepApnea)
}

func TestAssessmentRepository_GetNotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAssessmentRepository(db.Pool, logrus.New())

	_, err := repo.GetAssessment(context.Background(), uuid.NewString())
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	_, err = repo.GetAssessment(context.Background(), "not-a-uuid")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestAssessmentRepository_ListAssessments(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAssessmentRepository(db.Pool, logrus.New())
	ctx := context.Background()

	require.NoError(t, repo.SaveAssessment(ctx, sampleRecord("MRN-200", domain.CLINICAL_OBESITY)))
	require.NoError(t, repo.SaveAssessment(ctx, sampleRecord("MRN-200", domain.PRECLINICAL_OBESITY)))
	require.NoError(t, repo.SaveAssessment(ctx, sampleRecord("MRN-201", domain.NO_OBESITY)))

	list, err := repo.ListAssessments(ctx, "MRN-200", 10)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	limited, err := repo.ListAssessments(ctx, "MRN-200", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	empty, err := repo.ListAssessments(ctx, "MRN-none", 0)
	require.NoError(t, err)
	assert.Empty(t, empty)

	counts, err := repo.ClassificationCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[domain.CLINICAL_OBESITY])
	assert.Equal(t, 1, counts[domain.NO_OBESITY])
}

func TestAssessmentRepository_RejectsBadID(t *testing.T) {
	repo := NewAssessmentRepository(nil, logrus.New())
	record := sampleRecord("MRN-1", domain.NO_OBESITY)
	record.ID = "abc"

	err := repo.SaveAssessment(context.Background(), record)

	var ve *domain.ValidationError
	assert.True(t, errors.As(err, &ve))
}
