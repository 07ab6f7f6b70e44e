// Package repository persists assessment history in PostgreSQL.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/gyndok/lancet-obesity-compass/internal/domain"
)

const (
	defaultListLimit = 20
	maxListLimit     = 500
)

// AssessmentRepository handles assessment persistence
type AssessmentRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewAssessmentRepository creates a new assessment repository
func NewAssessmentRepository(db *pgxpool.Pool, logger *logrus.Logger) *AssessmentRepository {
	return &AssessmentRepository{
		db:  db,
		log: logger,
	}
}

// SaveAssessment inserts an assessment. A missing ID is generated.
func (r *AssessmentRepository) SaveAssessment(ctx context.Context, record *domain.AssessmentRecord) error {
	if record == nil {
		return fmt.Errorf("assessment record is required")
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	id, err := uuid.Parse(record.ID)
	if err != nil {
		return domain.NewValidationError("id", "assessment id must be a UUID", record.ID)
	}
	if record.VisitType == "" {
		record.VisitType = domain.INITIAL_VISIT
	}

	inputJSON, err := json.Marshal(record.Input)
	if err != nil {
		return fmt.Errorf("marshaling assessment input: %w", err)
	}

	resultJSON, err := json.Marshal(record.Result)
	if err != nil {
		return fmt.Errorf("marshaling assessment result: %w", err)
	}

	query := `
		INSERT INTO assessments (
			id, patient_ref, visit_type, request_id, classification, confidence,
			input, result, processing_time_ms
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
		RETURNING created_at`

	err = r.db.QueryRow(ctx, query,
		id,
		record.PatientRef,
		string(record.VisitType),
		record.RequestID,
		string(record.Result.Classification),
		string(record.Result.Confidence),
		inputJSON,
		resultJSON,
		record.ProcessingTimeMs,
	).Scan(&record.CreatedAt)

	if err != nil {
		r.log.WithFields(logrus.Fields{
			"assessment_id":  record.ID,
			"patient_ref":    record.PatientRef,
			"classification": record.Result.Classification,
			"error":          err,
		}).Error("Failed to save assessment")
		return fmt.Errorf("saving assessment: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"assessment_id":   record.ID,
		"patient_ref":     record.PatientRef,
		"visit_type":      record.VisitType,
		"classification":  record.Result.Classification,
		"confidence":      record.Result.Confidence,
		"processing_time": record.ProcessingTimeMs,
	}).Info("Assessment saved")

	return nil
}

// GetAssessment retrieves an assessment by its ID
func (r *AssessmentRepository) GetAssessment(ctx context.Context, id string) (*domain.AssessmentRecord, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("assessment %q: %w", id, domain.ErrNotFound)
	}

	query := `
		SELECT id, patient_ref, visit_type, request_id, input, result,
			   processing_time_ms, created_at
		FROM assessments
		WHERE id = $1`

	record, err := scanAssessment(r.db.QueryRow(ctx, query, parsed))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("assessment not found: %w", domain.ErrNotFound)
		}
		r.log.WithFields(logrus.Fields{
			"assessment_id": id,
			"error":         err,
		}).Error("Failed to get assessment by ID")
		return nil, fmt.Errorf("getting assessment by ID: %w", err)
	}

	return record, nil
}

// ListAssessments returns a patient's assessments, newest first
func (r *AssessmentRepository) ListAssessments(ctx context.Context, patientRef string, limit int) ([]*domain.AssessmentRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	query := `
		SELECT id, patient_ref, visit_type, request_id, input, result,
			   processing_time_ms, created_at
		FROM assessments
		WHERE patient_ref = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, patientRef, limit)
	if err != nil {
		return nil, fmt.Errorf("listing assessments: %w", err)
	}
	defer rows.Close()

	records := make([]*domain.AssessmentRecord, 0)
	for rows.Next() {
		record, err := scanAssessment(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning assessment: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating assessments: %w", err)
	}

	return records, nil
}

// ClassificationCounts tallies stored assessments by classification
func (r *AssessmentRepository) ClassificationCounts(ctx context.Context) (map[domain.Classification]int, error) {
	rows, err := r.db.Query(ctx, `SELECT classification, COUNT(*) FROM assessments GROUP BY classification`)
	if err != nil {
		return nil, fmt.Errorf("counting assessments: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.Classification]int)
	for rows.Next() {
		var classification string
		var count int
		if err := rows.Scan(&classification, &count); err != nil {
			return nil, fmt.Errorf("scanning count: %w", err)
		}
		counts[domain.Classification(classification)] = count
	}
	return counts, rows.Err()
}

func scanAssessment(row pgx.Row) (*domain.AssessmentRecord, error) {
	var record domain.AssessmentRecord
	var id uuid.UUID
	var visitType string
	var inputJSON, resultJSON []byte

	err := row.Scan(
		&id,
		&record.PatientRef,
		&visitType,
		&record.RequestID,
		&inputJSON,
		&resultJSON,
		&record.ProcessingTimeMs,
		&record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.ID = id.String()
	record.VisitType = domain.VisitType(visitType)

	if err := json.Unmarshal(inputJSON, &record.Input); err != nil {
		return nil, fmt.Errorf("unmarshaling assessment input: %w", err)
	}
	if err := json.Unmarshal(resultJSON, &record.Result); err != nil {
		return nil, fmt.Errorf("unmarshaling assessment result: %w", err)
	}

	return &record, nil
}
