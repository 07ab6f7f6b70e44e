// Package feedback stores clinician feedback on suggested obesity
// classifications. Each patient visit holds at most one feedback entry;
// saving again for the same visit replaces the earlier decision.
package feedback

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/gyndok/lancet-obesity-compass/internal/domain"
)

// Feedback represents a clinician's decision on a suggested classification.
type Feedback struct {
	ID                      int64                 `json:"id,omitempty"`
	PatientRef              string                `json:"patient_ref"`
	VisitType               domain.VisitType      `json:"visit_type"`
	SuggestedClassification domain.Classification `json:"suggested_classification"` // Engine's suggestion
	ClinicianClassification domain.Classification `json:"clinician_classification"` // Clinician's decision
	ClinicianAgreed         bool                  `json:"clinician_agreed"`
	Reasoning               string                `json:"reasoning,omitempty"` // Engine reasoning at the time
	Notes                   string                `json:"notes,omitempty"`
	Clinician               string                `json:"clinician,omitempty"`
	CreatedAt               time.Time             `json:"created_at"`
	UpdatedAt               time.Time             `json:"updated_at"`
}

// Validate checks the fields required before a feedback entry is stored.
// An empty visit type is normalized to an initial visit, and a clinician who
// agreed without naming a classification takes the suggested one.
func (f *Feedback) Validate() error {
	if f.PatientRef == "" {
		return domain.NewValidationError("patient_ref", "patient reference is required", f.PatientRef)
	}
	if f.VisitType == "" {
		f.VisitType = domain.INITIAL_VISIT
	}
	if !f.VisitType.IsValid() {
		return fmt.Errorf("%w: %s", domain.ErrInvalidVisitType, f.VisitType)
	}
	if f.ClinicianClassification == "" && f.ClinicianAgreed {
		f.ClinicianClassification = f.SuggestedClassification
	}
	if !f.SuggestedClassification.IsValid() {
		return domain.NewValidationError("suggested_classification", "unknown classification", f.SuggestedClassification)
	}
	if !f.ClinicianClassification.IsValid() {
		return domain.NewValidationError("clinician_classification", "unknown classification", f.ClinicianClassification)
	}
	return nil
}

// Overridden reports whether the clinician chose a different classification.
func (f *Feedback) Overridden() bool {
	return f.SuggestedClassification != f.ClinicianClassification
}

// Store defines the interface for feedback storage operations.
type Store interface {
	// Save stores or updates clinician feedback.
	// Feedback for an existing patient_ref+visit_type is replaced.
	Save(ctx context.Context, feedback *Feedback) error

	// Get retrieves feedback for a patient visit, or nil if none exists.
	Get(ctx context.Context, patientRef string, visitType domain.VisitType) (*Feedback, error)

	// List returns feedback entries, newest first.
	List(ctx context.Context, limit, offset int) ([]*Feedback, error)

	// Count returns the total number of feedback entries.
	Count(ctx context.Context) (int64, error)

	// Delete removes a feedback entry by ID.
	Delete(ctx context.Context, id int64) error

	// ExportJSON exports all feedback to a JSON writer.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// ImportJSON imports feedback from a JSON reader. Entries for visits
	// that already have feedback are skipped.
	ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error)

	// Close closes the store and releases resources.
	Close() error
}

// FeedbackExport represents the JSON export format.
type FeedbackExport struct {
	Version    string      `json:"version"`
	ExportedAt time.Time   `json:"exported_at"`
	Count      int         `json:"count"`
	Feedback   []*Feedback `json:"feedback"`
}

const exportVersion = "1.0"

// maxExportLimit is the maximum number of entries to export at once.
const maxExportLimit = 1000000
