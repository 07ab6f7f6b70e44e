package feedback

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyndok/lancet-obesity-compass/internal/domain"
)

func TestNewSQLiteStore(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "feedback-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	dbPath := filepath.Join(tmpDir, "nested", "test.db")

	// Act
	store, err := NewSQLiteStore(dbPath)

	// Assert
	require.NoError(t, err)
	require.NotNil(t, store)
	defer store.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "Database file should exist")
	assert.Equal(t, dbPath, store.Path())
}

func TestSQLiteStore_Save(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()

	feedback := &Feedback{
		PatientRef:              "MRN-1001",
		VisitType:               domain.INITIAL_VISIT,
		SuggestedClassification: domain.PRECLINICAL_OBESITY,
		ClinicianClassification: domain.CLINICAL_OBESITY,
		ClinicianAgreed:         false,
		Reasoning:               "Excess adiposity confirmed without evidence of organ dysfunction or functional limitations.",
		Notes:                   "Exertional dyspnea reported at follow-up",
		Clinician:               "Dr. Patel",
	}

	// Act
	err := store.Save(ctx, feedback)

	// Assert
	require.NoError(t, err)
	assert.NotZero(t, feedback.ID, "ID should be assigned")
	assert.False(t, feedback.CreatedAt.IsZero(), "CreatedAt should be set")
	assert.False(t, feedback.UpdatedAt.IsZero(), "UpdatedAt should be set")
	assert.True(t, feedback.Overridden())
}

func TestSQLiteStore_Save_DefaultsVisitType(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()
	feedback := &Feedback{
		PatientRef:              "MRN-1002",
		SuggestedClassification: domain.NO_OBESITY,
		ClinicianAgreed:         true,
	}

	require.NoError(t, store.Save(ctx, feedback))
	assert.Equal(t, domain.INITIAL_VISIT, feedback.VisitType)
	assert.Equal(t, domain.NO_OBESITY, feedback.ClinicianClassification, "agreement adopts the suggestion")

	retrieved, err := store.Get(ctx, "MRN-1002", "")
	require.NoError(t, err)
	require.NotNil(t, retrieved)
	assert.False(t, retrieved.Overridden())
}

func TestSQLiteStore_Save_Invalid(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()

	err := store.Save(ctx, &Feedback{
		SuggestedClassification: domain.NO_OBESITY,
		ClinicianClassification: domain.NO_OBESITY,
	})
	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "patient_ref", ve.Field)

	err = store.Save(ctx, &Feedback{
		PatientRef:              "MRN-1",
		VisitType:               "walk-in",
		SuggestedClassification: domain.NO_OBESITY,
		ClinicianClassification: domain.NO_OBESITY,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidVisitType)

	err = store.Save(ctx, &Feedback{
		PatientRef:              "MRN-1",
		SuggestedClassification: domain.NO_OBESITY,
		ClinicianClassification: "Obese",
	})
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "clinician_classification", ve.Field)
}

func TestSQLiteStore_Save_Update(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()

	feedback := &Feedback{
		PatientRef:              "MRN-1001",
		VisitType:               domain.RETURN_VISIT,
		SuggestedClassification: domain.CLINICAL_OBESITY,
		ClinicianClassification: domain.CLINICAL_OBESITY,
		ClinicianAgreed:         true,
	}
	require.NoError(t, store.Save(ctx, feedback))
	originalID := feedback.ID

	// Update the same visit
	updated := &Feedback{
		PatientRef:              "MRN-1001",
		VisitType:               domain.RETURN_VISIT,
		SuggestedClassification: domain.CLINICAL_OBESITY,
		ClinicianClassification: domain.PRECLINICAL_OBESITY,
		ClinicianAgreed:         false,
		Notes:                   "Hypertension resolved",
	}
	require.NoError(t, store.Save(ctx, updated))

	// Assert
	assert.Equal(t, originalID, updated.ID, "ID should remain the same")

	retrieved, err := store.Get(ctx, "MRN-1001", domain.RETURN_VISIT)
	require.NoError(t, err)
	assert.Equal(t, domain.PRECLINICAL_OBESITY, retrieved.ClinicianClassification)
	assert.False(t, retrieved.ClinicianAgreed)
	assert.Equal(t, "Hypertension resolved", retrieved.Notes)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestSQLiteStore_Get_SeparatesVisits(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &Feedback{
		PatientRef:              "MRN-2001",
		VisitType:               domain.INITIAL_VISIT,
		SuggestedClassification: domain.CLINICAL_OBESITY,
		ClinicianClassification: domain.CLINICAL_OBESITY,
		ClinicianAgreed:         true,
	}))
	require.NoError(t, store.Save(ctx, &Feedback{
		PatientRef:              "MRN-2001",
		VisitType:               domain.RETURN_VISIT,
		SuggestedClassification: domain.PRECLINICAL_OBESITY,
		ClinicianClassification: domain.PRECLINICAL_OBESITY,
		ClinicianAgreed:         true,
	}))

	initial, err := store.Get(ctx, "MRN-2001", domain.INITIAL_VISIT)
	require.NoError(t, err)
	assert.Equal(t, domain.CLINICAL_OBESITY, initial.ClinicianClassification)

	followUp, err := store.Get(ctx, "MRN-2001", domain.RETURN_VISIT)
	require.NoError(t, err)
	assert.Equal(t, domain.PRECLINICAL_OBESITY, followUp.ClinicianClassification)
}

func TestSQLiteStore_Get_NotFound(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	// Act
	retrieved, err := store.Get(context.Background(), "MRN-missing", domain.INITIAL_VISIT)

	// Assert
	require.NoError(t, err)
	assert.Nil(t, retrieved)
}

func TestSQLiteStore_List_Pagination(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()
	for _, ref := range []string{"MRN-1", "MRN-2", "MRN-3"} {
		require.NoError(t, store.Save(ctx, &Feedback{
			PatientRef:              ref,
			SuggestedClassification: domain.NO_OBESITY,
			ClinicianClassification: domain.NO_OBESITY,
			ClinicianAgreed:         true,
		}))
	}

	page1, err := store.List(ctx, 2, 0)
	require.NoError(t, err)
	assert.Len(t, page1, 2)

	page2, err := store.List(ctx, 2, 2)
	require.NoError(t, err)
	assert.Len(t, page2, 1)

	seen := map[string]bool{}
	for _, fb := range append(page1, page2...) {
		seen[fb.PatientRef] = true
	}
	assert.Len(t, seen, 3)
}

func TestSQLiteStore_Delete(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()
	feedback := &Feedback{
		PatientRef:              "MRN-3001",
		SuggestedClassification: domain.CLINICAL_OBESITY,
		ClinicianClassification: domain.CLINICAL_OBESITY,
		ClinicianAgreed:         true,
	}
	require.NoError(t, store.Save(ctx, feedback))

	// Act
	require.NoError(t, store.Delete(ctx, feedback.ID))

	// Assert
	retrieved, err := store.Get(ctx, "MRN-3001", domain.INITIAL_VISIT)
	require.NoError(t, err)
	assert.Nil(t, retrieved)
}

func TestSQLiteStore_ExportJSON(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, &Feedback{
		PatientRef:              "MRN-4001",
		SuggestedClassification: domain.PRECLINICAL_OBESITY,
		ClinicianClassification: domain.PRECLINICAL_OBESITY,
		ClinicianAgreed:         true,
		Clinician:               "Dr. Okafor",
	}))

	// Act
	var buf bytes.Buffer
	require.NoError(t, store.ExportJSON(ctx, &buf))

	// Assert
	var export FeedbackExport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &export))
	assert.Equal(t, "1.0", export.Version)
	assert.Equal(t, 1, export.Count)
	require.Len(t, export.Feedback, 1)
	assert.Equal(t, "MRN-4001", export.Feedback[0].PatientRef)
	assert.Equal(t, "Dr. Okafor", export.Feedback[0].Clinician)
}

func TestSQLiteStore_ExportJSON_Empty(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	var buf bytes.Buffer
	require.NoError(t, store.ExportJSON(context.Background(), &buf))
	assert.Contains(t, buf.String(), `"feedback": []`)
}

func TestSQLiteStore_ImportJSON_SkipDuplicates(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, &Feedback{
		PatientRef:              "MRN-5001",
		SuggestedClassification: domain.CLINICAL_OBESITY,
		ClinicianClassification: domain.CLINICAL_OBESITY,
		ClinicianAgreed:         true,
	}))

	jsonData := `{
		"version": "1.0",
		"count": 2,
		"feedback": [
			{
				"patient_ref": "MRN-5001",
				"visit_type": "initial",
				"suggested_classification": "clinical-obesity",
				"clinician_classification": "no-obesity",
				"clinician_agreed": false
			},
			{
				"patient_ref": "MRN-5002",
				"visit_type": "return",
				"suggested_classification": "preclinical-obesity",
				"clinician_classification": "preclinical-obesity",
				"clinician_agreed": true
			}
		]
	}`

	// Act
	imported, skipped, err := store.ImportJSON(ctx, bytes.NewReader([]byte(jsonData)))

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 1, imported)
	assert.Equal(t, 1, skipped)

	existing, err := store.Get(ctx, "MRN-5001", domain.INITIAL_VISIT)
	require.NoError(t, err)
	assert.Equal(t, domain.CLINICAL_OBESITY, existing.ClinicianClassification, "Existing should not be overwritten")

	added, err := store.Get(ctx, "MRN-5002", domain.RETURN_VISIT)
	require.NoError(t, err)
	require.NotNil(t, added)
	assert.True(t, added.ClinicianAgreed)
}

func TestSQLiteStore_ImportJSON_InvalidJSON(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	_, _, err := store.ImportJSON(context.Background(), bytes.NewReader([]byte("{")))
	assert.Error(t, err)
}

func TestNewStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "fb.db")

	store, err := NewStore(BackendSQLite, dbPath, "")
	require.NoError(t, err)
	defer store.Close()
	_, isSQLite := store.(*SQLiteStore)
	assert.True(t, isSQLite)

	_, err = NewStore(BackendPostgres, "", "")
	assert.Error(t, err)

	_, err = NewStore("mongo", "", "")
	assert.Error(t, err)
}

// Helper function to create a test store
func createTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "feedback-test-*")
	require.NoError(t, err)

	t.Cleanup(func() {
		os.RemoveAll(tmpDir)
	})

	dbPath := filepath.Join(tmpDir, "test.db")
	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	return store
}
