package ports

import (
	"context"
	"time"

	"github.com/IANDYI/vitals-service/internal/core/domain"
	"github.com/google/uuid"
)

// VitalsService defines the business logic interface for reading intake and reads
type VitalsService interface {
	// RecordReading validates, triages and persists one reading for the subject.
	// Only the reading write is fatal; alert and notification failures are logged.
	RecordReading(ctx context.Context, subjectID uuid.UUID, source domain.ReadingSource, req RecordReadingRequest) (*IntakeResult, error)

	// ListReadings returns a subject's reading history
	// Enforces access: DOCTOR can read any subject, PATIENT only their own
	ListReadings(ctx context.Context, caller domain.Caller, subjectID uuid.UUID, kind *domain.ReadingKind, limit int) ([]*domain.Reading, error)

	// GetSummary aggregates recent readings and alerts for dashboard display
	GetSummary(ctx context.Context, caller domain.Caller, subjectID uuid.UUID) (*VitalsSummary, error)
}

// AlertService defines the business logic interface for alert operations
type AlertService interface {
	// ListAlerts returns alerts visible to the caller
	// PATIENT: always scoped to their own subject id
	ListAlerts(ctx context.Context, caller domain.Caller, filter domain.AlertFilter) ([]*domain.Alert, error)

	// AcknowledgeAlert marks an alert acknowledged; repeating it is a no-op
	// Alerts of other subjects are reported as not found to patients
	AcknowledgeAlert(ctx context.Context, caller domain.Caller, alertID uuid.UUID) (*domain.Alert, error)

	// CreateClinicianNote records a DOCTOR-authored alert for a subject
	CreateClinicianNote(ctx context.Context, caller domain.Caller, req ClinicianNoteRequest) (*domain.Alert, error)
}

// RecordReadingRequest represents the submitted fields of a reading.
// Kind may be left empty on the generic endpoint; it is then inferred from the fields present.
type RecordReadingRequest struct {
	Kind domain.ReadingKind `json:"kind,omitempty"`

	Systolic  *float64 `json:"systolic,omitempty"`
	Diastolic *float64 `json:"diastolic,omitempty"`
	HeartRate *float64 `json:"heart_rate,omitempty"`

	Weight          *float64 `json:"weight,omitempty"`
	BaselineWeight  *float64 `json:"baseline_weight,omitempty"`
	GestationalWeek *int     `json:"gestational_week,omitempty"`

	KickCount       *int `json:"kick_count,omitempty"`
	DurationMinutes *int `json:"duration_minutes,omitempty"`

	ContractionSeconds *int              `json:"contraction_duration_seconds,omitempty"`
	Intensity          *domain.Intensity `json:"intensity,omitempty"`

	Note      string     `json:"note,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"` // defaults to now
}

// IntakeResult is returned to the submitter for immediate feedback
type IntakeResult struct {
	Reading  *domain.Reading        `json:"reading"`
	Analysis *domain.RiskAssessment `json:"analysis"`
}

// VitalsSummary is the dashboard view of a subject
type VitalsSummary struct {
	SubjectID            uuid.UUID                              `json:"subject_id"`
	Latest               map[domain.ReadingKind]*domain.Reading `json:"latest"`
	ReadingsLast7Days    int                                    `json:"readings_last_7_days"`
	UnacknowledgedAlerts int                                    `json:"unacknowledged_alerts"`
	RecentAlerts         []*domain.Alert                        `json:"recent_alerts"`
	GeneratedAt          time.Time                              `json:"generated_at"`
}

// ClinicianNoteRequest represents a DOCTOR-authored alert
type ClinicianNoteRequest struct {
	SubjectID uuid.UUID              `json:"subject_id"`
	Severity  domain.Severity        `json:"severity"`
	Message   string                 `json:"message"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}
