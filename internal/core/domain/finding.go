package domain

import (
	"time"

	"github.com/google/uuid"
)

// Severity is the triage level of a finding, alert or assessment
type Severity string

const (
	SeverityNormal   Severity = "normal"   // within expected range
	SeverityWarning  Severity = "warning"  // outside normal for pregnancy, needs follow-up
	SeverityCritical Severity = "critical" // requires immediate attention
)

// Rank orders severities so that the worst one can be picked
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 2
	case SeverityWarning:
		return 1
	default:
		return 0
	}
}

// IsValidSeverity checks if a severity is valid
func IsValidSeverity(s Severity) bool {
	return s == SeverityNormal || s == SeverityWarning || s == SeverityCritical
}

// Finding categories
const (
	CategoryBloodPressure = "blood_pressure"
	CategoryHeartRate     = "heart_rate"
	CategoryWeight        = "weight"
	CategoryFetalMovement = "fetal_movement"
	CategoryContractions  = "contractions"
	CategoryClinicianNote = "clinician_note"
)

// Finding is a single derived observation from one or more readings.
// Findings are never stored on their own; non-normal ones become Alerts.
type Finding struct {
	Category string                 `json:"category"`
	Severity Severity               `json:"severity"`
	Message  string                 `json:"message"`
	Values   map[string]interface{} `json:"values,omitempty"`
}

// RiskAssessment is the aggregate result of one intake transaction
type RiskAssessment struct {
	Status    Severity  `json:"status"`
	RiskScore float64   `json:"risk_score"`
	Findings  []Finding `json:"findings"`
}

// CriticalFindings returns the findings with critical severity, in order
func (a *RiskAssessment) CriticalFindings() []Finding {
	var critical []Finding
	for _, f := range a.Findings {
		if f.Severity == SeverityCritical {
			critical = append(critical, f)
		}
	}
	return critical
}

// Alert is a persisted, acknowledgeable record of a non-normal finding or a
// clinician-authored note. Severity never changes after creation and the
// acknowledgment time is set at most once.
type Alert struct {
	ID             uuid.UUID              `json:"id"`
	SubjectID      uuid.UUID              `json:"subject_id"`
	ReadingID      *uuid.UUID             `json:"reading_id,omitempty"`
	AuthorID       *uuid.UUID             `json:"author_id,omitempty"` // clinician notes only
	Severity       Severity               `json:"severity"`
	Category       string                 `json:"category"`
	Message        string                 `json:"message"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	Acknowledged   bool                   `json:"acknowledged"`
	CreatedAt      time.Time              `json:"created_at"`
	AcknowledgedAt *time.Time             `json:"acknowledged_at,omitempty"`
}

// NewAlertFromFinding builds an unacknowledged alert for a reading's finding
func NewAlertFromFinding(reading *Reading, f Finding) *Alert {
	readingID := reading.ID
	return &Alert{
		ID:        uuid.New(),
		SubjectID: reading.SubjectID,
		ReadingID: &readingID,
		Severity:  f.Severity,
		Category:  f.Category,
		Message:   f.Message,
		Metadata:  f.Values,
		CreatedAt: time.Now().UTC(),
	}
}

// AlertFilter narrows alert listings
type AlertFilter struct {
	SubjectID          *uuid.UUID // nil: all subjects (DOCTOR only)
	UnacknowledgedOnly bool
	Limit              int
}

// Notification events published to subject channels
const (
	EventCriticalAlert = "critical_alert"
	EventClinicianNote = "clinician_note"
)

// CriticalNotification is the payload pushed to a subject's channel when an
// intake is assessed critical
type CriticalNotification struct {
	SubjectID uuid.UUID   `json:"subject_id"`
	ReadingID uuid.UUID   `json:"reading_id"`
	Kind      ReadingKind `json:"kind"`
	Status    Severity    `json:"status"`
	RiskScore float64     `json:"risk_score"`
	Findings  []Finding   `json:"findings"`
	Timestamp time.Time   `json:"timestamp"`
}

// SubjectEvent is the envelope carried on subject channels and the alert queue
type SubjectEvent struct {
	Event     string      `json:"event"`
	SubjectID uuid.UUID   `json:"subject_id"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}
