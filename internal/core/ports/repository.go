package ports

import (
	"context"
	"time"

	"github.com/IANDYI/vitals-service/internal/core/domain"
	"github.com/google/uuid"
)

// ReadingRepository defines the interface for reading persistence.
// Readings are append-only: there is no update or delete.
type ReadingRepository interface {
	// InsertReading stores a new reading
	InsertReading(ctx context.Context, reading *domain.Reading) error

	// QueryRecentReadings returns the subject's readings of one kind taken at or
	// after since, most-recent-first, capped at limit
	QueryRecentReadings(ctx context.Context, subjectID uuid.UUID, kind domain.ReadingKind, since time.Time, limit int) ([]*domain.Reading, error)

	// ListReadings returns the subject's readings, most-recent-first
	// Optional filter: kind (nil for all kinds)
	ListReadings(ctx context.Context, subjectID uuid.UUID, kind *domain.ReadingKind, limit int) ([]*domain.Reading, error)

	// LatestReadings returns the most recent reading of each kind the subject has submitted
	LatestReadings(ctx context.Context, subjectID uuid.UUID) (map[domain.ReadingKind]*domain.Reading, error)

	// CountReadingsSince counts the subject's readings taken at or after since
	CountReadingsSince(ctx context.Context, subjectID uuid.UUID, since time.Time) (int, error)
}

// AlertRepository defines the interface for alert persistence
type AlertRepository interface {
	// InsertAlert stores a new alert
	InsertAlert(ctx context.Context, alert *domain.Alert) error

	// UpdateAlertAcknowledged marks the subject's alert acknowledged at ts.
	// An already acknowledged alert keeps its original acknowledgment time.
	// Returns domain.ErrNotFound if no alert matches both ids.
	UpdateAlertAcknowledged(ctx context.Context, alertID uuid.UUID, subjectID uuid.UUID, ts time.Time) (*domain.Alert, error)

	// GetAlertByID retrieves an alert, domain.ErrNotFound if it doesn't exist
	GetAlertByID(ctx context.Context, alertID uuid.UUID) (*domain.Alert, error)

	// ListAlerts returns alerts newest first
	ListAlerts(ctx context.Context, filter domain.AlertFilter) ([]*domain.Alert, error)

	// CountUnacknowledged counts the subject's open alerts created at or after since
	CountUnacknowledged(ctx context.Context, subjectID uuid.UUID, since time.Time) (int, error)
}

// Notifier publishes events to a subject's real-time channel.
// Callers treat a returned error as non-fatal.
type Notifier interface {
	PublishToSubjectChannel(ctx context.Context, subjectID uuid.UUID, event string, payload interface{}) error
}
