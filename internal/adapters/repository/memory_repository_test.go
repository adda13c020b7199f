package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/IANDYI/vitals-service/internal/adapters/repository"
	"github.com/IANDYI/vitals-service/internal/core/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func insertReading(t *testing.T, repo *repository.MemoryRepository, subjectID uuid.UUID, kind domain.ReadingKind, ts time.Time) *domain.Reading {
	reading := &domain.Reading{
		ID:        uuid.New(),
		SubjectID: subjectID,
		Kind:      kind,
		Source:    domain.SourceAPI,
		Timestamp: ts,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.InsertReading(context.Background(), reading))
	return reading
}

func TestMemoryRepository_QueryRecentReadings(t *testing.T) {
	repo := repository.NewMemoryRepository()
	ctx := context.Background()
	subjectID := uuid.New()
	now := time.Now().UTC()

	insertReading(t, repo, subjectID, domain.KindContraction, now.Add(-30*time.Minute))
	latest := insertReading(t, repo, subjectID, domain.KindContraction, now.Add(-5*time.Minute))
	insertReading(t, repo, subjectID, domain.KindContraction, now.Add(-3*time.Hour))
	insertReading(t, repo, subjectID, domain.KindHeartRate, now)
	insertReading(t, repo, uuid.New(), domain.KindContraction, now)

	readings, err := repo.QueryRecentReadings(ctx, subjectID, domain.KindContraction, now.Add(-2*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, readings, 2)
	assert.Equal(t, latest.ID, readings[0].ID)

	readings, err = repo.QueryRecentReadings(ctx, subjectID, domain.KindContraction, now.Add(-2*time.Hour), 1)
	require.NoError(t, err)
	require.Len(t, readings, 1)
	assert.Equal(t, latest.ID, readings[0].ID)
}

func TestMemoryRepository_ReturnsCopies(t *testing.T) {
	repo := repository.NewMemoryRepository()
	subjectID := uuid.New()
	original := insertReading(t, repo, subjectID, domain.KindWeight, time.Now())

	original.Note = "changed after insert"
	readings, err := repo.ListReadings(context.Background(), subjectID, nil, 0)
	require.NoError(t, err)
	require.Len(t, readings, 1)
	assert.Empty(t, readings[0].Note)

	readings[0].Note = "changed after read"
	again, err := repo.ListReadings(context.Background(), subjectID, nil, 0)
	require.NoError(t, err)
	assert.Empty(t, again[0].Note)
}

func TestMemoryRepository_CopiesPointerFields(t *testing.T) {
	repo := repository.NewMemoryRepository()
	ctx := context.Background()
	subjectID := uuid.New()

	systolic := 120.0
	reading := &domain.Reading{
		ID:        uuid.New(),
		SubjectID: subjectID,
		Kind:      domain.KindBloodPressure,
		Systolic:  &systolic,
		Timestamp: time.Now().UTC(),
	}
	require.NoError(t, repo.InsertReading(ctx, reading))

	*reading.Systolic = 300
	readings, err := repo.ListReadings(ctx, subjectID, nil, 0)
	require.NoError(t, err)
	require.Len(t, readings, 1)
	assert.Equal(t, 120.0, *readings[0].Systolic)

	*readings[0].Systolic = 10
	again, err := repo.ListReadings(ctx, subjectID, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, 120.0, *again[0].Systolic)

	readingID := reading.ID
	alert := &domain.Alert{
		ID:        uuid.New(),
		SubjectID: subjectID,
		ReadingID: &readingID,
		Severity:  domain.SeverityCritical,
		Metadata:  map[string]interface{}{"systolic": 120.0},
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.InsertAlert(ctx, alert))

	alert.Metadata["systolic"] = 300.0
	*alert.ReadingID = uuid.New()
	stored, err := repo.GetAlertByID(ctx, alert.ID)
	require.NoError(t, err)
	assert.Equal(t, 120.0, stored.Metadata["systolic"])
	assert.Equal(t, reading.ID, *stored.ReadingID)

	stored.Metadata["extra"] = true
	acked, err := repo.UpdateAlertAcknowledged(ctx, alert.ID, subjectID, time.Now().UTC())
	require.NoError(t, err)
	*acked.AcknowledgedAt = time.Time{}

	listed, err := repo.ListAlerts(ctx, domain.AlertFilter{SubjectID: &subjectID})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.NotContains(t, listed[0].Metadata, "extra")
	require.NotNil(t, listed[0].AcknowledgedAt)
	assert.False(t, listed[0].AcknowledgedAt.IsZero())
}

func TestMemoryRepository_LatestAndCount(t *testing.T) {
	repo := repository.NewMemoryRepository()
	ctx := context.Background()
	subjectID := uuid.New()
	now := time.Now().UTC()

	insertReading(t, repo, subjectID, domain.KindBloodPressure, now.Add(-10*24*time.Hour))
	newest := insertReading(t, repo, subjectID, domain.KindBloodPressure, now.Add(-time.Hour))
	insertReading(t, repo, subjectID, domain.KindWeight, now.Add(-2*time.Hour))

	latest, err := repo.LatestReadings(ctx, subjectID)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, newest.ID, latest[domain.KindBloodPressure].ID)

	count, err := repo.CountReadingsSince(ctx, subjectID, now.Add(-7*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestMemoryRepository_Alerts(t *testing.T) {
	repo := repository.NewMemoryRepository()
	ctx := context.Background()
	subjectID := uuid.New()
	now := time.Now().UTC()

	older := &domain.Alert{ID: uuid.New(), SubjectID: subjectID, Severity: domain.SeverityCritical, CreatedAt: now.Add(-time.Hour)}
	newer := &domain.Alert{ID: uuid.New(), SubjectID: subjectID, Severity: domain.SeverityCritical, CreatedAt: now}
	other := &domain.Alert{ID: uuid.New(), SubjectID: uuid.New(), Severity: domain.SeverityWarning, CreatedAt: now}
	for _, a := range []*domain.Alert{older, newer, other} {
		require.NoError(t, repo.InsertAlert(ctx, a))
	}

	_, err := repo.UpdateAlertAcknowledged(ctx, older.ID, other.SubjectID, now)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	acked, err := repo.UpdateAlertAcknowledged(ctx, older.ID, subjectID, now)
	require.NoError(t, err)
	assert.True(t, acked.Acknowledged)
	require.NotNil(t, acked.AcknowledgedAt)

	again, err := repo.UpdateAlertAcknowledged(ctx, older.ID, subjectID, now.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, now.Equal(*again.AcknowledgedAt))

	alerts, err := repo.ListAlerts(ctx, domain.AlertFilter{SubjectID: &subjectID})
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, newer.ID, alerts[0].ID)

	alerts, err = repo.ListAlerts(ctx, domain.AlertFilter{UnacknowledgedOnly: true, Limit: 1})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.False(t, alerts[0].Acknowledged)

	count, err := repo.CountUnacknowledged(ctx, subjectID, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = repo.GetAlertByID(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemoryRepository_CancelledContext(t *testing.T) {
	repo := repository.NewMemoryRepository()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.QueryRecentReadings(ctx, uuid.New(), domain.KindContraction, time.Now(), 10)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, repo.InsertAlert(ctx, &domain.Alert{ID: uuid.New()}), context.Canceled)
}
