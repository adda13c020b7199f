package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/IANDYI/vitals-service/internal/core/domain"
	"github.com/IANDYI/vitals-service/internal/core/ports"
	"github.com/google/uuid"
)

// MemoryRepository is an in-process ReadingRepository and AlertRepository.
// Used by tests and by local runs without DB_CONNECTION_STRING.
// Stored values are copied in and out so callers can't mutate them.
type MemoryRepository struct {
	mu       sync.RWMutex
	readings []*domain.Reading
	alerts   map[uuid.UUID]*domain.Alert
}

// NewMemoryRepository creates an empty in-memory store
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{alerts: make(map[uuid.UUID]*domain.Alert)}
}

func (m *MemoryRepository) InsertReading(ctx context.Context, reading *domain.Reading) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.readings = append(m.readings, cloneReading(reading))
	return nil
}

func (m *MemoryRepository) QueryRecentReadings(ctx context.Context, subjectID uuid.UUID, kind domain.ReadingKind, since time.Time, limit int) ([]*domain.Reading, error) {
	return m.selectReadings(ctx, limit, func(r *domain.Reading) bool {
		return r.SubjectID == subjectID && r.Kind == kind && !r.Timestamp.Before(since)
	})
}

func (m *MemoryRepository) ListReadings(ctx context.Context, subjectID uuid.UUID, kind *domain.ReadingKind, limit int) ([]*domain.Reading, error) {
	return m.selectReadings(ctx, limit, func(r *domain.Reading) bool {
		return r.SubjectID == subjectID && (kind == nil || r.Kind == *kind)
	})
}

func (m *MemoryRepository) LatestReadings(ctx context.Context, subjectID uuid.UUID) (map[domain.ReadingKind]*domain.Reading, error) {
	readings, err := m.selectReadings(ctx, 0, func(r *domain.Reading) bool {
		return r.SubjectID == subjectID
	})
	if err != nil {
		return nil, err
	}

	latest := make(map[domain.ReadingKind]*domain.Reading)
	for _, r := range readings {
		if _, seen := latest[r.Kind]; !seen {
			latest[r.Kind] = r
		}
	}
	return latest, nil
}

func (m *MemoryRepository) CountReadingsSince(ctx context.Context, subjectID uuid.UUID, since time.Time) (int, error) {
	readings, err := m.selectReadings(ctx, 0, func(r *domain.Reading) bool {
		return r.SubjectID == subjectID && !r.Timestamp.Before(since)
	})
	return len(readings), err
}

// selectReadings returns copies of matching readings, most-recent-first; limit 0 means all
func (m *MemoryRepository) selectReadings(ctx context.Context, limit int, match func(*domain.Reading) bool) ([]*domain.Reading, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	selected := make([]*domain.Reading, 0)
	for _, r := range m.readings {
		if match(r) {
			selected = append(selected, cloneReading(r))
		}
	}
	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].Timestamp.After(selected[j].Timestamp)
	})
	if limit > 0 && len(selected) > limit {
		selected = selected[:limit]
	}
	return selected, nil
}

func (m *MemoryRepository) InsertAlert(ctx context.Context, alert *domain.Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.alerts[alert.ID] = cloneAlert(alert)
	return nil
}

func (m *MemoryRepository) UpdateAlertAcknowledged(ctx context.Context, alertID uuid.UUID, subjectID uuid.UUID, ts time.Time) (*domain.Alert, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	alert, ok := m.alerts[alertID]
	if !ok || alert.SubjectID != subjectID {
		return nil, domain.ErrNotFound
	}
	alert.Acknowledged = true
	if alert.AcknowledgedAt == nil {
		t := ts
		alert.AcknowledgedAt = &t
	}
	return cloneAlert(alert), nil
}

func (m *MemoryRepository) GetAlertByID(ctx context.Context, alertID uuid.UUID) (*domain.Alert, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	alert, ok := m.alerts[alertID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneAlert(alert), nil
}

func (m *MemoryRepository) ListAlerts(ctx context.Context, filter domain.AlertFilter) ([]*domain.Alert, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	alerts := make([]*domain.Alert, 0)
	for _, a := range m.alerts {
		if filter.SubjectID != nil && a.SubjectID != *filter.SubjectID {
			continue
		}
		if filter.UnacknowledgedOnly && a.Acknowledged {
			continue
		}
		alerts = append(alerts, cloneAlert(a))
	}
	sort.Slice(alerts, func(i, j int) bool {
		if alerts[i].CreatedAt.Equal(alerts[j].CreatedAt) {
			return alerts[i].ID.String() < alerts[j].ID.String()
		}
		return alerts[i].CreatedAt.After(alerts[j].CreatedAt)
	})
	if filter.Limit > 0 && len(alerts) > filter.Limit {
		alerts = alerts[:filter.Limit]
	}
	return alerts, nil
}

func (m *MemoryRepository) CountUnacknowledged(ctx context.Context, subjectID uuid.UUID, since time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, a := range m.alerts {
		if a.SubjectID == subjectID && !a.Acknowledged && !a.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

// Ping always succeeds
func (m *MemoryRepository) Ping(ctx context.Context) error {
	return nil
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// cloneReading copies r including the values behind its optional fields
func cloneReading(r *domain.Reading) *domain.Reading {
	c := *r
	c.Systolic = clonePtr(r.Systolic)
	c.Diastolic = clonePtr(r.Diastolic)
	c.HeartRate = clonePtr(r.HeartRate)
	c.Weight = clonePtr(r.Weight)
	c.BaselineWeight = clonePtr(r.BaselineWeight)
	c.GestationalWeek = clonePtr(r.GestationalWeek)
	c.KickCount = clonePtr(r.KickCount)
	c.DurationMinutes = clonePtr(r.DurationMinutes)
	c.ContractionSeconds = clonePtr(r.ContractionSeconds)
	c.Intensity = clonePtr(r.Intensity)
	return &c
}

// cloneAlert copies a; metadata values are shared, the map itself is not
func cloneAlert(a *domain.Alert) *domain.Alert {
	c := *a
	c.ReadingID = clonePtr(a.ReadingID)
	c.AuthorID = clonePtr(a.AuthorID)
	c.AcknowledgedAt = clonePtr(a.AcknowledgedAt)
	if a.Metadata != nil {
		c.Metadata = make(map[string]interface{}, len(a.Metadata))
		for k, v := range a.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

var _ ports.ReadingRepository = (*MemoryRepository)(nil)
var _ ports.AlertRepository = (*MemoryRepository)(nil)
