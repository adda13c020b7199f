package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/IANDYI/vitals-service/internal/core/domain"
	"github.com/IANDYI/vitals-service/internal/core/ports"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const MaxAlertListLimit = 200

// AlertService implements alert listing, acknowledgment and clinician notes
type AlertService struct {
	alertRepo ports.AlertRepository
	notifier  ports.Notifier
	logger    *zap.Logger
	now       func() time.Time
}

// NewAlertService creates a new alert service
func NewAlertService(alertRepo ports.AlertRepository, notifier ports.Notifier, logger *zap.Logger) *AlertService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlertService{
		alertRepo: alertRepo,
		notifier:  notifier,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ListAlerts returns alerts newest first
// PATIENT: the subject filter is forced to the caller's own id
func (s *AlertService) ListAlerts(ctx context.Context, caller domain.Caller, filter domain.AlertFilter) ([]*domain.Alert, error) {
	if !caller.IsClinician() {
		own := caller.UserID
		filter.SubjectID = &own
	}
	filter.Limit = clampLimit(filter.Limit, MaxAlertListLimit)

	alerts, err := s.alertRepo.ListAlerts(ctx, filter)
	if err != nil {
		return nil, upstreamError("failed to list alerts", err)
	}
	return alerts, nil
}

// AcknowledgeAlert moves an alert to its terminal acknowledged state.
// Acknowledging twice returns the stored alert with its original acknowledgment time.
func (s *AlertService) AcknowledgeAlert(ctx context.Context, caller domain.Caller, alertID uuid.UUID) (*domain.Alert, error) {
	alert, err := s.alertRepo.GetAlertByID(ctx, alertID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, upstreamError("failed to get alert", err)
	}

	// Don't leak other subjects' alerts
	if !caller.CanAccessSubject(alert.SubjectID) {
		return nil, domain.ErrNotFound
	}

	if alert.Acknowledged {
		return alert, nil
	}

	updated, err := s.alertRepo.UpdateAlertAcknowledged(ctx, alertID, alert.SubjectID, s.now())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, upstreamError("failed to acknowledge alert", err)
	}

	s.logger.Info("alert acknowledged",
		zap.String("alert_id", updated.ID.String()),
		zap.String("subject_id", updated.SubjectID.String()),
		zap.String("acknowledged_by", caller.UserID.String()),
		zap.String("role", caller.Role),
	)
	return updated, nil
}

// CreateClinicianNote records a DOCTOR-authored alert and pushes it to the subject
func (s *AlertService) CreateClinicianNote(ctx context.Context, caller domain.Caller, req ports.ClinicianNoteRequest) (*domain.Alert, error) {
	if !caller.IsClinician() {
		return nil, domain.ErrForbidden
	}

	verr := &domain.ValidationError{}
	if req.SubjectID == uuid.Nil {
		verr.Add("subject_id", "is required")
	}
	if req.Severity != domain.SeverityWarning && req.Severity != domain.SeverityCritical {
		verr.Add("severity", "must be warning or critical")
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		verr.Add("message", "is required")
	} else if len(message) > domain.NoteMaxLength {
		verr.Add("message", "must be at most 1000 characters")
	}
	if verr.HasFields() {
		return nil, verr
	}

	author := caller.UserID
	alert := &domain.Alert{
		ID:        uuid.New(),
		SubjectID: req.SubjectID,
		AuthorID:  &author,
		Severity:  req.Severity,
		Category:  domain.CategoryClinicianNote,
		Message:   message,
		Metadata:  req.Metadata,
		CreatedAt: s.now(),
	}

	if err := s.alertRepo.InsertAlert(ctx, alert); err != nil {
		return nil, upstreamError("failed to save clinician note", err)
	}
	alertsCreatedTotal.WithLabelValues(alert.Category, string(alert.Severity)).Inc()

	if s.notifier != nil {
		if err := s.notifier.PublishToSubjectChannel(ctx, alert.SubjectID, domain.EventClinicianNote, alert); err != nil {
			notificationsTotal.WithLabelValues("failed").Inc()
			s.logger.Error("failed to publish clinician note",
				zap.String("alert_id", alert.ID.String()),
				zap.String("subject_id", alert.SubjectID.String()),
				zap.Error(err),
			)
		} else {
			notificationsTotal.WithLabelValues("published").Inc()
		}
	}

	return alert, nil
}

var _ ports.AlertService = (*AlertService)(nil)
