package services

import (
	"context"
	"errors"
	"time"

	"github.com/IANDYI/vitals-service/internal/core/domain"
	"github.com/IANDYI/vitals-service/internal/core/ports"
	"github.com/IANDYI/vitals-service/internal/core/triage"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultIntakeTimeout = 5 * time.Second

	DefaultListLimit = 50
	MaxListLimit     = 500

	// a backdated reading can have newer readings after it that the
	// anchored window drops, so fetch more than the history cap
	historyFetchLimit = 5 * triage.HistoryLimit

	summaryWindow      = 7 * 24 * time.Hour
	summaryRecentAlert = 10
)

// VitalsService implements reading intake: validation, triage, persistence
// and critical notification. Readings are the primary record; alerts and
// notifications are best-effort side effects.
type VitalsService struct {
	readingRepo   ports.ReadingRepository
	alertRepo     ports.AlertRepository
	notifier      ports.Notifier
	policy        triage.Policy
	intakeTimeout time.Duration
	logger        *zap.Logger
	now           func() time.Time
}

// NewVitalsService creates a new vitals service.
// notifier may be nil, in which case critical assessments are only logged.
func NewVitalsService(
	readingRepo ports.ReadingRepository,
	alertRepo ports.AlertRepository,
	notifier ports.Notifier,
	policy triage.Policy,
	intakeTimeout time.Duration,
	logger *zap.Logger,
) *VitalsService {
	if intakeTimeout <= 0 {
		intakeTimeout = DefaultIntakeTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VitalsService{
		readingRepo:   readingRepo,
		alertRepo:     alertRepo,
		notifier:      notifier,
		policy:        policy,
		intakeTimeout: intakeTimeout,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// RecordReading runs one intake transaction for the subject
func (s *VitalsService) RecordReading(
	ctx context.Context,
	subjectID uuid.UUID,
	source domain.ReadingSource,
	req ports.RecordReadingRequest,
) (*ports.IntakeResult, error) {
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(ctx, s.intakeTimeout)
	defer cancel()

	reading, err := newReading(subjectID, source, req, s.now())
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateReading(reading); err != nil {
		return nil, err
	}

	// Pattern analysis needs the subject's recent history of the same kind.
	// A failed history read fails the intake: nothing has been written yet
	// and skipping the pattern could hide a labor signal.
	var recent []*domain.Reading
	if reading.Kind.SupportsPatternAnalysis() {
		since := reading.Timestamp.Add(-triage.HistoryWindow(reading.Kind))
		recent, err = s.readingRepo.QueryRecentReadings(ctx, subjectID, reading.Kind, since, historyFetchLimit)
		if err != nil {
			return nil, upstreamError("failed to load recent readings", err)
		}
	}

	assessment := s.policy.Assess(reading, recent)

	if err := s.readingRepo.InsertReading(ctx, reading); err != nil {
		return nil, upstreamError("failed to save reading", err)
	}
	s.logReading(reading, assessment, "recorded")
	readingsRecordedTotal.WithLabelValues(string(reading.Kind), string(assessment.Status)).Inc()

	s.persistAlerts(ctx, reading, assessment)

	if assessment.Status == domain.SeverityCritical {
		s.notifyCritical(ctx, reading, assessment)
	}

	intakeDuration.WithLabelValues(string(reading.Kind)).Observe(time.Since(startTime).Seconds())

	return &ports.IntakeResult{Reading: reading, Analysis: assessment}, nil
}

// persistAlerts stores one alert per retained finding. Failures are logged and counted only.
func (s *VitalsService) persistAlerts(ctx context.Context, reading *domain.Reading, assessment *domain.RiskAssessment) {
	for _, f := range assessment.Findings {
		alert := domain.NewAlertFromFinding(reading, f)
		if err := s.alertRepo.InsertAlert(ctx, alert); err != nil {
			alertPersistFailuresTotal.Inc()
			s.logger.Error("failed to persist alert",
				zap.String("reading_id", reading.ID.String()),
				zap.String("subject_id", reading.SubjectID.String()),
				zap.String("category", f.Category),
				zap.String("severity", string(f.Severity)),
				zap.Error(err),
			)
			continue
		}
		alertsCreatedTotal.WithLabelValues(alert.Category, string(alert.Severity)).Inc()
	}
}

// notifyCritical publishes the critical findings to the subject's channel
func (s *VitalsService) notifyCritical(ctx context.Context, reading *domain.Reading, assessment *domain.RiskAssessment) {
	if s.notifier == nil {
		notificationsTotal.WithLabelValues("skipped").Inc()
		s.logger.Warn("critical assessment with no notifier configured",
			zap.String("reading_id", reading.ID.String()),
			zap.String("subject_id", reading.SubjectID.String()),
		)
		return
	}

	payload := domain.CriticalNotification{
		SubjectID: reading.SubjectID,
		ReadingID: reading.ID,
		Kind:      reading.Kind,
		Status:    assessment.Status,
		RiskScore: assessment.RiskScore,
		Findings:  assessment.CriticalFindings(),
		Timestamp: reading.Timestamp,
	}

	if err := s.notifier.PublishToSubjectChannel(ctx, reading.SubjectID, domain.EventCriticalAlert, payload); err != nil {
		notificationsTotal.WithLabelValues("failed").Inc()
		s.logger.Error("failed to publish critical notification",
			zap.String("reading_id", reading.ID.String()),
			zap.String("subject_id", reading.SubjectID.String()),
			zap.Error(err),
		)
		return
	}
	notificationsTotal.WithLabelValues("published").Inc()
	s.logReading(reading, assessment, "notification_published")
}

// ListReadings retrieves a subject's readings
// Enforces access: DOCTOR can read any subject, PATIENT only their own
func (s *VitalsService) ListReadings(
	ctx context.Context,
	caller domain.Caller,
	subjectID uuid.UUID,
	kind *domain.ReadingKind,
	limit int,
) ([]*domain.Reading, error) {
	if !caller.CanAccessSubject(subjectID) {
		return nil, domain.ErrForbidden
	}
	if kind != nil && !domain.IsValidReadingKind(*kind) {
		return nil, domain.NewValidationError("kind", "must be one of blood_pressure, heart_rate, weight, kick_count, contraction")
	}

	readings, err := s.readingRepo.ListReadings(ctx, subjectID, kind, clampLimit(limit, MaxListLimit))
	if err != nil {
		return nil, upstreamError("failed to list readings", err)
	}
	return readings, nil
}

// GetSummary aggregates the subject's latest readings and recent alerts
func (s *VitalsService) GetSummary(ctx context.Context, caller domain.Caller, subjectID uuid.UUID) (*ports.VitalsSummary, error) {
	if !caller.CanAccessSubject(subjectID) {
		return nil, domain.ErrForbidden
	}

	now := s.now()
	since := now.Add(-summaryWindow)

	latest, err := s.readingRepo.LatestReadings(ctx, subjectID)
	if err != nil {
		return nil, upstreamError("failed to load latest readings", err)
	}

	count, err := s.readingRepo.CountReadingsSince(ctx, subjectID, since)
	if err != nil {
		return nil, upstreamError("failed to count readings", err)
	}

	open, err := s.alertRepo.CountUnacknowledged(ctx, subjectID, since)
	if err != nil {
		return nil, upstreamError("failed to count alerts", err)
	}

	alerts, err := s.alertRepo.ListAlerts(ctx, domain.AlertFilter{SubjectID: &subjectID, Limit: summaryRecentAlert})
	if err != nil {
		return nil, upstreamError("failed to list alerts", err)
	}

	return &ports.VitalsSummary{
		SubjectID:            subjectID,
		Latest:               latest,
		ReadingsLast7Days:    count,
		UnacknowledgedAlerts: open,
		RecentAlerts:         alerts,
		GeneratedAt:          now,
	}, nil
}

func clampLimit(limit, max int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > max {
		return max
	}
	return limit
}

// IsRetryable reports whether the caller may resubmit after err
func IsRetryable(err error) bool {
	return errors.Is(err, domain.ErrUpstreamUnavailable)
}

var _ ports.VitalsService = (*VitalsService)(nil)
