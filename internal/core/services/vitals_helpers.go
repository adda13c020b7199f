package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/IANDYI/vitals-service/internal/core/domain"
	"github.com/IANDYI/vitals-service/internal/core/ports"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxClockSkew is how far in the future a submitted timestamp may lie
const maxClockSkew = 5 * time.Minute

// InferKind picks the reading kind from the fields present when the client
// didn't name one. Returns "" when nothing identifies a kind.
func InferKind(req ports.RecordReadingRequest) domain.ReadingKind {
	switch {
	case req.Systolic != nil || req.Diastolic != nil:
		return domain.KindBloodPressure
	case req.Intensity != nil || req.ContractionSeconds != nil:
		return domain.KindContraction
	case req.KickCount != nil:
		return domain.KindKickCount
	case req.Weight != nil:
		return domain.KindWeight
	case req.HeartRate != nil:
		return domain.KindHeartRate
	}
	return ""
}

// newReading builds an unsaved reading from a request
func newReading(subjectID uuid.UUID, source domain.ReadingSource, req ports.RecordReadingRequest, now time.Time) (*domain.Reading, error) {
	kind := req.Kind
	if kind == "" {
		kind = InferKind(req)
	}
	if kind == "" {
		return nil, domain.NewValidationError("kind", "is required when no identifying fields are present")
	}

	timestamp := now
	if req.Timestamp != nil && !req.Timestamp.IsZero() {
		if req.Timestamp.After(now.Add(maxClockSkew)) {
			return nil, domain.NewValidationError("timestamp", "must not be in the future")
		}
		timestamp = req.Timestamp.UTC()
	}

	return &domain.Reading{
		ID:                 uuid.New(),
		SubjectID:          subjectID,
		Kind:               kind,
		Systolic:           req.Systolic,
		Diastolic:          req.Diastolic,
		HeartRate:          req.HeartRate,
		Weight:             req.Weight,
		BaselineWeight:     req.BaselineWeight,
		GestationalWeek:    req.GestationalWeek,
		KickCount:          req.KickCount,
		DurationMinutes:    req.DurationMinutes,
		ContractionSeconds: req.ContractionSeconds,
		Intensity:          req.Intensity,
		Note:               req.Note,
		Source:             source,
		Timestamp:          timestamp,
		CreatedAt:          now,
	}, nil
}

// upstreamError marks deadline and cancellation failures as retryable upstream unavailability
func upstreamError(msg string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w: %w", msg, domain.ErrUpstreamUnavailable, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// logReading logs structured fields for reading events
func (s *VitalsService) logReading(r *domain.Reading, assessment *domain.RiskAssessment, event string) {
	fields := []zap.Field{
		zap.String("event", event),
		zap.String("reading_id", r.ID.String()),
		zap.String("subject_id", r.SubjectID.String()),
		zap.String("kind", string(r.Kind)),
		zap.String("source", string(r.Source)),
		zap.Time("timestamp", r.Timestamp),
	}

	if assessment != nil {
		fields = append(fields,
			zap.String("status", string(assessment.Status)),
			zap.Float64("risk_score", assessment.RiskScore),
			zap.Int("findings", len(assessment.Findings)),
		)
	}

	switch r.Kind {
	case domain.KindBloodPressure:
		if r.Systolic != nil && r.Diastolic != nil {
			fields = append(fields, zap.Float64("systolic", *r.Systolic), zap.Float64("diastolic", *r.Diastolic))
		}
	case domain.KindContraction:
		if r.Intensity != nil {
			fields = append(fields, zap.String("intensity", string(*r.Intensity)))
		}
	case domain.KindKickCount:
		if r.KickCount != nil && r.DurationMinutes != nil {
			fields = append(fields, zap.Int("kick_count", *r.KickCount), zap.Int("duration_minutes", *r.DurationMinutes))
		}
	}

	s.logger.Info("reading", fields...)
}
