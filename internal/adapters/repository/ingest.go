package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IANDYI/vitals-service/internal/core/domain"
	"github.com/IANDYI/vitals-service/internal/core/ports"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ReadingsConsumedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vitals_readings_consumed_total",
			Help: "Total number of device readings consumed, by source and outcome",
		},
		[]string{"source", "status"},
	)

	IngestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vitals_ingest_duration_seconds",
			Help:    "Duration of device reading processing",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"source", "status"},
	)
)

// RegisterIngestMetrics registers the device ingestion metrics
func RegisterIngestMetrics() {
	prometheus.MustRegister(ReadingsConsumedTotal)
	prometheus.MustRegister(IngestDuration)
}

// ReadingMessage is the device payload on the readings queue and MQTT topics:
// the reading fields plus the subject they belong to
type ReadingMessage struct {
	SubjectID string `json:"subject_id"`
	ports.RecordReadingRequest
}

// errRejected marks messages that can never succeed and must not be redelivered
var errRejected = errors.New("message rejected")

// ingestReading decodes a device message and records it. topicSubject, when
// set, is the subject named by the transport and must agree with the body.
// Returns an error wrapping errRejected for malformed or invalid messages.
func ingestReading(
	ctx context.Context,
	service ports.VitalsService,
	source domain.ReadingSource,
	body []byte,
	topicSubject string,
) (*ports.IntakeResult, error) {
	start := time.Now()
	status := "recorded"
	defer func() {
		ReadingsConsumedTotal.WithLabelValues(string(source), status).Inc()
		IngestDuration.WithLabelValues(string(source), status).Observe(time.Since(start).Seconds())
	}()

	var msg ReadingMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		status = "rejected"
		return nil, fmt.Errorf("%w: invalid JSON: %v", errRejected, err)
	}

	raw := msg.SubjectID
	if topicSubject != "" {
		if raw != "" && raw != topicSubject {
			status = "rejected"
			return nil, fmt.Errorf("%w: subject_id does not match topic", errRejected)
		}
		raw = topicSubject
	}
	subjectID, err := uuid.Parse(raw)
	if err != nil {
		status = "rejected"
		return nil, fmt.Errorf("%w: subject_id is not a valid UUID", errRejected)
	}

	result, err := service.RecordReading(ctx, subjectID, source, msg.RecordReadingRequest)
	if err != nil {
		if domain.IsValidationError(err) {
			status = "rejected"
			return nil, fmt.Errorf("%w: %v", errRejected, err)
		}
		status = "failed"
		return nil, err
	}
	return result, nil
}
