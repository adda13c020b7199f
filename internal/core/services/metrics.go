package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	readingsRecordedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vitals_readings_recorded_total",
			Help: "Total number of readings recorded, by kind and assessed status",
		},
		[]string{"kind", "status"},
	)

	alertsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vitals_alerts_created_total",
			Help: "Total number of alerts persisted",
		},
		[]string{"category", "severity"},
	)

	alertPersistFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vitals_alert_persist_failures_total",
			Help: "Alerts that could not be persisted after the reading was recorded",
		},
	)

	notificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vitals_notifications_total",
			Help: "Subject channel notifications, by result",
		},
		[]string{"result"},
	)

	intakeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vitals_intake_duration_seconds",
			Help:    "Duration of reading intake including triage and persistence",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"kind"},
	)
)
