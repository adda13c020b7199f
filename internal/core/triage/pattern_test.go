package triage_test

import (
	"testing"
	"time"

	"github.com/IANDYI/vitals-service/internal/core/domain"
	"github.com/IANDYI/vitals-service/internal/core/triage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func contraction(at time.Time, intensity domain.Intensity) *domain.Reading {
	return &domain.Reading{
		ID:        uuid.New(),
		Kind:      domain.KindContraction,
		Intensity: &intensity,
		Timestamp: at,
	}
}

func kickSession(at time.Time, count int) *domain.Reading {
	duration := 60
	return &domain.Reading{
		ID:              uuid.New(),
		Kind:            domain.KindKickCount,
		KickCount:       &count,
		DurationMinutes: &duration,
		Timestamp:       at,
	}
}

// history with intervals 8, 7, 9 minutes between the new contraction and the prior three
func laborHistory() ([]*domain.Reading, time.Time) {
	newAt := base.Add(24 * time.Minute)
	return []*domain.Reading{
		contraction(base.Add(16*time.Minute), domain.IntensityModerate),
		contraction(base.Add(9*time.Minute), domain.IntensityModerate),
		contraction(base, domain.IntensityMild),
	}, newAt
}

func TestAnalyzeContractionPattern_StrongRegular(t *testing.T) {
	recent, newAt := laborHistory()

	f := triage.AnalyzeContractionPattern(recent, contraction(newAt, domain.IntensityStrong))
	require.NotNil(t, f)
	assert.Equal(t, domain.SeverityCritical, f.Severity)
	assert.Equal(t, domain.CategoryContractions, f.Category)
	assert.InDelta(t, 8.0, f.Values["average_interval_minutes"], 1e-9)
	assert.Equal(t, []float64{8, 7, 9}, f.Values["intervals_minutes"])
}

func TestAnalyzeContractionPattern_NotStrong(t *testing.T) {
	recent, newAt := laborHistory()

	assert.Nil(t, triage.AnalyzeContractionPattern(recent, contraction(newAt, domain.IntensityModerate)))
}

func TestAnalyzeContractionPattern_TooFew(t *testing.T) {
	recent := []*domain.Reading{contraction(base, domain.IntensityStrong)}

	assert.Nil(t, triage.AnalyzeContractionPattern(recent, contraction(base.Add(3*time.Minute), domain.IntensityStrong)))
	assert.Nil(t, triage.AnalyzeContractionPattern(nil, contraction(base, domain.IntensityStrong)))
}

func TestAnalyzeContractionPattern_SpreadOut(t *testing.T) {
	recent := []*domain.Reading{
		contraction(base.Add(30*time.Minute), domain.IntensityStrong),
		contraction(base, domain.IntensityStrong),
	}

	assert.Nil(t, triage.AnalyzeContractionPattern(recent, contraction(base.Add(55*time.Minute), domain.IntensityStrong)))
}

func TestAnalyzeContractionPattern_IgnoresReadingsOutsideWindow(t *testing.T) {
	newAt := base.Add(3 * time.Hour)
	recent := []*domain.Reading{
		contraction(newAt.Add(-5*time.Minute), domain.IntensityStrong),
		// older than two hours before the new contraction
		contraction(newAt.Add(-150*time.Minute), domain.IntensityStrong),
		contraction(newAt.Add(-155*time.Minute), domain.IntensityStrong),
	}

	assert.Nil(t, triage.AnalyzeContractionPattern(recent, contraction(newAt, domain.IntensityStrong)))
}

func TestAnalyzeContractionPattern_Deterministic(t *testing.T) {
	recent, newAt := laborHistory()
	newContraction := contraction(newAt, domain.IntensityStrong)

	first := triage.AnalyzeContractionPattern(recent, newContraction)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, triage.AnalyzeContractionPattern(recent, newContraction))
	}
}

func TestSelectHistory_WindowThenCap(t *testing.T) {
	anchor := base.Add(2 * time.Hour)
	var recent []*domain.Reading
	// 15 readings, 5 minutes apart, all inside the window, submitted oldest-first
	for i := 14; i >= 0; i-- {
		recent = append(recent, contraction(anchor.Add(-time.Duration(i*5+1)*time.Minute), domain.IntensityMild))
	}
	// one outside the window
	recent = append(recent, contraction(anchor.Add(-3*time.Hour), domain.IntensityMild))

	selected := triage.SelectHistory(recent, anchor, triage.ContractionWindow, triage.HistoryLimit)
	require.Len(t, selected, triage.HistoryLimit)
	assert.Equal(t, anchor.Add(-1*time.Minute), selected[0].Timestamp)
	for i := 1; i < len(selected); i++ {
		assert.True(t, selected[i-1].Timestamp.After(selected[i].Timestamp))
	}
}

func TestAnalyzeKickTrend(t *testing.T) {
	recent := []*domain.Reading{
		kickSession(base.Add(-2*time.Hour), 14),
		kickSession(base.Add(-8*time.Hour), 12),
	}

	f := triage.AnalyzeKickTrend(recent, kickSession(base, 6))
	require.NotNil(t, f)
	assert.Equal(t, domain.SeverityWarning, f.Severity)
	assert.Equal(t, domain.CategoryFetalMovement, f.Category)

	assert.Nil(t, triage.AnalyzeKickTrend(recent, kickSession(base, 7)))
	assert.Nil(t, triage.AnalyzeKickTrend(recent[:1], kickSession(base, 1)), "needs two prior sessions")
}

func TestAssess_ContractionScenario(t *testing.T) {
	recent, newAt := laborHistory()
	policy := triage.DefaultPolicy()

	assessment := policy.Assess(contraction(newAt, domain.IntensityStrong), recent)
	assert.Equal(t, domain.SeverityCritical, assessment.Status)
	require.Len(t, assessment.Findings, 1)
	assert.InDelta(t, 0.2, assessment.RiskScore, 1e-9)
}
