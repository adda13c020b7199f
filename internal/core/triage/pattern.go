package triage

import (
	"fmt"
	"sort"
	"time"

	"github.com/IANDYI/vitals-service/internal/core/domain"
)

const (
	// HistoryLimit caps how many prior readings a pattern is computed over
	HistoryLimit = 10

	// ContractionWindow is how far back contractions are considered
	ContractionWindow = 2 * time.Hour

	// KickWindow is how far back kick counting sessions are considered
	KickWindow = 24 * time.Hour

	// LaborIntervalMinutes: strong contractions averaging closer than this suggest labor
	LaborIntervalMinutes = 10.0

	// MinContractionsForPattern includes the new contraction
	MinContractionsForPattern = 3

	// MinKickSessionsForTrend counts prior sessions only
	MinKickSessionsForTrend = 2
)

// HistoryWindow returns the look-back window for a kind, zero if the kind
// has no pattern analysis
func HistoryWindow(kind domain.ReadingKind) time.Duration {
	switch kind {
	case domain.KindContraction:
		return ContractionWindow
	case domain.KindKickCount:
		return KickWindow
	}
	return 0
}

// SelectHistory applies the history rule: keep readings inside
// [anchor-window, anchor] first, then sort most-recent-first and cap at limit.
// The anchor is the new reading's timestamp, never the wall clock.
func SelectHistory(recent []*domain.Reading, anchor time.Time, window time.Duration, limit int) []*domain.Reading {
	since := anchor.Add(-window)

	selected := make([]*domain.Reading, 0, len(recent))
	for _, r := range recent {
		if r == nil || r.Timestamp.Before(since) || r.Timestamp.After(anchor) {
			continue
		}
		selected = append(selected, r)
	}

	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].Timestamp.After(selected[j].Timestamp)
	})

	if len(selected) > limit {
		selected = selected[:limit]
	}
	return selected
}

// AnalyzeContractionPattern looks for regular strong contractions. Single
// strong contractions are common; it is short average spacing combined with
// a strong new contraction that is reported.
func AnalyzeContractionPattern(recent []*domain.Reading, newContraction *domain.Reading) *domain.Finding {
	history := SelectHistory(recent, newContraction.Timestamp, ContractionWindow, HistoryLimit)

	sequence := make([]*domain.Reading, 0, len(history)+1)
	sequence = append(sequence, newContraction)
	sequence = append(sequence, history...)

	if len(sequence) < MinContractionsForPattern {
		return nil
	}

	intervals := make([]float64, 0, len(sequence)-1)
	total := 0.0
	for i := 1; i < len(sequence); i++ {
		minutes := sequence[i-1].Timestamp.Sub(sequence[i].Timestamp).Minutes()
		intervals = append(intervals, minutes)
		total += minutes
	}
	average := total / float64(len(intervals))

	if average < LaborIntervalMinutes && newContraction.IsStrong() {
		return &domain.Finding{
			Category: domain.CategoryContractions,
			Severity: domain.SeverityCritical,
			Message:  fmt.Sprintf("Strong contractions averaging %.1f minutes apart, possible labor", average),
			Values: map[string]interface{}{
				"average_interval_minutes": average,
				"intervals_minutes":        intervals,
				"contraction_count":        len(sequence),
				"intensity":                string(domain.IntensityStrong),
			},
		}
	}
	return nil
}

// AnalyzeKickTrend compares a kick counting session with the subject's
// recent sessions and warns when movement dropped below half the recent mean
func AnalyzeKickTrend(recent []*domain.Reading, newSession *domain.Reading) *domain.Finding {
	if newSession.KickCount == nil {
		return nil
	}
	history := SelectHistory(recent, newSession.Timestamp, KickWindow, HistoryLimit)

	total, sessions := 0, 0
	for _, r := range history {
		if r.KickCount == nil {
			continue
		}
		total += *r.KickCount
		sessions++
	}
	if sessions < MinKickSessionsForTrend {
		return nil
	}

	mean := float64(total) / float64(sessions)
	count := *newSession.KickCount
	if float64(count) < mean/2 {
		return &domain.Finding{
			Category: domain.CategoryFetalMovement,
			Severity: domain.SeverityWarning,
			Message:  fmt.Sprintf("%d movements is well below the recent average of %.1f", count, mean),
			Values: map[string]interface{}{
				"kick_count":     count,
				"recent_average": mean,
				"sessions":       sessions,
			},
		}
	}
	return nil
}

// AnalyzePattern dispatches to the analyzer for the reading's kind
func AnalyzePattern(recent []*domain.Reading, r *domain.Reading) *domain.Finding {
	switch r.Kind {
	case domain.KindContraction:
		return AnalyzeContractionPattern(recent, r)
	case domain.KindKickCount:
		return AnalyzeKickTrend(recent, r)
	}
	return nil
}
