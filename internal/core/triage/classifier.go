// Package triage holds the rule-based health-event triage engine: threshold
// classifiers for single readings, pattern analyzers over a subject's recent
// history and the aggregator folding findings into a risk assessment.
// Everything here is pure; the only input besides arguments is the Policy.
package triage

import (
	"fmt"

	"github.com/IANDYI/vitals-service/internal/core/domain"
)

// Blood pressure bands (mmHg), pre-eclampsia screening
const (
	SystolicCritical  = 140.0
	DiastolicCritical = 90.0
	SystolicWarning   = 130.0
	DiastolicWarning  = 85.0
)

// Maternal heart rate bands (bpm). The inner band is outside normal for
// pregnancy, the outer band is physiologically dangerous.
const (
	HeartRateCriticalLow  = 50.0
	HeartRateCriticalHigh = 130.0
	HeartRateWarningLow   = 60.0
	HeartRateWarningHigh  = 120.0
)

// Kick counting: fewer than KickCountMinimum movements over at least
// KickWindowMinutes is low fetal movement.
const (
	KickCountMinimum  = 6
	KickWindowMinutes = 60
)

// Policy carries the placeholder arithmetic that is not a validated clinical
// model. It is kept as data so it can be replaced without touching the rules.
type Policy struct {
	WeightGainPerWeek   float64 // expected kg gained per gestational week
	WeightGainTolerance float64 // kg above the expected gain before warning
	ScorePerFinding     float64 // risk score contributed by each non-normal finding
}

// DefaultPolicy returns the linear placeholders: 0.5 kg/week, 10 kg slack, 0.2 per finding
func DefaultPolicy() Policy {
	return Policy{
		WeightGainPerWeek:   0.5,
		WeightGainTolerance: 10,
		ScorePerFinding:     0.2,
	}
}

// ClassifyBloodPressure flags elevated blood pressure. Either value alone can trigger.
func ClassifyBloodPressure(systolic, diastolic float64) *domain.Finding {
	values := map[string]interface{}{"systolic": systolic, "diastolic": diastolic}

	if systolic >= SystolicCritical || diastolic >= DiastolicCritical {
		return &domain.Finding{
			Category: domain.CategoryBloodPressure,
			Severity: domain.SeverityCritical,
			Message:  fmt.Sprintf("Blood pressure %.0f/%.0f mmHg is critically high", systolic, diastolic),
			Values:   values,
		}
	}
	if systolic >= SystolicWarning || diastolic >= DiastolicWarning {
		return &domain.Finding{
			Category: domain.CategoryBloodPressure,
			Severity: domain.SeverityWarning,
			Message:  fmt.Sprintf("Blood pressure %.0f/%.0f mmHg is elevated", systolic, diastolic),
			Values:   values,
		}
	}
	return nil
}

// ClassifyHeartRate flags a maternal heart rate outside the pregnancy bands
func ClassifyHeartRate(bpm float64) *domain.Finding {
	values := map[string]interface{}{"heart_rate": bpm}

	if bpm < HeartRateCriticalLow || bpm > HeartRateCriticalHigh {
		return &domain.Finding{
			Category: domain.CategoryHeartRate,
			Severity: domain.SeverityCritical,
			Message:  fmt.Sprintf("Heart rate %.0f bpm is at a dangerous level", bpm),
			Values:   values,
		}
	}
	if bpm < HeartRateWarningLow || bpm > HeartRateWarningHigh {
		return &domain.Finding{
			Category: domain.CategoryHeartRate,
			Severity: domain.SeverityWarning,
			Message:  fmt.Sprintf("Heart rate %.0f bpm is outside the normal range for pregnancy", bpm),
			Values:   values,
		}
	}
	return nil
}

// ClassifyWeightGain flags weight gain well above the linear expectation
func (p Policy) ClassifyWeightGain(currentWeight, baselineWeight float64, gestationalWeek int) *domain.Finding {
	gain := currentWeight - baselineWeight
	expected := float64(gestationalWeek) * p.WeightGainPerWeek

	if gain > expected+p.WeightGainTolerance {
		return &domain.Finding{
			Category: domain.CategoryWeight,
			Severity: domain.SeverityWarning,
			Message:  fmt.Sprintf("Weight gain of %.1f kg exceeds the expected %.1f kg for week %d", gain, expected, gestationalWeek),
			Values: map[string]interface{}{
				"weight":           currentWeight,
				"baseline_weight":  baselineWeight,
				"gestational_week": gestationalWeek,
				"gain":             gain,
				"expected_gain":    expected,
			},
		}
	}
	return nil
}

// ClassifyKickCount flags low fetal movement over a long enough session
func ClassifyKickCount(count, durationMinutes int) *domain.Finding {
	if count < KickCountMinimum && durationMinutes >= KickWindowMinutes {
		return &domain.Finding{
			Category: domain.CategoryFetalMovement,
			Severity: domain.SeverityWarning,
			Message:  fmt.Sprintf("Only %d movements counted in %d minutes", count, durationMinutes),
			Values: map[string]interface{}{
				"kick_count":       count,
				"duration_minutes": durationMinutes,
			},
		}
	}
	return nil
}

// Classify runs every classifier whose inputs are present on the reading.
// Missing fields produce no finding for their category; they are never read as zero.
func (p Policy) Classify(r *domain.Reading) []domain.Finding {
	var findings []domain.Finding

	if r.Systolic != nil && r.Diastolic != nil {
		if f := ClassifyBloodPressure(*r.Systolic, *r.Diastolic); f != nil {
			findings = append(findings, *f)
		}
	}
	if r.HeartRate != nil {
		if f := ClassifyHeartRate(*r.HeartRate); f != nil {
			findings = append(findings, *f)
		}
	}
	if r.Weight != nil && r.BaselineWeight != nil && r.GestationalWeek != nil {
		if f := p.ClassifyWeightGain(*r.Weight, *r.BaselineWeight, *r.GestationalWeek); f != nil {
			findings = append(findings, *f)
		}
	}
	if r.KickCount != nil && r.DurationMinutes != nil {
		if f := ClassifyKickCount(*r.KickCount, *r.DurationMinutes); f != nil {
			findings = append(findings, *f)
		}
	}

	return findings
}
