package domain

import (
	"time"

	"github.com/google/uuid"
)

// ReadingKind identifies which physiological measurement a reading carries
type ReadingKind string

const (
	KindBloodPressure ReadingKind = "blood_pressure"
	KindHeartRate     ReadingKind = "heart_rate"
	KindWeight        ReadingKind = "weight"
	KindKickCount     ReadingKind = "kick_count"
	KindContraction   ReadingKind = "contraction"
)

// ValidReadingKinds returns all supported reading kinds
func ValidReadingKinds() []ReadingKind {
	return []ReadingKind{
		KindBloodPressure,
		KindHeartRate,
		KindWeight,
		KindKickCount,
		KindContraction,
	}
}

// IsValidReadingKind checks if a reading kind is supported
func IsValidReadingKind(kind ReadingKind) bool {
	for _, k := range ValidReadingKinds() {
		if k == kind {
			return true
		}
	}
	return false
}

// SupportsPatternAnalysis reports whether readings of this kind are analyzed
// against the subject's recent history
func (k ReadingKind) SupportsPatternAnalysis() bool {
	return k == KindContraction || k == KindKickCount
}

// Intensity is the self-reported strength of a contraction
type Intensity string

const (
	IntensityMild     Intensity = "mild"
	IntensityModerate Intensity = "moderate"
	IntensityStrong   Intensity = "strong"
)

// IsValidIntensity checks if a contraction intensity is valid
func IsValidIntensity(i Intensity) bool {
	switch i {
	case IntensityMild, IntensityModerate, IntensityStrong:
		return true
	}
	return false
}

// ReadingSource records which channel a reading arrived through
type ReadingSource string

const (
	SourceAPI  ReadingSource = "api"
	SourceAMQP ReadingSource = "amqp"
	SourceMQTT ReadingSource = "mqtt"
)

// Reading is one submitted physiological measurement event.
// Readings are immutable once persisted: a correction is a new reading.
// Numeric fields are pointers so that "not submitted" is never confused with zero.
type Reading struct {
	ID        uuid.UUID   `json:"id"`
	SubjectID uuid.UUID   `json:"subject_id"`
	Kind      ReadingKind `json:"kind"`

	Systolic  *float64 `json:"systolic,omitempty"`
	Diastolic *float64 `json:"diastolic,omitempty"`
	HeartRate *float64 `json:"heart_rate,omitempty"`

	Weight          *float64 `json:"weight,omitempty"`           // kg
	BaselineWeight  *float64 `json:"baseline_weight,omitempty"`  // pre-pregnancy weight, kg
	GestationalWeek *int     `json:"gestational_week,omitempty"` // completed weeks

	KickCount       *int `json:"kick_count,omitempty"`
	DurationMinutes *int `json:"duration_minutes,omitempty"` // length of the kick counting session

	ContractionSeconds *int       `json:"contraction_duration_seconds,omitempty"`
	Intensity          *Intensity `json:"intensity,omitempty"`

	Note      string        `json:"note,omitempty"`
	Source    ReadingSource `json:"source"`
	Timestamp time.Time     `json:"timestamp"`  // when the measurement was taken
	CreatedAt time.Time     `json:"created_at"` // when the record was stored
}

// IsStrong reports whether the reading is a strong contraction
func (r *Reading) IsStrong() bool {
	return r.Intensity != nil && *r.Intensity == IntensityStrong
}
