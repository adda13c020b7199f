package domain

import (
	"strings"

	z "github.com/Oudwins/zog"
	"github.com/google/uuid"
)

// Physically plausible input ranges. Values outside are rejected, never clamped.
const (
	SystolicMin        = 50.0
	SystolicMax        = 200.0
	DiastolicMin       = 30.0
	DiastolicMax       = 150.0
	HeartRateMin       = 30.0
	HeartRateMax       = 220.0
	WeightMin          = 30.0 // kg
	WeightMax          = 250.0
	GestationalWeekMin = 0
	GestationalWeekMax = 45
	KickCountMin       = 0
	KickCountMax       = 200
	DurationMinutesMin = 1
	DurationMinutesMax = 720
	ContractionSecMin  = 1
	ContractionSecMax  = 600
	NoteMaxLength      = 1000
)

// zog shape keys are Go field names with a lowercase first letter;
// errors are reported with the JSON field names clients send.
var jsonFieldNames = map[string]string{
	"systolic":           "systolic",
	"diastolic":          "diastolic",
	"heartRate":          "heart_rate",
	"weight":             "weight",
	"baselineWeight":     "baseline_weight",
	"gestationalWeek":    "gestational_week",
	"kickCount":          "kick_count",
	"durationMinutes":    "duration_minutes",
	"contractionSeconds": "contraction_duration_seconds",
}

// rangeSchema bounds every numeric field that is present, whatever the kind,
// since the classifier looks at all of them.
var rangeSchema = z.Struct(z.Shape{
	"systolic":           z.Ptr(z.Float64().GTE(SystolicMin).LTE(SystolicMax)),
	"diastolic":          z.Ptr(z.Float64().GTE(DiastolicMin).LTE(DiastolicMax)),
	"heartRate":          z.Ptr(z.Float64().GTE(HeartRateMin).LTE(HeartRateMax)),
	"weight":             z.Ptr(z.Float64().GTE(WeightMin).LTE(WeightMax)),
	"baselineWeight":     z.Ptr(z.Float64().GTE(WeightMin).LTE(WeightMax)),
	"gestationalWeek":    z.Ptr(z.Int().GTE(GestationalWeekMin).LTE(GestationalWeekMax)),
	"kickCount":          z.Ptr(z.Int().GTE(KickCountMin).LTE(KickCountMax)),
	"durationMinutes":    z.Ptr(z.Int().GTE(DurationMinutesMin).LTE(DurationMinutesMax)),
	"contractionSeconds": z.Ptr(z.Int().GTE(ContractionSecMin).LTE(ContractionSecMax)),
})

// Per-kind schemas only require presence; ranges come from rangeSchema.
var bloodPressureSchema = z.Struct(z.Shape{
	"systolic":  z.Ptr(z.Float64()).NotNil(),
	"diastolic": z.Ptr(z.Float64()).NotNil(),
})

var heartRateSchema = z.Struct(z.Shape{
	"heartRate": z.Ptr(z.Float64()).NotNil(),
})

var weightSchema = z.Struct(z.Shape{
	"weight": z.Ptr(z.Float64()).NotNil(),
})

var kickCountSchema = z.Struct(z.Shape{
	"kickCount":       z.Ptr(z.Int()).NotNil(),
	"durationMinutes": z.Ptr(z.Int()).NotNil(),
})

// ValidateReading checks the kind-specific presence and range rules.
// It returns nil or a *ValidationError listing every rejected field.
func ValidateReading(r *Reading) error {
	verr := &ValidationError{}

	if !IsValidReadingKind(r.Kind) {
		verr.Add("kind", "must be one of blood_pressure, heart_rate, weight, kick_count, contraction")
		return verr
	}

	var required z.ZogIssueMap
	switch r.Kind {
	case KindBloodPressure:
		required = bloodPressureSchema.Validate(r)
	case KindHeartRate:
		required = heartRateSchema.Validate(r)
	case KindWeight:
		required = weightSchema.Validate(r)
	case KindKickCount:
		required = kickCountSchema.Validate(r)
	case KindContraction:
		if r.Intensity == nil {
			verr.Add("intensity", "is required")
		}
	}
	if r.Intensity != nil && !IsValidIntensity(*r.Intensity) {
		verr.Add("intensity", "must be one of mild, moderate, strong")
	}

	// a field is either nil or set, so the two issue maps never overlap
	addIssues(verr, rangeSchema.Validate(r))
	addIssues(verr, required)

	if len(r.Note) > NoteMaxLength {
		verr.Add("note", "must be at most 1000 characters")
	}
	if r.SubjectID == uuid.Nil {
		verr.Add("subject_id", "is required")
	}

	if verr.HasFields() {
		return verr
	}
	return nil
}

func addIssues(verr *ValidationError, issues z.ZogIssueMap) {
	for key, list := range issues {
		if strings.HasPrefix(key, "$") || len(list) == 0 {
			continue
		}
		field, ok := jsonFieldNames[key]
		if !ok {
			field = key
		}
		verr.Add(field, list[0].Message)
	}
}
