package domain_test

import (
	"strings"
	"testing"
	"time"

	"github.com/IANDYI/vitals-service/internal/core/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func reading(kind domain.ReadingKind) *domain.Reading {
	return &domain.Reading{
		ID:        uuid.New(),
		SubjectID: uuid.New(),
		Kind:      kind,
		Timestamp: time.Now().UTC(),
	}
}

func TestValidateReading_Valid(t *testing.T) {
	strong := domain.IntensityStrong

	bp := reading(domain.KindBloodPressure)
	bp.Systolic, bp.Diastolic = floatPtr(120), floatPtr(80)

	hr := reading(domain.KindHeartRate)
	hr.HeartRate = floatPtr(72)

	weight := reading(domain.KindWeight)
	weight.Weight, weight.BaselineWeight, weight.GestationalWeek = floatPtr(70), floatPtr(62), intPtr(20)

	kicks := reading(domain.KindKickCount)
	kicks.KickCount, kicks.DurationMinutes = intPtr(10), intPtr(120)

	contraction := reading(domain.KindContraction)
	contraction.Intensity, contraction.ContractionSeconds = &strong, intPtr(45)

	for _, r := range []*domain.Reading{bp, hr, weight, kicks, contraction} {
		t.Run(string(r.Kind), func(t *testing.T) {
			assert.NoError(t, domain.ValidateReading(r))
		})
	}
}

func TestValidateReading_Rejections(t *testing.T) {
	bogus := domain.Intensity("unbearable")

	tests := []struct {
		name   string
		build  func() *domain.Reading
		fields []string
	}{
		{
			name: "systolic above plausible range",
			build: func() *domain.Reading {
				r := reading(domain.KindBloodPressure)
				r.Systolic, r.Diastolic = floatPtr(201), floatPtr(80)
				return r
			},
			fields: []string{"systolic"},
		},
		{
			name: "blood pressure missing diastolic",
			build: func() *domain.Reading {
				r := reading(domain.KindBloodPressure)
				r.Systolic = floatPtr(120)
				return r
			},
			fields: []string{"diastolic"},
		},
		{
			name: "heart rate below range",
			build: func() *domain.Reading {
				r := reading(domain.KindHeartRate)
				r.HeartRate = floatPtr(10)
				return r
			},
			fields: []string{"heart_rate"},
		},
		{
			name: "weight missing",
			build: func() *domain.Reading {
				return reading(domain.KindWeight)
			},
			fields: []string{"weight"},
		},
		{
			name: "kick session without duration and negative count",
			build: func() *domain.Reading {
				r := reading(domain.KindKickCount)
				r.KickCount = intPtr(-1)
				return r
			},
			fields: []string{"kick_count", "duration_minutes"},
		},
		{
			name: "contraction without intensity",
			build: func() *domain.Reading {
				return reading(domain.KindContraction)
			},
			fields: []string{"intensity"},
		},
		{
			name: "contraction with unknown intensity",
			build: func() *domain.Reading {
				r := reading(domain.KindContraction)
				r.Intensity = &bogus
				return r
			},
			fields: []string{"intensity"},
		},
		{
			name: "kick session carrying implausible blood pressure",
			build: func() *domain.Reading {
				r := reading(domain.KindKickCount)
				r.KickCount, r.DurationMinutes = intPtr(10), intPtr(120)
				r.Systolic, r.Diastolic = floatPtr(300), floatPtr(10)
				return r
			},
			fields: []string{"systolic", "diastolic"},
		},
		{
			name: "weight carrying implausible heart rate",
			build: func() *domain.Reading {
				r := reading(domain.KindWeight)
				r.Weight = floatPtr(70)
				r.HeartRate = floatPtr(999)
				return r
			},
			fields: []string{"heart_rate"},
		},
		{
			name: "contraction carrying implausible kick session",
			build: func() *domain.Reading {
				strong := domain.IntensityStrong
				r := reading(domain.KindContraction)
				r.Intensity = &strong
				r.KickCount, r.DurationMinutes = intPtr(-5), intPtr(5000)
				return r
			},
			fields: []string{"kick_count", "duration_minutes"},
		},
		{
			name: "heart rate carrying implausible weight and gestation",
			build: func() *domain.Reading {
				r := reading(domain.KindHeartRate)
				r.HeartRate = floatPtr(72)
				r.Weight, r.BaselineWeight, r.GestationalWeek = floatPtr(9999), floatPtr(-1), intPtr(500)
				return r
			},
			fields: []string{"weight", "baseline_weight", "gestational_week"},
		},
		{
			name: "heart rate with unknown intensity",
			build: func() *domain.Reading {
				r := reading(domain.KindHeartRate)
				r.HeartRate = floatPtr(72)
				r.Intensity = &bogus
				return r
			},
			fields: []string{"intensity"},
		},
		{
			name: "unknown kind",
			build: func() *domain.Reading {
				return reading(domain.ReadingKind("glucose"))
			},
			fields: []string{"kind"},
		},
		{
			name: "note too long and no subject",
			build: func() *domain.Reading {
				r := reading(domain.KindHeartRate)
				r.HeartRate = floatPtr(70)
				r.Note = strings.Repeat("n", domain.NoteMaxLength+1)
				r.SubjectID = uuid.Nil
				return r
			},
			fields: []string{"note", "subject_id"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := domain.ValidateReading(tt.build())
			require.Error(t, err)

			var ve *domain.ValidationError
			require.ErrorAs(t, err, &ve)
			for _, f := range tt.fields {
				assert.Contains(t, ve.Fields, f)
			}
			assert.Len(t, ve.Fields, len(tt.fields))
		})
	}
}

func TestValidationError_Message(t *testing.T) {
	ve := domain.NewValidationError("systolic", "too high")
	ve.Add("diastolic", "too low")

	assert.Equal(t, "validation failed: diastolic: too low; systolic: too high", ve.Error())
	assert.True(t, domain.IsValidationError(ve))
	assert.False(t, domain.IsValidationError(domain.ErrNotFound))
}

func TestCaller_CanAccessSubject(t *testing.T) {
	subjectID := uuid.New()

	patient := domain.Caller{UserID: subjectID, Role: domain.RolePatient}
	assert.True(t, patient.CanAccessSubject(subjectID))
	assert.False(t, patient.CanAccessSubject(uuid.New()))

	doctor := domain.Caller{UserID: uuid.New(), Role: domain.RoleDoctor}
	assert.True(t, doctor.IsClinician())
	assert.True(t, doctor.CanAccessSubject(subjectID))
}

func TestAggregateHelpers(t *testing.T) {
	assert.Greater(t, domain.SeverityCritical.Rank(), domain.SeverityWarning.Rank())
	assert.Greater(t, domain.SeverityWarning.Rank(), domain.SeverityNormal.Rank())

	assessment := &domain.RiskAssessment{Findings: []domain.Finding{
		{Category: domain.CategoryHeartRate, Severity: domain.SeverityWarning},
		{Category: domain.CategoryBloodPressure, Severity: domain.SeverityCritical},
	}}
	critical := assessment.CriticalFindings()
	require.Len(t, critical, 1)
	assert.Equal(t, domain.CategoryBloodPressure, critical[0].Category)
}
