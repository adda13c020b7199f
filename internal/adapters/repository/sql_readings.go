package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/IANDYI/vitals-service/internal/core/domain"
	"github.com/google/uuid"
)

const readingColumns = `id, subject_id, kind, systolic, diastolic, heart_rate, weight, baseline_weight,
	gestational_week, kick_count, duration_minutes, contraction_seconds, intensity, note, source,
	timestamp, created_at`

func (r *SQLRepository) InsertReading(ctx context.Context, reading *domain.Reading) error {
	_, err := r.execute(ctx, r.readingCB, func() (interface{}, error) {
		query := `INSERT INTO readings (` + readingColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

		var intensity interface{}
		if reading.Intensity != nil {
			intensity = string(*reading.Intensity)
		}

		_, err := r.db.ExecContext(ctx, query,
			reading.ID,
			reading.SubjectID,
			string(reading.Kind),
			reading.Systolic,
			reading.Diastolic,
			reading.HeartRate,
			reading.Weight,
			reading.BaselineWeight,
			reading.GestationalWeek,
			reading.KickCount,
			reading.DurationMinutes,
			reading.ContractionSeconds,
			intensity,
			reading.Note,
			string(reading.Source),
			reading.Timestamp,
			reading.CreatedAt,
		)
		return nil, err
	})
	return err
}

func (r *SQLRepository) QueryRecentReadings(ctx context.Context, subjectID uuid.UUID, kind domain.ReadingKind, since time.Time, limit int) ([]*domain.Reading, error) {
	query := `SELECT ` + readingColumns + ` FROM readings
		WHERE subject_id = $1 AND kind = $2 AND timestamp >= $3
		ORDER BY timestamp DESC LIMIT $4`
	return r.queryReadings(ctx, query, subjectID, string(kind), since, limit)
}

func (r *SQLRepository) ListReadings(ctx context.Context, subjectID uuid.UUID, kind *domain.ReadingKind, limit int) ([]*domain.Reading, error) {
	if kind != nil {
		query := `SELECT ` + readingColumns + ` FROM readings
			WHERE subject_id = $1 AND kind = $2
			ORDER BY timestamp DESC LIMIT $3`
		return r.queryReadings(ctx, query, subjectID, string(*kind), limit)
	}
	query := `SELECT ` + readingColumns + ` FROM readings
		WHERE subject_id = $1
		ORDER BY timestamp DESC LIMIT $2`
	return r.queryReadings(ctx, query, subjectID, limit)
}

func (r *SQLRepository) LatestReadings(ctx context.Context, subjectID uuid.UUID) (map[domain.ReadingKind]*domain.Reading, error) {
	query := `SELECT DISTINCT ON (kind) ` + readingColumns + ` FROM readings
		WHERE subject_id = $1
		ORDER BY kind, timestamp DESC`
	readings, err := r.queryReadings(ctx, query, subjectID)
	if err != nil {
		return nil, err
	}

	latest := make(map[domain.ReadingKind]*domain.Reading, len(readings))
	for _, reading := range readings {
		latest[reading.Kind] = reading
	}
	return latest, nil
}

func (r *SQLRepository) CountReadingsSince(ctx context.Context, subjectID uuid.UUID, since time.Time) (int, error) {
	result, err := r.execute(ctx, r.readingCB, func() (interface{}, error) {
		var count int
		query := `SELECT COUNT(*) FROM readings WHERE subject_id = $1 AND timestamp >= $2`
		err := r.db.QueryRowContext(ctx, query, subjectID, since).Scan(&count)
		return count, err
	})
	if err != nil {
		return 0, err
	}
	return result.(int), nil
}

func (r *SQLRepository) queryReadings(ctx context.Context, query string, args ...interface{}) ([]*domain.Reading, error) {
	result, err := r.execute(ctx, r.readingCB, func() (interface{}, error) {
		rows, err := r.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		readings := make([]*domain.Reading, 0)
		for rows.Next() {
			reading, err := scanReading(rows)
			if err != nil {
				return nil, err
			}
			readings = append(readings, reading)
		}
		return readings, rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return result.([]*domain.Reading), nil
}

func scanReading(row rowScanner) (*domain.Reading, error) {
	var reading domain.Reading
	var kind, source string
	var systolic, diastolic, heartRate, weight, baselineWeight sql.NullFloat64
	var gestationalWeek, kickCount, durationMinutes, contractionSeconds sql.NullInt64
	var intensity, note sql.NullString

	err := row.Scan(
		&reading.ID,
		&reading.SubjectID,
		&kind,
		&systolic,
		&diastolic,
		&heartRate,
		&weight,
		&baselineWeight,
		&gestationalWeek,
		&kickCount,
		&durationMinutes,
		&contractionSeconds,
		&intensity,
		&note,
		&source,
		&reading.Timestamp,
		&reading.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan reading: %w", err)
	}

	reading.Kind = domain.ReadingKind(kind)
	reading.Source = domain.ReadingSource(source)
	reading.Systolic = floatPtr(systolic)
	reading.Diastolic = floatPtr(diastolic)
	reading.HeartRate = floatPtr(heartRate)
	reading.Weight = floatPtr(weight)
	reading.BaselineWeight = floatPtr(baselineWeight)
	reading.GestationalWeek = intPtr(gestationalWeek)
	reading.KickCount = intPtr(kickCount)
	reading.DurationMinutes = intPtr(durationMinutes)
	reading.ContractionSeconds = intPtr(contractionSeconds)
	if intensity.Valid {
		i := domain.Intensity(intensity.String)
		reading.Intensity = &i
	}
	if note.Valid {
		reading.Note = note.String
	}
	return &reading, nil
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
