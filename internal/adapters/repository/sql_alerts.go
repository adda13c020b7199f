package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/IANDYI/vitals-service/internal/core/domain"
	"github.com/google/uuid"
)

const alertColumns = `id, subject_id, reading_id, author_id, severity, category, message, metadata,
	acknowledged, created_at, acknowledged_at`

func (r *SQLRepository) InsertAlert(ctx context.Context, alert *domain.Alert) error {
	metadata, err := encodeMetadata(alert.Metadata)
	if err != nil {
		return err
	}

	_, err = r.execute(ctx, r.alertCB, func() (interface{}, error) {
		query := `INSERT INTO alerts (` + alertColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
		_, err := r.db.ExecContext(ctx, query,
			alert.ID,
			alert.SubjectID,
			nullableUUID(alert.ReadingID),
			nullableUUID(alert.AuthorID),
			string(alert.Severity),
			alert.Category,
			alert.Message,
			metadata,
			alert.Acknowledged,
			alert.CreatedAt,
			alert.AcknowledgedAt,
		)
		return nil, err
	})
	return err
}

// UpdateAlertAcknowledged sets the acknowledgment time only if it is not set yet
func (r *SQLRepository) UpdateAlertAcknowledged(ctx context.Context, alertID uuid.UUID, subjectID uuid.UUID, ts time.Time) (*domain.Alert, error) {
	result, err := r.execute(ctx, r.alertCB, func() (interface{}, error) {
		query := `UPDATE alerts
			SET acknowledged = TRUE, acknowledged_at = COALESCE(acknowledged_at, $3)
			WHERE id = $1 AND subject_id = $2
			RETURNING ` + alertColumns
		return scanAlert(r.db.QueryRowContext(ctx, query, alertID, subjectID, ts))
	})
	if err != nil {
		return nil, err
	}
	return result.(*domain.Alert), nil
}

func (r *SQLRepository) GetAlertByID(ctx context.Context, alertID uuid.UUID) (*domain.Alert, error) {
	result, err := r.execute(ctx, r.alertCB, func() (interface{}, error) {
		query := `SELECT ` + alertColumns + ` FROM alerts WHERE id = $1`
		return scanAlert(r.db.QueryRowContext(ctx, query, alertID))
	})
	if err != nil {
		return nil, err
	}
	return result.(*domain.Alert), nil
}

func (r *SQLRepository) ListAlerts(ctx context.Context, filter domain.AlertFilter) ([]*domain.Alert, error) {
	var conditions []string
	var args []interface{}

	if filter.SubjectID != nil {
		args = append(args, *filter.SubjectID)
		conditions = append(conditions, fmt.Sprintf("subject_id = $%d", len(args)))
	}
	if filter.UnacknowledgedOnly {
		conditions = append(conditions, "acknowledged = FALSE")
	}

	query := `SELECT ` + alertColumns + ` FROM alerts`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	result, err := r.execute(ctx, r.alertCB, func() (interface{}, error) {
		rows, err := r.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		alerts := make([]*domain.Alert, 0)
		for rows.Next() {
			alert, err := scanAlert(rows)
			if err != nil {
				return nil, err
			}
			alerts = append(alerts, alert)
		}
		return alerts, rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return result.([]*domain.Alert), nil
}

func (r *SQLRepository) CountUnacknowledged(ctx context.Context, subjectID uuid.UUID, since time.Time) (int, error) {
	result, err := r.execute(ctx, r.alertCB, func() (interface{}, error) {
		var count int
		query := `SELECT COUNT(*) FROM alerts WHERE subject_id = $1 AND acknowledged = FALSE AND created_at >= $2`
		err := r.db.QueryRowContext(ctx, query, subjectID, since).Scan(&count)
		return count, err
	})
	if err != nil {
		return 0, err
	}
	return result.(int), nil
}

// scanAlert returns sql.ErrNoRows unwrapped so the breaker and mapError see it
func scanAlert(row rowScanner) (*domain.Alert, error) {
	var alert domain.Alert
	var readingID, authorID uuid.NullUUID
	var severity string
	var metadata []byte
	var acknowledgedAt sql.NullTime

	err := row.Scan(
		&alert.ID,
		&alert.SubjectID,
		&readingID,
		&authorID,
		&severity,
		&alert.Category,
		&alert.Message,
		&metadata,
		&alert.Acknowledged,
		&alert.CreatedAt,
		&acknowledgedAt,
	)
	if err != nil {
		return nil, err
	}

	alert.Severity = domain.Severity(severity)
	if readingID.Valid {
		id := readingID.UUID
		alert.ReadingID = &id
	}
	if authorID.Valid {
		id := authorID.UUID
		alert.AuthorID = &id
	}
	if acknowledgedAt.Valid {
		t := acknowledgedAt.Time
		alert.AcknowledgedAt = &t
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &alert.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode alert metadata: %w", err)
		}
	}
	return &alert, nil
}

func encodeMetadata(metadata map[string]interface{}) ([]byte, error) {
	if len(metadata) == 0 {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to encode alert metadata: %w", err)
	}
	return b, nil
}
