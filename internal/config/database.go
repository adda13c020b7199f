package config

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const readingsSchema = `
CREATE TABLE IF NOT EXISTS readings (
	id UUID PRIMARY KEY,
	subject_id UUID NOT NULL,
	kind TEXT NOT NULL,
	systolic NUMERIC,
	diastolic NUMERIC,
	heart_rate NUMERIC,
	weight NUMERIC,
	baseline_weight NUMERIC,
	gestational_week INTEGER,
	kick_count INTEGER,
	duration_minutes INTEGER,
	contraction_seconds INTEGER,
	intensity TEXT,
	note TEXT,
	source TEXT NOT NULL DEFAULT 'api',
	timestamp TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT chk_reading_kind CHECK (
		kind IN ('blood_pressure', 'heart_rate', 'weight', 'kick_count', 'contraction')
	),
	CONSTRAINT chk_blood_pressure_fields CHECK (
		kind != 'blood_pressure' OR (systolic IS NOT NULL AND diastolic IS NOT NULL)
	),
	CONSTRAINT chk_kick_fields CHECK (
		kind != 'kick_count' OR (kick_count IS NOT NULL AND duration_minutes IS NOT NULL)
	),
	CONSTRAINT chk_contraction_fields CHECK (
		kind != 'contraction' OR intensity IS NOT NULL
	)
);`

const alertsSchema = `
CREATE TABLE IF NOT EXISTS alerts (
	id UUID PRIMARY KEY,
	subject_id UUID NOT NULL,
	reading_id UUID REFERENCES readings(id) ON DELETE SET NULL,
	author_id UUID,
	severity TEXT NOT NULL,
	category TEXT NOT NULL,
	message TEXT NOT NULL,
	metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
	acknowledged BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	acknowledged_at TIMESTAMPTZ,
	CONSTRAINT chk_alert_severity CHECK (severity IN ('warning', 'critical')),
	CONSTRAINT chk_acknowledged_at CHECK (acknowledged OR acknowledged_at IS NULL)
);`

var schemaIndexes = []string{
	"CREATE INDEX IF NOT EXISTS idx_readings_subject_kind_timestamp ON readings(subject_id, kind, timestamp DESC)",
	"CREATE INDEX IF NOT EXISTS idx_readings_subject_timestamp ON readings(subject_id, timestamp DESC)",
	"CREATE INDEX IF NOT EXISTS idx_alerts_subject_created_at ON alerts(subject_id, created_at DESC)",
	"CREATE INDEX IF NOT EXISTS idx_alerts_unacknowledged ON alerts(subject_id) WHERE acknowledged = FALSE",
}

// InitDatabase creates the schema if it does not exist.
// Set DROP_TABLES_ON_STARTUP=true to drop existing tables first.
func InitDatabase(ctx context.Context, db *sql.DB, logger *zap.Logger) error {
	// Only drop tables if explicitly requested, this prevents accidental data loss on restart
	if os.Getenv("DROP_TABLES_ON_STARTUP") == "true" {
		logger.Warn("dropping existing tables (DROP_TABLES_ON_STARTUP=true)")
		for _, table := range []string{"alerts", "readings"} {
			if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE"); err != nil {
				logger.Warn("failed to drop table", zap.String("table", table), zap.Error(err))
			}
		}
	}

	if _, err := db.ExecContext(ctx, readingsSchema); err != nil {
		return fmt.Errorf("failed to create readings table: %w", err)
	}
	if _, err := db.ExecContext(ctx, alertsSchema); err != nil {
		return fmt.Errorf("failed to create alerts table: %w", err)
	}

	for _, indexSQL := range schemaIndexes {
		if _, err := db.ExecContext(ctx, indexSQL); err != nil {
			logger.Warn("failed to create index", zap.String("statement", indexSQL), zap.Error(err))
		}
	}

	logger.Info("database schema initialized")
	return nil
}

// ConnectDatabase establishes a connection to PostgreSQL with retry logic
func ConnectDatabase(databaseURL string, maxRetries int, retryDelay time.Duration, logger *zap.Logger) (*sql.DB, error) {
	if maxRetries < 1 {
		maxRetries = 1
	}

	var err error
	for i := 0; i < maxRetries; i++ {
		var db *sql.DB
		db, err = sql.Open("postgres", databaseURL)
		if err == nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err = db.PingContext(ctx)
			cancel()
			if err == nil {
				// Configure connection pool
				db.SetMaxOpenConns(25)
				db.SetMaxIdleConns(5)
				db.SetConnMaxLifetime(5 * time.Minute)

				logger.Info("database connection established")
				return db, nil
			}
			db.Close()
		}

		logger.Warn("database connection attempt failed",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", maxRetries),
			zap.Error(err),
		)
		if i < maxRetries-1 {
			time.Sleep(retryDelay)
		}
	}

	return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", maxRetries, err)
}
