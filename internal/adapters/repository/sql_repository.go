package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/IANDYI/vitals-service/internal/core/domain"
	"github.com/IANDYI/vitals-service/internal/core/ports"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerSettings tunes the circuit breakers and retry loop in front of the database
type BreakerSettings struct {
	MaxRequests uint32        // requests allowed through while half-open
	Interval    time.Duration // closed-state counter reset period
	Timeout     time.Duration // open-state duration before probing
	MaxRetries  int
	RetryDelay  time.Duration
}

// DefaultBreakerSettings mirrors the production defaults
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MaxRequests: 5,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		MaxRetries:  3,
		RetryDelay:  1 * time.Second,
	}
}

// SQLRepository implements ReadingRepository and AlertRepository using PostgreSQL
// Includes retry logic and circuit breaker for resilience
type SQLRepository struct {
	db         *sql.DB
	readingCB  *gobreaker.CircuitBreaker
	alertCB    *gobreaker.CircuitBreaker
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger
}

// NewSQLRepository creates a new PostgreSQL repository with circuit breakers
func NewSQLRepository(db *sql.DB, settings BreakerSettings, logger *zap.Logger) *SQLRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	if settings.MaxRetries <= 0 {
		settings.MaxRetries = 1
	}

	breaker := func(name string) *gobreaker.CircuitBreaker {
		return gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: settings.MaxRequests,
			Interval:    settings.Interval,
			Timeout:     settings.Timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures > 5
			},
			// a missing row is an answer, not a database failure
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, sql.ErrNoRows)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("circuit breaker state change",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		})
	}

	return &SQLRepository{
		db:         db,
		readingCB:  breaker("readings"),
		alertCB:    breaker("alerts"),
		maxRetries: settings.MaxRetries,
		retryDelay: settings.RetryDelay,
		logger:     logger,
	}
}

// Ping checks the database connection, used by the readiness probe
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// executeWithRetry executes a database operation with retry logic
func (r *SQLRepository) executeWithRetry(ctx context.Context, operation func() error) error {
	var lastErr error
	for i := 0; i < r.maxRetries; i++ {
		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err
		// Not transient: missing rows and caller cancellation
		if errors.Is(err, sql.ErrNoRows) || ctx.Err() != nil {
			return err
		}
		if i < r.maxRetries-1 {
			select {
			case <-time.After(r.retryDelay):
			case <-ctx.Done():
				return fmt.Errorf("retry aborted: %w", ctx.Err())
			}
		}
	}
	return fmt.Errorf("operation failed after %d retries: %w", r.maxRetries, lastErr)
}

// execute runs operation through the breaker and retry loop and maps the result
// onto domain errors
func (r *SQLRepository) execute(ctx context.Context, cb *gobreaker.CircuitBreaker, operation func() (interface{}, error)) (interface{}, error) {
	result, err := cb.Execute(func() (interface{}, error) {
		var out interface{}
		err := r.executeWithRetry(ctx, func() error {
			var opErr error
			out, opErr = operation()
			return opErr
		})
		return out, err
	})
	if err != nil {
		return nil, mapError(err)
	}
	return result, nil
}

func mapError(err error) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return domain.ErrNotFound
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return fmt.Errorf("%w: %w", domain.ErrUpstreamUnavailable, err)
	}
	return err
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func nullableUUID(id *uuid.UUID) interface{} {
	if id == nil {
		return nil
	}
	return *id
}

// Ensure SQLRepository implements the interfaces
var _ ports.ReadingRepository = (*SQLRepository)(nil)
var _ ports.AlertRepository = (*SQLRepository)(nil)
