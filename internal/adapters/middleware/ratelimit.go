package middleware

import (
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// LimiterIdleTimeout is how long a subject's bucket may go unused before it is dropped
	LimiterIdleTimeout = 10 * time.Minute
	// LimiterCleanupInterval is how often idle buckets are swept
	LimiterCleanupInterval = time.Minute
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiterStore manages per-subject token buckets: subject_id -> limiter
type RateLimiterStore struct {
	limiters     map[string]*limiterEntry
	mu           sync.Mutex
	defaultRate  rate.Limit
	defaultBurst int
	logger       *zap.Logger
	janitorStop  chan struct{}
}

// NewRateLimiterStore creates a store allowing perMinute events per subject with the given burst.
// A non-positive perMinute disables limiting. Call Stop to end the idle sweep.
func NewRateLimiterStore(perMinute int, burst int, logger *zap.Logger) *RateLimiterStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(perMinute))
	}
	if burst <= 0 {
		burst = 1
	}
	s := &RateLimiterStore{
		limiters:     make(map[string]*limiterEntry),
		defaultRate:  limit,
		defaultBurst: burst,
		logger:       logger.With(zap.String("component", "rate_limiter")),
		janitorStop:  make(chan struct{}),
	}
	go s.startJanitor(LimiterCleanupInterval)
	return s
}

// GetLimiter returns the subject's limiter, creating it on first use
func (s *RateLimiterStore) GetLimiter(subjectID string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.limiters[subjectID]
	if !exists {
		entry = &limiterEntry{limiter: rate.NewLimiter(s.defaultRate, s.defaultBurst)}
		s.limiters[subjectID] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter
}

// EvictIdle drops buckets unused for at least idle and returns how many were removed.
// A dropped bucket has had time to refill, so the subject loses nothing.
func (s *RateLimiterStore) EvictIdle(idle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-idle)
	deleted := 0
	for subjectID, entry := range s.limiters {
		if !entry.lastSeen.After(cutoff) {
			delete(s.limiters, subjectID)
			deleted++
		}
	}
	return deleted
}

// Len reports how many subjects currently hold a bucket
func (s *RateLimiterStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.limiters)
}

func (s *RateLimiterStore) startJanitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if deleted := s.EvictIdle(LimiterIdleTimeout); deleted > 0 {
				s.logger.Debug("rate limiter janitor purged entries", zap.Int("deleted", deleted))
			}
		case <-s.janitorStop:
			return
		}
	}
}

// Stop terminates the idle sweep
func (s *RateLimiterStore) Stop() {
	close(s.janitorStop)
}

// Limit rejects requests with 429 once the authenticated subject exhausts its bucket.
// Must run inside RequireAuth.
func (s *RateLimiterStore) Limit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := GetUserID(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if !s.GetLimiter(userID).Allow() {
			s.logger.Info("intake rate limit exceeded", zap.String("subject_id", userID), zap.String("path", r.URL.Path))
			w.Header().Set("Retry-After", "60")
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}
