package handler

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/IANDYI/vitals-service/internal/adapters/middleware"
	"github.com/IANDYI/vitals-service/internal/core/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxBodyBytes bounds request bodies on write endpoints
const maxBodyBytes = 64 << 10

// generateRequestID generates a unique request ID for tracing
func generateRequestID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		// Fallback to timestamp-based ID if random generation fails
		return hex.EncodeToString([]byte(time.Now().Format(time.RFC3339Nano)))
	}
	return hex.EncodeToString(b)
}

// ErrorResponse is the JSON body of every non-2xx response written by the handlers
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// requestLog carries the request-scoped fields of the access line
type requestLog struct {
	logger    *zap.Logger
	requestID string
	start     time.Time
	method    string
	endpoint  string
}

func newRequestLog(logger *zap.Logger, r *http.Request) *requestLog {
	rl := &requestLog{
		requestID: generateRequestID(),
		start:     time.Now(),
		method:    r.Method,
		endpoint:  r.URL.Path,
	}
	fields := []zap.Field{zap.String("request_id", rl.requestID)}
	if userID, ok := middleware.GetUserID(r.Context()); ok {
		fields = append(fields, zap.String("user_id", userID))
	}
	if role, ok := middleware.GetRole(r.Context()); ok {
		fields = append(fields, zap.String("role", role))
	}
	rl.logger = logger.With(fields...)
	return rl
}

// done writes the structured access line
func (rl *requestLog) done(statusCode int) {
	rl.logger.Info("request completed",
		zap.String("method", rl.method),
		zap.String("endpoint", rl.endpoint),
		zap.Int("status_code", statusCode),
		zap.Int64("duration_ms", time.Since(rl.start).Milliseconds()),
	)
}

// writeJSON encodes body with the given status code
func (rl *requestLog) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		rl.logger.Warn("failed to encode response", zap.Error(err))
	}
	rl.done(status)
}

// writeMessage writes an ErrorResponse carrying only a message
func (rl *requestLog) writeMessage(w http.ResponseWriter, status int, msg string) {
	rl.writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeError maps a service error onto its HTTP status.
// Unclassified errors are logged and reported with a generic body.
func (rl *requestLog) writeError(w http.ResponseWriter, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		rl.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation failed", Fields: ve.Fields})
	case errors.Is(err, domain.ErrForbidden):
		rl.writeMessage(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, domain.ErrNotFound):
		rl.writeMessage(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		rl.logger.Warn("upstream unavailable", zap.Error(err))
		w.Header().Set("Retry-After", "5")
		rl.writeMessage(w, http.StatusServiceUnavailable, "service temporarily unavailable")
	default:
		rl.logger.Error("request failed", zap.Error(err))
		rl.writeMessage(w, http.StatusInternalServerError, "internal server error")
	}
}

// callerFrom returns the authenticated caller or writes 401
func (rl *requestLog) callerFrom(w http.ResponseWriter, r *http.Request) (domain.Caller, bool) {
	caller, ok := middleware.GetCaller(r.Context())
	if !ok {
		rl.logger.Warn("failed to get caller from context")
		rl.writeMessage(w, http.StatusUnauthorized, "unauthorized")
		return domain.Caller{}, false
	}
	return caller, true
}

// subjectFromQuery resolves the subject a read targets.
// Patients always read their own subject; clinicians must name one with subject_id.
func subjectFromQuery(r *http.Request, caller domain.Caller) (uuid.UUID, error) {
	raw := r.URL.Query().Get("subject_id")
	if raw == "" {
		if caller.IsClinician() {
			return uuid.Nil, domain.NewValidationError("subject_id", "is required")
		}
		return caller.UserID, nil
	}
	subjectID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, domain.NewValidationError("subject_id", "must be a UUID")
	}
	return subjectID, nil
}

// limitFromQuery parses an optional positive limit; zero means the service default
func limitFromQuery(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, domain.NewValidationError("limit", "must be a positive integer")
	}
	return limit, nil
}

// decodeBody decodes a bounded JSON body, rejecting unknown fields
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domain.NewValidationError("body", "invalid request body: "+err.Error())
	}
	return nil
}
