package handler

import (
	"net/http"
	"strconv"

	"github.com/IANDYI/vitals-service/internal/core/domain"
	"github.com/IANDYI/vitals-service/internal/core/ports"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AlertHandler handles HTTP requests for alert operations
type AlertHandler struct {
	alertService ports.AlertService
	logger       *zap.Logger
}

// NewAlertHandler creates a new alert handler
func NewAlertHandler(alertService ports.AlertService, logger *zap.Logger) *AlertHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlertHandler{
		alertService: alertService,
		logger:       logger.With(zap.String("component", "alert_handler")),
	}
}

// ListAlerts handles GET /alerts
// PATIENT: own alerts only. DOCTOR: all subjects, or one via subject_id.
func (h *AlertHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	rl := newRequestLog(h.logger, r)

	caller, ok := rl.callerFrom(w, r)
	if !ok {
		return
	}

	filter := domain.AlertFilter{}
	query := r.URL.Query()

	if raw := query.Get("subject_id"); raw != "" {
		subjectID, err := uuid.Parse(raw)
		if err != nil {
			rl.writeError(w, domain.NewValidationError("subject_id", "must be a UUID"))
			return
		}
		filter.SubjectID = &subjectID
	}

	if raw := query.Get("unacknowledged"); raw != "" {
		only, err := strconv.ParseBool(raw)
		if err != nil {
			rl.writeError(w, domain.NewValidationError("unacknowledged", "must be true or false"))
			return
		}
		filter.UnacknowledgedOnly = only
	}

	limit, err := limitFromQuery(r)
	if err != nil {
		rl.writeError(w, err)
		return
	}
	filter.Limit = limit

	alerts, err := h.alertService.ListAlerts(r.Context(), caller, filter)
	if err != nil {
		rl.writeError(w, err)
		return
	}
	if alerts == nil {
		alerts = []*domain.Alert{}
	}

	rl.writeJSON(w, http.StatusOK, alerts)
}

// CreateAlert handles POST /alerts
// DOCTOR only - records a clinician note for a subject
func (h *AlertHandler) CreateAlert(w http.ResponseWriter, r *http.Request) {
	rl := newRequestLog(h.logger, r)

	caller, ok := rl.callerFrom(w, r)
	if !ok {
		return
	}

	var req ports.ClinicianNoteRequest
	if err := decodeBody(w, r, &req); err != nil {
		rl.writeError(w, err)
		return
	}

	alert, err := h.alertService.CreateClinicianNote(r.Context(), caller, req)
	if err != nil {
		rl.writeError(w, err)
		return
	}

	rl.writeJSON(w, http.StatusCreated, alert)
}

// AcknowledgeAlert handles PATCH /alerts/{alert_id}/acknowledge
// Alerts of other subjects are 404 for patients
func (h *AlertHandler) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	rl := newRequestLog(h.logger, r)

	caller, ok := rl.callerFrom(w, r)
	if !ok {
		return
	}

	alertID, err := uuid.Parse(r.PathValue("alert_id"))
	if err != nil {
		rl.writeError(w, domain.NewValidationError("alert_id", "must be a UUID"))
		return
	}

	alert, err := h.alertService.AcknowledgeAlert(r.Context(), caller, alertID)
	if err != nil {
		rl.writeError(w, err)
		return
	}

	rl.writeJSON(w, http.StatusOK, alert)
}
