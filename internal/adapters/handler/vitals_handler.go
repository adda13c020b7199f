package handler

import (
	"net/http"

	"github.com/IANDYI/vitals-service/internal/core/domain"
	"github.com/IANDYI/vitals-service/internal/core/ports"
	"go.uber.org/zap"
)

// VitalsHandler handles HTTP requests for reading intake and history
type VitalsHandler struct {
	vitalsService ports.VitalsService
	logger        *zap.Logger
}

// NewVitalsHandler creates a new vitals handler
func NewVitalsHandler(vitalsService ports.VitalsService, logger *zap.Logger) *VitalsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VitalsHandler{
		vitalsService: vitalsService,
		logger:        logger.With(zap.String("component", "vitals_handler")),
	}
}

// RecordReading handles POST /vitals
// PATIENT only; the reading is recorded for the caller. Kind is inferred when omitted.
func (h *VitalsHandler) RecordReading(w http.ResponseWriter, r *http.Request) {
	h.record(w, r, "")
}

// RecordKicks handles POST /vitals/kicks
func (h *VitalsHandler) RecordKicks(w http.ResponseWriter, r *http.Request) {
	h.record(w, r, domain.KindKickCount)
}

// RecordContraction handles POST /vitals/contractions
func (h *VitalsHandler) RecordContraction(w http.ResponseWriter, r *http.Request) {
	h.record(w, r, domain.KindContraction)
}

func (h *VitalsHandler) record(w http.ResponseWriter, r *http.Request, kind domain.ReadingKind) {
	rl := newRequestLog(h.logger, r)

	caller, ok := rl.callerFrom(w, r)
	if !ok {
		return
	}

	var req ports.RecordReadingRequest
	if err := decodeBody(w, r, &req); err != nil {
		rl.writeError(w, err)
		return
	}

	if kind != "" {
		if req.Kind != "" && req.Kind != kind {
			rl.writeError(w, domain.NewValidationError("kind", "must be "+string(kind)+" on this endpoint"))
			return
		}
		req.Kind = kind
	}

	result, err := h.vitalsService.RecordReading(r.Context(), caller.UserID, domain.SourceAPI, req)
	if err != nil {
		rl.writeError(w, err)
		return
	}

	rl.writeJSON(w, http.StatusCreated, result)
}

// ListReadings handles GET /vitals
// PATIENT: own readings, DOCTOR: any subject via subject_id
func (h *VitalsHandler) ListReadings(w http.ResponseWriter, r *http.Request) {
	rl := newRequestLog(h.logger, r)

	caller, ok := rl.callerFrom(w, r)
	if !ok {
		return
	}

	subjectID, err := subjectFromQuery(r, caller)
	if err != nil {
		rl.writeError(w, err)
		return
	}

	limit, err := limitFromQuery(r)
	if err != nil {
		rl.writeError(w, err)
		return
	}

	var kind *domain.ReadingKind
	if raw := r.URL.Query().Get("kind"); raw != "" {
		k := domain.ReadingKind(raw)
		kind = &k
	}

	readings, err := h.vitalsService.ListReadings(r.Context(), caller, subjectID, kind, limit)
	if err != nil {
		rl.writeError(w, err)
		return
	}
	if readings == nil {
		readings = []*domain.Reading{}
	}

	rl.writeJSON(w, http.StatusOK, readings)
}

// GetSummary handles GET /vitals/summary
func (h *VitalsHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	rl := newRequestLog(h.logger, r)

	caller, ok := rl.callerFrom(w, r)
	if !ok {
		return
	}

	subjectID, err := subjectFromQuery(r, caller)
	if err != nil {
		rl.writeError(w, err)
		return
	}

	summary, err := h.vitalsService.GetSummary(r.Context(), caller, subjectID)
	if err != nil {
		rl.writeError(w, err)
		return
	}

	rl.writeJSON(w, http.StatusOK, summary)
}
