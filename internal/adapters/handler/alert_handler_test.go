package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/IANDYI/vitals-service/internal/core/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedAlert(t *testing.T, env *testEnv, subjectID uuid.UUID) *domain.Alert {
	alert := &domain.Alert{
		ID:        uuid.New(),
		SubjectID: subjectID,
		Severity:  domain.SeverityCritical,
		Category:  domain.CategoryBloodPressure,
		Message:   "Blood pressure 150/100 is in the hypertensive range",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, env.repo.InsertAlert(context.Background(), alert))
	return alert
}

func acknowledgeRequest(alertID string, userID uuid.UUID, role string) *http.Request {
	req := httptest.NewRequest("PATCH", "/alerts/"+alertID+"/acknowledge", nil)
	req.SetPathValue("alert_id", alertID)
	return withCaller(req, userID, role)
}

func TestAlertHandler_AcknowledgeAlert(t *testing.T) {
	env := newTestEnv()
	patientID := uuid.New()
	alert := seedAlert(t, env, patientID)

	w := httptest.NewRecorder()
	env.alertHandler.AcknowledgeAlert(w, acknowledgeRequest(alert.ID.String(), patientID, domain.RolePatient))

	require.Equal(t, http.StatusOK, w.Code)
	var acked domain.Alert
	require.NoError(t, json.NewDecoder(w.Body).Decode(&acked))
	assert.True(t, acked.Acknowledged)
	require.NotNil(t, acked.AcknowledgedAt)

	// second acknowledgment keeps the original time
	w = httptest.NewRecorder()
	env.alertHandler.AcknowledgeAlert(w, acknowledgeRequest(alert.ID.String(), patientID, domain.RolePatient))

	require.Equal(t, http.StatusOK, w.Code)
	var again domain.Alert
	require.NoError(t, json.NewDecoder(w.Body).Decode(&again))
	require.NotNil(t, again.AcknowledgedAt)
	assert.True(t, acked.AcknowledgedAt.Equal(*again.AcknowledgedAt))
}

func TestAlertHandler_AcknowledgeAlert_NotFound(t *testing.T) {
	env := newTestEnv()
	alert := seedAlert(t, env, uuid.New())

	tests := []struct {
		name    string
		alertID string
		code    int
	}{
		{"unknown alert", uuid.New().String(), http.StatusNotFound},
		{"another subject's alert", alert.ID.String(), http.StatusNotFound},
		{"malformed id", "not-a-uuid", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			env.alertHandler.AcknowledgeAlert(w, acknowledgeRequest(tt.alertID, uuid.New(), domain.RolePatient))
			assert.Equal(t, tt.code, w.Code)
		})
	}
}

func TestAlertHandler_ListAlerts(t *testing.T) {
	env := newTestEnv()
	patientID := uuid.New()
	seedAlert(t, env, patientID)
	acked := seedAlert(t, env, patientID)
	seedAlert(t, env, uuid.New())

	w := httptest.NewRecorder()
	env.alertHandler.AcknowledgeAlert(w, acknowledgeRequest(acked.ID.String(), patientID, domain.RolePatient))
	require.Equal(t, http.StatusOK, w.Code)

	t.Run("patient sees own alerts", func(t *testing.T) {
		w := httptest.NewRecorder()
		env.alertHandler.ListAlerts(w, withCaller(httptest.NewRequest("GET", "/alerts", nil), patientID, domain.RolePatient))

		require.Equal(t, http.StatusOK, w.Code)
		var alerts []domain.Alert
		require.NoError(t, json.NewDecoder(w.Body).Decode(&alerts))
		assert.Len(t, alerts, 2)
	})

	t.Run("unacknowledged only", func(t *testing.T) {
		w := httptest.NewRecorder()
		env.alertHandler.ListAlerts(w, withCaller(httptest.NewRequest("GET", "/alerts?unacknowledged=true", nil), patientID, domain.RolePatient))

		require.Equal(t, http.StatusOK, w.Code)
		var alerts []domain.Alert
		require.NoError(t, json.NewDecoder(w.Body).Decode(&alerts))
		require.Len(t, alerts, 1)
		assert.False(t, alerts[0].Acknowledged)
	})

	t.Run("doctor sees every subject", func(t *testing.T) {
		w := httptest.NewRecorder()
		env.alertHandler.ListAlerts(w, withCaller(httptest.NewRequest("GET", "/alerts", nil), uuid.New(), domain.RoleDoctor))

		require.Equal(t, http.StatusOK, w.Code)
		var alerts []domain.Alert
		require.NoError(t, json.NewDecoder(w.Body).Decode(&alerts))
		assert.Len(t, alerts, 3)
	})

	t.Run("doctor filters by subject", func(t *testing.T) {
		w := httptest.NewRecorder()
		env.alertHandler.ListAlerts(w, withCaller(httptest.NewRequest("GET", "/alerts?subject_id="+patientID.String(), nil), uuid.New(), domain.RoleDoctor))

		require.Equal(t, http.StatusOK, w.Code)
		var alerts []domain.Alert
		require.NoError(t, json.NewDecoder(w.Body).Decode(&alerts))
		assert.Len(t, alerts, 2)
	})

	t.Run("bad flag", func(t *testing.T) {
		w := httptest.NewRecorder()
		env.alertHandler.ListAlerts(w, withCaller(httptest.NewRequest("GET", "/alerts?unacknowledged=maybe", nil), patientID, domain.RolePatient))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAlertHandler_CreateAlert(t *testing.T) {
	env := newTestEnv()
	subjectID := uuid.New()
	doctorID := uuid.New()

	w := httptest.NewRecorder()
	env.alertHandler.CreateAlert(w, withCaller(jsonRequest(t, "POST", "/alerts", map[string]interface{}{
		"subject_id": subjectID.String(),
		"severity":   "warning",
		"message":    "Please book a check-up this week",
	}), doctorID, domain.RoleDoctor))

	require.Equal(t, http.StatusCreated, w.Code)
	var alert domain.Alert
	require.NoError(t, json.NewDecoder(w.Body).Decode(&alert))
	assert.Equal(t, subjectID, alert.SubjectID)
	assert.Equal(t, domain.CategoryClinicianNote, alert.Category)
	require.NotNil(t, alert.AuthorID)
	assert.Equal(t, doctorID, *alert.AuthorID)
}

func TestAlertHandler_CreateAlert_Errors(t *testing.T) {
	env := newTestEnv()

	w := httptest.NewRecorder()
	env.alertHandler.CreateAlert(w, withCaller(jsonRequest(t, "POST", "/alerts", map[string]interface{}{
		"subject_id": uuid.New().String(),
		"severity":   "warning",
		"message":    "note",
	}), uuid.New(), domain.RolePatient))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	env.alertHandler.CreateAlert(w, withCaller(jsonRequest(t, "POST", "/alerts", map[string]interface{}{
		"subject_id": uuid.New().String(),
		"severity":   "urgent",
	}), uuid.New(), domain.RoleDoctor))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
