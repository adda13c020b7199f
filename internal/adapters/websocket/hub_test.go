package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/IANDYI/vitals-service/internal/core/domain"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub(nil)
	go hub.Run(ctx)
	return hub
}

// connect attaches a client as caller, optionally narrowed to subject
func connect(t *testing.T, hub *Hub, caller domain.Caller, subject *uuid.UUID) *websocket.Conn {
	before := hub.ClientCount()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, hub.ServeClient(w, r, caller, subject))
	}))
	t.Cleanup(server.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return hub.ClientCount() == before+1 }, time.Second, 10*time.Millisecond)
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) domain.SubjectEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, message, err := conn.ReadMessage()
	require.NoError(t, err)

	var event domain.SubjectEvent
	require.NoError(t, json.Unmarshal(message, &event))
	return event
}

func TestHub_PatientReceivesOnlyOwnSubject(t *testing.T) {
	hub := startHub(t)
	patientID := uuid.New()
	conn := connect(t, hub, domain.Caller{UserID: patientID, Role: domain.RolePatient}, nil)

	ctx := context.Background()
	require.NoError(t, hub.PublishToSubjectChannel(ctx, uuid.New(), domain.EventCriticalAlert, "someone else"))
	require.NoError(t, hub.PublishToSubjectChannel(ctx, patientID, domain.EventCriticalAlert, "mine"))

	// deliveries are ordered, so the first frame proves the foreign event was skipped
	event := readEvent(t, conn)
	assert.Equal(t, patientID, event.SubjectID)
	assert.Equal(t, domain.EventCriticalAlert, event.Event)
	assert.Equal(t, "mine", event.Payload)
}

func TestHub_PatientCannotWidenSubscription(t *testing.T) {
	hub := startHub(t)
	patientID, otherID := uuid.New(), uuid.New()
	conn := connect(t, hub, domain.Caller{UserID: patientID, Role: domain.RolePatient}, &otherID)

	ctx := context.Background()
	require.NoError(t, hub.PublishToSubjectChannel(ctx, otherID, domain.EventCriticalAlert, "other"))
	require.NoError(t, hub.PublishToSubjectChannel(ctx, patientID, domain.EventCriticalAlert, "mine"))

	assert.Equal(t, patientID, readEvent(t, conn).SubjectID)
}

func TestHub_ClinicianSubscriptions(t *testing.T) {
	hub := startHub(t)
	watchedID, otherID := uuid.New(), uuid.New()
	doctor := domain.Caller{UserID: uuid.New(), Role: domain.RoleDoctor}

	all := connect(t, hub, doctor, nil)
	narrowed := connect(t, hub, doctor, &watchedID)

	ctx := context.Background()
	require.NoError(t, hub.PublishToSubjectChannel(ctx, otherID, domain.EventClinicianNote, "first"))
	require.NoError(t, hub.PublishToSubjectChannel(ctx, watchedID, domain.EventCriticalAlert, "second"))

	assert.Equal(t, otherID, readEvent(t, all).SubjectID)
	assert.Equal(t, watchedID, readEvent(t, all).SubjectID)
	assert.Equal(t, watchedID, readEvent(t, narrowed).SubjectID)
}

func TestHub_ClientDisconnect(t *testing.T) {
	hub := startHub(t)
	conn := connect(t, hub, domain.Caller{UserID: uuid.New(), Role: domain.RolePatient}, nil)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestHub_StoppedHubRejectsPublish(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(nil)
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	// fill the buffer so the stopped hub is the only way out
	for len(hub.deliver) < cap(hub.deliver) {
		_ = hub.Deliver(context.Background(), uuid.New(), []byte("{}"))
	}
	err := hub.PublishToSubjectChannel(context.Background(), uuid.New(), domain.EventCriticalAlert, nil)
	assert.ErrorIs(t, err, ErrHubStopped)
}

func TestRedisRelay_Relay(t *testing.T) {
	hub := startHub(t)
	subjectID := uuid.New()
	conn := connect(t, hub, domain.Caller{UserID: subjectID, Role: domain.RolePatient}, nil)

	relay := NewRedisRelay(nil, hub, "vitals:subject:*", nil)
	ctx := context.Background()

	relay.relay(ctx, "not json")
	relay.relay(ctx, `{"event":"critical_alert"}`)

	payload, err := json.Marshal(domain.SubjectEvent{
		Event:     domain.EventCriticalAlert,
		SubjectID: subjectID,
		Payload:   "relayed",
		Timestamp: time.Now().UTC(),
	})
	require.NoError(t, err)
	relay.relay(ctx, string(payload))

	event := readEvent(t, conn)
	assert.Equal(t, subjectID, event.SubjectID)
	assert.Equal(t, "relayed", event.Payload)
}
