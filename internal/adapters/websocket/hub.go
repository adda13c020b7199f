package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/IANDYI/vitals-service/internal/core/domain"
	"github.com/IANDYI/vitals-service/internal/core/ports"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

var connectionsGauge = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "vitals_websocket_connections",
		Help: "Current number of WebSocket connections",
	},
	[]string{"role"},
)

// ErrHubStopped is returned when publishing to a hub whose loop has exited
var ErrHubStopped = errors.New("websocket hub stopped")

// Client represents a websocket connection
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID uuid.UUID
	role   string
	// subject is the only subject this client receives; nil for clinicians watching everyone
	subject *uuid.UUID
}

type delivery struct {
	subjectID uuid.UUID
	message   []byte
}

// Hub maintains the active clients and routes subject events to them.
// A patient receives only their own subject's events; a clinician receives
// every subject's events unless they subscribed to one subject.
type Hub struct {
	clients    map[*Client]bool
	bySubject  map[uuid.UUID]map[*Client]bool
	watchAll   map[*Client]bool
	deliver    chan delivery
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
	logger     *zap.Logger
}

// NewHub creates a new WebSocket hub; Run must be started before use
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		bySubject:  make(map[uuid.UUID]map[*Client]bool),
		watchAll:   make(map[*Client]bool),
		deliver:    make(chan delivery, sendBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger.With(zap.String("component", "websocket_hub")),
	}
}

// Run starts the hub's main loop and blocks until ctx is cancelled
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				h.removeLocked(client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			if client.subject == nil {
				h.watchAll[client] = true
			} else {
				if h.bySubject[*client.subject] == nil {
					h.bySubject[*client.subject] = make(map[*Client]bool)
				}
				h.bySubject[*client.subject][client] = true
			}
			total := len(h.clients)
			h.mu.Unlock()

			connectionsGauge.WithLabelValues(strings.ToLower(client.role)).Inc()
			h.logger.Info("websocket client connected",
				zap.String("user_id", client.userID.String()),
				zap.String("role", client.role),
				zap.Int("total", total),
			)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				h.removeLocked(client)
				h.logger.Info("websocket client disconnected",
					zap.String("user_id", client.userID.String()),
					zap.String("role", client.role),
				)
			}
			h.mu.Unlock()

		case d := <-h.deliver:
			h.mu.Lock()
			sent := 0
			for client := range h.recipientsLocked(d.subjectID) {
				select {
				case client.send <- d.message:
					sent++
				default:
					h.logger.Warn("websocket client too slow, dropping", zap.String("user_id", client.userID.String()))
					h.removeLocked(client)
				}
			}
			h.mu.Unlock()
			h.logger.Debug("subject event delivered",
				zap.String("subject_id", d.subjectID.String()),
				zap.Int("recipients", sent),
			)
		}
	}
}

// recipientsLocked returns the subject's subscribers plus every watch-all client
func (h *Hub) recipientsLocked(subjectID uuid.UUID) map[*Client]bool {
	recipients := make(map[*Client]bool, len(h.watchAll)+len(h.bySubject[subjectID]))
	for c := range h.bySubject[subjectID] {
		recipients[c] = true
	}
	for c := range h.watchAll {
		recipients[c] = true
	}
	return recipients
}

func (h *Hub) removeLocked(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	delete(h.watchAll, client)
	if client.subject != nil {
		if set := h.bySubject[*client.subject]; set != nil {
			delete(set, client)
			if len(set) == 0 {
				delete(h.bySubject, *client.subject)
			}
		}
	}
	close(client.send)
	connectionsGauge.WithLabelValues(strings.ToLower(client.role)).Dec()
}

// PublishToSubjectChannel encodes the event and queues it for the subject's clients
func (h *Hub) PublishToSubjectChannel(ctx context.Context, subjectID uuid.UUID, event string, payload interface{}) error {
	message, err := json.Marshal(domain.SubjectEvent{
		Event:     event,
		SubjectID: subjectID,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal subject event: %w", err)
	}
	return h.Deliver(ctx, subjectID, message)
}

// Deliver queues an already encoded message for the subject's clients
func (h *Hub) Deliver(ctx context.Context, subjectID uuid.UUID, message []byte) error {
	select {
	case h.deliver <- delivery{subjectID: subjectID, message: message}:
		return nil
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeClient upgrades the request and attaches the connection to the hub.
// subject narrows a clinician's subscription; patients are always bound to their own id.
func (h *Hub) ServeClient(w http.ResponseWriter, r *http.Request, caller domain.Caller, subject *uuid.UUID) error {
	if !caller.IsClinician() {
		own := caller.UserID
		subject = &own
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("websocket upgrade: %w", err)
	}

	client := &Client{
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		userID:  caller.UserID,
		role:    caller.Role,
		subject: subject,
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return ErrHubStopped
	}

	go client.writePump()
	go client.readPump()
	return nil
}

// readPump drains the connection so pongs and close frames are processed
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("websocket read error", zap.Error(err))
			}
			break
		}
	}
}

// writePump pumps messages from the hub to the websocket connection, one event per frame
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

var _ ports.Notifier = (*Hub)(nil)
