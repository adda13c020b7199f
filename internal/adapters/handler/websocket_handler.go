package handler

import (
	"net/http"

	"github.com/IANDYI/vitals-service/internal/adapters/middleware"
	"github.com/IANDYI/vitals-service/internal/adapters/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WebSocketHandler handles WebSocket connections
type WebSocketHandler struct {
	hub            *websocket.Hub
	authMiddleware *middleware.AuthMiddleware
	logger         *zap.Logger
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(hub *websocket.Hub, authMiddleware *middleware.AuthMiddleware, logger *zap.Logger) *WebSocketHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebSocketHandler{
		hub:            hub,
		authMiddleware: authMiddleware,
		logger:         logger.With(zap.String("component", "websocket_handler")),
	}
}

// HandleWebSocket handles GET /ws.
// Browsers cannot set headers on the upgrade request, so the token may also
// arrive as ?token=. Clinicians may narrow the stream with ?subject_id=.
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	tokenString, ok := middleware.BearerToken(r.Header.Get("Authorization"))
	if !ok {
		tokenString = r.URL.Query().Get("token")
	}
	if tokenString == "" {
		h.logger.Info("websocket connection rejected: missing token")
		http.Error(w, "unauthorized: missing token", http.StatusUnauthorized)
		return
	}

	caller, err := h.authMiddleware.Authenticate(tokenString)
	if err != nil {
		h.logger.Info("websocket connection rejected: invalid token", zap.Error(err))
		http.Error(w, "unauthorized: invalid token", http.StatusUnauthorized)
		return
	}

	var subject *uuid.UUID
	if raw := r.URL.Query().Get("subject_id"); raw != "" && caller.IsClinician() {
		id, err := uuid.Parse(raw)
		if err != nil {
			http.Error(w, "invalid subject_id", http.StatusBadRequest)
			return
		}
		subject = &id
	}

	if err := h.hub.ServeClient(w, r, caller, subject); err != nil {
		// the upgrader has already replied to the client
		h.logger.Warn("websocket connection failed", zap.String("user_id", caller.UserID.String()), zap.Error(err))
	}
}
