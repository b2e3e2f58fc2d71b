package tutor

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ashureev/learnhub/internal/api"
	"github.com/ashureev/learnhub/internal/identity"
	"github.com/ashureev/learnhub/internal/middleware"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/containerd/errdefs"
)

// WebSocket message types.
const (
	MessageTypeTutorMessage  = "ai-tutor-message"
	MessageTypeTutorResponse = "ai-tutor-response"
	MessageTypePing          = "ping"
	MessageTypePong          = "pong"
	MessageTypeError         = "error"
)

const wsReadLimit = 64 << 10

// wsMessage represents WebSocket message structure.
type wsMessage struct {
	Type      string           `json:"type"`
	Message   string           `json:"message,omitempty"`
	SessionID string           `json:"sessionId,omitempty"`
	Error     string           `json:"error,omitempty"`
	Errors    []api.FieldError `json:"errors,omitempty"`
}

// wsTutorResponse always carries sessionId, empty when no session exists yet.
type wsTutorResponse struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
}

// WebSocketHandler serves tutor conversations over a WebSocket.
type WebSocketHandler struct {
	svc           *Service
	limiter       *middleware.RateLimiter
	allowedOrigin string
	isDev         bool
}

// NewWebSocketHandler creates a WebSocket handler. limiter is the AI tier and
// is charged once per tutor message.
func NewWebSocketHandler(svc *Service, limiter *middleware.RateLimiter, allowedOrigin string, isDev bool) *WebSocketHandler {
	return &WebSocketHandler{
		svc:           svc,
		limiter:       limiter,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	slog.Info("tutor websocket connection request", "user_id", userID, "ip", identity.IPFromRequest(r))

	if !h.checkOrigin(r) {
		api.Error(w, http.StatusForbidden, "origin not allowed")
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("failed to accept websocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()
	ws.SetReadLimit(wsReadLimit)

	h.readLoop(r.Context(), ws, userID)
	slog.Info("tutor websocket closed", "user_id", userID)
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" || origin == h.allowedOrigin {
		return true
	}
	slog.Warn("websocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *WebSocketHandler) readLoop(ctx context.Context, ws *websocket.Conn, userID string) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
				slog.Debug("websocket closed by client", "user_id", userID)
			} else {
				slog.Warn("websocket read error", "error", err, "user_id", userID)
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.write(ctx, ws, wsMessage{Type: MessageTypeError, Error: "invalid message"})
			continue
		}

		switch msg.Type {
		case MessageTypePing:
			h.write(ctx, ws, wsMessage{Type: MessageTypePong})
		case MessageTypeTutorMessage:
			h.handleTutorMessage(ctx, ws, userID, data)
		default:
			h.write(ctx, ws, wsMessage{Type: MessageTypeError, Error: "unknown message type"})
		}
	}
}

func (h *WebSocketHandler) handleTutorMessage(ctx context.Context, ws *websocket.Conn, userID string, data []byte) {
	if h.limiter != nil {
		if ok, retryAfter := h.limiter.Allow(userID); !ok {
			slog.Warn("websocket tutor rate limited", "user_id", userID, "retry_after", retryAfter)
			h.write(ctx, ws, wsMessage{Type: MessageTypeError, Error: "Too many AI requests, please try again later"})
			return
		}
	}

	req, verrs := api.ValidateChatPayload(data)
	if verrs != nil {
		h.write(ctx, ws, wsMessage{Type: MessageTypeError, Error: "validation failed", Errors: verrs})
		return
	}

	res, err := h.svc.HandleChatTurn(ctx, ChatTurnInput{
		UserID:    userID,
		Message:   req.Message,
		SessionID: req.SessionID,
		Channel:   ChannelWebSocket,
	})
	if err != nil {
		msg := "Failed to process AI tutor request"
		if errdefs.IsNotFound(err) || errdefs.IsConflict(err) {
			msg = api.PublicMessage(err)
		} else {
			slog.Error("websocket tutor turn failed", "error", err, "user_id", userID)
		}
		h.write(ctx, ws, wsMessage{Type: MessageTypeError, Error: msg})
		return
	}

	h.write(ctx, ws, wsTutorResponse{Type: MessageTypeTutorResponse, Message: res.Reply, SessionID: res.SessionID})
}

func (h *WebSocketHandler) write(ctx context.Context, ws *websocket.Conn, msg interface{}) {
	if err := wsjson.Write(ctx, ws, msg); err != nil {
		slog.Debug("failed to write websocket message", "error", err)
	}
}
