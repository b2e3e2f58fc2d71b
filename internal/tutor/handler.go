package tutor

import (
	"log/slog"
	"net/http"

	"github.com/ashureev/learnhub/internal/api"
	"github.com/ashureev/learnhub/internal/identity"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// Handler serves the tutor HTTP endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a tutor HTTP handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the tutor routes. aiLimit guards endpoints that call
// the reasoning service; it runs after authentication.
func (h *Handler) RegisterRoutes(r chi.Router, aiLimit func(http.Handler) http.Handler) {
	r.Get("/api/ai-tutor/sessions", h.HandleListSessions)
	r.With(aiLimit).Post("/api/ai-tutor/chat", h.HandleChat)
}

// HandleChat runs one tutor turn.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	req, verrs := api.ParseChatRequest(r.Body)
	if verrs != nil {
		api.WriteValidation(w, verrs)
		return
	}

	reqID := chiMiddleware.GetReqID(r.Context())
	slog.Info("tutor chat request",
		"user_id", userID,
		"session_id", req.SessionID,
		"message_length", len(req.Message),
		"request_id", reqID,
	)

	res, err := h.svc.HandleChatTurn(r.Context(), ChatTurnInput{
		UserID:    userID,
		Message:   req.Message,
		SessionID: req.SessionID,
		Channel:   ChannelHTTP,
		RequestID: reqID,
	})
	if err != nil {
		api.WriteError(w, err, "Failed to process AI tutor request")
		return
	}

	api.JSON(w, http.StatusOK, res)
}

// HandleListSessions returns the caller's sessions.
func (h *Handler) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	sessions, err := h.svc.ListSessions(r.Context(), userID)
	if err != nil {
		api.WriteError(w, err, "Failed to fetch AI tutor sessions")
		return
	}
	api.JSON(w, http.StatusOK, sessions)
}
