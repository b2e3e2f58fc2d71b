// Package tutor runs AI tutor conversations: it resolves the learner's
// session, asks the reasoning service for the next reply and persists both
// turns.
package tutor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/learnhub/internal/domain"
	"github.com/ashureev/learnhub/internal/reasoning"
	"github.com/ashureev/learnhub/internal/store"
	"github.com/google/uuid"
)

// Reasoner produces tutor replies.
type Reasoner interface {
	TutorReply(ctx context.Context, transcript []domain.Turn, uc domain.UserContext) reasoning.Reply
}

// Options tunes the session manager.
type Options struct {
	// MaxContextTurns bounds how many trailing turns are sent to the model.
	MaxContextTurns int
	// StrictSessions rejects unknown or foreign session ids instead of
	// starting a new session.
	StrictSessions bool
	// AppendRetries is how many times an append is attempted against
	// concurrent writers.
	AppendRetries int
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{MaxContextTurns: 20, AppendRetries: 3}
}

// Service is the tutor session manager.
type Service struct {
	repo     store.Repository
	reasoner Reasoner
	log      ConversationLogger
	opts     Options
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
}

// NewService creates a session manager.
func NewService(repo store.Repository, reasoner Reasoner, convLog ConversationLogger, opts Options, logger *slog.Logger) *Service {
	if convLog == nil {
		convLog = noopConversationLogger{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxContextTurns <= 0 {
		opts.MaxContextTurns = DefaultOptions().MaxContextTurns
	}
	if opts.AppendRetries <= 0 {
		opts.AppendRetries = DefaultOptions().AppendRetries
	}
	return &Service{
		repo:     repo,
		reasoner: reasoner,
		log:      convLog,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
		newID:    newSessionID,
	}
}

func newSessionID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// ChatTurnInput is one learner message. Message must already be validated.
type ChatTurnInput struct {
	UserID    string
	Message   string
	SessionID string

	// Channel and RequestID only annotate the conversation log.
	Channel   string
	RequestID string
}

// ChatTurnResult is the reply returned to the learner.
type ChatTurnResult struct {
	Reply     string `json:"response"`
	SessionID string `json:"sessionId"`
	Degraded  bool   `json:"-"`
}

// HandleChatTurn runs one conversational turn. A reasoning failure yields a
// degraded fallback reply and leaves the store untouched.
func (s *Service) HandleChatTurn(ctx context.Context, in ChatTurnInput) (*ChatTurnResult, error) {
	user, err := s.repo.GetUser(ctx, in.UserID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}

	session, err := s.resolveSession(ctx, in.UserID, in.SessionID)
	if err != nil {
		return nil, err
	}

	var transcript []domain.Turn
	if session != nil {
		transcript = session.Transcript()
	}
	userTurn := domain.UserTurn(in.Message)
	transcript = append(transcript, userTurn)

	courses, err := s.repo.ListUserCourses(ctx, in.UserID)
	if err != nil {
		return nil, fmt.Errorf("load user courses: %w", err)
	}
	userCtx := domain.BuildUserContext(user, courses)

	s.logEvent(in, sessionIDOf(session), DirectionInbound, "chat_user_message", in.Message, nil)

	reply := s.reasoner.TutorReply(ctx, lastTurns(transcript, s.opts.MaxContextTurns), userCtx)
	if reply.Degraded {
		s.logger.Warn("tutor reply degraded, session left unchanged",
			"user_id", in.UserID, "session_id", sessionIDOf(session), "request_id", in.RequestID)
		s.logEvent(in, sessionIDOf(session), DirectionOutbound, "chat_assistant_fallback", reply.Text,
			map[string]any{"degraded": true})
		return &ChatTurnResult{Reply: reply.Text, SessionID: sessionIDOf(session), Degraded: true}, nil
	}

	assistantTurn := domain.AssistantTurn(reply.Text)
	now := s.now()

	if session == nil {
		session = &domain.TutorSession{
			ID:        s.newID(),
			UserID:    in.UserID,
			Messages:  []domain.Turn{userTurn, assistantTurn},
			Topic:     domain.DeriveTopic(in.Message),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.repo.CreateTutorSession(ctx, session); err != nil {
			return nil, fmt.Errorf("create tutor session: %w", err)
		}
		s.logger.Info("tutor session created", "user_id", in.UserID, "session_id", session.ID)
	} else {
		session, err = s.appendTurns(ctx, session, now, userTurn, assistantTurn)
		if err != nil {
			return nil, err
		}
	}

	s.logEvent(in, session.ID, DirectionOutbound, "chat_assistant_message", reply.Text,
		map[string]any{"turns": len(session.Messages)})

	return &ChatTurnResult{Reply: reply.Text, SessionID: session.ID}, nil
}

// ListSessions returns the learner's sessions, newest-updated first.
func (s *Service) ListSessions(ctx context.Context, userID string) ([]*domain.TutorSession, error) {
	sessions, err := s.repo.ListTutorSessions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list tutor sessions: %w", err)
	}
	if sessions == nil {
		sessions = []*domain.TutorSession{}
	}
	return sessions, nil
}

// resolveSession returns the caller's session for sessionID, or nil when a
// new session should be started.
func (s *Service) resolveSession(ctx context.Context, userID, sessionID string) (*domain.TutorSession, error) {
	if sessionID == "" {
		return nil, nil
	}

	session, err := s.repo.GetTutorSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load tutor session: %w", err)
	}
	if session.OwnedBy(userID) {
		return session, nil
	}

	if s.opts.StrictSessions {
		return nil, domain.ErrSessionNotFound
	}
	// Never reveal whether the id exists for someone else.
	s.logger.Debug("unknown session id, starting a new session", "user_id", userID, "session_id", sessionID)
	return nil, nil
}

// appendTurns persists turns onto session, reloading and re-appending when a
// concurrent writer got there first so that no turn is lost.
func (s *Service) appendTurns(ctx context.Context, session *domain.TutorSession, now time.Time, turns ...domain.Turn) (*domain.TutorSession, error) {
	current := session
	for attempt := 1; ; attempt++ {
		next := *current
		next.Messages = append(current.Transcript(), turns...)
		next.UpdatedAt = now

		err := s.repo.UpdateTutorSessionMessages(ctx, &next, current.Version)
		if err == nil {
			return &next, nil
		}
		if !errors.Is(err, domain.ErrVersionConflict) {
			return nil, fmt.Errorf("update tutor session: %w", err)
		}
		if attempt >= s.opts.AppendRetries {
			s.logger.Warn("tutor session append gave up", "session_id", session.ID, "attempts", attempt)
			return nil, fmt.Errorf("append to session %s after %d attempts: %w", session.ID, attempt, err)
		}

		s.logger.Debug("tutor session changed concurrently, retrying", "session_id", session.ID, "attempt", attempt)
		fresh, err := s.repo.GetTutorSession(ctx, session.ID)
		if err != nil {
			return nil, fmt.Errorf("reload tutor session: %w", err)
		}
		if !fresh.OwnedBy(session.UserID) {
			return nil, domain.ErrSessionNotFound
		}
		current = fresh
	}
}

func (s *Service) logEvent(in ChatTurnInput, sessionID, direction, eventType, content string, meta map[string]any) {
	if meta == nil {
		meta = map[string]any{}
	}
	if in.RequestID != "" {
		meta["request_id"] = in.RequestID
	}
	channel := in.Channel
	if channel == "" {
		channel = ChannelHTTP
	}
	s.log.Log(ConversationLogEvent{
		Timestamp:  s.now().UTC().Format(time.RFC3339Nano),
		UserID:     in.UserID,
		SessionID:  sessionID,
		Channel:    channel,
		Direction:  direction,
		EventType:  eventType,
		ContentRaw: content,
		Content:    cleanForReadability(content),
		Meta:       meta,
	})
}

func sessionIDOf(s *domain.TutorSession) string {
	if s == nil {
		return ""
	}
	return s.ID
}

// lastTurns returns at most n trailing turns.
func lastTurns(turns []domain.Turn, n int) []domain.Turn {
	if n <= 0 || len(turns) <= n {
		return turns
	}
	return turns[len(turns)-n:]
}
