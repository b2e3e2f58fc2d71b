package reasoning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/learnhub/internal/domain"
)

// Fallback replies shown to the learner when no real reply is available.
const (
	FallbackEmptyReply = "I'm sorry, I couldn't process your request right now."
	FallbackErrorReply = "I'm experiencing some technical difficulties. Please try again later."
)

// Defaults for structured calls.
const (
	DefaultMotivationalMessage = "Keep up the great work!"
	DefaultPathTitle           = "Custom Learning Path"
	DefaultPathDescription     = "A personalized learning journey tailored to your goals"
)

// Adapter shields callers from reasoning-service failures: every method
// returns a usable value, falling back to safe defaults.
type Adapter struct {
	client  Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

// NewAdapter wraps client. Calls are bounded by timeout.
func NewAdapter(client Client, model string, timeout time.Duration, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{client: client, model: model, timeout: timeout, logger: logger}
}

// Reply is a tutor answer. Degraded replies are fallbacks and must not be
// stored as assistant turns.
type Reply struct {
	Text     string
	Degraded bool
}

// TutorReply asks for the next tutor turn given the transcript so far.
func (a *Adapter) TutorReply(ctx context.Context, transcript []domain.Turn, uc domain.UserContext) Reply {
	messages := make([]Message, 0, len(transcript)+1)
	messages = append(messages, Message{Role: RoleSystem, Content: TutorSystemPrompt(uc)})
	messages = append(messages, FromTurns(transcript)...)

	content, err := a.complete(ctx, CompletionRequest{Messages: messages, Model: a.model})
	switch {
	case errors.Is(err, ErrEmptyCompletion):
		a.logger.Warn("tutor reply was empty")
		return Reply{Text: FallbackEmptyReply, Degraded: true}
	case err != nil:
		a.logger.Error("tutor reply failed", "error", err)
		return Reply{Text: FallbackErrorReply, Degraded: true}
	}
	return Reply{Text: content}
}

// RecommendationInput describes the learner for course recommendations.
type RecommendationInput struct {
	SkillLevel       string
	Progress         []domain.CourseProgress
	CompletedCourses []string
}

// SuggestedCourse is one recommendation proposed by the service.
type SuggestedCourse struct {
	Title             string `json:"title"`
	Description       string `json:"description"`
	Reason            string `json:"reason"`
	Priority          int    `json:"priority"`
	EstimatedDuration int    `json:"estimatedDuration"`
}

// RecommendationSet is the structured recommendations reply.
type RecommendationSet struct {
	Recommendations []SuggestedCourse `json:"recommendations"`
}

// Recommendations proposes courses. The default is an empty list.
func (a *Adapter) Recommendations(ctx context.Context, in RecommendationInput) RecommendationSet {
	var out RecommendationSet
	if err := a.completeJSON(ctx, recommendationsMessages(in), &out); err != nil {
		a.logger.Error("recommendations failed", "error", err)
		return RecommendationSet{Recommendations: []SuggestedCourse{}}
	}

	recs := make([]SuggestedCourse, 0, len(out.Recommendations))
	for _, r := range out.Recommendations {
		if strings.TrimSpace(r.Title) == "" {
			continue
		}
		r.Priority = clamp(r.Priority, 1, 5)
		if r.EstimatedDuration < 0 {
			r.EstimatedDuration = 0
		}
		recs = append(recs, r)
	}
	return RecommendationSet{Recommendations: recs}
}

// ProgressInput is the data analyzed for learning insights.
type ProgressInput struct {
	Progress    domain.UserContext
	Assessments []*domain.Assessment
}

// ProgressAnalysis is the structured analytics reply.
type ProgressAnalysis struct {
	Strengths           []string `json:"strengths"`
	Weaknesses          []string `json:"weaknesses"`
	Recommendations     []string `json:"recommendations"`
	NextSteps           []string `json:"nextSteps"`
	MotivationalMessage string   `json:"motivationalMessage"`
}

// DefaultProgressAnalysis is the neutral analysis.
func DefaultProgressAnalysis() ProgressAnalysis {
	return ProgressAnalysis{
		Strengths:           []string{},
		Weaknesses:          []string{},
		Recommendations:     []string{},
		NextSteps:           []string{},
		MotivationalMessage: DefaultMotivationalMessage,
	}
}

// AnalyzeProgress summarizes strengths and next steps.
func (a *Adapter) AnalyzeProgress(ctx context.Context, in ProgressInput) ProgressAnalysis {
	var out struct {
		Analysis *ProgressAnalysis `json:"analysis"`
	}
	if err := a.completeJSON(ctx, analysisMessages(in), &out); err != nil || out.Analysis == nil {
		if err == nil {
			err = errors.New("missing analysis object")
		}
		a.logger.Error("progress analysis failed", "error", err)
		return DefaultProgressAnalysis()
	}

	res := *out.Analysis
	res.Strengths = nonNil(res.Strengths)
	res.Weaknesses = nonNil(res.Weaknesses)
	res.Recommendations = nonNil(res.Recommendations)
	res.NextSteps = nonNil(res.NextSteps)
	if res.MotivationalMessage == "" {
		res.MotivationalMessage = DefaultMotivationalMessage
	}
	return res
}

// LearningPathInput describes the learner's goals.
type LearningPathInput struct {
	Goals        []string
	SkillLevel   string
	HoursPerWeek int
}

// PathStep is one stage of a learning path.
type PathStep struct {
	Title             string   `json:"title"`
	Description       string   `json:"description"`
	EstimatedDuration int      `json:"estimatedDuration"`
	Skills            []string `json:"skills"`
}

// LearningPathSuggestion is the structured learning-path reply.
type LearningPathSuggestion struct {
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Steps         []PathStep `json:"steps"`
	TotalDuration int        `json:"totalDuration"`
}

// DefaultLearningPath is the placeholder path.
func DefaultLearningPath() LearningPathSuggestion {
	return LearningPathSuggestion{
		Title:       DefaultPathTitle,
		Description: DefaultPathDescription,
		Steps:       []PathStep{},
	}
}

// SuggestLearningPath proposes a sequence of steps toward the goals.
func (a *Adapter) SuggestLearningPath(ctx context.Context, in LearningPathInput) LearningPathSuggestion {
	var out struct {
		Path *LearningPathSuggestion `json:"path"`
	}
	if err := a.completeJSON(ctx, learningPathMessages(in), &out); err != nil || out.Path == nil {
		if err == nil {
			err = errors.New("missing path object")
		}
		a.logger.Error("learning path suggestion failed", "error", err)
		return DefaultLearningPath()
	}

	path := *out.Path
	if path.Title == "" {
		path.Title = DefaultPathTitle
	}
	if path.Description == "" {
		path.Description = DefaultPathDescription
	}
	if path.Steps == nil {
		path.Steps = []PathStep{}
	}
	for i := range path.Steps {
		path.Steps[i].Skills = nonNil(path.Steps[i].Skills)
	}
	return path
}

func (a *Adapter) complete(ctx context.Context, req CompletionRequest) (string, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	content, err := a.client.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyCompletion
	}
	return content, nil
}

func (a *Adapter) completeJSON(ctx context.Context, messages []Message, dst interface{}) error {
	content, err := a.complete(ctx, CompletionRequest{Messages: messages, Model: a.model, JSON: true})
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(stripCodeFence(content)), dst); err != nil {
		return fmt.Errorf("parse structured reply: %w", err)
	}
	return nil
}

// stripCodeFence removes a surrounding markdown code fence, if any.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
