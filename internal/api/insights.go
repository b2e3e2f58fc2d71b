package api

import (
	"net/http"
	"strings"

	"github.com/ashureev/learnhub/internal/domain"
	"github.com/ashureev/learnhub/internal/identity"
	"github.com/ashureev/learnhub/internal/reasoning"
	"github.com/shopspring/decimal"
)

const maxGoals = 10

// UserStats is the numeric part of the analytics response.
type UserStats struct {
	CompletedCourses     int    `json:"completedCourses"`
	TotalCourses         int    `json:"totalCourses"`
	AverageProgress      string `json:"averageProgress"`
	LearningHours        int    `json:"learningHours"`
	CurrentStreak        int    `json:"currentStreak"`
	Level                int    `json:"level"`
	SkillLevel           string `json:"skillLevel"`
	CompletedAssessments int    `json:"completedAssessments"`
	AverageScore         string `json:"averageScore"`
}

// AnalyticsResponse combines the model's analysis with the learner's stats.
type AnalyticsResponse struct {
	reasoning.ProgressAnalysis
	UserStats UserStats `json:"userStats"`
}

type learningPathRequest struct {
	Goals         []string `json:"goals"`
	TimeAvailable int      `json:"timeAvailable"`
}

// ListRecommendations returns the caller's stored recommendations.
func (h *Handler) ListRecommendations(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	recs, err := h.repo.ListRecommendations(r.Context(), userID)
	if err != nil {
		WriteError(w, err, "Failed to fetch recommendations")
		return
	}
	if recs == nil {
		recs = []*domain.Recommendation{}
	}
	JSON(w, http.StatusOK, recs)
}

// GenerateRecommendations asks the advisor for course suggestions and stores them.
func (h *Handler) GenerateRecommendations(w http.ResponseWriter, r *http.Request) {
	const fallback = "Failed to generate recommendations"
	user := h.requireUser(w, r, fallback)
	if user == nil {
		return
	}
	courses, err := h.repo.ListUserCourses(r.Context(), user.ID)
	if err != nil {
		WriteError(w, err, fallback)
		return
	}

	uc := domain.BuildUserContext(user, courses)
	in := reasoning.RecommendationInput{SkillLevel: uc.SkillLevel, Progress: uc.LearningProgress}
	for _, p := range uc.LearningProgress {
		if p.IsCompleted {
			in.CompletedCourses = append(in.CompletedCourses, p.Course)
		}
	}

	set := h.advisor.Recommendations(r.Context(), in)
	now := h.now()
	stored := make([]*domain.Recommendation, 0, len(set.Recommendations))
	for _, s := range set.Recommendations {
		rec := &domain.Recommendation{
			UserID:            user.ID,
			Title:             s.Title,
			Description:       s.Description,
			Reason:            s.Reason,
			Priority:          s.Priority,
			EstimatedDuration: s.EstimatedDuration,
			CreatedAt:         now,
		}
		if err := h.repo.CreateRecommendation(r.Context(), rec); err != nil {
			WriteError(w, err, fallback)
			return
		}
		stored = append(stored, rec)
	}
	JSON(w, http.StatusOK, stored)
}

// Analytics returns an AI analysis of the caller's progress with their stats.
func (h *Handler) Analytics(w http.ResponseWriter, r *http.Request) {
	const fallback = "Failed to fetch analytics"
	user := h.requireUser(w, r, fallback)
	if user == nil {
		return
	}
	courses, err := h.repo.ListUserCourses(r.Context(), user.ID)
	if err != nil {
		WriteError(w, err, fallback)
		return
	}
	assessments, err := h.repo.ListAssessments(r.Context(), user.ID)
	if err != nil {
		WriteError(w, err, fallback)
		return
	}

	uc := domain.BuildUserContext(user, courses)
	analysis := h.advisor.AnalyzeProgress(r.Context(), reasoning.ProgressInput{Progress: uc, Assessments: assessments})

	completed, avgScore := assessmentStats(assessments)
	JSON(w, http.StatusOK, AnalyticsResponse{
		ProgressAnalysis: analysis,
		UserStats: UserStats{
			CompletedCourses:     uc.CompletedCourses,
			TotalCourses:         uc.TotalCourses,
			AverageProgress:      uc.AverageProgress,
			LearningHours:        user.TotalLearningHours,
			CurrentStreak:        user.CurrentStreak,
			Level:                user.Level,
			SkillLevel:           uc.SkillLevel,
			CompletedAssessments: completed,
			AverageScore:         avgScore.StringFixed(1),
		},
	})
}

// SuggestLearningPath proposes a learning path toward the caller's goals.
func (h *Handler) SuggestLearningPath(w http.ResponseWriter, r *http.Request) {
	user := h.requireUser(w, r, "Failed to suggest learning path")
	if user == nil {
		return
	}

	var req learningPathRequest
	if verrs := decodeBody(w, r, &req); verrs != nil {
		WriteValidation(w, verrs)
		return
	}

	goals := make([]string, 0, len(req.Goals))
	for _, g := range req.Goals {
		if g = strings.TrimSpace(g); g != "" {
			goals = append(goals, g)
		}
	}
	var errs ValidationError
	if len(goals) == 0 || len(goals) > maxGoals {
		errs = append(errs, FieldError{Field: "goals", Message: "Provide between 1 and 10 goals"})
	}
	if req.TimeAvailable < 1 || req.TimeAvailable > 168 {
		errs = append(errs, FieldError{Field: "timeAvailable", Message: "Time available must be between 1 and 168 hours per week"})
	}
	if errs != nil {
		WriteValidation(w, errs)
		return
	}

	path := h.advisor.SuggestLearningPath(r.Context(), reasoning.LearningPathInput{
		Goals:        goals,
		SkillLevel:   user.EffectiveSkillLevel(),
		HoursPerWeek: req.TimeAvailable,
	})
	JSON(w, http.StatusOK, path)
}

// assessmentStats counts completed assessments and averages their scores.
func assessmentStats(items []*domain.Assessment) (int, decimal.Decimal) {
	completed := 0
	sum, scored := decimal.Zero, 0
	for _, a := range items {
		if a.IsCompleted {
			completed++
		}
		if a.Score != nil {
			sum = sum.Add(decimal.NewFromFloat(*a.Score))
			scored++
		}
	}
	if scored == 0 {
		return completed, decimal.Zero
	}
	return completed, sum.Div(decimal.NewFromInt(int64(scored))).Round(1)
}
