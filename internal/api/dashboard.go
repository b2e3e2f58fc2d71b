package api

import (
	"net/http"

	"github.com/ashureev/learnhub/internal/domain"
	"golang.org/x/sync/errgroup"
)

const (
	dashboardCourses         = 3
	dashboardAssessments     = 5
	dashboardRecommendations = 4
	dashboardSessions        = 1
)

// DashboardResponse is the landing-page summary for a learner.
type DashboardResponse struct {
	User            *domain.User             `json:"user"`
	UserCourses     []*domain.UserCourse     `json:"userCourses"`
	LearningPaths   []*domain.LearningPath   `json:"learningPaths"`
	Assessments     []*domain.Assessment     `json:"assessments"`
	Recommendations []*domain.Recommendation `json:"recommendations"`
	TutorSessions   []*domain.TutorSession   `json:"aiTutorSessions"`
}

// Dashboard returns the caller's recent courses, learning paths, upcoming
// assessments, top recommendations and latest tutor session.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	user := h.requireUser(w, r, "Failed to fetch dashboard data")
	if user == nil {
		return
	}

	resp := DashboardResponse{User: user}
	var assessments []*domain.Assessment

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() (err error) {
		resp.UserCourses, err = h.repo.ListUserCourses(ctx, user.ID)
		return err
	})
	g.Go(func() (err error) {
		resp.LearningPaths, err = h.repo.ListLearningPaths(ctx, user.ID)
		return err
	})
	g.Go(func() (err error) {
		assessments, err = h.repo.ListAssessments(ctx, user.ID)
		return err
	})
	g.Go(func() (err error) {
		resp.Recommendations, err = h.repo.ListRecommendations(ctx, user.ID)
		return err
	})
	g.Go(func() (err error) {
		resp.TutorSessions, err = h.repo.ListTutorSessions(ctx, user.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		WriteError(w, err, "Failed to fetch dashboard data")
		return
	}

	upcoming := []*domain.Assessment{}
	for _, a := range assessments {
		if !a.IsCompleted {
			upcoming = append(upcoming, a)
		}
	}
	resp.Assessments = head(upcoming, dashboardAssessments)
	resp.UserCourses = head(resp.UserCourses, dashboardCourses)
	resp.Recommendations = head(resp.Recommendations, dashboardRecommendations)
	resp.TutorSessions = head(resp.TutorSessions, dashboardSessions)
	if resp.LearningPaths == nil {
		resp.LearningPaths = []*domain.LearningPath{}
	}

	JSON(w, http.StatusOK, resp)
}

// head returns at most n leading items, never nil.
func head[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	if items == nil {
		return []T{}
	}
	return items
}
