package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterPublicRoutes mounts the endpoints that need no identity.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/api/courses", h.ListCourses)
	r.Get("/api/courses/{id}", h.GetCourse)
}

// RegisterRoutes mounts the authenticated endpoints. aiLimit guards the
// endpoints that call the reasoning service.
func (h *Handler) RegisterRoutes(r chi.Router, aiLimit func(http.Handler) http.Handler) {
	r.Get("/api/auth/user", h.GetProfile)
	r.Get("/api/dashboard", h.Dashboard)

	r.Post("/api/courses", h.CreateCourse)
	r.Get("/api/user/courses", h.ListUserCourses)
	r.Post("/api/user/courses", h.EnrollCourse)
	r.Patch("/api/user/courses/{id}", h.UpdateUserCourse)

	r.Get("/api/assessments", h.ListAssessments)
	r.Post("/api/assessments", h.CreateAssessment)

	r.Get("/api/learning-paths", h.ListLearningPaths)
	r.Post("/api/learning-paths", h.CreateLearningPath)
	r.Patch("/api/learning-paths/{id}", h.UpdateLearningPath)

	r.Get("/api/recommendations", h.ListRecommendations)

	r.Group(func(r chi.Router) {
		r.Use(aiLimit)
		r.Post("/api/recommendations/generate", h.GenerateRecommendations)
		r.Get("/api/analytics", h.Analytics)
		r.Post("/api/learning-paths/suggest", h.SuggestLearningPath)
	})
}
