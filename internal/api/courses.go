package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/ashureev/learnhub/internal/domain"
	"github.com/ashureev/learnhub/internal/identity"
	"github.com/go-chi/chi/v5"
)

type createCourseRequest struct {
	Title             string `json:"title"`
	Description       string `json:"description"`
	ThumbnailURL      string `json:"thumbnailUrl"`
	EstimatedDuration int    `json:"estimatedDuration"`
	SkillLevel        string `json:"skillLevel"`
	Category          string `json:"category"`
}

func (req *createCourseRequest) validate() ValidationError {
	var errs ValidationError
	req.Title = strings.TrimSpace(req.Title)
	req.Category = strings.TrimSpace(req.Category)
	req.SkillLevel = strings.TrimSpace(req.SkillLevel)
	if req.Title == "" {
		errs = append(errs, FieldError{Field: "title", Message: "Title is required"})
	}
	if req.Category == "" {
		errs = append(errs, FieldError{Field: "category", Message: "Category is required"})
	}
	if req.SkillLevel == "" {
		errs = append(errs, FieldError{Field: "skillLevel", Message: "Skill level is required"})
	}
	if req.EstimatedDuration < 0 {
		errs = append(errs, FieldError{Field: "estimatedDuration", Message: "Estimated duration must not be negative"})
	}
	return errs
}

type enrollRequest struct {
	CourseID int64 `json:"courseId"`
}

type progressRequest struct {
	Progress    *float64 `json:"progress"`
	IsCompleted *bool    `json:"isCompleted"`
}

// ListCourses returns the course catalog.
func (h *Handler) ListCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := h.repo.ListCourses(r.Context())
	if err != nil {
		WriteError(w, err, "Failed to fetch courses")
		return
	}
	JSON(w, http.StatusOK, courses)
}

// GetCourse returns one catalog entry.
func (h *Handler) GetCourse(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	course, err := h.repo.GetCourse(r.Context(), id)
	if err != nil {
		WriteError(w, err, "Failed to fetch course")
		return
	}
	if course == nil {
		WriteError(w, domain.ErrCourseNotFound, "Failed to fetch course")
		return
	}
	JSON(w, http.StatusOK, course)
}

// CreateCourse adds a course to the catalog.
func (h *Handler) CreateCourse(w http.ResponseWriter, r *http.Request) {
	var req createCourseRequest
	if verrs := decodeBody(w, r, &req); verrs != nil {
		WriteValidation(w, verrs)
		return
	}
	if verrs := req.validate(); verrs != nil {
		WriteValidation(w, verrs)
		return
	}

	now := h.now()
	course := &domain.Course{
		Title:             req.Title,
		Description:       req.Description,
		ThumbnailURL:      req.ThumbnailURL,
		EstimatedDuration: req.EstimatedDuration,
		SkillLevel:        req.SkillLevel,
		Category:          req.Category,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := h.repo.CreateCourse(r.Context(), course); err != nil {
		WriteError(w, err, "Failed to create course")
		return
	}
	JSON(w, http.StatusCreated, course)
}

// ListUserCourses returns the caller's enrollments.
func (h *Handler) ListUserCourses(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	courses, err := h.repo.ListUserCourses(r.Context(), userID)
	if err != nil {
		WriteError(w, err, "Failed to fetch user courses")
		return
	}
	if courses == nil {
		courses = []*domain.UserCourse{}
	}
	JSON(w, http.StatusOK, courses)
}

// EnrollCourse enrolls the caller in a course.
func (h *Handler) EnrollCourse(w http.ResponseWriter, r *http.Request) {
	user := h.requireUser(w, r, "Failed to enroll in course")
	if user == nil {
		return
	}

	var req enrollRequest
	if verrs := decodeBody(w, r, &req); verrs != nil {
		WriteValidation(w, verrs)
		return
	}
	if req.CourseID <= 0 {
		WriteValidation(w, ValidationError{{Field: "courseId", Message: "Course ID is required"}})
		return
	}

	course, err := h.repo.GetCourse(r.Context(), req.CourseID)
	if err != nil {
		WriteError(w, err, "Failed to enroll in course")
		return
	}
	if course == nil {
		WriteError(w, domain.ErrCourseNotFound, "Failed to enroll in course")
		return
	}

	now := h.now()
	enrollment := &domain.UserCourse{
		UserID:         user.ID,
		CourseID:       course.ID,
		StartedAt:      now,
		LastAccessedAt: now,
		Course:         course,
	}
	if err := h.repo.CreateUserCourse(r.Context(), enrollment); err != nil {
		WriteError(w, err, "Failed to enroll in course")
		return
	}
	JSON(w, http.StatusCreated, enrollment)
}

// UpdateUserCourse records progress on one of the caller's enrollments.
// Omitted fields keep their stored values; reaching 100% completes the course.
func (h *Handler) UpdateUserCourse(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req progressRequest
	if verrs := decodeBody(w, r, &req); verrs != nil {
		WriteValidation(w, verrs)
		return
	}
	if req.Progress != nil && (*req.Progress < 0 || *req.Progress > 100) {
		WriteValidation(w, ValidationError{{Field: "progress", Message: "Progress must be between 0 and 100"}})
		return
	}

	current, err := h.findEnrollment(r, userID, id)
	if err != nil {
		WriteError(w, err, "Failed to update course progress")
		return
	}
	if current == nil {
		Error(w, http.StatusNotFound, "enrollment not found")
		return
	}

	progress, completed := current.Progress, current.IsCompleted
	if req.Progress != nil {
		progress = *req.Progress
		completed = progress >= 100
	}
	if req.IsCompleted != nil {
		completed = *req.IsCompleted
	}

	updated, err := h.repo.UpdateUserCourseProgress(r.Context(), userID, id, progress, completed, h.now())
	if err != nil {
		WriteError(w, err, "Failed to update course progress")
		return
	}
	if updated == nil {
		Error(w, http.StatusNotFound, "enrollment not found")
		return
	}
	JSON(w, http.StatusOK, updated)
}

func (h *Handler) findEnrollment(r *http.Request, userID string, id int64) (*domain.UserCourse, error) {
	courses, err := h.repo.ListUserCourses(r.Context(), userID)
	if err != nil {
		return nil, err
	}
	for _, c := range courses {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, nil
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		WriteValidation(w, ValidationError{{Field: "id", Message: "ID must be a positive integer"}})
		return 0, false
	}
	return id, true
}
