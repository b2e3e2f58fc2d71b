package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/ashureev/learnhub/internal/domain"
	"github.com/ashureev/learnhub/internal/identity"
)

var assessmentTypes = map[string]bool{"quiz": true, "project": true, "exam": true, "assignment": true}

type createAssessmentRequest struct {
	CourseID    *int64     `json:"courseId"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Type        string     `json:"type"`
	DueDate     *time.Time `json:"dueDate"`
	IsCompleted bool       `json:"isCompleted"`
	Score       *float64   `json:"score"`
}

func (req *createAssessmentRequest) validate() ValidationError {
	var errs ValidationError
	req.Title = strings.TrimSpace(req.Title)
	req.Type = strings.ToLower(strings.TrimSpace(req.Type))
	if req.Title == "" {
		errs = append(errs, FieldError{Field: "title", Message: "Title is required"})
	}
	if !assessmentTypes[req.Type] {
		errs = append(errs, FieldError{Field: "type", Message: "Type must be one of quiz, project, exam, assignment"})
	}
	if req.Score != nil && (*req.Score < 0 || *req.Score > 100) {
		errs = append(errs, FieldError{Field: "score", Message: "Score must be between 0 and 100"})
	}
	return errs
}

// ListAssessments returns the caller's assessments, soonest due first.
func (h *Handler) ListAssessments(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	items, err := h.repo.ListAssessments(r.Context(), userID)
	if err != nil {
		WriteError(w, err, "Failed to fetch assessments")
		return
	}
	if items == nil {
		items = []*domain.Assessment{}
	}
	JSON(w, http.StatusOK, items)
}

// CreateAssessment assigns an assessment to the caller.
func (h *Handler) CreateAssessment(w http.ResponseWriter, r *http.Request) {
	user := h.requireUser(w, r, "Failed to create assessment")
	if user == nil {
		return
	}

	var req createAssessmentRequest
	if verrs := decodeBody(w, r, &req); verrs != nil {
		WriteValidation(w, verrs)
		return
	}
	if verrs := req.validate(); verrs != nil {
		WriteValidation(w, verrs)
		return
	}
	if req.CourseID != nil {
		course, err := h.repo.GetCourse(r.Context(), *req.CourseID)
		if err != nil {
			WriteError(w, err, "Failed to create assessment")
			return
		}
		if course == nil {
			WriteError(w, domain.ErrCourseNotFound, "Failed to create assessment")
			return
		}
	}

	now := h.now()
	a := &domain.Assessment{
		UserID:      user.ID,
		CourseID:    req.CourseID,
		Title:       req.Title,
		Description: req.Description,
		Type:        req.Type,
		DueDate:     req.DueDate,
		IsCompleted: req.IsCompleted,
		Score:       req.Score,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.repo.CreateAssessment(r.Context(), a); err != nil {
		WriteError(w, err, "Failed to create assessment")
		return
	}
	JSON(w, http.StatusCreated, a)
}
