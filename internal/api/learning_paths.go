package api

import (
	"net/http"
	"strings"

	"github.com/ashureev/learnhub/internal/domain"
	"github.com/ashureev/learnhub/internal/identity"
)

const maxPathSteps = 100

type createPathRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	TotalSteps  int    `json:"totalSteps"`
	CurrentStep int    `json:"currentStep"`
}

func (req *createPathRequest) validate() ValidationError {
	var errs ValidationError
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		errs = append(errs, FieldError{Field: "title", Message: "Title is required"})
	}
	if req.TotalSteps < 1 || req.TotalSteps > maxPathSteps {
		errs = append(errs, FieldError{Field: "totalSteps", Message: "Total steps must be between 1 and 100"})
	}
	if req.CurrentStep < 0 || (req.TotalSteps > 0 && req.CurrentStep > req.TotalSteps) {
		errs = append(errs, FieldError{Field: "currentStep", Message: "Current step must be between 0 and total steps"})
	}
	return errs
}

type pathProgressRequest struct {
	CurrentStep *int     `json:"currentStep"`
	Progress    *float64 `json:"progress"`
}

// ListLearningPaths returns the caller's saved learning paths.
func (h *Handler) ListLearningPaths(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	paths, err := h.repo.ListLearningPaths(r.Context(), userID)
	if err != nil {
		WriteError(w, err, "Failed to fetch learning paths")
		return
	}
	JSON(w, http.StatusOK, paths)
}

// CreateLearningPath saves a learning path for the caller.
func (h *Handler) CreateLearningPath(w http.ResponseWriter, r *http.Request) {
	user := h.requireUser(w, r, "Failed to create learning path")
	if user == nil {
		return
	}

	var req createPathRequest
	if verrs := decodeBody(w, r, &req); verrs != nil {
		WriteValidation(w, verrs)
		return
	}
	if verrs := req.validate(); verrs != nil {
		WriteValidation(w, verrs)
		return
	}

	now := h.now()
	path := &domain.LearningPath{
		UserID:      user.ID,
		Title:       req.Title,
		Description: req.Description,
		CurrentStep: req.CurrentStep,
		TotalSteps:  req.TotalSteps,
		Progress:    domain.StepProgress(req.CurrentStep, req.TotalSteps),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.repo.CreateLearningPath(r.Context(), path); err != nil {
		WriteError(w, err, "Failed to create learning path")
		return
	}
	JSON(w, http.StatusCreated, path)
}

// UpdateLearningPath moves one of the caller's paths to a new step. Progress
// follows the step unless given explicitly.
func (h *Handler) UpdateLearningPath(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req pathProgressRequest
	if verrs := decodeBody(w, r, &req); verrs != nil {
		WriteValidation(w, verrs)
		return
	}
	if req.Progress != nil && (*req.Progress < 0 || *req.Progress > 100) {
		WriteValidation(w, ValidationError{{Field: "progress", Message: "Progress must be between 0 and 100"}})
		return
	}

	current, err := h.findLearningPath(r, userID, id)
	if err != nil {
		WriteError(w, err, "Failed to update learning path")
		return
	}
	if current == nil {
		Error(w, http.StatusNotFound, "learning path not found")
		return
	}

	step, progress := current.CurrentStep, current.Progress
	if req.CurrentStep != nil {
		if *req.CurrentStep < 0 || *req.CurrentStep > current.TotalSteps {
			WriteValidation(w, ValidationError{{Field: "currentStep", Message: "Current step must be between 0 and total steps"}})
			return
		}
		step = *req.CurrentStep
		progress = domain.StepProgress(step, current.TotalSteps)
	}
	if req.Progress != nil {
		progress = *req.Progress
	}

	updated, err := h.repo.UpdateLearningPathProgress(r.Context(), userID, id, step, progress, h.now())
	if err != nil {
		WriteError(w, err, "Failed to update learning path")
		return
	}
	if updated == nil {
		Error(w, http.StatusNotFound, "learning path not found")
		return
	}
	JSON(w, http.StatusOK, updated)
}

func (h *Handler) findLearningPath(r *http.Request, userID string, id int64) (*domain.LearningPath, error) {
	paths, err := h.repo.ListLearningPaths(r.Context(), userID)
	if err != nil {
		return nil, err
	}
	for _, p := range paths {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, nil
}
