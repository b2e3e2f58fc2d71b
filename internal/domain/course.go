package domain

import (
	"time"
)

// Course is a catalog entry.
type Course struct {
	ID                int64     `json:"id"`
	Title             string    `json:"title"`
	Description       string    `json:"description,omitempty"`
	ThumbnailURL      string    `json:"thumbnailUrl,omitempty"`
	EstimatedDuration int       `json:"estimatedDuration"` // minutes
	SkillLevel        string    `json:"skillLevel"`
	Category          string    `json:"category"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// UserCourse is a learner's enrollment in a course.
type UserCourse struct {
	ID             int64      `json:"id"`
	UserID         string     `json:"userId"`
	CourseID       int64      `json:"courseId"`
	Progress       float64    `json:"progress"` // percentage
	IsCompleted    bool       `json:"isCompleted"`
	StartedAt      time.Time  `json:"startedAt"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
	LastAccessedAt time.Time  `json:"lastAccessedAt"`
	Course         *Course    `json:"course,omitempty"`
}

// Assessment is a quiz, project or exam assigned to a learner.
type Assessment struct {
	ID          int64      `json:"id"`
	UserID      string     `json:"userId"`
	CourseID    *int64     `json:"courseId,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Type        string     `json:"type"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	IsCompleted bool       `json:"isCompleted"`
	Score       *float64   `json:"score,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Recommendation is a stored AI course suggestion.
type Recommendation struct {
	ID                int64     `json:"id"`
	UserID            string    `json:"userId"`
	CourseID          *int64    `json:"courseId,omitempty"`
	Title             string    `json:"title"`
	Description       string    `json:"description,omitempty"`
	Reason            string    `json:"reason,omitempty"`
	Priority          int       `json:"priority"`
	EstimatedDuration int       `json:"estimatedDuration"`
	IsViewed          bool      `json:"isViewed"`
	CreatedAt         time.Time `json:"createdAt"`
}

// LearningPath is a learner's saved multi-step plan.
type LearningPath struct {
	ID          int64     `json:"id"`
	UserID      string    `json:"userId"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	CurrentStep int       `json:"currentStep"`
	TotalSteps  int       `json:"totalSteps"`
	Progress    float64   `json:"progress"` // percentage
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// StepProgress returns the completion percentage for step out of total,
// clamped to 0..100.
func StepProgress(step, total int) float64 {
	if total <= 0 || step <= 0 {
		return 0
	}
	if step >= total {
		return 100
	}
	return float64(step) * 100 / float64(total)
}
