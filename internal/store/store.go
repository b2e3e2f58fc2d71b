// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/learnhub/internal/domain"
)

// Repository defines the interface for persisting learners, their course data
// and tutor sessions. Point lookups return (nil, nil) when the row is absent.
type Repository interface {
	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error

	// GetUser retrieves a learner profile by ID.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// UpsertUser creates a profile or refreshes its identity fields.
	UpsertUser(ctx context.Context, user *domain.User) error

	ListCourses(ctx context.Context) ([]*domain.Course, error)
	GetCourse(ctx context.Context, courseID int64) (*domain.Course, error)
	CreateCourse(ctx context.Context, course *domain.Course) error

	// ListUserCourses returns a learner's enrollments joined with their course,
	// most recently accessed first.
	ListUserCourses(ctx context.Context, userID string) ([]*domain.UserCourse, error)
	CreateUserCourse(ctx context.Context, uc *domain.UserCourse) error

	// UpdateUserCourseProgress updates an enrollment owned by userID.
	// Returns (nil, nil) if no such enrollment exists for that learner.
	UpdateUserCourseProgress(ctx context.Context, userID string, id int64, progress float64, completed bool, now time.Time) (*domain.UserCourse, error)

	ListAssessments(ctx context.Context, userID string) ([]*domain.Assessment, error)
	CreateAssessment(ctx context.Context, a *domain.Assessment) error

	// ListLearningPaths returns a learner's saved paths, newest first.
	ListLearningPaths(ctx context.Context, userID string) ([]*domain.LearningPath, error)
	CreateLearningPath(ctx context.Context, path *domain.LearningPath) error

	// UpdateLearningPathProgress sets the current step and progress of a path
	// owned by userID. Returns (nil, nil) if no such path exists for that learner.
	UpdateLearningPathProgress(ctx context.Context, userID string, id int64, currentStep int, progress float64, now time.Time) (*domain.LearningPath, error)

	ListRecommendations(ctx context.Context, userID string) ([]*domain.Recommendation, error)
	CreateRecommendation(ctx context.Context, rec *domain.Recommendation) error

	// GetTutorSession retrieves a tutor session by ID regardless of owner.
	GetTutorSession(ctx context.Context, sessionID string) (*domain.TutorSession, error)

	// ListTutorSessions returns a learner's sessions, newest-updated first.
	ListTutorSessions(ctx context.Context, userID string) ([]*domain.TutorSession, error)

	// CreateTutorSession inserts a new session at version 1.
	CreateTutorSession(ctx context.Context, session *domain.TutorSession) error

	// UpdateTutorSessionMessages replaces the transcript and UpdatedAt of a
	// session if its stored version still equals expectedVersion, bumping the
	// version. Returns domain.ErrVersionConflict otherwise.
	UpdateTutorSessionMessages(ctx context.Context, session *domain.TutorSession, expectedVersion int64) error
}
