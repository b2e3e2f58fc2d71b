package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/ashureev/learnhub/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrationsFS returns the embedded Postgres migrations.
func MigrationsFS() fs.FS {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// RunMigrations applies all pending Postgres migrations.
func RunMigrations(databaseURL string, migrations fs.FS) error {
	d, err := iofs.New(migrations, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", d, databaseURL)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}

	version, dirty, _ := m.Version()
	slog.Info("migrations applied", "version", version, "dirty", dirty)
	return nil
}

// PostgresStore implements Repository using a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to databaseURL and verifies the connection.
func NewPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	config.MaxConns = 20
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Ping verifies database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	var user domain.User
	var email *string
	err := s.pool.QueryRow(ctx, `
		SELECT id, email, first_name, last_name, profile_image_url, skill_level,
		       current_streak, total_learning_hours, level, total_xp, weekly_goal_hours,
		       created_at, updated_at
		FROM users WHERE id = $1`, userID).Scan(
		&user.ID, &email, &user.FirstName, &user.LastName, &user.ProfileImageURL, &user.SkillLevel,
		&user.CurrentStreak, &user.TotalLearningHours, &user.Level, &user.TotalXP, &user.WeeklyGoalHours,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if email != nil {
		user.Email = *email
	}
	return &user, nil
}

func (s *PostgresStore) UpsertUser(ctx context.Context, user *domain.User) error {
	var email *string
	if user.Email != "" {
		email = &user.Email
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, email, first_name, last_name, profile_image_url, skill_level,
			current_streak, total_learning_hours, level, total_xp, weekly_goal_hours, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			profile_image_url = EXCLUDED.profile_image_url,
			updated_at = EXCLUDED.updated_at`,
		user.ID, email, user.FirstName, user.LastName, user.ProfileImageURL, user.EffectiveSkillLevel(),
		user.CurrentStreak, user.TotalLearningHours, user.Level, user.TotalXP, user.WeeklyGoalHours,
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListCourses(ctx context.Context) ([]*domain.Course, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+courseColumns+` FROM courses ORDER BY title`)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	defer rows.Close()

	courses := []*domain.Course{}
	for rows.Next() {
		var c domain.Course
		if err := rows.Scan(&c.ID, &c.Title, &c.Description, &c.ThumbnailURL, &c.EstimatedDuration,
			&c.SkillLevel, &c.Category, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan course: %w", err)
		}
		courses = append(courses, &c)
	}
	return courses, rows.Err()
}

func (s *PostgresStore) GetCourse(ctx context.Context, courseID int64) (*domain.Course, error) {
	var c domain.Course
	err := s.pool.QueryRow(ctx, `SELECT `+courseColumns+` FROM courses WHERE id = $1`, courseID).Scan(
		&c.ID, &c.Title, &c.Description, &c.ThumbnailURL, &c.EstimatedDuration,
		&c.SkillLevel, &c.Category, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get course: %w", err)
	}
	return &c, nil
}

func (s *PostgresStore) CreateCourse(ctx context.Context, c *domain.Course) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO courses (title, description, thumbnail_url, estimated_duration, skill_level, category, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		c.Title, c.Description, c.ThumbnailURL, c.EstimatedDuration, c.SkillLevel, c.Category, c.CreatedAt, c.UpdatedAt,
	).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

func scanPgUserCourse(row pgx.Row) (*domain.UserCourse, error) {
	var uc domain.UserCourse
	var c domain.Course
	if err := row.Scan(&uc.ID, &uc.UserID, &uc.CourseID, &uc.Progress, &uc.IsCompleted, &uc.StartedAt,
		&uc.CompletedAt, &uc.LastAccessedAt,
		&c.ID, &c.Title, &c.Description, &c.ThumbnailURL, &c.EstimatedDuration, &c.SkillLevel,
		&c.Category, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	uc.Course = &c
	return &uc, nil
}

func (s *PostgresStore) ListUserCourses(ctx context.Context, userID string) ([]*domain.UserCourse, error) {
	rows, err := s.pool.Query(ctx, userCourseSelect+` WHERE uc.user_id = $1 ORDER BY uc.last_accessed_at DESC, uc.id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user courses: %w", err)
	}
	defer rows.Close()

	out := []*domain.UserCourse{}
	for rows.Next() {
		uc, err := scanPgUserCourse(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user course: %w", err)
		}
		out = append(out, uc)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateUserCourse(ctx context.Context, uc *domain.UserCourse) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO user_courses (user_id, course_id, progress, is_completed, started_at, completed_at, last_accessed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		uc.UserID, uc.CourseID, uc.Progress, uc.IsCompleted, uc.StartedAt, uc.CompletedAt, uc.LastAccessedAt,
	).Scan(&uc.ID)
	if err != nil {
		return fmt.Errorf("create user course: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateUserCourseProgress(ctx context.Context, userID string, id int64, progress float64, completed bool, now time.Time) (*domain.UserCourse, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE user_courses SET
			progress = $1,
			is_completed = $2,
			completed_at = CASE WHEN $2 THEN COALESCE(completed_at, $3) ELSE NULL END,
			last_accessed_at = $3
		WHERE id = $4 AND user_id = $5`,
		progress, completed, now, id, userID)
	if err != nil {
		return nil, fmt.Errorf("update user course: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, nil
	}
	uc, err := scanPgUserCourse(s.pool.QueryRow(ctx, userCourseSelect+` WHERE uc.id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("reload user course: %w", err)
	}
	return uc, nil
}

func (s *PostgresStore) ListAssessments(ctx context.Context, userID string) ([]*domain.Assessment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, course_id, title, description, type, due_date, is_completed, score, created_at, updated_at
		FROM assessments WHERE user_id = $1
		ORDER BY due_date NULLS LAST, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	defer rows.Close()

	out := []*domain.Assessment{}
	for rows.Next() {
		var a domain.Assessment
		if err := rows.Scan(&a.ID, &a.UserID, &a.CourseID, &a.Title, &a.Description, &a.Type, &a.DueDate,
			&a.IsCompleted, &a.Score, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan assessment: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateAssessment(ctx context.Context, a *domain.Assessment) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO assessments (user_id, course_id, title, description, type, due_date, is_completed, score, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		a.UserID, a.CourseID, a.Title, a.Description, a.Type, a.DueDate, a.IsCompleted, a.Score, a.CreatedAt, a.UpdatedAt,
	).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("create assessment: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListRecommendations(ctx context.Context, userID string) ([]*domain.Recommendation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, course_id, title, description, reason, priority, estimated_duration, is_viewed, created_at
		FROM recommendations WHERE user_id = $1
		ORDER BY priority, created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list recommendations: %w", err)
	}
	defer rows.Close()

	out := []*domain.Recommendation{}
	for rows.Next() {
		var r domain.Recommendation
		if err := rows.Scan(&r.ID, &r.UserID, &r.CourseID, &r.Title, &r.Description, &r.Reason, &r.Priority,
			&r.EstimatedDuration, &r.IsViewed, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan recommendation: %w", err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateRecommendation(ctx context.Context, r *domain.Recommendation) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO recommendations (user_id, course_id, title, description, reason, priority, estimated_duration, is_viewed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		r.UserID, r.CourseID, r.Title, r.Description, r.Reason, r.Priority, r.EstimatedDuration, r.IsViewed, r.CreatedAt,
	).Scan(&r.ID)
	if err != nil {
		return fmt.Errorf("create recommendation: %w", err)
	}
	return nil
}

const pgLearningPathSelect = `SELECT id, user_id, title, description, current_step, total_steps, progress, created_at, updated_at FROM learning_paths`

func scanPgLearningPath(row pgx.Row) (*domain.LearningPath, error) {
	var p domain.LearningPath
	if err := row.Scan(&p.ID, &p.UserID, &p.Title, &p.Description, &p.CurrentStep, &p.TotalSteps,
		&p.Progress, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) ListLearningPaths(ctx context.Context, userID string) ([]*domain.LearningPath, error) {
	rows, err := s.pool.Query(ctx, pgLearningPathSelect+` WHERE user_id = $1 ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list learning paths: %w", err)
	}
	defer rows.Close()

	out := []*domain.LearningPath{}
	for rows.Next() {
		p, err := scanPgLearningPath(rows)
		if err != nil {
			return nil, fmt.Errorf("scan learning path: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateLearningPath(ctx context.Context, p *domain.LearningPath) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO learning_paths (user_id, title, description, current_step, total_steps, progress, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		p.UserID, p.Title, p.Description, p.CurrentStep, p.TotalSteps, p.Progress, p.CreatedAt, p.UpdatedAt,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("create learning path: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateLearningPathProgress(ctx context.Context, userID string, id int64, currentStep int, progress float64, now time.Time) (*domain.LearningPath, error) {
	p, err := scanPgLearningPath(s.pool.QueryRow(ctx, `
		UPDATE learning_paths SET current_step = $1, progress = $2, updated_at = $3
		WHERE id = $4 AND user_id = $5
		RETURNING id, user_id, title, description, current_step, total_steps, progress, created_at, updated_at`,
		currentStep, progress, now, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update learning path: %w", err)
	}
	return p, nil
}

const pgTutorSessionSelect = `SELECT id, user_id, messages::text, topic, version, created_at, updated_at FROM ai_tutor_sessions`

func scanPgTutorSession(row pgx.Row) (*domain.TutorSession, error) {
	var session domain.TutorSession
	var messages string
	if err := row.Scan(&session.ID, &session.UserID, &messages, &session.Topic, &session.Version,
		&session.CreatedAt, &session.UpdatedAt); err != nil {
		return nil, err
	}
	turns, err := domain.DecodeTranscript([]byte(messages))
	if err != nil {
		return nil, err
	}
	session.Messages = turns
	return &session, nil
}

func (s *PostgresStore) GetTutorSession(ctx context.Context, sessionID string) (*domain.TutorSession, error) {
	session, err := scanPgTutorSession(s.pool.QueryRow(ctx, pgTutorSessionSelect+` WHERE id = $1`, sessionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get tutor session: %w", err)
	}
	return session, nil
}

func (s *PostgresStore) ListTutorSessions(ctx context.Context, userID string) ([]*domain.TutorSession, error) {
	rows, err := s.pool.Query(ctx, pgTutorSessionSelect+` WHERE user_id = $1 ORDER BY updated_at DESC, created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list tutor sessions: %w", err)
	}
	defer rows.Close()

	sessions := []*domain.TutorSession{}
	for rows.Next() {
		session, err := scanPgTutorSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tutor session: %w", err)
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

func (s *PostgresStore) CreateTutorSession(ctx context.Context, session *domain.TutorSession) error {
	messages, err := domain.EncodeTranscript(session.Messages)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO ai_tutor_sessions (id, user_id, messages, topic, version, created_at, updated_at)
		VALUES ($1, $2, $3::jsonb, $4, 1, $5, $6)`,
		session.ID, session.UserID, messages, session.Topic, session.CreatedAt, session.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create tutor session: %w", err)
	}
	session.Version = 1
	return nil
}

func (s *PostgresStore) UpdateTutorSessionMessages(ctx context.Context, session *domain.TutorSession, expectedVersion int64) error {
	messages, err := domain.EncodeTranscript(session.Messages)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE ai_tutor_sessions SET messages = $1::jsonb, updated_at = $2, version = version + 1
		WHERE id = $3 AND user_id = $4 AND version = $5`,
		messages, session.UpdatedAt, session.ID, session.UserID, expectedVersion)
	if err != nil {
		return fmt.Errorf("update tutor session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrVersionConflict
	}
	session.Version = expectedVersion + 1
	return nil
}
