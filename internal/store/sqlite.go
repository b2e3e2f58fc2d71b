package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/learnhub/internal/domain"
	"github.com/ashureev/learnhub/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db    *sql.DB
	retry shared.RetryPolicy
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL mode for concurrent readers while the tutor appends turns.
	dsn := "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db, retry: shared.DefaultRetryPolicy}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT,
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		profile_image_url TEXT NOT NULL DEFAULT '',
		skill_level TEXT NOT NULL DEFAULT 'Beginner',
		current_streak INTEGER NOT NULL DEFAULT 0,
		total_learning_hours INTEGER NOT NULL DEFAULT 0,
		level INTEGER NOT NULL DEFAULT 1,
		total_xp INTEGER NOT NULL DEFAULT 0,
		weekly_goal_hours INTEGER NOT NULL DEFAULT 7,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS courses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		thumbnail_url TEXT NOT NULL DEFAULT '',
		estimated_duration INTEGER NOT NULL DEFAULT 0,
		skill_level TEXT NOT NULL,
		category TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS user_courses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL REFERENCES users(id),
		course_id INTEGER NOT NULL REFERENCES courses(id),
		progress REAL NOT NULL DEFAULT 0,
		is_completed INTEGER NOT NULL DEFAULT 0,
		started_at INTEGER NOT NULL,
		completed_at INTEGER,
		last_accessed_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_user_courses_user ON user_courses(user_id);

	CREATE TABLE IF NOT EXISTS assessments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL REFERENCES users(id),
		course_id INTEGER REFERENCES courses(id),
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL,
		due_date INTEGER,
		is_completed INTEGER NOT NULL DEFAULT 0,
		score REAL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_assessments_user ON assessments(user_id);

	CREATE TABLE IF NOT EXISTS recommendations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL REFERENCES users(id),
		course_id INTEGER REFERENCES courses(id),
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		reason TEXT NOT NULL DEFAULT '',
		priority INTEGER NOT NULL DEFAULT 1,
		estimated_duration INTEGER NOT NULL DEFAULT 0,
		is_viewed INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_recommendations_user ON recommendations(user_id);

	CREATE TABLE IF NOT EXISTS learning_paths (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL REFERENCES users(id),
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		current_step INTEGER NOT NULL DEFAULT 0,
		total_steps INTEGER NOT NULL,
		progress REAL NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_learning_paths_user ON learning_paths(user_id);

	CREATE TABLE IF NOT EXISTS tutor_sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		messages_json TEXT NOT NULL,
		topic TEXT NOT NULL DEFAULT '',
		version INTEGER NOT NULL DEFAULT 1,
		-- unix milliseconds; sessions are listed by recency
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_tutor_sessions_user_updated ON tutor_sessions(user_id, updated_at DESC);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// GetUser retrieves a learner profile by ID.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	query := `
		SELECT id, email, first_name, last_name, profile_image_url, skill_level,
		       current_streak, total_learning_hours, level, total_xp, weekly_goal_hours,
		       created_at, updated_at
		FROM users WHERE id = ?`

	var user domain.User
	var email sql.NullString
	var createdAt, updatedAt int64

	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&user.ID, &email, &user.FirstName, &user.LastName, &user.ProfileImageURL, &user.SkillLevel,
		&user.CurrentStreak, &user.TotalLearningHours, &user.Level, &user.TotalXP, &user.WeeklyGoalHours,
		&createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}

	user.Email = email.String
	user.CreatedAt = time.Unix(createdAt, 0)
	user.UpdatedAt = time.Unix(updatedAt, 0)
	return &user, nil
}

// UpsertUser creates a profile or refreshes its identity fields.
func (s *SQLiteStore) UpsertUser(ctx context.Context, user *domain.User) error {
	query := `
	INSERT INTO users (id, email, first_name, last_name, profile_image_url, skill_level,
		current_streak, total_learning_hours, level, total_xp, weekly_goal_hours, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		email = excluded.email,
		first_name = excluded.first_name,
		last_name = excluded.last_name,
		profile_image_url = excluded.profile_image_url,
		updated_at = excluded.updated_at`

	var email interface{}
	if user.Email != "" {
		email = user.Email
	}
	skill := user.EffectiveSkillLevel()

	return shared.RetryOnBusy(ctx, s.retry, "upsert user", func() error {
		_, err := s.db.ExecContext(ctx, query,
			user.ID, email, user.FirstName, user.LastName, user.ProfileImageURL, skill,
			user.CurrentStreak, user.TotalLearningHours, user.Level, user.TotalXP, user.WeeklyGoalHours,
			user.CreatedAt.Unix(), user.UpdatedAt.Unix(),
		)
		if err != nil {
			return fmt.Errorf("upsert user: %w", err)
		}
		return nil
	})
}

const courseColumns = `id, title, description, thumbnail_url, estimated_duration, skill_level, category, created_at, updated_at`

func scanCourse(row interface{ Scan(...any) error }) (*domain.Course, error) {
	var c domain.Course
	var createdAt, updatedAt int64
	if err := row.Scan(&c.ID, &c.Title, &c.Description, &c.ThumbnailURL, &c.EstimatedDuration,
		&c.SkillLevel, &c.Category, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	c.CreatedAt = time.Unix(createdAt, 0)
	c.UpdatedAt = time.Unix(updatedAt, 0)
	return &c, nil
}

// ListCourses returns the course catalog ordered by title.
func (s *SQLiteStore) ListCourses(ctx context.Context) ([]*domain.Course, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+courseColumns+` FROM courses ORDER BY title`)
	if err != nil {
		return nil, fmt.Errorf("query courses: %w", err)
	}
	defer closeRows(rows, "courses")

	courses := []*domain.Course{}
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, fmt.Errorf("scan course row: %w", err)
		}
		courses = append(courses, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate courses: %w", err)
	}
	return courses, nil
}

// GetCourse retrieves a course by ID.
func (s *SQLiteStore) GetCourse(ctx context.Context, courseID int64) (*domain.Course, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+courseColumns+` FROM courses WHERE id = ?`, courseID)
	c, err := scanCourse(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan course row: %w", err)
	}
	return c, nil
}

// CreateCourse inserts a course and sets its ID.
func (s *SQLiteStore) CreateCourse(ctx context.Context, c *domain.Course) error {
	query := `
	INSERT INTO courses (title, description, thumbnail_url, estimated_duration, skill_level, category, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	return shared.RetryOnBusy(ctx, s.retry, "create course", func() error {
		res, err := s.db.ExecContext(ctx, query, c.Title, c.Description, c.ThumbnailURL, c.EstimatedDuration,
			c.SkillLevel, c.Category, c.CreatedAt.Unix(), c.UpdatedAt.Unix())
		if err != nil {
			return fmt.Errorf("insert course: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("course id: %w", err)
		}
		c.ID = id
		return nil
	})
}

const userCourseSelect = `
	SELECT uc.id, uc.user_id, uc.course_id, uc.progress, uc.is_completed, uc.started_at,
	       uc.completed_at, uc.last_accessed_at,
	       c.id, c.title, c.description, c.thumbnail_url, c.estimated_duration, c.skill_level,
	       c.category, c.created_at, c.updated_at
	FROM user_courses uc JOIN courses c ON c.id = uc.course_id`

func scanUserCourse(row interface{ Scan(...any) error }) (*domain.UserCourse, error) {
	var uc domain.UserCourse
	var c domain.Course
	var completed sql.NullInt64
	var startedAt, lastAccessed, cCreated, cUpdated int64
	if err := row.Scan(&uc.ID, &uc.UserID, &uc.CourseID, &uc.Progress, &uc.IsCompleted, &startedAt,
		&completed, &lastAccessed,
		&c.ID, &c.Title, &c.Description, &c.ThumbnailURL, &c.EstimatedDuration, &c.SkillLevel,
		&c.Category, &cCreated, &cUpdated); err != nil {
		return nil, err
	}
	uc.StartedAt = time.Unix(startedAt, 0)
	uc.LastAccessedAt = time.Unix(lastAccessed, 0)
	if completed.Valid {
		ts := time.Unix(completed.Int64, 0)
		uc.CompletedAt = &ts
	}
	c.CreatedAt = time.Unix(cCreated, 0)
	c.UpdatedAt = time.Unix(cUpdated, 0)
	uc.Course = &c
	return &uc, nil
}

// ListUserCourses returns a learner's enrollments with their course.
func (s *SQLiteStore) ListUserCourses(ctx context.Context, userID string) ([]*domain.UserCourse, error) {
	rows, err := s.db.QueryContext(ctx, userCourseSelect+` WHERE uc.user_id = ? ORDER BY uc.last_accessed_at DESC, uc.id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query user courses: %w", err)
	}
	defer closeRows(rows, "user courses")

	out := []*domain.UserCourse{}
	for rows.Next() {
		uc, err := scanUserCourse(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user course row: %w", err)
		}
		out = append(out, uc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user courses: %w", err)
	}
	return out, nil
}

// CreateUserCourse enrolls a learner in a course.
func (s *SQLiteStore) CreateUserCourse(ctx context.Context, uc *domain.UserCourse) error {
	query := `
	INSERT INTO user_courses (user_id, course_id, progress, is_completed, started_at, completed_at, last_accessed_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`
	return shared.RetryOnBusy(ctx, s.retry, "create user course", func() error {
		res, err := s.db.ExecContext(ctx, query, uc.UserID, uc.CourseID, uc.Progress, uc.IsCompleted,
			uc.StartedAt.Unix(), unixOrNil(uc.CompletedAt), uc.LastAccessedAt.Unix())
		if err != nil {
			return fmt.Errorf("insert user course: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("user course id: %w", err)
		}
		uc.ID = id
		return nil
	})
}

// UpdateUserCourseProgress updates progress on an enrollment owned by userID.
func (s *SQLiteStore) UpdateUserCourseProgress(ctx context.Context, userID string, id int64, progress float64, completed bool, now time.Time) (*domain.UserCourse, error) {
	query := `
	UPDATE user_courses SET
		progress = ?,
		is_completed = ?,
		completed_at = CASE WHEN ? THEN COALESCE(completed_at, ?) ELSE NULL END,
		last_accessed_at = ?
	WHERE id = ? AND user_id = ?`

	var affected int64
	err := shared.RetryOnBusy(ctx, s.retry, "update user course", func() error {
		res, err := s.db.ExecContext(ctx, query, progress, completed, completed, now.Unix(), now.Unix(), id, userID)
		if err != nil {
			return fmt.Errorf("update user course: %w", err)
		}
		affected, err = res.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, nil
	}

	uc, err := scanUserCourse(s.db.QueryRowContext(ctx, userCourseSelect+` WHERE uc.id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("reload user course: %w", err)
	}
	return uc, nil
}

// ListAssessments returns a learner's assessments ordered by due date.
func (s *SQLiteStore) ListAssessments(ctx context.Context, userID string) ([]*domain.Assessment, error) {
	query := `
		SELECT id, user_id, course_id, title, description, type, due_date, is_completed, score, created_at, updated_at
		FROM assessments WHERE user_id = ?
		ORDER BY due_date IS NULL, due_date, id`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query assessments: %w", err)
	}
	defer closeRows(rows, "assessments")

	out := []*domain.Assessment{}
	for rows.Next() {
		var a domain.Assessment
		var courseID, dueDate sql.NullInt64
		var score sql.NullFloat64
		var createdAt, updatedAt int64
		if err := rows.Scan(&a.ID, &a.UserID, &courseID, &a.Title, &a.Description, &a.Type, &dueDate,
			&a.IsCompleted, &score, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan assessment row: %w", err)
		}
		if courseID.Valid {
			a.CourseID = &courseID.Int64
		}
		if dueDate.Valid {
			ts := time.Unix(dueDate.Int64, 0)
			a.DueDate = &ts
		}
		if score.Valid {
			a.Score = &score.Float64
		}
		a.CreatedAt = time.Unix(createdAt, 0)
		a.UpdatedAt = time.Unix(updatedAt, 0)
		out = append(out, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assessments: %w", err)
	}
	return out, nil
}

// CreateAssessment inserts an assessment and sets its ID.
func (s *SQLiteStore) CreateAssessment(ctx context.Context, a *domain.Assessment) error {
	query := `
	INSERT INTO assessments (user_id, course_id, title, description, type, due_date, is_completed, score, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	var score interface{}
	if a.Score != nil {
		score = *a.Score
	}
	return shared.RetryOnBusy(ctx, s.retry, "create assessment", func() error {
		res, err := s.db.ExecContext(ctx, query, a.UserID, int64OrNil(a.CourseID), a.Title, a.Description, a.Type,
			unixOrNil(a.DueDate), a.IsCompleted, score, a.CreatedAt.Unix(), a.UpdatedAt.Unix())
		if err != nil {
			return fmt.Errorf("insert assessment: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("assessment id: %w", err)
		}
		a.ID = id
		return nil
	})
}

// ListRecommendations returns a learner's recommendations by priority.
func (s *SQLiteStore) ListRecommendations(ctx context.Context, userID string) ([]*domain.Recommendation, error) {
	query := `
		SELECT id, user_id, course_id, title, description, reason, priority, estimated_duration, is_viewed, created_at
		FROM recommendations WHERE user_id = ?
		ORDER BY priority, created_at DESC, id DESC`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query recommendations: %w", err)
	}
	defer closeRows(rows, "recommendations")

	out := []*domain.Recommendation{}
	for rows.Next() {
		var r domain.Recommendation
		var courseID sql.NullInt64
		var createdAt int64
		if err := rows.Scan(&r.ID, &r.UserID, &courseID, &r.Title, &r.Description, &r.Reason, &r.Priority,
			&r.EstimatedDuration, &r.IsViewed, &createdAt); err != nil {
			return nil, fmt.Errorf("scan recommendation row: %w", err)
		}
		if courseID.Valid {
			r.CourseID = &courseID.Int64
		}
		r.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recommendations: %w", err)
	}
	return out, nil
}

// CreateRecommendation inserts a recommendation and sets its ID.
func (s *SQLiteStore) CreateRecommendation(ctx context.Context, r *domain.Recommendation) error {
	query := `
	INSERT INTO recommendations (user_id, course_id, title, description, reason, priority, estimated_duration, is_viewed, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	return shared.RetryOnBusy(ctx, s.retry, "create recommendation", func() error {
		res, err := s.db.ExecContext(ctx, query, r.UserID, int64OrNil(r.CourseID), r.Title, r.Description, r.Reason,
			r.Priority, r.EstimatedDuration, r.IsViewed, r.CreatedAt.Unix())
		if err != nil {
			return fmt.Errorf("insert recommendation: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("recommendation id: %w", err)
		}
		r.ID = id
		return nil
	})
}

const learningPathColumns = `id, user_id, title, description, current_step, total_steps, progress, created_at, updated_at`

func scanLearningPath(row interface{ Scan(...any) error }) (*domain.LearningPath, error) {
	var p domain.LearningPath
	var createdAt, updatedAt int64
	if err := row.Scan(&p.ID, &p.UserID, &p.Title, &p.Description, &p.CurrentStep, &p.TotalSteps,
		&p.Progress, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	p.CreatedAt = time.Unix(createdAt, 0)
	p.UpdatedAt = time.Unix(updatedAt, 0)
	return &p, nil
}

// ListLearningPaths returns a learner's saved paths, newest first.
func (s *SQLiteStore) ListLearningPaths(ctx context.Context, userID string) ([]*domain.LearningPath, error) {
	query := `SELECT ` + learningPathColumns + ` FROM learning_paths WHERE user_id = ? ORDER BY created_at DESC, id DESC`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query learning paths: %w", err)
	}
	defer closeRows(rows, "learning paths")

	out := []*domain.LearningPath{}
	for rows.Next() {
		p, err := scanLearningPath(rows)
		if err != nil {
			return nil, fmt.Errorf("scan learning path row: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate learning paths: %w", err)
	}
	return out, nil
}

// CreateLearningPath inserts a learning path and sets its ID.
func (s *SQLiteStore) CreateLearningPath(ctx context.Context, p *domain.LearningPath) error {
	query := `
	INSERT INTO learning_paths (user_id, title, description, current_step, total_steps, progress, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	return shared.RetryOnBusy(ctx, s.retry, "create learning path", func() error {
		res, err := s.db.ExecContext(ctx, query, p.UserID, p.Title, p.Description, p.CurrentStep, p.TotalSteps,
			p.Progress, p.CreatedAt.Unix(), p.UpdatedAt.Unix())
		if err != nil {
			return fmt.Errorf("insert learning path: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("learning path id: %w", err)
		}
		p.ID = id
		return nil
	})
}

// UpdateLearningPathProgress updates a path owned by userID.
func (s *SQLiteStore) UpdateLearningPathProgress(ctx context.Context, userID string, id int64, currentStep int, progress float64, now time.Time) (*domain.LearningPath, error) {
	query := `UPDATE learning_paths SET current_step = ?, progress = ?, updated_at = ? WHERE id = ? AND user_id = ?`

	var affected int64
	err := shared.RetryOnBusy(ctx, s.retry, "update learning path", func() error {
		res, err := s.db.ExecContext(ctx, query, currentStep, progress, now.Unix(), id, userID)
		if err != nil {
			return fmt.Errorf("update learning path: %w", err)
		}
		affected, err = res.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, nil
	}

	p, err := scanLearningPath(s.db.QueryRowContext(ctx, `SELECT `+learningPathColumns+` FROM learning_paths WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("reload learning path: %w", err)
	}
	return p, nil
}

const tutorSessionColumns = `id, user_id, messages_json, topic, version, created_at, updated_at`

func scanTutorSession(row interface{ Scan(...any) error }) (*domain.TutorSession, error) {
	var session domain.TutorSession
	var messagesJSON string
	var createdAt, updatedAt int64
	if err := row.Scan(&session.ID, &session.UserID, &messagesJSON, &session.Topic, &session.Version,
		&createdAt, &updatedAt); err != nil {
		return nil, err
	}
	turns, err := domain.DecodeTranscript([]byte(messagesJSON))
	if err != nil {
		return nil, err
	}
	session.Messages = turns
	session.CreatedAt = time.UnixMilli(createdAt)
	session.UpdatedAt = time.UnixMilli(updatedAt)
	return &session, nil
}

// GetTutorSession retrieves a tutor session by ID.
func (s *SQLiteStore) GetTutorSession(ctx context.Context, sessionID string) (*domain.TutorSession, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+tutorSessionColumns+` FROM tutor_sessions WHERE id = ?`, sessionID)
	session, err := scanTutorSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan tutor session: %w", err)
	}
	return session, nil
}

// ListTutorSessions returns a learner's sessions, newest-updated first.
func (s *SQLiteStore) ListTutorSessions(ctx context.Context, userID string) ([]*domain.TutorSession, error) {
	query := `SELECT ` + tutorSessionColumns + ` FROM tutor_sessions WHERE user_id = ? ORDER BY updated_at DESC, created_at DESC, id DESC`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query tutor sessions: %w", err)
	}
	defer closeRows(rows, "tutor sessions")

	sessions := []*domain.TutorSession{}
	for rows.Next() {
		session, err := scanTutorSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tutor session row: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tutor sessions: %w", err)
	}
	return sessions, nil
}

// CreateTutorSession inserts a new session at version 1.
func (s *SQLiteStore) CreateTutorSession(ctx context.Context, session *domain.TutorSession) error {
	messagesJSON, err := domain.EncodeTranscript(session.Messages)
	if err != nil {
		return err
	}
	query := `
	INSERT INTO tutor_sessions (id, user_id, messages_json, topic, version, created_at, updated_at)
	VALUES (?, ?, ?, ?, 1, ?, ?)`

	err = shared.RetryOnBusy(ctx, s.retry, "create tutor session", func() error {
		_, err := s.db.ExecContext(ctx, query, session.ID, session.UserID, messagesJSON, session.Topic,
			session.CreatedAt.UnixMilli(), session.UpdatedAt.UnixMilli())
		if err != nil {
			return fmt.Errorf("insert tutor session: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	session.Version = 1
	return nil
}

// UpdateTutorSessionMessages writes the transcript if the version still matches.
func (s *SQLiteStore) UpdateTutorSessionMessages(ctx context.Context, session *domain.TutorSession, expectedVersion int64) error {
	messagesJSON, err := domain.EncodeTranscript(session.Messages)
	if err != nil {
		return err
	}
	query := `
	UPDATE tutor_sessions SET messages_json = ?, updated_at = ?, version = version + 1
	WHERE id = ? AND user_id = ? AND version = ?`

	var affected int64
	err = shared.RetryOnBusy(ctx, s.retry, "update tutor session", func() error {
		res, err := s.db.ExecContext(ctx, query, messagesJSON, session.UpdatedAt.UnixMilli(),
			session.ID, session.UserID, expectedVersion)
		if err != nil {
			return fmt.Errorf("update tutor session: %w", err)
		}
		affected, err = res.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		slog.Debug("UpdateTutorSessionMessages affected 0 rows", "session_id", session.ID, "expected_version", expectedVersion)
		return domain.ErrVersionConflict
	}
	session.Version = expectedVersion + 1
	return nil
}

func closeRows(rows *sql.Rows, what string) {
	if err := rows.Close(); err != nil {
		slog.Warn("failed to close rows", "query", what, "error", err)
	}
}

func unixOrNil(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func int64OrNil(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
