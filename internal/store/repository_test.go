package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ashureev/learnhub/internal/domain"
	"github.com/containerd/errdefs"
)

// repositoryCase exercises one behaviour against any Repository. Identifiers
// are prefixed so backends that outlive a test run do not collide.
type repositoryCase struct {
	name string
	run  func(t *testing.T, repo Repository, prefix string)
}

var tutorSessionCases = []repositoryCase{
	{"lifecycle", testTutorSessionLifecycle},
	{"rejects foreign owner", testUpdateRejectsForeignOwner},
	{"list order", testListTutorSessionsOrder},
	{"list order within one second", testListTutorSessionsSubSecond},
}

var learningPathCases = []repositoryCase{
	{"learning paths", testLearningPaths},
}

func sessionIDs(t *testing.T, repo Repository, userID string) []string {
	t.Helper()
	sessions, err := repo.ListTutorSessions(context.Background(), userID)
	if err != nil {
		t.Fatalf("ListTutorSessions() error = %v", err)
	}
	ids := make([]string, 0, len(sessions))
	for _, sess := range sessions {
		ids = append(ids, sess.ID)
	}
	return ids
}

func assertIDs(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("ids = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ids = %v, want %v", got, want)
		}
	}
}

func testTutorSessionLifecycle(t *testing.T, repo Repository, prefix string) {
	ctx := context.Background()
	userID, sessionID := prefix+"u1", prefix+"s1"
	seedUser(t, repo, userID)

	now := time.Unix(1700000000, 0)
	session := &domain.TutorSession{
		ID:        sessionID,
		UserID:    userID,
		Messages:  []domain.Turn{domain.UserTurn("hi"), domain.AssistantTurn("hello")},
		Topic:     "hi",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.CreateTutorSession(ctx, session); err != nil {
		t.Fatalf("CreateTutorSession() error = %v", err)
	}
	if session.Version != 1 {
		t.Fatalf("Version = %d, want 1", session.Version)
	}

	missing, err := repo.GetTutorSession(ctx, prefix+"nope")
	if err != nil || missing != nil {
		t.Fatalf("GetTutorSession(missing) = %v, %v; want nil, nil", missing, err)
	}

	loaded, err := repo.GetTutorSession(ctx, sessionID)
	if err != nil {
		t.Fatalf("GetTutorSession() error = %v", err)
	}
	if len(loaded.Messages) != 2 || loaded.Messages[1].Role != domain.RoleAssistant {
		t.Fatalf("unexpected transcript %+v", loaded.Messages)
	}
	if !loaded.CreatedAt.Equal(now) {
		t.Errorf("CreatedAt = %v, want %v", loaded.CreatedAt, now)
	}

	loaded.Messages = append(loaded.Messages, domain.UserTurn("more"), domain.AssistantTurn("sure"))
	loaded.UpdatedAt = now.Add(time.Minute)
	if err := repo.UpdateTutorSessionMessages(ctx, loaded, 1); err != nil {
		t.Fatalf("UpdateTutorSessionMessages() error = %v", err)
	}
	if loaded.Version != 2 {
		t.Errorf("Version = %d, want 2", loaded.Version)
	}

	// A writer holding the stale version must be rejected.
	session.Messages = append(session.Messages, domain.UserTurn("stale"))
	err = repo.UpdateTutorSessionMessages(ctx, session, 1)
	if !errors.Is(err, domain.ErrVersionConflict) || !errdefs.IsConflict(err) {
		t.Fatalf("stale update error = %v, want version conflict", err)
	}

	final, _ := repo.GetTutorSession(ctx, sessionID)
	if len(final.Messages) != 4 || final.Topic != "hi" || final.Version != 2 {
		t.Errorf("unexpected final session %+v", final)
	}
}

func testUpdateRejectsForeignOwner(t *testing.T, repo Repository, prefix string) {
	ctx := context.Background()
	owner, sessionID := prefix+"owner", prefix+"s1"
	seedUser(t, repo, owner)

	now := time.Unix(1700000000, 0)
	session := &domain.TutorSession{ID: sessionID, UserID: owner, Messages: []domain.Turn{}, CreatedAt: now, UpdatedAt: now}
	if err := repo.CreateTutorSession(ctx, session); err != nil {
		t.Fatalf("CreateTutorSession() error = %v", err)
	}

	hijack := &domain.TutorSession{ID: sessionID, UserID: prefix + "intruder", Messages: []domain.Turn{domain.UserTurn("x")}, UpdatedAt: now}
	if err := repo.UpdateTutorSessionMessages(ctx, hijack, 1); !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("foreign update error = %v, want conflict", err)
	}
	got, _ := repo.GetTutorSession(ctx, sessionID)
	if len(got.Messages) != 0 {
		t.Errorf("foreign update modified transcript: %+v", got.Messages)
	}
}

func testListTutorSessionsOrder(t *testing.T, repo Repository, prefix string) {
	ctx := context.Background()
	u1, u2 := prefix+"u1", prefix+"u2"
	seedUser(t, repo, u1)
	seedUser(t, repo, u2)

	base := time.Unix(1700000000, 0)
	offsets := map[string]time.Duration{"old": 0, "mid": time.Hour, "new": 2 * time.Hour}
	for i, name := range []string{"old", "new", "mid"} {
		sess := &domain.TutorSession{ID: prefix + name, UserID: u1, Topic: name,
			CreatedAt: base.Add(time.Duration(i) * time.Second), UpdatedAt: base.Add(offsets[name])}
		if err := repo.CreateTutorSession(ctx, sess); err != nil {
			t.Fatalf("CreateTutorSession(%s) error = %v", name, err)
		}
	}
	other := &domain.TutorSession{ID: prefix + "other", UserID: u2, CreatedAt: base, UpdatedAt: base.Add(5 * time.Hour)}
	if err := repo.CreateTutorSession(ctx, other); err != nil {
		t.Fatalf("CreateTutorSession(other) error = %v", err)
	}

	assertIDs(t, sessionIDs(t, repo, u1), []string{prefix + "new", prefix + "mid", prefix + "old"})

	empty, err := repo.ListTutorSessions(ctx, prefix+"nobody")
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("ListTutorSessions(nobody) = %v, %v; want empty non-nil", empty, err)
	}
}

func testListTutorSessionsSubSecond(t *testing.T, repo Repository, prefix string) {
	ctx := context.Background()
	userID := prefix + "u1"
	seedUser(t, repo, userID)

	t0 := time.Unix(1700000000, 100*int64(time.Millisecond))
	a := &domain.TutorSession{ID: prefix + "a", UserID: userID, CreatedAt: t0, UpdatedAt: t0}
	b := &domain.TutorSession{ID: prefix + "b", UserID: userID, CreatedAt: t0.Add(600 * time.Millisecond), UpdatedAt: t0.Add(600 * time.Millisecond)}
	for _, sess := range []*domain.TutorSession{a, b} {
		if err := repo.CreateTutorSession(ctx, sess); err != nil {
			t.Fatalf("CreateTutorSession(%s) error = %v", sess.ID, err)
		}
	}
	assertIDs(t, sessionIDs(t, repo, userID), []string{b.ID, a.ID})

	// Touching a within the same second moves it back to the front.
	a.UpdatedAt = t0.Add(800 * time.Millisecond)
	if err := repo.UpdateTutorSessionMessages(ctx, a, 1); err != nil {
		t.Fatalf("UpdateTutorSessionMessages() error = %v", err)
	}
	assertIDs(t, sessionIDs(t, repo, userID), []string{a.ID, b.ID})

	loaded, err := repo.GetTutorSession(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetTutorSession() error = %v", err)
	}
	if !loaded.UpdatedAt.Equal(a.UpdatedAt) {
		t.Errorf("UpdatedAt = %v, want %v", loaded.UpdatedAt, a.UpdatedAt)
	}
}

func testLearningPaths(t *testing.T, repo Repository, prefix string) {
	ctx := context.Background()
	userID := prefix + "u1"
	seedUser(t, repo, userID)
	now := time.Unix(1700000000, 0)

	for i, title := range []string{"Backend", "Frontend"} {
		p := &domain.LearningPath{UserID: userID, Title: title, TotalSteps: 4,
			CreatedAt: now.Add(time.Duration(i) * time.Hour), UpdatedAt: now}
		if err := repo.CreateLearningPath(ctx, p); err != nil {
			t.Fatalf("CreateLearningPath(%s) error = %v", title, err)
		}
		if p.ID == 0 {
			t.Fatalf("CreateLearningPath(%s) did not assign an id", title)
		}
	}

	paths, err := repo.ListLearningPaths(ctx, userID)
	if err != nil || len(paths) != 2 || paths[0].Title != "Frontend" {
		t.Fatalf("ListLearningPaths() = %v, %v", paths, err)
	}

	updated, err := repo.UpdateLearningPathProgress(ctx, userID, paths[1].ID, 2, 50, now.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("UpdateLearningPathProgress() error = %v", err)
	}
	if updated.CurrentStep != 2 || updated.Progress != 50 || updated.Title != "Backend" {
		t.Errorf("unexpected path %+v", updated)
	}

	foreign, err := repo.UpdateLearningPathProgress(ctx, prefix+"intruder", paths[1].ID, 4, 100, now)
	if err != nil || foreign != nil {
		t.Fatalf("foreign UpdateLearningPathProgress() = %v, %v; want nil, nil", foreign, err)
	}

	empty, err := repo.ListLearningPaths(ctx, prefix+"nobody")
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("ListLearningPaths(nobody) = %v, %v; want empty non-nil", empty, err)
	}
}
