package store

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
)

// newTestPostgres connects to TEST_DATABASE_URL after applying migrations.
// Tests are skipped when it is unset.
func newTestPostgres(t *testing.T) *PostgresStore {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	if err := RunMigrations(url, MigrationsFS()); err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}
	s, err := NewPostgres(context.Background(), url)
	if err != nil {
		t.Fatalf("NewPostgres() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPostgresTutorSessions(t *testing.T) {
	s := newTestPostgres(t)
	for _, tc := range tutorSessionCases {
		t.Run(tc.name, func(t *testing.T) {
			tc.run(t, s, uuid.NewString()+"-")
		})
	}
}

func TestPostgresLearningPaths(t *testing.T) {
	s := newTestPostgres(t)
	for _, tc := range learningPathCases {
		t.Run(tc.name, func(t *testing.T) {
			tc.run(t, s, uuid.NewString()+"-")
		})
	}
}
