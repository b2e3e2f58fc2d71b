package domain

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestDeriveTopic(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int
	}{
		{"short", "What is a closure?", len("What is a closure?")},
		{"exact", strings.Repeat("a", TopicLength), TopicLength},
		{"long", strings.Repeat("a", TopicLength+50), TopicLength},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveTopic(tt.in); len([]rune(got)) != tt.want {
				t.Errorf("len(DeriveTopic()) = %d, want %d", len([]rune(got)), tt.want)
			}
		})
	}

	multi := strings.Repeat("é", TopicLength+1)
	if got := DeriveTopic(multi); got != strings.Repeat("é", TopicLength) {
		t.Error("topic split a multi-byte character")
	}
}

func TestDecodeTranscriptRejectsUnknownRole(t *testing.T) {
	if _, err := DecodeTranscript([]byte(`[{"role":"system","content":"x"}]`)); err == nil {
		t.Fatal("expected error for unknown role")
	}

	turns, err := DecodeTranscript(nil)
	if err != nil || turns == nil || len(turns) != 0 {
		t.Fatalf("DecodeTranscript(nil) = %v, %v", turns, err)
	}

	encoded, err := EncodeTranscript([]Turn{UserTurn("hi"), AssistantTurn("hello")})
	if err != nil {
		t.Fatal(err)
	}
	var raw []map[string]string
	if err := json.Unmarshal([]byte(encoded), &raw); err != nil || raw[1]["role"] != "assistant" {
		t.Fatalf("encoded = %s", encoded)
	}
}

func TestBuildUserContext(t *testing.T) {
	user := &User{ID: "u1"}
	courses := []*UserCourse{
		{Progress: 100, IsCompleted: true, Course: &Course{Title: "Go", Category: "Programming"}},
		{Progress: 33.3, Course: &Course{Title: "SQL", Category: "Data"}},
	}

	uc := BuildUserContext(user, courses)
	if uc.SkillLevel != DefaultSkillLevel {
		t.Errorf("SkillLevel = %q, want default", uc.SkillLevel)
	}
	if uc.TotalCourses != 2 || uc.CompletedCourses != 1 {
		t.Errorf("counts = %d/%d", uc.CompletedCourses, uc.TotalCourses)
	}
	if uc.AverageProgress != "66.7" {
		t.Errorf("AverageProgress = %q, want 66.7", uc.AverageProgress)
	}
	if uc.LearningProgress[1].Course != "SQL" {
		t.Errorf("LearningProgress = %+v", uc.LearningProgress)
	}

	empty := BuildUserContext(user, nil)
	if empty.AverageProgress != "0.0" || empty.LearningProgress == nil {
		t.Errorf("empty context = %+v", empty)
	}
}

func TestTutorSessionOwnership(t *testing.T) {
	var none *TutorSession
	if none.OwnedBy("u1") {
		t.Error("nil session reported as owned")
	}
	s := &TutorSession{UserID: "u1", Messages: []Turn{UserTurn("a")}}
	if !s.OwnedBy("u1") || s.OwnedBy("u2") {
		t.Error("ownership check wrong")
	}
	cp := s.Transcript()
	cp[0].Content = "changed"
	if s.Messages[0].Content != "a" {
		t.Error("Transcript returned shared backing array")
	}
}

func TestStepProgress(t *testing.T) {
	tests := []struct {
		step, total int
		want        float64
	}{
		{0, 4, 0},
		{1, 4, 25},
		{4, 4, 100},
		{9, 4, 100},
		{-1, 4, 0},
		{2, 0, 0},
	}
	for _, tt := range tests {
		if got := StepProgress(tt.step, tt.total); got != tt.want {
			t.Errorf("StepProgress(%d, %d) = %v, want %v", tt.step, tt.total, got, tt.want)
		}
	}
}
