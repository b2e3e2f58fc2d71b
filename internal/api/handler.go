// Package api provides HTTP handlers for the LearnHub API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ashureev/learnhub/internal/reasoning"
	"github.com/ashureev/learnhub/internal/store"
	"github.com/containerd/errdefs/pkg/errhttp"
)

// Handler serves the learner-facing REST endpoints.
type Handler struct {
	repo    store.Repository
	advisor Advisor
	now     func() time.Time
}

// Advisor produces structured learning insights.
type Advisor interface {
	Recommendations(ctx context.Context, in reasoning.RecommendationInput) reasoning.RecommendationSet
	AnalyzeProgress(ctx context.Context, in reasoning.ProgressInput) reasoning.ProgressAnalysis
	SuggestLearningPath(ctx context.Context, in reasoning.LearningPathInput) reasoning.LearningPathSuggestion
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(repo store.Repository, advisor Advisor) *Handler {
	return &Handler{repo: repo, advisor: advisor, now: time.Now}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// WriteError maps err to an HTTP status via its errdefs class. Server-side
// failures are logged and reported with fallback instead of err's text.
func WriteError(w http.ResponseWriter, err error, fallback string) {
	var verr ValidationError
	if errors.As(err, &verr) {
		WriteValidation(w, verr)
		return
	}

	status := errhttp.ToHTTP(err)
	if status >= http.StatusInternalServerError {
		slog.Error(fallback, "error", err)
		Error(w, http.StatusInternalServerError, fallback)
		return
	}
	Error(w, status, PublicMessage(err))
}

// PublicMessage returns err's text without the trailing errdefs class name.
func PublicMessage(err error) string {
	msg := err.Error()
	root := errors.Unwrap(err)
	if root == nil {
		return msg
	}
	for next := errors.Unwrap(root); next != nil; next = errors.Unwrap(root) {
		root = next
	}
	return strings.TrimSuffix(msg, ": "+root.Error())
}
