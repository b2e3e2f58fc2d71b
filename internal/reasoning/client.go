// Package reasoning talks to the language-model service that writes tutor
// replies and structured learning insights.
package reasoning

import (
	"context"
	"errors"

	"github.com/ashureev/learnhub/internal/domain"
)

// Message roles understood by the reasoning service.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrEmptyCompletion is returned when the service answered with no content.
var ErrEmptyCompletion = errors.New("reasoning service returned empty content")

// Message is one chat message sent to the reasoning service.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest asks for a single completion. JSON requests a JSON object reply.
type CompletionRequest struct {
	Messages []Message
	Model    string
	JSON     bool
}

// Client is a reasoning-service backend.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// FromTurns converts transcript turns to reasoning messages.
func FromTurns(turns []domain.Turn) []Message {
	out := make([]Message, 0, len(turns))
	for _, t := range turns {
		out = append(out, Message{Role: string(t.Role), Content: t.Content})
	}
	return out
}
