package reasoning

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"
)

// MockClient answers offline with canned replies. Used for local development.
type MockClient struct{}

// NewMockClient creates a MockClient.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// Complete implements Client.
func (m *MockClient) Complete(_ context.Context, req CompletionRequest) (string, error) {
	if req.JSON {
		return "{}", nil
	}

	var last string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == RoleUser {
			last = strings.TrimSpace(req.Messages[i].Content)
			break
		}
	}
	if utf8.RuneCountInString(last) > 60 {
		last = string([]rune(last)[:60]) + "..."
	}
	return fmt.Sprintf("Good question. You asked %q. What do you already know about it, and where do you get stuck?", last), nil
}
