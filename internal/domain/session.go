package domain

import (
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"
)

// TopicLength is the number of characters of the first message kept as a session topic.
const TopicLength = 100

// Role tags a turn in a tutoring transcript.
type Role string

const (
	// RoleUser marks a learner turn.
	RoleUser Role = "user"
	// RoleAssistant marks a tutor turn.
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// UnmarshalJSON rejects roles outside the known set.
func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	role := Role(s)
	if !role.Valid() {
		return fmt.Errorf("unknown role %q", s)
	}
	*r = role
	return nil
}

// Turn is one role-tagged message in a transcript.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// UserTurn builds a learner turn.
func UserTurn(content string) Turn {
	return Turn{Role: RoleUser, Content: content}
}

// AssistantTurn builds a tutor turn.
func AssistantTurn(content string) Turn {
	return Turn{Role: RoleAssistant, Content: content}
}

// TutorSession is a durable, user-owned tutoring conversation.
// Messages only grow; Version is bumped on every persisted append.
type TutorSession struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Messages  []Turn    `json:"messages"`
	Topic     string    `json:"topic"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Version   int64     `json:"-"`
}

// OwnedBy reports whether the session belongs to userID.
func (s *TutorSession) OwnedBy(userID string) bool {
	return s != nil && s.UserID == userID
}

// Transcript returns a copy of the stored turns.
func (s *TutorSession) Transcript() []Turn {
	out := make([]Turn, len(s.Messages))
	copy(out, s.Messages)
	return out
}

// DeriveTopic returns the first TopicLength characters of message.
func DeriveTopic(message string) string {
	if utf8.RuneCountInString(message) <= TopicLength {
		return message
	}
	runes := []rune(message)
	return string(runes[:TopicLength])
}

// EncodeTranscript serializes turns for storage.
func EncodeTranscript(turns []Turn) (string, error) {
	if turns == nil {
		turns = []Turn{}
	}
	data, err := json.Marshal(turns)
	if err != nil {
		return "", fmt.Errorf("encode transcript: %w", err)
	}
	return string(data), nil
}

// DecodeTranscript parses a stored transcript.
func DecodeTranscript(data []byte) ([]Turn, error) {
	if len(data) == 0 {
		return []Turn{}, nil
	}
	var turns []Turn
	if err := json.Unmarshal(data, &turns); err != nil {
		return nil, fmt.Errorf("decode transcript: %w", err)
	}
	if turns == nil {
		turns = []Turn{}
	}
	return turns, nil
}
