package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/containerd/errdefs"
)

// MaxMessageLength is the longest accepted chat message, in characters.
const MaxMessageLength = 2000

const maxChatBodyBytes = 64 << 10

// FieldError describes one invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is a list of field errors. It classifies as
// errdefs.ErrInvalidArgument.
type ValidationError []FieldError

func (v ValidationError) Error() string {
	parts := make([]string, 0, len(v))
	for _, fe := range v {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Unwrap lets errors.Is match errdefs.ErrInvalidArgument.
func (v ValidationError) Unwrap() error {
	return errdefs.ErrInvalidArgument
}

// WriteValidation writes a 400 with the field error list.
func WriteValidation(w http.ResponseWriter, errs ValidationError) {
	JSON(w, http.StatusBadRequest, map[string]interface{}{"errors": errs})
}

// ChatRequest is a validated chat submission.
type ChatRequest struct {
	Message   string
	SessionID string
}

// ParseChatRequest decodes and validates a chat payload. The message is
// trimmed before its length is checked.
func ParseChatRequest(r io.Reader) (ChatRequest, ValidationError) {
	data, err := io.ReadAll(io.LimitReader(r, maxChatBodyBytes+1))
	if err != nil {
		return ChatRequest{}, ValidationError{{Field: "body", Message: "could not read request body"}}
	}
	if len(data) > maxChatBodyBytes {
		return ChatRequest{}, ValidationError{{Field: "body", Message: "request body too large"}}
	}
	return ValidateChatPayload(data)
}

// ValidateChatPayload validates a raw JSON chat payload.
func ValidateChatPayload(data []byte) (ChatRequest, ValidationError) {
	var raw map[string]json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&raw); err != nil || raw == nil {
		return ChatRequest{}, ValidationError{{Field: "body", Message: "request body must be a JSON object"}}
	}

	var req ChatRequest
	var errs ValidationError

	msg, ok := decodeString(raw["message"])
	if !ok {
		errs = append(errs, FieldError{Field: "message", Message: "Message must be a string"})
	} else {
		req.Message = strings.TrimSpace(msg)
		if n := utf8.RuneCountInString(req.Message); n < 1 || n > MaxMessageLength {
			errs = append(errs, FieldError{
				Field:   "message",
				Message: fmt.Sprintf("Message must be between 1 and %d characters", MaxMessageLength),
			})
		}
	}

	if rawID, present := raw["sessionId"]; present && string(rawID) != "null" {
		id, ok := decodeString(rawID)
		if !ok {
			errs = append(errs, FieldError{Field: "sessionId", Message: "Session ID must be a string"})
		} else {
			req.SessionID = strings.TrimSpace(id)
		}
	}

	if len(errs) > 0 {
		return ChatRequest{}, errs
	}
	return req, nil
}

func decodeString(raw json.RawMessage) (string, bool) {
	if raw == nil {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

const maxBodyBytes = 1 << 20

// decodeBody decodes a JSON object request body into dst.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) ValidationError {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return ValidationError{{Field: "body", Message: "request body must be a valid JSON object"}}
	}
	return nil
}
