package tutor

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/learnhub/internal/identity"
	"github.com/ashureev/learnhub/internal/middleware"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
)

func newTestRouter(t *testing.T, svc *Service, aiLimit int) http.Handler {
	t.Helper()
	limiter := middleware.NewRateLimiter(aiLimit, time.Minute)
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(identity.DevVerifier{}))
		NewHandler(svc).RegisterRoutes(r, middleware.RateLimit(limiter, func(r *http.Request) string {
			return identity.UserIDFromContext(r.Context())
		}, "Too many AI requests, please try again later"))
	})
	return r
}

func postChat(h http.Handler, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/ai-tutor/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func chatBody(message, sessionID string) string {
	payload := map[string]any{"message": message}
	if sessionID != "" {
		payload["sessionId"] = sessionID
	}
	data, _ := json.Marshal(payload)
	return string(data)
}

func TestHandleChatHTTP(t *testing.T) {
	repo := newTestRepo(t, "u1")
	h := newTestRouter(t, newTestService(repo, &fakeReasoner{}, DefaultOptions()), 100)

	tests := []struct {
		name       string
		token      string
		body       string
		wantStatus int
	}{
		{"missing identity", "", chatBody("hi", ""), http.StatusUnauthorized},
		{"empty message", "dev:u1", chatBody("", ""), http.StatusBadRequest},
		{"whitespace message", "dev:u1", chatBody("   ", ""), http.StatusBadRequest},
		{"message at limit", "dev:u1", chatBody(strings.Repeat("a", 2000), ""), http.StatusOK},
		{"message over limit", "dev:u1", chatBody(strings.Repeat("a", 2001), ""), http.StatusBadRequest},
		{"malformed json", "dev:u1", `{"message":`, http.StatusBadRequest},
		{"no profile", "dev:stranger", chatBody("hi", ""), http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postChat(h, tt.token, tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestHandleChatHTTPResponseShape(t *testing.T) {
	repo := newTestRepo(t, "u1")
	h := newTestRouter(t, newTestService(repo, &fakeReasoner{}, DefaultOptions()), 100)

	rec := postChat(h, "dev:u1", chatBody("What is recursion?", ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["response"] != "tutor: What is recursion?" || body["sessionId"] == "" {
		t.Fatalf("unexpected body %v", body)
	}

	rec = postChat(h, "dev:u1", chatBody("and base cases?", body["sessionId"]))
	var next map[string]string
	_ = json.NewDecoder(rec.Body).Decode(&next)
	if next["sessionId"] != body["sessionId"] {
		t.Errorf("sessionId = %q, want %q", next["sessionId"], body["sessionId"])
	}
}

func TestHandleChatHTTPDegradedStillOK(t *testing.T) {
	repo := newTestRepo(t, "u1")
	h := newTestRouter(t, newTestService(repo, &fakeReasoner{degraded: true}, DefaultOptions()), 100)

	rec := postChat(h, "dev:u1", chatBody("hello", ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]any
	_ = json.NewDecoder(rec.Body).Decode(&body)
	if sid, ok := body["sessionId"]; !ok || sid != "" {
		t.Errorf("sessionId = %v, want empty string", body["sessionId"])
	}
}

func TestHandleChatHTTPRateLimited(t *testing.T) {
	repo := newTestRepo(t, "u1", "u2")
	reasoner := &fakeReasoner{}
	h := newTestRouter(t, newTestService(repo, reasoner, DefaultOptions()), 2)

	for i := 0; i < 2; i++ {
		if rec := postChat(h, "dev:u1", chatBody("hi", "")); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i+1, rec.Code)
		}
	}
	rec := postChat(h, "dev:u1", chatBody("hi", ""))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
	if len(reasoner.seen) != 2 {
		t.Errorf("reasoner called %d times, want 2", len(reasoner.seen))
	}

	if rec := postChat(h, "dev:u2", chatBody("hi", "")); rec.Code != http.StatusOK {
		t.Errorf("other user status = %d, want 200", rec.Code)
	}
}

func TestHandleListSessionsHTTP(t *testing.T) {
	repo := newTestRepo(t, "u1")
	h := newTestRouter(t, newTestService(repo, &fakeReasoner{}, DefaultOptions()), 100)

	list := func() []map[string]any {
		req := httptest.NewRequest(http.MethodGet, "/api/ai-tutor/sessions", nil)
		req.Header.Set("Authorization", "Bearer dev:u1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if strings.TrimSpace(rec.Body.String()) == "null" {
			t.Fatal("empty list encoded as null")
		}
		var out []map[string]any
		if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
			t.Fatal(err)
		}
		return out
	}

	if got := list(); len(got) != 0 {
		t.Fatalf("got %d sessions, want 0", len(got))
	}
	postChat(h, "dev:u1", chatBody("hello", ""))
	got := list()
	if len(got) != 1 || got[0]["topic"] != "hello" {
		t.Fatalf("unexpected sessions %v", got)
	}
	if msgs, ok := got[0]["messages"].([]any); !ok || len(msgs) != 2 {
		t.Errorf("messages = %v", got[0]["messages"])
	}
}

func TestWebSocketTutor(t *testing.T) {
	repo := newTestRepo(t, "u1")
	svc := newTestService(repo, &fakeReasoner{}, DefaultOptions())
	limiter := middleware.NewRateLimiter(2, time.Minute)

	srv := httptest.NewServer(identity.WebSocketMiddleware(identity.DevVerifier{})(
		NewWebSocketHandler(svc, limiter, "*", true)))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/ai-tutor?access_token=dev:u1"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	roundTrip := func(msg any) map[string]any {
		t.Helper()
		if err := wsjson.Write(ctx, conn, msg); err != nil {
			t.Fatalf("write: %v", err)
		}
		var out map[string]any
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			t.Fatalf("read: %v", err)
		}
		return out
	}

	if got := roundTrip(map[string]string{"type": MessageTypePing}); got["type"] != MessageTypePong {
		t.Fatalf("ping reply = %v", got)
	}

	got := roundTrip(map[string]string{"type": MessageTypeTutorMessage, "message": "hello"})
	if got["type"] != MessageTypeTutorResponse || got["message"] != "tutor: hello" || got["sessionId"] == "" {
		t.Fatalf("tutor reply = %v", got)
	}

	invalid := roundTrip(map[string]string{"type": MessageTypeTutorMessage, "message": strings.Repeat("b", 2001)})
	if invalid["type"] != MessageTypeError || invalid["errors"] == nil {
		t.Fatalf("validation reply = %v", invalid)
	}

	limited := roundTrip(map[string]string{"type": MessageTypeTutorMessage, "message": "again"})
	if limited["type"] != MessageTypeError {
		t.Fatalf("rate limit reply = %v", limited)
	}

	if got := roundTrip(map[string]string{"type": "bogus"}); got["type"] != MessageTypeError {
		t.Errorf("unknown type reply = %v", got)
	}
}

func TestWebSocketRejectsMissingToken(t *testing.T) {
	srv := httptest.NewServer(identity.WebSocketMiddleware(identity.DevVerifier{})(
		NewWebSocketHandler(nil, nil, "*", true)))
	defer srv.Close()

	resp, err := http.Post(srv.URL, "application/json", bytes.NewReader(nil))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}
