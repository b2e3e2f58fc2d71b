package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ashureev/learnhub/internal/domain"
)

func TestMiddleware(t *testing.T) {
	var seen string
	handler := Middleware(DevVerifier{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
		wantUser   string
	}{
		{"no auth header", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic dev:u1", http.StatusUnauthorized, ""},
		{"empty token", "Bearer ", http.StatusUnauthorized, ""},
		{"invalid token", "Bearer nope", http.StatusUnauthorized, ""},
		{"valid token", "Bearer dev:u1", http.StatusOK, "u1"},
		{"lowercase scheme", "bearer dev:u2", http.StatusOK, "u2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/api/ai-tutor/sessions", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if seen != tt.wantUser {
				t.Errorf("user = %q, want %q", seen, tt.wantUser)
			}
			if tt.wantStatus == http.StatusUnauthorized {
				var body map[string]string
				if err := json.NewDecoder(rec.Body).Decode(&body); err != nil || body["error"] == "" {
					t.Errorf("expected JSON error body, got %q", rec.Body.String())
				}
			}
		})
	}
}

func TestWebSocketMiddlewareAcceptsQueryToken(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/ws/ai-tutor?access_token=dev:u1", nil)
	rec := httptest.NewRecorder()
	WebSocketMiddleware(DevVerifier{})(ok).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("websocket status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	Middleware(DevVerifier{})(ok).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("plain middleware status = %d, want 401", rec.Code)
	}
}

func TestSupabaseVerifier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/user" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("apikey") != "anon" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"id":"user-123","email":"a@b.c","user_metadata":{"full_name":"Ada Lovelace","avatar_url":"http://img"}}`))
	}))
	defer srv.Close()

	v := NewSupabaseVerifier(srv.URL+"/", "anon", time.Second)

	id, err := v.Verify(context.Background(), "good")
	if err != nil {
		t.Fatalf("Verify(good) error = %v", err)
	}
	if id.UserID != "user-123" || id.FirstName != "Ada" || id.LastName != "Lovelace" || id.AvatarURL != "http://img" {
		t.Errorf("unexpected identity %+v", id)
	}

	_, err = v.Verify(context.Background(), "bad")
	if !errors.Is(err, domain.ErrUnauthenticated) {
		t.Errorf("Verify(bad) error = %v, want unauthenticated", err)
	}
}

func TestIPFromRequestIgnoresForwardedHeaders(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		want       string
	}{
		{"ipv4", "203.0.113.7:5123", "203.0.113.7"},
		{"ipv6", "[2001:db8::1]:443", "2001:db8::1"},
		{"no port", "203.0.113.7", "203.0.113.7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			req.Header.Set("X-Forwarded-For", "198.51.100.1")
			req.Header.Set("X-Real-IP", "198.51.100.2")
			if got := IPFromRequest(req); got != tt.want {
				t.Errorf("IPFromRequest() = %q, want %q", got, tt.want)
			}
		})
	}
}
