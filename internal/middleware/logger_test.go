package middleware

import (
	"bytes"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ashureev/learnhub/internal/identity"
	"github.com/go-chi/chi/v5"
)

func TestRequestLoggerRedactsAccessToken(t *testing.T) {
	var buf bytes.Buffer
	r := chi.NewRouter()
	r.Use(RequestLogger(log.New(&buf, "", 0), identity.AccessTokenParam))
	r.With(identity.WebSocketMiddleware(identity.DevVerifier{})).Get("/ws/ai-tutor", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(identity.UserIDFromContext(r.Context())))
	})

	req := httptest.NewRequest(http.MethodGet, "/ws/ai-tutor?v=2&access_token=dev:secret-user", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || rec.Body.String() != "secret-user" {
		t.Fatalf("handler saw status %d body %q, want the token to still authenticate", rec.Code, rec.Body.String())
	}
	line := buf.String()
	if strings.Contains(line, "secret-user") {
		t.Fatalf("log line leaks token: %s", line)
	}
	if !strings.Contains(line, "/ws/ai-tutor?v=2&access_token="+redacted) {
		t.Errorf("log line missing masked request URI: %s", line)
	}
}

func TestRedactQuery(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		want        string
		wantChanged bool
	}{
		{"no match", "a=1&b=2", "a=1&b=2", false},
		{"single", "access_token=abc", "access_token=" + redacted, true},
		{"keeps order", "x=1&access_token=abc&y=2", "x=1&access_token=" + redacted + "&y=2", true},
		{"escaped key", "access%5Ftoken=abc", "access_token=" + redacted, true},
		{"repeated", "access_token=a&access_token=b", "access_token=" + redacted + "&access_token=" + redacted, true},
		{"prefix only", "access_token_hint=abc", "access_token_hint=abc", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := redactQuery(tt.raw, []string{"access_token"})
			if got != tt.want || changed != tt.wantChanged {
				t.Errorf("redactQuery(%q) = %q, %v; want %q, %v", tt.raw, got, changed, tt.want, tt.wantChanged)
			}
		})
	}
}
