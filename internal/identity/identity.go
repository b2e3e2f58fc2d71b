// Package identity authenticates bearer tokens against the auth provider and
// carries the verified caller through the request context.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/ashureev/learnhub/internal/domain"
)

// AccessTokenParam is the query parameter accepted in place of the
// Authorization header on WebSocket upgrades.
const AccessTokenParam = "access_token"

// Identity is a verified caller.
type Identity struct {
	UserID    string
	Email     string
	FirstName string
	LastName  string
	AvatarURL string
}

// Verifier resolves a bearer token to an Identity. Any failure to verify must
// be reported as an error wrapping domain.ErrUnauthenticated.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

type contextKey int

const identityKey contextKey = iota

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// FromContext returns the verified caller, or nil.
func FromContext(ctx context.Context) *Identity {
	if v, ok := ctx.Value(identityKey).(*Identity); ok {
		return v
	}
	return nil
}

// UserIDFromContext extracts the user ID from the request context.
func UserIDFromContext(ctx context.Context) string {
	if id := FromContext(ctx); id != nil {
		return id.UserID
	}
	return ""
}

var (
	errMissingHeader = errors.New("no authorization header")
	errBadScheme     = errors.New("invalid authorization header")
)

// TokenFromRequest extracts the bearer token. When allowQuery is set the
// access_token query parameter is consulted if the header is absent.
func TokenFromRequest(r *http.Request, allowQuery bool) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		if allowQuery {
			if token := r.URL.Query().Get(AccessTokenParam); token != "" {
				return token, nil
			}
		}
		return "", errMissingHeader
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", errBadScheme
	}
	return strings.TrimSpace(parts[1]), nil
}

// Middleware rejects requests without a verifiable bearer token.
func Middleware(v Verifier) func(http.Handler) http.Handler {
	return authenticate(v, false)
}

// WebSocketMiddleware is Middleware that also accepts the access_token query
// parameter, since browsers cannot set headers on WebSocket upgrades.
func WebSocketMiddleware(v Verifier) func(http.Handler) http.Handler {
	return authenticate(v, true)
}

func authenticate(v Verifier, allowQuery bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := TokenFromRequest(r, allowQuery)
			if err != nil {
				unauthorized(w, err.Error())
				return
			}

			id, err := v.Verify(r.Context(), token)
			if err != nil {
				if !errors.Is(err, domain.ErrUnauthenticated) {
					slog.Warn("token verification failed", "error", err, "remote_ip", IPFromRequest(r))
				}
				unauthorized(w, "invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// IPFromRequest returns the host part of RemoteAddr. Proxy headers are only
// reflected when the server installs chi's RealIP middleware.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
