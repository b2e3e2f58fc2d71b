package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ashureev/learnhub/internal/domain"
)

// SupabaseVerifier checks tokens against the Supabase auth API.
type SupabaseVerifier struct {
	baseURL string
	anonKey string
	client  *http.Client
}

// NewSupabaseVerifier creates a verifier for the project at baseURL.
func NewSupabaseVerifier(baseURL, anonKey string, timeout time.Duration) *SupabaseVerifier {
	return &SupabaseVerifier{
		baseURL: strings.TrimRight(baseURL, "/"),
		anonKey: anonKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type supabaseUser struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	UserMetadata struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		FullName  string `json:"full_name"`
		AvatarURL string `json:"avatar_url"`
	} `json:"user_metadata"`
}

// Verify resolves token to the Supabase user that owns it.
func (v *SupabaseVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, fmt.Errorf("create auth request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("apikey", v.anonKey)

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call auth provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("auth provider returned %d: %w", resp.StatusCode, domain.ErrUnauthenticated)
	}

	var u supabaseUser
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return nil, fmt.Errorf("decode auth user: %w", err)
	}
	if u.ID == "" {
		return nil, fmt.Errorf("auth provider returned no user: %w", domain.ErrUnauthenticated)
	}

	first, last := u.UserMetadata.FirstName, u.UserMetadata.LastName
	if first == "" && last == "" && u.UserMetadata.FullName != "" {
		first, last, _ = strings.Cut(u.UserMetadata.FullName, " ")
	}

	return &Identity{
		UserID:    u.ID,
		Email:     u.Email,
		FirstName: first,
		LastName:  last,
		AvatarURL: u.UserMetadata.AvatarURL,
	}, nil
}

// DevVerifier accepts tokens of the form "dev:<user-id>". Local use only.
type DevVerifier struct{}

// Verify implements Verifier.
func (DevVerifier) Verify(_ context.Context, token string) (*Identity, error) {
	userID, ok := strings.CutPrefix(token, "dev:")
	if !ok || userID == "" {
		return nil, fmt.Errorf("malformed dev token: %w", domain.ErrUnauthenticated)
	}
	return &Identity{UserID: userID, Email: userID + "@localhost"}, nil
}
