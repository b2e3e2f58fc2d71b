package api

import (
	"net/http"

	"github.com/ashureev/learnhub/internal/domain"
	"github.com/ashureev/learnhub/internal/identity"
)

// GetProfile returns the caller's learner profile, creating it from the
// verified identity on first use.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	id := identity.FromContext(r.Context())
	if id == nil {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.repo.GetUser(r.Context(), id.UserID)
	if err != nil {
		WriteError(w, err, "Failed to fetch user")
		return
	}
	if user == nil {
		user = domain.NewUser(id.UserID, id.Email, id.FirstName, id.LastName, id.AvatarURL, h.now())
		if err := h.repo.UpsertUser(r.Context(), user); err != nil {
			WriteError(w, err, "Failed to fetch user")
			return
		}
	}

	JSON(w, http.StatusOK, user)
}

// requireUser loads the caller's profile. It writes the response and returns
// nil when the caller is anonymous or has no profile.
func (h *Handler) requireUser(w http.ResponseWriter, r *http.Request, fallback string) *domain.User {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return nil
	}
	user, err := h.repo.GetUser(r.Context(), userID)
	if err != nil {
		WriteError(w, err, fallback)
		return nil
	}
	if user == nil {
		WriteError(w, domain.ErrUserNotFound, fallback)
		return nil
	}
	return user
}
