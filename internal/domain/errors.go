package domain

import (
	"fmt"

	"github.com/containerd/errdefs"
)

// Error classes are errdefs sentinels so that every layer can classify them
// with errors.Is and the HTTP layer can map them with errhttp.
var (
	ErrUserNotFound    = fmt.Errorf("user not found: %w", errdefs.ErrNotFound)
	ErrSessionNotFound = fmt.Errorf("tutor session not found: %w", errdefs.ErrNotFound)
	ErrCourseNotFound  = fmt.Errorf("course not found: %w", errdefs.ErrNotFound)
	ErrVersionConflict = fmt.Errorf("tutor session was modified concurrently: %w", errdefs.ErrConflict)
	ErrUnauthenticated = fmt.Errorf("unauthenticated: %w", errdefs.ErrUnauthenticated)
	ErrRateLimited     = fmt.Errorf("rate limit exceeded: %w", errdefs.ErrResourceExhausted)
)
