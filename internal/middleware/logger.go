package middleware

import (
	"net/http"
	"net/url"
	"strings"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

const redacted = "REDACTED"

// RequestLogger logs requests in chi's default format with the values of the
// named query parameters masked.
func RequestLogger(logger chiMiddleware.LoggerInterface, sensitiveParams ...string) func(http.Handler) http.Handler {
	return chiMiddleware.RequestLogger(&redactingFormatter{
		next:   &chiMiddleware.DefaultLogFormatter{Logger: logger},
		params: sensitiveParams,
	})
}

type redactingFormatter struct {
	next   chiMiddleware.LogFormatter
	params []string
}

// NewLogEntry hands the wrapped formatter a shallow copy of r whose URL and
// RequestURI carry the masked query. The request served downstream is untouched.
func (f *redactingFormatter) NewLogEntry(r *http.Request) chiMiddleware.LogEntry {
	if r.URL == nil || r.URL.RawQuery == "" {
		return f.next.NewLogEntry(r)
	}
	query, changed := redactQuery(r.URL.RawQuery, f.params)
	if !changed {
		return f.next.NewLogEntry(r)
	}

	masked := *r
	u := *r.URL
	u.RawQuery = query
	masked.URL = &u
	if path, _, ok := strings.Cut(r.RequestURI, "?"); ok {
		masked.RequestURI = path + "?" + query
	}
	return f.next.NewLogEntry(&masked)
}

// redactQuery masks the values of params in a raw query string, keeping
// parameter order and every other byte intact.
func redactQuery(raw string, params []string) (string, bool) {
	parts := strings.Split(raw, "&")
	changed := false
	for i, part := range parts {
		key, _, _ := strings.Cut(part, "=")
		if name, err := url.QueryUnescape(key); err == nil {
			key = name
		}
		for _, p := range params {
			if key == p {
				parts[i] = p + "=" + redacted
				changed = true
				break
			}
		}
	}
	return strings.Join(parts, "&"), changed
}
