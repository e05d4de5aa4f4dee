// Package shield holds the HTTP middleware placed in front of the MCP
// streamable endpoint, /healthz and /metrics.
//
// Usage:
//
//	r := chi.NewRouter()
//	for _, mw := range shield.DefaultStack(logger, 4<<20) {
//	    r.Use(mw)
//	}
package shield

import (
	"log/slog"
	"net/http"
)

// DefaultStack returns the middleware applied to the docmcp HTTP router.
// Order: HeadToGet, SecurityHeaders, MaxBody, RequestID.
func DefaultStack(logger *slog.Logger, maxBody int64) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		HeadToGet,
		SecurityHeaders(DefaultHeaders()),
		MaxBody(maxBody),
		RequestID(logger),
	}
}
