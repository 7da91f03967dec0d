// Package ratelimit bounds how often a single client may hit a route.
package ratelimit

import (
	"net/http"
	"time"

	"github.com/go-chi/httplog"
	"github.com/go-chi/httprate"
	"github.com/go-chi/render"
)

// TooManyRequests is the error body sent to limited clients.
const TooManyRequests = "Too many requests from this IP, please try again later."

// Options configures Middleware.
type Options struct {
	Limit  int
	Window time.Duration
	// Counter stores the per-client counts. Nil counts in process memory.
	Counter httprate.LimitCounter
}

var headers = httprate.ResponseHeaders{
	Limit:      "RateLimit-Limit",
	Remaining:  "RateLimit-Remaining",
	Reset:      "RateLimit-Reset",
	RetryAfter: "Retry-After",
}

// Middleware limits requests per client IP over a sliding window. Counter
// failures let the request through.
func Middleware(opts Options) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		options := []httprate.Option{
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithResponseHeaders(headers),
			httprate.WithLimitHandler(limited),
			httprate.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
				oplog := httplog.LogEntry(r.Context())
				oplog.Error().Err(err).Str("remote_addr", r.RemoteAddr).Msg("rate limiter unavailable")
				next.ServeHTTP(w, r)
			}),
		}
		if opts.Counter != nil {
			options = append(options, httprate.WithLimitCounter(opts.Counter))
		}

		return httprate.Limit(opts.Limit, opts.Window, options...)(next)
	}
}

func limited(w http.ResponseWriter, r *http.Request) {
	oplog := httplog.LogEntry(r.Context())
	oplog.Warn().Str("remote_addr", r.RemoteAddr).Str("path", r.URL.Path).Msg("rate limit exceeded")

	render.Status(r, http.StatusTooManyRequests)
	render.JSON(w, r, map[string]string{"error": TooManyRequests})
}
