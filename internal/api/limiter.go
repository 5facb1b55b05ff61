package api

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"habittracker/internal/config"
	"habittracker/internal/domain"

	"github.com/rs/zerolog"
)

type rateLimit struct {
	limiter domain.RateLimiter
	limit   int
	window  time.Duration
	logger  *zerolog.Logger
}

func newRateLimit(limiter domain.RateLimiter, cfg config.APIRateLimitConfig, logger *zerolog.Logger) *rateLimit {
	return &rateLimit{
		limiter: limiter,
		limit:   cfg.Requests,
		window:  time.Duration(cfg.Window) * time.Second,
		logger:  logger,
	}
}

// Wrap rejects requests over the per-client budget with 429.
// Limiter failures let the request through.
func (l *rateLimit) Wrap(next http.Handler) http.Handler {
	if l.limiter == nil || l.limit <= 0 || l.window <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, err := l.limiter.Allow(r.Context(), clientKey(r), l.limit, l.window)
		if err != nil {
			l.logger.Warn().Err(err).Msg("rate limiter unavailable")
			next.ServeHTTP(w, r)
			return
		}
		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(l.window.Seconds())))
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientKey is the remote host; the limiter runs before authentication.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return "ip:" + host
	}
	if r.RemoteAddr != "" {
		return "ip:" + r.RemoteAddr
	}
	return "unknown"
}
