package middleware

import (
	"net"
	"net/http"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/fcs-sru-endpoint/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/fcs-sru-endpoint/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/fcs-sru-endpoint/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/fcs-sru-endpoint/pkg/ratelimit"
)

// RateLimit rejects clients that exceed the limiter's budget with 429.
// Health probes are never limited. m may be nil.
func RateLimit(limiter *ratelimit.Limiter, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/health") {
				next.ServeHTTP(w, r)
				return
			}
			client := ClientAddr(r)
			if !limiter.Allow(client) {
				if m != nil {
					m.RateLimitedTotal.Inc()
				}
				logger.FromContext(r.Context()).Warn("rate limit exceeded", "client", client)
				w.Header().Set("Retry-After", "60")
				apperrors.Write(w, apperrors.New(apperrors.ErrRateLimited, http.StatusTooManyRequests, "rate limit exceeded"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientAddr returns the first X-Forwarded-For hop, else the host part of
// RemoteAddr.
func ClientAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
