package ratelimit

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/tendant/simple-academy/pkg/config"
	"github.com/tendant/simple-academy/pkg/errors"
)

// UserKeyFunc returns the authenticated user id for a request, or "" for anonymous ones
type UserKeyFunc func(r *http.Request) string

// Middleware applies global, per-IP and per-user limits
type Middleware struct {
	config        config.RateLimitConfig
	globalLimiter *RateLimiter
	ipLimiter     *RateLimiter
	userLimiter   *RateLimiter
	userKey       UserKeyFunc
	limiters      []*RateLimiter
}

// NewMiddleware creates the rate limiting middleware. userKey may be nil.
func NewMiddleware(cfg config.RateLimitConfig, userKey UserKeyFunc) *Middleware {
	m := &Middleware{config: cfg, userKey: userKey}

	if cfg.GlobalEnabled {
		m.globalLimiter = m.track(NewRateLimiter(cfg.GlobalBurst, cfg.GlobalRate, cfg.BucketTTL))
	}
	if cfg.PerIPEnabled {
		m.ipLimiter = m.track(NewRateLimiter(cfg.PerIPBurst, cfg.PerIPRate, cfg.BucketTTL))
	}
	if cfg.PerUserEnabled && userKey != nil {
		m.userLimiter = m.track(NewRateLimiter(cfg.PerUserBurst, cfg.PerUserRate, cfg.BucketTTL))
	}
	return m
}

func (m *Middleware) track(rl *RateLimiter) *RateLimiter {
	m.limiters = append(m.limiters, rl)
	return rl
}

// Handler enforces the global and per-IP limits
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.globalLimiter != nil && !m.globalLimiter.Allow("global") {
			m.rateLimitExceeded(w, r, "global")
			return
		}

		ip := ClientIP(r)
		if m.ipLimiter != nil && ip != "" && !m.ipLimiter.Allow(ip) {
			m.rateLimitExceeded(w, r, "ip")
			return
		}

		if m.config.IncludeHeaders && m.ipLimiter != nil {
			w.Header().Set("X-RateLimit-Limit-IP", strconv.Itoa(m.config.PerIPBurst))
		}
		next.ServeHTTP(w, r)
	})
}

// PerUser enforces the per-user limit. Mount it after the session middleware.
func (m *Middleware) PerUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.userLimiter != nil {
			if userID := m.userKey(r); userID != "" {
				if !m.userLimiter.Allow(userID) {
					m.rateLimitExceeded(w, r, "user")
					return
				}
				if m.config.IncludeHeaders {
					w.Header().Set("X-RateLimit-Limit-User", strconv.Itoa(m.config.PerUserBurst))
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

// Strict returns a tighter per-IP limit for public endpoints such as login or
// resend, keyed by client IP and route so endpoints do not share a bucket.
func (m *Middleware) Strict(name string) func(http.Handler) http.Handler {
	limiter := m.track(NewRateLimiter(m.config.AuthBurst, m.config.AuthRate, m.config.BucketTTL))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(ClientIP(r) + "|" + name) {
				m.rateLimitExceeded(w, r, name)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Close stops every background sweep
func (m *Middleware) Close() {
	for _, rl := range m.limiters {
		rl.Close()
	}
}

func (m *Middleware) rateLimitExceeded(w http.ResponseWriter, r *http.Request, limitType string) {
	slog.Warn("Rate limit exceeded",
		"type", limitType,
		"ip", ClientIP(r),
		"path", r.URL.Path,
		"method", r.Method,
	)
	w.Header().Set("Retry-After", "60")
	errors.Render(w, r, errors.RateLimited("60s").WithDetail("limit", limitType))
}

// ClientIP extracts the caller address, preferring proxy headers
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
