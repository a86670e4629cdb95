package router

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"

	"github.com/tendant/simple-academy/pkg/accesspolicy"
	"github.com/tendant/simple-academy/pkg/audit"
	accountapi "github.com/tendant/simple-academy/pkg/account/api"
	"github.com/tendant/simple-academy/pkg/config"
	courseaccessapi "github.com/tendant/simple-academy/pkg/courseaccess/api"
	emailverificationapi "github.com/tendant/simple-academy/pkg/emailverification/api"
	"github.com/tendant/simple-academy/pkg/ratelimit"
	"github.com/tendant/simple-academy/pkg/session"
)

// Config contains everything needed to mount the academy API
type Config struct {
	APIPrefix string
	CORS      config.CORSConfig

	// RateLimit is optional. When nil no request limits are applied.
	RateLimit *ratelimit.Middleware
	// Audit is optional and records authenticated writes
	Audit     *audit.Middleware

	Authenticator *session.Authenticator
	Gate          *accesspolicy.Gate

	VerificationHandle *emailverificationapi.Handler
	CourseAccessHandle *courseaccessapi.Handler
	AccountHandle      *accountapi.Handler
}

// SetupRoutes mounts the API below cfg.APIPrefix. All middleware lives on the
// prefixed subrouter, so r may already carry routes such as health checks.
func SetupRoutes(r chi.Router, cfg Config) {
	prefix := cfg.APIPrefix
	if prefix == "" {
		prefix = "/api"
	}

	r.Route(prefix, func(api chi.Router) {
		api.Use(middleware.RealIP)
		api.Use(SecurityHeaders)
		api.Use(cors.Handler(corsOptions(cfg.CORS)))
		if cfg.RateLimit != nil {
			api.Use(cfg.RateLimit.Handler)
		}

		authenticated := chain(cfg.Gate.Authenticated, perUser(cfg.RateLimit), auditHandler(cfg.Audit))
		withSession := chain(cfg.Authenticator.Middleware, perUser(cfg.RateLimit), auditHandler(cfg.Audit))

		api.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			render.JSON(w, r, map[string]string{"status": "ok"})
		})

		cfg.AccountHandle.Routes(api, authenticated, strict(cfg.RateLimit, "auth"))
		cfg.VerificationHandle.Routes(api, withSession, strict(cfg.RateLimit, "resend"))
		cfg.CourseAccessHandle.Routes(api, authenticated, strict(cfg.RateLimit, "access"))

		api.Route("/courses/{"+courseaccessapi.CourseParam+"}", func(r chi.Router) {
			r.Use(authenticated)
			r.Post("/purchase", cfg.AccountHandle.Purchase)
			r.Delete("/purchase", cfg.AccountHandle.Refund)

			r.Group(func(r chi.Router) {
				r.Use(cfg.Gate.CourseOwnership(courseaccessapi.CourseParam))
				r.Get("/access", cfg.AccountHandle.CheckAccess)
				cfg.CourseAccessHandle.CourseRoutes(r)
			})

			r.Group(func(r chi.Router) {
				r.Use(cfg.Gate.VerifiedEmail)
				r.Use(cfg.Gate.CourseOwnership(courseaccessapi.CourseParam))
				r.Post("/complete", cfg.AccountHandle.Complete)
			})
		})
	})

	slog.Info("API routes mounted", "prefix", prefix, "cors_origins", cfg.CORS.Origins(), "rate_limited", cfg.RateLimit != nil)
}

// SecurityHeaders sets the response headers every API reply carries
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

func corsOptions(c config.CORSConfig) cors.Options {
	return cors.Options{
		AllowedOrigins:   c.Origins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
		MaxAge:           c.MaxAge,
	}
}

func perUser(m *ratelimit.Middleware) func(http.Handler) http.Handler {
	if m == nil {
		return nil
	}
	return m.PerUser
}

func auditHandler(m *audit.Middleware) func(http.Handler) http.Handler {
	if m == nil {
		return nil
	}
	return m.Handler
}

func strict(m *ratelimit.Middleware, name string) func(http.Handler) http.Handler {
	if m == nil {
		return nil
	}
	return m.Strict(name)
}

// chain composes middlewares in order, skipping nil entries
func chain(mws ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		for i := len(mws) - 1; i >= 0; i-- {
			if mws[i] != nil {
				next = mws[i](next)
			}
		}
		return next
	}
}
