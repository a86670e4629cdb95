// Package audit provides middleware for auditing authenticated HTTP requests
package audit

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/tendant/simple-academy/pkg/session"
)

// Event is one audited request
type Event struct {
	UserID    uuid.UUID
	Method    string
	URI       string
	Course    string
	Status    int
	Timestamp time.Time
	Duration  time.Duration
	Metadata  map[string]interface{}
}

// WithMetadata adds metadata to the audit event
func (e Event) WithMetadata(key string, value interface{}) Event {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// Sink receives audit events
type Sink interface {
	Record(ctx context.Context, event Event)
}

// LogSink writes events through a slog.Logger
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Record(ctx context.Context, e Event) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []slog.Attr{
		slog.String("user_id", e.UserID.String()),
		slog.String("method", e.Method),
		slog.String("uri", e.URI),
		slog.Int("status", e.Status),
		slog.Duration("duration", e.Duration),
	}
	if e.Course != "" {
		attrs = append(attrs, slog.String("course", e.Course))
	}
	for k, v := range e.Metadata {
		attrs = append(attrs, slog.Any(k, v))
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "audit", attrs...)
}

// Config holds the configuration for the audit middleware
type Config struct {
	Sink Sink
	// CourseParam names the chi URL parameter copied into Event.Course
	CourseParam string
	// ReadsToo audits GET and HEAD requests as well
	ReadsToo bool
}

// Middleware handles HTTP request auditing
type Middleware struct {
	config Config
}

// NewMiddleware creates a new audit middleware instance
func NewMiddleware(config Config) *Middleware {
	if config.Sink == nil {
		config.Sink = LogSink{}
	}
	return &Middleware{config: config}
}

// Handler audits requests carrying a session principal. Mount it after the
// session or gate middleware; anonymous requests pass through unrecorded.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal := session.FromContext(r.Context())
		if principal == nil || (!m.config.ReadsToo && isRead(r.Method)) {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		event := Event{
			UserID:    principal.UserID,
			Method:    r.Method,
			URI:       r.URL.RequestURI(),
			Status:    status,
			Timestamp: start.UTC(),
			Duration:  time.Since(start),
		}
		if m.config.CourseParam != "" {
			event.Course = chi.URLParam(r, m.config.CourseParam)
		}
		m.config.Sink.Record(r.Context(), event)
	})
}

func isRead(method string) bool {
	return method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions
}
