package audit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-academy/pkg/session"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Record(_ context.Context, e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func withPrincipal(id uuid.UUID) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := session.WithPrincipal(r.Context(), &session.Principal{UserID: id})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func TestHandler_RecordsAuthenticatedWrites(t *testing.T) {
	sink := &recordingSink{}
	userID := uuid.New()
	m := NewMiddleware(Config{Sink: sink, CourseParam: "course"})

	r := chi.NewRouter()
	r.With(withPrincipal(userID), m.Handler).Post("/courses/{course}/purchase", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	r.With(withPrincipal(userID), m.Handler).Get("/courses/{course}/access", func(w http.ResponseWriter, r *http.Request) {})
	r.With(m.Handler).Post("/auth/login", func(w http.ResponseWriter, r *http.Request) {})

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodPost, "/courses/7/purchase", nil),
		httptest.NewRequest(http.MethodGet, "/courses/7/access", nil),
		httptest.NewRequest(http.MethodPost, "/auth/login", nil),
	} {
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	require.Len(t, sink.events, 1)
	e := sink.events[0]
	assert.Equal(t, userID, e.UserID)
	assert.Equal(t, http.MethodPost, e.Method)
	assert.Equal(t, "/courses/7/purchase", e.URI)
	assert.Equal(t, "7", e.Course)
	assert.Equal(t, http.StatusCreated, e.Status)
}

func TestHandler_ReadsToo(t *testing.T) {
	sink := &recordingSink{}
	m := NewMiddleware(Config{Sink: sink, ReadsToo: true})

	h := withPrincipal(uuid.New())(m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/me", nil))

	require.Len(t, sink.events, 1)
	assert.Equal(t, http.StatusOK, sink.events[0].Status)
}

func TestEvent_WithMetadata(t *testing.T) {
	e := Event{}.WithMetadata("revoked", 2)
	assert.Equal(t, 2, e.Metadata["revoked"])
}
