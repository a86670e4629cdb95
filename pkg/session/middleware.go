package session

import (
	"log/slog"
	"net/http"

	"github.com/tendant/simple-academy/pkg/errors"
)

// Middleware rejects requests without a valid session and stores the
// Principal in the request context otherwise
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := a.Authenticate(r.Header.Get("Authorization"))
		if err != nil {
			slog.Debug("Rejected unauthenticated request", "path", r.URL.Path, "code", errors.GetCode(err))
			errors.Render(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	})
}

// UserKey returns the authenticated user id for per-user rate limiting.
// It must run after Middleware; anonymous requests yield "".
func UserKey(r *http.Request) string {
	if p := FromContext(r.Context()); p != nil {
		return p.UserID.String()
	}
	return ""
}
