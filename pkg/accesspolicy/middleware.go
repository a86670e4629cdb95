package accesspolicy

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tendant/simple-academy/pkg/errors"
	"github.com/tendant/simple-academy/pkg/identity"
	"github.com/tendant/simple-academy/pkg/session"
)

type contextKey struct {
	name string
}

func (k *contextKey) String() string {
	return "accesspolicy context value " + k.name
}

var identityKey = &contextKey{"Identity"}

// IdentityFromContext returns the identity loaded by the gate middleware, or nil
func IdentityFromContext(ctx context.Context) *identity.Identity {
	ident, _ := ctx.Value(identityKey).(*identity.Identity)
	return ident
}

// WithIdentity returns a copy of ctx carrying ident
func WithIdentity(ctx context.Context, ident *identity.Identity) context.Context {
	return context.WithValue(ctx, identityKey, ident)
}

// Authenticated rejects requests without a valid session. The principal and
// the freshly loaded identity are stored in the request context.
func (g *Gate) Authenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r, _, err := g.resolve(r)
		if err != nil {
			errors.Render(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// VerifiedEmail additionally requires a verified email address
func (g *Gate) VerifiedEmail(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r, ident, err := g.resolve(r)
		if err == nil {
			err = CheckVerified(ident)
		}
		if err != nil {
			errors.Render(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CourseOwnership requires that the course named by the chi URL parameter
// param was purchased
func (g *Gate) CourseOwnership(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r, ident, err := g.resolve(r)
			if err == nil {
				err = CheckOwnership(ident, chi.URLParam(r, param))
			}
			if err != nil {
				if errors.IsCode(err, errors.ErrCodeNotEntitled) {
					slog.Info("Course access denied", "user_id", ident.ID, "course", chi.URLParam(r, param))
				}
				errors.Render(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// resolve reuses the principal and identity already in the context, so
// stacked gate middlewares read the store once per request
func (g *Gate) resolve(r *http.Request) (*http.Request, *identity.Identity, error) {
	ctx := r.Context()
	if ident := IdentityFromContext(ctx); ident != nil {
		return r, ident, nil
	}

	principal := session.FromContext(ctx)
	if principal == nil {
		var err error
		principal, err = g.authenticator.Authenticate(r.Header.Get("Authorization"))
		if err != nil {
			return r, nil, err
		}
		ctx = session.WithPrincipal(ctx, principal)
	}

	ident, err := g.LoadIdentity(ctx, principal)
	if err != nil {
		return r, nil, err
	}
	return r.WithContext(WithIdentity(ctx, ident)), ident, nil
}
