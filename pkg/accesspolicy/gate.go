package accesspolicy

import (
	"context"
	stderrors "errors"
	"log/slog"

	"github.com/tendant/simple-academy/pkg/errors"
	"github.com/tendant/simple-academy/pkg/identity"
	"github.com/tendant/simple-academy/pkg/session"
)

var (
	ErrEmailNotVerified = errors.New(errors.ErrCodeEmailNotVerified, "email address must be verified first")
	ErrNotEntitled      = errors.New(errors.ErrCodeNotEntitled, "course has not been purchased")
)

// Gate combines session authentication with checks against the stored
// identity. Token claims are never trusted for verification or purchase
// state; the identity is always re-read.
type Gate struct {
	authenticator *session.Authenticator
	repo          identity.Repository
}

func NewGate(authenticator *session.Authenticator, repo identity.Repository) *Gate {
	return &Gate{authenticator: authenticator, repo: repo}
}

// RequireAuthenticated validates the Authorization header value
func (g *Gate) RequireAuthenticated(header string) (*session.Principal, error) {
	return g.authenticator.Authenticate(header)
}

// RequireVerifiedEmail authenticates and then checks the stored verification flag
func (g *Gate) RequireVerifiedEmail(ctx context.Context, header string) (*session.Principal, *identity.Identity, error) {
	principal, ident, err := g.authenticated(ctx, header)
	if err != nil {
		return nil, nil, err
	}
	if err := CheckVerified(ident); err != nil {
		return nil, nil, err
	}
	return principal, ident, nil
}

// RequireCourseOwnership authenticates and then checks that courseRef was purchased
func (g *Gate) RequireCourseOwnership(ctx context.Context, header, courseRef string) (*session.Principal, *identity.Identity, error) {
	principal, ident, err := g.authenticated(ctx, header)
	if err != nil {
		return nil, nil, err
	}
	if err := CheckOwnership(ident, courseRef); err != nil {
		return nil, nil, err
	}
	return principal, ident, nil
}

// LoadIdentity reads the authoritative record for an authenticated principal.
// A session whose identity no longer exists is treated as an invalid token.
func (g *Gate) LoadIdentity(ctx context.Context, principal *session.Principal) (*identity.Identity, error) {
	ident, err := g.repo.GetByID(ctx, principal.UserID)
	if err != nil {
		if stderrors.Is(err, identity.ErrIdentityNotFound) {
			slog.Warn("Session refers to a missing identity", "user_id", principal.UserID)
			return nil, session.ErrInvalidToken
		}
		return nil, errors.InternalWrap(err, "failed to load identity")
	}
	return ident, nil
}

func (g *Gate) authenticated(ctx context.Context, header string) (*session.Principal, *identity.Identity, error) {
	principal, err := g.authenticator.Authenticate(header)
	if err != nil {
		return nil, nil, err
	}
	ident, err := g.LoadIdentity(ctx, principal)
	if err != nil {
		return nil, nil, err
	}
	return principal, ident, nil
}

// CheckVerified fails with EMAIL_NOT_VERIFIED unless ident is verified
func CheckVerified(ident *identity.Identity) error {
	if !ident.IsVerified {
		return ErrEmailNotVerified
	}
	return nil
}

// CheckOwnership fails with NOT_ENTITLED unless ident purchased courseRef
func CheckOwnership(ident *identity.Identity, courseRef string) error {
	if courseRef == "" || !ident.HasPurchased(courseRef) {
		return ErrNotEntitled.WithDetail("course", courseRef)
	}
	return nil
}
