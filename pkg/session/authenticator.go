package session

import (
	stderrors "errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/simple-academy/pkg/errors"
	"github.com/tendant/simple-academy/pkg/identity"
	"github.com/tendant/simple-academy/pkg/tokencodec"
)

// DefaultSessionExpiry is the lifetime of a session token
const DefaultSessionExpiry = 7 * 24 * time.Hour

const bearerPrefix = "Bearer "

var (
	ErrMissingToken    = errors.New(errors.ErrCodeMissingToken, "authorization header is missing")
	ErrMalformedHeader = errors.New(errors.ErrCodeMalformedHeader, "authorization header must be of the form 'Bearer <token>'")
	ErrInvalidToken    = errors.New(errors.ErrCodeInvalidToken, "session token is invalid")
	ErrSessionExpired  = errors.New(errors.ErrCodeSessionExpired, "session has expired, please log in again")
)

// Authenticator issues and validates bearer session tokens
type Authenticator struct {
	codec  *tokencodec.Codec
	expiry time.Duration
}

type Option func(*Authenticator)

// WithSessionExpiry sets the lifetime of issued session tokens
func WithSessionExpiry(expiry time.Duration) Option {
	return func(a *Authenticator) {
		if expiry > 0 {
			a.expiry = expiry
		}
	}
}

func NewAuthenticator(codec *tokencodec.Codec, opts ...Option) *Authenticator {
	a := &Authenticator{
		codec:  codec,
		expiry: DefaultSessionExpiry,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Now reports the time on the codec's clock
func (a *Authenticator) Now() time.Time {
	return a.codec.Now()
}

// Issue signs a session token for ident, caching its display fields
func (a *Authenticator) Issue(ident *identity.Identity) (string, time.Time, error) {
	claims := tokencodec.Claims{
		Email:         ident.Email,
		Name:          ident.Name,
		EmailVerified: ident.IsVerified,
		Purpose:       tokencodec.PurposeSession,
	}
	claims.Subject = ident.ID.String()

	token, expiresAt, err := a.codec.Sign(claims, a.expiry)
	if err != nil {
		return "", time.Time{}, errors.InternalWrap(err, "failed to issue session token")
	}
	return token, expiresAt, nil
}

// Authenticate validates an Authorization header value of the exact form "Bearer <token>"
func (a *Authenticator) Authenticate(header string) (*Principal, error) {
	if header == "" {
		return nil, ErrMissingToken
	}
	token, ok := strings.CutPrefix(header, bearerPrefix)
	if !ok || token == "" || strings.ContainsAny(token, " \t") {
		return nil, ErrMalformedHeader
	}

	claims, err := a.codec.Verify(token, tokencodec.PurposeSession)
	if err != nil {
		if stderrors.Is(err, tokencodec.ErrExpired) {
			return nil, ErrSessionExpired
		}
		return nil, ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		slog.Warn("Session token carries a non-uuid subject", "sub", claims.Subject)
		return nil, ErrInvalidToken
	}

	return &Principal{
		UserID:        userID,
		Email:         claims.Email,
		Name:          claims.Name,
		EmailVerified: claims.EmailVerified,
		ExpiresAt:     claims.ExpiresAtTime(),
	}, nil
}
