package tokencodec

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Codec signs and verifies HS256 tokens with a process-wide secret
type Codec struct {
	secret   []byte
	issuer   string
	audience string
	now      func() time.Time
}

// Option configures a Codec
type Option func(*Codec)

// WithIssuer sets the iss claim written on sign and required on verify
func WithIssuer(issuer string) Option {
	return func(c *Codec) {
		c.issuer = issuer
	}
}

// WithAudience sets the aud claim written on sign and required on verify
func WithAudience(audience string) Option {
	return func(c *Codec) {
		c.audience = audience
	}
}

// WithNow overrides the clock, mainly for tests
func WithNow(now func() time.Time) Option {
	return func(c *Codec) {
		c.now = now
	}
}

// NewCodec creates a codec. An empty secret is rejected so the process
// can refuse to start instead of issuing unsigned or trivially forged tokens.
func NewCodec(secret string, opts ...Option) (*Codec, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}

	c := &Codec{
		secret: []byte(secret),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Now returns the codec clock reading
func (c *Codec) Now() time.Time {
	return c.now()
}

// Sign fills in iat, exp, jti, iss and aud and returns the signed token with its expiry
func (c *Codec) Sign(claims Claims, ttl time.Duration) (string, time.Time, error) {
	if !claims.Purpose.Valid() {
		return "", time.Time{}, fmt.Errorf("cannot sign token with purpose %q", claims.Purpose)
	}
	if claims.Subject == "" {
		return "", time.Time{}, fmt.Errorf("cannot sign %s token without subject", claims.Purpose)
	}
	if ttl <= 0 {
		return "", time.Time{}, fmt.Errorf("invalid token ttl %s", ttl)
	}

	now := c.now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	claims.ID = uuid.New().String()
	if c.issuer != "" {
		claims.Issuer = c.issuer
	}
	if c.audience != "" {
		claims.Audience = jwt.ClaimStrings{c.audience}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		slog.Error("Failed to sign token", "purpose", claims.Purpose, "err", err)
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, claims.ExpiresAt.Time, nil
}

// Verify checks signature, algorithm, issuer, audience, expiry and purpose.
// It returns ErrExpired only when the token is authentic and of the expected
// purpose but past its exp claim; every other failure is ErrMalformed.
func (c *Codec) Verify(tokenStr string, purpose Purpose) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, c.keyFunc, c.parserOptions()...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) && !claimsRejected(err) && claims.Purpose == purpose {
			return nil, ErrExpired
		}
		slog.Debug("Token rejected", "purpose", purpose, "err", err)
		return nil, ErrMalformed
	}

	if claims.Purpose != purpose {
		slog.Debug("Token purpose mismatch", "expected", purpose, "got", claims.Purpose)
		return nil, ErrMalformed
	}
	return claims, nil
}

// DecodeUnsafe returns the payload without checking signature or expiry.
// The result must never drive an authorization decision.
func (c *Codec) DecodeUnsafe(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return nil, ErrMalformed
	}
	if !claims.Purpose.Valid() {
		return nil, ErrMalformed
	}
	return claims, nil
}

func (c *Codec) keyFunc(token *jwt.Token) (interface{}, error) {
	return c.secret, nil
}

func (c *Codec) parserOptions() []jwt.ParserOption {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}
	if c.audience != "" {
		opts = append(opts, jwt.WithAudience(c.audience))
	}
	return opts
}

// claimsRejected reports validation failures other than expiry, so an
// expired token minted for another issuer or audience stays malformed.
func claimsRejected(err error) bool {
	return errors.Is(err, jwt.ErrTokenInvalidIssuer) ||
		errors.Is(err, jwt.ErrTokenInvalidAudience) ||
		errors.Is(err, jwt.ErrTokenNotValidYet) ||
		errors.Is(err, jwt.ErrTokenUsedBeforeIssued)
}
