package tokencodec

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Purpose discriminates the token families sharing one signing key
type Purpose string

const (
	PurposeSession           Purpose = "session"
	PurposeEmailVerification Purpose = "email_verification"
	PurposeCourseAccess      Purpose = "course_access"
)

// Valid reports whether p is one of the known purposes
func (p Purpose) Valid() bool {
	switch p {
	case PurposeSession, PurposeEmailVerification, PurposeCourseAccess:
		return true
	}
	return false
}

// Claims is the single payload shape for every token the service signs.
// Subject holds the identity id.
type Claims struct {
	Email         string  `json:"email,omitempty"`
	Name          string  `json:"name,omitempty"`
	EmailVerified bool    `json:"email_verified,omitempty"`
	Purpose       Purpose `json:"purpose"`
	CourseRef     string  `json:"course_ref,omitempty"`
	jwt.RegisteredClaims
}

// ExpiresAtTime returns the exp claim as a time.Time, zero if absent
func (c *Claims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time.UTC()
}

// IssuedAtTime returns the iat claim as a time.Time, zero if absent
func (c *Claims) IssuedAtTime() time.Time {
	if c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time.UTC()
}
