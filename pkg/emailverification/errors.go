package emailverification

import (
	"github.com/tendant/simple-academy/pkg/errors"
)

var (
	// ErrEmailAlreadyVerified is returned when issuing a token for a verified identity
	ErrEmailAlreadyVerified = errors.New(errors.ErrCodeEmailAlreadyVerified, "email already verified")

	// ErrResendTooSoon is returned while the resend cooldown is running
	ErrResendTooSoon = errors.New(errors.ErrCodeRateLimited, "a verification email was sent recently, please wait before requesting another")

	// ErrInvalidToken is returned for forged, garbled or foreign tokens
	ErrInvalidToken = errors.New(errors.ErrCodeInvalidToken, "invalid verification token")

	// ErrTokenExpired is returned when the presented token and the stored one are both unusable
	ErrTokenExpired = errors.New(errors.ErrCodeTokenExpired, "verification link has expired, please request a new one")

	// ErrTokenSuperseded is returned when a newer token replaced the presented one
	ErrTokenSuperseded = errors.New(errors.ErrCodeTokenSuperseded, "a newer verification link was sent, please use the latest email")

	// ErrUnknownUser is returned when the token names an email with no account
	ErrUnknownUser = errors.New(errors.ErrCodeUnknownUser, "no account matches this verification link")
)
