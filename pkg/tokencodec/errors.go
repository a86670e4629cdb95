package tokencodec

import (
	"github.com/tendant/simple-academy/pkg/errors"
)

var (
	// ErrMissingSecret is returned when the codec is built without a signing secret
	ErrMissingSecret = errors.New(errors.ErrCodeInternal, "token signing secret is not configured")

	// ErrExpired is returned when an authentic token is past its exp claim
	ErrExpired = errors.New(errors.ErrCodeTokenExpired, "token has expired")

	// ErrMalformed is returned for bad signatures, unexpected algorithms,
	// unknown purposes and anything else that makes a token unusable
	ErrMalformed = errors.New(errors.ErrCodeInvalidToken, "token is malformed or has an invalid signature")
)
