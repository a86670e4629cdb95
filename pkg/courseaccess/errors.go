package courseaccess

import (
	"github.com/tendant/simple-academy/pkg/errors"
)

var (
	ErrTokenNotFound = errors.New(errors.ErrCodeNotFound, "access link not found")
	ErrTokenExpired  = errors.New(errors.ErrCodeTokenExpired, "access link has expired")
	ErrAlreadyUsed   = errors.New(errors.ErrCodeAlreadyUsed, "access link has reached its usage limit")
	ErrInvalidToken  = errors.New(errors.ErrCodeInvalidToken, "access link is invalid")
	ErrTokenMismatch = errors.New(errors.ErrCodeTokenMismatch, "access link does not belong to this user or course")
)
