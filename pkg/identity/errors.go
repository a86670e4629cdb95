package identity

import (
	"github.com/tendant/simple-academy/pkg/errors"
)

var (
	// ErrIdentityNotFound is returned when no identity matches the lookup key
	ErrIdentityNotFound = errors.New(errors.ErrCodeUnknownUser, "identity not found")

	// ErrEmailTaken is returned when creating an identity whose email is already registered
	ErrEmailTaken = errors.New(errors.ErrCodeAlreadyExists, "email already registered")
)
