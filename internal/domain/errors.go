package domain

import "errors"

var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists indicates a unique constraint violation.
	ErrAlreadyExists = errors.New("already exists")

	ErrNotConfigured   = errors.New("telegram integration is not configured")
	ErrAlreadyLinked   = errors.New("telegram is already linked to this account")
	ErrIdentifierTaken = errors.New("telegram account is already linked to another user")
	ErrNotLinked       = errors.New("no telegram account is linked")
	ErrInvalidClaim    = errors.New("invalid telegram authentication data")
)
