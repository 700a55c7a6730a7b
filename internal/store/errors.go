package store

import "errors"

var (
	// ErrRecordNotFound wraps GORM's not found error for consistency
	ErrRecordNotFound = errors.New("record not found")

	// ErrUsernameConflict is returned when a username already exists
	ErrUsernameConflict = errors.New("username already exists")

	// ErrTokenAlreadyRevoked is returned by the conditional revoke when no
	// active row matched (0 rows updated): the token was consumed or revoked
	// by a concurrent request, or never existed with that kind.
	ErrTokenAlreadyRevoked = errors.New("token already revoked")
)
