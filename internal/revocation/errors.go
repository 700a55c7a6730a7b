package revocation

import "errors"

// ErrBackendUnavailable wraps any failure talking to the primary backend.
var ErrBackendUnavailable = errors.New("revocation backend unavailable")
