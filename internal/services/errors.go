package services

import (
	"errors"
	"net/http"
	"strings"
)

// OAuth 2.0 error codes (RFC 6749 §5.2). Wrapped errors keep the code as the
// leading text, e.g. "invalid_grant: authorization code expired".
var (
	ErrInvalidRequest       = errors.New("invalid_request")
	ErrInvalidClient        = errors.New("invalid_client")
	ErrInvalidRedirectURI   = errors.New("invalid_redirect_uri")
	ErrInvalidGrant         = errors.New("invalid_grant")
	ErrUnsupportedGrantType = errors.New("unsupported_grant_type")
	ErrServerError          = errors.New("server_error")
)

// OAuthError is the wire form of a service error.
type OAuthError struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
	Status      int    `json:"-"`
}

// ToOAuthError maps a service error to the code and HTTP status reported to
// clients. Unknown errors and server errors never leak their detail.
func ToOAuthError(err error) OAuthError {
	var (
		code   string
		status = http.StatusBadRequest
	)
	switch {
	case errors.Is(err, ErrInvalidRedirectURI):
		// Reported as invalid_request: the URI is not safe to redirect to.
		return OAuthError{
			Code:        ErrInvalidRequest.Error(),
			Description: "redirect_uri does not match the registered value",
			Status:      status,
		}
	case errors.Is(err, ErrInvalidRequest):
		code = ErrInvalidRequest.Error()
	case errors.Is(err, ErrInvalidClient):
		// 400 unless the client authenticated with HTTP Basic; the token
		// handler upgrades that case to 401.
		code = ErrInvalidClient.Error()
	case errors.Is(err, ErrInvalidGrant):
		code = ErrInvalidGrant.Error()
	case errors.Is(err, ErrUnsupportedGrantType):
		code = ErrUnsupportedGrantType.Error()
	default:
		return OAuthError{
			Code:        ErrServerError.Error(),
			Description: "internal server error",
			Status:      http.StatusInternalServerError,
		}
	}

	desc := strings.TrimPrefix(err.Error(), code)
	desc = strings.TrimPrefix(desc, ": ")
	return OAuthError{Code: code, Description: desc, Status: status}
}
