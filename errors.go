package social

import (
	"net/http"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeCredentialsNotConfigured = "social_credentials_not_configured"
	TextCodeAdapterNotRegistered     = "social_adapter_not_registered"
	TextCodeInvalidState             = "social_invalid_state"
	TextCodeStateExpired             = "social_state_expired"
	TextCodeNotImplemented           = "social_not_implemented"
	TextCodePlatformUnauthorized     = "social_platform_unauthorized"
	TextCodePlatformForbidden        = "social_platform_forbidden"
	TextCodePlatformRateLimited      = "social_platform_rate_limited"
	TextCodePlatformAPI              = "social_platform_api_error"
	TextCodeAccountNotFound          = "social_account_not_found"
	TextCodeNoRefreshToken           = "social_no_refresh_token"
	TextCodeTokenExpired             = "social_token_expired"
)

// ErrCredentialsNotConfigured is returned when neither the persisted OAuth
// configuration nor the environment provide credentials for a platform.
var ErrCredentialsNotConfigured = errors.New("oauth credentials not configured", errors.CategoryInternal).
	WithTextCode(TextCodeCredentialsNotConfigured).
	WithCode(errors.CodeInternal)

// ErrAdapterNotRegistered is returned by the registry for unknown platforms.
var ErrAdapterNotRegistered = errors.New("adapter not registered", errors.CategoryNotFound).
	WithTextCode(TextCodeAdapterNotRegistered).
	WithCode(errors.CodeNotFound)

// ErrInvalidState is returned when the OAuth state is missing, unknown or does
// not match the callback.
var ErrInvalidState = errors.New("invalid oauth state", errors.CategoryBadInput).
	WithTextCode(TextCodeInvalidState).
	WithCode(errors.CodeBadRequest)

// ErrStateExpired is returned when the OAuth state outlived its TTL.
var ErrStateExpired = errors.New("oauth state expired", errors.CategoryBadInput).
	WithTextCode(TextCodeStateExpired).
	WithCode(errors.CodeBadRequest)

// ErrNotImplemented is returned for operations a platform does not support.
var ErrNotImplemented = errors.New("operation not implemented", errors.CategoryOperation).
	WithTextCode(TextCodeNotImplemented).
	WithCode(http.StatusNotImplemented)

// ErrPlatformUnauthorized maps a platform HTTP 401.
var ErrPlatformUnauthorized = errors.New("platform authentication failed", errors.CategoryAuth).
	WithTextCode(TextCodePlatformUnauthorized).
	WithCode(errors.CodeUnauthorized)

// ErrPlatformForbidden maps a platform HTTP 403.
var ErrPlatformForbidden = errors.New("platform permission denied", errors.CategoryAuthz).
	WithTextCode(TextCodePlatformForbidden).
	WithCode(errors.CodeForbidden)

// ErrPlatformRateLimited maps a platform HTTP 429.
var ErrPlatformRateLimited = errors.New("platform rate limit exceeded", errors.CategoryOperation).
	WithTextCode(TextCodePlatformRateLimited).
	WithCode(http.StatusTooManyRequests)

// ErrPlatformAPI covers every other failed platform call.
var ErrPlatformAPI = errors.New("platform api error", errors.CategoryOperation).
	WithTextCode(TextCodePlatformAPI).
	WithCode(http.StatusBadGateway)

// ErrAccountNotFound is returned when no social account matches.
var ErrAccountNotFound = errors.New("social account not found", errors.CategoryNotFound).
	WithTextCode(TextCodeAccountNotFound).
	WithCode(errors.CodeNotFound)

// ErrNoRefreshToken is returned when an account cannot be refreshed.
var ErrNoRefreshToken = errors.New("no refresh token available", errors.CategoryAuth).
	WithTextCode(TextCodeNoRefreshToken).
	WithCode(errors.CodeUnauthorized)

// ErrTokenExpired is returned when a stored token is past its expiry and
// could not be renewed.
var ErrTokenExpired = errors.New("access token expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)
