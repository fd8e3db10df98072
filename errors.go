package session

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidCallback = "session_invalid_callback"
	TextCodeAuthFailed      = "session_auth_failed"
	TextCodeExpired         = "session_expired"
	TextCodeStorageCorrupt  = "session_storage_corrupt"
	TextCodeNetwork         = "session_network"
	TextCodeSuperseded      = "session_superseded"
	TextCodeNoSession       = "session_not_authenticated"
	TextCodeAdminDisabled   = "session_admin_unsupported"
)

// ErrInvalidCallback is returned when a redirect URL carries no usable
// token or code.
var ErrInvalidCallback = goerrors.New("no token or code found in callback", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidCallback).
	WithCode(goerrors.CodeBadRequest)

// ErrAuthenticationFailed is returned when the server rejects credentials or
// a code exchange.
var ErrAuthenticationFailed = goerrors.New("authentication failed", goerrors.CategoryAuth).
	WithTextCode(TextCodeAuthFailed).
	WithCode(goerrors.CodeUnauthorized)

// ErrSessionExpired is returned when a refresh fails or no refresh token is
// available during a liveness check.
var ErrSessionExpired = goerrors.New("session expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrStorageCorrupt flags an unparsable persisted record. Loads treat the
// record as absent; this value only surfaces in logs.
var ErrStorageCorrupt = goerrors.New("stored session record unparsable", goerrors.CategoryInternal).
	WithTextCode(TextCodeStorageCorrupt).
	WithCode(goerrors.CodeInternal)

// ErrNetwork is returned when the auth server is unreachable. The session is
// left in its last known-good state except during callback resolution and
// liveness refresh.
var ErrNetwork = goerrors.New("auth server unreachable", goerrors.CategoryOperation).
	WithTextCode(TextCodeNetwork).
	WithCode(goerrors.CodeInternal)

// ErrSessionSuperseded is returned when a network call resolves after the
// session it belonged to was torn down by a logout.
var ErrSessionSuperseded = goerrors.New("session superseded by logout", goerrors.CategoryConflict).
	WithTextCode(TextCodeSuperseded).
	WithCode(goerrors.CodeConflict)

// ErrNotAuthenticated is returned by operations that require an active
// session.
var ErrNotAuthenticated = goerrors.New("no active session", goerrors.CategoryAuth).
	WithTextCode(TextCodeNoSession).
	WithCode(goerrors.CodeUnauthorized)

// ErrAdminUnsupported is returned when the configured API client does not
// expose the admin surface.
var ErrAdminUnsupported = goerrors.New("api client does not implement AdminAPI", goerrors.CategoryOperation).
	WithTextCode(TextCodeAdminDisabled).
	WithCode(goerrors.CodeInternal)

// IsAuthenticationError reports whether err carries the auth-failed code.
func IsAuthenticationError(err error) bool {
	return hasTextCode(err, TextCodeAuthFailed)
}

// IsSessionExpiredError reports whether err carries the expired code.
func IsSessionExpiredError(err error) bool {
	return hasTextCode(err, TextCodeExpired)
}

// IsNetworkError reports whether err carries the network code.
func IsNetworkError(err error) bool {
	return hasTextCode(err, TextCodeNetwork)
}

func hasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == code
	}
	return false
}
