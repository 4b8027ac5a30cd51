package authkit

import "errors"

var (
	// ErrInvalidCredentials is the expected login-failed outcome: no
	// candidate user's stored hash matched the submitted secret. It never
	// discloses which part of the pair was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrRenewalFailed folds every denied renewal (bad token, expired
	// refresh token, revoked session, vanished user) into one opaque
	// outcome. Callers proceed unauthenticated.
	ErrRenewalFailed = errors.New("renewal failed")
	// ErrTokenInvalid is returned when an operation is keyed on a token
	// that does not verify.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenIssuance is a server fault: credentials were valid but the
	// codec could not complete issuance. Never conflated with
	// ErrInvalidCredentials.
	ErrTokenIssuance = errors.New("token issuance failed")
	// ErrDirectoryUnavailable wraps user-directory transport failures.
	ErrDirectoryUnavailable = errors.New("user directory unavailable")
)
