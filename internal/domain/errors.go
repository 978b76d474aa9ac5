package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateKey indicates a username or email collision on insert.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrUsernameTaken is the duplicate-key reason reported when the username collides.
	ErrUsernameTaken = fmt.Errorf("%w: username is already taken", ErrDuplicateKey)
	// ErrEmailInUse is the duplicate-key reason reported when only the email collides.
	ErrEmailInUse = fmt.Errorf("%w: email is already in use", ErrDuplicateKey)

	// ErrAuthentication groups the failed credential checks.
	ErrAuthentication = errors.New("authentication failed")
	// ErrUserNotFound indicates that no user matches the lookup key.
	ErrUserNotFound = fmt.Errorf("%w: user not found", ErrAuthentication)
	// ErrWrongPassword indicates that the password did not match the stored hash.
	ErrWrongPassword = fmt.Errorf("%w: wrong password", ErrAuthentication)

	// ErrUnauthenticated groups every reason a request carries no valid session.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrSessionNotFound indicates that the requested session does not exist.
	ErrSessionNotFound = fmt.Errorf("%w: session not found", ErrUnauthenticated)
	// ErrSessionExpired indicates that the session has expired.
	ErrSessionExpired = fmt.Errorf("%w: session expired", ErrUnauthenticated)

	// ErrStoreUnavailable wraps persistence faults. It is never recovered locally.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// ValidationError reports the first schema violation of a request payload.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// StoreError wraps a driver error so that errors.Is(err, ErrStoreUnavailable) holds.
func StoreError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
