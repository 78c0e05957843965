// Package errs declares the error kinds shared by the credential, key and
// audit layers. Callers wrap them with context and test with errors.Is.
package errs

import "errors"

var (
	// ErrUnauthenticated covers missing, invalid or expired tokens and wrong credentials.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden covers a valid identity without the required privilege or an inactive account.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound covers absent settings, keys and users.
	ErrNotFound = errors.New("not found")
	// ErrConflict covers duplicate usernames and emails.
	ErrConflict = errors.New("conflict")
	// ErrValidation covers malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidCredential is returned when a re-entered current password does not match.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrRateLimited is returned when a client exceeds the login attempt budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrAuditDegraded marks an operation that succeeded but whose security log entry was not written.
	ErrAuditDegraded = errors.New("audit log write failed")
)

// IsDegraded reports whether err only signals a missing audit entry.
func IsDegraded(err error) bool {
	return errors.Is(err, ErrAuditDegraded)
}
