package authgate

import (
	"errors"
	"fmt"
)

// ErrMissingMemberData is returned when a presence auth result carries no
// usable member identity.
var ErrMissingMemberData = errors.New("auth result is missing presence member data")

// AuthError is a failed authorization attempt. Status is the backend's HTTP
// status, or 0 when the backend could not be reached. It is always scoped to
// a single channel attempt, never fatal to the connection.
type AuthError struct {
	Status int
	Reason string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s (status %d)", e.Reason, e.Status)
}

// Transport reports whether the failure was reaching the backend rather than
// a rejection by it.
func (e *AuthError) Transport() bool {
	return e.Status == 0
}
