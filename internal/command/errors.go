package command

import (
	"errors"
	"fmt"
)

// ErrNotAuthenticated is returned when a command is issued with no
// session established.
var ErrNotAuthenticated = errors.New("command: not authenticated")

// ErrUnknownPump is returned when a command targets a pump not present
// in the local store. Surfaced to the operator, not fatal.
var ErrUnknownPump = errors.New("command: unknown pump")

// ErrNothingPending is returned by Gate.Confirm when no confirmable
// action is armed.
var ErrNothingPending = errors.New("command: no confirmation pending")

// AuthorityError is a command the channel accepted but the authority
// rejected (success:false). The local store is never touched; the
// authority-supplied message is surfaced as-is.
type AuthorityError struct {
	StatusCode int
	Message    string
}

func (e *AuthorityError) Error() string {
	return fmt.Sprintf("command: rejected by authority (%d): %s", e.StatusCode, e.Message)
}

// IsAuthorityError reports whether err is an authority rejection.
func IsAuthorityError(err error) bool {
	var authorityErr *AuthorityError
	return errors.As(err, &authorityErr)
}
