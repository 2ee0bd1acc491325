package nostr

import (
	"errors"
	"strings"
)

// ErrorKind is the machine-readable prefix of OK and CLOSED messages.
type ErrorKind string

const (
	ErrInvalid   ErrorKind = "invalid"
	ErrBlocked   ErrorKind = "blocked"
	ErrDuplicate ErrorKind = "duplicate"
	ErrFailure   ErrorKind = "error"
)

// RelayError is an error that can be shown to clients as is.
type RelayError struct {
	Kind   ErrorKind
	Reason string
}

func (e *RelayError) Error() string {
	return string(e.Kind) + ": " + e.Reason
}

// Is matches any RelayError of the same kind and reason.
func (e *RelayError) Is(target error) bool {
	var re *RelayError
	if !errors.As(target, &re) {
		return false
	}
	return re.Kind == e.Kind && (re.Reason == "" || re.Reason == e.Reason)
}

func Invalid(reason string) error   { return &RelayError{ErrInvalid, reason} }
func Blocked(reason string) error   { return &RelayError{ErrBlocked, reason} }
func Duplicate(reason string) error { return &RelayError{ErrDuplicate, reason} }
func Failure(reason string) error   { return &RelayError{ErrFailure, reason} }

var errSomethingWentWrong = &RelayError{ErrFailure, "something went wrong"}

// AsRelayError returns err as a RelayError. Anything else becomes a generic failure, so
// internal details never reach a client.
func AsRelayError(err error) *RelayError {
	if err == nil {
		return nil
	}
	var re *RelayError
	if errors.As(err, &re) {
		return re
	}
	return errSomethingWentWrong
}

// IsRelayErrorKind tells if err is a RelayError of the given kind.
func IsRelayErrorKind(err error, kind ErrorKind) bool {
	var re *RelayError
	return errors.As(err, &re) && re.Kind == kind
}

// NormalizeOKMessage takes a string message that is to be sent in an `OK` or `CLOSED` command
// and prefixes it with "<prefix>: " if it doesn't already have an acceptable prefix.
func NormalizeOKMessage(reason string, prefix string) string {
	if idx := strings.Index(reason, ": "); idx == -1 || strings.IndexByte(reason[0:idx], ' ') != -1 {
		return prefix + ": " + reason
	}
	return reason
}
