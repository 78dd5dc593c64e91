package registry

import (
	"errors"
	"fmt"
)

// ErrorKind classifies registry failures so the API layer can map them to
// client-visible statuses without string matching.
type ErrorKind string

const (
	// KindNotFound means the referenced call, transfer, or room does not exist.
	KindNotFound ErrorKind = "not_found"
	// KindInvalidState means the operation targeted a session in the wrong
	// lifecycle state.
	KindInvalidState ErrorKind = "invalid_state"
	// KindConflict means a race between two mutators was detected; the losing
	// request is rejected and must be retried by the operator.
	KindConflict ErrorKind = "conflict"
	// KindCredentialMint means the credential issuer failed; the enclosing
	// operation aborts with no registry mutation committed.
	KindCredentialMint ErrorKind = "credential_mint"
)

// Error is a structured registry failure: a machine-readable kind plus a
// human message.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewError builds a registry error with a formatted message.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the error kind, or "" for non-registry errors.
func KindOf(err error) ErrorKind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}
