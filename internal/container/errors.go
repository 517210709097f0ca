package container

import (
	"errors"
	"fmt"
)

// ErrorKind classifies hard input errors. They abort a run before any
// validator executes: a document that cannot be opened is not "fail" in
// the security sense, it is uninspectable, and the pipeline gate treats
// it as non-deliverable but triages it separately.
type ErrorKind string

const (
	MalformedContainer    ErrorKind = "malformed_container"
	TruncatedArchive      ErrorKind = "truncated_archive"
	ResourceLimitExceeded ErrorKind = "resource_limit_exceeded"
)

// Error is a hard input error with its classification.
type Error struct {
	Kind   ErrorKind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the input-error kind of err, or "" if err is not a
// container input error.
func KindOf(err error) ErrorKind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}
