package mutator

import (
	"fmt"

	"emperror.dev/errors"
)

type ErrorCode string

const (
	ErrCodeReadFailed        ErrorCode = "E_READ_FAILED"
	ErrCodeMissingOwnerEntry ErrorCode = "E_MISSING_OWNER_ENTRY"
	ErrCodeWriteFailed       ErrorCode = "E_WRITE_FAILED"
)

// Error is returned by the mutator when the ACL of a path cannot be read,
// is malformed or cannot be written back.
type Error struct {
	code ErrorCode
	path string
	err  error
}

// newError returns the error wrapped with a stack trace pointing at the
// caller.
func newError(code ErrorCode, path string, err error) error {
	return errors.WithStackDepth(&Error{code: code, path: path, err: err}, 1)
}

// Code returns the code of the error.
func (e *Error) Code() ErrorCode {
	return e.code
}

// Path returns the path the failed operation was acting on.
func (e *Error) Path() string {
	return e.path
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.err
}

func (e *Error) Error() string {
	var msg string
	switch e.code {
	case ErrCodeReadFailed:
		msg = fmt.Sprintf("mutator: failed to get acl info for %s", e.path)
	case ErrCodeMissingOwnerEntry:
		msg = fmt.Sprintf("mutator: failed to get owner permissions for %s", e.path)
	case ErrCodeWriteFailed:
		msg = fmt.Sprintf("mutator: failed to set acl for %s", e.path)
	default:
		msg = fmt.Sprintf("mutator: unknown error for %s", e.path)
	}
	if e.err != nil {
		return msg + ": " + e.err.Error()
	}
	return msg
}

// IsErrorCode checks if "err" is a mutator Error type with the given code.
func IsErrorCode(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}
	var merr *Error
	if errors.As(err, &merr) {
		return merr.code == code
	}
	return false
}
