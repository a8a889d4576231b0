package livepers

import (
	"errors"
	"fmt"
)

type ErrorCode int

const (
	Unknown ErrorCode = iota
	// BackendUnavailable is a precondition failure: no back-end is configured.
	BackendUnavailable
	// ReadFailure is reported to callers as "not found".
	ReadFailure
	WriteFailure
	DeleteFailure
	// DuplicateAdd is a warning only; Add overwrites the cached entry.
	DuplicateAdd
	FileIOError
)

func (c ErrorCode) String() string {
	switch c {
	case BackendUnavailable:
		return "backend unavailable"
	case ReadFailure:
		return "read failure"
	case WriteFailure:
		return "write failure"
	case DeleteFailure:
		return "delete failure"
	case DuplicateAdd:
		return "duplicate add"
	case FileIOError:
		return "file io error"
	}
	return "unknown"
}

var (
	// ErrNotFound is returned when an entity could not be loaded, whether it does not
	// exist or the back-end failed to read it.
	ErrNotFound = errors.New("entity not found")
	// ErrBackendUnavailable is returned by operations invoked before a back-end is set.
	ErrBackendUnavailable = errors.New("persistence back-end not set")
)

// Error is the custom error carrying an ErrorCode.
type Error struct {
	Code     ErrorCode
	Err      error
	UserData any
}

func (e Error) Error() string {
	return fmt.Errorf("error code: %d (%s), user data: %v, details: %w", e.Code, e.Code, e.UserData, e.Err).Error()
}

// Unwrap returns the wrapped error so errors.Is can see through Error.
func (e Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the ErrorCode of err if it is (or wraps) an Error, Unknown otherwise.
func CodeOf(err error) ErrorCode {
	var e Error
	if errors.As(err, &e) {
		return e.Code
	}
	return Unknown
}
