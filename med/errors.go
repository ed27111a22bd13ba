package med

import (
	"errors"
	"fmt"
)

// Category classifies a failure.
type Category int

const (
	// InvalidArgument is a bad mode, policy or field type value.
	InvalidArgument Category = iota
	// FileAccess is a missing, locked, write-only or unreadable file.
	FileAccess
	// VersionIncompatibility is a file or library too old for the request.
	VersionIncompatibility
	// LibraryCallFailure is a failed medfile call.
	LibraryCallFailure
)

var (
	ErrInvalidArgument        = errors.New("invalid argument")
	ErrFileAccess             = errors.New("file access")
	ErrVersionIncompatibility = errors.New("version incompatibility")
	ErrLibraryCallFailure     = errors.New("library call failure")
)

var categoryErrors = map[Category]error{
	InvalidArgument:        ErrInvalidArgument,
	FileAccess:             ErrFileAccess,
	VersionIncompatibility: ErrVersionIncompatibility,
	LibraryCallFailure:     ErrLibraryCallFailure,
}

func (c Category) String() string {
	if err, ok := categoryErrors[c]; ok {
		return err.Error()
	}
	return fmt.Sprintf("Category(%d)", int(c))
}

// Error is returned by every operation of this package. errors.Is matches
// it against the sentinel of its category as well as against its cause.
type Error struct {
	Category Category
	Msg      string
	Err      error // cause, may be nil
}

func newError(c Category, format string, args ...any) *Error {
	return &Error{Category: c, Msg: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return categoryErrors[e.Category] == target
}
