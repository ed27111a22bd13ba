package medfile

import (
	"errors"
	"fmt"
)

var (
	// ErrNotMED is returned for files that are not MED containers
	ErrNotMED = errors.New("not a MED file")

	// ErrClosed is returned for operations on a closed handle
	ErrClosed = errors.New("file already closed")

	// ErrReadOnly is returned for writes through a read-only handle
	ErrReadOnly = errors.New("file opened read-only")

	// ErrExists is returned when append mode would modify an existing object
	ErrExists = errors.New("object already exists")

	// ErrVersion is returned for unsupported or mismatched format versions
	ErrVersion = errors.New("unsupported MED version")

	// ErrAccess is returned when the file cannot be accessed in the requested mode
	ErrAccess = errors.New("access denied")

	// ErrMode is returned for access modes outside of the defined ones
	ErrMode = errors.New("invalid access mode")
)

// error codes reported with each cause, negative like the MED library's
var codes = []struct {
	err  error
	code int
}{
	{ErrAccess, -2},
	{ErrNotMED, -3},
	{ErrVersion, -4},
	{ErrReadOnly, -5},
	{ErrExists, -6},
	{ErrClosed, -7},
	{ErrMode, -8},
}

// Error records a failed library call.
type Error struct {
	Op   string // library call, such as "MEDfileOpen"
	Name string // file name
	Code int    // negative status code
	Err  error
}

func newError(op string, name string, err error) *Error {
	code := -1
	for _, c := range codes {
		if errors.Is(err, c.err) {
			code = c.code
			break
		}
	}
	return &Error{Op: op, Name: name, Code: code, Err: err}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Name, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Code extracts the status code of a library error, or 0 for nil and -1
// for errors that did not come from this package.
func Code(err error) int {
	if err == nil {
		return 0
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return -1
}
