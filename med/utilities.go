package med

import (
	"fmt"

	"github.com/batchatco/go-native-med/med/medfile"
)

// Write modes accepted by AccessModeFor and the Write functions.
const (
	WriteOverwrite = 0 // write with no question
	WriteAppend    = 1 // existing data may not be modified
	WriteCreate    = 2 // an existing file is replaced
)

// AccessModeFor translates a write mode into a medfile access mode.
func AccessModeFor(mode int) (medfile.AccessMode, error) {
	switch mode {
	case WriteCreate:
		return medfile.Create, nil
	case WriteAppend:
		return medfile.ReadExtend, nil
	case WriteOverwrite:
		return medfile.ReadWrite, nil
	}
	return 0, newError(InvalidArgument,
		"invalid write mode %d specified: must be 0(write with no question), 1(append) or 2(creation)", mode)
}

// ReadableFieldType returns the MED name of a field type.
func ReadableFieldType(ft medfile.FieldType) (string, error) {
	switch ft {
	case medfile.Float64, medfile.Int32, medfile.Int64:
		return "MED_" + ft.String(), nil
	}
	return "", newError(InvalidArgument,
		"non supported field type %d: should be FLOAT64, INT32 or INT64", int(ft))
}

// CheckCode decorates a failed medfile call with msg. A nil error stays nil.
func CheckCode(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{
		Category: LibraryCallFailure,
		Msg:      fmt.Sprintf("MEDFile has returned an error code (%d) : %s", medfile.Code(err), msg),
		Err:      err,
	}
}

// FileNameOf returns the name f was opened with, or "" for nil.
func FileNameOf(f *medfile.File) string {
	if f == nil {
		return ""
	}
	return f.Name()
}
