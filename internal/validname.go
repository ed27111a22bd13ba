package internal

import (
	"regexp"
)

const (
	// An HDF5 link name is any non-empty run of characters other than
	// slash and NUL.
	pattern = `^[^/\x00]+$`
	// "." refers to the group itself.
	antiPattern = `^\.$`

	// MaxLinkNameLen is the longest name a version 1 link message can carry
	// with a one-byte length field.
	MaxLinkNameLen = 255
)

var (
	re     *regexp.Regexp
	antiRe *regexp.Regexp
)

func init() {
	var err error
	re, err = regexp.Compile(pattern)
	if err != nil {
		panic(err)
	}
	antiRe, err = regexp.Compile(antiPattern)
	if err != nil {
		panic(err)
	}
}

// IsValidLinkName returns true if name can be used for a group, dataset or
// attribute inside a MED file.
func IsValidLinkName(name string) bool {
	return len(name) <= MaxLinkNameLen && re.MatchString(name) && !antiRe.MatchString(name)
}
