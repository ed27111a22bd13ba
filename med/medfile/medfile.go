// Package medfile reads and writes MED files, the HDF5 based format for
// finite-element meshes and fields.
//
// A File is an open handle on a MED container. Opening loads the whole
// HDF5 tree into memory; writable handles write it back on Close. Files
// live on a billy filesystem or in a MemFile image.
package medfile

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/batchatco/go-native-med/med/util"
)

var (
	logger = util.NewLogger()
	log    = "don't use the log package" // prevents usage of standard log package
)

// AccessMode is how a file is opened. The values match the MED library.
type AccessMode int

const (
	// ReadOnly opens an existing file for reading.
	ReadOnly AccessMode = iota
	// ReadWrite opens or creates a file; existing objects may be overwritten.
	ReadWrite
	// ReadExtend opens or creates a file; existing objects may not be modified.
	ReadExtend
	// Create creates a new file, discarding any existing content.
	Create
)

func (m AccessMode) String() string {
	switch m {
	case ReadOnly:
		return "MED_ACC_RDONLY"
	case ReadWrite:
		return "MED_ACC_RDWR"
	case ReadExtend:
		return "MED_ACC_RDEXT"
	case Create:
		return "MED_ACC_CREAT"
	}
	return fmt.Sprintf("AccessMode(%d)", int(m))
}

func (m AccessMode) valid() bool {
	return m >= ReadOnly && m <= Create
}

// Writable reports whether handles opened in this mode are written back.
func (m AccessMode) Writable() bool {
	return m != ReadOnly
}

// FieldType is the value type of a MED field.
type FieldType int

const (
	Float64 FieldType = 6
	Int32   FieldType = 24
	Int64   FieldType = 26
)

func (ft FieldType) String() string {
	switch ft {
	case Float64:
		return "FLOAT64"
	case Int32:
		return "INT32"
	case Int64:
		return "INT64"
	}
	return fmt.Sprintf("FieldType(%d)", int(ft))
}

// Version is a MED format version as stored in a file.
type Version struct {
	Major, Minor, Release int
}

// LibraryVersion is the format version new files are written with.
var LibraryVersion = Version{Major: 4, Minor: 1, Release: 0}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Release)
}

// Semver returns v for comparison with semver constraints.
func (v Version) Semver() *semver.Version {
	return semver.New(uint64(max(v.Major, 0)), uint64(max(v.Minor, 0)), uint64(max(v.Release, 0)), "", "")
}

// Less reports whether v is older than w.
func (v Version) Less(w Version) bool {
	return v.Semver().LessThan(w.Semver())
}

// versionConstraint is what OpenVersion accepts: the 3.3 series or any
// 4.x up to the library version.
func versionConstraint() *semver.Constraints {
	c, err := semver.NewConstraint(fmt.Sprintf("~3.3.0 || >= 4.0.0, <= %s", LibraryVersion))
	if err != nil {
		panic(err)
	}
	return c
}

func SetLogLevel(level int) {
	logger.SetLogLevel(level)
}
