package med

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/Masterminds/semver/v3"
	"github.com/batchatco/go-native-med/med/medfile"
	"github.com/gabriel-vasile/mimetype"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
)

// FileStatus is what the filesystem permits on a path.
type FileStatus int

const (
	NotExist FileStatus = iota
	DirLocked
	ExistWriteOnly
	ExistReadOnly
	ExistReadWrite
)

func (s FileStatus) String() string {
	switch s {
	case NotExist:
		return "NOT_EXIST"
	case DirLocked:
		return "DIR_LOCKED"
	case ExistWriteOnly:
		return "EXIST_WRONLY"
	case ExistReadOnly:
		return "EXIST_RDONLY"
	case ExistReadWrite:
		return "EXIST_RDWR"
	}
	return "UNKNOWN"
}

// oldest format version that can be read
var minReadVersion = semver.MustParse("2.2.0")

// StatusOfFile classifies path by its owner permission bits. A missing
// file whose directory cannot be written, or a file that can be neither
// read nor written, is DirLocked.
func StatusOfFile(fsys billy.Filesystem, path string) FileStatus {
	info, err := fsys.Stat(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return DirLocked
		}
		dir, err := fsys.Stat(filepath.Dir(path))
		switch {
		case errors.Is(err, os.ErrNotExist):
			return NotExist
		case err != nil || !dir.IsDir() || dir.Mode().Perm()&0o300 != 0o300:
			return DirLocked
		}
		return NotExist
	}
	if info.IsDir() {
		return DirLocked
	}
	perm := info.Mode().Perm()
	readable := perm&0o400 != 0
	writable := perm&0o200 != 0
	switch {
	case readable && writable:
		return ExistReadWrite
	case readable:
		return ExistReadOnly
	case writable:
		return ExistWriteOnly
	}
	return DirLocked
}

// Validator checks files before they are read.
type Validator struct {
	FS billy.Filesystem // the local filesystem when nil
}

func (v Validator) fs() billy.Filesystem {
	if v.FS == nil {
		return osfs.New("")
	}
	return v.FS
}

// Check fails unless path is a readable MED file of version 2.2 or later.
func (v Validator) Check(path string) error {
	fsys := v.fs()
	switch StatusOfFile(fsys, path) {
	case DirLocked:
		return newError(FileAccess,
			"file %q has been detected as unreadable: impossible to read anything", path)
	case NotExist:
		return newError(FileAccess,
			"file %q has been detected as NOT EXISTING: impossible to read anything", path)
	case ExistWriteOnly:
		return newError(FileAccess,
			"file %q has been detected as WRITE ONLY: impossible to read anything", path)
	}

	h, err := openHandle(fsys, path, medfile.ReadOnly)
	if err != nil {
		e := newError(FileAccess,
			"file %q (%s) has been detected as unreadable by MED file: impossible to read anything",
			path, contentType(fsys, path))
		e.Err = err
		return e
	}
	defer h.Release()

	major, minor, release, err := h.File().NumVersion()
	if err != nil {
		return CheckCode(err, "MEDfileNumVersionRd")
	}
	version := medfile.Version{Major: major, Minor: minor, Release: release}
	if version.Semver().LessThan(minReadVersion) {
		return newError(VersionIncompatibility,
			"file %q has been detected readable but version of MED file is < 2.2 (%s): impossible to read anything",
			path, version)
	}
	return nil
}

// OpenForRead checks path and opens it read-only.
func (v Validator) OpenForRead(path string) (*Handle, error) {
	if err := v.Check(path); err != nil {
		return nil, err
	}
	h, err := openHandle(v.fs(), path, medfile.ReadOnly)
	if err != nil {
		return nil, CheckCode(err, "MEDfileOpen")
	}
	return h, nil
}

// contentType sniffs the start of a file for error messages.
func contentType(fsys billy.Filesystem, path string) string {
	f, err := fsys.Open(path)
	if err != nil {
		return "unknown content"
	}
	defer f.Close()
	mtype, err := mimetype.DetectReader(f)
	if err != nil {
		return "unknown content"
	}
	return mtype.String()
}

// CheckFileForRead validates a file on the local filesystem.
func CheckFileForRead(path string) error {
	return Validator{}.Check(path)
}

// OpenForRead validates and opens a file on the local filesystem.
func OpenForRead(path string) (*Handle, error) {
	return Validator{}.OpenForRead(path)
}
