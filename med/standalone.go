package med

import (
	"fmt"

	"github.com/batchatco/go-native-med/med/medfile"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/google/uuid"
)

// DftFileNameInMem prefixes the names of in-memory images.
const DftFileNameInMem = "DftFileNameInMemory"

// ContentWriter writes an entity into an open file.
type ContentWriter interface {
	WriteContent(f *medfile.File) error
}

// StandAlone writes entities to files or memory images.
type StandAlone struct {
	FS      billy.Filesystem // the local filesystem when nil
	Library medfile.Version  // version of the linked library, medfile.LibraryVersion when zero
}

// Default is used by the package level Write, Write33 and Serialize.
var Default = StandAlone{}

func (s StandAlone) fs() billy.Filesystem {
	if s.FS == nil {
		return osfs.New("")
	}
	return s.FS
}

func (s StandAlone) library() medfile.Version {
	if s.Library == (medfile.Version{}) {
		return medfile.LibraryVersion
	}
	return s.Library
}

// Write opens path in the given write mode and hands it to c.
func (s StandAlone) Write(path string, mode int, c ContentWriter) error {
	accessMode, err := AccessModeFor(mode)
	if err != nil {
		return err
	}
	h, err := openHandle(s.fs(), path, accessMode)
	if err != nil {
		return CheckCode(err, fmt.Sprintf("error on attempt to write in file %q", path))
	}
	defer h.Release()
	return s.finish(h, path, c)
}

func (s StandAlone) finish(h *Handle, path string, c ContentWriter) error {
	if err := c.WriteContent(h.File()); err != nil {
		return err
	}
	return CheckCode(h.Close(), fmt.Sprintf("error on attempt to close file %q", path))
}

// Write33 is Write for a file in the legacy 3.3 format. A missing file, or
// any file in create mode, starts from the empty 3.3 template.
func (s StandAlone) Write33(path string, mode int, c ContentWriter) error {
	accessMode, err := AccessModeFor(mode)
	if err != nil {
		return err
	}
	if lib := s.library(); lib.Major <= 3 {
		return newError(VersionIncompatibility,
			"write33 is implemented with MEDFile %s: if you need this feature please use version >= 3.2.1", lib)
	}
	fsys := s.fs()
	exists, accessOK, err := medfile.Exist(fsys, path, accessMode)
	if err != nil {
		return CheckCode(err, "MEDfileExist")
	}
	if !accessOK {
		return newError(FileAccess, "write33: requested access to file %q is not permitted", path)
	}
	if accessMode == medfile.Create || !exists {
		if err := util.WriteFile(fsys, path, Empty33(), 0o644); err != nil {
			e := newError(FileAccess, "write33: cannot write the empty 3.3 template to %q", path)
			e.Err = err
			return e
		}
		accessMode, _ = AccessModeFor(WriteOverwrite)
	}
	f, err := medfile.OpenVersion(fsys, path, accessMode, 3, 3, 1)
	if err != nil {
		return CheckCode(err, fmt.Sprintf("error on attempt to write in file %q", path))
	}
	h := NewHandle(f)
	defer h.Release()
	return s.finish(h, path, c)
}

// Serialize writes c into a new in-memory image and returns it.
func (s StandAlone) Serialize(c ContentWriter) ([]byte, error) {
	mem := &medfile.MemFile{}
	name := GenerateUniqueDftFileNameInMem()
	f, err := medfile.OpenMemory(name, mem, medfile.Create)
	if err != nil {
		return nil, CheckCode(err, "MEDmemFileOpen")
	}
	h := NewHandle(f)
	defer h.Release()
	if err := s.finish(h, name, c); err != nil {
		return nil, err
	}
	return mem.Bytes(), nil
}

// GenerateUniqueDftFileNameInMem returns a fresh in-memory image name.
func GenerateUniqueDftFileNameInMem() string {
	return DftFileNameInMem + "_" + uuid.NewString()
}

func Write(path string, mode int, c ContentWriter) error {
	return Default.Write(path, mode, c)
}

func Write33(path string, mode int, c ContentWriter) error {
	return Default.Write33(path, mode, c)
}

func Serialize(c ContentWriter) ([]byte, error) {
	return Default.Serialize(c)
}
