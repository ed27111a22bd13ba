package medfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"

	"github.com/batchatco/go-native-med/med/hdf5"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

const (
	infoGroup = "INFOS_GENERALES"
	attrMajor = "MAJ"
	attrMinor = "MIN"
	attrRel   = "REL"
)

// File is an open MED file.
type File struct {
	name    string
	mode    AccessMode
	fs      billy.Filesystem // nil for memory images
	mem     *MemFile
	root    *hdf5.Group
	version Version
	closed  bool
}

// MemFile holds a file image for OpenMemory. The zero value is an empty
// image.
type MemFile struct {
	data []byte
}

// NewMemFile wraps an existing image.
func NewMemFile(data []byte) *MemFile {
	return &MemFile{data: data}
}

// Bytes returns the current image. It is updated when a writable handle on
// it is closed.
func (m *MemFile) Bytes() []byte {
	return m.data
}

func (m *MemFile) Len() int {
	return len(m.data)
}

// Open opens name on fsys.
func Open(fsys billy.Filesystem, name string, mode AccessMode) (*File, error) {
	f, err := open(fsys, name, mode, nil)
	if err != nil {
		return nil, newError("MEDfileOpen", name, err)
	}
	return f, nil
}

// OpenVersion is Open with an explicit format version. New files are
// written with that version; existing files must carry the same major and
// minor numbers.
func OpenVersion(fsys billy.Filesystem, name string, mode AccessMode, major, minor, release int) (*File, error) {
	v := Version{Major: major, Minor: minor, Release: release}
	if major < 0 || minor < 0 || release < 0 || !versionConstraint().Check(v.Semver()) {
		return nil, newError("MEDfileVersionOpen", name,
			fmt.Errorf("%w: cannot write version %s with library %s", ErrVersion, v, LibraryVersion))
	}
	f, err := open(fsys, name, mode, &v)
	if err != nil {
		return nil, newError("MEDfileVersionOpen", name, err)
	}
	return f, nil
}

// OpenMemory opens a file image. The name is only used for reporting.
func OpenMemory(name string, mem *MemFile, mode AccessMode) (*File, error) {
	if mem == nil {
		return nil, newError("MEDmemFileOpen", name, fmt.Errorf("%w: no memory file", ErrAccess))
	}
	if !mode.valid() {
		return nil, newError("MEDmemFileOpen", name, fmt.Errorf("%w: %d", ErrMode, int(mode)))
	}
	f := &File{name: name, mode: mode, mem: mem}
	var err error
	switch {
	case mode == Create || (mode.Writable() && len(mem.data) == 0):
		f.init(LibraryVersion)
	case len(mem.data) == 0:
		err = fmt.Errorf("%w: empty memory file", ErrNotMED)
	default:
		err = f.load(mem.data)
	}
	if err != nil {
		return nil, newError("MEDmemFileOpen", name, err)
	}
	return f, nil
}

func open(fsys billy.Filesystem, name string, mode AccessMode, want *Version) (*File, error) {
	if !mode.valid() {
		return nil, fmt.Errorf("%w: %d", ErrMode, int(mode))
	}
	exists, accessOK, err := Exist(fsys, name, mode)
	if err != nil {
		return nil, err
	}
	if !exists && mode == ReadOnly {
		return nil, fmt.Errorf("%w: %w", ErrAccess, os.ErrNotExist)
	}
	if !accessOK {
		return nil, fmt.Errorf("%w: %s not permitted", ErrAccess, mode)
	}

	f := &File{name: name, mode: mode, fs: fsys}
	if !exists || mode == Create {
		v := LibraryVersion
		if want != nil {
			v = *want
		}
		f.init(v)
		// the file exists as soon as it is opened
		if err := f.flush(); err != nil {
			return nil, err
		}
		return f, nil
	}

	data, err := util.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAccess, err)
	}
	if err := f.load(data); err != nil {
		return nil, err
	}
	if want != nil && (want.Major != f.version.Major || want.Minor != f.version.Minor) {
		return nil, fmt.Errorf("%w: file has version %s, %s requested", ErrVersion, f.version, want)
	}
	logger.Infof("opened %s version %s mode %s", name, f.version, mode)
	return f, nil
}

// init starts an empty file of version v.
func (f *File) init(v Version) {
	f.root = hdf5.NewRoot()
	f.version = v
	info, _ := f.root.CreateGroup(infoGroup)
	_ = info.SetAttribute(attrMajor, int32(v.Major))
	_ = info.SetAttribute(attrMinor, int32(v.Minor))
	_ = info.SetAttribute(attrRel, int32(v.Release))
}

func (f *File) load(data []byte) error {
	h5, err := hdf5.DecodeBytes(data)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNotMED, err)
	}
	v, err := readVersion(h5.Root)
	if err != nil {
		return err
	}
	f.root = h5.Root
	f.version = v
	return nil
}

func readVersion(root *hdf5.Group) (Version, error) {
	info, ok := root.Group(infoGroup)
	if !ok {
		return Version{}, fmt.Errorf("%w: no %s group", ErrNotMED, infoGroup)
	}
	var nums [3]int
	for i, name := range []string{attrMajor, attrMinor, attrRel} {
		val, ok := info.Attribute(name)
		if !ok {
			return Version{}, fmt.Errorf("%w: no %s attribute", ErrNotMED, name)
		}
		n, ok := toInt(val)
		if !ok {
			return Version{}, fmt.Errorf("%w: %s attribute is %T", ErrNotMED, name, val)
		}
		nums[i] = n
	}
	return Version{Major: nums[0], Minor: nums[1], Release: nums[2]}, nil
}

func toInt(val any) (int, bool) {
	rv := reflect.ValueOf(val)
	switch rv.Kind() {
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return int(rv.Int()), true
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int(rv.Uint()), true
	}
	return 0, false
}

// layout is the HDF5 layout a version is stored with. Version 3 readers
// only understand the earliest layout.
func (v Version) layout() hdf5.Layout {
	if v.Major < 4 {
		return hdf5.LayoutEarliest
	}
	return hdf5.LayoutLatest
}

func (f *File) flush() error {
	data, err := hdf5.EncodeBytes(f.root, f.version.layout())
	if err != nil {
		return err
	}
	if f.mem != nil {
		f.mem.data = data
		return nil
	}
	if err := util.WriteFile(f.fs, f.name, data, 0o644); err != nil {
		return fmt.Errorf("%w: %w", ErrAccess, err)
	}
	return nil
}

// Close releases the handle, writing the file back if it is writable.
// Closing twice is an error.
func (f *File) Close() error {
	if f.closed {
		return newError("MEDfileClose", f.name, ErrClosed)
	}
	f.closed = true
	if !f.mode.Writable() {
		return nil
	}
	if err := f.flush(); err != nil {
		return newError("MEDfileClose", f.name, err)
	}
	return nil
}

// NumVersion returns the version stored in the file.
func (f *File) NumVersion() (major, minor, release int, err error) {
	if f.closed {
		return 0, 0, 0, newError("MEDfileNumVersionRd", f.name, ErrClosed)
	}
	return f.version.Major, f.version.Minor, f.version.Release, nil
}

func (f *File) Version() Version {
	return f.version
}

// Name returns the name the file was opened with.
func (f *File) Name() string {
	return f.name
}

func (f *File) Mode() AccessMode {
	return f.mode
}

// Root returns the HDF5 tree. Changes are written back on Close.
func (f *File) Root() *hdf5.Group {
	return f.root
}

// CheckWritable reports whether the object at path, relative to the root,
// may be written through this handle.
func (f *File) CheckWritable(path string) error {
	switch {
	case f.closed:
		return newError("MEDfileWrite", f.name, ErrClosed)
	case f.mode == ReadOnly:
		return newError("MEDfileWrite", f.name, ErrReadOnly)
	case f.mode == ReadExtend && f.exists(path):
		return newError("MEDfileWrite", f.name, fmt.Errorf("%w: %s", ErrExists, path))
	}
	return nil
}

func (f *File) exists(path string) bool {
	if _, ok := f.root.Lookup(path); ok {
		return true
	}
	_, ok := f.root.LookupDataset(path)
	return ok
}

// Exist reports whether name exists on fsys and whether it may be opened
// in mode, judging by the owner permission bits. For a file that does not
// exist yet, access depends on whether its directory is writable.
func Exist(fsys billy.Filesystem, name string, mode AccessMode) (exists bool, accessOK bool, err error) {
	info, err := fsys.Stat(name)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if mode == ReadOnly {
			return false, false, nil
		}
		return false, dirWritable(fsys, name), nil
	case err != nil:
		return false, false, newError("MEDfileExist", name, err)
	case info.IsDir():
		return true, false, nil
	}
	perm := info.Mode().Perm()
	switch mode {
	case ReadOnly:
		return true, perm&0o400 != 0, nil
	case Create:
		return true, perm&0o200 != 0, nil
	}
	return true, perm&0o600 == 0o600, nil
}

func dirWritable(fsys billy.Filesystem, name string) bool {
	dir := filepath.Dir(name)
	info, err := fsys.Stat(dir)
	if err != nil {
		// a missing directory is created on write
		return errors.Is(err, os.ErrNotExist)
	}
	return info.IsDir() && info.Mode().Perm()&0o300 == 0o300
}
