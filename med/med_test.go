package med

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/batchatco/go-native-med/med/hdf5"
	"github.com/batchatco/go-native-med/med/medfile"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFS(t *testing.T) billy.Filesystem {
	t.Helper()
	fsys := memfs.New()
	require.NoError(t, fsys.MkdirAll("/data", 0o755))
	return fsys
}

// groupWriter creates one group, refusing to modify an existing one.
type groupWriter struct {
	name  string
	err   error
	calls int
	file  string
}

func (w *groupWriter) WriteContent(f *medfile.File) error {
	w.calls++
	w.file = FileNameOf(f)
	if w.err != nil {
		return w.err
	}
	if err := f.CheckWritable(w.name); err != nil {
		return err
	}
	_, err := f.Root().CreateGroup(w.name)
	return err
}

func writeVersioned(t *testing.T, fsys billy.Filesystem, name string, major, minor, release int32) {
	t.Helper()
	root := hdf5.NewRoot()
	info, err := root.CreateGroup("INFOS_GENERALES")
	require.NoError(t, err)
	require.NoError(t, info.SetAttribute("MAJ", major))
	require.NoError(t, info.SetAttribute("MIN", minor))
	require.NoError(t, info.SetAttribute("REL", release))
	data, err := hdf5.EncodeBytes(root, hdf5.LayoutEarliest)
	require.NoError(t, err)
	require.NoError(t, util.WriteFile(fsys, name, data, 0o644))
}

func readVersion(t *testing.T, fsys billy.Filesystem, name string) medfile.Version {
	t.Helper()
	f, err := medfile.Open(fsys, name, medfile.ReadOnly)
	require.NoError(t, err)
	defer f.Close()
	return f.Version()
}

func TestAccessModeFor(t *testing.T) {
	for mode, want := range map[int]medfile.AccessMode{
		WriteOverwrite: medfile.ReadWrite,
		WriteAppend:    medfile.ReadExtend,
		WriteCreate:    medfile.Create,
	} {
		got, err := AccessModeFor(mode)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	for _, mode := range []int{-1, 3, 42} {
		_, err := AccessModeFor(mode)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidArgument)
		assert.Contains(t, err.Error(), "must be 0(write with no question), 1(append) or 2(creation)")
	}
}

func TestReadableFieldType(t *testing.T) {
	for ft, want := range map[medfile.FieldType]string{
		medfile.Float64: "MED_FLOAT64",
		medfile.Int32:   "MED_INT32",
		medfile.Int64:   "MED_INT64",
	} {
		got, err := ReadableFieldType(ft)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ReadableFieldType(medfile.FieldType(1))
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestCheckCode(t *testing.T) {
	assert.NoError(t, CheckCode(nil, "ignored"))

	_, cause := medfile.OpenMemory("x", &medfile.MemFile{}, medfile.ReadOnly)
	require.Error(t, cause)
	err := CheckCode(cause, "opening x")
	assert.ErrorIs(t, err, ErrLibraryCallFailure)
	assert.ErrorIs(t, err, medfile.ErrNotMED)
	assert.True(t, strings.HasPrefix(err.Error(), "MEDFile has returned an error code (-3) : opening x"), err.Error())
	var medErr *Error
	require.True(t, errors.As(err, &medErr))
	assert.Equal(t, LibraryCallFailure, medErr.Category)
}

func TestStatusOfFile(t *testing.T) {
	fsys := newFS(t)
	require.NoError(t, util.WriteFile(fsys, "/data/rw", nil, 0o644))
	require.NoError(t, util.WriteFile(fsys, "/data/ro", nil, 0o444))
	require.NoError(t, util.WriteFile(fsys, "/data/wo", nil, 0o200))
	require.NoError(t, util.WriteFile(fsys, "/data/none", nil, 0o000))
	require.NoError(t, fsys.MkdirAll("/locked", 0o555))

	for path, want := range map[string]FileStatus{
		"/data/rw":         ExistReadWrite,
		"/data/ro":         ExistReadOnly,
		"/data/wo":         ExistWriteOnly,
		"/data/none":       DirLocked,
		"/data/missing":    NotExist,
		"/locked/missing":  DirLocked,
		"/nowhere/missing": NotExist,
		"/data":            DirLocked,
	} {
		assert.Equal(t, want, StatusOfFile(fsys, path), path)
	}
}

func TestValidator(t *testing.T) {
	fsys := newFS(t)
	v := Validator{FS: fsys}
	require.NoError(t, fsys.MkdirAll("/locked", 0o555))
	require.NoError(t, util.WriteFile(fsys, "/data/wo.med", nil, 0o200))
	require.NoError(t, util.WriteFile(fsys, "/data/text.med", []byte("just some text\n"), 0o644))
	writeVersioned(t, fsys, "/data/v21.med", 2, 1, 0)
	writeVersioned(t, fsys, "/data/v22.med", 2, 2, 0)
	writeVersioned(t, fsys, "/data/v41.med", 4, 1, 0)

	cases := []struct {
		path     string
		category error
		message  string
	}{
		{"/data/missing.med", ErrFileAccess, "NOT EXISTING"},
		{"/locked/missing.med", ErrFileAccess, "has been detected as unreadable:"},
		{"/data/wo.med", ErrFileAccess, "WRITE ONLY"},
		{"/data/text.med", ErrFileAccess, "unreadable by MED file"},
		{"/data/v21.med", ErrVersionIncompatibility, "< 2.2"},
	}
	for _, c := range cases {
		err := v.Check(c.path)
		require.Error(t, err, c.path)
		assert.ErrorIs(t, err, c.category, c.path)
		assert.Contains(t, err.Error(), c.message, c.path)
		assert.Contains(t, err.Error(), c.path)
	}

	err := v.Check("/data/text.med")
	assert.Contains(t, err.Error(), "text/plain")
	assert.ErrorIs(t, err, medfile.ErrNotMED)

	assert.NoError(t, v.Check("/data/v22.med"))
	assert.NoError(t, v.Check("/data/v41.med"))

	h, err := v.OpenForRead("/data/v41.med")
	require.NoError(t, err)
	assert.Equal(t, medfile.ReadOnly, h.File().Mode())
	h.Release()
	assert.Nil(t, h.File())

	_, err = v.OpenForRead("/data/v21.med")
	assert.ErrorIs(t, err, ErrVersionIncompatibility)
}

func TestCheckFileForReadLocal(t *testing.T) {
	path := t.TempDir() + "/missing.med"
	err := CheckFileForRead(path)
	assert.ErrorIs(t, err, ErrFileAccess)
	assert.Contains(t, err.Error(), "NOT EXISTING")
}

func TestLocalFilesystem(t *testing.T) {
	path := t.TempDir() + "/local.med"
	require.NoError(t, Write(path, WriteCreate, &groupWriter{name: "ENS_MAA"}))
	require.NoError(t, CheckFileForRead(path))

	h, err := OpenForRead(path)
	require.NoError(t, err)
	assert.Equal(t, medfile.LibraryVersion, h.File().Version())
	h.Release()

	legacy := t.TempDir() + "/legacy.med"
	require.NoError(t, Write33(legacy, WriteCreate, &groupWriter{name: "ENS_MAA"}))
	require.NoError(t, CheckFileForRead(legacy))
}

func TestHandle(t *testing.T) {
	fsys := newFS(t)
	h, err := openHandle(fsys, "/data/a.med", medfile.Create)
	require.NoError(t, err)
	f := h.File()
	require.NotNil(t, f)
	require.NoError(t, h.Close())
	assert.Nil(t, h.File())
	h.Release() // nothing left to release
	assert.NoError(t, h.Close())

	// a failing close is swallowed
	h, err = openHandle(fsys, "/data/a.med", medfile.ReadOnly)
	require.NoError(t, err)
	require.NoError(t, h.File().Close())
	assert.NotPanics(t, h.Release)
	assert.Nil(t, h.File())

	var nilHandle *Handle
	assert.NotPanics(t, nilHandle.Release)
}

func TestPolicies(t *testing.T) {
	var w Writable
	assert.Equal(t, 0, w.TooLongStrPolicy())
	assert.Equal(t, 2, w.ZipConnPolicy())

	for _, p := range []int{0, 1, 2} {
		require.NoError(t, w.SetTooLongStrPolicy(p))
		assert.Equal(t, p, w.TooLongStrPolicy())
	}
	err := w.SetTooLongStrPolicy(3)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Equal(t, 2, w.TooLongStrPolicy(), "failed set keeps the old value")

	w.SetZipConnPolicy(-7)
	assert.Equal(t, -7, w.ZipConnPolicy())
	w.SetZipConnPolicy(0)
	assert.Equal(t, 0, w.ZipConnPolicy())
}

func TestCopyOptionsFrom(t *testing.T) {
	var src, dst Writable
	require.NoError(t, src.SetTooLongStrPolicy(1))
	src.SetZipConnPolicy(0)
	require.NoError(t, dst.SetTooLongStrPolicy(2))

	dst.CopyOptionsFrom(&src)
	assert.Equal(t, 1, dst.TooLongStrPolicy())
	assert.Equal(t, 0, dst.ZipConnPolicy())

	// later changes to the source do not follow
	require.NoError(t, src.SetTooLongStrPolicy(2))
	assert.Equal(t, 1, dst.TooLongStrPolicy())

	var fresh Writable
	dst.CopyOptionsFrom(&fresh)
	assert.Equal(t, 0, dst.TooLongStrPolicy())
	assert.Equal(t, 2, dst.ZipConnPolicy())
}

func TestFitString(t *testing.T) {
	var w Writable
	s, err := w.FitString("short", 8)
	require.NoError(t, err)
	assert.Equal(t, "short", s)

	_, err = w.FitString("much too long", 8)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Contains(t, err.Error(), "much too long")

	require.NoError(t, w.SetTooLongStrPolicy(TooLongStrTruncate))
	s, err = w.FitString("much too long", 8)
	require.NoError(t, err)
	assert.Equal(t, "much too", s)

	require.NoError(t, w.SetTooLongStrPolicy(TooLongStrZip))
	s, err = w.FitString("abcdefghijklmnop", 10)
	require.NoError(t, err)
	assert.Equal(t, "abcd...nop", s)
	s, err = w.FitString("  padded  ", 6)
	require.NoError(t, err)
	assert.Equal(t, "padded", s)
	s, err = w.FitString("mesh_____________1", 8)
	require.NoError(t, err)
	assert.Equal(t, "mesh_1", s)
	s, err = w.FitString("abcdef", 2)
	require.NoError(t, err)
	assert.Equal(t, "ab", s)
}

func TestFitStringRunes(t *testing.T) {
	var w Writable
	require.NoError(t, w.SetTooLongStrPolicy(TooLongStrTruncate))
	s, err := w.FitString("héllo", 2)
	require.NoError(t, err)
	assert.Equal(t, "h", s)

	require.NoError(t, w.SetTooLongStrPolicy(TooLongStrZip))
	s, err = w.FitString("éaéaéaéaéa", 8)
	require.NoError(t, err)
	assert.Equal(t, "éa...a", s)
	s, err = w.FitString("ééé", 3)
	require.NoError(t, err)
	assert.Equal(t, "é", s)
	s, err = w.FitString("x\U00040000\U00040000y", 3)
	require.NoError(t, err)
	assert.Equal(t, "x", s)
	for _, long := range []string{"ñandúñandúñandú", "\U00040000\U00040000abc\U00040000"} {
		for size := 1; size < len(long); size++ {
			s, err := w.FitString(long, size)
			require.NoError(t, err)
			assert.True(t, utf8.ValidString(s), "%q at %d gives %q", long, size, s)
			assert.LessOrEqual(t, len(s), size)
		}
	}
}

func TestWrite(t *testing.T) {
	fsys := newFS(t)
	s := StandAlone{FS: fsys}
	w := &groupWriter{name: "ENS_MAA"}
	require.NoError(t, s.Write("/data/out.med", WriteCreate, w))
	assert.Equal(t, 1, w.calls)
	assert.Equal(t, "/data/out.med", w.file)

	v := readVersion(t, fsys, "/data/out.med")
	assert.False(t, v.Less(medfile.Version{Major: 2, Minor: 2}))
	assert.Equal(t, medfile.LibraryVersion, v)
	require.NoError(t, Validator{FS: fsys}.Check("/data/out.med"))

	// append refuses to touch the existing group, overwrite does not
	err := s.Write("/data/out.med", WriteAppend, w)
	assert.ErrorIs(t, err, medfile.ErrExists)
	require.NoError(t, s.Write("/data/out.med", WriteOverwrite, w))
	require.NoError(t, s.Write("/data/out.med", WriteAppend, &groupWriter{name: "other"}))

	f, err := medfile.Open(fsys, "/data/out.med", medfile.ReadOnly)
	require.NoError(t, err)
	assert.Equal(t, []string{"ENS_MAA", "INFOS_GENERALES", "other"}, f.Root().GroupNames())
	require.NoError(t, f.Close())
}

func TestWriteErrors(t *testing.T) {
	fsys := newFS(t)
	s := StandAlone{FS: fsys}
	w := &groupWriter{name: "g"}

	err := s.Write("/data/out.med", 7, w)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Zero(t, w.calls)

	require.NoError(t, fsys.MkdirAll("/locked", 0o555))
	err = s.Write("/locked/out.med", WriteCreate, w)
	assert.ErrorIs(t, err, ErrLibraryCallFailure)
	assert.ErrorIs(t, err, medfile.ErrAccess)
	assert.Contains(t, err.Error(), "error on attempt to write in file")
	assert.Zero(t, w.calls)

	hookErr := errors.New("hook failed")
	err = s.Write("/data/out.med", WriteCreate, &groupWriter{err: hookErr})
	assert.ErrorIs(t, err, hookErr)
}

func TestWrite33(t *testing.T) {
	fsys := newFS(t)
	s := StandAlone{FS: fsys}
	w := &groupWriter{name: "ENS_MAA"}

	require.NoError(t, s.Write33("/data/old.med", WriteOverwrite, w))
	assert.Equal(t, medfile.Version{Major: 3, Minor: 3, Release: 1}, readVersion(t, fsys, "/data/old.med"))

	data, err := util.ReadFile(fsys, "/data/old.med")
	require.NoError(t, err)
	h5, err := hdf5.DecodeBytes(data)
	require.NoError(t, err)
	assert.Equal(t, 0, h5.SuperblockVersion)
	_, ok := h5.Root.Group("ENS_MAA")
	assert.True(t, ok)

	// create mode replaces a modern file
	require.NoError(t, s.Write("/data/new.med", WriteCreate, w))
	require.NoError(t, s.Write33("/data/new.med", WriteCreate, &groupWriter{name: "x"}))
	assert.Equal(t, 3, readVersion(t, fsys, "/data/new.med").Major)

	// overwrite mode keeps the version of an existing modern file
	require.NoError(t, s.Write("/data/modern.med", WriteCreate, w))
	err = s.Write33("/data/modern.med", WriteOverwrite, &groupWriter{name: "x"})
	assert.ErrorIs(t, err, ErrLibraryCallFailure)
	assert.ErrorIs(t, err, medfile.ErrVersion)
}

func TestWrite33Refused(t *testing.T) {
	fsys := newFS(t)
	w := &groupWriter{name: "g"}

	old := StandAlone{FS: fsys, Library: medfile.Version{Major: 3, Minor: 2, Release: 1}}
	err := old.Write33("/data/a.med", WriteCreate, w)
	assert.ErrorIs(t, err, ErrVersionIncompatibility)
	assert.Contains(t, err.Error(), "version >= 3.2.1")
	_, statErr := fsys.Stat("/data/a.med")
	assert.Error(t, statErr, "nothing should be written")

	require.NoError(t, fsys.MkdirAll("/locked", 0o555))
	err = StandAlone{FS: fsys}.Write33("/locked/a.med", WriteCreate, w)
	assert.ErrorIs(t, err, ErrFileAccess)
	assert.Zero(t, w.calls)

	_, err = AccessModeFor(9)
	assert.ErrorIs(t, StandAlone{FS: fsys}.Write33("/data/a.med", 9, w), ErrInvalidArgument)
	assert.Error(t, err)
}

func TestSerialize(t *testing.T) {
	w := &groupWriter{name: "ENS_MAA"}
	data, err := StandAlone{}.Serialize(w)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(w.file, DftFileNameInMem+"_"), w.file)

	f, err := medfile.OpenMemory("check", medfile.NewMemFile(data), medfile.ReadOnly)
	require.NoError(t, err)
	_, ok := f.Root().Group("ENS_MAA")
	assert.True(t, ok)
	require.NoError(t, f.Close())

	first := w.file
	_, err = Serialize(w)
	require.NoError(t, err)
	assert.NotEqual(t, first, w.file, "image names are unique")

	hookErr := errors.New("hook failed")
	_, err = Serialize(&groupWriter{err: hookErr})
	assert.ErrorIs(t, err, hookErr)
}

func TestEmpty33(t *testing.T) {
	data := Empty33()
	require.Len(t, data, 2000)
	f, err := medfile.OpenMemory("empty", medfile.NewMemFile(data), medfile.ReadOnly)
	require.NoError(t, err)
	assert.Equal(t, medfile.Version{Major: 3, Minor: 3, Release: 1}, f.Version())
	require.NoError(t, f.Close())

	data[0] = 0
	assert.Equal(t, byte(0x89), Empty33()[0], "callers get a copy")
}

func TestFileNameOf(t *testing.T) {
	assert.Equal(t, "", FileNameOf(nil))
	f, err := medfile.OpenMemory("named", &medfile.MemFile{}, medfile.Create)
	require.NoError(t, err)
	assert.Equal(t, "named", FileNameOf(f))
	require.NoError(t, f.Close())
}
