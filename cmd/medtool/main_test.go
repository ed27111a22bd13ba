package main

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/batchatco/go-native-med/med"
	"github.com/batchatco/go-native-med/med/medfile"
	"github.com/batchatco/go-native-med/med/mesh"
)

func segments() *mesh.Mesh {
	return &mesh.Mesh{
		Name:     "line",
		SpaceDim: 1,
		MeshDim:  1,
		Coords:   []float64{0, 0.5, 1},
		Blocks:   []mesh.CellBlock{{Type: mesh.Seg2, Conn: []int32{0, 1, 1, 2}}},
	}
}

func TestCheckAndInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "line.med")
	require.NoError(t, segments().Write(path, med.WriteCreate))

	var out bytes.Buffer
	require.NoError(t, check(&out, path))
	assert.Equal(t, path+": MED 4.1.0\n", out.String())

	out.Reset()
	require.NoError(t, info(&out, path))
	assert.Equal(t, path+": MED 4.1.0\n"+
		"  mesh \"line\": dimension 1 in space 1, 3 nodes, 2 cells [SEG2:2]\n", out.String())

	err := check(&out, filepath.Join(t.TempDir(), "missing.med"))
	assert.ErrorIs(t, err, med.ErrFileAccess)
	assert.Equal(t, ErrorCodes["access"], exitCode(err))
}

func TestTouch(t *testing.T) {
	fsys := memfs.New()
	require.NoError(t, fsys.MkdirAll("/data", 0o755))
	s := med.StandAlone{FS: fsys}

	require.NoError(t, touch(s, "/data/new.med", false))
	require.NoError(t, touch(s, "/data/old.med", true))
	// existing files are kept
	require.NoError(t, touch(s, "/data/new.med", false))

	for path, want := range map[string]medfile.Version{
		"/data/new.med": medfile.LibraryVersion,
		"/data/old.med": {Major: 3, Minor: 3, Release: 1},
	} {
		h, err := med.Validator{FS: fsys}.OpenForRead(path)
		require.NoError(t, err)
		assert.Equal(t, want, h.File().Version())
		h.Release()
	}

	// a legacy touch keeps a newer file
	require.NoError(t, touch(s, "/data/new.med", true))
	h, err := med.Validator{FS: fsys}.OpenForRead("/data/new.med")
	require.NoError(t, err)
	assert.Equal(t, medfile.LibraryVersion, h.File().Version())
	h.Release()

	require.NoError(t, util.WriteFile(fsys, "/data/notes.txt", []byte("some notes\n"), 0o644))
	assert.Error(t, touch(s, "/data/notes.txt", true))
	assert.Error(t, touch(s, "/data/notes.txt", false))
}

func TestConvert33(t *testing.T) {
	fsys := memfs.New()
	require.NoError(t, fsys.MkdirAll("/data", 0o755))
	s := med.StandAlone{FS: fsys}
	a := segments()
	b := segments()
	b.Name = "copy"
	require.NoError(t, s.Write("/data/in.med", med.WriteCreate, a))
	require.NoError(t, s.Write("/data/in.med", med.WriteAppend, b))

	require.NoError(t, convert33(s, "/data/in.med", "/data/out.med"))
	h, err := med.Validator{FS: fsys}.OpenForRead("/data/out.med")
	require.NoError(t, err)
	defer h.Release()
	assert.Equal(t, medfile.Version{Major: 3, Minor: 3, Release: 1}, h.File().Version())
	assert.Equal(t, []string{"copy", "line"}, mesh.Names(h.File()))
	got, err := mesh.ReadFile(h.File(), "line")
	require.NoError(t, err)
	assert.Equal(t, a.Coords, got.Coords)
	assert.Equal(t, a.Blocks, got.Blocks)

	err = convert33(s, "/data/none.med", "/data/out2.med")
	assert.ErrorIs(t, err, med.ErrFileAccess)
}

func TestExitCode(t *testing.T) {
	_, err := med.AccessModeFor(5)
	assert.Equal(t, ErrorCodes["badargs"], exitCode(err))
	assert.Equal(t, ErrorCodes["failed"], exitCode(errors.New("other")))
}
