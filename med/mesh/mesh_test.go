package mesh

import (
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/batchatco/go-native-med/med"
	"github.com/batchatco/go-native-med/med/hdf5"
	"github.com/batchatco/go-native-med/med/medfile"
)

func newFS(t *testing.T) billy.Filesystem {
	t.Helper()
	fsys := memfs.New()
	require.NoError(t, fsys.MkdirAll("/data", 0o755))
	return fsys
}

// square returns two triangles and a quadrangle side by side, with their
// edges along the x axis.
func square() *Mesh {
	return &Mesh{
		Name:        "square",
		Description: "two triangles and a quadrangle",
		TimeUnit:    "s",
		SpaceDim:    2,
		MeshDim:     2,
		AxisNames:   []string{"x", "y"},
		AxisUnits:   []string{"m", "m"},
		Coords: []float64{
			0, 0,
			1, 0,
			1, 1,
			0, 1,
			2, 0,
			2, 1,
		},
		Blocks: []CellBlock{
			{Type: Seg2, Conn: []int32{0, 1, 1, 4}},
			{Type: Tria3, Conn: []int32{1, 4, 5, 1, 5, 2}},
			{Type: Quad4, Conn: []int32{0, 1, 2, 3}},
		},
	}
}

func assertSameMesh(t *testing.T, want, got *Mesh) {
	t.Helper()
	assert.Equal(t, want.Name, got.Name)
	assert.Equal(t, want.Description, got.Description)
	assert.Equal(t, want.TimeUnit, got.TimeUnit)
	assert.Equal(t, want.SpaceDim, got.SpaceDim)
	assert.Equal(t, want.MeshDim, got.MeshDim)
	assert.Equal(t, want.AxisNames, got.AxisNames)
	assert.Equal(t, want.AxisUnits, got.AxisUnits)
	assert.Equal(t, want.Coords, got.Coords)
	assert.Equal(t, want.Blocks, got.Blocks)
}

func TestGeoType(t *testing.T) {
	cases := []struct {
		g     GeoType
		name  string
		nodes int
		dim   int
	}{
		{Point1, "POINT1", 1, 0},
		{Seg3, "SEG3", 3, 1},
		{Tria6, "TRIA6", 6, 2},
		{Quad4, "QUAD4", 4, 2},
		{Pyra5, "PYRA5", 5, 3},
		{Hexa8, "HEXA8", 8, 3},
	}
	for _, c := range cases {
		assert.True(t, c.g.Valid())
		assert.Equal(t, c.name, c.g.String())
		assert.Equal(t, c.nodes, c.g.NumNodes(), c.name)
		assert.Equal(t, c.dim, c.g.Dim(), c.name)
		back, ok := geoTypeOfGroup(c.g.groupName())
		assert.True(t, ok)
		assert.Equal(t, c.g, back)
	}
	assert.False(t, GeoType(205).Valid())
	assert.Equal(t, "GeoType(205)", GeoType(205).String())
	_, ok := geoTypeOfGroup("XX9")
	assert.False(t, ok)
}

func TestValidate(t *testing.T) {
	require.NoError(t, square().Validate())

	cases := []struct {
		name   string
		modify func(m *Mesh)
	}{
		{"no name", func(m *Mesh) { m.Name = "" }},
		{"space dim", func(m *Mesh) { m.SpaceDim = 4 }},
		{"mesh dim", func(m *Mesh) { m.MeshDim = 3 }},
		{"coords", func(m *Mesh) { m.Coords = m.Coords[:5] }},
		{"axis names", func(m *Mesh) { m.AxisNames = []string{"x"} }},
		{"axis units", func(m *Mesh) { m.AxisUnits = []string{"m", "m", "m"} }},
		{"unknown type", func(m *Mesh) { m.Blocks[0].Type = 205 }},
		{"twice", func(m *Mesh) { m.Blocks[2].Type = Tria3; m.Blocks[2].Conn = []int32{0, 1, 2} }},
		{"too high", func(m *Mesh) { m.Blocks = append(m.Blocks, CellBlock{Type: Tetra4, Conn: []int32{0, 1, 2, 3}}) }},
		{"short conn", func(m *Mesh) { m.Blocks[1].Conn = m.Blocks[1].Conn[:5] }},
		{"node out of range", func(m *Mesh) { m.Blocks[2].Conn[3] = 6 }},
		{"negative node", func(m *Mesh) { m.Blocks[0].Conn[0] = -1 }},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			m := square()
			c.modify(m)
			assert.ErrorIs(t, m.Validate(), ErrInvalidMesh)
		})
	}
}

func TestCounts(t *testing.T) {
	m := square()
	assert.Equal(t, 6, m.NumNodes())
	assert.Equal(t, 5, m.NumCells())
	assert.Equal(t, 0, (&Mesh{}).NumNodes())

	unknown := &Mesh{Blocks: []CellBlock{{}, {Type: 205, Conn: []int32{0, 1}}}}
	assert.Equal(t, 0, unknown.NumCells())
}

func TestWriteRead(t *testing.T) {
	fsys := newFS(t)
	s := med.StandAlone{FS: fsys}
	want := square()
	require.NoError(t, s.Write("/data/square.med", med.WriteCreate, want))

	got, err := ReadFS(fsys, "/data/square.med", "square")
	require.NoError(t, err)
	assertSameMesh(t, want, got)

	_, err = ReadFS(fsys, "/data/square.med", "circle")
	assert.ErrorIs(t, err, ErrMeshNotFound)
	_, err = ReadFS(fsys, "/data/square.med", "")
	assert.ErrorIs(t, err, ErrMeshNotFound)
	_, err = ReadFS(fsys, "/data/missing.med", "square")
	assert.ErrorIs(t, err, med.ErrFileAccess)
}

func TestWriteModes(t *testing.T) {
	fsys := newFS(t)
	s := med.StandAlone{FS: fsys}
	a := square()
	b := square()
	b.Name = "other"
	require.NoError(t, s.Write("/data/m.med", med.WriteCreate, a))
	require.NoError(t, s.Write("/data/m.med", med.WriteAppend, b))

	err := s.Write("/data/m.med", med.WriteAppend, a)
	assert.ErrorIs(t, err, medfile.ErrExists)

	a.Coords[0] = -1
	require.NoError(t, s.Write("/data/m.med", med.WriteOverwrite, a))

	h, err := med.Validator{FS: fsys}.OpenForRead("/data/m.med")
	require.NoError(t, err)
	defer h.Release()
	assert.Equal(t, []string{"other", "square"}, Names(h.File()))
	got, err := ReadFile(h.File(), "square")
	require.NoError(t, err)
	assert.Equal(t, -1.0, got.Coords[0])
}

func TestFileLayout(t *testing.T) {
	image, err := square().Serialize()
	require.NoError(t, err)
	f, err := medfile.OpenMemory("image", medfile.NewMemFile(image), medfile.ReadOnly)
	require.NoError(t, err)
	defer f.Close()

	mg, ok := f.Root().Lookup("ENS_MAA/square")
	require.True(t, ok)
	attrs := map[string]any{
		"DIM": int32(2),
		"ESP": int32(2),
		"REP": int32(0),
		"TYP": int32(0),
		"DES": "two triangles and a quadrangle",
		"UNT": "s",
		"NOM": "x" + strings.Repeat(" ", 15) + "y" + strings.Repeat(" ", 15),
		"UNI": "m" + strings.Repeat(" ", 15) + "m" + strings.Repeat(" ", 15),
		"SRT": int32(0),
	}
	for name, want := range attrs {
		got, ok := mg.Attribute(name)
		if assert.True(t, ok, name) {
			assert.Equal(t, want, got, name)
		}
	}

	step, ok := mg.Group(stepName)
	require.True(t, ok)
	ndt, _ := step.Attribute("NDT")
	assert.Equal(t, int32(-1), ndt)
	pdt, _ := step.Attribute("PDT")
	assert.Equal(t, -1.0, pdt)

	coo, ok := step.LookupDataset("NOE/COO")
	require.True(t, ok)
	assert.Equal(t, []float64{0, 1, 1, 0, 2, 2, 0, 0, 1, 1, 0, 1}, coo.Values())
	assertCount(t, coo, 6)

	nod, ok := step.LookupDataset("MAI/TR3/NOD")
	require.True(t, ok)
	assert.Equal(t, []int32{2, 2, 5, 6, 6, 3}, nod.Values())
	assertCount(t, nod, 2)

	mai, ok := step.Group("MAI")
	require.True(t, ok)
	assert.Equal(t, []string{"QU4", "SE2", "TR3"}, mai.GroupNames())
}

func assertCount(t *testing.T, ds *hdf5.Dataset, n int32) {
	t.Helper()
	nbr, _ := ds.Attribute("NBR")
	assert.Equal(t, n, nbr)
	cgt, _ := ds.Attribute("CGT")
	assert.Equal(t, int32(1), cgt)
}

func TestSerialize(t *testing.T) {
	want := square()
	image, err := want.Serialize()
	require.NoError(t, err)
	assert.True(t, hdf5.IsHDF5(image))

	got, err := FromBytes(image, "square")
	require.NoError(t, err)
	assertSameMesh(t, want, got)

	_, err = FromBytes([]byte("not a MED file"), "square")
	assert.ErrorIs(t, err, medfile.ErrNotMED)
}

func TestWrite33(t *testing.T) {
	fsys := newFS(t)
	want := square()
	require.NoError(t, med.StandAlone{FS: fsys}.Write33("/data/old.med", med.WriteCreate, want))

	h, err := med.Validator{FS: fsys}.OpenForRead("/data/old.med")
	require.NoError(t, err)
	defer h.Release()
	v := h.File().Version()
	assert.Equal(t, medfile.Version{Major: 3, Minor: 3, Release: 1}, v)
	got, err := ReadFile(h.File(), "square")
	require.NoError(t, err)
	assertSameMesh(t, want, got)
}

func TestZipConnectivity(t *testing.T) {
	cases := []struct {
		policy int
		cells  int
	}{
		{ZipExact, 3},
		{ZipCyclic, 2},
		{ZipNodes, 1},
		{7, 4},
		{-1, 4},
	}
	for _, c := range cases {
		m := &Mesh{
			Name:     "tri",
			SpaceDim: 2,
			MeshDim:  2,
			Coords:   []float64{0, 0, 1, 0, 0, 1},
			Blocks: []CellBlock{
				{Type: Tria3, Conn: []int32{0, 1, 2, 1, 2, 0, 2, 1, 0, 0, 1, 2}},
			},
		}
		m.SetZipConnPolicy(c.policy)
		image, err := m.Serialize()
		require.NoError(t, err)
		got, err := FromBytes(image, "tri")
		require.NoError(t, err)
		require.Len(t, got.Blocks, 1)
		assert.Equal(t, c.cells, got.Blocks[0].Len(), "policy %d", c.policy)
		assert.Equal(t, []int32{0, 1, 2}, got.Blocks[0].Conn[:3], "policy %d", c.policy)
		// the mesh itself is left alone
		assert.Len(t, m.Blocks[0].Conn, 12)
	}
}

func TestMinRotation(t *testing.T) {
	assert.Equal(t, []int32{0, 1, 2}, minRotation([]int32{1, 2, 0}))
	assert.Equal(t, []int32{0, 2, 1}, minRotation([]int32{2, 1, 0}))
	assert.Equal(t, []int32{3}, minRotation([]int32{3}))
	assert.Equal(t, []int32{1, 1, 2, 5}, minRotation([]int32{2, 5, 1, 1}))
}

func TestLongStrings(t *testing.T) {
	long := strings.Repeat("abcdefghij", 7)

	m := square()
	m.Name = long
	_, err := m.Serialize()
	assert.ErrorIs(t, err, med.ErrInvalidArgument)

	m.AxisNames = []string{"a very long axis name", "y"}
	require.NoError(t, m.SetTooLongStrPolicy(med.TooLongStrTruncate))
	image, err := m.Serialize()
	require.NoError(t, err)
	f, err := medfile.OpenMemory("image", medfile.NewMemFile(image), medfile.ReadOnly)
	require.NoError(t, err)
	defer f.Close()
	require.Equal(t, []string{long[:nameSize]}, Names(f))
	got, err := ReadFile(f, long[:nameSize])
	require.NoError(t, err)
	assert.Equal(t, []string{"a very long axis", "y"}, got.AxisNames)

	require.NoError(t, m.SetTooLongStrPolicy(med.TooLongStrZip))
	image, err = m.Serialize()
	require.NoError(t, err)
	f2, err := medfile.OpenMemory("image", medfile.NewMemFile(image), medfile.ReadOnly)
	require.NoError(t, err)
	defer f2.Close()
	names := Names(f2)
	require.Len(t, names, 1)
	assert.Len(t, names[0], nameSize)
	assert.Contains(t, names[0], "...")
}

func TestEmptyMesh(t *testing.T) {
	m := &Mesh{Name: "empty", SpaceDim: 3}
	image, err := m.Serialize()
	require.NoError(t, err)
	got, err := FromBytes(image, "empty")
	require.NoError(t, err)
	assert.Equal(t, 0, got.NumNodes())
	assert.Empty(t, got.Blocks)
	assert.Equal(t, []string{"", "", ""}, got.AxisNames)
}
