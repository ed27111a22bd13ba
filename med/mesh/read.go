package mesh

import (
	"fmt"
	"slices"
	"strings"

	"github.com/go-git/go-billy/v5"

	"github.com/batchatco/go-native-med/med"
	"github.com/batchatco/go-native-med/med/hdf5"
	"github.com/batchatco/go-native-med/med/medfile"
)

// Names lists the meshes stored in f.
func Names(f *medfile.File) []string {
	meshes, ok := f.Root().Group(meshesGroup)
	if !ok {
		return nil
	}
	return meshes.GroupNames()
}

// Read loads the mesh called name from a MED file on the local filesystem.
func Read(path, name string) (*Mesh, error) {
	return ReadFS(nil, path, name)
}

// ReadFS is Read on fsys. The file is validated before it is opened.
func ReadFS(fsys billy.Filesystem, path, name string) (*Mesh, error) {
	h, err := med.Validator{FS: fsys}.OpenForRead(path)
	if err != nil {
		return nil, err
	}
	defer h.Release()
	return ReadFile(h.File(), name)
}

// FromBytes loads the mesh called name from a MED file image.
func FromBytes(image []byte, name string) (*Mesh, error) {
	f, err := medfile.OpenMemory(med.GenerateUniqueDftFileNameInMem(),
		medfile.NewMemFile(image), medfile.ReadOnly)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadFile(f, name)
}

// ReadFile loads the mesh called name from an open file.
func ReadFile(f *medfile.File, name string) (*Mesh, error) {
	mg, ok := f.Root().Lookup(meshesGroup + "/" + name)
	if !ok || name == "" {
		return nil, fmt.Errorf("%w: %q in %s", ErrMeshNotFound, name, f.Name())
	}
	m := &Mesh{Name: name}
	var err error
	if m.MeshDim, err = intAttribute(mg, "DIM"); err != nil {
		return nil, err
	}
	if m.SpaceDim, err = intAttribute(mg, "ESP"); err != nil {
		return nil, err
	}
	if m.SpaceDim < 1 || m.SpaceDim > 3 {
		return nil, fmt.Errorf("%w: space dimension %d", ErrCorrupted, m.SpaceDim)
	}
	m.Description = stringAttribute(mg, "DES")
	m.TimeUnit = stringAttribute(mg, "UNT")
	m.AxisNames = unpackNames(stringAttribute(mg, "NOM"), m.SpaceDim)
	m.AxisUnits = unpackNames(stringAttribute(mg, "UNI"), m.SpaceDim)

	step, ok := mg.Group(stepName)
	if !ok {
		steps := mg.GroupNames()
		if len(steps) == 0 {
			return nil, fmt.Errorf("%w: %q has no time step", ErrCorrupted, name)
		}
		logger.Warnf("mesh %q has no default step, using %q", name, steps[0])
		step, _ = mg.Group(steps[0])
	}
	if err := m.readNodes(step); err != nil {
		return nil, err
	}
	if err := m.readCells(step); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	return m, nil
}

func (m *Mesh) readNodes(step *hdf5.Group) error {
	ds, ok := step.LookupDataset(nodesGroup + "/" + coordsName)
	if !ok {
		return fmt.Errorf("%w: %q has no coordinates", ErrCorrupted, m.Name)
	}
	coords, ok := ds.Values().([]float64)
	if !ok || len(coords)%m.SpaceDim != 0 {
		return fmt.Errorf("%w: %q coordinates are %T of length %d", ErrCorrupted,
			m.Name, ds.Values(), ds.Len())
	}
	n := len(coords) / m.SpaceDim
	m.Coords = make([]float64, len(coords))
	for i := range n {
		for d := range m.SpaceDim {
			m.Coords[i*m.SpaceDim+d] = coords[d*n+i]
		}
	}
	return nil
}

func (m *Mesh) readCells(step *hdf5.Group) error {
	cells, ok := step.Group(cellsGroup)
	if !ok {
		return nil
	}
	for _, gname := range cells.GroupNames() {
		g, ok := geoTypeOfGroup(gname)
		if !ok {
			logger.Warnf("skipping unsupported cell type %q in mesh %q", gname, m.Name)
			continue
		}
		ds, ok := cells.LookupDataset(gname + "/" + connName)
		if !ok {
			return fmt.Errorf("%w: %v cells of %q have no connectivity", ErrCorrupted, g, m.Name)
		}
		conn, ok := ds.Values().([]int32)
		nn := g.NumNodes()
		if !ok || len(conn)%nn != 0 {
			return fmt.Errorf("%w: %v connectivity of %q is %T of length %d", ErrCorrupted,
				g, m.Name, ds.Values(), ds.Len())
		}
		nCells := len(conn) / nn
		b := CellBlock{Type: g, Conn: make([]int32, len(conn))}
		for c := range nCells {
			for k := range nn {
				b.Conn[c*nn+k] = conn[k*nCells+c] - 1
			}
		}
		m.Blocks = append(m.Blocks, b)
	}
	slices.SortFunc(m.Blocks, func(a, b CellBlock) int {
		return int(a.Type) - int(b.Type)
	})
	return nil
}

func intAttribute(g *hdf5.Group, name string) (int, error) {
	val, ok := g.Attribute(name)
	if !ok {
		return 0, fmt.Errorf("%w: %s has no %s", ErrCorrupted, g.Name(), name)
	}
	switch v := val.(type) {
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	}
	return 0, fmt.Errorf("%w: %s/%s is %T", ErrCorrupted, g.Name(), name, val)
}

func stringAttribute(g *hdf5.Group, name string) string {
	val, ok := g.Attribute(name)
	if !ok {
		return ""
	}
	s, ok := val.(string)
	if !ok {
		logger.Warnf("attribute %s/%s is %T, not a string", g.Name(), name, val)
		return ""
	}
	return strings.TrimRight(s, "\x00")
}
