// Package mesh writes unstructured meshes to MED files and reads them back.
package mesh

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/batchatco/go-native-med/med"
	"github.com/batchatco/go-native-med/med/hdf5"
	"github.com/batchatco/go-native-med/med/medfile"
	"github.com/batchatco/go-native-med/med/util"
)

var (
	logger = util.NewLogger()
	log    = "don't use the log package" // prevents usage of standard log package
)

var (
	// ErrInvalidMesh is returned for meshes that cannot be written
	ErrInvalidMesh = errors.New("invalid mesh")

	// ErrMeshNotFound is returned when a file has no mesh of the requested name
	ErrMeshNotFound = errors.New("mesh not found")

	// ErrCorrupted is returned for mesh groups missing required content
	ErrCorrupted = errors.New("corrupted mesh")
)

// MED string widths
const (
	nameSize        = 64
	descriptionSize = 200
	snameSize       = 16
)

const (
	meshesGroup = "ENS_MAA"
	nodesGroup  = "NOE"
	cellsGroup  = "MAI"
	coordsName  = "COO"
	connName    = "NOD"

	// group of the single time step of a mesh with no time information
	stepName = "-0000000000000000001-0000000000000000001"
)

// CellBlock holds cells of one type. Conn lists the 0-based node numbers
// of each cell in turn.
type CellBlock struct {
	Type GeoType
	Conn []int32
}

// Len is the number of cells, 0 for an unknown cell type.
func (b CellBlock) Len() int {
	if !b.Type.Valid() {
		return 0
	}
	return len(b.Conn) / b.Type.NumNodes()
}

// Mesh is an unstructured mesh. Coords holds SpaceDim values per node,
// node after node.
type Mesh struct {
	med.Writable

	Name        string
	Description string
	TimeUnit    string
	SpaceDim    int
	MeshDim     int
	AxisNames   []string
	AxisUnits   []string
	Coords      []float64
	Blocks      []CellBlock
}

// NumNodes is the number of nodes in Coords.
func (m *Mesh) NumNodes() int {
	if m.SpaceDim <= 0 {
		return 0
	}
	return len(m.Coords) / m.SpaceDim
}

// NumCells is the number of cells over all blocks.
func (m *Mesh) NumCells() int {
	n := 0
	for _, b := range m.Blocks {
		n += b.Len()
	}
	return n
}

// Validate checks that the mesh is consistent.
func (m *Mesh) Validate() error {
	switch {
	case m.Name == "":
		return fmt.Errorf("%w: no name", ErrInvalidMesh)
	case m.SpaceDim < 1 || m.SpaceDim > 3:
		return fmt.Errorf("%w: space dimension %d", ErrInvalidMesh, m.SpaceDim)
	case m.MeshDim < 0 || m.MeshDim > m.SpaceDim:
		return fmt.Errorf("%w: mesh dimension %d in space dimension %d", ErrInvalidMesh, m.MeshDim, m.SpaceDim)
	case len(m.Coords)%m.SpaceDim != 0:
		return fmt.Errorf("%w: %d coordinates in dimension %d", ErrInvalidMesh, len(m.Coords), m.SpaceDim)
	case len(m.AxisNames) != 0 && len(m.AxisNames) != m.SpaceDim:
		return fmt.Errorf("%w: %d axis names", ErrInvalidMesh, len(m.AxisNames))
	case len(m.AxisUnits) != 0 && len(m.AxisUnits) != m.SpaceDim:
		return fmt.Errorf("%w: %d axis units", ErrInvalidMesh, len(m.AxisUnits))
	}
	nNodes := int32(m.NumNodes())
	seen := make(map[GeoType]bool)
	for _, b := range m.Blocks {
		switch {
		case !b.Type.Valid():
			return fmt.Errorf("%w: cell type %v", ErrInvalidMesh, b.Type)
		case seen[b.Type]:
			return fmt.Errorf("%w: two blocks of %v", ErrInvalidMesh, b.Type)
		case b.Type.Dim() > m.MeshDim:
			return fmt.Errorf("%w: %v cells in a mesh of dimension %d", ErrInvalidMesh, b.Type, m.MeshDim)
		case len(b.Conn)%b.Type.NumNodes() != 0:
			return fmt.Errorf("%w: %d node numbers for %v", ErrInvalidMesh, len(b.Conn), b.Type)
		}
		seen[b.Type] = true
		for i, n := range b.Conn {
			if n < 0 || n >= nNodes {
				return fmt.Errorf("%w: %v cell %d uses node %d of %d", ErrInvalidMesh,
					b.Type, i/b.Type.NumNodes(), n, nNodes)
			}
		}
	}
	return nil
}

// WriteContent writes the mesh under /ENS_MAA. It implements
// med.ContentWriter.
func (m *Mesh) WriteContent(f *medfile.File) error {
	if err := m.Validate(); err != nil {
		return err
	}
	name, err := m.FitString(m.Name, nameSize)
	if err != nil {
		return err
	}
	desc, err := m.FitString(m.Description, descriptionSize)
	if err != nil {
		return err
	}
	timeUnit, err := m.FitString(m.TimeUnit, snameSize)
	if err != nil {
		return err
	}
	axisNames, err := m.packNames(m.AxisNames)
	if err != nil {
		return err
	}
	axisUnits, err := m.packNames(m.AxisUnits)
	if err != nil {
		return err
	}
	if err := f.CheckWritable(meshesGroup + "/" + name); err != nil {
		return err
	}

	meshes, err := f.Root().CreateGroup(meshesGroup)
	if err != nil {
		return err
	}
	meshes.Remove(name)
	mg, err := meshes.CreateGroup(name)
	if err != nil {
		return err
	}
	attrs := []struct {
		name string
		val  any
	}{
		{"DIM", int32(m.MeshDim)},
		{"ESP", int32(m.SpaceDim)},
		{"REP", int32(0)}, // cartesian
		{"TYP", int32(0)}, // unstructured
		{"DES", desc},
		{"UNT", timeUnit},
		{"NOM", axisNames},
		{"UNI", axisUnits},
		{"SRT", int32(0)}, // sorted by time step then iteration
	}
	for _, a := range attrs {
		if err := mg.SetAttribute(a.name, a.val); err != nil {
			return err
		}
	}

	step, err := mg.CreateGroup(stepName)
	if err != nil {
		return err
	}
	for _, a := range []struct {
		name string
		val  any
	}{{"NDT", int32(-1)}, {"NOR", int32(-1)}, {"PDT", float64(-1)}} {
		if err := step.SetAttribute(a.name, a.val); err != nil {
			return err
		}
	}
	if err := m.writeNodes(step); err != nil {
		return err
	}
	if err := m.writeCells(step); err != nil {
		return err
	}
	logger.Infof("wrote mesh %q: %d nodes, %d cells", name, m.NumNodes(), m.NumCells())
	return nil
}

// packNames pads each name to the MED short name width and concatenates
// them.
func (m *Mesh) packNames(names []string) (string, error) {
	var sb strings.Builder
	for i := range m.SpaceDim {
		name := ""
		if i < len(names) {
			name = names[i]
		}
		fitted, err := m.FitString(name, snameSize)
		if err != nil {
			return "", err
		}
		sb.WriteString(fitted)
		sb.WriteString(strings.Repeat(" ", snameSize-len(fitted)))
	}
	return sb.String(), nil
}

func unpackNames(packed string, n int) []string {
	names := make([]string, n)
	for i := range names {
		start := min(i*snameSize, len(packed))
		end := min(start+snameSize, len(packed))
		names[i] = strings.TrimRight(packed[start:end], " ")
	}
	return names
}

func (m *Mesh) writeNodes(step *hdf5.Group) error {
	nodes, err := step.CreateGroup(nodesGroup)
	if err != nil {
		return err
	}
	n := m.NumNodes()
	coords := make([]float64, len(m.Coords))
	for i := range n {
		for d := range m.SpaceDim {
			coords[d*n+i] = m.Coords[i*m.SpaceDim+d]
		}
	}
	ds, err := nodes.CreateDataset(coordsName, coords, nil)
	if err != nil {
		return err
	}
	return setCountAttributes(ds, n)
}

func (m *Mesh) writeCells(step *hdf5.Group) error {
	cells, err := step.CreateGroup(cellsGroup)
	if err != nil {
		return err
	}
	for _, b := range m.Blocks {
		b = zipBlock(b, m.ZipConnPolicy())
		g, err := cells.CreateGroup(b.Type.groupName())
		if err != nil {
			return err
		}
		nCells := b.Len()
		nn := b.Type.NumNodes()
		conn := make([]int32, len(b.Conn))
		for c := range nCells {
			for k := range nn {
				conn[k*nCells+c] = b.Conn[c*nn+k] + 1
			}
		}
		ds, err := g.CreateDataset(connName, conn, nil)
		if err != nil {
			return err
		}
		if err := setCountAttributes(ds, nCells); err != nil {
			return err
		}
	}
	return nil
}

func setCountAttributes(ds *hdf5.Dataset, n int) error {
	if err := ds.SetAttribute("NBR", int32(n)); err != nil {
		return err
	}
	return ds.SetAttribute("CGT", int32(1))
}

// Zip connectivity policies: which cells of a block count as duplicates.
const (
	ZipExact  = 0 // same nodes in the same order
	ZipCyclic = 1 // same nodes up to a rotation
	ZipNodes  = 2 // same set of nodes
)

// zipBlock drops cells that duplicate an earlier cell of the block. Other
// policy values leave the block alone.
func zipBlock(b CellBlock, policy int) CellBlock {
	var key func(cell []int32) string
	switch policy {
	case ZipExact:
		key = func(cell []int32) string { return fmt.Sprint(cell) }
	case ZipCyclic:
		key = func(cell []int32) string { return fmt.Sprint(minRotation(cell)) }
	case ZipNodes:
		key = func(cell []int32) string { return fmt.Sprint(slices.Sorted(slices.Values(cell))) }
	default:
		return b
	}
	nn := b.Type.NumNodes()
	seen := make(map[string]bool)
	zipped := CellBlock{Type: b.Type}
	for c := range b.Len() {
		cell := b.Conn[c*nn : (c+1)*nn]
		k := key(cell)
		if seen[k] {
			continue
		}
		seen[k] = true
		zipped.Conn = append(zipped.Conn, cell...)
	}
	if dropped := b.Len() - zipped.Len(); dropped > 0 {
		logger.Infof("zipped %d duplicate %v cells", dropped, b.Type)
	}
	return zipped
}

// minRotation returns the lexicographically smallest rotation of cell.
func minRotation(cell []int32) []int32 {
	best := slices.Clone(cell)
	rot := make([]int32, len(cell))
	for i := 1; i < len(cell); i++ {
		copy(rot, cell[i:])
		copy(rot[len(cell)-i:], cell[:i])
		if slices.Compare(rot, best) < 0 {
			copy(best, rot)
		}
	}
	return best
}

// Write writes the mesh to path on the local filesystem.
func (m *Mesh) Write(path string, mode int) error {
	return med.Write(path, mode, m)
}

// Write33 writes the mesh to a MED 3.3 file on the local filesystem.
func (m *Mesh) Write33(path string, mode int) error {
	return med.Write33(path, mode, m)
}

// Serialize returns a MED file image holding the mesh.
func (m *Mesh) Serialize() ([]byte, error) {
	return med.Serialize(m)
}

func SetLogLevel(level int) {
	logger.SetLogLevel(level)
}
