package mesh

import "fmt"

// GeoType is a MED geometric cell type. The value is the MED code:
// hundreds give the cell dimension, the rest the number of nodes.
type GeoType int

const (
	Point1 GeoType = 1
	Seg2   GeoType = 102
	Seg3   GeoType = 103
	Tria3  GeoType = 203
	Quad4  GeoType = 204
	Tria6  GeoType = 206
	Quad8  GeoType = 208
	Tetra4 GeoType = 304
	Pyra5  GeoType = 305
	Penta6 GeoType = 306
	Hexa8  GeoType = 308
)

var geoNames = map[GeoType][2]string{
	Point1: {"POINT1", "PO1"},
	Seg2:   {"SEG2", "SE2"},
	Seg3:   {"SEG3", "SE3"},
	Tria3:  {"TRIA3", "TR3"},
	Quad4:  {"QUAD4", "QU4"},
	Tria6:  {"TRIA6", "TR6"},
	Quad8:  {"QUAD8", "QU8"},
	Tetra4: {"TETRA4", "TE4"},
	Pyra5:  {"PYRA5", "PY5"},
	Penta6: {"PENTA6", "PE6"},
	Hexa8:  {"HEXA8", "HE8"},
}

// Valid reports whether g is one of the supported types.
func (g GeoType) Valid() bool {
	_, ok := geoNames[g]
	return ok
}

// NumNodes is the number of nodes per cell.
func (g GeoType) NumNodes() int {
	if g == Point1 {
		return 1
	}
	return int(g) % 100
}

// Dim is the dimension of the cell.
func (g GeoType) Dim() int {
	return int(g) / 100
}

func (g GeoType) String() string {
	if names, ok := geoNames[g]; ok {
		return names[0]
	}
	return fmt.Sprintf("GeoType(%d)", int(g))
}

// groupName is the name of the group holding cells of this type.
func (g GeoType) groupName() string {
	return geoNames[g][1]
}

func geoTypeOfGroup(name string) (GeoType, bool) {
	for g, names := range geoNames {
		if names[1] == name {
			return g, true
		}
	}
	return 0, false
}
