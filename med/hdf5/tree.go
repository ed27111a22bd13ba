package hdf5

import (
	"fmt"
	"slices"
	"strings"

	"github.com/batchatco/go-native-med/internal"
	"github.com/batchatco/go-native-med/med/util"
)

// Group is a node of the file tree. The root group has the name "/".
type Group struct {
	name       string
	attributes *util.OrderedMap
	groups     map[string]*Group
	datasets   map[string]*Dataset
}

// Dataset holds one array value. Values is a scalar or a flat slice; Dims
// gives its shape and is nil for scalars.
type Dataset struct {
	name       string
	values     any
	dims       []uint64
	attributes *util.OrderedMap
}

// NewRoot returns an empty root group.
func NewRoot() *Group {
	return newGroup("/")
}

func newGroup(name string) *Group {
	return &Group{
		name:       name,
		attributes: &util.OrderedMap{},
		groups:     make(map[string]*Group),
		datasets:   make(map[string]*Dataset),
	}
}

func (g *Group) Name() string {
	return g.name
}

// Attributes returns the attributes in the order they are written.
func (g *Group) Attributes() *util.OrderedMap {
	return g.attributes
}

func (g *Group) Attribute(name string) (any, bool) {
	return g.attributes.Get(name)
}

// SetAttribute adds or replaces an attribute.
func (g *Group) SetAttribute(name string, val any) error {
	return setAttribute(g.attributes, name, val)
}

// Group returns the direct subgroup called name.
func (g *Group) Group(name string) (*Group, bool) {
	sub, ok := g.groups[name]
	return sub, ok
}

// Dataset returns the direct child dataset called name.
func (g *Group) Dataset(name string) (*Dataset, bool) {
	ds, ok := g.datasets[name]
	return ds, ok
}

// Has reports whether name is used by a subgroup or a dataset.
func (g *Group) Has(name string) bool {
	_, isGroup := g.groups[name]
	_, isData := g.datasets[name]
	return isGroup || isData
}

// CreateGroup returns the subgroup called name, creating it if needed.
func (g *Group) CreateGroup(name string) (*Group, error) {
	if !internal.IsValidLinkName(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if sub, ok := g.groups[name]; ok {
		return sub, nil
	}
	if _, ok := g.datasets[name]; ok {
		return nil, fmt.Errorf("%w: %q is a dataset", ErrExists, name)
	}
	sub := newGroup(name)
	g.groups[name] = sub
	return sub, nil
}

// CreateDataset adds a dataset, replacing any dataset with the same name.
// dims may be nil, in which case a slice is one-dimensional and anything
// else is a scalar.
func (g *Group) CreateDataset(name string, values any, dims []uint64) (*Dataset, error) {
	if !internal.IsValidLinkName(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if _, ok := g.groups[name]; ok {
		return nil, fmt.Errorf("%w: %q is a group", ErrExists, name)
	}
	shape, err := checkShape(values, dims)
	if err != nil {
		return nil, err
	}
	ds := &Dataset{
		name:       name,
		values:     values,
		dims:       shape,
		attributes: &util.OrderedMap{},
	}
	g.datasets[name] = ds
	return ds, nil
}

// Remove deletes the child called name and reports whether it existed.
func (g *Group) Remove(name string) bool {
	if _, ok := g.groups[name]; ok {
		delete(g.groups, name)
		return true
	}
	if _, ok := g.datasets[name]; ok {
		delete(g.datasets, name)
		return true
	}
	return false
}

// GroupNames lists subgroups in byte order.
func (g *Group) GroupNames() []string {
	names := make([]string, 0, len(g.groups))
	for name := range g.groups {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// DatasetNames lists datasets in byte order.
func (g *Group) DatasetNames() []string {
	names := make([]string, 0, len(g.datasets))
	for name := range g.datasets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// childNames lists all links in byte order, which is also the order
// symbol-table B-trees require.
func (g *Group) childNames() []string {
	names := append(g.GroupNames(), g.DatasetNames()...)
	slices.Sort(names)
	return names
}

// Lookup walks a slash separated path relative to g. Empty path elements
// are ignored so "/a/b" and "a/b" are the same.
func (g *Group) Lookup(path string) (*Group, bool) {
	cur := g
	for _, part := range strings.Split(path, "/") {
		if part == "" {
			continue
		}
		next, ok := cur.groups[part]
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// LookupDataset finds a dataset by slash separated path relative to g.
func (g *Group) LookupDataset(path string) (*Dataset, bool) {
	i := strings.LastIndex(path, "/")
	parent := g
	if i >= 0 {
		var ok bool
		parent, ok = g.Lookup(path[:i])
		if !ok {
			return nil, false
		}
	}
	return parent.Dataset(path[i+1:])
}

func (d *Dataset) Name() string {
	return d.name
}

// Values returns the scalar or flat slice held by the dataset.
func (d *Dataset) Values() any {
	return d.values
}

// Dims returns the shape, nil for scalars.
func (d *Dataset) Dims() []uint64 {
	return d.dims
}

// Len is the number of elements, 1 for scalars.
func (d *Dataset) Len() uint64 {
	return product(d.dims)
}

func (d *Dataset) Attributes() *util.OrderedMap {
	return d.attributes
}

func (d *Dataset) Attribute(name string) (any, bool) {
	return d.attributes.Get(name)
}

func (d *Dataset) SetAttribute(name string, val any) error {
	return setAttribute(d.attributes, name, val)
}

func setAttribute(am *util.OrderedMap, name string, val any) error {
	if !internal.IsValidLinkName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if _, err := checkShape(val, nil); err != nil {
		return err
	}
	am.Add(name, val)
	return nil
}

func product(dims []uint64) uint64 {
	n := uint64(1)
	for _, d := range dims {
		n *= d
	}
	return n
}
