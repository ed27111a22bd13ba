package util

import (
	"errors"
	"sort"
)

// OrderedMap keeps attribute values in insertion order, which is the order
// they are written to an object header.
type OrderedMap struct {
	keys   []string
	values map[string]any
}

var (
	ErrorKeysDontMatchValues = errors.New("keys don't match values")
)

func NewOrderedMap(keys []string, values map[string]any) (*OrderedMap, error) {
	if len(keys) != len(values) {
		return nil, ErrorKeysDontMatchValues
	}
	mapKeys := []string{}
	for k := range values {
		mapKeys = append(mapKeys, k)
	}
	sort.Strings(mapKeys)

	sortedKeys := make([]string, len(keys))
	copy(sortedKeys, keys)
	sort.Strings(sortedKeys)

	for i := range sortedKeys {
		if mapKeys[i] != sortedKeys[i] {
			return nil, ErrorKeysDontMatchValues
		}
	}
	if values == nil {
		values = map[string]any{}
	}
	return &OrderedMap{
		keys:   append([]string{}, keys...),
		values: values}, nil
}

// Add appends name, or replaces its value in place if it is already present.
func (om *OrderedMap) Add(name string, val any) {
	if om.values == nil {
		om.values = map[string]any{}
	}
	if _, has := om.values[name]; !has {
		om.keys = append(om.keys, name)
	}
	om.values[name] = val
}

func (om *OrderedMap) Get(key string) (val any, has bool) {
	val, has = om.values[key]
	return
}

// Delete removes key and reports whether it was present.
func (om *OrderedMap) Delete(key string) bool {
	if _, has := om.values[key]; !has {
		return false
	}
	delete(om.values, key)
	for i, k := range om.keys {
		if k == key {
			om.keys = append(om.keys[:i], om.keys[i+1:]...)
			break
		}
	}
	return true
}

func (om *OrderedMap) Keys() []string {
	return om.keys
}

func (om *OrderedMap) Len() int {
	return len(om.keys)
}
