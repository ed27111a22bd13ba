package hdf5

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"reflect"
	"strings"

	"github.com/batchatco/go-native-med/med/util"
)

const (
	classFixedPoint    = 0
	classFloatingPoint = 1
	classString        = 3
)

// string padding types
const (
	padNullTerm = 0
	padNullPad  = 1
	padSpacePad = 2
)

type datatype struct {
	class     uint8
	size      uint32
	signed    bool
	bigEndian bool
	strPad    uint8
}

func (dt datatype) order() binary.ByteOrder {
	if dt.bigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// elemKind returns the scalar kind of values, looking through one level of
// slice, or reflect.Invalid if values is not something we can store.
func elemKind(values any) (kind reflect.Kind, isSlice bool) {
	rv := reflect.ValueOf(values)
	if !rv.IsValid() {
		return reflect.Invalid, false
	}
	t := rv.Type()
	if t.Kind() == reflect.Slice {
		isSlice = true
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Int8, reflect.Uint8,
		reflect.Int16, reflect.Uint16,
		reflect.Int32, reflect.Uint32,
		reflect.Int64, reflect.Uint64,
		reflect.Float32, reflect.Float64,
		reflect.String:
		return t.Kind(), isSlice
	}
	return reflect.Invalid, isSlice
}

// checkShape validates values against dims and returns the shape to store.
func checkShape(values any, dims []uint64) ([]uint64, error) {
	kind, isSlice := elemKind(values)
	if kind == reflect.Invalid {
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedType, values)
	}
	if !isSlice {
		if len(dims) > 0 && product(dims) != 1 {
			return nil, fmt.Errorf("%w: scalar with shape %v", ErrDimensionality, dims)
		}
		return dims, nil
	}
	n := uint64(reflect.ValueOf(values).Len())
	if dims == nil {
		return []uint64{n}, nil
	}
	if len(dims) == 0 || product(dims) != n {
		return nil, fmt.Errorf("%w: %d values for shape %v", ErrDimensionality, n, dims)
	}
	return dims, nil
}

// datatypeOf picks the HDF5 datatype for a value accepted by checkShape.
func datatypeOf(values any) datatype {
	kind, _ := elemKind(values)
	switch kind {
	case reflect.Int8:
		return datatype{class: classFixedPoint, size: 1, signed: true}
	case reflect.Uint8:
		return datatype{class: classFixedPoint, size: 1}
	case reflect.Int16:
		return datatype{class: classFixedPoint, size: 2, signed: true}
	case reflect.Uint16:
		return datatype{class: classFixedPoint, size: 2}
	case reflect.Int32:
		return datatype{class: classFixedPoint, size: 4, signed: true}
	case reflect.Uint32:
		return datatype{class: classFixedPoint, size: 4}
	case reflect.Int64:
		return datatype{class: classFixedPoint, size: 8, signed: true}
	case reflect.Uint64:
		return datatype{class: classFixedPoint, size: 8}
	case reflect.Float32:
		return datatype{class: classFloatingPoint, size: 4}
	case reflect.Float64:
		return datatype{class: classFloatingPoint, size: 8}
	case reflect.String:
		maxLen := 0
		findMaxLen(reflect.ValueOf(values), &maxLen)
		return datatype{class: classString, size: uint32(maxLen + 1), strPad: padNullTerm}
	}
	failError(ErrUnsupportedType, fmt.Sprintf("%T", values))
	return datatype{}
}

func findMaxLen(rv reflect.Value, maxLen *int) {
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		for i := range rv.Len() {
			findMaxLen(rv.Index(i), maxLen)
		}
		return
	}
	if rv.Kind() == reflect.String {
		l := len(rv.String())
		if l > *maxLen {
			*maxLen = l
		}
	}
}

// encodeValues returns the little-endian raw bytes for values.
func encodeValues(dt datatype, values any) []byte {
	buf := new(bytes.Buffer)
	rv := reflect.ValueOf(values)
	if dt.class == classString {
		writeString := func(s string) {
			util.MustWriteRaw(buf, []byte(s))
			util.MustWriteZeros(buf, int(dt.size)-len(s))
		}
		if rv.Kind() == reflect.Slice {
			for i := range rv.Len() {
				writeString(rv.Index(i).String())
			}
		} else {
			writeString(rv.String())
		}
		return buf.Bytes()
	}
	util.MustWriteLE(buf, values)
	return buf.Bytes()
}

// decodeValues converts raw bytes into a scalar (when scalar is set) or a
// flat slice of count elements.
func decodeValues(dt datatype, count uint64, scalar bool, raw []byte) any {
	need := count * uint64(dt.size)
	assertError(uint64(len(raw)) >= need, ErrCorrupted,
		fmt.Sprintf("data has %d bytes, need %d", len(raw), need))
	raw = raw[:need]
	if dt.class == classString {
		values := make([]string, count)
		for i := range values {
			b := raw[uint64(i)*uint64(dt.size) : uint64(i+1)*uint64(dt.size)]
			values[i] = getString(b, dt.strPad)
		}
		if scalar {
			return values[0]
		}
		return values
	}
	var t reflect.Type
	switch dt.class {
	case classFixedPoint:
		t = fixedPointType(dt)
	case classFloatingPoint:
		switch dt.size {
		case 4:
			t = reflect.TypeOf(float32(0))
		case 8:
			t = reflect.TypeOf(float64(0))
		}
	}
	assertError(t != nil, ErrUnsupportedType,
		fmt.Sprintf("class %d size %d", dt.class, dt.size))
	values := reflect.MakeSlice(reflect.SliceOf(t), int(count), int(count))
	if count == 0 {
		return values.Interface()
	}
	util.MustRead(bytes.NewReader(raw), dt.order(), values.Interface())
	if scalar {
		return values.Index(0).Interface()
	}
	return values.Interface()
}

func fixedPointType(dt datatype) reflect.Type {
	switch dt.size {
	case 1:
		if dt.signed {
			return reflect.TypeOf(int8(0))
		}
		return reflect.TypeOf(uint8(0))
	case 2:
		if dt.signed {
			return reflect.TypeOf(int16(0))
		}
		return reflect.TypeOf(uint16(0))
	case 4:
		if dt.signed {
			return reflect.TypeOf(int32(0))
		}
		return reflect.TypeOf(uint32(0))
	case 8:
		if dt.signed {
			return reflect.TypeOf(int64(0))
		}
		return reflect.TypeOf(uint64(0))
	}
	return nil
}

func getString(b []byte, pad uint8) string {
	if pad == padSpacePad {
		return strings.TrimRight(string(b), " ")
	}
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// zeroValues is used for datasets whose storage was never allocated.
func zeroValues(dt datatype, count uint64, scalar bool) any {
	return decodeValues(dt, count, scalar, make([]byte, count*uint64(dt.size)))
}
