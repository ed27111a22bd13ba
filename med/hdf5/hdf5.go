// Package hdf5 reads and writes the subset of HDF5 that MED files use:
// groups, contiguous or compact datasets and attributes holding
// fixed-point, floating-point or fixed-length string values.
//
// A file is decoded into an in-memory tree of groups and datasets and
// encoded back in one pass, either in the "earliest" layout (superblock
// version 0 with symbol-table groups) or the "latest" layout (superblock
// version 2 with link messages).
package hdf5

import (
	"bytes"
	"io"

	"github.com/batchatco/go-native-med/med/util"
	"github.com/batchatco/go-thrower"
)

var (
	logger = util.NewLogger()
	log    = "don't use the log package" // prevents usage of standard log package
)

const (
	magic          = "\x89HDF\r\n\x1a\n"
	invalidAddress = uint64(0xffffffffffffffff)
)

// Layout selects the on-disk structures used by Encode.
type Layout int

const (
	// LayoutEarliest writes a version 0 superblock, version 1 object
	// headers and symbol-table groups, readable by every HDF5 release.
	LayoutEarliest Layout = iota
	// LayoutLatest writes a version 2 superblock, version 2 object headers
	// and compact link storage.
	LayoutLatest
)

func (l Layout) String() string {
	switch l {
	case LayoutEarliest:
		return "earliest"
	case LayoutLatest:
		return "latest"
	}
	return "unknown"
}

// File is a decoded HDF5 file.
type File struct {
	Root              *Group
	SuperblockVersion int
}

// IsHDF5 reports whether b starts with the HDF5 signature.
func IsHDF5(b []byte) bool {
	return bytes.HasPrefix(b, []byte(magic))
}

// Decode reads a whole HDF5 file of the given size.
func Decode(r io.ReaderAt, size int64) (f *File, err error) {
	defer thrower.RecoverError(&err)
	d := newDecoder(r, size)
	return d.decode(), nil
}

// DecodeBytes is Decode for an in-memory image.
func DecodeBytes(b []byte) (*File, error) {
	return Decode(bytes.NewReader(b), int64(len(b)))
}

// Encode writes root and everything below it to w.
func Encode(w io.Writer, root *Group, layout Layout) (err error) {
	defer thrower.RecoverError(&err)
	var data []byte
	switch layout {
	case LayoutEarliest:
		data = newEarliestWriter().encode(root)
	case LayoutLatest:
		data = newLatestWriter().encode(root)
	default:
		failError(ErrInternal, "unknown layout")
	}
	util.MustWriteRaw(w, data)
	return nil
}

// EncodeBytes is Encode into a new byte slice.
func EncodeBytes(root *Group, layout Layout) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, root, layout); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func SetLogLevel(level int) {
	logger.SetLogLevel(level)
}
