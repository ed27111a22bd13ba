package hdf5

import "errors"

var (
	// ErrBadMagic is returned when the file is not an HDF5 file
	ErrBadMagic = errors.New("bad magic number")

	// ErrInternal is an internal error not otherwise specified here
	ErrInternal = errors.New("internal error")

	// ErrNotFound is returned for items requested that don't exist
	ErrNotFound = errors.New("not found")

	// ErrExists is returned when a name is already used by another kind of object
	ErrExists = errors.New("name already in use")

	// ErrVersion is returned when the particular HDF5 version is not supported
	ErrVersion = errors.New("hdf5 version not supported")

	// ErrLinkType is returned for an unrecognized or unsupported link type or link storage
	ErrLinkType = errors.New("link type not supported")

	// ErrTruncated is returned when the file has fewer bytes than the superblock says
	ErrTruncated = errors.New("file is too small, may be truncated")

	// ErrOffsetSize is returned when offsets other than 64-bit are indicated.
	// Only 64-bit is supported in this implementation.
	ErrOffsetSize = errors.New("only 64-bit offsets are supported")

	// ErrDimensionality is returned when invalid dimensions are specified
	ErrDimensionality = errors.New("invalid dimensionality")

	// ErrDataspaceVersion is returned for unsupported dataspace versions
	ErrDataspaceVersion = errors.New("dataspace version not supported")

	// ErrCorrupted is returned when file inconsistencies are found
	ErrCorrupted = errors.New("corrupted file")

	// ErrChecksum is returned when a metadata checksum does not match
	ErrChecksum = errors.New("metadata checksum failure")

	// ErrLayout is returned for unsupported data layouts
	ErrLayout = errors.New("data layout not supported")

	// ErrSharedMessage is returned for shared (committed) header messages,
	// which this implementation does not follow.
	ErrSharedMessage = errors.New("shared header messages not supported")

	// ErrUnsupportedType is returned for values or datatypes outside of the
	// fixed-point, floating-point and fixed-length string classes.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrInvalidName is returned for names that cannot be used as link names
	ErrInvalidName = errors.New("invalid name")
)
