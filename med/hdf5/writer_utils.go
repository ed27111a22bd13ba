package hdf5

import (
	"bytes"

	"github.com/batchatco/go-native-med/med/util"
)

// header message types
const (
	msgNil          = 0x00
	msgDataspace    = 0x01
	msgLinkInfo     = 0x02
	msgDatatype     = 0x03
	msgLink         = 0x06
	msgLayout       = 0x08
	msgGroupInfo    = 0x0a
	msgAttribute    = 0x0c
	msgContinuation = 0x10
	msgSymbolTable  = 0x11
)

type h5Message struct {
	mType uint16
	data  []byte
	flags uint8
}

func buildDataspaceMessage(dimensions []uint64) []byte {
	buf := new(bytes.Buffer)
	util.MustWriteByte(buf, 1) // version
	util.MustWriteByte(buf, byte(len(dimensions)))
	util.MustWriteByte(buf, 0) // flags
	util.MustWriteByte(buf, 0) // reserved
	util.MustWriteZeros(buf, 4)
	for _, d := range dimensions {
		util.MustWriteLE(buf, d)
	}
	return buf.Bytes()
}

func buildDatatypeMessage(dt datatype) []byte {
	switch dt.class {
	case classFixedPoint:
		return buildFixedPointDatatype(dt.size, dt.signed)
	case classFloatingPoint:
		return buildFloatingPointDatatype(dt.size)
	case classString:
		return buildStringDatatype(dt.size)
	}
	failError(ErrUnsupportedType, "datatype class")
	return nil
}

func buildFixedPointDatatype(size uint32, signed bool) []byte {
	buf := new(bytes.Buffer)
	util.MustWriteByte(buf, 0x10) // version 1, class 0

	var b1 byte // little-endian
	if signed {
		b1 |= 0x08 // bit 3 = 1 (signed)
	}
	util.MustWriteByte(buf, b1)
	util.MustWriteByte(buf, 0) // b2
	util.MustWriteByte(buf, 0) // b3

	util.MustWriteLE(buf, size)
	util.MustWriteLE(buf, uint16(0))      // bit offset
	util.MustWriteLE(buf, uint16(size*8)) // precision

	return buf.Bytes()
}

func buildFloatingPointDatatype(size uint32) []byte {
	buf := new(bytes.Buffer)
	util.MustWriteByte(buf, 0x11) // version 1, class 1

	var b1, b2, b3 byte
	b1 = 0x20 // mantissa norm = 2, little-endian
	if size == 4 {
		b2 = 31 // sign location 31
	} else {
		b2 = 63 // sign location 63
	}
	util.MustWriteByte(buf, b1)
	util.MustWriteByte(buf, b2)
	util.MustWriteByte(buf, b3)

	util.MustWriteLE(buf, size)

	if size == 4 {
		util.MustWriteLE(buf, uint16(0))   // bit offset
		util.MustWriteLE(buf, uint16(32))  // precision
		util.MustWriteByte(buf, 23)        // exponent location
		util.MustWriteByte(buf, 8)         // exponent size
		util.MustWriteByte(buf, 0)         // mantissa location
		util.MustWriteByte(buf, 23)        // mantissa size
		util.MustWriteLE(buf, uint32(127)) // bias
	} else {
		util.MustWriteLE(buf, uint16(0))    // bit offset
		util.MustWriteLE(buf, uint16(64))   // precision
		util.MustWriteByte(buf, 52)         // exponent location
		util.MustWriteByte(buf, 11)         // exponent size
		util.MustWriteByte(buf, 0)          // mantissa location
		util.MustWriteByte(buf, 52)         // mantissa size
		util.MustWriteLE(buf, uint32(1023)) // bias
	}

	return buf.Bytes()
}

func buildStringDatatype(size uint32) []byte {
	buf := new(bytes.Buffer)
	util.MustWriteByte(buf, 0x13) // version 1, class 3 (string)
	util.MustWriteByte(buf, 0x00) // null-terminated, ASCII
	util.MustWriteByte(buf, 0x00)
	util.MustWriteByte(buf, 0x00)
	util.MustWriteLE(buf, size)
	return buf.Bytes()
}

// buildAttributeMessage builds a version 1 attribute message, which both
// object header versions accept.
func buildAttributeMessage(name string, val any) h5Message {
	buf := new(bytes.Buffer)
	util.MustWriteByte(buf, 1) // version
	util.MustWriteByte(buf, 0) // reserved

	nameBytes := append([]byte(name), 0)
	util.MustWriteLE(buf, uint16(len(nameBytes)))

	dt := datatypeOf(val)
	dtMsg := buildDatatypeMessage(dt)
	util.MustWriteLE(buf, uint16(len(dtMsg)))

	dims, err := checkShape(val, nil)
	if err != nil {
		failError(err, name)
	}
	if _, isSlice := elemKind(val); !isSlice {
		dims = nil
	}
	dsMsg := buildDataspaceMessage(dims)
	util.MustWriteLE(buf, uint16(len(dsMsg)))
	writePadded := func(b []byte) {
		util.MustWriteRaw(buf, b)
		for (buf.Len() % 8) != 0 {
			util.MustWriteByte(buf, 0)
		}
	}

	writePadded(nameBytes)
	writePadded(dtMsg)
	writePadded(dsMsg)

	util.MustWriteRaw(buf, encodeValues(dt, val))
	return h5Message{mType: msgAttribute, data: buf.Bytes()}
}

func buildAttributeMessages(am *util.OrderedMap) []h5Message {
	var messages []h5Message
	for _, k := range am.Keys() {
		val, _ := am.Get(k)
		messages = append(messages, buildAttributeMessage(k, val))
	}
	return messages
}

func buildContiguousLayoutMessage(addr uint64, size uint64) []byte {
	buf := new(bytes.Buffer)
	util.MustWriteByte(buf, 3) // version 3
	util.MustWriteByte(buf, 1) // contiguous
	util.MustWriteLE(buf, addr)
	util.MustWriteLE(buf, size)
	return buf.Bytes()
}

// datasetMessages returns the dataspace, datatype, layout and attribute
// messages shared by both object header versions.
func datasetMessages(ds *Dataset, dt datatype, dataAddr uint64, dataSize uint64) []h5Message {
	messages := []h5Message{
		{mType: msgDataspace, data: buildDataspaceMessage(ds.dims)},
		{mType: msgDatatype, data: buildDatatypeMessage(dt), flags: 0x01}, // constant
		{mType: msgLayout, data: buildContiguousLayoutMessage(dataAddr, dataSize)},
	}
	return append(messages, buildAttributeMessages(ds.attributes)...)
}

// writeData appends the raw values of ds, 8-byte aligned, and returns the
// data address and logical size. Empty datasets get no storage.
func writeData(buf *bytes.Buffer, ds *Dataset, dt datatype) (uint64, uint64) {
	if ds.Len() == 0 {
		return invalidAddress, 0
	}
	for (buf.Len() % 8) != 0 {
		util.MustWriteByte(buf, 0)
	}
	addr := uint64(buf.Len())
	data := encodeValues(dt, ds.values)
	util.MustWriteRaw(buf, data)
	for (buf.Len() % 8) != 0 {
		util.MustWriteByte(buf, 0)
	}
	return addr, uint64(len(data))
}
