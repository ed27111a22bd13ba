package hdf5

import (
	"bytes"
	"encoding/binary"

	"github.com/batchatco/go-native-med/med/util"
)

// latestWriter lays a tree out with a version 2 superblock and version 2
// object headers. Children are written before their parent so every link
// points backwards and no address needs patching except the superblock.
type latestWriter struct {
	buf *bytes.Buffer
}

func newLatestWriter() *latestWriter {
	return &latestWriter{buf: new(bytes.Buffer)}
}

func (hw *latestWriter) encode(root *Group) []byte {
	// 1. Superblock V2 (48 bytes), patched at the end
	hw.writeSuperblockV2()

	// 2. Children, depth first
	addrs := hw.writeGroupContents(root)

	// 3. Root group OH V2
	rootAddr := uint64(hw.buf.Len())
	hw.writeGroupObjectHeaderV2(root, addrs)

	// 4. Finalize superblock
	eofAddr := uint64(hw.buf.Len())
	data := hw.buf.Bytes()

	binary.LittleEndian.PutUint64(data[28:], eofAddr)
	binary.LittleEndian.PutUint64(data[36:], rootAddr)

	sbChecksum := checksum(data[:44])
	binary.LittleEndian.PutUint32(data[44:], sbChecksum)
	return data
}

// writeGroupContents writes every child of g and returns the object header
// address of each, by link name.
func (hw *latestWriter) writeGroupContents(g *Group) map[string]uint64 {
	addrs := make(map[string]uint64)
	for _, name := range g.DatasetNames() {
		ds := g.datasets[name]
		dt := datatypeOf(ds.values)
		dataAddr, dataSize := writeData(hw.buf, ds, dt)

		addrs[name] = uint64(hw.buf.Len())
		hw.writeObjectHeaderV2(datasetMessages(ds, dt, dataAddr, dataSize))
	}
	for _, name := range g.GroupNames() {
		sub := g.groups[name]
		subAddrs := hw.writeGroupContents(sub)
		addrs[name] = uint64(hw.buf.Len())
		hw.writeGroupObjectHeaderV2(sub, subAddrs)
	}
	return addrs
}

func (hw *latestWriter) writeGroupObjectHeaderV2(g *Group, addrs map[string]uint64) {
	var messages []h5Message

	// Link Info Message - required for the HDF5 library to
	// recognize this object header as a new-style group.
	// Use compact storage (links stored directly in OH).
	messages = append(messages, buildLinkInfoMessage())

	// Group Info Message
	messages = append(messages, h5Message{mType: msgGroupInfo, data: []byte{0, 0}})

	for _, name := range g.childNames() {
		messages = append(messages, buildLinkMessage(name, addrs[name]))
	}
	messages = append(messages, buildAttributeMessages(g.attributes)...)

	hw.writeObjectHeaderV2(messages)
}

func (hw *latestWriter) writeSuperblockV2() {
	util.MustWriteRaw(hw.buf, []byte(magic))
	util.MustWriteByte(hw.buf, 2)
	util.MustWriteByte(hw.buf, 8)
	util.MustWriteByte(hw.buf, 8)
	util.MustWriteByte(hw.buf, 0)

	temp := make([]byte, 32)
	binary.LittleEndian.PutUint64(temp[0:], 0)              // Base Address
	binary.LittleEndian.PutUint64(temp[8:], invalidAddress) // Superblock Extension Address
	binary.LittleEndian.PutUint64(temp[16:], 0)             // End of File Address
	binary.LittleEndian.PutUint64(temp[24:], 0)             // Root Group Object Header Address
	util.MustWriteRaw(hw.buf, temp)

	util.MustWriteLE(hw.buf, uint32(0)) // Checksum
}

func buildLinkInfoMessage() h5Message {
	buf := new(bytes.Buffer)
	util.MustWriteByte(buf, 0)            // version
	util.MustWriteByte(buf, 0)            // flags (no creation order tracking)
	util.MustWriteLE(buf, invalidAddress) // fractal heap address (undefined = compact)
	util.MustWriteLE(buf, invalidAddress) // name index v2 B-tree address (undefined = compact)
	return h5Message{mType: msgLinkInfo, data: buf.Bytes()}
}

func buildLinkMessage(name string, addr uint64) h5Message {
	buf := new(bytes.Buffer)
	util.MustWriteByte(buf, 1) // version
	util.MustWriteByte(buf, 0) // flags
	util.MustWriteByte(buf, byte(len(name)))
	util.MustWriteRaw(buf, []byte(name))
	util.MustWriteLE(buf, addr)

	return h5Message{mType: msgLink, data: buf.Bytes()}
}

func (hw *latestWriter) writeObjectHeaderV2(messages []h5Message) {
	ohBuf := new(bytes.Buffer)
	util.MustWriteRaw(ohBuf, []byte("OHDR"))
	util.MustWriteByte(ohBuf, 2)
	util.MustWriteByte(ohBuf, 0x02) // flags: 4-byte size of chunk 0

	msgBuf := new(bytes.Buffer)
	for _, m := range messages {
		assertError(len(m.data) <= 0xffff, ErrInternal, "header message too large")
		util.MustWriteByte(msgBuf, byte(m.mType))
		util.MustWriteLE(msgBuf, uint16(len(m.data)))
		util.MustWriteByte(msgBuf, m.flags)
		util.MustWriteRaw(msgBuf, m.data)
	}

	// Unused space of 4 bytes or more in a chunk must be a null message,
	// so short gaps are widened until one fits.
	remainder := msgBuf.Len() % 8
	if remainder != 0 {
		pad := 8 - remainder
		if pad < 4 {
			pad += 8
		}
		util.MustWriteByte(msgBuf, msgNil)
		util.MustWriteLE(msgBuf, uint16(pad-4))
		util.MustWriteByte(msgBuf, 0)
		util.MustWriteZeros(msgBuf, pad-4)
	}

	util.MustWriteLE(ohBuf, uint32(msgBuf.Len()))
	util.MustWriteRaw(ohBuf, msgBuf.Bytes())
	ohChecksum := checksum(ohBuf.Bytes())
	util.MustWriteLE(ohBuf, ohChecksum)
	util.MustWriteRaw(hw.buf, ohBuf.Bytes())
}
