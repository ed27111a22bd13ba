package hdf5

import (
	"bytes"
	"encoding/binary"

	"github.com/batchatco/go-native-med/med/util"
)

const (
	superblockV0Size = 96
	leafK            = 4  // symbol table node holds up to 2*leafK entries
	minInternalK     = 16 // default group B-tree K
	snodEntrySize    = 40
	heapFreeNull     = 1 // end of the local heap free list
	heapFreeBlock    = 16
)

// symbolEntry is a symbol table entry as stored in the superblock and in
// symbol table nodes. Groups cache their B-tree and heap addresses.
type symbolEntry struct {
	nameOffset uint64
	addr       uint64
	isGroup    bool
	btreeAddr  uint64
	heapAddr   uint64
}

// earliestWriter lays a tree out with a version 0 superblock, version 1
// object headers and one B-tree, local heap and set of symbol table nodes
// per group.
type earliestWriter struct {
	buf       *bytes.Buffer
	internalK int
}

func newEarliestWriter() *earliestWriter {
	return &earliestWriter{buf: new(bytes.Buffer)}
}

func (hw *earliestWriter) encode(root *Group) []byte {
	hw.internalK = max(minInternalK, maxSymbolNodes(root)/2+1)

	hw.writeSuperblockV0()
	entry := hw.writeGroup(root)

	eofAddr := uint64(hw.buf.Len())
	data := hw.buf.Bytes()
	binary.LittleEndian.PutUint64(data[40:], eofAddr)
	rootEntry := new(bytes.Buffer)
	hw.writeSymbolEntry(rootEntry, entry)
	copy(data[56:], rootEntry.Bytes())
	return data
}

// maxSymbolNodes returns the largest number of symbol table nodes any
// group in the tree needs, which sizes the single-level B-trees.
func maxSymbolNodes(g *Group) int {
	n := symbolNodeCount(len(g.groups) + len(g.datasets))
	for _, sub := range g.groups {
		n = max(n, maxSymbolNodes(sub))
	}
	return n
}

func symbolNodeCount(links int) int {
	return (links + 2*leafK - 1) / (2 * leafK)
}

func (hw *earliestWriter) writeSuperblockV0() {
	util.MustWriteRaw(hw.buf, []byte(magic))
	util.MustWriteByte(hw.buf, 0) // superblock version
	util.MustWriteByte(hw.buf, 0) // free-space version
	util.MustWriteByte(hw.buf, 0) // root group symbol table entry version
	util.MustWriteByte(hw.buf, 0)
	util.MustWriteByte(hw.buf, 0) // shared header message format version
	util.MustWriteByte(hw.buf, 8) // size of offsets
	util.MustWriteByte(hw.buf, 8) // size of lengths
	util.MustWriteByte(hw.buf, 0)
	util.MustWriteLE(hw.buf, uint16(leafK))
	util.MustWriteLE(hw.buf, uint16(hw.internalK))
	util.MustWriteLE(hw.buf, uint32(0))        // file consistency flags
	util.MustWriteLE(hw.buf, uint64(0))        // base address
	util.MustWriteLE(hw.buf, invalidAddress)   // free-space info address
	util.MustWriteLE(hw.buf, uint64(0))        // end of file address
	util.MustWriteLE(hw.buf, invalidAddress)   // driver information block address
	util.MustWriteZeros(hw.buf, snodEntrySize) // root group symbol table entry
}

func (hw *earliestWriter) writeSymbolEntry(w *bytes.Buffer, e symbolEntry) {
	util.MustWriteLE(w, e.nameOffset)
	util.MustWriteLE(w, e.addr)
	if e.isGroup {
		util.MustWriteLE(w, uint32(1)) // cache type
		util.MustWriteLE(w, uint32(0))
		util.MustWriteLE(w, e.btreeAddr)
		util.MustWriteLE(w, e.heapAddr)
		return
	}
	util.MustWriteLE(w, uint32(0))
	util.MustWriteLE(w, uint32(0))
	util.MustWriteZeros(w, 16) // scratch pad
}

func (hw *earliestWriter) align() {
	for (hw.buf.Len() % 8) != 0 {
		util.MustWriteByte(hw.buf, 0)
	}
}

// writeGroup writes the children of g, then its local heap, symbol table
// nodes, B-tree and object header. It returns the entry a parent uses to
// link to g.
func (hw *earliestWriter) writeGroup(g *Group) symbolEntry {
	names := g.childNames()
	entries := make([]symbolEntry, len(names))
	for i, name := range names {
		if ds, ok := g.datasets[name]; ok {
			dt := datatypeOf(ds.values)
			dataAddr, dataSize := writeData(hw.buf, ds, dt)
			entries[i] = symbolEntry{addr: uint64(hw.buf.Len())}
			hw.writeObjectHeaderV1(datasetMessages(ds, dt, dataAddr, dataSize))
			continue
		}
		entries[i] = hw.writeGroup(g.groups[name])
	}

	heapAddr := hw.writeLocalHeap(names, entries)

	var snodAddrs []uint64
	var keys []uint64 // heap offset of the last name in each node
	for start := 0; start < len(entries); start += 2 * leafK {
		end := min(start+2*leafK, len(entries))
		snodAddrs = append(snodAddrs, hw.writeSymbolNode(entries[start:end]))
		keys = append(keys, entries[end-1].nameOffset)
	}

	btreeAddr := hw.writeGroupBTree(snodAddrs, keys)

	hw.align()
	addr := uint64(hw.buf.Len())
	stBuf := new(bytes.Buffer)
	util.MustWriteLE(stBuf, btreeAddr)
	util.MustWriteLE(stBuf, heapAddr)
	messages := []h5Message{{mType: msgSymbolTable, data: stBuf.Bytes()}}
	messages = append(messages, buildAttributeMessages(g.attributes)...)
	hw.writeObjectHeaderV1(messages)

	return symbolEntry{
		addr:      addr,
		isGroup:   true,
		btreeAddr: btreeAddr,
		heapAddr:  heapAddr,
	}
}

// writeLocalHeap stores the names, fills in each entry's name offset and
// returns the heap address. Offset 0 holds the empty string.
func (hw *earliestWriter) writeLocalHeap(names []string, entries []symbolEntry) uint64 {
	segment := new(bytes.Buffer)
	util.MustWriteZeros(segment, 8)
	for i, name := range names {
		entries[i].nameOffset = uint64(segment.Len())
		util.MustWriteRaw(segment, []byte(name))
		util.MustWriteZeros(segment, 8-len(name)%8)
	}
	freeOffset := uint64(segment.Len())
	util.MustWriteLE(segment, uint64(heapFreeNull))  // next free block
	util.MustWriteLE(segment, uint64(heapFreeBlock)) // size of this block

	hw.align()
	heapAddr := uint64(hw.buf.Len())
	util.MustWriteRaw(hw.buf, []byte("HEAP"))
	util.MustWriteByte(hw.buf, 0) // version
	util.MustWriteZeros(hw.buf, 3)
	util.MustWriteLE(hw.buf, uint64(segment.Len()))
	util.MustWriteLE(hw.buf, freeOffset)
	util.MustWriteLE(hw.buf, heapAddr+32) // data segment follows the header
	util.MustWriteRaw(hw.buf, segment.Bytes())
	return heapAddr
}

func (hw *earliestWriter) writeSymbolNode(entries []symbolEntry) uint64 {
	hw.align()
	addr := uint64(hw.buf.Len())
	util.MustWriteRaw(hw.buf, []byte("SNOD"))
	util.MustWriteByte(hw.buf, 1) // version
	util.MustWriteByte(hw.buf, 0)
	util.MustWriteLE(hw.buf, uint16(len(entries)))
	for _, e := range entries {
		hw.writeSymbolEntry(hw.buf, e)
	}
	// nodes are allocated at full size
	util.MustWriteZeros(hw.buf, (2*leafK-len(entries))*snodEntrySize)
	return addr
}

// writeGroupBTree writes a single leaf-level group B-tree node. Key 0 is
// the empty string and key i+1 bounds child i from above.
func (hw *earliestWriter) writeGroupBTree(children []uint64, keys []uint64) uint64 {
	assertError(len(children) <= 2*hw.internalK, ErrInternal, "group B-tree overflow")
	hw.align()
	addr := uint64(hw.buf.Len())
	util.MustWriteRaw(hw.buf, []byte("TREE"))
	util.MustWriteByte(hw.buf, 0) // node type: group
	util.MustWriteByte(hw.buf, 0) // node level
	util.MustWriteLE(hw.buf, uint16(len(children)))
	util.MustWriteLE(hw.buf, invalidAddress) // left sibling
	util.MustWriteLE(hw.buf, invalidAddress) // right sibling
	util.MustWriteLE(hw.buf, uint64(0))
	for i, child := range children {
		util.MustWriteLE(hw.buf, child)
		util.MustWriteLE(hw.buf, keys[i])
	}
	unused := 2*hw.internalK - len(children)
	util.MustWriteZeros(hw.buf, unused*16)
	return addr
}

func (hw *earliestWriter) writeObjectHeaderV1(messages []h5Message) {
	msgBuf := new(bytes.Buffer)
	for _, m := range messages {
		size := (len(m.data) + 7) &^ 7
		assertError(size <= 0xffff, ErrInternal, "header message too large")
		util.MustWriteLE(msgBuf, m.mType)
		util.MustWriteLE(msgBuf, uint16(size))
		util.MustWriteByte(msgBuf, m.flags)
		util.MustWriteZeros(msgBuf, 3)
		util.MustWriteRaw(msgBuf, m.data)
		util.MustWriteZeros(msgBuf, size-len(m.data))
	}

	hw.align()
	util.MustWriteByte(hw.buf, 1) // version
	util.MustWriteByte(hw.buf, 0)
	util.MustWriteLE(hw.buf, uint16(len(messages)))
	util.MustWriteLE(hw.buf, uint32(1)) // object reference count
	util.MustWriteLE(hw.buf, uint32(msgBuf.Len()))
	util.MustWriteZeros(hw.buf, 4) // messages start 8-byte aligned
	util.MustWriteRaw(hw.buf, msgBuf.Bytes())
}
