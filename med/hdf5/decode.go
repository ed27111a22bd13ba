package hdf5

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/batchatco/go-native-med/med/util"
)

// maximum distance searched for the superblock signature
const maxSignatureOffset = 1 << 30

// cursor reads little-endian fields from an in-memory block.
type cursor struct {
	b    []byte
	pos  int
	what string
}

func newCursor(b []byte, what string) *cursor {
	return &cursor{b: b, what: what}
}

func (c *cursor) need(n int) {
	assertError(n >= 0 && c.pos+n <= len(c.b), ErrCorrupted,
		fmt.Sprintf("%s: need %d bytes at %d of %d", c.what, n, c.pos, len(c.b)))
}

func (c *cursor) u8() uint8 {
	c.need(1)
	v := c.b[c.pos]
	c.pos++
	return v
}

func (c *cursor) u16() uint16 {
	c.need(2)
	v := binary.LittleEndian.Uint16(c.b[c.pos:])
	c.pos += 2
	return v
}

func (c *cursor) u32() uint32 {
	c.need(4)
	v := binary.LittleEndian.Uint32(c.b[c.pos:])
	c.pos += 4
	return v
}

func (c *cursor) u64() uint64 {
	c.need(8)
	v := binary.LittleEndian.Uint64(c.b[c.pos:])
	c.pos += 8
	return v
}

// uintN reads an unsigned integer stored in size bytes.
func (c *cursor) uintN(size int) uint64 {
	switch size {
	case 1:
		return uint64(c.u8())
	case 2:
		return uint64(c.u16())
	case 4:
		return uint64(c.u32())
	case 8:
		return c.u64()
	}
	failError(ErrCorrupted, fmt.Sprintf("%s: bad field size %d", c.what, size))
	return 0
}

func (c *cursor) bytes(n int) []byte {
	c.need(n)
	v := c.b[c.pos : c.pos+n]
	c.pos += n
	return v
}

func (c *cursor) skip(n int) {
	c.need(n)
	c.pos += n
}

func (c *cursor) rem() int {
	return len(c.b) - c.pos
}

// align skips to the next multiple of n relative to the block start.
func (c *cursor) align(n int) {
	if r := c.pos % n; r != 0 {
		c.skip(min(n-r, c.rem()))
	}
}

type rawMessage struct {
	mType uint16
	flags uint8
	data  []byte
}

// objectInfo collects the messages of one object header that matter here.
type objectInfo struct {
	symTable   *symbolTable
	isNewGroup bool
	links      []link
	dataspace  *dataspace
	dt         *datatype
	dtOK       bool
	layout     *dataLayout
	attributes *util.OrderedMap
}

type symbolTable struct {
	btreeAddr uint64
	heapAddr  uint64
}

type link struct {
	name string
	addr uint64
}

type dataspace struct {
	dims   []uint64
	scalar bool
}

func (ds *dataspace) count() uint64 {
	return product(ds.dims)
}

type dataLayout struct {
	compact []byte
	addr    uint64
	size    uint64
}

type decoder struct {
	r         io.ReaderAt
	size      int64
	base      uint64
	sbVersion int
	active    map[uint64]bool
}

func newDecoder(r io.ReaderAt, size int64) *decoder {
	return &decoder{r: r, size: size, active: make(map[uint64]bool)}
}

// readRaw reads n bytes at an absolute file offset.
func (d *decoder) readRaw(off uint64, n uint64) []byte {
	assertError(off <= uint64(d.size) && n <= uint64(d.size)-off, ErrTruncated,
		fmt.Sprintf("read of %d bytes at %#x past end of file (%d bytes)", n, off, d.size))
	b := make([]byte, n)
	if n == 0 {
		return b
	}
	_, err := d.r.ReadAt(b, int64(off))
	if err != nil && err != io.EOF {
		failError(err, "read")
	}
	return b
}

// read reads n bytes at a file address, which is relative to the base.
func (d *decoder) read(addr uint64, n uint64) []byte {
	assertError(addr != invalidAddress, ErrCorrupted, "undefined address")
	return d.readRaw(d.base+addr, n)
}

// readUpTo reads at most n bytes at addr, stopping at the end of file.
func (d *decoder) readUpTo(addr uint64, n uint64) []byte {
	assertError(addr != invalidAddress, ErrCorrupted, "undefined address")
	off := d.base + addr
	assertError(off <= uint64(d.size), ErrTruncated, fmt.Sprintf("address %#x past end of file", addr))
	return d.readRaw(off, min(n, uint64(d.size)-off))
}

func (d *decoder) findSignature() uint64 {
	for off := uint64(0); off+uint64(len(magic)) <= uint64(d.size) && off <= maxSignatureOffset; {
		if string(d.readRaw(off, uint64(len(magic)))) == magic {
			return off
		}
		if off == 0 {
			off = 512
		} else {
			off *= 2
		}
	}
	failError(ErrBadMagic, "no HDF5 signature found")
	return 0
}

func (d *decoder) decode() *File {
	sbOff := d.findSignature()
	version := d.readRaw(sbOff+8, 1)[0]
	d.sbVersion = int(version)
	var rootAddr uint64
	switch version {
	case 0, 1:
		rootAddr = d.readSuperblockV0(sbOff)
	case 2, 3:
		rootAddr = d.readSuperblockV2(sbOff)
	default:
		failError(ErrVersion, fmt.Sprintf("superblock version %d", version))
	}
	root, ds := d.readObject("/", rootAddr)
	assertError(root != nil && ds == nil, ErrCorrupted, "root object is not a group")
	return &File{Root: root, SuperblockVersion: d.sbVersion}
}

func (d *decoder) readSuperblockV0(sbOff uint64) uint64 {
	c := newCursor(d.readUpTo(sbOff, 100), "superblock")
	c.skip(len(magic))
	version := c.u8()
	c.skip(3) // free-space, root group entry, reserved
	c.skip(1) // shared header version
	offsetSize := c.u8()
	lengthSize := c.u8()
	c.skip(1)
	assertError(offsetSize == 8 && lengthSize == 8, ErrOffsetSize,
		fmt.Sprintf("offsets %d lengths %d", offsetSize, lengthSize))
	leafNodeK := c.u16()
	internalNodeK := c.u16()
	warnAssert(leafNodeK > 0 && internalNodeK > 0, "zero B-tree K in superblock")
	c.skip(4) // consistency flags
	if version == 1 {
		c.skip(4) // indexed storage K and reserved
	}
	d.setBase(sbOff, c.u64())
	c.skip(8) // free-space info
	eof := c.u64()
	c.skip(8) // driver info
	d.checkEOF(eof)
	c.skip(8) // root link name offset
	return c.u64()
}

func (d *decoder) readSuperblockV2(sbOff uint64) uint64 {
	raw := d.readRaw(sbOff, 48)
	c := newCursor(raw, "superblock")
	c.skip(len(magic) + 1)
	offsetSize := c.u8()
	lengthSize := c.u8()
	assertError(offsetSize == 8 && lengthSize == 8, ErrOffsetSize,
		fmt.Sprintf("offsets %d lengths %d", offsetSize, lengthSize))
	c.skip(1) // consistency flags
	d.setBase(sbOff, c.u64())
	c.skip(8) // superblock extension
	eof := c.u64()
	rootAddr := c.u64()
	sum := c.u32()
	assertError(sum == checksum(raw[:44]), ErrChecksum, "superblock")
	d.checkEOF(eof)
	return rootAddr
}

// setBase makes addresses relative to the superblock, which is where a
// user block moves the base even when the stored base address is 0.
func (d *decoder) setBase(sbOff uint64, stored uint64) {
	if stored != sbOff {
		logger.Infof("base address %#x adjusted to superblock at %#x", stored, sbOff)
	}
	d.base = sbOff
}

func (d *decoder) checkEOF(eof uint64) {
	assertError(d.base+eof <= uint64(d.size), ErrTruncated,
		fmt.Sprintf("end of file address %#x beyond file size %d", eof, d.size))
}

// readObject decodes the object at addr, which is either a group or a
// dataset. Unsupported datasets come back as (nil, nil).
func (d *decoder) readObject(name string, addr uint64) (*Group, *Dataset) {
	assertError(!d.active[addr], ErrCorrupted, fmt.Sprintf("cycle at %#x", addr))
	d.active[addr] = true
	defer delete(d.active, addr)

	info := d.readObjectInfo(addr)
	if info.layout != nil {
		return nil, d.buildDataset(name, info)
	}
	g := newGroup(name)
	g.attributes = info.attributes
	switch {
	case info.symTable != nil:
		d.readSymbolTableGroup(g, info.symTable)
	case info.isNewGroup:
		for _, l := range info.links {
			d.addChild(g, l.name, l.addr)
		}
	default:
		warnAssert(info.dataspace == nil, fmt.Sprintf("object %q has no layout", name))
	}
	return g, nil
}

func (d *decoder) addChild(g *Group, name string, addr uint64) {
	sub, ds := d.readObject(name, addr)
	switch {
	case sub != nil:
		g.groups[name] = sub
	case ds != nil:
		g.datasets[name] = ds
	}
}

func (d *decoder) buildDataset(name string, info *objectInfo) *Dataset {
	assertError(info.dataspace != nil && info.dt != nil, ErrCorrupted,
		fmt.Sprintf("dataset %q lacks dataspace or datatype", name))
	if !info.dtOK {
		logger.Warnf("skipping dataset %q of unsupported type class %d", name, info.dt.class)
		return nil
	}
	count := info.dataspace.count()
	var values any
	switch {
	case info.layout.compact != nil:
		values = decodeValues(*info.dt, count, info.dataspace.scalar, info.layout.compact)
	case info.layout.addr == invalidAddress:
		values = zeroValues(*info.dt, count, info.dataspace.scalar)
	default:
		need := count * uint64(info.dt.size)
		assertError(info.layout.size >= need, ErrCorrupted,
			fmt.Sprintf("dataset %q storage %d bytes, need %d", name, info.layout.size, need))
		values = decodeValues(*info.dt, count, info.dataspace.scalar, d.read(info.layout.addr, need))
	}
	return &Dataset{
		name:       name,
		values:     values,
		dims:       info.dataspace.dims,
		attributes: info.attributes,
	}
}

func (d *decoder) readObjectInfo(addr uint64) *objectInfo {
	info := &objectInfo{attributes: &util.OrderedMap{}}
	for _, m := range d.readObjectHeader(addr) {
		if m.flags&0x02 != 0 {
			failError(ErrSharedMessage, fmt.Sprintf("message type %#x", m.mType))
		}
		c := newCursor(m.data, fmt.Sprintf("message %#x", m.mType))
		switch m.mType {
		case msgDataspace:
			info.dataspace = parseDataspace(c)
		case msgDatatype:
			dt, ok := parseDatatype(c)
			info.dt, info.dtOK = &dt, ok
		case msgLayout:
			info.layout = parseLayout(c)
		case msgSymbolTable:
			info.symTable = &symbolTable{btreeAddr: c.u64(), heapAddr: c.u64()}
		case msgLinkInfo:
			parseLinkInfo(c)
			info.isNewGroup = true
		case msgLink:
			if l, ok := parseLink(c); ok {
				info.links = append(info.links, l)
			}
			info.isNewGroup = true
		case msgAttribute:
			name, val, ok := parseAttribute(c)
			if ok {
				info.attributes.Add(name, val)
			}
		}
	}
	return info
}

// readObjectHeader returns every message of the header at addr, following
// continuation messages.
func (d *decoder) readObjectHeader(addr uint64) []rawMessage {
	prefix := d.readUpTo(addr, 4)
	if string(prefix) == "OHDR" {
		return d.readObjectHeaderV2(addr)
	}
	return d.readObjectHeaderV1(addr)
}

type chunk struct {
	addr uint64
	size uint64
}

func (d *decoder) readObjectHeaderV1(addr uint64) []rawMessage {
	c := newCursor(d.read(addr, 16), "object header")
	version := c.u8()
	assertError(version == 1, ErrVersion, fmt.Sprintf("object header version %d", version))
	c.skip(1)
	nMessages := int(c.u16())
	c.skip(4) // reference count
	size := uint64(c.u32())

	var messages []rawMessage
	chunks := []chunk{{addr: addr + 16, size: size}}
	for i := 0; i < len(chunks) && len(messages) < nMessages; i++ {
		mc := newCursor(d.read(chunks[i].addr, chunks[i].size), "object header chunk")
		for mc.rem() >= 8 && len(messages) < nMessages {
			mType := mc.u16()
			mSize := int(mc.u16())
			flags := mc.u8()
			mc.skip(3)
			data := mc.bytes(mSize)
			if mType == msgContinuation {
				cc := newCursor(data, "continuation")
				chunks = append(chunks, chunk{addr: cc.u64(), size: cc.u64()})
			}
			messages = append(messages, rawMessage{mType: mType, flags: flags, data: data})
		}
	}
	warnAssert(len(messages) == nMessages,
		fmt.Sprintf("object header at %#x: %d of %d messages", addr, len(messages), nMessages))
	return messages
}

func (d *decoder) readObjectHeaderV2(addr uint64) []rawMessage {
	head := newCursor(d.readUpTo(addr, 4+2+16+4+8), "object header")
	head.skip(4)
	version := head.u8()
	assertError(version == 2, ErrVersion, fmt.Sprintf("object header version %d", version))
	flags := head.u8()
	if flags&0x20 != 0 {
		head.skip(16) // times
	}
	if flags&0x10 != 0 {
		head.skip(4) // attribute phase change
	}
	size := head.uintN(1 << (flags & 0x03))
	prefixLen := uint64(head.pos)

	// chunk 0 is checksummed from the signature on
	block := d.read(addr, prefixLen+size+4)
	d.verifyChecksum(block, "object header")
	messages, conts := parseMessagesV2(block[prefixLen:prefixLen+size], flags)
	for i := 0; i < len(conts); i++ {
		cont := conts[i]
		assertError(cont.size >= 8, ErrCorrupted, "continuation chunk too small")
		block := d.read(cont.addr, cont.size)
		assertError(string(block[:4]) == "OCHK", ErrBadMagic, "continuation chunk signature")
		d.verifyChecksum(block, "continuation chunk")
		more, moreConts := parseMessagesV2(block[4:len(block)-4], flags)
		messages = append(messages, more...)
		conts = append(conts, moreConts...)
	}
	return messages
}

func (d *decoder) verifyChecksum(block []byte, what string) {
	n := len(block) - 4
	want := binary.LittleEndian.Uint32(block[n:])
	assertError(checksum(block[:n]) == want, ErrChecksum, what)
}

func parseMessagesV2(b []byte, ohFlags uint8) ([]rawMessage, []chunk) {
	var messages []rawMessage
	var conts []chunk
	headerLen := 4
	if ohFlags&0x04 != 0 {
		headerLen += 2 // creation order
	}
	c := newCursor(b, "object header chunk")
	for c.rem() >= headerLen {
		mType := uint16(c.u8())
		mSize := int(c.u16())
		flags := c.u8()
		if ohFlags&0x04 != 0 {
			c.skip(2)
		}
		data := c.bytes(mSize)
		if mType == msgContinuation {
			cc := newCursor(data, "continuation")
			conts = append(conts, chunk{addr: cc.u64(), size: cc.u64()})
		}
		messages = append(messages, rawMessage{mType: mType, flags: flags, data: data})
	}
	return messages, conts
}

func parseDataspace(c *cursor) *dataspace {
	version := c.u8()
	rank := int(c.u8())
	flags := c.u8()
	isNull := false
	switch version {
	case 1:
		c.skip(5)
	case 2:
		isNull = c.u8() == 2
	default:
		failError(ErrDataspaceVersion, fmt.Sprintf("dataspace version %d", version))
	}
	if isNull {
		return &dataspace{dims: []uint64{0}}
	}
	if rank == 0 {
		return &dataspace{scalar: true}
	}
	dims := make([]uint64, rank)
	for i := range dims {
		dims[i] = c.u64()
	}
	if flags&0x01 != 0 {
		c.skip(8 * rank) // maximum dimensions
	}
	return &dataspace{dims: dims}
}

// parseDatatype returns false for classes the tree cannot hold.
func parseDatatype(c *cursor) (datatype, bool) {
	classAndVersion := c.u8()
	bf0 := c.u8()
	c.skip(2)
	dt := datatype{class: classAndVersion & 0x0f, size: c.u32()}
	switch dt.class {
	case classFixedPoint:
		dt.bigEndian = bf0&0x01 != 0
		dt.signed = bf0&0x08 != 0
		c.skip(4)
		return dt, fixedPointType(dt) != nil
	case classFloatingPoint:
		dt.bigEndian = bf0&0x01 != 0
		if bf0&0x40 != 0 {
			return dt, false // VAX order
		}
		c.skip(12)
		return dt, dt.size == 4 || dt.size == 8
	case classString:
		dt.strPad = bf0 & 0x0f
		return dt, dt.size > 0
	}
	return dt, false
}

func parseLayout(c *cursor) *dataLayout {
	version := c.u8()
	assertError(version == 3 || version == 4, ErrLayout, fmt.Sprintf("layout version %d", version))
	class := c.u8()
	switch class {
	case 0:
		size := int(c.u16())
		return &dataLayout{compact: c.bytes(size)}
	case 1:
		return &dataLayout{addr: c.u64(), size: c.u64()}
	}
	failError(ErrLayout, fmt.Sprintf("layout class %d", class))
	return nil
}

func parseLinkInfo(c *cursor) {
	version := c.u8()
	assertError(version == 0, ErrVersion, fmt.Sprintf("link info version %d", version))
	flags := c.u8()
	if flags&0x01 != 0 {
		c.skip(8) // max creation index
	}
	heapAddr := c.u64()
	assertError(heapAddr == invalidAddress, ErrLinkType, "dense link storage")
}

// parseLink returns false for links other than hard links.
func parseLink(c *cursor) (link, bool) {
	version := c.u8()
	assertError(version == 1, ErrVersion, fmt.Sprintf("link version %d", version))
	flags := c.u8()
	linkType := uint8(0)
	if flags&0x08 != 0 {
		linkType = c.u8()
	}
	if flags&0x04 != 0 {
		c.skip(8) // creation order
	}
	if flags&0x10 != 0 {
		c.skip(1) // charset
	}
	nameLen := int(c.uintN(1 << (flags & 0x03)))
	name := string(c.bytes(nameLen))
	if linkType != 0 {
		logger.Warnf("skipping non-hard link %q", name)
		return link{}, false
	}
	return link{name: name, addr: c.u64()}, true
}

func parseAttribute(c *cursor) (string, any, bool) {
	version := c.u8()
	flags := c.u8()
	nameSize := int(c.u16())
	dtSize := int(c.u16())
	dsSize := int(c.u16())
	pad := func(n int) int { return n }
	switch version {
	case 1:
		pad = func(n int) int { return (n + 7) &^ 7 }
	case 2:
	case 3:
		c.skip(1) // name encoding
	default:
		failError(ErrVersion, fmt.Sprintf("attribute version %d", version))
	}
	if version > 1 && flags&0x03 != 0 {
		failError(ErrSharedMessage, "shared attribute type or space")
	}
	nameBytes := c.bytes(pad(nameSize))[:nameSize]
	name := string(bytes.TrimRight(nameBytes, "\x00"))
	dtBytes := c.bytes(pad(dtSize))[:dtSize]
	dsBytes := c.bytes(pad(dsSize))[:dsSize]

	dt, ok := parseDatatype(newCursor(dtBytes, "attribute datatype"))
	if !ok {
		logger.Warnf("skipping attribute %q of unsupported type class %d", name, dt.class)
		return name, nil, false
	}
	ds := parseDataspace(newCursor(dsBytes, "attribute dataspace"))
	raw := c.b[c.pos:]
	return name, decodeValues(dt, ds.count(), ds.scalar, raw), true
}

func (d *decoder) readSymbolTableGroup(g *Group, st *symbolTable) {
	heap := d.readLocalHeap(st.heapAddr)
	for _, snod := range d.readGroupBTree(st.btreeAddr, map[uint64]bool{}) {
		for _, e := range d.readSymbolNode(snod) {
			name := getString(heap[min(e.nameOffset, uint64(len(heap))):], padNullTerm)
			assertError(name != "", ErrCorrupted, fmt.Sprintf("empty link name at heap offset %d", e.nameOffset))
			d.addChild(g, name, e.addr)
		}
	}
}

// readLocalHeap returns the data segment of a local heap.
func (d *decoder) readLocalHeap(addr uint64) []byte {
	c := newCursor(d.read(addr, 32), "local heap")
	assertError(string(c.bytes(4)) == "HEAP", ErrBadMagic, "local heap signature")
	version := c.u8()
	assertError(version == 0, ErrVersion, fmt.Sprintf("local heap version %d", version))
	c.skip(3)
	size := c.u64()
	c.skip(8) // free list
	return d.read(c.u64(), size)
}

// readGroupBTree returns the symbol table node addresses below a group
// B-tree node, in key order.
func (d *decoder) readGroupBTree(addr uint64, seen map[uint64]bool) []uint64 {
	assertError(!seen[addr], ErrCorrupted, fmt.Sprintf("B-tree cycle at %#x", addr))
	seen[addr] = true
	c := newCursor(d.read(addr, 24), "B-tree node")
	assertError(string(c.bytes(4)) == "TREE", ErrBadMagic, "B-tree signature")
	nodeType := c.u8()
	assertError(nodeType == 0, ErrCorrupted, fmt.Sprintf("B-tree node type %d in group", nodeType))
	level := c.u8()
	entries := uint64(c.u16())
	body := newCursor(d.read(addr+24, entries*16+8), "B-tree node")
	var snods []uint64
	for range entries {
		body.skip(8) // key
		child := body.u64()
		if level > 0 {
			snods = append(snods, d.readGroupBTree(child, seen)...)
		} else {
			snods = append(snods, child)
		}
	}
	return snods
}

func (d *decoder) readSymbolNode(addr uint64) []symbolEntry {
	c := newCursor(d.read(addr, 8), "symbol table node")
	assertError(string(c.bytes(4)) == "SNOD", ErrBadMagic, "symbol table node signature")
	version := c.u8()
	assertError(version == 1, ErrVersion, fmt.Sprintf("symbol table node version %d", version))
	c.skip(1)
	n := uint64(c.u16())
	body := newCursor(d.read(addr+8, n*snodEntrySize), "symbol table node")
	entries := make([]symbolEntry, n)
	for i := range entries {
		entries[i].nameOffset = body.u64()
		entries[i].addr = body.u64()
		body.skip(24) // cache type, reserved, scratch
	}
	return entries
}
