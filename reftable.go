// Copyright (c) 2025 jagexcache contributors
// SPDX-License-Identifier: MIT

package cache

import "encoding/binary"

// Reference-table flag bits (spec §3).
const (
	flagIdentifiers uint8 = 0x01
	flagWhirlpool   uint8 = 0x02
	flagSizes       uint8 = 0x04
	flagHash        uint8 = 0x08
)

// ChildEntry is one member descriptor inside a ReferenceEntry's sparse
// child set.
type ChildEntry struct {
	ID         int
	SlotIndex  int
	Identifier int32 // -1 when the table carries no IDENTIFIERS flag
}

// ReferenceEntry describes one archive inside a ReferenceTable.
type ReferenceEntry struct {
	ID           int
	SlotIndex    int
	Identifier   int32 // default -1
	CRC          int32
	Compressed   int32
	Uncompressed int32
	Hash         int32
	Version      int32
	Whirlpool    [64]byte

	children        map[int]*ChildEntry
	childCapacity   int
	childIdentTable *identifierTable
}

// ChildCount returns maxChildID+1, or 0 if the entry has no children.
func (e *ReferenceEntry) ChildCount() int { return e.childCapacity }

// Child looks up a member descriptor by child id.
func (e *ReferenceEntry) Child(childID int) (*ChildEntry, bool) {
	c, ok := e.children[childID]
	return c, ok
}

// ChildByIdentifier resolves a djb2 name hash to a child id using this
// entry's own identifier hash table, or -1 if not found.
func (e *ReferenceEntry) ChildByIdentifier(identifier int32) int32 {
	return e.childIdentTable.lookup(identifier)
}

// ReferenceTable is the decoded per-index metadata described in spec §3/§4.4.
type ReferenceTable struct {
	Format  uint8
	Version int32
	Flags   uint8

	entries    map[int]*ReferenceEntry
	capacity   int
	identTable *identifierTable
}

// HasFlag reports whether flag is set.
func (rt *ReferenceTable) HasFlag(flag uint8) bool { return rt.Flags&flag != 0 }

// Capacity returns maxKey+1, or 0 if the table has no entries.
func (rt *ReferenceTable) Capacity() int { return rt.capacity }

// Entry looks up an archive descriptor by id.
func (rt *ReferenceTable) Entry(id int) (*ReferenceEntry, bool) {
	e, ok := rt.entries[id]
	return e, ok
}

// EntryByIdentifier resolves a djb2 name hash to an archive id using the
// table's identifier hash table, or -1 if not found.
func (rt *ReferenceTable) EntryByIdentifier(identifier int32) int32 {
	return rt.identTable.lookup(identifier)
}

// TotalArchivesSize sums every entry's Uncompressed size as 64-bit and
// narrows the result to 32-bit wraparound, per spec §4.4.
func (rt *ReferenceTable) TotalArchivesSize() uint32 {
	var total int64
	for _, e := range rt.entries {
		total += int64(e.Uncompressed)
	}
	return uint32(total)
}

// decodeReferenceTable parses raw per spec §4.4.
func decodeReferenceTable(raw []byte) (*ReferenceTable, error) {
	const op = "decodeReferenceTable"
	c := &cursor{data: raw}

	format, err := c.u8()
	if err != nil {
		return nil, malformedf(op, "read format: %v", err)
	}
	if format != 5 && format != 6 && format != 7 {
		return nil, malformedf(op, "unsupported reference table format %d", format)
	}

	var version int32
	if format >= 6 {
		version, err = c.i32()
		if err != nil {
			return nil, malformedf(op, "read version: %v", err)
		}
	}

	flags, err := c.u8()
	if err != nil {
		return nil, malformedf(op, "read flags: %v", err)
	}

	ids, err := decodeIDSet(c, format)
	if err != nil {
		return nil, malformedf(op, "read entry id set: %v", err)
	}

	rt := &ReferenceTable{Format: format, Version: version, Flags: flags, entries: make(map[int]*ReferenceEntry, len(ids))}
	if len(ids) > 0 {
		rt.capacity = ids[len(ids)-1] + 1
	}

	for slot, id := range ids {
		rt.entries[id] = &ReferenceEntry{ID: id, SlotIndex: slot, Identifier: -1}
	}

	if flags&flagIdentifiers != 0 {
		dense := make([]int32, rt.capacity)
		for _, id := range ids {
			v, err := c.i32()
			if err != nil {
				return nil, malformedf(op, "read entry identifier: %v", err)
			}
			dense[id] = v
			rt.entries[id].Identifier = v
		}
		rt.identTable = buildIdentifierTable(dense)
	}

	for _, id := range ids {
		v, err := c.i32()
		if err != nil {
			return nil, malformedf(op, "read entry crc: %v", err)
		}
		rt.entries[id].CRC = v
	}

	if flags&flagHash != 0 {
		for _, id := range ids {
			v, err := c.i32()
			if err != nil {
				return nil, malformedf(op, "read entry hash: %v", err)
			}
			rt.entries[id].Hash = v
		}
	}

	if flags&flagWhirlpool != 0 {
		for _, id := range ids {
			b, err := c.bytesN(64)
			if err != nil {
				return nil, malformedf(op, "read entry whirlpool: %v", err)
			}
			copy(rt.entries[id].Whirlpool[:], b)
		}
	}

	if flags&flagSizes != 0 {
		for _, id := range ids {
			comp, err := c.i32()
			if err != nil {
				return nil, malformedf(op, "read entry compressed size: %v", err)
			}
			uncomp, err := c.i32()
			if err != nil {
				return nil, malformedf(op, "read entry uncompressed size: %v", err)
			}
			rt.entries[id].Compressed = comp
			rt.entries[id].Uncompressed = uncomp
		}
	}

	for _, id := range ids {
		v, err := c.i32()
		if err != nil {
			return nil, malformedf(op, "read entry version: %v", err)
		}
		rt.entries[id].Version = v
	}

	childDeclCounts := make(map[int]int32, len(ids))
	for _, id := range ids {
		n, err := c.countField(format)
		if err != nil {
			return nil, malformedf(op, "read child count: %v", err)
		}
		childDeclCounts[id] = n
	}

	for _, id := range ids {
		n := int(childDeclCounts[id])
		childIDs, err := decodeDeltaIDs(c, format, n)
		if err != nil {
			return nil, malformedf(op, "read child ids: %v", err)
		}
		e := rt.entries[id]
		e.children = make(map[int]*ChildEntry, len(childIDs))
		if len(childIDs) > 0 {
			e.childCapacity = childIDs[len(childIDs)-1] + 1
		}
		for slot, cid := range childIDs {
			e.children[cid] = &ChildEntry{ID: cid, SlotIndex: slot, Identifier: -1}
		}
	}

	if flags&flagIdentifiers != 0 {
		for _, id := range ids {
			e := rt.entries[id]
			dense := make([]int32, e.childCapacity)
			// iterate children in slot order to preserve declaration order
			ordered := make([]*ChildEntry, len(e.children))
			for _, ch := range e.children {
				ordered[ch.SlotIndex] = ch
			}
			for _, ch := range ordered {
				v, err := c.i32()
				if err != nil {
					return nil, malformedf(op, "read child identifier: %v", err)
				}
				ch.Identifier = v
				dense[ch.ID] = v
			}
			e.childIdentTable = buildIdentifierTable(dense)
		}
	}

	return rt, nil
}

// encodeReferenceTable is the mirror of decodeReferenceTable.
func encodeReferenceTable(rt *ReferenceTable) ([]byte, error) {
	const op = "encodeReferenceTable"
	if rt.Format != 5 && rt.Format != 6 && rt.Format != 7 {
		return nil, malformedf(op, "unsupported reference table format %d", rt.Format)
	}

	ids := sortedKeys(rt.entries)

	var buf []byte
	buf = append(buf, rt.Format)
	if rt.Format >= 6 {
		buf = appendU32(buf, uint32(rt.Version))
	}
	buf = append(buf, rt.Flags)

	buf = encodeIDSet(buf, rt.Format, ids)

	if rt.Flags&flagIdentifiers != 0 {
		for _, id := range ids {
			buf = appendU32(buf, uint32(rt.entries[id].Identifier))
		}
	}

	for _, id := range ids {
		buf = appendU32(buf, uint32(rt.entries[id].CRC))
	}

	if rt.Flags&flagHash != 0 {
		for _, id := range ids {
			buf = appendU32(buf, uint32(rt.entries[id].Hash))
		}
	}

	if rt.Flags&flagWhirlpool != 0 {
		for _, id := range ids {
			buf = append(buf, rt.entries[id].Whirlpool[:]...)
		}
	}

	if rt.Flags&flagSizes != 0 {
		for _, id := range ids {
			buf = appendU32(buf, uint32(rt.entries[id].Compressed))
			buf = appendU32(buf, uint32(rt.entries[id].Uncompressed))
		}
	}

	for _, id := range ids {
		buf = appendU32(buf, uint32(rt.entries[id].Version))
	}

	for _, id := range ids {
		e := rt.entries[id]
		buf = encodeCountField(buf, rt.Format, int32(len(e.children)))
	}

	for _, id := range ids {
		e := rt.entries[id]
		var prev int32
		for _, cid := range sortedChildKeys(e.children) {
			buf = encodeCountField(buf, rt.Format, int32(cid)-prev)
			prev = int32(cid)
		}
	}

	if rt.Flags&flagIdentifiers != 0 {
		for _, id := range ids {
			e := rt.entries[id]
			childIDs := sortedChildKeys(e.children)
			for _, cid := range childIDs {
				buf = appendU32(buf, uint32(e.children[cid].Identifier))
			}
		}
	}

	return buf, nil
}

// decodeIDSet reads a delta-encoded, monotonically increasing sparse id
// set: a count (smart-int for format 7, u16 otherwise) followed by that
// many deltas in the same encoding, accumulated into absolute ids.
func decodeIDSet(c *cursor, format uint8) ([]int, error) {
	count, err := c.countField(format)
	if err != nil {
		return nil, err
	}
	return decodeDeltaIDs(c, format, int(count))
}

func decodeDeltaIDs(c *cursor, format uint8, count int) ([]int, error) {
	ids := make([]int, count)
	var running int32
	for i := 0; i < count; i++ {
		delta, err := c.countField(format)
		if err != nil {
			return nil, err
		}
		running += delta
		ids[i] = int(running)
	}
	return ids, nil
}

func encodeIDSet(buf []byte, format uint8, ids []int) []byte {
	buf = encodeCountField(buf, format, int32(len(ids)))
	var prev int32
	for _, id := range ids {
		delta := int32(id) - prev
		buf = encodeCountField(buf, format, delta)
		prev = int32(id)
	}
	return buf
}

// countField reads either a smart-int (format 7) or a plain u16 (format 5/6).
func (c *cursor) countField(format uint8) (int32, error) {
	if format == 7 {
		return c.smartInt()
	}
	v, err := c.u16()
	return int32(v), err
}

func encodeCountField(buf []byte, format uint8, v int32) []byte {
	if format == 7 {
		return encodeSmartInt(buf, v)
	}
	return appendU16(buf, uint16(v))
}

// smartInt reads a variable-length integer: 2 bytes when the next byte's
// top bit is clear, 4 bytes (top bit masked off) when it is set.
func (c *cursor) smartInt() (int32, error) {
	b, err := c.peek()
	if err != nil {
		return 0, err
	}
	if int8(b) < 0 {
		v, err := c.u32()
		if err != nil {
			return 0, err
		}
		return int32(v & 0x7FFFFFFF), nil
	}
	v, err := c.u16()
	return int32(v), err
}

func encodeSmartInt(buf []byte, v int32) []byte {
	if v >= 0 && v <= 32767 {
		return appendU16(buf, uint16(v))
	}
	return appendU32(buf, uint32(v)|0x80000000)
}

func sortedKeys(m map[int]*ReferenceEntry) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	insertionSortInts(keys)
	return keys
}

func sortedChildKeys(m map[int]*ChildEntry) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	insertionSortInts(keys)
	return keys
}

func insertionSortInts(a []int) {
	for i := 1; i < len(a); i++ {
		v := a[i]
		j := i - 1
		for j >= 0 && a[j] > v {
			a[j+1] = a[j]
			j--
		}
		a[j+1] = v
	}
}

// cursor is a small forward-only reader over a byte slice, used by the
// reference-table codec for its mix of fixed-width and smart-int fields.
type cursor struct {
	data []byte
	pos  int
}

func (c *cursor) peek() (byte, error) {
	if c.pos >= len(c.data) {
		return 0, errShortBuffer
	}
	return c.data[c.pos], nil
}

func (c *cursor) u8() (byte, error) {
	if c.pos+1 > len(c.data) {
		return 0, errShortBuffer
	}
	b := c.data[c.pos]
	c.pos++
	return b, nil
}

func (c *cursor) u16() (uint16, error) {
	if c.pos+2 > len(c.data) {
		return 0, errShortBuffer
	}
	v := binary.BigEndian.Uint16(c.data[c.pos : c.pos+2])
	c.pos += 2
	return v, nil
}

func (c *cursor) u32() (uint32, error) {
	if c.pos+4 > len(c.data) {
		return 0, errShortBuffer
	}
	v := binary.BigEndian.Uint32(c.data[c.pos : c.pos+4])
	c.pos += 4
	return v, nil
}

func (c *cursor) i32() (int32, error) {
	v, err := c.u32()
	return int32(v), err
}

func (c *cursor) bytesN(n int) ([]byte, error) {
	if c.pos+n > len(c.data) {
		return nil, errShortBuffer
	}
	b := c.data[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

var errShortBuffer = shortBufferErr{}

type shortBufferErr struct{}

func (shortBufferErr) Error() string { return "unexpected end of buffer" }
