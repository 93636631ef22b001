// Copyright (c) 2025 jagexcache contributors
// SPDX-License-Identifier: MIT

package cache

import "testing"

// buildTestReferenceTable constructs a table with entries at ids 0 and 3
// (leaving 1 and 2 as gaps, so capacity == 4) to exercise sparse id
// decoding. Entry 0 carries one child; entry 3 carries none.
func buildTestReferenceTable(format, flags uint8) *ReferenceTable {
	var version int32
	if format >= 6 {
		version = 99
	}

	e0 := &ReferenceEntry{
		ID: 0, SlotIndex: 0,
		Identifier: djb2("foo"), CRC: 111, Hash: 222,
		Compressed: 10, Uncompressed: 20, Version: 5,
	}
	e0.Whirlpool[0] = 0xAB
	e0.children = map[int]*ChildEntry{
		0: {ID: 0, SlotIndex: 0, Identifier: djb2("child0")},
	}
	e0.childCapacity = 1

	e3 := &ReferenceEntry{
		ID: 3, SlotIndex: 1,
		Identifier: djb2("bar"), CRC: 333, Hash: 444,
		Compressed: 30, Uncompressed: 40, Version: 6,
	}
	e3.Whirlpool[1] = 0xCD
	e3.children = map[int]*ChildEntry{}

	rt := &ReferenceTable{
		Format: format, Version: version, Flags: flags,
		entries:  map[int]*ReferenceEntry{0: e0, 3: e3},
		capacity: 4,
	}
	if flags&flagIdentifiers != 0 {
		dense := make([]int32, rt.capacity)
		dense[0] = e0.Identifier
		dense[3] = e3.Identifier
		rt.identTable = buildIdentifierTable(dense)

		childDense := make([]int32, e0.childCapacity)
		childDense[0] = e0.children[0].Identifier
		e0.childIdentTable = buildIdentifierTable(childDense)
		e3.childIdentTable = buildIdentifierTable(nil)
	}
	return rt
}

func TestReferenceTableRoundTripAllFlagsAllFormats(t *testing.T) {
	for _, format := range []uint8{5, 6, 7} {
		for flags := 0; flags < 16; flags++ {
			rt := buildTestReferenceTable(format, uint8(flags))
			enc, err := encodeReferenceTable(rt)
			if err != nil {
				t.Fatalf("format=%d flags=%d: encode: %v", format, flags, err)
			}
			got, err := decodeReferenceTable(enc)
			if err != nil {
				t.Fatalf("format=%d flags=%d: decode: %v", format, flags, err)
			}

			if got.Format != format || got.Flags != uint8(flags) || got.Version != rt.Version {
				t.Fatalf("format=%d flags=%d: header mismatch: got format=%d flags=%d version=%d",
					format, flags, got.Format, got.Flags, got.Version)
			}
			if got.Capacity() != 4 {
				t.Errorf("format=%d flags=%d: capacity = %d, want 4", format, flags, got.Capacity())
			}

			for _, id := range []int{0, 3} {
				want, _ := rt.Entry(id)
				e, ok := got.Entry(id)
				if !ok {
					t.Fatalf("format=%d flags=%d: entry %d missing after round trip", format, flags, id)
				}
				if e.CRC != want.CRC {
					t.Errorf("format=%d flags=%d: entry %d CRC = %d, want %d", format, flags, id, e.CRC, want.CRC)
				}
				if e.Version != want.Version {
					t.Errorf("format=%d flags=%d: entry %d Version = %d, want %d", format, flags, id, e.Version, want.Version)
				}

				if flags&int(flagIdentifiers) != 0 {
					if e.Identifier != want.Identifier {
						t.Errorf("format=%d flags=%d: entry %d Identifier = %d, want %d", format, flags, id, e.Identifier, want.Identifier)
					}
				} else if e.Identifier != -1 {
					t.Errorf("format=%d flags=%d: entry %d Identifier = %d, want -1 (flag unset)", format, flags, id, e.Identifier)
				}

				if flags&int(flagHash) != 0 {
					if e.Hash != want.Hash {
						t.Errorf("format=%d flags=%d: entry %d Hash = %d, want %d", format, flags, id, e.Hash, want.Hash)
					}
				} else if e.Hash != 0 {
					t.Errorf("format=%d flags=%d: entry %d Hash = %d, want 0 (flag unset)", format, flags, id, e.Hash)
				}

				if flags&int(flagWhirlpool) != 0 {
					if e.Whirlpool != want.Whirlpool {
						t.Errorf("format=%d flags=%d: entry %d Whirlpool mismatch", format, flags, id)
					}
				} else if e.Whirlpool != ([64]byte{}) {
					t.Errorf("format=%d flags=%d: entry %d Whirlpool = %v, want zero (flag unset)", format, flags, id, e.Whirlpool)
				}

				if flags&int(flagSizes) != 0 {
					if e.Compressed != want.Compressed || e.Uncompressed != want.Uncompressed {
						t.Errorf("format=%d flags=%d: entry %d sizes = (%d,%d), want (%d,%d)",
							format, flags, id, e.Compressed, e.Uncompressed, want.Compressed, want.Uncompressed)
					}
				} else if e.Compressed != 0 || e.Uncompressed != 0 {
					t.Errorf("format=%d flags=%d: entry %d sizes = (%d,%d), want (0,0) (flag unset)", format, flags, id, e.Compressed, e.Uncompressed)
				}
			}

			e0, _ := got.Entry(0)
			if e0.ChildCount() != 1 {
				t.Errorf("format=%d flags=%d: entry 0 child count = %d, want 1", format, flags, e0.ChildCount())
			}
			child, ok := e0.Child(0)
			if !ok {
				t.Fatalf("format=%d flags=%d: entry 0 missing child 0", format, flags)
			}
			if flags&int(flagIdentifiers) != 0 {
				if child.Identifier != djb2("child0") {
					t.Errorf("format=%d flags=%d: child identifier = %d, want %d", format, flags, child.Identifier, djb2("child0"))
				}
				if got.EntryByIdentifier(djb2("foo")) != 0 {
					t.Errorf("format=%d flags=%d: EntryByIdentifier(foo) = %d, want 0", format, flags, got.EntryByIdentifier(djb2("foo")))
				}
				if got.EntryByIdentifier(djb2("bar")) != 3 {
					t.Errorf("format=%d flags=%d: EntryByIdentifier(bar) = %d, want 3", format, flags, got.EntryByIdentifier(djb2("bar")))
				}
				if got.EntryByIdentifier(djb2("absent")) != -1 {
					t.Errorf("format=%d flags=%d: EntryByIdentifier(absent) = %d, want -1", format, flags, got.EntryByIdentifier(djb2("absent")))
				}
				if e0.ChildByIdentifier(djb2("child0")) != 0 {
					t.Errorf("format=%d flags=%d: ChildByIdentifier(child0) = %d, want 0", format, flags, e0.ChildByIdentifier(djb2("child0")))
				}
			}

			e3, _ := got.Entry(3)
			if e3.ChildCount() != 0 {
				t.Errorf("format=%d flags=%d: entry 3 child count = %d, want 0", format, flags, e3.ChildCount())
			}
		}
	}
}

func TestReferenceTableTotalArchivesSize(t *testing.T) {
	rt := buildTestReferenceTable(7, flagSizes)
	enc, err := encodeReferenceTable(rt)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := decodeReferenceTable(enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if total := got.TotalArchivesSize(); total != 60 {
		t.Errorf("TotalArchivesSize() = %d, want 60", total)
	}
}

func TestDecodeReferenceTableRejectsBadFormat(t *testing.T) {
	if _, err := decodeReferenceTable([]byte{9, 0}); err == nil {
		t.Errorf("expected error for unsupported format")
	}
}

func TestEncodeReferenceTableRejectsBadFormat(t *testing.T) {
	rt := &ReferenceTable{Format: 4, entries: map[int]*ReferenceEntry{}}
	if _, err := encodeReferenceTable(rt); err == nil {
		t.Errorf("expected error for unsupported format")
	}
}

func TestSmartIntRoundTrip(t *testing.T) {
	values := []int32{0, 1, 32767, 32768, 1 << 20, 0x7FFFFFFF}
	for _, v := range values {
		buf := encodeSmartInt(nil, v)
		c := &cursor{data: buf}
		got, err := c.smartInt()
		if err != nil {
			t.Fatalf("smartInt(%d): %v", v, err)
		}
		if got != v {
			t.Errorf("smartInt round trip: got %d, want %d", got, v)
		}
		wantLen := 2
		if v > 32767 {
			wantLen = 4
		}
		if len(buf) != wantLen {
			t.Errorf("encodeSmartInt(%d) length = %d, want %d", v, len(buf), wantLen)
		}
	}
}
