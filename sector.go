// Copyright (c) 2025 jagexcache contributors
// SPDX-License-Identifier: MIT

package cache

import "encoding/binary"

// sectorSize is the fixed on-disk record size for every sector, regardless
// of layout (normal or extended).
const sectorSize = 520

// indexRecordSize is the fixed size of an Index record inside an index file.
const indexRecordSize = 6

// metaIndexID is the reserved index-file id whose archives are reference
// tables for the data-plane index files.
const metaIndexID = 255

// extendedThreshold is the archive-id boundary above which the extended
// (4-byte archive id, 510-byte payload) sector layout is used instead of
// the normal (2-byte archive id, 512-byte payload) layout.
const extendedThreshold = 0xFFFF

// index is the 6-byte on-disk record mapping an archive id to its size and
// the first sector of its chain within one index file.
type index struct {
	size        uint32 // u24: total archive byte length
	startSector uint32 // u24: first sector number
}

func decodeIndex(b []byte) (index, error) {
	if len(b) < indexRecordSize {
		return index{}, malformedf("decodeIndex", "short index record: %d bytes", len(b))
	}
	return index{
		size:        decodeU24(b[0:3]),
		startSector: decodeU24(b[3:6]),
	}, nil
}

func (i index) encode() []byte {
	b := make([]byte, indexRecordSize)
	encodeU24(b[0:3], i.size)
	encodeU24(b[3:6], i.startSector)
	return b
}

// sector is the decoded form of one 520-byte DataSegment, independent of
// which on-disk layout (normal or extended) produced it.
type sector struct {
	archiveID   uint32
	position    uint16 // chunk index within the archive's chain
	nextSector  uint32 // u24: sector number of the next link, 0 if terminal
	indexFileID uint8
	payload     []byte // normal: 512 bytes, extended: 510 bytes
}

// isExtended reports whether archiveID requires the extended sector layout.
func isExtended(archiveID uint32) bool {
	return archiveID > extendedThreshold
}

// decodeSector parses one 520-byte record using the layout selected solely
// by archiveID's magnitude, per spec §3/§4.1.
func decodeSector(b []byte, archiveID uint32) (sector, error) {
	if len(b) != sectorSize {
		return sector{}, malformedf("decodeSector", "sector record must be %d bytes, got %d", sectorSize, len(b))
	}
	var s sector
	if isExtended(archiveID) {
		s.archiveID = binary.BigEndian.Uint32(b[0:4])
		s.position = binary.BigEndian.Uint16(b[4:6])
		s.nextSector = decodeU24(b[6:9])
		s.indexFileID = b[9]
		s.payload = append([]byte(nil), b[10:520]...)
	} else {
		s.archiveID = uint32(binary.BigEndian.Uint16(b[0:2]))
		s.position = binary.BigEndian.Uint16(b[2:4])
		s.nextSector = decodeU24(b[4:7])
		s.indexFileID = b[7]
		s.payload = append([]byte(nil), b[8:520]...)
	}
	return s, nil
}

// encodeSector serializes s back to a 520-byte record, choosing the layout
// from s.archiveID the same way decodeSector does.
func (s sector) encode() []byte {
	b := make([]byte, sectorSize)
	if isExtended(s.archiveID) {
		binary.BigEndian.PutUint32(b[0:4], s.archiveID)
		binary.BigEndian.PutUint16(b[4:6], s.position)
		encodeU24(b[6:9], s.nextSector)
		b[9] = s.indexFileID
		copy(b[10:520], s.payload)
	} else {
		binary.BigEndian.PutUint16(b[0:2], uint16(s.archiveID))
		binary.BigEndian.PutUint16(b[2:4], s.position)
		encodeU24(b[4:7], s.nextSector)
		b[7] = s.indexFileID
		copy(b[8:520], s.payload)
	}
	return b
}

// payloadCapacity returns how many payload bytes a sector for archiveID
// carries: 512 for the normal layout, 510 for the extended layout.
func payloadCapacity(archiveID uint32) int {
	if isExtended(archiveID) {
		return 510
	}
	return 512
}

func decodeU24(b []byte) uint32 {
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}

func encodeU24(b []byte, v uint32) {
	b[0] = byte(v >> 16)
	b[1] = byte(v >> 8)
	b[2] = byte(v)
}
