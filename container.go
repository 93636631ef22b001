// Copyright (c) 2025 jagexcache contributors
// SPDX-License-Identifier: MIT

package cache

import "encoding/binary"

// decodeContainer splits a multi-member archive's decompressed bytes into
// memberCount member buffers per spec §4.3:
//
//	for chunk in 0..C-1:
//	  chunkSize := 0
//	  for member in 0..M-1:
//	    chunkSize += delta   // telescoping: recovers this member's own
//	                         // length, since encode wrote len[m]-prevLen
//	    chunkSizes[chunk][member] = chunkSize
//	    sizes[member] += chunkSize
//	footer (last 1 + C*M*4 bytes):
//	  for chunk in 0..C-1:
//	    for member in 0..M-1:
//	      delta : i32
//	  chunkCount : u8
func decodeContainer(data []byte, memberCount int) ([][]byte, error) {
	const op = "decodeContainer"
	if memberCount <= 0 {
		return nil, malformedf(op, "expected member count must be > 0, got %d", memberCount)
	}
	if len(data) < 1 {
		return nil, malformedf(op, "buffer too short for footer")
	}

	chunkCount := int(data[len(data)-1])
	footerSize := 1 + chunkCount*memberCount*4
	if footerSize > len(data) {
		return nil, malformedf(op, "footer of %d bytes overruns %d-byte buffer", footerSize, len(data))
	}
	footerStart := len(data) - footerSize

	chunkSizes := make([][]int32, chunkCount)
	sizes := make([]int32, memberCount)
	pos := footerStart
	for c := 0; c < chunkCount; c++ {
		chunkSizes[c] = make([]int32, memberCount)
		var running int32
		for m := 0; m < memberCount; m++ {
			delta := int32(binary.BigEndian.Uint32(data[pos : pos+4]))
			pos += 4
			running += delta
			chunkSizes[c][m] = running
			sizes[m] += running
		}
	}

	members := make([][]byte, memberCount)
	for m := range members {
		if sizes[m] < 0 {
			return nil, malformedf(op, "negative accumulated size for member %d", m)
		}
		members[m] = make([]byte, 0, sizes[m])
	}

	readPos := 0
	for c := 0; c < chunkCount; c++ {
		for m := 0; m < memberCount; m++ {
			n := int(chunkSizes[c][m])
			if n < 0 || readPos+n > footerStart {
				return nil, malformedf(op, "chunk %d member %d size %d overruns data section", c, m, n)
			}
			members[m] = append(members[m], data[readPos:readPos+n]...)
			readPos += n
		}
	}

	return members, nil
}

// encodeContainer joins member buffers into a single-chunk container. The
// footer holds one signed delta per member, each equal to len(member) minus
// the previous member's length (0 for the first), so a telescoping sum on
// decode recovers each member's own length.
func encodeContainer(members [][]byte) ([]byte, error) {
	const op = "encodeContainer"
	if len(members) == 0 {
		return nil, malformedf(op, "no members to encode")
	}

	out := make([]byte, 0)
	for _, m := range members {
		out = append(out, m...)
	}
	var prevLen int32
	for _, m := range members {
		length := int32(len(m))
		out = appendU32(out, uint32(length-prevLen))
		prevLen = length
	}
	out = append(out, 0x01)

	return out, nil
}
