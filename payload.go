// Copyright (c) 2025 jagexcache contributors
// SPDX-License-Identifier: MIT

package cache

import "encoding/binary"

// ArchivePayload is the decoded form of the envelope stored as an
// archive's bytes: a compression tag, the inner payload, and an optional
// trailing version word.
type ArchivePayload struct {
	Tag     compressionTag
	Data    []byte // decompressed bytes
	Version int16  // -1 if absent
}

// decodeArchivePayload parses raw as described in spec §3/§4.2:
//
//	compressionTag : u8
//	compressedLen  : u32
//	[uncompressedLen : u32]   // only when tag != 0
//	payload        : compressedLen bytes
//	[version       : u16]     // only if trailing bytes remain
//
// If key is non-null (no word is zero), the byte range [5,5+compressedLen)
// (tag==0) or [5,9+compressedLen) (tag!=0) is deciphered with XTEA before
// the payload is interpreted.
func decodeArchivePayload(raw []byte, key xteaKey) (ArchivePayload, error) {
	const op = "decodeArchivePayload"
	if len(raw) < 5 {
		return ArchivePayload{}, malformedf(op, "buffer too short for envelope header: %d bytes", len(raw))
	}

	tag := compressionTag(raw[0])
	compressedLen := binary.BigEndian.Uint32(raw[1:5])

	headerLen := 5
	if tag != compressionNone {
		headerLen = 9
	}
	cipherEnd := headerLen + int(compressedLen)
	if cipherEnd > len(raw) {
		return ArchivePayload{}, malformedf(op, "declared compressed length %d exceeds buffer", compressedLen)
	}

	buf := append([]byte(nil), raw...)
	if err := xteaApply(buf, key, 5, cipherEnd, false); err != nil {
		return ArchivePayload{}, err
	}

	var uncompressedLen uint32
	bodyStart := 5
	if tag != compressionNone {
		uncompressedLen = binary.BigEndian.Uint32(buf[5:9])
		bodyStart = 9
	}
	body := buf[bodyStart : bodyStart+int(compressedLen)]

	var data []byte
	var err error
	if tag == compressionNone {
		data = append([]byte(nil), body...)
	} else {
		data, err = decompress(tag, body, uncompressedLen)
		if err != nil {
			return ArchivePayload{}, err
		}
		if uint32(len(data)) != uncompressedLen {
			return ArchivePayload{}, malformedf(op, "uncompressed size mismatch: declared %d got %d", uncompressedLen, len(data))
		}
	}

	version := int16(-1)
	rest := buf[bodyStart+int(compressedLen):]
	if len(rest) >= 2 {
		version = int16(binary.BigEndian.Uint16(rest[len(rest)-2:]))
	}

	return ArchivePayload{Tag: tag, Data: data, Version: version}, nil
}

// encodeArchivePayload is the mirror of decodeArchivePayload: it compresses
// data (unless tag is compressionNone), writes the envelope, optionally
// enciphers the same byte range decode would, and appends version if it is
// not -1.
func encodeArchivePayload(p ArchivePayload, key xteaKey) ([]byte, error) {
	const op = "encodeArchivePayload"

	var body []byte
	var err error
	if p.Tag == compressionNone {
		body = p.Data
	} else {
		body, err = compress(p.Tag, p.Data)
		if err != nil {
			return nil, err
		}
	}

	headerLen := 5
	if p.Tag != compressionNone {
		headerLen = 9
	}

	out := make([]byte, 0, headerLen+len(body)+2)
	out = append(out, byte(p.Tag))
	out = appendU32(out, uint32(len(body)))
	if p.Tag != compressionNone {
		out = appendU32(out, uint32(len(p.Data)))
	}
	out = append(out, body...)

	cipherEnd := headerLen + len(body)
	if p.Version != -1 {
		out = appendU16(out, uint16(p.Version))
	}

	if err := xteaApply(out, key, 5, cipherEnd, true); err != nil {
		return nil, unsupportedf(op, "encipher payload: %v", err)
	}

	return out, nil
}

func appendU32(b []byte, v uint32) []byte {
	return append(b, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func appendU16(b []byte, v uint16) []byte {
	return append(b, byte(v>>8), byte(v))
}
