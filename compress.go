// Copyright (c) 2025 jagexcache contributors
// SPDX-License-Identifier: MIT

package cache

import (
	"bytes"
	"fmt"
	"io"

	dsbzip2 "github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
)

// compressionTag is the one-byte tag selecting the compression variant
// applied to an archive payload's inner bytes.
type compressionTag uint8

const (
	compressionNone  compressionTag = 0
	compressionBzip2 compressionTag = 1
	compressionGzip  compressionTag = 2
)

// bzip2Prefix is the four-byte "BZh1" stream header (magic plus block-size
// digit) the reference cache strips before storing a BZIP2 stream on disk;
// bzip2 decoders require it, so it is re-prepended before decoding and
// removed again after encoding (which uses block-size level 1 to match).
var bzip2Prefix = []byte{'B', 'Z', 'h', '1'}

// decompress inflates data (as produced by compress) according to tag,
// asserting the result is exactly uncompressedLen bytes.
func decompress(tag compressionTag, data []byte, uncompressedLen uint32) ([]byte, error) {
	const op = "decompress"
	switch tag {
	case compressionNone:
		return data, nil
	case compressionBzip2:
		r, err := dsbzip2.NewReader(bytes.NewReader(append(append([]byte(nil), bzip2Prefix...), data...)), nil)
		if err != nil {
			return nil, malformedf(op, "open bzip2 stream: %v", err)
		}
		defer r.Close()
		out, err := readExact(r, uncompressedLen)
		if err != nil {
			return nil, malformedf(op, "bzip2 decode: %v", err)
		}
		return out, nil
	case compressionGzip:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, malformedf(op, "open gzip stream: %v", err)
		}
		defer r.Close()
		out, err := readExact(r, uncompressedLen)
		if err != nil {
			return nil, malformedf(op, "gzip decode: %v", err)
		}
		return out, nil
	default:
		return nil, malformedf(op, "unknown compression tag %d", tag)
	}
}

// compress deflates data according to tag, returning the on-disk bytes
// (with the bzip2 "BZh1" header stripped, matching how the cache stores it).
func compress(tag compressionTag, data []byte) ([]byte, error) {
	const op = "compress"
	switch tag {
	case compressionNone:
		return data, nil
	case compressionBzip2:
		var buf bytes.Buffer
		w, err := dsbzip2.NewWriter(&buf, &dsbzip2.WriterConfig{Level: 1})
		if err != nil {
			return nil, ioFailuref(op, err)
		}
		if _, err := w.Write(data); err != nil {
			w.Close()
			return nil, ioFailuref(op, err)
		}
		if err := w.Close(); err != nil {
			return nil, ioFailuref(op, err)
		}
		out := buf.Bytes()
		if !bytes.HasPrefix(out, bzip2Prefix) {
			return nil, malformedf(op, "bzip2 stream missing expected %q header", bzip2Prefix)
		}
		return out[len(bzip2Prefix):], nil
	case compressionGzip:
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			w.Close()
			return nil, ioFailuref(op, err)
		}
		if err := w.Close(); err != nil {
			return nil, ioFailuref(op, err)
		}
		return buf.Bytes(), nil
	default:
		return nil, malformedf(op, "unknown compression tag %d", tag)
	}
}

func readExact(r io.Reader, n uint32) ([]byte, error) {
	out := make([]byte, n)
	read, err := io.ReadFull(r, out)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, err
	}
	if uint32(read) != n {
		return nil, fmt.Errorf("expected %d bytes, got %d", n, read)
	}
	return out, nil
}
