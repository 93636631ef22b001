// Copyright (c) 2025 jagexcache contributors
// SPDX-License-Identifier: MIT

package cache

import (
	"encoding/binary"
	"math/big"

	"golang.org/x/crypto/xtea"
	"github.com/jzelinskie/whirlpool"
)

// djb2 computes the modified djb2 hash used for name-based archive lookup.
// Unlike the textbook djb2 (seed 5381), the cache variant starts at zero:
// hash = 0; for each rune: hash = rune + ((hash<<5) - hash). All arithmetic
// is 32-bit wrapping two's complement.
func djb2(s string) int32 {
	var h int32
	for _, r := range s {
		h = int32(r) + ((h << 5) - h)
	}
	return h
}

// crc32Table and crc32Of mirror the teacher's hand-rolled IEEE CRC-32
// (polynomial 0xEDB88320, the bit-reversed form of the IEEE 802.3 polynomial)
// rather than switching to hash/crc32.
var crc32Table = func() [256]uint32 {
	var table [256]uint32
	const poly = 0xEDB88320
	for i := 0; i < 256; i++ {
		c := uint32(i)
		for j := 0; j < 8; j++ {
			if c&1 == 1 {
				c = (c >> 1) ^ poly
			} else {
				c >>= 1
			}
		}
		table[i] = c
	}
	return table
}()

func crc32Of(data []byte) uint32 {
	c := uint32(0xFFFFFFFF)
	for _, v := range data {
		c = crc32Table[(c^uint32(v))&0xFF] ^ (c >> 8)
	}
	return ^c
}

// whirlpoolOf returns the 64-byte Whirlpool digest of data.
func whirlpoolOf(data []byte) [64]byte {
	h := whirlpool.New()
	h.Write(data)
	var out [64]byte
	copy(out[:], h.Sum(nil))
	return out
}

// xteaKey is the 4-word XTEA key used to cipher archive payload ranges.
type xteaKey [4]uint32

// isNull reports whether k must NOT be used to encipher. The cache format
// treats a key as "null" (do not encrypt) when ANY of its four words is
// zero — not only when all four are zero. This is almost certainly a bug
// in the original implementation (a legitimate key could contain a zero
// word) but producers and consumers must agree on it bit-for-bit, so it is
// preserved here rather than "fixed". See spec §9.
func (k xteaKey) isNull() bool {
	return k[0] == 0 || k[1] == 0 || k[2] == 0 || k[3] == 0
}

// cipherBlock is the minimal interface this package needs from an XTEA
// block cipher instance (8-byte ECB-style block operations).
type cipherBlock interface {
	Encrypt(dst, src []byte)
	Decrypt(dst, src []byte)
}

func newXTEACipher(k xteaKey) (cipherBlock, error) {
	keyBytes := make([]byte, 16)
	for i, word := range k {
		binary.BigEndian.PutUint32(keyBytes[i*4:i*4+4], word)
	}
	return xtea.NewCipher(keyBytes)
}

// xteaApply enciphers (encrypt=true) or deciphers (encrypt=false) the byte
// range data[start:end] in place, 8 bytes at a time. A trailing partial
// block shorter than 8 bytes is left untouched, matching the original
// cache's behavior of only ever enciphering whole blocks.
func xteaApply(data []byte, k xteaKey, start, end int, encrypt bool) error {
	if k.isNull() {
		return nil
	}
	if start < 0 || end > len(data) || start > end {
		return unsupportedf("xteaApply", "range [%d,%d) out of bounds for %d-byte buffer", start, end, len(data))
	}
	block, err := newXTEACipher(k)
	if err != nil {
		return unsupportedf("xteaApply", "construct xtea cipher: %v", err)
	}
	for off := start; off+8 <= end; off += 8 {
		chunk := data[off : off+8]
		if encrypt {
			block.Encrypt(chunk, chunk)
		} else {
			block.Decrypt(chunk, chunk)
		}
	}
	return nil
}

// rsaTransform computes data^exponent mod modulus, treating data as a
// Java-style signed big-endian two's-complement integer (matching
// BigInteger(byte[]) semantics per spec §9) and re-encoding the result the
// same way. Used only for wrapping/unwrapping the ChecksumTable digest;
// math/big.Int.Exp is the only modpow primitive in the example pack and the
// spec scopes RSA to "opaque modpow", so no third-party RSA library is
// introduced for this single call site.
func rsaTransform(data []byte, exponent, modulus *big.Int) []byte {
	x := new(big.Int).SetBytes(javaBigIntUnsign(data))
	r := new(big.Int).Exp(x, exponent, modulus)
	return javaBigIntBytes(r)
}

// javaBigIntUnsign strips a single leading zero sign byte if present, so
// that SetBytes (which is always unsigned) reconstructs the same magnitude
// Java's signed BigInteger(byte[]) constructor would for a non-negative
// value.
func javaBigIntUnsign(b []byte) []byte {
	if len(b) > 1 && b[0] == 0x00 {
		return b[1:]
	}
	return b
}

// javaBigIntBytes renders a non-negative big.Int the way Java's
// BigInteger.toByteArray does: big-endian magnitude, with a leading 0x00
// inserted when the magnitude's high bit would otherwise be mistaken for a
// sign bit.
func javaBigIntBytes(v *big.Int) []byte {
	b := v.Bytes()
	if len(b) == 0 {
		return []byte{0}
	}
	if b[0]&0x80 != 0 {
		out := make([]byte, len(b)+1)
		copy(out[1:], b)
		return out
	}
	return b
}
