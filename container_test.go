// Copyright (c) 2025 jagexcache contributors
// SPDX-License-Identifier: MIT

package cache

import (
	"bytes"
	"testing"
)

func TestContainerRoundTrip(t *testing.T) {
	members := [][]byte{
		[]byte("first member, a bit longer"),
		[]byte("second"),
		[]byte(""),
		[]byte("fourth member here"),
	}
	enc, err := encodeContainer(members)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := decodeContainer(enc, len(members))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != len(members) {
		t.Fatalf("got %d members, want %d", len(got), len(members))
	}
	for i := range members {
		if !bytes.Equal(got[i], members[i]) {
			t.Errorf("member %d mismatch: got %q, want %q", i, got[i], members[i])
		}
	}
}

func TestContainerRoundTripSingleMember(t *testing.T) {
	members := [][]byte{[]byte("only one")}
	enc, err := encodeContainer(members)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := decodeContainer(enc, 1)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(got[0], members[0]) {
		t.Errorf("member mismatch: got %q, want %q", got[0], members[0])
	}
}

func TestEncodeContainerAlwaysOneChunk(t *testing.T) {
	enc, err := encodeContainer([][]byte{[]byte("a"), []byte("b")})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if got := enc[len(enc)-1]; got != 1 {
		t.Errorf("trailing chunk count = %d, want 1", got)
	}
}

func TestDecodeContainerEmptyExpectedCount(t *testing.T) {
	if _, err := decodeContainer([]byte{0x01}, 0); err == nil {
		t.Errorf("expected error for memberCount <= 0")
	}
}

func TestDecodeContainerFooterOverrunsBuffer(t *testing.T) {
	// chunkCount=1, memberCount=3 needs 1+12=13 bytes of footer; give it 4.
	if _, err := decodeContainer([]byte{0, 0, 0, 1}, 3); err == nil {
		t.Errorf("expected error for footer overrunning buffer")
	}
}
