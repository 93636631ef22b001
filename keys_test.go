// Copyright (c) 2025 jagexcache contributors
// SPDX-License-Identifier: MIT

package cache

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadXTEAKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keys.json")
	content := `[
		{"region": 12850, "key": [1, 2, 3, 4]},
		{"region": 12851, "key": [0, 0, 0, 0]}
	]`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write key file: %v", err)
	}

	keys, err := LoadXTEAKeys(path)
	if err != nil {
		t.Fatalf("LoadXTEAKeys: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("got %d keys, want 2", len(keys))
	}
	want := xteaKey{1, 2, 3, 4}
	if got := keys[12850]; got != want {
		t.Errorf("keys[12850] = %v, want %v", got, want)
	}
	if !keys[12851].isNull() {
		t.Errorf("keys[12851] should be null")
	}
}

func TestLoadXTEAKeysMissingFile(t *testing.T) {
	if _, err := LoadXTEAKeys(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Errorf("expected error for missing key file")
	}
}

func TestLoadXTEAKeysMalformed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keys.json")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatalf("write key file: %v", err)
	}
	if _, err := LoadXTEAKeys(path); err == nil {
		t.Errorf("expected error for malformed JSON")
	}
}
