// Copyright (c) 2025 jagexcache contributors
// SPDX-License-Identifier: MIT

package cache

import (
	"os"

	jsoniter "github.com/json-iterator/go"
)

// keyFileEntry is one record in an XTEA key-bundle JSON file: a region id
// and its 4-word key.
type keyFileEntry struct {
	Region int       `json:"region"`
	Key    [4]uint32 `json:"key"`
}

// LoadXTEAKeys reads a JSON array of {"region": N, "key": [w0,w1,w2,w3]}
// records from path and returns the region→key mapping CacheStore expects.
// A region absent from the file, or omitted entirely by passing a nil map
// to OpenCacheStore, resolves to the null key (no decryption).
func LoadXTEAKeys(path string) (map[int]xteaKey, error) {
	const op = "LoadXTEAKeys"

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, notFoundf(op, "missing key file %s", path)
		}
		return nil, ioFailuref(op, err)
	}

	var entries []keyFileEntry
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &entries); err != nil {
		return nil, malformedf(op, "parse key file %s: %v", path, err)
	}

	out := make(map[int]xteaKey, len(entries))
	for _, e := range entries {
		out[e.Region] = xteaKey(e.Key)
	}
	return out, nil
}
