// Copyright (c) 2025 jagexcache contributors
// SPDX-License-Identifier: MIT

/*
Package cache provides pure Go support for reading a game's sector-based
on-disk asset cache: a small set of flat files (one data file plus up to 256
index files) that together store tens of thousands of compressed, optionally
encrypted archives, each addressable by an (index-file-id, archive-id) pair.

# Layers

  - [FileStore] walks the sector chain and turns (index, archive id) into raw
    bytes.
  - [ArchivePayload] decodes the compression/encryption envelope wrapped
    around those bytes.
  - A container archive's decompressed bytes split into member buffers via
    [decodeContainer]/[encodeContainer].
  - [ReferenceTable] carries the per-archive metadata (CRC, version, sizes,
    Whirlpool digest, and a name→id hash table) needed to interpret an index's
    archives without touching the data file.
  - [CacheStore] wires all of the above into the read/readMember/fileIdByName
    surface consumers use, and computes the [ChecksumTable] ("update keys")
    digest shipped to thin clients for freshness checks.

# Basic usage

	store, err := cache.OpenCacheStore("cache/", nil)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	payload, err := store.Read(2, 1234, nil)
	if err != nil {
		log.Fatal(err)
	}

	id, err := store.FileIDByName(2, "some_item")
	if err != nil {
		log.Fatal(err)
	}

# Encryption

Archives may be enciphered with a 4-word XTEA key, keyed by region id. Pass a
map built with [LoadXTEAKeys], or nil to read every archive with the null
key (no decryption).

# Limitations

This package targets the sector-chained cache layout described above: it
does not support the older hybrid cache layout, does not reclaim freed
sectors, and performs no locking — concurrent use of one [CacheStore] from
multiple goroutines requires an external mutex.
*/
package cache
