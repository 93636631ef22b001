// Copyright (c) 2025 jagexcache contributors
// SPDX-License-Identifier: MIT

package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// nameCacheSize bounds the fileIdByName memoisation table. The reference
// cache has on the order of a few hundred named archives per index; this
// comfortably covers every index without growing unbounded.
const nameCacheSize = 4096

// nameCacheKey identifies one (index, name) lookup for memoisation.
type nameCacheKey struct {
	idx  int
	name string
}

// CacheStore is the façade that wires FileStore, ArchivePayload, Container
// and ReferenceTable together, per spec §4.5.
type CacheStore struct {
	fs        *FileStore
	keys      map[int]xteaKey
	refTables []*ReferenceTable // one per data-plane index file
	nameCache *lru.Cache[nameCacheKey, int32]
}

// OpenCacheStore opens rootDir via FileStore and eagerly decodes every
// data-plane index file's reference table (stored as archive (255, idx)
// with null keys). A single malformed reference table aborts construction.
func OpenCacheStore(rootDir string, keys map[int]xteaKey) (*CacheStore, error) {
	const op = "OpenCacheStore"

	fs, err := Open(rootDir)
	if err != nil {
		return nil, err
	}

	n := fs.indexFileCount()
	refTables := make([]*ReferenceTable, n)
	for idx := 0; idx < n; idx++ {
		raw, err := fs.readArchive(metaIndexID, uint32(idx))
		if err != nil {
			fs.Close()
			return nil, err
		}
		payload, err := decodeArchivePayload(raw, xteaKey{})
		if err != nil {
			fs.Close()
			return nil, err
		}
		rt, err := decodeReferenceTable(payload.Data)
		if err != nil {
			fs.Close()
			return nil, err
		}
		refTables[idx] = rt
	}

	nameCache, err := lru.New[nameCacheKey, int32](nameCacheSize)
	if err != nil {
		fs.Close()
		return nil, ioFailuref(op, err)
	}

	if keys == nil {
		keys = map[int]xteaKey{}
	}

	return &CacheStore{fs: fs, keys: keys, refTables: refTables, nameCache: nameCache}, nil
}

// Close releases the underlying FileStore's file handles.
func (s *CacheStore) Close() error { return s.fs.Close() }

// ReferenceTable returns the decoded reference table for a data-plane index
// file.
func (s *CacheStore) ReferenceTable(idx int) (*ReferenceTable, error) {
	if idx < 0 || idx >= len(s.refTables) {
		return nil, notFoundf("CacheStore.ReferenceTable", "index %d out of range [0,%d)", idx, len(s.refTables))
	}
	return s.refTables[idx], nil
}

func (s *CacheStore) keyFor(aid uint32, override *xteaKey) xteaKey {
	if override != nil {
		return *override
	}
	return s.keys[int(aid)]
}

// Read decodes archive (idx, aid) into its ArchivePayload. idx == 255 is
// rejected; callers that need reference-table bytes use the low-level
// FileStore API directly.
func (s *CacheStore) Read(idx int, aid uint32, keys *xteaKey) (ArchivePayload, error) {
	const op = "CacheStore.Read"
	if idx == metaIndexID {
		return ArchivePayload{}, unsupportedf(op, "index 255 is not readable through CacheStore")
	}
	raw, err := s.fs.readArchive(idx, aid)
	if err != nil {
		return ArchivePayload{}, err
	}
	return decodeArchivePayload(raw, s.keyFor(aid, keys))
}

// ReadMember decodes archive (idx, aid) as a container with the reference
// table entry's capacity as the expected member count, returning member
// memberID.
func (s *CacheStore) ReadMember(idx int, aid uint32, memberID int, keys *xteaKey) ([]byte, error) {
	const op = "CacheStore.ReadMember"
	rt, err := s.ReferenceTable(idx)
	if err != nil {
		return nil, err
	}
	entry, ok := rt.Entry(int(aid))
	if !ok {
		return nil, notFoundf(op, "archive %d not present in index %d", aid, idx)
	}
	if memberID < 0 || memberID >= entry.ChildCount() {
		return nil, notFoundf(op, "member %d out of range [0,%d) for archive %d", memberID, entry.ChildCount(), aid)
	}

	payload, err := s.Read(idx, aid, keys)
	if err != nil {
		return nil, err
	}
	members, err := decodeContainer(payload.Data, entry.ChildCount())
	if err != nil {
		return nil, err
	}
	return members[memberID], nil
}

// FileIDByName resolves name to an archive id via djb2 and the index's
// identifier hash table, memoising the result across calls. Returns -1 if
// name is not present.
func (s *CacheStore) FileIDByName(idx int, name string) (int32, error) {
	key := nameCacheKey{idx: idx, name: name}
	if v, ok := s.nameCache.Get(key); ok {
		return v, nil
	}

	rt, err := s.ReferenceTable(idx)
	if err != nil {
		return 0, err
	}
	id := rt.EntryByIdentifier(djb2(name))
	s.nameCache.Add(key, id)
	return id, nil
}

// CreateChecksumTable builds a ChecksumTable entry for every data-plane
// index file: when the data file is non-empty, it re-reads archive
// (255, idx)'s raw (still-compressed) bytes, CRC32s them, takes their
// Whirlpool digest, and reads version/capacity/totalArchivesSize from the
// in-memory reference table; otherwise the entry is all zeros with an empty
// digest.
func (s *CacheStore) CreateChecksumTable() (*ChecksumTable, error) {
	ct := &ChecksumTable{Entries: make([]ChecksumEntry, len(s.refTables))}

	if !s.fs.hasData() {
		return ct, nil
	}

	for idx, rt := range s.refTables {
		raw, err := s.fs.readArchive(metaIndexID, uint32(idx))
		if err != nil {
			return nil, err
		}
		ct.Entries[idx] = ChecksumEntry{
			CRC:         int32(crc32Of(raw)),
			Version:     rt.Version,
			FileCount:   int32(rt.Capacity()),
			ArchiveSize: int32(rt.TotalArchivesSize()),
			Whirlpool:   whirlpoolOf(raw),
		}
	}
	return ct, nil
}
