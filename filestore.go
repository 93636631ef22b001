// Copyright (c) 2025 jagexcache contributors
// SPDX-License-Identifier: MIT

package cache

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FileStore provides byte-level access to one data file and up to 256
// index files, including the sector-chain walk that materializes an
// archive's raw bytes. It owns every *os.File it opens; Close releases
// them exactly once.
type FileStore struct {
	dataFile    *os.File
	indexFiles  []*os.File // indices 0..len-1 are data-plane index files
	metaFile    *os.File   // index file 255
	hasDataFlag bool
}

// Open locates main_file_cache.dat2 and main_file_cache.idxN for N=0..254
// (stopping at the first gap) plus main_file_cache.idx255 inside rootDir.
// At least one data-plane index file must be present.
func Open(rootDir string) (*FileStore, error) {
	const op = "FileStore.Open"

	dataPath := filepath.Join(rootDir, "main_file_cache.dat2")
	dataFile, err := os.Open(dataPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, notFoundf(op, "missing data file %s", dataPath)
		}
		return nil, ioFailuref(op, err)
	}

	info, err := dataFile.Stat()
	if err != nil {
		dataFile.Close()
		return nil, ioFailuref(op, err)
	}

	var indexFiles []*os.File
	for n := 0; n < metaIndexID; n++ {
		path := filepath.Join(rootDir, fmt.Sprintf("main_file_cache.idx%d", n))
		f, err := os.Open(path)
		if err != nil {
			if os.IsNotExist(err) {
				break
			}
			closeAll(dataFile, indexFiles, nil)
			return nil, ioFailuref(op, err)
		}
		indexFiles = append(indexFiles, f)
	}
	if len(indexFiles) == 0 {
		dataFile.Close()
		return nil, notFoundf(op, "no data-plane index files found under %s", rootDir)
	}

	metaPath := filepath.Join(rootDir, fmt.Sprintf("main_file_cache.idx%d", metaIndexID))
	metaFile, err := os.Open(metaPath)
	if err != nil {
		closeAll(dataFile, indexFiles, nil)
		if os.IsNotExist(err) {
			return nil, notFoundf(op, "missing meta index file %s", metaPath)
		}
		return nil, ioFailuref(op, err)
	}

	return &FileStore{
		dataFile:    dataFile,
		indexFiles:  indexFiles,
		metaFile:    metaFile,
		hasDataFlag: info.Size() > 0,
	}, nil
}

func closeAll(dataFile *os.File, indexFiles []*os.File, metaFile *os.File) {
	if dataFile != nil {
		dataFile.Close()
	}
	for _, f := range indexFiles {
		f.Close()
	}
	if metaFile != nil {
		metaFile.Close()
	}
}

// Close releases every file handle owned by the store.
func (fs *FileStore) Close() error {
	var firstErr error
	if err := fs.dataFile.Close(); err != nil {
		firstErr = err
	}
	for _, f := range fs.indexFiles {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := fs.metaFile.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// indexFileCount returns the number of data-plane index files (excluding
// the meta index).
func (fs *FileStore) indexFileCount() int {
	return len(fs.indexFiles)
}

// hasData reports whether the data file is non-empty.
func (fs *FileStore) hasData() bool {
	return fs.hasDataFlag
}

func (fs *FileStore) indexFileFor(idx int) (*os.File, error) {
	if idx == metaIndexID {
		return fs.metaFile, nil
	}
	if idx < 0 || idx >= len(fs.indexFiles) {
		return nil, notFoundf("FileStore", "index file %d out of range [0,%d]", idx, len(fs.indexFiles)-1)
	}
	return fs.indexFiles[idx], nil
}

// indexEntryCount returns file-length/6 for index file idx.
func (fs *FileStore) indexEntryCount(idx int) (int, error) {
	f, err := fs.indexFileFor(idx)
	if err != nil {
		return 0, err
	}
	info, err := f.Stat()
	if err != nil {
		return 0, ioFailuref("FileStore.indexEntryCount", err)
	}
	return int(info.Size() / indexRecordSize), nil
}

// readIndex reads the 6-byte Index record for archiveID out of index file
// idx (255 routes to the meta index).
func (fs *FileStore) readIndex(idx int, archiveID uint32) (index, error) {
	const op = "FileStore.readIndex"
	f, err := fs.indexFileFor(idx)
	if err != nil {
		return index{}, err
	}

	offset := int64(archiveID) * indexRecordSize
	info, err := f.Stat()
	if err != nil {
		return index{}, ioFailuref(op, err)
	}
	if offset < 0 || offset+indexRecordSize > info.Size() {
		return index{}, notFoundf(op, "archive %d not present in index file %d", archiveID, idx)
	}

	buf := make([]byte, indexRecordSize)
	if err := readFullyAt(f, buf, offset); err != nil {
		return index{}, err
	}
	return decodeIndex(buf)
}

// readArchive walks the sector chain for (idx, archiveID) starting from
// its Index record, concatenating payloads until Index.size bytes have
// been collected. Every sector is validated against
// (indexFileID, archiveID, walkedChunkCounter) before its payload is used.
func (fs *FileStore) readArchive(idx int, archiveID uint32) ([]byte, error) {
	const op = "FileStore.readArchive"

	idxRec, err := fs.readIndex(idx, archiveID)
	if err != nil {
		return nil, err
	}
	if idxRec.size == 0 {
		return []byte{}, nil
	}

	out := make([]byte, 0, idxRec.size)
	nextSector := idxRec.startSector
	var chunk uint16

	for uint32(len(out)) < idxRec.size {
		if chunk > 0 && nextSector == 0 {
			return nil, malformedf(op, "archive (%d,%d) chain terminated early: got %d of %d bytes", idx, archiveID, len(out), idxRec.size)
		}

		buf := make([]byte, sectorSize)
		if err := readFullyAt(fs.dataFile, buf, int64(nextSector)*sectorSize); err != nil {
			return nil, err
		}

		sec, err := decodeSector(buf, archiveID)
		if err != nil {
			return nil, err
		}
		if sec.indexFileID != uint8(idx) || sec.archiveID != archiveID || sec.position != chunk {
			return nil, malformedf(op, "sector header mismatch at chunk %d for archive (%d,%d): got (idx=%d,aid=%d,pos=%d)",
				chunk, idx, archiveID, sec.indexFileID, sec.archiveID, sec.position)
		}

		remaining := idxRec.size - uint32(len(out))
		take := sec.payload
		if uint32(len(take)) > remaining {
			take = take[:remaining]
		}
		out = append(out, take...)

		nextSector = sec.nextSector
		chunk++
	}

	return out, nil
}

// readFullyAt reads exactly len(buf) bytes from f starting at offset,
// looping over short reads. io.EOF before the buffer is full is Malformed;
// a read that returns no bytes and no error, or any other read error, is an
// IOFailure. Only short reads that made progress are retried.
func readFullyAt(f *os.File, buf []byte, offset int64) error {
	const op = "FileStore.readFullyAt"
	total := 0
	for total < len(buf) {
		n, err := f.ReadAt(buf[total:], offset+int64(total))
		total += n
		if err != nil {
			if err == io.EOF && total < len(buf) {
				return malformedf(op, "unexpected EOF after %d of %d bytes", total, len(buf))
			}
			if err != io.EOF {
				return ioFailuref(op, err)
			}
		}
		if n == 0 && err == nil {
			return ioFailuref(op, io.ErrNoProgress)
		}
	}
	return nil
}
