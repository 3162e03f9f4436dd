package engine

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/quarrydb/quarry/entropy"
	"github.com/quarrydb/quarry/storage"
)

// DefaultPageSize is used when initializing a fresh database file.
const DefaultPageSize = 4096

// Page 1 is the header page. The first 64 bytes identify the file:
//
//	[0:16)  magic "quarry format 1\x00"
//	[16:20) page size (u32 LE)
//	[20:24) allocated page count (u32 LE)
//	[24:32) salt, filled from the entropy channel at creation
//	[32:64) BLAKE3 checksum of bytes [0:32)
//
// The checksum lives inside the first 512 bytes so the header can be
// sniffed with the minimum page size before the real page size is known.
const (
	headerSize      = 64
	headerSniffSize = storage.MinPageSize
)

var headerMagic = []byte("quarry format 1\x00")

type fileHeader struct {
	pageSize int
	numPages int
	salt     [8]byte
}

func (h *fileHeader) encode(page []byte) {
	copy(page, headerMagic)
	binary.LittleEndian.PutUint32(page[16:], uint32(h.pageSize))
	binary.LittleEndian.PutUint32(page[20:], uint32(h.numPages))
	copy(page[24:32], h.salt[:])
	sum := blake3.Sum256(page[:32])
	copy(page[32:64], sum[:])
}

func decodeHeader(buf []byte) (*fileHeader, error) {
	if len(buf) < headerSize {
		return nil, fmt.Errorf("%w: header truncated", storage.ErrNotADatabase)
	}
	if !bytes.Equal(buf[:16], headerMagic) {
		return nil, fmt.Errorf("%w: bad magic", storage.ErrNotADatabase)
	}
	sum := blake3.Sum256(buf[:32])
	if !bytes.Equal(buf[32:64], sum[:]) {
		return nil, fmt.Errorf("%w: header checksum mismatch", storage.ErrNotADatabase)
	}
	h := &fileHeader{
		pageSize: int(binary.LittleEndian.Uint32(buf[16:])),
		numPages: int(binary.LittleEndian.Uint32(buf[20:])),
	}
	copy(h.salt[:], buf[24:32])
	if !storage.ValidPageSize(h.pageSize) {
		return nil, fmt.Errorf("%w: header declares page size %d", storage.ErrNotADatabase, h.pageSize)
	}
	return h, nil
}

// initDatabaseFile writes a fresh header page. The salt comes from the
// host entropy channel; a database cannot be created without one.
func initDatabaseFile(io storage.IO, store storage.DatabaseStorage, rng *entropy.Source) (*fileHeader, error) {
	h := &fileHeader{pageSize: DefaultPageSize, numPages: 1}
	if err := rng.Fill(h.salt[:]); err != nil {
		return nil, err
	}
	page := make([]byte, h.pageSize)
	h.encode(page)
	c := storage.NewWriteCompletion(page)
	if err := store.WritePage(1, page, c); err != nil {
		return nil, err
	}
	if err := storage.Pump(io, c); err != nil {
		return nil, fmt.Errorf("engine: writing database header: %w", err)
	}
	return h, nil
}

// readDatabaseHeader sniffs the header of an existing file using the
// minimum page size, which is always valid geometry for page 1.
func readDatabaseHeader(io storage.IO, store storage.DatabaseStorage) (*fileHeader, error) {
	buf := make([]byte, headerSniffSize)
	c := storage.NewReadCompletion(buf)
	if err := store.ReadPage(1, c); err != nil {
		return nil, err
	}
	if err := storage.Pump(io, c); err != nil {
		return nil, fmt.Errorf("engine: reading database header: %w", err)
	}
	return decodeHeader(buf)
}
