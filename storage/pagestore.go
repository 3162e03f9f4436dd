package storage

import (
	"errors"
	"fmt"
)

// Page geometry accepted by the storage layer. The page size is fixed when
// a database is opened and must be a power of two in this range.
const (
	MinPageSize = 512
	MaxPageSize = 65536
)

// ErrNotADatabase reports page geometry that cannot belong to a valid
// database file: a page buffer whose length is not a power of two or lies
// outside [MinPageSize, MaxPageSize]. It is raised before any byte of the
// underlying file is touched.
var ErrNotADatabase = errors.New("storage: page size is not a power of two in [512, 65536]")

// ErrSyncUnsupported reports a durability barrier request against a
// backend that has none. It is distinct from ordinary IO failures so
// callers can tell "cannot sync here" from "sync failed".
var ErrSyncUnsupported = errors.New("storage: durability sync is not supported by this backend")

// DatabaseStorage is the storage interface the engine's pager drives.
// Pages are addressed by 1-based logical index; the byte offset is derived
// from the index and the page buffer length.
type DatabaseStorage interface {
	ReadPage(pageIdx int, c *Completion) error
	WritePage(pageIdx int, buf []byte, c *Completion) error
	Sync(c *Completion) error
}

// PageStore maps logical page numbers onto a byte-addressable file. It
// owns the file exclusively; geometry validation happens here, at the
// boundary, so corrupt or foreign files are rejected before the first
// read and the offset arithmetic stays in one testable place.
type PageStore struct {
	file File
}

// NewPageStore wraps a file in logical page addressing.
func NewPageStore(file File) *PageStore {
	return &PageStore{file: file}
}

// ValidPageSize reports whether size is a power of two within the
// accepted page geometry.
func ValidPageSize(size int) bool {
	return size >= MinPageSize && size <= MaxPageSize && size&(size-1) == 0
}

// ReadPage issues a positioned read of one page into the completion's
// buffer. The buffer length determines the page size; invalid geometry
// fails with ErrNotADatabase without touching the file. pageIdx < 1 is a
// caller bug and panics.
func (s *PageStore) ReadPage(pageIdx int, c *Completion) error {
	if c.Kind() != CompletionRead {
		panic(fmt.Sprintf("storage: ReadPage given a %s completion", c.Kind()))
	}
	if pageIdx < 1 {
		panic(fmt.Sprintf("storage: ReadPage called with page index %d", pageIdx))
	}
	size := len(c.Buffer())
	if !ValidPageSize(size) {
		return fmt.Errorf("%w: got %d bytes", ErrNotADatabase, size)
	}
	off := int64(pageIdx-1) * int64(size)
	return s.file.ReadAt(off, c)
}

// WritePage issues a positioned write of one page. The buffer was produced
// by the engine at the validated page size, so its length is trusted.
func (s *PageStore) WritePage(pageIdx int, buf []byte, c *Completion) error {
	if pageIdx < 1 {
		panic(fmt.Sprintf("storage: WritePage called with page index %d", pageIdx))
	}
	off := int64(pageIdx-1) * int64(len(buf))
	return s.file.WriteAt(off, buf, c)
}

// Sync is a first-class operation callers may rely on, so it fails
// explicitly instead of aborting: no in-tree backend is durable.
func (s *PageStore) Sync(c *Completion) error {
	return ErrSyncUnsupported
}

var _ DatabaseStorage = (*PageStore)(nil)
