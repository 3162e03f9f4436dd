package storage

import (
	"fmt"
	"strings"
	"sync"
)

// OpenFlags control file creation behavior in OpenFile.
type OpenFlags int

const (
	OpenNone OpenFlags = iota
	OpenCreate
)

// IO owns a set of files and the event loop that resolves their pending
// operations. There is no background execution: callers issue operations
// against File, then pump RunOnce until the completions they depend on
// report Done. This is the single suspension point of the system.
type IO interface {
	OpenFile(path string, flags OpenFlags) (File, error)
	// RunOnce advances the event loop one turn, resolving queued
	// operations. It returns an error only for loop-level failures;
	// per-operation failures are delivered through each completion.
	RunOnce() error
}

// File is a byte-addressable file object. Operations are positioned and
// completion-signaled; none of them block the caller.
type File interface {
	// ReadAt fills the completion's buffer from the given offset once the
	// operation resolves.
	ReadAt(off int64, c *Completion) error
	// WriteAt flushes buf to the given offset, resolving c when done.
	WriteAt(off int64, buf []byte, c *Completion) error
	// Sync requests a durability barrier.
	Sync(c *Completion) error
	// Size reports the current length of the file in bytes.
	Size() (int64, error)
}

// MemoryIO is an ephemeral, in-process IO implementation. Operations are
// queued when issued and resolved on the next RunOnce, so callers observe
// the same pending/pump/resolve cycle a true asynchronous backend would
// exhibit.
type MemoryIO struct {
	mu    sync.Mutex
	files map[string]*MemoryFile
	queue []func()
}

// NewMemoryIO returns an empty in-memory file space.
func NewMemoryIO() *MemoryIO {
	return &MemoryIO{files: make(map[string]*MemoryFile)}
}

// OpenFile opens or creates the named in-memory file.
func (m *MemoryIO) OpenFile(path string, flags OpenFlags) (File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.files[path]; ok {
		return f, nil
	}
	if flags != OpenCreate {
		return nil, fmt.Errorf("storage: no such file: %s", path)
	}
	f := &MemoryFile{io: m}
	m.files[path] = f
	return f, nil
}

// RunOnce drains the operations queued since the previous turn. Operations
// enqueued while draining (none today) run on the next turn.
func (m *MemoryIO) RunOnce() error {
	m.mu.Lock()
	ops := m.queue
	m.queue = nil
	m.mu.Unlock()
	for _, op := range ops {
		op()
	}
	return nil
}

func (m *MemoryIO) enqueue(op func()) {
	m.mu.Lock()
	m.queue = append(m.queue, op)
	m.mu.Unlock()
}

// Pending reports how many operations are queued for the next RunOnce.
func (m *MemoryIO) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// MemoryFile is a growable byte buffer behind the File interface. It is
// exclusively owned by the IO that created it.
type MemoryFile struct {
	io   *MemoryIO
	data []byte
}

// ReadAt queues a positioned read. Reading past the end of the file is an
// IO error delivered through the completion.
func (f *MemoryFile) ReadAt(off int64, c *Completion) error {
	if c.Kind() != CompletionRead {
		panic(fmt.Sprintf("storage: ReadAt given a %s completion", c.Kind()))
	}
	f.io.enqueue(func() {
		end := off + int64(len(c.Buffer()))
		if off < 0 || end > int64(len(f.data)) {
			c.Complete(fmt.Errorf("storage: read [%d, %d) beyond end of file (%d bytes)", off, end, len(f.data)))
			return
		}
		copy(c.Buffer(), f.data[off:end])
		c.Complete(nil)
	})
	return nil
}

// WriteAt queues a positioned write, growing the file as needed.
func (f *MemoryFile) WriteAt(off int64, buf []byte, c *Completion) error {
	if c.Kind() != CompletionWrite {
		panic(fmt.Sprintf("storage: WriteAt given a %s completion", c.Kind()))
	}
	// Copy eagerly so the caller may reuse buf after issuing the write.
	src := make([]byte, len(buf))
	copy(src, buf)
	f.io.enqueue(func() {
		if off < 0 {
			c.Complete(fmt.Errorf("storage: write at negative offset %d", off))
			return
		}
		end := off + int64(len(src))
		if end > int64(len(f.data)) {
			grown := make([]byte, end)
			copy(grown, f.data)
			f.data = grown
		}
		copy(f.data[off:end], src)
		c.Complete(nil)
	})
	return nil
}

// Sync resolves immediately; memory files have no durability to barrier.
func (f *MemoryFile) Sync(c *Completion) error {
	f.io.enqueue(func() { c.Complete(nil) })
	return nil
}

// Size reports the file length. Queued writes are not reflected until the
// loop turn that resolves them.
func (f *MemoryFile) Size() (int64, error) {
	return int64(len(f.data)), nil
}

var _ File = (*MemoryFile)(nil)
var _ IO = (*MemoryIO)(nil)

// Pump runs the IO loop until the completion resolves, up to a bounded
// number of turns. It is the canonical "wait" used by code that cannot
// proceed without the operation's result.
func Pump(io IO, c *Completion) error {
	// Two turns cover every in-tree backend; the bound only exists to
	// turn a stalled completion into a diagnosable error.
	const maxTurns = 1024
	for i := 0; i < maxTurns && !c.Done(); i++ {
		if err := io.RunOnce(); err != nil {
			return err
		}
	}
	if !c.Done() {
		return fmt.Errorf("storage: %s completion did not resolve after %d loop turns", c.Kind(), maxTurns)
	}
	return c.Err()
}

// ephemeral path handling lives with the IO layer so every caller agrees
// on what counts as an in-memory store.

// MemoryPath is the path literal selecting an ephemeral store.
const MemoryPath = ":memory:"

// IsMemoryPath reports whether path selects the ephemeral backend.
func IsMemoryPath(path string) bool {
	return strings.TrimSpace(path) == MemoryPath
}

// WALPath returns the conventional write-ahead log companion path for a
// primary store path.
func WALPath(path string) string {
	return path + "-wal"
}
