package storage

import "fmt"

// CompletionKind identifies which file operation a completion belongs to.
type CompletionKind int

const (
	CompletionRead CompletionKind = iota
	CompletionWrite
	CompletionSync
)

func (k CompletionKind) String() string {
	switch k {
	case CompletionRead:
		return "read"
	case CompletionWrite:
		return "write"
	case CompletionSync:
		return "sync"
	}
	return fmt.Sprintf("CompletionKind(%d)", int(k))
}

// Completion is a single-use token for one outstanding file operation. A
// read completion carries the destination buffer the file layer fills in;
// a write completion carries the source buffer being flushed. The file
// layer may fulfill it synchronously or leave it pending until the owning
// IO loop is pumped with RunOnce. A completion is fulfilled exactly once;
// fulfilling it a second time is a contract violation and panics.
type Completion struct {
	kind CompletionKind
	buf  []byte
	done bool
	err  error
}

// NewReadCompletion returns a completion whose buffer will receive the
// bytes of a positioned read once the operation resolves.
func NewReadCompletion(buf []byte) *Completion {
	return &Completion{kind: CompletionRead, buf: buf}
}

// NewWriteCompletion returns a completion tracking a positioned write of
// the given source buffer.
func NewWriteCompletion(buf []byte) *Completion {
	return &Completion{kind: CompletionWrite, buf: buf}
}

// NewSyncCompletion returns a completion tracking a durability barrier.
func NewSyncCompletion() *Completion {
	return &Completion{kind: CompletionSync}
}

// Kind reports which operation this completion was created for.
func (c *Completion) Kind() CompletionKind { return c.kind }

// Buffer returns the destination buffer (reads) or source buffer (writes).
// Sync completions have no buffer.
func (c *Completion) Buffer() []byte { return c.buf }

// Done reports whether the operation has resolved. Err is only meaningful
// once Done returns true.
func (c *Completion) Done() bool { return c.done }

// Err returns the outcome of a resolved operation, nil on success.
func (c *Completion) Err() error { return c.err }

// Complete fulfills the completion. File implementations call this exactly
// once per completion when the underlying operation finishes.
func (c *Completion) Complete(err error) {
	if c.done {
		panic(fmt.Sprintf("storage: %s completion fulfilled twice", c.kind))
	}
	c.done = true
	c.err = err
}
