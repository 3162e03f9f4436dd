// Package quarry is an embeddable, single-connection SQL database for
// sandboxed hosts: no threads, no blocking file IO, no OS entropy device.
// The host supplies a log sink and a random-byte channel; everything else
// runs on a poll-driven event loop over completion-signaled page storage.
package quarry

import (
	cryptorand "crypto/rand"
	"errors"
	"fmt"

	"github.com/quarrydb/quarry/engine"
	"github.com/quarrydb/quarry/entropy"
	"github.com/quarrydb/quarry/storage"
)

// ErrPathUnsupported reports a database path this build cannot serve.
// Only the ephemeral ":memory:" store is implemented; persistent paths
// (and their "-wal" companions) are a configuration error, not a crash.
var ErrPathUnsupported = errors.New(`quarry: only ":memory:" databases are supported`)

// ErrBusy reports that a statement could not run because another
// statement holds the connection's write token.
var ErrBusy = errors.New("quarry: database is busy")

// ErrInterrupted reports that execution stopped at a step boundary after
// Interrupt was called.
var ErrInterrupted = errors.New("quarry: operation interrupted")

// LogFunc is the host's fire-and-forget diagnostic sink.
type LogFunc func(msg string)

type config struct {
	random entropy.ByteFunc
	logf   LogFunc
}

// Option configures a Database at construction time.
type Option func(*config)

// WithRandomBytes injects the host's random-byte channel. The engine
// draws all of its randomness from it, one byte per call. Without this
// option the process's own CSPRNG serves as the host channel.
func WithRandomBytes(fn entropy.ByteFunc) Option {
	return func(c *config) { c.random = fn }
}

// WithLogFunc injects the host's diagnostic sink. Without it diagnostics
// are dropped.
func WithLogFunc(fn LogFunc) Option {
	return func(c *config) { c.logf = fn }
}

func systemRandomByte() byte {
	var b [1]byte
	// crypto/rand.Read does not fail on supported platforms.
	if _, err := cryptorand.Read(b[:]); err != nil {
		panic(fmt.Sprintf("quarry: system entropy failed: %v", err))
	}
	return b[0]
}

// Database is an exclusive handle on one open database. It is not safe
// for concurrent use from multiple goroutines; single-owner discipline is
// the caller's responsibility.
type Database struct {
	conn *engine.Connection
	io   storage.IO
	logf LogFunc
}

// New opens a database. Only the ephemeral ":memory:" path is supported;
// any other path fails with ErrPathUnsupported.
func New(path string, opts ...Option) (*Database, error) {
	cfg := config{
		random: systemRandomByte,
		logf:   func(string) {},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if !storage.IsMemoryPath(path) {
		return nil, fmt.Errorf("%w: %q", ErrPathUnsupported, path)
	}

	io := storage.NewMemoryIO()
	file, err := io.OpenFile(storage.MemoryPath, storage.OpenCreate)
	if err != nil {
		return nil, err
	}
	// The write-ahead log companion is reserved alongside the primary
	// store even though the ephemeral engine writes pages directly.
	if _, err := io.OpenFile(storage.WALPath(storage.MemoryPath), storage.OpenCreate); err != nil {
		return nil, err
	}
	size, err := file.Size()
	if err != nil {
		return nil, err
	}

	store := storage.NewPageStore(file)
	conn, err := engine.Open(io, store, size, entropy.NewSource(cfg.random))
	if err != nil {
		return nil, err
	}
	cfg.logf(fmt.Sprintf("quarry: opened ephemeral database, page size %d", conn.PageSize()))
	return &Database{conn: conn, io: io, logf: cfg.logf}, nil
}

// Exec runs one statement for its side effect. Rows it produces are
// discarded. Engine failures come back as errors; Busy and Interrupt come
// back as their sentinels so the caller can tell nothing was (fully) done.
func (d *Database) Exec(sqlText string) error {
	stmt, err := d.Prepare(sqlText)
	if err != nil {
		return err
	}
	d.logf("quarry: exec: " + sqlText)
	for {
		res, err := stmt.step.Step()
		if err != nil {
			return fmt.Errorf("quarry: exec failed: %w", err)
		}
		switch res {
		case engine.StepRow, engine.StepIO:
			// keep stepping
		case engine.StepDone:
			return nil
		case engine.StepBusy:
			return ErrBusy
		case engine.StepInterrupt:
			return ErrInterrupted
		}
	}
}

// Prepare compiles a query into a steppable cursor.
func (d *Database) Prepare(sqlText string) (*Statement, error) {
	stmt, err := d.conn.Prepare(sqlText)
	if err != nil {
		return nil, fmt.Errorf("quarry: prepare failed: %w", err)
	}
	return &Statement{sql: sqlText, step: stmt}, nil
}

// Interrupt cooperatively stops running statements at their next step
// boundary. Rows already collected by a drain are preserved.
func (d *Database) Interrupt() {
	d.conn.Interrupt()
}

// ClearInterrupt rearms the database after an interrupt was delivered.
// Statements stopped by the interrupt may be stepped again.
func (d *Database) ClearInterrupt() {
	d.conn.ClearInterrupt()
}
