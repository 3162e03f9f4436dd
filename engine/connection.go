// Package engine is a minimal single-connection SQL engine with
// asynchronous, completion-based paged storage. Statements execute as
// step state machines: each step makes one unit of progress and reports
// whether it produced a row, paused for IO, finished, or stopped early.
// All row data flows through the storage layer's page interface; the
// engine never touches a file directly.
package engine

import (
	"fmt"
	"sync/atomic"

	"github.com/quarrydb/quarry/engine/sql"
	"github.com/quarrydb/quarry/entropy"
	"github.com/quarrydb/quarry/storage"
)

// Connection is the single entry point to one database. It is owned by
// one caller; concurrent use from several goroutines is not supported.
type Connection struct {
	pager       *pager
	catalog     *Catalog
	writer      *Statement
	interrupted atomic.Bool
}

// Open initializes a connection over the given storage. A zero fileSize
// means a fresh database: the header page is written with a salt drawn
// from the entropy channel. Otherwise the header is read back and
// validated before any other page is touched.
func Open(io storage.IO, store storage.DatabaseStorage, fileSize int64, rng *entropy.Source) (*Connection, error) {
	var h *fileHeader
	var err error
	if fileSize == 0 {
		h, err = initDatabaseFile(io, store, rng)
	} else {
		h, err = readDatabaseHeader(io, store)
	}
	if err != nil {
		return nil, err
	}
	return &Connection{
		pager:   newPager(io, store, h),
		catalog: newCatalog(),
	}, nil
}

// Prepare compiles one SQL statement into a steppable cursor.
func (c *Connection) Prepare(text string) (*Statement, error) {
	ast, err := sql.Parse(text)
	if err != nil {
		return nil, err
	}
	s := &Statement{conn: c}
	switch {
	case ast.Create != nil:
		s.exec = &createExec{def: ast.Create}
	case ast.Insert != nil:
		s.exec = &insertExec{ins: ast.Insert}
	case ast.Select != nil:
		s.exec = &selectExec{sel: ast.Select}
	default:
		return nil, fmt.Errorf("engine: unsupported statement")
	}
	return s, nil
}

// Interrupt requests cooperative cancellation: every statement on this
// connection observes it at its next step boundary.
func (c *Connection) Interrupt() {
	c.interrupted.Store(true)
}

// ClearInterrupt rearms the connection after an interrupt was delivered.
func (c *Connection) ClearInterrupt() {
	c.interrupted.Store(false)
}

// PageSize reports the page size fixed at open time.
func (c *Connection) PageSize() int {
	return c.pager.PageSize()
}
