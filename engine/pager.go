package engine

import (
	"fmt"

	"github.com/quarrydb/quarry/storage"
)

// pager is the engine's view of paged storage: a page cache in front of a
// DatabaseStorage, with reads resolved through completions and the IO
// loop. A cache miss is never waited on synchronously; Fetch issues the
// read, advances the loop one turn, and reports not-ready so the stepping
// state machine can surface an IO pause to its caller.
type pager struct {
	io       storage.IO
	store    storage.DatabaseStorage
	pageSize int
	numPages int
	cache    map[int][]byte
	pending  map[int]*storage.Completion
}

func newPager(io storage.IO, store storage.DatabaseStorage, h *fileHeader) *pager {
	return &pager{
		io:       io,
		store:    store,
		pageSize: h.pageSize,
		numPages: h.numPages,
		cache:    make(map[int][]byte),
		pending:  make(map[int]*storage.Completion),
	}
}

// Fetch returns the page when it is resident. On a miss it issues the
// read, pumps the loop once, and reports ready=false; the page becomes
// resident on a later call once its completion has resolved.
func (p *pager) Fetch(idx int) (data []byte, ready bool, err error) {
	if data, ok := p.cache[idx]; ok {
		return data, true, nil
	}
	if c, ok := p.pending[idx]; ok {
		if !c.Done() {
			if err := p.io.RunOnce(); err != nil {
				return nil, false, err
			}
		}
		if !c.Done() {
			return nil, false, nil
		}
		delete(p.pending, idx)
		if err := c.Err(); err != nil {
			return nil, false, fmt.Errorf("engine: reading page %d: %w", idx, err)
		}
		p.cache[idx] = c.Buffer()
		return c.Buffer(), true, nil
	}
	c := storage.NewReadCompletion(make([]byte, p.pageSize))
	if err := p.store.ReadPage(idx, c); err != nil {
		return nil, false, err
	}
	p.pending[idx] = c
	if err := p.io.RunOnce(); err != nil {
		return nil, false, err
	}
	return nil, false, nil
}

// Write caches the page and flushes it, pumping the loop until the write
// resolves.
func (p *pager) Write(idx int, data []byte) error {
	p.cache[idx] = data
	c := storage.NewWriteCompletion(data)
	if err := p.store.WritePage(idx, data, c); err != nil {
		return err
	}
	if err := storage.Pump(p.io, c); err != nil {
		return fmt.Errorf("engine: writing page %d: %w", idx, err)
	}
	return nil
}

// Allocate reserves the next logical page number. Fresh pages exist only
// in cache until written.
func (p *pager) Allocate() int {
	p.numPages++
	return p.numPages
}

// PageSize reports the fixed page size established at open time.
func (p *pager) PageSize() int { return p.pageSize }
