package engine

import (
	"fmt"

	"github.com/quarrydb/quarry/engine/sql"
)

// StepResult reports one unit of forward progress through a statement.
type StepResult int

const (
	// StepRow means the statement produced a row, readable via Row until
	// the next step.
	StepRow StepResult = iota
	// StepIO means the statement paused for page IO. The engine has
	// already advanced the event loop; the caller just steps again.
	StepIO
	// StepDone means the statement ran to completion.
	StepDone
	// StepBusy means another statement holds the connection's write
	// token. Terminal for this drain; whether to retry is the caller's
	// decision.
	StepBusy
	// StepInterrupt means Interrupt was called on the connection and the
	// statement stopped at a step boundary.
	StepInterrupt
)

func (r StepResult) String() string {
	switch r {
	case StepRow:
		return "row"
	case StepIO:
		return "io"
	case StepDone:
		return "done"
	case StepBusy:
		return "busy"
	case StepInterrupt:
		return "interrupt"
	}
	return fmt.Sprintf("StepResult(%d)", int(r))
}

type executor interface {
	step(s *Statement) (StepResult, error)
}

// Statement is a compiled, steppable cursor over one query. It is owned
// by one caller; only one step may be in flight at a time.
type Statement struct {
	conn *Connection
	exec executor
	row  []Value
	done bool
}

// Step advances the statement one unit. Once a statement reports StepDone
// or an error it stays done; further steps return StepDone immediately.
func (s *Statement) Step() (StepResult, error) {
	if s.done {
		return StepDone, nil
	}
	if s.conn.interrupted.Load() {
		s.releaseWriter()
		return StepInterrupt, nil
	}
	res, err := s.exec.step(s)
	if err != nil {
		s.done = true
		s.releaseWriter()
		return res, err
	}
	if res == StepDone {
		s.done = true
		s.releaseWriter()
	}
	return res, nil
}

// Row returns the current row after a StepRow result. The slice is valid
// until the next step.
func (s *Statement) Row() []Value {
	return s.row
}

// Done reports whether the statement has run to completion.
func (s *Statement) Done() bool {
	return s.done
}

func (s *Statement) acquireWriter() bool {
	if s.conn.writer == nil {
		s.conn.writer = s
	}
	return s.conn.writer == s
}

func (s *Statement) releaseWriter() {
	if s.conn.writer == s {
		s.conn.writer = nil
	}
}

// --- CREATE TABLE ---

type createExec struct {
	def *sql.CreateTable
}

func (e *createExec) step(s *Statement) (StepResult, error) {
	if !s.acquireWriter() {
		return StepBusy, nil
	}
	c := s.conn
	if c.catalog.has(e.def.Name) {
		return StepDone, fmt.Errorf("engine: table %s already exists", e.def.Name)
	}
	t, err := tableFromAST(e.def)
	if err != nil {
		return StepDone, err
	}
	root := c.pager.Allocate()
	page := make([]byte, c.pager.PageSize())
	initDataPage(page)
	if err := c.pager.Write(root, page); err != nil {
		return StepDone, err
	}
	t.Root, t.Last = root, root
	c.catalog.add(t)
	return StepDone, nil
}

// --- INSERT ---

type insertExec struct {
	ins   *sql.Insert
	table *Table
	rows  [][]Value
	next  int
}

func (e *insertExec) step(s *Statement) (StepResult, error) {
	if !s.acquireWriter() {
		return StepBusy, nil
	}
	c := s.conn
	if e.table == nil {
		t, err := c.catalog.table(e.ins.Table)
		if err != nil {
			return StepDone, err
		}
		rows, err := bindInsertRows(t, e.ins)
		if err != nil {
			return StepDone, err
		}
		e.table, e.rows = t, rows
	}
	for e.next < len(e.rows) {
		page, ready, err := c.pager.Fetch(e.table.Last)
		if err != nil {
			return StepDone, err
		}
		if !ready {
			return StepIO, nil
		}
		rec := encodeRow(e.rows[e.next])
		if len(rec)+2 > c.pager.PageSize()-dataPageHeaderSize {
			return StepDone, fmt.Errorf("engine: row of %d bytes exceeds page capacity", len(rec))
		}
		if !appendRecord(page, rec) {
			// Tail page is full: link in a fresh one and retry there.
			next := c.pager.Allocate()
			fresh := make([]byte, c.pager.PageSize())
			initDataPage(fresh)
			setPageNext(page, next)
			if err := c.pager.Write(e.table.Last, page); err != nil {
				return StepDone, err
			}
			if err := c.pager.Write(next, fresh); err != nil {
				return StepDone, err
			}
			e.table.Last = next
			continue
		}
		if err := c.pager.Write(e.table.Last, page); err != nil {
			return StepDone, err
		}
		e.next++
	}
	return StepDone, nil
}

// bindInsertRows resolves the column list and converts every tuple into a
// full-width row in schema order. An omitted INTEGER PRIMARY KEY receives
// the table's next row key; omitted columns are NULL, subject to NOT NULL.
func bindInsertRows(t *Table, ins *sql.Insert) ([][]Value, error) {
	var colIdx []int
	if len(ins.Columns) == 0 {
		colIdx = make([]int, len(t.Columns))
		for i := range colIdx {
			colIdx[i] = i
		}
	} else {
		seen := make(map[int]bool, len(ins.Columns))
		for _, name := range ins.Columns {
			ci := t.Column(name)
			if ci < 0 {
				return nil, fmt.Errorf("engine: table %s has no column named %s", t.Name, name)
			}
			if seen[ci] {
				return nil, fmt.Errorf("engine: column %s specified more than once", name)
			}
			seen[ci] = true
			colIdx = append(colIdx, ci)
		}
	}
	rowKey := t.rowKeyColumn()
	rows := make([][]Value, 0, len(ins.Rows))
	for _, tup := range ins.Rows {
		if len(tup.Values) != len(colIdx) {
			return nil, fmt.Errorf("engine: %d values for %d columns", len(tup.Values), len(colIdx))
		}
		row := make([]Value, len(t.Columns))
		for j, lit := range tup.Values {
			ci := colIdx[j]
			v, err := bindLiteral(lit, t.Columns[ci].Type)
			if err != nil {
				return nil, err
			}
			row[ci] = v
		}
		for i, col := range t.Columns {
			if row[i].Kind == KindNull {
				if i == rowKey {
					row[i] = Integer(t.NextRowID)
					t.NextRowID++
				} else if col.NotNull {
					return nil, fmt.Errorf("engine: NOT NULL constraint failed: %s.%s", t.Name, col.Name)
				}
				continue
			}
			if i == rowKey && row[i].Kind == KindInteger && row[i].Int >= t.NextRowID {
				t.NextRowID = row[i].Int + 1
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// --- SELECT ---

type rowFilter struct {
	col   int
	value Value
}

type selectExec struct {
	sel     *sql.Select
	table   *Table
	proj    []int
	filter  *rowFilter
	cur     int
	queue   [][]Value
	started bool
}

func (e *selectExec) step(s *Statement) (StepResult, error) {
	c := s.conn
	if !e.started {
		t, err := c.catalog.table(e.sel.Table)
		if err != nil {
			return StepDone, err
		}
		e.table = t
		if e.sel.Projection.Star {
			e.proj = make([]int, len(t.Columns))
			for i := range e.proj {
				e.proj[i] = i
			}
		} else {
			for _, name := range e.sel.Projection.Columns {
				ci := t.Column(name)
				if ci < 0 {
					return StepDone, fmt.Errorf("engine: table %s has no column named %s", t.Name, name)
				}
				e.proj = append(e.proj, ci)
			}
		}
		if e.sel.Where != nil {
			ci := t.Column(e.sel.Where.Column)
			if ci < 0 {
				return StepDone, fmt.Errorf("engine: table %s has no column named %s", t.Name, e.sel.Where.Column)
			}
			v, err := bindLiteral(e.sel.Where.Value, t.Columns[ci].Type)
			if err != nil {
				return StepDone, err
			}
			e.filter = &rowFilter{col: ci, value: v}
		}
		e.cur = t.Root
		e.started = true
	}
	for {
		for len(e.queue) > 0 {
			row := e.queue[0]
			e.queue = e.queue[1:]
			if e.filter != nil && !valuesEqual(row[e.filter.col], e.filter.value) {
				continue
			}
			out := make([]Value, len(e.proj))
			for i, ci := range e.proj {
				out[i] = row[ci]
			}
			s.row = out
			return StepRow, nil
		}
		if e.cur == 0 {
			return StepDone, nil
		}
		page, ready, err := c.pager.Fetch(e.cur)
		if err != nil {
			return StepDone, err
		}
		if !ready {
			return StepIO, nil
		}
		recs, err := pageRecords(page)
		if err != nil {
			return StepDone, err
		}
		for _, rec := range recs {
			row, err := decodeRow(rec)
			if err != nil {
				return StepDone, err
			}
			if len(row) != len(e.table.Columns) {
				return StepDone, fmt.Errorf("engine: row has %d cells, table %s has %d columns",
					len(row), e.table.Name, len(e.table.Columns))
			}
			e.queue = append(e.queue, row)
		}
		e.cur = pageNext(page)
	}
}
