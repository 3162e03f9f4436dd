package engine

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/quarrydb/quarry/storage"
)

func newTestConnection(t *testing.T) *Connection {
	t.Helper()
	io, store := testStorage(t)
	rng, _ := countingEntropy(0)
	conn, err := Open(io, store, 0, rng)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return conn
}

// drainStatement steps a statement to a terminal result, collecting rows.
func drainStatement(stmt *Statement) ([][]Value, StepResult, error) {
	var rows [][]Value
	for {
		res, err := stmt.Step()
		if err != nil {
			return rows, res, err
		}
		switch res {
		case StepRow:
			row := make([]Value, len(stmt.Row()))
			copy(row, stmt.Row())
			rows = append(rows, row)
		case StepIO:
		default:
			return rows, res, nil
		}
	}
}

func drain(t *testing.T, conn *Connection, text string) ([][]Value, StepResult, error) {
	t.Helper()
	stmt, err := conn.Prepare(text)
	if err != nil {
		t.Fatalf("Prepare(%q): %v", text, err)
	}
	return drainStatement(stmt)
}

func mustExec(t *testing.T, conn *Connection, text string) {
	t.Helper()
	_, res, err := drain(t, conn, text)
	if err != nil {
		t.Fatalf("%q: %v", text, err)
	}
	if res != StepDone {
		t.Fatalf("%q finished with %v, want done", text, res)
	}
}

func TestCreateInsertSelect(t *testing.T) {
	conn := newTestConnection(t)
	mustExec(t, conn, "CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT)")
	mustExec(t, conn, "INSERT INTO users (name) VALUES ('Alice')")

	rows, res, err := drain(t, conn, "SELECT * FROM users")
	if err != nil || res != StepDone {
		t.Fatalf("select: result %v, err %v", res, err)
	}
	if len(rows) != 1 || len(rows[0]) != 2 {
		t.Fatalf("got rows %v, want one two-column row", rows)
	}
	if !valuesEqual(rows[0][0], Integer(1)) {
		t.Errorf("id = %v, want 1", rows[0][0])
	}
	if !valuesEqual(rows[0][1], Text("Alice")) {
		t.Errorf("name = %v, want Alice", rows[0][1])
	}
}

func TestRowKeyAssignment(t *testing.T) {
	conn := newTestConnection(t)
	mustExec(t, conn, "CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT)")
	mustExec(t, conn, "INSERT INTO users (id, name) VALUES (5, 'explicit')")
	mustExec(t, conn, "INSERT INTO users (name) VALUES ('implicit')")

	rows, _, err := drain(t, conn, "SELECT id FROM users WHERE name = 'implicit'")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(rows) != 1 || !valuesEqual(rows[0][0], Integer(6)) {
		t.Fatalf("implicit row key after explicit 5 = %v, want 6", rows)
	}
}

func TestWhereEquality(t *testing.T) {
	conn := newTestConnection(t)
	mustExec(t, conn, "CREATE TABLE t (a INTEGER, b REAL)")
	mustExec(t, conn, "INSERT INTO t VALUES (1, 2), (3, 4.5)")

	// Integer literal against a REAL column binds with column affinity.
	rows, _, err := drain(t, conn, "SELECT b FROM t WHERE b = 2")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(rows) != 1 || !valuesEqual(rows[0][0], Float(2)) {
		t.Fatalf("WHERE b = 2 returned %v", rows)
	}

	rows, _, err = drain(t, conn, "SELECT a FROM t WHERE a = 99")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("WHERE a = 99 matched %v", rows)
	}

	// NULL never compares equal, itself included.
	rows, _, err = drain(t, conn, "SELECT a FROM t WHERE a = NULL")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("WHERE a = NULL matched %v", rows)
	}
}

func TestMultiPageScan(t *testing.T) {
	conn := newTestConnection(t)
	mustExec(t, conn, "CREATE TABLE big (id INTEGER PRIMARY KEY, body TEXT)")

	// Enough rows to overflow the root page several times over.
	const n = 300
	body := strings.Repeat("x", 100)
	var b strings.Builder
	b.WriteString("INSERT INTO big (body) VALUES ")
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "('%s')", body)
	}
	mustExec(t, conn, b.String())

	if conn.pager.numPages <= 2 {
		t.Fatalf("%d rows fit in %d pages; the chain never grew", n, conn.pager.numPages)
	}

	rows, res, err := drain(t, conn, "SELECT id FROM big")
	if err != nil || res != StepDone {
		t.Fatalf("select: result %v, err %v", res, err)
	}
	if len(rows) != n {
		t.Fatalf("scanned %d rows, want %d", len(rows), n)
	}
	for i, row := range rows {
		if !valuesEqual(row[0], Integer(int64(i+1))) {
			t.Fatalf("row %d has id %v; insertion order was not preserved", i, row[0])
		}
	}
}

func TestStepDoneIsSticky(t *testing.T) {
	conn := newTestConnection(t)
	stmt, err := conn.Prepare("CREATE TABLE t (a INTEGER)")
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if _, _, err := drainStatement(stmt); err != nil {
		t.Fatalf("drain: %v", err)
	}
	for i := 0; i < 3; i++ {
		res, err := stmt.Step()
		if res != StepDone || err != nil {
			t.Fatalf("step after done: %v, %v", res, err)
		}
	}
}

func TestSecondWriterIsBusy(t *testing.T) {
	conn := newTestConnection(t)
	mustExec(t, conn, "CREATE TABLE t (a INTEGER)")

	// Evict the table's pages so the insert has to pause for IO while
	// holding the connection's write token.
	tbl, err := conn.catalog.table("t")
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	delete(conn.pager.cache, tbl.Last)

	writer, err := conn.Prepare("INSERT INTO t VALUES (1)")
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	res, err := writer.Step()
	if err != nil {
		t.Fatalf("first writer step: %v", err)
	}
	if res != StepIO {
		t.Fatalf("first writer step = %v, want io", res)
	}

	second, err := conn.Prepare("CREATE TABLE u (b INTEGER)")
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	res, err = second.Step()
	if err != nil {
		t.Fatalf("second writer step: %v", err)
	}
	if res != StepBusy {
		t.Fatalf("second writer step = %v, want busy", res)
	}
	if second.Done() {
		t.Error("busy marked the statement done")
	}

	// Finishing the first writer frees the token.
	if _, res, err := drainStatement(writer); err != nil || res != StepDone {
		t.Fatalf("finishing first writer: result %v, err %v", res, err)
	}
	if _, res, err := drainStatement(second); err != nil || res != StepDone {
		t.Fatalf("second writer after release: result %v, err %v", res, err)
	}
}

func TestInterruptStopsAtStepBoundary(t *testing.T) {
	conn := newTestConnection(t)
	mustExec(t, conn, "CREATE TABLE t (a INTEGER)")
	mustExec(t, conn, "INSERT INTO t VALUES (1), (2)")

	stmt, err := conn.Prepare("SELECT a FROM t")
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	conn.Interrupt()
	res, err := stmt.Step()
	if err != nil || res != StepInterrupt {
		t.Fatalf("step under interrupt: %v, %v", res, err)
	}
	if stmt.Done() {
		t.Error("interrupt marked the statement done")
	}

	// Clearing the flag lets the same statement resume.
	conn.ClearInterrupt()
	rows, res, err := drainStatement(stmt)
	if err != nil || res != StepDone {
		t.Fatalf("resume: result %v, err %v", res, err)
	}
	if len(rows) != 2 {
		t.Fatalf("resumed drain returned %d rows, want 2", len(rows))
	}
}

func TestStatementErrors(t *testing.T) {
	conn := newTestConnection(t)
	mustExec(t, conn, "CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT)")
	mustExec(t, conn, "CREATE TABLE notes (body TEXT NOT NULL)")

	cases := []string{
		"SELECT * FROM missing",
		"CREATE TABLE users (id INTEGER)",
		"CREATE TABLE dup (a INTEGER, A TEXT)",
		"CREATE TABLE twopk (a INTEGER PRIMARY KEY, b INTEGER PRIMARY KEY)",
		"INSERT INTO users (nope) VALUES (1)",
		"INSERT INTO users (name) VALUES ('a', 'b')",
		"INSERT INTO notes (body) VALUES (NULL)",
		"SELECT nope FROM users",
		"SELECT * FROM users WHERE nope = 1",
	}
	for _, text := range cases {
		stmt, err := conn.Prepare(text)
		if err != nil {
			t.Fatalf("Prepare(%q): %v", text, err)
		}
		if _, _, err := drainStatement(stmt); err == nil {
			t.Errorf("%q executed without error", text)
			continue
		}
		// A failed statement is finished, and the connection survives.
		if !stmt.Done() {
			t.Errorf("%q: statement not done after error", text)
		}
		if res, err := stmt.Step(); res != StepDone || err != nil {
			t.Errorf("%q: step after error = %v, %v", text, res, err)
		}
	}

	// The connection is still usable after every failure above.
	mustExec(t, conn, "INSERT INTO users (name) VALUES ('ok')")
}

func TestOversizedRowRejected(t *testing.T) {
	conn := newTestConnection(t)
	mustExec(t, conn, "CREATE TABLE blobs (data BLOB)")

	hex := strings.Repeat("ab", DefaultPageSize)
	_, _, err := drain(t, conn, "INSERT INTO blobs (data) VALUES (x'"+hex+"')")
	if err == nil {
		t.Fatal("row larger than a page was accepted")
	}
}

func TestReopenValidatesHeader(t *testing.T) {
	io := storage.NewMemoryIO()
	f, err := io.OpenFile(storage.MemoryPath, storage.OpenCreate)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	store := storage.NewPageStore(f)
	rng, _ := countingEntropy(0)
	if _, err := Open(io, store, 0, rng); err != nil {
		t.Fatalf("Open fresh: %v", err)
	}
	size, err := f.Size()
	if err != nil {
		t.Fatalf("Size: %v", err)
	}

	// A clean reopen reads the header back.
	conn, err := Open(io, store, size, rng)
	if err != nil {
		t.Fatalf("Open existing: %v", err)
	}
	if conn.PageSize() != DefaultPageSize {
		t.Errorf("reopened page size = %d, want %d", conn.PageSize(), DefaultPageSize)
	}

	// Smash the magic; reopening must refuse before touching any data page.
	c := storage.NewWriteCompletion([]byte{0})
	if err := f.WriteAt(0, []byte{0}, c); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	if err := storage.Pump(io, c); err != nil {
		t.Fatalf("Pump: %v", err)
	}
	if _, err := Open(io, store, size, rng); !errors.Is(err, storage.ErrNotADatabase) {
		t.Fatalf("Open over corrupt header: got %v, want ErrNotADatabase", err)
	}
}
