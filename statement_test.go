package quarry

import (
	"errors"
	"fmt"
	"testing"

	"github.com/quarrydb/quarry/engine"
)

// scriptStepper plays back a fixed sequence of step results, standing in
// for an engine statement.
type scriptStepper struct {
	events []scriptEvent
	pos    int
}

type scriptEvent struct {
	res engine.StepResult
	row []engine.Value
	err error
}

func (s *scriptStepper) Step() (engine.StepResult, error) {
	if s.pos >= len(s.events) {
		return engine.StepDone, nil
	}
	e := s.events[s.pos]
	s.pos++
	return e.res, e.err
}

func (s *scriptStepper) Row() []engine.Value {
	return s.events[s.pos-1].row
}

func rowEvent(vals ...engine.Value) scriptEvent {
	return scriptEvent{res: engine.StepRow, row: vals}
}

func TestAllCollectsRowsAcrossIO(t *testing.T) {
	stmt := &Statement{step: &scriptStepper{events: []scriptEvent{
		rowEvent(engine.Integer(1)),
		{res: engine.StepIO},
		{res: engine.StepIO},
		rowEvent(engine.Integer(2)),
		{res: engine.StepDone},
	}}}
	rows, err := stmt.All()
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if !rows[0][0].Equal(Integer(1)) || !rows[1][0].Equal(Integer(2)) {
		t.Errorf("rows out of order: %v", rows)
	}
}

func TestAllBusyReturnsPartialBatch(t *testing.T) {
	stmt := &Statement{step: &scriptStepper{events: []scriptEvent{
		rowEvent(engine.Text("first")),
		{res: engine.StepBusy},
		rowEvent(engine.Text("second")),
		{res: engine.StepDone},
	}}}

	rows, err := stmt.All()
	if err != nil {
		t.Fatalf("busy drain returned error: %v", err)
	}
	if len(rows) != 1 || !rows[0][0].Equal(Text("first")) {
		t.Fatalf("partial batch = %v, want [first]", rows)
	}

	// Busy is not terminal for the statement; a later drain resumes.
	rows, err = stmt.All()
	if err != nil {
		t.Fatalf("resumed drain: %v", err)
	}
	if len(rows) != 1 || !rows[0][0].Equal(Text("second")) {
		t.Fatalf("resumed batch = %v, want [second]", rows)
	}
}

func TestAllInterruptReturnsPartialBatch(t *testing.T) {
	stmt := &Statement{step: &scriptStepper{events: []scriptEvent{
		rowEvent(engine.Integer(10)),
		rowEvent(engine.Integer(20)),
		{res: engine.StepInterrupt},
	}}}
	rows, err := stmt.All()
	if err != nil {
		t.Fatalf("interrupted drain returned error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows before the interrupt, want 2", len(rows))
	}
}

func TestAllErrorKeepsCollectedRows(t *testing.T) {
	boom := fmt.Errorf("page torn")
	stmt := &Statement{step: &scriptStepper{events: []scriptEvent{
		rowEvent(engine.Integer(1)),
		{res: engine.StepDone, err: boom},
	}}}
	rows, err := stmt.All()
	if !errors.Is(err, boom) {
		t.Fatalf("All error = %v, want wrapped %v", err, boom)
	}
	if len(rows) != 1 {
		t.Fatalf("error drain returned %d rows, want the 1 read before failure", len(rows))
	}

	// A failed statement is finished; later drains are empty, not retries.
	rows, err = stmt.All()
	if err != nil || len(rows) != 0 {
		t.Fatalf("drain after failure: %v, %v", rows, err)
	}
}

func TestAllAfterDoneIsEmpty(t *testing.T) {
	script := &scriptStepper{events: []scriptEvent{{res: engine.StepDone}}}
	stmt := &Statement{step: script}
	if rows, err := stmt.All(); err != nil || len(rows) != 0 || rows == nil {
		t.Fatalf("first drain: %v, %v", rows, err)
	}
	calls := script.pos
	if rows, err := stmt.All(); err != nil || len(rows) != 0 {
		t.Fatalf("second drain: %v, %v", rows, err)
	}
	if script.pos != calls {
		t.Error("drain of a finished statement stepped the engine again")
	}
}

// reentrantStepper drains its own statement from inside Step, which is
// exactly the overlapping use the runtime guard exists to catch.
type reentrantStepper struct {
	stmt  *Statement
	inner error
}

func (r *reentrantStepper) Step() (engine.StepResult, error) {
	_, r.inner = r.stmt.All()
	return engine.StepDone, nil
}

func (r *reentrantStepper) Row() []engine.Value { return nil }

func TestAllRejectsOverlappingDrains(t *testing.T) {
	r := &reentrantStepper{}
	stmt := &Statement{step: r}
	r.stmt = stmt

	if _, err := stmt.All(); err != nil {
		t.Fatalf("outer drain: %v", err)
	}
	if !errors.Is(r.inner, ErrStatementBusy) {
		t.Fatalf("overlapping drain error = %v, want ErrStatementBusy", r.inner)
	}
}

func TestCloseStopsDrains(t *testing.T) {
	script := &scriptStepper{events: []scriptEvent{rowEvent(engine.Integer(1))}}
	stmt := &Statement{step: script}
	if err := stmt.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	rows, err := stmt.All()
	if err != nil || len(rows) != 0 {
		t.Fatalf("drain after Close: %v, %v", rows, err)
	}
	if script.pos != 0 {
		t.Error("closed statement stepped the engine")
	}
}
