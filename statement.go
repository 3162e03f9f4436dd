package quarry

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/quarrydb/quarry/engine"
)

// ErrStatementBusy reports a second drain starting while one is already
// in flight. A statement permits exactly one stepping operation at a
// time; this is enforced at runtime rather than left to caller luck.
var ErrStatementBusy = errors.New("quarry: statement is already being stepped")

// Row is one result row in emission order.
type Row []Value

// stepper is the slice of the engine statement the drain loop needs.
type stepper interface {
	Step() (engine.StepResult, error)
	Row() []engine.Value
}

// Statement is an exclusive handle on one prepared statement.
type Statement struct {
	sql      string
	step     stepper
	draining atomic.Bool
	done     bool
	closed   bool
}

// SQL returns the statement's source text.
func (s *Statement) SQL() string {
	return s.sql
}

// All drains the statement and returns every row it produces, in cursor
// emission order. A Busy or Interrupt step result stops the drain and
// yields the rows collected so far without error; those are valid partial
// result sets, not failures. Engine errors are returned alongside any
// rows read before the failure. Draining a finished statement returns an
// empty batch; it never re-executes.
func (s *Statement) All() ([]Row, error) {
	if !s.draining.CompareAndSwap(false, true) {
		return nil, ErrStatementBusy
	}
	defer s.draining.Store(false)

	batch := []Row{}
	if s.done || s.closed {
		return batch, nil
	}
	for {
		res, err := s.step.Step()
		if err != nil {
			s.done = true
			return batch, fmt.Errorf("quarry: step failed: %w", err)
		}
		switch res {
		case engine.StepRow:
			raw := s.step.Row()
			row := make(Row, len(raw))
			for i, v := range raw {
				row[i] = valueFromEngine(v)
			}
			batch = append(batch, row)
		case engine.StepIO:
			// The engine advanced its own completions before returning;
			// stepping again is all that is needed.
		case engine.StepDone:
			s.done = true
			return batch, nil
		case engine.StepBusy, engine.StepInterrupt:
			return batch, nil
		}
	}
}

// Close releases the statement. Further drains return empty batches.
func (s *Statement) Close() error {
	s.closed = true
	return nil
}
