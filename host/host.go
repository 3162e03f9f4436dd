// Package host exposes a quarry database to an embedded guest as a
// payload-level request/response protocol. Requests and responses are
// JSON; prepared statements are referenced by opaque host-issued IDs.
package host

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/quarrydb/quarry"
)

// Request is one guest command.
type Request struct {
	Command string `json:"command"`
	SQL     string `json:"sql,omitempty"`
	StmtID  string `json:"stmt_id,omitempty"`
}

// Response is the host's reply. Error is the operational failure channel;
// transport-level failures never reach the guest as Go errors.
type Response struct {
	Error  string       `json:"error,omitempty"`
	StmtID string       `json:"stmt_id,omitempty"`
	Rows   []quarry.Row `json:"rows"`
}

// Host dispatches guest requests against one database. It manages the
// registry of prepared statements on the guest's behalf.
type Host struct {
	db    *quarry.Database
	stmts map[string]*quarry.Statement
	mu    sync.Mutex
}

// New creates a host around an open database.
func New(db *quarry.Database) *Host {
	return &Host{
		db:    db,
		stmts: make(map[string]*quarry.Statement),
	}
}

// HandleRequest processes a raw request payload and returns a raw
// response payload. Operational failures are packaged into the response;
// the returned error is reserved for failures to produce a response at
// all.
func (h *Host) HandleRequest(payload []byte) ([]byte, error) {
	var req Request
	if err := json.Unmarshal(payload, &req); err != nil {
		return marshalErrorResponse(fmt.Sprintf("failed to unmarshal request: %v", err))
	}

	var resp Response
	var opErr error
	switch req.Command {
	case "exec":
		opErr = h.db.Exec(req.SQL)
	case "prepare":
		resp, opErr = h.handlePrepare(&req)
	case "all":
		resp, opErr = h.handleAll(&req)
	case "close_stmt":
		opErr = h.handleCloseStmt(&req)
	case "close":
		opErr = h.handleClose()
	default:
		opErr = fmt.Errorf("unknown command: %s", req.Command)
	}

	if opErr != nil {
		return marshalErrorResponse(opErr.Error())
	}
	return json.Marshal(resp)
}

func marshalErrorResponse(errMsg string) ([]byte, error) {
	payload, err := json.Marshal(Response{Error: errMsg})
	if err != nil {
		// Cannot even marshal the error envelope; fall back to a
		// hardcoded JSON string and report the marshalling failure.
		return []byte(`{"error":"critical: failed to marshal error response"}`),
			fmt.Errorf("host: failed to marshal error response for %q: %w", errMsg, err)
	}
	return payload, nil
}

func (h *Host) handlePrepare(req *Request) (Response, error) {
	stmt, err := h.db.Prepare(req.SQL)
	if err != nil {
		return Response{}, err
	}
	stmtID := uuid.NewString()
	h.mu.Lock()
	h.stmts[stmtID] = stmt
	h.mu.Unlock()
	return Response{StmtID: stmtID}, nil
}

func (h *Host) handleAll(req *Request) (Response, error) {
	h.mu.Lock()
	stmt, ok := h.stmts[req.StmtID]
	h.mu.Unlock()
	if !ok {
		return Response{}, fmt.Errorf("statement not found: %s", req.StmtID)
	}
	rows, err := stmt.All()
	if err != nil {
		return Response{}, err
	}
	return Response{Rows: rows}, nil
}

func (h *Host) handleCloseStmt(req *Request) error {
	h.mu.Lock()
	stmt, ok := h.stmts[req.StmtID]
	if ok {
		delete(h.stmts, req.StmtID)
	}
	h.mu.Unlock()
	if !ok {
		// Closing an unknown statement is idempotent, as drivers expect.
		return nil
	}
	return stmt.Close()
}

func (h *Host) handleClose() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, stmt := range h.stmts {
		_ = stmt.Close()
		delete(h.stmts, id)
	}
	return nil
}
