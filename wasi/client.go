//go:build wasip1

package wasi

import (
	"encoding/json"
	"fmt"

	"github.com/quarrydb/quarry"
	"github.com/quarrydb/quarry/host"
)

// The guest-facing convenience layer over CallHost, mirroring the host's
// command protocol.

func roundTrip(req host.Request) (*host.Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("wasi: failed to marshal request: %w", err)
	}
	respPayload, err := CallHost(payload)
	if err != nil {
		return nil, err
	}
	var resp host.Response
	if err := json.Unmarshal(respPayload, &resp); err != nil {
		return nil, fmt.Errorf("wasi: failed to unmarshal response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("wasi: host error: %s", resp.Error)
	}
	return &resp, nil
}

// Exec runs one statement on the host database for its side effect.
func Exec(sql string) error {
	_, err := roundTrip(host.Request{Command: "exec", SQL: sql})
	return err
}

// Query prepares a statement, drains it, and releases it.
func Query(sql string) ([]quarry.Row, error) {
	prep, err := roundTrip(host.Request{Command: "prepare", SQL: sql})
	if err != nil {
		return nil, err
	}
	defer roundTrip(host.Request{Command: "close_stmt", StmtID: prep.StmtID}) //nolint:errcheck
	all, err := roundTrip(host.Request{Command: "all", StmtID: prep.StmtID})
	if err != nil {
		return nil, err
	}
	return all.Rows, nil
}
