package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// RunStatus is the outcome of a flow run.
type RunStatus string

const (
	StatusOK    RunStatus = "ok"
	StatusError RunStatus = "error"
)

// FlowRun is one journal entry.
type FlowRun struct {
	ID     string          `json:"id"`
	Flow   string          `json:"flow"`
	Args   json.RawMessage `json:"args"`
	Seq    int64           `json:"seq"`
	Status RunStatus       `json:"status"`
	Result json.RawMessage `json:"result,omitempty"` // nil when the flow returns nothing
	Error  string          `json:"error,omitempty"`
}

// MarshalArgs encodes flow arguments as a JSON object.
// encoding/json sorts map keys, so equal args encode identically.
// A nil map encodes as {}.
func MarshalArgs(args map[string]any) (json.RawMessage, error) {
	if args == nil {
		return json.RawMessage("{}"), nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("marshal args: %w", err)
	}
	return data, nil
}

// MarshalResult encodes a flow result. A nil result encodes as nil (SQL NULL).
func MarshalResult(result any) (json.RawMessage, error) {
	if result == nil {
		return nil, nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return data, nil
}

// nullable converts empty values to SQL NULL.
func nullable[T ~string | ~[]byte](v T) sql.NullString {
	if len(v) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(v), Valid: true}
}
