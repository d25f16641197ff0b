package harness

import (
	"errors"

	"github.com/roach88/flowdb/internal/kv"
)

// Error kinds reported in traces and matched by expect clauses.
const (
	ErrorNotFound     = "not_found"
	ErrorDuplicateKey = "duplicate_key"
	ErrorStorage      = "storage"
	ErrorOther        = "error"
)

// Trace event statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// ErrorKind classifies a flow error for traces and expect clauses.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, kv.ErrNotFound):
		return ErrorNotFound
	case errors.Is(err, kv.ErrDuplicateKey):
		return ErrorDuplicateKey
	case kv.IsStorageError(err):
		return ErrorStorage
	default:
		return ErrorOther
	}
}

func validErrorKind(kind string) bool {
	switch kind {
	case ErrorNotFound, ErrorDuplicateKey, ErrorStorage, ErrorOther:
		return true
	}
	return false
}

// TraceEvent records one executed step.
type TraceEvent struct {
	Seq    int64          `json:"seq"`
	Flow   string         `json:"flow"`
	FlowID string         `json:"flow_id"`
	Args   map[string]any `json:"args"`
	Status string         `json:"status"` // "ok" or "error"
	Result any            `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"` // error kind
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall scenario success.
	// True if every expect clause and assertion matched.
	Pass bool `json:"pass"`

	// Trace contains one event per step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State maps each asserted token to its row count.
	State map[string]int `json:"state,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  make(map[string]int),
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a trace event.
func (r *Result) AddTrace(event TraceEvent) {
	r.Trace = append(r.Trace, event)
}
