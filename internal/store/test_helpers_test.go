package store

import (
	"encoding/json"
	"path/filepath"
	"testing"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun creates a successful journal entry with minimal fields.
func createTestRun(id, flow string, seq int64) FlowRun {
	return FlowRun{
		ID:     id,
		Flow:   flow,
		Args:   json.RawMessage(`{"token":"bitcoin"}`),
		Seq:    seq,
		Status: StatusOK,
	}
}
