package store

import (
	"context"
	"fmt"
)

// WriteFlowRun appends a journal entry.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are silently ignored.
// Other constraint violations (e.g., an unknown status) still return errors.
func (s *Store) WriteFlowRun(ctx context.Context, run FlowRun) error {
	args := run.Args
	if len(args) == 0 {
		args = []byte("{}")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO flow_runs
		(id, flow, args, seq, status, result, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.Flow,
		string(args),
		run.Seq,
		string(run.Status),
		nullable(run.Result),
		nullable(run.Error),
	)
	if err != nil {
		return fmt.Errorf("write flow run: %w", err)
	}

	return nil
}
