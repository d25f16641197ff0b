package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

// RunFilter narrows ReadFlowRuns.
type RunFilter struct {
	// Flow restricts results to one flow name. Empty matches all.
	Flow string

	// Limit caps the number of results. Zero means no limit.
	Limit int
}

// ReadFlowRun retrieves a single journal entry by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadFlowRun(ctx context.Context, id string) (FlowRun, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, flow, args, seq, status, result, error
		FROM flow_runs
		WHERE id = ?
	`, id)

	return scanFlowRun(row)
}

// ReadFlowRuns returns journal entries ordered by seq ASC, id ASC.
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) ReadFlowRuns(ctx context.Context, filter RunFilter) ([]FlowRun, error) {
	var (
		where []string
		args  []any
	)
	if filter.Flow != "" {
		where = append(where, "flow = ?")
		args = append(args, filter.Flow)
	}

	query := `SELECT id, flow, args, seq, status, result, error FROM flow_runs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq ASC, id COLLATE BINARY ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query flow runs: %w", err)
	}
	defer rows.Close()

	runs := []FlowRun{}
	for rows.Next() {
		run, err := scanFlowRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate flow runs: %w", err)
	}

	return runs, nil
}

// LastSeq returns the highest journal seq, or 0 for an empty journal.
// The runner resumes its clock from here.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM flow_runs`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("read last seq: %w", err)
	}
	return seq.Int64, nil
}

// scanner is implemented by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanFlowRun scans a row into a FlowRun.
// sql.ErrNoRows is returned unwrapped so callers can compare against it.
func scanFlowRun(row scanner) (FlowRun, error) {
	var (
		run    FlowRun
		args   string
		status string
		result sql.NullString
		errMsg sql.NullString
	)

	if err := row.Scan(&run.ID, &run.Flow, &args, &run.Seq, &status, &result, &errMsg); err != nil {
		if err == sql.ErrNoRows {
			return FlowRun{}, err
		}
		return FlowRun{}, fmt.Errorf("scan flow run: %w", err)
	}

	run.Args = json.RawMessage(args)
	run.Status = RunStatus(status)
	if result.Valid {
		run.Result = json.RawMessage(result.String)
	}
	run.Error = errMsg.String

	return run, nil
}
