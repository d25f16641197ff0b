package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/flowdb/internal/flow"
	"github.com/roach88/flowdb/internal/kv"
	"github.com/roach88/flowdb/internal/store"
	"github.com/roach88/flowdb/internal/testutil"
)

// DefaultTable is the token table used when a scenario names none.
const DefaultTable = "crypto_values"

// Harness is the scenario execution engine.
// It runs flows with a deterministic clock and flow IDs.
type Harness struct {
	store  *store.Store
	values *kv.Store
	runner *flow.Runner
	logger *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Deterministic helpers ensure reproducible traces.
//
// Execution flow:
// 1. Create fresh in-memory database and token table
// 2. Execute each step as a flow, checking its expect clause
// 3. Check the journal recorded every step in order
// 4. Evaluate assertions against the final table
//
// The returned error reports a harness failure. Scenario failures are
// reported through Result.Pass and Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests

	values, err := newValues(scenario, logger)
	if err != nil {
		return nil, err
	}

	runner := flow.New(st, values, testutil.NewSequentialIDGenerator(""),
		flow.WithClock(testutil.NewDeterministicClock()),
		flow.WithLogger(logger),
	)

	ctx := context.Background()
	if err := runner.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize runner: %w", err)
	}

	h := &Harness{
		store:  st,
		values: values,
		runner: runner,
		logger: logger,
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		h.executeStep(ctx, i, step, result)
	}

	if err := h.checkJournal(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}

	for _, msg := range h.evaluateAssertions(ctx, scenario.Assertions, result) {
		result.AddError(msg)
	}

	return result, nil
}

func newValues(scenario *Scenario, logger *slog.Logger) (*kv.Store, error) {
	table := scenario.Table
	if table == "" {
		table = DefaultTable
	}

	policy, err := kv.ParsePolicy(scenario.NotFound)
	if err != nil {
		return nil, err
	}

	opts := []kv.Option{kv.WithPolicy(policy), kv.WithLogger(logger)}
	if scenario.UniqueKeys {
		opts = append(opts, kv.WithUniqueKeys())
	}
	if scenario.NormalizeKeys {
		opts = append(opts, kv.WithKeyNormalization(norm.NFC))
	}

	values, err := kv.New(table, opts...)
	if err != nil {
		return nil, fmt.Errorf("invalid scenario table: %w", err)
	}
	return values, nil
}

// stepFlow maps a step onto the flow it runs.
func stepFlow(step Step) (flow.Flow, error) {
	switch step.Action {
	case ActionAdd:
		return flow.AddTokenValue{Token: step.Token, Value: int32(*step.Value)}, nil
	case ActionUpdate:
		return flow.UpdateTokenValue{Token: step.Token, Value: int32(*step.Value)}, nil
	case ActionQuery:
		return flow.QueryTokenValue{Token: step.Token}, nil
	default:
		return nil, fmt.Errorf("unknown action %q", step.Action)
	}
}

// executeStep runs one step, traces it and checks its expect clause.
func (h *Harness) executeStep(ctx context.Context, i int, step Step, result *Result) {
	label := fmt.Sprintf("steps[%d] (%s %q)", i, step.Action, step.Token)

	f, err := stepFlow(step)
	if err != nil {
		result.AddError(fmt.Sprintf("%s: %v", label, err))
		return
	}

	res, ferr := h.runner.Execute(ctx, f)

	event := TraceEvent{
		Seq:    res.Seq,
		Flow:   f.Name(),
		FlowID: res.FlowID,
		Args:   f.Args(),
		Status: StatusOK,
		Result: res.Value,
	}
	if ferr != nil {
		event.Status = StatusError
		event.Error = ErrorKind(ferr)
	}
	result.AddTrace(event)

	h.logger.Info("step completed",
		"step", i,
		"flow", event.Flow,
		"flow_id", event.FlowID,
		"status", event.Status,
	)

	expect := step.Expect
	switch {
	case expect != nil && expect.Error != "":
		if ferr == nil {
			result.AddError(fmt.Sprintf("%s: expected %s error, got success", label, expect.Error))
		} else if event.Error != expect.Error {
			result.AddError(fmt.Sprintf("%s: expected %s error, got %s: %v", label, expect.Error, event.Error, ferr))
		}

	case ferr != nil:
		result.AddError(fmt.Sprintf("%s: unexpected error: %v", label, ferr))

	case expect != nil && expect.Value != nil:
		got, ok := res.Int()
		if !ok {
			result.AddError(fmt.Sprintf("%s: expected value %d, got %v", label, *expect.Value, res.Value))
		} else if got != *expect.Value {
			result.AddError(fmt.Sprintf("%s: expected value %d, got %d", label, *expect.Value, got))
		}
	}
}

// checkJournal verifies every step was journaled in trace order.
func (h *Harness) checkJournal(ctx context.Context, result *Result) error {
	runs, err := h.store.ReadFlowRuns(ctx, store.RunFilter{})
	if err != nil {
		return err
	}

	if len(runs) != len(result.Trace) {
		result.AddError(fmt.Sprintf("journal: expected %d runs, got %d", len(result.Trace), len(runs)))
		return nil
	}

	for i, run := range runs {
		event := result.Trace[i]
		if run.ID != event.FlowID || run.Seq != event.Seq || string(run.Status) != event.Status {
			result.AddError(fmt.Sprintf("journal[%d]: expected %s seq %d %s, got %s seq %d %s",
				i, event.FlowID, event.Seq, event.Status, run.ID, run.Seq, run.Status))
		}
	}
	return nil
}

// evaluateAssertions checks assertions against the final table.
// Returns one message per failed assertion.
func (h *Harness) evaluateAssertions(ctx context.Context, assertions []Assertion, result *Result) []string {
	var failures []string
	db := h.store.DB()

	for i, a := range assertions {
		count, err := h.values.Count(ctx, db, a.Token)
		if err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: count %q: %v", i, a.Token, err))
			continue
		}
		result.State[a.Token] = count

		switch a.Type {
		case AssertRowCount:
			if count != *a.Count {
				failures = append(failures, fmt.Sprintf("assertions[%d]: row_count %q: expected %d, got %d",
					i, a.Token, *a.Count, count))
			}

		case AssertFinalState:
			got, err := h.values.Get(ctx, db, a.Token)
			if err != nil {
				failures = append(failures, fmt.Sprintf("assertions[%d]: final_state %q: expected %d, got error: %v",
					i, a.Token, *a.Value, err))
				continue
			}
			if got != *a.Value {
				failures = append(failures, fmt.Sprintf("assertions[%d]: final_state %q: expected %d, got %d",
					i, a.Token, *a.Value, got))
			}

		default:
			failures = append(failures, fmt.Sprintf("assertions[%d]: unknown assertion type %q", i, a.Type))
		}
	}

	return failures
}
