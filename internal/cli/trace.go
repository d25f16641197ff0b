package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/flowdb/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Flow  string // optional - filter to one flow name
	Limit int    // optional - maximum runs, 0 for all
}

// TraceEvent represents a single journaled flow run.
type TraceEvent struct {
	Seq    int64           `json:"seq"`
	ID     string          `json:"id"`
	Flow   string          `json:"flow"`
	Args   json.RawMessage `json:"args"`
	Status string          `json:"status"` // "ok" or "error"
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Timeline []TraceEvent `json:"timeline"`
	Stats    TraceStats   `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	Total  int `json:"total"`
	OK     int `json:"ok"`
	Errors int `json:"errors"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the flow journal",
		Long: `Show journaled flow runs in seq order.

Every add, update and query run is journaled with its arguments and
outcome, including failed runs.

Examples:
  flowdb trace --db ./flowdb.db
  flowdb trace --db ./flowdb.db --flow AddTokenValue --limit 10
  flowdb trace --db ./flowdb.db --format json`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Flow, "flow", "", "filter to one flow name (e.g. AddTokenValue)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of runs (0 for all)")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	if opts.Limit < 0 {
		return f.Fail(CodeArgs, ExitCommandError, "invalid --limit", fmt.Errorf("must be non-negative, got %d", opts.Limit))
	}

	rt, err := openRuntime(cmd.Context(), opts.RootOptions, f)
	if err != nil {
		return err
	}
	defer rt.Close()

	runs, err := rt.store.ReadFlowRuns(cmd.Context(), store.RunFilter{Flow: opts.Flow, Limit: opts.Limit})
	if err != nil {
		return f.Fail(CodeStorage, ExitCommandError, "failed to read journal", err)
	}

	result := buildTrace(runs)

	if opts.Format == "json" {
		return outputTraceJSON(cmd, result)
	}
	return outputTraceText(cmd, result, opts.Verbose)
}

// buildTrace converts journal rows to trace events.
func buildTrace(runs []store.FlowRun) TraceResult {
	result := TraceResult{Timeline: make([]TraceEvent, 0, len(runs))}

	for _, run := range runs {
		result.Timeline = append(result.Timeline, TraceEvent{
			Seq:    run.Seq,
			ID:     run.ID,
			Flow:   run.Flow,
			Args:   run.Args,
			Status: string(run.Status),
			Result: run.Result,
			Error:  run.Error,
		})

		if run.Status == store.StatusOK {
			result.Stats.OK++
		} else {
			result.Stats.Errors++
		}
	}
	result.Stats.Total = len(result.Timeline)

	return result
}

// outputTraceJSON outputs the trace result as JSON.
func outputTraceJSON(cmd *cobra.Command, result TraceResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

// outputTraceText outputs the trace result as text.
func outputTraceText(cmd *cobra.Command, result TraceResult, verbose bool) error {
	w := cmd.OutOrStdout()

	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "No flow runs found.")
		return nil
	}

	fmt.Fprintln(w, "=== Timeline ===")
	for _, event := range result.Timeline {
		formatTraceEvent(w, event, verbose)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total:  %d\n", result.Stats.Total)
	fmt.Fprintf(w, "  OK:     %d\n", result.Stats.OK)
	fmt.Fprintf(w, "  Errors: %d\n", result.Stats.Errors)

	return nil
}

// formatTraceEvent formats a single trace event for text output.
func formatTraceEvent(w io.Writer, event TraceEvent, verbose bool) {
	fmt.Fprintf(w, "  [%d] %s %s", event.Seq, event.Flow, formatArgs(decodeObject(event.Args)))
	switch {
	case event.Status != string(store.StatusOK):
		fmt.Fprintf(w, " -> error: %s\n", event.Error)
	case len(event.Result) > 0:
		fmt.Fprintf(w, " -> %s\n", event.Result)
	default:
		fmt.Fprintln(w, " -> ok")
	}
	if verbose {
		fmt.Fprintf(w, "       ID: %s\n", truncateID(event.ID))
	}
}

// decodeObject decodes journaled args, keeping numbers exact.
func decodeObject(raw json.RawMessage) map[string]any {
	var obj map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&obj); err != nil {
		return nil
	}
	return obj
}

// formatArgs formats a map of args for display.
// Uses sorted keys to ensure deterministic output.
func formatArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}

	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, args[k]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}
