package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/flowdb/internal/flow"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
}

// BatchResult is the outcome of one batch line.
type BatchResult struct {
	Line   int    `json:"line"`
	Flow   string `json:"flow"`
	Token  string `json:"token"`
	FlowID string `json:"flow_id,omitempty"`
	Seq    int64  `json:"seq,omitempty"`
	Value  *int   `json:"value,omitempty"`
	Error  string `json:"error,omitempty"`
	Code   string `json:"code,omitempty"`
}

// BatchSummary is the payload of the run command.
type BatchSummary struct {
	Results []BatchResult `json:"results"`
	OK      int           `json:"ok"`
	Failed  int           `json:"failed"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run [batch-file]",
		Short: "Run a batch of flows through the runner loop",
		Long: `Run a batch of flows in order through the single-writer runner loop.

The batch is read from the file, or from stdin when no file is given.
One flow per line; blank lines and lines starting with # are ignored:

  add <token> <value>
  update <token> <value>
  query <token>

Each flow runs in its own transaction, so a failed line does not undo
earlier lines. Ctrl-C cancels flows that have not started yet.

Exit codes:
  0 - Every flow succeeded
  1 - One or more flows failed
  2 - Command error (unreadable or malformed batch, bad config, etc.)

Example:
  flowdb run --db ./flowdb.db batch.txt
  printf 'add bitcoin 7000\nquery bitcoin\n' | flowdb run --db ./flowdb.db`,
		Args: maximumArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(opts, args, cmd)
		},
	}

	return cmd
}

// batchLine is one parsed batch line.
type batchLine struct {
	line  int
	token string
	flow  flow.Flow
}

// parseBatch parses batch lines into flows.
func parseBatch(r io.Reader) ([]batchLine, error) {
	var lines []batchLine

	scanner := bufio.NewScanner(r)
	n := 0
	for scanner.Scan() {
		n++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		fields := strings.Fields(text)
		action, rest := fields[0], fields[1:]

		var fl flow.Flow
		switch action {
		case "add", "update":
			if len(rest) != 2 {
				return nil, fmt.Errorf("line %d: %s needs <token> <value>", n, action)
			}
			value, err := parseValue(rest[1])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", n, err)
			}
			if action == "add" {
				fl = flow.AddTokenValue{Token: rest[0], Value: value}
			} else {
				fl = flow.UpdateTokenValue{Token: rest[0], Value: value}
			}
		case "query":
			if len(rest) != 1 {
				return nil, fmt.Errorf("line %d: query needs <token>", n)
			}
			fl = flow.QueryTokenValue{Token: rest[0]}
		default:
			return nil, fmt.Errorf("line %d: unknown action %q", n, action)
		}

		lines = append(lines, batchLine{line: n, token: rest[0], flow: fl})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return lines, nil
}

func runBatch(opts *RunOptions, args []string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	in := cmd.InOrStdin()
	if len(args) == 1 {
		file, err := os.Open(args[0])
		if err != nil {
			return f.Fail(CodeArgs, ExitCommandError, "failed to open batch file", err)
		}
		defer file.Close()
		in = file
	}

	lines, err := parseBatch(in)
	if err != nil {
		return f.Fail(CodeArgs, ExitCommandError, "invalid batch", err)
	}

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := openRuntime(ctx, opts.RootOptions, f)
	if err != nil {
		return err
	}
	defer rt.Close()

	runErr := make(chan error, 1)
	go func() {
		runErr <- rt.runner.Run(ctx)
	}()

	futures := make([]*flow.Future, len(lines))
	for i, l := range lines {
		fut, err := rt.runner.Start(l.flow)
		if err != nil {
			rt.runner.Stop()
			<-runErr
			return f.Fail(CodeStorage, ExitCommandError, "failed to start flow", err)
		}
		futures[i] = fut
	}
	rt.runner.Stop()

	summary := BatchSummary{Results: make([]BatchResult, 0, len(lines))}
	for i, l := range lines {
		res, err := futures[i].Get(context.Background())

		br := BatchResult{
			Line:   l.line,
			Flow:   l.flow.Name(),
			Token:  l.token,
			FlowID: res.FlowID,
			Seq:    res.Seq,
		}
		if err != nil {
			br.Error = err.Error()
			br.Code, _ = classify(err)
			summary.Failed++
		} else {
			if v, ok := res.Int(); ok {
				br.Value = &v
			}
			summary.OK++
		}
		summary.Results = append(summary.Results, br)
	}

	if err := <-runErr; err != nil {
		rt.logger.Info("flow runner cancelled", "error", err)
	}

	if opts.Format == "json" {
		if err := f.Success(summary); err != nil {
			return err
		}
	} else {
		outputBatchText(cmd.OutOrStdout(), summary)
	}

	if summary.Failed > 0 {
		exitErr := NewExitError(ExitFailure, fmt.Sprintf("%d flow(s) failed", summary.Failed))
		exitErr.Reported = true
		return exitErr
	}
	return nil
}

// outputBatchText outputs batch results as text.
func outputBatchText(w io.Writer, summary BatchSummary) {
	for _, r := range summary.Results {
		switch {
		case r.Error != "":
			fmt.Fprintf(w, "  line %d: %s %s -> error [%s]: %s\n", r.Line, r.Flow, r.Token, r.Code, r.Error)
		case r.Value != nil:
			fmt.Fprintf(w, "  line %d: %s %s -> %d\n", r.Line, r.Flow, r.Token, *r.Value)
		default:
			fmt.Fprintf(w, "  line %d: %s %s -> ok\n", r.Line, r.Flow, r.Token)
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Batch Summary: %d ok, %d failed\n", summary.OK, summary.Failed)
}
