package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/flowdb/internal/flow"
)

// InitResult is the payload of the init command.
type InitResult struct {
	Database string `json:"database"`
	Table    string `json:"table"`
	NotFound string `json:"not_found"`
	Seq      int64  `json:"seq"`
}

// ValueResult is the payload of the add, update and query commands.
type ValueResult struct {
	FlowID string `json:"flow_id,omitempty"`
	Seq    int64  `json:"seq,omitempty"`
	Token  string `json:"token"`
	Value  *int   `json:"value,omitempty"`
	Count  *int   `json:"count,omitempty"`
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the database and token table",
		Long: `Create the database, the flow journal and the token table.

Safe to run on an existing database.

Examples:
  flowdb init --db ./flowdb.db
  flowdb init --config ./flowdb.yaml`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			rt, err := openRuntime(cmd.Context(), rootOpts, f)
			if err != nil {
				return err
			}
			defer rt.Close()

			last, err := rt.store.LastSeq(cmd.Context())
			if err != nil {
				return f.Fail(CodeStorage, ExitCommandError, "failed to read journal", err)
			}

			values := rt.runner.Values()
			return f.Print(InitResult{
				Database: rt.cfg.Database,
				Table:    values.Table(),
				NotFound: values.Policy().String(),
				Seq:      last,
			}, fmt.Sprintf("Initialized %s (table %s)", rt.cfg.Database, values.Table()))
		},
	}
}

// NewAddCommand creates the add command.
func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add <token> <value>",
		Short: "Insert a token with its value",
		Long: `Run the AddTokenValue flow.

Without unique_keys a token added twice has two rows, and later queries
of it fail.

Example:
  flowdb add bitcoin 7000`,
		Args: exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWrite(rootOpts, cmd, args, func(token string, value int32) flow.Flow {
				return flow.AddTokenValue{Token: token, Value: value}
			}, "added")
		},
	}
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "update <token> <value>",
		Short: "Set the value of a token",
		Long: `Run the UpdateTokenValue flow.

Updating a token that is not present succeeds and changes nothing.

Example:
  flowdb update bitcoin 8000`,
		Args: exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWrite(rootOpts, cmd, args, func(token string, value int32) flow.Flow {
				return flow.UpdateTokenValue{Token: token, Value: value}
			}, "updated")
		},
	}
}

// parseValue parses a 32-bit integer value argument.
func parseValue(s string) (int32, error) {
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("value %q is not a 32-bit integer", s)
	}
	return int32(v), nil
}

func runWrite(rootOpts *RootOptions, cmd *cobra.Command, args []string, build func(string, int32) flow.Flow, verb string) error {
	f := newFormatter(rootOpts, cmd)

	token := args[0]
	value, err := parseValue(args[1])
	if err != nil {
		return f.Fail(CodeArgs, ExitCommandError, "invalid value", err)
	}

	rt, err := openRuntime(cmd.Context(), rootOpts, f)
	if err != nil {
		return err
	}
	defer rt.Close()

	fl := build(token, value)
	res, err := rt.runner.Execute(cmd.Context(), fl)
	if err != nil {
		code, exit := classify(err)
		return f.Fail(code, exit, fmt.Sprintf("%s failed", fl.Name()), err)
	}

	f.VerboseLog("flow %s seq %d", res.FlowID, res.Seq)
	v := int(value)
	return f.Print(ValueResult{
		FlowID: res.FlowID,
		Seq:    res.Seq,
		Token:  token,
		Value:  &v,
	}, fmt.Sprintf("%s %s = %d", verb, token, value))
}

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Count bool
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <token>",
		Short: "Read the value of a token",
		Long: `Run the QueryTokenValue flow and print the value.

With --count, print the number of rows stored for the token instead.
Counting is a plain read and is not journaled.

Exit codes:
  0 - Value found
  1 - Token not present (return_not_found policy)
  2 - Command or storage error, including duplicate rows

Examples:
  flowdb query bitcoin
  flowdb query bitcoin --count
  flowdb query bitcoin --format json`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Count, "count", false, "print the number of rows for the token")

	return cmd
}

func runQuery(opts *QueryOptions, token string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	rt, err := openRuntime(cmd.Context(), opts.RootOptions, f)
	if err != nil {
		return err
	}
	defer rt.Close()

	if opts.Count {
		n, err := rt.runner.Values().Count(cmd.Context(), rt.store.DB(), token)
		if err != nil {
			return f.Fail(CodeStorage, ExitCommandError, "count failed", err)
		}
		return f.Print(ValueResult{Token: token, Count: &n}, strconv.Itoa(n))
	}

	fl := flow.QueryTokenValue{Token: token}
	res, err := rt.runner.Execute(cmd.Context(), fl)
	if err != nil {
		code, exit := classify(err)
		return f.Fail(code, exit, fmt.Sprintf("%s failed", fl.Name()), err)
	}

	v, ok := res.Int()
	if !ok {
		return f.Fail(CodeStorage, ExitCommandError, "query returned no value", nil)
	}

	f.VerboseLog("flow %s seq %d", res.FlowID, res.Seq)
	return f.Print(ValueResult{
		FlowID: res.FlowID,
		Seq:    res.Seq,
		Token:  token,
		Value:  &v,
	}, strconv.Itoa(v))
}
