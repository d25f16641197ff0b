package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/flowdb/internal/config"
	"github.com/roach88/flowdb/internal/flow"
	"github.com/roach88/flowdb/internal/store"
)

// runtime is the opened database and flow runner shared by the commands.
type runtime struct {
	cfg    config.Config
	store  *store.Store
	runner *flow.Runner
	logger *slog.Logger
}

// newFormatter builds the output formatter for cmd.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(opts *RootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return config.Config{}, err
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
		if err := cfg.Validate(); err != nil {
			return config.Config{}, err
		}
	}
	return cfg, nil
}

// openRuntime loads config, opens the database and initializes the runner.
// Failures are reported through f. Callers must Close the runtime.
func openRuntime(ctx context.Context, opts *RootOptions, f *OutputFormatter) (*runtime, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, f.Fail(CodeConfig, ExitCommandError, "failed to load config", err)
	}

	logger, err := cfg.NewLogger(f.GetErrWriter(), opts.Verbose)
	if err != nil {
		return nil, f.Fail(CodeConfig, ExitCommandError, "failed to configure logging", err)
	}

	values, err := cfg.NewStore(logger)
	if err != nil {
		return nil, f.Fail(CodeConfig, ExitCommandError, "invalid table configuration", err)
	}

	logger.Debug("opening database", "path", cfg.Database)
	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, f.Fail(CodeStorage, ExitCommandError, "failed to open database", err)
	}

	runner := flow.New(st, values, nil, flow.WithLogger(logger))
	if err := runner.Init(ctx); err != nil {
		st.Close()
		return nil, f.Fail(CodeStorage, ExitCommandError, "failed to initialize database", err)
	}

	return &runtime{cfg: cfg, store: st, runner: runner, logger: logger}, nil
}

// Close closes the database.
func (rt *runtime) Close() {
	if err := rt.store.Close(); err != nil {
		rt.logger.Error("error closing database", "error", err)
	}
}
