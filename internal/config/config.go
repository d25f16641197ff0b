// Package config loads flowdb configuration.
//
// Configuration is a YAML file decoded strictly (unknown fields are errors)
// over the defaults, then validated against the embedded CUE schema
// (schema.cue). Command-line flags override file values; call Validate again
// after applying overrides.
//
// Example:
//
//	database: /var/lib/flowdb/node.db
//	table: crypto_values
//	not_found: return_not_found
//	unique_keys: true
//	log:
//	  level: debug
//	  format: json
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/roach88/flowdb/internal/kv"
)

//go:embed schema.cue
var schemaCUE string

// Defaults.
const (
	DefaultDatabase  = "flowdb.db"
	DefaultTable     = "crypto_values"
	DefaultNotFound  = kv.PolicyNameReturnNotFound
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// Config is the flowdb configuration.
type Config struct {
	// Database is the SQLite database path.
	Database string `yaml:"database" json:"database"`

	// Table is the token table name.
	Table string `yaml:"table" json:"table"`

	// NotFound is the lookup policy: "fail_fast" or "return_not_found".
	NotFound string `yaml:"not_found" json:"not_found"`

	// UniqueKeys adds a UNIQUE index on token.
	UniqueKeys bool `yaml:"unique_keys" json:"unique_keys"`

	// NormalizeKeys applies Unicode NFC to tokens before binding.
	NormalizeKeys bool `yaml:"normalize_keys" json:"normalize_keys"`

	Log LogConfig `yaml:"log" json:"log"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Database: DefaultDatabase,
		Table:    DefaultTable,
		NotFound: DefaultNotFound,
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// Load reads the YAML file at path over the defaults and validates it.
// An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: failed to read file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()

	// Strict decoding catches typos like "uniqe_keys:"
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("config: failed to parse YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration against the CUE schema.
func (c Config) Validate() error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("config: compile schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	value := ctx.Encode(c)
	if err := value.Err(); err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}

	if err := def.Unify(value).Validate(cue.Concrete(true)); err != nil {
		return &ValidationError{Details: cueerrors.Details(err, nil), Err: err}
	}
	return nil
}

// ValidationError reports a configuration that does not satisfy the schema.
type ValidationError struct {
	Details string
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: invalid configuration: %v", e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Policy returns the parsed not-found policy.
func (c Config) Policy() (kv.Policy, error) {
	return kv.ParsePolicy(c.NotFound)
}

// StoreOptions maps the configuration onto kv options.
func (c Config) StoreOptions(logger *slog.Logger) ([]kv.Option, error) {
	policy, err := c.Policy()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	opts := []kv.Option{kv.WithPolicy(policy)}
	if c.UniqueKeys {
		opts = append(opts, kv.WithUniqueKeys())
	}
	if c.NormalizeKeys {
		opts = append(opts, kv.WithKeyNormalization(norm.NFC))
	}
	if logger != nil {
		opts = append(opts, kv.WithLogger(logger))
	}
	return opts, nil
}

// NewStore builds the token table described by the configuration.
func (c Config) NewStore(logger *slog.Logger) (*kv.Store, error) {
	opts, err := c.StoreOptions(logger)
	if err != nil {
		return nil, err
	}
	return kv.New(c.Table, opts...)
}

// ParseLevel parses a log level name.
func ParseLevel(name string) (slog.Level, error) {
	switch name {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("config: unknown log level %q", name)
	}
}

// NewLogger builds a logger writing to w. verbose forces debug level.
func (c Config) NewLogger(w io.Writer, verbose bool) (*slog.Logger, error) {
	level, err := ParseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch c.Log.Format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "text", "":
		handler = slog.NewTextHandler(w, opts)
	default:
		return nil, fmt.Errorf("config: unknown log format %q", c.Log.Format)
	}
	return slog.New(handler), nil
}
