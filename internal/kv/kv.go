package kv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"unicode/utf8"

	"github.com/mattn/go-sqlite3"
	"golang.org/x/text/unicode/norm"
)

// Policy selects how Get reports a token with no row.
type Policy int

const (
	// FailFast treats a missing row as a broken single-row contract.
	FailFast Policy = iota
	// ReturnNotFound reports a missing row as NotFoundError.
	ReturnNotFound
)

// Policy names as used in configuration and scenarios.
const (
	PolicyNameFailFast       = "fail_fast"
	PolicyNameReturnNotFound = "return_not_found"
)

func (p Policy) String() string {
	switch p {
	case FailFast:
		return PolicyNameFailFast
	case ReturnNotFound:
		return PolicyNameReturnNotFound
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy parses a policy name as written in config files and scenarios.
// The empty string selects ReturnNotFound, the configuration default.
// This differs from New, which defaults to FailFast when WithPolicy is absent.
func ParsePolicy(name string) (Policy, error) {
	switch name {
	case PolicyNameFailFast:
		return FailFast, nil
	case PolicyNameReturnNotFound, "":
		return ReturnNotFound, nil
	default:
		return 0, fmt.Errorf("unknown not-found policy %q: must be %q or %q",
			name, PolicyNameFailFast, PolicyNameReturnNotFound)
	}
}

// MaxTokenLength is the token column width in characters.
const MaxTokenLength = 64

// maxTableName matches the token column width.
const maxTableName = MaxTokenLength

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Store is a token → value table.
//
// Thread-safety: Store is immutable after New and safe for concurrent use.
// Concurrent statements against the same token are isolated only by the
// Sessions callers pass in.
type Store struct {
	table     string
	policy    Policy
	unique    bool
	normalize bool
	form      norm.Form
	logger    *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithPolicy sets the not-found policy for Get. Default: FailFast.
// Configuration defaults to ReturnNotFound instead (see ParsePolicy), so
// callers building a Store from a policy name should pass WithPolicy.
func WithPolicy(p Policy) Option {
	return func(s *Store) {
		s.policy = p
	}
}

// WithUniqueKeys makes EnsureSchema add a UNIQUE index on token, so a second
// Put of the same token fails with DuplicateKeyError.
func WithUniqueKeys() Option {
	return func(s *Store) {
		s.unique = true
	}
}

// WithKeyNormalization normalizes every token with form before binding.
// Canonically equivalent tokens then address the same row.
func WithKeyNormalization(form norm.Form) Option {
	return func(s *Store) {
		s.normalize = true
		s.form = form
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// New creates a Store for the given table.
// Returns ErrInvalidTable unless table is a plain SQL identifier.
func New(table string, opts ...Option) (*Store, error) {
	if len(table) > maxTableName || !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTable, table)
	}

	s := &Store{
		table:  table,
		policy: FailFast,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Table returns the table name.
func (s *Store) Table() string {
	return s.table
}

// Policy returns the not-found policy.
func (s *Store) Policy() Policy {
	return s.policy
}

// EnsureSchema creates the table if it does not exist.
// Idempotent: existing rows are untouched.
func (s *Store) EnsureSchema(ctx context.Context, sess Session) error {
	create := Statement{SQL: fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			token VARCHAR(%d) CHECK (length(token) <= %d),
			value INT
		)`, s.table, MaxTokenLength, MaxTokenLength)}

	if _, err := execStatement(ctx, sess, create); err != nil {
		return s.fail("ensure_schema", "", err)
	}

	if s.unique {
		// Also upgrades tables created before unique mode was enabled;
		// fails if duplicate tokens already exist.
		index := Statement{SQL: fmt.Sprintf(
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_%s_token ON %s(token)`,
			s.table, s.table,
		)}
		if _, err := execStatement(ctx, sess, index); err != nil {
			return s.fail("ensure_schema", "", err)
		}
	}

	s.logger.Info("table ready", "table", s.table, "unique_keys", s.unique)
	return nil
}

// Put inserts one (token, value) row.
//
// Without unique keys there is no existence check: repeated calls with the
// same token add duplicate rows.
func (s *Store) Put(ctx context.Context, sess Session, token string, value int32) error {
	token, err := s.key(token)
	if err != nil {
		return s.fail("put", token, err)
	}
	st := Statement{
		SQL:    fmt.Sprintf(`INSERT INTO %s (token, value) VALUES (?, ?)`, s.table),
		Params: map[int]Param{1: Text(token), 2: Int32(value)},
	}

	if _, err = execStatement(ctx, sess, st); err != nil {
		if isUniqueViolation(err) {
			s.logger.Error("token already present", "table", s.table, "token", token, "error", err)
			return &DuplicateKeyError{Token: token, Err: err}
		}
		return s.fail("put", token, err)
	}

	s.logger.Info("token added", "table", s.table, "token", token)
	return nil
}

// Update sets value on every row matching token.
// Matching zero rows is not an error, and no row is created.
func (s *Store) Update(ctx context.Context, sess Session, token string, value int32) error {
	token, err := s.key(token)
	if err != nil {
		return s.fail("update", token, err)
	}
	st := Statement{
		SQL:    fmt.Sprintf(`UPDATE %s SET value = ? WHERE token = ?`, s.table),
		Params: map[int]Param{1: Int32(value), 2: Text(token)},
	}

	res, err := execStatement(ctx, sess, st)
	if err != nil {
		return s.fail("update", token, err)
	}

	if n, err := res.RowsAffected(); err == nil {
		s.logger.Debug("update applied", "table", s.table, "token", token, "rows", n)
	}
	s.logger.Info("token updated", "table", s.table, "token", token)
	return nil
}

// Get returns the value stored for token.
//
// Exactly one row must match. Zero rows are reported per the store's Policy;
// several rows return a StorageError wrapping ErrMultipleRows.
func (s *Store) Get(ctx context.Context, sess Session, token string) (int, error) {
	token, err := s.key(token)
	if err != nil {
		return 0, s.fail("get", token, err)
	}
	st := Statement{
		SQL:    fmt.Sprintf(`SELECT value FROM %s WHERE token = ?`, s.table),
		Params: map[int]Param{1: Text(token)},
	}

	values, err := queryInts(ctx, sess, st)
	if err != nil {
		return 0, s.fail("get", token, err)
	}

	switch {
	case len(values) == 0 && s.policy == ReturnNotFound:
		err := &NotFoundError{Token: token}
		s.logger.Error("token lookup failed", "table", s.table, "token", token, "error", err)
		return 0, err
	case len(values) == 0:
		return 0, s.fail("get", token, ErrEmptyResult)
	case len(values) > 1:
		return 0, s.fail("get", token, fmt.Errorf("%w (%d rows)", ErrMultipleRows, len(values)))
	}

	s.logger.Info("token read", "table", s.table, "token", token)
	return values[0], nil
}

// Count returns the number of rows stored for token.
func (s *Store) Count(ctx context.Context, sess Session, token string) (int, error) {
	token, err := s.key(token)
	if err != nil {
		return 0, s.fail("count", token, err)
	}
	st := Statement{
		SQL:    fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE token = ?`, s.table),
		Params: map[int]Param{1: Text(token)},
	}

	values, err := queryInts(ctx, sess, st)
	if err != nil {
		return 0, s.fail("count", token, err)
	}
	if len(values) != 1 {
		return 0, s.fail("count", token, ErrEmptyResult)
	}
	return values[0], nil
}

// key applies key normalization if configured and checks the column width.
// Tables created by older versions lack the CHECK constraint, so the width
// is enforced here as well.
func (s *Store) key(token string) (string, error) {
	if s.normalize {
		token = s.form.String(token)
	}
	if n := utf8.RuneCountInString(token); n > MaxTokenLength {
		return token, fmt.Errorf("%w: %d characters", ErrTokenTooLong, n)
	}
	return token, nil
}

// fail logs err and wraps it in a StorageError.
// Parameter-binding errors are returned as is so they stay distinguishable.
func (s *Store) fail(op, token string, err error) error {
	s.logger.Error("statement failed", "op", op, "table", s.table, "token", token, "error", err)
	if errors.Is(err, ErrUnsupportedParameterType) || errors.Is(err, ErrParameterIndex) {
		return err
	}
	return &StorageError{Op: op, Table: s.table, Err: err}
}

// isUniqueViolation reports whether err is a SQLite UNIQUE or PRIMARY KEY violation.
func isUniqueViolation(err error) bool {
	var sqlErr sqlite3.Error
	if !errors.As(err, &sqlErr) {
		return false
	}
	return sqlErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqlErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
