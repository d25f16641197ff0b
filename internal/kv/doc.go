// Package kv provides a token → integer value table on top of database/sql.
//
// A Store owns one table with the schema:
//
//	token VARCHAR(64) CHECK (length(token) <= 64), value INT
//
// SQLite does not enforce VARCHAR widths, so the CHECK constraint and the
// Store itself reject tokens longer than MaxTokenLength characters with a
// StorageError wrapping ErrTokenTooLong.
//
// Every operation executes inside a caller-supplied Session. The Session is
// usually the *sql.Tx of the enclosing flow, so durability and isolation are
// decided by whoever opened the transaction. The store itself holds no locks
// and starts no goroutines.
//
// # Statements
//
// Statements are built from positional parameters (see Statement and Param).
// Param is a closed union of Text, Int32 and Int64; any other value is
// rejected with ErrUnsupportedParameterType before a statement is prepared.
// Each prepared statement is closed on every exit path.
//
// # Lookup policy
//
// Get expects exactly one row per token. The zero-row case is reported
// according to the store's Policy:
//
//   - FailFast: StorageError wrapping ErrEmptyResult
//   - ReturnNotFound: NotFoundError (errors.Is(err, ErrNotFound))
//
// More than one row is always a StorageError wrapping ErrMultipleRows.
// The default schema does not enforce uniqueness; WithUniqueKeys adds a
// UNIQUE constraint so Put fails with DuplicateKeyError instead.
package kv
