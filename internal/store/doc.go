// Package store provides the SQLite database flowdb runs on.
//
// The store owns the database lifecycle (open, pragmas, schema, migrations)
// and the flow journal: an append-only record of every flow the runner
// executed, ordered by a logical sequence number.
//
// Token tables are not defined here. They are created by kv.Store.EnsureSchema
// inside the caller's transaction, so one database can hold several tables.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// # Journal ordering
//
// Every read orders by seq ASC, id ASC COLLATE BINARY so results are stable
// across runs.
package store
