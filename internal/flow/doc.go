// Package flow runs the token value flows against a store.
//
// A flow is one unit of work started by an orchestration layer (the CLI, the
// scenario harness, or any embedding program): AddTokenValue,
// UpdateTokenValue or QueryTokenValue. The Runner gives each flow:
//
//   - a flow ID from an IDGenerator (UUIDv7 in production)
//   - a seq number from a monotonic logical clock
//   - its own database transaction, committed on success and rolled back
//     on failure
//
// and then appends a journal entry (store.FlowRun) recording the outcome.
//
// ARCHITECTURE:
//
// Flows are either executed synchronously with Runner.Execute, or enqueued
// with Runner.Start and executed by the single-writer Runner.Run loop. The
// loop drains its FIFO queue one flow at a time, so flows started from many
// goroutines are still applied in a single, serial order.
//
// The Runner is constructed once at process start and passed to whoever
// needs it. There is no global registry.
package flow
