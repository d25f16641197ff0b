package flow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/flowdb/internal/kv"
	"github.com/roach88/flowdb/internal/store"
)

// Result is the outcome of a successful flow run.
type Result struct {
	FlowID string
	Seq    int64
	Value  any // nil for flows with no result
}

// Int returns Value as an int, for QueryTokenValue results.
func (r Result) Int() (int, bool) {
	v, ok := r.Value.(int)
	return v, ok
}

// Runner executes flows against one store and one token table.
//
// Thread-safety model:
//   - Start(), Stop(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
//   - Execute(): serializes on the store's single connection; do not call it
//     from inside a running flow
type Runner struct {
	store  *store.Store
	values *kv.Store
	clock  Sequencer
	ids    IDGenerator
	queue  *jobQueue
	logger *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithClock replaces the default clock. Used by the harness for determinism.
func WithClock(c Sequencer) Option {
	return func(r *Runner) {
		r.clock = c
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = l
	}
}

// New creates a Runner. A nil ids defaults to UUIDv7Generator.
func New(st *store.Store, values *kv.Store, ids IDGenerator, opts ...Option) *Runner {
	if ids == nil {
		ids = UUIDv7Generator{}
	}

	r := &Runner{
		store:  st,
		values: values,
		clock:  NewClock(),
		ids:    ids,
		queue:  newJobQueue(),
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Init creates the token table and resumes the clock from the journal.
// Call once before running flows. Safe to call again.
func (r *Runner) Init(ctx context.Context) error {
	tx, err := r.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback() // No-op if committed

	if err := r.values.EnsureSchema(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}

	last, err := r.store.LastSeq(ctx)
	if err != nil {
		return err
	}
	r.clock.AdvanceTo(last)

	r.logger.Info("flow runner ready",
		"table", r.values.Table(),
		"not_found", r.values.Policy().String(),
		"seq", r.clock.Current(),
	)
	return nil
}

// Values returns the token table the runner operates on.
func (r *Runner) Values() *kv.Store {
	return r.values
}

// Execute runs f synchronously in its own transaction and journals the outcome.
//
// The flow's error is returned as is, so kv errors stay matchable with
// errors.Is and errors.As. A journal write failure after a committed flow is
// returned as ErrJournalWrite together with the committed Result; after a
// failed flow it is only logged.
func (r *Runner) Execute(ctx context.Context, f Flow) (Result, error) {
	id := r.ids.Generate()
	seq := r.clock.Next()
	logger := r.logger.With("flow", f.Name(), "flow_id", id, "seq", seq)

	logger.Debug("flow starting", "args", f.Args())

	value, err := r.call(ctx, f, id, seq, logger)

	if jerr := r.journal(ctx, f, id, seq, value, err); jerr != nil {
		if err == nil {
			logger.Error("journal write failed", "error", jerr)
			return Result{FlowID: id, Seq: seq, Value: value}, fmt.Errorf("%w: %w", ErrJournalWrite, jerr)
		}
		logger.Error("journal write failed", "error", jerr, "flow_error", err)
	}

	if err != nil {
		logger.Error("flow failed", "error", err)
		return Result{FlowID: id, Seq: seq}, err
	}

	logger.Info("flow completed")
	return Result{FlowID: id, Seq: seq, Value: value}, nil
}

// call runs the flow inside a transaction.
func (r *Runner) call(ctx context.Context, f Flow, id string, seq int64, logger *slog.Logger) (any, error) {
	tx, err := r.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() // No-op if committed

	fc := &Context{
		FlowID:  id,
		Seq:     seq,
		Session: tx,
		Values:  r.values,
		Logger:  logger,
	}

	value, err := f.Call(ctx, fc)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit flow %s: %w", id, err)
	}
	return value, nil
}

// journal appends the run's outcome to the flow journal.
func (r *Runner) journal(ctx context.Context, f Flow, id string, seq int64, value any, flowErr error) error {
	args, err := store.MarshalArgs(f.Args())
	if err != nil {
		return err
	}

	run := store.FlowRun{
		ID:     id,
		Flow:   f.Name(),
		Args:   args,
		Seq:    seq,
		Status: store.StatusOK,
	}

	if flowErr != nil {
		run.Status = store.StatusError
		run.Error = flowErr.Error()
	} else {
		result, err := store.MarshalResult(value)
		if err != nil {
			return err
		}
		run.Result = result
	}

	return r.store.WriteFlowRun(ctx, run)
}

// Start enqueues f for the Run loop and returns its Future.
// Returns ErrRunnerStopped once the runner is stopped.
func (r *Runner) Start(f Flow) (*Future, error) {
	fut := newFuture()
	if !r.queue.Enqueue(job{flow: f, future: fut}) {
		return nil, ErrRunnerStopped
	}
	return fut, nil
}

// Run is the single-writer loop executing started flows in FIFO order.
//
// CRITICAL: Must be called from exactly ONE goroutine.
//
// Run returns nil after Stop once the queue is drained, or ctx.Err() when ctx
// ends. On cancellation, flows still queued are not run: they complete with
// ctx.Err() and take no seq and no journal entry.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("flow runner starting")

	for {
		if ctx.Err() != nil {
			return r.cancel(ctx)
		}

		if j, ok := r.queue.TryDequeue(); ok {
			result, err := r.Execute(ctx, j.flow)
			j.future.complete(result, err)
			continue
		}

		select {
		case <-ctx.Done():
			return r.cancel(ctx)

		case <-r.queue.Wait():
			// The signal channel closes when the queue is closed,
			// which will cause this case to fire immediately
			if r.queue.Len() == 0 && r.queue.Closed() {
				r.logger.Info("flow runner stopping: queue closed")
				return nil
			}
		}
	}
}

// cancel fails every queued flow with ctx.Err().
func (r *Runner) cancel(ctx context.Context) error {
	pending := r.queue.Drain()
	r.logger.Info("flow runner stopping: context cancelled", "pending", len(pending))
	for _, j := range pending {
		j.future.complete(Result{}, ctx.Err())
	}
	return ctx.Err()
}

// Stop closes the queue. Run returns once queued flows are done.
func (r *Runner) Stop() {
	r.queue.Close()
}
