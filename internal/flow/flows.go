package flow

import (
	"context"
	"log/slog"

	"github.com/roach88/flowdb/internal/kv"
)

// Flow names as recorded in the journal.
const (
	NameAddTokenValue    = "AddTokenValue"
	NameUpdateTokenValue = "UpdateTokenValue"
	NameQueryTokenValue  = "QueryTokenValue"
)

// Context is what a flow sees while it runs.
type Context struct {
	// FlowID is the run's unique ID.
	FlowID string

	// Seq is the run's logical clock value.
	Seq int64

	// Session is the flow's transaction. All statements go through it.
	Session kv.Session

	// Values is the token table.
	Values *kv.Store

	// Logger carries flow, flow_id and seq attributes.
	Logger *slog.Logger
}

// Flow is one unit of work executed by the Runner.
type Flow interface {
	// Name identifies the flow in the journal and in logs.
	Name() string

	// Args returns the flow arguments as recorded in the journal.
	Args() map[string]any

	// Call performs the flow's statements inside fc.Session.
	// A returned error rolls the transaction back.
	Call(ctx context.Context, fc *Context) (any, error)
}

// AddTokenValue inserts a token with its value.
type AddTokenValue struct {
	Token string
	Value int32
}

func (AddTokenValue) Name() string { return NameAddTokenValue }

func (f AddTokenValue) Args() map[string]any {
	return map[string]any{"token": f.Token, "value": f.Value}
}

func (f AddTokenValue) Call(ctx context.Context, fc *Context) (any, error) {
	return nil, fc.Values.Put(ctx, fc.Session, f.Token, f.Value)
}

// UpdateTokenValue sets the value of an existing token.
// Updating a token that is not present succeeds and changes nothing.
type UpdateTokenValue struct {
	Token string
	Value int32
}

func (UpdateTokenValue) Name() string { return NameUpdateTokenValue }

func (f UpdateTokenValue) Args() map[string]any {
	return map[string]any{"token": f.Token, "value": f.Value}
}

func (f UpdateTokenValue) Call(ctx context.Context, fc *Context) (any, error) {
	return nil, fc.Values.Update(ctx, fc.Session, f.Token, f.Value)
}

// QueryTokenValue reads the value of a token. The result is an int.
type QueryTokenValue struct {
	Token string
}

func (QueryTokenValue) Name() string { return NameQueryTokenValue }

func (f QueryTokenValue) Args() map[string]any {
	return map[string]any{"token": f.Token}
}

func (f QueryTokenValue) Call(ctx context.Context, fc *Context) (any, error) {
	v, err := fc.Values.Get(ctx, fc.Session, f.Token)
	if err != nil {
		return nil, err
	}
	return v, nil
}
