package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
)

// Param is a sealed interface for values that can be bound to a statement.
// Only Text, Int32 and Int64 implement it. Floats and composite values are
// deliberately absent.
type Param interface {
	param() // Sealed - only these types implement it
}

// Text binds a string parameter.
type Text string

func (Text) param() {}

// Int32 binds a 32-bit integer parameter.
type Int32 int32

func (Int32) param() {}

// Int64 binds a 64-bit integer parameter.
type Int64 int64

func (Int64) param() {}

// ParamOf converts a dynamic value into a Param.
//
// Accepted: string, int32, int64, int (bound as Int64) and existing Param
// values. Anything else returns ErrUnsupportedParameterType.
func ParamOf(v any) (Param, error) {
	switch x := v.(type) {
	case Param:
		return x, nil
	case string:
		return Text(x), nil
	case int32:
		return Int32(x), nil
	case int64:
		return Int64(x), nil
	case int:
		return Int64(x), nil
	default:
		return nil, &UnsupportedParameterTypeError{Value: v}
	}
}

// bindValue returns the driver argument for p.
func bindValue(p Param) (any, error) {
	switch x := p.(type) {
	case Text:
		return string(x), nil
	case Int32:
		return int32(x), nil
	case Int64:
		return int64(x), nil
	default:
		return nil, &UnsupportedParameterTypeError{Value: p}
	}
}

// Statement is a parameterized SQL statement.
// Params maps 1-based positional indices to values.
type Statement struct {
	SQL    string
	Params map[int]Param
}

// NewStatement builds a Statement from dynamic positional values.
// Returns ErrUnsupportedParameterType if any value is outside the Param union.
func NewStatement(query string, params map[int]any) (Statement, error) {
	st := Statement{SQL: query, Params: make(map[int]Param, len(params))}
	for idx, v := range params {
		p, err := ParamOf(v)
		if err != nil {
			var upe *UnsupportedParameterTypeError
			if errors.As(err, &upe) {
				upe.Index = idx
			}
			return Statement{}, err
		}
		st.Params[idx] = p
	}
	return st, nil
}

// Args returns the bound arguments in positional order.
//
// Indices must be exactly 1..n. A missing, zero or negative index returns
// ErrParameterIndex.
func (s Statement) Args() ([]any, error) {
	if len(s.Params) == 0 {
		return nil, nil
	}

	indices := make([]int, 0, len(s.Params))
	for idx := range s.Params {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	args := make([]any, len(indices))
	for i, idx := range indices {
		if idx != i+1 {
			return nil, fmt.Errorf("%w: want %d, got %d", ErrParameterIndex, i+1, idx)
		}
		v, err := bindValue(s.Params[idx])
		if err != nil {
			var upe *UnsupportedParameterTypeError
			if errors.As(err, &upe) {
				upe.Index = idx
			}
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}

// Session is the transactional collaborator statements execute in.
// Satisfied by *sql.DB, *sql.Tx and *sql.Conn.
type Session interface {
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// execStatement prepares, binds and executes s as an update.
// The prepared statement is closed on every return path.
func execStatement(ctx context.Context, sess Session, s Statement) (sql.Result, error) {
	args, err := s.Args()
	if err != nil {
		return nil, err
	}

	stmt, err := sess.PrepareContext(ctx, s.SQL)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	return stmt.ExecContext(ctx, args...)
}

// queryInts prepares, binds and executes s, scanning a single integer column
// from every row.
func queryInts(ctx context.Context, sess Session, s Statement) ([]int, error) {
	args, err := s.Args()
	if err != nil {
		return nil, err
	}

	stmt, err := sess.PrepareContext(ctx, s.SQL)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	rows, err := stmt.QueryContext(ctx, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return values, nil
}
