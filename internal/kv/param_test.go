package kv

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingSession records PrepareContext calls.
type countingSession struct {
	Session
	prepared int
}

func (c *countingSession) PrepareContext(ctx context.Context, query string) (*sql.Stmt, error) {
	c.prepared++
	return c.Session.PrepareContext(ctx, query)
}

func TestParamOf(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want Param
	}{
		{"string", "bitcoin", Text("bitcoin")},
		{"int32", int32(7000), Int32(7000)},
		{"int64", int64(1) << 40, Int64(1 << 40)},
		{"int", 42, Int64(42)},
		{"text passthrough", Text("eCash"), Text("eCash")},
		{"int32 passthrough", Int32(-1), Int32(-1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParamOf(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParamOf_Unsupported(t *testing.T) {
	for _, v := range []any{1.5, float32(2), true, []byte("x"), struct{}{}, nil} {
		_, err := ParamOf(v)
		require.Error(t, err, "value %#v", v)
		assert.True(t, errors.Is(err, ErrUnsupportedParameterType))
	}
}

func TestNewStatement_RecordsIndex(t *testing.T) {
	_, err := NewStatement("SELECT ?", map[int]any{1: "ok", 2: 3.14})
	require.Error(t, err)

	var upe *UnsupportedParameterTypeError
	require.True(t, errors.As(err, &upe))
	assert.Equal(t, 2, upe.Index)
	assert.Equal(t, 3.14, upe.Value)
	assert.Contains(t, err.Error(), "parameter 2")
	assert.Contains(t, err.Error(), "float64")
}

func TestStatementArgs_Order(t *testing.T) {
	st, err := NewStatement("UPDATE t SET value = ? WHERE token = ?", map[int]any{
		2: "bitcoin",
		1: int32(8000),
	})
	require.NoError(t, err)

	args, err := st.Args()
	require.NoError(t, err)
	assert.Equal(t, []any{int32(8000), "bitcoin"}, args)
}

func TestStatementArgs_Empty(t *testing.T) {
	args, err := Statement{SQL: "SELECT 1"}.Args()
	require.NoError(t, err)
	assert.Nil(t, args)
}

func TestStatementArgs_Gap(t *testing.T) {
	tests := []map[int]Param{
		{1: Text("a"), 3: Text("c")},
		{0: Text("a")},
		{-1: Text("a"), 1: Text("b")},
	}
	for _, params := range tests {
		_, err := Statement{SQL: "SELECT ?", Params: params}.Args()
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrParameterIndex), "params %v", params)
	}
}

func TestExecStatement_UnsupportedBeforePrepare(t *testing.T) {
	db := openTestDB(t)
	sess := &countingSession{Session: db}

	st := Statement{SQL: "SELECT ?", Params: map[int]Param{1: nil}}
	_, err := execStatement(context.Background(), sess, st)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedParameterType))
	assert.Equal(t, 0, sess.prepared, "no statement may be prepared")
}

func TestExecStatement_PrepareFailure(t *testing.T) {
	db := openTestDB(t)
	sess := &countingSession{Session: db}

	_, err := execStatement(context.Background(), sess, Statement{SQL: "NOT SQL AT ALL"})
	require.Error(t, err)
	assert.Equal(t, 1, sess.prepared)
}

func TestQueryInts_ScansRows(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.Exec(`CREATE TABLE nums (n INT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO nums VALUES (3), (1), (2)`)
	require.NoError(t, err)

	got, err := queryInts(ctx, db, Statement{
		SQL:    `SELECT n FROM nums WHERE n >= ? ORDER BY n`,
		Params: map[int]Param{1: Int64(2)},
	})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, got)
}
