package db

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	sqlite, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	sqlite.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlite.Close() })

	_, err = sqlite.Exec(Schema)
	require.NoError(t, err)
	return sqlite
}

func TestMakeTx(t *testing.T) {
	ctx := context.Background()
	sqlite := openTestDB(t)
	makeTx := NewMakeTx(sqlite)
	qry := New(sqlite)

	tx, discard, _, err := makeTx(ctx)
	require.NoError(t, err)
	_, err = tx.CreateRun(ctx, CreateRunParams{Mode: "range", Params: "{}", StartedAt: 1})
	require.NoError(t, err)
	require.NoError(t, discard())

	runs, err := qry.ListRecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, runs, "discarded transactions leave nothing behind")

	tx, discard, commit, err := makeTx(ctx)
	require.NoError(t, err)
	id, err := tx.CreateRun(ctx, CreateRunParams{Mode: "user", Params: "{}", StartedAt: 2})
	require.NoError(t, err)
	require.NoError(t, tx.IncrementProcessed(ctx, id))
	require.NoError(t, commit())
	require.ErrorIs(t, discard(), sql.ErrTxDone)

	runs, err = qry.ListRecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, "user", runs[0].Mode)
	require.Equal(t, int64(1), runs[0].Processed)
}
