package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigil-labs/launcher/internal/history"
)

func TestSQLiteSink_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	sink, err := New("sqlite://" + path)
	require.NoError(t, err)
	defer func() { _ = sink.Close() }()

	ctx := context.Background()
	code := 1
	events := []history.Event{
		{Type: history.EventStart, OccurredAt: time.Now(), Record: history.Record{Role: "node", RunID: "r1", PID: 42, State: "starting", Message: "Node Status: Starting..."}},
		{Type: history.EventExit, OccurredAt: time.Now(), Record: history.Record{Role: "node", RunID: "r1", PID: 42, State: "error", Message: "Node Status: Exited with code 1", ExitCode: &code}},
		{Type: history.EventStart, OccurredAt: time.Now(), Record: history.Record{Role: "wallet", RunID: "r2", PID: 43, State: "starting", Message: "Wallet Status: Opening..."}},
	}
	for _, e := range events {
		require.NoError(t, sink.Send(ctx, e))
	}

	n, err := sink.Count(ctx, "node")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = sink.Count(ctx, "wallet")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSQLiteSink_InMemory(t *testing.T) {
	sink, err := New(":memory:")
	require.NoError(t, err)
	defer func() { _ = sink.Close() }()
	require.NoError(t, sink.Send(context.Background(), history.Event{Type: history.EventStop, OccurredAt: time.Now(), Record: history.Record{Role: "node"}}))
	n, err := sink.Count(context.Background(), "node")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSQLiteSink_EmptyDSN(t *testing.T) {
	_, err := New("  ")
	assert.Error(t, err)
}
