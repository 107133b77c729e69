package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/vigil-labs/launcher/internal/history"
)

func TestPostgresSink_EmptyDSN(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}

func TestPostgresSink_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	defer func() { _ = container.Terminate(ctx) }()

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	sink, err := New(connStr)
	require.NoError(t, err)
	defer func() { _ = sink.Close() }()

	code := 0
	require.NoError(t, sink.Send(ctx, history.Event{
		Type: history.EventStart, OccurredAt: time.Now(),
		Record: history.Record{Role: "wallet", RunID: "r1", PID: 7, State: "starting", Message: "Wallet Status: Opening..."},
	}))
	require.NoError(t, sink.Send(ctx, history.Event{
		Type: history.EventExit, OccurredAt: time.Now(),
		Record: history.Record{Role: "wallet", RunID: "r1", PID: 7, State: "stopped", Message: "Wallet Status: Exited with code 0", ExitCode: &code},
	}))

	n, err := sink.Count(ctx, "wallet")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
