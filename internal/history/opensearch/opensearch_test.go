package opensearch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigil-labs/launcher/internal/history"
)

func TestOpenSearchSink_Send(t *testing.T) {
	var (
		gotPath   string
		gotMethod string
		gotBody   []byte
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	}))
	defer server.Close()

	sink := New(server.URL+"/", "launcher")
	code := 1
	err := sink.Send(context.Background(), history.Event{
		Type:       history.EventExit,
		OccurredAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Record:     history.Record{Role: "node", RunID: "abc", PID: 12, State: "error", Message: "Node Status: Exited with code 1", ExitCode: &code},
	})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/launcher/_doc", gotPath)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(gotBody, &doc))
	assert.Equal(t, "exit", doc["type"])
	assert.Equal(t, "node", doc["role"])
	assert.Equal(t, "abc", doc["run_id"])
	assert.EqualValues(t, 1, doc["exit_code"])
	assert.Equal(t, "2026-01-02T03:04:05Z", doc["@timestamp"])
}

func TestOpenSearchSink_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	sink := New(server.URL, "")
	assert.Equal(t, "daemon-history", sink.index)
	err := sink.Send(context.Background(), history.Event{Type: history.EventStart})
	assert.ErrorContains(t, err, "status 400")
}

func TestOpenSearchSink_Unreachable(t *testing.T) {
	sink := New("http://127.0.0.1:1", "x")
	assert.Error(t, sink.Send(context.Background(), history.Event{Type: history.EventStart}))
}
