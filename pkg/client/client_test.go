package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigil-labs/launcher/internal/bridge"
	"github.com/vigil-labs/launcher/internal/server"
	"github.com/vigil-labs/launcher/pkg/explorer"
)

type dispatcher struct {
	mu   sync.Mutex
	cmds []bridge.Command
}

func (d *dispatcher) Dispatch(cmd bridge.Command) {
	d.mu.Lock()
	d.cmds = append(d.cmds, cmd)
	d.mu.Unlock()
}

func (d *dispatcher) seen() []bridge.Command {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]bridge.Command(nil), d.cmds...)
}

func setup(t *testing.T, backend http.HandlerFunc) (*Client, *bridge.Bridge, *dispatcher) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	b := bridge.New(8)
	t.Cleanup(b.Close)
	d := &dispatcher{}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = b.Host().Serve(ctx, d) }()

	opts := server.Options{BasePath: "/ipc", Port: b.Port()}
	if backend != nil {
		be := httptest.NewServer(backend)
		t.Cleanup(be.Close)
		opts.Explorer = explorer.New(explorer.Config{BaseURL: be.URL, Timeout: 2 * time.Second})
	}
	srv := httptest.NewServer(server.NewRouter(opts).Handler())
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL + "/ipc", Timeout: 2 * time.Second}), b, d
}

func TestNewDefaults(t *testing.T) {
	c := New(Config{})
	assert.Equal(t, "http://127.0.0.1:8765/ipc", c.baseURL)
	assert.Equal(t, 10*time.Second, c.client.Timeout)

	c = New(Config{BaseURL: "http://x/ipc/"})
	assert.Equal(t, "http://x/ipc", c.baseURL)
}

func TestSendAndStatus(t *testing.T) {
	c, b, d := setup(t, nil)
	ctx := context.Background()

	require.NoError(t, c.Send(ctx, "start-node"))
	require.NoError(t, c.Send(ctx, "install-update"))
	require.Eventually(t, func() bool { return len(d.seen()) == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []bridge.Command{bridge.StartNode, bridge.InstallUpdate}, d.seen())

	err := c.Send(ctx, "rm-rf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")

	b.Host().Emit(bridge.StatusEvent{Channel: bridge.WalletStatus, Message: "Wallet Status: Opened"})
	st, err := c.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"wallet-status": "Wallet Status: Opened"}, st)
	assert.True(t, c.IsReachable(ctx))
}

func TestUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(Config{BaseURL: url, Timeout: time.Second})
	assert.False(t, c.IsReachable(context.Background()))
	assert.Error(t, c.Send(context.Background(), "start-node"))
}

func TestWatchReceivesEvents(t *testing.T) {
	c, b, _ := setup(t, nil)
	b.Host().Emit(bridge.StatusEvent{Channel: bridge.NodeStatus, Message: "Node Status: Starting..."})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got := make(chan StatusEvent, 8)
	done := make(chan error, 1)
	go func() {
		done <- c.Watch(ctx, []string{"node-status"}, func(ev StatusEvent) { got <- ev })
	}()

	next := func() StatusEvent {
		select {
		case ev := <-got:
			return ev
		case <-ctx.Done():
			t.Fatal("timed out waiting for event")
			return StatusEvent{}
		}
	}

	first := next()
	assert.Equal(t, "node-status", first.Channel)
	assert.Equal(t, "Node Status: Starting...", first.Message)

	b.Host().Emit(bridge.StatusEvent{Channel: bridge.WalletStatus, Message: "Wallet Status: Opening..."})
	b.Host().Emit(bridge.StatusEvent{Channel: bridge.NodeStatus, Role: "node", Message: "Node Status: Running"})
	ev := next()
	assert.Equal(t, "Node Status: Running", ev.Message)
	assert.Equal(t, "node", ev.Role)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not return after cancel")
	}
}

func TestWatchRejectsUnknownChannel(t *testing.T) {
	c, _, _ := setup(t, nil)
	err := c.Watch(context.Background(), []string{"process-list"}, func(StatusEvent) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API error")
}

func TestExplorerThroughLauncher(t *testing.T) {
	c, _, _ := setup(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case explorer.PathStakingInfo:
			_, _ = w.Write([]byte(`{"TotalStaked":1,"SecurityScore":2,"ProjectedROI":0.5}`))
		case explorer.PathMiningInfo:
			_, _ = w.Write([]byte(`{"difficulty":42}`))
		case explorer.PathFaucet:
			_, _ = w.Write([]byte(`{"success":true,"message":"queued"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := context.Background()

	info, err := c.StakingInfo(ctx)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, explorer.StakingInfo{TotalStaked: 1, SecurityScore: 2, ProjectedROI: 0.5}, *info)

	mining, err := c.MiningInfo(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"difficulty":42}`, string(mining))

	res, err := c.Faucet(ctx, "VsAddr1")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "queued", res.Message)

	res, err = c.Faucet(ctx, "bad address!")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "invalid address", res.Message)
}

func TestStakingInfoNullWhenBackendDown(t *testing.T) {
	c, _, _ := setup(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	info, err := c.StakingInfo(context.Background())
	require.NoError(t, err)
	assert.Nil(t, info)

	mining, err := c.MiningInfo(context.Background())
	require.NoError(t, err)
	assert.Nil(t, mining)
}
