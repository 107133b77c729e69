package devapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigil-labs/launcher/pkg/explorer"
)

func newClient(t *testing.T, opts Options) (*explorer.Client, *Server) {
	t.Helper()
	s := New(opts)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return explorer.New(explorer.Config{BaseURL: srv.URL, Timeout: 2 * time.Second}), s
}

func TestStubServesExplorerEndpoints(t *testing.T) {
	c, _ := newClient(t, DefaultOptions())
	ctx := context.Background()

	info := c.GetStakingInfo(ctx)
	require.NotNil(t, info)
	assert.Equal(t, explorer.StakingInfo{TotalStaked: 1_250_000, SecurityScore: 87, ProjectedROI: 6.4}, *info)

	first := c.GetMiningInfo(ctx)
	second := c.GetMiningInfo(ctx)
	require.NotNil(t, first)
	assert.Contains(t, string(first), `"blocks":1001`)
	assert.Contains(t, string(second), `"blocks":1002`)

	pool := c.GetTicketPoolValue(ctx)
	assert.Equal(t, "1250000", strings.TrimSpace(string(pool)))
}

func TestStubFaucetFundsOnce(t *testing.T) {
	c, s := newClient(t, DefaultOptions())
	ctx := context.Background()

	res := c.RequestFaucet(ctx, "VsDev1")
	assert.True(t, res.Success)
	assert.Equal(t, "coins sent", res.Message)
	assert.Contains(t, string(res.Data), "VsDev1")

	res = c.RequestFaucet(ctx, "VsDev1")
	assert.False(t, res.Success)
	assert.Equal(t, "address already funded", res.Message)
	assert.Equal(t, 2, s.Requests("VsDev1"))
}

func TestStubFaucetRequiresAddress(t *testing.T) {
	s := New(DefaultOptions())
	req := httptest.NewRequest(http.MethodPost, explorer.PathFaucet, strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"success":false,"message":"address is required"}`, rec.Body.String())
}

func TestStubFailureMode(t *testing.T) {
	opts := DefaultOptions()
	opts.FailEverything = true
	c, _ := newClient(t, opts)
	ctx := context.Background()

	assert.Nil(t, c.GetStakingInfo(ctx))
	assert.Nil(t, c.GetMiningInfo(ctx))
	res := c.RequestFaucet(ctx, "VsDev1")
	assert.False(t, res.Success)
	assert.Equal(t, "HTTP error! status: 503", res.Message)
}
