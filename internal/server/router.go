// Package server exposes the unprivileged side of the status bridge over
// HTTP for the presentation layer.
//
// Endpoints (under basePath):
//
//	POST {basePath}/commands/:name          start-node | stop-node | open-wallet | install-update
//	GET  {basePath}/events?channel=...      server-sent status events
//	GET  {basePath}/status                  last message per channel
//	GET  {basePath}/explorer/stakinginfo    staking snapshot or null
//	GET  {basePath}/explorer/mininginfo     backend document or null
//	GET  {basePath}/explorer/ticketpoolvalue
//	POST {basePath}/explorer/faucet         body: {"address": "..."}
//
// The router only ever holds a bridge.Port: it cannot see processes, paths or
// anything able to spawn.
package server

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/vigil-labs/launcher/internal/bridge"
	"github.com/vigil-labs/launcher/internal/metrics"
	"github.com/vigil-labs/launcher/pkg/explorer"
)

// SSE event name of status messages.
const statusEvent = "status"

// Options configures a Router.
type Options struct {
	BasePath    string
	Port        bridge.Port
	Explorer    *explorer.Client
	FaucetRate  float64 // requests per second; 0 disables throttling
	FaucetBurst int
}

// Router provides the embeddable HTTP handlers.
type Router struct {
	port     bridge.Port
	explorer *explorer.Client
	basePath string
	faucet   *rate.Limiter
}

// NewRouter constructs a router. Example basePath: "/ipc" results in
// /ipc/commands/start-node, /ipc/events and so on.
func NewRouter(opts Options) *Router {
	r := &Router{
		port:     opts.Port,
		explorer: opts.Explorer,
		basePath: sanitizeBase(opts.BasePath),
	}
	if opts.FaucetRate > 0 {
		burst := opts.FaucetBurst
		if burst < 1 {
			burst = 1
		}
		r.faucet = rate.NewLimiter(rate.Limit(opts.FaucetRate), burst)
	}
	return r
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.POST("/commands/:name", r.handleCommand)
	group.GET("/events", r.handleEvents)
	group.GET("/status", r.handleStatus)
	if r.explorer != nil {
		ex := group.Group("/explorer")
		ex.GET("/stakinginfo", r.handleStakingInfo)
		ex.GET("/mininginfo", r.handleMiningInfo)
		ex.GET("/ticketpoolvalue", r.handleTicketPoolValue)
		ex.POST("/faucet", r.handleFaucet)
	}
	return g
}

// NewServer wraps h in an http.Server with the launcher's timeouts. Writes are
// not bounded because /events streams indefinitely.
func NewServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

type errorResp struct {
	Error string `json:"error"`
}

type okResp struct {
	OK bool `json:"ok"`
}

type statusResp struct {
	Channels map[bridge.Channel]string `json:"channels"`
}

func (r *Router) handleCommand(c *gin.Context) {
	cmd, err := bridge.ParseCommand(c.Param("name"))
	if err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	if err := r.port.Send(cmd); err != nil {
		code := http.StatusBadRequest
		if errors.Is(err, bridge.ErrClosed) {
			code = http.StatusServiceUnavailable
		}
		writeJSON(c, code, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusAccepted, okResp{OK: true})
}

func (r *Router) handleStatus(c *gin.Context) {
	writeJSON(c, http.StatusOK, statusResp{Channels: r.port.Last()})
}

func (r *Router) handleEvents(c *gin.Context) {
	var channels []bridge.Channel
	for _, s := range c.QueryArray("channel") {
		ch, err := bridge.ParseChannel(s)
		if err != nil {
			writeJSON(c, http.StatusBadRequest, errorResp{Error: err.Error()})
			return
		}
		channels = append(channels, ch)
	}
	// snapshot and subscription are taken together so the replay is never
	// repeated, nor skipped, by the live stream
	last, events, cancel, err := r.port.Watch(channels...)
	if err != nil {
		writeJSON(c, http.StatusServiceUnavailable, errorResp{Error: err.Error()})
		return
	}
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	// replay the current status so a fresh page is not blank
	want := channels
	if len(want) == 0 {
		want = bridge.Channels
	}
	for _, ch := range want {
		if msg, ok := last[ch]; ok {
			c.SSEvent(statusEvent, bridge.StatusEvent{Channel: ch, Message: msg})
		}
	}
	c.Writer.Flush()

	ctx := c.Request.Context()
	c.Stream(func(io.Writer) bool {
		select {
		case ev, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(statusEvent, ev)
			return true
		case <-ctx.Done():
			return false
		}
	})
}

func (r *Router) handleStakingInfo(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.explorer.GetStakingInfo(c.Request.Context()))
}

func (r *Router) handleMiningInfo(c *gin.Context) {
	writeRaw(c, r.explorer.GetMiningInfo(c.Request.Context()))
}

func (r *Router) handleTicketPoolValue(c *gin.Context) {
	writeRaw(c, r.explorer.GetTicketPoolValue(c.Request.Context()))
}

func writeRaw(c *gin.Context, raw []byte) {
	if raw == nil {
		raw = []byte("null")
	}
	c.Data(http.StatusOK, "application/json", raw)
}

func (r *Router) handleFaucet(c *gin.Context) {
	var req explorer.FaucetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, explorer.FaucetResult{Success: false, Message: "invalid JSON: " + err.Error()})
		return
	}
	if !isValidAddress(req.Address) {
		writeJSON(c, http.StatusBadRequest, explorer.FaucetResult{Success: false, Message: "invalid address"})
		return
	}
	if r.faucet != nil && !r.faucet.Allow() {
		metrics.IncFaucetThrottled()
		slog.Warn("Faucet request throttled", "address", req.Address)
		writeJSON(c, http.StatusTooManyRequests, explorer.FaucetResult{Success: false, Message: "faucet rate limit exceeded, try again later"})
		return
	}
	writeJSON(c, http.StatusOK, r.explorer.RequestFaucet(c.Request.Context(), req.Address))
}
