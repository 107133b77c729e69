// Package devapi serves a stand-in for the explorer backend so the launcher
// and its front-end can be exercised without network access.
package devapi

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"

	"github.com/vigil-labs/launcher/pkg/explorer"
)

// Options configures the stub backend.
type Options struct {
	TotalStaked    float64
	SecurityScore  float64
	ProjectedROI   float64
	TicketPool     float64
	FaucetAmount   float64
	FailEverything bool // answer 503 on every endpoint
}

// DefaultOptions returns plausible testnet numbers.
func DefaultOptions() Options {
	return Options{
		TotalStaked:   1_250_000,
		SecurityScore: 87,
		ProjectedROI:  6.4,
		TicketPool:    1_250_000,
		FaucetAmount:  10,
	}
}

// Server is the stub explorer backend.
type Server struct {
	opts Options

	mu       sync.Mutex
	height   int64
	requests map[string]int
}

// New creates a stub backend.
func New(opts Options) *Server {
	return &Server{opts: opts, height: 1000, requests: make(map[string]int)}
}

// Handler returns the echo instance serving the backend endpoints.
func (s *Server) Handler() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	if s.opts.FailEverything {
		e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "backend unavailable"})
			}
		})
	}
	e.GET(explorer.PathStakingInfo, s.stakingInfo)
	e.GET(explorer.PathMiningInfo, s.miningInfo)
	e.GET(explorer.PathTicketPoolValue, s.ticketPoolValue)
	e.POST(explorer.PathFaucet, s.faucet)
	return e
}

// Requests returns how many faucet requests address made.
func (s *Server) Requests(address string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[address]
}

func (s *Server) stakingInfo(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]float64{
		"TotalStaked":   s.opts.TotalStaked,
		"SecurityScore": s.opts.SecurityScore,
		"ProjectedROI":  s.opts.ProjectedROI,
	})
}

func (s *Server) miningInfo(c echo.Context) error {
	s.mu.Lock()
	s.height++
	h := s.height
	s.mu.Unlock()
	return c.JSON(http.StatusOK, map[string]any{
		"blocks":        h,
		"difficulty":    1.0,
		"networkhashps": 0,
		"testnet":       true,
	})
}

func (s *Server) ticketPoolValue(c echo.Context) error {
	return c.JSON(http.StatusOK, s.opts.TicketPool)
}

func (s *Server) faucet(c echo.Context) error {
	var req explorer.FaucetRequest
	if err := c.Bind(&req); err != nil || req.Address == "" {
		return c.JSON(http.StatusBadRequest, explorer.FaucetResult{Success: false, Message: "address is required"})
	}
	s.mu.Lock()
	s.requests[req.Address]++
	n := s.requests[req.Address]
	s.mu.Unlock()
	if n > 1 {
		return c.JSON(http.StatusOK, explorer.FaucetResult{Success: false, Message: "address already funded"})
	}
	slog.Info("Faucet request served", "address", req.Address, "amount", s.opts.FaucetAmount)
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"message": "coins sent",
		"data":    map[string]any{"address": req.Address, "amount": s.opts.FaucetAmount},
	})
}
