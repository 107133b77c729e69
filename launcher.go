// Package launcher assembles the daemon supervisor, its status bridge and the
// HTTP surfaces into one embeddable unit.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vigil-labs/launcher/internal/bridge"
	"github.com/vigil-labs/launcher/internal/config"
	"github.com/vigil-labs/launcher/internal/env"
	"github.com/vigil-labs/launcher/internal/history"
	"github.com/vigil-labs/launcher/internal/history/factory"
	"github.com/vigil-labs/launcher/internal/lock"
	"github.com/vigil-labs/launcher/internal/manager"
	"github.com/vigil-labs/launcher/internal/metrics"
	"github.com/vigil-labs/launcher/internal/server"
	"github.com/vigil-labs/launcher/pkg/explorer"
)

// Re-export core types for external consumers.

type Config = config.Config

type StatusEvent = bridge.StatusEvent

type Port = bridge.Port

type Snapshot = manager.Snapshot

// ErrLocked is returned by New when another launcher owns the install.
var ErrLocked = lock.ErrHeld

func LoadConfig(path string) (*Config, error) { return config.Load(path) }

// Launcher owns both daemons for the lifetime of one supervisor process.
type Launcher struct {
	cfg       *Config
	lock      *lock.Lock
	journal   *history.Journal
	bridge    *bridge.Bridge
	sup       *manager.Supervisor
	collector *metrics.ProcessCollector

	httpSrv    *http.Server
	httpLn     net.Listener
	metricsSrv *http.Server
	metricsLn  net.Listener

	closeOnce sync.Once
	closeErr  error
}

// New acquires the install lock, opens the history sinks and binds the
// listeners. Nothing is spawned until a start command arrives.
func New(cfg *Config) (_ *Launcher, err error) {
	l := &Launcher{cfg: cfg}
	defer func() {
		if err != nil {
			if l.sup != nil {
				_ = l.sup.Shutdown(context.Background())
				l.bridge.Close()
			}
			_ = l.release()
		}
	}()

	if cfg.LockFile != "" {
		if l.lock, err = lock.Acquire(cfg.LockFile); err != nil {
			return nil, err
		}
	}

	sinks, err := factory.NewSinks(cfg.History.DSN)
	if err != nil {
		return nil, err
	}
	l.journal = history.NewJournal(cfg.History.Buffer, sinks...)

	e := env.New()
	kvs, err := cfg.GlobalEnv()
	if err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}
	for _, kv := range kvs {
		if k, v, ok := strings.Cut(kv, "="); ok {
			e.Set(k, v)
		}
	}

	l.bridge = bridge.New(64)
	l.sup = manager.New(manager.Options{
		Specs:        cfg.Specs(),
		Env:          e,
		Host:         l.bridge.Host(),
		Journal:      l.journal,
		ShutdownWait: shutdownWait(cfg),
	})

	ex := explorer.New(explorer.Config{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.API.Timeout,
		Observe: metrics.IncRemoteRequest,
	})
	router := server.NewRouter(server.Options{
		BasePath:    cfg.Server.BasePath,
		Port:        l.bridge.Port(),
		Explorer:    ex,
		FaucetRate:  cfg.Server.FaucetRate,
		FaucetBurst: cfg.Server.FaucetBurst,
	})
	if l.httpLn, err = net.Listen("tcp", cfg.Server.Listen); err != nil {
		return nil, fmt.Errorf("listen %s: %w", cfg.Server.Listen, err)
	}
	l.httpSrv = server.NewServer(cfg.Server.Listen, router.Handler())

	if cfg.Metrics.Listen != "" {
		if err = l.setupMetrics(); err != nil {
			return nil, err
		}
	}
	return l, nil
}

func (l *Launcher) setupMetrics() error {
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	reg := prometheus.NewRegistry()
	l.collector = metrics.NewProcessCollector(l.cfg.Metrics.SampleInterval, l.sup.PIDs)
	if err := l.collector.Register(reg); err != nil {
		return fmt.Errorf("register process metrics: %w", err)
	}
	ln, err := net.Listen("tcp", l.cfg.Metrics.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", l.cfg.Metrics.Listen, err)
	}
	l.metricsLn = ln
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HandlerFor(prometheus.Gatherers{prometheus.DefaultGatherer, reg}))
	l.metricsSrv = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	return nil
}

// Addr returns the address the bridge server listens on.
func (l *Launcher) Addr() string { return l.httpLn.Addr().String() }

// MetricsAddr returns the metrics listen address, or "" when disabled.
func (l *Launcher) MetricsAddr() string {
	if l.metricsLn == nil {
		return ""
	}
	return l.metricsLn.Addr().String()
}

// Port returns the unprivileged side of the status bridge.
func (l *Launcher) Port() Port { return l.bridge.Port() }

// Snapshots returns the state of both daemons.
func (l *Launcher) Snapshots() []Snapshot { return l.sup.Snapshots() }

// Run serves until ctx is cancelled or a listener fails, then stops both
// daemons and releases everything New acquired.
func (l *Launcher) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		if err := l.bridge.Host().Serve(ctx, l.sup); err != nil && !errors.Is(err, context.Canceled) {
			slog.Warn("Bridge stopped", "error", err)
		}
	}()
	go func() {
		if err := l.httpSrv.Serve(l.httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("bridge server: %w", err)
		}
	}()
	if l.metricsSrv != nil {
		go l.collector.Run(ctx)
		go func() {
			if err := l.metricsSrv.Serve(l.metricsLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}
	slog.Info("Launcher serving", "listen", l.Addr(), "base_path", l.cfg.Server.BasePath,
		"metrics", l.MetricsAddr(), "root", l.cfg.Root)

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		slog.Error("Listener failed", "error", runErr)
	}
	return errors.Join(runErr, l.Close())
}

// Close stops both daemons and releases the listeners, the history sinks and
// the lock. It is safe to call more than once.
func (l *Launcher) Close() error {
	l.closeOnce.Do(func() {
		slog.Info("Shutting down launcher")
		ctx, cancel := context.WithTimeout(context.Background(), shutdownWait(l.cfg)+5*time.Second)
		defer cancel()
		var errs []error
		if err := l.sup.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop daemons: %w", err))
		}
		// ends the SSE streams so the server can drain
		l.bridge.Close()
		if err := l.httpSrv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("bridge server: %w", err))
		}
		if l.metricsSrv != nil {
			if err := l.metricsSrv.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("metrics server: %w", err))
			}
		}
		errs = append(errs, l.release())
		l.closeErr = errors.Join(errs...)
	})
	return l.closeErr
}

// release frees the listeners, the history sinks and the lock.
func (l *Launcher) release() error {
	var errs []error
	// already closed when the server ran; the error is expected then
	if l.httpLn != nil {
		_ = l.httpLn.Close()
	}
	if l.metricsLn != nil {
		_ = l.metricsLn.Close()
	}
	if l.journal != nil {
		if err := l.journal.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close history: %w", err))
		}
	}
	if l.lock != nil {
		if err := l.lock.Release(); err != nil {
			errs = append(errs, fmt.Errorf("release lock: %w", err))
		}
	}
	return errors.Join(errs...)
}

func shutdownWait(cfg *Config) time.Duration {
	wait := 5 * time.Second
	for _, d := range []time.Duration{cfg.Node.StopWait, cfg.Wallet.StopWait} {
		if d > wait {
			wait = d
		}
	}
	return wait
}
