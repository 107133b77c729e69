package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v4/process"
)

// ProcessSample holds CPU and memory figures for one daemon at one instant.
type ProcessSample struct {
	Role       string    `json:"role"`
	PID        int32     `json:"pid"`
	CPUPercent float64   `json:"cpu_percent"`
	MemoryRSS  uint64    `json:"memory_rss"`
	NumThreads int32     `json:"num_threads"`
	NumFDs     int32     `json:"num_fds,omitempty"` // Unix only
	Timestamp  time.Time `json:"timestamp"`
}

// PIDSource reports the live daemon PIDs keyed by role. Roles without a
// running daemon are omitted.
type PIDSource func() map[string]int32

// ProcessCollector periodically samples the supervised daemons with gopsutil
// and exports the figures as gauges labelled by role.
type ProcessCollector struct {
	interval time.Duration
	source   PIDSource

	mu     sync.RWMutex
	latest map[string]ProcessSample
	procs  map[string]*process.Process // cached handles keep CPUPercent deltas meaningful

	cpu     *prometheus.GaugeVec
	rss     *prometheus.GaugeVec
	threads *prometheus.GaugeVec
	fds     *prometheus.GaugeVec
}

// NewProcessCollector creates a collector. interval <= 0 defaults to 10s.
func NewProcessCollector(interval time.Duration, source PIDSource) *ProcessCollector {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &ProcessCollector{
		interval: interval,
		source:   source,
		latest:   make(map[string]ProcessSample),
		procs:    make(map[string]*process.Process),
		cpu: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "daemon", Name: "cpu_percent",
			Help: "CPU usage of the daemon process.",
		}, []string{"role"}),
		rss: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "daemon", Name: "memory_rss_bytes",
			Help: "Resident memory of the daemon process.",
		}, []string{"role"}),
		threads: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "daemon", Name: "threads",
			Help: "Thread count of the daemon process.",
		}, []string{"role"}),
		fds: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "daemon", Name: "open_fds",
			Help: "Open file descriptors of the daemon process (Unix only).",
		}, []string{"role"}),
	}
}

// Register adds the collector's gauges to r.
func (c *ProcessCollector) Register(r prometheus.Registerer) error {
	for _, g := range []prometheus.Collector{c.cpu, c.rss, c.threads, c.fds} {
		if err := r.Register(g); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}

// Run samples until ctx is cancelled.
func (c *ProcessCollector) Run(ctx context.Context) {
	t := time.NewTicker(c.interval)
	defer t.Stop()
	c.Collect()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.Collect()
		}
	}
}

// Collect takes one sample of every live daemon.
func (c *ProcessCollector) Collect() {
	pids := c.source()
	now := time.Now()
	for role, pid := range pids {
		s, err := c.sample(role, pid, now)
		if err != nil {
			slog.Debug("Failed to sample daemon", "role", role, "pid", pid, "error", err)
			delete(pids, role)
			continue
		}
		c.cpu.WithLabelValues(role).Set(s.CPUPercent)
		c.rss.WithLabelValues(role).Set(float64(s.MemoryRSS))
		c.threads.WithLabelValues(role).Set(float64(s.NumThreads))
		if runtime.GOOS != "windows" {
			c.fds.WithLabelValues(role).Set(float64(s.NumFDs))
		}
		c.mu.Lock()
		c.latest[role] = s
		c.mu.Unlock()
	}
	c.cleanup(pids)
}

func (c *ProcessCollector) sample(role string, pid int32, now time.Time) (ProcessSample, error) {
	c.mu.Lock()
	p, ok := c.procs[role]
	if !ok || p.Pid != pid {
		np, err := process.NewProcess(pid)
		if err != nil {
			c.mu.Unlock()
			return ProcessSample{}, fmt.Errorf("open process: %w", err)
		}
		p = np
		c.procs[role] = p
	}
	c.mu.Unlock()

	mem, err := p.MemoryInfo()
	if err != nil {
		return ProcessSample{}, fmt.Errorf("memory info: %w", err)
	}
	cpu, err := p.Percent(0)
	if err != nil {
		cpu = 0
	}
	threads, _ := p.NumThreads()
	var fds int32
	if runtime.GOOS != "windows" {
		fds, _ = p.NumFDs()
	}
	return ProcessSample{
		Role:       role,
		PID:        pid,
		CPUPercent: cpu,
		MemoryRSS:  mem.RSS,
		NumThreads: threads,
		NumFDs:     fds,
		Timestamp:  now,
	}, nil
}

// cleanup drops gauges and samples of roles that are no longer running.
func (c *ProcessCollector) cleanup(alive map[string]int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for role := range c.latest {
		if _, ok := alive[role]; ok {
			continue
		}
		delete(c.latest, role)
		delete(c.procs, role)
		c.cpu.DeleteLabelValues(role)
		c.rss.DeleteLabelValues(role)
		c.threads.DeleteLabelValues(role)
		c.fds.DeleteLabelValues(role)
	}
}

// Latest returns the most recent sample per role.
func (c *ProcessCollector) Latest() map[string]ProcessSample {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]ProcessSample, len(c.latest))
	for k, v := range c.latest {
		out[k] = v
	}
	return out
}
