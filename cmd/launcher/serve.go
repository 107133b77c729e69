package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/vigil-labs/launcher"
	"github.com/vigil-labs/launcher/internal/logger"
)

// ServeFlags holds command line overrides for serve.
type ServeFlags struct {
	Listen   string
	Metrics  string
	LogLevel string
}

func createServeCommand(globalFlags *GlobalFlags) *cobra.Command {
	serveFlags := &ServeFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the supervisor",
		Long: `Run the supervisor in the foreground. Daemons are only started on request
(start-node, open-wallet) and are stopped when the supervisor exits.

Examples:
  launcher serve
  launcher serve --config /opt/vigil/launcher.toml --listen 127.0.0.1:9000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), globalFlags, serveFlags)
		},
	}
	cmd.Flags().StringVar(&serveFlags.Listen, "listen", "", "bridge listen address (overrides [server].listen)")
	cmd.Flags().StringVar(&serveFlags.Metrics, "metrics-listen", "", "metrics listen address (overrides [metrics].listen)")
	cmd.Flags().StringVar(&serveFlags.LogLevel, "log-level", "", "log level (overrides [log].level)")
	return cmd
}

func runServe(ctx context.Context, globalFlags *GlobalFlags, flags *ServeFlags) error {
	cfg, err := launcher.LoadConfig(globalFlags.ConfigPath)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	if flags.Listen != "" {
		cfg.Server.Listen = flags.Listen
	}
	if flags.Metrics != "" {
		cfg.Metrics.Listen = flags.Metrics
	}
	if flags.LogLevel != "" {
		cfg.Log.Level = flags.LogLevel
	}

	_, logCloser, err := logger.Setup(cfg.Log)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer func() { _ = logCloser.Close() }()
	gin.SetMode(gin.ReleaseMode)

	l, err := launcher.New(cfg)
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return l.Run(ctx)
}
