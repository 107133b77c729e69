package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vigil-labs/launcher/internal/devapi"
)

// DevAPIFlags holds flags of the devapi command.
type DevAPIFlags struct {
	Listen string
	Fail   bool
}

func createDevAPICommand() *cobra.Command {
	flags := &DevAPIFlags{}
	cmd := &cobra.Command{
		Use:   "devapi",
		Short: "Serve a local stand-in for the explorer API",
		Long: `Serve a local stand-in for the explorer API so the staking and faucet
views can be tried without network access. Point [api].base_url at it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := devapi.DefaultOptions()
			opts.FailEverything = flags.Fail
			e := devapi.New(opts).Handler()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			errCh := make(chan error, 1)
			go func() { errCh <- e.Start(flags.Listen) }()
			slog.Info("Dev explorer API listening", "listen", flags.Listen)

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return e.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&flags.Listen, "listen", "127.0.0.1:7777", "listen address")
	cmd.Flags().BoolVar(&flags.Fail, "fail", false, "answer every request with 503")
	return cmd
}
