package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vigil-labs/launcher/pkg/client"
)

// channelOrder is the display order of the status channels.
var channelOrder = []string{"node-status", "wallet-status", "install-status"}

// createSendCommand creates a subcommand forwarding one bridge command.
func createSendCommand(globalFlags *GlobalFlags, name, short string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Long: short + `. The request is queued by the running supervisor; use
"launcher watch" or "launcher status" to follow the outcome.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(globalFlags)
			if err := c.Send(cmd.Context(), name); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s requested\n", name)
			return nil
		},
	}
}

// StatusFlags holds flags of the status command.
type StatusFlags struct {
	JSON bool
}

func createStatusCommand(globalFlags *GlobalFlags) *cobra.Command {
	statusFlags := &StatusFlags{}
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the last status message of each channel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := newClient(globalFlags).Status(cmd.Context())
			if err != nil {
				return fmt.Errorf("status: %w", err)
			}
			if statusFlags.JSON {
				printJSON(cmd.OutOrStdout(), st)
				return nil
			}
			rows := make([][]string, 0, len(channelOrder))
			for _, ch := range channelOrder {
				msg, ok := st[ch]
				if !ok {
					msg = "-"
				}
				rows = append(rows, []string{ch, msg})
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Channel", "Status"}, rows))
			return nil
		},
	}
	cmd.Flags().BoolVar(&statusFlags.JSON, "json", false, "print JSON instead of a table")
	return cmd
}

// WatchFlags holds flags of the watch command.
type WatchFlags struct {
	Channels []string
}

func createWatchCommand(globalFlags *GlobalFlags) *cobra.Command {
	watchFlags := &WatchFlags{}
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow status messages until interrupted",
		Long: `Follow status messages until interrupted. The current status of each
channel is printed first.

Examples:
  launcher watch
  launcher watch --channel node-status`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, newClient(globalFlags), watchFlags, cmd)
		},
	}
	cmd.Flags().StringSliceVar(&watchFlags.Channels, "channel", nil, "channel to follow (repeatable; default all)")
	return cmd
}

func runWatch(ctx context.Context, c *client.Client, flags *WatchFlags, cmd *cobra.Command) error {
	out := cmd.OutOrStdout()
	return c.Watch(ctx, flags.Channels, func(ev client.StatusEvent) {
		_, _ = fmt.Fprintf(out, "%-15s %s\n", ev.Channel, ev.Message)
	})
}
