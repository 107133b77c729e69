package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// GlobalFlags holds the persistent flags shared by every subcommand.
type GlobalFlags struct {
	ConfigPath string
	APIUrl     string // launcher bridge URL; defaults to [server] of the config
	Timeout    time.Duration
}

func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	root := createRootCommand(globalFlags)

	root.AddCommand(
		createServeCommand(globalFlags),
		createSendCommand(globalFlags, "start-node", "Start the vgld node"),
		createSendCommand(globalFlags, "stop-node", "Stop the vgld node"),
		createSendCommand(globalFlags, "open-wallet", "Start the wallet daemon"),
		createSendCommand(globalFlags, "install-update", "Request an update install"),
		createStatusCommand(globalFlags),
		createWatchCommand(globalFlags),
		createStakingCommand(globalFlags),
		createMiningCommand(globalFlags),
		createFaucetCommand(globalFlags),
		createDevAPICommand(),
		createConfigCommand(globalFlags),
	)
	return root
}

// createRootCommand creates the root command with the persistent flags
func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "launcher",
		Short: "Supervisor for the vgld node and wallet daemons",
		Long: `Launcher starts and watches the vgld node and the vigilwallet daemon,
reports their status over a local HTTP bridge and proxies the explorer API.

Examples:
  launcher serve                    # run the supervisor
  launcher start-node               # ask a running supervisor to start the node
  launcher watch                    # follow status messages
  launcher faucet VsAddress         # request test coins`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (default: launcher.toml next to the binary)")
	root.PersistentFlags().StringVar(&flags.APIUrl, "api-url", "", "launcher bridge URL (default: from [server] in the config)")
	root.PersistentFlags().DurationVar(&flags.Timeout, "timeout", 10*time.Second, "request timeout")

	return root
}
