package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func createStakingCommand(globalFlags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "staking",
		Short: "Show network staking info from the explorer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := newClient(globalFlags).StakingInfo(cmd.Context())
			if err != nil {
				return fmt.Errorf("staking: %w", err)
			}
			if info == nil {
				return errors.New("staking info unavailable")
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Total staked", "Security score", "Projected ROI"}, [][]string{{
				fmt.Sprintf("%.2f", info.TotalStaked),
				fmt.Sprintf("%.2f", info.SecurityScore),
				fmt.Sprintf("%.2f%%", info.ProjectedROI),
			}}))
			return nil
		},
	}
}

func createMiningCommand(globalFlags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "mining",
		Short: "Print the explorer's mining info document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := newClient(globalFlags).MiningInfo(cmd.Context())
			if err != nil {
				return fmt.Errorf("mining: %w", err)
			}
			if raw == nil {
				return errors.New("mining info unavailable")
			}
			printJSON(cmd.OutOrStdout(), raw)
			return nil
		},
	}
}

func createFaucetCommand(globalFlags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "faucet <address>",
		Short: "Request test coins for an address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := newClient(globalFlags).Faucet(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("faucet: %w", err)
			}
			if !res.Success {
				return fmt.Errorf("faucet: %s", res.Message)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "faucet: %s\n", res.Message)
			return nil
		},
	}
}
