package cli

import (
	"github.com/spf13/cobra"
)

func DepegCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "depeg",
		Short: "Reconstruct the April 2024 ezETH de-peg crisis charts",
		Args:  cobra.ExactArgs(0),
		RunE:  runDepeg,
	}

	return cmd
}

func runDepeg(cmd *cobra.Command, _ []string) error {
	ctx, svc, err := buildService(cmd.Context())
	if err != nil {
		return err
	}

	return svc.RunDepegAnalysis(ctx)
}
