package cli

import (
	"github.com/spf13/cobra"
)

func MorphoLiquidationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "morpho-liquidations",
		Short: "Render the daily Morpho Blue liquidation chart for the crisis week",
		Args:  cobra.ExactArgs(0),
		RunE:  runMorphoLiquidations,
	}

	return cmd
}

func runMorphoLiquidations(cmd *cobra.Command, _ []string) error {
	ctx, svc, err := buildService(cmd.Context())
	if err != nil {
		return err
	}

	return svc.RunMorphoLiquidations(ctx)
}
