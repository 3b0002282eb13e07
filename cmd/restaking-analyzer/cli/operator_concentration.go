package cli

import (
	"github.com/spf13/cobra"
)

func OperatorConcentrationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "operator-concentration",
		Short: "Analyze operator concentration across the LRT market and per protocol",
		Args:  cobra.ExactArgs(0),
		RunE:  runOperatorConcentration,
	}

	return cmd
}

func runOperatorConcentration(cmd *cobra.Command, _ []string) error {
	ctx, svc, err := buildService(cmd.Context())
	if err != nil {
		return err
	}

	return svc.RunOperatorConcentration(ctx)
}
