package cli

import (
	"github.com/spf13/cobra"
)

func AVSConcentrationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "avs-concentration",
		Short: "Measure operator concentration inside each configured AVS market",
		Args:  cobra.ExactArgs(0),
		RunE:  runAVSConcentration,
	}

	return cmd
}

func runAVSConcentration(cmd *cobra.Command, _ []string) error {
	ctx, svc, err := buildService(cmd.Context())
	if err != nil {
		return err
	}

	return svc.RunAVSConcentration(ctx)
}
