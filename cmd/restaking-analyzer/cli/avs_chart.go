package cli

import (
	"github.com/spf13/cobra"
)

func AVSChartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "avs-chart",
		Short: "Render the cross-market HHI comparison chart from stored summaries",
		Args:  cobra.ExactArgs(0),
		RunE:  runAVSChart,
	}

	return cmd
}

func runAVSChart(cmd *cobra.Command, _ []string) error {
	ctx, svc, err := buildService(cmd.Context())
	if err != nil {
		return err
	}

	return svc.RenderAVSChart(ctx)
}
