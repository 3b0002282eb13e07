package cli

import (
	"github.com/spf13/cobra"
)

func DexVolumeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dex-volume",
		Short: "Render the daily per-DEX trading volume chart for the crisis week",
		Args:  cobra.ExactArgs(0),
		RunE:  runDexVolume,
	}

	return cmd
}

func runDexVolume(cmd *cobra.Command, _ []string) error {
	ctx, svc, err := buildService(cmd.Context())
	if err != nil {
		return err
	}

	return svc.RunDexVolume(ctx)
}
