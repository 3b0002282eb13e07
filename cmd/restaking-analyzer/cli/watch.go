package cli

import (
	"github.com/spf13/cobra"
)

func WatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-run the operator concentration analysis on a fixed interval",
		Args:  cobra.ExactArgs(0),
		RunE:  runWatch,
	}

	return cmd
}

func runWatch(cmd *cobra.Command, _ []string) error {
	ctx, svc, err := buildService(cmd.Context())
	if err != nil {
		return err
	}

	return svc.Watch(ctx)
}
