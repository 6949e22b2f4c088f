package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"onchainblackjack/internal/app"
)

// Version is set with -ldflags "-X onchainblackjack/cmd/bjd/cmd.Version=...".
var Version = "dev"

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the binary and application versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "bjd %s (app version %d)\n", Version, app.AppVersion)
			return err
		},
	}
}
