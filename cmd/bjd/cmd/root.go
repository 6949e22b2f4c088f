package cmd

import (
	"cosmossdk.io/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"onchainblackjack/internal/config"
)

// node carries the resolved configuration to the subcommands.
type node struct {
	v      *viper.Viper
	cfg    config.Config
	logger log.Logger
}

// NewRootCmd creates the bjd command tree. It is called once in main.
func NewRootCmd() *cobra.Command {
	n := &node{v: viper.New(), logger: log.NewNopLogger()}

	root := &cobra.Command{
		Use:   "bjd",
		Short: "Two-party blackjack episodes replayed from a ledger",
		Long: `bjd runs blackjack episodes whose every move is a signed command on a ledger.

The start command serves the episodes as a CometBFT ABCI application. The
replay command rebuilds them from a recorded JSON-lines ledger, and watch
follows live updates published on Redis.`,
		Version:       Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(n.v)
			if err != nil {
				return err
			}
			logger, err := cfg.NewLogger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			n.cfg, n.logger = cfg, logger
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	if err := config.BindFlags(root, n.v); err != nil {
		panic(err)
	}

	root.AddCommand(
		startCmd(n),
		replayCmd(n),
		watchCmd(n),
		commitCmd(),
		episodeIDCmd(),
		versionCmd(),
	)
	return root
}
