package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"onchainblackjack/internal/engine"
	"onchainblackjack/internal/episode"
	"onchainblackjack/internal/feed"
	"onchainblackjack/internal/notify"
)

func replayCmd(n *node) *cobra.Command {
	var (
		episodeID string
		asJSON    bool
		verbose   bool
	)
	cmd := &cobra.Command{
		Use:   "replay <ledger.jsonl|->",
		Short: "Rebuild episodes from a recorded ledger and print their state",
		Long: `Replay feeds every record of a JSON-lines ledger to a fresh set of episodes,
exactly as an observer following the ledger would, and prints the final state.

Records are {"pos":N,"episodeId":"<hex>","tx":"<base64>"} or {"rollback":N}.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer func() { _ = f.Close() }()
				r = f
			}

			opts := []engine.HubOption{
				engine.HubLogger(n.logger),
				engine.HubFinalityDepth(n.cfg.FinalityDepth),
			}
			if verbose {
				opts = append(opts, engine.HubNotifier(notify.NewLogger(n.logger)))
			}
			h := engine.NewHub(opts...)

			stats, err := feed.Run(cmd.Context(), r, h, nil)
			if err != nil {
				return err
			}
			n.logger.Info("replay done", "applied", stats.Applied, "rejected", stats.Rejected, "aborted", stats.Aborted, "rollbacks", stats.Rollbacks)

			ids := h.Episodes()
			if episodeID != "" {
				if h.Engine(episodeID) == nil {
					return fmt.Errorf("episode %s not in ledger", episodeID)
				}
				ids = []string{episodeID}
			}
			snaps := make([]episode.Snapshot, 0, len(ids))
			for _, id := range ids {
				s, _ := h.Snapshot(id)
				snaps = append(snaps, s)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{"stats": stats, "appHash": fmt.Sprintf("%X", h.AppHash()), "episodes": snaps})
			}
			for _, s := range snaps {
				if _, err := fmt.Fprintf(out, "%s\n\n", s); err != nil {
					return err
				}
			}
			_, err = fmt.Fprintf(out, "applied=%d rejected=%d aborted=%d rollbacks=%d app_hash=%X\n",
				stats.Applied, stats.Rejected, stats.Aborted, stats.Rollbacks, h.AppHash())
			return err
		},
	}
	cmd.Flags().StringVar(&episodeID, "episode", "", "print only this episode")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print snapshots as JSON")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log every episode update")
	return cmd
}
