package cmd

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"onchainblackjack/internal/engine"
	"onchainblackjack/internal/notify"
)

func watchCmd(n *node) *cobra.Command {
	var (
		participant string
		asJSON      bool
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow live episode updates published by a node",
		Long: `Watch subscribes to the Redis channels a node publishes episode updates on
and prints each one as it arrives.

Examples:
  # every episode
  bjd watch --redis-addr localhost:6379

  # only episodes where this key deals or plays, as JSON lines
  bjd watch --participant <hex ed25519 pubkey> --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if n.cfg.RedisAddr == "" {
				return errors.New("watch needs --redis-addr")
			}
			out := cmd.OutOrStdout()
			enc := json.NewEncoder(out)

			var sink engine.Notifier = engine.NotifierFunc(func(note engine.Notification) {
				if asJSON {
					_ = enc.Encode(note)
					return
				}
				head := fmt.Sprintf("[%s pos=%d]", note.Kind, note.Position)
				if note.Reason != nil {
					head += " " + note.Reason.Log
				}
				_, _ = fmt.Fprintf(out, "%s\n%s\n\n", head, note.Snapshot)
			})
			if participant != "" {
				pub, err := hex.DecodeString(participant)
				if err != nil {
					return fmt.Errorf("participant key: %w", err)
				}
				sink = notify.ForParticipant(pub, sink)
			}

			rdb := redis.NewClient(&redis.Options{Addr: n.cfg.RedisAddr})
			defer func() { _ = rdb.Close() }()
			n.logger.Info("watching", "redis", n.cfg.RedisAddr, "pattern", notify.AllEpisodesPattern(n.cfg.RedisPrefix))
			return notify.Watch(cmd.Context(), rdb, n.cfg.RedisPrefix, sink)
		},
	}
	cmd.Flags().StringVar(&participant, "participant", "", "only show episodes of this hex ed25519 public key")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print notifications as JSON lines")
	return cmd
}
