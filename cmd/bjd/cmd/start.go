package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cometbft/cometbft/abci/server"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"onchainblackjack/internal/app"
	"onchainblackjack/internal/feed"
	"onchainblackjack/internal/notify"
	"onchainblackjack/internal/store"
)

func startCmd(n *node) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Serve the episodes as an ABCI application",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, logger := n.cfg, n.logger

			if err := os.MkdirAll(cfg.DataDir(), 0o755); err != nil {
				return fmt.Errorf("create data dir: %w", err)
			}
			st, err := store.Open("episodes", cfg.DBBackend, cfg.DataDir())
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			opts := []app.Option{
				app.WithLogger(logger),
				app.WithFinalityDepth(cfg.FinalityDepth),
			}
			if cfg.RedisAddr != "" {
				rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
				defer func() { _ = rdb.Close() }()
				if err := rdb.Ping(ctx).Err(); err != nil {
					return fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
				}
				sink := notify.NewRedisSink(rdb, cfg.RedisPrefix, notify.RedisLogger(logger))
				defer sink.Close()
				opts = append(opts, app.WithNotifier(sink))
			}
			if cfg.RecordFile != "" {
				if err := os.MkdirAll(filepath.Dir(cfg.RecordFile), 0o755); err != nil {
					return fmt.Errorf("create record dir: %w", err)
				}
				f, err := os.OpenFile(cfg.RecordFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
				if err != nil {
					return fmt.Errorf("open record file: %w", err)
				}
				defer func() { _ = f.Close() }()
				opts = append(opts, app.WithRecorder(feed.NewWriter(f)))
			}

			a, err := app.New(ctx, st, opts...)
			if err != nil {
				return fmt.Errorf("init app: %w", err)
			}
			srv, err := server.NewServer(cfg.ABCIAddr, cfg.Transport, a)
			if err != nil {
				return fmt.Errorf("create abci server: %w", err)
			}
			if err := srv.Start(); err != nil {
				return fmt.Errorf("abci server start: %w", err)
			}
			defer func() { _ = srv.Stop() }()

			logger.Info("abci server listening", "addr", cfg.ABCIAddr, "transport", cfg.Transport, "home", cfg.Home)
			<-ctx.Done()
			logger.Info("shutting down")
			return nil
		},
	}
}
