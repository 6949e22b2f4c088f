package cmd

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"onchainblackjack/internal/codec"
	"onchainblackjack/internal/shuffle"
)

func commitCmd() *cobra.Command {
	var seedB64 string
	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Draw a shuffle seed and print it with its commitment",
		Long: `Commit prints a fresh shuffle seed and the commitment to post in a
deal_request. Keep the seed private until both commitments are on the ledger,
then post it in a shuffle_reveal. Never reuse a seed, even one revealed in an
aborted round.

With --seed the commitment of an existing base64 seed is printed instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				seed []byte
				err  error
			)
			if seedB64 != "" {
				seed, err = base64.StdEncoding.DecodeString(seedB64)
			} else {
				seed, err = shuffle.NewSeed(rand.Reader)
			}
			if err != nil {
				return err
			}
			commitment, err := shuffle.Commit(seed)
			if err != nil {
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(struct {
				Seed       []byte `json:"seed"`
				Commitment []byte `json:"commitment"`
			}{seed, commitment})
		},
	}
	cmd.Flags().StringVar(&seedB64, "seed", "", "base64 seed to commit to instead of a fresh one")
	return cmd
}

func episodeIDCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "episode-id <dealer hex pubkey> <nonce>",
		Short: "Print the episode id an init command with this key and nonce opens",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pub, err := hex.DecodeString(args[0])
			if err != nil || len(pub) != ed25519.PublicKeySize {
				return fmt.Errorf("dealer key must be %d hex bytes", ed25519.PublicKeySize)
			}
			nonce, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("nonce: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), codec.DeriveEpisodeID(pub, nonce))
			return err
		},
	}
}
