package shuffle

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	errorsmod "cosmossdk.io/errors"
	"golang.org/x/crypto/hkdf"

	"onchainblackjack/internal/cards"
)

// SeedSize is the exact length of a participant's shuffle seed and of a
// commitment.
const SeedSize = 32

const (
	// Keep these domains stable; every replaying observer derives decks from them.
	commitDomain  = "bj/v1/shuffle/commit"
	combineDomain = "bj/v1/shuffle/combine"
	deckDomain    = "bj/v1/shuffle/deck"
)

// NewSeed draws a fresh seed from r (normally crypto/rand.Reader).
func NewSeed(r io.Reader) ([]byte, error) {
	seed := make([]byte, SeedSize)
	if _, err := io.ReadFull(r, seed); err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	return seed, nil
}

// Commit returns the binding commitment a participant publishes before
// revealing seed.
func Commit(seed []byte) ([]byte, error) {
	if len(seed) != SeedSize {
		return nil, ErrInvalidSeed.Wrapf("seed must be %d bytes, got %d", SeedSize, len(seed))
	}
	sum := hashDomain(commitDomain, seed)
	return sum[:], nil
}

// VerifyReveal checks that seed opens commitment.
func VerifyReveal(commitment, seed []byte) error {
	want, err := Commit(seed)
	if err != nil {
		return err
	}
	if len(commitment) != SeedSize || !bytes.Equal(commitment, want) {
		return ErrCommitmentMismatch
	}
	return nil
}

// CombineSeeds derives the round's shared seed from both revealed seeds with
// HKDF-SHA256. The input keying material is dealerSeed || playerSeed in that
// fixed order; the episode id and round number are bound through the info
// parameter so identical seeds never repeat a deck across rounds.
func CombineSeeds(dealerSeed, playerSeed []byte, episodeID string, round uint64) ([32]byte, error) {
	var out [32]byte
	if len(dealerSeed) != SeedSize || len(playerSeed) != SeedSize {
		return out, ErrInvalidSeed.Wrap("both seeds must be present")
	}
	ikm := make([]byte, 0, 2*SeedSize)
	ikm = append(ikm, dealerSeed...)
	ikm = append(ikm, playerSeed...)

	var r8 [8]byte
	binary.BigEndian.PutUint64(r8[:], round)
	info := hashDomain(deckDomain, []byte(episodeID), r8[:])

	kdf := hkdf.New(sha256.New, ikm, []byte(combineDomain), info[:])
	if _, err := io.ReadFull(kdf, out[:]); err != nil {
		return out, errorsmod.Wrap(ErrInvalidSeed, err.Error())
	}
	return out, nil
}

// Deck permutes the 52-card set with a Fisher-Yates shuffle driven by a
// sha256(shared || counter) stream. The result depends only on shared.
func Deck(shared [32]byte) []cards.Card {
	deck := cards.OrderedDeck()
	rng := newHashRNG(shared)
	for i := len(deck) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		deck[i], deck[j] = deck[j], deck[i]
	}
	return deck
}

// DeckFromSeeds is CombineSeeds followed by Deck.
func DeckFromSeeds(dealerSeed, playerSeed []byte, episodeID string, round uint64) ([]cards.Card, error) {
	shared, err := CombineSeeds(dealerSeed, playerSeed, episodeID, round)
	if err != nil {
		return nil, err
	}
	return Deck(shared), nil
}

func hashDomain(domain string, parts ...[]byte) [32]byte {
	h := sha256.New()
	_, _ = h.Write([]byte(domain))

	// Length-prefix each part to avoid ambiguous concatenations.
	var lenBuf [4]byte
	for _, p := range parts {
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(p)))
		_, _ = h.Write(lenBuf[:])
		_, _ = h.Write(p)
	}

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
