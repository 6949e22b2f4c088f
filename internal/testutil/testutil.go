// Package testutil holds deterministic keys, signed-command builders and deck
// search helpers shared by package tests.
package testutil

import (
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
	"testing"

	"onchainblackjack/internal/cards"
	"onchainblackjack/internal/codec"
	"onchainblackjack/internal/hand"
	"onchainblackjack/internal/shuffle"
)

// Key derives a stable ed25519 key pair from a label.
func Key(name string) (ed25519.PublicKey, ed25519.PrivateKey) {
	seed := sha256.Sum256([]byte("testkey/" + name))
	priv := ed25519.NewKeyFromSeed(seed[:])
	return priv.Public().(ed25519.PublicKey), priv
}

// Seed derives a stable 32-byte shuffle seed from a label.
func Seed(label string) []byte {
	s := sha256.Sum256([]byte("testseed/" + label))
	return s[:]
}

func Commit(t testing.TB, seed []byte) []byte {
	t.Helper()
	c, err := shuffle.Commit(seed)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	return c
}

// Party signs commands for the next sequence number of its episode. The two
// parties of a Game share one counter; a lone party counts for itself.
type Party struct {
	Name string
	Pub  ed25519.PublicKey
	Priv ed25519.PrivateKey

	seq *uint64
}

func NewParty(name string) *Party {
	pub, priv := Key(name)
	return &Party{Name: name, Pub: pub, Priv: priv, seq: new(uint64)}
}

// Cmd signs payload with the next sequence number and consumes it. Use it for
// commands the episode will accept or abort on.
func (p *Party) Cmd(t testing.TB, episodeID string, payload codec.Payload) []byte {
	t.Helper()
	*p.seq++
	return p.CmdSeq(t, episodeID, *p.seq, payload)
}

// Next signs payload with the next sequence number without consuming it, for
// commands the episode will reject.
func (p *Party) Next(t testing.TB, episodeID string, payload codec.Payload) []byte {
	t.Helper()
	return p.CmdSeq(t, episodeID, *p.seq+1, payload)
}

// CmdSeq signs payload with an explicit sequence number and leaves the
// counter untouched.
func (p *Party) CmdSeq(t testing.TB, episodeID string, seq uint64, payload codec.Payload) []byte {
	t.Helper()
	raw, err := codec.Sign(p.Priv, episodeID, seq, payload)
	if err != nil {
		t.Fatalf("sign %s: %v", payload.Type(), err)
	}
	return raw
}

// Seq is the last sequence number consumed by Cmd.
func (p *Party) Seq() uint64 { return *p.seq }

// Game is a dealer/player pair bound to one episode id.
type Game struct {
	ID     string
	Nonce  uint64
	Dealer *Party
	Player *Party
}

func NewGame(nonce uint64) *Game {
	d, p := NewParty("dealer"), NewParty("player")
	p.seq = d.seq
	return &Game{
		ID:     codec.DeriveEpisodeID(d.Pub, nonce),
		Nonce:  nonce,
		Dealer: d,
		Player: p,
	}
}

// Init starts the counter over, so one Game can open several fresh episodes
// with the same id.
func (g *Game) Init(t testing.TB) []byte {
	t.Helper()
	*g.Dealer.seq = 0
	return g.Dealer.Cmd(t, g.ID, codec.Init{Opponent: g.Player.Pub, Nonce: g.Nonce})
}

// Round returns the four commands that commit and reveal both seeds, in the
// order dealer commit, player commit, dealer reveal, player reveal.
func (g *Game) Round(t testing.TB, dealerSeed, playerSeed []byte) [][]byte {
	t.Helper()
	return [][]byte{
		g.Dealer.Cmd(t, g.ID, codec.DealRequest{Commitment: Commit(t, dealerSeed)}),
		g.Player.Cmd(t, g.ID, codec.DealRequest{Commitment: Commit(t, playerSeed)}),
		g.Dealer.Cmd(t, g.ID, codec.ShuffleReveal{Seed: dealerSeed}),
		g.Player.Cmd(t, g.ID, codec.ShuffleReveal{Seed: playerSeed}),
	}
}

// Deal order is player, dealer, player, dealer.

func PlayerInitial(deck []cards.Card) []cards.Card {
	return []cards.Card{deck[0], deck[2]}
}

func DealerInitial(deck []cards.Card) []cards.Card {
	return []cards.Card{deck[1], deck[3]}
}

// DealerFinal plays the dealer's fixed strategy from deck position next and
// returns the dealer's finished hand.
func DealerFinal(deck []cards.Card, next int) []cards.Card {
	h := DealerInitial(deck)
	for hand.DealerShouldDraw(h) {
		h = append(h, deck[next])
		next++
	}
	return h
}

// FindSeeds searches labelled seed pairs until the round's deck satisfies
// pred. It fails the test after tries attempts.
func FindSeeds(t testing.TB, episodeID string, round uint64, tries int, pred func(deck []cards.Card) bool) (dealerSeed, playerSeed []byte) {
	t.Helper()
	for i := 0; i < tries; i++ {
		ds := Seed(fmt.Sprintf("dealer/%d", i))
		ps := Seed(fmt.Sprintf("player/%d", i))
		deck, err := shuffle.DeckFromSeeds(ds, ps, episodeID, round)
		if err != nil {
			t.Fatalf("deck: %v", err)
		}
		if pred(deck) {
			return ds, ps
		}
	}
	t.Fatalf("no seed pair within %d tries satisfies the deck predicate", tries)
	return nil, nil
}
