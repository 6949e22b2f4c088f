package episode

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"onchainblackjack/internal/cards"
	"onchainblackjack/internal/codec"
	"onchainblackjack/internal/hand"
	"onchainblackjack/internal/shuffle"
	"onchainblackjack/internal/testutil"
)

func apply(t *testing.T, e *Episode, raw []byte) (Effect, error) {
	t.Helper()
	cmd, err := codec.DecodeAndAuthenticate(raw, e.ID)
	require.NoError(t, err)
	return e.Apply(cmd)
}

func mustApply(t *testing.T, e *Episode, raws ...[]byte) {
	t.Helper()
	for i, raw := range raws {
		eff, err := apply(t, e, raw)
		require.NoError(t, err, "command %d", i)
		require.True(t, eff.Changed)
	}
}

// requireRejected asserts a rejection that leaves e bit-identical.
func requireRejected(t *testing.T, e *Episode, raw []byte, want error) {
	t.Helper()
	before := e.Hash()
	eff, err := apply(t, e, raw)
	require.Error(t, err)
	require.True(t, errors.Is(err, want), "got %v, want %v", err, want)
	require.False(t, eff.Changed)
	require.Empty(t, eff.Events)
	require.Equal(t, before, e.Hash())
}

func started(t *testing.T, g *testutil.Game) *Episode {
	t.Helper()
	e := New(g.ID)
	mustApply(t, e, g.Init(t))
	return e
}

func dealt(t *testing.T, g *testutil.Game, ds, ps []byte) *Episode {
	t.Helper()
	e := started(t, g)
	mustApply(t, e, g.Round(t, ds, ps)...)
	return e
}

func TestInit_TransitionsToAwaitingDeal(t *testing.T) {
	g := testutil.NewGame(1)
	e := New(g.ID)
	require.Equal(t, PhaseAwaitingOpponent, e.Phase)

	eff, err := apply(t, e, g.Init(t))
	require.NoError(t, err)
	require.True(t, eff.Changed)
	require.Equal(t, EventEpisodeInit, eff.Events[0].Type)

	require.Equal(t, PhaseAwaitingDeal, e.Phase)
	require.Equal(t, []byte(g.Dealer.Pub), e.Dealer)
	require.Equal(t, []byte(g.Player.Pub), e.Player)
	require.Equal(t, uint64(1), e.Seq)
	require.Nil(t, e.Round)

	role, ok := e.RoleOf(g.Player.Pub)
	require.True(t, ok)
	require.Equal(t, RolePlayer, role)
}

func TestInit_Rejections(t *testing.T) {
	g := testutil.NewGame(1)

	t.Run("command before init", func(t *testing.T) {
		requireRejected(t, New(g.ID), g.Player.Next(t, g.ID, codec.Hit{}), ErrWrongPhase)
	})
	t.Run("nonce does not derive the id", func(t *testing.T) {
		raw := g.Dealer.Next(t, g.ID, codec.Init{Opponent: g.Player.Pub, Nonce: g.Nonce + 1})
		requireRejected(t, New(g.ID), raw, ErrInvalidInit)
	})
	t.Run("issued by someone other than the initiator", func(t *testing.T) {
		raw := g.Player.Next(t, g.ID, codec.Init{Opponent: g.Dealer.Pub, Nonce: g.Nonce})
		requireRejected(t, New(g.ID), raw, ErrInvalidInit)
	})
	t.Run("self as opponent", func(t *testing.T) {
		raw := g.Dealer.Next(t, g.ID, codec.Init{Opponent: g.Dealer.Pub, Nonce: g.Nonce})
		requireRejected(t, New(g.ID), raw, ErrInvalidInit)
	})
	t.Run("second init", func(t *testing.T) {
		g2 := testutil.NewGame(2)
		e := started(t, g2)
		requireRejected(t, e, g2.Dealer.Next(t, g2.ID, codec.Init{Opponent: g2.Player.Pub, Nonce: 2}), ErrWrongPhase)
	})
	t.Run("init out of sequence", func(t *testing.T) {
		raw := g.Dealer.CmdSeq(t, g.ID, 2, codec.Init{Opponent: g.Player.Pub, Nonce: g.Nonce})
		requireRejected(t, New(g.ID), raw, ErrSequenceGap)
	})
}

func TestApply_RejectsForeignEpisode(t *testing.T) {
	g := testutil.NewGame(1)
	other := testutil.NewGame(2)
	e := started(t, g)

	cmd, err := codec.DecodeAndAuthenticate(other.Dealer.Cmd(t, other.ID, codec.Hit{}), other.ID)
	require.NoError(t, err)
	_, err = e.Apply(cmd)
	require.True(t, errors.Is(err, codec.ErrEpisodeMismatch))
}

func TestRound_DealsPlayerFirst(t *testing.T) {
	g := testutil.NewGame(1)
	ds, ps := testutil.Seed("d"), testutil.Seed("p")
	e := started(t, g)

	raws := g.Round(t, ds, ps)
	mustApply(t, e, raws[:3]...)
	require.Equal(t, PhaseAwaitingDeal, e.Phase)
	require.Equal(t, Pending{Reveal: []Role{RolePlayer}}, e.PendingReveal())

	eff, err := apply(t, e, raws[3])
	require.NoError(t, err)
	types := make([]string, 0, len(eff.Events))
	for _, ev := range eff.Events {
		types = append(types, ev.Type)
	}
	require.Equal(t, []string{EventShuffleReveal, EventRoundDealt}, types)

	deck, err := shuffle.DeckFromSeeds(ds, ps, g.ID, 1)
	require.NoError(t, err)
	require.Equal(t, PhaseRoundInProgress, e.Phase)
	require.Equal(t, RolePlayer, e.Round.Turn)
	require.Equal(t, testutil.PlayerInitial(deck), e.Round.PlayerHand)
	require.Equal(t, testutil.DealerInitial(deck), e.Round.DealerHand)
	require.Equal(t, 4, e.Round.Cursor)
	require.Equal(t, uint64(5), e.Seq)
	require.True(t, e.PendingReveal().Empty())
}

func TestScenario_PlayerHitBustsSettlesImmediately(t *testing.T) {
	g := testutil.NewGame(1)
	ds, ps := testutil.FindSeeds(t, g.ID, 1, 5000, func(deck []cards.Card) bool {
		return hand.Evaluate(append(testutil.PlayerInitial(deck), deck[4])).Bust
	})
	e := dealt(t, g, ds, ps)

	eff, err := apply(t, e, g.Player.Cmd(t, g.ID, codec.Hit{}))
	require.NoError(t, err)
	require.Equal(t, EventRoundSettled, eff.Events[len(eff.Events)-1].Type)

	require.Equal(t, PhaseRoundSettled, e.Phase)
	require.Equal(t, OutcomePlayerBust, e.Round.Outcome)
	require.Len(t, e.Round.PlayerHand, 3)
	require.Len(t, e.Round.DealerHand, 2)
	require.Equal(t, uint64(1), e.DealerWins)
	require.Equal(t, uint64(1), e.RoundsPlayed)

	// No dealer command is needed, and none is accepted.
	requireRejected(t, e, g.Dealer.Next(t, g.ID, codec.Stand{}), ErrWrongPhase)
}

func TestScenario_PlayerStandsOn18(t *testing.T) {
	standOn18 := func(deck []cards.Card) bool {
		v := hand.Evaluate(testutil.PlayerInitial(deck))
		return v.Total == 18
	}

	t.Run("dealer draws to 19", func(t *testing.T) {
		g := testutil.NewGame(1)
		ds, ps := testutil.FindSeeds(t, g.ID, 1, 20000, func(deck []cards.Card) bool {
			return standOn18(deck) && hand.Evaluate(testutil.DealerFinal(deck, 4)).Total == 19
		})
		e := dealt(t, g, ds, ps)
		mustApply(t, e, g.Player.Cmd(t, g.ID, codec.Stand{}))

		require.Equal(t, PhaseRoundSettled, e.Phase)
		require.Equal(t, OutcomeDealerWin, e.Round.Outcome)
		require.Equal(t, 19, e.Round.Value(RoleDealer).Total)
		require.GreaterOrEqual(t, e.Round.Value(RoleDealer).Total, hand.DealerStandsOn)
	})

	t.Run("dealer busts", func(t *testing.T) {
		g := testutil.NewGame(2)
		ds, ps := testutil.FindSeeds(t, g.ID, 1, 20000, func(deck []cards.Card) bool {
			return standOn18(deck) && hand.Evaluate(testutil.DealerFinal(deck, 4)).Bust
		})
		e := dealt(t, g, ds, ps)
		mustApply(t, e, g.Player.Cmd(t, g.ID, codec.Stand{}))

		require.Equal(t, OutcomeDealerBust, e.Round.Outcome)
		require.Equal(t, uint64(1), e.PlayerWins)
		winner, ok := e.Round.Outcome.Winner()
		require.True(t, ok)
		require.Equal(t, RolePlayer, winner)
	})
}

func TestDealerAutoPlay_StopsAt17(t *testing.T) {
	g := testutil.NewGame(3)
	ds, ps := testutil.FindSeeds(t, g.ID, 1, 5000, func(deck []cards.Card) bool {
		return hand.Evaluate(testutil.DealerInitial(deck)).Total < 12
	})
	e := dealt(t, g, ds, ps)
	mustApply(t, e, g.Player.Cmd(t, g.ID, codec.Stand{}))

	dh := e.Round.DealerHand
	require.Greater(t, len(dh), 2)
	require.GreaterOrEqual(t, hand.Evaluate(dh).Total, hand.DealerStandsOn)
	require.Less(t, hand.Evaluate(dh[:len(dh)-1]).Total, hand.DealerStandsOn)
	require.Equal(t, len(dh)+2, e.Round.Cursor)
}

func TestTurnAndPhaseRejections(t *testing.T) {
	g := testutil.NewGame(1)
	e := started(t, g)
	requireRejected(t, e, g.Player.Next(t, g.ID, codec.Hit{}), ErrWrongPhase)
	requireRejected(t, e, g.Player.Next(t, g.ID, codec.Stand{}), ErrWrongPhase)

	e = dealt(t, g, testutil.Seed("d"), testutil.Seed("p"))
	requireRejected(t, e, g.Dealer.Next(t, g.ID, codec.Hit{}), ErrNotYourTurn)
	requireRejected(t, e, g.Dealer.Next(t, g.ID, codec.Stand{}), ErrNotYourTurn)
	requireRejected(t, e, g.Player.Next(t, g.ID, codec.DealRequest{Commitment: testutil.Commit(t, testutil.Seed("x"))}), ErrWrongPhase)
	requireRejected(t, e, g.Player.Next(t, g.ID, codec.ShuffleReveal{Seed: testutil.Seed("x")}), ErrWrongPhase)
}

func TestSequenceRejections(t *testing.T) {
	g := testutil.NewGame(1)
	e := started(t, g)

	dealerCommit := codec.DealRequest{Commitment: testutil.Commit(t, testutil.Seed("d"))}
	playerCommit := codec.DealRequest{Commitment: testutil.Commit(t, testutil.Seed("p"))}
	requireRejected(t, e, g.Dealer.CmdSeq(t, g.ID, 3, dealerCommit), ErrSequenceGap)
	mustApply(t, e, g.Dealer.Cmd(t, g.ID, dealerCommit))

	requireRejected(t, e, g.Dealer.CmdSeq(t, g.ID, 2, dealerCommit), ErrDuplicateSequence)
	requireRejected(t, e, g.Dealer.CmdSeq(t, g.ID, 1, dealerCommit), ErrDuplicateSequence)

	// Both participants draw from one counter.
	requireRejected(t, e, g.Player.CmdSeq(t, g.ID, 2, playerCommit), ErrDuplicateSequence)
	requireRejected(t, e, g.Player.CmdSeq(t, g.ID, 1, playerCommit), ErrDuplicateSequence)
	mustApply(t, e, g.Player.CmdSeq(t, g.ID, 3, playerCommit))
	require.Equal(t, uint64(3), e.Seq)

	stranger := testutil.NewParty("stranger")
	requireRejected(t, e, stranger.Cmd(t, g.ID, codec.ShuffleReveal{Seed: testutil.Seed("s")}), ErrUnknownParticipant)
}

func TestRejectedCommandStaysRejected(t *testing.T) {
	g := testutil.NewGame(1)
	e := started(t, g)

	// A hit sent before the deal is rejected.
	early := g.Player.Next(t, g.ID, codec.Hit{})
	requireRejected(t, e, early, ErrWrongPhase)
	requireRejected(t, e, early, ErrWrongPhase)

	// Once the round is dealt and it is the player's turn, the same signed
	// bytes must not become a hit the player never chose.
	mustApply(t, e, g.Round(t, testutil.Seed("d"), testutil.Seed("p"))...)
	require.Equal(t, PhaseRoundInProgress, e.Phase)
	require.Equal(t, RolePlayer, e.Round.Turn)
	requireRejected(t, e, early, ErrDuplicateSequence)
	require.Len(t, e.Round.PlayerHand, 2)

	// Signing ahead of the episode is refused too.
	requireRejected(t, e, g.Player.CmdSeq(t, g.ID, e.Seq+2, codec.Stand{}), ErrSequenceGap)
	mustApply(t, e, g.Player.Cmd(t, g.ID, codec.Stand{}))
	require.Equal(t, PhaseRoundSettled, e.Phase)
	requireRejected(t, e, early, ErrDuplicateSequence)
}

func TestInvalidSignatureDoesNotAdvanceSequence(t *testing.T) {
	g := testutil.NewGame(1)
	e := started(t, g)
	seq := e.Seq

	raw := g.Player.Next(t, g.ID, codec.DealRequest{Commitment: testutil.Commit(t, testutil.Seed("p"))})
	tampered := []byte(strings.Replace(string(raw), `"seq":2`, `"seq":3`, 1))
	require.NotEqual(t, raw, tampered)
	_, err := codec.DecodeAndAuthenticate(tampered, g.ID)
	require.True(t, errors.Is(err, codec.ErrBadSignature))

	// The untampered command is still accepted afterwards.
	require.Equal(t, seq, e.Seq)
	mustApply(t, e, raw)
	require.Equal(t, seq+1, e.Seq)
}

func TestShuffle_PrematureRevealAbortsRound(t *testing.T) {
	g := testutil.NewGame(1)
	e := started(t, g)
	ds := testutil.Seed("d")
	mustApply(t, e, g.Dealer.Cmd(t, g.ID, codec.DealRequest{Commitment: testutil.Commit(t, ds)}))

	eff, err := apply(t, e, g.Dealer.Cmd(t, g.ID, codec.ShuffleReveal{Seed: ds}))
	require.True(t, errors.Is(err, shuffle.ErrPrematureReveal), "got %v", err)
	require.True(t, eff.Changed)
	require.Equal(t, EventRoundAborted, eff.Events[0].Type)
	require.Equal(t, PhaseAwaitingDeal, e.Phase)
	require.Nil(t, e.Round)
	require.Equal(t, uint64(3), e.Seq)

	// A fresh deal restarts the round.
	mustApply(t, e, g.Round(t, testutil.Seed("d2"), testutil.Seed("p2"))...)
	require.Equal(t, PhaseRoundInProgress, e.Phase)
	require.Equal(t, uint64(1), e.Round.Number)
}

func TestShuffle_RevealWithoutSetupIsWrongPhase(t *testing.T) {
	g := testutil.NewGame(1)
	e := started(t, g)
	requireRejected(t, e, g.Player.Next(t, g.ID, codec.ShuffleReveal{Seed: testutil.Seed("p")}), ErrWrongPhase)
}

func TestShuffle_CommitmentMismatchAbortsRound(t *testing.T) {
	g := testutil.NewGame(1)
	e := started(t, g)
	ds, ps := testutil.Seed("d"), testutil.Seed("p")
	mustApply(t, e,
		g.Dealer.Cmd(t, g.ID, codec.DealRequest{Commitment: testutil.Commit(t, ds)}),
		g.Player.Cmd(t, g.ID, codec.DealRequest{Commitment: testutil.Commit(t, ps)}),
		g.Dealer.Cmd(t, g.ID, codec.ShuffleReveal{Seed: ds}),
	)
	honest := g.Player.Next(t, g.ID, codec.ShuffleReveal{Seed: ps})

	eff, err := apply(t, e, g.Player.Cmd(t, g.ID, codec.ShuffleReveal{Seed: testutil.Seed("not-p")}))
	require.True(t, errors.Is(err, shuffle.ErrCommitmentMismatch), "got %v", err)
	require.True(t, eff.Changed)
	require.Nil(t, e.Round)
	require.Equal(t, PhaseAwaitingDeal, e.Phase)

	// The aborted command's sequence number is consumed.
	requireRejected(t, e, honest, ErrDuplicateSequence)
}

func TestShuffle_DuplicateReveal(t *testing.T) {
	g := testutil.NewGame(1)
	e := started(t, g)
	ds := testutil.Seed("d")
	mustApply(t, e,
		g.Dealer.Cmd(t, g.ID, codec.DealRequest{Commitment: testutil.Commit(t, ds)}),
		g.Player.Cmd(t, g.ID, codec.DealRequest{Commitment: testutil.Commit(t, testutil.Seed("p"))}),
		g.Dealer.Cmd(t, g.ID, codec.ShuffleReveal{Seed: ds}),
	)

	requireRejected(t, e, g.Dealer.Next(t, g.ID, codec.ShuffleReveal{Seed: ds}), ErrDuplicateReveal)
}

func TestShuffle_RecommitRestartsSetup(t *testing.T) {
	g := testutil.NewGame(1)
	e := started(t, g)
	mustApply(t, e,
		g.Dealer.Cmd(t, g.ID, codec.DealRequest{Commitment: testutil.Commit(t, testutil.Seed("d1"))}),
		g.Player.Cmd(t, g.ID, codec.DealRequest{Commitment: testutil.Commit(t, testutil.Seed("p1"))}),
	)
	require.Equal(t, Pending{Reveal: []Role{RoleDealer, RolePlayer}}, e.PendingReveal())

	eff, err := apply(t, e, g.Dealer.Cmd(t, g.ID, codec.DealRequest{Commitment: testutil.Commit(t, testutil.Seed("d2"))}))
	require.NoError(t, err)
	require.Equal(t, "true", eff.Events[0].Attrs["restart"])
	require.Equal(t, Pending{Commit: []Role{RolePlayer}, Reveal: []Role{RoleDealer}}, e.PendingReveal())

	// Once the opponent has revealed, recommitting is refused.
	mustApply(t, e,
		g.Player.Cmd(t, g.ID, codec.DealRequest{Commitment: testutil.Commit(t, testutil.Seed("p2"))}),
		g.Player.Cmd(t, g.ID, codec.ShuffleReveal{Seed: testutil.Seed("p2")}),
	)
	requireRejected(t, e, g.Dealer.Next(t, g.ID, codec.DealRequest{Commitment: testutil.Commit(t, testutil.Seed("d3"))}), ErrRevealPending)

	mustApply(t, e, g.Dealer.Cmd(t, g.ID, codec.ShuffleReveal{Seed: testutil.Seed("d2")}))
	require.Equal(t, PhaseRoundInProgress, e.Phase)
}

func TestSettledRoundRestartsOnDeal(t *testing.T) {
	g := testutil.NewGame(1)
	e := dealt(t, g, testutil.Seed("d"), testutil.Seed("p"))
	mustApply(t, e, g.Player.Cmd(t, g.ID, codec.Stand{}))
	require.Equal(t, PhaseRoundSettled, e.Phase)
	require.Equal(t, uint64(1), e.RoundsPlayed)
	require.Equal(t, uint64(1), e.DealerWins+e.PlayerWins+e.Pushes)

	mustApply(t, e, g.Player.Cmd(t, g.ID, codec.DealRequest{Commitment: testutil.Commit(t, testutil.Seed("p2"))}))
	require.Equal(t, PhaseAwaitingDeal, e.Phase)
	require.Equal(t, uint64(2), e.Round.Number)
	require.Empty(t, e.Round.Deck)
	require.Equal(t, OutcomeNone, e.Round.Outcome)
}

func TestDealerTurn_StandAndHit(t *testing.T) {
	g := testutil.NewGame(1)

	t.Run("stand settles by comparison", func(t *testing.T) {
		e := dealt(t, g, testutil.Seed("d"), testutil.Seed("p"))
		e.Round.Turn = RoleDealer
		mustApply(t, e, g.Dealer.Cmd(t, g.ID, codec.Stand{}))
		require.Equal(t, PhaseRoundSettled, e.Phase)
		require.Len(t, e.Round.DealerHand, 2)
		require.Equal(t, Settle(e.Round.Value(RolePlayer), e.Round.Value(RoleDealer)), e.Round.Outcome)
	})

	t.Run("hit that busts", func(t *testing.T) {
		e := dealt(t, g, testutil.Seed("d"), testutil.Seed("p"))
		e.Round.Turn = RoleDealer
		e.Round.DealerHand = cards.MustParse("Kc", "Qd")
		e.Round.Deck[e.Round.Cursor] = cards.MustParse("5h")[0]
		mustApply(t, e, g.Dealer.Cmd(t, g.ID, codec.Hit{}))
		require.Equal(t, OutcomeDealerBust, e.Round.Outcome)
	})
}

func TestSettle(t *testing.T) {
	ev := func(cs ...string) hand.Value { return hand.Evaluate(cards.MustParse(cs...)) }
	cases := []struct {
		name           string
		player, dealer hand.Value
		want           Outcome
	}{
		{"player bust", ev("Kc", "Qd", "2h"), ev("Kh", "7c"), OutcomePlayerBust},
		{"both bust", ev("Kc", "Qd", "2h"), ev("Kh", "6c", "9d"), OutcomePlayerBust},
		{"dealer bust", ev("Kc", "8d"), ev("Kh", "6c", "9d"), OutcomeDealerBust},
		{"higher total", ev("Kc", "9d"), ev("Kh", "8c"), OutcomePlayerWin},
		{"lower total", ev("Kc", "7d"), ev("Kh", "9c"), OutcomeDealerWin},
		{"push", ev("Kc", "8d"), ev("9h", "9c"), OutcomePush},
		{"natural beats 21", ev("Ac", "Kd"), ev("7h", "7c", "7d"), OutcomePlayerWin},
		{"21 loses to natural", ev("7h", "7c", "7d"), ev("Ac", "Kd"), OutcomeDealerWin},
		{"naturals push", ev("Ac", "Kd"), ev("As", "Qh"), OutcomePush},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Settle(tc.player, tc.dealer))
		})
	}
}

func TestDeterministicReplay(t *testing.T) {
	g := testutil.NewGame(7)
	raws := [][]byte{g.Init(t)}
	raws = append(raws, g.Round(t, testutil.Seed("d"), testutil.Seed("p"))...)
	raws = append(raws, g.Player.Cmd(t, g.ID, codec.Stand{}))
	raws = append(raws, g.Round(t, testutil.Seed("d2"), testutil.Seed("p2"))...)
	raws = append(raws, g.Player.Cmd(t, g.ID, codec.Hit{}))

	a, b := New(g.ID), New(g.ID)
	for _, raw := range raws {
		effA, errA := apply(t, a, raw)
		effB, errB := apply(t, b, raw)
		require.Equal(t, errA == nil, errB == nil)
		require.Equal(t, effA, effB)
	}
	require.Equal(t, a.Hash(), b.Hash())
	require.Equal(t, a.Snapshot(), b.Snapshot())
}

func TestCloneAndCodec(t *testing.T) {
	g := testutil.NewGame(1)
	e := dealt(t, g, testutil.Seed("d"), testutil.Seed("p"))

	c, err := e.Clone()
	require.NoError(t, err)
	require.Equal(t, e.Hash(), c.Hash())

	mustApply(t, c, g.Player.Cmd(t, g.ID, codec.Hit{}))
	require.NotEqual(t, e.Hash(), c.Hash())
	require.Len(t, e.Round.PlayerHand, 2)

	_, err = Decode([]byte(`{"seq":1}`))
	require.Error(t, err)
}

func TestSnapshot(t *testing.T) {
	g := testutil.NewGame(1)
	e := started(t, g)
	mustApply(t, e, g.Dealer.Cmd(t, g.ID, codec.DealRequest{Commitment: testutil.Commit(t, testutil.Seed("d"))}))

	s := e.Snapshot()
	require.Equal(t, PhaseAwaitingDeal, s.Phase)
	require.Equal(t, []Role{RolePlayer}, s.Round.Pending.Commit)
	require.Contains(t, s.String(), "awaiting commitment: player")

	e = dealt(t, g, testutil.Seed("d"), testutil.Seed("p"))
	s = e.Snapshot()
	require.Equal(t, "player", s.Round.Turn)
	require.Len(t, s.Round.PlayerHand, 2)
	require.Equal(t, 4, s.Round.CardsDrawn)
	require.Equal(t, e.Round.Value(RolePlayer), s.Round.PlayerValue)

	out := s.String()
	require.Contains(t, out, "phase=round_in_progress")
	require.Contains(t, out, "turn=player")
	require.Contains(t, out, "player: "+strings.Join(cards.Strings(e.Round.PlayerHand), " "))
}
