// Package episode is the turn-aware state machine of a two-party blackjack
// episode. Apply is deterministic: every observer replaying the same accepted
// commands reaches the same Episode.
package episode

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"strconv"

	errorsmod "cosmossdk.io/errors"

	"onchainblackjack/internal/codec"
	"onchainblackjack/internal/shuffle"
)

// New returns an episode waiting for its Init command.
func New(id string) *Episode {
	return &Episode{ID: id, Phase: PhaseAwaitingOpponent}
}

// RoleOf maps an issuer key to its role in the episode.
func (e *Episode) RoleOf(issuer []byte) (Role, bool) {
	switch {
	case len(issuer) == 0:
		return 0, false
	case bytes.Equal(issuer, e.Dealer):
		return RoleDealer, true
	case bytes.Equal(issuer, e.Player):
		return RolePlayer, true
	default:
		return 0, false
	}
}

// Apply validates cmd against the current state and applies it.
//
// A nil error means the command was accepted. A non-nil error with
// Effect.Changed false is a rejection and the episode is unchanged. A non-nil
// error with Effect.Changed true is a shuffle failure: the round setup was
// aborted and the command still consumed its sequence number.
func (e *Episode) Apply(cmd codec.Command) (Effect, error) {
	if cmd.EpisodeID != e.ID {
		return Effect{}, errorsmod.Wrapf(codec.ErrEpisodeMismatch, "command for %s", cmd.EpisodeID)
	}
	if e.Phase == PhaseAwaitingOpponent {
		p, ok := cmd.Payload.(codec.Init)
		if !ok {
			return Effect{}, errorsmod.Wrapf(ErrWrongPhase, "%s before init", cmd.Type())
		}
		if err := e.checkSeq(cmd.Seq); err != nil {
			return Effect{}, err
		}
		return e.applyInit(cmd, p)
	}

	role, ok := e.RoleOf(cmd.Issuer)
	if !ok {
		return Effect{}, ErrUnknownParticipant
	}
	if err := e.checkSeq(cmd.Seq); err != nil {
		return Effect{}, err
	}

	switch p := cmd.Payload.(type) {
	case codec.Init:
		return Effect{}, errorsmod.Wrapf(ErrWrongPhase, "init in phase %s", e.Phase)
	case codec.DealRequest:
		return e.applyDealRequest(role, p)
	case codec.ShuffleReveal:
		return e.applyReveal(role, p)
	case codec.Hit:
		return e.applyHit(role)
	case codec.Stand:
		return e.applyStand(role)
	default:
		return Effect{}, errorsmod.Wrapf(ErrUnsupportedCommand, "%T", cmd.Payload)
	}
}

// checkSeq admits only the episode's next sequence number. Both participants
// share one counter, so a signed command is valid against exactly one
// episode state.
func (e *Episode) checkSeq(seq uint64) error {
	switch next := e.Seq + 1; {
	case seq < next:
		return errorsmod.Wrapf(ErrDuplicateSequence, "seq %d already used, next is %d", seq, next)
	case seq > next:
		return errorsmod.Wrapf(ErrSequenceGap, "seq %d, next is %d", seq, next)
	}
	return nil
}

// accept consumes the command's sequence number.
func (e *Episode) accept(eff *Effect) {
	e.Seq++
	eff.Changed = true
}

func (e *Episode) applyInit(cmd codec.Command, p codec.Init) (Effect, error) {
	if got := codec.DeriveEpisodeID(cmd.Issuer, p.Nonce); got != e.ID {
		return Effect{}, errorsmod.Wrapf(ErrInvalidInit, "episode id is not derived from issuer and nonce %d", p.Nonce)
	}
	if len(p.Opponent) != ed25519.PublicKeySize || bytes.Equal(p.Opponent, cmd.Issuer) {
		return Effect{}, errorsmod.Wrap(ErrInvalidInit, "opponent must be a distinct key")
	}

	var eff Effect
	e.Dealer = append([]byte(nil), cmd.Issuer...)
	e.Player = append([]byte(nil), p.Opponent...)
	e.Phase = PhaseAwaitingDeal
	e.accept(&eff)
	eff.emit(EventEpisodeInit,
		"dealer", hex.EncodeToString(e.Dealer),
		"player", hex.EncodeToString(e.Player),
	)
	return eff, nil
}

func (e *Episode) applyDealRequest(role Role, p codec.DealRequest) (Effect, error) {
	switch e.Phase {
	case PhaseAwaitingDeal, PhaseRoundSettled:
	default:
		return Effect{}, errorsmod.Wrapf(ErrWrongPhase, "deal_request in phase %s", e.Phase)
	}

	restart := false
	if e.Phase == PhaseAwaitingDeal && e.Round != nil && e.Round.Commits[role] != nil {
		if e.Round.Seeds[role.Other()] != nil {
			return Effect{}, errorsmod.Wrapf(ErrRevealPending, "%s cannot recommit", role)
		}
		restart = true
	}

	var eff Effect
	if e.Phase == PhaseRoundSettled || e.Round == nil || restart {
		e.Round = &Round{Number: e.RoundsPlayed + 1}
		e.Phase = PhaseAwaitingDeal
	}
	e.Round.Commits[role] = append([]byte(nil), p.Commitment...)
	e.accept(&eff)
	eff.emit(EventShuffleCommit,
		"round", strconv.FormatUint(e.Round.Number, 10),
		"role", role.String(),
		"restart", strconv.FormatBool(restart),
	)
	return eff, nil
}

func (e *Episode) applyReveal(role Role, p codec.ShuffleReveal) (Effect, error) {
	if e.Phase != PhaseAwaitingDeal || e.Round == nil {
		return Effect{}, errorsmod.Wrapf(ErrWrongPhase, "shuffle_reveal in phase %s without a round setup", e.Phase)
	}
	r := e.Round
	if r.Seeds[role] != nil {
		return Effect{}, errorsmod.Wrapf(ErrDuplicateReveal, "%s", role)
	}
	if r.Commits[RoleDealer] == nil || r.Commits[RolePlayer] == nil {
		return e.abort(role, errorsmod.Wrapf(shuffle.ErrPrematureReveal, "%s revealed before both commitments", role))
	}
	if err := shuffle.VerifyReveal(r.Commits[role], p.Seed); err != nil {
		return e.abort(role, errorsmod.Wrapf(err, "%s reveal", role))
	}

	var eff Effect
	other := r.Seeds[role.Other()]
	if other == nil {
		r.Seeds[role] = append([]byte(nil), p.Seed...)
		e.accept(&eff)
		eff.emit(EventShuffleReveal, "round", strconv.FormatUint(r.Number, 10), "role", role.String())
		return eff, nil
	}

	seeds := r.Seeds
	seeds[role] = p.Seed
	deck, err := shuffle.DeckFromSeeds(seeds[RoleDealer], seeds[RolePlayer], e.ID, r.Number)
	if err != nil {
		return Effect{}, err
	}
	r.Seeds[role] = append([]byte(nil), p.Seed...)
	r.Deck = deck
	e.accept(&eff)
	eff.emit(EventShuffleReveal, "round", strconv.FormatUint(r.Number, 10), "role", role.String())
	e.deal(&eff)
	return eff, nil
}

// abort drops the round setup. The command that caused it is consumed so it
// cannot be replayed.
func (e *Episode) abort(role Role, cause error) (Effect, error) {
	var eff Effect
	round := e.Round.Number
	e.Round = nil
	e.Phase = PhaseAwaitingDeal
	e.accept(&eff)
	eff.emit(EventRoundAborted,
		"round", strconv.FormatUint(round, 10),
		"role", role.String(),
		"reason", cause.Error(),
	)
	return eff, cause
}

// deal hands out the initial cards alternately, player first.
func (e *Episode) deal(eff *Effect) {
	r := e.Round
	for i := 0; i < 2; i++ {
		r.draw(RolePlayer)
		r.draw(RoleDealer)
	}
	r.Turn = RolePlayer
	e.Phase = PhaseRoundInProgress
	eff.emit(EventRoundDealt,
		"round", strconv.FormatUint(r.Number, 10),
		"player_total", strconv.Itoa(r.Value(RolePlayer).Total),
		"dealer_total", strconv.Itoa(r.Value(RoleDealer).Total),
	)
}

func (e *Episode) checkTurn(role Role, cmd string) error {
	if e.Phase != PhaseRoundInProgress || e.Round == nil {
		return errorsmod.Wrapf(ErrWrongPhase, "%s in phase %s", cmd, e.Phase)
	}
	if e.Round.Turn != role {
		return errorsmod.Wrapf(ErrNotYourTurn, "%s is %s's turn", cmd, e.Round.Turn)
	}
	return nil
}

func (e *Episode) applyHit(role Role) (Effect, error) {
	if err := e.checkTurn(role, codec.TypeHit); err != nil {
		return Effect{}, err
	}
	var eff Effect
	r := e.Round
	c := r.draw(role)
	v := r.Value(role)
	e.accept(&eff)
	eff.emit(EventCardDrawn,
		"role", role.String(),
		"card", c.String(),
		"total", strconv.Itoa(v.Total),
	)
	if v.Bust {
		if role == RolePlayer {
			e.settle(OutcomePlayerBust, &eff)
		} else {
			e.settle(OutcomeDealerBust, &eff)
		}
	}
	return eff, nil
}

func (e *Episode) applyStand(role Role) (Effect, error) {
	if err := e.checkTurn(role, codec.TypeStand); err != nil {
		return Effect{}, err
	}
	var eff Effect
	e.accept(&eff)
	if role == RolePlayer {
		e.Round.Turn = RoleDealer
		eff.emit(EventTurnPassed, "to", RoleDealer.String())
		e.dealerPlay(&eff)
	}
	e.settle(Settle(e.Round.Value(RolePlayer), e.Round.Value(RoleDealer)), &eff)
	return eff, nil
}
