package episode

import (
	"strconv"

	"onchainblackjack/internal/hand"
)

// dealerPlay draws for the dealer until its total reaches hand.DealerStandsOn.
// It depends only on the deck, so every observer computes the same draws
// without a signed command per card.
func (e *Episode) dealerPlay(eff *Effect) {
	r := e.Round
	for hand.DealerShouldDraw(r.DealerHand) {
		c := r.draw(RoleDealer)
		eff.emit(EventCardDrawn,
			"role", RoleDealer.String(),
			"card", c.String(),
			"total", strconv.Itoa(r.Value(RoleDealer).Total),
		)
	}
}

// Settle decides the outcome of two finished hands.
func Settle(player, dealer hand.Value) Outcome {
	switch {
	case player.Bust:
		return OutcomePlayerBust
	case dealer.Bust:
		return OutcomeDealerBust
	}
	switch hand.Compare(player, dealer) {
	case 1:
		return OutcomePlayerWin
	case -1:
		return OutcomeDealerWin
	default:
		return OutcomePush
	}
}

func (e *Episode) settle(o Outcome, eff *Effect) {
	r := e.Round
	r.Outcome = o
	e.Phase = PhaseRoundSettled
	e.RoundsPlayed++
	if w, ok := o.Winner(); ok {
		if w == RoleDealer {
			e.DealerWins++
		} else {
			e.PlayerWins++
		}
	} else {
		e.Pushes++
	}
	eff.emit(EventRoundSettled,
		"round", strconv.FormatUint(r.Number, 10),
		"outcome", string(o),
		"player_total", strconv.Itoa(r.Value(RolePlayer).Total),
		"dealer_total", strconv.Itoa(r.Value(RoleDealer).Total),
	)
}
