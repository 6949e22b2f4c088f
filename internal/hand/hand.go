package hand

import (
	"onchainblackjack/internal/cards"
)

const (
	// Limit is the highest non-bust total.
	Limit = 21

	// DealerStandsOn is the total at which the dealer stops drawing. The dealer
	// stands on every 17, soft or hard.
	DealerStandsOn = 17
)

// Value is the evaluation of a blackjack hand.
type Value struct {
	Total     int  `json:"total"`
	Soft      bool `json:"soft"`
	Bust      bool `json:"bust"`
	Blackjack bool `json:"blackjack"`
}

// Points returns the nominal blackjack points of a card: face cards count
// 10 and aces 11.
func Points(c cards.Card) int {
	r := c.Rank()
	switch {
	case r == cards.RankAce:
		return 11
	case r >= 10:
		return 10
	default:
		return int(r)
	}
}

// Evaluate scores a hand. Each ace counts 11 until that would bust the hand,
// then 1. A hand is soft while an ace still counts 11.
func Evaluate(hand []cards.Card) Value {
	total := 0
	aces := 0
	for _, c := range hand {
		total += Points(c)
		if c.Rank() == cards.RankAce {
			aces++
		}
	}
	for total > Limit && aces > 0 {
		total -= 10
		aces--
	}
	return Value{
		Total:     total,
		Soft:      aces > 0,
		Bust:      total > Limit,
		Blackjack: len(hand) == 2 && total == Limit,
	}
}

// Compare ranks two finished hands: +1 when a beats b, -1 when b beats a, 0 on
// a push. A bust hand loses to any non-bust hand; two bust hands push. A
// blackjack beats any other 21.
func Compare(a, b Value) int {
	switch {
	case a.Bust && b.Bust:
		return 0
	case a.Bust:
		return -1
	case b.Bust:
		return 1
	case a.Blackjack && !b.Blackjack:
		return 1
	case b.Blackjack && !a.Blackjack:
		return -1
	case a.Total > b.Total:
		return 1
	case a.Total < b.Total:
		return -1
	default:
		return 0
	}
}

// DealerShouldDraw reports whether the dealer's fixed strategy draws another
// card to this hand.
func DealerShouldDraw(hand []cards.Card) bool {
	return Evaluate(hand).Total < DealerStandsOn
}
