package cards

import (
	"fmt"
	"strings"
)

// DeckSize is the number of distinct cards in a standard deck.
const DeckSize = 52

// Card is a 0..51 id, where:
// - rank = (id % 13) + 2  (2..14, ace high)
// - suit = (id / 13)      (0..3: clubs, diamonds, hearts, spades)
type Card uint8

const (
	RankJack  uint8 = 11
	RankQueen uint8 = 12
	RankKing  uint8 = 13
	RankAce   uint8 = 14
)

func (c Card) Rank() uint8 { // 2..14
	return uint8(c%13) + 2
}

func (c Card) Suit() uint8 { // 0..3
	return uint8(c / 13)
}

func (c Card) Valid() bool {
	return c < DeckSize
}

func (c Card) String() string {
	if !c.Valid() {
		return "??"
	}
	return string([]byte{rankChars[c.Rank()-2], suitChars[c.Suit()]})
}

const (
	rankChars = "23456789TJQKA"
	suitChars = "cdhs"
)

// New builds a card from a rank (2..14) and suit (0..3).
func New(rank, suit uint8) (Card, error) {
	if rank < 2 || rank > RankAce {
		return 0, fmt.Errorf("invalid rank %d", rank)
	}
	if suit > 3 {
		return 0, fmt.Errorf("invalid suit %d", suit)
	}
	return Card(suit*13 + (rank - 2)), nil
}

// Parse reads the two-character form produced by String, e.g. "As" or "Td".
func Parse(s string) (Card, error) {
	if len(s) != 2 {
		return 0, fmt.Errorf("invalid card %q", s)
	}
	r := strings.IndexByte(rankChars, strings.ToUpper(s[:1])[0])
	if r < 0 {
		return 0, fmt.Errorf("invalid card rank in %q", s)
	}
	st := strings.IndexByte(suitChars, strings.ToLower(s[1:])[0])
	if st < 0 {
		return 0, fmt.Errorf("invalid card suit in %q", s)
	}
	return New(uint8(r)+2, uint8(st))
}

// MustParse is Parse for fixed literals; it panics on malformed input.
func MustParse(cs ...string) []Card {
	out := make([]Card, 0, len(cs))
	for _, s := range cs {
		c, err := Parse(s)
		if err != nil {
			panic(err)
		}
		out = append(out, c)
	}
	return out
}

// OrderedDeck returns the 52 cards in id order.
func OrderedDeck() []Card {
	deck := make([]Card, DeckSize)
	for i := range deck {
		deck[i] = Card(i)
	}
	return deck
}

// Strings renders a card sequence for display.
func Strings(cs []Card) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.String())
	}
	return out
}
