package episode

import (
	"fmt"

	"onchainblackjack/internal/cards"
	"onchainblackjack/internal/hand"
)

type Phase string

const (
	PhaseAwaitingOpponent Phase = "awaiting_opponent"
	PhaseAwaitingDeal     Phase = "awaiting_deal"
	PhaseRoundInProgress  Phase = "round_in_progress"
	PhaseRoundSettled     Phase = "round_settled"
)

// Role is fixed for the lifetime of an episode. It indexes the per-role arrays
// of Episode and Round.
type Role uint8

const (
	RoleDealer Role = 0
	RolePlayer Role = 1
)

func (r Role) String() string {
	switch r {
	case RoleDealer:
		return "dealer"
	case RolePlayer:
		return "player"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

func (r Role) Other() Role { return 1 - r }

func (r Role) MarshalText() ([]byte, error) {
	if r > RolePlayer {
		return nil, fmt.Errorf("invalid role %d", uint8(r))
	}
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(b []byte) error {
	switch string(b) {
	case "dealer":
		*r = RoleDealer
	case "player":
		*r = RolePlayer
	default:
		return fmt.Errorf("invalid role %q", string(b))
	}
	return nil
}

type Outcome string

const (
	OutcomeNone       Outcome = ""
	OutcomePlayerBust Outcome = "player_bust"
	OutcomeDealerBust Outcome = "dealer_bust"
	OutcomePlayerWin  Outcome = "player_win"
	OutcomeDealerWin  Outcome = "dealer_win"
	OutcomePush       Outcome = "push"
)

// Winner reports which role took the round; ok is false for a push or an
// unsettled round.
func (o Outcome) Winner() (r Role, ok bool) {
	switch o {
	case OutcomeDealerBust, OutcomePlayerWin:
		return RolePlayer, true
	case OutcomePlayerBust, OutcomeDealerWin:
		return RoleDealer, true
	default:
		return 0, false
	}
}

// Episode is the authoritative state of one game between two participants.
//
// It holds no maps so that its JSON encoding, and therefore Hash, is
// canonical.
type Episode struct {
	ID    string `json:"id"`
	Phase Phase  `json:"phase"`

	Dealer []byte `json:"dealer,omitempty"` // ed25519 pubkey
	Player []byte `json:"player,omitempty"` // ed25519 pubkey

	// Seq counts consumed commands. The next command must carry Seq+1.
	Seq uint64 `json:"seq"`

	Round *Round `json:"round,omitempty"`

	RoundsPlayed uint64 `json:"roundsPlayed"`
	DealerWins   uint64 `json:"dealerWins"`
	PlayerWins   uint64 `json:"playerWins"`
	Pushes       uint64 `json:"pushes"`
}

// Round is one deal-to-settlement cycle. While the episode is in
// PhaseAwaitingDeal a non-nil Round is a setup collecting commitments and
// reveals; Deck stays empty until both seeds verify.
type Round struct {
	Number uint64 `json:"number"`

	Commits [2][]byte `json:"commits"`
	Seeds   [2][]byte `json:"seeds"`

	Deck   []cards.Card `json:"deck,omitempty"`
	Cursor int          `json:"cursor"`

	DealerHand []cards.Card `json:"dealerHand,omitempty"`
	PlayerHand []cards.Card `json:"playerHand,omitempty"`

	Turn    Role    `json:"turn"`
	Outcome Outcome `json:"outcome,omitempty"`
}

func (r *Round) Hand(role Role) []cards.Card {
	if role == RoleDealer {
		return r.DealerHand
	}
	return r.PlayerHand
}

func (r *Round) Value(role Role) hand.Value {
	return hand.Evaluate(r.Hand(role))
}

func (r *Round) dealt() bool { return len(r.Deck) > 0 }

// draw moves the next undrawn card into role's hand. A round never needs more
// than a fraction of the deck before both hands bust or stand.
func (r *Round) draw(role Role) cards.Card {
	c := r.Deck[r.Cursor]
	r.Cursor++
	if role == RoleDealer {
		r.DealerHand = append(r.DealerHand, c)
	} else {
		r.PlayerHand = append(r.PlayerHand, c)
	}
	return c
}

// Event is an observable consequence of an accepted command.
type Event struct {
	Type  string            `json:"type"`
	Attrs map[string]string `json:"attrs,omitempty"`
}

const (
	EventEpisodeInit   = "episode_init"
	EventShuffleCommit = "shuffle_commit"
	EventShuffleReveal = "shuffle_reveal"
	EventRoundAborted  = "round_aborted"
	EventRoundDealt    = "round_dealt"
	EventCardDrawn     = "card_drawn"
	EventTurnPassed    = "turn_passed"
	EventRoundSettled  = "round_settled"
)

// Effect describes what Apply did. Changed is true whenever the episode was
// mutated, including the abort transitions that are also reported as errors.
type Effect struct {
	Changed bool
	Events  []Event
}

func (e *Effect) emit(typ string, kv ...string) {
	ev := Event{Type: typ}
	if len(kv) > 0 {
		ev.Attrs = make(map[string]string, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			ev.Attrs[kv[i]] = kv[i+1]
		}
	}
	e.Events = append(e.Events, ev)
}
