package episode

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"onchainblackjack/internal/cards"
	"onchainblackjack/internal/hand"
)

// Snapshot is the public view of an episode pushed to participants and
// observers. The undrawn part of the deck is never included.
type Snapshot struct {
	EpisodeID string `json:"episodeId"`
	Phase     Phase  `json:"phase"`
	Dealer    string `json:"dealer,omitempty"` // hex pubkey
	Player    string `json:"player,omitempty"` // hex pubkey
	Seq       uint64 `json:"seq"`

	Round *RoundView `json:"round,omitempty"`

	RoundsPlayed uint64 `json:"roundsPlayed"`
	DealerWins   uint64 `json:"dealerWins"`
	PlayerWins   uint64 `json:"playerWins"`
	Pushes       uint64 `json:"pushes"`
}

type RoundView struct {
	Number      uint64     `json:"number"`
	DealerHand  []string   `json:"dealerHand"`
	PlayerHand  []string   `json:"playerHand"`
	DealerValue hand.Value `json:"dealerValue"`
	PlayerValue hand.Value `json:"playerValue"`
	Turn        string     `json:"turn,omitempty"`
	Outcome     Outcome    `json:"outcome,omitempty"`
	CardsDrawn  int        `json:"cardsDrawn"`
	Pending     Pending    `json:"pending"`
}

// Pending lists the participants a round setup is still waiting on.
type Pending struct {
	Commit []Role `json:"commit,omitempty"`
	Reveal []Role `json:"reveal,omitempty"`
}

func (p Pending) Empty() bool { return len(p.Commit) == 0 && len(p.Reveal) == 0 }

// PendingReveal reports who still owes a commitment or a reveal for the round
// being set up. Timeouts are left to the caller: a stalled setup can be
// restarted with a fresh DealRequest.
func (e *Episode) PendingReveal() Pending {
	var p Pending
	if e.Phase != PhaseAwaitingDeal || e.Round == nil {
		return p
	}
	for _, role := range []Role{RoleDealer, RolePlayer} {
		switch {
		case e.Round.Commits[role] == nil:
			p.Commit = append(p.Commit, role)
		case e.Round.Seeds[role] == nil:
			p.Reveal = append(p.Reveal, role)
		}
	}
	return p
}

// Snapshot renders the public view of e.
func (e *Episode) Snapshot() Snapshot {
	s := Snapshot{
		EpisodeID:    e.ID,
		Phase:        e.Phase,
		Dealer:       hex.EncodeToString(e.Dealer),
		Player:       hex.EncodeToString(e.Player),
		Seq:          e.Seq,
		RoundsPlayed: e.RoundsPlayed,
		DealerWins:   e.DealerWins,
		PlayerWins:   e.PlayerWins,
		Pushes:       e.Pushes,
	}
	if r := e.Round; r != nil {
		v := &RoundView{
			Number:      r.Number,
			DealerHand:  cards.Strings(r.DealerHand),
			PlayerHand:  cards.Strings(r.PlayerHand),
			DealerValue: r.Value(RoleDealer),
			PlayerValue: r.Value(RolePlayer),
			Outcome:     r.Outcome,
			CardsDrawn:  r.Cursor,
			Pending:     e.PendingReveal(),
		}
		if e.Phase == PhaseRoundInProgress {
			v.Turn = r.Turn.String()
		}
		s.Round = v
	}
	return s
}

// String renders a short multi-line status for terminals and logs.
func (s Snapshot) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "episode %s phase=%s seq=%d\n", short(s.EpisodeID), s.Phase, s.Seq)
	if r := s.Round; r != nil {
		fmt.Fprintf(&b, "round %d", r.Number)
		if r.Turn != "" {
			fmt.Fprintf(&b, " turn=%s", r.Turn)
		}
		if r.Outcome != OutcomeNone {
			fmt.Fprintf(&b, " outcome=%s", r.Outcome)
		}
		b.WriteByte('\n')
		if r.CardsDrawn > 0 {
			fmt.Fprintf(&b, "  dealer: %-24s %s\n", strings.Join(r.DealerHand, " "), valueString(r.DealerValue))
			fmt.Fprintf(&b, "  player: %-24s %s\n", strings.Join(r.PlayerHand, " "), valueString(r.PlayerValue))
		}
		if len(r.Pending.Commit) > 0 {
			fmt.Fprintf(&b, "  awaiting commitment: %s\n", rolesString(r.Pending.Commit))
		}
		if len(r.Pending.Reveal) > 0 {
			fmt.Fprintf(&b, "  awaiting reveal: %s\n", rolesString(r.Pending.Reveal))
		}
	}
	fmt.Fprintf(&b, "score dealer=%d player=%d push=%d", s.DealerWins, s.PlayerWins, s.Pushes)
	return b.String()
}

func valueString(v hand.Value) string {
	switch {
	case v.Blackjack:
		return "(blackjack)"
	case v.Bust:
		return fmt.Sprintf("(%d bust)", v.Total)
	case v.Soft:
		return fmt.Sprintf("(soft %d)", v.Total)
	default:
		return fmt.Sprintf("(%d)", v.Total)
	}
}

func rolesString(rs []Role) string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.String())
	}
	return strings.Join(out, ", ")
}

func short(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// Encode is the canonical JSON form of e, used for checkpoints and Hash.
func (e *Episode) Encode() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode episode: %w", err)
	}
	return b, nil
}

func Decode(b []byte) (*Episode, error) {
	var out Episode
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode episode: %w", err)
	}
	if out.ID == "" || out.Phase == "" {
		return nil, fmt.Errorf("decode episode: missing id or phase")
	}
	return &out, nil
}

// Clone returns a deep copy of e.
func (e *Episode) Clone() (*Episode, error) {
	if e == nil {
		return nil, fmt.Errorf("episode is nil")
	}
	b, err := e.Encode()
	if err != nil {
		return nil, err
	}
	return Decode(b)
}

// Hash commits to the full episode state, deck included.
func (e *Episode) Hash() []byte {
	b, err := e.Encode()
	if err != nil {
		// Episode holds only plain fields; encoding cannot fail.
		panic(err)
	}
	sum := sha256.Sum256(b)
	return sum[:]
}
