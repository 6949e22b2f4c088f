package engine

import (
	errorsmod "cosmossdk.io/errors"

	"onchainblackjack/internal/episode"
)

type Status string

const (
	// StatusApplied: the command was accepted.
	StatusApplied Status = "applied"
	// StatusRejected: the command was refused and the episode is unchanged.
	StatusRejected Status = "rejected"
	// StatusAborted: a shuffle failure aborted the round setup. The episode
	// changed and a checkpoint was recorded.
	StatusAborted Status = "aborted"
)

// Reason is the structured cause attached to a rejected or aborted command.
type Reason struct {
	Codespace string `json:"codespace"`
	Code      uint32 `json:"code"`
	Log       string `json:"log"`
}

func reasonOf(err error) *Reason {
	if err == nil {
		return nil
	}
	cs, code, log := errorsmod.ABCIInfo(err, false)
	return &Reason{Codespace: cs, Code: code, Log: log}
}

// Result is the outcome of applying one ledger position.
type Result struct {
	Position  uint64           `json:"pos"`
	EpisodeID string           `json:"episodeId"`
	Status    Status           `json:"status"`
	Reason    *Reason          `json:"reason,omitempty"`
	Snapshot  episode.Snapshot `json:"snapshot"`
	Events    []episode.Event  `json:"events,omitempty"`
}

// Changed reports whether the position mutated the episode.
func (r Result) Changed() bool {
	return r.Status == StatusApplied || r.Status == StatusAborted
}

// Entry is one record of the applied-command log. Every position handed to an
// engine gets an entry except stale ones, which would break ordering.
type Entry struct {
	Position uint64  `json:"pos"`
	Tx       []byte  `json:"tx"`
	Status   Status  `json:"status"`
	Reason   *Reason `json:"reason,omitempty"`
	Seq      uint64  `json:"seq"` // episode seq after the entry
}

type Kind string

const (
	KindApplied  Kind = "applied"
	KindAborted  Kind = "aborted"
	KindRollback Kind = "rollback"
)

// Notification is pushed to subscribers after every state change.
type Notification struct {
	Kind      Kind             `json:"kind"`
	EpisodeID string           `json:"episodeId"`
	Position  uint64           `json:"pos"`
	Snapshot  episode.Snapshot `json:"snapshot"`
	Events    []episode.Event  `json:"events,omitempty"`
	Reason    *Reason          `json:"reason,omitempty"`
}

// Notifier receives notifications. Notify is called with the engine lock
// held, in ledger order: implementations must not block and must not call
// back into the engine.
type Notifier interface {
	Notify(Notification)
}

type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// StoredCheckpoint is a checkpoint in its persisted form.
type StoredCheckpoint struct {
	Position uint64
	State    []byte // episode.Episode.Encode
}

// Persisted is everything a Store holds for one episode, in position order.
type Persisted struct {
	Checkpoints []StoredCheckpoint
	Entries     []Entry
}

// Store persists the checkpoint chain and the applied-command log. The
// genesis checkpoint at position 0 is stored together with the first
// checkpoint after it; a chain loaded without it has been pruned.
type Store interface {
	SaveCheckpoint(episodeID string, position uint64, state []byte) error
	SaveEntry(episodeID string, e Entry) error
	// Truncate deletes checkpoints and entries after position.
	Truncate(episodeID string, position uint64) error
	// PruneCheckpoints deletes checkpoints before position.
	PruneCheckpoints(episodeID string, position uint64) error
	Load(episodeID string) (Persisted, error)
	Episodes() ([]string, error)
}
