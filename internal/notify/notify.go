// Package notify delivers engine notifications to displays and broadcast
// layers. Every sink is non-blocking so a slow consumer never stalls replay.
package notify

import (
	"encoding/hex"
	"sync"
	"sync/atomic"

	"cosmossdk.io/log"

	"onchainblackjack/internal/engine"
)

// Channel buffers notifications for an in-process consumer. When the buffer
// is full the notification is dropped and counted.
type Channel struct {
	ch      chan engine.Notification
	dropped atomic.Uint64
}

func NewChannel(size int) *Channel {
	return &Channel{ch: make(chan engine.Notification, size)}
}

func (c *Channel) Notify(n engine.Notification) {
	select {
	case c.ch <- n:
	default:
		c.dropped.Add(1)
	}
}

func (c *Channel) C() <-chan engine.Notification { return c.ch }

func (c *Channel) Dropped() uint64 { return c.dropped.Load() }

// Logger writes a one-line summary of each notification.
type Logger struct {
	logger log.Logger
}

func NewLogger(l log.Logger) *Logger {
	return &Logger{logger: l.With("module", "notify")}
}

func (l *Logger) Notify(n engine.Notification) {
	kv := []any{
		"episode", n.EpisodeID,
		"kind", n.Kind,
		"pos", n.Position,
		"phase", n.Snapshot.Phase,
		"seq", n.Snapshot.Seq,
	}
	if r := n.Snapshot.Round; r != nil {
		kv = append(kv, "round", r.Number)
		if r.Outcome != "" {
			kv = append(kv, "outcome", r.Outcome)
		}
	}
	if n.Reason != nil {
		kv = append(kv, "reason", n.Reason.Log)
	}
	l.logger.Info("episode update", kv...)
}

// Multi fans a notification out to several sinks in order.
type Multi []engine.Notifier

func (m Multi) Notify(n engine.Notification) {
	for _, s := range m {
		s.Notify(n)
	}
}

// ForParticipant forwards only notifications of episodes where pub is the
// dealer or the player. Once an episode has matched it keeps matching, so a
// rollback that removes the Init still reaches the participant.
func ForParticipant(pub []byte, next engine.Notifier) engine.Notifier {
	return &participantFilter{key: hex.EncodeToString(pub), next: next, seen: map[string]bool{}}
}

type participantFilter struct {
	key  string
	next engine.Notifier

	mu   sync.Mutex
	seen map[string]bool
}

func (f *participantFilter) Notify(n engine.Notification) {
	f.mu.Lock()
	match := f.seen[n.EpisodeID] || n.Snapshot.Dealer == f.key || n.Snapshot.Player == f.key
	if match {
		f.seen[n.EpisodeID] = true
	}
	f.mu.Unlock()
	if match {
		f.next.Notify(n)
	}
}
