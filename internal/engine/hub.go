package engine

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sort"
	"sync"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/log"
	"golang.org/x/sync/errgroup"

	"onchainblackjack/internal/codec"
	"onchainblackjack/internal/episode"
)

// Hub owns one Engine per episode id. Engines share no mutable state, so
// different episodes can be applied and rolled back in parallel.
type Hub struct {
	mu      sync.RWMutex
	engines map[string]*Engine

	logger   log.Logger
	store    Store
	finality uint64
	subs     []Notifier
}

type HubOption func(*Hub)

func HubLogger(l log.Logger) HubOption {
	return func(h *Hub) { h.logger = l }
}

func HubStore(s Store) HubOption {
	return func(h *Hub) { h.store = s }
}

func HubFinalityDepth(depth uint64) HubOption {
	return func(h *Hub) { h.finality = depth }
}

// HubNotifier subscribes n to every engine the hub creates. Notifiers run while
// the hub is locked and must not call back into it.
func HubNotifier(n Notifier) HubOption {
	return func(h *Hub) { h.subs = append(h.subs, n) }
}

func NewHub(opts ...HubOption) *Hub {
	h := &Hub{engines: map[string]*Engine{}, logger: log.NewNopLogger()}
	for _, o := range opts {
		o(h)
	}
	h.logger = h.logger.With("module", "engine")
	return h
}

func (h *Hub) engineOptions() []Option {
	opts := []Option{WithLogger(h.logger), WithFinalityDepth(h.finality)}
	if h.store != nil {
		opts = append(opts, WithStore(h.store))
	}
	for _, n := range h.subs {
		opts = append(opts, WithNotifier(n))
	}
	return opts
}

// Restore loads every persisted episode. Episodes with no accepted command are
// skipped.
func (h *Hub) Restore() error {
	if h.store == nil {
		return nil
	}
	ids, err := h.store.Episodes()
	if err != nil {
		return fmt.Errorf("list episodes: %w", err)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, id := range ids {
		e, err := Restore(id, h.store, h.engineOptions()...)
		if err != nil {
			return err
		}
		if e.current.Seq == 0 {
			continue
		}
		h.engines[id] = e
	}
	h.logger.Info("restored episodes", "count", len(h.engines))
	return nil
}

// Route applies raw at position to the episode named inside the command.
func (h *Hub) Route(position uint64, raw []byte) Result {
	id, err := codec.PeekEpisodeID(raw)
	if err != nil {
		return Result{Position: position, Status: StatusRejected, Reason: reasonOf(err)}
	}
	return h.Apply(id, position, raw)
}

// Apply feeds raw at position to the engine of episodeID. An engine is created
// only for a command that changes a fresh episode, so junk traffic naming
// unknown ids leaves no state behind.
//
// The result depends on the ledger alone; Apply takes no context because every
// node must reach the same verdict. It holds the hub lock while the engine
// applies, so a concurrent RollbackTo sees either none or all of the command.
func (h *Hub) Apply(episodeID string, position uint64, raw []byte) Result {
	h.mu.RLock()
	if e, ok := h.engines[episodeID]; ok {
		defer h.mu.RUnlock()
		return e.Apply(position, raw)
	}
	h.mu.RUnlock()

	if err := probe(episodeID, raw); err != nil {
		return Result{
			Position:  position,
			EpisodeID: episodeID,
			Status:    StatusRejected,
			Reason:    reasonOf(err),
			Snapshot:  episode.New(episodeID).Snapshot(),
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	e, ok := h.engines[episodeID]
	if !ok {
		e = New(episodeID, h.engineOptions()...)
		h.engines[episodeID] = e
		h.logger.Info("new episode", "episode", episodeID, "pos", position)
	}
	return e.Apply(position, raw)
}

func probe(episodeID string, raw []byte) error {
	cmd, err := codec.DecodeAndAuthenticate(raw, episodeID)
	if err != nil {
		return err
	}
	_, err = episode.New(episodeID).Apply(cmd)
	return err
}

// RollbackTo rolls every episode back to position in parallel. Episodes left
// with no accepted command are dropped. The first error is returned after all
// engines have finished.
func (h *Hub) RollbackTo(ctx context.Context, position uint64) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	g, _ := errgroup.WithContext(ctx)
	for _, e := range h.engines {
		e := e
		g.Go(func() error {
			if err := e.RollbackTo(position); err != nil {
				return errorsmod.Wrapf(err, "episode %s", e.ID())
			}
			return nil
		})
	}
	err := g.Wait()

	for id, e := range h.engines {
		if e.Halted() == nil && e.Snapshot().Seq == 0 {
			delete(h.engines, id)
		}
	}
	if err != nil {
		h.logger.Error("rollback failed", "pos", position, "err", err)
	}
	return err
}

func (h *Hub) Engine(episodeID string) *Engine {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.engines[episodeID]
}

func (h *Hub) Snapshot(episodeID string) (episode.Snapshot, bool) {
	e := h.Engine(episodeID)
	if e == nil {
		return episode.Snapshot{}, false
	}
	return e.Snapshot(), true
}

// Episodes lists known episode ids in sorted order.
func (h *Hub) Episodes() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.engines))
	for id := range h.engines {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// AppHash commits to every episode's full state, ordered by id.
func (h *Hub) AppHash() []byte {
	hasher := sha256.New()
	for _, id := range h.Episodes() {
		e := h.Engine(id)
		if e == nil {
			continue
		}
		_, _ = hasher.Write([]byte(id))
		_, _ = hasher.Write([]byte{0})
		_, _ = hasher.Write(e.Hash())
	}
	return hasher.Sum(nil)
}

// PersistErr returns the first storage failure of any engine.
func (h *Hub) PersistErr() error {
	for _, id := range h.Episodes() {
		if e := h.Engine(id); e != nil {
			if err := e.PersistErr(); err != nil {
				return fmt.Errorf("episode %s: %w", id, err)
			}
		}
	}
	return nil
}

// Halted lists episodes stopped by a rollback inconsistency, by id.
func (h *Hub) Halted() map[string]error {
	out := map[string]error{}
	for _, id := range h.Episodes() {
		if e := h.Engine(id); e != nil {
			if err := e.Halted(); err != nil {
				out[id] = err
			}
		}
	}
	return out
}
