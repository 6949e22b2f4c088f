// Package engine bridges an ordered ledger feed to the episode state machine.
// It keeps the applied-command log and the checkpoint chain that make
// rollback on ledger reorganization exact.
package engine

import (
	"fmt"
	"sort"
	"sync"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/log"

	"onchainblackjack/internal/codec"
	"onchainblackjack/internal/episode"
)

type checkpoint struct {
	pos uint64
	ep  *episode.Episode // never mutated once recorded
}

// Engine replays one episode. All methods are safe for concurrent use; Apply
// and RollbackTo are serialized.
type Engine struct {
	mu sync.Mutex

	id       string
	logger   log.Logger
	store    Store
	finality uint64
	subs     []Notifier

	current     *episode.Episode
	checkpoints []checkpoint // ascending; checkpoints[0] is the rollback floor
	entries     []Entry
	lastPos     uint64

	halted     error
	persistErr error
}

type Option func(*Engine)

// WithFinalityDepth prunes checkpoints more than depth positions behind the
// newest applied position. Zero keeps every checkpoint.
func WithFinalityDepth(depth uint64) Option {
	return func(e *Engine) { e.finality = depth }
}

func WithStore(s Store) Option {
	return func(e *Engine) { e.store = s }
}

func WithLogger(l log.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.subs = append(e.subs, n) }
}

// New returns an engine for episodeID holding only the genesis checkpoint at
// position 0.
func New(episodeID string, opts ...Option) *Engine {
	e := &Engine{id: episodeID, logger: log.NewNopLogger()}
	for _, o := range opts {
		o(e)
	}
	e.logger = e.logger.With("episode", shortID(episodeID))
	e.current = episode.New(episodeID)
	e.checkpoints = []checkpoint{{pos: 0, ep: e.current}}
	return e
}

// Restore rebuilds an engine from its persisted checkpoints and log.
func Restore(episodeID string, s Store, opts ...Option) (*Engine, error) {
	e := New(episodeID, append(opts, WithStore(s))...)
	p, err := s.Load(episodeID)
	if err != nil {
		return nil, fmt.Errorf("load episode %s: %w", episodeID, err)
	}
	if len(p.Checkpoints) > 0 {
		// Without a stored genesis the chain was pruned and starts above 0.
		e.checkpoints = e.checkpoints[:0]
		for _, sc := range p.Checkpoints {
			ep, err := episode.Decode(sc.State)
			if err != nil {
				return nil, fmt.Errorf("checkpoint %d: %w", sc.Position, err)
			}
			if ep.ID != episodeID {
				return nil, fmt.Errorf("checkpoint %d belongs to episode %s", sc.Position, ep.ID)
			}
			e.checkpoints = append(e.checkpoints, checkpoint{pos: sc.Position, ep: ep})
		}
	}
	e.current = e.checkpoints[len(e.checkpoints)-1].ep
	e.lastPos = e.checkpoints[len(e.checkpoints)-1].pos
	e.entries = append(e.entries, p.Entries...)
	if n := len(e.entries); n > 0 && e.entries[n-1].Position > e.lastPos {
		e.lastPos = e.entries[n-1].Position
	}
	e.logger.Info("restored episode", "checkpoints", len(e.checkpoints), "entries", len(e.entries), "last_pos", e.lastPos)
	return e, nil
}

func (e *Engine) ID() string { return e.id }

// Subscribe registers n for every later notification.
func (e *Engine) Subscribe(n Notifier) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subs = append(e.subs, n)
}

// Apply feeds the command at a ledger position to the episode. Bad input is a
// reported rejection, never a Go error.
func (e *Engine) Apply(position uint64, raw []byte) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.halted != nil {
		return e.result(position, StatusRejected, errorsmod.Wrap(ErrEngineHalted, e.halted.Error()), nil)
	}
	if position <= e.lastPos {
		return e.result(position, StatusRejected, errorsmod.Wrapf(ErrStalePosition, "position %d, last %d", position, e.lastPos), nil)
	}
	e.lastPos = position

	cmd, err := codec.DecodeAndAuthenticate(raw, e.id)
	if err != nil {
		return e.reject(position, raw, err)
	}
	next, err := e.current.Clone()
	if err != nil {
		return e.reject(position, raw, err)
	}
	eff, err := next.Apply(cmd)
	if !eff.Changed {
		return e.reject(position, raw, err)
	}

	status, kind := StatusApplied, KindApplied
	if err != nil {
		status, kind = StatusAborted, KindAborted
	}
	e.current = next
	e.checkpoints = append(e.checkpoints, checkpoint{pos: position, ep: next})
	e.record(Entry{Position: position, Tx: raw, Status: status, Reason: reasonOf(err), Seq: next.Seq})
	e.persistCheckpoint(position, next)
	e.prune()

	res := e.result(position, status, err, eff.Events)
	e.logger.Debug("applied command", "pos", position, "type", cmd.Type(), "status", status, "seq", next.Seq)
	e.notify(Notification{
		Kind:      kind,
		EpisodeID: e.id,
		Position:  position,
		Snapshot:  res.Snapshot,
		Events:    eff.Events,
		Reason:    res.Reason,
	})
	return res
}

func (e *Engine) reject(position uint64, raw []byte, err error) Result {
	e.record(Entry{Position: position, Tx: raw, Status: StatusRejected, Reason: reasonOf(err), Seq: e.current.Seq})
	e.logger.Debug("rejected command", "pos", position, "err", err)
	return e.result(position, StatusRejected, err, nil)
}

func (e *Engine) result(position uint64, status Status, err error, events []episode.Event) Result {
	return Result{
		Position:  position,
		EpisodeID: e.id,
		Status:    status,
		Reason:    reasonOf(err),
		Snapshot:  e.current.Snapshot(),
		Events:    events,
	}
}

func (e *Engine) record(en Entry) {
	e.entries = append(e.entries, en)
	if e.store != nil {
		e.persist(e.store.SaveEntry(e.id, en))
	}
}

func (e *Engine) persistCheckpoint(position uint64, ep *episode.Episode) {
	if e.store == nil {
		return
	}
	if len(e.checkpoints) == 2 && e.checkpoints[0].pos == 0 {
		e.saveCheckpoint(0, e.checkpoints[0].ep)
	}
	e.saveCheckpoint(position, ep)
}

func (e *Engine) saveCheckpoint(position uint64, ep *episode.Episode) {
	b, err := ep.Encode()
	if err != nil {
		e.persist(err)
		return
	}
	e.persist(e.store.SaveCheckpoint(e.id, position, b))
}

// persist keeps the first storage failure; the host decides whether to stop.
func (e *Engine) persist(err error) {
	if err == nil {
		return
	}
	e.logger.Error("persist episode", "err", err)
	if e.persistErr == nil {
		e.persistErr = err
	}
}

// prune drops checkpoints deeper than the finality depth, keeping the newest
// finalized one as the rollback floor.
func (e *Engine) prune() {
	if e.finality == 0 || e.lastPos <= e.finality {
		return
	}
	final := e.lastPos - e.finality
	floor := 0
	for i, cp := range e.checkpoints {
		if cp.pos > final {
			break
		}
		floor = i
	}
	if floor == 0 {
		return
	}
	e.checkpoints = append([]checkpoint(nil), e.checkpoints[floor:]...)
	if e.store != nil {
		e.persist(e.store.PruneCheckpoints(e.id, e.checkpoints[0].pos))
	}
}

// RollbackTo restores the newest checkpoint at or before position and forgets
// everything after it. The resulting state is exactly the state reached had
// the later positions never been seen. When no such checkpoint exists the
// engine halts and returns ErrRollbackInconsistency.
func (e *Engine) RollbackTo(position uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.halted != nil {
		return errorsmod.Wrap(ErrEngineHalted, e.halted.Error())
	}
	idx := sort.Search(len(e.checkpoints), func(i int) bool { return e.checkpoints[i].pos > position }) - 1
	if idx < 0 {
		e.halted = errorsmod.Wrapf(ErrRollbackInconsistency, "rollback to %d, oldest checkpoint %d", position, e.checkpoints[0].pos)
		e.logger.Error("episode halted", "err", e.halted)
		return e.halted
	}

	e.checkpoints = e.checkpoints[:idx+1]
	e.current = e.checkpoints[idx].ep
	n := sort.Search(len(e.entries), func(i int) bool { return e.entries[i].Position > position })
	dropped := len(e.entries) - n
	e.entries = e.entries[:n]
	if position < e.lastPos {
		e.lastPos = position
	}
	if e.store != nil {
		e.persist(e.store.Truncate(e.id, position))
	}

	e.logger.Info("rolled back", "pos", position, "checkpoint", e.checkpoints[idx].pos, "dropped", dropped)
	e.notify(Notification{
		Kind:      KindRollback,
		EpisodeID: e.id,
		Position:  position,
		Snapshot:  e.current.Snapshot(),
	})
	return nil
}

func (e *Engine) notify(n Notification) {
	for _, s := range e.subs {
		s.Notify(n)
	}
}

// Snapshot returns the public view of the current state.
func (e *Engine) Snapshot() episode.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current.Snapshot()
}

// State returns a copy of the current episode.
func (e *Engine) State() (*episode.Episode, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current.Clone()
}

func (e *Engine) Hash() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current.Hash()
}

func (e *Engine) PendingReveal() episode.Pending {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current.PendingReveal()
}

// History returns a copy of the applied-command log.
func (e *Engine) History() []Entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Entry(nil), e.entries...)
}

// Checkpoints lists the retained checkpoint positions.
func (e *Engine) Checkpoints() []uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]uint64, 0, len(e.checkpoints))
	for _, cp := range e.checkpoints {
		out = append(out, cp.pos)
	}
	return out
}

func (e *Engine) LastPosition() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastPos
}

// Halted returns the fatal error that stopped the engine, if any.
func (e *Engine) Halted() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.halted
}

// PersistErr returns the first storage failure, if any.
func (e *Engine) PersistErr() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.persistErr
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
