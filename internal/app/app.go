// Package app runs the episode hub as a CometBFT ABCI application. Every tx is
// a signed blackjack command; its ledger position is derived from the block
// height and the tx index.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/log"
	abci "github.com/cometbft/cometbft/abci/types"

	"onchainblackjack/internal/codec"
	"onchainblackjack/internal/engine"
	"onchainblackjack/internal/episode"
	"onchainblackjack/internal/feed"
	"onchainblackjack/internal/store"
)

const (
	AppVersion uint64 = 1

	txIndexBits = 20
	// MaxBlockTxs is the number of txs a block can carry before positions of
	// consecutive heights would overlap.
	MaxBlockTxs = 1 << txIndexBits
)

// Position maps the tx at index of the block at height onto the ledger.
func Position(height int64, index int) uint64 {
	return uint64(height)<<txIndexBits | uint64(index)
}

// lastPosition is the highest position a block at height can use.
func lastPosition(height int64) uint64 {
	return Position(height+1, 0) - 1
}

type Option func(*BlackjackApp)

func WithLogger(l log.Logger) Option {
	return func(a *BlackjackApp) { a.logger = l }
}

// WithFinalityDepth bounds how far back, in ledger positions, checkpoints
// are kept.
func WithFinalityDepth(depth uint64) Option {
	return func(a *BlackjackApp) { a.finality = depth }
}

func WithNotifier(n engine.Notifier) Option {
	return func(a *BlackjackApp) { a.notifiers = append(a.notifiers, n) }
}

// WithRecorder appends every finalized tx to w so the ledger can be replayed
// offline.
func WithRecorder(w *feed.Writer) Option {
	return func(a *BlackjackApp) { a.recorder = w }
}

type BlackjackApp struct {
	*abci.BaseApplication

	logger    log.Logger
	finality  uint64
	notifiers []engine.Notifier
	recorder  *feed.Writer

	st  *store.Store
	hub *engine.Hub

	mu       sync.Mutex
	height   int64
	lastHash []byte
}

// New restores every episode from st and discards work of a block that was
// finalized but never committed; CometBFT replays that block after Info.
func New(ctx context.Context, st *store.Store, opts ...Option) (*BlackjackApp, error) {
	a := &BlackjackApp{
		BaseApplication: abci.NewBaseApplication(),
		logger:          log.NewNopLogger(),
		st:              st,
	}
	for _, o := range opts {
		o(a)
	}
	a.logger = a.logger.With("module", "app")

	hubOpts := []engine.HubOption{
		engine.HubLogger(a.logger),
		engine.HubStore(st),
		engine.HubFinalityDepth(a.finality),
	}
	for _, n := range a.notifiers {
		hubOpts = append(hubOpts, engine.HubNotifier(n))
	}
	a.hub = engine.NewHub(hubOpts...)
	if err := a.hub.Restore(); err != nil {
		return nil, err
	}

	c, err := st.LastCommit()
	if err != nil {
		return nil, err
	}
	if err := a.discardUncommitted(ctx, c.Height); err != nil {
		return nil, err
	}
	a.height = c.Height
	if c.Height > 0 {
		a.lastHash = a.hub.AppHash()
		if string(a.lastHash) != string(c.AppHash) {
			return nil, errorsmod.Wrapf(ErrAppHashMismatch, "height %d: have %X, committed %X", c.Height, a.lastHash, c.AppHash)
		}
	}
	a.logger.Info("app loaded", "height", a.height, "episodes", len(a.hub.Episodes()))
	return a, nil
}

func (a *BlackjackApp) discardUncommitted(ctx context.Context, height int64) error {
	limit := lastPosition(height)
	for _, id := range a.hub.Episodes() {
		if e := a.hub.Engine(id); e != nil && e.LastPosition() > limit {
			a.logger.Info("discarding uncommitted block", "after_height", height)
			return a.hub.RollbackTo(ctx, limit)
		}
	}
	return nil
}

// Hub exposes the episodes for in-process consumers.
func (a *BlackjackApp) Hub() *engine.Hub { return a.hub }

func (a *BlackjackApp) Info(_ context.Context, _ *abci.InfoRequest) (*abci.InfoResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	return &abci.InfoResponse{
		Data:             "onchain blackjack",
		Version:          "v1",
		AppVersion:       AppVersion,
		LastBlockHeight:  a.height,
		LastBlockAppHash: a.lastHash,
	}, nil
}

// CheckTx admits only commands that decode and carry a valid signature.
// Ordering and game rules are left to FinalizeBlock.
func (a *BlackjackApp) CheckTx(_ context.Context, req *abci.CheckTxRequest) (*abci.CheckTxResponse, error) {
	id, err := codec.PeekEpisodeID(req.Tx)
	if err == nil {
		_, err = codec.DecodeAndAuthenticate(req.Tx, id)
	}
	if err != nil {
		cs, code, msg := errorsmod.ABCIInfo(err, false)
		return &abci.CheckTxResponse{Code: code, Codespace: cs, Log: msg}, nil
	}
	return &abci.CheckTxResponse{Code: abci.CodeTypeOK}, nil
}

func (a *BlackjackApp) InitChain(_ context.Context, req *abci.InitChainRequest) (*abci.InitChainResponse, error) {
	a.logger.Info("init chain", "chain_id", req.ChainId, "initial_height", req.InitialHeight)
	return &abci.InitChainResponse{}, nil
}

// FinalizeBlock fails without touching state when ctx is already done. Once a
// block starts it runs to the end: tx results must not depend on local
// cancellation, or nodes would disagree on the app hash.
func (a *BlackjackApp) FinalizeBlock(ctx context.Context, req *abci.FinalizeBlockRequest) (*abci.FinalizeBlockResponse, error) {
	if len(req.Txs) > MaxBlockTxs {
		return nil, errorsmod.Wrapf(ErrBlockTooLarge, "height %d has %d txs", req.Height, len(req.Txs))
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("finalize block %d: %w", req.Height, err)
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	txResults := make([]*abci.ExecTxResult, 0, len(req.Txs))
	for i, tx := range req.Txs {
		pos := Position(req.Height, i)
		res := a.hub.Route(pos, tx)
		a.record(feed.Apply(pos, res.EpisodeID, tx))
		txResults = append(txResults, execResult(res))
	}

	a.height = req.Height
	a.lastHash = a.hub.AppHash()
	return &abci.FinalizeBlockResponse{
		TxResults: txResults,
		AppHash:   a.lastHash,
	}, nil
}

func (a *BlackjackApp) record(rec feed.Record) {
	if a.recorder == nil {
		return
	}
	if err := a.recorder.Write(rec); err != nil {
		a.logger.Error("record tx", "pos", rec.Pos, "err", err)
	}
}

// Commit fails when any checkpoint of the block could not be stored, so the
// node halts instead of committing state it cannot restore.
func (a *BlackjackApp) Commit(_ context.Context, _ *abci.CommitRequest) (*abci.CommitResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.hub.PersistErr(); err != nil {
		return nil, err
	}
	if err := a.st.SaveCommit(store.Commit{Height: a.height, AppHash: a.lastHash}); err != nil {
		return nil, err
	}
	for id, err := range a.hub.Halted() {
		a.logger.Error("episode halted", "episode", id, "err", err)
	}
	return &abci.CommitResponse{}, nil
}

// Query paths:
//   - /episodes
//   - /episode/<id>
//   - /episode/<id>/history
func (a *BlackjackApp) Query(_ context.Context, req *abci.QueryRequest) (*abci.QueryResponse, error) {
	a.mu.Lock()
	height := a.height
	a.mu.Unlock()

	v, err := a.query(strings.TrimSpace(req.Path))
	if err != nil {
		cs, code, msg := errorsmod.ABCIInfo(err, false)
		return &abci.QueryResponse{Code: code, Codespace: cs, Log: msg, Height: height}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &abci.QueryResponse{Code: abci.CodeTypeOK, Value: b, Height: height}, nil
}

func (a *BlackjackApp) query(path string) (any, error) {
	if path == "/episodes" {
		return a.hub.Episodes(), nil
	}
	rest, ok := strings.CutPrefix(path, "/episode/")
	if !ok {
		return nil, errorsmod.Wrap(ErrUnknownQuery, path)
	}
	id, sub, _ := strings.Cut(rest, "/")
	e := a.hub.Engine(id)
	if e == nil {
		return nil, errorsmod.Wrap(ErrEpisodeNotFound, id)
	}
	switch sub {
	case "":
		return e.Snapshot(), nil
	case "history":
		return e.History(), nil
	default:
		return nil, errorsmod.Wrap(ErrUnknownQuery, path)
	}
}

// execResult carries the engine result into the block: the reason as code and
// codespace, the episode events, and the snapshot as data.
func execResult(res engine.Result) *abci.ExecTxResult {
	out := &abci.ExecTxResult{Code: abci.CodeTypeOK}
	if res.Reason != nil {
		out.Code = res.Reason.Code
		out.Codespace = res.Reason.Codespace
		out.Log = res.Reason.Log
	}
	if !res.Changed() {
		return out
	}
	out.Data, _ = json.Marshal(res.Snapshot)
	for _, ev := range res.Events {
		out.Events = append(out.Events, abciEvent(res.EpisodeID, ev))
	}
	return out
}

func abciEvent(episodeID string, ev episode.Event) abci.Event {
	out := abci.Event{Type: ev.Type}
	keys := make([]string, 0, len(ev.Attrs))
	for k := range ev.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out.Attributes = append(out.Attributes, abci.EventAttribute{Key: "episode", Value: episodeID, Index: true})
	for _, k := range keys {
		out.Attributes = append(out.Attributes, abci.EventAttribute{Key: k, Value: ev.Attrs[k], Index: true})
	}
	return out
}
