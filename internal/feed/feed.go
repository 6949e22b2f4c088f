// Package feed reads and writes a recorded ledger: JSON lines of positioned
// commands and rollback signals, in ledger order.
//
//	{"pos":42,"episodeId":"<hex>","tx":"<base64 command>"}
//	{"rollback":40}
package feed

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"onchainblackjack/internal/engine"
)

// Record is one line of a recorded ledger. Exactly one of Tx and Rollback is
// set.
type Record struct {
	Pos       uint64  `json:"pos,omitempty"`
	EpisodeID string  `json:"episodeId,omitempty"`
	Tx        []byte  `json:"tx,omitempty"`
	Rollback  *uint64 `json:"rollback,omitempty"`
}

func Apply(pos uint64, episodeID string, tx []byte) Record {
	return Record{Pos: pos, EpisodeID: episodeID, Tx: tx}
}

func Rollback(pos uint64) Record {
	return Record{Rollback: &pos}
}

func (r Record) validate() error {
	switch {
	case r.Rollback != nil && (r.Tx != nil || r.Pos != 0):
		return errors.New("record mixes rollback and command")
	case r.Rollback != nil:
		return nil
	case len(r.Tx) == 0:
		return errors.New("record has neither tx nor rollback")
	case r.Pos == 0:
		return errors.New("command record needs a positive pos")
	}
	return nil
}

// maxLine bounds a single record; commands are a few hundred bytes.
const maxLine = 1 << 20

type Reader struct {
	sc   *bufio.Scanner
	line int
}

func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	return &Reader{sc: sc}
}

// Next returns the next record, or io.EOF at the end. Blank lines are skipped.
func (r *Reader) Next() (Record, error) {
	for r.sc.Scan() {
		r.line++
		b := r.sc.Bytes()
		if len(bytes.TrimSpace(b)) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(b, &rec); err != nil {
			return Record{}, fmt.Errorf("line %d: %w", r.line, err)
		}
		if err := rec.validate(); err != nil {
			return Record{}, fmt.Errorf("line %d: %w", r.line, err)
		}
		return rec, nil
	}
	if err := r.sc.Err(); err != nil {
		return Record{}, fmt.Errorf("read feed: %w", err)
	}
	return Record{}, io.EOF
}

// Stats counts what a replay did.
type Stats struct {
	Applied   int `json:"applied"`
	Rejected  int `json:"rejected"`
	Aborted   int `json:"aborted"`
	Rollbacks int `json:"rollbacks"`
}

// Run drives h with every record of r until EOF or ctx is done. onResult, if
// set, sees each command result. A rollback inconsistency stops the run.
func Run(ctx context.Context, r io.Reader, h *engine.Hub, onResult func(engine.Result)) (Stats, error) {
	var st Stats
	rd := NewReader(r)
	for {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		rec, err := rd.Next()
		if errors.Is(err, io.EOF) {
			return st, nil
		}
		if err != nil {
			return st, err
		}

		if rec.Rollback != nil {
			st.Rollbacks++
			if err := h.RollbackTo(ctx, *rec.Rollback); err != nil {
				return st, fmt.Errorf("rollback to %d: %w", *rec.Rollback, err)
			}
			continue
		}

		var res engine.Result
		if rec.EpisodeID == "" {
			res = h.Route(rec.Pos, rec.Tx)
		} else {
			res = h.Apply(rec.EpisodeID, rec.Pos, rec.Tx)
		}
		switch res.Status {
		case engine.StatusApplied:
			st.Applied++
		case engine.StatusAborted:
			st.Aborted++
		default:
			st.Rejected++
		}
		if onResult != nil {
			onResult(res)
		}
	}
}

// Writer appends records to a recorded ledger. It is safe for concurrent use.
type Writer struct {
	mu  sync.Mutex
	w   io.Writer
	enc *json.Encoder
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, enc: json.NewEncoder(w)}
}

func (w *Writer) Write(rec Record) error {
	if err := rec.validate(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(rec); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}
