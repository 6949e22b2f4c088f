// Package store persists episode checkpoints and applied-command logs in a
// cosmos-db key-value database.
//
// Layout:
//
//	ep/<id>                 -> {} (episode index)
//	cp/<id>/<u64be pos>     -> episode JSON
//	log/<id>/<u64be pos>    -> engine.Entry JSON
//	meta/commit             -> last committed {height, appHash}
package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	dbm "github.com/cosmos/cosmos-db"

	"onchainblackjack/internal/engine"
)

var _ engine.Store = (*Store)(nil)

const (
	prefixEpisode    = "ep/"
	prefixCheckpoint = "cp/"
	prefixLog        = "log/"
	keyCommit        = "meta/commit"
)

type Store struct {
	db dbm.DB
}

func New(db dbm.DB) *Store {
	return &Store{db: db}
}

// Open opens (or creates) the named database under dir with the given
// cosmos-db backend, e.g. "goleveldb" or "memdb".
func Open(name, backend, dir string) (*Store, error) {
	db, err := dbm.NewDB(name, dbm.BackendType(backend), dir)
	if err != nil {
		return nil, fmt.Errorf("open %s db %q: %w", backend, name, err)
	}
	return New(db), nil
}

func (s *Store) Close() error { return s.db.Close() }

func episodeKey(id string) []byte { return []byte(prefixEpisode + id) }

func posKey(prefix, id string, pos uint64) []byte {
	k := []byte(prefix + id + "/")
	return binary.BigEndian.AppendUint64(k, pos)
}

func rangeOf(prefix, id string) (start, end []byte) {
	start = []byte(prefix + id + "/")
	return start, prefixEnd(start)
}

// prefixEnd returns the smallest key greater than every key with prefix p.
func prefixEnd(p []byte) []byte {
	end := append([]byte(nil), p...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

func (s *Store) SaveCheckpoint(episodeID string, position uint64, state []byte) error {
	b := s.db.NewBatch()
	defer b.Close()
	if err := b.Set(episodeKey(episodeID), []byte("{}")); err != nil {
		return err
	}
	if err := b.Set(posKey(prefixCheckpoint, episodeID, position), state); err != nil {
		return err
	}
	if err := b.Write(); err != nil {
		return fmt.Errorf("save checkpoint %d: %w", position, err)
	}
	return nil
}

func (s *Store) SaveEntry(episodeID string, e engine.Entry) error {
	v, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	b := s.db.NewBatch()
	defer b.Close()
	if err := b.Set(episodeKey(episodeID), []byte("{}")); err != nil {
		return err
	}
	if err := b.Set(posKey(prefixLog, episodeID, e.Position), v); err != nil {
		return err
	}
	if err := b.Write(); err != nil {
		return fmt.Errorf("save entry %d: %w", e.Position, err)
	}
	return nil
}

// Truncate deletes checkpoints and log entries after position.
func (s *Store) Truncate(episodeID string, position uint64) error {
	if position == math.MaxUint64 {
		return nil
	}
	var keys [][]byte
	for _, prefix := range []string{prefixCheckpoint, prefixLog} {
		_, end := rangeOf(prefix, episodeID)
		ks, err := s.keys(posKey(prefix, episodeID, position+1), end)
		if err != nil {
			return err
		}
		keys = append(keys, ks...)
	}
	return s.deleteKeys(keys)
}

// PruneCheckpoints deletes checkpoints before position.
func (s *Store) PruneCheckpoints(episodeID string, position uint64) error {
	start, _ := rangeOf(prefixCheckpoint, episodeID)
	keys, err := s.keys(start, posKey(prefixCheckpoint, episodeID, position))
	if err != nil {
		return err
	}
	return s.deleteKeys(keys)
}

func (s *Store) Load(episodeID string) (engine.Persisted, error) {
	var p engine.Persisted

	start, end := rangeOf(prefixCheckpoint, episodeID)
	err := s.iterate(start, end, func(k, v []byte) error {
		p.Checkpoints = append(p.Checkpoints, engine.StoredCheckpoint{
			Position: binary.BigEndian.Uint64(k[len(k)-8:]),
			State:    append([]byte(nil), v...),
		})
		return nil
	})
	if err != nil {
		return p, err
	}

	start, end = rangeOf(prefixLog, episodeID)
	err = s.iterate(start, end, func(k, v []byte) error {
		var e engine.Entry
		if err := json.Unmarshal(v, &e); err != nil {
			return fmt.Errorf("decode entry %x: %w", k, err)
		}
		p.Entries = append(p.Entries, e)
		return nil
	})
	return p, err
}

// Episodes lists every episode with persisted data, in id order.
func (s *Store) Episodes() ([]string, error) {
	start := []byte(prefixEpisode)
	var ids []string
	err := s.iterate(start, prefixEnd(start), func(k, _ []byte) error {
		ids = append(ids, string(k[len(prefixEpisode):]))
		return nil
	})
	return ids, err
}

// Commit is the last block the ABCI application committed.
type Commit struct {
	Height  int64  `json:"height"`
	AppHash []byte `json:"appHash"`
}

func (s *Store) SaveCommit(c Commit) error {
	v, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode commit: %w", err)
	}
	if err := s.db.SetSync([]byte(keyCommit), v); err != nil {
		return fmt.Errorf("save commit: %w", err)
	}
	return nil
}

// LastCommit returns the zero Commit when nothing was committed yet.
func (s *Store) LastCommit() (Commit, error) {
	var c Commit
	v, err := s.db.Get([]byte(keyCommit))
	if err != nil {
		return c, fmt.Errorf("read commit: %w", err)
	}
	if v == nil {
		return c, nil
	}
	if err := json.Unmarshal(v, &c); err != nil {
		return c, fmt.Errorf("decode commit: %w", err)
	}
	return c, nil
}

func (s *Store) iterate(start, end []byte, fn func(k, v []byte) error) error {
	it, err := s.db.Iterator(start, end)
	if err != nil {
		return err
	}
	defer it.Close()
	for ; it.Valid(); it.Next() {
		if err := fn(it.Key(), it.Value()); err != nil {
			return err
		}
	}
	return it.Error()
}

func (s *Store) keys(start, end []byte) ([][]byte, error) {
	var out [][]byte
	err := s.iterate(start, end, func(k, _ []byte) error {
		out = append(out, append([]byte(nil), k...))
		return nil
	})
	return out, err
}

func (s *Store) deleteKeys(keys [][]byte) error {
	if len(keys) == 0 {
		return nil
	}
	b := s.db.NewBatch()
	defer b.Close()
	for _, k := range keys {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return b.Write()
}
