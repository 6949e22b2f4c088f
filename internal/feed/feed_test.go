package feed

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"onchainblackjack/internal/codec"
	"onchainblackjack/internal/engine"
	"onchainblackjack/internal/testutil"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.Write(Apply(1, "ab", []byte("tx1"))))
	require.NoError(t, w.Write(Rollback(0)))
	require.NoError(t, w.Write(Apply(2, "", []byte("tx2"))))
	require.Error(t, w.Write(Record{}))

	require.Contains(t, buf.String(), `{"rollback":0}`)

	r := NewReader(strings.NewReader(buf.String() + "\n   \n"))
	rec, err := r.Next()
	require.NoError(t, err)
	require.Equal(t, Apply(1, "ab", []byte("tx1")), rec)

	rec, err = r.Next()
	require.NoError(t, err)
	require.NotNil(t, rec.Rollback)
	require.Equal(t, uint64(0), *rec.Rollback)

	rec, err = r.Next()
	require.NoError(t, err)
	require.Equal(t, uint64(2), rec.Pos)

	_, err = r.Next()
	require.True(t, errors.Is(err, io.EOF))
}

func TestReader_RejectsBadRecords(t *testing.T) {
	for _, line := range []string{
		`{not json`,
		`{}`,
		`{"pos":0,"tx":"AAAA"}`,
		`{"pos":3,"tx":"AAAA","rollback":2}`,
	} {
		_, err := NewReader(strings.NewReader(line)).Next()
		require.Error(t, err, line)
		require.Contains(t, err.Error(), "line 1")
	}
}

func TestRun_ReplaysWithRollback(t *testing.T) {
	ctx := context.Background()
	g := testutil.NewGame(1)
	initTx := g.Init(t)
	round := g.Round(t, testutil.Seed("d"), testutil.Seed("p"))
	stand := g.Player.Cmd(t, g.ID, codec.Stand{})

	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.Write(Apply(1, g.ID, initTx)))
	require.NoError(t, w.Write(Apply(2, "", round[0])))
	require.NoError(t, w.Write(Apply(3, g.ID, round[1])))
	// A reorg displaces position 3; it is mined again at 4.
	require.NoError(t, w.Write(Rollback(2)))
	for i, tx := range append(round[1:], stand) {
		require.NoError(t, w.Write(Apply(uint64(4+i), g.ID, tx)))
	}
	require.NoError(t, w.Write(Apply(20, g.ID, []byte("junk"))))

	h := engine.NewHub()
	var results []engine.Result
	st, err := Run(ctx, &buf, h, func(r engine.Result) { results = append(results, r) })
	require.NoError(t, err)
	require.Equal(t, Stats{Applied: 7, Rejected: 1, Rollbacks: 1}, st)
	require.Len(t, results, 8)

	// Same final state as a ledger that never saw the displaced position.
	direct := engine.New(g.ID)
	direct.Apply(1, initTx)
	direct.Apply(2, round[0])
	for i, tx := range append(round[1:], stand) {
		direct.Apply(uint64(4+i), tx)
	}
	require.Equal(t, direct.Hash(), h.Engine(g.ID).Hash())
}

func TestRun_StopsOnRollbackInconsistency(t *testing.T) {
	g := testutil.NewGame(1)
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.Write(Apply(1, g.ID, g.Init(t))))
	require.NoError(t, w.Write(Apply(2, g.ID, g.Dealer.Cmd(t, g.ID, codec.DealRequest{Commitment: testutil.Commit(t, testutil.Seed("d"))}))))
	require.NoError(t, w.Write(Apply(3, g.ID, g.Player.Cmd(t, g.ID, codec.DealRequest{Commitment: testutil.Commit(t, testutil.Seed("p"))}))))
	require.NoError(t, w.Write(Rollback(0)))

	_, err := Run(context.Background(), &buf, engine.NewHub(engine.HubFinalityDepth(1)), nil)
	require.True(t, errors.Is(err, engine.ErrRollbackInconsistency), "got %v", err)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, strings.NewReader(`{"rollback":1}`), engine.NewHub(), nil)
	require.True(t, errors.Is(err, context.Canceled))
}
