package worker_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/ledger/foundation/blockchain/signature"
	"github.com/ardanlabs/ledger/foundation/blockchain/state"
	"github.com/ardanlabs/ledger/foundation/blockchain/storage/memory"
	"github.com/ardanlabs/ledger/foundation/blockchain/worker"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// publisher records the blocks handed to the feed.
type publisher struct {
	mu     sync.Mutex
	blocks chan database.Block
	closed bool
}

func (p *publisher) PublishBlock(ctx context.Context, block database.Block) error {
	p.blocks <- block
	return nil
}

func (p *publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	return nil
}

func newState(t *testing.T, pub *publisher) *state.State {
	g := genesis.Default()
	g.Difficulty = 1

	st, err := state.New(state.Config{
		Genesis:        g,
		Storage:        memory.New(),
		SelectStrategy: "oldest",
		Feed:           pub,
	})
	require.NoError(t, err)

	return st
}

// =============================================================================

func Test_SignalMining(t *testing.T) {
	pub := publisher{blocks: make(chan database.Block, 10)}
	st := newState(t, &pub)

	worker.Run(st, worker.Config{})

	w1, err := genesis.DefaultWallet()
	require.NoError(t, err)
	w2, err := signature.NewWallet()
	require.NoError(t, err)

	_, err = st.SendPTH(w1.PublicKey, w2.PublicKey, decimal.NewFromInt(7), w1.PrivateKey, "")
	require.NoError(t, err)

	st.Worker.SignalStartMining()

	select {
	case block := <-pub.blocks:
		require.Equal(t, uint64(1), block.Header.Number)
		require.Len(t, block.Transactions, 2)
	case <-time.After(10 * time.Second):
		t.Fatal("Should publish the mined block.")
	}

	require.True(t, st.Balance(w2.PublicKey).Equal(decimal.NewFromInt(7)))

	require.NoError(t, st.Shutdown())
	require.True(t, pub.closed)
}

func Test_IntervalMining(t *testing.T) {
	pub := publisher{blocks: make(chan database.Block, 10)}
	st := newState(t, &pub)

	worker.Run(st, worker.Config{Interval: 20 * time.Millisecond})
	defer st.Shutdown()

	w1, err := genesis.DefaultWallet()
	require.NoError(t, err)

	_, err = st.CreateContract("count = 0\n", w1.PublicKey, w1.PrivateKey)
	require.NoError(t, err)

	select {
	case block := <-pub.blocks:
		require.Len(t, block.Contracts, 1)
	case <-time.After(10 * time.Second):
		t.Fatal("Should mine on the interval.")
	}

	require.Zero(t, st.QueryMempoolLength())
}
