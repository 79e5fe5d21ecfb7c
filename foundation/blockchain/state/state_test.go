package state_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/ledger/foundation/blockchain/merkle"
	"github.com/ardanlabs/ledger/foundation/blockchain/signature"
	"github.com/ardanlabs/ledger/foundation/blockchain/state"
	"github.com/ardanlabs/ledger/foundation/blockchain/storage/memory"
	"github.com/ardanlabs/ledger/foundation/sandbox"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const counterCode = `
owner = msg_sender
times_called = 0

def main():
    if msg_sender == owner:
        print("Thanks for calling me!")
        state("times_called", state("times_called") + 1)
        print("I have updated times_called to " + str(state("times_called")))
    else:
        print("You are not my owner. GO AWAY!")

    return state(), printed()
`

const spinCode = `
spins = 0

def main():
    for i in range(1000000):
        for j in range(1000000):
            pass
    state("spins", 1)
    return state(), "done"
`

func newState(t *testing.T, difficulty uint16) (*state.State, signature.Wallet) {
	t.Helper()

	g := genesis.Default()
	g.Difficulty = difficulty

	st, err := state.New(state.Config{
		Genesis:        g,
		Storage:        memory.New(),
		SelectStrategy: "random",
		EvHandler:      func(v string, args ...any) { t.Logf(v, args...) },
	})
	require.NoError(t, err)

	t.Cleanup(func() { st.Shutdown() })

	w, err := genesis.DefaultWallet()
	require.NoError(t, err)

	return st, w
}

func mine(t *testing.T, st *state.State) database.Block {
	t.Helper()

	block, err := st.MineNewBlock(context.Background(), state.DefaultBatch, state.DefaultBatch, state.DefaultBatch)
	require.NoError(t, err)

	return block
}

// =============================================================================

func Test_GenesisBalance(t *testing.T) {
	st, w := newState(t, 0)

	require.True(t, st.Balance(w.PublicKey).Equal(decimal.NewFromInt(1_000_000_000_000)))
	require.Len(t, st.UTXO(w.PublicKey), 1)
	require.Len(t, st.Blocks(), 1)
	require.NoError(t, st.ValidateChain())
}

func Test_Transfers(t *testing.T) {
	st, w1 := newState(t, 0)

	w2, err := signature.NewWallet()
	require.NoError(t, err)

	five := decimal.NewFromInt(5)
	var last database.Tx
	for i := 0; i < 3; i++ {
		last, err = st.SendPTH(w1.PublicKey, w2.PublicKey, five, w1.PrivateKey, "")
		require.NoError(t, err)

		block := mine(t, st)
		require.Len(t, block.Transactions, 2, "transfer plus change")
		require.True(t, block.Transactions[1].Change)
	}

	require.True(t, st.Balance(w2.PublicKey).Equal(decimal.NewFromInt(15)))
	require.True(t, st.Balance(w1.PublicKey).Equal(decimal.NewFromInt(1_000_000_000_000-15)))
	require.Len(t, st.UTXO(w1.PublicKey), 1, "only the latest change is unspent")
	require.NoError(t, st.ValidateChain())

	tx, err := st.Transaction(last.ID)
	require.NoError(t, err)
	require.Equal(t, w2.PublicKey, tx.To)

	proof, err := st.QueryTxProof(last.ID)
	require.NoError(t, err)
	require.Equal(t, uint64(3), proof.BlockNumber)
	require.NoError(t, merkle.VerifyProof(proof.MerkleRoot, last.ID, proof.Hashes, proof.Order))

	_, err = st.Transaction("missing")
	require.ErrorIs(t, err, database.ErrNotFound)
}

func Test_SubmitErrors(t *testing.T) {
	st, w1 := newState(t, 0)

	w2, err := signature.NewWallet()
	require.NoError(t, err)

	_, err = st.SendPTH(w1.PublicKey, w1.PublicKey, decimal.NewFromInt(1), w1.PrivateKey, "")
	require.ErrorIs(t, err, state.ErrSelfTransfer)

	_, err = st.SendPTH(w2.PublicKey, w1.PublicKey, decimal.NewFromInt(1), w2.PrivateKey, "")
	require.ErrorIs(t, err, state.ErrInsufficientBalance)

	_, err = st.SendPTH(w1.PublicKey, w2.PublicKey, decimal.NewFromInt(1), w2.PrivateKey, "")
	require.ErrorIs(t, err, database.ErrSignature)

	_, err = st.CallContract("missing", 10000, nil, w1.PublicKey, w1.PrivateKey)
	require.ErrorIs(t, err, state.ErrContractNotFound)
	require.ErrorIs(t, err, sandbox.ErrLookup)

	_, err = st.CreateContract("def main(:\n", w1.PublicKey, w1.PrivateKey)
	require.ErrorIs(t, err, sandbox.ErrCompile)

	require.Zero(t, st.QueryMempoolLength())
}

func Test_DoubleSpend(t *testing.T) {
	st, w1 := newState(t, 0)

	w2, err := signature.NewWallet()
	require.NoError(t, err)
	w3, err := signature.NewWallet()
	require.NoError(t, err)

	five := decimal.NewFromInt(5)
	tx2, err := st.SendPTH(w1.PublicKey, w2.PublicKey, five, w1.PrivateKey, "")
	require.NoError(t, err)
	tx3, err := st.SendPTH(w1.PublicKey, w3.PublicKey, five, w1.PrivateKey, "")
	require.NoError(t, err)
	require.Equal(t, tx2.Inputs, tx3.Inputs, "both spend the genesis output")

	block := mine(t, st)
	require.Len(t, block.Transactions, 2, "one transfer plus its change")
	require.Zero(t, st.QueryMempoolLength(), "dropped transactions are not requeued")

	total := st.Balance(w2.PublicKey).Add(st.Balance(w3.PublicKey))
	require.True(t, total.Equal(five))
}

func Test_Counter(t *testing.T) {
	st, w1 := newState(t, 0)

	w2, err := signature.NewWallet()
	require.NoError(t, err)

	cx, err := st.CreateContract(counterCode, w1.PublicKey, w1.PrivateKey)
	require.NoError(t, err)

	block := mine(t, st)
	require.Len(t, block.Contracts, 1)
	require.Equal(t, cx.ID, block.Contracts[0].ID)

	vars, err := st.ContractState(cx.ID)
	require.NoError(t, err)
	require.Equal(t, int64(0), vars["times_called"])
	require.Equal(t, w1.PublicKey, vars["owner"])

	for i := 0; i < 3; i++ {
		mx, err := st.CallContract(cx.ID, 10000, nil, w1.PublicKey, w1.PrivateKey)
		require.NoError(t, err)
		require.NotNil(t, mx.Reply)
		mine(t, st)
	}

	vars, err = st.ContractState(cx.ID)
	require.NoError(t, err)
	require.Equal(t, int64(3), vars["times_called"])

	mx, err := st.CallContract(cx.ID, 10000, nil, w2.PublicKey, w2.PrivateKey)
	require.NoError(t, err)
	mine(t, st)

	vars, err = st.ContractState(cx.ID)
	require.NoError(t, err)
	require.Equal(t, int64(3), vars["times_called"])
	require.Equal(t, w1.PublicKey, vars["owner"])

	values, err := st.QueryEmitValues(cx.ID)
	require.NoError(t, err)
	require.Len(t, values, 4)
	require.Equal(t, []string{"You are not my owner. GO AWAY!"}, values[0])
	require.Equal(t, "I have updated times_called to 3", values[1][1])

	emits, err := st.QueryEmits(cx.ID)
	require.NoError(t, err)
	require.Len(t, emits, 4)
	require.Equal(t, values[0], emits[mx.ID])
}

func Test_CallTimeout(t *testing.T) {
	st, w1 := newState(t, 0)

	cx, err := st.CreateContract(spinCode, w1.PublicKey, w1.PrivateKey)
	require.NoError(t, err)
	mine(t, st)

	mx, err := st.CallContract(cx.ID, 1000, nil, w1.PublicKey, w1.PrivateKey)
	require.NoError(t, err)
	require.Nil(t, mx.Reply, "a call that runs out of time has no reply")

	block := mine(t, st)
	require.Len(t, block.Messages, 1, "the message is still recorded")
	require.Equal(t, mx.ID, block.Messages[0].ID)

	vars, err := st.ContractState(cx.ID)
	require.NoError(t, err)
	require.Equal(t, int64(0), vars["spins"])

	values, err := st.QueryEmitValues(cx.ID)
	require.NoError(t, err)
	require.Empty(t, values)
}

func Test_Difficulty(t *testing.T) {
	st, _ := newState(t, 2)

	require.Equal(t, uint16(2), st.Difficulty())

	block := mine(t, st)
	require.True(t, strings.HasPrefix(block.Hash, "00"), block.Hash)
	require.Equal(t, uint16(2), block.Header.Difficulty)
	require.NoError(t, st.ValidateChain())
}

func Test_MiningCancelled(t *testing.T) {
	st, w1 := newState(t, 64)

	w2, err := signature.NewWallet()
	require.NoError(t, err)

	_, err = st.SendPTH(w1.PublicKey, w2.PublicKey, decimal.NewFromInt(5), w1.PrivateKey, "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = st.MineNewBlock(ctx, 5, 5, 5)
	require.True(t, errors.Is(err, context.Canceled), err)

	require.Equal(t, 1, st.QueryMempoolLength(), "the transaction is put back")
	require.Len(t, st.Blocks(), 1, "nothing is appended")
}

func Test_QueryMempool(t *testing.T) {
	st, w1 := newState(t, 0)

	_, err := st.CreateContract(counterCode, w1.PublicKey, w1.PrivateKey)
	require.NoError(t, err)

	got, err := st.QueryMempool("contracts")
	require.NoError(t, err)
	require.Len(t, got, 1)

	all, err := st.QueryMempool("")
	require.NoError(t, err)
	require.Len(t, all, 3)

	_, err = st.QueryMempool("blocks")
	require.Error(t, err)
}
