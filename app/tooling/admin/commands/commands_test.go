package commands_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/ardanlabs/ledger/app/tooling/admin/commands"
	"github.com/ardanlabs/ledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/ledger/foundation/blockchain/signature"
	"github.com/ardanlabs/ledger/foundation/blockchain/state"
	"github.com/ardanlabs/ledger/foundation/blockchain/storage/disk"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func Test_Commands(t *testing.T) {
	storage, err := disk.New(t.TempDir())
	require.NoError(t, err)

	g := genesis.Default()
	g.Difficulty = 1

	st, err := state.New(state.Config{Genesis: g, Storage: storage, SelectStrategy: "oldest"})
	require.NoError(t, err)
	t.Cleanup(func() { st.Shutdown() })

	w1, err := genesis.DefaultWallet()
	require.NoError(t, err)
	w2, err := signature.NewWallet()
	require.NoError(t, err)

	_, err = st.SendPTH(w1.PublicKey, w2.PublicKey, decimal.NewFromInt(7), w1.PrivateKey, "rent")
	require.NoError(t, err)
	_, err = st.MineNewBlock(context.Background(), 5, 5, 5)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, commands.Validate(&buf, st))
	require.True(t, strings.HasPrefix(buf.String(), "VALID: blocks[2]"), buf.String())

	buf.Reset()
	require.NoError(t, commands.Balances(&buf, w2.PublicKey, st))
	require.Contains(t, buf.String(), "Balance: 7  Unspent: 1")

	buf.Reset()
	require.NoError(t, commands.Balances(&buf, "", st))
	require.Contains(t, buf.String(), w1.PublicKey)
	require.Contains(t, buf.String(), w2.PublicKey)

	buf.Reset()
	require.NoError(t, commands.Transactions(&buf, w2.PublicKey, st))
	require.Equal(t, 2, strings.Count(buf.String(), "\n"), "the transfer and its change")
	require.Contains(t, buf.String(), "Note: rent")
}
