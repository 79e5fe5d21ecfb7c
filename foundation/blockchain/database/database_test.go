package database_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/ledger/foundation/blockchain/signature"
	"github.com/ardanlabs/ledger/foundation/blockchain/storage/memory"
	"github.com/ardanlabs/ledger/foundation/sandbox"
	"github.com/shopspring/decimal"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

var verifier = signature.Secp256k1{}

func noop(string, ...any) {}

// =============================================================================

func Test_Tx(t *testing.T) {
	w, err := signature.NewWalletFromSeeds("tx", "test")
	if err != nil {
		t.Fatalf("Should be able to create a wallet: %s", err)
	}

	amount := decimal.NewFromInt(5)
	sig, err := signature.Sign(w.PrivateKey, database.TxSigningMessage(w.PublicKey, amount))
	if err != nil {
		t.Fatalf("Should be able to sign: %s", err)
	}

	t.Log("Given the need to construct signed transactions.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen handling a valid signature.", testID)
		{
			tx, err := database.NewTx(w.PublicKey, "0xto", amount, []string{"a", "b"}, "", sig, 42, verifier)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to construct the tx: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to construct the tx.", success, testID)

			exp := signature.Hash(w.PublicKey, "0xto", "5", "42", "ab")
			if tx.ID != exp {
				t.Logf("\t\tTest %d:\tgot: %s", testID, tx.ID)
				t.Logf("\t\tTest %d:\texp: %s", testID, exp)
				t.Fatalf("\t%s\tTest %d:\tShould get the content hash as the id.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould get the content hash as the id.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen handling a signature over a different amount.", testID)
		{
			_, err := database.NewTx(w.PublicKey, "0xto", decimal.NewFromInt(6), nil, "", sig, 42, verifier)
			if !errors.Is(err, database.ErrSignature) {
				t.Fatalf("\t%s\tTest %d:\tShould get a signature error, got %v.", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould get a signature error.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen handling a negative amount.", testID)
		{
			_, err := database.NewTx(w.PublicKey, "0xto", decimal.NewFromInt(-1), nil, "", sig, 42, verifier)
			if !errors.Is(err, database.ErrAmount) {
				t.Fatalf("\t%s\tTest %d:\tShould get an amount error, got %v.", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould get an amount error.", success, testID)
		}
	}
}

func Test_ContractAndMessage(t *testing.T) {
	w, err := signature.NewWalletFromSeeds("contract", "test")
	if err != nil {
		t.Fatalf("Should be able to create a wallet: %s", err)
	}

	code := "owner = msg_sender\ncount = 0\n\ndef main(n):\n    state(\"count\", state(\"count\") + n)\n    return state(), \"\"\n"

	sig, err := signature.Sign(w.PrivateKey, code)
	if err != nil {
		t.Fatalf("Should be able to sign: %s", err)
	}

	cx, err := database.NewContract(code, w.PublicKey, sig, 7, verifier)
	if err != nil {
		t.Fatalf("Should be able to construct the contract: %s", err)
	}

	if cx.State.StateVars["owner"] != w.PublicKey || cx.State.StateVars["count"] != int64(0) {
		t.Fatalf("Should capture the initial state, got %v", cx.State.StateVars)
	}

	if cx.ID != database.ContractID(w.PublicKey, code, 7) {
		t.Fatalf("Should get the content hash as the id.")
	}

	if _, err := database.NewContract(code+"\n", w.PublicKey, sig, 7, verifier); !errors.Is(err, database.ErrSignature) {
		t.Fatalf("Should get a signature error for different code, got %v", err)
	}

	badCode := "def main(:\n"
	badSig, _ := signature.Sign(w.PrivateKey, badCode)
	if _, err := database.NewContract(badCode, w.PublicKey, badSig, 7, verifier); !errors.Is(err, sandbox.ErrCompile) {
		t.Fatalf("Should get a compile error, got %v", err)
	}

	data := []any{int64(3)}
	encoded, err := database.EncodeData(data)
	if err != nil {
		t.Fatalf("Should be able to encode data: %s", err)
	}

	msig, err := signature.Sign(w.PrivateKey, encoded)
	if err != nil {
		t.Fatalf("Should be able to sign: %s", err)
	}

	mx, err := database.NewMessage(w.PublicKey, cx.ID, data, 1000, msig, 8, verifier)
	if err != nil {
		t.Fatalf("Should be able to construct the message: %s", err)
	}

	if len(mx.Args()) != 1 || mx.Args()[0] != int64(3) {
		t.Fatalf("Should spread list data as arguments, got %v", mx.Args())
	}

	if err := mx.SetReply(sandbox.Snapshot{StateVars: map[string]any{"count": int64(3)}}); err != nil {
		t.Fatalf("Should be able to set the reply: %s", err)
	}

	if err := mx.SetReply(sandbox.Snapshot{}); !errors.Is(err, database.ErrReplySet) {
		t.Fatalf("Should not be able to set the reply twice, got %v", err)
	}

	if args := (database.Message{}).Args(); args != nil {
		t.Fatalf("Should get no arguments for no data, got %v", args)
	}

	if args := (database.Message{Data: "hi"}).Args(); len(args) != 1 || args[0] != "hi" {
		t.Fatalf("Should wrap scalar data, got %v", args)
	}
}

func Test_POW(t *testing.T) {
	gen := database.GenesisBlock(genesis.Default())

	t.Log("Given the need to seal blocks with proof of work.")
	{
		for difficulty := uint16(0); difficulty <= 3; difficulty++ {
			testID := int(difficulty)
			t.Logf("\tTest %d:\tWhen mining with difficulty %d.", testID, difficulty)
			{
				block, err := database.POW(context.Background(), database.POWArgs{
					Number:        1,
					PrevBlockHash: gen.Hash,
					Difficulty:    difficulty,
				}, noop)
				if err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to mine: %v", failed, testID, err)
				}
				t.Logf("\t%s\tTest %d:\tShould be able to mine.", success, testID)

				if !strings.HasPrefix(block.Hash, strings.Repeat("0", int(difficulty))) {
					t.Fatalf("\t%s\tTest %d:\tShould get %d leading zeros: %s", failed, testID, difficulty, block.Hash)
				}
				t.Logf("\t%s\tTest %d:\tShould get %d leading zeros.", success, testID, difficulty)

				if len(block.Header.Nonce) != 32 {
					t.Fatalf("\t%s\tTest %d:\tShould get a 32 character nonce: %s", failed, testID, block.Header.Nonce)
				}
				t.Logf("\t%s\tTest %d:\tShould get a 32 character nonce.", success, testID)

				if err := block.ValidateBlock(gen, noop); err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould validate against genesis: %v", failed, testID, err)
				}
				t.Logf("\t%s\tTest %d:\tShould validate against genesis.", success, testID)
			}
		}
	}
}

func Test_POWCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := database.POW(ctx, database.POWArgs{Number: 1, Difficulty: 64}, noop)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Should get a cancelled error, got %v", err)
	}
}

func Test_Database(t *testing.T) {
	g := genesis.Default()

	db, err := database.New(g, memory.New(), noop)
	if err != nil {
		t.Fatalf("Should be able to create the database: %s", err)
	}

	gen := db.LatestBlock()
	if gen.Header.Number != 0 || gen.Hash != database.GenesisBlock(g).Hash {
		t.Fatalf("Should start with the genesis block.")
	}

	if len(gen.Transactions) != 1 || gen.Transactions[0].To != g.Account || !gen.Transactions[0].Amount.Equal(g.Balance) {
		t.Fatalf("Should pre-fund the genesis account.")
	}

	block, err := database.POW(context.Background(), database.POWArgs{Number: 1, PrevBlockHash: gen.Hash, Difficulty: 1}, noop)
	if err != nil {
		t.Fatalf("Should be able to mine: %s", err)
	}

	if err := db.Write(block, noop); err != nil {
		t.Fatalf("Should be able to write: %s", err)
	}

	if err := db.Write(block, noop); err == nil {
		t.Fatalf("Should not be able to write the same block twice.")
	}

	got, err := db.GetBlockByHash(block.Hash)
	if err != nil || got.Header.Number != 1 {
		t.Fatalf("Should be able to find the block by hash: %v", err)
	}

	if _, err := db.GetBlock(2); !errors.Is(err, database.ErrNotFound) {
		t.Fatalf("Should get not found, got %v", err)
	}

	var order []uint64
	db.ForEachReverse(func(b database.Block) bool {
		order = append(order, b.Header.Number)
		return true
	})
	if len(order) != 2 || order[0] != 1 || order[1] != 0 {
		t.Fatalf("Should walk newest first, got %v", order)
	}

	if err := db.Reset(); err != nil {
		t.Fatalf("Should be able to reset: %s", err)
	}

	if db.Count() != 1 {
		t.Fatalf("Should only hold genesis after reset, got %d", db.Count())
	}
}

func Test_ValidateChain(t *testing.T) {
	gen := database.GenesisBlock(genesis.Default())

	blocks := []database.Block{gen}
	for i := 1; i <= 3; i++ {
		prev := blocks[len(blocks)-1]
		block, err := database.POW(context.Background(), database.POWArgs{Number: prev.Header.Number + 1, PrevBlockHash: prev.Hash}, noop)
		if err != nil {
			t.Fatalf("Should be able to mine: %s", err)
		}
		blocks = append(blocks, block)
	}

	if err := database.ValidateChain(blocks, noop); err != nil {
		t.Fatalf("Should validate the chain: %s", err)
	}

	tampered := make([]database.Block, len(blocks))
	copy(tampered, blocks)
	tampered[2].Header.TimeStamp++

	var ce *database.ChainError
	if err := database.ValidateChain(tampered, noop); !errors.As(err, &ce) || ce.Number != 2 {
		t.Fatalf("Should report block 2 as tampered, got %v", err)
	}

	relinked := make([]database.Block, len(blocks))
	copy(relinked, blocks)
	relinked[3].Header.PrevBlockHash = blocks[1].Hash
	relinked[3].Hash = database.CalculateHash(relinked[3].Header)

	if err := database.ValidateChain(relinked, noop); !errors.As(err, &ce) || ce.Number != 3 {
		t.Fatalf("Should report block 3 as unlinked, got %v", err)
	}
}
