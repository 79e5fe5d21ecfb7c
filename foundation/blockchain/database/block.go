package database

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ardanlabs/ledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/ledger/foundation/blockchain/merkle"
	"github.com/ardanlabs/ledger/foundation/blockchain/signature"
)

// BlockHeader represents common information required for each block.
type BlockHeader struct {
	Number        uint64 `json:"number"`          // Block number in the chain.
	TimeStamp     int64  `json:"timestamp"`       // Time the block was mined in unix nanoseconds.
	Nonce         string `json:"nonce"`           // Random value rolled by the POW algorithm.
	PrevBlockHash string `json:"prev_block_hash"` // Hash of the previous block in the chain.
	Difficulty    uint16 `json:"difficulty"`      // Number of leading 0's needed to solve the hash solution.
	TxRoot        string `json:"tx_root"`         // Merkle root of the transaction ids.
	ContractRoot  string `json:"contract_root"`   // Merkle root of the contract ids.
	MessageRoot   string `json:"message_root"`    // Merkle root of the message ids.
}

// Block represents a group of transactions, contracts and messages batched
// together and sealed by the proof of work.
type Block struct {
	Header       BlockHeader `json:"header"`
	Hash         string      `json:"hash"`
	Transactions []Tx        `json:"transactions"`
	Contracts    []Contract  `json:"contracts"`
	Messages     []Message   `json:"messages"`
}

// CalculateHash returns the hash of the block header. Only the number,
// timestamp, nonce and previous hash participate.
func CalculateHash(h BlockHeader) string {
	return signature.Hash(
		strconv.FormatUint(h.Number, 10),
		strconv.FormatInt(h.TimeStamp, 10),
		h.Nonce,
		h.PrevBlockHash,
	)
}

// GenesisBlock constructs block 0 from the genesis configuration. The block
// is deterministic so every node derives the same chain root.
func GenesisBlock(g genesis.Genesis) Block {
	ts := g.Date.UnixNano()

	tx := Tx{
		From:      g.Account,
		To:        g.Account,
		Amount:    g.Balance,
		Inputs:    []string{},
		TimeStamp: ts,
	}
	tx.ID = TxID(tx.From, tx.To, tx.Amount, ts, tx.Inputs)

	b := Block{
		Header: BlockHeader{
			Number:    0,
			TimeStamp: ts,
			Nonce:     signature.Hash("genesis", g.Account, g.Balance.String())[:32],
			TxRoot:    merkle.Root([]string{tx.ID}),
		},
		Transactions: []Tx{tx},
		Contracts:    []Contract{},
		Messages:     []Message{},
	}
	b.Hash = CalculateHash(b.Header)

	return b
}

// =============================================================================

// POWArgs represents the set of arguments required to run POW.
type POWArgs struct {
	Number        uint64
	PrevBlockHash string
	Difficulty    uint16
	Transactions  []Tx
	Contracts     []Contract
	Messages      []Message
}

// POW constructs a new Block and performs the work to find a nonce that
// solves the cryptographic POW puzzle. Nothing outside the returned block is
// modified, so a cancelled search leaves no trace.
func POW(ctx context.Context, args POWArgs, ev func(v string, args ...any)) (Block, error) {
	nb := Block{
		Header: BlockHeader{
			Number:        args.Number,
			PrevBlockHash: args.PrevBlockHash,
			Difficulty:    args.Difficulty,
		},
		Transactions: nonNil(args.Transactions),
		Contracts:    nonNil(args.Contracts),
		Messages:     nonNil(args.Messages),
	}
	nb.Header.TxRoot, nb.Header.ContractRoot, nb.Header.MessageRoot = nb.Roots()

	if err := nb.performPOW(ctx, ev); err != nil {
		return Block{}, err
	}

	return nb, nil
}

// performPOW does the work of mining to find a valid hash for the block.
// Pointer semantics are being used since a nonce is being discovered.
func (b *Block) performPOW(ctx context.Context, ev func(v string, args ...any)) error {
	ev("database: PerformPOW: MINING: started: blk[%d]: difficulty[%d]", b.Header.Number, b.Header.Difficulty)
	defer ev("database: PerformPOW: MINING: completed: blk[%d]", b.Header.Number)

	for _, tx := range b.Transactions {
		ev("database: PerformPOW: MINING: tx[%s]", tx)
	}

	var attempts uint64
	for {
		attempts++
		if attempts%1_000_000 == 0 {
			ev("database: PerformPOW: MINING: attempts[%d]", attempts)
		}

		// Did we timeout trying to solve the problem.
		if ctx.Err() != nil {
			ev("database: PerformPOW: MINING: CANCELLED")
			return ctx.Err()
		}

		nonce, err := newNonce()
		if err != nil {
			return err
		}

		b.Header.Nonce = nonce
		b.Header.TimeStamp = time.Now().UnixNano()
		b.Hash = CalculateHash(b.Header)

		if !isHashSolved(b.Header.Difficulty, b.Hash) {
			continue
		}

		ev("database: PerformPOW: MINING: SOLVED: prevBlk[%s]: newBlk[%s]", b.Header.PrevBlockHash, b.Hash)
		ev("database: PerformPOW: MINING: attempts[%d]", attempts)

		return nil
	}
}

// Roots returns the merkle roots of the transaction, contract and message
// identifiers in the block. A root is empty when there are no items.
func (b Block) Roots() (txRoot string, cxRoot string, mxRoot string) {
	txIDs := make([]string, len(b.Transactions))
	for i, tx := range b.Transactions {
		txIDs[i] = tx.ID
	}

	cxIDs := make([]string, len(b.Contracts))
	for i, cx := range b.Contracts {
		cxIDs[i] = cx.ID
	}

	mxIDs := make([]string, len(b.Messages))
	for i, mx := range b.Messages {
		mxIDs[i] = mx.ID
	}

	return merkle.Root(txIDs), merkle.Root(cxIDs), merkle.Root(mxIDs)
}

// TxTree returns the merkle tree over the block's transaction identifiers.
func (b Block) TxTree() (*merkle.Tree, error) {
	ids := make([]string, len(b.Transactions))
	for i, tx := range b.Transactions {
		ids[i] = tx.ID
	}

	return merkle.NewTree(ids)
}

// IsHashConsistent reports whether the stored hash matches the recomputation
// of the header hash.
func (b Block) IsHashConsistent() bool {
	return b.Hash == CalculateHash(b.Header)
}

// ValidateBlock takes a block and validates it to be included into the
// chain after the specified previous block.
func (b Block) ValidateBlock(previousBlock Block, evHandler func(v string, args ...any)) error {
	evHandler("database: ValidateBlock: validate: blk[%d]: check: block number is the next number", b.Header.Number)

	nextNumber := previousBlock.Header.Number + 1
	if b.Header.Number != nextNumber {
		return fmt.Errorf("this block is not the next number, got %d, exp %d", b.Header.Number, nextNumber)
	}

	evHandler("database: ValidateBlock: validate: blk[%d]: check: parent hash does match parent block", b.Header.Number)

	if b.Header.PrevBlockHash != previousBlock.Hash {
		return fmt.Errorf("parent block hash doesn't match our known parent, got %s, exp %s", b.Header.PrevBlockHash, previousBlock.Hash)
	}

	evHandler("database: ValidateBlock: validate: blk[%d]: check: block hash matches the header", b.Header.Number)

	if !b.IsHashConsistent() {
		return fmt.Errorf("block hash doesn't match the header, got %s, exp %s", b.Hash, CalculateHash(b.Header))
	}

	evHandler("database: ValidateBlock: validate: blk[%d]: check: block hash has been solved", b.Header.Number)

	if !isHashSolved(b.Header.Difficulty, b.Hash) {
		return fmt.Errorf("%s invalid block hash for difficulty %d", b.Hash, b.Header.Difficulty)
	}

	evHandler("database: ValidateBlock: validate: blk[%d]: check: merkle roots do match the payload", b.Header.Number)

	txRoot, cxRoot, mxRoot := b.Roots()
	switch {
	case b.Header.TxRoot != txRoot:
		return fmt.Errorf("merkle root does not match transactions, got %s, exp %s", txRoot, b.Header.TxRoot)
	case b.Header.ContractRoot != cxRoot:
		return fmt.Errorf("merkle root does not match contracts, got %s, exp %s", cxRoot, b.Header.ContractRoot)
	case b.Header.MessageRoot != mxRoot:
		return fmt.Errorf("merkle root does not match messages, got %s, exp %s", mxRoot, b.Header.MessageRoot)
	}

	return nil
}

// =============================================================================

// isHashSolved checks the hash to make sure it complies with the POW rules.
// We need to match a difficulty number of leading 0's.
func isHashSolved(difficulty uint16, hash string) bool {
	if len(hash) != 64 || int(difficulty) > len(hash) {
		return false
	}

	return hash[:difficulty] == strings.Repeat("0", int(difficulty))
}

// newNonce returns 16 random bytes encoded as hex.
func newNonce() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}

	return hex.EncodeToString(b[:]), nil
}

// nonNil returns an empty slice in place of nil so blocks always serialize
// their payload collections.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
