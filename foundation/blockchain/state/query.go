package state

import (
	"fmt"
	"sort"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/ledger/foundation/blockchain/mempool"
	"github.com/ardanlabs/ledger/foundation/sandbox"
	"github.com/shopspring/decimal"
)

// utxo is an unspent output with the amount it carries.
type utxo struct {
	ID     string
	Amount decimal.Decimal
}

// TxProof proves a transaction is included in a block.
type TxProof struct {
	BlockNumber uint64   `json:"block_number"`
	TxID        string   `json:"txid"`
	MerkleRoot  string   `json:"merkle_root"`
	Hashes      []string `json:"hashes"`
	Order       []int64  `json:"order"`
}

// =============================================================================

// Genesis returns a copy of the genesis information.
func (s *State) Genesis() genesis.Genesis {
	return s.genesis
}

// Difficulty returns the number of leading zeros a block hash needs.
func (s *State) Difficulty() uint16 {
	return s.genesis.Difficulty
}

// Balance returns the balance of the account. Every transaction credits
// its receiver or, when the account is not the receiver, debits its sender.
func (s *State) Balance(account string) decimal.Decimal {
	balance := decimal.Zero

	s.db.ForEachReverse(func(block database.Block) bool {
		for _, tx := range block.Transactions {
			switch {
			case tx.To == account:
				balance = balance.Add(tx.Amount)
			case tx.From == account:
				balance = balance.Sub(tx.Amount)
			}
		}
		return true
	})

	return balance
}

// UTXO returns the identifiers of the transactions paying the account that
// have not been spent, most recent first. An output spent by any
// transaction in the chain is excluded whoever spent it.
func (s *State) UTXO(account string) []string {
	unspent := s.unspent(account)

	ids := make([]string, len(unspent))
	for i, u := range unspent {
		ids[i] = u.ID
	}

	return ids
}

// unspent returns the unspent outputs of the account, most recent first.
func (s *State) unspent(account string) []utxo {
	var candidates []utxo
	consumed := make(map[string]bool)

	s.db.ForEachReverse(func(block database.Block) bool {
		for _, tx := range block.Transactions {
			if tx.To == account {
				candidates = append(candidates, utxo{ID: tx.ID, Amount: tx.Amount})
			}
			for _, input := range tx.Inputs {
				consumed[input] = true
			}
		}
		return true
	})

	out := candidates[:0]
	for _, u := range candidates {
		if !consumed[u.ID] {
			out = append(out, u)
		}
	}

	return out
}

// =============================================================================

// LatestBlock returns the latest block in the chain.
func (s *State) LatestBlock() database.Block {
	return s.db.LatestBlock()
}

// Blocks returns every block in the chain, genesis first.
func (s *State) Blocks() []database.Block {
	return s.db.Blocks()
}

// QueryBlock returns the block with the specified number.
func (s *State) QueryBlock(number uint64) (database.Block, error) {
	return s.db.GetBlock(number)
}

// QueryBlockByHash returns the block with the specified hash.
func (s *State) QueryBlockByHash(hash string) (database.Block, error) {
	return s.db.GetBlockByHash(hash)
}

// Transaction returns the most recent mined transaction with the id.
func (s *State) Transaction(txid string) (database.Tx, error) {
	tx, _, err := s.findTx(txid)
	return tx, err
}

// Contract returns the mined contract with the id.
func (s *State) Contract(cxid string) (database.Contract, error) {
	var cx database.Contract
	var found bool

	s.db.ForEachReverse(func(block database.Block) bool {
		for _, c := range block.Contracts {
			if c.ID == cxid {
				cx, found = c, true
				return false
			}
		}
		return true
	})

	if !found {
		return database.Contract{}, fmt.Errorf("cx %s: %w", cxid, ErrContractNotFound)
	}

	return cx, nil
}

// ContractState returns the state variables of the contract as left by
// the most recent call that produced a reply. A contract that has never
// been successfully called returns its initial state.
func (s *State) ContractState(cxid string) (map[string]any, error) {
	cx, err := s.Contract(cxid)
	if err != nil {
		return nil, err
	}

	var vars map[string]any
	s.db.ForEachReverse(func(block database.Block) bool {
		for i := len(block.Messages) - 1; i >= 0; i-- {
			mx := block.Messages[i]
			if mx.Contract == cxid && mx.Reply != nil {
				vars = mx.Reply.StateVars
				return false
			}
		}
		return true
	})

	if vars == nil {
		vars = cx.State.StateVars
	}

	// Hand back a canonical copy. Blocks reloaded from storage carry json
	// numbers.
	cp, err := sandbox.Normalize(vars)
	if err != nil {
		return nil, fmt.Errorf("cx %s: stored state: %w", cxid, err)
	}

	return cp.(map[string]any), nil
}

// QueryEmits returns the emits of every call made to the contract that
// produced a reply, keyed by message id.
func (s *State) QueryEmits(cxid string) (map[string][]string, error) {
	if _, err := s.Contract(cxid); err != nil {
		return nil, err
	}

	emits := make(map[string][]string)
	s.forEachReply(cxid, func(mx database.Message) {
		emits[mx.ID] = mx.Reply.Emits
	})

	return emits, nil
}

// QueryEmitValues returns the emits of every call made to the contract that
// produced a reply, most recent call first.
func (s *State) QueryEmitValues(cxid string) ([][]string, error) {
	if _, err := s.Contract(cxid); err != nil {
		return nil, err
	}

	emits := [][]string{}
	s.forEachReply(cxid, func(mx database.Message) {
		emits = append(emits, mx.Reply.Emits)
	})

	return emits, nil
}

// QueryTxProof returns the merkle proof that the transaction is part of the
// block it was mined in.
func (s *State) QueryTxProof(txid string) (TxProof, error) {
	_, block, err := s.findTx(txid)
	if err != nil {
		return TxProof{}, err
	}

	tree, err := block.TxTree()
	if err != nil {
		return TxProof{}, err
	}

	hashes, order, err := tree.Proof(txid)
	if err != nil {
		return TxProof{}, err
	}

	proof := TxProof{
		BlockNumber: block.Header.Number,
		TxID:        txid,
		MerkleRoot:  block.Header.TxRoot,
		Hashes:      hashes,
		Order:       order,
	}

	return proof, nil
}

// =============================================================================

// QueryMempoolLength returns the number of entries across the mempool.
func (s *State) QueryMempoolLength() int {
	return s.mempool.Count()
}

// QueryMempool returns a copy of the named pool. An empty kind returns
// every pool keyed by its name.
func (s *State) QueryMempool(kind string) (any, error) {
	if kind != "" {
		return s.mempool.Copy(kind)
	}

	all := map[string]any{
		mempool.KindTransactions: s.mempool.Transactions.Copy(),
		mempool.KindContracts:    s.mempool.Contracts.Copy(),
		mempool.KindMessages:     s.mempool.Messages.Copy(),
	}

	return all, nil
}

// ValidateChain checks the integrity of the whole chain. The first
// violation found is reported as a *database.ChainError.
func (s *State) ValidateChain() error {
	return database.ValidateChain(s.db.Blocks(), s.evHandler)
}

// =============================================================================

// findTx locates the most recent mined transaction with the id along with
// the block holding it.
func (s *State) findTx(txid string) (database.Tx, database.Block, error) {
	var tx database.Tx
	var blk database.Block
	var found bool

	s.db.ForEachReverse(func(block database.Block) bool {
		for _, t := range block.Transactions {
			if t.ID == txid {
				tx, blk, found = t, block, true
				return false
			}
		}
		return true
	})

	if !found {
		return database.Tx{}, database.Block{}, fmt.Errorf("tx %s: %w", txid, database.ErrNotFound)
	}

	return tx, blk, nil
}

// forEachReply calls fn for every message to the contract carrying a reply,
// most recent first.
func (s *State) forEachReply(cxid string, fn func(mx database.Message)) {
	s.db.ForEachReverse(func(block database.Block) bool {
		for i := len(block.Messages) - 1; i >= 0; i-- {
			if mx := block.Messages[i]; mx.Contract == cxid && mx.Reply != nil {
				fn(mx)
			}
		}
		return true
	})
}

// stateNames returns the sorted names of the state variables for logging.
func stateNames(vars map[string]any) []string {
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
