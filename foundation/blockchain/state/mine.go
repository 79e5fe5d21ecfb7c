package state

import (
	"context"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/mempool"
	"github.com/shopspring/decimal"
)

// DefaultBatch is the number of entries taken from each pool when mining.
const DefaultBatch = 5

// validTx is a transaction that survived batch validation along with the
// total value of the inputs it spends.
type validTx struct {
	pending    mempool.Pending[database.Tx]
	tx         database.Tx
	inputTotal decimal.Decimal
}

// =============================================================================

// MineNewBlock takes up to nTx transactions, nCx contracts and nMx messages
// from the mempool, validates the transactions against the chain, and
// attempts to create a new block with a proper hash that can become the
// next block in the chain. Nothing is appended until the block is sealed.
// When the work is cancelled the surviving entries are put back in the
// mempool.
func (s *State) MineNewBlock(ctx context.Context, nTx int, nCx int, nMx int) (database.Block, error) {
	s.mineMu.Lock()
	defer s.mineMu.Unlock()

	s.evHandler("state: MineNewBlock: MINING: pop mempool")

	txs := s.mempool.Transactions.Take(nTx)
	cxs := s.mempool.Contracts.Take(nCx)
	mxs := s.mempool.Messages.Take(nMx)

	s.evHandler("state: MineNewBlock: MINING: popped: txs[%d] cxs[%d] mxs[%d]", len(txs), len(cxs), len(mxs))

	valid := s.validateBatch(txs)
	trans := s.settleChange(valid)

	s.evHandler("state: MineNewBlock: MINING: perform POW: txs[%d] cxs[%d] mxs[%d]", len(trans), len(cxs), len(mxs))

	latest := s.db.LatestBlock()
	args := database.POWArgs{
		Number:        latest.Header.Number + 1,
		PrevBlockHash: latest.Hash,
		Difficulty:    s.genesis.Difficulty,
		Transactions:  trans,
		Contracts:     mempool.Items(cxs),
		Messages:      mempool.Items(mxs),
	}

	// Attempt to create a new block by solving the POW puzzle. This can be cancelled.
	block, err := database.POW(ctx, args, s.evHandler)
	if err != nil {
		s.requeue(valid, cxs, mxs)
		return database.Block{}, err
	}

	// Just check one more time we were not cancelled.
	if ctx.Err() != nil {
		s.requeue(valid, cxs, mxs)
		return database.Block{}, ctx.Err()
	}

	s.evHandler("state: MineNewBlock: MINING: write block: blk[%d]: hash[%s]", block.Header.Number, block.Hash)

	if err := s.db.Write(block, s.evHandler); err != nil {
		s.requeue(valid, cxs, mxs)
		return database.Block{}, err
	}

	s.blockMined(block)

	return block, nil
}

// =============================================================================

// validateBatch drops every transaction that can't be paid for by the
// unspent outputs of its sender. The available outputs of a sender are
// computed once per batch and shrink as transactions in the batch spend
// them, so an output can't be spent twice in the same block.
func (s *State) validateBatch(txs []mempool.Pending[database.Tx]) []validTx {
	available := make(map[string]map[string]decimal.Decimal)
	var valid []validTx

next:
	for _, pending := range txs {
		tx := pending.Item
		if tx.Change {
			s.evHandler("state: validateBatch: tx[%s]: DROP: change transaction from mempool", tx)
			continue
		}

		avail, exists := available[tx.From]
		if !exists {
			avail = make(map[string]decimal.Decimal)
			for _, u := range s.unspent(tx.From) {
				avail[u.ID] = u.Amount
			}
			available[tx.From] = avail
		}

		if len(avail) == 0 {
			s.evHandler("state: validateBatch: tx[%s]: DROP: no unspent outputs", tx)
			continue
		}

		seen := make(map[string]bool)
		inputTotal := decimal.Zero
		for _, input := range tx.Inputs {
			amount, exists := avail[input]
			if !exists || seen[input] {
				s.evHandler("state: validateBatch: tx[%s]: DROP: input[%s] not available", tx, input)
				continue next
			}

			seen[input] = true
			inputTotal = inputTotal.Add(amount)
		}

		if tx.Amount.GreaterThan(inputTotal) {
			s.evHandler("state: validateBatch: tx[%s]: DROP: inputs[%s] don't cover amount", tx, inputTotal)
			continue
		}

		for _, input := range tx.Inputs {
			delete(avail, input)
		}

		valid = append(valid, validTx{pending: pending, tx: tx, inputTotal: inputTotal})
	}

	return valid
}

// settleChange returns the transactions to record in the block. A
// transaction whose inputs exceed its amount is recorded as transferring
// the full input value and a change transaction returning the surplus to
// the sender is appended.
func (s *State) settleChange(valid []validTx) []database.Tx {
	trans := make([]database.Tx, 0, len(valid))
	var change []database.Tx

	ts := now()
	for _, v := range valid {
		tx := v.tx

		if v.inputTotal.GreaterThan(tx.Amount) {
			surplus := v.inputTotal.Sub(tx.Amount)
			change = append(change, database.NewChangeTx(tx, surplus, ts))
			tx.Amount = v.inputTotal

			s.evHandler("state: settleChange: tx[%s]: change[%s]", tx, surplus)
		}

		trans = append(trans, tx)
	}

	return append(trans, change...)
}

// requeue puts entries back in the mempool after a block could not be
// sealed. Entries keep the time they were first added.
func (s *State) requeue(valid []validTx, cxs []mempool.Pending[database.Contract], mxs []mempool.Pending[database.Message]) {
	s.evHandler("state: requeue: txs[%d] cxs[%d] mxs[%d]", len(valid), len(cxs), len(mxs))

	for _, v := range valid {
		s.mempool.Transactions.Restore(v.pending)
	}
	s.mempool.Contracts.Restore(cxs...)
	s.mempool.Messages.Restore(mxs...)
}
