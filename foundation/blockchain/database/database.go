// Package database handles all the lower level support for maintaining the
// chain of blocks in memory and on the configured storage.
package database

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ardanlabs/ledger/foundation/blockchain/genesis"
)

// ErrNotFound is returned when a block or a mined record can't be located.
var ErrNotFound = errors.New("not found")

// Storage interface represents the behavior required to be implemented by any
// package providing support for storing and reading the chain.
type Storage interface {
	Write(block Block) error
	GetBlock(num uint64) (Block, error)
	ForEach() Iterator
	Close() error
	Reset() error
}

// Iterator interface represents the behavior required to be implemented by any
// package providing support to iterate over the blocks.
type Iterator interface {
	Next() (Block, error)
	Done() bool
}

// =============================================================================

// Database manages the canonical chain. Every block is kept in memory in
// chain order and written through to storage.
type Database struct {
	mu sync.RWMutex

	genesis genesis.Genesis
	blocks  []Block
	storage Storage
}

// New constructs a new database. Blocks found in storage are loaded and
// validated. When storage is empty the genesis block is written.
func New(g genesis.Genesis, storage Storage, evHandler func(v string, args ...any)) (*Database, error) {
	db := Database{
		genesis: g,
		storage: storage,
	}

	genesisBlock := GenesisBlock(g)

	iter := storage.ForEach()
	for block, err := iter.Next(); !iter.Done(); block, err = iter.Next() {
		if err != nil {
			return nil, err
		}

		if len(db.blocks) == 0 {
			evHandler("database: New: validate: blk[%d]: check: matches genesis", block.Header.Number)

			if block.Hash != genesisBlock.Hash {
				return nil, fmt.Errorf("stored genesis block doesn't match, got %s, exp %s", block.Hash, genesisBlock.Hash)
			}

			db.blocks = append(db.blocks, block)
			continue
		}

		if err := block.ValidateBlock(db.blocks[len(db.blocks)-1], evHandler); err != nil {
			return nil, fmt.Errorf("stored block %d: %w", block.Header.Number, err)
		}

		db.blocks = append(db.blocks, block)
	}

	if len(db.blocks) == 0 {
		evHandler("database: New: writing genesis: blk[%s]", genesisBlock.Hash)

		if err := storage.Write(genesisBlock); err != nil {
			return nil, err
		}
		db.blocks = append(db.blocks, genesisBlock)
	}

	return &db, nil
}

// Close closes the underlying storage.
func (db *Database) Close() error {
	return db.storage.Close()
}

// Reset re-initializes the database back to the genesis block.
func (db *Database) Reset() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.storage.Reset(); err != nil {
		return err
	}

	genesisBlock := GenesisBlock(db.genesis)
	if err := db.storage.Write(genesisBlock); err != nil {
		return err
	}

	db.blocks = []Block{genesisBlock}

	return nil
}

// Genesis returns the genesis configuration the chain was built from.
func (db *Database) Genesis() genesis.Genesis {
	return db.genesis
}

// Write validates the block against the current tip, writes it to storage
// and appends it to the chain.
func (db *Database) Write(block Block, evHandler func(v string, args ...any)) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := block.ValidateBlock(db.blocks[len(db.blocks)-1], evHandler); err != nil {
		return err
	}

	if err := db.storage.Write(block); err != nil {
		return err
	}

	db.blocks = append(db.blocks, block)

	return nil
}

// LatestBlock returns the latest block.
func (db *Database) LatestBlock() Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.blocks[len(db.blocks)-1]
}

// Count returns the number of blocks in the chain, genesis included.
func (db *Database) Count() int {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return len(db.blocks)
}

// Blocks returns the chain in order starting with the genesis block.
func (db *Database) Blocks() []Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	blocks := make([]Block, len(db.blocks))
	copy(blocks, db.blocks)

	return blocks
}

// GetBlock returns the block with the specified number.
func (db *Database) GetBlock(num uint64) (Block, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if num >= uint64(len(db.blocks)) {
		return Block{}, fmt.Errorf("block %d: %w", num, ErrNotFound)
	}

	return db.blocks[num], nil
}

// GetBlockByHash returns the block with the specified hash.
func (db *Database) GetBlockByHash(hash string) (Block, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	for i := len(db.blocks) - 1; i >= 0; i-- {
		if db.blocks[i].Hash == hash {
			return db.blocks[i], nil
		}
	}

	return Block{}, fmt.Errorf("block %s: %w", hash, ErrNotFound)
}

// ForEachReverse walks the chain from the newest block to the genesis
// block. Returning false from fn stops the walk.
func (db *Database) ForEachReverse(fn func(block Block) bool) {
	for _, block := range reversed(db.Blocks()) {
		if !fn(block) {
			return
		}
	}
}

// reversed returns the blocks newest first.
func reversed(blocks []Block) []Block {
	for i, j := 0, len(blocks)-1; i < j; i, j = i+1, j-1 {
		blocks[i], blocks[j] = blocks[j], blocks[i]
	}
	return blocks
}
