// Package leveldb implements the ability to read and write blocks to a
// LevelDB key/value store, keyed by block number.
package leveldb

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// blockPrefix namespaces the block keys inside the store.
var blockPrefix = []byte("blk:")

// LevelDB represents the storage implementation for reading and storing
// blocks in a LevelDB database. This implements the database.Storage
// interface.
type LevelDB struct {
	db *leveldb.DB
}

// New opens, or creates, the LevelDB database at the specified path.
func New(dbPath string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(dbPath, nil)
	if err != nil {
		return nil, fmt.Errorf("opening leveldb: %w", err)
	}

	return &LevelDB{db: db}, nil
}

// NewMemory constructs a LevelDB value backed by memory. This is useful for
// tests and throw away nodes.
func NewMemory() (*LevelDB, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("opening leveldb: %w", err)
	}

	return &LevelDB{db: db}, nil
}

// Close releases the database.
func (l *LevelDB) Close() error {
	return l.db.Close()
}

// Write takes the specified block and stores it under its number.
func (l *LevelDB) Write(block database.Block) error {
	data, err := json.Marshal(block)
	if err != nil {
		return err
	}

	return l.db.Put(blockKey(block.Header.Number), data, nil)
}

// GetBlock locates and returns the specified block by number.
func (l *LevelDB) GetBlock(num uint64) (database.Block, error) {
	data, err := l.db.Get(blockKey(num), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return database.Block{}, fmt.Errorf("block %d: %w", num, database.ErrNotFound)
		}
		return database.Block{}, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var block database.Block
	if err := dec.Decode(&block); err != nil {
		return database.Block{}, err
	}

	return block, nil
}

// ForEach returns an iterator to walk through all the blocks
// starting with block number 0.
func (l *LevelDB) ForEach() database.Iterator {
	return &levelIterator{store: l}
}

// Reset deletes every block from the database.
func (l *LevelDB) Reset() error {
	iter := l.db.NewIterator(util.BytesPrefix(blockPrefix), nil)
	defer iter.Release()

	batch := new(leveldb.Batch)
	for iter.Next() {
		batch.Delete(append([]byte(nil), iter.Key()...))
	}

	if err := iter.Error(); err != nil {
		return err
	}

	return l.db.Write(batch, nil)
}

// blockKey returns the key for a block number. Big endian keeps the keys
// sorted by number.
func blockKey(num uint64) []byte {
	key := make([]byte, len(blockPrefix)+8)
	copy(key, blockPrefix)
	binary.BigEndian.PutUint64(key[len(blockPrefix):], num)
	return key
}

// =============================================================================

// levelIterator represents the iteration implementation for walking through
// the blocks in the database. This implements the database Iterator
// interface.
type levelIterator struct {
	store   *LevelDB // Access to the storage API.
	current uint64   // Current block number being iterated over.
	eoc     bool     // Represents the iterator is at the end of the chain.
}

// Next retrieves the next block from the database.
func (li *levelIterator) Next() (database.Block, error) {
	if li.eoc {
		return database.Block{}, errors.New("end of chain")
	}

	block, err := li.store.GetBlock(li.current)
	if errors.Is(err, database.ErrNotFound) {
		li.eoc = true
	}

	li.current++

	return block, err
}

// Done returns the end of chain value.
func (li *levelIterator) Done() bool {
	return li.eoc
}
