// Package state is the core API for the ledger and implements all the
// business rules and processing.
package state

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/feed"
	"github.com/ardanlabs/ledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/ledger/foundation/blockchain/mempool"
	"github.com/ardanlabs/ledger/foundation/blockchain/signature"
	"github.com/ardanlabs/ledger/foundation/sandbox"
)

// Set of error variables for submissions made to the ledger.
var (
	ErrInsufficientBalance = errors.New("not enough balance")
	ErrSelfTransfer        = errors.New("can't send to yourself")
	ErrContractNotFound    = fmt.Errorf("contract not found: %w", sandbox.ErrLookup)
)

// publishTimeout bounds the time spent handing a mined block to the feed.
const publishTimeout = 5 * time.Second

// =============================================================================

// EventHandler defines a function that is called when events
// occur in the processing of the ledger.
type EventHandler func(v string, args ...any)

// Worker interface represents the behavior required to be implemented by any
// package providing support for background mining.
type Worker interface {
	Shutdown()
	SignalStartMining()
}

// Signer represents the signing and verification behavior the ledger
// consumes. Key material is only ever passed through.
type Signer interface {
	database.Signer
	database.Verifier
}

// =============================================================================

// Config represents the configuration required to start the ledger.
type Config struct {
	Genesis        genesis.Genesis
	Storage        database.Storage
	SelectStrategy string
	Signer         Signer
	EvHandler      EventHandler
	MaxSteps       uint64
	Feed           feed.Publisher // Receives every mined block. Optional.
}

// State manages the ledger database, the mempool and contract execution.
type State struct {
	evHandler EventHandler
	signer    Signer
	maxSteps  uint64
	feed      feed.Publisher
	mineMu    sync.Mutex

	genesis genesis.Genesis
	mempool *mempool.Mempool
	db      *database.Database

	Worker Worker
}

// New constructs a new ledger for data management.
func New(cfg Config) (*State, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	if err := cfg.Genesis.Validate(); err != nil {
		return nil, fmt.Errorf("genesis: %w", err)
	}

	var signer Signer = signature.Secp256k1{}
	if cfg.Signer != nil {
		signer = cfg.Signer
	}

	// Access the storage for the ledger. Stored blocks are validated as
	// they are loaded.
	db, err := database.New(cfg.Genesis, cfg.Storage, ev)
	if err != nil {
		return nil, err
	}

	var pub feed.Publisher = feed.Nop{}
	if cfg.Feed != nil {
		pub = cfg.Feed
	}

	// Construct a mempool with the specified select strategy.
	mp, err := mempool.NewWithStrategy(cfg.SelectStrategy)
	if err != nil {
		db.Close()
		return nil, err
	}

	state := State{
		evHandler: ev,
		signer:    signer,
		maxSteps:  cfg.MaxSteps,
		feed:      pub,

		genesis: cfg.Genesis,
		mempool: mp,
		db:      db,
	}

	ev("state: New: ledger loaded: blocks[%d]: latest[%s]", db.Count(), db.LatestBlock().Hash)

	// The Worker is not set here. The call to worker.Run will assign itself
	// and start everything up and running for the node.

	return &state, nil
}

// Shutdown cleanly brings the ledger down.
func (s *State) Shutdown() error {
	s.evHandler("state: shutdown: started")
	defer s.evHandler("state: shutdown: completed")

	// Stop all mining activity.
	if s.Worker != nil {
		s.Worker.Shutdown()
	}

	if err := s.feed.Close(); err != nil {
		s.evHandler("state: shutdown: feed: ERROR: %s", err)
	}

	// Make sure the database is properly closed.
	return s.db.Close()
}

// Truncate resets the chain back to the genesis block and clears the
// mempool.
func (s *State) Truncate() error {
	s.mineMu.Lock()
	defer s.mineMu.Unlock()

	s.mempool.Truncate()

	return s.db.Reset()
}

// =============================================================================

// blockMined announces a block that was written to the chain and hands it
// to the feed. A feed failure is logged, the block stays mined.
func (s *State) blockMined(block database.Block) {
	s.evHandler("viewer: block mined: blk[%d]: hash[%s]: txs[%d] cxs[%d] mxs[%d]", block.Header.Number, block.Hash, len(block.Transactions), len(block.Contracts), len(block.Messages))

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := s.feed.PublishBlock(ctx, block); err != nil {
		s.evHandler("state: blockMined: blk[%d]: feed: WARNING %s", block.Header.Number, err)
	}
}

// now returns the time used to stamp new records.
func now() int64 {
	return time.Now().UTC().UnixNano()
}
