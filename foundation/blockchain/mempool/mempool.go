// Package mempool maintains the mempool for the ledger. Pending
// transactions, contracts and messages are kept in three independent pools
// keyed by their identifiers.
package mempool

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/mempool/selector"
)

// Pool limits.
const (
	TTL    = 300 * time.Second // Entries older than this are evicted on pop.
	MaxPop = 10                // Most entries a single pop returns.
)

// Names of the pools.
const (
	KindTransactions = "transactions"
	KindContracts    = "contracts"
	KindMessages     = "messages"
)

// Option configures a mempool.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces the clock used to stamp and evict entries.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// =============================================================================

// Mempool represents the three pools of pending items.
type Mempool struct {
	Transactions *Pool[database.Tx]
	Contracts    *Pool[database.Contract]
	Messages     *Pool[database.Message]
}

// New constructs a new mempool using the random select strategy.
func New(opts ...Option) (*Mempool, error) {
	return NewWithStrategy(selector.StrategyRandom, opts...)
}

// NewWithStrategy constructs a new mempool with the specified select
// strategy.
func NewWithStrategy(strategy string, opts ...Option) (*Mempool, error) {
	selectFn, err := selector.Retrieve(strategy)
	if err != nil {
		return nil, err
	}

	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	mp := Mempool{
		Transactions: newPool[database.Tx](selectFn, o.now),
		Contracts:    newPool[database.Contract](selectFn, o.now),
		Messages:     newPool[database.Message](selectFn, o.now),
	}

	return &mp, nil
}

// Count returns the number of entries across all pools.
func (mp *Mempool) Count() int {
	return mp.Transactions.Count() + mp.Contracts.Count() + mp.Messages.Count()
}

// Truncate clears all the pools.
func (mp *Mempool) Truncate() {
	mp.Transactions.Truncate()
	mp.Contracts.Truncate()
	mp.Messages.Truncate()
}

// Copy returns the entries of the named pool, oldest first.
func (mp *Mempool) Copy(kind string) (any, error) {
	switch kind {
	case KindTransactions:
		return mp.Transactions.Copy(), nil
	case KindContracts:
		return mp.Contracts.Copy(), nil
	case KindMessages:
		return mp.Messages.Copy(), nil
	}

	return nil, fmt.Errorf("mempool kind %q does not exist", kind)
}

// =============================================================================

type entry[T any] struct {
	item  T
	added time.Time
}

// Pool represents a keyed collection of pending items, each stamped with the
// time it was added.
type Pool[T any] struct {
	mu       sync.Mutex
	pool     map[string]entry[T]
	selectFn selector.Func
	now      func() time.Time
}

func newPool[T any](selectFn selector.Func, now func() time.Time) *Pool[T] {
	return &Pool[T]{
		pool:     make(map[string]entry[T]),
		selectFn: selectFn,
		now:      now,
	}
}

// Count returns the current number of entries in the pool.
func (p *Pool[T]) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.pool)
}

// Upsert adds or replaces the entry for the key and returns the size of
// the pool.
func (p *Pool[T]) Upsert(key string, item T) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.pool[key] = entry[T]{item: item, added: p.now()}

	return len(p.pool)
}

// Get returns the item stored under the key.
func (p *Pool[T]) Get(key string) (T, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, exists := p.pool[key]
	return e.item, exists
}

// Delete removes the entry for the key.
func (p *Pool[T]) Delete(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.pool, key)
}

// Truncate clears all the entries from the pool.
func (p *Pool[T]) Truncate() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.pool = make(map[string]entry[T])
}

// Copy returns the items in the pool, oldest first.
func (p *Pool[T]) Copy() []T {
	p.mu.Lock()
	defer p.mu.Unlock()

	entries := make([]entry[T], 0, len(p.pool))
	for _, e := range p.pool {
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].added.Before(entries[j].added)
	})

	items := make([]T, len(entries))
	for i, e := range entries {
		items[i] = e.item
	}

	return items
}

// Pending is an entry taken from a pool along with the time it was added.
type Pending[T any] struct {
	Key   string
	Item  T
	Added time.Time
}

// Items returns the items of the pending entries.
func Items[T any](pending []Pending[T]) []T {
	items := make([]T, len(pending))
	for i, p := range pending {
		items[i] = p.Item
	}
	return items
}

// Pop evicts the entries older than the TTL and then removes and returns
// up to min(n, count, MaxPop) entries chosen by the select strategy.
// Entries not chosen remain pooled.
func (p *Pool[T]) Pop(n int) []T {
	return Items(p.Take(n))
}

// Take works like Pop but keeps the time each entry was added so the
// entry can be given back with Restore.
func (p *Pool[T]) Take(n int) []Pending[T] {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	for key, e := range p.pool {
		if now.Sub(e.added) > TTL {
			delete(p.pool, key)
		}
	}

	n = min(n, len(p.pool), MaxPop)
	if n <= 0 {
		return nil
	}

	entries := make([]selector.Entry, 0, len(p.pool))
	for key, e := range p.pool {
		entries = append(entries, selector.Entry{Key: key, Added: e.added})
	}

	taken := make([]Pending[T], 0, n)
	for _, key := range p.selectFn(entries, n) {
		e := p.pool[key]
		taken = append(taken, Pending[T]{Key: key, Item: e.item, Added: e.added})
		delete(p.pool, key)
	}

	return taken
}

// Restore puts taken entries back with their original add time, so they
// age out on the same schedule as if never taken. An entry submitted again
// in the meantime is kept.
func (p *Pool[T]) Restore(pending ...Pending[T]) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, pe := range pending {
		if _, exists := p.pool[pe.Key]; exists {
			continue
		}
		p.pool[pe.Key] = entry[T]{item: pe.Item, added: pe.Added}
	}
}
