// Package selector provides different mempool selecting algorithms.
package selector

import (
	"fmt"
	"math/rand"
	"sort"
	"time"
)

// List of different select strategies.
const (
	StrategyRandom = "random"
	StrategyOldest = "oldest"
)

// Map of different select strategies with functions.
var strategies = map[string]Func{
	StrategyRandom: randomSelect,
	StrategyOldest: oldestSelect,
}

// Entry describes a pooled item to a selector.
type Entry struct {
	Key   string
	Added time.Time
}

// Func defines a function that takes the pooled entries and selects howMany
// of them, returning their keys. A selector never returns more keys than
// entries and never returns the same key twice.
type Func func(entries []Entry, howMany int) []string

// Retrieve returns the specified select strategy function.
func Retrieve(strategy string) (Func, error) {
	fn, exists := strategies[strategy]
	if !exists {
		return nil, fmt.Errorf("strategy %q does not exist", strategy)
	}
	return fn, nil
}

// =============================================================================

// randomSelect samples howMany entries uniformly without replacement.
var randomSelect = func(entries []Entry, howMany int) []string {
	howMany = min(howMany, len(entries))

	keys := make([]string, 0, howMany)
	for _, i := range rand.Perm(len(entries))[:howMany] {
		keys = append(keys, entries[i].Key)
	}

	return keys
}

// oldestSelect returns the howMany entries that have been pooled the
// longest, oldest first.
var oldestSelect = func(entries []Entry, howMany int) []string {
	howMany = min(howMany, len(entries))

	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Sort(byAdded(sorted))

	keys := make([]string, 0, howMany)
	for _, e := range sorted[:howMany] {
		keys = append(keys, e.Key)
	}

	return keys
}

// =============================================================================

// byAdded provides sorting support by the time an entry was pooled.
type byAdded []Entry

// Len returns the number of entries in the list.
func (ba byAdded) Len() int {
	return len(ba)
}

// Less helps to sort the list by insertion time in ascending order. Ties
// are broken by key so the order is stable.
func (ba byAdded) Less(i, j int) bool {
	if ba[i].Added.Equal(ba[j].Added) {
		return ba[i].Key < ba[j].Key
	}
	return ba[i].Added.Before(ba[j].Added)
}

// Swap moves entries in the order of the insertion time.
func (ba byAdded) Swap(i, j int) {
	ba[i], ba[j] = ba[j], ba[i]
}
