package database

import "fmt"

// ChainError describes the first integrity violation found in a chain.
type ChainError struct {
	Number uint64
	Reason string
}

// Error implements the error interface.
func (ce *ChainError) Error() string {
	return fmt.Sprintf("block %d: %s", ce.Number, ce.Reason)
}

// ValidateChain checks, for every block in order, that the stored hash
// matches the header and that the previous hash links to the prior block.
// The first violation is reported as a *ChainError.
func ValidateChain(blocks []Block, evHandler func(v string, args ...any)) error {
	for i, block := range blocks {
		evHandler("database: ValidateChain: blk[%d]: check: hash matches header", block.Header.Number)

		if !block.IsHashConsistent() {
			return &ChainError{
				Number: block.Header.Number,
				Reason: fmt.Sprintf("hash %s doesn't match header hash %s", block.Hash, CalculateHash(block.Header)),
			}
		}

		if i == 0 {
			continue
		}

		evHandler("database: ValidateChain: blk[%d]: check: previous hash links to parent", block.Header.Number)

		if prev := blocks[i-1]; block.Header.PrevBlockHash != prev.Hash {
			return &ChainError{
				Number: block.Header.Number,
				Reason: fmt.Sprintf("previous hash %s doesn't match parent hash %s", block.Header.PrevBlockHash, prev.Hash),
			}
		}
	}

	return nil
}
