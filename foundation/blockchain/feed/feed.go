// Package feed publishes mined blocks to downstream consumers.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
)

// Publisher represents the behavior required to publish mined blocks.
type Publisher interface {
	PublishBlock(ctx context.Context, block database.Block) error
	Close() error
}

// Envelope is the document written for every published event.
type Envelope struct {
	Type string         `json:"type"`
	Data database.Block `json:"data"`
	Time time.Time      `json:"time"`
}

// encode returns the key and value used to publish the block.
func encode(block database.Block, now time.Time) ([]byte, []byte, error) {
	env := Envelope{
		Type: "block",
		Data: block,
		Time: now,
	}

	value, err := json.Marshal(env)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal block %d: %w", block.Header.Number, err)
	}

	return []byte(strconv.FormatUint(block.Header.Number, 10)), value, nil
}

// =============================================================================

// Nop is a publisher that discards every block. It is used when no feed is
// configured.
type Nop struct{}

// PublishBlock implements the Publisher interface.
func (Nop) PublishBlock(ctx context.Context, block database.Block) error {
	return nil
}

// Close implements the Publisher interface.
func (Nop) Close() error {
	return nil
}
