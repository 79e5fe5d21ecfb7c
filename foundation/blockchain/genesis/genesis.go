// Package genesis maintains access to the genesis file.
package genesis

import (
	"encoding/json"
	"errors"
	"os"
	"time"

	"github.com/ardanlabs/ledger/foundation/blockchain/signature"
	"github.com/shopspring/decimal"
)

// Seeds used to derive the well known account that is pre-funded by the
// default genesis. Anyone can reconstruct this wallet for development.
var defaultSeeds = []string{"bob", "the", "builder"}

// Genesis represents the genesis file.
type Genesis struct {
	Date       time.Time       `json:"date"`
	Account    string          `json:"account"`    // Public key of the account that is pre-funded.
	Balance    decimal.Decimal `json:"balance"`    // Amount that is pre-funded into the account.
	Difficulty uint16          `json:"difficulty"` // How difficult it needs to be to solve the work problem.
}

// =============================================================================

// Default returns the genesis used when no genesis file is provided. The
// funded account belongs to the wallet produced by DefaultWallet.
func Default() Genesis {
	w, err := DefaultWallet()
	if err != nil {
		// The seeds are constant so this can only fail on a broken build.
		panic(err)
	}

	return Genesis{
		Date:       time.Date(2021, time.April, 1, 0, 0, 0, 0, time.UTC),
		Account:    w.PublicKey,
		Balance:    decimal.NewFromInt(1_000_000_000_000),
		Difficulty: 2,
	}
}

// DefaultWallet returns the wallet that owns the account pre-funded by the
// default genesis.
func DefaultWallet() (signature.Wallet, error) {
	return signature.NewWalletFromSeeds(defaultSeeds...)
}

// Load opens and consumes the genesis file.
func Load(path string) (Genesis, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, err
	}

	var genesis Genesis
	if err := json.Unmarshal(content, &genesis); err != nil {
		return Genesis{}, err
	}

	if err := genesis.Validate(); err != nil {
		return Genesis{}, err
	}

	return genesis, nil
}

// Validate checks the genesis values are usable to construct a chain.
func (g Genesis) Validate() error {
	if g.Account == "" {
		return errors.New("genesis account is required")
	}

	if g.Balance.IsNegative() {
		return errors.New("genesis balance can't be negative")
	}

	return nil
}
