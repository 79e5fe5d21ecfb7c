package commands

import (
	"errors"
	"fmt"
	"io"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/state"
)

// Validate checks the integrity of the stored chain.
func Validate(w io.Writer, st *state.State) error {
	latest := st.LatestBlock()

	if err := st.ValidateChain(); err != nil {
		var ce *database.ChainError
		if errors.As(err, &ce) {
			fmt.Fprintf(w, "INVALID: block %d: %s\n", ce.Number, ce.Reason)
		}
		return err
	}

	fmt.Fprintf(w, "VALID: blocks[%d] latest[%s]\n", latest.Header.Number+1, latest.Hash)

	return nil
}
