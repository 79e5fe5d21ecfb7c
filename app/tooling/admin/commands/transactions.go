package commands

import (
	"fmt"
	"io"

	"github.com/ardanlabs/ledger/foundation/blockchain/state"
)

// Transactions prints the mined transactions, only the ones sent or
// received by the account when one is provided.
func Transactions(w io.Writer, account string, st *state.State) error {
	for _, block := range st.Blocks() {
		for _, tx := range block.Transactions {
			if account != "" && tx.From != account && tx.To != account {
				continue
			}

			fmt.Fprintf(w, "Block: %d  ID: %s  From: %s  To: %s  Amount: %s  Change: %t  Note: %s\n",
				block.Header.Number, tx.ID, tx.From, tx.To, tx.Amount, tx.Change, tx.Note)
		}
	}

	return nil
}
