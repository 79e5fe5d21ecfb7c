package commands

import (
	"fmt"
	"io"
	"sort"

	"github.com/ardanlabs/ledger/foundation/blockchain/state"
)

// Balances prints the balance of the account, or of every account seen in
// the chain when no account is provided.
func Balances(w io.Writer, account string, st *state.State) error {
	fmt.Fprintf(w, "LatestBlockHash: %s\n\n", st.LatestBlock().Hash)

	accounts := []string{account}
	if account == "" {
		accounts = chainAccounts(st)
	}

	for _, acct := range accounts {
		fmt.Fprintf(w, "Account: %s  Balance: %s  Unspent: %d\n", acct, st.Balance(acct), len(st.UTXO(acct)))
	}

	return nil
}

// chainAccounts returns every account that sent or received value.
func chainAccounts(st *state.State) []string {
	seen := make(map[string]bool)
	for _, block := range st.Blocks() {
		for _, tx := range block.Transactions {
			seen[tx.From] = true
			seen[tx.To] = true
		}
	}

	accounts := make([]string, 0, len(seen))
	for acct := range seen {
		accounts = append(accounts, acct)
	}
	sort.Strings(accounts)

	return accounts
}
