package cmd

import (
	"log"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/signature"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	to     string
	amount string
	note   string
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a transfer",
	Run:   sendRun,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVarP(&to, "to", "t", "", "Account receiving the value.")
	sendCmd.Flags().StringVarP(&amount, "amount", "v", "", "Value to send.")
	sendCmd.Flags().StringVarP(&note, "note", "n", "", "Note attached to the transfer.")
}

func sendRun(cmd *cobra.Command, args []string) {
	wallet, err := loadWallet()
	if err != nil {
		log.Fatal(err)
	}

	value, err := decimal.NewFromString(amount)
	if err != nil {
		log.Fatalf("invalid amount %q: %s", amount, err)
	}

	// The private key never leaves the wallet. Only the signature over the
	// amount and sender is sent to the node.
	sig, err := signature.Sign(wallet.PrivateKey, database.TxSigningMessage(wallet.PublicKey, value))
	if err != nil {
		log.Fatal(err)
	}

	req := struct {
		From      string          `json:"from"`
		To        string          `json:"to"`
		Amount    decimal.Decimal `json:"amount"`
		Note      string          `json:"note"`
		Signature string          `json:"signature"`
	}{
		From:      wallet.PublicKey,
		To:        to,
		Amount:    value,
		Note:      note,
		Signature: sig,
	}

	var tx database.Tx
	if err := post("/v1/tx", req, &tx); err != nil {
		log.Fatal(failure.Sprint(err))
	}

	label.Print("Submitted Tx: ")
	success.Println(tx.ID)
	label.Print("Inputs:       ")
	success.Println(len(tx.Inputs))
}
