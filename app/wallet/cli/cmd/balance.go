package cmd

import (
	"log"

	"github.com/spf13/cobra"
)

type balance struct {
	Account string `json:"account"`
	Name    string `json:"name"`
	Balance string `json:"balance"`
}

type unspent struct {
	UTXO []string `json:"utxo"`
}

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Print your balance and unspent outputs.",
	Run:   balanceRun,
}

func init() {
	rootCmd.AddCommand(balanceCmd)
}

func balanceRun(cmd *cobra.Command, args []string) {
	wallet, err := loadWallet()
	if err != nil {
		log.Fatal(err)
	}

	label.Print("For Account: ")
	success.Println(wallet.PublicKey)

	var bal balance
	if err := get("/v1/balance/"+wallet.PublicKey, &bal); err != nil {
		log.Fatal(failure.Sprint(err))
	}

	var utxo unspent
	if err := get("/v1/utxo/"+wallet.PublicKey, &utxo); err != nil {
		log.Fatal(failure.Sprint(err))
	}

	label.Print("Balance:     ")
	success.Println(bal.Balance)
	label.Print("Unspent:     ")
	success.Println(len(utxo.UTXO))
}
