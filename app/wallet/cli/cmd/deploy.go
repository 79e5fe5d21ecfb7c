package cmd

import (
	"log"
	"os"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/signature"
	"github.com/spf13/cobra"
)

var codeFile string

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy contract code",
	Run:   deployRun,
}

func init() {
	rootCmd.AddCommand(deployCmd)
	deployCmd.Flags().StringVarP(&codeFile, "code", "c", "", "Path to the contract source.")
}

func deployRun(cmd *cobra.Command, args []string) {
	wallet, err := loadWallet()
	if err != nil {
		log.Fatal(err)
	}

	code, err := os.ReadFile(codeFile)
	if err != nil {
		log.Fatal(err)
	}

	sig, err := signature.Sign(wallet.PrivateKey, string(code))
	if err != nil {
		log.Fatal(err)
	}

	req := struct {
		Code      string `json:"code"`
		Owner     string `json:"owner"`
		Signature string `json:"signature"`
	}{
		Code:      string(code),
		Owner:     wallet.PublicKey,
		Signature: sig,
	}

	var cx database.Contract
	if err := post("/v1/contracts", req, &cx); err != nil {
		log.Fatal(failure.Sprint(err))
	}

	label.Print("Contract: ")
	success.Println(cx.ID)
	for _, name := range sortedKeys(cx.State.StateVars) {
		label.Printf("  %s: ", name)
		success.Println(cx.State.StateVars[name])
	}
}
