package cmd

import (
	"encoding/json"
	"log"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/signature"
	"github.com/spf13/cobra"
)

var (
	cxid     string
	gas      uint64
	callData string
)

var callCmd = &cobra.Command{
	Use:   "call",
	Short: "Call the main function of a contract",
	Run:   callRun,
}

func init() {
	rootCmd.AddCommand(callCmd)
	callCmd.Flags().StringVarP(&cxid, "contract", "c", "", "Id of the contract to call.")
	callCmd.Flags().Uint64VarP(&gas, "gas", "g", 10000, "Gas bought for the call.")
	callCmd.Flags().StringVarP(&callData, "data", "d", "", "JSON encoded call arguments.")
}

func callRun(cmd *cobra.Command, args []string) {
	wallet, err := loadWallet()
	if err != nil {
		log.Fatal(err)
	}

	var data any
	if callData != "" {
		if err := json.Unmarshal([]byte(callData), &data); err != nil {
			log.Fatalf("invalid data: %s", err)
		}
	}

	encoded, err := database.EncodeData(data)
	if err != nil {
		log.Fatal(err)
	}

	sig, err := signature.Sign(wallet.PrivateKey, encoded)
	if err != nil {
		log.Fatal(err)
	}

	req := struct {
		From      string `json:"from"`
		Gas       uint64 `json:"gas"`
		Data      any    `json:"data"`
		Signature string `json:"signature"`
	}{
		From:      wallet.PublicKey,
		Gas:       gas,
		Data:      data,
		Signature: sig,
	}

	var mx database.Message
	if err := post("/v1/contracts/"+cxid+"/call", req, &mx); err != nil {
		log.Fatal(failure.Sprint(err))
	}

	label.Print("Message: ")
	success.Println(mx.ID)

	if mx.Reply == nil {
		failure.Println("The call was discarded. No reply was recorded.")
		return
	}

	for _, line := range mx.Reply.Emits {
		label.Print("  emit: ")
		success.Println(line)
	}
}
