package public

import (
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/shopspring/decimal"
)

// newTx is a transfer submitted by a client. Either the private key is
// provided so the node signs, or the client provides its own signature
// over the amount and sender.
type newTx struct {
	From       string          `json:"from" validate:"required,pubkey"`
	To         string          `json:"to" validate:"required,pubkey"`
	Amount     decimal.Decimal `json:"amount"`
	Note       string          `json:"note"`
	PrivateKey string          `json:"private_key" validate:"required_without=Signature"`
	Signature  string          `json:"signature" validate:"required_without=PrivateKey"`
}

type newContract struct {
	Code       string `json:"code" validate:"required"`
	Owner      string `json:"owner" validate:"required,pubkey"`
	PrivateKey string `json:"private_key" validate:"required_without=Signature"`
	Signature  string `json:"signature" validate:"required_without=PrivateKey"`
}

type newCall struct {
	From       string `json:"from" validate:"required,pubkey"`
	Gas        uint64 `json:"gas"`
	Data       any    `json:"data"`
	PrivateKey string `json:"private_key" validate:"required_without=Signature"`
	Signature  string `json:"signature" validate:"required_without=PrivateKey"`
}

// =============================================================================

type tx struct {
	database.Tx
	FromName string `json:"from_name,omitempty"`
	ToName   string `json:"to_name,omitempty"`
}

type balance struct {
	Account string          `json:"account"`
	Name    string          `json:"name,omitempty"`
	Balance decimal.Decimal `json:"balance"`
}

type utxo struct {
	Account string   `json:"account"`
	Name    string   `json:"name,omitempty"`
	UTXO    []string `json:"utxo"`
}

type mined struct {
	Number       uint64 `json:"number"`
	Hash         string `json:"hash"`
	Nonce        string `json:"nonce"`
	Transactions int    `json:"transactions"`
	Contracts    int    `json:"contracts"`
	Messages     int    `json:"messages"`
}

type validation struct {
	Valid  bool   `json:"valid"`
	Block  uint64 `json:"block,omitempty"`
	Reason string `json:"reason,omitempty"`
}
