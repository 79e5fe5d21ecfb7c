package database

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ardanlabs/ledger/foundation/blockchain/signature"
	"github.com/shopspring/decimal"
)

// Set of error variables for constructing ledger records.
var (
	ErrSignature = errors.New("signature does not match the record")
	ErrAmount    = errors.New("amount can't be negative")
)

// Verifier represents the behavior required to check a signature was
// produced by the private key of the specified public key.
type Verifier interface {
	Verify(signature string, message string, publicKey string) bool
}

// Signer represents the behavior required to sign a message.
type Signer interface {
	Sign(privateKey string, message string) (string, error)
}

// =============================================================================

// Tx represents a transfer of value between two accounts. The inputs are the
// identifiers of earlier transactions whose outputs are being spent.
type Tx struct {
	ID        string          `json:"txid"`                // Hash of from, to, amount, timestamp and inputs.
	From      string          `json:"from"`                // Public key of the sender.
	To        string          `json:"to"`                  // Public key of the receiver.
	Amount    decimal.Decimal `json:"amount"`              // Value being transferred.
	Signature string          `json:"signature,omitempty"` // Signature over the amount and sender.
	Inputs    []string        `json:"inputs"`              // Transactions whose outputs are spent.
	Note      string          `json:"note,omitempty"`      // Opaque data attached by the sender.
	TimeStamp int64           `json:"timestamp"`           // Creation time in unix nanoseconds.
	Change    bool            `json:"change,omitempty"`    // Marks a transaction synthesized while mining.
}

// TxSigningMessage returns the message a sender signs for a transfer.
func TxSigningMessage(from string, amount decimal.Decimal) string {
	return amount.String() + from
}

// TxID calculates the identifier of a transaction from its fields.
func TxID(from string, to string, amount decimal.Decimal, timeStamp int64, inputs []string) string {
	return signature.Hash(from, to, amount.String(), strconv.FormatInt(timeStamp, 10), strings.Join(inputs, ""))
}

// NewTx constructs a transaction and verifies the signature was produced by
// the sender over the amount and sender.
func NewTx(from string, to string, amount decimal.Decimal, inputs []string, note string, sig string, timeStamp int64, verifier Verifier) (Tx, error) {
	if amount.IsNegative() {
		return Tx{}, ErrAmount
	}

	if !verifier.Verify(sig, TxSigningMessage(from, amount), from) {
		return Tx{}, fmt.Errorf("tx from %s: %w", from, ErrSignature)
	}

	ins := make([]string, len(inputs))
	copy(ins, inputs)

	tx := Tx{
		From:      from,
		To:        to,
		Amount:    amount,
		Signature: sig,
		Inputs:    ins,
		Note:      note,
		TimeStamp: timeStamp,
	}
	tx.ID = TxID(from, to, amount, timeStamp, ins)

	return tx, nil
}

// NewChangeTx constructs the transaction that returns the surplus of the
// original transaction's inputs back to its sender. Change transactions
// carry no signature and spend no inputs.
func NewChangeTx(original Tx, change decimal.Decimal, timeStamp int64) Tx {
	from := original.To
	to := original.From

	return Tx{
		ID:        signature.Hash(to, from, change.String(), strconv.FormatInt(timeStamp, 10), original.ID),
		From:      from,
		To:        to,
		Amount:    change,
		Inputs:    []string{},
		TimeStamp: timeStamp,
		Change:    true,
	}
}

// String implements the fmt.Stringer interface for logging.
func (tx Tx) String() string {
	return fmt.Sprintf("%s:%s->%s:%s", tx.ID[:min(8, len(tx.ID))], short(tx.From), short(tx.To), tx.Amount)
}

// short trims a public key for logging.
func short(key string) string {
	if len(key) <= 10 {
		return key
	}
	return key[:10]
}
