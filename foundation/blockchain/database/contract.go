package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/ardanlabs/ledger/foundation/blockchain/signature"
	"github.com/ardanlabs/ledger/foundation/sandbox"
)

// ErrReplySet is returned when a reply is recorded twice for a message.
var ErrReplySet = errors.New("message already has a reply")

// Contract represents deployed contract code along with the state captured
// when the code was first compiled.
type Contract struct {
	ID        string           `json:"cxid"`      // Hash of owner, code and timestamp.
	Owner     string           `json:"owner"`     // Public key of the deployer.
	Code      string           `json:"code"`      // Contract source code.
	Signature string           `json:"signature"` // Signature over the code.
	TimeStamp int64            `json:"timestamp"` // Deployment time in unix nanoseconds.
	State     sandbox.Snapshot `json:"state"`     // Initial state variables.
}

// ContractID calculates the identifier of a contract from its fields.
func ContractID(owner string, code string, timeStamp int64) string {
	return signature.Hash(owner, code, strconv.FormatInt(timeStamp, 10))
}

// NewContract constructs a contract, verifying the owner signed the code and
// compiling the code once to capture its initial state.
func NewContract(code string, owner string, sig string, timeStamp int64, verifier Verifier) (Contract, error) {
	if !verifier.Verify(sig, code, owner) {
		return Contract{}, fmt.Errorf("contract from %s: %w", owner, ErrSignature)
	}

	compiled, err := sandbox.Compile(code, nil, sandbox.Env{Sender: owner})
	if err != nil {
		return Contract{}, err
	}

	cx := Contract{
		ID:        ContractID(owner, code, timeStamp),
		Owner:     owner,
		Code:      code,
		Signature: sig,
		TimeStamp: timeStamp,
		State:     compiled.Snapshot(),
	}

	return cx, nil
}

// =============================================================================

// Message represents a call made to a contract. The reply holds the state
// and emits produced by the call and is absent when the call was discarded.
type Message struct {
	ID        string            `json:"mxid"`      // Hash of caller, contract, timestamp and data.
	From      string            `json:"from"`      // Public key of the caller.
	Contract  string            `json:"cxid"`      // Identifier of the contract being called.
	Signature string            `json:"signature"` // Signature over the encoded data.
	Data      any               `json:"data"`      // Call arguments.
	Gas       uint64            `json:"gas"`       // Gas bought for the call.
	TimeStamp int64             `json:"timestamp"` // Call time in unix nanoseconds.
	Reply     *sandbox.Snapshot `json:"reply"`     // State and emits produced by the call.
}

// EncodeData returns the canonical encoding of call data. This is the
// message a caller signs.
func EncodeData(data any) (string, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encoding data: %w", err)
	}
	return string(b), nil
}

// MessageID calculates the identifier of a message from its fields.
func MessageID(from string, cxid string, timeStamp int64, encodedData string) string {
	return signature.Hash(from, cxid, strconv.FormatInt(timeStamp, 10), encodedData)
}

// NewMessage constructs a message and verifies the caller signed the data.
func NewMessage(from string, cxid string, data any, gas uint64, sig string, timeStamp int64, verifier Verifier) (Message, error) {
	encoded, err := EncodeData(data)
	if err != nil {
		return Message{}, err
	}

	if !verifier.Verify(sig, encoded, from) {
		return Message{}, fmt.Errorf("message from %s: %w", from, ErrSignature)
	}

	mx := Message{
		ID:        MessageID(from, cxid, timeStamp, encoded),
		From:      from,
		Contract:  cxid,
		Signature: sig,
		Data:      data,
		Gas:       gas,
		TimeStamp: timeStamp,
	}

	return mx, nil
}

// Args returns the arguments main is called with. No data means no
// arguments, a list is spread and anything else is a single argument.
func (mx Message) Args() []any {
	switch data := mx.Data.(type) {
	case nil:
		return nil
	case []any:
		return data
	}
	return []any{mx.Data}
}

// SetReply records the outcome of the call. A reply can only be recorded
// once.
func (mx *Message) SetReply(reply sandbox.Snapshot) error {
	if mx.Reply != nil {
		return ErrReplySet
	}

	mx.Reply = &reply
	return nil
}
