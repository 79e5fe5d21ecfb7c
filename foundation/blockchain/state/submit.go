package state

import (
	"fmt"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/sandbox"
	"github.com/shopspring/decimal"
)

// SendPTH signs a transfer with the sender's private key and submits it.
func (s *State) SendPTH(from string, to string, amount decimal.Decimal, privateKey string, note string) (database.Tx, error) {
	sig, err := s.signer.Sign(privateKey, database.TxSigningMessage(from, amount))
	if err != nil {
		return database.Tx{}, fmt.Errorf("signing tx: %w", err)
	}

	return s.SubmitTx(from, to, amount, sig, note)
}

// SubmitTx accepts a transfer already signed by the sender. Inputs are
// chosen from the sender's unspent outputs by selectInputs. No change is
// produced here, any surplus is returned to the sender when the transaction
// is mined.
func (s *State) SubmitTx(from string, to string, amount decimal.Decimal, sig string, note string) (database.Tx, error) {
	if from == to {
		return database.Tx{}, ErrSelfTransfer
	}

	if balance := s.Balance(from); balance.LessThan(amount) {
		return database.Tx{}, fmt.Errorf("%w: balance %s, amount %s", ErrInsufficientBalance, balance, amount)
	}

	inputs := selectInputs(s.unspent(from), amount)

	tx, err := database.NewTx(from, to, amount, inputs, note, sig, now(), s.signer)
	if err != nil {
		return database.Tx{}, err
	}

	n := s.mempool.Transactions.Upsert(tx.ID, tx)
	s.evHandler("state: SubmitTx: tx[%s]: inputs[%d]: mempool[%d]", tx, len(inputs), n)

	return tx, nil
}

// selectInputs walks the unspent outputs, most recent first, gathering
// inputs until they cover the amount. The first output that alone exceeds
// the amount replaces everything gathered so far.
func selectInputs(utxos []utxo, amount decimal.Decimal) []string {
	var inputs []string
	left := amount

	for _, u := range utxos {
		if u.Amount.GreaterThan(amount) {
			return []string{u.ID}
		}

		inputs = append(inputs, u.ID)
		if left = left.Sub(u.Amount); !left.IsPositive() {
			break
		}
	}

	return inputs
}

// CreateContract signs the code with the owner's private key and deploys it.
func (s *State) CreateContract(code string, owner string, privateKey string) (database.Contract, error) {
	sig, err := s.signer.Sign(privateKey, code)
	if err != nil {
		return database.Contract{}, fmt.Errorf("signing contract: %w", err)
	}

	return s.DeployContract(code, owner, sig)
}

// DeployContract accepts contract code already signed by its owner. The
// code is compiled once to capture its initial state.
func (s *State) DeployContract(code string, owner string, sig string) (database.Contract, error) {
	cx, err := database.NewContract(code, owner, sig, now(), s.signer)
	if err != nil {
		return database.Contract{}, err
	}

	n := s.mempool.Contracts.Upsert(cx.ID, cx)
	s.evHandler("state: DeployContract: cx[%s]: vars%v: mempool[%d]", cx.ID, stateNames(cx.State.StateVars), n)

	return cx, nil
}

// CallContract signs the call data with the caller's private key and
// submits the call.
func (s *State) CallContract(cxid string, gas uint64, data any, from string, privateKey string) (database.Message, error) {
	encoded, err := database.EncodeData(data)
	if err != nil {
		return database.Message{}, err
	}

	sig, err := s.signer.Sign(privateKey, encoded)
	if err != nil {
		return database.Message{}, fmt.Errorf("signing message: %w", err)
	}

	return s.SubmitCall(cxid, gas, data, from, sig)
}

// SubmitCall accepts a contract call already signed by the caller. The
// contract is rehydrated from its latest state and main is run within the
// budget bought by the gas. The message is queued whatever the outcome,
// but only a call that completed in time carries a reply.
func (s *State) SubmitCall(cxid string, gas uint64, data any, from string, sig string) (database.Message, error) {
	if data != nil {
		var err error
		if data, err = sandbox.Normalize(data); err != nil {
			return database.Message{}, fmt.Errorf("call data: %w", err)
		}
	}

	mx, err := database.NewMessage(from, cxid, data, gas, sig, now(), s.signer)
	if err != nil {
		return database.Message{}, err
	}

	cx, err := s.Contract(cxid)
	if err != nil {
		return database.Message{}, err
	}

	vars, err := s.ContractState(cxid)
	if err != nil {
		return database.Message{}, err
	}

	env := sandbox.Env{
		Sender:   from,
		Data:     data,
		MaxSteps: s.maxSteps,
	}

	contract, err := sandbox.Compile(cx.Code, vars, env)
	if err != nil {
		return database.Message{}, err
	}

	outcome, err := contract.Run(sandbox.Budget(gas), mx.Args()...)
	s.evHandler("state: SubmitCall: mx[%s]: cx[%s]: outcome[%s]", mx.ID, cxid, outcome)
	if err != nil {
		s.evHandler("state: SubmitCall: mx[%s]: WARNING: call discarded: %s", mx.ID, err)
	}

	if outcome == sandbox.Applied {
		if err := mx.SetReply(contract.Reply()); err != nil {
			return database.Message{}, err
		}
	}

	n := s.mempool.Messages.Upsert(mx.ID, mx)
	s.evHandler("state: SubmitCall: mx[%s]: mempool[%d]", mx.ID, n)

	return mx, nil
}
