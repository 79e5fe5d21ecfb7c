// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ardanlabs/ledger/business/sys/validate"
	"github.com/ardanlabs/ledger/business/web/errs"
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/signature"
	"github.com/ardanlabs/ledger/foundation/blockchain/state"
	"github.com/ardanlabs/ledger/foundation/events"
	"github.com/ardanlabs/ledger/foundation/nameservice"
	"github.com/ardanlabs/ledger/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of ledger endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	NS    *nameservice.NameService
	WS    websocket.Upgrader
	Evts  *events.Events
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// NewWallet generates a key pair. When seeds are provided the same wallet is
// produced for the same seeds.
func (h Handlers) NewWallet(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var wallet signature.Wallet
	var err error

	switch seeds := r.URL.Query().Get("seeds"); seeds {
	case "":
		wallet, err = signature.NewWallet()
	default:
		wallet, err = signature.NewWalletFromSeeds(strings.Split(seeds, ",")...)
	}
	if err != nil {
		return fmt.Errorf("generating wallet: %w", err)
	}

	return web.Respond(ctx, w, wallet, http.StatusOK)
}

// Genesis returns the genesis information.
func (h Handlers) Genesis(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.Genesis(), http.StatusOK)
}

// Difficulty returns the number of leading zeros a block hash needs.
func (h Handlers) Difficulty(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	resp := struct {
		Difficulty uint16 `json:"difficulty"`
	}{
		Difficulty: h.State.Difficulty(),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Blocks returns every block in the chain.
func (h Handlers) Blocks(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.Blocks(), http.StatusOK)
}

// Block returns the block identified by its number or its hash.
func (h Handlers) Block(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	id := web.Param(r, "id")

	var block database.Block
	var err error

	switch number, perr := strconv.ParseUint(id, 10, 64); {
	case perr == nil:
		block, err = h.State.QueryBlock(number)
	default:
		block, err = h.State.QueryBlockByHash(id)
	}
	if err != nil {
		return err
	}

	return web.Respond(ctx, w, block, http.StatusOK)
}

// Balance returns the balance of the account.
func (h Handlers) Balance(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	account := web.Param(r, "account")

	resp := balance{
		Account: account,
		Name:    h.name(account),
		Balance: h.State.Balance(account),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// UTXO returns the unspent transaction outputs of the account.
func (h Handlers) UTXO(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	account := web.Param(r, "account")

	ids := h.State.UTXO(account)
	if ids == nil {
		ids = []string{}
	}

	resp := utxo{
		Account: account,
		Name:    h.name(account),
		UTXO:    ids,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Mine takes entries from the mempool and mines a new block. The number of
// entries taken from each pool can be set with the ntx, ncx and nmx query
// parameters.
func (h Handlers) Mine(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var counts [3]int
	for i, name := range []string{"ntx", "ncx", "nmx"} {
		counts[i] = state.DefaultBatch

		if s := r.URL.Query().Get(name); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 0 {
				return errs.NewTrusted(fmt.Errorf("invalid %s: %q", name, s), http.StatusBadRequest)
			}
			counts[i] = n
		}
	}

	h.Log.Infow("mine", "traceid", v.TraceID, "ntx", counts[0], "ncx", counts[1], "nmx", counts[2])

	block, err := h.State.MineNewBlock(ctx, counts[0], counts[1], counts[2])
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return errs.NewTrusted(errors.New("mining cancelled"), http.StatusServiceUnavailable)
		}
		return err
	}

	resp := mined{
		Number:       block.Header.Number,
		Hash:         block.Hash,
		Nonce:        block.Header.Nonce,
		Transactions: len(block.Transactions),
		Contracts:    len(block.Contracts),
		Messages:     len(block.Messages),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// SubmitTx adds a new transfer to the mempool.
func (h Handlers) SubmitTx(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var req newTx
	if err := web.Decode(r, &req); err != nil {
		return errs.NewTrusted(fmt.Errorf("unable to decode payload: %w", err), http.StatusBadRequest)
	}

	if err := validate.Check(req); err != nil {
		return err
	}

	h.Log.Infow("submit tx", "traceid", v.TraceID, "from", h.NS.Lookup(req.From), "to", h.NS.Lookup(req.To), "amount", req.Amount)

	var tran database.Tx
	switch req.PrivateKey {
	case "":
		tran, err = h.State.SubmitTx(req.From, req.To, req.Amount, req.Signature, req.Note)
	default:
		tran, err = h.State.SendPTH(req.From, req.To, req.Amount, req.PrivateKey, req.Note)
	}
	if err != nil {
		return err
	}

	return web.Respond(ctx, w, h.toTx(tran), http.StatusCreated)
}

// Transaction returns the mined transaction with the specified id.
func (h Handlers) Transaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	tran, err := h.State.Transaction(web.Param(r, "txid"))
	if err != nil {
		return err
	}

	return web.Respond(ctx, w, h.toTx(tran), http.StatusOK)
}

// TxProof returns the merkle proof the transaction is part of its block.
func (h Handlers) TxProof(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	proof, err := h.State.QueryTxProof(web.Param(r, "txid"))
	if err != nil {
		return err
	}

	return web.Respond(ctx, w, proof, http.StatusOK)
}

// DeployContract adds new contract code to the mempool.
func (h Handlers) DeployContract(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var req newContract
	if err := web.Decode(r, &req); err != nil {
		return errs.NewTrusted(fmt.Errorf("unable to decode payload: %w", err), http.StatusBadRequest)
	}

	if err := validate.Check(req); err != nil {
		return err
	}

	h.Log.Infow("deploy contract", "traceid", v.TraceID, "owner", h.NS.Lookup(req.Owner))

	var cx database.Contract
	switch req.PrivateKey {
	case "":
		cx, err = h.State.DeployContract(req.Code, req.Owner, req.Signature)
	default:
		cx, err = h.State.CreateContract(req.Code, req.Owner, req.PrivateKey)
	}
	if err != nil {
		return err
	}

	return web.Respond(ctx, w, cx, http.StatusCreated)
}

// Contract returns the mined contract with the specified id.
func (h Handlers) Contract(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	cx, err := h.State.Contract(web.Param(r, "cxid"))
	if err != nil {
		return err
	}

	return web.Respond(ctx, w, cx, http.StatusOK)
}

// CallContract runs the main function of a mined contract and adds the
// call to the mempool.
func (h Handlers) CallContract(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var req newCall
	if err := web.Decode(r, &req); err != nil {
		return errs.NewTrusted(fmt.Errorf("unable to decode payload: %w", err), http.StatusBadRequest)
	}

	if err := validate.Check(req); err != nil {
		return err
	}

	cxid := web.Param(r, "cxid")
	h.Log.Infow("call contract", "traceid", v.TraceID, "cxid", cxid, "from", h.NS.Lookup(req.From), "gas", req.Gas)

	var mx database.Message
	switch req.PrivateKey {
	case "":
		mx, err = h.State.SubmitCall(cxid, req.Gas, req.Data, req.From, req.Signature)
	default:
		mx, err = h.State.CallContract(cxid, req.Gas, req.Data, req.From, req.PrivateKey)
	}
	if err != nil {
		return err
	}

	return web.Respond(ctx, w, mx, http.StatusCreated)
}

// ContractState returns the current state variables of the contract.
func (h Handlers) ContractState(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	vars, err := h.State.ContractState(web.Param(r, "cxid"))
	if err != nil {
		return err
	}

	return web.Respond(ctx, w, vars, http.StatusOK)
}

// ContractEmits returns the emits of the calls made to the contract keyed
// by message id. With values=true only the emits are returned, most recent
// call first.
func (h Handlers) ContractEmits(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	cxid := web.Param(r, "cxid")

	if values, _ := strconv.ParseBool(r.URL.Query().Get("values")); values {
		emits, err := h.State.QueryEmitValues(cxid)
		if err != nil {
			return err
		}
		return web.Respond(ctx, w, emits, http.StatusOK)
	}

	emits, err := h.State.QueryEmits(cxid)
	if err != nil {
		return err
	}

	return web.Respond(ctx, w, emits, http.StatusOK)
}

// Mempool returns the entries waiting to be mined. Without a kind every
// pool is returned.
func (h Handlers) Mempool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	entries, err := h.State.QueryMempool(web.Param(r, "kind"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusNotFound)
	}

	return web.Respond(ctx, w, entries, http.StatusOK)
}

// Validate checks the integrity of the chain.
func (h Handlers) Validate(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	resp := validation{Valid: true}

	if err := h.State.ValidateChain(); err != nil {
		var ce *database.ChainError
		if !errors.As(err, &ce) {
			return err
		}

		resp = validation{
			Block:  ce.Number,
			Reason: ce.Reason,
		}
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// =============================================================================

func (h Handlers) toTx(tran database.Tx) tx {
	return tx{
		Tx:       tran,
		FromName: h.name(tran.From),
		ToName:   h.name(tran.To),
	}
}

// name returns the known name of the account or nothing.
func (h Handlers) name(account string) string {
	if name := h.NS.Lookup(account); name != account {
		return name
	}
	return ""
}
