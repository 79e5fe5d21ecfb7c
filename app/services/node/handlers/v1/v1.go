// Package v1 contains the full set of handler functions and routes
// supported by the v1 web api.
package v1

import (
	"net/http"

	"github.com/ardanlabs/ledger/app/services/node/handlers/v1/private"
	"github.com/ardanlabs/ledger/app/services/node/handlers/v1/public"
	"github.com/ardanlabs/ledger/foundation/blockchain/state"
	"github.com/ardanlabs/ledger/foundation/events"
	"github.com/ardanlabs/ledger/foundation/nameservice"
	"github.com/ardanlabs/ledger/foundation/web"
	"go.uber.org/zap"
)

const version = "v1"

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log   *zap.SugaredLogger
	State *state.State
	NS    *nameservice.NameService
	Evts  *events.Events
}

// PublicRoutes binds all the version 1 public routes.
func PublicRoutes(app *web.App, cfg Config) {
	pbl := public.Handlers{
		Log:   cfg.Log,
		State: cfg.State,
		NS:    cfg.NS,
		Evts:  cfg.Evts,
	}

	app.Handle(http.MethodGet, version, "/events", pbl.Events)
	app.Handle(http.MethodGet, version, "/wallet", pbl.NewWallet)
	app.Handle(http.MethodGet, version, "/genesis", pbl.Genesis)
	app.Handle(http.MethodGet, version, "/difficulty", pbl.Difficulty)
	app.Handle(http.MethodGet, version, "/blocks", pbl.Blocks)
	app.Handle(http.MethodGet, version, "/blocks/:id", pbl.Block)
	app.Handle(http.MethodGet, version, "/balance/:account", pbl.Balance)
	app.Handle(http.MethodGet, version, "/utxo/:account", pbl.UTXO)
	app.Handle(http.MethodPost, version, "/mine", pbl.Mine)
	app.Handle(http.MethodPost, version, "/tx", pbl.SubmitTx)
	app.Handle(http.MethodGet, version, "/tx/:txid", pbl.Transaction)
	app.Handle(http.MethodGet, version, "/tx/proof/:txid", pbl.TxProof)
	app.Handle(http.MethodPost, version, "/contracts", pbl.DeployContract)
	app.Handle(http.MethodGet, version, "/contracts/:cxid", pbl.Contract)
	app.Handle(http.MethodPost, version, "/contracts/:cxid/call", pbl.CallContract)
	app.Handle(http.MethodGet, version, "/contracts/:cxid/state", pbl.ContractState)
	app.Handle(http.MethodGet, version, "/contracts/:cxid/emits", pbl.ContractEmits)
	app.Handle(http.MethodGet, version, "/mempool", pbl.Mempool)
	app.Handle(http.MethodGet, version, "/mempool/:kind", pbl.Mempool)
	app.Handle(http.MethodGet, version, "/validate", pbl.Validate)
}

// PrivateRoutes binds all the version 1 private routes.
func PrivateRoutes(app *web.App, cfg Config) {
	prv := private.Handlers{
		Log:   cfg.Log,
		State: cfg.State,
		NS:    cfg.NS,
	}

	app.Handle(http.MethodGet, version, "/node/status", prv.Status)
	app.Handle(http.MethodGet, version, "/node/accounts", prv.Accounts)
	app.Handle(http.MethodPost, version, "/node/mining/signal", prv.SignalMining)
	app.Handle(http.MethodGet, version, "/node/blocks/:from/:to", prv.BlocksByNumber)
	app.Handle(http.MethodPost, version, "/node/truncate", prv.Truncate)
}
