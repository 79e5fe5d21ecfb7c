// Package private maintains the group of handlers for operator access.
package private

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"

	"github.com/ardanlabs/ledger/business/web/errs"
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/state"
	"github.com/ardanlabs/ledger/foundation/nameservice"
	"github.com/ardanlabs/ledger/foundation/web"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Handlers manages the set of operator endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	NS    *nameservice.NameService
}

// Status returns the current status of the node.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	latest := h.State.LatestBlock()

	status := struct {
		LatestBlockHash   string `json:"latest_block_hash"`
		LatestBlockNumber uint64 `json:"latest_block_number"`
		Difficulty        uint16 `json:"difficulty"`
		Mempool           int    `json:"mempool"`
	}{
		LatestBlockHash:   latest.Hash,
		LatestBlockNumber: latest.Header.Number,
		Difficulty:        h.State.Difficulty(),
		Mempool:           h.State.QueryMempoolLength(),
	}

	return web.Respond(ctx, w, status, http.StatusOK)
}

// Accounts returns the balances of every account known to the name service.
func (h Handlers) Accounts(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	type account struct {
		Name    string          `json:"name"`
		Account string          `json:"account"`
		Balance decimal.Decimal `json:"balance"`
	}

	accounts := []account{}
	for acct, name := range h.NS.Copy() {
		accounts = append(accounts, account{
			Name:    name,
			Account: acct,
			Balance: h.State.Balance(acct),
		})
	}

	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].Name < accounts[j].Name
	})

	return web.Respond(ctx, w, accounts, http.StatusOK)
}

// BlocksByNumber returns the blocks between the from and to numbers
// inclusive. The word latest can be used for either value.
func (h Handlers) BlocksByNumber(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	latest := h.State.LatestBlock().Header.Number

	parse := func(key string) (uint64, error) {
		s := web.Param(r, key)
		if s == "latest" || s == "" {
			return latest, nil
		}
		return strconv.ParseUint(s, 10, 64)
	}

	from, err := parse("from")
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}
	to, err := parse("to")
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	if from > to {
		return errs.NewTrusted(errors.New("from greater than to"), http.StatusBadRequest)
	}

	var blocks []database.Block
	for n := from; n <= to && n <= latest; n++ {
		block, err := h.State.QueryBlock(n)
		if err != nil {
			return err
		}
		blocks = append(blocks, block)
	}

	if len(blocks) == 0 {
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}

	return web.Respond(ctx, w, blocks, http.StatusOK)
}

// SignalMining asks the background worker to mine a block now.
func (h Handlers) SignalMining(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if h.State.Worker == nil {
		return errs.NewTrusted(errors.New("background mining is not running"), http.StatusServiceUnavailable)
	}

	h.State.Worker.SignalStartMining()

	resp := struct {
		Status string `json:"status"`
	}{
		Status: "mining signaled",
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Truncate resets the chain back to the genesis block.
func (h Handlers) Truncate(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.Log.Infow("truncate", "traceid", v.TraceID)

	if err := h.State.Truncate(); err != nil {
		return err
	}

	resp := struct {
		Status string `json:"status"`
	}{
		Status: "ledger truncated",
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}
