// Package handlers contains the full set of handler functions and routes
// supported by the viewer.
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/ardanlabs/ledger/business/web/mid"
	"github.com/ardanlabs/ledger/foundation/web"
	"go.uber.org/zap"
)

// UIMux constructs an http.Handler with all application routes defined.
// The page connects to the events feed of the node at nodeHost.
func UIMux(build string, nodeHost string, shutdown chan os.Signal, log *zap.SugaredLogger) (*web.App, error) {
	app := web.NewApp(
		shutdown,
		mid.Logger(log),
		mid.Errors(log),
		mid.Panics(),
		mid.Cors("*"),
	)

	// Register the index page for the website.
	ig, err := newIndex(build, nodeHost)
	if err != nil {
		return nil, fmt.Errorf("loading index template: %w", err)
	}
	app.Handle(http.MethodGet, "", "/", ig.handler)

	// The node is reachable from the viewer for a quick health check.
	app.Handle(http.MethodGet, "", "/health", func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		resp := struct {
			Status string `json:"status"`
			Build  string `json:"build"`
		}{
			Status: "ok",
			Build:  build,
		}
		return web.Respond(ctx, w, resp, http.StatusOK)
	})

	return app, nil
}
