package mid

import (
	"context"
	"errors"
	"net/http"

	"github.com/ardanlabs/ledger/business/web/errs"
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/state"
	"github.com/ardanlabs/ledger/foundation/sandbox"
	"github.com/ardanlabs/ledger/foundation/web"
	"go.uber.org/zap"
)

// Errors handles errors coming out of the call chain. It detects normal
// application errors which are used to respond to the client in a uniform way.
// Unexpected errors (status >= 500) are logged.
func Errors(log *zap.SugaredLogger) web.Middleware {

	// This is the actual middleware function to be executed.
	m := func(handler web.Handler) web.Handler {

		// Create the handler that will be attached in the middleware chain.
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

			// If the context is missing this value, request the service
			// to be shutdown gracefully.
			v, err := web.GetValues(ctx)
			if err != nil {
				return web.NewShutdownError("web value missing from context")
			}

			// Run the next handler and catch any propagated error.
			if err := handler(ctx, w, r); err != nil {

				// Log the error.
				log.Errorw("ERROR", "traceid", v.TraceID, "ERROR", err)

				// Build out the error response.
				var er errs.Response
				var status int
				switch {
				case errs.IsFieldErrors(err):
					fieldErrors := errs.GetFieldErrors(err)
					er = errs.Response{
						Error:  "data validation error",
						Fields: fieldErrors.Fields(),
					}
					status = http.StatusBadRequest

				case errs.IsTrusted(err):
					trsErr := errs.GetTrusted(err)
					er = errs.Response{
						Error: trsErr.Error(),
					}
					status = trsErr.Status

				default:
					status, er = ledgerError(err)
				}

				// Respond with the error back to the client.
				if err := web.Respond(ctx, w, er, status); err != nil {
					return err
				}

				// If we receive the shutdown err we need to return it
				// back to the base handler to shut down the service.
				if web.IsShutdown(err) {
					return err
				}
			}

			// The error has been handled so we can stop propagating it.
			return nil
		}

		return h
	}

	return m
}

// ledgerError maps the errors of the ledger packages to a response. Any
// other error is not trusted and its message is not shared.
func ledgerError(err error) (int, errs.Response) {
	switch {
	case errors.Is(err, database.ErrNotFound),
		errors.Is(err, state.ErrContractNotFound):
		return http.StatusNotFound, errs.Response{Error: err.Error()}

	case errors.Is(err, database.ErrSignature),
		errors.Is(err, database.ErrAmount),
		errors.Is(err, state.ErrInsufficientBalance),
		errors.Is(err, state.ErrSelfTransfer),
		errors.Is(err, sandbox.ErrCompile),
		errors.Is(err, sandbox.ErrLookup),
		errors.Is(err, sandbox.ErrType),
		errors.Is(err, sandbox.ErrEnvironment):
		return http.StatusBadRequest, errs.Response{Error: err.Error()}
	}

	return http.StatusInternalServerError, errs.Response{Error: http.StatusText(http.StatusInternalServerError)}
}
