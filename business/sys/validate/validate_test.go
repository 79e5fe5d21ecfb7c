package validate_test

import (
	"testing"

	"github.com/ardanlabs/ledger/business/sys/validate"
	"github.com/ardanlabs/ledger/business/web/errs"
	"github.com/stretchr/testify/require"
)

type request struct {
	From   string `json:"from" validate:"required,pubkey"`
	Amount string `json:"amount" validate:"required,numeric"`
}

func Test_Check(t *testing.T) {
	require.NoError(t, validate.Check(request{From: "0x04ab", Amount: "5"}))

	err := validate.Check(request{From: "04ab"})
	require.True(t, errs.IsFieldErrors(err))

	fields := errs.GetFieldErrors(err).Fields()
	require.Contains(t, fields, "from")
	require.Contains(t, fields, "amount")
	require.Equal(t, "amount is a required field", fields["amount"])
}
