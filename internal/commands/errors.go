package commands

import (
	"errors"
	"fmt"

	"github.com/cleared-dev/tilikirja/internal/ledgererr"
	"github.com/cleared-dev/tilikirja/internal/model"
)

// Describe turns an error returned by a command into the message shown to
// the operator.
func Describe(err error) string {
	var unbalanced ledgererr.UnbalancedError
	var storage *ledgererr.StorageError
	switch {
	case errors.As(err, &unbalanced):
		what := "Voucher"
		if unbalanced.Opening {
			what = "Opening balances"
		}
		return fmt.Sprintf("%s not balanced: debit %s, credit %s (difference %s)", what,
			model.FormatCents(unbalanced.Debit), model.FormatCents(unbalanced.Credit),
			model.FormatCents(model.AbsCents(unbalanced.Debit-unbalanced.Credit)))
	case errors.Is(err, ledgererr.ErrBusy):
		return "The ledger is in use by another process, try again."
	case errors.Is(err, ledgererr.ErrMissingPartner):
		return "An invoice needs a partner, pass --partner."
	case errors.As(err, &storage):
		return fmt.Sprintf("Ledger storage failed while %s: %v", storage.Op, storage.Err)
	case ledgererr.IsLedgerError(err):
		return capitalize(err.Error())
	}
	return err.Error()
}

// ExitCode maps an error to the process exit status: 2 for input the
// ledger refused, 1 for everything else.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ledgererr.ErrStorage):
		return 1
	case ledgererr.IsLedgerError(err):
		return 2
	}
	return 1
}

func capitalize(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
