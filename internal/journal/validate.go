package journal

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/tilikirja/internal/ledgererr"
	"github.com/cleared-dev/tilikirja/internal/model"
)

// BalanceTolerance is the largest debit/credit difference, in minor units,
// a voucher may carry and still become Ready or Posted.
const BalanceTolerance = 1

// OpeningBalanceTolerance is the largest difference accepted for an
// opening-balance submission: 0.01 in currency units.
const OpeningBalanceTolerance = 1

// AccountChecker tests whether an account number exists in the chart of accounts.
type AccountChecker interface {
	Exists(number int) bool
}

// LineInput is one submitted line. Lines with Account 0 are skipped.
type LineInput struct {
	Account     int
	Allocation  int64
	Description string
	Debit       int64
	Credit      int64
	VATPercent  decimal.NullDecimal
	VATCode     int
	PartnerID   *int64
	BatchID     *int64
}

// ValidateLines checks the submitted lines and turns them into ledger lines
// dated date. Row numbers run from 1 in submission order, counting only the
// lines that name an account. The first violation is returned.
func ValidateLines(lines []LineInput, accounts AccountChecker, date time.Time) ([]model.Line, error) {
	out := make([]model.Line, 0, len(lines))
	for _, in := range lines {
		if in.Account == 0 {
			continue
		}
		row := len(out) + 1

		if !accounts.Exists(in.Account) {
			return nil, ledgererr.UnknownAccountError{Row: row, Account: in.Account}
		}
		if in.Debit < 0 || in.Credit < 0 {
			return nil, ledgererr.ValidationError{
				Field:  fmt.Sprintf("line %d", row),
				Reason: "amounts must not be negative",
			}
		}
		if (in.Debit != 0) == (in.Credit != 0) {
			return nil, ledgererr.ConflictingAmountError{Row: row, Debit: in.Debit, Credit: in.Credit}
		}
		if in.Allocation < 0 {
			return nil, ledgererr.ValidationError{Field: fmt.Sprintf("line %d", row), Reason: "invalid allocation"}
		}

		out = append(out, model.Line{
			Row:         row,
			Date:        date,
			Account:     in.Account,
			Allocation:  in.Allocation,
			Description: in.Description,
			Debit:       in.Debit,
			Credit:      in.Credit,
			VATPercent:  in.VATPercent,
			VATCode:     in.VATCode,
			PartnerID:   in.PartnerID,
			BatchID:     in.BatchID,
		})
	}
	return out, nil
}

// Totals returns the debit and credit sums of lines.
func Totals(lines []model.Line) (debit, credit int64) {
	for _, l := range lines {
		debit += l.Debit
		credit += l.Credit
	}
	return debit, credit
}

// Balanced reports whether debit and credit differ by at most tolerance.
func Balanced(debit, credit, tolerance int64) bool {
	return model.AbsCents(debit-credit) <= tolerance
}
