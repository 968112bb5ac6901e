package journal

import (
	"context"
	"database/sql"

	"github.com/cleared-dev/tilikirja/internal/accounts"
	"github.com/cleared-dev/tilikirja/internal/ledgererr"
	"github.com/cleared-dev/tilikirja/internal/model"
)

// HistoryLine is one line of an account history with the balance of the
// account after it.
type HistoryLine struct {
	Line         model.Line
	VoucherType  model.VoucherType
	VoucherTitle string
	Status       model.Status
	Balance      int64 // natural sign of the account type
	IsDebit      bool
}

// AccountHistory returns the lines of an account newest first. Balances are
// accumulated oldest to newest: debit - credit for asset and expense
// accounts, credit - debit for the rest.
func (s *Service) AccountHistory(ctx context.Context, number int) ([]HistoryLine, error) {
	db := s.store.DB()
	chart, err := accounts.Load(ctx, db)
	if err != nil {
		return nil, err
	}
	acct, ok := chart.Get(number)
	if !ok {
		return nil, ledgererr.NotFoundError{Entity: "account", ID: number}
	}

	rows, err := db.QueryContext(ctx, `
		SELECT l.id, l.line_no, l.voucher, l.date, l.account, l.allocation, l.description, l.debit, l.credit,
		       l.vat_percent, l.vat_code, l.partner, l.batch, v.type, v.title, v.status
		FROM TransactionLine l
		JOIN Voucher v ON v.id = l.voucher
		WHERE l.account = ?
		ORDER BY l.date, l.voucher, l.line_no
	`, number)
	if err != nil {
		return nil, ledgererr.Storage("reading account history", err)
	}
	defer rows.Close()

	debitNormal := acct.Type.DebitNormal()
	var history []HistoryLine
	var balance int64
	for rows.Next() {
		var h HistoryLine
		var title sql.NullString
		line, err := scanLine(scanFunc(func(dest ...any) error {
			return rows.Scan(append(dest, &h.VoucherType, &title, &h.Status)...)
		}))
		if err != nil {
			return nil, ledgererr.Storage("reading account history", err)
		}
		if debitNormal {
			balance += line.Signed()
		} else {
			balance -= line.Signed()
		}
		h.Line = line
		h.VoucherTitle = title.String
		h.Balance = balance
		h.IsDebit = isDebitBalance(debitNormal, balance)
		history = append(history, h)
	}
	if err := rows.Err(); err != nil {
		return nil, ledgererr.Storage("reading account history", err)
	}

	for i, j := 0, len(history)-1; i < j; i, j = i+1, j-1 {
		history[i], history[j] = history[j], history[i]
	}
	return history, nil
}

func isDebitBalance(debitNormal bool, balance int64) bool {
	if debitNormal {
		return balance > 0
	}
	return balance < 0
}
