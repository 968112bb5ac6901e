package accounts

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/cleared-dev/tilikirja/internal/ledgererr"
	"github.com/cleared-dev/tilikirja/internal/model"
)

// Balance returns sum(debit) - sum(credit) over every line of the account.
// The sign is the same for every account type.
func (r *Registry) Balance(ctx context.Context, number int) (int64, error) {
	if _, ok, err := r.Get(ctx, number); err != nil {
		return 0, err
	} else if !ok {
		return 0, ledgererr.NotFoundError{Entity: "account", ID: number}
	}

	var balance int64
	err := r.store.DB().QueryRowContext(ctx,
		"SELECT COALESCE(SUM(debit), 0) - COALESCE(SUM(credit), 0) FROM TransactionLine WHERE account = ?",
		number).Scan(&balance)
	if err != nil {
		return 0, ledgererr.Storage("reading account balance", err)
	}
	return balance, nil
}

// AccountBalance is one account with its raw balance (debit - credit).
type AccountBalance struct {
	Account model.Account
	Balance int64
}

// Natural returns the balance in the account's natural sign: positive for a
// debit balance on asset and expense accounts, positive for a credit balance
// on the others.
func (b AccountBalance) Natural() int64 {
	if b.Account.Type.DebitNormal() {
		return b.Balance
	}
	return -b.Balance
}

// Totals aggregates balances per account type. Asset, Expense and Other are
// signed raw sums; Liability, Equity and Income sum the absolute balances.
type Totals struct {
	Asset     int64
	Liability int64
	Equity    int64
	Income    int64
	Expense   int64
	Other     int64
}

// Balances is the result of BalancesByType.
type Balances struct {
	Accounts []AccountBalance // non-zero balances only, ordered by number
	Totals   Totals
}

// BalancesByType computes every account balance and the per-type totals.
func (r *Registry) BalancesByType(ctx context.Context) (Balances, error) {
	rows, err := r.store.DB().QueryContext(ctx, `
		SELECT a.number, a.type, a.iban, a.json,
		       COALESCE(SUM(l.debit), 0) - COALESCE(SUM(l.credit), 0)
		FROM Account a
		LEFT JOIN TransactionLine l ON l.account = a.number
		GROUP BY a.number
		ORDER BY a.number
	`)
	if err != nil {
		return Balances{}, ledgererr.Storage("computing balances", err)
	}
	defer rows.Close()

	var out Balances
	for rows.Next() {
		var ab AccountBalance
		var typ string
		var iban, ext sql.NullString
		if err := rows.Scan(&ab.Account.Number, &typ, &iban, &ext, &ab.Balance); err != nil {
			return Balances{}, ledgererr.Storage("computing balances", err)
		}
		ab.Account.Type = model.AccountType(typ)
		ab.Account.IBAN = iban.String
		if ext.Valid {
			if err := model.DecodeExt(&ext.String, &ab.Account.Ext); err != nil {
				return Balances{}, fmt.Errorf("account %d: %w", ab.Account.Number, err)
			}
		}
		out.Totals.add(ab.Account.Type, ab.Balance)
		if ab.Balance != 0 {
			out.Accounts = append(out.Accounts, ab)
		}
	}
	if err := rows.Err(); err != nil {
		return Balances{}, ledgererr.Storage("computing balances", err)
	}
	return out, nil
}

func (t *Totals) add(typ model.AccountType, balance int64) {
	switch typ {
	case model.AccountTypeAsset:
		t.Asset += balance
	case model.AccountTypeExpense:
		t.Expense += balance
	case model.AccountTypeLiability:
		t.Liability += model.AbsCents(balance)
	case model.AccountTypeEquity:
		t.Equity += model.AbsCents(balance)
	case model.AccountTypeIncome:
		t.Income += model.AbsCents(balance)
	default:
		t.Other += balance
	}
}

// Summary holds the headline figures derived from Totals.
type Summary struct {
	TotalAssets        int64
	TotalLiabilities   int64
	TotalEquity        int64
	TotalLiabAndEquity int64
	TotalIncome        int64
	TotalExpenses      int64
	NetIncome          int64
}

// SummaryTotals derives the headline figures from per-type totals.
func SummaryTotals(t Totals) Summary {
	return Summary{
		TotalAssets:        t.Asset,
		TotalLiabilities:   t.Liability,
		TotalEquity:        t.Equity,
		TotalLiabAndEquity: t.Liability + t.Equity,
		TotalIncome:        t.Income,
		TotalExpenses:      t.Expense,
		NetIncome:          t.Income - t.Expense,
	}
}
