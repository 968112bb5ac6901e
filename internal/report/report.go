// Package report builds the balance sheet and income statement of a ledger
// from its account balances.
package report

import (
	"context"

	"github.com/cleared-dev/tilikirja/internal/accounts"
	"github.com/cleared-dev/tilikirja/internal/model"
)

// Row is one account in a report, in the natural sign of its type.
type Row struct {
	Number int
	Name   string
	Amount int64
}

// Section groups the accounts of one type.
type Section struct {
	Type  model.AccountType
	Title string
	Rows  []Row
	Total int64
}

// BalanceSheet lists assets against liabilities and equity. Net income of the
// period is carried separately so that Balanced holds before closing.
type BalanceSheet struct {
	Assets      Section
	Liabilities Section
	Equity      Section
	NetIncome   int64
	Summary     accounts.Summary
	Balanced    bool
}

// IncomeStatement lists income against expenses.
type IncomeStatement struct {
	Income    Section
	Expenses  Section
	NetIncome int64
	Summary   accounts.Summary
}

// Reporter builds reports from an account registry.
type Reporter struct {
	registry *accounts.Registry
}

// NewReporter creates a Reporter.
func NewReporter(reg *accounts.Registry) *Reporter {
	return &Reporter{registry: reg}
}

var titles = map[model.AccountType]string{
	model.AccountTypeAsset:     "Assets",
	model.AccountTypeLiability: "Liabilities",
	model.AccountTypeEquity:    "Equity",
	model.AccountTypeIncome:    "Income",
	model.AccountTypeExpense:   "Expenses",
}

func section(typ model.AccountType, balances []accounts.AccountBalance, total int64) Section {
	s := Section{Type: typ, Title: titles[typ], Total: total}
	for _, b := range balances {
		if b.Account.Type != typ {
			continue
		}
		s.Rows = append(s.Rows, Row{Number: b.Account.Number, Name: b.Account.DisplayName(), Amount: b.Natural()})
	}
	return s
}

// BalanceSheet builds the balance sheet.
func (r *Reporter) BalanceSheet(ctx context.Context) (BalanceSheet, error) {
	b, err := r.registry.BalancesByType(ctx)
	if err != nil {
		return BalanceSheet{}, err
	}
	sum := accounts.SummaryTotals(b.Totals)
	return BalanceSheet{
		Assets:      section(model.AccountTypeAsset, b.Accounts, sum.TotalAssets),
		Liabilities: section(model.AccountTypeLiability, b.Accounts, sum.TotalLiabilities),
		Equity:      section(model.AccountTypeEquity, b.Accounts, sum.TotalEquity),
		NetIncome:   sum.NetIncome,
		Summary:     sum,
		Balanced:    sum.TotalAssets == sum.TotalLiabAndEquity+sum.NetIncome,
	}, nil
}

// IncomeStatement builds the income statement.
func (r *Reporter) IncomeStatement(ctx context.Context) (IncomeStatement, error) {
	b, err := r.registry.BalancesByType(ctx)
	if err != nil {
		return IncomeStatement{}, err
	}
	sum := accounts.SummaryTotals(b.Totals)
	return IncomeStatement{
		Income:    section(model.AccountTypeIncome, b.Accounts, sum.TotalIncome),
		Expenses:  section(model.AccountTypeExpense, b.Accounts, sum.TotalExpenses),
		NetIncome: sum.NetIncome,
		Summary:   sum,
	}, nil
}
