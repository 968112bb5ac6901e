package accounts

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/tilikirja/internal/ledgererr"
	"github.com/cleared-dev/tilikirja/internal/model"
	"github.com/cleared-dev/tilikirja/internal/store"
)

func newTestRegistry(t *testing.T) (*Registry, *store.Store) {
	t.Helper()
	ctx := context.Background()
	chart, err := DefaultChart(ScopeBasic)
	require.NoError(t, err)
	path, err := store.Create(ctx, t.TempDir(), store.ClientInfo{Name: "Registry Test"}, chart)
	require.NoError(t, err)
	s, err := store.Open(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return NewRegistry(s, zerolog.Nop()), s
}

// postLine writes a voucher with a single line, bypassing the voucher engine.
func postLine(t *testing.T, s *store.Store, account int, debit, credit int64) {
	t.Helper()
	ctx := context.Background()
	res, err := s.DB().ExecContext(ctx, "INSERT INTO Voucher (date, type, status) VALUES ('2025-03-01', 10, 0)")
	require.NoError(t, err)
	vid, err := res.LastInsertId()
	require.NoError(t, err)
	_, err = s.DB().ExecContext(ctx,
		"INSERT INTO TransactionLine (line_no, voucher, date, account, debit, credit) VALUES (1, ?, '2025-03-01', ?, ?, ?)",
		vid, account, debit, credit)
	require.NoError(t, err)
}

func TestList(t *testing.T) {
	reg, _ := newTestRegistry(t)
	accts, err := reg.List(context.Background())
	require.NoError(t, err)
	require.Len(t, accts, 15)
	assert.Equal(t, 1000, accts[0].Number)
	assert.Equal(t, "Cash", accts[0].DisplayName())
	for i := 1; i < len(accts); i++ {
		assert.Less(t, accts[i-1].Number, accts[i].Number)
	}
}

func TestUpsert_CreateAndMerge(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry(t)

	pct := decimal.NewFromInt(24)
	require.NoError(t, reg.Upsert(ctx, model.Account{
		Number: 4100,
		Type:   model.AccountTypeIncome,
		Ext:    model.AccountExt{Name: "Consulting", VATPercent: &pct},
	}))

	// Updating keeps fields the update leaves empty.
	require.NoError(t, reg.Upsert(ctx, model.Account{
		Number: 4100,
		Type:   model.AccountTypeIncome,
		Ext:    model.AccountExt{VATCode: 1},
	}))

	acct, ok, err := reg.Get(ctx, 4100)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Consulting", acct.Ext.Name)
	assert.Equal(t, 1, acct.Ext.VATCode)
	require.NotNil(t, acct.Ext.VATPercent)
	assert.True(t, acct.Ext.VATPercent.Equal(pct))

	_, ok, err = reg.Get(ctx, 4101)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpsert_Validation(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry(t)

	err := reg.Upsert(ctx, model.Account{Number: 4200, Type: "X"})
	assert.ErrorIs(t, err, ledgererr.ErrValidation)

	err = reg.Upsert(ctx, model.Account{Number: 0, Type: model.AccountTypeAsset})
	assert.ErrorIs(t, err, ledgererr.ErrValidation)
}

func TestUnknownStoredTypeIsOther(t *testing.T) {
	ctx := context.Background()
	reg, s := newTestRegistry(t)

	_, err := s.DB().ExecContext(ctx, "INSERT INTO Account (number, type) VALUES (9100, 'X')")
	require.NoError(t, err)
	postLine(t, s, 9100, 500, 0)

	acct, ok, err := reg.Get(ctx, 9100)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Other", acct.Type.Name())

	bal, err := reg.BalancesByType(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(500), bal.Totals.Other)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	reg, s := newTestRegistry(t)

	require.NoError(t, reg.Delete(ctx, 8000))
	_, ok, err := reg.Get(ctx, 8000)
	require.NoError(t, err)
	assert.False(t, ok)

	err = reg.Delete(ctx, 8000)
	assert.ErrorIs(t, err, ledgererr.ErrNotFound)

	postLine(t, s, 1000, 100, 0)
	err = reg.Delete(ctx, 1000)
	assert.ErrorIs(t, err, ledgererr.ErrInvalidState)
	_, ok, err = reg.Get(ctx, 1000)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNextNumber(t *testing.T) {
	ctx := context.Background()
	reg, s := newTestRegistry(t)

	n, err := reg.NextNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8010, n)

	_, err = s.DB().ExecContext(ctx, "DELETE FROM Account")
	require.NoError(t, err)
	n, err = reg.NextNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1000, n)
}

func TestHeaders(t *testing.T) {
	reg, _ := newTestRegistry(t)
	headers, err := reg.Headers(context.Background())
	require.NoError(t, err)
	require.Len(t, headers, 5)
	assert.Equal(t, "ASSETS", headers[0].Name)
}

func TestImport(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry(t)

	require.NoError(t, reg.Import(ctx, []model.Account{
		{Number: 1000, Type: model.AccountTypeAsset, Ext: model.AccountExt{Name: "Till"}},
		{Number: 1900, Type: model.AccountTypeAsset, Ext: model.AccountExt{Name: "Bank"}},
	}))

	c, err := reg.Chart(ctx)
	require.NoError(t, err)
	acct, ok := c.Get(1000)
	require.True(t, ok)
	assert.Equal(t, "Till", acct.Ext.Name)
	assert.True(t, c.Exists(1900))

	err = reg.Import(ctx, []model.Account{{Number: 1950, Type: "Q"}})
	assert.ErrorIs(t, err, ledgererr.ErrValidation)
	assert.False(t, c.Exists(1950))
}

func TestBalance(t *testing.T) {
	ctx := context.Background()
	reg, s := newTestRegistry(t)

	bal, err := reg.Balance(ctx, 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(0), bal)

	// Each line changes the balance by its signed contribution.
	var running int64
	for _, l := range []struct{ debit, credit int64 }{{10000, 0}, {0, 2550}, {1, 0}} {
		postLine(t, s, 1000, l.debit, l.credit)
		running += l.debit - l.credit
		bal, err = reg.Balance(ctx, 1000)
		require.NoError(t, err)
		assert.Equal(t, running, bal)
	}
	assert.Equal(t, int64(7451), bal)

	_, err = reg.Balance(ctx, 9999)
	assert.ErrorIs(t, err, ledgererr.ErrNotFound)
}

func TestBalancesByType(t *testing.T) {
	ctx := context.Background()
	reg, s := newTestRegistry(t)

	postLine(t, s, 1000, 50000, 0) // cash
	postLine(t, s, 3000, 0, 30000) // equity
	postLine(t, s, 2000, 0, 5000)  // payables
	postLine(t, s, 4000, 0, 20000) // sales
	postLine(t, s, 6500, 5000, 0)  // rent

	bal, err := reg.BalancesByType(ctx)
	require.NoError(t, err)

	require.Len(t, bal.Accounts, 5, "zero balances are excluded")
	assert.Equal(t, 1000, bal.Accounts[0].Account.Number)
	assert.Equal(t, int64(-30000), bal.Accounts[2].Balance)
	assert.Equal(t, int64(30000), bal.Accounts[2].Natural())
	assert.Equal(t, int64(50000), bal.Accounts[0].Natural())

	assert.Equal(t, Totals{
		Asset:     50000,
		Liability: 5000,
		Equity:    30000,
		Income:    20000,
		Expense:   5000,
	}, bal.Totals)

	sum := SummaryTotals(bal.Totals)
	assert.Equal(t, Summary{
		TotalAssets:        50000,
		TotalLiabilities:   5000,
		TotalEquity:        30000,
		TotalLiabAndEquity: 35000,
		TotalIncome:        20000,
		TotalExpenses:      5000,
		NetIncome:          15000,
	}, sum)
}
