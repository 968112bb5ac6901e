package commands

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/tilikirja/internal/ledgererr"
	"github.com/cleared-dev/tilikirja/internal/model"
)

func TestParseLine(t *testing.T) {
	in, err := parseLine("1000:12,50:0:Fuel: station 4")
	require.NoError(t, err)
	assert.Equal(t, 1000, in.Account)
	assert.Equal(t, int64(1250), in.Debit)
	assert.Zero(t, in.Credit)
	assert.Equal(t, "Fuel: station 4", in.Description)

	in, err = parseLine("3000::99.9")
	require.NoError(t, err)
	assert.Equal(t, int64(9990), in.Credit)

	for _, bad := range []string{"1000:1", "abc:1:0", "1000:1.234:0", "1000:x:0"} {
		_, err := parseLine(bad)
		assert.ErrorIs(t, err, ledgererr.ErrValidation, bad)
	}
}

func TestParseOpeningEntry(t *testing.T) {
	e, err := parseOpeningEntry("1000:500:0")
	require.NoError(t, err)
	assert.Equal(t, 1000, e.Account)
	assert.Equal(t, int64(50000), e.Debit)

	_, err = parseOpeningEntry("1000:500:0:note")
	assert.ErrorIs(t, err, ledgererr.ErrValidation)
}

func TestParseVoucherType(t *testing.T) {
	vt, err := parseVoucherType("expense")
	require.NoError(t, err)
	assert.Equal(t, model.VoucherExpense, vt)

	vt, err = parseVoucherType("10")
	require.NoError(t, err)
	assert.Equal(t, model.VoucherJournal, vt)

	_, err = parseVoucherType("11")
	assert.ErrorIs(t, err, ledgererr.ErrValidation)
}

func TestParseStatus(t *testing.T) {
	st, err := parseStatus("posted")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPosted, st)

	st, err = parseStatus("100")
	require.NoError(t, err)
	assert.Equal(t, model.StatusReady, st)

	_, err = parseStatus("paid")
	assert.ErrorIs(t, err, ledgererr.ErrValidation)
}

func TestParseItem(t *testing.T) {
	vat := decimal.RequireFromString("24")

	it, err := parseItem("Consulting;2;90,5", vat)
	require.NoError(t, err)
	assert.Equal(t, "Consulting", it.Product)
	assert.True(t, it.Quantity.Equal(decimal.NewFromInt(2)))
	assert.True(t, it.UnitPrice.Equal(decimal.RequireFromString("90.5")))
	assert.True(t, it.VATPercent.Equal(vat))
	assert.Zero(t, it.Account)

	it, err = parseItem("Books;1;10;10;4500", vat)
	require.NoError(t, err)
	assert.True(t, it.VATPercent.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, 4500, it.Account)

	it, err = parseItem("Consulting;2;100;;;10", vat)
	require.NoError(t, err)
	assert.True(t, it.VATPercent.Equal(vat))
	assert.Zero(t, it.Account)
	assert.True(t, it.Discount.Equal(decimal.NewFromInt(10)))
	assert.Zero(t, it.Allocation)

	it, err = parseItem("Design;1;50;24;4000;12,5;3", vat)
	require.NoError(t, err)
	assert.True(t, it.Discount.Equal(decimal.RequireFromString("12.5")))
	assert.Equal(t, int64(3), it.Allocation)

	for _, bad := range []string{"Only;1", "A;1;2;3;4;5;6;7", "A;one;2", "A;1;2;x", "A;1;2;;;ten", "A;1;2;;;;x"} {
		_, err := parseItem(bad, vat)
		assert.ErrorIs(t, err, ledgererr.ErrValidation, bad)
	}
}

func TestParseDate(t *testing.T) {
	d, err := parseDate("date", "2025-02-28")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC), d)

	d, err = parseDate("date", "")
	require.NoError(t, err)
	assert.Equal(t, today(), d)

	_, err = parseDate("date", "2025-02-30")
	assert.ErrorIs(t, err, ledgererr.ErrValidation)

	p, err := parseOptionalDate("due", "")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestDescribe(t *testing.T) {
	err := fmt.Errorf("confirming: %w", ledgererr.UnbalancedError{VoucherID: 3, Debit: 10000, Credit: 9000})
	assert.Equal(t, "Voucher not balanced: debit 100.00, credit 90.00 (difference 10.00)", Describe(err))

	busy := ledgererr.Busy("creating voucher", errors.New("database is locked"))
	assert.Contains(t, Describe(busy), "in use by another process")
	assert.Equal(t, 1, ExitCode(busy))

	nf := ledgererr.NotFoundError{Entity: "voucher", ID: 7}
	assert.Equal(t, "V"+nf.Error()[1:], Describe(nf))
	assert.Equal(t, 2, ExitCode(nf))

	storage := ledgererr.Storage("listing vouchers", errors.New("disk I/O error"))
	assert.Equal(t, "Ledger storage failed while listing vouchers: disk I/O error", Describe(storage))

	plain := errors.New("something else")
	assert.Equal(t, "something else", Describe(plain))
	assert.Equal(t, 1, ExitCode(plain))
	assert.Equal(t, 0, ExitCode(nil))
}
