package journal

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/tilikirja/internal/ledgererr"
)

// mockAccounts implements AccountChecker for testing.
type mockAccounts struct {
	ids map[int]bool
}

func (m *mockAccounts) Exists(id int) bool {
	return m.ids[id]
}

func newMockAccounts(ids ...int) *mockAccounts {
	m := &mockAccounts{ids: make(map[int]bool)}
	for _, id := range ids {
		m.ids[id] = true
	}
	return m
}

var defaultAccounts = newMockAccounts(1000, 1200, 2300, 4000, 6500)

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func TestValidateLines_RowsSkipEmptyAccounts(t *testing.T) {
	lines := []LineInput{
		{Account: 6500, Debit: 10000, Description: "rent"},
		{},
		{Account: 0, Debit: 500},
		{Account: 1000, Credit: 10000},
	}
	got, err := ValidateLines(lines, defaultAccounts, date(2025, 3, 1))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Row)
	assert.Equal(t, 2, got[1].Row)
	assert.Equal(t, 1000, got[1].Account)
	assert.Equal(t, date(2025, 3, 1), got[0].Date)
	assert.Equal(t, "rent", got[0].Description)
}

func TestValidateLines_UnknownAccount(t *testing.T) {
	_, err := ValidateLines([]LineInput{
		{Account: 1000, Debit: 100},
		{Account: 9999, Credit: 100},
	}, defaultAccounts, date(2025, 3, 1))
	require.Error(t, err)
	assert.ErrorIs(t, err, ledgererr.ErrUnknownAccount)

	var ue ledgererr.UnknownAccountError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, 2, ue.Row)
	assert.Equal(t, 9999, ue.Account)
}

func TestValidateLines_BothAmounts(t *testing.T) {
	_, err := ValidateLines([]LineInput{{Account: 1000, Debit: 100, Credit: 100}}, defaultAccounts, date(2025, 3, 1))
	assert.ErrorIs(t, err, ledgererr.ErrConflictingAmount)
}

func TestValidateLines_NeitherAmount(t *testing.T) {
	_, err := ValidateLines([]LineInput{{Account: 1000}}, defaultAccounts, date(2025, 3, 1))
	assert.ErrorIs(t, err, ledgererr.ErrConflictingAmount)
}

func TestValidateLines_Negative(t *testing.T) {
	_, err := ValidateLines([]LineInput{{Account: 1000, Debit: -5}}, defaultAccounts, date(2025, 3, 1))
	assert.ErrorIs(t, err, ledgererr.ErrValidation)
	assert.NotErrorIs(t, err, ledgererr.ErrConflictingAmount)
}

func TestValidateLines_VATFieldsCarried(t *testing.T) {
	pct := decimal.NewNullDecimal(decimal.NewFromInt(24))
	got, err := ValidateLines([]LineInput{{Account: 4000, Credit: 100, VATPercent: pct, VATCode: 1}}, defaultAccounts, date(2025, 3, 1))
	require.NoError(t, err)
	assert.True(t, got[0].VATPercent.Valid)
	assert.True(t, got[0].VATPercent.Decimal.Equal(decimal.NewFromInt(24)))
	assert.Equal(t, 1, got[0].VATCode)
}

func TestValidateLines_Empty(t *testing.T) {
	got, err := ValidateLines(nil, defaultAccounts, date(2025, 3, 1))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestValidateLines_AnyLength(t *testing.T) {
	lines := make([]LineInput, 0, 120)
	for i := 0; i < 60; i++ {
		lines = append(lines, LineInput{Account: 6500, Debit: 1}, LineInput{Account: 1000, Credit: 1})
	}
	got, err := ValidateLines(lines, defaultAccounts, date(2025, 3, 1))
	require.NoError(t, err)
	assert.Len(t, got, 120)
	assert.Equal(t, 120, got[119].Row)
}

func TestBalanced(t *testing.T) {
	tests := []struct {
		debit, credit int64
		want          bool
	}{
		{10000, 10000, true},
		{10000, 9999, true},
		{9999, 10000, true},
		{10000, 9998, false},
		{10000, 9900, false},
		{0, 0, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Balanced(tt.debit, tt.credit, BalanceTolerance), "%d/%d", tt.debit, tt.credit)
	}
}

func TestTotals(t *testing.T) {
	lines, err := ValidateLines([]LineInput{
		{Account: 6500, Debit: 8000},
		{Account: 2300, Debit: 1920},
		{Account: 1000, Credit: 9920},
	}, defaultAccounts, date(2025, 3, 1))
	require.NoError(t, err)
	d, c := Totals(lines)
	assert.Equal(t, int64(9920), d)
	assert.Equal(t, int64(9920), c)
}
