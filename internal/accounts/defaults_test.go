package accounts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/tilikirja/internal/model"
)

func TestDefaultChart(t *testing.T) {
	chart, err := DefaultChart(ScopeBasic)
	require.NoError(t, err)
	require.Len(t, chart.Accounts, 15)
	assert.Len(t, chart.Headers, 5)

	c := NewChart(chart.Accounts)
	for _, n := range []int{1000, 1200, 2300, 3000, 4000, 8000} {
		assert.True(t, c.Exists(n), "expected account %d", n)
	}

	for _, acct := range chart.Accounts {
		assert.NotEmpty(t, acct.Ext.Name, "account %d missing name", acct.Number)
		assert.True(t, acct.Type.Valid(), "account %d has invalid type", acct.Number)
	}
}

func TestDefaultChart_ScopesAreSupersets(t *testing.T) {
	var prev map[int]bool
	for _, scope := range Scopes {
		chart, err := DefaultChart(scope)
		require.NoError(t, err, scope)

		numbers := make(map[int]bool, len(chart.Accounts))
		for i, a := range chart.Accounts {
			assert.False(t, numbers[a.Number], "%s: duplicate account %d", scope, a.Number)
			numbers[a.Number] = true
			if i > 0 {
				assert.Less(t, chart.Accounts[i-1].Number, a.Number, "%s must be sorted", scope)
			}
		}
		for n := range prev {
			assert.True(t, numbers[n], "%s is missing account %d", scope, n)
		}
		if prev != nil {
			assert.Greater(t, len(numbers), len(prev))
		}
		prev = numbers
	}
}

func TestDefaultChart_UnknownScope(t *testing.T) {
	_, err := DefaultChart("galactic")
	assert.Error(t, err)
}

func TestChartLookups(t *testing.T) {
	chart, err := DefaultChart(ScopeBasic)
	require.NoError(t, err)
	c := NewChart(chart.Accounts)

	acct, ok := c.Get(1000)
	assert.True(t, ok)
	assert.Equal(t, "Cash", acct.DisplayName())

	_, ok = c.Get(9999)
	assert.False(t, ok)
	assert.False(t, c.Exists(9999))

	assets := c.ByType(model.AccountTypeAsset)
	assert.Len(t, assets, 3, "expected Cash, Accounts Receivable, Inventory")

	liabilities := c.InRange(2000, 2999)
	assert.Len(t, liabilities, 3)
	assert.Len(t, c.All(), 15)
}

func TestSuggestVATAccount(t *testing.T) {
	basic, err := DefaultChart(ScopeBasic)
	require.NoError(t, err)
	standard, err := DefaultChart(ScopeStandard)
	require.NoError(t, err)

	b := NewChart(basic.Accounts)
	s := NewChart(standard.Accounts)

	n, ok := b.SuggestVATAccount(1)
	assert.True(t, ok)
	assert.Equal(t, 2300, n, "basic chart has no sales VAT account")

	n, ok = s.SuggestVATAccount(1)
	assert.True(t, ok)
	assert.Equal(t, 2310, n)

	n, ok = s.SuggestVATAccount(6)
	assert.True(t, ok)
	assert.Equal(t, 2320, n)

	fallback := NewChart([]model.Account{
		{Number: 2350, Type: model.AccountTypeLiability},
		{Number: 2400, Type: model.AccountTypeLiability},
	})
	n, ok = fallback.SuggestVATAccount(1)
	assert.True(t, ok)
	assert.Equal(t, 2350, n)

	_, ok = NewChart(nil).SuggestVATAccount(1)
	assert.False(t, ok)
}
