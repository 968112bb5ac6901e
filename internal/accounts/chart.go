package accounts

import "github.com/cleared-dev/tilikirja/internal/model"

// Chart is an in-memory snapshot of the chart of accounts.
type Chart struct {
	accounts []model.Account
	byNumber map[int]model.Account
}

// NewChart creates a Chart from a slice of accounts.
func NewChart(accounts []model.Account) *Chart {
	byNumber := make(map[int]model.Account, len(accounts))
	for _, a := range accounts {
		byNumber[a.Number] = a
	}
	return &Chart{accounts: accounts, byNumber: byNumber}
}

// All returns all accounts.
func (c *Chart) All() []model.Account {
	return c.accounts
}

// Get returns an account by number.
func (c *Chart) Get(number int) (model.Account, bool) {
	a, ok := c.byNumber[number]
	return a, ok
}

// Exists reports whether an account number exists.
func (c *Chart) Exists(number int) bool {
	_, ok := c.byNumber[number]
	return ok
}

// ByType returns all accounts of the given type.
func (c *Chart) ByType(accountType model.AccountType) []model.Account {
	var result []model.Account
	for _, a := range c.accounts {
		if a.Type == accountType {
			result = append(result, a)
		}
	}
	return result
}

// InRange returns the accounts with lo <= number <= hi.
func (c *Chart) InRange(lo, hi int) []model.Account {
	var result []model.Account
	for _, a := range c.accounts {
		if a.Number >= lo && a.Number <= hi {
			result = append(result, a)
		}
	}
	return result
}
