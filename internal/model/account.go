package model

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// AccountType classifies accounts in the chart of accounts.
type AccountType string

const (
	AccountTypeAsset     AccountType = "A"
	AccountTypeLiability AccountType = "B"
	AccountTypeEquity    AccountType = "C"
	AccountTypeIncome    AccountType = "D"
	AccountTypeExpense   AccountType = "E"
)

// AccountTypes lists the valid types in chart order.
var AccountTypes = []AccountType{
	AccountTypeAsset,
	AccountTypeLiability,
	AccountTypeEquity,
	AccountTypeIncome,
	AccountTypeExpense,
}

// Valid reports whether t is one of A..E.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeIncome, AccountTypeExpense:
		return true
	}
	return false
}

// Name returns the English type name, "Other" for codes outside A..E.
func (t AccountType) Name() string {
	switch t {
	case AccountTypeAsset:
		return "Asset"
	case AccountTypeLiability:
		return "Liability"
	case AccountTypeEquity:
		return "Equity"
	case AccountTypeIncome:
		return "Income"
	case AccountTypeExpense:
		return "Expense"
	}
	return "Other"
}

// DebitNormal reports whether the natural balance of the type comes from
// debits (assets and expenses).
func (t AccountType) DebitNormal() bool {
	return t == AccountTypeAsset || t == AccountTypeExpense
}

// ParseAccountType accepts a type code ("A") or English name ("asset").
func ParseAccountType(s string) (AccountType, bool) {
	for _, t := range AccountTypes {
		if s == string(t) || strings.EqualFold(s, t.Name()) {
			return t, true
		}
	}
	return AccountType(s), false
}

// Account is a row of the Account table.
type Account struct {
	Number int
	Type   AccountType
	IBAN   string
	Ext    AccountExt
}

// DisplayName returns the name from the extension map, or "Account N".
func (a Account) DisplayName() string {
	if a.Ext.Name != "" {
		return a.Ext.Name
	}
	return "Account " + strconv.Itoa(a.Number)
}

// AccountExt holds the extension fields of an account.
type AccountExt struct {
	Name       string           `json:"name,omitempty"`
	VATPercent *decimal.Decimal `json:"vat_percent,omitempty"`
	VATCode    int              `json:"vat_code,omitempty"`
	Extra      Extra            `json:"-"`
}

type accountExt AccountExt

var accountExtKeys = []string{"name", "vat_percent", "vat_code"}

func (e AccountExt) MarshalJSON() ([]byte, error) {
	return marshalExt(accountExt(e), e.Extra)
}

func (e *AccountExt) UnmarshalJSON(data []byte) error {
	var a accountExt
	extra, err := unmarshalExt(data, &a, accountExtKeys)
	if err != nil {
		return err
	}
	*e = AccountExt(a)
	e.Extra = extra
	return nil
}

// Merge overlays the non-zero fields of other onto e. Extra keys of other
// replace keys of the same name.
func (e AccountExt) Merge(other AccountExt) AccountExt {
	if other.Name != "" {
		e.Name = other.Name
	}
	if other.VATPercent != nil {
		e.VATPercent = other.VATPercent
	}
	if other.VATCode != 0 {
		e.VATCode = other.VATCode
	}
	if len(other.Extra) > 0 {
		merged := make(Extra, len(e.Extra)+len(other.Extra))
		for k, v := range e.Extra {
			merged[k] = v
		}
		for k, v := range other.Extra {
			merged[k] = v
		}
		e.Extra = merged
	}
	return e
}

// Header is a heading row of the chart, e.g. "ASSETS" above 1000.
type Header struct {
	Number int
	Level  int
	Name   string
}
