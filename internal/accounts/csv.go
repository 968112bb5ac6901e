package accounts

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/tilikirja/internal/model"
)

const (
	numFields     = 6
	colNumber     = 0
	colType       = 1
	colName       = 2
	colVATPercent = 3
	colVATCode    = 4
	colIBAN       = 5
)

// Header is the CSV header of a chart export.
var Header = []string{"number", "type", "name", "vat_percent", "vat_code", "iban"}

// ReadAccounts reads a chart-of-accounts CSV.
func ReadAccounts(r io.Reader) ([]model.Account, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading accounts CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	var accounts []model.Account
	for i, rec := range records[1:] {
		acct, err := UnmarshalAccount(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		accounts = append(accounts, acct)
	}
	return accounts, nil
}

// WriteAccounts writes a chart-of-accounts CSV.
func WriteAccounts(w io.Writer, accounts []model.Account) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, acct := range accounts {
		if err := cw.Write(MarshalAccount(acct)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalAccount converts an Account to a CSV row.
func MarshalAccount(acct model.Account) []string {
	row := make([]string, numFields)
	row[colNumber] = strconv.Itoa(acct.Number)
	row[colType] = string(acct.Type)
	row[colName] = acct.Ext.Name
	if acct.Ext.VATPercent != nil {
		row[colVATPercent] = acct.Ext.VATPercent.String()
	}
	if acct.Ext.VATCode != 0 {
		row[colVATCode] = strconv.Itoa(acct.Ext.VATCode)
	}
	row[colIBAN] = acct.IBAN
	return row
}

// UnmarshalAccount converts a CSV row to an Account. The type column accepts
// a code (A..E) or an English type name.
func UnmarshalAccount(record []string) (model.Account, error) {
	if len(record) != numFields {
		return model.Account{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	number, err := strconv.Atoi(record[colNumber])
	if err != nil {
		return model.Account{}, fmt.Errorf("parsing number %q: %w", record[colNumber], err)
	}

	typ, ok := model.ParseAccountType(record[colType])
	if !ok {
		return model.Account{}, fmt.Errorf("invalid account type %q", record[colType])
	}

	acct := model.Account{
		Number: number,
		Type:   typ,
		IBAN:   record[colIBAN],
		Ext:    model.AccountExt{Name: record[colName]},
	}

	if record[colVATPercent] != "" {
		pct, err := decimal.NewFromString(record[colVATPercent])
		if err != nil {
			return model.Account{}, fmt.Errorf("parsing vat_percent %q: %w", record[colVATPercent], err)
		}
		acct.Ext.VATPercent = &pct
	}
	if record[colVATCode] != "" {
		acct.Ext.VATCode, err = strconv.Atoi(record[colVATCode])
		if err != nil {
			return model.Account{}, fmt.Errorf("parsing vat_code %q: %w", record[colVATCode], err)
		}
	}
	return acct, nil
}
