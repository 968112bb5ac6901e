package journal

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/tilikirja/internal/ledgererr"
	"github.com/cleared-dev/tilikirja/internal/model"
)

// CSVHeader is the header row of a journal export.
const CSVHeader = "voucher,date,type,status,title,row,account,allocation,description,debit,credit,vat_percent,vat_code"

const (
	numFields  = 13
	colVoucher = 0
	colDate    = 1
	colType    = 2
	colStatus  = 3
	colTitle   = 4
	colRow     = 5
	colAccount = 6
	colAlloc   = 7
	colDesc    = 8
	colDebit   = 9
	colCredit  = 10
	colVATPct  = 11
	colVATCode = 12
)

// ExportRow is one line of a journal export with its voucher context.
type ExportRow struct {
	Line   model.Line
	Type   model.VoucherType
	Status model.Status
	Title  string
}

// MarshalRow converts an ExportRow to a CSV record. Amounts are written
// with two decimals; zero amounts are left empty.
func MarshalRow(r ExportRow) []string {
	row := make([]string, numFields)
	row[colVoucher] = strconv.FormatInt(r.Line.VoucherID, 10)
	row[colDate] = r.Line.Date.Format(model.DateLayout)
	row[colType] = strconv.Itoa(int(r.Type))
	row[colStatus] = strconv.Itoa(int(r.Status))
	row[colTitle] = r.Title
	row[colRow] = strconv.Itoa(r.Line.Row)
	row[colAccount] = strconv.Itoa(r.Line.Account)
	row[colAlloc] = strconv.FormatInt(r.Line.Allocation, 10)
	row[colDesc] = r.Line.Description

	if r.Line.Debit != 0 {
		row[colDebit] = model.FormatCents(r.Line.Debit)
	}
	if r.Line.Credit != 0 {
		row[colCredit] = model.FormatCents(r.Line.Credit)
	}
	if r.Line.VATPercent.Valid {
		row[colVATPct] = r.Line.VATPercent.Decimal.String()
	}
	if r.Line.VATCode != 0 {
		row[colVATCode] = strconv.Itoa(r.Line.VATCode)
	}
	return row
}

// UnmarshalRow converts a CSV record back to an ExportRow.
func UnmarshalRow(record []string) (ExportRow, error) {
	if len(record) != numFields {
		return ExportRow{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	var r ExportRow
	var err error
	if r.Line.VoucherID, err = strconv.ParseInt(record[colVoucher], 10, 64); err != nil {
		return ExportRow{}, fmt.Errorf("parsing voucher %q: %w", record[colVoucher], err)
	}
	if r.Line.Date, err = time.Parse(model.DateLayout, record[colDate]); err != nil {
		return ExportRow{}, fmt.Errorf("parsing date %q: %w", record[colDate], err)
	}
	typ, err := strconv.Atoi(record[colType])
	if err != nil {
		return ExportRow{}, fmt.Errorf("parsing type %q: %w", record[colType], err)
	}
	r.Type = model.VoucherType(typ)
	status, err := strconv.Atoi(record[colStatus])
	if err != nil {
		return ExportRow{}, fmt.Errorf("parsing status %q: %w", record[colStatus], err)
	}
	r.Status = model.Status(status)
	r.Title = record[colTitle]
	if r.Line.Row, err = strconv.Atoi(record[colRow]); err != nil {
		return ExportRow{}, fmt.Errorf("parsing row %q: %w", record[colRow], err)
	}
	if r.Line.Account, err = strconv.Atoi(record[colAccount]); err != nil {
		return ExportRow{}, fmt.Errorf("parsing account %q: %w", record[colAccount], err)
	}
	if r.Line.Allocation, err = strconv.ParseInt(record[colAlloc], 10, 64); err != nil {
		return ExportRow{}, fmt.Errorf("parsing allocation %q: %w", record[colAlloc], err)
	}
	r.Line.Description = record[colDesc]

	if record[colDebit] != "" {
		if r.Line.Debit, err = model.ParseAmount(record[colDebit]); err != nil {
			return ExportRow{}, fmt.Errorf("parsing debit %q: %w", record[colDebit], err)
		}
	}
	if record[colCredit] != "" {
		if r.Line.Credit, err = model.ParseAmount(record[colCredit]); err != nil {
			return ExportRow{}, fmt.Errorf("parsing credit %q: %w", record[colCredit], err)
		}
	}
	if record[colVATPct] != "" {
		pct, err := decimal.NewFromString(record[colVATPct])
		if err != nil {
			return ExportRow{}, fmt.Errorf("parsing vat_percent %q: %w", record[colVATPct], err)
		}
		r.Line.VATPercent = decimal.NewNullDecimal(pct)
	}
	if record[colVATCode] != "" {
		if r.Line.VATCode, err = strconv.Atoi(record[colVATCode]); err != nil {
			return ExportRow{}, fmt.Errorf("parsing vat_code %q: %w", record[colVATCode], err)
		}
	}
	return r, nil
}

// WriteRows writes rows to w including the header.
func WriteRows(w io.Writer, rows []ExportRow) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(CSVHeader, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, r := range rows {
		if err := cw.Write(MarshalRow(r)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadRows reads a journal export.
func ReadRows(r io.Reader) ([]ExportRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading journal CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	// Skip header row.
	var out []ExportRow
	for i, rec := range records[1:] {
		row, err := UnmarshalRow(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		out = append(out, row)
	}
	return out, nil
}

// ExportCSV writes every line of the ledger to w ordered by date, voucher
// and row.
func (s *Service) ExportCSV(ctx context.Context, w io.Writer) (int, error) {
	rows, err := s.store.DB().QueryContext(ctx, `
		SELECT l.id, l.line_no, l.voucher, l.date, l.account, l.allocation, l.description, l.debit, l.credit,
		       l.vat_percent, l.vat_code, l.partner, l.batch, v.type, v.status, COALESCE(v.title, '')
		FROM TransactionLine l
		JOIN Voucher v ON v.id = l.voucher
		ORDER BY l.date, l.voucher, l.line_no
	`)
	if err != nil {
		return 0, ledgererr.Storage("exporting journal", err)
	}
	defer rows.Close()

	var out []ExportRow
	for rows.Next() {
		var r ExportRow
		line, err := scanLine(scanFunc(func(dest ...any) error {
			return rows.Scan(append(dest, &r.Type, &r.Status, &r.Title)...)
		}))
		if err != nil {
			return 0, ledgererr.Storage("exporting journal", err)
		}
		r.Line = line
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return 0, ledgererr.Storage("exporting journal", err)
	}

	if err := WriteRows(w, out); err != nil {
		return 0, err
	}
	return len(out), nil
}
