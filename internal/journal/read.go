package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cleared-dev/tilikirja/internal/ledgererr"
	"github.com/cleared-dev/tilikirja/internal/model"
	"github.com/cleared-dev/tilikirja/internal/store"
)

const selectVoucher = `
	SELECT id, date, type, status, number, series, title, partner, invoice_date, due_date, reference, json
	FROM Voucher`

func scanVoucher(sc interface{ Scan(...any) error }) (model.Voucher, error) {
	var v model.Voucher
	var number, partner sql.NullInt64
	var series, title, reference, ext sql.NullString
	var invoiceDate, dueDate sql.NullTime
	if err := sc.Scan(&v.ID, &v.Date, &v.Type, &v.Status, &number, &series, &title, &partner,
		&invoiceDate, &dueDate, &reference, &ext); err != nil {
		return model.Voucher{}, err
	}
	v.Number = number.Int64
	v.Series = series.String
	v.Title = title.String
	v.Reference = reference.String
	if partner.Valid {
		p := partner.Int64
		v.PartnerID = &p
	}
	if invoiceDate.Valid {
		d := invoiceDate.Time
		v.InvoiceDate = &d
	}
	if dueDate.Valid {
		d := dueDate.Time
		v.DueDate = &d
	}
	if ext.Valid {
		if err := model.DecodeExt(&ext.String, &v.Ext); err != nil {
			return model.Voucher{}, fmt.Errorf("voucher %d: %w", v.ID, err)
		}
	}
	return v, nil
}

// GetVoucher reads one voucher header through q.
func GetVoucher(ctx context.Context, q store.Querier, voucherID int64) (model.Voucher, error) {
	v, err := scanVoucher(q.QueryRowContext(ctx, selectVoucher+" WHERE id = ?", voucherID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Voucher{}, ledgererr.NotFoundError{Entity: "voucher", ID: voucherID}
	}
	if err != nil {
		return model.Voucher{}, ledgererr.Storage("reading voucher", err)
	}
	return v, nil
}

const selectLine = `
	SELECT id, line_no, voucher, date, account, allocation, description, debit, credit,
	       vat_percent, vat_code, partner, batch
	FROM TransactionLine`

func scanLine(sc interface{ Scan(...any) error }) (model.Line, error) {
	var l model.Line
	var description sql.NullString
	var vatCode, partner, batch sql.NullInt64
	if err := sc.Scan(&l.ID, &l.Row, &l.VoucherID, &l.Date, &l.Account, &l.Allocation, &description,
		&l.Debit, &l.Credit, &l.VATPercent, &vatCode, &partner, &batch); err != nil {
		return model.Line{}, err
	}
	l.Description = description.String
	l.VATCode = int(vatCode.Int64)
	if partner.Valid {
		p := partner.Int64
		l.PartnerID = &p
	}
	if batch.Valid {
		b := batch.Int64
		l.BatchID = &b
	}
	return l, nil
}

// LoadLines returns the lines of a voucher ordered by row.
func LoadLines(ctx context.Context, q store.Querier, voucherID int64) ([]model.Line, error) {
	rows, err := q.QueryContext(ctx, selectLine+" WHERE voucher = ? ORDER BY line_no", voucherID)
	if err != nil {
		return nil, ledgererr.Storage("reading lines", err)
	}
	defer rows.Close()
	return collectLines(rows)
}

func collectLines(rows *sql.Rows) ([]model.Line, error) {
	var out []model.Line
	for rows.Next() {
		l, err := scanLine(rows)
		if err != nil {
			return nil, ledgererr.Storage("reading lines", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, ledgererr.Storage("reading lines", err)
	}
	return out, nil
}

func voucherTotals(ctx context.Context, q store.Querier, voucherID int64) (debit, credit int64, err error) {
	err = q.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(debit), 0), COALESCE(SUM(credit), 0) FROM TransactionLine WHERE voucher = ?",
		voucherID).Scan(&debit, &credit)
	if err != nil {
		return 0, 0, fmt.Errorf("summing voucher %d: %w", voucherID, err)
	}
	return debit, credit, nil
}

// SetStatus stores a new status on a voucher.
func SetStatus(ctx context.Context, tx *sql.Tx, voucherID int64, status int) error {
	if _, err := tx.ExecContext(ctx, "UPDATE Voucher SET status = ? WHERE id = ?", status, voucherID); err != nil {
		return fmt.Errorf("updating status of voucher %d: %w", voucherID, err)
	}
	return nil
}

// SetExt replaces the extension map of a voucher.
func SetExt(ctx context.Context, tx *sql.Tx, voucherID int64, ext model.VoucherExt) error {
	encoded, err := model.EncodeExt(ext)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "UPDATE Voucher SET json = ? WHERE id = ?", encoded, voucherID); err != nil {
		return fmt.Errorf("updating voucher %d: %w", voucherID, err)
	}
	return nil
}

func nullInt64(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullZero(n int64) any {
	if n == 0 {
		return nil
	}
	return n
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
