// Package invoice generates sales invoices as vouchers and settles them
// with payment vouchers.
package invoice

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/tilikirja/internal/accounts"
	"github.com/cleared-dev/tilikirja/internal/attachments"
	"github.com/cleared-dev/tilikirja/internal/journal"
	"github.com/cleared-dev/tilikirja/internal/ledgererr"
	"github.com/cleared-dev/tilikirja/internal/model"
	"github.com/cleared-dev/tilikirja/internal/store"
)

// DefaultPaymentTerms applies when a draft names no terms.
const DefaultPaymentTerms = "14 days"

// DefaultDueDays is used when the payment terms carry no leading number.
const DefaultDueDays = 14

// Accounts are the fixed accounts invoices post to.
type Accounts struct {
	Sales      int `yaml:"sales"`
	Receivable int `yaml:"receivable"`
	VAT        int `yaml:"vat"`
	Payment    int `yaml:"payment"`
}

// DefaultAccounts matches the basic chart template.
func DefaultAccounts() Accounts {
	return Accounts{Sales: 4000, Receivable: 1200, VAT: 2300, Payment: 1000}
}

// Item is one invoiced product or service.
type Item struct {
	Product    string
	Quantity   decimal.Decimal
	UnitPrice  decimal.Decimal
	Discount   decimal.Decimal // percent, zero for none
	VATPercent decimal.Decimal
	VATCode    int
	Account    int   // revenue account; zero uses Accounts.Sales
	Allocation int64 // applies to the revenue and VAT lines
}

// Draft is the input of Create.
type Draft struct {
	Date            time.Time
	DueDate         *time.Time
	PartnerID       *int64
	PaymentTerms    string
	PaymentMethod   model.PaymentMethod
	Reference       string
	ReferenceNumber string
	Comment         string
	Title           string
	Items           []Item
	Uploads         []attachments.Upload
}

// Result is the outcome of Create.
type Result struct {
	VoucherID int64
	Number    int64
	DueDate   time.Time
	Total     int64
	Rejected  []error
}

// Service creates, settles and voids sales invoices.
type Service struct {
	store    *store.Store
	policy   attachments.Policy
	accounts Accounts
	log      zerolog.Logger
}

// NewService creates an invoice Service.
func NewService(s *store.Store, policy attachments.Policy, accts Accounts, log zerolog.Logger) *Service {
	return &Service{store: s, policy: policy, accounts: accts, log: log}
}

// DueDays returns the leading integer of terms, e.g. 30 for "30 days net".
// ok is false when terms does not start with a number.
func DueDays(terms string) (days int, ok bool) {
	terms = strings.TrimSpace(terms)
	end := strings.IndexFunc(terms, func(r rune) bool { return !unicode.IsDigit(r) })
	if end == -1 {
		end = len(terms)
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(terms[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

// DueDate returns the due date of an invoice dated invoiceDate.
func DueDate(invoiceDate time.Time, terms string) time.Time {
	if terms == "" {
		terms = DefaultPaymentTerms
	}
	days, ok := DueDays(terms)
	if !ok {
		days = DefaultDueDays
	}
	return invoiceDate.AddDate(0, 0, days)
}

type amounts struct {
	lines   []journal.LineInput
	revenue []int // row of each item's revenue line
	total   int64
}

// vatAccount returns the configured VAT account, or the one the chart
// suggests for vatCode when the configured account is missing.
func (s *Service) vatAccount(chart *accounts.Chart, vatCode int) int {
	if chart.Exists(s.accounts.VAT) {
		return s.accounts.VAT
	}
	if n, ok := chart.SuggestVATAccount(vatCode); ok {
		return n
	}
	return s.accounts.VAT
}

// buildLines turns each item into a revenue credit plus a VAT credit when VAT
// applies, followed by the receivable debit for the sum of all of them.
func (s *Service) buildLines(items []Item, partnerID *int64, chart *accounts.Chart) (amounts, error) {
	var out amounts
	hundred := decimal.NewFromInt(100)
	for i, it := range items {
		field := fmt.Sprintf("item %d", i+1)
		if it.Quantity.IsNegative() || it.UnitPrice.IsNegative() || it.VATPercent.IsNegative() {
			return amounts{}, ledgererr.ValidationError{Field: field, Reason: "quantity, price and VAT must not be negative"}
		}
		if it.Discount.IsNegative() || it.Discount.GreaterThan(hundred) {
			return amounts{}, ledgererr.ValidationError{Field: field, Reason: "discount must be between 0 and 100"}
		}

		amount := it.Quantity.Mul(it.UnitPrice)
		if !it.Discount.IsZero() {
			amount = amount.Mul(decimal.NewFromInt(1).Sub(it.Discount.Div(hundred)))
		}
		amountCents := model.ToCents(amount)
		if amountCents == 0 {
			return amounts{}, ledgererr.ValidationError{Field: field, Reason: "item has no amount"}
		}
		vatCents := model.ToCents(model.FromCents(amountCents).Mul(it.VATPercent).Div(hundred))

		account := it.Account
		if account == 0 {
			account = s.accounts.Sales
		}
		desc := fmt.Sprintf("%s %s x %s", it.Product, it.Quantity.String(), it.UnitPrice.StringFixed(2))
		if !it.Discount.IsZero() {
			desc += fmt.Sprintf(" (discount: %s%%)", it.Discount.String())
		}

		out.revenue = append(out.revenue, len(out.lines)+1)
		out.lines = append(out.lines, journal.LineInput{
			Account:     account,
			Allocation:  it.Allocation,
			Description: desc,
			Credit:      amountCents,
			VATPercent:  decimal.NewNullDecimal(it.VATPercent),
			VATCode:     it.VATCode,
			PartnerID:   partnerID,
		})
		if it.VATPercent.IsPositive() && vatCents > 0 {
			out.lines = append(out.lines, journal.LineInput{
				Account:     s.vatAccount(chart, it.VATCode),
				Allocation:  it.Allocation,
				Description: fmt.Sprintf("VAT %s%%: %s", it.VATPercent.String(), desc),
				Credit:      vatCents,
				VATCode:     it.VATCode,
				PartnerID:   partnerID,
			})
		}
		out.total += amountCents + vatCents
	}

	out.lines = append(out.lines, journal.LineInput{
		Account:     s.accounts.Receivable,
		Description: "Accounts receivable",
		Debit:       out.total,
		PartnerID:   partnerID,
	})
	return out, nil
}

// Create stores a Draft invoice. The partner is required and must exist.
// The number is one past the highest existing invoice number.
func (s *Service) Create(ctx context.Context, d Draft) (Result, error) {
	if d.PartnerID == nil {
		return Result{}, ledgererr.MissingPartnerError{}
	}
	if d.Date.IsZero() {
		return Result{}, ledgererr.ValidationError{Field: "date", Reason: "invoice date is required"}
	}
	if len(d.Items) == 0 {
		return Result{}, ledgererr.ValidationError{Field: "items", Reason: "an invoice needs at least one item"}
	}

	terms := d.PaymentTerms
	if terms == "" {
		terms = DefaultPaymentTerms
	}
	due := DueDate(d.Date, terms)
	if d.DueDate != nil {
		due = *d.DueDate
	}
	invoiceDate := d.Date

	accepted, rejected := s.policy.Ingest(d.Uploads)
	for _, r := range rejected {
		s.log.Warn().Err(r).Msg("attachment rejected")
	}
	s.store.Metrics().AttachmentsRejected(len(rejected))

	res := Result{DueDate: due, Rejected: rejected}
	err := s.store.WithTransaction(ctx, func(tx *sql.Tx) error {
		chart, err := accounts.Load(ctx, tx)
		if err != nil {
			return err
		}
		built, err := s.buildLines(d.Items, d.PartnerID, chart)
		if err != nil {
			return err
		}
		if err := partnerExists(ctx, tx, *d.PartnerID); err != nil {
			return err
		}
		number, err := nextNumber(ctx, tx)
		if err != nil {
			return err
		}
		title := d.Title
		if title == "" {
			title = fmt.Sprintf("Invoice %d", number)
		}

		h := journal.Header{
			Date:        invoiceDate,
			Type:        model.VoucherSalesInvoice,
			Status:      model.Status(model.InvoiceDraft),
			Number:      number,
			Title:       title,
			PartnerID:   d.PartnerID,
			InvoiceDate: &invoiceDate,
			DueDate:     &due,
			Reference:   d.Reference,
			Ext: model.VoucherExt{
				PaymentTerms:    terms,
				PaymentMethod:   d.PaymentMethod,
				ReferenceNumber: d.ReferenceNumber,
				Comment:         d.Comment,
			},
		}
		voucherID, err := journal.CreateTx(ctx, tx, h, built.lines, accepted)
		if err != nil {
			return err
		}
		if err := insertProductLines(ctx, tx, voucherID, d.Items, built.revenue); err != nil {
			return err
		}
		res.VoucherID, res.Number, res.Total = voucherID, number, built.total
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	s.store.Metrics().VoucherCreated(int(model.VoucherSalesInvoice))
	s.log.Debug().Int64("voucher", res.VoucherID).Int64("number", res.Number).Int64("total", res.Total).Msg("invoice created")
	return res, nil
}

// insertProductLines records quantity, unit price and discount of each item
// against its revenue line.
func insertProductLines(ctx context.Context, tx *sql.Tx, voucherID int64, items []Item, rows []int) error {
	for i, it := range items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO ProductLine (voucher, line, quantity, unit_price, discount, json)
			VALUES (?, (SELECT id FROM TransactionLine WHERE voucher = ? AND line_no = ?), ?, ?, ?, ?)
		`, voucherID, voucherID, rows[i], it.Quantity.String(), model.ToCents(it.UnitPrice), it.Discount.String(),
			productName(it.Product))
		if err != nil {
			return fmt.Errorf("inserting product line %d: %w", i+1, err)
		}
	}
	return nil
}

func productName(name string) any {
	if name == "" {
		return nil
	}
	b, _ := json.Marshal(map[string]string{"name": name})
	return string(b)
}

func partnerExists(ctx context.Context, q store.Querier, partnerID int64) error {
	var n int
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM Partner WHERE id = ?", partnerID).Scan(&n); err != nil {
		return fmt.Errorf("checking partner: %w", err)
	}
	if n == 0 {
		return ledgererr.NotFoundError{Entity: "partner", ID: partnerID}
	}
	return nil
}

func nextNumber(ctx context.Context, q store.Querier) (int64, error) {
	var highest int64
	err := q.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(number), 0) FROM Voucher WHERE type = ?", int(model.VoucherSalesInvoice)).Scan(&highest)
	if err != nil {
		return 0, fmt.Errorf("reading invoice numbers: %w", err)
	}
	return highest + 1, nil
}

// Payment describes the settlement of an invoice. A zero Amount pays the
// receivable total; a zero Account uses Accounts.Payment.
type Payment struct {
	Date    time.Time
	Amount  int64
	Account int
}

func getInvoice(ctx context.Context, q store.Querier, voucherID int64) (model.Voucher, error) {
	v, err := journal.GetVoucher(ctx, q, voucherID)
	if errors.Is(err, ledgererr.ErrNotFound) {
		return model.Voucher{}, ledgererr.NotFoundError{Entity: "invoice", ID: voucherID}
	}
	if err != nil {
		return model.Voucher{}, err
	}
	if v.Type != model.VoucherSalesInvoice {
		return model.Voucher{}, ledgererr.NotFoundError{Entity: "invoice", ID: voucherID}
	}
	return v, nil
}

// MarkPaid sets the invoice Paid and books a Ready payment voucher debiting
// the payment account and crediting receivables. The two vouchers reference
// each other through payment_voucher and linked_invoice.
func (s *Service) MarkPaid(ctx context.Context, voucherID int64, p Payment) (int64, error) {
	if p.Date.IsZero() {
		return 0, ledgererr.ValidationError{Field: "payment_date", Reason: "payment date is required"}
	}
	if p.Amount < 0 {
		return 0, ledgererr.ValidationError{Field: "amount", Reason: "payment amount must not be negative"}
	}
	account := p.Account
	if account == 0 {
		account = s.accounts.Payment
	}

	var paymentID int64
	err := s.store.WithTransaction(ctx, func(tx *sql.Tx) error {
		inv, err := getInvoice(ctx, tx, voucherID)
		if err != nil {
			return err
		}
		switch inv.InvoiceStatus() {
		case model.InvoicePaid:
			return ledgererr.InvalidStateError{Entity: "invoice", ID: voucherID, Reason: "already paid"}
		case model.InvoiceVoided:
			return ledgererr.InvalidStateError{Entity: "invoice", ID: voucherID, Reason: "voided"}
		}

		amount := p.Amount
		if amount == 0 {
			if err := tx.QueryRowContext(ctx,
				"SELECT COALESCE(SUM(debit), 0) FROM TransactionLine WHERE voucher = ? AND account = ?",
				voucherID, s.accounts.Receivable).Scan(&amount); err != nil {
				return fmt.Errorf("reading receivable of invoice %d: %w", voucherID, err)
			}
		}
		if amount == 0 {
			return ledgererr.ValidationError{Field: "amount", Reason: "invoice has no receivable to pay"}
		}

		desc := fmt.Sprintf("Payment of invoice %d", inv.Number)
		batch := voucherID
		h := journal.Header{
			Date:      p.Date,
			Type:      model.VoucherPayment,
			Status:    model.StatusReady,
			Title:     desc,
			PartnerID: inv.PartnerID,
			Ext:       model.VoucherExt{LinkedInvoice: voucherID},
		}
		paymentID, err = journal.CreateTx(ctx, tx, h, []journal.LineInput{
			{Account: account, Description: desc, Debit: amount, PartnerID: inv.PartnerID, BatchID: &batch},
			{Account: s.accounts.Receivable, Description: desc, Credit: amount, PartnerID: inv.PartnerID, BatchID: &batch},
		}, nil)
		if err != nil {
			return err
		}

		if err := journal.SetStatus(ctx, tx, voucherID, int(model.InvoicePaid)); err != nil {
			return err
		}
		ext := inv.Ext
		ext.PaymentVoucher = paymentID
		ext.PaymentDate = p.Date.Format(model.DateLayout)
		return journal.SetExt(ctx, tx, voucherID, ext)
	})
	if err != nil {
		return 0, err
	}

	s.store.Metrics().VoucherCreated(int(model.VoucherPayment))
	s.store.Metrics().StatusChanged(model.InvoicePaid.String())
	s.log.Debug().Int64("invoice", voucherID).Int64("payment", paymentID).Msg("invoice paid")
	return paymentID, nil
}

// Void marks an unpaid invoice Voided.
func (s *Service) Void(ctx context.Context, voucherID int64) error {
	err := s.store.WithTransaction(ctx, func(tx *sql.Tx) error {
		inv, err := getInvoice(ctx, tx, voucherID)
		if err != nil {
			return err
		}
		switch inv.InvoiceStatus() {
		case model.InvoicePaid:
			return ledgererr.InvalidStateError{Entity: "invoice", ID: voucherID, Reason: "paid invoices cannot be voided"}
		case model.InvoiceVoided:
			return ledgererr.InvalidStateError{Entity: "invoice", ID: voucherID, Reason: "already voided"}
		}
		return journal.SetStatus(ctx, tx, voucherID, int(model.InvoiceVoided))
	})
	if err != nil {
		return err
	}
	s.store.Metrics().StatusChanged(model.InvoiceVoided.String())
	s.log.Debug().Int64("invoice", voucherID).Msg("invoice voided")
	return nil
}

// Summary is one row of the invoice listing.
type Summary struct {
	VoucherID   int64
	Number      int64
	Date        time.Time
	DueDate     *time.Time
	Status      model.InvoiceStatus
	PartnerName string
	Total       int64
}

// List returns all invoices, newest number first.
func (s *Service) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.store.DB().QueryContext(ctx, `
		SELECT v.id, COALESCE(v.number, 0), v.date, v.due_date, v.status, COALESCE(p.name, ''),
		       COALESCE((SELECT SUM(l.debit) FROM TransactionLine l WHERE l.voucher = v.id AND l.account = ?), 0)
		FROM Voucher v
		LEFT JOIN Partner p ON p.id = v.partner
		WHERE v.type = ?
		ORDER BY v.number DESC, v.id DESC
	`, s.accounts.Receivable, int(model.VoucherSalesInvoice))
	if err != nil {
		return nil, ledgererr.Storage("listing invoices", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		var due sql.NullTime
		var status model.Status
		if err := rows.Scan(&sum.VoucherID, &sum.Number, &sum.Date, &due, &status, &sum.PartnerName, &sum.Total); err != nil {
			return nil, ledgererr.Storage("listing invoices", err)
		}
		sum.Status = model.Voucher{Status: status}.InvoiceStatus()
		if due.Valid {
			d := due.Time
			sum.DueDate = &d
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, ledgererr.Storage("listing invoices", err)
	}
	return out, nil
}
