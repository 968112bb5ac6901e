package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/cleared-dev/tilikirja/internal/accounts"
	"github.com/cleared-dev/tilikirja/internal/attachments"
	"github.com/cleared-dev/tilikirja/internal/ledgererr"
	"github.com/cleared-dev/tilikirja/internal/model"
	"github.com/cleared-dev/tilikirja/internal/store"
)

// Service is the voucher engine: creation, validation, lifecycle and
// history of vouchers on one ledger.
type Service struct {
	store  *store.Store
	policy attachments.Policy
	log    zerolog.Logger
}

// NewService creates a journal Service.
func NewService(s *store.Store, policy attachments.Policy, log zerolog.Logger) *Service {
	return &Service{store: s, policy: policy, log: log}
}

// Header holds the voucher fields of a new voucher.
type Header struct {
	Date        time.Time
	Type        model.VoucherType
	Status      model.Status
	Number      int64
	Series      string
	Title       string
	PartnerID   *int64
	InvoiceDate *time.Time
	DueDate     *time.Time
	Reference   string
	Ext         model.VoucherExt
}

// Result is the outcome of a voucher creation. Rejected lists the uploads
// that were dropped; the voucher was created regardless.
type Result struct {
	VoucherID int64
	Rejected  []error
}

// Create validates and stores a voucher with its lines and accepted
// attachments in one transaction. Status must be Draft or Ready; Ready
// requires the lines to balance.
func (s *Service) Create(ctx context.Context, h Header, lines []LineInput, uploads []attachments.Upload) (Result, error) {
	if h.Status != model.StatusDraft && h.Status != model.StatusReady {
		return Result{}, ledgererr.ValidationError{
			Field:  "status",
			Reason: fmt.Sprintf("new vouchers must be Draft or Ready, got %d", h.Status),
		}
	}

	accepted, rejected := s.policy.Ingest(uploads)
	for _, r := range rejected {
		s.log.Warn().Err(r).Msg("attachment rejected")
	}
	s.store.Metrics().AttachmentsRejected(len(rejected))

	var voucherID int64
	err := s.store.WithTransaction(ctx, func(tx *sql.Tx) error {
		var err error
		voucherID, err = CreateTx(ctx, tx, h, lines, accepted)
		return err
	})
	if err != nil {
		return Result{}, err
	}

	s.store.Metrics().VoucherCreated(int(h.Type))
	s.log.Debug().Int64("voucher", voucherID).Int("type", int(h.Type)).Int("attachments", len(accepted)).Msg("voucher created")
	return Result{VoucherID: voucherID, Rejected: rejected}, nil
}

// CreateTx validates and inserts a voucher inside tx and returns its id.
// Vouchers other than sales invoices that are created past Draft must
// balance within BalanceTolerance.
func CreateTx(ctx context.Context, tx *sql.Tx, h Header, lines []LineInput, files []attachments.Prepared) (int64, error) {
	if h.Date.IsZero() {
		return 0, ledgererr.ValidationError{Field: "date", Reason: "voucher date is required"}
	}
	if !h.Type.Valid() {
		return 0, ledgererr.ValidationError{Field: "type", Reason: fmt.Sprintf("unknown voucher type %d", h.Type)}
	}
	date := dateOnly(h.Date)

	chart, err := accounts.Load(ctx, tx)
	if err != nil {
		return 0, err
	}
	validated, err := ValidateLines(lines, chart, date)
	if err != nil {
		return 0, err
	}

	if h.Status != model.StatusDraft {
		debit, credit := Totals(validated)
		if !Balanced(debit, credit, BalanceTolerance) {
			return 0, ledgererr.UnbalancedError{Debit: debit, Credit: credit}
		}
	}

	ext, err := model.EncodeExt(h.Ext)
	if err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO Voucher (date, type, status, number, series, title, partner, invoice_date, due_date, reference, json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, store.FormatDate(date), int(h.Type), int(h.Status), nullZero(h.Number), store.NullString(h.Series),
		store.NullString(h.Title), nullInt64(h.PartnerID), store.NullDate(h.InvoiceDate), store.NullDate(h.DueDate),
		store.NullString(h.Reference), ext)
	if err != nil {
		if store.IsConstraint(err) {
			return 0, ledgererr.ValidationError{Field: "partner", Reason: "unknown partner"}
		}
		return 0, fmt.Errorf("inserting voucher: %w", err)
	}
	voucherID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading voucher id: %w", err)
	}

	if err := insertLines(ctx, tx, voucherID, validated); err != nil {
		return 0, err
	}
	for _, f := range files {
		if _, err := attachments.Insert(ctx, tx, voucherID, f); err != nil {
			return 0, err
		}
	}
	return voucherID, nil
}

func insertLines(ctx context.Context, tx *sql.Tx, voucherID int64, lines []model.Line) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO TransactionLine
			(line_no, voucher, date, account, allocation, description, debit, credit, vat_percent, vat_code, partner, batch)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing line insert: %w", err)
	}
	defer stmt.Close()

	for _, l := range lines {
		var vatCode any
		if l.VATCode != 0 {
			vatCode = l.VATCode
		}
		_, err := stmt.ExecContext(ctx, l.Row, voucherID, store.FormatDate(l.Date), l.Account, l.Allocation,
			store.NullString(l.Description), l.Debit, l.Credit, l.VATPercent, vatCode, nullInt64(l.PartnerID), nullInt64(l.BatchID))
		if err != nil {
			if store.IsConstraint(err) {
				return ledgererr.ValidationError{
					Field:  fmt.Sprintf("line %d", l.Row),
					Reason: "references an unknown allocation or partner",
				}
			}
			return fmt.Errorf("inserting line %d: %w", l.Row, err)
		}
	}
	return nil
}

// Confirm moves a Draft voucher to Ready once its lines balance.
func (s *Service) Confirm(ctx context.Context, voucherID int64) error {
	err := s.store.WithTransaction(ctx, func(tx *sql.Tx) error {
		v, err := GetVoucher(ctx, tx, voucherID)
		if err != nil {
			return err
		}
		if v.Status != model.StatusDraft {
			return ledgererr.InvalidStateError{
				Entity: "voucher", ID: voucherID,
				Reason: fmt.Sprintf("only Draft vouchers can be confirmed, status is %d", v.Status),
			}
		}
		if err := checkBalanced(ctx, tx, voucherID); err != nil {
			return err
		}
		return SetStatus(ctx, tx, voucherID, int(model.StatusReady))
	})
	if err != nil {
		return err
	}
	s.recordStatus(voucherID, int(model.StatusReady), model.StatusReady.String())
	return nil
}

// Post moves a Ready voucher to Posted.
func (s *Service) Post(ctx context.Context, voucherID int64) error {
	return s.transition(ctx, voucherID, model.StatusReady, model.StatusPosted, true)
}

// Archive moves a Posted voucher to Archived.
func (s *Service) Archive(ctx context.Context, voucherID int64) error {
	return s.transition(ctx, voucherID, model.StatusPosted, model.StatusArchived, false)
}

func (s *Service) transition(ctx context.Context, voucherID int64, from, to model.Status, gate bool) error {
	err := s.store.WithTransaction(ctx, func(tx *sql.Tx) error {
		v, err := GetVoucher(ctx, tx, voucherID)
		if err != nil {
			return err
		}
		if v.Type == model.VoucherSalesInvoice {
			return ledgererr.InvalidStateError{Entity: "voucher", ID: voucherID, Reason: "sales invoices follow the invoice statuses"}
		}
		if v.Status != from {
			return ledgererr.InvalidStateError{
				Entity: "voucher", ID: voucherID,
				Reason: fmt.Sprintf("cannot move from %s to %s", v.Status, to),
			}
		}
		if gate {
			if err := checkBalanced(ctx, tx, voucherID); err != nil {
				return err
			}
		}
		return SetStatus(ctx, tx, voucherID, int(to))
	})
	if err != nil {
		return err
	}
	s.recordStatus(voucherID, int(to), to.String())
	return nil
}

func (s *Service) recordStatus(voucherID int64, status int, name string) {
	s.store.Metrics().StatusChanged(name)
	s.log.Debug().Int64("voucher", voucherID).Int("status", status).Msg("voucher status changed")
}

func checkBalanced(ctx context.Context, tx *sql.Tx, voucherID int64) error {
	debit, credit, err := voucherTotals(ctx, tx, voucherID)
	if err != nil {
		return err
	}
	if !Balanced(debit, credit, BalanceTolerance) {
		return ledgererr.UnbalancedError{VoucherID: voucherID, Debit: debit, Credit: credit}
	}
	return nil
}

// Delete removes a voucher; its lines and attachments go with it.
func (s *Service) Delete(ctx context.Context, voucherID int64) error {
	err := s.store.WithTransaction(ctx, func(tx *sql.Tx) error {
		return deleteVoucher(ctx, tx, voucherID)
	})
	if err != nil {
		return err
	}
	s.log.Debug().Int64("voucher", voucherID).Msg("voucher deleted")
	return nil
}

func deleteVoucher(ctx context.Context, tx *sql.Tx, voucherID int64) error {
	res, err := tx.ExecContext(ctx, "DELETE FROM Voucher WHERE id = ?", voucherID)
	if err != nil {
		return fmt.Errorf("deleting voucher %d: %w", voucherID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting voucher %d: %w", voucherID, err)
	}
	if n == 0 {
		return ledgererr.NotFoundError{Entity: "voucher", ID: voucherID}
	}
	return nil
}

// Detail is a voucher with its lines, attachment metadata and totals.
type Detail struct {
	Voucher     model.Voucher
	Lines       []model.Line
	Attachments []model.Attachment
	Debit       int64
	Credit      int64
}

// Balanced reports whether the voucher passes the confirmation balance check.
func (d Detail) Balanced() bool {
	return Balanced(d.Debit, d.Credit, BalanceTolerance)
}

// Get returns a voucher with its lines and attachment metadata.
func (s *Service) Get(ctx context.Context, voucherID int64) (Detail, error) {
	return getDetail(ctx, s.store.DB(), voucherID)
}

func getDetail(ctx context.Context, q store.Querier, voucherID int64) (Detail, error) {
	v, err := GetVoucher(ctx, q, voucherID)
	if err != nil {
		return Detail{}, err
	}
	lines, err := LoadLines(ctx, q, voucherID)
	if err != nil {
		return Detail{}, err
	}
	files, err := attachments.List(ctx, q, voucherID)
	if err != nil {
		return Detail{}, err
	}
	d := Detail{Voucher: v, Lines: lines, Attachments: files}
	d.Debit, d.Credit = Totals(lines)
	return d, nil
}

// Filter narrows List. Zero fields do not filter.
type Filter struct {
	Type   model.VoucherType
	Status *model.Status
	From   time.Time
	To     time.Time
	Limit  int
}

// Summary is one row of a voucher listing.
type Summary struct {
	Voucher model.Voucher
	Debit   int64
	Credit  int64
}

// List returns vouchers newest first.
func (s *Service) List(ctx context.Context, f Filter) ([]Summary, error) {
	query := `
		SELECT v.id, v.date, v.type, v.status, v.number, v.series, v.title, v.partner,
		       v.invoice_date, v.due_date, v.reference, v.json,
		       COALESCE(SUM(l.debit), 0), COALESCE(SUM(l.credit), 0)
		FROM Voucher v
		LEFT JOIN TransactionLine l ON l.voucher = v.id
		WHERE 1 = 1`
	var args []any
	if f.Type != 0 {
		query += " AND v.type = ?"
		args = append(args, int(f.Type))
	}
	if f.Status != nil {
		query += " AND v.status = ?"
		args = append(args, int(*f.Status))
	}
	if !f.From.IsZero() {
		query += " AND v.date >= ?"
		args = append(args, store.FormatDate(f.From))
	}
	if !f.To.IsZero() {
		query += " AND v.date <= ?"
		args = append(args, store.FormatDate(f.To))
	}
	query += " GROUP BY v.id ORDER BY v.date DESC, v.id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.store.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, ledgererr.Storage("listing vouchers", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		v, err := scanVoucher(scanFunc(func(dest ...any) error {
			return rows.Scan(append(dest, &sum.Debit, &sum.Credit)...)
		}))
		if err != nil {
			return nil, ledgererr.Storage("listing vouchers", err)
		}
		sum.Voucher = v
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, ledgererr.Storage("listing vouchers", err)
	}
	return out, nil
}

type scanFunc func(dest ...any) error

func (f scanFunc) Scan(dest ...any) error { return f(dest...) }
