package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cleared-dev/tilikirja/internal/ledgererr"
	"github.com/cleared-dev/tilikirja/internal/model"
)

const (
	openingTitlePrefix = "Opening Balances"
	openingDescription = "Opening Balance"
)

// OpeningEntry is the opening balance of one account.
type OpeningEntry struct {
	Account int
	Debit   int64
	Credit  int64
}

// OpeningTitle returns the title of the opening-balance voucher for date.
func OpeningTitle(date time.Time) string {
	return fmt.Sprintf("%s as of %s", openingTitlePrefix, date.Format(model.DateLayout))
}

// SetOpeningBalances replaces the opening-balance voucher with one dated
// date. Entries without an amount are ignored. The totals must agree within
// OpeningBalanceTolerance; otherwise nothing is written.
func (s *Service) SetOpeningBalances(ctx context.Context, date time.Time, entries []OpeningEntry) (int64, error) {
	if date.IsZero() {
		return 0, ledgererr.ValidationError{Field: "date", Reason: "opening balance date is required"}
	}

	lines := make([]LineInput, 0, len(entries))
	var debit, credit int64
	for _, e := range entries {
		if e.Account == 0 || (e.Debit == 0 && e.Credit == 0) {
			continue
		}
		debit += e.Debit
		credit += e.Credit
		lines = append(lines, LineInput{
			Account:     e.Account,
			Description: openingDescription,
			Debit:       e.Debit,
			Credit:      e.Credit,
		})
	}
	if !Balanced(debit, credit, OpeningBalanceTolerance) {
		return 0, ledgererr.UnbalancedError{Debit: debit, Credit: credit, Opening: true}
	}

	h := Header{
		Date:   date,
		Type:   model.VoucherJournal,
		Status: model.StatusReady,
		Title:  OpeningTitle(date),
	}

	var voucherID int64
	var replaced int64
	err := s.store.WithTransaction(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM Voucher WHERE type = ? AND title LIKE ?",
			int(model.VoucherJournal), openingTitlePrefix+"%")
		if err != nil {
			return fmt.Errorf("removing previous opening balances: %w", err)
		}
		if replaced, err = res.RowsAffected(); err != nil {
			return fmt.Errorf("removing previous opening balances: %w", err)
		}
		voucherID, err = CreateTx(ctx, tx, h, lines, nil)
		return err
	})
	if err != nil {
		return 0, err
	}

	s.store.Metrics().VoucherCreated(int(model.VoucherJournal))
	s.log.Debug().Int64("voucher", voucherID).Int64("replaced", replaced).Int("lines", len(lines)).Msg("opening balances set")
	return voucherID, nil
}

// OpeningBalances returns the current opening-balance voucher. ok is false
// when none exists.
func (s *Service) OpeningBalances(ctx context.Context) (d Detail, ok bool, err error) {
	var voucherID int64
	err = s.store.DB().QueryRowContext(ctx,
		"SELECT id FROM Voucher WHERE type = ? AND title LIKE ? ORDER BY id DESC LIMIT 1",
		int(model.VoucherJournal), openingTitlePrefix+"%").Scan(&voucherID)
	if errors.Is(err, sql.ErrNoRows) {
		return Detail{}, false, nil
	}
	if err != nil {
		return Detail{}, false, ledgererr.Storage("reading opening balances", err)
	}
	d, err = getDetail(ctx, s.store.DB(), voucherID)
	if err != nil {
		return Detail{}, false, err
	}
	return d, true, nil
}
