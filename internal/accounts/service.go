package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/cleared-dev/tilikirja/internal/ledgererr"
	"github.com/cleared-dev/tilikirja/internal/model"
	"github.com/cleared-dev/tilikirja/internal/store"
)

// Registry provides chart-of-accounts operations on one ledger.
type Registry struct {
	store *store.Store
	log   zerolog.Logger
}

// NewRegistry creates a Registry.
func NewRegistry(s *store.Store, log zerolog.Logger) *Registry {
	return &Registry{store: s, log: log}
}

const selectAccount = "SELECT number, type, iban, json FROM Account"

func scanAccount(sc interface{ Scan(...any) error }) (model.Account, error) {
	var a model.Account
	var typ string
	var iban, ext sql.NullString
	if err := sc.Scan(&a.Number, &typ, &iban, &ext); err != nil {
		return model.Account{}, err
	}
	a.Type = model.AccountType(typ)
	a.IBAN = iban.String
	if ext.Valid {
		if err := model.DecodeExt(&ext.String, &a.Ext); err != nil {
			return model.Account{}, fmt.Errorf("account %d: %w", a.Number, err)
		}
	}
	return a, nil
}

// List returns every account ordered by number.
func (r *Registry) List(ctx context.Context) ([]model.Account, error) {
	return listAccounts(ctx, r.store.DB())
}

func listAccounts(ctx context.Context, q store.Querier) ([]model.Account, error) {
	rows, err := q.QueryContext(ctx, selectAccount+" ORDER BY number")
	if err != nil {
		return nil, ledgererr.Storage("listing accounts", err)
	}
	defer rows.Close()

	var out []model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, ledgererr.Storage("listing accounts", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, ledgererr.Storage("listing accounts", err)
	}
	return out, nil
}

// Load returns a snapshot of the chart read through q, which may be a
// transaction.
func Load(ctx context.Context, q store.Querier) (*Chart, error) {
	accts, err := listAccounts(ctx, q)
	if err != nil {
		return nil, err
	}
	return NewChart(accts), nil
}

// Chart returns a snapshot of the current chart.
func (r *Registry) Chart(ctx context.Context) (*Chart, error) {
	return Load(ctx, r.store.DB())
}

// Get returns the account with the given number. ok is false when absent.
func (r *Registry) Get(ctx context.Context, number int) (model.Account, bool, error) {
	return getAccount(ctx, r.store.DB(), number)
}

func getAccount(ctx context.Context, q store.Querier, number int) (model.Account, bool, error) {
	a, err := scanAccount(q.QueryRowContext(ctx, selectAccount+" WHERE number = ?", number))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Account{}, false, nil
	}
	if err != nil {
		return model.Account{}, false, ledgererr.Storage("reading account", err)
	}
	return a, true, nil
}

// Upsert creates the account or updates an existing one. Type and IBAN are
// replaced; the extension map is merged into the stored one.
func (r *Registry) Upsert(ctx context.Context, acct model.Account) error {
	if acct.Number <= 0 {
		return ledgererr.ValidationError{Field: "number", Reason: fmt.Sprintf("account number must be positive, got %d", acct.Number)}
	}
	if !acct.Type.Valid() {
		return ledgererr.ValidationError{Field: "type", Reason: fmt.Sprintf("account type %q is not one of A, B, C, D, E", acct.Type)}
	}

	return r.store.WithTransaction(ctx, func(tx *sql.Tx) error {
		return upsertAccount(ctx, tx, acct)
	})
}

func upsertAccount(ctx context.Context, tx *sql.Tx, acct model.Account) error {
	existing, ok, err := getAccount(ctx, tx, acct.Number)
	if err != nil {
		return err
	}
	ext := acct.Ext
	if ok {
		ext = existing.Ext.Merge(acct.Ext)
	}
	encoded, err := model.EncodeExt(ext)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO Account (number, type, iban, json) VALUES (?, ?, ?, ?)
		ON CONFLICT(number) DO UPDATE SET type = excluded.type, iban = excluded.iban, json = excluded.json
	`, acct.Number, string(acct.Type), store.NullString(acct.IBAN), encoded)
	if err != nil {
		return fmt.Errorf("upserting account %d: %w", acct.Number, err)
	}
	return nil
}

// Delete removes an account. Accounts referenced by any transaction line
// cannot be deleted.
func (r *Registry) Delete(ctx context.Context, number int) error {
	return r.store.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, ok, err := getAccount(ctx, tx, number); err != nil {
			return err
		} else if !ok {
			return ledgererr.NotFoundError{Entity: "account", ID: number}
		}

		var refs int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM TransactionLine WHERE account = ?", number).Scan(&refs); err != nil {
			return fmt.Errorf("counting account references: %w", err)
		}
		if refs > 0 {
			return ledgererr.InvalidStateError{Entity: "account", ID: number, Reason: fmt.Sprintf("referenced by %d transaction lines", refs)}
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM Account WHERE number = ?", number); err != nil {
			if store.IsConstraint(err) {
				return ledgererr.InvalidStateError{Entity: "account", ID: number, Reason: "still referenced"}
			}
			return fmt.Errorf("deleting account %d: %w", number, err)
		}
		r.log.Debug().Int("account", number).Msg("account deleted")
		return nil
	})
}

// NextNumber suggests a number for a new account: ten above the highest
// existing one, 1000 for an empty chart.
func (r *Registry) NextNumber(ctx context.Context) (int, error) {
	var maxNumber sql.NullInt64
	if err := r.store.DB().QueryRowContext(ctx, "SELECT MAX(number) FROM Account").Scan(&maxNumber); err != nil {
		return 0, ledgererr.Storage("reading account numbers", err)
	}
	if !maxNumber.Valid {
		return 1000, nil
	}
	return int(maxNumber.Int64) + 10, nil
}

// Headers returns the chart headings ordered by number and level.
func (r *Registry) Headers(ctx context.Context) ([]model.Header, error) {
	rows, err := r.store.DB().QueryContext(ctx, "SELECT number, level, name FROM Header ORDER BY number, level")
	if err != nil {
		return nil, ledgererr.Storage("listing headers", err)
	}
	defer rows.Close()

	var out []model.Header
	for rows.Next() {
		var h model.Header
		if err := rows.Scan(&h.Number, &h.Level, &h.Name); err != nil {
			return nil, ledgererr.Storage("listing headers", err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, ledgererr.Storage("listing headers", err)
	}
	return out, nil
}

// Import upserts every account in one transaction.
func (r *Registry) Import(ctx context.Context, accts []model.Account) error {
	for _, a := range accts {
		if a.Number <= 0 || !a.Type.Valid() {
			return ledgererr.ValidationError{Field: "account", Reason: fmt.Sprintf("account %d has invalid number or type %q", a.Number, a.Type)}
		}
	}
	return r.store.WithTransaction(ctx, func(tx *sql.Tx) error {
		for _, a := range accts {
			if err := upsertAccount(ctx, tx, a); err != nil {
				return err
			}
		}
		r.log.Debug().Int("accounts", len(accts)).Msg("chart imported")
		return nil
	})
}

var vatAccountByCode = map[int]int{
	1: 2310, // sales VAT
	2: 2310,
	3: 2310,
	5: 2320, // purchase VAT
	6: 2320,
	7: 2320,
	8: 2320,
	9: 2300,
}

// DefaultVATAccount is the fallback VAT account of every template.
const DefaultVATAccount = 2300

// SuggestVATAccount picks the account VAT of the given code is booked on:
// the code's usual account when the chart has it, the default VAT account,
// or the first liability between 2300 and 2999.
func (c *Chart) SuggestVATAccount(vatCode int) (int, bool) {
	if n, ok := vatAccountByCode[vatCode]; ok && c.Exists(n) {
		return n, true
	}
	if c.Exists(DefaultVATAccount) {
		return DefaultVATAccount, true
	}
	for _, a := range c.InRange(2300, 2999) {
		if a.Type == model.AccountTypeLiability {
			return a.Number, true
		}
	}
	return 0, false
}
