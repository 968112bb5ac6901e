// Package partners manages the customers and suppliers of a ledger.
package partners

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/cleared-dev/tilikirja/internal/ledgererr"
	"github.com/cleared-dev/tilikirja/internal/model"
	"github.com/cleared-dev/tilikirja/internal/store"
)

// Directory reads and writes partners.
type Directory struct {
	store *store.Store
	log   zerolog.Logger
}

// NewDirectory creates a partner Directory.
func NewDirectory(s *store.Store, log zerolog.Logger) *Directory {
	return &Directory{store: s, log: log}
}

func normalizeIBAN(iban string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(iban), " ", ""))
}

// Create stores a partner with its IBANs and returns the new id.
func (d *Directory) Create(ctx context.Context, p model.Partner) (int64, error) {
	if strings.TrimSpace(p.Name) == "" {
		return 0, ledgererr.ValidationError{Field: "name", Reason: "partner name is required"}
	}
	ext, err := model.EncodeExt(p.Ext)
	if err != nil {
		return 0, err
	}

	var partnerID int64
	err = d.store.WithTransaction(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "INSERT INTO Partner (name, vat_id, json) VALUES (?, ?, ?)",
			strings.TrimSpace(p.Name), store.NullString(p.VATID), ext)
		if err != nil {
			return fmt.Errorf("inserting partner: %w", err)
		}
		if partnerID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("reading partner id: %w", err)
		}
		for _, iban := range p.IBANs {
			if err := addIBAN(ctx, tx, partnerID, iban); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	d.log.Debug().Int64("partner", partnerID).Str("name", p.Name).Msg("partner created")
	return partnerID, nil
}

func addIBAN(ctx context.Context, tx *sql.Tx, partnerID int64, iban string) error {
	iban = normalizeIBAN(iban)
	if iban == "" {
		return ledgererr.ValidationError{Field: "iban", Reason: "IBAN is empty"}
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO PartnerIban (iban, partner) VALUES (?, ?)", iban, partnerID); err != nil {
		if store.IsConstraint(err) {
			return ledgererr.ValidationError{Field: "iban", Reason: fmt.Sprintf("%s is already registered or the partner is unknown", iban)}
		}
		return fmt.Errorf("inserting IBAN: %w", err)
	}
	return nil
}

// AddIBAN registers another IBAN for a partner.
func (d *Directory) AddIBAN(ctx context.Context, partnerID int64, iban string) error {
	return d.store.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := get(ctx, tx, partnerID); err != nil {
			return err
		}
		return addIBAN(ctx, tx, partnerID, iban)
	})
}

// Get returns one partner with its IBANs.
func (d *Directory) Get(ctx context.Context, partnerID int64) (model.Partner, error) {
	return get(ctx, d.store.DB(), partnerID)
}

func get(ctx context.Context, q store.Querier, partnerID int64) (model.Partner, error) {
	p, err := scanPartner(q.QueryRowContext(ctx, "SELECT id, name, vat_id, json FROM Partner WHERE id = ?", partnerID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Partner{}, ledgererr.NotFoundError{Entity: "partner", ID: partnerID}
	}
	if err != nil {
		return model.Partner{}, ledgererr.Storage("reading partner", err)
	}
	if p.IBANs, err = ibans(ctx, q, partnerID); err != nil {
		return model.Partner{}, err
	}
	return p, nil
}

func scanPartner(sc interface{ Scan(...any) error }) (model.Partner, error) {
	var p model.Partner
	var vatID, ext sql.NullString
	if err := sc.Scan(&p.ID, &p.Name, &vatID, &ext); err != nil {
		return model.Partner{}, err
	}
	p.VATID = vatID.String
	if ext.Valid {
		if err := model.DecodeExt(&ext.String, &p.Ext); err != nil {
			return model.Partner{}, fmt.Errorf("partner %d: %w", p.ID, err)
		}
	}
	return p, nil
}

func ibans(ctx context.Context, q store.Querier, partnerID int64) ([]string, error) {
	rows, err := q.QueryContext(ctx, "SELECT iban FROM PartnerIban WHERE partner = ? ORDER BY iban", partnerID)
	if err != nil {
		return nil, ledgererr.Storage("reading IBANs", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var iban string
		if err := rows.Scan(&iban); err != nil {
			return nil, ledgererr.Storage("reading IBANs", err)
		}
		out = append(out, iban)
	}
	if err := rows.Err(); err != nil {
		return nil, ledgererr.Storage("reading IBANs", err)
	}
	return out, nil
}

// List returns every partner ordered by name, with IBANs.
func (d *Directory) List(ctx context.Context) ([]model.Partner, error) {
	rows, err := d.store.DB().QueryContext(ctx, "SELECT id, name, vat_id, json FROM Partner ORDER BY name COLLATE NOCASE, id")
	if err != nil {
		return nil, ledgererr.Storage("listing partners", err)
	}
	defer rows.Close()

	var out []model.Partner
	for rows.Next() {
		p, err := scanPartner(rows)
		if err != nil {
			return nil, ledgererr.Storage("listing partners", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, ledgererr.Storage("listing partners", err)
	}
	rows.Close()

	byPartner, err := allIBANs(ctx, d.store.DB())
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].IBANs = byPartner[out[i].ID]
	}
	return out, nil
}

func allIBANs(ctx context.Context, q store.Querier) (map[int64][]string, error) {
	rows, err := q.QueryContext(ctx, "SELECT partner, iban FROM PartnerIban ORDER BY partner, iban")
	if err != nil {
		return nil, ledgererr.Storage("reading IBANs", err)
	}
	defer rows.Close()
	out := make(map[int64][]string)
	for rows.Next() {
		var partnerID int64
		var iban string
		if err := rows.Scan(&partnerID, &iban); err != nil {
			return nil, ledgererr.Storage("reading IBANs", err)
		}
		out[partnerID] = append(out[partnerID], iban)
	}
	if err := rows.Err(); err != nil {
		return nil, ledgererr.Storage("reading IBANs", err)
	}
	return out, nil
}

// FindByName returns the partner with the given name, case-insensitively.
func (d *Directory) FindByName(ctx context.Context, name string) (model.Partner, bool, error) {
	p, err := scanPartner(d.store.DB().QueryRowContext(ctx,
		"SELECT id, name, vat_id, json FROM Partner WHERE name = ? COLLATE NOCASE ORDER BY id LIMIT 1", strings.TrimSpace(name)))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Partner{}, false, nil
	}
	if err != nil {
		return model.Partner{}, false, ledgererr.Storage("finding partner", err)
	}
	return p, true, nil
}
