package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/cleared-dev/tilikirja/internal/ledgererr"
)

// Setting keys seeded into every ledger.
const (
	SettingName           = "name"
	SettingBusinessID     = "business_id"
	SettingStreetAddress  = "street_address"
	SettingPostalCode     = "postal_code"
	SettingCity           = "city"
	SettingDomicile       = "domicile"
	SettingEmail          = "email"
	SettingWebsite        = "website"
	SettingPhone          = "phone"
	SettingVATRegistered  = "vat_registered"
	SettingCompanyForm    = "company_form"
	SettingChartScope     = "chart_scope"
	SettingSchemaVersion  = "schema_version"
	SettingCreatedWith    = "created_with_version"
	SettingCreated        = "created"
	SettingUID            = "uid"
	SettingNextInvoiceID  = "next_invoice_id"
	SettingInvoiceIBANs   = "invoice_ibans"
	CurrentSchemaVersion  = "1.0"
	nextInvoiceIDInitial  = "100"
	vatRegisteredOn       = "ON"
	vatRegisteredOff      = "OFF"
)

// Setting returns the value of key. ok is false when the key is absent.
func Setting(ctx context.Context, q Querier, key string) (value string, ok bool, err error) {
	var v sql.NullString
	err = q.QueryRowContext(ctx, "SELECT value FROM Setting WHERE key = ?", key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, ledgererr.Storage("reading setting "+key, err)
	}
	return v.String, true, nil
}

// SetSetting inserts or replaces key.
func SetSetting(ctx context.Context, q Querier, key, value string) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO Setting (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return ledgererr.Storage("writing setting "+key, err)
	}
	return nil
}

// Settings returns every key/value pair.
func Settings(ctx context.Context, q Querier) (map[string]string, error) {
	rows, err := q.QueryContext(ctx, "SELECT key, value FROM Setting ORDER BY key")
	if err != nil {
		return nil, ledgererr.Storage("reading settings", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k string
		var v sql.NullString
		if err := rows.Scan(&k, &v); err != nil {
			return nil, ledgererr.Storage("reading settings", err)
		}
		out[k] = v.String
	}
	if err := rows.Err(); err != nil {
		return nil, ledgererr.Storage("reading settings", err)
	}
	return out, nil
}

// ClientName returns the client name, or "" when it cannot be read.
func (s *Store) ClientName(ctx context.Context) string {
	name, _, err := Setting(ctx, s.db, SettingName)
	if err != nil {
		s.log.Debug().Err(err).Msg("client name unavailable")
		return ""
	}
	return name
}
