package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cleared-dev/tilikirja/internal/buildinfo"
	"github.com/cleared-dev/tilikirja/internal/id"
	"github.com/cleared-dev/tilikirja/internal/ledgererr"
	"github.com/cleared-dev/tilikirja/internal/model"
)

// ClientInfo describes the client a new ledger is created for.
type ClientInfo struct {
	Name          string
	BusinessID    string
	StreetAddress string
	PostalCode    string
	City          string
	Domicile      string
	Email         string
	Website       string
	Phone         string
	VATRegistered bool
	CompanyForm   string
	ChartScope    string
	InvoiceIBANs  []string
	FiscalStart   *time.Time
	FiscalEnd     *time.Time
}

// Chart is the initial chart of accounts seeded into a new ledger.
type Chart struct {
	Accounts []model.Account
	Headers  []model.Header
}

// Create writes a new ledger file under dir and returns its path. The schema,
// settings, default allocation, tax authority partner, optional fiscal period
// and chart are written in one transaction; on failure the file is removed.
func Create(ctx context.Context, dir string, info ClientInfo, chart Chart, opts ...Option) (string, error) {
	if strings.TrimSpace(info.Name) == "" {
		return "", ledgererr.ValidationError{Field: "name", Reason: "client name is required"}
	}
	if (info.FiscalStart == nil) != (info.FiscalEnd == nil) {
		return "", ledgererr.ValidationError{Field: "fiscal_period", Reason: "both start and end are required"}
	}
	if info.FiscalStart != nil && !info.FiscalEnd.After(*info.FiscalStart) {
		return "", ledgererr.ValidationError{Field: "fiscal_period", Reason: "end must be after start"}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", ledgererr.Storage("creating ledger directory", err)
	}

	uid := uuid.New()
	path := filepath.Join(dir, id.LedgerFileName(info.Name, uid))

	s, err := open(ctx, path, opts...)
	if err != nil {
		return "", err
	}

	err = s.WithTransaction(ctx, func(tx *sql.Tx) error {
		if err := InitializeSchema(ctx, tx); err != nil {
			return err
		}
		if err := seedSettings(ctx, tx, info, uid); err != nil {
			return err
		}
		if err := seedDefaults(ctx, tx, info); err != nil {
			return err
		}
		return seedChart(ctx, tx, chart)
	})
	if err != nil {
		s.Close()
		for _, suffix := range []string{"", "-wal", "-shm"} {
			_ = os.Remove(path + suffix)
		}
		return "", err
	}

	s.log.Info().Str("ledger", path).Int("accounts", len(chart.Accounts)).Msg("ledger created")
	if err := s.Close(); err != nil {
		return "", ledgererr.Storage("closing ledger", err)
	}
	return path, nil
}

func seedSettings(ctx context.Context, tx *sql.Tx, info ClientInfo, uid uuid.UUID) error {
	vat := vatRegisteredOff
	if info.VATRegistered {
		vat = vatRegisteredOn
	}
	settings := [][2]string{
		{SettingName, info.Name},
		{SettingBusinessID, info.BusinessID},
		{SettingStreetAddress, info.StreetAddress},
		{SettingPostalCode, info.PostalCode},
		{SettingCity, info.City},
		{SettingDomicile, info.Domicile},
		{SettingEmail, info.Email},
		{SettingWebsite, info.Website},
		{SettingPhone, info.Phone},
		{SettingVATRegistered, vat},
		{SettingCompanyForm, info.CompanyForm},
		{SettingChartScope, info.ChartScope},
		{SettingSchemaVersion, CurrentSchemaVersion},
		{SettingCreatedWith, buildinfo.Version},
		{SettingCreated, time.Now().UTC().Format(time.RFC3339)},
		{SettingUID, uid.String()},
		{SettingNextInvoiceID, nextInvoiceIDInitial},
	}
	if len(info.InvoiceIBANs) > 0 {
		settings = append(settings, [2]string{SettingInvoiceIBANs, strings.Join(info.InvoiceIBANs, ",")})
	}
	for _, kv := range settings {
		if err := SetSetting(ctx, tx, kv[0], kv[1]); err != nil {
			return err
		}
	}
	return nil
}

func seedDefaults(ctx context.Context, tx *sql.Tx, info ClientInfo) error {
	general, err := model.EncodeExt(model.AllocationExt{Name: map[string]string{"en": "General", "fi": "Yleinen"}})
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO Allocation (id, type, json) VALUES (?, ?, ?)",
		model.GeneralAllocation, model.AllocationGeneral, general); err != nil {
		return fmt.Errorf("seeding default allocation: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "INSERT INTO Partner (name) VALUES (?)", model.TaxAuthorityPartner); err != nil {
		return fmt.Errorf("seeding tax authority partner: %w", err)
	}

	if info.FiscalStart != nil {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO FiscalPeriod (start_date, end_date) VALUES (?, ?)",
			FormatDate(*info.FiscalStart), FormatDate(*info.FiscalEnd)); err != nil {
			return fmt.Errorf("seeding fiscal period: %w", err)
		}
	}
	return nil
}

func seedChart(ctx context.Context, tx *sql.Tx, chart Chart) error {
	for _, h := range chart.Headers {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO Header (number, level, name) VALUES (?, ?, ?)",
			h.Number, h.Level, h.Name); err != nil {
			return fmt.Errorf("seeding header %d: %w", h.Number, err)
		}
	}
	for _, a := range chart.Accounts {
		ext, err := model.EncodeExt(a.Ext)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO Account (number, type, iban, json) VALUES (?, ?, ?, ?)",
			a.Number, string(a.Type), NullString(a.IBAN), ext); err != nil {
			return fmt.Errorf("seeding account %d: %w", a.Number, err)
		}
	}
	return nil
}

// FiscalPeriod is one accounting period.
type FiscalPeriod struct {
	Start  time.Time
	End    time.Time
	Locked bool
}

// FiscalPeriods returns the periods ordered by start date.
func FiscalPeriods(ctx context.Context, q Querier) ([]FiscalPeriod, error) {
	rows, err := q.QueryContext(ctx, "SELECT start_date, end_date, locked FROM FiscalPeriod ORDER BY start_date")
	if err != nil {
		return nil, ledgererr.Storage("reading fiscal periods", err)
	}
	defer rows.Close()

	var out []FiscalPeriod
	for rows.Next() {
		var p FiscalPeriod
		if err := rows.Scan(&p.Start, &p.End, &p.Locked); err != nil {
			return nil, ledgererr.Storage("reading fiscal periods", err)
		}
		out = append(out, p)
	}
	return out, ledgererr.Storage("reading fiscal periods", rows.Err())
}

// NullString renders s for a nullable TEXT column.
func NullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
