package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/tilikirja/internal/accounts"
	"github.com/cleared-dev/tilikirja/internal/config"
	"github.com/cleared-dev/tilikirja/internal/store"
)

func newInitCommand(a *app) *cobra.Command {
	var info store.ClientInfo
	var fiscalStart, fiscalEnd string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a ledger for a new client",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if info.FiscalStart, err = parseOptionalDate("fiscal_start", fiscalStart); err != nil {
				return err
			}
			if info.FiscalEnd, err = parseOptionalDate("fiscal_end", fiscalEnd); err != nil {
				return err
			}
			if info.ChartScope == "" {
				info.ChartScope = a.cfg.ChartScope
			}
			return runInit(cmd, a, info)
		},
	}

	f := cmd.Flags()
	f.StringVar(&info.Name, "name", "", "client name (required)")
	_ = cmd.MarkFlagRequired("name")
	f.StringVar(&info.BusinessID, "business-id", "", "business id")
	f.StringVar(&info.StreetAddress, "street", "", "street address")
	f.StringVar(&info.PostalCode, "postal-code", "", "postal code")
	f.StringVar(&info.City, "city", "", "city")
	f.StringVar(&info.Domicile, "domicile", "", "domicile")
	f.StringVar(&info.Email, "email", "", "email")
	f.StringVar(&info.Website, "website", "", "website")
	f.StringVar(&info.Phone, "phone", "", "phone")
	f.StringVar(&info.CompanyForm, "company-form", "", "company form")
	f.BoolVar(&info.VATRegistered, "vat-registered", false, "client is registered for VAT")
	f.StringVar(&info.ChartScope, "scope", "", "chart template: basic, standard or extended (default from config)")
	f.StringSliceVar(&info.InvoiceIBANs, "iban", nil, "IBAN printed on invoices (repeatable)")
	f.StringVar(&fiscalStart, "fiscal-start", "", "first day of the fiscal period (YYYY-MM-DD)")
	f.StringVar(&fiscalEnd, "fiscal-end", "", "last day of the fiscal period (YYYY-MM-DD)")

	return cmd
}

func runInit(cmd *cobra.Command, a *app, info store.ClientInfo) error {
	ctx := cmd.Context()

	chart, err := accounts.DefaultChart(info.ChartScope)
	if err != nil {
		return err
	}
	path, err := store.Create(ctx, a.cfg.DataDir, info, chart,
		store.WithLogger(a.component("store")), store.WithMetrics(a.metrics))
	if err != nil {
		return err
	}

	// Write tilikirja.yaml on first use.
	if _, err := os.Stat(a.configPath); errors.Is(err, os.ErrNotExist) {
		if err := config.Save(a.configPath, a.cfg); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", a.configPath)
	}

	a.record(filepath.Base(path), "ledger.create", fmt.Sprintf("client %q, scope %s", info.Name, info.ChartScope), 0)
	fmt.Fprintf(cmd.OutOrStdout(), "Created ledger for %s at %s (%d accounts)\n", info.Name, path, len(chart.Accounts))
	return nil
}
