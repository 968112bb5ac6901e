package commands

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/tilikirja/internal/accounts"
	"github.com/cleared-dev/tilikirja/internal/ledgererr"
	"github.com/cleared-dev/tilikirja/internal/model"
)

func newAccountsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "accounts",
		Aliases: []string{"account"},
		Short:   "Chart of accounts",
	}
	cmd.AddCommand(
		newAccountsListCommand(a),
		newAccountsAddCommand(a),
		newAccountsDeleteCommand(a),
		newAccountsBalancesCommand(a),
		newAccountsHistoryCommand(a),
		newAccountsExportCommand(a),
		newAccountsImportCommand(a),
	)
	return cmd
}

func newAccountsListCommand(a *app) *cobra.Command {
	var typ string
	var headers bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the chart of accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter model.AccountType
			if typ != "" {
				t, ok := model.ParseAccountType(typ)
				if !ok {
					return ledgererr.ValidationError{Field: "type", Reason: fmt.Sprintf("unknown account type %q", typ)}
				}
				filter = t
			}
			return a.withLedger(cmd.Context(), func(s *session) error {
				reg := a.chart(s)
				chart, err := reg.Chart(cmd.Context())
				if err != nil {
					return err
				}
				accts := chart.All()
				var hs []model.Header
				if typ != "" {
					accts = chart.ByType(filter)
				} else if headers {
					if hs, err = reg.Headers(cmd.Context()); err != nil {
						return err
					}
				}

				tw := newTable(cmd.OutOrStdout())
				fmt.Fprintln(tw, "NUMBER\tTYPE\tNAME\tVAT\tIBAN")
				for _, acct := range accts {
					for len(hs) > 0 && hs[0].Number <= acct.Number {
						printHeader(tw, hs[0])
						hs = hs[1:]
					}
					vat := ""
					if acct.Ext.VATPercent != nil {
						vat = acct.Ext.VATPercent.String() + "%"
					}
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", acct.Number, acct.Type.Name(), acct.DisplayName(), vat, acct.IBAN)
				}
				for _, h := range hs {
					printHeader(tw, h)
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&typ, "type", "", "only accounts of this type")
	cmd.Flags().BoolVar(&headers, "headers", false, "interleave the chart headings")
	return cmd
}

func printHeader(w io.Writer, h model.Header) {
	fmt.Fprintf(w, "\t\t%s%s\t\t\n", strings.Repeat("  ", max(h.Level-1, 0)), strings.ToUpper(h.Name))
}

func newAccountsAddCommand(a *app) *cobra.Command {
	var typ, name, iban, vatPercent string
	var vatCode int

	cmd := &cobra.Command{
		Use:   "add [number]",
		Short: "Add or update an account; the number defaults to the next free one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, ok := model.ParseAccountType(typ)
			if !ok {
				return ledgererr.ValidationError{Field: "type", Reason: fmt.Sprintf("unknown account type %q", typ)}
			}
			acct := model.Account{Type: t, IBAN: iban, Ext: model.AccountExt{Name: name, VATCode: vatCode}}
			if vatPercent != "" {
				d, err := parseDecimal("vat_percent", vatPercent)
				if err != nil {
					return err
				}
				acct.Ext.VATPercent = &d
			}
			if len(args) == 1 {
				n, err := parseAccountNumber(args[0])
				if err != nil {
					return err
				}
				acct.Number = n
			}

			return a.withLedger(cmd.Context(), func(s *session) error {
				reg := a.chart(s)
				if acct.Number == 0 {
					n, err := reg.NextNumber(cmd.Context())
					if err != nil {
						return err
					}
					acct.Number = n
				}
				if err := reg.Upsert(cmd.Context(), acct); err != nil {
					return err
				}
				a.record(s.name(), "account.upsert", fmt.Sprintf("%d %s", acct.Number, acct.DisplayName()), 0)
				fmt.Fprintf(cmd.OutOrStdout(), "Saved account %d %s\n", acct.Number, acct.DisplayName())
				return nil
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&typ, "type", "", "account type: A-E or asset, liability, equity, income, expense (required)")
	_ = cmd.MarkFlagRequired("type")
	f.StringVar(&name, "name", "", "account name")
	f.StringVar(&iban, "iban", "", "bank account IBAN")
	f.StringVar(&vatPercent, "vat-percent", "", "default VAT percent")
	f.IntVar(&vatCode, "vat-code", 0, "default VAT code")
	return cmd
}

func newAccountsDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <number>",
		Short: "Delete an account that no transaction line references",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := parseAccountNumber(args[0])
			if err != nil {
				return err
			}
			return a.withLedger(cmd.Context(), func(s *session) error {
				if err := a.chart(s).Delete(cmd.Context(), n); err != nil {
					return err
				}
				a.record(s.name(), "account.delete", strconv.Itoa(n), 0)
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted account %d\n", n)
				return nil
			})
		},
	}
}

func newAccountsBalancesCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "balances [number]",
		Short: "Show account balances",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withLedger(cmd.Context(), func(s *session) error {
				reg := a.chart(s)
				out := cmd.OutOrStdout()
				if len(args) == 1 {
					n, err := parseAccountNumber(args[0])
					if err != nil {
						return err
					}
					acct, ok, err := reg.Get(cmd.Context(), n)
					if err != nil {
						return err
					}
					if !ok {
						return ledgererr.NotFoundError{Entity: "account", ID: n}
					}
					bal, err := reg.Balance(cmd.Context(), n)
					if err != nil {
						return err
					}
					ab := accounts.AccountBalance{Account: acct, Balance: bal}
					fmt.Fprintf(out, "%d %s: %s\n", n, acct.DisplayName(), model.FormatCents(ab.Natural()))
					return nil
				}

				b, err := reg.BalancesByType(cmd.Context())
				if err != nil {
					return err
				}
				tw := newTable(out)
				fmt.Fprintln(tw, "NUMBER\tNAME\tTYPE\tBALANCE")
				for _, ab := range b.Accounts {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", ab.Account.Number, ab.Account.DisplayName(), ab.Account.Type.Name(), model.FormatCents(ab.Natural()))
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				sum := accounts.SummaryTotals(b.Totals)
				fmt.Fprintf(out, "\nAssets %s, liabilities and equity %s, net income %s\n",
					model.FormatCents(sum.TotalAssets), model.FormatCents(sum.TotalLiabAndEquity), model.FormatCents(sum.NetIncome))
				return nil
			})
		},
	}
}

func newAccountsHistoryCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "history <number>",
		Short: "Show the transaction lines of an account with running balances",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := parseAccountNumber(args[0])
			if err != nil {
				return err
			}
			return a.withLedger(cmd.Context(), func(s *session) error {
				lines, err := a.vouchers(s).AccountHistory(cmd.Context(), n)
				if err != nil {
					return err
				}
				tw := newTable(cmd.OutOrStdout())
				fmt.Fprintln(tw, "DATE\tVOUCHER\tTITLE\tDESCRIPTION\tDEBIT\tCREDIT\tBALANCE")
				for _, h := range lines {
					side := "Cr"
					if h.IsDebit {
						side = "Dr"
					}
					fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t%s %s\n",
						date(h.Line.Date), h.Line.VoucherID, h.VoucherTitle, h.Line.Description,
						money(h.Line.Debit), money(h.Line.Credit), model.FormatCents(model.AbsCents(h.Balance)), side)
				}
				return tw.Flush()
			})
		},
	}
}

func newAccountsExportCommand(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the chart of accounts as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withLedger(cmd.Context(), func(s *session) error {
				accts, err := a.chart(s).List(cmd.Context())
				if err != nil {
					return err
				}
				return writeOutput(cmd, output, func(w io.Writer) error {
					return accounts.WriteAccounts(w, accts)
				})
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

func newAccountsImportCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Add or update accounts from a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening accounts CSV: %w", err)
			}
			defer f.Close()
			accts, err := accounts.ReadAccounts(f)
			if err != nil {
				return err
			}
			return a.withLedger(cmd.Context(), func(s *session) error {
				if err := a.chart(s).Import(cmd.Context(), accts); err != nil {
					return err
				}
				a.record(s.name(), "account.import", fmt.Sprintf("%d accounts from %s", len(accts), args[0]), 0)
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d accounts\n", len(accts))
				return nil
			})
		},
	}
}

// writeOutput runs fn against path, or stdout when path is empty.
func writeOutput(cmd *cobra.Command, path string, fn func(io.Writer) error) error {
	if path == "" {
		return fn(cmd.OutOrStdout())
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
