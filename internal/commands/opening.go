package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/tilikirja/internal/journal"
)

func newOpeningCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "opening",
		Short: "Opening balances of the fiscal period",
	}
	cmd.AddCommand(newOpeningShowCommand(a), newOpeningSetCommand(a))
	return cmd
}

func newOpeningShowCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the opening-balance voucher",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withLedger(cmd.Context(), func(s *session) error {
				d, ok, err := a.vouchers(s).OpeningBalances(cmd.Context())
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "No opening balances recorded")
					return nil
				}
				printDetail(cmd.OutOrStdout(), d)
				return nil
			})
		},
	}
}

func newOpeningSetCommand(a *app) *cobra.Command {
	var dateStr string
	var specs []string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Replace the opening balances with --entry ACCOUNT:DEBIT:CREDIT entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := parseDate("date", dateStr)
			if err != nil {
				return err
			}
			entries := make([]journal.OpeningEntry, 0, len(specs))
			for _, spec := range specs {
				e, err := parseOpeningEntry(spec)
				if err != nil {
					return err
				}
				entries = append(entries, e)
			}
			return a.withLedger(cmd.Context(), func(s *session) error {
				voucherID, err := a.vouchers(s).SetOpeningBalances(cmd.Context(), d, entries)
				if err != nil {
					return err
				}
				a.record(s.name(), "opening.set", fmt.Sprintf("%d entries as of %s", len(entries), date(d)), voucherID)
				fmt.Fprintf(cmd.OutOrStdout(), "Saved opening balances as voucher %d\n", voucherID)
				return nil
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&dateStr, "date", "", "opening date YYYY-MM-DD (default today)")
	f.StringArrayVar(&specs, "entry", nil, "opening balance ACCOUNT:DEBIT:CREDIT (repeatable)")
	return cmd
}
