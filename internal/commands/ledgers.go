package commands

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/tilikirja/internal/auditlog"
	"github.com/cleared-dev/tilikirja/internal/store"
	"github.com/cleared-dev/tilikirja/internal/tenant"
)

func newLedgersCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledgers",
		Short: "List the ledger files in the data directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ledgers, err := tenant.Scan(cmd.Context(), a.cfg.DataDir, a.component("tenant"))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(ledgers) == 0 {
				fmt.Fprintf(out, "No ledgers in %s\n", a.cfg.DataDir)
				return nil
			}
			tw := newTable(out)
			fmt.Fprintln(tw, "NAME\tFILE\tSIZE\tMODIFIED")
			for _, l := range ledgers {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", l.Name, l.FileName, humanize.Bytes(uint64(l.Size)), humanize.Time(l.Modified))
			}
			return tw.Flush()
		},
	}
	cmd.AddCommand(newLedgersDescribeCommand(a))
	return cmd
}

func newLedgersDescribeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "describe",
		Short: "Show the fiscal periods and table sizes of the selected ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withLedger(cmd.Context(), func(s *session) error {
				ctx := cmd.Context()
				periods, err := store.FiscalPeriods(ctx, s.store.DB())
				if err != nil {
					return err
				}
				counts, err := s.store.DescribeTables(ctx)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s (%s)\n\n", s.ledger.Name, s.ledger.Path)
				if len(periods) == 0 {
					fmt.Fprintln(out, "No fiscal periods")
				}
				for _, p := range periods {
					lock := ""
					if p.Locked {
						lock = "  locked"
					}
					fmt.Fprintf(out, "Fiscal period %s - %s%s\n", date(p.Start), date(p.End), lock)
				}
				fmt.Fprintln(out)

				tw := newTable(out)
				fmt.Fprintln(tw, "TABLE\tROWS")
				for _, c := range counts {
					fmt.Fprintf(tw, "%s\t%s\n", c.Table, humanize.Comma(c.Rows))
				}
				return tw.Flush()
			})
		},
	}
}

func newAuditCommand(a *app) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show the audit trail of the selected ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := auditlog.Read(a.cfg.DataDir)
			if err != nil {
				return err
			}
			if !all {
				err := a.withLedger(cmd.Context(), func(s *session) error {
					entries = auditlog.ForLedger(entries, s.name())
					return nil
				})
				if err != nil {
					return err
				}
			}

			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "TIME\tOPERATION\tLEDGER\tACTION\tVOUCHER\tDETAILS")
			for _, e := range entries {
				voucher := ""
				if e.VoucherID != 0 {
					voucher = strconv.FormatInt(e.VoucherID, 10)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					e.Timestamp.Local().Format("2006-01-02 15:04:05"), e.OperationID, e.Ledger, e.Action, voucher, e.Details)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "show entries of every ledger")
	return cmd
}
