package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/tilikirja/internal/model"
	"github.com/cleared-dev/tilikirja/internal/report"
)

func newReportCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Financial statements",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "balance-sheet",
			Short: "Assets against liabilities and equity",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withLedger(cmd.Context(), func(s *session) error {
					bs, err := a.reporter(s).BalanceSheet(cmd.Context())
					if err != nil {
						return err
					}
					out := cmd.OutOrStdout()
					printSection(out, bs.Assets)
					printSection(out, bs.Liabilities)
					printSection(out, bs.Equity)
					fmt.Fprintf(out, "Net income of the period  %s\n", model.FormatCents(bs.NetIncome))
					fmt.Fprintf(out, "Liabilities, equity and net income  %s\n\n%s\n",
						model.FormatCents(bs.Summary.TotalLiabAndEquity+bs.NetIncome), balanceMark(bs.Balanced))
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "income",
			Short: "Income against expenses",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withLedger(cmd.Context(), func(s *session) error {
					is, err := a.reporter(s).IncomeStatement(cmd.Context())
					if err != nil {
						return err
					}
					out := cmd.OutOrStdout()
					printSection(out, is.Income)
					printSection(out, is.Expenses)
					fmt.Fprintf(out, "Net income  %s\n", model.FormatCents(is.NetIncome))
					return nil
				})
			},
		},
	)
	return cmd
}

func printSection(out io.Writer, sec report.Section) {
	fmt.Fprintln(out, sec.Title)
	tw := newTable(out)
	for _, r := range sec.Rows {
		fmt.Fprintf(tw, "  %d\t%s\t%s\n", r.Number, r.Name, model.FormatCents(r.Amount))
	}
	fmt.Fprintf(tw, "  \tTotal\t%s\n", model.FormatCents(sec.Total))
	tw.Flush()
	fmt.Fprintln(out)
}
