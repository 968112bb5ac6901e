package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/tilikirja/internal/journal"
	"github.com/cleared-dev/tilikirja/internal/model"
)

func newVoucherCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "voucher",
		Aliases: []string{"vouchers"},
		Short:   "Create and move vouchers through their lifecycle",
	}
	cmd.AddCommand(
		newVoucherAddCommand(a),
		newVoucherShowCommand(a),
		newVoucherListCommand(a),
		newVoucherTransitionCommand(a, "confirm", "Check the balance and mark a draft ready", "voucher.confirm", "confirmed", (*journal.Service).Confirm),
		newVoucherTransitionCommand(a, "post", "Post a ready voucher", "voucher.post", "posted", (*journal.Service).Post),
		newVoucherTransitionCommand(a, "archive", "Archive a posted voucher", "voucher.archive", "archived", (*journal.Service).Archive),
		newVoucherTransitionCommand(a, "delete", "Delete a voucher with its lines and attachments", "voucher.delete", "deleted", (*journal.Service).Delete),
		newVoucherExportCommand(a),
		newVoucherAttachCommand(a),
		newVoucherFileCommand(a),
	)
	return cmd
}

func newVoucherAddCommand(a *app) *cobra.Command {
	var dateStr, typ, title, reference, partner string
	var lines, files []string
	var ready bool

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a voucher from --line ACCOUNT:DEBIT:CREDIT[:DESCRIPTION] entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := parseDate("date", dateStr)
			if err != nil {
				return err
			}
			vt, err := parseVoucherType(typ)
			if err != nil {
				return err
			}
			in, err := parseLines(lines)
			if err != nil {
				return err
			}
			uploads, err := readUploads(files)
			if err != nil {
				return err
			}
			h := journal.Header{Date: d, Type: vt, Status: model.StatusDraft, Title: title, Reference: reference}
			if ready {
				h.Status = model.StatusReady
			}

			return a.withLedger(cmd.Context(), func(s *session) error {
				if h.PartnerID, err = a.resolvePartner(cmd.Context(), s, partner); err != nil {
					return err
				}
				res, err := a.vouchers(s).Create(cmd.Context(), h, in, uploads)
				if err != nil {
					return err
				}
				a.record(s.name(), "voucher.create", fmt.Sprintf("%s %q, %d lines", vt, title, len(in)), res.VoucherID)
				out := cmd.OutOrStdout()
				for _, r := range res.Rejected {
					fmt.Fprintf(out, "Skipped attachment: %v\n", r)
				}
				fmt.Fprintf(out, "Created voucher %d (%s)\n", res.VoucherID, h.Status)
				return nil
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&dateStr, "date", "", "voucher date YYYY-MM-DD (default today)")
	f.StringVar(&typ, "type", "journal", "voucher type: journal, expense, income, payment, memo, ... or its code")
	f.StringVar(&title, "title", "", "title")
	f.StringVar(&reference, "reference", "", "reference")
	f.StringVar(&partner, "partner", "", "partner id or name")
	f.StringArrayVar(&lines, "line", nil, "transaction line ACCOUNT:DEBIT:CREDIT[:DESCRIPTION] (repeatable)")
	f.StringArrayVar(&files, "attach", nil, "attachment file (repeatable)")
	f.BoolVar(&ready, "ready", false, "create as ready; the lines must balance")
	return cmd
}

func newVoucherShowCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a voucher with its lines and attachments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			voucherID, err := parseID("voucher", args[0])
			if err != nil {
				return err
			}
			return a.withLedger(cmd.Context(), func(s *session) error {
				d, err := a.vouchers(s).Get(cmd.Context(), voucherID)
				if err != nil {
					return err
				}
				printDetail(cmd.OutOrStdout(), d)
				return nil
			})
		},
	}
}

func printDetail(out io.Writer, d journal.Detail) {
	v := d.Voucher
	fmt.Fprintf(out, "Voucher %d  %s  %s  %s\n", v.ID, date(v.Date), v.Type, statusName(v))
	if v.Title != "" {
		fmt.Fprintf(out, "Title: %s\n", v.Title)
	}
	if v.Number != 0 {
		fmt.Fprintf(out, "Invoice number: %d  due %s\n", v.Number, optionalDate(v.DueDate))
	}
	if v.Reference != "" {
		fmt.Fprintf(out, "Reference: %s\n", v.Reference)
	}
	fmt.Fprintln(out)

	tw := newTable(out)
	fmt.Fprintln(tw, "ROW\tACCOUNT\tDESCRIPTION\tDEBIT\tCREDIT\tVAT")
	for _, l := range d.Lines {
		vat := ""
		if l.VATPercent.Valid {
			vat = l.VATPercent.Decimal.String() + "%"
		}
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\t%s\n", l.Row, l.Account, l.Description, money(l.Debit), money(l.Credit), vat)
	}
	fmt.Fprintf(tw, "\t\tTotal\t%s\t%s\t\n", model.FormatCents(d.Debit), model.FormatCents(d.Credit))
	tw.Flush()
	fmt.Fprintf(out, "\n%s\n", balanceMark(d.Balanced()))

	if len(d.Attachments) > 0 {
		fmt.Fprintln(out, "\nAttachments:")
		for _, f := range d.Attachments {
			fmt.Fprintf(out, "  %d  %s  %s  %s  %s\n", f.ID, f.Role, f.Filename, f.MIMEType, humanize.Bytes(uint64(f.Size)))
		}
	}
}

func newVoucherListCommand(a *app) *cobra.Command {
	var typ, status, from, to string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List vouchers, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var f journal.Filter
			var err error
			if typ != "" {
				if f.Type, err = parseVoucherType(typ); err != nil {
					return err
				}
			}
			if status != "" {
				st, err := parseStatus(status)
				if err != nil {
					return err
				}
				f.Status = &st
			}
			if from != "" {
				if f.From, err = parseDate("from", from); err != nil {
					return err
				}
			}
			if to != "" {
				if f.To, err = parseDate("to", to); err != nil {
					return err
				}
			}
			f.Limit = limit

			return a.withLedger(cmd.Context(), func(s *session) error {
				list, err := a.vouchers(s).List(cmd.Context(), f)
				if err != nil {
					return err
				}
				tw := newTable(cmd.OutOrStdout())
				fmt.Fprintln(tw, "ID\tDATE\tTYPE\tSTATUS\tTITLE\tDEBIT\tCREDIT")
				for _, sum := range list {
					v := sum.Voucher
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n", v.ID, date(v.Date), v.Type, statusName(v), v.Title,
						model.FormatCents(sum.Debit), model.FormatCents(sum.Credit))
				}
				return tw.Flush()
			})
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&typ, "type", "", "only this voucher type")
	fl.StringVar(&status, "status", "", "only this status: draft, ready, posted or archived")
	fl.StringVar(&from, "from", "", "first date YYYY-MM-DD")
	fl.StringVar(&to, "to", "", "last date YYYY-MM-DD")
	fl.IntVar(&limit, "limit", 0, "maximum number of vouchers")
	return cmd
}

func newVoucherTransitionCommand(a *app, use, short, action, done string, op func(*journal.Service, context.Context, int64) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			voucherID, err := parseID("voucher", args[0])
			if err != nil {
				return err
			}
			return a.withLedger(cmd.Context(), func(s *session) error {
				if err := op(a.vouchers(s), cmd.Context(), voucherID); err != nil {
					return err
				}
				a.record(s.name(), action, "", voucherID)
				fmt.Fprintf(cmd.OutOrStdout(), "Voucher %d %s\n", voucherID, done)
				return nil
			})
		},
	}
}

func newVoucherExportCommand(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every transaction line as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withLedger(cmd.Context(), func(s *session) error {
				var n int
				err := writeOutput(cmd, output, func(w io.Writer) error {
					var err error
					n, err = a.vouchers(s).ExportCSV(cmd.Context(), w)
					return err
				})
				if err != nil {
					return err
				}
				if output != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "Exported %d lines to %s\n", n, output)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

func newVoucherAttachCommand(a *app) *cobra.Command {
	var role string

	cmd := &cobra.Command{
		Use:   "attach <voucher-id> <file>",
		Short: "Attach a file to an existing voucher",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			voucherID, err := parseID("voucher", args[0])
			if err != nil {
				return err
			}
			uploads, err := readUploads(args[1:])
			if err != nil {
				return err
			}
			return a.withLedger(cmd.Context(), func(s *session) error {
				attachmentID, err := a.files(s).Add(cmd.Context(), voucherID, role, uploads[0])
				if err != nil {
					return err
				}
				a.record(s.name(), "attachment.add", uploads[0].Filename, voucherID)
				fmt.Fprintf(cmd.OutOrStdout(), "Attached %s as attachment %d\n", uploads[0].Filename, attachmentID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&role, "role", "", "attachment role (default next free)")
	return cmd
}

func newVoucherFileCommand(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "file <attachment-id>",
		Short: "Write the content of an attachment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			attachmentID, err := parseID("attachment", args[0])
			if err != nil {
				return err
			}
			return a.withLedger(cmd.Context(), func(s *session) error {
				f, err := a.files(s).Get(cmd.Context(), attachmentID)
				if err != nil {
					return err
				}
				if output == "" {
					_, err = cmd.OutOrStdout().Write(f.Data)
					return err
				}
				if err := os.WriteFile(output, f.Data, 0o644); err != nil {
					return fmt.Errorf("writing attachment: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%s)\n", output, humanize.Bytes(uint64(len(f.Data))))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}
