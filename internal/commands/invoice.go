package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/tilikirja/internal/invoice"
	"github.com/cleared-dev/tilikirja/internal/model"
)

func newInvoiceCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "invoice",
		Aliases: []string{"invoices"},
		Short:   "Sales invoices",
	}
	cmd.AddCommand(
		newInvoiceCreateCommand(a),
		newInvoiceListCommand(a),
		newInvoicePayCommand(a),
		newInvoiceVoidCommand(a),
	)
	return cmd
}

func newInvoiceCreateCommand(a *app) *cobra.Command {
	var d invoice.Draft
	var partner, dateStr, dueStr string
	var items, files []string
	var open bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a sales invoice from --item " + itemSyntax + " entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if d.Date, err = parseDate("date", dateStr); err != nil {
				return err
			}
			if d.DueDate, err = parseOptionalDate("due_date", dueStr); err != nil {
				return err
			}
			defaultVAT, err := parseDecimal("invoice.vat_percent", a.cfg.Invoice.VATPercent)
			if err != nil {
				return err
			}
			for _, spec := range items {
				it, err := parseItem(spec, defaultVAT)
				if err != nil {
					return err
				}
				d.Items = append(d.Items, it)
			}
			if d.Uploads, err = readUploads(files); err != nil {
				return err
			}
			if d.PaymentTerms == "" {
				d.PaymentTerms = a.cfg.Invoice.PaymentTerms
			}

			return a.withLedger(cmd.Context(), func(s *session) error {
				if d.PartnerID, err = a.resolvePartner(cmd.Context(), s, partner); err != nil {
					return err
				}
				res, err := a.invoices(s).Create(cmd.Context(), d)
				if err != nil {
					return err
				}
				a.record(s.name(), "invoice.create", fmt.Sprintf("invoice %d, total %s", res.Number, model.FormatCents(res.Total)), res.VoucherID)

				out := cmd.OutOrStdout()
				for _, r := range res.Rejected {
					fmt.Fprintf(out, "Skipped attachment: %v\n", r)
				}
				fmt.Fprintf(out, "Created invoice %d (voucher %d), total %s, due %s\n",
					res.Number, res.VoucherID, model.FormatCents(res.Total), date(res.DueDate))

				if open {
					if err := a.vouchers(s).Confirm(cmd.Context(), res.VoucherID); err != nil {
						return err
					}
					a.record(s.name(), "voucher.confirm", "invoice opened", res.VoucherID)
					fmt.Fprintf(out, "Invoice %d is open\n", res.Number)
				}
				return nil
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&partner, "partner", "", "customer id or name (required)")
	f.StringVar(&dateStr, "date", "", "invoice date YYYY-MM-DD (default today)")
	f.StringVar(&dueStr, "due", "", "due date YYYY-MM-DD (default from payment terms)")
	f.StringVar(&d.PaymentTerms, "terms", "", "payment terms, e.g. \"14 days\" (default from config)")
	f.StringVar(&d.Reference, "reference", "", "reference")
	f.StringVar(&d.ReferenceNumber, "reference-number", "", "payment reference number")
	f.StringVar(&d.Comment, "comment", "", "comment printed on the invoice")
	f.StringVar(&d.Title, "title", "", "title (default \"Invoice N\")")
	f.StringArrayVar(&items, "item", nil, "invoiced item "+itemSyntax+" (repeatable)")
	f.StringArrayVar(&files, "attach", nil, "attachment file (repeatable)")
	f.BoolVar(&open, "open", false, "confirm the invoice right away")
	return cmd
}

func newInvoiceListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List invoices, newest number first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withLedger(cmd.Context(), func(s *session) error {
				list, err := a.invoices(s).List(cmd.Context())
				if err != nil {
					return err
				}
				tw := newTable(cmd.OutOrStdout())
				fmt.Fprintln(tw, "NUMBER\tVOUCHER\tDATE\tDUE\tSTATUS\tCUSTOMER\tTOTAL")
				for _, inv := range list {
					fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\t%s\t%s\n", inv.Number, inv.VoucherID, date(inv.Date),
						optionalDate(inv.DueDate), inv.Status, inv.PartnerName, model.FormatCents(inv.Total))
				}
				return tw.Flush()
			})
		},
	}
}

func newInvoicePayCommand(a *app) *cobra.Command {
	var dateStr, amount string
	var account int

	cmd := &cobra.Command{
		Use:   "pay <voucher-id>",
		Short: "Record the payment of an invoice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			voucherID, err := parseID("invoice", args[0])
			if err != nil {
				return err
			}
			p := invoice.Payment{Account: account}
			if p.Date, err = parseDate("date", dateStr); err != nil {
				return err
			}
			if p.Amount, err = parseAmount("amount", amount); err != nil {
				return err
			}
			return a.withLedger(cmd.Context(), func(s *session) error {
				paymentID, err := a.invoices(s).MarkPaid(cmd.Context(), voucherID, p)
				if err != nil {
					return err
				}
				a.record(s.name(), "invoice.pay", fmt.Sprintf("payment voucher %d", paymentID), voucherID)
				fmt.Fprintf(cmd.OutOrStdout(), "Invoice voucher %d paid with voucher %d\n", voucherID, paymentID)
				return nil
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&dateStr, "date", "", "payment date YYYY-MM-DD (default today)")
	f.StringVar(&amount, "amount", "", "amount paid (default the invoice total)")
	f.IntVar(&account, "account", 0, "account the money arrived on (default from config)")
	return cmd
}

func newInvoiceVoidCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "void <voucher-id>",
		Short: "Void an unpaid invoice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			voucherID, err := parseID("invoice", args[0])
			if err != nil {
				return err
			}
			return a.withLedger(cmd.Context(), func(s *session) error {
				if err := a.invoices(s).Void(cmd.Context(), voucherID); err != nil {
					return err
				}
				a.record(s.name(), "invoice.void", "", voucherID)
				fmt.Fprintf(cmd.OutOrStdout(), "Invoice voucher %d voided\n", voucherID)
				return nil
			})
		},
	}
}
