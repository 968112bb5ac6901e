package commands

import (
	"io"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/cleared-dev/tilikirja/internal/model"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func money(c int64) string {
	if c == 0 {
		return ""
	}
	return model.FormatCents(c)
}

func date(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

func optionalDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return date(*t)
}

func balanceMark(ok bool) string {
	if ok {
		return color.GreenString("balanced")
	}
	return color.RedString("unbalanced")
}

func statusName(v model.Voucher) string {
	if v.Type == model.VoucherSalesInvoice {
		return v.InvoiceStatus().String()
	}
	return v.Status.String()
}
