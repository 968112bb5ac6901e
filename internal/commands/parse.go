package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/tilikirja/internal/attachments"
	"github.com/cleared-dev/tilikirja/internal/invoice"
	"github.com/cleared-dev/tilikirja/internal/journal"
	"github.com/cleared-dev/tilikirja/internal/ledgererr"
	"github.com/cleared-dev/tilikirja/internal/model"
)

const dateLayout = "2006-01-02"

func today() time.Time {
	y, m, d := time.Now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// parseDate parses YYYY-MM-DD. An empty string is today.
func parseDate(field, s string) (time.Time, error) {
	if s == "" {
		return today(), nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, ledgererr.ValidationError{Field: field, Reason: fmt.Sprintf("%q is not a YYYY-MM-DD date", s)}
	}
	return t, nil
}

// parseOptionalDate is parseDate without the today default.
func parseOptionalDate(field, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := parseDate(field, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseAccountNumber(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return 0, ledgererr.ValidationError{Field: "account", Reason: fmt.Sprintf("%q is not an account number", s)}
	}
	return n, nil
}

func parseID(entity, s string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n < 0 {
		return 0, ledgererr.ValidationError{Field: entity, Reason: fmt.Sprintf("%q is not an id", s)}
	}
	return n, nil
}

func parseAmount(field, s string) (int64, error) {
	c, err := model.ParseAmount(s)
	if err != nil {
		return 0, ledgererr.ValidationError{Field: field, Reason: err.Error()}
	}
	return c, nil
}

func parseDecimal(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(s), ",", "."))
	if err != nil {
		return decimal.Decimal{}, ledgererr.ValidationError{Field: field, Reason: fmt.Sprintf("%q is not a number", s)}
	}
	return d, nil
}

// parseLine parses ACCOUNT:DEBIT:CREDIT[:DESCRIPTION]. The description may
// itself contain colons.
func parseLine(spec string) (journal.LineInput, error) {
	parts := strings.SplitN(spec, ":", 4)
	if len(parts) < 3 {
		return journal.LineInput{}, ledgererr.ValidationError{Field: "line", Reason: fmt.Sprintf("%q is not ACCOUNT:DEBIT:CREDIT[:DESCRIPTION]", spec)}
	}
	acct, err := parseAccountNumber(parts[0])
	if err != nil {
		return journal.LineInput{}, err
	}
	debit, err := parseAmount("debit", parts[1])
	if err != nil {
		return journal.LineInput{}, err
	}
	credit, err := parseAmount("credit", parts[2])
	if err != nil {
		return journal.LineInput{}, err
	}
	in := journal.LineInput{Account: acct, Debit: debit, Credit: credit}
	if len(parts) == 4 {
		in.Description = parts[3]
	}
	return in, nil
}

func parseLines(specs []string) ([]journal.LineInput, error) {
	lines := make([]journal.LineInput, 0, len(specs))
	for _, spec := range specs {
		in, err := parseLine(spec)
		if err != nil {
			return nil, err
		}
		lines = append(lines, in)
	}
	return lines, nil
}

var voucherTypeKeys = map[string]model.VoucherType{
	"sales":      model.VoucherSalesInvoice,
	"purchase":   model.VoucherPurchaseInvoice,
	"income":     model.VoucherIncome,
	"expense":    model.VoucherExpense,
	"payment":    model.VoucherPayment,
	"transfer":   model.VoucherPayment,
	"bank":       model.VoucherBankStatement,
	"memo":       model.VoucherMemo,
	"attachment": model.VoucherAttachmentOnly,
	"vat":        model.VoucherVAT,
	"journal":    model.VoucherJournal,
}

// parseVoucherType accepts a type code ("4") or keyword ("expense").
func parseVoucherType(s string) (model.VoucherType, error) {
	if t, ok := voucherTypeKeys[strings.ToLower(s)]; ok {
		return t, nil
	}
	if n, err := strconv.Atoi(s); err == nil && model.VoucherType(n).Valid() {
		return model.VoucherType(n), nil
	}
	return 0, ledgererr.ValidationError{Field: "type", Reason: fmt.Sprintf("unknown voucher type %q", s)}
}

func parseStatus(s string) (model.Status, error) {
	for _, st := range []model.Status{model.StatusDraft, model.StatusReady, model.StatusPosted, model.StatusArchived} {
		if strings.EqualFold(s, st.String()) || s == strconv.Itoa(int(st)) {
			return st, nil
		}
	}
	return 0, ledgererr.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", s)}
}

// readUploads loads attachment files from disk.
func readUploads(paths []string) ([]attachments.Upload, error) {
	uploads := make([]attachments.Upload, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("reading attachment: %w", err)
		}
		uploads = append(uploads, attachments.Upload{Filename: filepath.Base(p), Data: data})
	}
	return uploads, nil
}

// parseOpeningEntry parses ACCOUNT:DEBIT:CREDIT.
func parseOpeningEntry(spec string) (journal.OpeningEntry, error) {
	in, err := parseLine(spec)
	if err != nil {
		return journal.OpeningEntry{}, err
	}
	if in.Description != "" {
		return journal.OpeningEntry{}, ledgererr.ValidationError{Field: "entry", Reason: fmt.Sprintf("%q is not ACCOUNT:DEBIT:CREDIT", spec)}
	}
	return journal.OpeningEntry{Account: in.Account, Debit: in.Debit, Credit: in.Credit}, nil
}

const itemSyntax = "PRODUCT;QUANTITY;UNIT_PRICE[;VAT_PERCENT[;ACCOUNT[;DISCOUNT_PERCENT[;ALLOCATION]]]]"

// parseItem parses an invoice item in itemSyntax. Semicolons separate fields
// so amounts may use a decimal comma. Empty optional fields keep their default.
func parseItem(spec string, defaultVAT decimal.Decimal) (invoice.Item, error) {
	parts := strings.Split(spec, ";")
	if len(parts) < 3 || len(parts) > 7 {
		return invoice.Item{}, ledgererr.ValidationError{Field: "item", Reason: fmt.Sprintf("%q is not %s", spec, itemSyntax)}
	}
	it := invoice.Item{Product: strings.TrimSpace(parts[0]), VATPercent: defaultVAT}
	var err error
	if it.Quantity, err = parseDecimal("quantity", parts[1]); err != nil {
		return invoice.Item{}, err
	}
	if it.UnitPrice, err = parseDecimal("unit_price", parts[2]); err != nil {
		return invoice.Item{}, err
	}
	if len(parts) > 3 && strings.TrimSpace(parts[3]) != "" {
		if it.VATPercent, err = parseDecimal("vat_percent", parts[3]); err != nil {
			return invoice.Item{}, err
		}
	}
	if len(parts) > 4 && strings.TrimSpace(parts[4]) != "" {
		if it.Account, err = parseAccountNumber(parts[4]); err != nil {
			return invoice.Item{}, err
		}
	}
	if len(parts) > 5 && strings.TrimSpace(parts[5]) != "" {
		if it.Discount, err = parseDecimal("discount", parts[5]); err != nil {
			return invoice.Item{}, err
		}
	}
	if len(parts) > 6 && strings.TrimSpace(parts[6]) != "" {
		if it.Allocation, err = parseID("allocation", parts[6]); err != nil {
			return invoice.Item{}, err
		}
	}
	return it, nil
}
