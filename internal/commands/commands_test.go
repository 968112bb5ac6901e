package commands_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/tilikirja/internal/auditlog"
	"github.com/cleared-dev/tilikirja/internal/commands"
	"github.com/cleared-dev/tilikirja/internal/ledgererr"
)

type workspace struct {
	root    string
	dataDir string
	config  string
}

func newWorkspace(t *testing.T) workspace {
	t.Helper()
	root := t.TempDir()
	return workspace{
		root:    root,
		dataDir: filepath.Join(root, "ledgers"),
		config:  filepath.Join(root, "tilikirja.yaml"),
	}
}

func (w workspace) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := commands.NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", w.config, "--data-dir", w.dataDir}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (w workspace) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := w.run(t, args...)
	require.NoError(t, err, out)
	return out
}

func (w workspace) init(t *testing.T, name string) {
	t.Helper()
	w.mustRun(t, "init", "--name", name)
}

func TestInit_CreatesLedgerAndConfig(t *testing.T) {
	w := newWorkspace(t)
	out := w.mustRun(t, "init", "--name", "Test Biz", "--business-id", "1234567-8", "--vat-registered")
	assert.Contains(t, out, "Created ledger for Test Biz")
	assert.Contains(t, out, "Wrote "+w.config)

	data, err := os.ReadFile(w.config)
	require.NoError(t, err)
	assert.Contains(t, string(data), "data_dir: "+w.dataDir)

	matches, err := filepath.Glob(filepath.Join(w.dataDir, "test_biz_*.db"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	out = w.mustRun(t, "ledgers")
	assert.Contains(t, out, "Test Biz")
	assert.Contains(t, out, filepath.Base(matches[0]))

	entries, err := auditlog.Read(w.dataDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "ledger.create", entries[0].Action)
	assert.NotEmpty(t, entries[0].OperationID)
}

func TestInit_RequiresName(t *testing.T) {
	w := newWorkspace(t)
	_, err := w.run(t, "init")
	assert.ErrorContains(t, err, "name")
}

func TestLedgers_Empty(t *testing.T) {
	w := newWorkspace(t)
	out := w.mustRun(t, "ledgers")
	assert.Contains(t, out, "No ledgers")
}

func TestVoucherLifecycle(t *testing.T) {
	w := newWorkspace(t)
	w.init(t, "Lifecycle Oy")

	out := w.mustRun(t, "voucher", "add", "--date", "2025-03-01", "--title", "Capital",
		"--line", "1000:100:0:Owner deposit", "--line", "3000:0:100")
	assert.Contains(t, out, "Created voucher 1 (Draft)")

	assert.Contains(t, w.mustRun(t, "voucher", "confirm", "1"), "Voucher 1 confirmed")
	assert.Contains(t, w.mustRun(t, "voucher", "post", "1"), "Voucher 1 posted")
	assert.Contains(t, w.mustRun(t, "voucher", "archive", "1"), "Voucher 1 archived")

	out = w.mustRun(t, "voucher", "show", "1")
	assert.Contains(t, out, "Archived")
	assert.Contains(t, out, "Owner deposit")
	assert.Contains(t, out, "100.00")
	assert.Contains(t, out, "balanced")

	out = w.mustRun(t, "voucher", "list", "--status", "archived")
	assert.Contains(t, out, "Capital")

	out = w.mustRun(t, "accounts", "history", "1000")
	assert.Contains(t, out, "Owner deposit")
	assert.Contains(t, out, "100.00 Dr")

	out = w.mustRun(t, "accounts", "balances", "3000")
	assert.Contains(t, out, "100.00")

	out = w.mustRun(t, "audit")
	assert.Contains(t, out, "voucher.create")
	assert.Contains(t, out, "voucher.archive")
}

func TestVoucherConfirm_Unbalanced(t *testing.T) {
	w := newWorkspace(t)
	w.init(t, "Unbalanced Oy")
	w.mustRun(t, "voucher", "add", "--date", "2025-03-01", "--line", "1000:100:0", "--line", "3000:0:90")

	_, err := w.run(t, "voucher", "confirm", "1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ledgererr.ErrUnbalancedVoucher)
	assert.Contains(t, commands.Describe(err), "difference 10.00")
	assert.Equal(t, 2, commands.ExitCode(err))

	_, err = w.run(t, "voucher", "add", "--ready", "--line", "1000:100:0", "--line", "3000:0:90")
	assert.ErrorIs(t, err, ledgererr.ErrUnbalancedVoucher)
}

func TestVoucherAdd_InvalidInput(t *testing.T) {
	w := newWorkspace(t)
	w.init(t, "Invalid Oy")

	_, err := w.run(t, "voucher", "add", "--line", "9999:10:0", "--line", "3000:0:10")
	assert.ErrorIs(t, err, ledgererr.ErrUnknownAccount)

	_, err = w.run(t, "voucher", "add", "--line", "1000:10:10")
	assert.ErrorIs(t, err, ledgererr.ErrConflictingAmount)

	_, err = w.run(t, "voucher", "add", "--date", "1.3.2025", "--line", "1000:10:0")
	assert.ErrorIs(t, err, ledgererr.ErrValidation)

	_, err = w.run(t, "voucher", "show", "42")
	assert.ErrorIs(t, err, ledgererr.ErrNotFound)
}

func TestVoucherAttachments(t *testing.T) {
	w := newWorkspace(t)
	w.init(t, "Receipts Oy")

	receipt := filepath.Join(w.root, "receipt.pdf")
	require.NoError(t, os.WriteFile(receipt, []byte("%PDF-1.4 receipt"), 0o644))
	script := filepath.Join(w.root, "run.exe")
	require.NoError(t, os.WriteFile(script, []byte("MZ"), 0o644))

	out := w.mustRun(t, "voucher", "add", "--type", "expense", "--date", "2025-03-02",
		"--line", "6500:50:0", "--line", "1000:0:50", "--attach", receipt, "--attach", script)
	assert.Contains(t, out, "Skipped attachment")
	assert.Contains(t, out, "run.exe")
	assert.Contains(t, out, "Created voucher 1")

	note := filepath.Join(w.root, "note.txt")
	require.NoError(t, os.WriteFile(note, []byte("paid in cash"), 0o644))
	out = w.mustRun(t, "voucher", "attach", "1", note)
	assert.Contains(t, out, "Attached note.txt")

	_, err := w.run(t, "voucher", "attach", "1", note, "--role", "original")
	assert.ErrorIs(t, err, ledgererr.ErrDuplicateRole)

	out = w.mustRun(t, "voucher", "show", "1")
	assert.Contains(t, out, "original")
	assert.Contains(t, out, "receipt.pdf")
	assert.Contains(t, out, "attachment1")

	saved := filepath.Join(w.root, "copy.pdf")
	w.mustRun(t, "voucher", "file", "1", "-o", saved)
	data, err := os.ReadFile(saved)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 receipt", string(data))
}

func TestVoucherDelete(t *testing.T) {
	w := newWorkspace(t)
	w.init(t, "Delete Oy")
	w.mustRun(t, "voucher", "add", "--line", "1000:1:0", "--line", "3000:0:1")

	assert.Contains(t, w.mustRun(t, "voucher", "delete", "1"), "Voucher 1 deleted")
	_, err := w.run(t, "voucher", "delete", "1")
	assert.ErrorIs(t, err, ledgererr.ErrNotFound)
}

func TestInvoiceFlow(t *testing.T) {
	w := newWorkspace(t)
	w.init(t, "Seller Oy")
	w.mustRun(t, "partners", "add", "Acme Ltd", "--city", "Helsinki", "--iban", "fi21 1234 5600 0007 85")

	out := w.mustRun(t, "partners", "list")
	assert.Contains(t, out, "Acme Ltd")
	assert.Contains(t, out, "FI2112345600000785")

	out = w.mustRun(t, "invoice", "create", "--partner", "acme ltd", "--date", "2025-03-01",
		"--item", "Consulting;2;90;24", "--open")
	assert.Contains(t, out, "Created invoice 1 (voucher 1), total 223.20, due 2025-03-15")
	assert.Contains(t, out, "Invoice 1 is open")

	out = w.mustRun(t, "invoice", "list")
	assert.Contains(t, out, "Open")
	assert.Contains(t, out, "Acme Ltd")

	out = w.mustRun(t, "invoice", "pay", "1", "--date", "2025-03-20")
	assert.Contains(t, out, "paid with voucher 2")

	out = w.mustRun(t, "invoice", "list")
	assert.Contains(t, out, "Paid")

	_, err := w.run(t, "invoice", "void", "1")
	assert.ErrorIs(t, err, ledgererr.ErrInvalidState)

	out = w.mustRun(t, "accounts", "balances", "1000")
	assert.Contains(t, out, "223.20")

	out = w.mustRun(t, "report", "balance-sheet")
	assert.Contains(t, out, "Assets")
	assert.Contains(t, out, "223.20")
	assert.Contains(t, out, "balanced")
	assert.NotContains(t, out, "unbalanced")

	out = w.mustRun(t, "report", "income")
	assert.Contains(t, out, "Sales Revenue")
	assert.Contains(t, out, "Net income  180.00")
}

func TestInvoiceCreate_Errors(t *testing.T) {
	w := newWorkspace(t)
	w.init(t, "Seller Oy")

	_, err := w.run(t, "invoice", "create", "--item", "Widget;1;10")
	assert.ErrorIs(t, err, ledgererr.ErrMissingPartner)
	assert.Contains(t, commands.Describe(err), "--partner")

	_, err = w.run(t, "invoice", "create", "--partner", "Nobody", "--item", "Widget;1;10")
	assert.ErrorIs(t, err, ledgererr.ErrNotFound)

	_, err = w.run(t, "invoice", "create", "--partner", "1", "--item", "Widget;x;10")
	assert.ErrorIs(t, err, ledgererr.ErrValidation)
}

func TestInvoiceVoid(t *testing.T) {
	w := newWorkspace(t)
	w.init(t, "Seller Oy")
	w.mustRun(t, "partners", "add", "Acme Ltd")
	w.mustRun(t, "invoice", "create", "--partner", "Acme Ltd", "--item", "Widget;1;10;0")

	assert.Contains(t, w.mustRun(t, "invoice", "void", "1"), "voided")
	assert.Contains(t, w.mustRun(t, "invoice", "list"), "Voided")
}

func TestOpeningBalances(t *testing.T) {
	w := newWorkspace(t)
	w.init(t, "Opening Oy")

	assert.Contains(t, w.mustRun(t, "opening", "show"), "No opening balances")

	out := w.mustRun(t, "opening", "set", "--date", "2025-01-01", "--entry", "1000:500:0", "--entry", "3000:0:500")
	assert.Contains(t, out, "Saved opening balances as voucher 1")

	out = w.mustRun(t, "opening", "set", "--date", "2025-01-01", "--entry", "1000:700:0", "--entry", "3000:0:700")
	assert.Contains(t, out, "as voucher 2")

	out = w.mustRun(t, "opening", "show")
	assert.Contains(t, out, "Opening Balances as of 2025-01-01")
	assert.Contains(t, out, "700.00")

	_, err := w.run(t, "opening", "set", "--entry", "1000:10:0", "--entry", "3000:0:9")
	assert.ErrorIs(t, err, ledgererr.ErrUnbalancedOpeningBalance)
	assert.Contains(t, commands.Describe(err), "Opening balances not balanced")
}

func TestAccounts(t *testing.T) {
	w := newWorkspace(t)
	w.init(t, "Chart Oy")

	out := w.mustRun(t, "accounts", "add", "1910", "--type", "asset", "--name", "Business Account", "--iban", "FI2112345600000785")
	assert.Contains(t, out, "Saved account 1910 Business Account")
	assert.Contains(t, w.mustRun(t, "accounts", "list"), "Business Account")

	export := filepath.Join(w.root, "chart.csv")
	w.mustRun(t, "accounts", "export", "-o", export)
	data, err := os.ReadFile(export)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Business Account")
	lines := strings.Count(strings.TrimSpace(string(data)), "\n")

	assert.Contains(t, w.mustRun(t, "accounts", "delete", "1910"), "Deleted account 1910")
	assert.NotContains(t, w.mustRun(t, "accounts", "list"), "Business Account")

	out = w.mustRun(t, "accounts", "import", export)
	assert.Contains(t, out, "Imported")
	assert.Contains(t, out, " accounts")
	assert.Contains(t, w.mustRun(t, "accounts", "list"), "Business Account")
	assert.Positive(t, lines)

	_, err = w.run(t, "accounts", "add", "--type", "nonsense")
	assert.ErrorIs(t, err, ledgererr.ErrValidation)

	w.mustRun(t, "voucher", "add", "--line", "1910:5:0", "--line", "3000:0:5")
	_, err = w.run(t, "accounts", "delete", "1910")
	assert.ErrorIs(t, err, ledgererr.ErrInvalidState)
}

func TestAllocations(t *testing.T) {
	w := newWorkspace(t)
	w.init(t, "Projects Oy")

	assert.Contains(t, w.mustRun(t, "allocations", "add", "--type", "project", "--name", "Website"), "Added allocation 1")
	assert.Contains(t, w.mustRun(t, "allocations", "add", "--type", "tag", "--name", "Launch", "--parent", "1"), "Added allocation 2")

	out := w.mustRun(t, "allocations", "list")
	assert.Contains(t, out, "Website")
	assert.Contains(t, out, "project")

	_, err := w.run(t, "allocations", "move", "1", "--parent", "2")
	assert.ErrorIs(t, err, ledgererr.ErrValidation)

	_, err = w.run(t, "allocations", "delete", "1")
	assert.ErrorIs(t, err, ledgererr.ErrInvalidState)
	assert.Contains(t, w.mustRun(t, "allocations", "delete", "2"), "Deleted allocation 2")
}

func TestLedgerSelection(t *testing.T) {
	w := newWorkspace(t)
	w.init(t, "First Oy")
	w.init(t, "Second Co")

	_, err := w.run(t, "voucher", "list")
	assert.ErrorContains(t, err, "select one with --ledger")

	w.mustRun(t, "--ledger", "Second Co", "voucher", "add", "--title", "Only here", "--line", "1000:1:0", "--line", "3000:0:1")
	assert.Contains(t, w.mustRun(t, "-l", "second co", "voucher", "list"), "Only here")
	assert.NotContains(t, w.mustRun(t, "-l", "First Oy", "voucher", "list"), "Only here")

	out := w.mustRun(t, "-l", "First Oy", "audit")
	assert.NotContains(t, out, "voucher.create")
	out = w.mustRun(t, "audit", "--all")
	assert.Contains(t, out, "voucher.create")

	_, err = w.run(t, "-l", "Third Ltd", "voucher", "list")
	assert.ErrorIs(t, err, ledgererr.ErrNotFound)
}

func TestMetricsFile(t *testing.T) {
	w := newWorkspace(t)
	w.init(t, "Metrics Oy")

	metrics := filepath.Join(w.root, "tilikirja.prom")
	w.mustRun(t, "--metrics-file", metrics, "voucher", "add", "--line", "1000:1:0", "--line", "3000:0:1")

	data, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(data), "ledger_vouchers_created_total")
	assert.Contains(t, string(data), "ledger_transaction_duration_seconds")
}

func TestVoucherExport(t *testing.T) {
	w := newWorkspace(t)
	w.init(t, "Export Oy")
	w.mustRun(t, "voucher", "add", "--date", "2025-03-01", "--title", "Capital", "--line", "1000:100:0", "--line", "3000:0:100")

	out := w.mustRun(t, "voucher", "export")
	assert.True(t, strings.HasPrefix(out, "voucher,date,type,status,title"), out)
	assert.Contains(t, out, "2025-03-01")
	assert.Contains(t, out, "Capital")
}

func TestInvoiceCreate_DiscountAndAllocation(t *testing.T) {
	w := newWorkspace(t)
	w.init(t, "Discount Oy")
	w.mustRun(t, "partners", "add", "Acme Ltd")
	assert.Contains(t, w.mustRun(t, "allocations", "add", "--type", "project", "--name", "Website"), "Added allocation 1")

	out := w.mustRun(t, "invoice", "create", "--partner", "Acme Ltd", "--date", "2025-03-01",
		"--item", "Consulting;2;100;24;;10;1")
	assert.Contains(t, out, "Created invoice 1 (voucher 1), total 223.20")

	out = w.mustRun(t, "voucher", "show", "1")
	assert.Contains(t, out, "Consulting 2 x 100.00 (discount: 10%)")
	assert.Contains(t, out, "180.00")
	assert.Contains(t, out, "43.20")

	_, err := w.run(t, "invoice", "create", "--partner", "Acme Ltd", "--item", "Consulting;2;100;24;;150")
	assert.ErrorIs(t, err, ledgererr.ErrValidation)
}

func TestAccountsList_HeadersAndType(t *testing.T) {
	w := newWorkspace(t)
	w.init(t, "Heading Oy")

	out := w.mustRun(t, "accounts", "list", "--headers")
	assert.Contains(t, out, "ASSETS")
	assert.Contains(t, out, "LIABILITIES")
	assert.Less(t, strings.Index(out, "ASSETS"), strings.Index(out, "1000"))
	assert.Less(t, strings.Index(out, "LIABILITIES"), strings.Index(out, "2300"))

	out = w.mustRun(t, "accounts", "list", "--type", "liability")
	assert.Contains(t, out, "2300")
	assert.NotContains(t, out, "1000")
	assert.NotContains(t, out, "ASSETS")

	_, err := w.run(t, "accounts", "list", "--type", "bogus")
	assert.ErrorIs(t, err, ledgererr.ErrValidation)
}

func TestLedgersDescribe(t *testing.T) {
	w := newWorkspace(t)
	w.mustRun(t, "init", "--name", "Period Oy", "--fiscal-start", "2025-01-01", "--fiscal-end", "2025-12-31")
	w.mustRun(t, "voucher", "add", "--line", "1000:5:0", "--line", "3000:0:5")

	out := w.mustRun(t, "ledgers", "describe")
	assert.Contains(t, out, "Period Oy")
	assert.Contains(t, out, "Fiscal period 2025-01-01 - 2025-12-31")
	assert.Contains(t, out, "TransactionLine")
	assert.Contains(t, out, "Voucher")
}
