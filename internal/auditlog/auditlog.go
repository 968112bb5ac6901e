// Package auditlog keeps a CSV trail of the mutations made through the CLI.
// The log lives next to the ledger files as audit-log.csv.
package auditlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Entry is one row in the audit log.
type Entry struct {
	Timestamp   time.Time
	OperationID string
	Ledger      string // ledger file name
	Action      string
	Details     string
	VoucherID   int64 // 0 when no voucher is involved
}

// Header is the CSV header for audit-log.csv.
const Header = "timestamp,operation_id,ledger,action,details,voucher"

// FileName is the audit log file name inside the data directory.
const FileName = "audit-log.csv"

const (
	numFields      = 6
	colTimestamp   = 0
	colOperationID = 1
	colLedger      = 2
	colAction      = 3
	colDetails     = 4
	colVoucher     = 5
)

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colTimestamp] = e.Timestamp.UTC().Format(time.RFC3339)
	row[colOperationID] = e.OperationID
	row[colLedger] = e.Ledger
	row[colAction] = e.Action
	row[colDetails] = e.Details
	if e.VoucherID != 0 {
		row[colVoucher] = strconv.FormatInt(e.VoucherID, 10)
	}
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339, record[colTimestamp])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTimestamp], err)
	}

	var voucher int64
	if v := record[colVoucher]; v != "" {
		voucher, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Entry{}, fmt.Errorf("parsing voucher %q: %w", v, err)
		}
	}

	return Entry{
		Timestamp:   ts,
		OperationID: record[colOperationID],
		Ledger:      record[colLedger],
		Action:      record[colAction],
		Details:     record[colDetails],
		VoucherID:   voucher,
	}, nil
}

// Append writes entries to <dir>/audit-log.csv, creating the file and header
// if needed.
func Append(dir string, entries []Entry) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	path := filepath.Join(dir, FileName)
	needsHeader := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)

	if needsHeader {
		if err := cw.Write(strings.Split(Header, ",")); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}

	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// Read returns all entries from <dir>/audit-log.csv, or nil when the file
// does not exist.
func Read(dir string) ([]Entry, error) {
	f, err := os.Open(filepath.Join(dir, FileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	return readEntries(f)
}

func readEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading audit log CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var entries []Entry
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// ForLedger filters entries to those recorded against one ledger file.
func ForLedger(entries []Entry, ledger string) []Entry {
	var out []Entry
	for _, e := range entries {
		if e.Ledger == ledger {
			out = append(out, e)
		}
	}
	return out
}
