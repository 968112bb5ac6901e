package store

import (
	"context"
	"fmt"
)

// Schema is the layout of one tenant ledger file.
const Schema = `
CREATE TABLE IF NOT EXISTS Setting (
	key   TEXT PRIMARY KEY,
	value TEXT
);

CREATE TABLE IF NOT EXISTS Account (
	number INTEGER PRIMARY KEY,
	type   TEXT NOT NULL,
	iban   TEXT,
	json   TEXT
);

CREATE TABLE IF NOT EXISTS Header (
	number INTEGER NOT NULL,
	level  INTEGER NOT NULL DEFAULT 1,
	name   TEXT NOT NULL,
	PRIMARY KEY (number, level)
);

CREATE TABLE IF NOT EXISTS FiscalPeriod (
	start_date DATE PRIMARY KEY,
	end_date   DATE NOT NULL,
	locked     INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS Allocation (
	id     INTEGER PRIMARY KEY,
	type   INTEGER NOT NULL DEFAULT 0 CHECK (type BETWEEN 0 AND 3),
	parent INTEGER REFERENCES Allocation(id) ON DELETE RESTRICT,
	json   TEXT
);

CREATE TABLE IF NOT EXISTS Budget (
	fiscal_period DATE NOT NULL REFERENCES FiscalPeriod(start_date) ON DELETE CASCADE,
	account       INTEGER NOT NULL REFERENCES Account(number) ON DELETE CASCADE,
	allocation    INTEGER NOT NULL DEFAULT 0 REFERENCES Allocation(id) ON DELETE CASCADE,
	cents         INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (fiscal_period, account, allocation)
);

CREATE TABLE IF NOT EXISTS Partner (
	id     INTEGER PRIMARY KEY AUTOINCREMENT,
	name   TEXT NOT NULL,
	vat_id TEXT,
	json   TEXT
);

CREATE TABLE IF NOT EXISTS PartnerIban (
	iban    TEXT PRIMARY KEY,
	partner INTEGER NOT NULL REFERENCES Partner(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS Voucher (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	date         DATE NOT NULL,
	type         INTEGER NOT NULL DEFAULT 0,
	status       INTEGER NOT NULL DEFAULT 100,
	number       INTEGER,
	series       TEXT,
	title        TEXT,
	partner      INTEGER REFERENCES Partner(id) ON DELETE RESTRICT,
	invoice_date DATE,
	due_date     DATE,
	reference    TEXT,
	json         TEXT
);

CREATE INDEX IF NOT EXISTS idx_voucher_type_number ON Voucher(type, number);

CREATE TABLE IF NOT EXISTS TransactionLine (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	line_no     INTEGER NOT NULL,
	voucher     INTEGER NOT NULL REFERENCES Voucher(id) ON DELETE CASCADE,
	date        DATE NOT NULL,
	account     INTEGER NOT NULL REFERENCES Account(number) ON DELETE RESTRICT,
	allocation  INTEGER NOT NULL DEFAULT 0 REFERENCES Allocation(id) ON DELETE RESTRICT,
	description TEXT,
	debit       INTEGER NOT NULL DEFAULT 0,
	credit      INTEGER NOT NULL DEFAULT 0,
	vat_percent NUMERIC,
	vat_code    INTEGER,
	partner     INTEGER REFERENCES Partner(id) ON DELETE RESTRICT,
	batch       INTEGER,
	UNIQUE (voucher, line_no),
	CHECK (debit = 0 OR credit = 0),
	CHECK (debit >= 0 AND credit >= 0)
);

CREATE INDEX IF NOT EXISTS idx_line_account ON TransactionLine(account);

CREATE TABLE IF NOT EXISTS Attachment (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	voucher   INTEGER NOT NULL REFERENCES Voucher(id) ON DELETE CASCADE,
	filename  TEXT NOT NULL,
	role      TEXT NOT NULL,
	mime_type TEXT,
	sha256    TEXT NOT NULL,
	data      BLOB,
	created   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (voucher, role)
);

CREATE TABLE IF NOT EXISTS Product (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT NOT NULL,
	account     INTEGER REFERENCES Account(number) ON DELETE RESTRICT,
	vat_code    INTEGER,
	vat_percent NUMERIC,
	unit_price  INTEGER,
	json        TEXT
);

CREATE TABLE IF NOT EXISTS ProductLine (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	voucher    INTEGER NOT NULL REFERENCES Voucher(id) ON DELETE CASCADE,
	product    INTEGER REFERENCES Product(id) ON DELETE RESTRICT,
	line       INTEGER REFERENCES TransactionLine(id) ON DELETE CASCADE,
	quantity   NUMERIC,
	unit_price INTEGER,
	discount   NUMERIC,
	json       TEXT
);
`

// Tables lists the ledger tables in creation order.
var Tables = []string{
	"Setting", "Account", "Header", "FiscalPeriod", "Allocation", "Budget",
	"Partner", "PartnerIban", "Voucher", "TransactionLine", "Attachment",
	"Product", "ProductLine",
}

// InitializeSchema creates every table and index that does not exist yet.
func InitializeSchema(ctx context.Context, q Querier) error {
	if _, err := q.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
