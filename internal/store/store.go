// Package store owns one tenant ledger file: connection, schema, settings and
// the transaction scope every multi-row mutation runs in.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/cleared-dev/tilikirja/internal/ledgererr"
	"github.com/cleared-dev/tilikirja/internal/obs"
)

// Querier is satisfied by *sql.DB and *sql.Tx, so read helpers work both
// inside and outside a transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is a handle on one ledger file. It is safe for concurrent use; SQLite
// locking serializes writers.
type Store struct {
	db      *sql.DB
	path    string
	log     zerolog.Logger
	metrics *obs.Metrics
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for transaction events.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithMetrics sets the collectors updated by transactions.
func WithMetrics(m *obs.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// DSN returns the connection string for a ledger file. Foreign keys are
// enforced, the journal is WAL and write transactions take the lock at BEGIN.
func DSN(path string) string {
	return fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL&_txlock=immediate", path)
}

// Open opens an existing ledger file.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ledgererr.NotFoundError{Entity: "ledger", ID: path}
		}
		return nil, ledgererr.Storage("opening ledger", err)
	}
	s, err := open(ctx, path, opts...)
	if err != nil {
		return nil, err
	}
	if err := InitializeSchema(ctx, s.db); err != nil {
		s.db.Close()
		return nil, ledgererr.Storage("opening ledger", err)
	}
	return s, nil
}

func open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", DSN(path))
	if err != nil {
		return nil, ledgererr.Storage("opening ledger", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, ledgererr.Storage("opening ledger", err)
	}
	return New(db, path, opts...), nil
}

// New wraps an already opened database.
func New(db *sql.DB, path string, opts ...Option) *Store {
	s := &Store{db: db, path: path, log: zerolog.Nop()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB returns the underlying database for reads.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the ledger file path.
func (s *Store) Path() string {
	return s.path
}

// Metrics returns the collectors attached to the store, possibly nil.
func (s *Store) Metrics() *obs.Metrics {
	return s.metrics
}

// WithTransaction runs fn inside a transaction. It commits when fn returns
// nil and rolls back on error or panic. A lock conflict reported by SQLite
// retries the whole transaction once; a second conflict returns an error
// matching ledgererr.ErrBusy. Errors that are not ledger errors come back
// wrapped as storage errors.
func (s *Store) WithTransaction(ctx context.Context, fn func(*sql.Tx) error) error {
	start := time.Now()
	err := s.runTx(ctx, fn)
	if IsBusy(err) {
		s.log.Warn().Err(err).Str("ledger", s.path).Msg("ledger busy, retrying transaction")
		s.metrics.BusyRetry()
		err = s.runTx(ctx, fn)
		if IsBusy(err) {
			err = ledgererr.Busy("transaction", err)
		}
	}
	s.metrics.ObserveTx(time.Since(start), err)
	return ledgererr.Storage("transaction", err)
}

func (s *Store) runTx(ctx context.Context, fn func(*sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rolling back: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// IsBusy reports whether err is SQLite's busy or locked condition.
func IsBusy(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}

// IsConstraint reports whether err is a SQLite constraint violation.
func IsConstraint(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}

// TableCount is the number of rows in one table.
type TableCount struct {
	Table string
	Rows  int64
}

// DescribeTables returns the row count of every ledger table.
func (s *Store) DescribeTables(ctx context.Context) ([]TableCount, error) {
	counts := make([]TableCount, 0, len(Tables))
	for _, t := range Tables {
		var n int64
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+t).Scan(&n); err != nil {
			return nil, ledgererr.Storage("counting "+t, err)
		}
		counts = append(counts, TableCount{Table: t, Rows: n})
	}
	return counts, nil
}

// FormatDate renders a date for a DATE column.
func FormatDate(t time.Time) string {
	return t.Format("2006-01-02")
}

// NullDate renders an optional date for a DATE column.
func NullDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return FormatDate(*t)
}
