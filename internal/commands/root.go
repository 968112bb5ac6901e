package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/tilikirja/internal/auditlog"
	"github.com/cleared-dev/tilikirja/internal/buildinfo"
	"github.com/cleared-dev/tilikirja/internal/config"
	"github.com/cleared-dev/tilikirja/internal/id"
	"github.com/cleared-dev/tilikirja/internal/logging"
	"github.com/cleared-dev/tilikirja/internal/obs"
	"github.com/cleared-dev/tilikirja/internal/store"
	"github.com/cleared-dev/tilikirja/internal/tenant"
)

// app carries the state shared by every command of one invocation.
type app struct {
	configPath  string
	envFile     string
	dataDir     string
	ledgerRef   string
	metricsFile string
	logLevel    string

	cfg       *config.Config
	log       zerolog.Logger
	logCloser io.Closer
	registry  *prometheus.Registry
	metrics   *obs.Metrics
	opID      string
	audit     []auditlog.Entry
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	a := &app{log: zerolog.Nop()}

	rootCmd := &cobra.Command{
		Use:     "tilikirja",
		Short:   "Double-entry bookkeeping with one ledger file per client",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.finish()
		},
	}

	f := rootCmd.PersistentFlags()
	f.StringVar(&a.configPath, "config", config.FileName, "config file")
	f.StringVar(&a.envFile, "env-file", "", "env file with TILIKIRJA_* overrides (default .env)")
	f.StringVar(&a.dataDir, "data-dir", "", "directory holding the ledger files")
	f.StringVarP(&a.ledgerRef, "ledger", "l", "", "ledger file name, path or client name")
	f.StringVar(&a.metricsFile, "metrics-file", "", "write Prometheus metrics to this file on exit")
	f.StringVar(&a.logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")

	rootCmd.AddCommand(
		newInitCommand(a),
		newLedgersCommand(a),
		newAccountsCommand(a),
		newPartnersCommand(a),
		newAllocationsCommand(a),
		newVoucherCommand(a),
		newInvoiceCommand(a),
		newOpeningCommand(a),
		newReportCommand(a),
		newAuditCommand(a),
	)

	return rootCmd
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.LoadOrDefault(a.configPath)
	if err != nil {
		return err
	}
	if err := cfg.ApplyEnv(a.envFile); err != nil {
		return err
	}
	if a.dataDir != "" {
		cfg.DataDir = a.dataDir
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.metricsFile == "" {
		a.metricsFile = cfg.MetricsFile
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	log, closer, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	a.opID = id.NewOperationID()
	a.log = log.With().Str("op", a.opID).Str("command", cmd.CommandPath()).Logger()
	a.logCloser = closer

	a.registry = prometheus.NewRegistry()
	a.metrics = obs.NewMetrics(a.registry)
	return nil
}

func (a *app) finish() error {
	var errs []error
	if len(a.audit) > 0 {
		if err := auditlog.Append(a.cfg.DataDir, a.audit); err != nil {
			a.log.Warn().Err(err).Msg("writing audit log")
		}
		a.audit = nil
	}
	if a.metricsFile != "" {
		if err := obs.WriteTextfile(a.metricsFile, a.registry); err != nil {
			errs = append(errs, fmt.Errorf("writing metrics: %w", err))
		}
	}
	if a.logCloser != nil {
		errs = append(errs, a.logCloser.Close())
	}
	return errors.Join(errs...)
}

// session is an open ledger for the duration of one command.
type session struct {
	ledger tenant.Ledger
	store  *store.Store
}

func (s *session) name() string { return s.ledger.FileName }

// withLedger resolves the selected ledger, opens it and runs fn. When no
// ledger is selected and the data directory holds exactly one, that one is
// used.
func (a *app) withLedger(ctx context.Context, fn func(*session) error) error {
	ref := a.ledgerRef
	if ref == "" {
		ledgers, err := tenant.Scan(ctx, a.cfg.DataDir, a.log)
		if err != nil {
			return err
		}
		switch len(ledgers) {
		case 0:
			return fmt.Errorf("no ledgers in %s, create one with `tilikirja init`", a.cfg.DataDir)
		case 1:
			ref = ledgers[0].Path
		default:
			return fmt.Errorf("%d ledgers in %s, select one with --ledger", len(ledgers), a.cfg.DataDir)
		}
	}

	l, err := tenant.Resolve(ctx, a.cfg.DataDir, ref, a.log)
	if err != nil {
		return err
	}
	s, err := store.Open(ctx, l.Path, store.WithLogger(a.component("store")), store.WithMetrics(a.metrics))
	if err != nil {
		return err
	}
	defer s.Close()

	a.log.Debug().Str("ledger", l.FileName).Msg("ledger opened")
	return fn(&session{ledger: l, store: s})
}

// record queues an audit entry written when the command succeeds.
func (a *app) record(ledger, action, details string, voucherID int64) {
	a.audit = append(a.audit, auditlog.Entry{
		Timestamp:   time.Now(),
		OperationID: a.opID,
		Ledger:      ledger,
		Action:      action,
		Details:     details,
		VoucherID:   voucherID,
	})
}

func (a *app) component(name string) zerolog.Logger {
	return logging.Component(a.log, name)
}
