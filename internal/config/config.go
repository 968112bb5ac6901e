package config

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/cleared-dev/tilikirja/internal/accounts"
	"github.com/cleared-dev/tilikirja/internal/attachments"
	"github.com/cleared-dev/tilikirja/internal/invoice"
	"github.com/cleared-dev/tilikirja/internal/logging"
)

// FileName is the default config file name.
const FileName = "tilikirja.yaml"

// Environment variables that override the file.
const (
	EnvDataDir   = "TILIKIRJA_DATA_DIR"
	EnvLogLevel  = "TILIKIRJA_LOG_LEVEL"
	EnvLogFormat = "TILIKIRJA_LOG_FORMAT"
)

// Config represents the top-level tilikirja.yaml configuration.
type Config struct {
	DataDir     string            `yaml:"data_dir"`
	ChartScope  string            `yaml:"chart_scope"`
	Accounts    invoice.Accounts  `yaml:"accounts"`
	Invoice     InvoiceConfig     `yaml:"invoice"`
	Attachments AttachmentsConfig `yaml:"attachments"`
	Log         logging.Config    `yaml:"log"`
	MetricsFile string            `yaml:"metrics_file,omitempty"`
}

// InvoiceConfig holds defaults for new invoices.
type InvoiceConfig struct {
	PaymentTerms string `yaml:"payment_terms"`
	VATPercent   string `yaml:"vat_percent"` // decimal, e.g. "25.5"
}

// AttachmentsConfig controls which uploads are accepted.
type AttachmentsConfig struct {
	MaxSize    int64    `yaml:"max_size"` // bytes
	Extensions []string `yaml:"extensions"`
}

// Policy returns the attachment policy described by the config.
func (a AttachmentsConfig) Policy() attachments.Policy {
	return attachments.Policy{MaxSize: a.MaxSize, Extensions: a.Extensions}
}

// Load reads a tilikirja.yaml file from disk. Fields missing from the file
// keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault reads path, falling back to Default when it does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		DataDir:    "ledgers",
		ChartScope: accounts.ScopeBasic,
		Accounts:   invoice.DefaultAccounts(),
		Invoice: InvoiceConfig{
			PaymentTerms: invoice.DefaultPaymentTerms,
			VATPercent:   "24",
		},
		Attachments: AttachmentsConfig{
			MaxSize:    attachments.MaxSize,
			Extensions: attachments.DefaultExtensions,
		},
		Log: logging.DefaultConfig(),
	}
}

// ApplyEnv loads envFile (".env" when empty; a missing default file is
// ignored) into the process environment and applies the TILIKIRJA_*
// overrides to cfg. Variables already set in the environment win over the
// file.
func (c *Config) ApplyEnv(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("loading env file: %w", err)
		}
	} else {
		_ = godotenv.Load()
	}

	if v := os.Getenv(EnvDataDir); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		c.Log.Format = v
	}
	return nil
}

// Validate checks the values that have no usable fallback.
func (c *Config) Validate() error {
	var errs []error
	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir is required"))
	}
	if !slices.Contains(accounts.Scopes, c.ChartScope) {
		errs = append(errs, fmt.Errorf("chart_scope %q is not one of %v", c.ChartScope, accounts.Scopes))
	}
	a := c.Accounts
	if a.Sales <= 0 || a.Receivable <= 0 || a.VAT <= 0 || a.Payment <= 0 {
		errs = append(errs, errors.New("accounts.sales, receivable, vat and payment must be positive"))
	}
	if c.Attachments.MaxSize <= 0 {
		errs = append(errs, errors.New("attachments.max_size must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
