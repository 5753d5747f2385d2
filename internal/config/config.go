// Package config loads the ledger configuration from YAML.
//
// A single file describes the owner's accounts, the keyword rules, the
// transfer heuristics and the integrations (storage, Cloud Storage, Notion,
// Gemini). Secrets can be left out of the file and supplied through the
// environment, see ApplyEnv.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dvloznov/finance-ledger/internal/classifier"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/money"
	"github.com/dvloznov/finance-ledger/internal/transfer"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid configuration")

// Storage backends.
const (
	BackendSQLite   = "sqlite"
	BackendBigQuery = "bigquery"
)

// =============================================================================
// CONFIGURATION STRUCTURE
// =============================================================================

// Config is the root of the YAML document.
type Config struct {
	// Owner is the default owner for CLI commands.
	Owner string `yaml:"owner"`

	// Currency is used for display only. Default: "EUR".
	Currency string `yaml:"currency"`

	// LogLevel is one of "debug", "info", "warn", "error". Default: "info".
	LogLevel string `yaml:"log_level"`

	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	GCS      GCSConfig      `yaml:"gcs"`
	Notion   NotionConfig   `yaml:"notion"`
	Gemini   GeminiConfig   `yaml:"gemini"`
	Transfer TransferConfig `yaml:"transfer"`

	// Contacts are people whose incoming payments are tagged as money
	// received from a contact.
	Contacts []string `yaml:"contacts"`

	// Boilerplate lists extra label phrases stripped by the normalizer.
	Boilerplate []string `yaml:"boilerplate"`

	// Rules are evaluated before the built-in keyword table, in order.
	Rules []RuleConfig `yaml:"rules"`

	// ReplaceDefaultRules drops the built-in keyword table entirely.
	ReplaceDefaultRules bool `yaml:"replace_default_rules"`

	// Categories are user-defined categories accepted in addition to the
	// ones produced by the rule table.
	Categories []string `yaml:"categories"`

	Accounts []AccountConfig `yaml:"accounts"`
}

// ServerConfig configures cmd/api and cmd/worker.
type ServerConfig struct {
	// Port for the HTTP API. Default: "8080".
	Port string `yaml:"port"`
	// Workers is the number of recompute workers. Default: 5.
	Workers int `yaml:"workers"`
	// QueueSize is the job buffer size. Default: 100.
	QueueSize int `yaml:"queue_size"`
	// AuthToken, when set, is required as a bearer token on /api routes.
	AuthToken string `yaml:"auth_token"`
	// JobRetention caps how many jobs the in-memory store keeps. Default: 1000.
	JobRetention int `yaml:"job_retention"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	// Backend is "sqlite" or "bigquery". Default: "sqlite".
	Backend string `yaml:"backend"`
	// SQLitePath is the database file. Default: "./ledger.db".
	SQLitePath string `yaml:"sqlite_path"`
	// ProjectID is the Google Cloud project for BigQuery.
	ProjectID string `yaml:"project_id"`
	// Dataset is the BigQuery dataset. Default: "ledger".
	Dataset string `yaml:"dataset"`
}

// GCSConfig configures snapshot import and report export.
type GCSConfig struct {
	Bucket        string `yaml:"bucket"`
	ReportsPrefix string `yaml:"reports_prefix"`
	// SnapshotsPrefix is where `cli upload` puts snapshots. Default: "snapshots/".
	SnapshotsPrefix string `yaml:"snapshots_prefix"`
}

// NotionConfig configures the Notion publisher.
type NotionConfig struct {
	Token              string `yaml:"token"`
	BalancesDatabaseID string `yaml:"balances_database_id"`
	DebtsDatabaseID    string `yaml:"debts_database_id"`
}

// GeminiConfig configures category suggestions.
type GeminiConfig struct {
	// Model name. Default: "gemini-2.5-flash".
	Model string `yaml:"model"`
}

// TransferConfig mirrors transfer.Config.
type TransferConfig struct {
	OutgoingMarkers  []string          `yaml:"outgoing_markers"`
	IncomingMarkers  []string          `yaml:"incoming_markers"`
	WindowDays       *int              `yaml:"window_days"`
	Policy           string            `yaml:"policy"`
	Routes           map[string]string `yaml:"routes"`
	CategoryPrefixes []string          `yaml:"category_prefixes"`
}

// RuleConfig is one keyword rule.
type RuleConfig struct {
	Category   string   `yaml:"category"`
	Keywords   []string `yaml:"keywords"`
	IncomeOnly bool     `yaml:"income_only"`
}

// AccountConfig declares an account explicitly. Amounts are strings so that
// bank formatting ("1 234,56") is accepted.
type AccountConfig struct {
	Name           string `yaml:"name"`
	Owner          string `yaml:"owner"`
	Profile        string `yaml:"profile"`
	OpeningBalance string `yaml:"opening_balance"`
	SavingsTarget  string `yaml:"savings_target"`
}

// =============================================================================
// LOADING
// =============================================================================

// Default returns a configuration with every default applied.
func Default() *Config {
	c := &Config{}
	applyDefaults(c)
	return c
}

// Load reads, parses and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("Load: reading %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("Load: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse parses and validates a YAML document.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("Parse: decoding yaml: %w", err)
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads path, or the defaults when path is empty, and fills
// unset values from the environment.
func LoadOrDefault(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = Load(path); err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// ApplyEnv fills unset values from the environment.
func (c *Config) ApplyEnv() {
	if c.Notion.Token == "" {
		c.Notion.Token = os.Getenv("NOTION_TOKEN")
	}
	if c.GCS.Bucket == "" {
		c.GCS.Bucket = os.Getenv("GCS_BUCKET")
	}
	if c.Storage.ProjectID == "" {
		c.Storage.ProjectID = os.Getenv("GOOGLE_CLOUD_PROJECT")
	}
	if c.Server.AuthToken == "" {
		c.Server.AuthToken = os.Getenv("LEDGER_API_TOKEN")
	}
	if v := os.Getenv("LEDGER_DB_PATH"); v != "" {
		c.Storage.SQLitePath = v
	}
}

func applyDefaults(c *Config) {
	if c.Currency == "" {
		c.Currency = money.DefaultCurrency
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.Workers == 0 {
		c.Server.Workers = 5
	}
	if c.Server.QueueSize == 0 {
		c.Server.QueueSize = 100
	}
	if c.Server.JobRetention == 0 {
		c.Server.JobRetention = 1000
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendSQLite
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = "./ledger.db"
	}
	if c.Storage.Dataset == "" {
		c.Storage.Dataset = "ledger"
	}
	if c.GCS.ReportsPrefix == "" {
		c.GCS.ReportsPrefix = "reports/"
	}
	if c.GCS.SnapshotsPrefix == "" {
		c.GCS.SnapshotsPrefix = "snapshots/"
	}
	if c.Gemini.Model == "" {
		c.Gemini.Model = "gemini-2.5-flash"
	}
	if c.Transfer.Policy == "" {
		c.Transfer.Policy = string(transfer.PolicyStrict)
	}
}

// Validate checks values that defaults cannot fix.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendSQLite, BackendBigQuery:
	default:
		return fmt.Errorf("Validate: unknown storage backend %q: %w", c.Storage.Backend, ErrInvalid)
	}
	switch transfer.Policy(c.Transfer.Policy) {
	case transfer.PolicyStrict, transfer.PolicyFirstMatch:
	default:
		return fmt.Errorf("Validate: unknown transfer policy %q: %w", c.Transfer.Policy, ErrInvalid)
	}
	if c.Transfer.WindowDays != nil && *c.Transfer.WindowDays < 0 {
		return fmt.Errorf("Validate: negative transfer window: %w", ErrInvalid)
	}
	if c.Server.Workers < 0 || c.Server.QueueSize < 0 {
		return fmt.Errorf("Validate: negative worker or queue size: %w", ErrInvalid)
	}
	for i, r := range c.Rules {
		if strings.TrimSpace(r.Category) == "" || len(r.Keywords) == 0 {
			return fmt.Errorf("Validate: rule %d needs a category and keywords: %w", i, ErrInvalid)
		}
	}
	seen := make(map[string]bool)
	for _, a := range c.Accounts {
		key := domain.AccountKey(a.Name)
		if key == "" {
			return fmt.Errorf("Validate: account without a name: %w", ErrInvalid)
		}
		if seen[a.Owner+"\x00"+key] {
			return fmt.Errorf("Validate: duplicate account %q: %w", a.Name, ErrInvalid)
		}
		seen[a.Owner+"\x00"+key] = true
		if _, err := parseOptionalAmount(a.OpeningBalance); err != nil {
			return fmt.Errorf("Validate: account %q opening balance: %v: %w", a.Name, err, ErrInvalid)
		}
		if _, err := parseOptionalAmount(a.SavingsTarget); err != nil {
			return fmt.Errorf("Validate: account %q savings target: %v: %w", a.Name, err, ErrInvalid)
		}
	}
	return nil
}

// =============================================================================
// CONVERSIONS
// =============================================================================

// TransferSettings returns the transfer heuristics, starting from the
// built-in defaults.
func (c *Config) TransferSettings() transfer.Config {
	t := transfer.DefaultConfig()
	if len(c.Transfer.OutgoingMarkers) > 0 {
		t.OutgoingMarkers = c.Transfer.OutgoingMarkers
	}
	if len(c.Transfer.IncomingMarkers) > 0 {
		t.IncomingMarkers = c.Transfer.IncomingMarkers
	}
	if c.Transfer.WindowDays != nil {
		t.WindowDays = *c.Transfer.WindowDays
	}
	if c.Transfer.Policy != "" {
		t.Policy = transfer.Policy(c.Transfer.Policy)
	}
	t.Routes = c.Transfer.Routes
	t.CategoryPrefixes = c.Transfer.CategoryPrefixes
	return t
}

// RuleTable returns the configured rules followed by the built-in table
// unless ReplaceDefaultRules is set.
func (c *Config) RuleTable() classifier.RuleTable {
	var table classifier.RuleTable
	for _, r := range c.Rules {
		rule := classifier.KeywordRule(r.Category, r.Keywords...)
		if r.IncomeOnly {
			rule = classifier.IncomeRule(rule)
		}
		table = append(table, rule)
	}
	if !c.ReplaceDefaultRules {
		table = append(table, classifier.DefaultRules()...)
	}
	return table
}

// AccountsFor returns the declared accounts of owner. Accounts without an
// owner belong to everybody.
func (c *Config) AccountsFor(owner string) []domain.Account {
	var out []domain.Account
	for _, a := range c.Accounts {
		if a.Owner != "" && a.Owner != owner {
			continue
		}
		opening, _ := parseOptionalAmount(a.OpeningBalance)
		target, _ := parseOptionalAmount(a.SavingsTarget)
		out = append(out, domain.Account{
			Name:           a.Name,
			Owner:          owner,
			Profile:        a.Profile,
			OpeningBalance: opening,
			SavingsTarget:  target,
		})
	}
	return out
}

// KnownCategories lists every category a transaction may carry: rule
// categories, user categories and the built-in sentinels.
func (c *Config) KnownCategories() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, cat := range c.RuleTable().Categories() {
		add(cat)
	}
	for _, cat := range c.Categories {
		add(cat)
	}
	add(domain.CategoryUncategorized)
	add(domain.CategoryOtherIncome)
	add(domain.CategoryInternalTransfer)
	add(domain.CategoryFromContact)
	return out
}

func parseOptionalAmount(s string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, nil
	}
	return money.ParseAmount(s)
}
