// Package config defines the top-level configuration for the market deployer
// and provides validation helpers.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by MARKETDEPLOY_* environment variables.
type Config struct {
	RPC        RPCConfig                `toml:"rpc"`
	Wallet     WalletConfig             `toml:"wallet"`
	Deployment DeploymentConfig         `toml:"deployment"`
	Recovery   RecoveryConfig           `toml:"recovery"`
	Risk       RiskConfig               `toml:"risk"`
	Networks   map[string]NetworkConfig `toml:"networks"`
	Ledger     LedgerConfig             `toml:"ledger"`
	Lock       LockConfig               `toml:"lock"`
	Archive    ArchiveConfig            `toml:"archive"`
	Notify     NotifyConfig             `toml:"notify"`
	Mode       string                   `toml:"mode"`
	LogLevel   string                   `toml:"log_level"`
}

// RPCConfig holds the Ethereum JSON-RPC endpoint.
type RPCConfig struct {
	URL     string   `toml:"url"`
	Timeout duration `toml:"timeout"`
}

// WalletConfig holds the deployer account credentials.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// DeploymentConfig describes the markets to create.
type DeploymentConfig struct {
	Network      string    `toml:"network"`
	Base         string    `toml:"base"`
	Quote        string    `toml:"quote"`
	ExpiryDate   string    `toml:"expiry_date"` // e.g. "18 Jun 2021"
	ExpiryTime   string    `toml:"expiry_time"` // e.g. "08:00"
	Timezone     string    `toml:"timezone"`    // IANA name, empty means UTC
	StrikePrices []Decimal `toml:"strike_prices"`
	TradingFee   Decimal   `toml:"trading_fee"`
	// GasPrice is "auto" or an amount with a unit, e.g. "310 gwei".
	GasPrice          string   `toml:"gas_price"`
	GasLimitBufferPct int      `toml:"gas_limit_buffer_pct"`
	ReceiptTimeout    duration `toml:"receipt_timeout"`
	// Variants lists which markets to create, in order: "call", "put".
	Variants []string `toml:"variants"`
}

// RecoveryConfig tunes how a created market's address is confirmed.
type RecoveryConfig struct {
	SettleDelay     duration `toml:"settle_delay"`
	PollInterval    duration `toml:"poll_interval"`
	MaxPollInterval duration `toml:"max_poll_interval"`
	MaxWait         duration `toml:"max_wait"`
}

// RiskConfig holds the limits applied to every new market. Caps are in the
// token's base units and override the built-in table per symbol.
type RiskConfig struct {
	DisputePeriod duration           `toml:"dispute_period"`
	TVLCaps       map[string]Decimal `toml:"tvl_caps"`
	LPCaps        map[string]Decimal `toml:"lp_caps"`
}

// NetworkConfig overrides or adds addresses for one network.
type NetworkConfig struct {
	ChainID int64             `toml:"chain_id"`
	Factory string            `toml:"factory"`
	Oracles map[string]string `toml:"oracles"` // "BASE/QUOTE" -> address
	Tokens  map[string]string `toml:"tokens"`  // symbol -> address
}

// LedgerConfig holds PostgreSQL connection parameters for the deployment
// ledger.
type LedgerConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`

	// HistoryLimit caps the runs printed by history mode.
	HistoryLimit int `toml:"history_limit"`
	// HistoryWindow limits history mode to runs started within this long
	// of now. Zero lists runs of any age.
	HistoryWindow duration `toml:"history_window"`
}

// LockConfig holds Redis connection parameters for the deployer account lock.
type LockConfig struct {
	Enabled    bool     `toml:"enabled"`
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	TTL        duration `toml:"ttl"`
}

// ArchiveConfig holds S3-compatible object storage parameters for run
// reports.
type ArchiveConfig struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	Prefix         string `toml:"prefix"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Decimal is an exact decimal that decodes from a TOML string, integer or
// float. Strings are preferred: a float literal is read back through its
// shortest representation, which is exact only for short fractions.
type Decimal struct {
	decimal.Decimal
}

// UnmarshalTOML implements toml.Unmarshaler.
func (d *Decimal) UnmarshalTOML(v any) error {
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case int64:
		s = strconv.FormatInt(x, 10)
	case float64:
		s = strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Errorf("expected a number or numeric string, got %T", v)
	}
	parsed, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid decimal %q: %w", s, err)
	}
	d.Decimal = parsed
	return nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		RPC: RPCConfig{
			URL:     "http://127.0.0.1:8545",
			Timeout: duration{30 * time.Second},
		},
		Deployment: DeploymentConfig{
			Network:           "test",
			Base:              "WBTC",
			Quote:             "USDC",
			ExpiryTime:        "08:00",
			Timezone:          "UTC",
			TradingFee:        Decimal{decimal.RequireFromString("0.01")},
			GasPrice:          "auto",
			GasLimitBufferPct: 20,
			ReceiptTimeout:    duration{10 * time.Minute},
			Variants:          []string{"call", "put"},
		},
		Recovery: RecoveryConfig{
			SettleDelay:     duration{30 * time.Second},
			PollInterval:    duration{2 * time.Second},
			MaxPollInterval: duration{15 * time.Second},
			MaxWait:         duration{3 * time.Minute},
		},
		Risk: RiskConfig{
			DisputePeriod: duration{time.Hour},
		},
		Ledger: LedgerConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  4,
			PoolMinConns:  0,
			RunMigrations: true,
			HistoryLimit:  20,
		},
		Lock: LockConfig{
			Addr:       "localhost:6379",
			PoolSize:   4,
			MaxRetries: 3,
			TTL:        duration{30 * time.Minute},
		},
		Archive: ArchiveConfig{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "marketdeploy-reports",
			Prefix:         "runs",
			ForcePathStyle: true,
		},
		Notify: NotifyConfig{
			Events: []string{"market_deployed", "run_finished", "error"},
		},
		Mode:     "deploy",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"deploy":  true,
	"plan":    true,
	"history": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validVariants = map[string]bool{
	"call": true,
	"put":  true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found. Network, pair and cap lookups
// happen later against the address registry.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: deploy, plan, history)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// RPC
	if strings.TrimSpace(c.RPC.URL) == "" {
		errs = append(errs, "rpc: url must not be empty")
	}

	// Wallet: a deployer key is needed to submit transactions.
	if strings.ToLower(c.Mode) == "deploy" {
		if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
			errs = append(errs, "wallet: either private_key or encrypted_key_path must be set for mode deploy")
		}
		if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
			errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
		}
	}

	// Deployment
	d := c.Deployment
	if d.Network == "" {
		errs = append(errs, "deployment: network must not be empty")
	}
	if d.Base == "" || d.Quote == "" {
		errs = append(errs, "deployment: base and quote must not be empty")
	}
	if d.ExpiryDate == "" {
		errs = append(errs, "deployment: expiry_date must be set (e.g. \"18 Jun 2021\")")
	}
	if d.ExpiryTime == "" {
		errs = append(errs, "deployment: expiry_time must be set (e.g. \"08:00\")")
	}
	if d.Timezone != "" {
		if _, err := time.LoadLocation(d.Timezone); err != nil {
			errs = append(errs, fmt.Sprintf("deployment: unknown timezone %q", d.Timezone))
		}
	}
	if len(d.StrikePrices) == 0 {
		errs = append(errs, "deployment: strike_prices must not be empty")
	}
	for i, p := range d.StrikePrices {
		if !p.IsPositive() {
			errs = append(errs, fmt.Sprintf("deployment: strike_prices[%d] must be > 0, got %s", i, p))
		}
		if i > 0 && !p.GreaterThan(d.StrikePrices[i-1].Decimal) {
			errs = append(errs, fmt.Sprintf("deployment: strike_prices must be strictly increasing (%s after %s)", p, d.StrikePrices[i-1]))
		}
	}
	if d.TradingFee.IsNegative() || d.TradingFee.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		errs = append(errs, fmt.Sprintf("deployment: trading_fee must be in [0, 1), got %s", d.TradingFee))
	}
	if d.GasLimitBufferPct < 0 {
		errs = append(errs, "deployment: gas_limit_buffer_pct must be >= 0")
	}
	if len(d.Variants) == 0 {
		errs = append(errs, "deployment: variants must list at least one of call, put")
	}
	seen := make(map[string]bool, len(d.Variants))
	for _, v := range d.Variants {
		v = strings.ToLower(v)
		if !validVariants[v] {
			errs = append(errs, fmt.Sprintf("deployment: unknown variant %q (valid: call, put)", v))
		}
		if seen[v] {
			errs = append(errs, fmt.Sprintf("deployment: variant %q listed twice", v))
		}
		seen[v] = true
	}

	// Recovery
	r := c.Recovery
	if r.SettleDelay.Duration < 0 {
		errs = append(errs, "recovery: settle_delay must be >= 0")
	}
	if r.PollInterval.Duration <= 0 {
		errs = append(errs, "recovery: poll_interval must be > 0")
	}
	if r.MaxPollInterval.Duration < r.PollInterval.Duration {
		errs = append(errs, "recovery: max_poll_interval must be >= poll_interval")
	}
	if r.MaxWait.Duration < r.SettleDelay.Duration {
		errs = append(errs, "recovery: max_wait must be >= settle_delay")
	}

	// Risk
	if c.Risk.DisputePeriod.Duration <= 0 || c.Risk.DisputePeriod.Duration%time.Second != 0 {
		errs = append(errs, "risk: dispute_period must be a positive whole number of seconds")
	}
	for name, caps := range map[string]map[string]Decimal{"tvl_caps": c.Risk.TVLCaps, "lp_caps": c.Risk.LPCaps} {
		for sym, v := range caps {
			if !v.IsPositive() || !v.IsInteger() {
				errs = append(errs, fmt.Sprintf("risk: %s.%s must be a positive whole number of base units, got %s", name, sym, v))
			}
		}
	}

	// Ledger
	if strings.ToLower(c.Mode) == "history" && !c.Ledger.Enabled {
		errs = append(errs, "ledger: enabled must be true for mode history")
	}
	if c.Ledger.Enabled {
		if strings.TrimSpace(c.Ledger.DSN) == "" {
			if c.Ledger.Host == "" {
				errs = append(errs, "ledger: host must not be empty (or set ledger.dsn)")
			}
			if c.Ledger.Port <= 0 || c.Ledger.Port > 65535 {
				errs = append(errs, fmt.Sprintf("ledger: port must be 1-65535, got %d", c.Ledger.Port))
			}
			if c.Ledger.Database == "" {
				errs = append(errs, "ledger: database must not be empty")
			}
		}
		if c.Ledger.PoolMaxConns < 1 {
			errs = append(errs, "ledger: pool_max_conns must be >= 1")
		}
		if c.Ledger.PoolMinConns < 0 || c.Ledger.PoolMinConns > c.Ledger.PoolMaxConns {
			errs = append(errs, "ledger: pool_min_conns must be between 0 and pool_max_conns")
		}
		if c.Ledger.HistoryLimit < 1 {
			errs = append(errs, "ledger: history_limit must be >= 1")
		}
		if c.Ledger.HistoryWindow.Duration < 0 {
			errs = append(errs, "ledger: history_window must not be negative")
		}
	}

	// Lock
	if c.Lock.Enabled {
		if c.Lock.Addr == "" {
			errs = append(errs, "lock: addr must not be empty")
		}
		if c.Lock.PoolSize < 1 {
			errs = append(errs, "lock: pool_size must be >= 1")
		}
		if c.Lock.TTL.Duration <= 0 {
			errs = append(errs, "lock: ttl must be > 0")
		}
	}

	// Archive
	if c.Archive.Enabled {
		if c.Archive.Bucket == "" {
			errs = append(errs, "archive: bucket must not be empty")
		}
		if c.Archive.Region == "" {
			errs = append(errs, "archive: region must not be empty")
		}
	}

	// Notify: Telegram needs both fields.
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
