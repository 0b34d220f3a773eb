package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies MARKETDEPLOY_* environment variable overrides,
// and returns the final Config. An empty path skips the file. The returned
// Config has NOT been validated; the caller should invoke Config.Validate()
// after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return nil, err
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("config: unknown keys in %s: %s", path, strings.Join(keys, ", "))
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known MARKETDEPLOY_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── RPC ──
	setStr(&cfg.RPC.URL, "MARKETDEPLOY_RPC_URL")
	setDuration(&cfg.RPC.Timeout, "MARKETDEPLOY_RPC_TIMEOUT")

	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "MARKETDEPLOY_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "MARKETDEPLOY_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "MARKETDEPLOY_WALLET_KEY_PASSWORD")

	// ── Deployment ──
	setStr(&cfg.Deployment.Network, "MARKETDEPLOY_DEPLOYMENT_NETWORK")
	setStr(&cfg.Deployment.Base, "MARKETDEPLOY_DEPLOYMENT_BASE")
	setStr(&cfg.Deployment.Quote, "MARKETDEPLOY_DEPLOYMENT_QUOTE")
	setStr(&cfg.Deployment.ExpiryDate, "MARKETDEPLOY_DEPLOYMENT_EXPIRY_DATE")
	setStr(&cfg.Deployment.ExpiryTime, "MARKETDEPLOY_DEPLOYMENT_EXPIRY_TIME")
	setStr(&cfg.Deployment.Timezone, "MARKETDEPLOY_DEPLOYMENT_TIMEZONE")
	setDecimalSlice(&cfg.Deployment.StrikePrices, "MARKETDEPLOY_DEPLOYMENT_STRIKE_PRICES")
	setDecimal(&cfg.Deployment.TradingFee, "MARKETDEPLOY_DEPLOYMENT_TRADING_FEE")
	setStr(&cfg.Deployment.GasPrice, "MARKETDEPLOY_DEPLOYMENT_GAS_PRICE")
	setInt(&cfg.Deployment.GasLimitBufferPct, "MARKETDEPLOY_DEPLOYMENT_GAS_LIMIT_BUFFER_PCT")
	setDuration(&cfg.Deployment.ReceiptTimeout, "MARKETDEPLOY_DEPLOYMENT_RECEIPT_TIMEOUT")
	setStringSlice(&cfg.Deployment.Variants, "MARKETDEPLOY_DEPLOYMENT_VARIANTS")

	// ── Recovery ──
	setDuration(&cfg.Recovery.SettleDelay, "MARKETDEPLOY_RECOVERY_SETTLE_DELAY")
	setDuration(&cfg.Recovery.PollInterval, "MARKETDEPLOY_RECOVERY_POLL_INTERVAL")
	setDuration(&cfg.Recovery.MaxPollInterval, "MARKETDEPLOY_RECOVERY_MAX_POLL_INTERVAL")
	setDuration(&cfg.Recovery.MaxWait, "MARKETDEPLOY_RECOVERY_MAX_WAIT")

	// ── Risk ──
	setDuration(&cfg.Risk.DisputePeriod, "MARKETDEPLOY_RISK_DISPUTE_PERIOD")

	// ── Ledger ──
	setBool(&cfg.Ledger.Enabled, "MARKETDEPLOY_LEDGER_ENABLED")
	setStr(&cfg.Ledger.DSN, "MARKETDEPLOY_LEDGER_DSN")
	setStr(&cfg.Ledger.Host, "MARKETDEPLOY_LEDGER_HOST")
	setInt(&cfg.Ledger.Port, "MARKETDEPLOY_LEDGER_PORT")
	setStr(&cfg.Ledger.Database, "MARKETDEPLOY_LEDGER_DATABASE")
	setStr(&cfg.Ledger.User, "MARKETDEPLOY_LEDGER_USER")
	setStr(&cfg.Ledger.Password, "MARKETDEPLOY_LEDGER_PASSWORD")
	setStr(&cfg.Ledger.SSLMode, "MARKETDEPLOY_LEDGER_SSL_MODE")
	setInt(&cfg.Ledger.PoolMaxConns, "MARKETDEPLOY_LEDGER_POOL_MAX_CONNS")
	setInt(&cfg.Ledger.PoolMinConns, "MARKETDEPLOY_LEDGER_POOL_MIN_CONNS")
	setBool(&cfg.Ledger.RunMigrations, "MARKETDEPLOY_LEDGER_RUN_MIGRATIONS")
	setInt(&cfg.Ledger.HistoryLimit, "MARKETDEPLOY_LEDGER_HISTORY_LIMIT")
	setDuration(&cfg.Ledger.HistoryWindow, "MARKETDEPLOY_LEDGER_HISTORY_WINDOW")

	// ── Lock ──
	setBool(&cfg.Lock.Enabled, "MARKETDEPLOY_LOCK_ENABLED")
	setStr(&cfg.Lock.Addr, "MARKETDEPLOY_LOCK_ADDR")
	setStr(&cfg.Lock.Password, "MARKETDEPLOY_LOCK_PASSWORD")
	setInt(&cfg.Lock.DB, "MARKETDEPLOY_LOCK_DB")
	setInt(&cfg.Lock.PoolSize, "MARKETDEPLOY_LOCK_POOL_SIZE")
	setInt(&cfg.Lock.MaxRetries, "MARKETDEPLOY_LOCK_MAX_RETRIES")
	setBool(&cfg.Lock.TLSEnabled, "MARKETDEPLOY_LOCK_TLS_ENABLED")
	setDuration(&cfg.Lock.TTL, "MARKETDEPLOY_LOCK_TTL")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "MARKETDEPLOY_ARCHIVE_ENABLED")
	setStr(&cfg.Archive.Endpoint, "MARKETDEPLOY_ARCHIVE_ENDPOINT")
	setStr(&cfg.Archive.Region, "MARKETDEPLOY_ARCHIVE_REGION")
	setStr(&cfg.Archive.Bucket, "MARKETDEPLOY_ARCHIVE_BUCKET")
	setStr(&cfg.Archive.Prefix, "MARKETDEPLOY_ARCHIVE_PREFIX")
	setStr(&cfg.Archive.AccessKey, "MARKETDEPLOY_ARCHIVE_ACCESS_KEY")
	setStr(&cfg.Archive.SecretKey, "MARKETDEPLOY_ARCHIVE_SECRET_KEY")
	setBool(&cfg.Archive.UseSSL, "MARKETDEPLOY_ARCHIVE_USE_SSL")
	setBool(&cfg.Archive.ForcePathStyle, "MARKETDEPLOY_ARCHIVE_FORCE_PATH_STYLE")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "MARKETDEPLOY_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "MARKETDEPLOY_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "MARKETDEPLOY_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "MARKETDEPLOY_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "MARKETDEPLOY_MODE")
	setStr(&cfg.LogLevel, "MARKETDEPLOY_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setDecimal(dst *Decimal, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := decimal.NewFromString(strings.TrimSpace(v)); err == nil {
			dst.Decimal = d
		}
	}
}

// setDecimalSlice replaces dst only when every comma-separated element parses.
func setDecimalSlice(dst *[]Decimal, key string) {
	var parts []string
	setStringSlice(&parts, key)
	if len(parts) == 0 {
		return
	}
	out := make([]Decimal, 0, len(parts))
	for _, p := range parts {
		d, err := decimal.NewFromString(p)
		if err != nil {
			return
		}
		out = append(out, Decimal{d})
	}
	*dst = out
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
