package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTOML = `
mode = "deploy"
log_level = "debug"

[rpc]
url = "http://127.0.0.1:8545"

[wallet]
private_key = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

[deployment]
network = "test"
base = "WBTC"
quote = "USDC"
expiry_date = "25 Jun 2027"
expiry_time = "08:00"
strike_prices = ["36000", 40000, 44000.5]
trading_fee = "0.01"
gas_price = "310 gwei"
variants = ["call"]

[recovery]
settle_delay = "5s"
max_wait = "1m"

[risk]
dispute_period = "2h"

[risk.tvl_caps]
WBTC = "500000000"

[networks.test]
factory = "0x0000000000000000000000000000000000000abc"

[networks.test.oracles]
"ETH/USDC" = "0x0000000000000000000000000000000000000def"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleTOML))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	d := cfg.Deployment
	require.Len(t, d.StrikePrices, 3)
	assert.True(t, d.StrikePrices[0].Equal(decimal.NewFromInt(36000)))
	assert.True(t, d.StrikePrices[1].Equal(decimal.NewFromInt(40000)))
	assert.True(t, d.StrikePrices[2].Equal(decimal.RequireFromString("44000.5")))
	assert.True(t, d.TradingFee.Equal(decimal.RequireFromString("0.01")))
	assert.Equal(t, []string{"call"}, d.Variants)
	assert.Equal(t, "UTC", d.Timezone, "default kept")

	assert.Equal(t, 5*time.Second, cfg.Recovery.SettleDelay.Duration)
	assert.Equal(t, 2*time.Second, cfg.Recovery.PollInterval.Duration, "default kept")
	assert.Equal(t, time.Minute, cfg.Recovery.MaxWait.Duration)
	assert.Equal(t, 2*time.Hour, cfg.Risk.DisputePeriod.Duration)
	assert.True(t, cfg.Risk.TVLCaps["WBTC"].Equal(decimal.NewFromInt(500000000)))

	require.Contains(t, cfg.Networks, "test")
	assert.Equal(t, "0x0000000000000000000000000000000000000abc", cfg.Networks["test"].Factory)
	assert.Equal(t, "0x0000000000000000000000000000000000000def", cfg.Networks["test"].Oracles["ETH/USDC"])
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := Load(writeConfig(t, sampleTOML+"\n[deployment_typo]\nnetwork = \"x\"\n"))
	assert.ErrorContains(t, err, "unknown keys")
}

func TestLoadRejectsBadDecimal(t *testing.T) {
	_, err := Load(writeConfig(t, `
[deployment]
strike_prices = ["abc"]
`))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MARKETDEPLOY_DEPLOYMENT_NETWORK", "mainnet")
	t.Setenv("MARKETDEPLOY_DEPLOYMENT_STRIKE_PRICES", "1000, 2000.25")
	t.Setenv("MARKETDEPLOY_DEPLOYMENT_VARIANTS", "put")
	t.Setenv("MARKETDEPLOY_RECOVERY_SETTLE_DELAY", "45s")
	t.Setenv("MARKETDEPLOY_LEDGER_ENABLED", "true")

	cfg, err := Load(writeConfig(t, sampleTOML))
	require.NoError(t, err)

	assert.Equal(t, "mainnet", cfg.Deployment.Network)
	require.Len(t, cfg.Deployment.StrikePrices, 2)
	assert.True(t, cfg.Deployment.StrikePrices[1].Equal(decimal.RequireFromString("2000.25")))
	assert.Equal(t, []string{"put"}, cfg.Deployment.Variants)
	assert.Equal(t, 45*time.Second, cfg.Recovery.SettleDelay.Duration)
	assert.True(t, cfg.Ledger.Enabled)
}

func TestEnvOverrideIgnoresMalformedStrikes(t *testing.T) {
	t.Setenv("MARKETDEPLOY_DEPLOYMENT_STRIKE_PRICES", "1000,oops")

	cfg, err := Load(writeConfig(t, sampleTOML))
	require.NoError(t, err)
	assert.Len(t, cfg.Deployment.StrikePrices, 3)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load(writeConfig(t, sampleTOML))
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"mode", func(c *Config) { c.Mode = "trade" }, "unknown mode"},
		{"no key", func(c *Config) { c.Wallet.PrivateKey = "" }, "wallet: either private_key"},
		{"password", func(c *Config) { c.Wallet.EncryptedKeyPath = "key.json" }, "key_password is required"},
		{"strikes order", func(c *Config) {
			c.Deployment.StrikePrices = []Decimal{{decimal.NewFromInt(40000)}, {decimal.NewFromInt(36000)}}
		}, "strictly increasing"},
		{"duplicate strike", func(c *Config) {
			c.Deployment.StrikePrices = []Decimal{{decimal.NewFromInt(1)}, {decimal.NewFromInt(1)}}
		}, "strictly increasing"},
		{"no strikes", func(c *Config) { c.Deployment.StrikePrices = nil }, "strike_prices must not be empty"},
		{"fee", func(c *Config) { c.Deployment.TradingFee = Decimal{decimal.NewFromInt(1)} }, "trading_fee"},
		{"timezone", func(c *Config) { c.Deployment.Timezone = "Mars/Olympus" }, "unknown timezone"},
		{"variant", func(c *Config) { c.Deployment.Variants = []string{"straddle"} }, "unknown variant"},
		{"variant twice", func(c *Config) { c.Deployment.Variants = []string{"call", "call"} }, "listed twice"},
		{"max wait", func(c *Config) { c.Recovery.MaxWait = duration{time.Second} }, "max_wait"},
		{"dispute", func(c *Config) { c.Risk.DisputePeriod = duration{1500 * time.Millisecond} }, "dispute_period"},
		{"cap", func(c *Config) { c.Risk.LPCaps = map[string]Decimal{"WBTC": {decimal.RequireFromString("0.5")}} }, "lp_caps.WBTC"},
		{"ledger", func(c *Config) { c.Ledger.Enabled = true; c.Ledger.PoolMaxConns = 0 }, "pool_max_conns"},
		{"history limit", func(c *Config) { c.Ledger.Enabled = true; c.Ledger.HistoryLimit = 0 }, "history_limit"},
		{"history window", func(c *Config) { c.Ledger.Enabled = true; c.Ledger.HistoryWindow = duration{-time.Hour} }, "history_window"},
		{"history needs ledger", func(c *Config) { c.Mode = "history" }, "enabled must be true for mode history"},
		{"lock", func(c *Config) { c.Lock.Enabled = true; c.Lock.Addr = "" }, "lock: addr"},
		{"archive", func(c *Config) { c.Archive.Enabled = true; c.Archive.Bucket = "" }, "archive: bucket"},
		{"telegram", func(c *Config) { c.Notify.TelegramToken = "t" }, "telegram_chat_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestValidatePlanModeNeedsNoKey(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleTOML))
	require.NoError(t, err)
	cfg.Mode = "plan"
	cfg.Wallet.PrivateKey = ""
	assert.NoError(t, cfg.Validate())
}

func TestValidateHistoryMode(t *testing.T) {
	t.Setenv("MARKETDEPLOY_LEDGER_HISTORY_LIMIT", "5")
	t.Setenv("MARKETDEPLOY_LEDGER_HISTORY_WINDOW", "168h")

	cfg, err := Load(writeConfig(t, sampleTOML))
	require.NoError(t, err)
	cfg.Mode = "history"
	cfg.Wallet.PrivateKey = ""
	cfg.Ledger.Enabled = true
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 5, cfg.Ledger.HistoryLimit)
	assert.Equal(t, 7*24*time.Hour, cfg.Ledger.HistoryWindow.Duration)
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "nope"
	cfg.RPC.URL = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
	assert.Contains(t, err.Error(), "rpc: url")
	assert.Contains(t, err.Error(), "expiry_date")
}

func TestRedactedConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleTOML))
	require.NoError(t, err)
	cfg.Ledger.Password = "pg-secret"
	cfg.Notify.TelegramToken = "tg-secret"

	out := RedactedConfig(cfg)
	assert.Equal(t, "***", out.Wallet.PrivateKey)
	assert.Equal(t, "***", out.RPC.URL)
	assert.Equal(t, "***", out.Ledger.Password)
	assert.Equal(t, "***", out.Notify.TelegramToken)
	assert.Empty(t, out.Wallet.KeyPassword, "empty values stay empty")

	out.Deployment.Variants[0] = "put"
	assert.Equal(t, "call", cfg.Deployment.Variants[0])
	assert.NotEqual(t, "***", cfg.Wallet.PrivateKey)
}
