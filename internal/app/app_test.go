package app

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"math/big"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/optionsdeployer/internal/config"
	"github.com/alanyoungcy/optionsdeployer/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func dec(s string) config.Decimal {
	return config.Decimal{Decimal: decimal.RequireFromString(s)}
}

func planConfig(expiry time.Time) *config.Config {
	cfg := config.Defaults()
	cfg.Mode = "plan"
	cfg.Deployment.ExpiryDate = expiry.UTC().Format("2 Jan 2006")
	cfg.Deployment.StrikePrices = []config.Decimal{dec("36000"), dec("40000")}
	return &cfg
}

func TestMarketSpecs(t *testing.T) {
	cfg := planConfig(time.Date(2030, 6, 18, 0, 0, 0, 0, time.UTC))
	cfg.Deployment.Base = "wbtc"

	specs, err := MarketSpecs(cfg.Deployment)
	require.NoError(t, err)
	require.Len(t, specs, 2)

	assert.False(t, specs[0].IsPut)
	assert.True(t, specs[1].IsPut)
	assert.Equal(t, domain.SymbolWBTC, specs[0].BaseSymbol)
	assert.Equal(t, domain.SymbolUSDC, specs[0].QuoteSymbol)
	assert.Equal(t, time.Date(2030, 6, 18, 8, 0, 0, 0, time.UTC), specs[0].Expiry)
	assert.True(t, specs[0].TradingFee.Equal(decimal.RequireFromString("0.01")))
	require.Len(t, specs[0].StrikePrices, 2)
	assert.Equal(t, "40000", specs[1].StrikePrices[1].String())
}

func TestMarketSpecsTimezone(t *testing.T) {
	cfg := planConfig(time.Date(2030, 6, 18, 0, 0, 0, 0, time.UTC))
	cfg.Deployment.Timezone = "Asia/Hong_Kong"
	cfg.Deployment.Variants = []string{"put"}

	specs, err := MarketSpecs(cfg.Deployment)
	require.NoError(t, err)
	require.Len(t, specs, 1)
	assert.True(t, specs[0].IsPut)
	assert.Equal(t, time.Date(2030, 6, 18, 0, 0, 0, 0, time.UTC), specs[0].Expiry.UTC())
}

func TestMarketSpecsRejectsBadInput(t *testing.T) {
	cfg := planConfig(time.Now())
	cfg.Deployment.Variants = []string{"straddle"}
	_, err := MarketSpecs(cfg.Deployment)
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	cfg = planConfig(time.Now())
	cfg.Deployment.ExpiryDate = "2021-06-18"
	_, err = MarketSpecs(cfg.Deployment)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestBuildRegistryAppliesOverridesAndCaps(t *testing.T) {
	cfg := planConfig(time.Now())
	cfg.Networks = map[string]config.NetworkConfig{
		"goerli": {
			ChainID: 5,
			Factory: "0x00000000000000000000000000000000000000f1",
			Oracles: map[string]string{"ETH/USDC": "0x00000000000000000000000000000000000000a1"},
			Tokens: map[string]string{
				"ETH":  "0x0000000000000000000000000000000000000000",
				"usdc": "0x00000000000000000000000000000000000000c1",
			},
		},
	}
	cfg.Risk.TVLCaps = map[string]config.Decimal{"wbtc": dec("500000000")}

	reg, err := buildRegistry(cfg)
	require.NoError(t, err)

	resolved, err := reg.Resolve("goerli", domain.SymbolETH, domain.SymbolUSDC)
	require.NoError(t, err)
	assert.Equal(t, int64(5), resolved.ChainID)
	assert.Equal(t, common.HexToAddress("0xf1"), resolved.Factory)
	assert.Equal(t, common.HexToAddress("0xc1"), resolved.QuoteToken)

	risk := reg.Risk(time.Hour)
	assert.Equal(t, big.NewInt(500_000_000), risk.TVLCaps[domain.SymbolWBTC])
	assert.Equal(t, big.NewInt(200_000_000), risk.LPCaps[domain.SymbolWBTC])
}

func TestBuildRegistryRejectsMalformedAddress(t *testing.T) {
	cfg := planConfig(time.Now())
	cfg.Networks = map[string]config.NetworkConfig{"test": {Factory: "not-an-address"}}
	_, err := buildRegistry(cfg)
	assert.Error(t, err)
}

func TestPlanModePrintsPlans(t *testing.T) {
	cfg := planConfig(time.Now().Add(72 * time.Hour))
	var out bytes.Buffer
	a := New(cfg, discardLogger())
	a.out = &out
	defer a.Close()

	require.NoError(t, a.Run(context.Background()))

	text := out.String()
	assert.Contains(t, text, "WBTC/USDC call on test")
	assert.Contains(t, text, "WBTC/USDC put on test")
	assert.Contains(t, text, "36000 (36000000000000000000000)")
	assert.Contains(t, text, "0.01 (10000000000000000)")
	assert.Contains(t, text, "cap symbol:  WBTC")
	assert.Contains(t, text, "cap symbol:  USDC")
	assert.Contains(t, text, "0xDc64a140Aa3E981100a9becA4E685f962f0cF6C9")
}

func TestPlanModeRejectsPastExpiry(t *testing.T) {
	cfg := planConfig(time.Now().Add(-72 * time.Hour))
	var out bytes.Buffer
	a := New(cfg, discardLogger())
	a.out = &out
	defer a.Close()

	err := a.Run(context.Background())
	require.ErrorIs(t, err, domain.ErrExpiryInThePast)
	assert.Empty(t, out.String())
}

func TestPlanModeUnknownNetwork(t *testing.T) {
	cfg := planConfig(time.Now().Add(72 * time.Hour))
	cfg.Deployment.Network = "kovan"
	a := New(cfg, discardLogger())
	a.out = io.Discard
	defer a.Close()

	assert.ErrorIs(t, a.Run(context.Background()), domain.ErrConfiguration)
}

func TestRunRejectsUnknownMode(t *testing.T) {
	cfg := planConfig(time.Now().Add(72 * time.Hour))
	cfg.Mode = "trade"
	a := New(cfg, discardLogger())
	defer a.Close()

	assert.ErrorContains(t, a.Run(context.Background()), `unsupported mode "trade"`)
}

func TestDeployModeNeedsKey(t *testing.T) {
	cfg := planConfig(time.Now().Add(72 * time.Hour))
	cfg.Mode = "deploy"
	a := New(cfg, discardLogger())
	defer a.Close()

	assert.ErrorContains(t, a.Run(context.Background()), "deployer key")
}

type historyLedger struct {
	runs    []domain.RunReport
	markets map[string][]domain.DeployedMarket
	opts    domain.ListOpts
}

func (l *historyLedger) StartRun(context.Context, domain.RunReport) error { return nil }

func (l *historyLedger) RecordMarket(context.Context, string, domain.DeployedMarket) error {
	return nil
}

func (l *historyLedger) FinishRun(context.Context, domain.RunReport) error { return nil }

func (l *historyLedger) GetRun(_ context.Context, runID string) (domain.RunReport, error) {
	for _, r := range l.runs {
		if r.RunID == runID {
			r.Markets = l.markets[runID]
			return r, nil
		}
	}
	return domain.RunReport{}, domain.ErrNotFound
}

func (l *historyLedger) ListRuns(_ context.Context, opts domain.ListOpts) ([]domain.RunReport, error) {
	l.opts = opts
	return l.runs, nil
}

func TestHistoryModePrintsRuns(t *testing.T) {
	started := time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)
	deployer := common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	ledger := &historyLedger{
		runs: []domain.RunReport{
			{
				RunID: "run-2", Network: domain.NetworkMainnet, Deployer: deployer,
				Status: domain.RunStatusFailed, Error: "transaction rejected",
				StartedAt: started.Add(time.Hour),
			},
			{
				RunID: "run-1", Network: domain.NetworkMainnet, Deployer: deployer,
				Status: domain.RunStatusSucceeded, GasSpent: big.NewInt(2_500_000_000_000_000),
				StartedAt: started,
			},
		},
		markets: map[string][]domain.DeployedMarket{
			"run-1": {
				{Address: common.HexToAddress("0x10001"), CapSymbol: domain.SymbolWBTC},
				{Address: common.HexToAddress("0x10002"), IsPut: true, CapSymbol: domain.SymbolUSDC},
			},
		},
	}

	cfg := planConfig(time.Now().Add(72 * time.Hour))
	cfg.Mode = "history"
	cfg.Ledger.HistoryLimit = 5
	cfg.Ledger.HistoryWindow.Duration = 24 * time.Hour
	var out bytes.Buffer
	a := New(cfg, discardLogger())
	a.out = &out

	require.NoError(t, a.HistoryMode(context.Background(), &Dependencies{Ledger: ledger}))

	assert.Equal(t, 5, ledger.opts.Limit)
	require.NotNil(t, ledger.opts.Since)
	assert.WithinDuration(t, time.Now().Add(-24*time.Hour), *ledger.opts.Since, time.Minute)

	text := out.String()
	assert.Contains(t, text, "started 2026-10-18T10:30:00Z\nrun run-2 on mainnet")
	assert.Contains(t, text, "error: transaction rejected")
	assert.Contains(t, text, "started 2026-10-18T09:30:00Z\nrun run-1 on mainnet")
	assert.Contains(t, text, "- call 0x0000000000000000000000000000000000010001 (caps in WBTC)")
	assert.Contains(t, text, "- put 0x0000000000000000000000000000000000010002 (caps in USDC)")
	assert.Contains(t, text, "gas spent: 0.0025 ETH")
	assert.Less(t, bytes.Index(out.Bytes(), []byte("run-2")), bytes.Index(out.Bytes(), []byte("run-1")))
}

func TestHistoryModeEmpty(t *testing.T) {
	cfg := planConfig(time.Now().Add(72 * time.Hour))
	cfg.Mode = "history"
	var out bytes.Buffer
	a := New(cfg, discardLogger())
	a.out = &out

	ledger := &historyLedger{}
	require.NoError(t, a.HistoryMode(context.Background(), &Dependencies{Ledger: ledger}))
	assert.Equal(t, "no deployment runs recorded\n", out.String())
	assert.Equal(t, 20, ledger.opts.Limit)
	assert.Nil(t, ledger.opts.Since, "no window by default")
}

func TestHistoryModeMissingRun(t *testing.T) {
	cfg := planConfig(time.Now().Add(72 * time.Hour))
	a := New(cfg, discardLogger())
	a.out = io.Discard

	ghost := &missingRunLedger{historyLedger: &historyLedger{runs: []domain.RunReport{{RunID: "gone"}}}}
	assert.ErrorIs(t, a.HistoryMode(context.Background(), &Dependencies{Ledger: ghost}), domain.ErrNotFound)
}

// missingRunLedger lists runs that GetRun no longer finds.
type missingRunLedger struct{ *historyLedger }

func (l *missingRunLedger) GetRun(context.Context, string) (domain.RunReport, error) {
	return domain.RunReport{}, domain.ErrNotFound
}
