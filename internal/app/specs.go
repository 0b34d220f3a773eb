package app

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/optionsdeployer/internal/config"
	"github.com/alanyoungcy/optionsdeployer/internal/domain"
	"github.com/alanyoungcy/optionsdeployer/internal/params"
	"github.com/alanyoungcy/optionsdeployer/internal/registry"
)

// MarketSpecs builds one MarketSpec per configured variant, in order.
func MarketSpecs(d config.DeploymentConfig) ([]domain.MarketSpec, error) {
	expiry, err := params.ParseExpiry(d.ExpiryDate, d.ExpiryTime, d.Timezone)
	if err != nil {
		return nil, err
	}

	strikes := make([]decimal.Decimal, len(d.StrikePrices))
	for i, p := range d.StrikePrices {
		strikes[i] = p.Decimal
	}

	specs := make([]domain.MarketSpec, 0, len(d.Variants))
	for _, v := range d.Variants {
		var isPut bool
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "call":
		case "put":
			isPut = true
		default:
			return nil, fmt.Errorf("app: %w: unknown variant %q", domain.ErrConfiguration, v)
		}
		specs = append(specs, domain.MarketSpec{
			BaseSymbol:   domain.Symbol(strings.ToUpper(d.Base)),
			QuoteSymbol:  domain.Symbol(strings.ToUpper(d.Quote)),
			StrikePrices: strikes,
			Expiry:       expiry,
			IsPut:        isPut,
			TradingFee:   d.TradingFee.Decimal,
		})
	}
	return specs, nil
}

// buildRegistry layers configured network overrides and caps over the
// built-in tables.
func buildRegistry(cfg *config.Config) (*registry.Registry, error) {
	overrides := make([]registry.Override, 0, len(cfg.Networks))
	for name, n := range cfg.Networks {
		overrides = append(overrides, registry.Override{
			Network: domain.Network(name),
			ChainID: n.ChainID,
			Factory: n.Factory,
			Oracles: n.Oracles,
			Tokens:  n.Tokens,
		})
	}
	reg, err := registry.Default().WithOverrides(overrides...)
	if err != nil {
		return nil, err
	}
	return reg.WithCaps(capTable(cfg.Risk.TVLCaps), capTable(cfg.Risk.LPCaps)), nil
}

// capTable converts configured caps into base-unit integers. Config
// validation guarantees every value is a positive integer.
func capTable(in map[string]config.Decimal) map[domain.Symbol]*big.Int {
	if len(in) == 0 {
		return nil
	}
	out := make(map[domain.Symbol]*big.Int, len(in))
	for sym, v := range in {
		out[domain.Symbol(strings.ToUpper(sym))] = v.BigInt()
	}
	return out
}
