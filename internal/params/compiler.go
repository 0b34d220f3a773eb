// Package params turns human-entered market parameters into on-chain ready
// fixed-point values.
package params

import (
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/optionsdeployer/internal/domain"
)

// Compiler compiles market specs against the process-wide fixed-point scale
// and logs the expiry for operator confirmation.
type Compiler struct {
	scale  *big.Int
	now    func() time.Time
	logger *slog.Logger
}

// NewCompiler creates a Compiler. A nil now defaults to time.Now.
func NewCompiler(scale *big.Int, now func() time.Time, logger *slog.Logger) *Compiler {
	if now == nil {
		now = time.Now
	}
	return &Compiler{
		scale:  scale,
		now:    now,
		logger: logger.With(slog.String("component", "compiler")),
	}
}

// Compile converts spec into CompiledMarketParams for the given network. See
// the package-level Compile for the rules.
func (c *Compiler) Compile(spec domain.MarketSpec, network domain.ResolvedNetwork) (domain.CompiledMarketParams, error) {
	now := c.now()
	params, err := Compile(spec, network, c.scale, now)
	if err != nil {
		return domain.CompiledMarketParams{}, err
	}

	c.logger.Info("market expiry",
		slog.String("kind", spec.Kind()),
		slog.String("expiry", spec.Expiry.Format(time.RFC3339)),
		slog.String("relative", Humanize(spec.Expiry, now)),
		slog.Int("strikes", len(params.StrikePrices)),
	)
	return params, nil
}

// Compile is the pure conversion behind Compiler.Compile.
//
// Strike prices and the trading fee are multiplied by scale and truncated
// to an integer. The arithmetic is exact decimal, so any value with at most
// as many fractional digits as the scale converts without loss. Strike order
// is preserved; the market contract requires it to be strictly increasing.
//
// The expiry must be strictly after now, otherwise domain.ErrExpiryInThePast
// is returned.
func Compile(spec domain.MarketSpec, network domain.ResolvedNetwork, scale *big.Int, now time.Time) (domain.CompiledMarketParams, error) {
	if scale == nil || scale.Sign() <= 0 {
		return domain.CompiledMarketParams{}, fmt.Errorf("params: %w: scale must be positive", domain.ErrConfiguration)
	}
	if len(spec.StrikePrices) == 0 {
		return domain.CompiledMarketParams{}, fmt.Errorf("params: %w: no strike prices", domain.ErrConfiguration)
	}
	if !spec.Expiry.After(now) {
		return domain.CompiledMarketParams{}, fmt.Errorf("params: %w: %s is not after %s",
			domain.ErrExpiryInThePast, spec.Expiry.Format(time.RFC3339), now.Format(time.RFC3339))
	}
	if spec.TradingFee.IsNegative() || spec.TradingFee.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return domain.CompiledMarketParams{}, fmt.Errorf("params: %w: trading fee %s must be in [0, 1)",
			domain.ErrConfiguration, spec.TradingFee)
	}

	strikes := make([]*big.Int, len(spec.StrikePrices))
	for i, p := range spec.StrikePrices {
		if !p.IsPositive() {
			return domain.CompiledMarketParams{}, fmt.Errorf("params: %w: strike %d (%s) must be positive",
				domain.ErrConfiguration, i, p)
		}
		strikes[i] = ToFixedPoint(p, scale)
	}

	return domain.CompiledMarketParams{
		StrikePrices: strikes,
		Expiry:       spec.Expiry.Unix(),
		TradingFee:   ToFixedPoint(spec.TradingFee, scale),
		Oracle:       network.Oracle,
		BaseToken:    network.BaseToken,
		QuoteToken:   network.QuoteToken,
	}, nil
}

// ToFixedPoint returns v * scale truncated toward zero.
func ToFixedPoint(v decimal.Decimal, scale *big.Int) *big.Int {
	return v.Mul(decimal.NewFromBigInt(scale, 0)).BigInt()
}

// FromFixedPoint renders a fixed-point integer with the given number of
// decimals, e.g. wei as ETH.
func FromFixedPoint(v *big.Int, decimals int32) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v, -decimals)
}
