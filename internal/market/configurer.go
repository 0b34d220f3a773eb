package market

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"

	"github.com/alanyoungcy/optionsdeployer/internal/domain"
)

// Configurer applies risk controls to freshly deployed markets.
type Configurer struct {
	contracts domain.Contracts
	logger    *slog.Logger
}

// NewConfigurer creates a Configurer.
func NewConfigurer(contracts domain.Contracts, logger *slog.Logger) *Configurer {
	return &Configurer{
		contracts: contracts,
		logger:    logger.With(slog.String("component", "market_configurer")),
	}
}

// Caps returns the TVL and LP caps that apply to a market whose caps are
// denominated in symbol.
func Caps(risk domain.RiskParameters, symbol domain.Symbol) (tvl, lp *big.Int, err error) {
	tvl, ok := risk.TVLCaps[symbol]
	if !ok || tvl == nil {
		return nil, nil, fmt.Errorf("market: %w: no TVL cap for %s", domain.ErrConfiguration, symbol)
	}
	lp, ok = risk.LPCaps[symbol]
	if !ok || lp == nil {
		return nil, nil, fmt.Errorf("market: %w: no LP cap for %s", domain.ErrConfiguration, symbol)
	}
	return tvl, lp, nil
}

// Configure pauses the market, then sets its balance cap, total supply cap
// and dispute period, one transaction each and in that order. The first
// failure stops the sequence; steps already mined are not undone.
func (c *Configurer) Configure(ctx context.Context, deployed domain.DeployedMarket, risk domain.RiskParameters) error {
	tvl, lp, err := Caps(risk, deployed.CapSymbol)
	if err != nil {
		return err
	}
	dispute := big.NewInt(int64(risk.DisputePeriod.Seconds()))

	m := c.contracts.Market(deployed.Address)
	steps := []struct {
		name string
		run  func(context.Context) (*types.Receipt, error)
	}{
		{"pause", m.Pause},
		{"set balance cap", func(ctx context.Context) (*types.Receipt, error) { return m.SetBalanceCap(ctx, tvl) }},
		{"set total supply cap", func(ctx context.Context) (*types.Receipt, error) { return m.SetTotalSupplyCap(ctx, lp) }},
		{"set dispute period", func(ctx context.Context) (*types.Receipt, error) { return m.SetDisputePeriod(ctx, dispute) }},
	}

	for _, step := range steps {
		if _, err := step.run(ctx); err != nil {
			return fmt.Errorf("market: configure %s: %s: %w", deployed.Address.Hex(), step.name, err)
		}
		c.logger.InfoContext(ctx, "market configured",
			slog.String("address", deployed.Address.Hex()),
			slog.String("step", step.name),
		)
	}

	c.logger.InfoContext(ctx, "market ready",
		slog.String("address", deployed.Address.Hex()),
		slog.String("kind", domain.KindOf(deployed.IsPut)),
		slog.String("cap_symbol", string(deployed.CapSymbol)),
		slog.String("balance_cap", tvl.String()),
		slog.String("total_supply_cap", lp.String()),
		slog.Int64("dispute_period_s", dispute.Int64()),
	)
	return nil
}
