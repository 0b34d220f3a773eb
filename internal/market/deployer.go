// Package market creates options markets through the factory and applies
// their post-deployment risk controls.
package market

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/optionsdeployer/internal/domain"
)

// Options tunes how a newly created market's address is recovered.
type Options struct {
	// SettleDelay is waited once after the creation receipt, before the
	// first read of the factory's market list.
	SettleDelay time.Duration
	// PollInterval is the first delay between reads. It doubles after each
	// unsuccessful read up to MaxPollInterval.
	PollInterval    time.Duration
	MaxPollInterval time.Duration
	// MaxWait bounds the whole recovery, settle delay included.
	MaxWait time.Duration
}

// DefaultOptions returns the recovery timings used when none are configured.
func DefaultOptions() Options {
	return Options{
		SettleDelay:     30 * time.Second,
		PollInterval:    2 * time.Second,
		MaxPollInterval: 15 * time.Second,
		MaxWait:         3 * time.Minute,
	}
}

func (o Options) normalized() Options {
	def := DefaultOptions()
	if o.SettleDelay < 0 {
		o.SettleDelay = 0
	}
	if o.PollInterval <= 0 {
		o.PollInterval = def.PollInterval
	}
	if o.MaxPollInterval < o.PollInterval {
		o.MaxPollInterval = o.PollInterval
	}
	if o.MaxWait < o.SettleDelay {
		o.MaxWait = o.SettleDelay
	}
	return o
}

// Deployer submits createMarket transactions and recovers the address of the
// market each one created. It is not idempotent: every Deploy creates a new
// market.
type Deployer struct {
	contracts domain.Contracts
	opts      Options
	clock     Clock
	logger    *slog.Logger
}

// NewDeployer creates a Deployer. A nil clock uses the wall clock.
func NewDeployer(contracts domain.Contracts, opts Options, clock Clock, logger *slog.Logger) *Deployer {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Deployer{
		contracts: contracts,
		opts:      opts.normalized(),
		clock:     clock,
		logger:    logger.With(slog.String("component", "market_deployer")),
	}
}

// Deploy creates one market on network's factory and returns its confirmed
// address. The factory's market count is read before submitting; the new
// market is expected at that index once the count has grown by exactly one.
func (d *Deployer) Deploy(ctx context.Context, network domain.ResolvedNetwork, params domain.CompiledMarketParams, isPut bool) (domain.DeployedMarket, error) {
	factory := d.contracts.Factory(network.Factory)
	kind := domain.KindOf(isPut)

	before, err := factory.NumMarkets(ctx)
	if err != nil {
		return domain.DeployedMarket{}, fmt.Errorf("market: read market count: %w", err)
	}

	d.logger.InfoContext(ctx, "creating market",
		slog.String("network", string(network.Network)),
		slog.String("factory", network.Factory.Hex()),
		slog.String("kind", kind),
		slog.Int("strikes", len(params.StrikePrices)),
		slog.Int64("expiry", params.Expiry),
		slog.String("markets_before", before.String()),
	)

	receipt, err := factory.CreateMarket(ctx, params, isPut)
	if err != nil {
		return domain.DeployedMarket{}, fmt.Errorf("market: create %s market: %w", kind, err)
	}

	addr, err := d.recover(ctx, factory, before)
	if err != nil {
		return domain.DeployedMarket{}, fmt.Errorf("market: %s market from tx %s: %w", kind, receipt.TxHash.Hex(), err)
	}

	d.logger.InfoContext(ctx, "market deployed",
		slog.String("kind", kind),
		slog.String("address", addr.Hex()),
		slog.String("tx_hash", receipt.TxHash.Hex()),
		slog.String("index", before.String()),
	)

	return domain.DeployedMarket{
		Address: addr,
		IsPut:   isPut,
		TxHash:  receipt.TxHash,
		Index:   before.Uint64(),
	}, nil
}

// recover polls the factory until the market at index before is visible and
// has code, or the recovery window closes.
func (d *Deployer) recover(ctx context.Context, factory domain.FactoryContract, before *big.Int) (common.Address, error) {
	deadline := d.clock.Now().Add(d.opts.MaxWait)

	if err := d.sleep(ctx, d.opts.SettleDelay); err != nil {
		return common.Address{}, err
	}

	expected := new(big.Int).Add(before, big.NewInt(1))
	interval := d.opts.PollInterval
	last := "no reads yet"

	for attempt := 1; ; attempt++ {
		addr, found, observation, err := d.probe(ctx, factory, before, expected)
		if err != nil {
			return common.Address{}, err
		}
		if found {
			return addr, nil
		}
		last = observation

		d.logger.DebugContext(ctx, "market not visible yet",
			slog.Int("attempt", attempt),
			slog.String("observation", observation),
			slog.Duration("next_poll", interval),
		)

		remaining := deadline.Sub(d.clock.Now())
		if remaining <= 0 {
			return common.Address{}, fmt.Errorf("%w: gave up after %s and %d reads: %s",
				domain.ErrDeploymentVerification, d.opts.MaxWait, attempt, last)
		}
		if err := d.sleep(ctx, min(interval, remaining)); err != nil {
			return common.Address{}, err
		}
		interval = min(interval*2, d.opts.MaxPollInterval)
	}
}

// probe makes one read of the factory. A non-nil error ends recovery; found
// false with a nil error means the read should be retried.
func (d *Deployer) probe(ctx context.Context, factory domain.FactoryContract, before, expected *big.Int) (common.Address, bool, string, error) {
	count, err := factory.NumMarkets(ctx)
	if err != nil {
		return common.Address{}, false, "read market count: " + err.Error(), nil
	}

	switch count.Cmp(expected) {
	case -1:
		return common.Address{}, false, fmt.Sprintf("market count %s, want %s", count, expected), nil
	case 1:
		return common.Address{}, false, "", fmt.Errorf("%w: market count went from %s to %s, another market was created concurrently",
			domain.ErrDeploymentVerification, before, count)
	}

	addr, err := factory.MarketAt(ctx, before)
	if err != nil {
		return common.Address{}, false, fmt.Sprintf("read market %s: %v", before, err), nil
	}
	code, err := d.contracts.CodeAt(ctx, addr, nil)
	if err != nil {
		return common.Address{}, false, fmt.Sprintf("read code at %s: %v", addr.Hex(), err), nil
	}
	if len(code) == 0 {
		return common.Address{}, false, fmt.Sprintf("no code at %s yet", addr.Hex()), nil
	}
	return addr, true, "", nil
}

func (d *Deployer) sleep(ctx context.Context, dur time.Duration) error {
	if dur <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-d.clock.After(dur):
		return nil
	}
}
