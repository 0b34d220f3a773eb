package market

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/optionsdeployer/internal/domain"
)

func testNetwork(c *fakeChain) domain.ResolvedNetwork {
	return domain.ResolvedNetwork{
		Network:    domain.NetworkTest,
		ChainID:    31337,
		Factory:    c.factory,
		Oracle:     common.HexToAddress("0xCf7Ed3AccA5a467e9e704C703E8D87F634fB0Fc9"),
		BaseToken:  common.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"),
		QuoteToken: common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3"),
	}
}

func testParams() domain.CompiledMarketParams {
	return domain.CompiledMarketParams{
		StrikePrices: []*big.Int{big.NewInt(36000), big.NewInt(40000)},
		Expiry:       1_800_000_000,
		TradingFee:   big.NewInt(1e16),
	}
}

func newTestDeployer(c *fakeChain, clock *fakeClock) *Deployer {
	return NewDeployer(c, DefaultOptions(), clock, discardLogger())
}

func TestDeployReturnsMarketAtPreviousCount(t *testing.T) {
	c := newFakeChain()
	c.markets = []common.Address{
		common.HexToAddress("0xaaaa"),
		common.HexToAddress("0xbbbb"),
	}
	clock := newFakeClock()

	got, err := newTestDeployer(c, clock).Deploy(context.Background(), testNetwork(c), testParams(), false)
	require.NoError(t, err)

	assert.Equal(t, uint64(2), got.Index)
	assert.Equal(t, c.markets[2], got.Address)
	assert.False(t, got.IsPut)
	assert.NotEqual(t, common.Hash{}, got.TxHash)
	assert.Equal(t, []time.Duration{30 * time.Second}, clock.slept())
	require.Len(t, c.creates, 1)
	assert.Equal(t, testParams(), c.creates[0])
}

func TestDeployPollsWithBackoffUntilVisible(t *testing.T) {
	c := newFakeChain()
	c.visibleAfter = 3
	clock := newFakeClock()

	got, err := newTestDeployer(c, clock).Deploy(context.Background(), testNetwork(c), testParams(), true)
	require.NoError(t, err)

	assert.Equal(t, uint64(0), got.Index)
	assert.True(t, got.IsPut)
	assert.Equal(t, []time.Duration{30 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}, clock.slept())
}

func TestDeployBackoffIsCapped(t *testing.T) {
	c := newFakeChain()
	c.visibleAfter = 6
	clock := newFakeClock()

	_, err := newTestDeployer(c, clock).Deploy(context.Background(), testNetwork(c), testParams(), false)
	require.NoError(t, err)

	for _, d := range clock.slept()[1:] {
		assert.LessOrEqual(t, d, 15*time.Second)
	}
}

func TestDeployCountNotIncreasing(t *testing.T) {
	c := newFakeChain()
	c.dropCreate = true
	clock := newFakeClock()
	start := clock.Now()

	_, err := newTestDeployer(c, clock).Deploy(context.Background(), testNetwork(c), testParams(), false)
	require.ErrorIs(t, err, domain.ErrDeploymentVerification)
	assert.ErrorContains(t, err, "market count 0, want 1")
	assert.Equal(t, start.Add(DefaultOptions().MaxWait), clock.Now())
}

func TestDeployConcurrentCreationIsAmbiguous(t *testing.T) {
	c := newFakeChain()
	c.raceCreate = true
	clock := newFakeClock()

	_, err := newTestDeployer(c, clock).Deploy(context.Background(), testNetwork(c), testParams(), false)
	require.ErrorIs(t, err, domain.ErrDeploymentVerification)
	assert.ErrorContains(t, err, "from 0 to 2")
	assert.Len(t, clock.slept(), 1)
}

func TestDeployWaitsForCode(t *testing.T) {
	c := newFakeChain()
	c.codeless = true
	clock := newFakeClock()

	_, err := newTestDeployer(c, clock).Deploy(context.Background(), testNetwork(c), testParams(), false)
	require.ErrorIs(t, err, domain.ErrDeploymentVerification)
	assert.ErrorContains(t, err, "no code at")
}

func TestDeployNeedsInitialCount(t *testing.T) {
	c := newFakeChain()
	clock := newFakeClock()
	d := newTestDeployer(c, clock)

	c.countErr = errors.New("connection reset")
	_, err := d.Deploy(context.Background(), testNetwork(c), testParams(), false)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrDeploymentVerification)
	assert.Empty(t, c.log())
}

func TestDeployRejectedSkipsRecovery(t *testing.T) {
	c := newFakeChain()
	c.createErr = domain.ErrTransactionRejected
	clock := newFakeClock()

	_, err := newTestDeployer(c, clock).Deploy(context.Background(), testNetwork(c), testParams(), false)
	require.ErrorIs(t, err, domain.ErrTransactionRejected)
	assert.Empty(t, clock.slept())
	assert.Equal(t, []string{"createMarket"}, c.log())
}

func TestDeployTwiceYieldsDistinctMarkets(t *testing.T) {
	c := newFakeChain()
	d := newTestDeployer(c, newFakeClock())

	first, err := d.Deploy(context.Background(), testNetwork(c), testParams(), false)
	require.NoError(t, err)
	second, err := d.Deploy(context.Background(), testNetwork(c), testParams(), false)
	require.NoError(t, err)

	assert.NotEqual(t, first.Address, second.Address)
	assert.Equal(t, first.Index+1, second.Index)
}

func TestDeployHonorsCancellation(t *testing.T) {
	c := newFakeChain()
	c.dropCreate = true
	opts := DefaultOptions()
	d := NewDeployer(c, opts, blockingClock{}, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := d.Deploy(ctx, testNetwork(c), testParams(), false)
	require.ErrorIs(t, err, context.Canceled)
}

// blockingClock never fires.
type blockingClock struct{}

func (blockingClock) Now() time.Time                       { return time.Unix(0, 0) }
func (blockingClock) After(time.Duration) <-chan time.Time { return nil }

func TestOptionsNormalized(t *testing.T) {
	o := Options{SettleDelay: time.Minute, PollInterval: 0, MaxPollInterval: time.Millisecond, MaxWait: time.Second}.normalized()
	assert.Equal(t, 2*time.Second, o.PollInterval)
	assert.Equal(t, 2*time.Second, o.MaxPollInterval)
	assert.Equal(t, time.Minute, o.MaxWait)
}
