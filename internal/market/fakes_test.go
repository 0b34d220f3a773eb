package market

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/alanyoungcy/optionsdeployer/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClock advances instantly whenever something waits on it.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.sleeps = append(c.sleeps, d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

func (c *fakeClock) slept() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

// fakeChain simulates a factory and the markets it creates. After each
// createMarket the new market only becomes visible after visibleAfter
// further count reads.
type fakeChain struct {
	mu sync.Mutex

	factory      common.Address
	markets      []common.Address
	code         map[common.Address][]byte
	hidden       int
	visibleAfter int
	createErr    error
	countErr     error
	// dropCreate makes createMarket succeed without adding a market.
	dropCreate bool
	// raceCreate adds an extra foreign market on each createMarket.
	raceCreate bool
	// codeless leaves new markets without code.
	codeless bool
	calls    []string
	failStep string
	creates  []domain.CompiledMarketParams
	txSeq    int
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		factory: common.HexToAddress("0xDc64a140Aa3E981100a9becA4E685f962f0cF6C9"),
		code:    make(map[common.Address][]byte),
	}
}

func (c *fakeChain) Factory(address common.Address) domain.FactoryContract {
	return &fakeFactory{chain: c, address: address}
}

func (c *fakeChain) Market(address common.Address) domain.MarketContract {
	return &fakeMarket{chain: c, address: address}
}

func (c *fakeChain) CodeAt(_ context.Context, account common.Address, _ *big.Int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.code[account], nil
}

func (c *fakeChain) receipt() *types.Receipt {
	c.txSeq++
	return &types.Receipt{
		Status: types.ReceiptStatusSuccessful,
		TxHash: common.BigToHash(big.NewInt(int64(c.txSeq))),
	}
}

func (c *fakeChain) newMarketAddress() common.Address {
	return common.BigToAddress(big.NewInt(int64(0x1000 + len(c.markets))))
}

func (c *fakeChain) log() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

type fakeFactory struct {
	chain   *fakeChain
	address common.Address
}

func (f *fakeFactory) Address() common.Address { return f.address }

func (f *fakeFactory) CreateMarket(_ context.Context, p domain.CompiledMarketParams, _ bool) (*types.Receipt, error) {
	c := f.chain
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, "createMarket")
	if c.createErr != nil {
		return nil, c.createErr
	}
	c.creates = append(c.creates, p)
	if !c.dropCreate {
		addr := c.newMarketAddress()
		c.markets = append(c.markets, addr)
		if !c.codeless {
			c.code[addr] = []byte{0x60, 0x80}
		}
		c.hidden = c.visibleAfter
	}
	if c.raceCreate {
		addr := c.newMarketAddress()
		c.markets = append(c.markets, addr)
		c.code[addr] = []byte{0x60, 0x80}
	}
	return c.receipt(), nil
}

func (f *fakeFactory) NumMarkets(context.Context) (*big.Int, error) {
	c := f.chain
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.countErr != nil {
		return nil, c.countErr
	}
	n := len(c.markets)
	if c.hidden > 0 {
		c.hidden--
		n--
	}
	return big.NewInt(int64(n)), nil
}

func (f *fakeFactory) MarketAt(_ context.Context, index *big.Int) (common.Address, error) {
	c := f.chain
	c.mu.Lock()
	defer c.mu.Unlock()
	i := index.Int64()
	if i < 0 || i >= int64(len(c.markets)) {
		return common.Address{}, errors.New("execution reverted")
	}
	return c.markets[i], nil
}

type fakeMarket struct {
	chain   *fakeChain
	address common.Address
}

func (m *fakeMarket) Address() common.Address { return m.address }

func (m *fakeMarket) record(call string) (*types.Receipt, error) {
	c := m.chain
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, call)
	if c.failStep != "" && strings.HasPrefix(call, c.failStep) {
		return nil, domain.ErrTransactionRejected
	}
	return c.receipt(), nil
}

func (m *fakeMarket) Pause(context.Context) (*types.Receipt, error) {
	return m.record("pause")
}

func (m *fakeMarket) SetBalanceCap(_ context.Context, cap *big.Int) (*types.Receipt, error) {
	return m.record("setBalanceCap(" + cap.String() + ")")
}

func (m *fakeMarket) SetTotalSupplyCap(_ context.Context, cap *big.Int) (*types.Receipt, error) {
	return m.record("setTotalSupplyCap(" + cap.String() + ")")
}

func (m *fakeMarket) SetDisputePeriod(_ context.Context, seconds *big.Int) (*types.Receipt, error) {
	return m.record("setDisputePeriod(" + seconds.String() + ")")
}
