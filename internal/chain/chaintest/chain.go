// Package chaintest provides an in-memory options factory and market set for
// tests of code that deploys and configures markets.
package chaintest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/alanyoungcy/optionsdeployer/internal/domain"
)

// Tx is one mined state-changing call.
type Tx struct {
	To     common.Address
	Method string
	Args   []any
}

// Chain is an in-memory chain holding factories and the markets they create.
// Every mined transaction costs GasCost wei from the deployer balance.
type Chain struct {
	mu sync.Mutex

	chainID   *big.Int
	balance   *big.Int
	gasCost   *big.Int
	factories map[common.Address][]common.Address
	code      map[common.Address][]byte
	paused    map[common.Address]bool
	txs       []Tx
	seq       int64

	// FailMethod makes the named method fail with ErrTransactionRejected.
	FailMethod string
}

// New creates a chain with a single factory deployed at factory.
func New(chainID int64, factory common.Address) *Chain {
	c := &Chain{
		chainID:   big.NewInt(chainID),
		balance:   new(big.Int).Mul(big.NewInt(10), big.NewInt(1e18)),
		gasCost:   big.NewInt(1e15),
		factories: map[common.Address][]common.Address{factory: nil},
		code:      map[common.Address][]byte{factory: {0x60, 0x80}},
		paused:    make(map[common.Address]bool),
	}
	return c
}

// SetBalance sets the deployer balance in wei.
func (c *Chain) SetBalance(wei *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balance = new(big.Int).Set(wei)
}

// Txs returns the mined transactions in order.
func (c *Chain) Txs() []Tx {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Tx(nil), c.txs...)
}

// Methods returns the method names of the mined transactions in order.
func (c *Chain) Methods() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.txs))
	for i, tx := range c.txs {
		out[i] = tx.Method
	}
	return out
}

// Paused reports whether pause was called on market.
func (c *Chain) Paused(market common.Address) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused[market]
}

// ChainID returns the chain id.
func (c *Chain) ChainID(context.Context) (*big.Int, error) {
	return new(big.Int).Set(c.chainID), nil
}

// BalanceAt returns the deployer balance for any account.
func (c *Chain) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return new(big.Int).Set(c.balance), nil
}

// CodeAt returns the code stored at account.
func (c *Chain) CodeAt(_ context.Context, account common.Address, _ *big.Int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.code[account], nil
}

// Factory binds the factory at address.
func (c *Chain) Factory(address common.Address) domain.FactoryContract {
	return &factory{chain: c, address: address}
}

// Market binds the market at address.
func (c *Chain) Market(address common.Address) domain.MarketContract {
	return &market{chain: c, address: address}
}

var _ domain.Contracts = (*Chain)(nil)

// mine records a transaction. The caller holds c.mu.
func (c *Chain) mine(to common.Address, method string, args ...any) (*types.Receipt, error) {
	if c.FailMethod == method {
		return nil, fmt.Errorf("%w: %s reverted", domain.ErrTransactionRejected, method)
	}
	c.seq++
	c.balance.Sub(c.balance, c.gasCost)
	c.txs = append(c.txs, Tx{To: to, Method: method, Args: args})
	return &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      common.BigToHash(big.NewInt(c.seq)),
		BlockNumber: big.NewInt(c.seq),
	}, nil
}

type factory struct {
	chain   *Chain
	address common.Address
}

func (f *factory) Address() common.Address { return f.address }

func (f *factory) CreateMarket(_ context.Context, p domain.CompiledMarketParams, isPut bool) (*types.Receipt, error) {
	c := f.chain
	c.mu.Lock()
	defer c.mu.Unlock()
	markets, ok := c.factories[f.address]
	if !ok {
		return nil, fmt.Errorf("%w: no factory at %s", domain.ErrTransactionRejected, f.address.Hex())
	}
	receipt, err := c.mine(f.address, "createMarket", p, isPut)
	if err != nil {
		return nil, err
	}
	addr := common.BigToAddress(big.NewInt(0x10000 + c.seq))
	c.factories[f.address] = append(markets, addr)
	c.code[addr] = []byte{0x60, 0x80}
	return receipt, nil
}

func (f *factory) NumMarkets(context.Context) (*big.Int, error) {
	c := f.chain
	c.mu.Lock()
	defer c.mu.Unlock()
	return big.NewInt(int64(len(c.factories[f.address]))), nil
}

func (f *factory) MarketAt(_ context.Context, index *big.Int) (common.Address, error) {
	c := f.chain
	c.mu.Lock()
	defer c.mu.Unlock()
	markets := c.factories[f.address]
	if !index.IsInt64() || index.Int64() < 0 || index.Int64() >= int64(len(markets)) {
		return common.Address{}, errors.New("execution reverted")
	}
	return markets[index.Int64()], nil
}

type market struct {
	chain   *Chain
	address common.Address
}

func (m *market) Address() common.Address { return m.address }

func (m *market) Pause(context.Context) (*types.Receipt, error) {
	m.chain.mu.Lock()
	defer m.chain.mu.Unlock()
	r, err := m.chain.mine(m.address, "pause")
	if err == nil {
		m.chain.paused[m.address] = true
	}
	return r, err
}

func (m *market) SetBalanceCap(_ context.Context, cap *big.Int) (*types.Receipt, error) {
	m.chain.mu.Lock()
	defer m.chain.mu.Unlock()
	return m.chain.mine(m.address, "setBalanceCap", cap)
}

func (m *market) SetTotalSupplyCap(_ context.Context, cap *big.Int) (*types.Receipt, error) {
	m.chain.mu.Lock()
	defer m.chain.mu.Unlock()
	return m.chain.mine(m.address, "setTotalSupplyCap", cap)
}

func (m *market) SetDisputePeriod(_ context.Context, seconds *big.Int) (*types.Receipt, error) {
	m.chain.mu.Lock()
	defer m.chain.mu.Unlock()
	return m.chain.mine(m.address, "setDisputePeriod", seconds)
}
