package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/alanyoungcy/optionsdeployer/internal/domain"
)

// Factory is a binding to the options market factory contract.
type Factory struct {
	address common.Address
	tx      *Transactor
}

var _ domain.FactoryContract = (*Factory)(nil)

// NewFactory binds the factory at address.
func NewFactory(address common.Address, tx *Transactor) *Factory {
	return &Factory{address: address, tx: tx}
}

// Address returns the factory address.
func (f *Factory) Address() common.Address { return f.address }

// CreateMarket submits createMarket and waits for it to be mined. The new
// market's address is not taken from the receipt; callers recover it from
// the factory's market list.
func (f *Factory) CreateMarket(ctx context.Context, p domain.CompiledMarketParams, isPut bool) (*types.Receipt, error) {
	data, err := factoryABI.Pack("createMarket",
		p.BaseToken,
		p.QuoteToken,
		p.Oracle,
		p.StrikePrices,
		big.NewInt(p.Expiry),
		isPut,
		p.TradingFee,
	)
	if err != nil {
		return nil, fmt.Errorf("chain: pack createMarket: %w", err)
	}
	return f.tx.Transact(ctx, f.address, data, "createMarket")
}

// NumMarkets returns how many markets the factory has created.
func (f *Factory) NumMarkets(ctx context.Context) (*big.Int, error) {
	out, err := f.call(ctx, "numMarkets")
	if err != nil {
		return nil, err
	}
	n, ok := out.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("chain: numMarkets: unexpected result %T", out)
	}
	return n, nil
}

// MarketAt returns the address of the market at index.
func (f *Factory) MarketAt(ctx context.Context, index *big.Int) (common.Address, error) {
	out, err := f.call(ctx, "markets", index)
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := out.(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("chain: markets(%s): unexpected result %T", index, out)
	}
	return addr, nil
}

// call runs a single-output view method and returns its decoded value.
func (f *Factory) call(ctx context.Context, method string, args ...any) (any, error) {
	data, err := factoryABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("chain: pack %s: %w", method, err)
	}
	raw, err := f.tx.Call(ctx, f.address, data)
	if err != nil {
		return nil, fmt.Errorf("chain: %s: %w", method, err)
	}
	out, err := factoryABI.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("chain: unpack %s: %w", method, err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("chain: %s: expected 1 result, got %d", method, len(out))
	}
	return out[0], nil
}
