package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/alanyoungcy/optionsdeployer/internal/domain"
)

// Market is a binding to the owner controls of a deployed options market.
type Market struct {
	address common.Address
	tx      *Transactor
}

var _ domain.MarketContract = (*Market)(nil)

// NewMarket binds the market at address.
func NewMarket(address common.Address, tx *Transactor) *Market {
	return &Market{address: address, tx: tx}
}

// Address returns the market address.
func (m *Market) Address() common.Address { return m.address }

// Pause halts trading on the market.
func (m *Market) Pause(ctx context.Context) (*types.Receipt, error) {
	return m.transact(ctx, "pause")
}

// SetBalanceCap sets the per-account LP share cap in collateral units.
func (m *Market) SetBalanceCap(ctx context.Context, cap *big.Int) (*types.Receipt, error) {
	return m.transact(ctx, "setBalanceCap", cap)
}

// SetTotalSupplyCap sets the total LP supply cap in collateral units.
func (m *Market) SetTotalSupplyCap(ctx context.Context, cap *big.Int) (*types.Receipt, error) {
	return m.transact(ctx, "setTotalSupplyCap", cap)
}

// SetDisputePeriod sets the settlement dispute window in seconds.
func (m *Market) SetDisputePeriod(ctx context.Context, seconds *big.Int) (*types.Receipt, error) {
	return m.transact(ctx, "setDisputePeriod", seconds)
}

func (m *Market) transact(ctx context.Context, method string, args ...any) (*types.Receipt, error) {
	data, err := marketABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("chain: pack %s: %w", method, err)
	}
	return m.tx.Transact(ctx, m.address, data, method)
}
