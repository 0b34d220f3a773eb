package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/optionsdeployer/internal/domain"
)

// Contracts hands out contract bindings that share one Transactor.
type Contracts struct {
	tx *Transactor
}

var _ domain.Contracts = (*Contracts)(nil)

// NewContracts creates a binding source over tx.
func NewContracts(tx *Transactor) *Contracts {
	return &Contracts{tx: tx}
}

// Factory binds the factory at address.
func (c *Contracts) Factory(address common.Address) domain.FactoryContract {
	return NewFactory(address, c.tx)
}

// Market binds the market at address.
func (c *Contracts) Market(address common.Address) domain.MarketContract {
	return NewMarket(address, c.tx)
}

// CodeAt returns the code deployed at account.
func (c *Contracts) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	return c.tx.Backend().CodeAt(ctx, account, blockNumber)
}
