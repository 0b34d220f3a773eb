package domain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// FactoryContract is the on-chain options market factory. State-changing
// methods return only after the transaction is mined successfully.
type FactoryContract interface {
	Address() common.Address
	CreateMarket(ctx context.Context, params CompiledMarketParams, isPut bool) (*types.Receipt, error)
	NumMarkets(ctx context.Context) (*big.Int, error)
	MarketAt(ctx context.Context, index *big.Int) (common.Address, error)
}

// MarketContract exposes the owner-only controls of a deployed market.
type MarketContract interface {
	Address() common.Address
	Pause(ctx context.Context) (*types.Receipt, error)
	SetBalanceCap(ctx context.Context, cap *big.Int) (*types.Receipt, error)
	SetTotalSupplyCap(ctx context.Context, cap *big.Int) (*types.Receipt, error)
	SetDisputePeriod(ctx context.Context, seconds *big.Int) (*types.Receipt, error)
}

// Contracts binds contract addresses to callable contracts and exposes raw
// code lookups for verifying freshly created markets.
type Contracts interface {
	Factory(address common.Address) FactoryContract
	Market(address common.Address) MarketContract
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
}
