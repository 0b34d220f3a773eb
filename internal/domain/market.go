package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// ScaleDecimals is the number of decimals of the on-chain fixed-point format.
const ScaleDecimals = 18

// Scale is the fixed-point multiplier (10^18) shared by every monetary
// conversion. Treat it as read-only.
var Scale = new(big.Int).Exp(big.NewInt(10), big.NewInt(ScaleDecimals), nil)

// MarketSpec is the deployer's intent for a single options market.
type MarketSpec struct {
	BaseSymbol   Symbol
	QuoteSymbol  Symbol
	StrikePrices []decimal.Decimal // must be strictly increasing
	Expiry       time.Time
	IsPut        bool
	TradingFee   decimal.Decimal // fraction, e.g. 0.01 for 1%
}

// Pair returns the oracle pair the market settles against.
func (s MarketSpec) Pair() Pair {
	return Pair{Base: s.BaseSymbol, Quote: s.QuoteSymbol}
}

// CapSymbol returns the token in which the market's caps are denominated:
// the quote token for puts and the base token for calls.
func (s MarketSpec) CapSymbol() Symbol {
	if s.IsPut {
		return s.QuoteSymbol
	}
	return s.BaseSymbol
}

// Kind returns "put" or "call".
func (s MarketSpec) Kind() string {
	return KindOf(s.IsPut)
}

// KindOf maps the put flag to its human-readable variant name.
func KindOf(isPut bool) string {
	if isPut {
		return "put"
	}
	return "call"
}

// CompiledMarketParams holds the on-chain ready arguments of a createMarket
// call.
type CompiledMarketParams struct {
	StrikePrices []*big.Int
	Expiry       int64 // unix seconds
	TradingFee   *big.Int
	Oracle       common.Address
	BaseToken    common.Address
	QuoteToken   common.Address
}

// MarketPlan is a fully resolved and compiled market variant, ready to be
// submitted.
type MarketPlan struct {
	Spec    MarketSpec
	Network ResolvedNetwork
	Params  CompiledMarketParams
}

// DeployedMarket is a market whose address has been confirmed on-chain.
type DeployedMarket struct {
	Address   common.Address
	IsPut     bool
	CapSymbol Symbol
	TxHash    common.Hash
	Index     uint64 // slot in the factory's market list
}

// RiskParameters are the post-deployment limits applied to every market.
// Caps are expressed in the token's native fixed-point denomination.
type RiskParameters struct {
	TVLCaps       map[Symbol]*big.Int
	LPCaps        map[Symbol]*big.Int
	DisputePeriod time.Duration
}
