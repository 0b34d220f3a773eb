package domain

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Network identifies a chain the factory is deployed on.
type Network string

const (
	NetworkMainnet Network = "mainnet"
	NetworkRinkeby Network = "rinkeby"
	NetworkTest    Network = "test"
)

// Symbol identifies a token.
type Symbol string

const (
	SymbolETH  Symbol = "ETH"
	SymbolUSDC Symbol = "USDC"
	SymbolWBTC Symbol = "WBTC"
)

// Pair is a base/quote combination priced by an oracle.
type Pair struct {
	Base  Symbol
	Quote Symbol
}

// String renders the pair as "BASE/QUOTE".
func (p Pair) String() string {
	return string(p.Base) + "/" + string(p.Quote)
}

// ParsePair parses "BASE/QUOTE". It returns false when the separator is
// missing or either side is empty.
func ParsePair(s string) (Pair, bool) {
	base, quote, ok := strings.Cut(s, "/")
	if !ok || base == "" || quote == "" {
		return Pair{}, false
	}
	return Pair{Base: Symbol(base), Quote: Symbol(quote)}, true
}

// NetworkConfig holds every address known for one network.
type NetworkConfig struct {
	Name    Network
	ChainID int64
	Factory common.Address
	Oracles map[Pair]common.Address
	Tokens  map[Symbol]common.Address
}

// ResolvedNetwork is the subset of a NetworkConfig needed to create one
// market for a specific pair.
type ResolvedNetwork struct {
	Network    Network
	ChainID    int64
	Factory    common.Address
	Oracle     common.Address
	BaseToken  common.Address
	QuoteToken common.Address
}
