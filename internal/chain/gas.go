package chain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// GasPolicy selects how transactions are priced. A nil Price means automatic
// estimation: EIP-1559 fees when the chain has a base fee, otherwise the
// node's suggested legacy gas price. A non-nil Price sends legacy
// transactions at exactly that price.
type GasPolicy struct {
	Price *big.Int // wei
}

// Auto reports whether the policy estimates prices from the node.
func (p GasPolicy) Auto() bool {
	return p.Price == nil
}

// String renders the policy the way it is configured.
func (p GasPolicy) String() string {
	if p.Auto() {
		return "auto"
	}
	return decimal.NewFromBigInt(p.Price, -9).String() + " gwei"
}

var unitExponents = map[string]int32{
	"wei":   0,
	"kwei":  3,
	"mwei":  6,
	"gwei":  9,
	"szabo": 12,
	"ether": 18,
	"eth":   18,
}

// ParseGasPolicy parses "auto" or an amount with an optional unit, such as
// "310 gwei", "310gwei", "0.5 ether" or "1000000000" (wei).
func ParseGasPolicy(s string) (GasPolicy, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "auto" {
		return GasPolicy{}, nil
	}

	// Longest suffix wins so "gwei" is not read as "wei".
	amount, unit := s, "wei"
	matched := 0
	for name := range unitExponents {
		if strings.HasSuffix(s, name) && len(name) > matched {
			amount, unit, matched = strings.TrimSpace(strings.TrimSuffix(s, name)), name, len(name)
		}
	}

	d, err := decimal.NewFromString(amount)
	if err != nil {
		return GasPolicy{}, fmt.Errorf("chain: invalid gas price %q: %w", s, err)
	}
	wei := d.Shift(unitExponents[unit])
	if !wei.IsPositive() || !wei.Equal(wei.Truncate(0)) {
		return GasPolicy{}, fmt.Errorf("chain: gas price %q must be a positive whole number of wei", s)
	}
	return GasPolicy{Price: wei.BigInt()}, nil
}
