// Package registry resolves network-specific contract addresses and risk
// caps from static lookup tables.
package registry

import (
	"fmt"
	"maps"
	"math/big"
	"slices"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/optionsdeployer/internal/domain"
)

// Registry is an immutable set of network tables and cap tables. Every
// method returns copies, so callers cannot mutate the registry.
type Registry struct {
	networks map[domain.Network]domain.NetworkConfig
	tvlCaps  map[domain.Symbol]*big.Int
	lpCaps   map[domain.Symbol]*big.Int
}

// Override adds a network or replaces individual entries of an existing one.
// Empty fields leave the existing value untouched. Addresses are hex strings.
type Override struct {
	Network domain.Network
	ChainID int64
	Factory string
	Oracles map[string]string // "BASE/QUOTE" -> address
	Tokens  map[string]string // symbol -> address
}

// Default returns the registry built into the binary.
func Default() *Registry {
	r := &Registry{
		networks: make(map[domain.Network]domain.NetworkConfig),
		tvlCaps:  builtinTVLCaps(),
		lpCaps:   builtinLPCaps(),
	}
	for _, n := range builtinNetworks() {
		r.networks[n.Name] = n
	}
	return r
}

// WithOverrides returns a copy of r with the overrides applied. A malformed
// address or pair is reported as a configuration error.
func (r *Registry) WithOverrides(overrides ...Override) (*Registry, error) {
	out := r.clone()
	for _, o := range overrides {
		if o.Network == "" {
			return nil, fmt.Errorf("registry: %w: override without network name", domain.ErrConfiguration)
		}
		n, ok := out.networks[o.Network]
		if !ok {
			n = domain.NetworkConfig{
				Name:    o.Network,
				Oracles: make(map[domain.Pair]common.Address),
				Tokens:  make(map[domain.Symbol]common.Address),
			}
		}
		if n.Oracles == nil {
			n.Oracles = make(map[domain.Pair]common.Address)
		}
		if n.Tokens == nil {
			n.Tokens = make(map[domain.Symbol]common.Address)
		}
		if o.ChainID != 0 {
			n.ChainID = o.ChainID
		}
		if o.Factory != "" {
			addr, err := parseAddress(o.Factory)
			if err != nil {
				return nil, fmt.Errorf("registry: %s factory: %w", o.Network, err)
			}
			n.Factory = addr
		}
		for key, hex := range o.Oracles {
			pair, ok := domain.ParsePair(strings.ToUpper(key))
			if !ok {
				return nil, fmt.Errorf("registry: %w: %s: malformed pair %q", domain.ErrConfiguration, o.Network, key)
			}
			addr, err := parseAddress(hex)
			if err != nil {
				return nil, fmt.Errorf("registry: %s oracle %s: %w", o.Network, key, err)
			}
			n.Oracles[pair] = addr
		}
		for sym, hex := range o.Tokens {
			addr, err := parseAddress(hex)
			if err != nil {
				return nil, fmt.Errorf("registry: %s token %s: %w", o.Network, sym, err)
			}
			n.Tokens[domain.Symbol(strings.ToUpper(sym))] = addr
		}
		out.networks[o.Network] = n
	}
	return out, nil
}

// WithCaps returns a copy of r whose cap tables are extended with the given
// entries. Nil maps are ignored.
func (r *Registry) WithCaps(tvl, lp map[domain.Symbol]*big.Int) *Registry {
	out := r.clone()
	for sym, v := range tvl {
		out.tvlCaps[sym] = new(big.Int).Set(v)
	}
	for sym, v := range lp {
		out.lpCaps[sym] = new(big.Int).Set(v)
	}
	return out
}

// Network returns a copy of the full configuration for name.
func (r *Registry) Network(name domain.Network) (domain.NetworkConfig, error) {
	n, ok := r.networks[name]
	if !ok {
		return domain.NetworkConfig{}, r.unknownNetwork(name)
	}
	n.Oracles = maps.Clone(n.Oracles)
	n.Tokens = maps.Clone(n.Tokens)
	return n, nil
}

// Networks returns the names of every known network, sorted.
func (r *Registry) Networks() []domain.Network {
	names := slices.Collect(maps.Keys(r.networks))
	slices.Sort(names)
	return names
}

func (r *Registry) unknownNetwork(name domain.Network) error {
	known := make([]string, 0, len(r.networks))
	for _, n := range r.Networks() {
		known = append(known, string(n))
	}
	return fmt.Errorf("registry: %w: unknown network %q (known: %s)",
		domain.ErrConfiguration, name, strings.Join(known, ", "))
}

// Resolve returns the factory, oracle and token addresses needed to create a
// base/quote market on network. It fails with domain.ErrConfiguration when
// any of them is missing.
func (r *Registry) Resolve(network domain.Network, base, quote domain.Symbol) (domain.ResolvedNetwork, error) {
	n, ok := r.networks[network]
	if !ok {
		return domain.ResolvedNetwork{}, r.unknownNetwork(network)
	}
	if n.Factory == (common.Address{}) {
		return domain.ResolvedNetwork{}, fmt.Errorf("registry: %w: no factory on %s", domain.ErrConfiguration, network)
	}

	pair := domain.Pair{Base: base, Quote: quote}
	oracle, ok := n.Oracles[pair]
	if !ok {
		return domain.ResolvedNetwork{}, fmt.Errorf("registry: %w: no oracle for %s on %s", domain.ErrConfiguration, pair, network)
	}
	// The zero address is a valid token entry (native ETH), so presence is
	// checked rather than the value.
	baseToken, ok := n.Tokens[base]
	if !ok {
		return domain.ResolvedNetwork{}, fmt.Errorf("registry: %w: no %s token on %s", domain.ErrConfiguration, base, network)
	}
	quoteToken, ok := n.Tokens[quote]
	if !ok {
		return domain.ResolvedNetwork{}, fmt.Errorf("registry: %w: no %s token on %s", domain.ErrConfiguration, quote, network)
	}

	return domain.ResolvedNetwork{
		Network:    network,
		ChainID:    n.ChainID,
		Factory:    n.Factory,
		Oracle:     oracle,
		BaseToken:  baseToken,
		QuoteToken: quoteToken,
	}, nil
}

// Risk returns the cap tables together with the given dispute period.
func (r *Registry) Risk(disputePeriod time.Duration) domain.RiskParameters {
	rp := domain.RiskParameters{
		TVLCaps:       make(map[domain.Symbol]*big.Int, len(r.tvlCaps)),
		LPCaps:        make(map[domain.Symbol]*big.Int, len(r.lpCaps)),
		DisputePeriod: disputePeriod,
	}
	for sym, v := range r.tvlCaps {
		rp.TVLCaps[sym] = new(big.Int).Set(v)
	}
	for sym, v := range r.lpCaps {
		rp.LPCaps[sym] = new(big.Int).Set(v)
	}
	return rp
}

func (r *Registry) clone() *Registry {
	out := &Registry{
		networks: make(map[domain.Network]domain.NetworkConfig, len(r.networks)),
		tvlCaps:  make(map[domain.Symbol]*big.Int, len(r.tvlCaps)),
		lpCaps:   make(map[domain.Symbol]*big.Int, len(r.lpCaps)),
	}
	for name, n := range r.networks {
		n.Oracles = maps.Clone(n.Oracles)
		n.Tokens = maps.Clone(n.Tokens)
		out.networks[name] = n
	}
	for sym, v := range r.tvlCaps {
		out.tvlCaps[sym] = new(big.Int).Set(v)
	}
	for sym, v := range r.lpCaps {
		out.lpCaps[sym] = new(big.Int).Set(v)
	}
	return out
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: invalid address %q", domain.ErrConfiguration, s)
	}
	return common.HexToAddress(s), nil
}
