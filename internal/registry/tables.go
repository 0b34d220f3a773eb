package registry

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/optionsdeployer/internal/domain"
)

var (
	ethUSDC  = domain.Pair{Base: domain.SymbolETH, Quote: domain.SymbolUSDC}
	wbtcUSDC = domain.Pair{Base: domain.SymbolWBTC, Quote: domain.SymbolUSDC}
)

// builtinNetworks lists the factories, oracles and tokens of every network
// the tool ships with. The test network is a local dev chain where the first
// dev account deployed USDC, WBTC, both oracles and the factory, in that
// order.
func builtinNetworks() []domain.NetworkConfig {
	return []domain.NetworkConfig{
		{
			Name:    domain.NetworkMainnet,
			ChainID: 1,
			Factory: common.HexToAddress("0xCDFE169dF3D64E2e43D88794A21048A52C742F2B"),
			Oracles: map[domain.Pair]common.Address{
				ethUSDC:  common.HexToAddress("0x3D52e452a284969b4110C04506cF22C18d7e7fF3"),
				wbtcUSDC: common.HexToAddress("0xB2a98Bd623038930d5d158EA6b20890ef4965A5a"),
			},
			Tokens: map[domain.Symbol]common.Address{
				domain.SymbolWBTC: common.HexToAddress("0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599"),
				domain.SymbolETH:  {},
				domain.SymbolUSDC: common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"),
			},
		},
		{
			Name:    domain.NetworkRinkeby,
			ChainID: 4,
			Factory: common.HexToAddress("0x2E3596e462279678044b03B1618A10564fb4f6E7"),
			Oracles: map[domain.Pair]common.Address{
				ethUSDC:  common.HexToAddress("0xD014CDc41f9AF7A6456c920aD17fFf14F136640F"),
				wbtcUSDC: common.HexToAddress("0x8C74d6a122e6951C769914b0c52879000B1129a8"),
			},
			Tokens: map[domain.Symbol]common.Address{
				domain.SymbolETH:  {},
				domain.SymbolUSDC: common.HexToAddress("0xE7d541c18D6aDb863F4C570065c57b75a53a64d3"),
				domain.SymbolWBTC: common.HexToAddress("0x4f21f715A0DF6c498560fB6EC387F74DdeB93560"),
			},
		},
		{
			Name:    domain.NetworkTest,
			ChainID: 31337,
			Factory: common.HexToAddress("0xDc64a140Aa3E981100a9becA4E685f962f0cF6C9"),
			Oracles: map[domain.Pair]common.Address{
				ethUSDC:  common.HexToAddress("0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0"),
				wbtcUSDC: common.HexToAddress("0xCf7Ed3AccA5a467e9e704C703E8D87F634fB0Fc9"),
			},
			Tokens: map[domain.Symbol]common.Address{
				domain.SymbolETH:  {},
				domain.SymbolUSDC: common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3"),
				domain.SymbolWBTC: common.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"),
			},
		},
	}
}

// Caps in each token's native denomination (ETH 18, USDC 6, WBTC 8 decimals).
func builtinTVLCaps() map[domain.Symbol]*big.Int {
	return map[domain.Symbol]*big.Int{
		domain.SymbolETH:  units(300, 18),
		domain.SymbolUSDC: units(300_000, 6),
		domain.SymbolWBTC: units(10, 8),
	}
}

func builtinLPCaps() map[domain.Symbol]*big.Int {
	return map[domain.Symbol]*big.Int{
		domain.SymbolETH:  units(50, 18),
		domain.SymbolUSDC: units(50_000, 6),
		domain.SymbolWBTC: units(2, 8),
	}
}

// units returns amount * 10^decimals.
func units(amount int64, decimals int64) *big.Int {
	exp := new(big.Int).Exp(big.NewInt(10), big.NewInt(decimals), nil)
	return exp.Mul(exp, big.NewInt(amount))
}
