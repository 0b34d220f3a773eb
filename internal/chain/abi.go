package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const factoryABIJSON = `[
	{
		"type": "function",
		"name": "createMarket",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "baseToken", "type": "address"},
			{"name": "quoteToken", "type": "address"},
			{"name": "oracle", "type": "address"},
			{"name": "strikePrices", "type": "uint256[]"},
			{"name": "expiryTime", "type": "uint256"},
			{"name": "isPut", "type": "bool"},
			{"name": "tradingFee", "type": "uint256"}
		],
		"outputs": [{"name": "", "type": "address"}]
	},
	{
		"type": "function",
		"name": "numMarkets",
		"stateMutability": "view",
		"inputs": [],
		"outputs": [{"name": "", "type": "uint256"}]
	},
	{
		"type": "function",
		"name": "markets",
		"stateMutability": "view",
		"inputs": [{"name": "", "type": "uint256"}],
		"outputs": [{"name": "", "type": "address"}]
	}
]`

const marketABIJSON = `[
	{"type": "function", "name": "pause", "stateMutability": "nonpayable", "inputs": [], "outputs": []},
	{"type": "function", "name": "setBalanceCap", "stateMutability": "nonpayable",
	 "inputs": [{"name": "_balanceCap", "type": "uint256"}], "outputs": []},
	{"type": "function", "name": "setTotalSupplyCap", "stateMutability": "nonpayable",
	 "inputs": [{"name": "_totalSupplyCap", "type": "uint256"}], "outputs": []},
	{"type": "function", "name": "setDisputePeriod", "stateMutability": "nonpayable",
	 "inputs": [{"name": "_disputePeriod", "type": "uint256"}], "outputs": []}
]`

var (
	factoryABI = mustParseABI(factoryABIJSON)
	marketABI  = mustParseABI(marketABIJSON)
)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic("chain: parse abi: " + err.Error())
	}
	return parsed
}
