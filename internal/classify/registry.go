package classify

import "strings"

// Known router contract entry points, keyed by lower-cased address.
var knownRouters = map[string]string{
	"0x7a250d5630b4cf539739df2c5dacb4c659f2488d": "uniswap_v2",
	"0xd9e1ce17f2641f24ae83637ab66a2cca9c378b9f": "sushiswap",
}

// Uniswap V2 style function selectors (first 4 bytes of the call payload).
const (
	selSwapExactETHForTokens    = "7ff36ab5" // swapExactETHForTokens(uint256,address[],address,uint256)
	selSwapExactTokensForETH    = "18cbafe5" // swapExactTokensForETH(uint256,uint256,address[],address,uint256)
	selSwapExactTokensForTokens = "38ed1739" // swapExactTokensForTokens(uint256,uint256,address[],address,uint256)
)

// RouterName returns the registry name for a router address, or "" when the
// address is not a known router. Matching is case-insensitive.
func RouterName(addr string) string {
	return knownRouters[strings.ToLower(addr)]
}
