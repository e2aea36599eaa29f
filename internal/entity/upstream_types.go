package entity

// AddressInfo is the Ethplorer getAddressInfo response. ETH and each ERC-20
// position arrive with a USD rate attached, which is what wallet lookups rank
// by.
type AddressInfo struct {
	Address string         `json:"address"`
	ETH     ETHInfo        `json:"ETH"`
	Tokens  []TokenHolding `json:"tokens"`
}

// ETHInfo is the native balance section of an Ethplorer address response.
type ETHInfo struct {
	Balance float64    `json:"balance"`
	Price   TokenPrice `json:"price"`
}

// TokenHolding is one ERC-20 position of an address.
type TokenHolding struct {
	TokenInfo  TokenInfo `json:"tokenInfo"`
	Balance    float64   `json:"balance"`
	RawBalance string    `json:"rawBalance"`
}

// TokenInfo describes the token behind a holding.
type TokenInfo struct {
	Address  string      `json:"address"`
	Name     string      `json:"name"`
	Symbol   string      `json:"symbol"`
	Decimals interface{} `json:"decimals"` // Ethplorer returns this as string or number depending on the token
	Price    interface{} `json:"price"`    // false when unpriced, otherwise a TokenPrice object
}

// TokenPrice is the USD quote attached to a holding.
type TokenPrice struct {
	Rate     float64 `json:"rate"`
	Currency string  `json:"currency"`
}

// TokenListEntry is one token of a standard token list (tokens.uniswap.org).
type TokenListEntry struct {
	ChainID  int64  `json:"chainId"`
	Address  string `json:"address"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
	LogoURI  string `json:"logoURI"`
}

// TokenList is the wrapper object of a standard token list document.
type TokenList struct {
	Name   string           `json:"name"`
	Tokens []TokenListEntry `json:"tokens"`
}

// YieldPool is one pool of the DeFiLlama yields response.
type YieldPool struct {
	Pool       string  `json:"pool"`
	Chain      string  `json:"chain"`
	Project    string  `json:"project"`
	Symbol     string  `json:"symbol"`
	TVLUSD     float64 `json:"tvlUsd"`
	APY        float64 `json:"apy"`
	APYBase    float64 `json:"apyBase"`
	APYReward  float64 `json:"apyReward"`
	Stablecoin bool    `json:"stablecoin"`
	ILRisk     string  `json:"ilRisk"`
}

// YieldPoolsResponse is the DeFiLlama /pools envelope.
type YieldPoolsResponse struct {
	Status string      `json:"status"`
	Data   []YieldPool `json:"data"`
}
