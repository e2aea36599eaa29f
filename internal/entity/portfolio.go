package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// WeightedItem is a named asset with an arbitrary non-negative weight prior to
// normalization. The weight is either an intensity score from the AI ranking or
// a USD balance from a wallet lookup.
type WeightedItem struct {
	Name   string  `json:"name"`
	Symbol string  `json:"symbol,omitempty"`
	Weight float64 `json:"weight"`
}

// PortfolioItem is a normalized allocation entry. For any non-empty portfolio
// the percentages sum to exactly 100.
type PortfolioItem struct {
	Name       string `json:"name"`
	Symbol     string `json:"symbol,omitempty"`
	Percentage int    `json:"percentage"`
}

// Portfolio is the client-owned allocation state. It is replaced wholesale on
// each new clone or chat edit and deleted on explicit clear; the server only
// persists lookup history, never the live portfolio.
type Portfolio struct {
	Source string          `json:"source"`
	Items  []PortfolioItem `json:"items"`
}

// WalletToken is a single token position returned by a wallet lookup.
type WalletToken struct {
	Name       string  `json:"name"`
	Symbol     string  `json:"symbol"`
	Balance    float64 `json:"balance"`
	BalanceUSD float64 `json:"balanceUsd"`
	Percentage int     `json:"percentage"`
}

// CryptoLookupRecord is one entry of the personality lookup history.
type CryptoLookupRecord struct {
	ID          string          `json:"id"`
	PersonName  string          `json:"personName"`
	Investments []PortfolioItem `json:"investments"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// WalletLookupRecord is one entry of the wallet lookup history.
type WalletLookupRecord struct {
	ID        string        `json:"id"`
	Address   string        `json:"address"`
	Tokens    []WalletToken `json:"tokens"`
	CreatedAt time.Time     `json:"createdAt"`
}

// Buddy is a named contribution to the shared fund. Contribution carries two
// decimal places; total fund and per-buddy share are derived on read, never
// stored.
type Buddy struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Contribution decimal.Decimal `json:"contribution"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// BuddyShare is a buddy with its derived share of the total fund.
type BuddyShare struct {
	Buddy
	SharePercent int `json:"sharePercent"`
}

// BuddiesSummary is the read model of the buddies ledger.
type BuddiesSummary struct {
	Buddies   []BuddyShare    `json:"buddies"`
	TotalFund decimal.Decimal `json:"totalFund"`
}

// TokenAvailability reports whether a portfolio symbol resolves to a tradeable
// token on the DEX. Ephemeral, produced per deployment attempt.
type TokenAvailability struct {
	Symbol    string `json:"symbol"`
	Available bool   `json:"available"`
	Address   string `json:"address,omitempty"`
	Decimals  uint8  `json:"decimals,omitempty"`
	Name      string `json:"name,omitempty"`
}

// Pool is a yield pool candidate for pool-targeted deployment.
type Pool struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Chain      string  `json:"chain"`
	Project    string  `json:"project"`
	TVLUSD     float64 `json:"tvlUsd"`
	APR        float64 `json:"apr"`
	APRBase    float64 `json:"aprBase"`
	APRReward  float64 `json:"aprReward"`
	Stablecoin bool    `json:"stablecoin"`
	ILRisk     string  `json:"ilRisk"`
}

// ReportMetadata is the persisted NFT metadata snapshot. The stored JSON is
// served back by id and used as the token's off-chain pointer at mint time.
type ReportMetadata struct {
	ID            string    `json:"id"`
	WalletAddress string    `json:"walletAddress"`
	Metadata      []byte    `json:"-"`
	CreatedAt     time.Time `json:"createdAt"`
}
