// Package deploy walks a portfolio and turns it into token swaps, one asset
// at a time. The loop is deliberately sequential: each swap changes the
// spendable balance the next one is computed from, so the balance is re-read
// fresh before every asset and never cached across iterations.
package deploy

import (
	"context"
	"math/big"
	"time"

	"copyfolio/internal/entity"
)

// SwapDeadline is how long a submitted swap stays valid.
const SwapDeadline = 1800 * time.Second

// gasSafetyMarginPct is applied on top of the estimated gas cost before
// deciding whether the run can afford to continue.
const gasSafetyMarginPct = 20

// PoolFeeTiers is the ordered ladder of fee tiers (in basis points) tried for
// pool-targeted deployment. The first tier that succeeds wins.
var PoolFeeTiers = []int64{3000, 500, 10000, 100}

// DefaultFeeTier is used for whole-portfolio deployment.
const DefaultFeeTier int64 = 3000

// SwapPlan describes a single swap submission.
type SwapPlan struct {
	TokenIn      string
	TokenOut     string
	TokenOutName string
	FeeTier      int64
	AmountIn     *big.Int
	MinAmountOut *big.Int
	Deadline     time.Time
}

// BalanceReader reports the spendable input balance at this instant.
type BalanceReader interface {
	SpendableBalance(ctx context.Context) (*big.Int, error)
}

// GasEstimator prices a prospective swap. Estimation failure (for example,
// insufficient pool liquidity) is an ordinary per-asset outcome, not a fault.
type GasEstimator interface {
	EstimateSwapCost(ctx context.Context, plan SwapPlan) (*big.Int, error)
}

// SwapRouter submits a swap and returns its transaction hash.
type SwapRouter interface {
	ExecuteSwap(ctx context.Context, plan SwapPlan) (string, error)
}

// TokenResolver answers whether a symbol is tradeable and with what address.
type TokenResolver interface {
	ResolveToken(ctx context.Context, symbol string) (entity.TokenAvailability, error)
}

// SlippagePolicy decides the minimum acceptable output for a swap.
type SlippagePolicy interface {
	MinAmountOut(plan SwapPlan) *big.Int
}

// UnitFloorPolicy accepts any non-zero output. This mirrors the product's
// original behavior; substitute a stricter policy to get real slippage
// protection.
type UnitFloorPolicy struct{}

// MinAmountOut implements the SlippagePolicy interface.
func (UnitFloorPolicy) MinAmountOut(SwapPlan) *big.Int { return big.NewInt(1) }

// AssetState is the terminal state of one asset in a run.
type AssetState string

const (
	StateConfirmed AssetState = "confirmed"
	StateSkipped   AssetState = "skipped"
	StateFailed    AssetState = "failed"
)

// AssetResult records the outcome of one asset.
type AssetResult struct {
	Symbol  string     `json:"symbol"`
	State   AssetState `json:"state"`
	TxHash  string     `json:"txHash,omitempty"`
	FeeTier int64      `json:"feeTier,omitempty"`
	Reason  string     `json:"reason,omitempty"`
}

// RunSummary is the final state of a deployment run.
type RunSummary struct {
	Attempted   int           `json:"attempted"`
	Succeeded   int           `json:"succeeded"`
	Halted      bool          `json:"halted"`
	HaltReason  string        `json:"haltReason,omitempty"`
	Unavailable []string      `json:"unavailable,omitempty"`
	Results     []AssetResult `json:"results"`
}
