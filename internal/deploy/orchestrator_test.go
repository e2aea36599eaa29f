package deploy

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"copyfolio/internal/entity"
)

type fakeResolver struct {
	unavailable map[string]bool
}

func (f *fakeResolver) ResolveToken(_ context.Context, symbol string) (entity.TokenAvailability, error) {
	if f.unavailable[symbol] {
		return entity.TokenAvailability{Symbol: symbol, Available: false}, nil
	}
	return entity.TokenAvailability{
		Symbol: symbol, Available: true,
		Address: "0x0000000000000000000000000000000000000001", Decimals: 18, Name: symbol,
	}, nil
}

// fakeBalance hands out successive balances, recording how often the balance
// was re-read.
type fakeBalance struct {
	balances []*big.Int
	reads    int
}

func (f *fakeBalance) SpendableBalance(context.Context) (*big.Int, error) {
	idx := f.reads
	if idx >= len(f.balances) {
		idx = len(f.balances) - 1
	}
	f.reads++
	return new(big.Int).Set(f.balances[idx]), nil
}

type fakeGas struct {
	cost *big.Int
	errs map[string]error
}

func (f *fakeGas) EstimateSwapCost(_ context.Context, plan SwapPlan) (*big.Int, error) {
	if err := f.errs[plan.TokenOutName]; err != nil {
		return nil, err
	}
	return new(big.Int).Set(f.cost), nil
}

type fakeRouter struct {
	plans []SwapPlan
	fn    func(plan SwapPlan) (string, error)
}

func (f *fakeRouter) ExecuteSwap(_ context.Context, plan SwapPlan) (string, error) {
	f.plans = append(f.plans, plan)
	return f.fn(plan)
}

func newTestOrchestrator(resolver *fakeResolver, balance *fakeBalance, gas *fakeGas, router *fakeRouter) *Orchestrator {
	return NewOrchestrator(resolver, balance, gas, router, nil, zap.NewNop())
}

func portfolio(pcts map[string]int) []entity.PortfolioItem {
	out := make([]entity.PortfolioItem, 0, len(pcts))
	for _, sym := range []string{"BTC", "ETH", "DOGE", "USDC"} {
		if pct, ok := pcts[sym]; ok {
			out = append(out, entity.PortfolioItem{Name: sym, Symbol: sym, Percentage: pct})
		}
	}
	return out
}

func TestDeployAbortsWhenAnyTokenUnavailable(t *testing.T) {
	resolver := &fakeResolver{unavailable: map[string]bool{"DOGE": true}}
	balance := &fakeBalance{balances: []*big.Int{big.NewInt(1_000_000)}}
	router := &fakeRouter{fn: func(SwapPlan) (string, error) { return "0xabc", nil }}
	o := newTestOrchestrator(resolver, balance, &fakeGas{cost: big.NewInt(10)}, router)

	summary, err := o.Deploy(context.Background(), portfolio(map[string]int{"ETH": 50, "DOGE": 50}))
	require.NoError(t, err)

	assert.True(t, summary.Halted)
	assert.Equal(t, 0, summary.Attempted)
	assert.Equal(t, []string{"DOGE"}, summary.Unavailable)
	assert.Empty(t, router.plans, "no swap may be submitted when availability fails")
}

func TestDeployHappyPathRereadsBalancePerAsset(t *testing.T) {
	resolver := &fakeResolver{}
	balance := &fakeBalance{balances: []*big.Int{big.NewInt(1000), big.NewInt(400)}}
	router := &fakeRouter{fn: func(SwapPlan) (string, error) { return "0xabc", nil }}
	o := newTestOrchestrator(resolver, balance, &fakeGas{cost: big.NewInt(100)}, router)

	summary, err := o.Deploy(context.Background(), portfolio(map[string]int{"BTC": 60, "ETH": 40}))
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Attempted)
	assert.Equal(t, 2, summary.Succeeded)
	assert.False(t, summary.Halted)
	assert.Equal(t, 2, balance.reads)

	// final spend = (balance - gasCost) * pct / totalPct
	require.Len(t, router.plans, 2)
	assert.Equal(t, big.NewInt(540), router.plans[0].AmountIn) // (1000-100)*60/100
	assert.Equal(t, big.NewInt(120), router.plans[1].AmountIn) // (400-100)*40/100
	assert.Equal(t, big.NewInt(1), router.plans[0].MinAmountOut)
}

func TestDeploySkipsAssetOnGasEstimationFailure(t *testing.T) {
	resolver := &fakeResolver{}
	balance := &fakeBalance{balances: []*big.Int{big.NewInt(1000)}}
	gas := &fakeGas{cost: big.NewInt(10), errs: map[string]error{"BTC": errors.New("no liquidity")}}
	router := &fakeRouter{fn: func(SwapPlan) (string, error) { return "0xabc", nil }}
	o := newTestOrchestrator(resolver, balance, gas, router)

	summary, err := o.Deploy(context.Background(), portfolio(map[string]int{"BTC": 50, "ETH": 50}))
	require.NoError(t, err)

	require.Len(t, summary.Results, 2)
	assert.Equal(t, StateSkipped, summary.Results[0].State)
	assert.Equal(t, StateConfirmed, summary.Results[1].State)
	assert.False(t, summary.Halted)
	assert.Equal(t, 1, summary.Attempted)
	assert.Equal(t, 1, summary.Succeeded)
}

func TestDeployHaltsWhenGasExceedsBalance(t *testing.T) {
	resolver := &fakeResolver{}
	// 20% margin over 900 is 1080, above the 1000 balance.
	balance := &fakeBalance{balances: []*big.Int{big.NewInt(1000)}}
	router := &fakeRouter{fn: func(SwapPlan) (string, error) { return "0xabc", nil }}
	o := newTestOrchestrator(resolver, balance, &fakeGas{cost: big.NewInt(900)}, router)

	summary, err := o.Deploy(context.Background(), portfolio(map[string]int{"BTC": 50, "ETH": 50}))
	require.NoError(t, err)

	assert.True(t, summary.Halted)
	assert.Equal(t, "insufficient balance for gas", summary.HaltReason)
	require.Len(t, summary.Results, 1, "remaining assets are not attempted after the halt")
	assert.Equal(t, StateSkipped, summary.Results[0].State)
	assert.Equal(t, 0, summary.Attempted)
}

func TestDeploySkipsZeroPreliminaryAmount(t *testing.T) {
	resolver := &fakeResolver{}
	// 1 wei at 50% rounds down to zero.
	balance := &fakeBalance{balances: []*big.Int{big.NewInt(1)}}
	router := &fakeRouter{fn: func(SwapPlan) (string, error) { return "0xabc", nil }}
	o := newTestOrchestrator(resolver, balance, &fakeGas{cost: big.NewInt(0)}, router)

	summary, err := o.Deploy(context.Background(), portfolio(map[string]int{"BTC": 50, "ETH": 50}))
	require.NoError(t, err)

	for _, res := range summary.Results {
		assert.Equal(t, StateSkipped, res.State)
	}
	assert.Empty(t, router.plans)
}

func TestDeployContinuesAfterSingleSwapFailure(t *testing.T) {
	resolver := &fakeResolver{}
	balance := &fakeBalance{balances: []*big.Int{big.NewInt(1000)}}
	router := &fakeRouter{fn: func(plan SwapPlan) (string, error) {
		if plan.TokenOutName == "BTC" {
			return "", errors.New("execution reverted")
		}
		return "0xdef", nil
	}}
	o := newTestOrchestrator(resolver, balance, &fakeGas{cost: big.NewInt(10)}, router)

	summary, err := o.Deploy(context.Background(), portfolio(map[string]int{"BTC": 50, "ETH": 50}))
	require.NoError(t, err)

	require.Len(t, summary.Results, 2)
	assert.Equal(t, StateFailed, summary.Results[0].State)
	assert.Equal(t, StateConfirmed, summary.Results[1].State)
	assert.Equal(t, 2, summary.Attempted)
	assert.Equal(t, 1, summary.Succeeded)
	assert.False(t, summary.Halted)
}

func TestDeployUserRejectionAbortsRun(t *testing.T) {
	resolver := &fakeResolver{}
	balance := &fakeBalance{balances: []*big.Int{big.NewInt(1000)}}
	router := &fakeRouter{fn: func(SwapPlan) (string, error) {
		return "", entity.NewError(entity.CodeUserRejected, "signature declined")
	}}
	o := newTestOrchestrator(resolver, balance, &fakeGas{cost: big.NewInt(10)}, router)

	summary, err := o.Deploy(context.Background(), portfolio(map[string]int{"BTC": 50, "ETH": 50}))
	require.NoError(t, err)

	assert.True(t, summary.Halted)
	assert.Equal(t, "rejected by user", summary.HaltReason)
	require.Len(t, summary.Results, 1)
	assert.Len(t, router.plans, 1, "no further submissions after a rejection")
}

func TestDeployToPoolRetriesFeeTiersInOrder(t *testing.T) {
	resolver := &fakeResolver{}
	balance := &fakeBalance{balances: []*big.Int{big.NewInt(1000)}}
	router := &fakeRouter{fn: func(plan SwapPlan) (string, error) {
		if plan.FeeTier == 500 {
			return "0xfee", nil
		}
		return "", errors.New("no pool at tier")
	}}
	o := newTestOrchestrator(resolver, balance, &fakeGas{cost: big.NewInt(10)}, router)

	summary, err := o.DeployToPool(context.Background(), portfolio(map[string]int{"BTC": 100}))
	require.NoError(t, err)

	require.Len(t, summary.Results, 1)
	assert.Equal(t, StateConfirmed, summary.Results[0].State)
	assert.Equal(t, int64(500), summary.Results[0].FeeTier)
	// tier 3000 tried first, then 500
	require.Len(t, router.plans, 2)
	assert.Equal(t, int64(3000), router.plans[0].FeeTier)
	assert.Equal(t, int64(500), router.plans[1].FeeTier)
	assert.Equal(t, 1, summary.Attempted)
	assert.Equal(t, 1, summary.Succeeded)
}

func TestDeployToPoolFailsAfterAllTiers(t *testing.T) {
	resolver := &fakeResolver{}
	balance := &fakeBalance{balances: []*big.Int{big.NewInt(1000)}}
	router := &fakeRouter{fn: func(SwapPlan) (string, error) { return "", errors.New("no pool") }}
	o := newTestOrchestrator(resolver, balance, &fakeGas{cost: big.NewInt(10)}, router)

	summary, err := o.DeployToPool(context.Background(), portfolio(map[string]int{"BTC": 100}))
	require.NoError(t, err)

	require.Len(t, summary.Results, 1)
	assert.Equal(t, StateFailed, summary.Results[0].State)
	assert.Len(t, router.plans, len(PoolFeeTiers))
}

func TestDeployToPoolUserRejectionStopsTierLadder(t *testing.T) {
	resolver := &fakeResolver{}
	balance := &fakeBalance{balances: []*big.Int{big.NewInt(1000)}}
	router := &fakeRouter{fn: func(plan SwapPlan) (string, error) {
		if plan.FeeTier == 3000 {
			return "", entity.NewError(entity.CodeUserRejected, "signature declined")
		}
		return "0xabc", nil
	}}
	o := newTestOrchestrator(resolver, balance, &fakeGas{cost: big.NewInt(10)}, router)

	summary, err := o.DeployToPool(context.Background(), portfolio(map[string]int{"BTC": 100}))
	require.NoError(t, err)

	assert.True(t, summary.Halted)
	assert.Len(t, router.plans, 1, "rejection must not fall through to further tiers")
}

func TestDeployRejectsEmptyPortfolio(t *testing.T) {
	o := newTestOrchestrator(&fakeResolver{}, &fakeBalance{balances: []*big.Int{big.NewInt(1)}}, &fakeGas{cost: big.NewInt(1)}, &fakeRouter{fn: func(SwapPlan) (string, error) { return "", nil }})
	_, err := o.Deploy(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, entity.HasCode(err, entity.CodeValidation))
}
