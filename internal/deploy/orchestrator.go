package deploy

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"copyfolio/internal/entity"
	"copyfolio/internal/pkg/metrics"
)

// Orchestrator runs a deployment over a portfolio. It is not safe for
// concurrent runs against the same balance source.
type Orchestrator struct {
	tokens   TokenResolver
	balance  BalanceReader
	gas      GasEstimator
	router   SwapRouter
	slippage SlippagePolicy
	logger   *zap.Logger
	now      func() time.Time
}

// NewOrchestrator creates a new Orchestrator. A nil slippage policy defaults
// to the non-zero-output floor.
func NewOrchestrator(tokens TokenResolver, balance BalanceReader, gas GasEstimator, router SwapRouter, slippage SlippagePolicy, logger *zap.Logger) *Orchestrator {
	if slippage == nil {
		slippage = UnitFloorPolicy{}
	}
	return &Orchestrator{
		tokens:   tokens,
		balance:  balance,
		gas:      gas,
		router:   router,
		slippage: slippage,
		logger:   logger.Named("Orchestrator"),
		now:      time.Now,
	}
}

// Deploy runs a whole-portfolio deployment on the default fee tier.
func (o *Orchestrator) Deploy(ctx context.Context, items []entity.PortfolioItem) (*RunSummary, error) {
	return o.run(ctx, items, []int64{DefaultFeeTier})
}

// DeployToPool runs a pool-targeted deployment, retrying each swap across the
// fee tier ladder and stopping at the first tier that succeeds.
func (o *Orchestrator) DeployToPool(ctx context.Context, items []entity.PortfolioItem) (*RunSummary, error) {
	return o.run(ctx, items, PoolFeeTiers)
}

func (o *Orchestrator) run(ctx context.Context, items []entity.PortfolioItem, feeTiers []int64) (*RunSummary, error) {
	if len(items) == 0 {
		return nil, entity.NewError(entity.CodeValidation, "portfolio is empty")
	}

	summary := &RunSummary{Results: make([]AssetResult, 0, len(items))}

	// Availability gate: all-or-nothing, before any funds move.
	resolved := make([]entity.TokenAvailability, len(items))
	for i, item := range items {
		avail, err := o.tokens.ResolveToken(ctx, item.Symbol)
		if err != nil {
			return nil, err
		}
		if !avail.Available {
			summary.Unavailable = append(summary.Unavailable, avail.Symbol)
		}
		resolved[i] = avail
	}
	if len(summary.Unavailable) > 0 {
		o.logger.Warn("Aborting deployment, tokens unavailable on the DEX",
			zap.Strings("symbols", summary.Unavailable))
		summary.Halted = true
		summary.HaltReason = "tokens unavailable"
		return summary, nil
	}

	totalPct := 0
	for _, item := range items {
		totalPct += item.Percentage
	}
	if totalPct <= 0 {
		return nil, entity.NewError(entity.CodeValidation, "portfolio percentages must be positive")
	}

	for i, item := range items {
		result, halt := o.deployAsset(ctx, item, resolved[i], totalPct, feeTiers, summary)
		summary.Results = append(summary.Results, result)
		if halt {
			break
		}
	}
	o.logger.Info("Deployment run finished",
		zap.Int("attempted", summary.Attempted),
		zap.Int("succeeded", summary.Succeeded),
		zap.Bool("halted", summary.Halted))
	return summary, nil
}

// deployAsset walks one asset through EstimatingGas, GasSufficiencyCheck and
// Swapping. The returned halt flag stops the run (insufficient gas or a
// user-rejected signature); any other failure only settles this asset.
func (o *Orchestrator) deployAsset(ctx context.Context, item entity.PortfolioItem, token entity.TokenAvailability, totalPct int, feeTiers []int64, summary *RunSummary) (AssetResult, bool) {
	log := o.logger.With(zap.String("symbol", item.Symbol), zap.Int("percentage", item.Percentage))

	// Prior swaps changed the balance; read it fresh.
	balance, err := o.balance.SpendableBalance(ctx)
	if err != nil {
		metrics.SwapsTotal.WithLabelValues(string(StateFailed)).Inc()
		return AssetResult{Symbol: item.Symbol, State: StateFailed, Reason: fmt.Sprintf("balance read failed: %v", err)}, false
	}

	preliminary := shareOf(balance, item.Percentage, totalPct)
	if preliminary.Sign() == 0 {
		log.Info("Skipping asset, preliminary amount rounds to zero")
		metrics.SwapsTotal.WithLabelValues(string(StateSkipped)).Inc()
		return AssetResult{Symbol: item.Symbol, State: StateSkipped, Reason: "amount rounds to zero"}, false
	}

	plan := SwapPlan{
		TokenOut:     token.Address,
		TokenOutName: token.Name,
		FeeTier:      feeTiers[0],
		AmountIn:     preliminary,
		Deadline:     o.now().Add(SwapDeadline),
	}

	gasCost, err := o.gas.EstimateSwapCost(ctx, plan)
	if err != nil {
		// Estimation failure (e.g. no liquidity) skips this asset only.
		log.Warn("Gas estimation failed, skipping asset", zap.Error(err))
		metrics.SwapsTotal.WithLabelValues(string(StateSkipped)).Inc()
		return AssetResult{Symbol: item.Symbol, State: StateSkipped, Reason: fmt.Sprintf("gas estimation failed: %v", err)}, false
	}

	adjusted := new(big.Int).Mul(gasCost, big.NewInt(100+gasSafetyMarginPct))
	adjusted.Div(adjusted, big.NewInt(100))
	if adjusted.Cmp(balance) >= 0 {
		// The single run-level cutoff: the balance cannot cover gas for
		// anything further.
		log.Warn("Margin-adjusted gas cost exceeds balance, halting run",
			zap.String("gasCost", gasCost.String()),
			zap.String("balance", balance.String()))
		summary.Halted = true
		summary.HaltReason = "insufficient balance for gas"
		metrics.SwapsTotal.WithLabelValues(string(StateSkipped)).Inc()
		return AssetResult{Symbol: item.Symbol, State: StateSkipped, Reason: "insufficient balance for gas"}, true
	}

	final := shareOf(new(big.Int).Sub(balance, gasCost), item.Percentage, totalPct)
	if final.Sign() == 0 {
		log.Info("Skipping asset, final amount rounds to zero")
		metrics.SwapsTotal.WithLabelValues(string(StateSkipped)).Inc()
		return AssetResult{Symbol: item.Symbol, State: StateSkipped, Reason: "amount rounds to zero"}, false
	}

	plan.AmountIn = final
	plan.MinAmountOut = o.slippage.MinAmountOut(plan)

	summary.Attempted++
	var lastErr error
	for _, tier := range feeTiers {
		plan.FeeTier = tier
		txHash, err := o.router.ExecuteSwap(ctx, plan)
		if err == nil {
			log.Info("Swap confirmed", zap.String("txHash", txHash), zap.Int64("feeTier", tier))
			summary.Succeeded++
			metrics.SwapsTotal.WithLabelValues(string(StateConfirmed)).Inc()
			return AssetResult{Symbol: item.Symbol, State: StateConfirmed, TxHash: txHash, FeeTier: tier}, false
		}
		lastErr = err
		if entity.HasCode(err, entity.CodeUserRejected) {
			// A declined signature aborts without trying further tiers.
			log.Info("Swap rejected by user, aborting run")
			summary.Halted = true
			summary.HaltReason = "rejected by user"
			metrics.SwapsTotal.WithLabelValues(string(StateFailed)).Inc()
			return AssetResult{Symbol: item.Symbol, State: StateFailed, FeeTier: tier, Reason: "rejected by user"}, true
		}
		log.Warn("Swap failed", zap.Int64("feeTier", tier), zap.Error(err))
	}

	metrics.SwapsTotal.WithLabelValues(string(StateFailed)).Inc()
	return AssetResult{Symbol: item.Symbol, State: StateFailed, FeeTier: plan.FeeTier, Reason: fmt.Sprintf("swap failed: %v", lastErr)}, false
}

// shareOf computes amount * pct / totalPct without overflow.
func shareOf(amount *big.Int, pct, totalPct int) *big.Int {
	out := new(big.Int).Mul(amount, big.NewInt(int64(pct)))
	return out.Div(out, big.NewInt(int64(totalPct)))
}
