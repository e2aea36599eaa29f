package service

import (
	"context"
	"sort"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"copyfolio/internal/client"
	"copyfolio/internal/entity"
)

const poolsCacheKey = "yieldPools"

// PoolService finds yield pools a portfolio's symbols could be deployed into.
type PoolService interface {
	PoolsForSymbols(ctx context.Context, symbols []string) ([]entity.Pool, error)
}

// poolServiceImpl implements the PoolService interface.
type poolServiceImpl struct {
	llama      client.DefiLlamaClient
	cache      *gocache.Cache
	minTVLUSD  float64
	maxResults int
	cacheTTL   time.Duration
	logger     *zap.Logger
}

// NewPoolService creates a new instance of poolServiceImpl.
func NewPoolService(llama client.DefiLlamaClient, cache *gocache.Cache, minTVLUSD float64, maxResults int, cacheTTL time.Duration, logger *zap.Logger) PoolService {
	return &poolServiceImpl{
		llama:      llama,
		cache:      cache,
		minTVLUSD:  minTVLUSD,
		maxResults: maxResults,
		cacheTTL:   cacheTTL,
		logger:     logger.Named("PoolService"),
	}
}

// PoolsForSymbols returns pools holding at least one of the given symbols,
// restricted to TVL above the configured floor, sorted descending by APR and
// capped at maxResults.
func (s *poolServiceImpl) PoolsForSymbols(ctx context.Context, symbols []string) ([]entity.Pool, error) {
	if len(symbols) == 0 {
		return nil, entity.NewError(entity.CodeValidation, "symbols are required")
	}

	wanted := make(map[string]struct{}, len(symbols))
	for _, sym := range symbols {
		upper := strings.ToUpper(strings.TrimSpace(sym))
		if upper != "" {
			wanted[upper] = struct{}{}
		}
	}
	if len(wanted) == 0 {
		return nil, entity.NewError(entity.CodeValidation, "symbols are required")
	}

	pools, err := s.allPools(ctx)
	if err != nil {
		return nil, err
	}

	matched := make([]entity.Pool, 0)
	for _, pool := range pools {
		if pool.TVLUSD <= s.minTVLUSD {
			continue
		}
		if !poolMatchesSymbols(pool.Symbol, wanted) {
			continue
		}
		matched = append(matched, entity.Pool{
			ID:         pool.Pool,
			Name:       pool.Symbol,
			Chain:      pool.Chain,
			Project:    pool.Project,
			TVLUSD:     pool.TVLUSD,
			APR:        pool.APY,
			APRBase:    pool.APYBase,
			APRReward:  pool.APYReward,
			Stablecoin: pool.Stablecoin,
			ILRisk:     pool.ILRisk,
		})
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].APR > matched[j].APR
	})
	if len(matched) > s.maxResults {
		matched = matched[:s.maxResults]
	}
	s.logger.Debug("Matched yield pools", zap.Int("matched", len(matched)), zap.Int("requestedSymbols", len(wanted)))
	return matched, nil
}

func (s *poolServiceImpl) allPools(ctx context.Context) ([]entity.YieldPool, error) {
	if cached, found := s.cache.Get(poolsCacheKey); found {
		return cached.([]entity.YieldPool), nil
	}
	pools, err := s.llama.GetPools(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.Set(poolsCacheKey, pools, s.cacheTTL)
	return pools, nil
}

// poolMatchesSymbols checks a pool symbol like "USDC-WETH" against the wanted
// set.
func poolMatchesSymbols(poolSymbol string, wanted map[string]struct{}) bool {
	for _, part := range strings.Split(strings.ToUpper(poolSymbol), "-") {
		if _, ok := wanted[strings.TrimSpace(part)]; ok {
			return true
		}
	}
	return false
}
