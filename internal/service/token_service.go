package service

import (
	"context"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"copyfolio/internal/client"
	"copyfolio/internal/entity"
)

const tokenListCacheKey = "tokenList"

// wethMainnet backs ETH entries: the router trades the wrapped token.
const wethMainnet = "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"

// TokenService resolves portfolio symbols against the DEX token list.
type TokenService interface {
	CheckTokens(ctx context.Context, symbols []string) ([]entity.TokenAvailability, error)
	ResolveToken(ctx context.Context, symbol string) (entity.TokenAvailability, error)
}

// tokenServiceImpl implements the TokenService interface.
type tokenServiceImpl struct {
	tokenList client.TokenListClient
	cache     *gocache.Cache
	chainID   int64
	cacheTTL  time.Duration
	logger    *zap.Logger
}

// NewTokenService creates a new instance of tokenServiceImpl.
func NewTokenService(tokenList client.TokenListClient, cache *gocache.Cache, chainID int64, cacheTTL time.Duration, logger *zap.Logger) TokenService {
	return &tokenServiceImpl{
		tokenList: tokenList,
		cache:     cache,
		chainID:   chainID,
		cacheTTL:  cacheTTL,
		logger:    logger.Named("TokenService"),
	}
}

// CheckTokens resolves every symbol, marking the ones absent from the token
// list as unavailable. The result is ephemeral and never persisted.
func (s *tokenServiceImpl) CheckTokens(ctx context.Context, symbols []string) ([]entity.TokenAvailability, error) {
	if len(symbols) == 0 {
		return nil, entity.NewError(entity.CodeValidation, "symbols are required")
	}

	index, err := s.symbolIndex(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]entity.TokenAvailability, 0, len(symbols))
	for _, symbol := range symbols {
		out = append(out, resolveFromIndex(index, symbol))
	}
	return out, nil
}

// ResolveToken resolves a single symbol; used by the deployment availability
// gate.
func (s *tokenServiceImpl) ResolveToken(ctx context.Context, symbol string) (entity.TokenAvailability, error) {
	index, err := s.symbolIndex(ctx)
	if err != nil {
		return entity.TokenAvailability{}, err
	}
	return resolveFromIndex(index, symbol), nil
}

// symbolIndex returns the token list keyed by upper-case symbol, fetching and
// caching the upstream document on miss.
func (s *tokenServiceImpl) symbolIndex(ctx context.Context) (map[string]entity.TokenListEntry, error) {
	if cached, found := s.cache.Get(tokenListCacheKey); found {
		return cached.(map[string]entity.TokenListEntry), nil
	}

	list, err := s.tokenList.GetTokenList(ctx)
	if err != nil {
		return nil, err
	}

	index := make(map[string]entity.TokenListEntry)
	for _, token := range list.Tokens {
		if token.ChainID != s.chainID {
			continue
		}
		key := strings.ToUpper(token.Symbol)
		// first entry wins; token lists occasionally carry duplicates
		if _, exists := index[key]; !exists {
			index[key] = token
		}
	}
	s.logger.Info("Token list indexed", zap.Int("tokenCount", len(index)), zap.Int64("chainID", s.chainID))
	s.cache.Set(tokenListCacheKey, index, s.cacheTTL)
	return index, nil
}

func resolveFromIndex(index map[string]entity.TokenListEntry, symbol string) entity.TokenAvailability {
	upper := strings.ToUpper(strings.TrimSpace(symbol))

	// Native ETH trades as WETH on the router.
	if upper == "ETH" {
		if weth, ok := index["WETH"]; ok {
			return entity.TokenAvailability{
				Symbol: upper, Available: true,
				Address: weth.Address, Decimals: weth.Decimals, Name: weth.Name,
			}
		}
		return entity.TokenAvailability{
			Symbol: upper, Available: true,
			Address: wethMainnet, Decimals: 18, Name: "Wrapped Ether",
		}
	}

	entry, ok := index[upper]
	if !ok {
		return entity.TokenAvailability{Symbol: upper, Available: false}
	}
	return entity.TokenAvailability{
		Symbol: upper, Available: true,
		Address: entry.Address, Decimals: entry.Decimals, Name: entry.Name,
	}
}
