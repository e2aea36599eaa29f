package service

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"copyfolio/internal/client"
	"copyfolio/internal/config"
	"copyfolio/internal/entity"
	"copyfolio/internal/normalize"
	"copyfolio/internal/pkg/metrics"
	"copyfolio/internal/repository"
)

// walletAddressRe is the entire query-type dispatch: a query matching it is a
// wallet lookup, anything else is a personality lookup.
var walletAddressRe = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)

// IsWalletAddress reports whether the query is an Ethereum address.
func IsWalletAddress(query string) bool {
	return walletAddressRe.MatchString(query)
}

// PersonalityResult is the outcome of a personality lookup.
type PersonalityResult struct {
	PersonName  string                 `json:"personName"`
	Investments []entity.PortfolioItem `json:"investments"`
}

// WalletResult is the outcome of a wallet lookup.
type WalletResult struct {
	Address string               `json:"address"`
	Tokens  []entity.WalletToken `json:"tokens"`
}

// LookupService turns external data sources into ranked, normalized top-N
// holdings and records each query in the history log.
type LookupService interface {
	LookupPersonality(ctx context.Context, personName string) (*PersonalityResult, error)
	LookupWallet(ctx context.Context, address string) (*WalletResult, error)
	CryptoHistory(ctx context.Context) ([]entity.CryptoLookupRecord, error)
	WalletHistory(ctx context.Context) ([]entity.WalletLookupRecord, error)
}

// lookupServiceImpl implements the LookupService interface.
type lookupServiceImpl struct {
	ai       client.AIClient
	explorer client.ExplorerClient
	history  repository.HistoryRepository
	cfg      *config.Config
	logger   *zap.Logger
}

// NewLookupService creates a new instance of lookupServiceImpl.
func NewLookupService(
	ai client.AIClient,
	explorer client.ExplorerClient,
	history repository.HistoryRepository,
	cfg *config.Config,
	logger *zap.Logger,
) LookupService {
	return &lookupServiceImpl{
		ai:       ai,
		explorer: explorer,
		history:  history,
		cfg:      cfg,
		logger:   logger.Named("LookupService"),
	}
}

// LookupPersonality asks the AI which assets a public figure is associated
// with and normalizes the weighted answer into integer percentages. A reply
// that fails schema validation yields an empty holdings list, not an error.
func (s *lookupServiceImpl) LookupPersonality(ctx context.Context, personName string) (*PersonalityResult, error) {
	personName = strings.TrimSpace(personName)
	if personName == "" {
		return nil, entity.NewError(entity.CodeValidation, "personName is required")
	}

	s.logger.Info("Looking up personality holdings", zap.String("personName", personName))
	metrics.LookupsTotal.WithLabelValues("personality").Inc()

	weighted, err := s.ai.RankHoldings(ctx, personName, s.cfg.Lookup.MaxHoldings)
	if err != nil {
		if entity.HasCode(err, entity.CodeUpstreamDataInvalid) {
			s.logger.Warn("AI ranking reply failed validation, returning empty holdings",
				zap.String("personName", personName), zap.Error(err))
			metrics.UpstreamErrorsTotal.WithLabelValues("openai").Inc()
			weighted = nil
		} else {
			metrics.UpstreamErrorsTotal.WithLabelValues("openai").Inc()
			return nil, err
		}
	}

	if len(weighted) > s.cfg.Lookup.MaxHoldings {
		weighted = weighted[:s.cfg.Lookup.MaxHoldings]
	}
	items, err := normalize.Items(weighted)
	if err != nil {
		// The AI slipped something past schema validation; treat like any
		// other malformed upstream data.
		s.logger.Warn("AI weights failed normalization, returning empty holdings",
			zap.String("personName", personName), zap.Error(err))
		items = []entity.PortfolioItem{}
	}

	result := &PersonalityResult{PersonName: personName, Investments: items}
	if _, err := s.history.AppendCryptoLookup(ctx, personName, items); err != nil {
		// History is best effort; the lookup result is still good.
		s.logger.Error("Failed to record personality lookup", zap.String("personName", personName), zap.Error(err))
	}
	return result, nil
}

// LookupWallet fetches the address's holdings from the block explorer, ranks
// them by USD value, keeps the top MaxHoldings (ETH competes like any other
// position) and normalizes USD weights into percentages.
func (s *lookupServiceImpl) LookupWallet(ctx context.Context, address string) (*WalletResult, error) {
	if !IsWalletAddress(address) {
		return nil, entity.NewError(entity.CodeValidation, "address must match ^0x[a-fA-F0-9]{40}$")
	}

	s.logger.Info("Looking up wallet holdings", zap.String("address", address))
	metrics.LookupsTotal.WithLabelValues("wallet").Inc()

	info, err := s.explorer.GetAddressInfo(ctx, address)
	if err != nil {
		if entity.HasCode(err, entity.CodeUpstreamDataInvalid) {
			s.logger.Warn("Explorer reply failed validation, returning empty holdings",
				zap.String("address", address), zap.Error(err))
			metrics.UpstreamErrorsTotal.WithLabelValues("explorer").Inc()
			empty := &WalletResult{Address: address, Tokens: []entity.WalletToken{}}
			if _, herr := s.history.AppendWalletLookup(ctx, address, empty.Tokens); herr != nil {
				s.logger.Error("Failed to record wallet lookup", zap.String("address", address), zap.Error(herr))
			}
			return empty, nil
		}
		metrics.UpstreamErrorsTotal.WithLabelValues("explorer").Inc()
		return nil, err
	}

	candidates := collectHoldings(info)
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].BalanceUSD > candidates[j].BalanceUSD
	})
	if len(candidates) > s.cfg.Lookup.MaxHoldings {
		candidates = candidates[:s.cfg.Lookup.MaxHoldings]
	}

	weights := make([]float64, len(candidates))
	for i, c := range candidates {
		weights[i] = c.BalanceUSD
	}
	pcts, err := normalize.Percentages(weights)
	if err != nil {
		return nil, entity.WrapError(entity.CodeInternal, "failed to normalize wallet holdings", err)
	}
	for i := range candidates {
		candidates[i].Percentage = pcts[i]
	}

	result := &WalletResult{Address: address, Tokens: candidates}
	if _, err := s.history.AppendWalletLookup(ctx, address, candidates); err != nil {
		s.logger.Error("Failed to record wallet lookup", zap.String("address", address), zap.Error(err))
	}
	return result, nil
}

func (s *lookupServiceImpl) CryptoHistory(ctx context.Context) ([]entity.CryptoLookupRecord, error) {
	return s.history.ListCryptoLookups(ctx, s.cfg.Lookup.HistoryLimit)
}

func (s *lookupServiceImpl) WalletHistory(ctx context.Context) ([]entity.WalletLookupRecord, error) {
	return s.history.ListWalletLookups(ctx, s.cfg.Lookup.HistoryLimit)
}

// collectHoldings flattens an explorer address response into USD-valued
// positions. ETH is included explicitly; tokens without a USD quote carry no
// weight and are dropped.
func collectHoldings(info *entity.AddressInfo) []entity.WalletToken {
	out := make([]entity.WalletToken, 0, len(info.Tokens)+1)

	if info.ETH.Balance > 0 {
		out = append(out, entity.WalletToken{
			Name:       "Ethereum",
			Symbol:     "ETH",
			Balance:    info.ETH.Balance,
			BalanceUSD: info.ETH.Balance * info.ETH.Price.Rate,
		})
	}

	for _, holding := range info.Tokens {
		rate, ok := parsePriceRate(holding.TokenInfo.Price)
		if !ok || rate <= 0 {
			continue
		}
		decimals, ok := parseDecimals(holding.TokenInfo.Decimals)
		if !ok {
			continue
		}
		balance := holding.Balance / math.Pow10(int(decimals))
		usd := balance * rate
		if usd <= 0 {
			continue
		}
		symbol := strings.ToUpper(holding.TokenInfo.Symbol)
		out = append(out, entity.WalletToken{
			Name:       holding.TokenInfo.Name,
			Symbol:     symbol,
			Balance:    balance,
			BalanceUSD: usd,
		})
	}
	return out
}

// parsePriceRate handles the explorer's price field, which is either a quote
// object or the literal false for unpriced tokens.
func parsePriceRate(raw interface{}) (float64, bool) {
	obj, ok := raw.(map[string]interface{})
	if !ok {
		return 0, false
	}
	switch rate := obj["rate"].(type) {
	case float64:
		return rate, true
	case string:
		parsed, err := strconv.ParseFloat(rate, 64)
		return parsed, err == nil
	default:
		return 0, false
	}
}

// parseDecimals handles the explorer's decimals field, which arrives as a
// string or a number depending on the token.
func parseDecimals(raw interface{}) (uint8, bool) {
	switch v := raw.(type) {
	case float64:
		if v < 0 || v > 255 {
			return 0, false
		}
		return uint8(v), true
	case string:
		parsed, err := strconv.ParseUint(v, 10, 8)
		if err != nil {
			return 0, false
		}
		return uint8(parsed), true
	default:
		return 0, false
	}
}
