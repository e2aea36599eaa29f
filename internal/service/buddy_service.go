package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"copyfolio/internal/entity"
	"copyfolio/internal/normalize"
	"copyfolio/internal/repository"
)

// maxContribution keeps contributions within decimal(12,2).
var maxContribution = decimal.New(1, 10) // 10^10

// BuddyService manages the co-investor ledger. The total fund and per-buddy
// shares are derived on every read so they never go stale when members come
// and go.
type BuddyService interface {
	Add(ctx context.Context, name string, contribution decimal.Decimal) (*entity.Buddy, error)
	Summary(ctx context.Context) (*entity.BuddiesSummary, error)
	Remove(ctx context.Context, id string) error
}

// buddyServiceImpl implements the BuddyService interface.
type buddyServiceImpl struct {
	repo   repository.BuddyRepository
	logger *zap.Logger
}

// NewBuddyService creates a new instance of buddyServiceImpl.
func NewBuddyService(repo repository.BuddyRepository, logger *zap.Logger) BuddyService {
	return &buddyServiceImpl{repo: repo, logger: logger.Named("BuddyService")}
}

func (s *buddyServiceImpl) Add(ctx context.Context, name string, contribution decimal.Decimal) (*entity.Buddy, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, entity.NewError(entity.CodeValidation, "name is required")
	}
	if contribution.IsNegative() || contribution.IsZero() {
		return nil, entity.NewError(entity.CodeValidation, "contribution must be positive")
	}
	if contribution.GreaterThanOrEqual(maxContribution) {
		return nil, entity.NewError(entity.CodeValidation, "contribution exceeds the supported range")
	}

	buddy, err := s.repo.Add(ctx, name, contribution.Round(2))
	if err != nil {
		return nil, err
	}
	s.logger.Info("Buddy added", zap.String("id", buddy.ID), zap.String("name", name))
	return buddy, nil
}

// Summary lists every buddy with the derived total fund and integer share
// percentages. Shares come from the same normalization used for portfolio
// percentages, so a non-empty ledger always reports shares summing to 100.
func (s *buddyServiceImpl) Summary(ctx context.Context) (*entity.BuddiesSummary, error) {
	buddies, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	total := decimal.Zero
	weights := make([]float64, len(buddies))
	for i, b := range buddies {
		total = total.Add(b.Contribution)
		weights[i] = b.Contribution.InexactFloat64()
	}

	shares, err := normalize.Percentages(weights)
	if err != nil {
		return nil, entity.WrapError(entity.CodeInternal, "failed to derive buddy shares", err)
	}

	out := &entity.BuddiesSummary{
		Buddies:   make([]entity.BuddyShare, len(buddies)),
		TotalFund: total,
	}
	for i, b := range buddies {
		out.Buddies[i] = entity.BuddyShare{Buddy: b, SharePercent: shares[i]}
	}
	return out, nil
}

func (s *buddyServiceImpl) Remove(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return entity.NewError(entity.CodeValidation, "id is required")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Buddy removed", zap.String("id", id))
	return nil
}
