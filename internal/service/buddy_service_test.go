package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"copyfolio/internal/entity"
)

type fakeBuddyRepo struct {
	buddies []entity.Buddy
	nextID  int
}

func (f *fakeBuddyRepo) Add(ctx context.Context, name string, contribution decimal.Decimal) (*entity.Buddy, error) {
	f.nextID++
	buddy := entity.Buddy{ID: fmt.Sprintf("b-%d", f.nextID), Name: name, Contribution: contribution}
	f.buddies = append(f.buddies, buddy)
	return &buddy, nil
}

func (f *fakeBuddyRepo) List(ctx context.Context) ([]entity.Buddy, error) {
	return f.buddies, nil
}

func (f *fakeBuddyRepo) Delete(ctx context.Context, id string) error {
	for i, b := range f.buddies {
		if b.ID == id {
			f.buddies = append(f.buddies[:i], f.buddies[i+1:]...)
			return nil
		}
	}
	return entity.NewError(entity.CodeNotFound, "buddy not found")
}

func TestBuddyAddValidation(t *testing.T) {
	svc := NewBuddyService(&fakeBuddyRepo{}, zap.NewNop())
	ctx := context.Background()

	_, err := svc.Add(ctx, "", decimal.NewFromInt(100))
	assert.True(t, entity.HasCode(err, entity.CodeValidation))

	_, err = svc.Add(ctx, "Alice", decimal.Zero)
	assert.True(t, entity.HasCode(err, entity.CodeValidation))

	_, err = svc.Add(ctx, "Alice", decimal.NewFromInt(-5))
	assert.True(t, entity.HasCode(err, entity.CodeValidation))

	_, err = svc.Add(ctx, "Alice", decimal.New(1, 11))
	assert.True(t, entity.HasCode(err, entity.CodeValidation))
}

func TestBuddySummaryShares(t *testing.T) {
	repo := &fakeBuddyRepo{}
	svc := NewBuddyService(repo, zap.NewNop())
	ctx := context.Background()

	_, err := svc.Add(ctx, "Alice", decimal.NewFromInt(700))
	require.NoError(t, err)
	_, err = svc.Add(ctx, "Bob", decimal.NewFromInt(200))
	require.NoError(t, err)
	_, err = svc.Add(ctx, "Carol", decimal.NewFromInt(100))
	require.NoError(t, err)

	summary, err := svc.Summary(ctx)
	require.NoError(t, err)
	require.Len(t, summary.Buddies, 3)
	assert.True(t, summary.TotalFund.Equal(decimal.NewFromInt(1000)))

	assert.Equal(t, 70, summary.Buddies[0].SharePercent)
	assert.Equal(t, 20, summary.Buddies[1].SharePercent)
	assert.Equal(t, 10, summary.Buddies[2].SharePercent)
}

func TestBuddySummarySharesSumTo100(t *testing.T) {
	repo := &fakeBuddyRepo{}
	svc := NewBuddyService(repo, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Add(ctx, fmt.Sprintf("Buddy %d", i), decimal.NewFromInt(1))
		require.NoError(t, err)
	}

	summary, err := svc.Summary(ctx)
	require.NoError(t, err)

	sum := 0
	for _, share := range summary.Buddies {
		sum += share.SharePercent
	}
	assert.Equal(t, 100, sum)
}

func TestBuddySummaryEmptyLedger(t *testing.T) {
	svc := NewBuddyService(&fakeBuddyRepo{}, zap.NewNop())

	summary, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.Empty(t, summary.Buddies)
	assert.True(t, summary.TotalFund.IsZero())
}

func TestBuddyRemove(t *testing.T) {
	repo := &fakeBuddyRepo{}
	svc := NewBuddyService(repo, zap.NewNop())
	ctx := context.Background()

	added, err := svc.Add(ctx, "Alice", decimal.NewFromInt(100))
	require.NoError(t, err)

	require.NoError(t, svc.Remove(ctx, added.ID))
	assert.Empty(t, repo.buddies)

	err = svc.Remove(ctx, added.ID)
	assert.True(t, entity.HasCode(err, entity.CodeNotFound))

	err = svc.Remove(ctx, "  ")
	assert.True(t, entity.HasCode(err, entity.CodeValidation))
}
