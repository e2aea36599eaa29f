package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"copyfolio/internal/entity"
)

// BuddyRepository stores buddy contribution records. Totals and shares are
// derived by the service on read, never persisted.
type BuddyRepository interface {
	Add(ctx context.Context, name string, contribution decimal.Decimal) (*entity.Buddy, error)
	List(ctx context.Context) ([]entity.Buddy, error)
	Delete(ctx context.Context, id string) error
}

type buddyRepositoryImpl struct {
	db *sql.DB
}

// NewBuddyRepository creates a new instance of buddyRepositoryImpl.
func NewBuddyRepository(db *sql.DB) BuddyRepository {
	return &buddyRepositoryImpl{db: db}
}

func (r *buddyRepositoryImpl) Add(ctx context.Context, name string, contribution decimal.Decimal) (*entity.Buddy, error) {
	buddy := &entity.Buddy{
		ID:           uuid.NewString(),
		Name:         name,
		Contribution: contribution,
		CreatedAt:    time.Now().UTC(),
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO buddies(id, name, contribution, created_at) VALUES(?,?,?,?)`,
		buddy.ID, buddy.Name, contribution.StringFixed(2), buddy.CreatedAt.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("failed to add buddy: %w", err)
	}
	return buddy, nil
}

func (r *buddyRepositoryImpl) List(ctx context.Context) ([]entity.Buddy, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, contribution, created_at FROM buddies ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list buddies: %w", err)
	}
	defer rows.Close()

	out := make([]entity.Buddy, 0)
	for rows.Next() {
		var b entity.Buddy
		var contribution string
		var createdAt int64
		if err := rows.Scan(&b.ID, &b.Name, &contribution, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan buddy row: %w", err)
		}
		b.Contribution, err = decimal.NewFromString(contribution)
		if err != nil {
			return nil, fmt.Errorf("invalid stored contribution for buddy %s: %w", b.ID, err)
		}
		b.CreatedAt = time.Unix(0, createdAt).UTC()
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *buddyRepositoryImpl) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM buddies WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete buddy %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result for buddy %s: %w", id, err)
	}
	if affected == 0 {
		return entity.NewError(entity.CodeNotFound, fmt.Sprintf("buddy %s not found", id))
	}
	return nil
}
