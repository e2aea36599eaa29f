package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"copyfolio/internal/entity"
)

// HistoryRepository is the append-only log of past lookups, read
// most-recent-first.
type HistoryRepository interface {
	AppendCryptoLookup(ctx context.Context, personName string, investments []entity.PortfolioItem) (*entity.CryptoLookupRecord, error)
	ListCryptoLookups(ctx context.Context, limit int) ([]entity.CryptoLookupRecord, error)
	AppendWalletLookup(ctx context.Context, address string, tokens []entity.WalletToken) (*entity.WalletLookupRecord, error)
	ListWalletLookups(ctx context.Context, limit int) ([]entity.WalletLookupRecord, error)
}

type historyRepositoryImpl struct {
	db *sql.DB
}

// NewHistoryRepository creates a new instance of historyRepositoryImpl.
func NewHistoryRepository(db *sql.DB) HistoryRepository {
	return &historyRepositoryImpl{db: db}
}

func (r *historyRepositoryImpl) AppendCryptoLookup(ctx context.Context, personName string, investments []entity.PortfolioItem) (*entity.CryptoLookupRecord, error) {
	record := &entity.CryptoLookupRecord{
		ID:          uuid.NewString(),
		PersonName:  personName,
		Investments: investments,
		CreatedAt:   time.Now().UTC(),
	}
	blob, err := json.Marshal(investments)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal investments: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO crypto_lookups(id, person_name, investments_json, created_at) VALUES(?,?,?,?)`,
		record.ID, personName, string(blob), record.CreatedAt.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("failed to append crypto lookup: %w", err)
	}
	return record, nil
}

func (r *historyRepositoryImpl) ListCryptoLookups(ctx context.Context, limit int) ([]entity.CryptoLookupRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, person_name, investments_json, created_at FROM crypto_lookups ORDER BY created_at DESC, id DESC LIMIT ?`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list crypto lookups: %w", err)
	}
	defer rows.Close()

	out := make([]entity.CryptoLookupRecord, 0)
	for rows.Next() {
		var rec entity.CryptoLookupRecord
		var blob string
		var createdAt int64
		if err := rows.Scan(&rec.ID, &rec.PersonName, &blob, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan crypto lookup row: %w", err)
		}
		if err := json.Unmarshal([]byte(blob), &rec.Investments); err != nil {
			return nil, fmt.Errorf("failed to unmarshal investments for record %s: %w", rec.ID, err)
		}
		rec.CreatedAt = time.Unix(0, createdAt).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *historyRepositoryImpl) AppendWalletLookup(ctx context.Context, address string, tokens []entity.WalletToken) (*entity.WalletLookupRecord, error) {
	record := &entity.WalletLookupRecord{
		ID:        uuid.NewString(),
		Address:   address,
		Tokens:    tokens,
		CreatedAt: time.Now().UTC(),
	}
	blob, err := json.Marshal(tokens)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tokens: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO wallet_lookups(id, address, tokens_json, created_at) VALUES(?,?,?,?)`,
		record.ID, address, string(blob), record.CreatedAt.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("failed to append wallet lookup: %w", err)
	}
	return record, nil
}

func (r *historyRepositoryImpl) ListWalletLookups(ctx context.Context, limit int) ([]entity.WalletLookupRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, address, tokens_json, created_at FROM wallet_lookups ORDER BY created_at DESC, id DESC LIMIT ?`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallet lookups: %w", err)
	}
	defer rows.Close()

	out := make([]entity.WalletLookupRecord, 0)
	for rows.Next() {
		var rec entity.WalletLookupRecord
		var blob string
		var createdAt int64
		if err := rows.Scan(&rec.ID, &rec.Address, &blob, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan wallet lookup row: %w", err)
		}
		if err := json.Unmarshal([]byte(blob), &rec.Tokens); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tokens for record %s: %w", rec.ID, err)
		}
		rec.CreatedAt = time.Unix(0, createdAt).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}
