package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"copyfolio/internal/entity"
)

// MetadataRepository stores NFT metadata snapshots. Each save creates a new,
// distinct record; the id is the off-chain pointer reference.
type MetadataRepository interface {
	Save(ctx context.Context, walletAddress string, metadata []byte) (*entity.ReportMetadata, error)
	Get(ctx context.Context, id string) (*entity.ReportMetadata, error)
}

type metadataRepositoryImpl struct {
	db *sql.DB
}

// NewMetadataRepository creates a new instance of metadataRepositoryImpl.
func NewMetadataRepository(db *sql.DB) MetadataRepository {
	return &metadataRepositoryImpl{db: db}
}

func (r *metadataRepositoryImpl) Save(ctx context.Context, walletAddress string, metadata []byte) (*entity.ReportMetadata, error) {
	record := &entity.ReportMetadata{
		ID:            uuid.NewString(),
		WalletAddress: walletAddress,
		Metadata:      metadata,
		CreatedAt:     time.Now().UTC(),
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO nft_metadata(id, wallet_address, metadata_json, created_at) VALUES(?,?,?,?)`,
		record.ID, walletAddress, string(metadata), record.CreatedAt.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("failed to save metadata: %w", err)
	}
	return record, nil
}

func (r *metadataRepositoryImpl) Get(ctx context.Context, id string) (*entity.ReportMetadata, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, wallet_address, metadata_json, created_at FROM nft_metadata WHERE id = ?`, id)

	var rec entity.ReportMetadata
	var blob string
	var createdAt int64
	if err := row.Scan(&rec.ID, &rec.WalletAddress, &blob, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entity.NewError(entity.CodeNotFound, fmt.Sprintf("metadata %s not found", id))
		}
		return nil, fmt.Errorf("failed to load metadata %s: %w", id, err)
	}
	rec.Metadata = []byte(blob)
	rec.CreatedAt = time.Unix(0, createdAt).UTC()
	return &rec, nil
}
