package service

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"copyfolio/internal/entity"
	"copyfolio/internal/repository"
)

// SavedReport is the reference handed back after persisting a metadata
// snapshot; MetadataURL is the off-chain pointer the NFT mints with.
type SavedReport struct {
	ID          string `json:"id"`
	MetadataURL string `json:"metadataUrl"`
}

// ReportService persists performance-report metadata snapshots and serves
// them back by reference. Minting itself happens client-side against an
// already deployed contract; every save creates a new, distinct record.
type ReportService interface {
	Save(ctx context.Context, walletAddress string, metadata json.RawMessage) (*SavedReport, error)
	Get(ctx context.Context, id string) (*entity.ReportMetadata, error)
}

// reportServiceImpl implements the ReportService interface.
type reportServiceImpl struct {
	repo   repository.MetadataRepository
	logger *zap.Logger
}

// NewReportService creates a new instance of reportServiceImpl.
func NewReportService(repo repository.MetadataRepository, logger *zap.Logger) ReportService {
	return &reportServiceImpl{repo: repo, logger: logger.Named("ReportService")}
}

func (s *reportServiceImpl) Save(ctx context.Context, walletAddress string, metadata json.RawMessage) (*SavedReport, error) {
	if !IsWalletAddress(walletAddress) {
		return nil, entity.NewError(entity.CodeValidation, "walletAddress must match ^0x[a-fA-F0-9]{40}$")
	}
	if len(metadata) == 0 || !json.Valid(metadata) {
		return nil, entity.NewError(entity.CodeValidation, "metadata must be a JSON object")
	}

	record, err := s.repo.Save(ctx, walletAddress, metadata)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Report metadata saved", zap.String("id", record.ID), zap.String("walletAddress", walletAddress))
	return &SavedReport{
		ID:          record.ID,
		MetadataURL: fmt.Sprintf("/api/nft/metadata/%s", record.ID),
	}, nil
}

func (s *reportServiceImpl) Get(ctx context.Context, id string) (*entity.ReportMetadata, error) {
	return s.repo.Get(ctx, id)
}
