package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/dandroos/node-invoicer/internal/domain/invoicing"
	infraconfig "github.com/dandroos/node-invoicer/internal/infrastructure/config"
)

// Backend names accepted in storage.backend
const (
	BackendNone   = "none"
	BackendS3     = "s3"
	BackendFolder = "folder"
)

// NewArtifactStorage builds the configured remote storage. It returns
// (nil, nil) for the none backend; callers treat that as "upload skipped".
func NewArtifactStorage(ctx context.Context, cfg *infraconfig.StorageConfig, logger *zap.Logger) (invoicing.ArtifactStorage, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Backend {
	case "", BackendNone:
		return nil, nil
	case BackendS3:
		s, err := NewS3ArtifactStorage(ctx, cfg, WithLogger(logger.Named("s3")))
		if err != nil {
			return nil, err
		}
		if cfg.S3.CreateBucket {
			if err := s.EnsureBucket(ctx); err != nil {
				return nil, err
			}
		}
		return s, nil
	case BackendFolder:
		s, err := NewFolderStorage(cfg.Folder, cfg.Prefix, logger.Named("folder"))
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
