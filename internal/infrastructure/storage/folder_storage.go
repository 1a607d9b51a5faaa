package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/dandroos/node-invoicer/internal/domain/invoicing"
)

var _ invoicing.ArtifactStorage = (*FolderStorage)(nil)

// FolderStorage copies invoices into a directory, typically one kept in sync
// by a desktop client of a cloud drive.
type FolderStorage struct {
	dir    string
	logger *zap.Logger
}

// NewFolderStorage creates the target directory <folder>/<prefix> if needed
func NewFolderStorage(folder, prefix string, logger *zap.Logger) (*FolderStorage, error) {
	if folder == "" {
		return nil, errors.New("storage folder is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	dir := filepath.Join(folder, filepath.FromSlash(strings.Trim(prefix, "/")))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage folder: %w", err)
	}
	return &FolderStorage{dir: dir, logger: logger}, nil
}

// Upload writes content to the folder under filename. The file appears
// atomically; an existing file with the same name is replaced.
func (s *FolderStorage) Upload(ctx context.Context, filename string, content io.Reader) error {
	if err := ctx.Err(); err != nil {
		return invoicing.NewStorageError("upload "+filename, err)
	}
	if filename == "" || filename != filepath.Base(filename) || filename == ".." {
		return invoicing.NewStorageError("upload", fmt.Errorf("invalid filename %q", filename))
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return invoicing.NewStorageError("upload "+filename, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := io.Copy(tmp, content); err != nil {
		_ = tmp.Close()
		cleanup()
		return invoicing.NewStorageError("upload "+filename, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return invoicing.NewStorageError("upload "+filename, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return invoicing.NewStorageError("upload "+filename, err)
	}

	target := filepath.Join(s.dir, filename)
	if err := os.Rename(tmpName, target); err != nil {
		cleanup()
		return invoicing.NewStorageError("upload "+filename, err)
	}

	s.logger.Info("Invoice copied to folder", zap.String("path", target))
	return nil
}

// Dir returns the target directory
func (s *FolderStorage) Dir() string {
	return s.dir
}
