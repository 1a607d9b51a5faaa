package printing

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.uber.org/zap"
)

// ArtifactStore keeps rendered documents in a local output directory until
// they have been distributed
type ArtifactStore interface {
	// Write stores data under filename atomically and returns its path
	Write(ctx context.Context, filename string, data []byte) (string, error)
	// Open returns a reader for a stored artifact
	Open(ctx context.Context, filename string) (io.ReadCloser, error)
	// Path returns the absolute path of filename inside the store
	Path(filename string) (string, error)
	// Delete removes an artifact; a missing file is not an error
	Delete(ctx context.Context, filename string) error
}

// FileSystemStorageConfig contains configuration for file system storage
type FileSystemStorageConfig struct {
	// BasePath is the output directory, the working directory by default
	BasePath string
	// Logger for operations
	Logger *zap.Logger
}

// FileSystemStorage stores artifacts on the local file system
type FileSystemStorage struct {
	basePath string
	logger   *zap.Logger
}

// NewFileSystemStorage creates the output directory if needed
func NewFileSystemStorage(config *FileSystemStorageConfig) (*FileSystemStorage, error) {
	if config == nil {
		config = &FileSystemStorageConfig{}
	}
	basePath := config.BasePath
	if basePath == "" {
		basePath = "."
	}

	absBase, err := filepath.Abs(basePath)
	if err != nil {
		return nil, NewRenderError(ErrCodeArtifactFailed, "failed to resolve output directory", err)
	}
	if err := os.MkdirAll(absBase, 0o755); err != nil {
		return nil, NewRenderError(ErrCodeArtifactFailed,
			fmt.Sprintf("failed to create output directory: %s", absBase), err)
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &FileSystemStorage{
		basePath: absBase,
		logger:   logger,
	}, nil
}

// Write writes data to a temporary file in the output directory and renames
// it into place, so a reader never sees a partial document
func (s *FileSystemStorage) Write(ctx context.Context, filename string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", NewRenderError(ErrCodeArtifactFailed, "operation cancelled", err)
	}
	if len(data) == 0 {
		return "", NewRenderError(ErrCodeArtifactFailed, "artifact is empty", nil)
	}
	fullPath, err := s.Path(filename)
	if err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(s.basePath, ".artifact-*.tmp")
	if err != nil {
		return "", NewRenderError(ErrCodeArtifactFailed, "failed to create temporary file", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", NewRenderError(ErrCodeArtifactFailed, "failed to write artifact", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return "", NewRenderError(ErrCodeArtifactFailed, "failed to sync artifact", err)
	}
	if err := tmp.Close(); err != nil {
		return "", NewRenderError(ErrCodeArtifactFailed, "failed to close artifact", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return "", NewRenderError(ErrCodeArtifactFailed, "failed to set artifact permissions", err)
	}
	if err := os.Rename(tmpName, fullPath); err != nil {
		return "", NewRenderError(ErrCodeArtifactFailed, "failed to move artifact into place", err)
	}
	committed = true

	s.logger.Info("artifact written",
		zap.String("path", fullPath),
		zap.Int("size", len(data)))

	return fullPath, nil
}

// Open returns a reader for a stored artifact
func (s *FileSystemStorage) Open(ctx context.Context, filename string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewRenderError(ErrCodeArtifactFailed, "operation cancelled", err)
	}
	fullPath, err := s.Path(filename)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NewRenderError(ErrCodeArtifactFailed, "artifact not found", err)
		}
		return nil, NewRenderError(ErrCodeArtifactFailed, "failed to open artifact", err)
	}
	return file, nil
}

// Delete removes an artifact
func (s *FileSystemStorage) Delete(ctx context.Context, filename string) error {
	if err := ctx.Err(); err != nil {
		return NewRenderError(ErrCodeArtifactFailed, "operation cancelled", err)
	}
	fullPath, err := s.Path(filename)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return NewRenderError(ErrCodeArtifactFailed, "failed to delete artifact", err)
	}

	s.logger.Info("artifact deleted", zap.String("path", fullPath))
	return nil
}

// Path resolves filename inside the output directory. Names that would
// escape the directory are rejected.
func (s *FileSystemStorage) Path(filename string) (string, error) {
	if strings.TrimSpace(filename) == "" {
		return "", NewRenderError(ErrCodeArtifactFailed, "filename is empty", nil)
	}
	cleanPath := filepath.Clean(filename)
	if filepath.IsAbs(cleanPath) || containsDotDot(filename) {
		s.logger.Warn("blocked potentially malicious path",
			zap.String("path", filename),
			zap.String("cleanPath", cleanPath))
		return "", NewRenderError(ErrCodeArtifactFailed, "invalid path", nil)
	}

	absPath, err := filepath.Abs(filepath.Join(s.basePath, cleanPath))
	if err != nil {
		return "", NewRenderError(ErrCodeArtifactFailed, "failed to resolve file path", err)
	}
	if !strings.HasPrefix(absPath, s.basePath+string(filepath.Separator)) {
		s.logger.Warn("path escape attempt blocked",
			zap.String("path", filename),
			zap.String("absPath", absPath),
			zap.String("absBase", s.basePath))
		return "", NewRenderError(ErrCodeArtifactFailed, "invalid path", nil)
	}
	return absPath, nil
}

// containsDotDot checks if a path contains ".." components
func containsDotDot(path string) bool {
	parts := strings.FieldsFunc(path, func(r rune) bool {
		return r == '/' || r == '\\' || r == filepath.Separator
	})
	return slices.Contains(parts, "..")
}

// Ensure FileSystemStorage implements ArtifactStore
var _ ArtifactStore = (*FileSystemStorage)(nil)
