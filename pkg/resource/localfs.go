package resource

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStorage is a StorageOperate backed by a shared filesystem mount,
// for deployments where workers and masters see the same resource volume.
type LocalStorage struct {
	BasePath string
}

// NewLocalStorage creates a filesystem-backed store rooted at basePath.
func NewLocalStorage(basePath string) *LocalStorage {
	return &LocalStorage{BasePath: basePath}
}

// ResolveResourcePath implements StorageOperate.
func (s *LocalStorage) ResolveResourcePath(tenantCode, fullName string) string {
	return filepath.Join(s.BasePath, tenantCode, "resources", fullName)
}

// Download implements StorageOperate by copying within the filesystem.
func (s *LocalStorage) Download(ctx context.Context, tenantCode, remotePath, localPath string, deleteSource, overwrite bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(localPath); err == nil {
			return fmt.Errorf("destination %s already exists", localPath)
		}
	}

	src, err := os.Open(remotePath)
	if err != nil {
		return fmt.Errorf("failed to open resource %s: %w", remotePath, err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	dst, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", localPath, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to copy resource to %s: %w", localPath, err)
	}

	if deleteSource {
		if err := os.Remove(remotePath); err != nil {
			return fmt.Errorf("failed to delete source %s: %w", remotePath, err)
		}
	}
	return nil
}
