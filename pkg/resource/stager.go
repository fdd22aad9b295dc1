package resource

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/skeinflow/skein/pkg/log"
)

// ErrStorageNotConfigured is returned when a task needs resources staged
// but the object-store feature is disabled. It gets a distinct identity so
// operators know to enable resource uploads rather than chase a download
// failure.
var ErrStorageNotConfigured = errors.New("storage service is not configured")

// StorageOperate is the object-store collaborator resources are staged
// from. Implementations wrap HDFS, S3, MinIO and the like.
type StorageOperate interface {
	// ResolveResourcePath maps a tenant code and resource name to the
	// remote path. Pure; performs no I/O.
	ResolveResourcePath(tenantCode, fullName string) string

	// Download copies a remote file to localPath, overwriting when asked.
	Download(ctx context.Context, tenantCode, remotePath, localPath string, deleteSource, overwrite bool) error
}

// Download is one pending resource transfer.
type Download struct {
	FileName   string
	TenantCode string
}

// Stager stages remote resources into a task's execute directory.
type Stager struct {
	storage StorageOperate
	// uploadEnabled mirrors the global resource-upload switch; when off and
	// downloads are required, staging fails fast.
	uploadEnabled bool
}

// NewStager creates a stager backed by the given object store. storage may
// be nil when uploadEnabled is false.
func NewStager(storage StorageOperate, uploadEnabled bool) *Stager {
	return &Stager{storage: storage, uploadEnabled: uploadEnabled}
}

// PlanDownloads returns the subset of resources missing from execLocalPath.
// A nil or empty resources map plans nothing. When downloads are needed but
// the storage feature is disabled it returns ErrStorageNotConfigured.
func (s *Stager) PlanDownloads(execLocalPath string, resources map[string]string) ([]Download, error) {
	if len(resources) == 0 {
		return nil, nil
	}

	logger := log.WithComponent("resource-stager")
	var downloads []Download
	for fileName, tenantCode := range resources {
		if _, err := os.Stat(filepath.Join(execLocalPath, fileName)); err == nil {
			logger.Info().Str("file", fileName).Msg("resource file exists, skipping download")
			continue
		}
		downloads = append(downloads, Download{FileName: fileName, TenantCode: tenantCode})
	}

	if len(downloads) > 0 && !s.uploadEnabled {
		return nil, ErrStorageNotConfigured
	}
	return downloads, nil
}

// Stage performs the planned downloads into execLocalPath. Any per-file
// failure aborts the batch; partially written files are left for work
// directory cleanup.
func (s *Stager) Stage(ctx context.Context, execLocalPath string, downloads []Download) error {
	logger := log.WithComponent("resource-stager")
	for _, d := range downloads {
		remotePath := s.storage.ResolveResourcePath(d.TenantCode, d.FileName)
		localPath := filepath.Join(execLocalPath, d.FileName)
		logger.Info().Str("remote", remotePath).Str("local", localPath).Msg("downloading resource file")
		if err := s.storage.Download(ctx, d.TenantCode, remotePath, localPath, false, true); err != nil {
			return fmt.Errorf("failed to download resource %s for tenant %s: %w", d.FileName, d.TenantCode, err)
		}
	}
	return nil
}
