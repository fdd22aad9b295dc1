package resource

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStorage struct {
	downloaded []string
	failOn     string
}

func (f *fakeStorage) ResolveResourcePath(tenantCode, fullName string) string {
	return filepath.Join("/remote", tenantCode, fullName)
}

func (f *fakeStorage) Download(ctx context.Context, tenantCode, remotePath, localPath string, deleteSource, overwrite bool) error {
	if filepath.Base(remotePath) == f.failOn {
		return errors.New("connection reset")
	}
	f.downloaded = append(f.downloaded, localPath)
	return os.WriteFile(localPath, []byte("content"), 0o644)
}

func TestPlanDownloads_EmptyResources(t *testing.T) {
	s := NewStager(nil, false)

	downloads, err := s.PlanDownloads(t.TempDir(), nil)
	require.NoError(t, err)
	assert.Empty(t, downloads)

	downloads, err = s.PlanDownloads(t.TempDir(), map[string]string{})
	require.NoError(t, err)
	assert.Empty(t, downloads)
}

func TestPlanDownloads_SkipsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "present.sql"), []byte("select 1"), 0o644))

	s := NewStager(&fakeStorage{}, true)
	downloads, err := s.PlanDownloads(dir, map[string]string{
		"present.sql": "tenant-a",
		"missing.sql": "tenant-a",
	})
	require.NoError(t, err)
	require.Len(t, downloads, 1)
	assert.Equal(t, "missing.sql", downloads[0].FileName)
	assert.Equal(t, "tenant-a", downloads[0].TenantCode)
}

func TestPlanDownloads_StorageDisabled(t *testing.T) {
	s := NewStager(nil, false)

	_, err := s.PlanDownloads(t.TempDir(), map[string]string{"missing.sql": "tenant-a"})
	assert.ErrorIs(t, err, ErrStorageNotConfigured)
}

func TestPlanDownloads_StorageDisabledButAllPresent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "present.sql"), []byte("select 1"), 0o644))

	s := NewStager(nil, false)
	downloads, err := s.PlanDownloads(dir, map[string]string{"present.sql": "tenant-a"})
	require.NoError(t, err)
	assert.Empty(t, downloads)
}

func TestStage_DownloadsAll(t *testing.T) {
	dir := t.TempDir()
	storage := &fakeStorage{}
	s := NewStager(storage, true)

	err := s.Stage(context.Background(), dir, []Download{
		{FileName: "a.sql", TenantCode: "tenant-a"},
		{FileName: "b.sql", TenantCode: "tenant-a"},
	})
	require.NoError(t, err)
	assert.Len(t, storage.downloaded, 2)
	assert.FileExists(t, filepath.Join(dir, "a.sql"))
	assert.FileExists(t, filepath.Join(dir, "b.sql"))
}

func TestStage_FirstFailureAborts(t *testing.T) {
	dir := t.TempDir()
	storage := &fakeStorage{failOn: "a.sql"}
	s := NewStager(storage, true)

	err := s.Stage(context.Background(), dir, []Download{
		{FileName: "a.sql", TenantCode: "tenant-a"},
		{FileName: "b.sql", TenantCode: "tenant-a"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a.sql")
	assert.Empty(t, storage.downloaded)
}

func TestLocalStorage_ResolveResourcePath(t *testing.T) {
	s := NewLocalStorage("/data/skein")
	assert.Equal(t, "/data/skein/tenant-a/resources/etl.sql",
		s.ResolveResourcePath("tenant-a", "etl.sql"))
}

func TestLocalStorage_Download(t *testing.T) {
	base := t.TempDir()
	s := NewLocalStorage(base)

	remote := s.ResolveResourcePath("tenant-a", "etl.sql")
	require.NoError(t, os.MkdirAll(filepath.Dir(remote), 0o755))
	require.NoError(t, os.WriteFile(remote, []byte("select 1"), 0o644))

	local := filepath.Join(t.TempDir(), "etl.sql")
	require.NoError(t, s.Download(context.Background(), "tenant-a", remote, local, false, true))

	data, err := os.ReadFile(local)
	require.NoError(t, err)
	assert.Equal(t, "select 1", string(data))
	// Source survives when deleteSource is false.
	assert.FileExists(t, remote)
}

func TestLocalStorage_DownloadNoOverwrite(t *testing.T) {
	base := t.TempDir()
	s := NewLocalStorage(base)

	remote := s.ResolveResourcePath("tenant-a", "etl.sql")
	require.NoError(t, os.MkdirAll(filepath.Dir(remote), 0o755))
	require.NoError(t, os.WriteFile(remote, []byte("new"), 0o644))

	local := filepath.Join(t.TempDir(), "etl.sql")
	require.NoError(t, os.WriteFile(local, []byte("old"), 0o644))

	err := s.Download(context.Background(), "tenant-a", remote, local, false, false)
	assert.Error(t, err)
}

func TestLocalStorage_DownloadMissingSource(t *testing.T) {
	s := NewLocalStorage(t.TempDir())
	err := s.Download(context.Background(), "tenant-a",
		s.ResolveResourcePath("tenant-a", "absent.sql"),
		filepath.Join(t.TempDir(), "absent.sql"), false, true)
	assert.Error(t, err)
}
