package retention

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ozkanguner/logmaster/internal/metadata"
	"github.com/ozkanguner/logmaster/internal/metadata/sqlite"
)

func newTestLogger() logger.Logger {
	logger.New("NOOP")
	return logger.Sugar.WithServiceName("retention-test")
}

func TestSweep_DeletesExpiredFileThenRow(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "2022-01-01.log.gz")
	require.NoError(t, os.WriteFile(archivePath, []byte("gz"), 0o644))

	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "meta.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.UpsertArchive(context.Background(), metadata.ArchiveRow{
		OriginalPath:   filepath.Join(dir, "2022-01-01.log"),
		FileDate:       "2022-01-01",
		ArchivePath:    archivePath,
		RetentionUntil: "2024-01-01",
	}))

	sweeper := NewSweeper(store, newTestLogger())
	sweeper.clock = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }

	n, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoFileExists(t, archivePath)

	_, ok, err := store.GetArchive(context.Background(), filepath.Join(dir, "2022-01-01.log"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSweep_IsIdempotent(t *testing.T) {
	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "meta.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	sweeper := NewSweeper(store, newTestLogger())
	n, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSweep_DoesNotTouchUnexpiredArchives(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "2024-06-01.log.gz")
	require.NoError(t, os.WriteFile(archivePath, []byte("gz"), 0o644))

	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "meta.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.UpsertArchive(context.Background(), metadata.ArchiveRow{
		OriginalPath:   filepath.Join(dir, "2024-06-01.log"),
		FileDate:       "2024-06-01",
		ArchivePath:    archivePath,
		RetentionUntil: "2026-06-01",
	}))

	sweeper := NewSweeper(store, newTestLogger())
	sweeper.clock = func() time.Time { return time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC) }

	n, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.FileExists(t, archivePath)
}
