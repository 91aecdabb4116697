package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ozkanguner/logmaster/internal/config"
	"github.com/ozkanguner/logmaster/internal/metadata"
	"github.com/ozkanguner/logmaster/internal/metadata/sqlite"
	"github.com/ozkanguner/logmaster/internal/objectstore"
	"github.com/ozkanguner/logmaster/internal/signing"
)

func newTestLogger() logger.Logger {
	logger.New("NOOP")
	return logger.Sugar.WithServiceName("archive-test")
}

func setupSignedFile(t *testing.T, logBase, deviceID, date, content string) (string, *sqlite.Store) {
	t.Helper()
	path := filepath.Join(logBase, deviceID, date+".log")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	require.NoError(t, os.WriteFile(path+".sig", []byte("{}"), 0o644))

	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "meta.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	hash := signing.HashBytes([]byte(content))
	require.NoError(t, store.UpsertSignature(context.Background(), metadata.SignatureRow{
		Path:               path,
		FileDate:           date,
		DeviceID:           deviceID,
		FileHash:           hash,
		Signature:          []byte{0x01},
		SignatureAlgorithm: signing.Algorithm,
		ComplianceStandard: "5651_kanunu",
		ComplianceVersion:  "1.0",
	}))
	return path, store
}

func TestArchiveEngine_FullCycle(t *testing.T) {
	logBase := t.TempDir()
	archiveBase := t.TempDir()
	path, store := setupSignedFile(t, logBase, "device-a", "2024-03-14", "line one\nline two\n")

	archival := config.Archival{ArchiveAfterDays: 7}
	compliance := config.Compliance{RetentionDays: 730}
	engine := NewEngine(logBase, archiveBase, archival, compliance, store, newTestLogger(), nil)
	engine.clock = func() time.Time { return time.Date(2024, 3, 25, 0, 0, 0, 0, time.UTC) }

	require.NoError(t, engine.Run(context.Background(), false, false))

	archivePath := filepath.Join(archiveBase, "device-a", "2024-03-14.log.gz")
	assert.FileExists(t, archivePath)
	assert.NoFileExists(t, path)
	assert.NoFileExists(t, path+".sig")

	row, ok, err := store.GetArchive(context.Background(), path)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "gzip", row.Compression)

	decompressed, err := decompressFile(archivePath)
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two\n", string(decompressed))
	assert.Equal(t, signing.HashBytes(decompressed), row.ArchiveHash)
}

func TestArchiveEngine_RefusesTamperedFile(t *testing.T) {
	logBase := t.TempDir()
	archiveBase := t.TempDir()
	path, store := setupSignedFile(t, logBase, "device-a", "2024-03-14", "original\n")

	require.NoError(t, os.WriteFile(path, []byte("tampered\n"), 0o644))

	archival := config.Archival{ArchiveAfterDays: 7}
	compliance := config.Compliance{RetentionDays: 730}
	engine := NewEngine(logBase, archiveBase, archival, compliance, store, newTestLogger(), nil)
	engine.clock = func() time.Time { return time.Date(2024, 3, 25, 0, 0, 0, 0, time.UTC) }

	require.NoError(t, engine.Run(context.Background(), false, false))

	assert.FileExists(t, path, "tampered original must not be deleted")
	_, ok, err := store.GetArchive(context.Background(), path)
	require.NoError(t, err)
	assert.False(t, ok, "no archive row should be created for a tampered file")
}

func TestArchiveEngine_RespectsAgeCutoff(t *testing.T) {
	logBase := t.TempDir()
	archiveBase := t.TempDir()
	path, store := setupSignedFile(t, logBase, "device-a", "2024-03-14", "too recent\n")

	archival := config.Archival{ArchiveAfterDays: 7}
	compliance := config.Compliance{RetentionDays: 730}
	engine := NewEngine(logBase, archiveBase, archival, compliance, store, newTestLogger(), nil)
	engine.clock = func() time.Time { return time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC) }

	require.NoError(t, engine.Run(context.Background(), false, false))
	assert.FileExists(t, path)
}

func TestArchiveEngine_ReplicatesToObjectStore(t *testing.T) {
	logBase := t.TempDir()
	archiveBase := t.TempDir()
	replicaBase := t.TempDir()
	path, store := setupSignedFile(t, logBase, "device-a", "2024-03-14", "replicated content\n")

	archival := config.Archival{ArchiveAfterDays: 7}
	compliance := config.Compliance{RetentionDays: 730}
	replica := objectstore.NewLocalStore(replicaBase)
	engine := NewEngine(logBase, archiveBase, archival, compliance, store, newTestLogger(), replica)
	engine.clock = func() time.Time { return time.Date(2024, 3, 25, 0, 0, 0, 0, time.UTC) }

	require.NoError(t, engine.Run(context.Background(), false, false))
	assert.NoFileExists(t, path)

	replicated, err := replica.Get(context.Background(), "device-a/2024-03-14.log.gz")
	require.NoError(t, err)

	decompressed, err := decompressFile(filepath.Join(archiveBase, "device-a", "2024-03-14.log.gz"))
	require.NoError(t, err)

	replicaBytes, err := gzipRoundTrip(replicated)
	require.NoError(t, err)
	assert.Equal(t, decompressed, replicaBytes)
}

// gzipRoundTrip decompresses an in-memory gzip payload, mirroring
// decompressFile for bytes already held in memory rather than on disk.
func gzipRoundTrip(data []byte) ([]byte, error) {
	tmp, err := os.CreateTemp("", "replica-*.log.gz")
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()
	if _, err := tmp.Write(data); err != nil {
		return nil, err
	}
	return decompressFile(tmp.Name())
}

func TestCleanOrphans_RemovesArchiveWithoutRow(t *testing.T) {
	logBase := t.TempDir()
	archiveBase := t.TempDir()
	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "meta.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	orphanPath := filepath.Join(archiveBase, "device-a", "2024-01-01.log.gz")
	require.NoError(t, os.MkdirAll(filepath.Dir(orphanPath), 0o755))
	require.NoError(t, os.WriteFile(orphanPath, []byte("not a real gzip but path-shape only"), 0o644))

	engine := NewEngine(logBase, archiveBase, config.Archival{}, config.Compliance{}, store, newTestLogger(), nil)
	require.NoError(t, engine.CleanOrphans(context.Background()))

	assert.NoFileExists(t, orphanPath)
}
