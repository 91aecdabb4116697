package signing

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ozkanguner/logmaster/internal/config"
	"github.com/ozkanguner/logmaster/internal/metadata/sqlite"
)

func newTestLogger() logger.Logger {
	logger.New("NOOP")
	return logger.Sugar.WithServiceName("signing-test")
}

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "meta.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSignFile_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "device-a", "2024-03-14.log")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("2024-03-14 23:59:59.998000 | 10.0.0.5 | a\n"), 0o644))

	km, err := GenerateKeyMaterial(2048)
	require.NoError(t, err)

	store := newTestStore(t)
	engine := NewEngine(km, nil, store, config.Compliance{Standard: "5651_kanunu", Version: "1.0", RetentionDays: 730}, newTestLogger())

	require.NoError(t, engine.SignFile(context.Background(), path, "device-a"))

	sidecarPath := path + ".sig"
	assert.FileExists(t, sidecarPath)

	sc, err := ReadSidecar(sidecarPath)
	require.NoError(t, err)
	assert.Equal(t, Algorithm, sc.SignatureAlgorithm)
	assert.Equal(t, "5651_kanunu", sc.ComplianceStandard)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	valid, err := VerifyDetached(km, sc.Signature, content)
	require.NoError(t, err)
	assert.True(t, valid)
	assert.Equal(t, HashBytes(content), sc.FileHash)

	row, ok, err := store.GetSignature(context.Background(), path)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sc.FileHash, row.FileHash)
}

func TestSignFile_TamperDetection(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "device-a", "2024-03-14.log")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("original content\n"), 0o644))

	km, err := GenerateKeyMaterial(2048)
	require.NoError(t, err)
	store := newTestStore(t)
	engine := NewEngine(km, nil, store, config.Compliance{Standard: "5651_kanunu", Version: "1.0", RetentionDays: 730}, newTestLogger())

	require.NoError(t, engine.SignFile(context.Background(), path, "device-a"))

	sc, err := ReadSidecar(path + ".sig")
	require.NoError(t, err)

	tampered, err := os.ReadFile(path)
	require.NoError(t, err)
	tampered[0] ^= 0xFF
	require.NoError(t, os.WriteFile(path, tampered, 0o644))

	valid, err := VerifyDetached(km, sc.Signature, tampered)
	require.NoError(t, err)
	assert.False(t, valid)
	assert.NotEqual(t, sc.FileHash, HashBytes(tampered))
}

func TestSignFile_IdempotentOnUnchangedContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "device-a", "2024-03-14.log")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("same\n"), 0o644))

	km, err := GenerateKeyMaterial(2048)
	require.NoError(t, err)
	store := newTestStore(t)
	engine := NewEngine(km, nil, store, config.Compliance{Standard: "5651_kanunu", Version: "1.0", RetentionDays: 730}, newTestLogger())

	require.NoError(t, engine.SignFile(context.Background(), path, "device-a"))
	first, err := os.ReadFile(path + ".sig")
	require.NoError(t, err)

	require.NoError(t, engine.SignFile(context.Background(), path, "device-a"))
	second, err := os.ReadFile(path + ".sig")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
