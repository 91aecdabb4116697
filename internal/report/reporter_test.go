package report

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ozkanguner/logmaster/internal/metadata"
	"github.com/ozkanguner/logmaster/internal/metadata/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "meta.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestComputeScore_PerfectWindow(t *testing.T) {
	score := computeScore(
		metadata.SignatureStats{Total: 10, Valid: 10, Timestamped: 10},
		metadata.ArchiveStats{Total: 10},
		metadata.AccessStats{Total: 10, Successful: 10},
	)
	assert.Equal(t, 100.0, score)
}

func TestComputeScore_AllFailuresFloorsAtZero(t *testing.T) {
	score := computeScore(
		metadata.SignatureStats{Total: 10, Valid: 0, Timestamped: 0},
		metadata.ArchiveStats{Total: 0},
		metadata.AccessStats{Total: 10, Successful: 0},
	)
	assert.Equal(t, 0.0, score)
}

func TestComputeScore_EmptyDenominatorsYieldNoPenalty(t *testing.T) {
	score := computeScore(
		metadata.SignatureStats{Total: 0},
		metadata.ArchiveStats{Total: 5},
		metadata.AccessStats{Total: 0},
	)
	assert.Equal(t, 100.0, score)
}

func TestComputeScore_FullyEmptyWindowScoresPerfect(t *testing.T) {
	score := computeScore(
		metadata.SignatureStats{Total: 0},
		metadata.ArchiveStats{Total: 0},
		metadata.AccessStats{Total: 0},
	)
	assert.Equal(t, 100.0, score)
}

func TestComputeScore_BoundedToRange(t *testing.T) {
	score := computeScore(
		metadata.SignatureStats{Total: 1, Valid: 1, Timestamped: 1},
		metadata.ArchiveStats{Total: 1},
		metadata.AccessStats{Total: 1, Successful: 1},
	)
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 100.0)
}

func TestGenerate_PersistsReport(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertSignature(ctx, metadata.SignatureRow{
		Path:      "/base/device-a/2024-03-14.log",
		FileDate:  "2024-03-14",
		FileHash:  "h",
		Signature: []byte{0x01},
	}))

	reporter := NewReporter(store)
	rep, err := reporter.Generate(ctx, "2024-03-01", "2024-03-31", "2024-04-01T00:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, 1, rep.TotalSignatures)
	assert.NotEmpty(t, rep.ID)
	assert.GreaterOrEqual(t, rep.Score, 0.0)
	assert.LessOrEqual(t, rep.Score, 100.0)
}
