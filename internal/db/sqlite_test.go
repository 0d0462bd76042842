package db

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mini-rodalies-3d/overlay/internal/realtime/vehicles"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupSQLite(t *testing.T) *DB {
	t.Helper()
	db, err := Connect(filepath.Join(t.TempDir(), "overlay.db"), quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.EnsureSchema(context.Background()))
	return db
}

func testBatch(scope string, ids ...string) vehicles.Batch {
	b := vehicles.Batch{Scope: scope}
	for i, id := range ids {
		b.Samples = append(b.Samples, vehicles.Sample{
			ID:      id,
			Current: orb.Point{2.1 + float64(i)*0.01, 41.3},
		})
	}
	return b
}

func TestEnsureSchemaIsRepeatable(t *testing.T) {
	db := setupSQLite(t)
	assert.NoError(t, db.EnsureSchema(context.Background()))
}

func TestLatestSnapshotsEmpty(t *testing.T) {
	db := setupSQLite(t)
	_, err := db.LatestSnapshots(context.Background())
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestRecordBatchRoundTrip(t *testing.T) {
	db := setupSQLite(t)
	ctx := context.Background()
	polledAt := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

	bearing := 87.5
	batch := vehicles.Batch{Scope: "rodalies", Samples: []vehicles.Sample{
		{
			ID:            "77626",
			Current:       orb.Point{2.140, 41.379},
			Kind:          "R4",
			Label:         "R4-77626-PLATF.(1)",
			Occupancy:     "FEW_SEATS_AVAILABLE",
			Flags:         []string{"STOPPED_AT"},
			Bearing:       &bearing,
			FeedTimestamp: polledAt.Add(-10 * time.Second),
		},
		{ID: "88001", Current: orb.Point{2.17, 41.38}},
	}}

	id, err := db.RecordBatch(ctx, batch, polledAt)
	require.NoError(t, err)
	assert.Len(t, id, 36)

	snaps, err := db.LatestSnapshots(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 1)

	snap := snaps[0]
	assert.Equal(t, id, snap.ID)
	assert.Equal(t, polledAt, snap.PolledAt)
	assert.Equal(t, "rodalies", snap.Batch.Scope)
	require.Len(t, snap.Batch.Samples, 2)

	got := snap.Batch.Samples[0]
	assert.Equal(t, "77626", got.ID)
	assert.Equal(t, orb.Point{2.140, 41.379}, got.Current)
	assert.Equal(t, "R4", got.Kind)
	assert.Equal(t, []string{"STOPPED_AT"}, got.Flags)
	require.NotNil(t, got.Bearing)
	assert.Equal(t, 87.5, *got.Bearing)
	assert.Equal(t, polledAt.Add(-10*time.Second), got.FeedTimestamp)

	bare := snap.Batch.Samples[1]
	assert.Nil(t, bare.Flags)
	assert.Nil(t, bare.Bearing)
	assert.True(t, bare.FeedTimestamp.IsZero())
}

func TestLatestSnapshotsPerScope(t *testing.T) {
	db := setupSQLite(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

	_, err := db.RecordBatch(ctx, testBatch("rodalies", "a", "b"), base)
	require.NoError(t, err)
	latest, err := db.RecordBatch(ctx, testBatch("rodalies", "a"), base.Add(15*time.Second))
	require.NoError(t, err)
	_, err = db.RecordBatch(ctx, testBatch("metro", "m1"), base.Add(5*time.Second))
	require.NoError(t, err)

	snaps, err := db.LatestSnapshots(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 2)

	assert.Equal(t, "metro", snaps[0].Batch.Scope)
	assert.Equal(t, "rodalies", snaps[1].Batch.Scope)
	assert.Equal(t, latest, snaps[1].ID)
	assert.Len(t, snaps[1].Batch.Samples, 1)
}

func TestCleanupBefore(t *testing.T) {
	db := setupSQLite(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

	_, err := db.RecordBatch(ctx, testBatch("rodalies", "a", "b"), base)
	require.NoError(t, err)
	_, err = db.RecordBatch(ctx, testBatch("rodalies", "a"), base.Add(2*time.Hour))
	require.NoError(t, err)

	deleted, err := db.CleanupBefore(ctx, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted, "one snapshot and its two samples")

	snaps, err := db.LatestSnapshots(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, base.Add(2*time.Hour), snaps[0].PolledAt)

	deleted, err = db.CleanupBefore(ctx, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestCleanupKeepsRecentSnapshots(t *testing.T) {
	db := setupSQLite(t)
	ctx := context.Background()

	_, err := db.RecordBatch(ctx, testBatch("", "a"), time.Now())
	require.NoError(t, err)

	deleted, err := Cleanup(ctx, db, time.Minute)
	require.NoError(t, err)
	assert.Zero(t, deleted, "retention is at least an hour")
}
