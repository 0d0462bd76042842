package db

import (
	"context"
	"errors"
	"time"

	"github.com/mini-rodalies-3d/overlay/internal/realtime/vehicles"
)

// ErrNoSnapshot is returned when no batch has been recorded yet
var ErrNoSnapshot = errors.New("no snapshot recorded")

// Snapshot is one recorded batch
type Snapshot struct {
	ID       string
	PolledAt time.Time
	Batch    vehicles.Batch
}

// SnapshotStore persists ingested batches. SQLite and Postgres both
// implement it.
type SnapshotStore interface {
	EnsureSchema(ctx context.Context) error
	RecordBatch(ctx context.Context, batch vehicles.Batch, polledAt time.Time) (string, error)
	// LatestSnapshots returns the most recent snapshot of every scope
	LatestSnapshots(ctx context.Context) ([]Snapshot, error)
	CleanupBefore(ctx context.Context, cutoff time.Time) (int64, error)
	Close() error
}

// timeLayout sorts lexically in UTC
const timeLayout = "2006-01-02T15:04:05.000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// Cleanup deletes snapshots older than the retention window
func Cleanup(ctx context.Context, store SnapshotStore, retention time.Duration) (int64, error) {
	if retention < time.Hour {
		retention = time.Hour
	}
	return store.CleanupBefore(ctx, time.Now().Add(-retention))
}
