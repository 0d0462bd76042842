package db

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paulmach/orb"

	"github.com/mini-rodalies-3d/overlay/internal/logging"
	"github.com/mini-rodalies-3d/overlay/internal/realtime/vehicles"
)

//go:embed schema_postgres.sql
var postgresSchemaSQL string

// PostgresStore records snapshots in Postgres
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ SnapshotStore = (*PostgresStore)(nil)

func ConnectPostgres(ctx context.Context, databaseURL string, logger *slog.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{pool: pool, logger: logging.OrDefault(logger)}, nil
}

func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}

func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, postgresSchemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// RecordBatch stores the snapshot row and bulk-copies its samples
func (p *PostgresStore) RecordBatch(ctx context.Context, batch vehicles.Batch, polledAt time.Time) (string, error) {
	snapshotID := uuid.New()

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		"INSERT INTO rt_snapshots (snapshot_id, scope, polled_at_utc, vehicle_count) VALUES ($1, $2, $3, $4)",
		snapshotID, batch.Scope, polledAt.UTC(), len(batch.Samples),
	); err != nil {
		return "", fmt.Errorf("failed to create snapshot: %w", err)
	}

	seen := make(map[string]bool, len(batch.Samples))
	rows := make([][]any, 0, len(batch.Samples))
	for _, s := range batch.Samples {
		if seen[s.ID] {
			continue
		}
		seen[s.ID] = true

		var feedTS *time.Time
		if !s.FeedTimestamp.IsZero() {
			ts := s.FeedTimestamp.UTC()
			feedTS = &ts
		}
		rows = append(rows, []any{
			snapshotID, s.ID, s.Current.Lon(), s.Current.Lat(),
			nullString(s.Kind), nullString(s.Label), nullString(s.Occupancy),
			s.Flags, s.Bearing, feedTS,
		})
	}

	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"rt_vehicle_samples"},
		[]string{"snapshot_id", "vehicle_id", "longitude", "latitude", "kind", "label",
			"occupancy", "flags", "bearing", "feed_timestamp_utc"},
		pgx.CopyFromRows(rows),
	); err != nil {
		return "", fmt.Errorf("failed to copy samples: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return snapshotID.String(), nil
}

func (p *PostgresStore) LatestSnapshots(ctx context.Context) ([]Snapshot, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT DISTINCT ON (scope) snapshot_id, scope, polled_at_utc
		FROM rt_snapshots
		ORDER BY scope, polled_at_utc DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}

	var (
		snapshots []Snapshot
		ids       []uuid.UUID
	)
	for rows.Next() {
		var snap Snapshot
		var id uuid.UUID
		if err := rows.Scan(&id, &snap.Batch.Scope, &snap.PolledAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snap.ID = id.String()
		snap.PolledAt = snap.PolledAt.UTC()
		snapshots = append(snapshots, snap)
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate snapshots: %w", err)
	}
	if len(snapshots) == 0 {
		return nil, ErrNoSnapshot
	}

	for i := range snapshots {
		samples, err := p.samples(ctx, ids[i])
		if err != nil {
			return nil, err
		}
		snapshots[i].Batch.Samples = samples
	}
	return snapshots, nil
}

func (p *PostgresStore) samples(ctx context.Context, snapshotID uuid.UUID) ([]vehicles.Sample, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT vehicle_id, longitude, latitude, kind, label, occupancy,
			flags, bearing, feed_timestamp_utc
		FROM rt_vehicle_samples
		WHERE snapshot_id = $1
		ORDER BY vehicle_id
	`, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	var samples []vehicles.Sample
	for rows.Next() {
		var s vehicles.Sample
		var lon, lat float64
		var kind, label, occupancy *string
		var feedTS *time.Time

		if err := rows.Scan(&s.ID, &lon, &lat, &kind, &label, &occupancy, &s.Flags, &s.Bearing, &feedTS); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}

		s.Current = orb.Point{lon, lat}
		s.Kind = deref(kind)
		s.Label = deref(label)
		s.Occupancy = deref(occupancy)
		if feedTS != nil {
			s.FeedTimestamp = feedTS.UTC()
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

// CleanupBefore relies on ON DELETE CASCADE for samples
func (p *PostgresStore) CleanupBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := p.pool.Exec(ctx, "DELETE FROM rt_snapshots WHERE polled_at_utc < $1", cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup snapshots: %w", err)
	}
	if n := tag.RowsAffected(); n > 0 {
		p.logger.Info("cleanup", slog.Int64("deleted", n), slog.Time("cutoff", cutoff))
	}
	return tag.RowsAffected(), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
