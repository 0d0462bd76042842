package db

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	_ "modernc.org/sqlite"

	"github.com/mini-rodalies-3d/overlay/internal/logging"
	"github.com/mini-rodalies-3d/overlay/internal/realtime/vehicles"
)

//go:embed schema.sql
var schemaSQL string

// DB wraps a SQLite connection with write serialisation
type DB struct {
	conn    *sql.DB
	writeMu sync.Mutex // SQLite allows a single writer
	logger  *slog.Logger
}

var _ SnapshotStore = (*DB)(nil)

// Connect opens a SQLite database in WAL mode
func Connect(dbPath string, logger *slog.Logger) (*DB, error) {
	logger = logging.OrDefault(logger)

	dsn := "file:" + dbPath + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(time.Hour)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			logger.Warn("pragma failed", slog.String("pragma", pragma), slog.String("error", err.Error()))
		}
	}

	logger.Info("connected to sqlite", slog.String("path", dbPath))
	return &DB{conn: conn, logger: logger}, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

// EnsureSchema creates the tables from the embedded schema.sql
func (db *DB) EnsureSchema(ctx context.Context) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	if _, err := db.conn.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// RecordBatch stores a batch under a new snapshot id
func (db *DB) RecordBatch(ctx context.Context, batch vehicles.Batch, polledAt time.Time) (string, error) {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	snapshotID := uuid.New().String()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO rt_snapshots (snapshot_id, scope, polled_at_utc, vehicle_count) VALUES (?, ?, ?, ?)",
		snapshotID, batch.Scope, formatTime(polledAt), len(batch.Samples),
	); err != nil {
		return "", fmt.Errorf("failed to create snapshot: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO rt_vehicle_samples (
			snapshot_id, vehicle_id, longitude, latitude, kind, label,
			occupancy, flags, bearing, feed_timestamp_utc
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare sample statement: %w", err)
	}
	defer stmt.Close()

	for _, s := range batch.Samples {
		var flags, feedTS *string
		if len(s.Flags) > 0 {
			data, err := json.Marshal(s.Flags)
			if err != nil {
				return "", fmt.Errorf("failed to encode flags for %s: %w", s.ID, err)
			}
			str := string(data)
			flags = &str
		}
		if !s.FeedTimestamp.IsZero() {
			str := formatTime(s.FeedTimestamp)
			feedTS = &str
		}

		if _, err := stmt.ExecContext(ctx,
			snapshotID, s.ID, s.Current.Lon(), s.Current.Lat(),
			nullString(s.Kind), nullString(s.Label), nullString(s.Occupancy),
			flags, s.Bearing, feedTS,
		); err != nil {
			return "", fmt.Errorf("failed to insert sample %s: %w", s.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return snapshotID, nil
}

// LatestSnapshots returns the newest snapshot of each scope, ordered by scope
func (db *DB) LatestSnapshots(ctx context.Context) ([]Snapshot, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT s.snapshot_id, s.scope, s.polled_at_utc
		FROM rt_snapshots s
		WHERE s.polled_at_utc = (
			SELECT MAX(polled_at_utc) FROM rt_snapshots WHERE scope = s.scope
		)
		ORDER BY s.scope
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}

	var snapshots []Snapshot
	seen := make(map[string]bool)
	for rows.Next() {
		var snap Snapshot
		var polledAt string
		if err := rows.Scan(&snap.ID, &snap.Batch.Scope, &polledAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		if seen[snap.Batch.Scope] {
			continue
		}
		seen[snap.Batch.Scope] = true
		if snap.PolledAt, err = parseTime(polledAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to parse polled_at %q: %w", polledAt, err)
		}
		snapshots = append(snapshots, snap)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate snapshots: %w", err)
	}
	if len(snapshots) == 0 {
		return nil, ErrNoSnapshot
	}

	for i := range snapshots {
		samples, err := db.samples(ctx, snapshots[i].ID)
		if err != nil {
			return nil, err
		}
		snapshots[i].Batch.Samples = samples
	}
	return snapshots, nil
}

func (db *DB) samples(ctx context.Context, snapshotID string) ([]vehicles.Sample, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT vehicle_id, longitude, latitude, kind, label, occupancy,
			flags, bearing, feed_timestamp_utc
		FROM rt_vehicle_samples
		WHERE snapshot_id = ?
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
		var kind, label, occupancy, flags, feedTS sql.NullString
		var bearing sql.NullFloat64

		if err := rows.Scan(&s.ID, &lon, &lat, &kind, &label, &occupancy, &flags, &bearing, &feedTS); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}

		s.Current = orb.Point{lon, lat}
		s.Kind = kind.String
		s.Label = label.String
		s.Occupancy = occupancy.String
		if flags.Valid {
			if err := json.Unmarshal([]byte(flags.String), &s.Flags); err != nil {
				return nil, fmt.Errorf("failed to decode flags for %s: %w", s.ID, err)
			}
		}
		if bearing.Valid {
			b := bearing.Float64
			s.Bearing = &b
		}
		if feedTS.Valid {
			if s.FeedTimestamp, err = parseTime(feedTS.String); err != nil {
				return nil, fmt.Errorf("failed to parse feed timestamp for %s: %w", s.ID, err)
			}
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

// CleanupBefore deletes snapshots polled before cutoff along with their samples
func (db *DB) CleanupBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	queries := []struct {
		name  string
		query string
	}{
		{
			name:  "samples",
			query: "DELETE FROM rt_vehicle_samples WHERE snapshot_id IN (SELECT snapshot_id FROM rt_snapshots WHERE polled_at_utc < ?)",
		},
		{
			name:  "snapshots",
			query: "DELETE FROM rt_snapshots WHERE polled_at_utc < ?",
		},
	}

	var deleted int64
	for _, q := range queries {
		result, err := db.conn.ExecContext(ctx, q.query, formatTime(cutoff))
		if err != nil {
			return deleted, fmt.Errorf("failed to cleanup %s: %w", q.name, err)
		}
		rows, _ := result.RowsAffected()
		deleted += rows
	}

	if deleted > 0 {
		db.logger.Info("cleanup", slog.Int64("deleted", deleted), slog.Time("cutoff", cutoff))
	}
	return deleted, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
