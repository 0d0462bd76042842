// Package static turns the configured static inputs into a Network and keeps
// the generated artifacts on disk up to date.
package static

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/mini-rodalies-3d/overlay/internal/config"
	"github.com/mini-rodalies-3d/overlay/internal/logging"
	"github.com/mini-rodalies-3d/overlay/internal/static/artifacts"
	"github.com/mini-rodalies-3d/overlay/internal/static/geometry"
	"github.com/mini-rodalies-3d/overlay/internal/static/gtfs"
	"github.com/mini-rodalies-3d/overlay/internal/static/linedata"
)

// ErrNoStaticInput means neither a GTFS zip nor a lines file is configured
var ErrNoStaticInput = errors.New("no static input configured (set GTFS_ZIP_PATH or LINES_PATH)")

// LoadNetwork reads the configured inputs and derives the network. A GTFS
// zip takes precedence over the JSON line/station files.
func LoadNetwork(cfg *config.Config, logger *slog.Logger) (*geometry.Network, error) {
	logger = logging.OrDefault(logger)

	lines, stations, err := loadInputs(cfg, logger)
	if err != nil {
		return nil, err
	}

	opts := geometry.Options{
		SnapThreshold: cfg.SnapThreshold,
		Subdivisions:  cfg.Subdivisions,
	}
	return geometry.Build(lines, stations, opts, logger), nil
}

func loadInputs(cfg *config.Config, logger *slog.Logger) ([]geometry.Line, []geometry.StationInput, error) {
	switch {
	case cfg.GTFSZipPath != "":
		data, err := gtfs.Parse(cfg.GTFSZipPath, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("parse gtfs: %w", err)
		}
		lines, stations := gtfs.BuildNetwork(data)
		return lines, stations, nil
	case cfg.LinesPath != "":
		return linedata.Load(cfg.LinesPath, cfg.StationsPath, logger)
	default:
		return nil, nil, ErrNoStaticInput
	}
}

// RefreshIfStale regenerates the artifacts in cfg.OutputDir when their
// manifest is missing or older than cfg.StaticRefreshDays. It reports
// whether anything was written.
func RefreshIfStale(cfg *config.Config, n *geometry.Network, logger *slog.Logger) (bool, error) {
	logger = logging.OrDefault(logger)

	manifest := filepath.Join(cfg.OutputDir, artifacts.ManifestFile)
	if !artifacts.IsStale(manifest, cfg.StaticRefreshDays) {
		logger.Info("static artifacts are fresh, skipping refresh", slog.String("manifest", manifest))
		return false, nil
	}

	if _, err := artifacts.Write(n, cfg.OutputDir, logger); err != nil {
		return false, fmt.Errorf("refresh artifacts: %w", err)
	}
	return true, nil
}
