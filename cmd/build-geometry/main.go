package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/mini-rodalies-3d/overlay/internal/config"
	"github.com/mini-rodalies-3d/overlay/internal/logging"
	"github.com/mini-rodalies-3d/overlay/internal/static"
	"github.com/mini-rodalies-3d/overlay/internal/static/artifacts"
)

func main() {
	cfg := config.FromEnv()

	// Command line flags override the environment
	flag.StringVar(&cfg.GTFSZipPath, "gtfs", cfg.GTFSZipPath, "GTFS static zip (takes precedence over -lines)")
	flag.StringVar(&cfg.LinesPath, "lines", cfg.LinesPath, "Lines JSON file")
	flag.StringVar(&cfg.StationsPath, "stations", cfg.StationsPath, "Stations JSON file")
	flag.StringVar(&cfg.OutputDir, "out", cfg.OutputDir, "Directory the artifacts are written to")
	flag.Float64Var(&cfg.SnapThreshold, "snap-threshold", cfg.SnapThreshold, "Maximum station-to-line distance in degrees")
	flag.IntVar(&cfg.Subdivisions, "subdivisions", cfg.Subdivisions, "Smoothed points per raw gap")
	force := flag.Bool("force", false, "Regenerate even when the manifest is fresh")
	verbose := flag.Bool("v", false, "Debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := logging.NewStructuredLogger(os.Stderr, level)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	network, err := static.LoadNetwork(cfg, logger)
	if err != nil {
		logging.LogError(logger, "failed to load static network", err)
		os.Exit(1)
	}

	if !*force {
		wrote, err := static.RefreshIfStale(cfg, network, logger)
		if err != nil {
			logging.LogError(logger, "failed to write artifacts", err)
			os.Exit(1)
		}
		if !wrote {
			fmt.Printf("Artifacts in %s are fresh (use -force to rebuild)\n", cfg.OutputDir)
		}
		return
	}

	m, err := artifacts.Write(network, cfg.OutputDir, logger)
	if err != nil {
		logging.LogError(logger, "failed to write artifacts", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %d lines and %d stations (%d snapped) to %s\n",
		len(m.Lines), m.StationCount, m.SnappedCount, cfg.OutputDir)
}
