// Package linedata loads the static line and station inputs from JSON files.
package linedata

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/mini-rodalies-3d/overlay/internal/geo"
	"github.com/mini-rodalies-3d/overlay/internal/logging"
	"github.com/mini-rodalies-3d/overlay/internal/static/geometry"
)

// ErrNoLines is returned when a lines file holds no usable line
var ErrNoLines = errors.New("no lines in input")

// LoadLines reads a JSON array of line inputs
func LoadLines(path string) ([]geometry.Line, error) {
	var lines []geometry.Line
	if err := readJSON(path, &lines); err != nil {
		return nil, fmt.Errorf("load lines: %w", err)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("load lines %s: %w", path, ErrNoLines)
	}
	return lines, nil
}

// LoadStations reads a JSON array of station inputs. Stations with an
// invalid raw coordinate are skipped.
func LoadStations(path string, logger *slog.Logger) ([]geometry.StationInput, error) {
	logger = logging.OrDefault(logger)

	var raw []geometry.StationInput
	if err := readJSON(path, &raw); err != nil {
		return nil, fmt.Errorf("load stations: %w", err)
	}

	stations := raw[:0]
	for _, st := range raw {
		if !geo.ValidCoordinate(st.Raw) {
			logger.Warn("station skipped",
				slog.String("station_id", st.ID),
				slog.String("reason", "invalid coordinate"))
			continue
		}
		stations = append(stations, st)
	}
	return stations, nil
}

// Load reads both inputs. An empty stationsPath yields no stations.
func Load(linesPath, stationsPath string, logger *slog.Logger) ([]geometry.Line, []geometry.StationInput, error) {
	lines, err := LoadLines(linesPath)
	if err != nil {
		return nil, nil, err
	}
	if stationsPath == "" {
		return lines, nil, nil
	}
	stations, err := LoadStations(stationsPath, logger)
	if err != nil {
		return nil, nil, err
	}
	return lines, stations, nil
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
