package gtfs

import (
	"archive/zip"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/mini-rodalies-3d/overlay/internal/logging"
)

// Parse reads a GTFS zip. Missing or unreadable optional files are logged
// and left empty; routes.txt and stops.txt are required.
func Parse(zipPath string, logger *slog.Logger) (*Data, error) {
	logger = logging.OrDefault(logger)

	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open zip: %w", err)
	}
	defer r.Close()

	files := make(map[string]*zip.File, len(r.File))
	for _, f := range r.File {
		files[f.Name] = f
	}

	data := &Data{Shapes: make(map[string][]ShapePoint)}

	required := map[string]func(row) error{
		"routes.txt": func(get row) error {
			routeType, _ := strconv.Atoi(get("route_type"))
			data.Routes = append(data.Routes, Route{
				RouteID:        get("route_id"),
				RouteShortName: get("route_short_name"),
				RouteLongName:  get("route_long_name"),
				RouteType:      routeType,
				RouteColor:     get("route_color"),
			})
			return nil
		},
		"stops.txt": func(get row) error {
			lat, errLat := strconv.ParseFloat(get("stop_lat"), 64)
			lon, errLon := strconv.ParseFloat(get("stop_lon"), 64)
			if err := errors.Join(errLat, errLon); err != nil {
				return fmt.Errorf("stop %s: %w", get("stop_id"), err)
			}
			locType, _ := strconv.Atoi(get("location_type"))
			data.Stops = append(data.Stops, Stop{
				StopID:        get("stop_id"),
				StopCode:      get("stop_code"),
				StopName:      get("stop_name"),
				StopLat:       lat,
				StopLon:       lon,
				LocationType:  locType,
				ParentStation: get("parent_station"),
			})
			return nil
		},
	}
	optional := map[string]func(row) error{
		"trips.txt": func(get row) error {
			direction, _ := strconv.Atoi(get("direction_id"))
			data.Trips = append(data.Trips, Trip{
				RouteID:     get("route_id"),
				TripID:      get("trip_id"),
				DirectionID: direction,
				ShapeID:     get("shape_id"),
			})
			return nil
		},
		"shapes.txt": func(get row) error {
			lat, errLat := strconv.ParseFloat(get("shape_pt_lat"), 64)
			lon, errLon := strconv.ParseFloat(get("shape_pt_lon"), 64)
			if err := errors.Join(errLat, errLon); err != nil {
				return fmt.Errorf("shape %s: %w", get("shape_id"), err)
			}
			seq, _ := strconv.Atoi(get("shape_pt_sequence"))
			id := get("shape_id")
			data.Shapes[id] = append(data.Shapes[id], ShapePoint{Lat: lat, Lon: lon, Sequence: seq})
			return nil
		},
		"stop_times.txt": func(get row) error {
			seq, _ := strconv.Atoi(get("stop_sequence"))
			data.StopTimes = append(data.StopTimes, StopTime{
				TripID:       get("trip_id"),
				StopID:       get("stop_id"),
				StopSequence: seq,
			})
			return nil
		},
	}

	for name, fn := range required {
		f, ok := files[name]
		if !ok {
			return nil, fmt.Errorf("gtfs feed is missing %s", name)
		}
		skipped, err := readCSV(f, fn)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", name, err)
		}
		logSkipped(logger, name, skipped)
	}
	for name, fn := range optional {
		f, ok := files[name]
		if !ok {
			logger.Warn("gtfs file missing", slog.String("file", name))
			continue
		}
		skipped, err := readCSV(f, fn)
		if err != nil {
			logging.LogError(logger, "failed to parse gtfs file", err, slog.String("file", name))
			continue
		}
		logSkipped(logger, name, skipped)
	}

	for id := range data.Shapes {
		points := data.Shapes[id]
		sort.SliceStable(points, func(i, j int) bool { return points[i].Sequence < points[j].Sequence })
	}

	logging.LogOperation(logger, "gtfs_parsed",
		slog.Int("routes", len(data.Routes)),
		slog.Int("stops", len(data.Stops)),
		slog.Int("trips", len(data.Trips)),
		slog.Int("shapes", len(data.Shapes)))
	return data, nil
}

func logSkipped(logger *slog.Logger, name string, skipped int) {
	if skipped > 0 {
		logger.Warn("gtfs rows skipped", slog.String("file", name), slog.Int("rows", skipped))
	}
}

// row returns a trimmed field of the current record by column name
type row func(field string) string

// readCSV calls fn for every record. Malformed records and records fn
// rejects are skipped and counted.
func readCSV(f *zip.File, fn func(row) error) (int, error) {
	rc, err := f.Open()
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	reader := csv.NewReader(rc)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("failed to read header: %w", err)
	}
	idx := makeIndex(header)

	skipped := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			return skipped, nil
		}
		if err != nil {
			skipped++
			continue
		}

		get := func(field string) string {
			if i, ok := idx[field]; ok && i < len(record) {
				return strings.TrimSpace(record[i])
			}
			return ""
		}
		if err := fn(get); err != nil {
			skipped++
		}
	}
}

func makeIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		// some exporters prepend a UTF-8 BOM to the first column
		idx[strings.TrimPrefix(strings.TrimSpace(h), "\ufeff")] = i
	}
	return idx
}
