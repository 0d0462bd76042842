package geometry

import (
	"log/slog"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/mini-rodalies-3d/overlay/internal/logging"
)

// Options controls the static derivation
type Options struct {
	SnapThreshold float64
	Subdivisions  int
}

// Network is the immutable result of preprocessing static line data
type Network struct {
	Lines     []Line
	Rendered  map[string][]orb.LineString // line id -> smoothed segments
	Stations  []Station
	Adjacency *Adjacency
}

// Build smooths every line, resolves stations and derives adjacency.
// Snapping works on the raw segments, not the smoothed ones.
func Build(lines []Line, stations []StationInput, opts Options, logger *slog.Logger) *Network {
	logger = logging.OrDefault(logger)
	start := time.Now()

	if opts.Subdivisions < 1 {
		opts.Subdivisions = DefaultSubdivisions
	}

	kept := make([]Line, 0, len(lines))
	rendered := make(map[string][]orb.LineString, len(lines))
	for _, line := range lines {
		if line.ID == "" {
			logger.Warn("line dropped", slog.String("reason", "missing lineId"))
			continue
		}
		kept = append(kept, line)
		rendered[line.ID] = append(rendered[line.ID], SmoothLine(line, opts.Subdivisions)...)
	}

	resolver := NewResolver(kept, opts.SnapThreshold, logger)
	n := &Network{
		Lines:     kept,
		Rendered:  rendered,
		Stations:  resolver.Resolve(stations),
		Adjacency: BuildAdjacency(kept),
	}

	logging.LogOperation(logger, "network_built",
		slog.Int("lines", len(kept)),
		slog.Int("stations", len(n.Stations)),
		slog.Duration("duration", time.Since(start)))
	return n
}

// LinesCollection renders smoothed geometry as one MultiLineString feature
// per line. An empty lineID means every line.
func (n *Network) LinesCollection(lineID string) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, line := range n.Lines {
		if lineID != "" && line.ID != lineID {
			continue
		}
		segments := n.Rendered[line.ID]
		if len(segments) == 0 {
			continue
		}

		f := geojson.NewFeature(orb.MultiLineString(segments))
		f.ID = line.ID
		f.Properties = geojson.Properties{
			"id":            line.ID,
			"name":          line.DisplayName(),
			"color":         line.Color,
			"segment_count": len(segments),
		}
		fc.Append(f)
	}
	return fc
}

// StationsCollection renders canonical stations at their snapped coordinate.
// An empty lineID means every station.
func (n *Network) StationsCollection(lineID string) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, st := range n.Stations {
		if lineID != "" && !contains(st.Lines, lineID) {
			continue
		}

		f := geojson.NewFeature(st.Snapped)
		f.ID = st.ID
		props := geojson.Properties{
			"id":              st.ID,
			"code":            st.Code,
			"name":            st.Name,
			"lines":           st.Lines,
			"snapped":         st.IsSnapped,
			"raw_coordinates": [2]float64{st.Raw[0], st.Raw[1]},
		}
		if st.Direction != nil {
			props["direction"] = [2]float64{st.Direction[0], st.Direction[1]}
			props["snap_distance"] = st.SnapDistance
		}
		if st.Bearing != nil {
			props["bearing"] = *st.Bearing
		}
		f.Properties = props
		fc.Append(f)
	}
	return fc
}

// Station finds a canonical station by code or id
func (n *Network) Station(key string) (Station, bool) {
	for _, st := range n.Stations {
		if st.Code == key || st.ID == key {
			return st, true
		}
	}
	return Station{}, false
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
