package geometry

import (
	"log/slog"
	"math"

	"github.com/paulmach/orb"

	"github.com/mini-rodalies-3d/overlay/internal/geo"
	"github.com/mini-rodalies-3d/overlay/internal/logging"
)

// Resolver snaps stations onto the raw geometry of their line
type Resolver struct {
	threshold float64
	segments  map[string][]orb.LineString // keyed by line id
	logger    *slog.Logger
}

// NewResolver indexes raw line segments. A non-positive threshold falls back
// to DefaultSnapThreshold.
func NewResolver(lines []Line, threshold float64, logger *slog.Logger) *Resolver {
	if threshold <= 0 {
		threshold = DefaultSnapThreshold
	}

	segments := make(map[string][]orb.LineString, len(lines))
	for _, line := range lines {
		if line.ID == "" {
			continue
		}
		segments[line.ID] = append(segments[line.ID], line.Segments...)
	}

	return &Resolver{
		threshold: threshold,
		segments:  segments,
		logger:    logging.OrDefault(logger),
	}
}

// nearest is the best projection found across all of a line's segments
type nearest struct {
	found bool
	proj  geo.Projection
	a, b  orb.Point
}

// Snap projects one station onto its line. Stations with an invalid raw
// coordinate, or with no segment within the threshold, keep their raw
// coordinate and get no direction.
func (r *Resolver) Snap(in StationInput) Station {
	st := Station{
		ID:      in.ID,
		Code:    in.Code,
		Name:    in.Name,
		Raw:     in.Raw,
		Snapped: in.Raw,
	}
	if in.LineID != "" {
		st.Lines = []string{in.LineID}
	}

	if !geo.ValidCoordinate(in.Raw) {
		st.SnapDistance = math.Inf(1)
		return st
	}

	best := r.nearestOnLine(in.LineID, in.Raw)
	if !best.found || !(best.proj.Distance < r.threshold) {
		st.SnapDistance = math.Inf(1)
		if best.found {
			st.SnapDistance = best.proj.Distance
		}
		return st
	}

	dir := Vector{best.b[0] - best.a[0], best.b[1] - best.a[1]}
	bearing := geo.Bearing(best.a, best.b)

	st.Snapped = best.proj.Point
	st.IsSnapped = true
	st.Direction = &dir
	st.Bearing = &bearing
	st.SnapDistance = best.proj.Distance
	return st
}

func (r *Resolver) nearestOnLine(lineID string, p orb.Point) nearest {
	var best nearest
	for _, seg := range r.segments[lineID] {
		for i := 0; i+1 < len(seg); i++ {
			proj := geo.ProjectOntoSegment(p, seg[i], seg[i+1])
			if !best.found || proj.Distance < best.proj.Distance {
				best = nearest{found: true, proj: proj, a: seg[i], b: seg[i+1]}
			}
		}
	}
	return best
}

// Resolve dedups stations by code (first occurrence wins) and snaps each
// canonical station. Stations with an invalid raw coordinate are dropped. Later duplicates only contribute line membership.
// Output order follows first occurrence.
func (r *Resolver) Resolve(inputs []StationInput) []Station {
	stations := make([]Station, 0, len(inputs))
	index := make(map[string]int, len(inputs))
	unsnapped := 0

	for _, in := range inputs {
		key := in.key()
		if key == "" {
			r.logger.Warn("station dropped", slog.String("name", in.Name), slog.String("reason", "no code or id"))
			continue
		}
		if i, ok := index[key]; ok {
			stations[i].Lines = appendUnique(stations[i].Lines, in.LineID)
			continue
		}
		if !geo.ValidCoordinate(in.Raw) {
			r.logger.Warn("station dropped", slog.String("code", key), slog.String("reason", "invalid coordinate"))
			continue
		}

		st := r.Snap(in)
		if !st.IsSnapped {
			unsnapped++
			r.logger.Debug("station not snapped",
				slog.String("code", key),
				slog.String("line", in.LineID),
				slog.Float64("distance", st.SnapDistance))
		}
		index[key] = len(stations)
		stations = append(stations, st)
	}

	logging.LogOperation(r.logger, "stations_resolved",
		slog.Int("input", len(inputs)),
		slog.Int("canonical", len(stations)),
		slog.Int("unsnapped", unsnapped))
	return stations
}

func appendUnique(list []string, v string) []string {
	if v == "" {
		return list
	}
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
