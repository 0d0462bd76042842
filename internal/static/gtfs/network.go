package gtfs

import (
	"sort"

	"github.com/paulmach/orb"

	"github.com/mini-rodalies-3d/overlay/internal/static/geometry"
)

// BuildNetwork turns a parsed feed into line and station inputs. Each
// distinct shape of a route becomes one segment; each pair of consecutive
// stops on any of its trips becomes one adjacency node. Platforms are
// folded into their parent station.
func BuildNetwork(data *Data) ([]geometry.Line, []geometry.StationInput) {
	stops := make(map[string]Stop, len(data.Stops))
	for _, s := range data.Stops {
		stops[s.StopID] = s
	}

	tripsByRoute := make(map[string][]Trip)
	for _, t := range data.Trips {
		tripsByRoute[t.RouteID] = append(tripsByRoute[t.RouteID], t)
	}

	stopTimesByTrip := make(map[string][]StopTime)
	for _, st := range data.StopTimes {
		stopTimesByTrip[st.TripID] = append(stopTimesByTrip[st.TripID], st)
	}
	for id := range stopTimesByTrip {
		times := stopTimesByTrip[id]
		sort.SliceStable(times, func(i, j int) bool { return times[i].StopSequence < times[j].StopSequence })
	}

	var lines []geometry.Line
	var stations []geometry.StationInput

	for _, route := range data.Routes {
		line := geometry.Line{
			ID:    lineID(route),
			Name:  route.RouteLongName,
			Color: color(route.RouteColor),
		}

		trips := tripsByRoute[route.RouteID]
		line.Segments = routeSegments(trips, data.Shapes)

		seenStation := make(map[string]bool)
		seenNode := make(map[[2]string]bool)
		for _, trip := range trips {
			var prev *Stop
			for _, st := range stopTimesByTrip[trip.TripID] {
				stop, ok := resolveStation(stops, st.StopID)
				if !ok {
					continue
				}
				if !seenStation[stop.StopID] {
					seenStation[stop.StopID] = true
					stations = append(stations, geometry.StationInput{
						ID:     stop.StopID,
						Name:   stop.StopName,
						Code:   stop.StopCode,
						LineID: line.ID,
						Raw:    orb.Point{stop.StopLon, stop.StopLat},
					})
				}
				if prev != nil && prev.StopName != stop.StopName {
					node := [2]string{prev.StopName, stop.StopName}
					if !seenNode[node] {
						seenNode[node] = true
						line.Nodes = append(line.Nodes, []string{node[0], node[1]})
					}
				}
				prev = &stop
			}
		}

		lines = append(lines, line)
	}

	return lines, stations
}

func routeSegments(trips []Trip, shapes map[string][]ShapePoint) []orb.LineString {
	ids := make([]string, 0)
	seen := make(map[string]bool)
	for _, t := range trips {
		if t.ShapeID == "" || seen[t.ShapeID] {
			continue
		}
		seen[t.ShapeID] = true
		ids = append(ids, t.ShapeID)
	}
	sort.Strings(ids)

	segments := make([]orb.LineString, 0, len(ids))
	for _, id := range ids {
		points := shapes[id]
		if len(points) == 0 {
			continue
		}
		ls := make(orb.LineString, 0, len(points))
		for _, p := range points {
			ls = append(ls, orb.Point{p.Lon, p.Lat})
		}
		segments = append(segments, ls)
	}
	return segments
}

// resolveStation maps a platform to its parent station when the feed has one
func resolveStation(stops map[string]Stop, stopID string) (Stop, bool) {
	stop, ok := stops[stopID]
	if !ok {
		return Stop{}, false
	}
	if parent, ok := stops[stop.ParentStation]; ok && stop.ParentStation != "" {
		return parent, true
	}
	return stop, true
}

func lineID(r Route) string {
	if r.RouteShortName != "" {
		return r.RouteShortName
	}
	return r.RouteID
}

func color(hex string) string {
	if hex == "" || hex[0] == '#' {
		return hex
	}
	return "#" + hex
}
