package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

const earthRadiusMeters = 6371000

// Haversine calculates the distance between two [lng, lat] points in meters
func Haversine(a, b orb.Point) float64 {
	phi1 := a.Lat() * math.Pi / 180
	phi2 := b.Lat() * math.Pi / 180
	deltaPhi := (b.Lat() - a.Lat()) * math.Pi / 180
	deltaLambda := (b.Lon() - a.Lon()) * math.Pi / 180

	h := math.Sin(deltaPhi/2)*math.Sin(deltaPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(deltaLambda/2)*math.Sin(deltaLambda/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusMeters * c
}

// Bearing calculates the bearing from a to b in degrees (0-360)
func Bearing(a, b orb.Point) float64 {
	phi1 := a.Lat() * math.Pi / 180
	phi2 := b.Lat() * math.Pi / 180
	deltaLambda := (b.Lon() - a.Lon()) * math.Pi / 180

	x := math.Sin(deltaLambda) * math.Cos(phi2)
	y := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(deltaLambda)

	bearing := math.Atan2(x, y) * 180 / math.Pi
	return math.Mod(bearing+360, 360)
}

// Lerp linearly interpolates between two points.
// fraction 1 returns end exactly, not start + (end-start).
func Lerp(start, end orb.Point, fraction float64) orb.Point {
	if fraction >= 1 {
		return end
	}
	if fraction <= 0 {
		return start
	}
	return orb.Point{
		start[0] + (end[0]-start[0])*fraction,
		start[1] + (end[1]-start[1])*fraction,
	}
}

// Clamp constrains a value between min and max
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// Projection is the closest point on a segment to some query point.
type Projection struct {
	T        float64 // parameter along a->b, clamped to [0,1]
	Point    orb.Point
	Distance float64 // planar, in coordinate units
}

// ProjectOntoSegment projects p onto the segment a->b treating lon/lat as a
// flat plane. A degenerate segment projects onto a.
func ProjectOntoSegment(p, a, b orb.Point) Projection {
	vx := b[0] - a[0]
	vy := b[1] - a[1]
	wx := p[0] - a[0]
	wy := p[1] - a[1]

	t := 0.0
	if denom := vx*vx + vy*vy; denom > 0 {
		t = Clamp((wx*vx+wy*vy)/denom, 0, 1)
	}

	closest := orb.Point{a[0] + t*vx, a[1] + t*vy}
	return Projection{
		T:        t,
		Point:    closest,
		Distance: planar.Distance(p, closest),
	}
}

// LineLength calculates the total length of a line in meters
func LineLength(ls orb.LineString) float64 {
	var total float64
	for i := 1; i < len(ls); i++ {
		total += Haversine(ls[i-1], ls[i])
	}
	return total
}

// ValidCoordinate rejects NaN/Inf and anything outside lon/lat bounds.
// (0,0) is rejected too: feeds emit it for vehicles with no fix.
func ValidCoordinate(p orb.Point) bool {
	lon, lat := p[0], p[1]
	if math.IsNaN(lon) || math.IsNaN(lat) || math.IsInf(lon, 0) || math.IsInf(lat, 0) {
		return false
	}
	if lon == 0 && lat == 0 {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
