package geometry

import "github.com/paulmach/orb"

const (
	// DefaultSnapThreshold is the maximum planar distance, in degrees, between
	// a station and its line for the station to be snapped onto it.
	DefaultSnapThreshold = 0.001

	// DefaultSubdivisions is the number of output points per raw gap.
	DefaultSubdivisions = 8
)

// Line is one transit line's raw input: its topological segments and the
// ordered station nodes used to derive adjacency.
type Line struct {
	ID       string           `json:"lineId"`
	Name     string           `json:"name,omitempty"`
	Color    string           `json:"color"`
	Segments []orb.LineString `json:"segments"`
	Nodes    [][]string       `json:"nodes,omitempty"` // 1-2 station names each
}

// DisplayName is the name used by adjacency lookups
func (l Line) DisplayName() string {
	if l.Name != "" {
		return l.Name
	}
	return l.ID
}

// StationInput is a station as read from the static feed
type StationInput struct {
	ID     string    `json:"stationId"`
	Name   string    `json:"name"`
	Code   string    `json:"code"`
	LineID string    `json:"lineId"`
	Raw    orb.Point `json:"rawCoordinate"`
}

// key is the dedup key: the external code, or the id when there is no code
func (s StationInput) key() string {
	if s.Code != "" {
		return s.Code
	}
	return s.ID
}

// Vector is a planar direction in coordinate units (dx, dy)
type Vector [2]float64

// Station is a canonical station after dedup and snapping
type Station struct {
	ID    string
	Code  string
	Name  string
	Lines []string

	Raw       orb.Point
	Snapped   orb.Point // equals Raw when IsSnapped is false
	IsSnapped bool

	// Direction is the winning segment's b-a vector; nil when not snapped
	Direction    *Vector
	Bearing      *float64 // degrees, derived from Direction
	SnapDistance float64
}

// Neighbors is the result of an adjacency lookup
type Neighbors struct {
	Prev []string `json:"prev"`
	Next []string `json:"next"`
}
