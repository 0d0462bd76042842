package gtfs

// Data is the subset of a static GTFS feed needed to draw lines and stations
type Data struct {
	Routes    []Route
	Stops     []Stop
	Trips     []Trip
	Shapes    map[string][]ShapePoint // keyed by shape_id, sorted by sequence
	StopTimes []StopTime
}

// Route is a row of routes.txt
type Route struct {
	RouteID        string
	RouteShortName string
	RouteLongName  string
	RouteType      int
	RouteColor     string
}

// Stop is a row of stops.txt
type Stop struct {
	StopID        string
	StopCode      string
	StopName      string
	StopLat       float64
	StopLon       float64
	LocationType  int
	ParentStation string
}

// Trip is a row of trips.txt
type Trip struct {
	RouteID     string
	TripID      string
	DirectionID int
	ShapeID     string
}

// ShapePoint is a row of shapes.txt
type ShapePoint struct {
	Lat      float64
	Lon      float64
	Sequence int
}

// StopTime is a row of stop_times.txt
type StopTime struct {
	TripID       string
	StopID       string
	StopSequence int
}
