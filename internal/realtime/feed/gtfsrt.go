package feed

import (
	"regexp"
	"time"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/paulmach/orb"

	"github.com/mini-rodalies-3d/overlay/internal/realtime/vehicles"
)

// lineCodeRegex extracts the line from a Rodalies vehicle label
// (e.g. "R4-77626-PLATF.(1)" -> "R4")
var lineCodeRegex = regexp.MustCompile(`^(R\d+[NS]?|RG\d+|RL\d+|RT\d+)`)

// DecodeVehiclePositions converts the VehiclePosition entities of a GTFS-RT
// feed into a batch. Entities without a vehicle position are skipped and
// counted; coordinates are passed through unchecked.
func DecodeVehiclePositions(msg *gtfs.FeedMessage, scope string) (vehicles.Batch, int) {
	batch := vehicles.Batch{Scope: scope}
	skipped := 0

	for _, entity := range msg.GetEntity() {
		vp := entity.GetVehicle()
		if vp == nil {
			continue
		}
		pos := vp.GetPosition()
		if pos == nil {
			skipped++
			continue
		}

		s := vehicles.Sample{
			ID:      vehicleKey(entity, vp),
			Current: orb.Point{float64(pos.GetLongitude()), float64(pos.GetLatitude())},
		}

		if desc := vp.GetVehicle(); desc != nil {
			s.Label = desc.GetLabel()
		}
		if trip := vp.GetTrip(); trip != nil && trip.GetRouteId() != "" {
			s.Kind = trip.GetRouteId()
		} else if code := lineCodeRegex.FindString(s.Label); code != "" {
			s.Kind = code
		}
		if pos.Bearing != nil {
			bearing := float64(pos.GetBearing())
			s.Bearing = &bearing
		}
		if vp.OccupancyStatus != nil {
			s.Occupancy = vp.GetOccupancyStatus().String()
		}
		if vp.CurrentStatus != nil {
			s.Flags = append(s.Flags, vp.GetCurrentStatus().String())
		}
		if vp.CongestionLevel != nil {
			s.Flags = append(s.Flags, vp.GetCongestionLevel().String())
		}
		if vp.Timestamp != nil {
			s.FeedTimestamp = time.Unix(int64(vp.GetTimestamp()), 0).UTC()
		}

		batch.Samples = append(batch.Samples, s)
	}

	return batch, skipped
}

// vehicleKey prefers the vehicle id, falling back to the entity id
func vehicleKey(entity *gtfs.FeedEntity, vp *gtfs.VehiclePosition) string {
	if id := vp.GetVehicle().GetId(); id != "" {
		return id
	}
	if id := entity.GetId(); id != "" {
		return "entity:" + id
	}
	return ""
}
