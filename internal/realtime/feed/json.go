package feed

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/paulmach/orb"

	"github.com/mini-rodalies-3d/overlay/internal/realtime/vehicles"
)

// jsonVehicle is one entry of a JSON batch:
// {"id": "...", "coordinate": [lon, lat], "kind": "...", ...}
type jsonVehicle struct {
	ID         string     `json:"id"`
	Coordinate []float64  `json:"coordinate"`
	Kind       string     `json:"kind"`
	Label      string     `json:"label"`
	Occupancy  string     `json:"occupancy"`
	Flags      []string   `json:"flags"`
	Bearing    *float64   `json:"bearing"`
	Timestamp  *time.Time `json:"timestamp"`
}

// DecodeJSONBatch reads a JSON array of vehicles. A coordinate that is not a
// [lon, lat] pair becomes NaN so the sample is rejected on ingest.
func DecodeJSONBatch(r io.Reader, scope string) (vehicles.Batch, error) {
	var raw []jsonVehicle
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return vehicles.Batch{}, fmt.Errorf("failed to decode vehicle batch: %w", err)
	}

	batch := vehicles.Batch{Scope: scope, Samples: make([]vehicles.Sample, 0, len(raw))}
	for _, v := range raw {
		s := vehicles.Sample{
			ID:        v.ID,
			Current:   orb.Point{math.NaN(), math.NaN()},
			Kind:      v.Kind,
			Label:     v.Label,
			Occupancy: v.Occupancy,
			Flags:     v.Flags,
			Bearing:   v.Bearing,
		}
		if len(v.Coordinate) == 2 {
			s.Current = orb.Point{v.Coordinate[0], v.Coordinate[1]}
		}
		if v.Timestamp != nil {
			s.FeedTimestamp = v.Timestamp.UTC()
		}
		batch.Samples = append(batch.Samples, s)
	}
	return batch, nil
}
