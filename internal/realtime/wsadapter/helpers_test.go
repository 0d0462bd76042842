package wsadapter

import (
	"time"

	"github.com/paulmach/orb"

	"github.com/mini-rodalies-3d/overlay/internal/realtime/vehicles"
)

type clockFunc struct {
	request func(func(time.Time))
}

func (c clockFunc) RequestFrame(fn func(time.Time)) { c.request(fn) }
func (c clockFunc) CancelFrame()                    {}

func newInterpolator() *vehicles.Interpolator {
	return vehicles.NewInterpolator(vehicles.NewStore(), vehicles.DefaultWindow, nil)
}

func batchOf(id string, lon, lat float64) vehicles.Batch {
	return vehicles.Batch{Samples: []vehicles.Sample{{ID: id, Current: orb.Point{lon, lat}}}}
}
