package geometry

import (
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestResolverSnap(t *testing.T) {
	lines := []Line{{
		ID:       "L1",
		Segments: []orb.LineString{{{0, 0}, {1, 0}}},
	}}
	r := NewResolver(lines, 0.001, quietLogger())

	t.Run("station close to the line is snapped", func(t *testing.T) {
		st := r.Snap(StationInput{ID: "S", Code: "S", LineID: "L1", Raw: orb.Point{0.0001, 0}})
		require.True(t, st.IsSnapped)
		assert.InDelta(t, 0.0001, st.Snapped[0], 1e-12)
		assert.InDelta(t, 0, st.Snapped[1], 1e-12)
		require.NotNil(t, st.Direction)
		assert.Equal(t, Vector{1, 0}, *st.Direction)
		require.NotNil(t, st.Bearing)
		assert.InDelta(t, 90, *st.Bearing, 1e-6)
	})

	t.Run("station slightly off the line lands on it", func(t *testing.T) {
		st := r.Snap(StationInput{Code: "T", LineID: "L1", Raw: orb.Point{0.5, 0.0005}})
		require.True(t, st.IsSnapped)
		assert.InDelta(t, 0.5, st.Snapped[0], 1e-12)
		assert.InDelta(t, 0, st.Snapped[1], 1e-12)
		assert.InDelta(t, 0.0005, st.SnapDistance, 1e-12)
	})

	t.Run("station beyond the end clamps to the endpoint", func(t *testing.T) {
		st := r.Snap(StationInput{Code: "E", LineID: "L1", Raw: orb.Point{1.0005, 0}})
		require.True(t, st.IsSnapped)
		assert.Equal(t, orb.Point{1, 0}, st.Snapped)
	})

	t.Run("station far from the line keeps its raw coordinate", func(t *testing.T) {
		raw := orb.Point{0.5, 0.5}
		st := r.Snap(StationInput{Code: "F", LineID: "L1", Raw: raw})
		assert.False(t, st.IsSnapped)
		assert.Equal(t, raw, st.Snapped)
		assert.Nil(t, st.Direction)
		assert.Nil(t, st.Bearing)
		assert.InDelta(t, 0.5, st.SnapDistance, 1e-12)
	})

	t.Run("station on an unknown line keeps its raw coordinate", func(t *testing.T) {
		raw := orb.Point{0.0001, 0}
		st := r.Snap(StationInput{Code: "U", LineID: "nope", Raw: raw})
		assert.False(t, st.IsSnapped)
		assert.Equal(t, raw, st.Snapped)
		assert.True(t, math.IsInf(st.SnapDistance, 1))
	})

	t.Run("distance equal to the threshold is not snapped", func(t *testing.T) {
		st := r.Snap(StationInput{Code: "B", LineID: "L1", Raw: orb.Point{0.5, 0.001}})
		assert.False(t, st.IsSnapped)
	})
}

func TestResolverPicksNearestSegmentAcrossSegments(t *testing.T) {
	lines := []Line{{
		ID: "L1",
		Segments: []orb.LineString{
			{{0, 0}, {1, 0}},
			{{0, 0.0008}, {0, 1}},
		},
	}}
	r := NewResolver(lines, 0.001, quietLogger())

	st := r.Snap(StationInput{Code: "S", LineID: "L1", Raw: orb.Point{0.0002, 0.0009}})
	require.True(t, st.IsSnapped)
	assert.InDelta(t, 0, st.Snapped[0], 1e-12, "vertical segment is closer")
	require.NotNil(t, st.Direction)
	assert.InDelta(t, 0, st.Direction[0], 1e-12)
	assert.InDelta(t, 0.9992, st.Direction[1], 1e-12)
}

func TestResolverSnappedStationsAreWithinThreshold(t *testing.T) {
	const threshold = 0.001
	lines := []Line{{
		ID: "R1",
		Segments: []orb.LineString{
			{{2.10, 41.30}, {2.12, 41.33}, {2.15, 41.34}, {2.19, 41.40}},
		},
	}}
	r := NewResolver(lines, threshold, quietLogger())

	var inputs []StationInput
	for i := 0; i < 40; i++ {
		f := float64(i)
		inputs = append(inputs, StationInput{
			Code:   string(rune('a' + i%26)) + string(rune('A'+i/26)),
			LineID: "R1",
			Raw:    orb.Point{2.10 + f*0.0023, 41.30 + f*0.0025 + math.Sin(f)*0.0015},
		})
	}

	for _, st := range r.Resolve(inputs) {
		if !st.IsSnapped {
			assert.Equal(t, st.Raw, st.Snapped)
			continue
		}
		dist := planar.DistanceFrom(lines[0].Segments[0], st.Raw)
		assert.LessOrEqual(t, dist, threshold+1e-12, "station %s", st.Code)
		assert.InDelta(t, dist, planar.Distance(st.Raw, st.Snapped), 1e-9)
	}
}

func TestResolverResolve(t *testing.T) {
	lines := []Line{
		{ID: "R1", Segments: []orb.LineString{{{0, 0}, {1, 0}}}},
		{ID: "R2", Segments: []orb.LineString{{{0, 1}, {1, 1}}}},
	}
	r := NewResolver(lines, 0, quietLogger())

	inputs := []StationInput{
		{ID: "1", Code: "79400", Name: "Sants", LineID: "R1", Raw: orb.Point{0.2, 0.0002}},
		{ID: "2", Code: "79401", Name: "Passeig de Gràcia", LineID: "R1", Raw: orb.Point{0.4, 0}},
		{ID: "3", Code: "79400", Name: "Sants Estació", LineID: "R2", Raw: orb.Point{0.2, 1}},
		{ID: "4", Code: "79400", Name: "Sants dup", LineID: "R1", Raw: orb.Point{0.9, 0}},
		{Name: "anonymous", LineID: "R1", Raw: orb.Point{0.5, 0}},
		{ID: "5", Name: "no code", LineID: "R2", Raw: orb.Point{0.7, 1}},
	}

	stations := r.Resolve(inputs)
	require.Len(t, stations, 3)

	sants := stations[0]
	assert.Equal(t, "79400", sants.Code)
	assert.Equal(t, "Sants", sants.Name, "first occurrence wins")
	assert.Equal(t, []string{"R1", "R2"}, sants.Lines)
	assert.InDelta(t, 0.2, sants.Snapped[0], 1e-12)
	assert.InDelta(t, 0, sants.Snapped[1], 1e-12, "snapped with the first occurrence's line")

	assert.Equal(t, "79401", stations[1].Code)
	assert.Equal(t, "5", stations[2].ID, "stations without a code dedup by id")
	assert.True(t, stations[2].IsSnapped)
}

func TestNewResolverDefaultsThreshold(t *testing.T) {
	r := NewResolver(nil, -1, nil)
	assert.Equal(t, DefaultSnapThreshold, r.threshold)
}

func TestResolverInvalidCoordinates(t *testing.T) {
	lines := []Line{{ID: "L1", Segments: []orb.LineString{{{0, 0}, {1, 0}}}}}
	r := NewResolver(lines, 0.001, quietLogger())

	for _, raw := range []orb.Point{
		{math.NaN(), 0},
		{0.5, math.NaN()},
		{math.Inf(1), 0},
	} {
		st := r.Snap(StationInput{Code: "N", LineID: "L1", Raw: raw})
		assert.False(t, st.IsSnapped, "raw %v", raw)
		assert.Nil(t, st.Direction)
		assert.True(t, math.IsInf(st.SnapDistance, 1))
	}

	stations := r.Resolve([]StationInput{
		{Code: "bad", LineID: "L1", Raw: orb.Point{math.NaN(), math.NaN()}},
		{Code: "good", LineID: "L1", Raw: orb.Point{0.5, 0.0001}},
	})
	require.Len(t, stations, 1, "stations without a usable coordinate are dropped")
	assert.Equal(t, "good", stations[0].Code)
}
