package gtfs

import (
	"archive/zip"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mini-rodalies-3d/overlay/internal/static/geometry"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writeFeed zips the given files into a temporary GTFS feed
func writeFeed(t *testing.T, files map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gtfs.zip")

	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

var sampleFeed = map[string]string{
	"routes.txt": "\ufeffroute_id,route_short_name,route_long_name,route_type,route_color\n" +
		"R2,R2,Castelldefels - Granollers,2,26A741\n" +
		"R3,R3,L'Hospitalet - Vic,2,\n",
	"stops.txt": "stop_id,stop_code,stop_name,stop_lat,stop_lon,location_type,parent_station\n" +
		"S1,71801,Sants,41.3790,2.1400,1,\n" +
		"S1-P1,,Sants,41.3791,2.1401,0,S1\n" +
		"S2,78805,Passeig de Gràcia,41.3920,2.1650,1,\n" +
		"S3,79009,Clot,41.4090,2.1870,1,\n" +
		"BAD,1,Broken,not-a-number,2.0,0,\n",
	"trips.txt": "route_id,service_id,trip_id,direction_id,shape_id\n" +
		"R2,WK,T1,0,SH1\n" +
		"R2,WK,T2,1,SH2\n" +
		"R2,WK,T3,0,SH1\n",
	"shapes.txt": "shape_id,shape_pt_lat,shape_pt_lon,shape_pt_sequence\n" +
		"SH1,41.4090,2.1870,3\n" +
		"SH1,41.3790,2.1400,1\n" +
		"SH1,41.3920,2.1650,2\n" +
		"SH2,41.4090,2.1870,1\n" +
		"SH2,41.3790,2.1400,2\n",
	"stop_times.txt": "trip_id,arrival_time,departure_time,stop_id,stop_sequence\n" +
		"T1,08:00:00,08:00:00,S1-P1,1\n" +
		"T1,08:06:00,08:06:00,S2,2\n" +
		"T1,08:12:00,08:12:00,S3,3\n" +
		"T2,09:12:00,09:12:00,S1,2\n" +
		"T2,09:00:00,09:00:00,S3,1\n" +
		"T3,10:00:00,10:00:00,S1,1\n" +
		"T3,10:06:00,10:06:00,S2,2\n",
}

func TestParse(t *testing.T) {
	data, err := Parse(writeFeed(t, sampleFeed), quietLogger())
	require.NoError(t, err)

	require.Len(t, data.Routes, 2)
	assert.Equal(t, "R2", data.Routes[0].RouteID, "BOM is stripped from the header")
	assert.Equal(t, 2, data.Routes[0].RouteType)

	assert.Len(t, data.Stops, 4, "rows with bad coordinates are skipped")
	assert.Len(t, data.Trips, 3)
	assert.Len(t, data.StopTimes, 7)

	sh1 := data.Shapes["SH1"]
	require.Len(t, sh1, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{sh1[0].Sequence, sh1[1].Sequence, sh1[2].Sequence})
}

func TestParseMissingRequiredFile(t *testing.T) {
	_, err := Parse(writeFeed(t, map[string]string{"routes.txt": "route_id\nR1\n"}), quietLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stops.txt")
}

func TestParseMissingZip(t *testing.T) {
	_, err := Parse(filepath.Join(t.TempDir(), "nope.zip"), quietLogger())
	assert.Error(t, err)
}

func TestBuildNetwork(t *testing.T) {
	data, err := Parse(writeFeed(t, sampleFeed), quietLogger())
	require.NoError(t, err)

	lines, stations := BuildNetwork(data)
	require.Len(t, lines, 2)

	r2 := lines[0]
	assert.Equal(t, "R2", r2.ID)
	assert.Equal(t, "Castelldefels - Granollers", r2.Name)
	assert.Equal(t, "#26A741", r2.Color)
	require.Len(t, r2.Segments, 2, "one segment per distinct shape")
	assert.Equal(t, orb.Point{2.1400, 41.3790}, r2.Segments[0][0])
	assert.Equal(t, [][]string{
		{"Sants", "Passeig de Gràcia"},
		{"Passeig de Gràcia", "Clot"},
		{"Clot", "Sants"},
	}, r2.Nodes)

	r3 := lines[1]
	assert.Empty(t, r3.Segments)
	assert.Empty(t, r3.Color)

	require.Len(t, stations, 3, "platforms fold into their parent station")
	assert.Equal(t, "71801", stations[0].Code)
	assert.Equal(t, orb.Point{2.1400, 41.3790}, stations[0].Raw)

	// the derived inputs drive the geometry pipeline end to end
	network := geometry.Build(lines, stations, geometry.Options{}, quietLogger())
	assert.True(t, network.Stations[0].IsSnapped)
	adj := network.Adjacency.Lookup("Clot", "R2")
	assert.Equal(t, []string{"Passeig de Gràcia"}, adj.Prev)
	assert.Equal(t, []string{"Sants"}, adj.Next)
}
