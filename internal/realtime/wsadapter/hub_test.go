package wsadapter

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mini-rodalies-3d/overlay/internal/realtime/markers"
)

func newTestHub(t *testing.T, origins ...string) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(origins, slog.New(slog.NewTextHandler(io.Discard, nil)))
	server := httptest.NewServer(hub)
	t.Cleanup(func() {
		hub.Close()
		server.Close()
	})
	return hub, server
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Clients() == n }, time.Second, 5*time.Millisecond)
}

func TestHubStreamsMarkerLifecycle(t *testing.T) {
	hub, server := newTestHub(t)
	conn := dial(t, server)

	snap := readMessage(t, conn)
	assert.Equal(t, OpSnapshot, snap.Op)
	assert.Empty(t, snap.Markers)
	waitForClients(t, hub, 1)

	require.NoError(t, hub.CreateMarker("R2-77", orb.Point{2.14, 41.38}, markers.MarkerMeta{Kind: "R2"}))
	msg := readMessage(t, conn)
	assert.Equal(t, OpCreateMarker, msg.Op)
	assert.Equal(t, "R2-77", msg.ID)
	require.NotNil(t, msg.Coordinate)
	assert.Equal(t, [2]float64{2.14, 41.38}, *msg.Coordinate)
	assert.Equal(t, "R2", msg.Meta.Kind)

	require.NoError(t, hub.CreatePopup("R2-77", orb.Point{2.14, 41.38}))
	assert.Equal(t, OpCreatePopup, readMessage(t, conn).Op)

	require.NoError(t, hub.UpdateMarker("R2-77", orb.Point{2.15, 41.39}))
	require.NoError(t, hub.UpdatePopup("R2-77", orb.Point{2.15, 41.39}))
	require.NoError(t, hub.Flush())

	frame := readMessage(t, conn)
	assert.Equal(t, OpFrame, frame.Op)
	require.Len(t, frame.Updates, 1)
	require.NotNil(t, frame.Popup)
	assert.Equal(t, frame.Updates[0].Coordinate, frame.Popup.Coordinate)

	require.NoError(t, hub.RemoveMarker("R2-77"))
	assert.Equal(t, OpRemoveMarker, readMessage(t, conn).Op)
}

func TestHubSnapshotForLateClients(t *testing.T) {
	hub, server := newTestHub(t)

	require.NoError(t, hub.CreateMarker("B", orb.Point{2.2, 41.4}, markers.MarkerMeta{}))
	require.NoError(t, hub.CreateMarker("A", orb.Point{2.1, 41.3}, markers.MarkerMeta{Label: "V15"}))
	require.NoError(t, hub.UpdateMarker("A", orb.Point{2.11, 41.31}))
	require.NoError(t, hub.CreatePopup("A", orb.Point{2.11, 41.31}))

	conn := dial(t, server)
	snap := readMessage(t, conn)
	assert.Equal(t, OpSnapshot, snap.Op)
	require.Len(t, snap.Markers, 2)
	assert.Equal(t, "A", snap.Markers[0].ID)
	assert.Equal(t, [2]float64{2.11, 41.31}, snap.Markers[0].Coordinate)
	assert.Equal(t, "V15", snap.Markers[0].Meta.Label)
	require.NotNil(t, snap.Popup)
	assert.Equal(t, "A", snap.Popup.ID)
}

func TestHubFlushWithoutChanges(t *testing.T) {
	hub, _ := newTestHub(t)
	assert.NoError(t, hub.Flush())
}

func TestHubRejectsUnknownUpdates(t *testing.T) {
	hub, _ := newTestHub(t)
	assert.Error(t, hub.UpdateMarker("ghost", orb.Point{1, 1}))
	assert.Error(t, hub.UpdatePopup("ghost", orb.Point{1, 1}))
}

func TestHubRemovedMarkerDropsPendingUpdate(t *testing.T) {
	hub, server := newTestHub(t)
	conn := dial(t, server)
	readMessage(t, conn)
	waitForClients(t, hub, 1)

	require.NoError(t, hub.CreateMarker("A", orb.Point{1, 1}, markers.MarkerMeta{}))
	require.NoError(t, hub.CreateMarker("B", orb.Point{2, 2}, markers.MarkerMeta{}))
	readMessage(t, conn)
	readMessage(t, conn)

	require.NoError(t, hub.UpdateMarker("A", orb.Point{1.1, 1}))
	require.NoError(t, hub.UpdateMarker("B", orb.Point{2.1, 2}))
	require.NoError(t, hub.RemoveMarker("A"))
	require.NoError(t, hub.Flush())

	assert.Equal(t, OpRemoveMarker, readMessage(t, conn).Op)
	frame := readMessage(t, conn)
	require.Len(t, frame.Updates, 1)
	assert.Equal(t, "B", frame.Updates[0].ID)
}

func TestHubClientDisconnect(t *testing.T) {
	hub, server := newTestHub(t)
	conn := dial(t, server)
	readMessage(t, conn)
	waitForClients(t, hub, 1)

	conn.Close()
	waitForClients(t, hub, 0)
}

func TestHubOriginCheck(t *testing.T) {
	_, server := newTestHub(t, "http://localhost:5173")
	url := "ws" + strings.TrimPrefix(server.URL, "http")

	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header = http.Header{"Origin": []string{"http://localhost:5173"}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	conn.Close()
}

// The manager drives the hub exactly as it would a real map.
func TestHubAsManagerAdapter(t *testing.T) {
	hub, server := newTestHub(t)
	conn := dial(t, server)
	readMessage(t, conn)
	waitForClients(t, hub, 1)

	var frame func(time.Time)
	clock := clockFunc{request: func(fn func(time.Time)) { frame = fn }}
	m := markers.NewManager(newInterpolator(), hub, clock, nil)

	m.IngestBatch(batchOf("A", 2.1, 41.3), time.Now())
	assert.Equal(t, OpCreateMarker, readMessage(t, conn).Op)

	require.NotNil(t, frame)
	frame(time.Now())
	msg := readMessage(t, conn)
	assert.Equal(t, OpFrame, msg.Op)
	assert.Len(t, msg.Updates, 1)
}
