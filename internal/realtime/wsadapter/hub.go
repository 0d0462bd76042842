// Package wsadapter streams marker and popup operations to browser clients
// over websockets.
package wsadapter

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/paulmach/orb"

	"github.com/mini-rodalies-3d/overlay/internal/logging"
	"github.com/mini-rodalies-3d/overlay/internal/realtime/markers"
)

const (
	sendBuffer   = 256
	writeTimeout = 10 * time.Second
)

// Message ops
const (
	OpSnapshot     = "snapshot"
	OpFrame        = "frame"
	OpCreateMarker = "marker.create"
	OpRemoveMarker = "marker.remove"
	OpCreatePopup  = "popup.create"
	OpRemovePopup  = "popup.remove"
)

// Position is one coordinate change inside a frame
type Position struct {
	ID         string     `json:"id"`
	Coordinate [2]float64 `json:"coordinate"`
}

// MarkerState is a marker as a newly connected client must draw it
type MarkerState struct {
	ID         string             `json:"id"`
	Coordinate [2]float64         `json:"coordinate"`
	Meta       markers.MarkerMeta `json:"meta"`
}

// Message is the envelope sent to clients
type Message struct {
	Op         string              `json:"op"`
	ID         string              `json:"id,omitempty"`
	Coordinate *[2]float64         `json:"coordinate,omitempty"`
	Meta       *markers.MarkerMeta `json:"meta,omitempty"`
	Markers    []MarkerState       `json:"markers,omitempty"`
	Updates    []Position          `json:"updates,omitempty"`
	Popup      *Position           `json:"popup,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub is a MapAdapter that mirrors the marker layer and fans every change
// out to connected clients. Position updates are buffered and sent as one
// frame message on Flush, so a marker and its popup always move together.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu       sync.Mutex
	clients  map[*client]struct{}
	markers  map[string]*MarkerState
	popup    *Position
	updates  []Position
	popupMov *Position
}

var (
	_ markers.MapAdapter = (*Hub)(nil)
	_ markers.Flusher    = (*Hub)(nil)
)

// NewHub accepts connections from allowedOrigins; an empty list or "*"
// allows any origin.
func NewHub(allowedOrigins []string, logger *slog.Logger) *Hub {
	h := &Hub{
		logger:  logging.OrDefault(logger),
		clients: make(map[*client]struct{}),
		markers: make(map[string]*MarkerState),
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: originChecker(allowedOrigins)}
	return h
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}

// ServeHTTP upgrades the connection and sends the current layer state
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.LogError(h.logger, "ws upgrade failed", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	snapshot, err := json.Marshal(h.snapshotLocked())
	if err == nil {
		c.send <- snapshot
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	h.logger.Debug("ws client connected", slog.String("remote", r.RemoteAddr))
	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) snapshotLocked() Message {
	msg := Message{Op: OpSnapshot, Markers: make([]MarkerState, 0, len(h.markers))}
	for _, m := range h.markers {
		msg.Markers = append(msg.Markers, *m)
	}
	sort.Slice(msg.Markers, func(i, j int) bool { return msg.Markers[i].ID < msg.Markers[j].ID })
	if h.popup != nil {
		p := *h.popup
		msg.Popup = &p
	}
	return msg
}

func (h *Hub) writePump(c *client) {
	defer c.conn.Close()
	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.unregister(c)
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// readPump only watches for the client going away
func (h *Hub) readPump(c *client) {
	defer h.unregister(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(c)
}

func (h *Hub) dropLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

func (h *Hub) broadcastLocked(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode %s message: %w", msg.Op, err)
	}
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("ws client too slow, dropping")
			h.dropLocked(c)
		}
	}
	return nil
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.dropLocked(c)
	}
}

func coord(p orb.Point) [2]float64 {
	return [2]float64{p[0], p[1]}
}

func (h *Hub) CreateMarker(id string, at orb.Point, meta markers.MarkerMeta) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	c := coord(at)
	h.markers[id] = &MarkerState{ID: id, Coordinate: c, Meta: meta}
	return h.broadcastLocked(Message{Op: OpCreateMarker, ID: id, Coordinate: &c, Meta: &meta})
}

func (h *Hub) UpdateMarker(id string, at orb.Point) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	m, ok := h.markers[id]
	if !ok {
		return fmt.Errorf("update of unknown marker %q", id)
	}
	m.Coordinate = coord(at)
	h.updates = append(h.updates, Position{ID: id, Coordinate: m.Coordinate})
	return nil
}

func (h *Hub) RemoveMarker(id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.markers, id)
	h.updates = slices.DeleteFunc(h.updates, func(p Position) bool { return p.ID == id })
	return h.broadcastLocked(Message{Op: OpRemoveMarker, ID: id})
}

func (h *Hub) CreatePopup(id string, at orb.Point) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	c := coord(at)
	h.popup = &Position{ID: id, Coordinate: c}
	h.popupMov = nil
	return h.broadcastLocked(Message{Op: OpCreatePopup, ID: id, Coordinate: &c})
}

func (h *Hub) UpdatePopup(id string, at orb.Point) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.popup == nil || h.popup.ID != id {
		return fmt.Errorf("update of unknown popup %q", id)
	}
	h.popup.Coordinate = coord(at)
	p := *h.popup
	h.popupMov = &p
	return nil
}

func (h *Hub) RemovePopup(id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.popup != nil && h.popup.ID == id {
		h.popup = nil
		h.popupMov = nil
	}
	return h.broadcastLocked(Message{Op: OpRemovePopup, ID: id})
}

// Flush sends the position changes of the current frame as one message
func (h *Hub) Flush() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.updates) == 0 && h.popupMov == nil {
		return nil
	}
	msg := Message{Op: OpFrame, Updates: h.updates, Popup: h.popupMov}
	h.updates = nil
	h.popupMov = nil
	return h.broadcastLocked(msg)
}
