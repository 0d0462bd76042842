package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/mini-rodalies-3d/overlay/internal/logging"
)

const (
	kindLines    = "lines"
	kindStations = "stations"
)

// staticKey identifies one cached GeoJSON rendering
type staticKey struct {
	kind string
	line string
}

// renderStatic is the cache loader: the network never changes after startup,
// so a rendering stays valid until evicted.
func (s *Server) renderStatic(key interface{}) (interface{}, error) {
	k, ok := key.(staticKey)
	if !ok {
		return nil, fmt.Errorf("unexpected cache key %T", key)
	}
	switch k.kind {
	case kindLines:
		return json.Marshal(s.network.LinesCollection(k.line))
	case kindStations:
		return json.Marshal(s.network.StationsCollection(k.line))
	default:
		return nil, fmt.Errorf("unknown collection %q", k.kind)
	}
}

// GetLines handles GET /api/lines
// Returns the smoothed line geometry, optionally for a single line
func (s *Server) GetLines(w http.ResponseWriter, r *http.Request) {
	s.serveStatic(w, r, kindLines)
}

// GetStations handles GET /api/stations
// Returns canonical stations at their snapped coordinates
func (s *Server) GetStations(w http.ResponseWriter, r *http.Request) {
	s.serveStatic(w, r, kindStations)
}

func (s *Server) serveStatic(w http.ResponseWriter, r *http.Request, kind string) {
	line := r.URL.Query().Get("line")
	if line != "" && !s.knownLine(line) {
		writeError(w, http.StatusNotFound, "Unknown line", map[string]interface{}{"line": line})
		return
	}

	body, err := s.responses.Get(staticKey{kind: kind, line: line})
	if err != nil {
		logging.LogError(s.logger, "render collection failed", err,
			slog.String("collection", kind), slog.String("line", line))
		writeError(w, http.StatusInternalServerError, "Failed to render "+kind, nil)
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	w.Write(body.([]byte))
}

func (s *Server) knownLine(id string) bool {
	for _, l := range s.network.Lines {
		if l.ID == id {
			return true
		}
	}
	return false
}

// AdjacencyResponse is the JSON response for GET /api/adjacency
type AdjacencyResponse struct {
	Station string   `json:"station"`
	Line    string   `json:"line"`
	Prev    []string `json:"prev"`
	Next    []string `json:"next"`
}

// GetAdjacency handles GET /api/adjacency?station=&line=
// Unknown stations or lines yield empty neighbour lists
func (s *Server) GetAdjacency(w http.ResponseWriter, r *http.Request) {
	station := r.URL.Query().Get("station")
	line := r.URL.Query().Get("line")
	if station == "" || line == "" {
		writeError(w, http.StatusBadRequest, "station and line parameters are required", nil)
		return
	}

	n := s.network.Adjacency.Lookup(station, line)
	writeJSON(w, http.StatusOK, AdjacencyResponse{
		Station: station,
		Line:    line,
		Prev:    n.Prev,
		Next:    n.Next,
	})
}
