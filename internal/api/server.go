// Package api serves the static network and the realtime overlay over HTTP.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/bluele/gcache"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/mini-rodalies-3d/overlay/internal/logging"
	"github.com/mini-rodalies-3d/overlay/internal/static/geometry"
)

const (
	cacheSize    = 128
	queryTimeout = 2 * time.Second
)

// ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Server holds the dependencies shared by the handlers
type Server struct {
	network   *geometry.Network
	layer     Layer
	stream    http.Handler
	responses gcache.Cache
	logger    *slog.Logger
	startedAt time.Time
}

// NewServer wires the handlers. stream serves /ws and may be nil.
func NewServer(network *geometry.Network, layer Layer, stream http.Handler, logger *slog.Logger) *Server {
	s := &Server{
		network:   network,
		layer:     layer,
		stream:    stream,
		logger:    logging.OrDefault(logger),
		startedAt: time.Now().UTC(),
	}
	s.responses = gcache.New(cacheSize).
		LRU().
		LoaderFunc(s.renderStatic).
		Build()
	return s
}

// Router builds the chi router with CORS for the given origins
func (s *Server) Router(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	r.Get("/health", s.Health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/lines", s.GetLines)
		r.Get("/stations", s.GetStations)
		r.Get("/adjacency", s.GetAdjacency)
		r.Get("/vehicles", s.GetVehicles)
		r.Post("/detail/{id}", s.OpenDetail)
		r.Delete("/detail", s.CloseDetail)
	})

	if s.stream != nil {
		r.Handle("/ws", s.stream)
	}
	return r
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, details map[string]interface{}) {
	writeJSON(w, status, ErrorResponse{Error: msg, Details: details})
}
