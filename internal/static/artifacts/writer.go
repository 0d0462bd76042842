// Package artifacts writes the preprocessed static network to disk and
// decides when it needs regenerating.
package artifacts

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/mini-rodalies-3d/overlay/internal/logging"
	"github.com/mini-rodalies-3d/overlay/internal/static/geometry"
)

// GeneratorVersion is bumped whenever the output format changes so that
// existing artifacts get regenerated regardless of their age.
const GeneratorVersion = "1"

// Output file names, relative to the output directory
const (
	LinesFile     = "LineGeometry.geojson"
	StationsFile  = "Station.geojson"
	AdjacencyFile = "Adjacency.json"
	ManifestFile  = "manifest.json"
)

// Manifest describes one generated artifact set
type Manifest struct {
	UpdatedAt        string  `json:"updated_at"`
	GeneratorVersion string  `json:"generator_version"`
	Lines            []Entry `json:"lines"`
	LineGeometry     Entry   `json:"line_geometry"`
	Stations         Entry   `json:"stations"`
	Adjacency        Entry   `json:"adjacency"`
	StationCount     int     `json:"station_count"`
	SnappedCount     int     `json:"snapped_count"`
}

// Entry is a file reference with its checksum
type Entry struct {
	ID       string `json:"id,omitempty"`
	Path     string `json:"path"`
	Checksum string `json:"checksum"`
}

// adjacencyDoc is the on-disk adjacency layout: line -> station -> neighbours
type adjacencyDoc map[string]map[string]geometry.Neighbors

// Write generates every artifact for the network into outputDir and returns
// the manifest it wrote last.
func Write(n *geometry.Network, outputDir string, logger *slog.Logger) (*Manifest, error) {
	logger = logging.OrDefault(logger)
	start := time.Now()

	linesDir := filepath.Join(outputDir, "lines")
	if err := os.MkdirAll(linesDir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	m := &Manifest{
		UpdatedAt:        time.Now().UTC().Format(time.RFC3339),
		GeneratorVersion: GeneratorVersion,
	}

	for _, line := range n.Lines {
		rel := filepath.ToSlash(filepath.Join("lines", line.ID+".geojson"))
		sum, err := writeJSON(filepath.Join(outputDir, rel), n.LinesCollection(line.ID))
		if err != nil {
			return nil, fmt.Errorf("write line %s: %w", line.ID, err)
		}
		m.Lines = append(m.Lines, Entry{ID: line.ID, Path: rel, Checksum: sum})
	}

	var err error
	if m.LineGeometry, err = writeEntry(outputDir, LinesFile, n.LinesCollection("")); err != nil {
		return nil, err
	}
	if m.Stations, err = writeEntry(outputDir, StationsFile, n.StationsCollection("")); err != nil {
		return nil, err
	}
	if m.Adjacency, err = writeEntry(outputDir, AdjacencyFile, adjacencyOf(n)); err != nil {
		return nil, err
	}

	m.StationCount = len(n.Stations)
	for _, st := range n.Stations {
		if st.IsSnapped {
			m.SnappedCount++
		}
	}

	if _, err := writeJSON(filepath.Join(outputDir, ManifestFile), m); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}

	logging.LogOperation(logger, "artifacts_written",
		slog.String("output_dir", outputDir),
		slog.Int("lines", len(m.Lines)),
		slog.Int("stations", m.StationCount),
		slog.Int("snapped", m.SnappedCount),
		slog.Duration("duration", time.Since(start)))
	return m, nil
}

func writeEntry(outputDir, name string, v interface{}) (Entry, error) {
	sum, err := writeJSON(filepath.Join(outputDir, name), v)
	if err != nil {
		return Entry{}, fmt.Errorf("write %s: %w", name, err)
	}
	return Entry{Path: name, Checksum: sum}, nil
}

func adjacencyOf(n *geometry.Network) adjacencyDoc {
	doc := make(adjacencyDoc, len(n.Lines))
	for _, line := range n.Lines {
		if stations := n.Adjacency.Line(line.ID); len(stations) > 0 {
			doc[line.ID] = stations
		}
	}
	return doc
}

// LineIDs returns the manifest's line ids in sorted order
func (m *Manifest) LineIDs() []string {
	ids := make([]string, 0, len(m.Lines))
	for _, l := range m.Lines {
		ids = append(ids, l.ID)
	}
	sort.Strings(ids)
	return ids
}

func writeJSON(path string, v interface{}) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return sha256Sum(data), nil
}

func sha256Sum(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
