package artifacts

import (
	"encoding/json"
	"os"
	"time"
)

// manifestStamp carries just the fields needed to judge freshness.
// GeneratedAt is read for manifests written before updated_at existed.
type manifestStamp struct {
	UpdatedAt        string `json:"updated_at"`
	GeneratedAt      string `json:"generated_at"`
	GeneratorVersion string `json:"generator_version"`
}

// IsStale reports whether the artifacts described by manifestPath need to be
// regenerated: the manifest is missing, unreadable, older than maxAgeDays or
// written by a different generator version.
func IsStale(manifestPath string, maxAgeDays int) bool {
	stamp, ok := readStamp(manifestPath)
	if !ok {
		return true
	}
	if stamp.GeneratorVersion != "" && stamp.GeneratorVersion != GeneratorVersion {
		return true
	}

	ts := stamp.UpdatedAt
	if ts == "" {
		ts = stamp.GeneratedAt
	}
	updatedAt, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return true
	}

	maxAge := time.Duration(maxAgeDays) * 24 * time.Hour
	return time.Since(updatedAt) > maxAge
}

// storedGeneratorVersion returns the version recorded in a manifest, or ""
func storedGeneratorVersion(manifestPath string) string {
	stamp, _ := readStamp(manifestPath)
	return stamp.GeneratorVersion
}

func readStamp(manifestPath string) (manifestStamp, bool) {
	var stamp manifestStamp
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return stamp, false
	}
	if err := json.Unmarshal(data, &stamp); err != nil {
		return manifestStamp{}, false
	}
	return stamp, true
}
