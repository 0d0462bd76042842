package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/mini-rodalies-3d/overlay/internal/realtime/vehicles"
	"github.com/mini-rodalies-3d/overlay/internal/static/geometry"
)

// Config holds all configuration for the overlay service
type Config struct {
	// Static geometry
	LinesPath         string  `yaml:"lines_path"`
	StationsPath      string  `yaml:"stations_path"`
	GTFSZipPath       string  `yaml:"gtfs_zip_path"`
	OutputDir         string  `yaml:"output_dir" validate:"required"`
	StaticRefreshDays int     `yaml:"static_refresh_days" validate:"gte=0"`
	SnapThreshold     float64 `yaml:"snap_threshold" validate:"gt=0"`
	Subdivisions      int     `yaml:"subdivisions" validate:"gte=1,lte=64"`

	// Real-time feed
	FeedURL             string        `yaml:"feed_url" validate:"omitempty,url"`
	FeedFormat          string        `yaml:"feed_format" validate:"oneof=gtfsrt json"`
	FeedScope           string        `yaml:"feed_scope"`
	PollInterval        time.Duration `yaml:"poll_interval" validate:"gt=0"`
	InterpolationWindow time.Duration `yaml:"interpolation_window" validate:"gt=0"`
	FrameInterval       time.Duration `yaml:"frame_interval" validate:"gt=0"`

	// Snapshot storage (SQLite unless DatabaseURL points at Postgres)
	DatabasePath      string        `yaml:"database_path"`
	DatabaseURL       string        `yaml:"database_url"`
	RetentionDuration time.Duration `yaml:"retention" validate:"gte=0"`

	// HTTP
	Port           int      `yaml:"port" validate:"gt=0,lte=65535"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	LogLevel       string   `yaml:"log_level" validate:"omitempty,oneof=debug info warn warning error"`
}

// Load reads .env files, environment variables with sensible defaults, and
// finally the YAML file named by OVERLAY_CONFIG if set. The result is validated.
func Load() (*Config, error) {
	// Base .env first, then .env.local overrides for local development
	_ = godotenv.Load(".env")
	_ = godotenv.Overload(".env.local")

	cfg := FromEnv()

	if path := os.Getenv("OVERLAY_CONFIG"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv builds a config from environment variables only
func FromEnv() *Config {
	return &Config{
		// Static geometry
		LinesPath:         getEnv("LINES_PATH", ""),
		StationsPath:      getEnv("STATIONS_PATH", ""),
		GTFSZipPath:       getEnv("GTFS_ZIP_PATH", ""),
		OutputDir:         getEnv("OUTPUT_DIR", "/app/web_public/overlay"),
		StaticRefreshDays: getEnvInt("STATIC_REFRESH_DAYS", 7),
		SnapThreshold:     getEnvFloat("SNAP_THRESHOLD", geometry.DefaultSnapThreshold),
		Subdivisions:      getEnvInt("SMOOTHING_SUBDIVISIONS", geometry.DefaultSubdivisions),

		// Real-time feed
		FeedURL:             getEnv("FEED_URL", ""),
		FeedFormat:          getEnv("FEED_FORMAT", "gtfsrt"),
		FeedScope:           getEnv("FEED_SCOPE", ""),
		PollInterval:        time.Duration(getEnvInt("POLL_INTERVAL", 15)) * time.Second,
		InterpolationWindow: getEnvDuration("INTERPOLATION_WINDOW", vehicles.DefaultWindow),
		FrameInterval:       getEnvDuration("FRAME_INTERVAL", 100*time.Millisecond),

		// Storage
		DatabasePath:      getEnv("SQLITE_DATABASE", ""),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		RetentionDuration: time.Duration(getEnvInt("RETENTION_HOURS", 1)) * time.Hour,

		// HTTP
		Port:           getEnvInt("PORT", 8081),
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
	}
}

// Validate checks struct tags
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// UsesPostgres reports whether snapshots go to Postgres instead of SQLite
func (c *Config) UsesPostgres() bool {
	return strings.HasPrefix(c.DatabaseURL, "postgres://") || strings.HasPrefix(c.DatabaseURL, "postgresql://")
}

// applyFile overlays values present in a YAML file onto c
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
