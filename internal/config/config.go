// Package config loads the monitor configuration from the environment. A
// local .env file is honored when present; otherwise system environment
// variables apply. Everything is read once at startup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/ajisai-dev/multicam-monitor/internal/logger"
	"github.com/ajisai-dev/multicam-monitor/pkg/geom"
)

// Config holds all runtime settings for the monitor process.
type Config struct {
	// Transport
	APIBaseURL string
	WSURL      string
	MockMode   bool

	// Dashboard / metrics endpoints
	DashboardAddr string
	MetricsAddr   string

	// WebSocket client tuning
	HeartbeatInterval    time.Duration
	ReconnectBase        time.Duration
	ReconnectMaxDelay    time.Duration
	ReconnectMaxAttempts int

	// Tracking processor
	ConfidenceThreshold float64
	MaxTrajectoryPoints int
	PerPersonColors     bool
	DisplayScaling      bool
	TrajectoriesEnabled bool

	// Per-camera display sizes, e.g. DISPLAY_SIZES="c09=960x540,c12=640x360"
	DisplaySizes map[string]geom.Size

	LogLevel string
	LogColor bool
}

// Load reads the configuration from .env / environment variables.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		// No .env file is fine; system environment variables apply.
		logger.Debug("Config", "no .env file found: %v", err)
	}

	cfg := &Config{
		APIBaseURL:           getEnv("API_BASE_URL", "http://localhost:8000"),
		WSURL:                getEnv("WS_URL", "ws://localhost:8000/ws"),
		MockMode:             getEnvBool("MOCK_MODE", false),
		DashboardAddr:        getEnv("DASHBOARD_ADDR", ":8080"),
		MetricsAddr:          getEnv("METRICS_ADDR", ":9090"),
		HeartbeatInterval:    getEnvDuration("HEARTBEAT_INTERVAL", 10*time.Second),
		ReconnectBase:        getEnvDuration("RECONNECT_BASE", time.Second),
		ReconnectMaxDelay:    getEnvDuration("RECONNECT_MAX_DELAY", 30*time.Second),
		ReconnectMaxAttempts: getEnvInt("RECONNECT_MAX_ATTEMPTS", 10),
		ConfidenceThreshold:  getEnvFloat("CONFIDENCE_THRESHOLD", 0),
		MaxTrajectoryPoints:  getEnvInt("MAX_TRAJECTORY_POINTS", 100),
		PerPersonColors:      getEnvBool("PER_PERSON_COLORS", true),
		DisplayScaling:       getEnvBool("DISPLAY_SCALING", true),
		TrajectoriesEnabled:  getEnvBool("TRAJECTORIES_ENABLED", true),
		DisplaySizes:         parseDisplaySizes(os.Getenv("DISPLAY_SIZES")),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		LogColor:             getEnvBool("LOG_COLOR", true),
	}

	return cfg
}

// parseDisplaySizes parses "cam=WxH,cam=WxH" pairs. Malformed entries are
// skipped with a warning so one bad camera does not block the others.
func parseDisplaySizes(raw string) map[string]geom.Size {
	sizes := make(map[string]geom.Size)
	if raw == "" {
		return sizes
	}

	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		cam, dims, ok := strings.Cut(entry, "=")
		if !ok {
			logger.Warn("Config", "skipping malformed display size entry %q", entry)
			continue
		}
		w, h, ok := strings.Cut(dims, "x")
		if !ok {
			logger.Warn("Config", "skipping malformed display size entry %q", entry)
			continue
		}
		width, errW := strconv.ParseFloat(w, 64)
		height, errH := strconv.ParseFloat(h, 64)
		if errW != nil || errH != nil || width <= 0 || height <= 0 {
			logger.Warn("Config", "skipping malformed display size entry %q", entry)
			continue
		}
		sizes[strings.TrimSpace(cam)] = geom.Size{Width: width, Height: height}
	}
	return sizes
}

// Validate reports configuration that would prevent startup.
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("API_BASE_URL must not be empty")
	}
	if c.WSURL == "" {
		return fmt.Errorf("WS_URL must not be empty")
	}
	if c.ReconnectBase <= 0 {
		return fmt.Errorf("RECONNECT_BASE must be positive")
	}
	if c.MaxTrajectoryPoints <= 0 {
		return fmt.Errorf("MAX_TRAJECTORY_POINTS must be positive")
	}
	return nil
}

func getEnv(key string, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if intVal, err := strconv.Atoi(v); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
