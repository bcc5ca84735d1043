// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Config holds application configuration
type Config struct {
	ConfigPath    string // YAML widget description (LVGLGEN_CONFIG)
	OutputDir     string // Where generated C++ lands
	DataDir       string // History database lives here (always absolute)
	PreviewDir    string // PNG previews
	LogLevel      string
	Port          int
	DevMode       bool
	Force         bool // Regenerate even when inputs are unchanged
	Retention     time.Duration
	PruneSchedule string // cron spec for history pruning in serve mode
	Memory        MemoryConfig
}

// MemoryConfig describes the target device heap used by the load plan.
type MemoryConfig struct {
	PSRAMBytes    int // MALLOC_CAP_SPIRAM capacity
	InternalBytes int // MALLOC_CAP_INTERNAL capacity
}

const (
	defaultPSRAMBytes    = 8 * 1024 * 1024 // ESP32-S3 with 8MB octal PSRAM
	defaultInternalBytes = 320 * 1024
)

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir, err := filepath.Abs(getEnv("LVGLGEN_DATA_DIR", ".lvglgen"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		ConfigPath:    getEnv("LVGLGEN_CONFIG", "lvgl.yaml"),
		OutputDir:     getEnv("LVGLGEN_OUTPUT_DIR", filepath.Join("build", "lvgl")),
		DataDir:       dataDir,
		PreviewDir:    getEnv("LVGLGEN_PREVIEW_DIR", filepath.Join("build", "preview")),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		Port:          getEnvAsInt("LVGLGEN_PORT", 8090),
		DevMode:       getEnvAsBool("DEV_MODE", false),
		Force:         getEnvAsBool("LVGLGEN_FORCE", false),
		Retention:     time.Duration(getEnvAsInt("LVGLGEN_HISTORY_RETENTION_DAYS", 30)) * 24 * time.Hour,
		PruneSchedule: getEnv("LVGLGEN_PRUNE_SCHEDULE", "@every 1h"),
		Memory: MemoryConfig{
			PSRAMBytes:    getEnvAsInt("LVGLGEN_PSRAM_BYTES", defaultPSRAMBytes),
			InternalBytes: getEnvAsInt("LVGLGEN_INTERNAL_BYTES", defaultInternalBytes),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// HistoryDBPath returns the location of the generation history database.
func (c *Config) HistoryDBPath() string {
	return filepath.Join(c.DataDir, "history.db")
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.ConfigPath == "" {
		return fmt.Errorf("LVGLGEN_CONFIG must not be empty")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("LVGLGEN_OUTPUT_DIR must not be empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("LVGLGEN_PORT out of range: %d", c.Port)
	}
	if c.Retention <= 0 {
		return fmt.Errorf("LVGLGEN_HISTORY_RETENTION_DAYS must be positive")
	}
	if c.Memory.PSRAMBytes < 0 || c.Memory.InternalBytes <= 0 {
		return fmt.Errorf("invalid memory capacities: psram=%d internal=%d",
			c.Memory.PSRAMBytes, c.Memory.InternalBytes)
	}
	if c.PruneSchedule != "" {
		if _, err := cron.ParseStandard(c.PruneSchedule); err != nil {
			return fmt.Errorf("invalid LVGLGEN_PRUNE_SCHEDULE %q: %w", c.PruneSchedule, err)
		}
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
