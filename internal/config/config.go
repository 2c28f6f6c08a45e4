package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime settings for the optiod backend.
type Config struct {
	// HTTP listen address for the command API
	ListenAddr string
	// SQLite config
	SQLitePath   string
	DatabaseName string
	// Script factory config
	TemplatesDir string
	OutputDir    string
	// Consultant callback IP injected into generated scripts; detected
	// from the first non-loopback interface when unset
	ConsultantIP string
	// Scanner config
	NmapBinary         string
	ScanTimeout        time.Duration
	MaxConcurrentScans int
	// MACRemap enables MAC-based asset re-identification when an IP
	// changes (DHCP churn). Policy knob, defaults to on.
	MACRemap bool
	// Log file path for rotating file output; empty disables file logging
	LogFile string
}

// Load reads configuration from the environment, optionally seeded from
// a .env file. Missing optional values fall back to defaults.
func Load() (*Config, error) {
	// The .env file is optional so containerized deployments can use
	// plain environment variables
	_ = godotenv.Load()

	databaseName := os.Getenv("DATABASE_NAME")
	if databaseName == "" {
		databaseName = "optio"
	}

	sqlitePath := os.Getenv("SQLITE_PATH")
	if sqlitePath == "" {
		sqlitePath = filepath.Join("data", fmt.Sprintf("%s.db", databaseName))
	}

	cfg := &Config{
		ListenAddr:         envOr("LISTEN_ADDR", ":3010"),
		SQLitePath:         sqlitePath,
		DatabaseName:       databaseName,
		TemplatesDir:       envOr("TEMPLATES_DIR", "templates"),
		OutputDir:          envOr("OUTPUT_DIR", filepath.Join("data", "generated_scripts")),
		ConsultantIP:       os.Getenv("CONSULTANT_IP"),
		NmapBinary:         envOr("NMAP_BINARY", "nmap"),
		ScanTimeout:        time.Duration(envIntOr("SCAN_TIMEOUT_MINUTES", 120)) * time.Minute,
		MaxConcurrentScans: envIntOr("MAX_CONCURRENT_SCANS", 3),
		MACRemap:           envBoolOr("MAC_REMAP", true),
		LogFile:            os.Getenv("LOG_FILE"),
	}

	if cfg.MaxConcurrentScans < 1 {
		return nil, fmt.Errorf("MAX_CONCURRENT_SCANS must be at least 1")
	}
	if cfg.ScanTimeout <= 0 {
		return nil, fmt.Errorf("SCAN_TIMEOUT_MINUTES must be positive")
	}

	return cfg, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOr(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envBoolOr(key string, def bool) bool {
	switch os.Getenv(key) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	return def
}
