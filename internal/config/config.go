// Package config provides configuration management for the Convertly Agent.
// Configuration is loaded from environment variables (optionally seeded from a
// .env file) with sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

const (
	// Default values
	DefaultPort          = 8686
	DefaultLogLevel      = "info"
	DefaultDataDir       = ".convertly"
	DefaultIdentityMode  = IdentityModeFirstUser
	DefaultAllowedOrigin = "http://localhost:5173"

	// Environment variable names
	EnvPort          = "CONVERTLY_PORT"
	EnvLogLevel      = "CONVERTLY_LOG_LEVEL"
	EnvDataDir       = "CONVERTLY_DATA_DIR"
	EnvBackendURL    = "CONVERTLY_BACKEND_URL"
	EnvIdentityMode  = "CONVERTLY_IDENTITY_MODE"
	EnvStaticUserID  = "CONVERTLY_STATIC_USER_ID"
	EnvAllowedOrigin = "CONVERTLY_ALLOWED_ORIGIN"

	// Identity resolution modes
	IdentityModeFirstUser = "first-user"
	IdentityModeStatic    = "static"

	// Database filename
	DBFilename = "convertly.db"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	BackendURL() string
	IdentityMode() string
	StaticUserID() string
	AllowedOrigin() string
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port          int
	logLevel      string
	dataDir       string
	backendURL    string
	identityMode  string
	staticUserID  string
	allowedOrigin string
}

// New creates a new EnvConfig with defaults and environment variable overrides.
// A .env file in the working directory is loaded first if present.
func New() (*EnvConfig, error) {
	_ = godotenv.Load()

	cfg := &EnvConfig{
		port:          DefaultPort,
		logLevel:      DefaultLogLevel,
		dataDir:       defaultDataDir(),
		identityMode:  DefaultIdentityMode,
		allowedOrigin: DefaultAllowedOrigin,
	}

	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	cfg.backendURL = os.Getenv(EnvBackendURL)

	if im := os.Getenv(EnvIdentityMode); im != "" {
		if im != IdentityModeFirstUser && im != IdentityModeStatic {
			return nil, fmt.Errorf("invalid %s: must be %q or %q", EnvIdentityMode, IdentityModeFirstUser, IdentityModeStatic)
		}
		cfg.identityMode = im
	}

	cfg.staticUserID = os.Getenv(EnvStaticUserID)
	if cfg.identityMode == IdentityModeStatic && cfg.staticUserID == "" {
		return nil, fmt.Errorf("%s is required when %s=%s", EnvStaticUserID, EnvIdentityMode, IdentityModeStatic)
	}

	if ao := os.Getenv(EnvAllowedOrigin); ao != "" {
		cfg.allowedOrigin = ao
	}

	return cfg, nil
}

// Port returns the local HTTP API port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// BackendURL returns the remote conversion backend base URL.
// Empty means the stub client is used.
func (c *EnvConfig) BackendURL() string {
	return c.backendURL
}

// IdentityMode returns the user identity resolution strategy name
func (c *EnvConfig) IdentityMode() string {
	return c.identityMode
}

// StaticUserID returns the fixed user id for the static identity mode
func (c *EnvConfig) StaticUserID() string {
	return c.staticUserID
}

// AllowedOrigin returns the browser origin allowed to call the local API
func (c *EnvConfig) AllowedOrigin() string {
	return c.allowedOrigin
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
