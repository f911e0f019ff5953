package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/codefionn/wsbridge/internal/consts"
)

// Config represents the bridge server configuration
type Config struct {
	// WorkspaceRoot is the directory all file operations are confined to.
	// Canonicalized at startup; "." means the process working directory.
	WorkspaceRoot string `json:"workspace_root"`

	// Host is the address the listeners bind to. Loopback only by default.
	Host string `json:"host"`

	// Ports is the ordered candidate port list. Every successful bind is
	// kept open; a client may connect on whichever port it expects.
	Ports []int `json:"ports"`

	MaxConnections     int    `json:"max_connections"`
	ReadTimeoutSeconds int    `json:"read_timeout_seconds"`
	MaxFrameBytes      int    `json:"max_frame_bytes"`
	CacheTTLSeconds    int    `json:"cache_ttl_seconds"`
	MaxCacheEntries    int    `json:"max_cache_entries"`
	LogLevel           string `json:"log_level"` // debug, info, warn, error, none
	LogPath            string `json:"-"`
}

func defaultStateDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "wsbridge")
	}
	return filepath.Join(os.TempDir(), "wsbridge")
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		WorkspaceRoot:      ".",
		Host:               "127.0.0.1",
		Ports:              []int{9999, 8765, 5000},
		MaxConnections:     consts.DefaultMaxConnections,
		ReadTimeoutSeconds: int(consts.ReadTimeout.Seconds()),
		MaxFrameBytes:      consts.MaxFrameSize,
		CacheTTLSeconds:    int(consts.DefaultCacheTTL.Seconds()),
		MaxCacheEntries:    consts.DefaultMaxCacheEntries,
		LogLevel:           "info",
		LogPath:            filepath.Join(defaultStateDir(), "wsbridge.log"),
	}
}

// Load loads configuration from file, falling back to defaults for any
// field the file omits. A missing file is not an error.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			config.applyEnv()
			return config, nil
		}
		return nil, err
	}

	// Unmarshal into default config (overrides only provided fields)
	if err := json.Unmarshal(data, config); err != nil {
		return nil, err
	}

	if config.WorkspaceRoot == "" {
		config.WorkspaceRoot = "."
	}
	if config.Host == "" {
		config.Host = "127.0.0.1"
	}
	if len(config.Ports) == 0 {
		config.Ports = []int{9999, 8765, 5000}
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.LogPath == "" {
		config.LogPath = filepath.Join(defaultStateDir(), "wsbridge.log")
	}

	config.applyEnv()
	return config, nil
}

// applyEnv applies environment variable overrides
func (c *Config) applyEnv() {
	if v := os.Getenv("WSBRIDGE_WORKSPACE"); v != "" {
		c.WorkspaceRoot = v
	}
	if v := os.Getenv("WSBRIDGE_HOST"); v != "" {
		c.Host = v
	}
	if v := os.Getenv("WSBRIDGE_PORTS"); v != "" {
		if ports, err := ParsePorts(v); err == nil {
			c.Ports = ports
		}
	}
	if v := os.Getenv("WSBRIDGE_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("WSBRIDGE_LOG_PATH"); v != "" {
		c.LogPath = v
	}
}

// ParsePorts parses a comma-separated port list.
func ParsePorts(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	ports := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid port %q: %w", p, err)
		}
		ports = append(ports, port)
	}
	if len(ports) == 0 {
		return nil, fmt.Errorf("empty port list")
	}
	return ports, nil
}

// Validate checks the configuration for usable values
func (c *Config) Validate() error {
	if c.WorkspaceRoot == "" {
		return fmt.Errorf("workspace root is required")
	}
	if len(c.Ports) == 0 {
		return fmt.Errorf("at least one candidate port is required")
	}
	for _, p := range c.Ports {
		if p < 1 || p > 65535 {
			return fmt.Errorf("port %d out of range", p)
		}
	}
	if c.MaxConnections < 1 {
		return fmt.Errorf("max_connections must be at least 1")
	}
	if c.ReadTimeoutSeconds < 1 {
		return fmt.Errorf("read_timeout_seconds must be at least 1")
	}
	if c.MaxFrameBytes < 1 || c.MaxFrameBytes > consts.MaxFrameSize {
		return fmt.Errorf("max_frame_bytes must be between 1 and %d", consts.MaxFrameSize)
	}
	return nil
}

// Save writes the configuration to disk
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
