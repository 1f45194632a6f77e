package scheduler

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the configuration for the almanac scheduler
type Config struct {
	// Observer location
	Latitude  float64 `json:"latitude" yaml:"latitude"`   // Observer latitude in degrees
	Longitude float64 `json:"longitude" yaml:"longitude"` // Observer longitude in degrees, east positive

	// Service settings
	HTTPPort           int           `json:"http_port" yaml:"http_port"`                       // Port for the HTTP API (0 = disabled)
	BroadcastInterval  time.Duration `json:"broadcast_interval" yaml:"broadcast_interval"`     // How often to push the natural date over websocket
	CacheResetInterval time.Duration `json:"cache_reset_interval" yaml:"cache_reset_interval"` // How often to drop cached events (0 = never)
	DryRun             bool          `json:"dry_run" yaml:"dry_run"`                           // Compute almanacs without storing them

	// Storage
	PostgresConnString string `json:"postgres_conn_string" yaml:"postgres_conn_string"` // PostgreSQL connection string (empty = no persistence)

	// Logging settings
	LogLevel string `json:"log_level" yaml:"log_level"` // Log level: debug, info, warn, error
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Latitude:           56.9496, // Riga, Latvia
		Longitude:          24.1052, // Riga, Latvia
		HTTPPort:           8080,
		BroadcastInterval:  10 * time.Second,
		CacheResetInterval: 24 * time.Hour,
		DryRun:             false,
		PostgresConnString: "",
		LogLevel:           "info",
	}
}

// LoadConfig loads configuration from a JSON or YAML file, chosen by extension
func LoadConfig(filename string) (*Config, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		return LoadConfigFromYAML(file)
	default:
		return LoadConfigFromReader(file)
	}
}

// LoadConfigFromReader loads JSON configuration from an io.Reader
func LoadConfigFromReader(reader io.Reader) (*Config, error) {
	config := DefaultConfig()

	decoder := json.NewDecoder(reader)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config JSON: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// LoadConfigFromYAML loads YAML configuration from an io.Reader
func LoadConfigFromYAML(reader io.Reader) (*Config, error) {
	config := DefaultConfig()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read config YAML: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to decode config YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// SaveConfig saves the configuration to a JSON or YAML file, chosen by extension
func (c *Config) SaveConfig(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		encoder := yaml.NewEncoder(file)
		defer encoder.Close()
		if err := encoder.Encode(c); err != nil {
			return fmt.Errorf("failed to encode config YAML: %w", err)
		}
		return nil
	default:
		return c.SaveConfigToWriter(file)
	}
}

// SaveConfigToWriter saves the configuration to an io.Writer as JSON
func (c *Config) SaveConfigToWriter(writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config JSON: %w", err)
	}

	return nil
}

// Validate checks if the configuration values are valid
func (c *Config) Validate() error {
	if c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("latitude must be between -90 and 90, got: %f", c.Latitude)
	}

	if c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("longitude must be between -180 and 180, got: %f", c.Longitude)
	}

	if c.HTTPPort < 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("http_port must be between 0 and 65535, got: %d", c.HTTPPort)
	}

	if c.BroadcastInterval <= 0 {
		return fmt.Errorf("broadcast_interval must be greater than 0, got: %s", c.BroadcastInterval)
	}

	if c.CacheResetInterval < 0 {
		return fmt.Errorf("cache_reset_interval must not be negative, got: %s", c.CacheResetInterval)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level: %s, must be one of: debug, info, warn, error", c.LogLevel)
	}

	return nil
}

// MarshalJSON implements custom JSON marshaling to handle durations
func (c *Config) MarshalJSON() ([]byte, error) {
	type Alias Config
	return json.Marshal(&struct {
		*Alias
		BroadcastInterval  string `json:"broadcast_interval"`
		CacheResetInterval string `json:"cache_reset_interval"`
	}{
		Alias:              (*Alias)(c),
		BroadcastInterval:  c.BroadcastInterval.String(),
		CacheResetInterval: c.CacheResetInterval.String(),
	})
}

// UnmarshalJSON implements custom JSON unmarshaling to handle durations
func (c *Config) UnmarshalJSON(data []byte) error {
	type Alias Config
	aux := &struct {
		*Alias
		BroadcastInterval  string `json:"broadcast_interval"`
		CacheResetInterval string `json:"cache_reset_interval"`
	}{
		Alias: (*Alias)(c),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	var err error
	if aux.BroadcastInterval != "" {
		if c.BroadcastInterval, err = time.ParseDuration(aux.BroadcastInterval); err != nil {
			return fmt.Errorf("invalid broadcast_interval: %w", err)
		}
	}

	if aux.CacheResetInterval != "" {
		if c.CacheResetInterval, err = time.ParseDuration(aux.CacheResetInterval); err != nil {
			return fmt.Errorf("invalid cache_reset_interval: %w", err)
		}
	}

	return nil
}

// String returns a string representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}
