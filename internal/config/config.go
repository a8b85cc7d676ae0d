package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration. It is loaded once at
// startup and passed into constructors; nothing reads it as ambient
// global state.
type Config struct {
	Devices              []Device   `yaml:"devices"`
	FetchIntervalSeconds int        `yaml:"fetch_interval_seconds,omitempty"` // Scrape cadence (fallback: 300)
	ReportHour           int        `yaml:"report_hour,omitempty"`            // Daily report hour, 0-23 (fallback: 9)
	ListenAddr           string     `yaml:"listen_addr,omitempty"`            // HTTP API address (fallback: :5000)
	MeterBaseURL         string     `yaml:"meter_base_url,omitempty"`         // Meter page endpoint override
	ServerChanURL        string     `yaml:"server_chan_url,omitempty"`        // Notification endpoint override
	CacheTTLSeconds      int        `yaml:"cache_ttl_seconds,omitempty"`      // Aggregation cache freshness (fallback: 300)
	MQTT                 MQTTConfig `yaml:"mqtt,omitempty"`
}

// Device is one prepaid meter to poll
type Device struct {
	ID            string `yaml:"id"`
	Name          string `yaml:"name,omitempty"`
	ServerChanKey string `yaml:"server_chan_key,omitempty"` // SendKey for daily report pushes
}

// MQTTConfig holds broker settings for publishing balance readings
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"` // host:port
	Username    string `yaml:"username,omitempty"`
	Password    string `yaml:"password,omitempty"`
	TopicPrefix string `yaml:"topic_prefix,omitempty"` // e.g., "meterwatch"
}

// Load reads the config file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Return empty config if file doesn't exist
			return &Config{}, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return &cfg, nil
}

// Save writes the config to file
func Save(configPath string, cfg *Config) error {
	// Ensure directory exists
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// DefaultConfigPath returns the default config file path (local directory)
func DefaultConfigPath() string {
	return "config.yaml"
}

// GetFetchInterval returns the scrape interval with a default of 5 minutes
func (c *Config) GetFetchInterval() time.Duration {
	if c.FetchIntervalSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.FetchIntervalSeconds) * time.Second
}

// GetReportHour returns the daily report hour, defaulting to 9am
func (c *Config) GetReportHour() int {
	if c.ReportHour <= 0 || c.ReportHour > 23 {
		return 9
	}
	return c.ReportHour
}

// GetListenAddr returns the HTTP listen address with a default of :5000
func (c *Config) GetListenAddr() string {
	if c.ListenAddr == "" {
		return ":5000"
	}
	return c.ListenAddr
}

// GetCacheTTL returns the aggregation cache freshness window (default 5 minutes)
func (c *Config) GetCacheTTL() time.Duration {
	if c.CacheTTLSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// FirstDevice returns the first configured device, or nil when none exist
func (c *Config) FirstDevice() *Device {
	if len(c.Devices) == 0 {
		return nil
	}
	return &c.Devices[0]
}

// DeviceByID looks up a configured device by id
func (c *Config) DeviceByID(id string) *Device {
	for i := range c.Devices {
		if c.Devices[i].ID == id {
			return &c.Devices[i]
		}
	}
	return nil
}

// DisplayName returns the device name, falling back to the id
func (d *Device) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.ID
}
