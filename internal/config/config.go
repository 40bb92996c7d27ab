package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultConfigPath is the path to the shipped defaults file. Every value in
// it matches the fallback of the corresponding Get* method.
const DefaultConfigPath = "config/stroke.defaults.json"

// Config is shared by every command. Each command reads only the keys it
// needs; unset keys fall back to the defaults below.
type Config struct {
	// Server
	Listen         *string `json:"listen,omitempty"`
	DBPath         *string `json:"db_path,omitempty"`
	ModelPath      *string `json:"model_path,omitempty"`
	SimulateVitals *bool   `json:"simulate_vitals,omitempty"`

	// Dashboard
	ServerURL            *string `json:"server_url,omitempty"`
	PredictionLogLimit   *int    `json:"prediction_log_limit,omitempty"`
	ReconnectMaxAttempts *int    `json:"reconnect_max_attempts,omitempty"`
	ReconnectBaseDelay   *string `json:"reconnect_base_delay,omitempty"` // duration string like "1s"
	ReconnectMaxDelay    *string `json:"reconnect_max_delay,omitempty"`
	AnalysisOutputDir    *string `json:"analysis_output_dir,omitempty"`

	// Bridge
	SerialPort       *string `json:"serial_port,omitempty"`
	SerialBaudRate   *int    `json:"serial_baud_rate,omitempty"`
	SerialRetryDelay *string `json:"serial_retry_delay,omitempty"`
	SerialFixtures   *string `json:"serial_fixtures,omitempty"`
}

func ptrBool(v bool) *bool       { return &v }
func ptrString(v string) *string { return &v }
func ptrInt(v int) *int          { return &v }

// Defaults returns a Config with every field set to its default.
func Defaults() *Config {
	return &Config{
		Listen:               ptrString(":8000"),
		DBPath:               ptrString("stroke_data.db"),
		ModelPath:            ptrString("model/stroke_knn.json"),
		SimulateVitals:       ptrBool(true),
		ServerURL:            ptrString("http://127.0.0.1:8000"),
		PredictionLogLimit:   ptrInt(50),
		ReconnectMaxAttempts: ptrInt(5),
		ReconnectBaseDelay:   ptrString("1s"),
		ReconnectMaxDelay:    ptrString("30s"),
		AnalysisOutputDir:    ptrString("analysis"),
		SerialPort:           ptrString("/dev/ttyUSB0"),
		SerialBaudRate:       ptrInt(115200),
		SerialRetryDelay:     ptrString("5s"),
		SerialFixtures:       ptrString("testdata/imu_fixtures.jsonl"),
	}
}

// Load reads a Config from a JSON file. The file must have a .json
// extension and be under 1MB. Fields omitted from the file keep their
// defaults through the Get* methods, so partial configs are safe.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault loads path when it is non-empty and otherwise returns an
// empty Config, whose getters all yield defaults.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return &Config{}, nil
	}
	return Load(path)
}

// Validate checks that the configuration values are valid.
func (c *Config) Validate() error {
	durations := []struct {
		name string
		v    *string
	}{
		{"reconnect_base_delay", c.ReconnectBaseDelay},
		{"reconnect_max_delay", c.ReconnectMaxDelay},
		{"serial_retry_delay", c.SerialRetryDelay},
	}
	for _, d := range durations {
		if d.v == nil || *d.v == "" {
			continue
		}
		parsed, err := time.ParseDuration(*d.v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", d.name, *d.v, err)
		}
		if parsed < 0 {
			return fmt.Errorf("%s must be non-negative, got %s", d.name, *d.v)
		}
	}

	if c.PredictionLogLimit != nil && *c.PredictionLogLimit <= 0 {
		return fmt.Errorf("prediction_log_limit must be positive, got %d", *c.PredictionLogLimit)
	}
	if c.ReconnectMaxAttempts != nil && *c.ReconnectMaxAttempts < 0 {
		return fmt.Errorf("reconnect_max_attempts must be non-negative, got %d", *c.ReconnectMaxAttempts)
	}
	if c.SerialBaudRate != nil && *c.SerialBaudRate <= 0 {
		return fmt.Errorf("serial_baud_rate must be positive, got %d", *c.SerialBaudRate)
	}
	if c.ServerURL != nil {
		u := *c.ServerURL
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			return fmt.Errorf("server_url must be an http or https URL, got %q", u)
		}
	}
	return nil
}

func getString(v *string, def string) string {
	if v == nil || *v == "" {
		return def
	}
	return *v
}

func getDuration(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return def // default on parse error
	}
	return d
}

func (c *Config) GetListen() string    { return getString(c.Listen, ":8000") }
func (c *Config) GetDBPath() string    { return getString(c.DBPath, "stroke_data.db") }
func (c *Config) GetModelPath() string { return getString(c.ModelPath, "model/stroke_knn.json") }

// GetSimulateVitals returns the simulate_vitals value or the default.
func (c *Config) GetSimulateVitals() bool {
	if c.SimulateVitals == nil {
		return true // default
	}
	return *c.SimulateVitals
}

// GetServerURL returns the backend base URL without a trailing slash.
func (c *Config) GetServerURL() string {
	return strings.TrimRight(getString(c.ServerURL, "http://127.0.0.1:8000"), "/")
}

// GetPredictionLogLimit returns the live log bound or the default.
func (c *Config) GetPredictionLogLimit() int {
	if c.PredictionLogLimit == nil {
		return 50 // default
	}
	return *c.PredictionLogLimit
}

// GetReconnectMaxAttempts returns the reconnect_max_attempts value or the
// default. Zero disables reconnection.
func (c *Config) GetReconnectMaxAttempts() int {
	if c.ReconnectMaxAttempts == nil {
		return 5 // default
	}
	return *c.ReconnectMaxAttempts
}

func (c *Config) GetReconnectBaseDelay() time.Duration {
	return getDuration(c.ReconnectBaseDelay, time.Second)
}

func (c *Config) GetReconnectMaxDelay() time.Duration {
	return getDuration(c.ReconnectMaxDelay, 30*time.Second)
}

func (c *Config) GetAnalysisOutputDir() string { return getString(c.AnalysisOutputDir, "analysis") }

func (c *Config) GetSerialPort() string { return getString(c.SerialPort, "/dev/ttyUSB0") }

// GetSerialBaudRate returns the serial_baud_rate value or the default.
func (c *Config) GetSerialBaudRate() int {
	if c.SerialBaudRate == nil {
		return 115200 // default
	}
	return *c.SerialBaudRate
}

func (c *Config) GetSerialRetryDelay() time.Duration {
	return getDuration(c.SerialRetryDelay, 5*time.Second)
}

func (c *Config) GetSerialFixtures() string {
	return getString(c.SerialFixtures, "testdata/imu_fixtures.jsonl")
}
