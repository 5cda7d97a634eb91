package libsqlproxy

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Strategy selects which transport backend a Database Handle
// actively drives (spec §4.2).
type Strategy int

const (
	StrategyHTTP Strategy = iota
	StrategyWebSocket
)

// Config holds everything Open needs beyond the db name itself.
type Config struct {
	Strategy Strategy `yaml:"strategy"`

	HTTPTimeout      time.Duration `yaml:"http_timeout"`
	WSHandshakeGrace time.Duration `yaml:"ws_handshake_grace"`
	WSBusTimeout     time.Duration `yaml:"ws_bus_timeout"`

	RetryAttempts int           `yaml:"retry_attempts"`
	RetryInterval time.Duration `yaml:"retry_interval"`

	Telemetry TelemetryConfig `yaml:"telemetry"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DefaultConfig mirrors spec §4.3/§4.4/§4.6's literal timeouts and
// retry bounds: 30s HTTP timeout, 500ms WS handshake grace, 10s WS
// bus wait, 5 HTTP attempts with a 100ms fixed backoff.
func DefaultConfig() Config {
	return Config{
		Strategy:         StrategyHTTP,
		HTTPTimeout:      30 * time.Second,
		WSHandshakeGrace: 500 * time.Millisecond,
		WSBusTimeout:     10 * time.Second,
		RetryAttempts:    5,
		RetryInterval:    100 * time.Millisecond,
		Telemetry:        TelemetryConfig{Enabled: false},
		Metrics:          MetricsConfig{Enabled: false},
		Logging:          LoggingConfig{Enabled: true},
	}
}

// LoadConfigYAML overlays a YAML file onto DefaultConfig, for local
// development; the teacher repo only reads environment variables, but
// its go.mod already carries gopkg.in/yaml.v3, so this client exposes
// an optional file-based loader on top of it.
func LoadConfigYAML(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}
