package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/knxnet/internal/address"
)

// Config is the root configuration for a knxnet client.
// Loaded from YAML with environment variable overrides.
type Config struct {
	// RemoteEndpoint, when set ("host:port"), skips discovery and jumps
	// straight to connecting with this gateway.
	RemoteEndpoint string `yaml:"remote_endpoint"`

	// PhysServerAddr restricts SEARCH_RESPONSE acceptance to a gateway
	// advertising this physical address. Empty accepts any responder.
	PhysServerAddr string `yaml:"phys_server_addr"`

	// PhysAddr is the source physical address stamped into outbound CEMI.
	PhysAddr string `yaml:"phys_addr"`

	// TwoLevelAddressing selects the group-address text format.
	TwoLevelAddressing bool `yaml:"two_level_addressing"`

	// SuppressAckLDataReq, when false, sets ctrl1.acknowledge on outbound
	// L_Data.req frames.
	SuppressAckLDataReq bool `yaml:"suppress_ack_ldatareq"`

	// UseTunneling, when false, sends outbound group operations as
	// ROUTING_INDICATION instead of TUNNELING_REQUEST (no ACKs).
	UseTunneling bool `yaml:"use_tunneling"`

	// LogLevel is the diagnostic verbosity passed to internal/logging.
	LogLevel string `yaml:"loglevel"`

	EventPublisher EventPublisherConfig `yaml:"event_publisher"`
	Telemetry      TelemetryConfig      `yaml:"telemetry"`
	Health         HealthConfig         `yaml:"health"`
}

// EventPublisherConfig configures the optional MQTT event publisher.
type EventPublisherConfig struct {
	Enabled   bool   `yaml:"enabled"`
	BrokerURL string `yaml:"broker_url"`
}

// TelemetryConfig configures the optional InfluxDB telemetry recorder.
type TelemetryConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Org     string `yaml:"org"`
	Bucket  string `yaml:"bucket"`
	Token   string `yaml:"token"`
}

// String returns a string representation with the token masked.
func (t TelemetryConfig) String() string {
	token := ""
	if t.Token != "" {
		token = "[REDACTED]"
	}
	return fmt.Sprintf("TelemetryConfig{Enabled:%t, URL:%q, Org:%q, Bucket:%q, Token:%s}",
		t.Enabled, t.URL, t.Org, t.Bucket, token)
}

// MarshalJSON implements json.Marshaler to redact the token in JSON output.
func (t TelemetryConfig) MarshalJSON() ([]byte, error) {
	type redacted TelemetryConfig
	safe := redacted(t)
	if safe.Token != "" {
		safe.Token = "[REDACTED]"
	}
	return json.Marshal(safe)
}

// HealthConfig configures the optional chi-backed health endpoint.
type HealthConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
}

// Load reads configuration from a YAML file and applies environment
// variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: KNXNET_<SECTION>_<FIELD>.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		PhysServerAddr:      "1.1.220",
		PhysAddr:            "15.15.15",
		SuppressAckLDataReq: true,
		UseTunneling:        true,
		LogLevel:            "info",
		Health: HealthConfig{
			ListenAddr: ":8080",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Environment variables follow the pattern
// KNXNET_<SECTION>_<FIELD>.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("KNXNET_REMOTE_ENDPOINT"); v != "" {
		cfg.RemoteEndpoint = v
	}
	if v := os.Getenv("KNXNET_PHYS_ADDR"); v != "" {
		cfg.PhysAddr = v
	}
	if v := os.Getenv("KNXNET_LOGLEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("KNXNET_EVENT_PUBLISHER_BROKER_URL"); v != "" {
		cfg.EventPublisher.BrokerURL = v
	}
	if v := os.Getenv("KNXNET_EVENT_PUBLISHER_ENABLED"); v != "" {
		cfg.EventPublisher.Enabled = parseBool(v, cfg.EventPublisher.Enabled)
	}
	if v := os.Getenv("KNXNET_TELEMETRY_URL"); v != "" {
		cfg.Telemetry.URL = v
	}
	if v := os.Getenv("KNXNET_TELEMETRY_TOKEN"); v != "" {
		cfg.Telemetry.Token = v
	}
	if v := os.Getenv("KNXNET_TELEMETRY_ENABLED"); v != "" {
		cfg.Telemetry.Enabled = parseBool(v, cfg.Telemetry.Enabled)
	}
	if v := os.Getenv("KNXNET_HEALTH_LISTEN_ADDR"); v != "" {
		cfg.Health.ListenAddr = v
	}
	if v := os.Getenv("KNXNET_HEALTH_ENABLED"); v != "" {
		cfg.Health.Enabled = parseBool(v, cfg.Health.Enabled)
	}
}

func parseBool(v string, fallback bool) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.PhysAddr == "" {
		errs = append(errs, "phys_addr is required")
	} else if _, err := address.Parse(c.PhysAddr, address.Physical, false); err != nil {
		errs = append(errs, fmt.Sprintf("phys_addr: %v", err))
	}

	if c.PhysServerAddr != "" {
		if _, err := address.Parse(c.PhysServerAddr, address.Physical, false); err != nil {
			errs = append(errs, fmt.Sprintf("phys_server_addr: %v", err))
		}
	}

	if c.RemoteEndpoint != "" {
		if _, _, err := splitHostPort(c.RemoteEndpoint); err != nil {
			errs = append(errs, fmt.Sprintf("remote_endpoint: %v", err))
		}
	}

	if c.EventPublisher.Enabled && c.EventPublisher.BrokerURL == "" {
		errs = append(errs, "event_publisher.broker_url is required when event_publisher.enabled is true")
	}

	if c.Telemetry.Enabled {
		if c.Telemetry.URL == "" {
			errs = append(errs, "telemetry.url is required when telemetry.enabled is true")
		}
		if c.Telemetry.Org == "" {
			errs = append(errs, "telemetry.org is required when telemetry.enabled is true")
		}
		if c.Telemetry.Bucket == "" {
			errs = append(errs, "telemetry.bucket is required when telemetry.enabled is true")
		}
	}

	if c.Health.Enabled && c.Health.ListenAddr == "" {
		errs = append(errs, "health.listen_addr is required when health.enabled is true")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

func splitHostPort(hostport string) (string, string, error) {
	host, port, found := strings.Cut(hostport, ":")
	if !found || host == "" || port == "" {
		return "", "", fmt.Errorf("expected \"host:port\", got %q", hostport)
	}
	return host, port, nil
}
