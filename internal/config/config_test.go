package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAppliesDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("phys_addr: \"15.15.15\"\n"), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.UseTunneling {
		t.Error("expected use_tunneling default true")
	}
	if !cfg.SuppressAckLDataReq {
		t.Error("expected suppress_ack_ldatareq default true")
	}
	if cfg.Health.ListenAddr != ":8080" {
		t.Errorf("health.listen_addr = %q, want :8080", cfg.Health.ListenAddr)
	}
}

func TestLoadOverridesFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	content := `
remote_endpoint: "192.168.1.10:3671"
phys_addr: "1.1.1"
two_level_addressing: true
event_publisher:
  enabled: true
  broker_url: "tcp://localhost:1883"
telemetry:
  enabled: true
  url: "http://localhost:8086"
  org: "home"
  bucket: "knx"
  token: "secret-token"
health:
  enabled: true
  listen_addr: ":9100"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RemoteEndpoint != "192.168.1.10:3671" {
		t.Errorf("remote_endpoint = %q", cfg.RemoteEndpoint)
	}
	if !cfg.TwoLevelAddressing {
		t.Error("expected two_level_addressing true")
	}
	if !cfg.EventPublisher.Enabled || cfg.EventPublisher.BrokerURL == "" {
		t.Error("expected event_publisher enabled with broker url")
	}
	if !cfg.Telemetry.Enabled || cfg.Telemetry.Bucket != "knx" {
		t.Error("expected telemetry enabled with bucket knx")
	}
	if cfg.Health.ListenAddr != ":9100" {
		t.Errorf("health.listen_addr = %q, want :9100", cfg.Health.ListenAddr)
	}
}

func TestValidateRejectsBadPhysAddr(t *testing.T) {
	cfg := defaultConfig()
	cfg.PhysAddr = "not-an-address"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for malformed phys_addr")
	}
}

func TestValidateRequiresBrokerURLWhenEventPublisherEnabled(t *testing.T) {
	cfg := defaultConfig()
	cfg.EventPublisher.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for missing broker_url")
	}
}

func TestValidateRequiresTelemetryFieldsWhenEnabled(t *testing.T) {
	cfg := defaultConfig()
	cfg.Telemetry.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for missing telemetry fields")
	}
}

func TestTelemetryConfigRedactsToken(t *testing.T) {
	cfg := TelemetryConfig{Enabled: true, Token: "super-secret"}
	if s := cfg.String(); s == "" || contains(s, "super-secret") {
		t.Fatalf("String() leaked token: %s", s)
	}
	b, err := cfg.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	if contains(string(b), "super-secret") {
		t.Fatalf("MarshalJSON leaked token: %s", b)
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
