package eventbus

import (
	"errors"
	"testing"

	"github.com/nerrad567/knxnet/internal/config"
)

func TestConnectDisabled(t *testing.T) {
	_, err := Connect(config.EventPublisherConfig{Enabled: false}, nil)
	if !errors.Is(err, ErrDisabled) {
		t.Fatalf("Connect() error = %v, want ErrDisabled", err)
	}
}

// TestConnectRoundTrip requires a running broker at 127.0.0.1:1883; it
// is skipped under -short, and when no broker answers.
func TestConnectRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("requires a local MQTT broker")
	}

	cfg := config.EventPublisherConfig{Enabled: true, BrokerURL: "tcp://127.0.0.1:1883"}
	pub, err := Connect(cfg, nil)
	if err != nil {
		t.Skipf("no broker available: %v", err)
	}
	defer pub.Close()

	if !pub.IsConnected() {
		t.Error("IsConnected() = false, want true")
	}
}
