package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/faderpilot/mixctl/internal/config"
)

const validYAML = `
server:
  listen_addr: ":8080"
  admin_addr: ":9090"
  log_level: debug
  user_id: "user-abc"
device:
  addr: "console.local"
  response_timeout: 2s
dictionary:
  path: "/var/lib/mixctl/dictionary.json"
learning:
  display_window: 3s
  promotion_threshold: 5
  shared_learning: true
  sync_interval: 15m
kafka:
  brokers: ["kafka-1:9092", "kafka-2:9092"]
`

func TestLoadFromReader_Valid(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("LogLevel=%q, want debug", cfg.Server.LogLevel)
	}
	if cfg.Device.Addr != "console.local" {
		t.Errorf("Device.Addr=%q", cfg.Device.Addr)
	}
	if cfg.Learning.DisplayWindow != 3*time.Second {
		t.Errorf("DisplayWindow=%s", cfg.Learning.DisplayWindow)
	}
	if len(cfg.Kafka.Brokers) != 2 {
		t.Errorf("Brokers=%v", cfg.Kafka.Brokers)
	}
}

func TestLoadFromReader_DefaultsApplied(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader("device:\n  mock: true\n"))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Server.ListenAddr != config.DefaultListenAddr {
		t.Errorf("ListenAddr=%q, want default", cfg.Server.ListenAddr)
	}
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("LogLevel=%q, want info default", cfg.Server.LogLevel)
	}
	if cfg.Learning.DisplayWindow != config.DefaultDisplayWindow {
		t.Errorf("DisplayWindow=%s, want default", cfg.Learning.DisplayWindow)
	}
	if cfg.Learning.PromotionThreshold != 5 {
		t.Errorf("PromotionThreshold=%d, want 5", cfg.Learning.PromotionThreshold)
	}
	if cfg.Kafka.AcceptTopic != "mixctl.corrections.accepted" {
		t.Errorf("AcceptTopic=%q", cfg.Kafka.AcceptTopic)
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFromReader(strings.NewReader("device:\n  adress: \"typo.local\"\n"))
	if err == nil {
		t.Fatal("unknown field accepted, want strict decode error")
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	t.Parallel()

	yaml := `
server:
  log_level: verbose
learning:
  shared_learning: true
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("invalid config accepted")
	}
	msg := err.Error()
	for _, want := range []string{"server.log_level", "device.addr", "server.user_id"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q does not mention %s", msg, want)
		}
	}
}

func TestValidate_MockDeviceNeedsNoAddr(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader("device:\n  mock: true\n"))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if !cfg.Device.Mock {
		t.Error("Mock not set")
	}
}
