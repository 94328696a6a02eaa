package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
	if cfg.Scheduler.TickInterval != 30*time.Second {
		t.Errorf("tick interval = %v", cfg.Scheduler.TickInterval)
	}
	if cfg.Scheduler.Platform != "cpu_x86" {
		t.Errorf("platform = %q", cfg.Scheduler.Platform)
	}
	if cfg.Media.MaxReconnects != 10 {
		t.Errorf("max reconnects = %d", cfg.Media.MaxReconnects)
	}
	if cfg.Inference.InputWidth != 640 || cfg.Inference.InputHeight != 640 {
		t.Errorf("input size = %dx%d", cfg.Inference.InputWidth, cfg.Inference.InputHeight)
	}
	if !cfg.Web.Enabled || cfg.Web.Port != 8080 {
		t.Errorf("web config = %+v", cfg.Web)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
scheduler:
  tick_interval: 10s
  platform: nvidia_gpu
notify:
  max_concurrency: 16
  sinks:
    - type: webhook
      name: ops
      url: http://hooks.internal/alerts
      timeout: 5s
    - type: mqtt
      name: broker
      broker: tcp://mqtt.internal:1883
      topic: argus/alerts
    - type: kafka
      name: bus
      brokers: ["kafka-1:9092", "kafka-2:9092"]
      topic: argus.alerts
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
	if cfg.Scheduler.TickInterval != 10*time.Second {
		t.Errorf("tick interval = %v", cfg.Scheduler.TickInterval)
	}
	if len(cfg.Notify.Sinks) != 3 {
		t.Fatalf("sinks = %d, want 3", len(cfg.Notify.Sinks))
	}
	if cfg.Notify.Sinks[0].Timeout != 5*time.Second {
		t.Errorf("webhook timeout = %v", cfg.Notify.Sinks[0].Timeout)
	}
	if len(cfg.Notify.Sinks[2].Brokers) != 2 {
		t.Errorf("kafka brokers = %v", cfg.Notify.Sinks[2].Brokers)
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, `
log:
  level: warn
web:
  port: 9000
`)
	t.Setenv("ARGUS_LOG_LEVEL", "debug")
	t.Setenv("ARGUS_WEB_PORT", "7777")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q, env should win", cfg.Log.Level)
	}
	if cfg.Web.Port != 7777 {
		t.Errorf("port = %d, env should win", cfg.Web.Port)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"zero tick", "scheduler:\n  tick_interval: 0s\n"},
		{"bad nms", "inference:\n  nms_threshold: 1.5\n"},
		{"bad jpeg quality", "alerts:\n  jpeg_quality: 0\n"},
		{"webhook without url", "notify:\n  sinks:\n    - type: webhook\n      name: x\n"},
		{"mqtt without broker", "notify:\n  sinks:\n    - type: mqtt\n      name: x\n      topic: t\n"},
		{"kafka without brokers", "notify:\n  sinks:\n    - type: kafka\n      name: x\n      topic: t\n"},
		{"unknown sink type", "notify:\n  sinks:\n    - type: smoke-signal\n      name: x\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.yaml)); err == nil {
				t.Errorf("expected validation error")
			}
		})
	}
}

func TestPlatformMatches(t *testing.T) {
	s := SchedulerConfig{Platform: "cpu_x86"}
	if !s.PlatformMatches("cpu_x86") {
		t.Error("same platform should match")
	}
	if s.PlatformMatches("nvidia_gpu") {
		t.Error("different platform should not match")
	}
	if !(SchedulerConfig{}).PlatformMatches("anything") {
		t.Error("empty node platform accepts everything")
	}
}
