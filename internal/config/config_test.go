// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gait.config")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
# bench setup
TRANSPORT=sim
OUTPUT_FORMAT = msgpack
BALL_ENABLED=false
BATCH_WAIT_TIMEOUT_MS=750
BODY_WEIGHT_N=700.5
MQTT_TOPIC_PREFIX=lab/gait/
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Transport != "sim" || cfg.OutputFormat != "msgpack" || cfg.BallEnabled {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.BatchWaitTimeout() != 750*time.Millisecond {
		t.Errorf("BatchWaitTimeout = %v", cfg.BatchWaitTimeout())
	}
	if cfg.BodyWeightN != 700.5 {
		t.Errorf("BodyWeightN = %v", cfg.BodyWeightN)
	}
	if cfg.MQTTTopicPrefix != "lab/gait" {
		t.Errorf("MQTTTopicPrefix = %q", cfg.MQTTTopicPrefix)
	}

	// Untouched keys keep their defaults.
	if cfg.InsoleName != "Insole_Left" || cfg.PullWriteTimeout() != 2*time.Second || cfg.SessionWaitTimeout() != 120*time.Second {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing equals", "TRANSPORT sim", "invalid config line 1"},
		{"unknown key", "IMU_GYRO_RANGE=2", "unknown config key"},
		{"bad transport", "TRANSPORT=usb", "TRANSPORT must be"},
		{"bad int", "RETRY_BACKOFF_MS=fast", "invalid RETRY_BACKOFF_MS"},
		{"bad ratio", "FORCE_THRESHOLD_RATIO=1.5", "FORCE_THRESHOLD_RATIO must be"},
		{"serial without port", "TRANSPORT=serial", "SERIAL_PORT is required"},
		{"nothing enabled", "INSOLE_ENABLED=false\nBALL_ENABLED=false", "at least one"},
		{"bad level", "LOG_LEVEL=loud", "LOG_LEVEL must be"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Load error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := ParseLogLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLogLevel(%q) = %v, %v", in, got, err)
		}
	}
}

func TestMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("Load of missing file succeeded")
	}
}
