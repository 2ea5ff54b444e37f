// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Config holds all application configuration values.
type Config struct {
	// Logging
	LogLevel string // debug, info, warn, error

	// Transport
	Transport      string // ble, serial, sim
	SerialPort     string
	SerialBaudRate int
	ScanTimeoutS   int

	// Output
	OutputFile   string
	OutputFormat string // json (JSON lines, default) or msgpack (length-prefixed binary, not line delimited)

	// MQTT (optional sink and console/web source)
	MQTTBroker           string
	MQTTClientIDRecorder string
	MQTTClientIDConsole  string
	MQTTClientIDWeb      string
	MQTTTopicPrefix      string

	// InfluxDB (optional sink)
	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string

	// Insole
	InsoleEnabled     bool
	InsoleName        string
	InsoleFoot        string
	InsoleServiceUUID string
	InsoleCmdUUID     string
	InsoleDataUUID    string
	InsoleLayout      string // YAML file; empty uses the built-in layout

	// Ball
	BallEnabled     bool
	BallName        string
	BallServiceUUID string
	BallCmdUUID     string
	BallDataUUID    string

	// Pull timing
	PullWriteTimeoutMs  int
	BatchWaitTimeoutMs  int
	RetryBackoffMs      int
	SessionWaitTimeoutS int
	StopSettleMs        int

	// Gait analysis
	BodyWeightN         float64 // <= 0 derives the threshold from the data
	ForceThresholdRatio float64

	// Orchestration
	ContinueOnMissingDevice bool

	// Web Server
	WebServerPort int
}

// Default returns the configuration used for keys absent from the file.
func Default() *Config {
	return &Config{
		LogLevel: "info",

		Transport:      "ble",
		SerialBaudRate: 115200,
		ScanTimeoutS:   10,

		OutputFile:   "Ball_Insole_Metrics.jsonl",
		OutputFormat: "json",

		MQTTClientIDRecorder: "gait-recorder",
		MQTTClientIDConsole:  "gait-console",
		MQTTClientIDWeb:      "gait-web",
		MQTTTopicPrefix:      "gait",

		InsoleEnabled:     true,
		InsoleName:        "Insole_Left",
		InsoleFoot:        "left",
		InsoleServiceUUID: "12345678-1234-5678-1234-56789abcdef0",
		InsoleCmdUUID:     "12345678-1234-5678-1234-56789abcdef1",
		InsoleDataUUID:    "12345678-1234-5678-1234-56789abcdef2",

		BallEnabled:     true,
		BallName:        "SmartBall",
		BallServiceUUID: "19B10000-E8F2-537E-4F6C-D104768A1214",
		BallCmdUUID:     "19B10001-E8F2-537E-4F6C-D104768A1214",
		BallDataUUID:    "19B10001-E8F2-537E-4F6C-D104768A1214",

		PullWriteTimeoutMs:  2000,
		BatchWaitTimeoutMs:  5000,
		RetryBackoffMs:      50,
		SessionWaitTimeoutS: 120,
		StopSettleMs:        200,

		ForceThresholdRatio: 0.05,

		ContinueOnMissingDevice: true,

		WebServerPort: 8080,
	}
}

// Package-level singleton: set once by InitGlobal, read through Get.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads the configuration file and returns a Config struct. Keys not
// present keep their Default value.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := Default()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Validate required fields
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func atoi(key, value string, min int) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if v < min {
		return 0, fmt.Errorf("%s must be >= %d, got %d", key, min, v)
	}
	return v, nil
}

func parseBool(key, value string) (bool, error) {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return b, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	// Logging
	case "LOG_LEVEL":
		if _, err := ParseLogLevel(value); err != nil {
			return err
		}
		c.LogLevel = value

	// Transport
	case "TRANSPORT":
		switch value {
		case "ble", "serial", "sim":
			c.Transport = value
		default:
			return fmt.Errorf("TRANSPORT must be ble, serial or sim, got %q", value)
		}
	case "SERIAL_PORT":
		c.SerialPort = value
	case "SERIAL_BAUD_RATE":
		c.SerialBaudRate, err = atoi(key, value, 1)
	case "SCAN_TIMEOUT_S":
		c.ScanTimeoutS, err = atoi(key, value, 1)

	// Output
	case "OUTPUT_FILE":
		c.OutputFile = value
	case "OUTPUT_FORMAT":
		switch value {
		case "json", "msgpack":
			c.OutputFormat = value
		default:
			return fmt.Errorf("OUTPUT_FORMAT must be json or msgpack, got %q", value)
		}

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_RECORDER":
		c.MQTTClientIDRecorder = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_TOPIC_PREFIX":
		c.MQTTTopicPrefix = strings.TrimSuffix(value, "/")

	// InfluxDB
	case "INFLUX_URL":
		c.InfluxURL = value
	case "INFLUX_TOKEN":
		c.InfluxToken = value
	case "INFLUX_ORG":
		c.InfluxOrg = value
	case "INFLUX_BUCKET":
		c.InfluxBucket = value

	// Insole
	case "INSOLE_ENABLED":
		c.InsoleEnabled, err = parseBool(key, value)
	case "INSOLE_NAME":
		c.InsoleName = value
	case "INSOLE_FOOT":
		if value != "left" && value != "right" {
			return fmt.Errorf("INSOLE_FOOT must be left or right, got %q", value)
		}
		c.InsoleFoot = value
	case "INSOLE_SERVICE_UUID":
		c.InsoleServiceUUID = value
	case "INSOLE_CMD_CHAR_UUID":
		c.InsoleCmdUUID = value
	case "INSOLE_DATA_CHAR_UUID":
		c.InsoleDataUUID = value
	case "INSOLE_LAYOUT":
		c.InsoleLayout = value

	// Ball
	case "BALL_ENABLED":
		c.BallEnabled, err = parseBool(key, value)
	case "BALL_NAME":
		c.BallName = value
	case "BALL_SERVICE_UUID":
		c.BallServiceUUID = value
	case "BALL_CMD_CHAR_UUID":
		c.BallCmdUUID = value
	case "BALL_DATA_CHAR_UUID":
		c.BallDataUUID = value

	// Pull timing
	case "PULL_WRITE_TIMEOUT_MS":
		c.PullWriteTimeoutMs, err = atoi(key, value, 1)
	case "BATCH_WAIT_TIMEOUT_MS":
		c.BatchWaitTimeoutMs, err = atoi(key, value, 1)
	case "RETRY_BACKOFF_MS":
		c.RetryBackoffMs, err = atoi(key, value, 1)
	case "SESSION_WAIT_TIMEOUT_S":
		c.SessionWaitTimeoutS, err = atoi(key, value, 1)
	case "STOP_SETTLE_MS":
		c.StopSettleMs, err = atoi(key, value, 0)

	// Gait analysis
	case "BODY_WEIGHT_N":
		c.BodyWeightN, err = strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid BODY_WEIGHT_N %q: %w", value, err)
		}
	case "FORCE_THRESHOLD_RATIO":
		ratio, perr := strconv.ParseFloat(value, 64)
		if perr != nil {
			return fmt.Errorf("invalid FORCE_THRESHOLD_RATIO %q: %w", value, perr)
		}
		if ratio <= 0 || ratio >= 1 {
			return fmt.Errorf("FORCE_THRESHOLD_RATIO must be in (0, 1), got %v", ratio)
		}
		c.ForceThresholdRatio = ratio

	// Orchestration
	case "CONTINUE_ON_MISSING_DEVICE":
		c.ContinueOnMissingDevice, err = parseBool(key, value)

	// Web Server
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = atoi(key, value, 1)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return err
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if !c.InsoleEnabled && !c.BallEnabled {
		return fmt.Errorf("at least one of INSOLE_ENABLED and BALL_ENABLED must be true")
	}
	if c.Transport == "serial" && c.SerialPort == "" {
		return fmt.Errorf("SERIAL_PORT is required when TRANSPORT=serial")
	}
	if c.InsoleEnabled && c.InsoleName == "" {
		return fmt.Errorf("INSOLE_NAME is required")
	}
	if c.BallEnabled && c.BallName == "" {
		return fmt.Errorf("BALL_NAME is required")
	}
	if c.InfluxURL != "" && (c.InfluxOrg == "" || c.InfluxBucket == "") {
		return fmt.Errorf("INFLUX_ORG and INFLUX_BUCKET are required with INFLUX_URL")
	}
	return nil
}

// ParseLogLevel maps a LOG_LEVEL value to a slog level.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL must be debug, info, warn or error, got %q", s)
	}
}

// SetupLogging installs a text slog handler on stderr at the configured level.
func (c *Config) SetupLogging() {
	level, _ := ParseLogLevel(c.LogLevel)
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// Duration helpers.

func (c *Config) PullWriteTimeout() time.Duration {
	return time.Duration(c.PullWriteTimeoutMs) * time.Millisecond
}

func (c *Config) BatchWaitTimeout() time.Duration {
	return time.Duration(c.BatchWaitTimeoutMs) * time.Millisecond
}

func (c *Config) RetryBackoff() time.Duration {
	return time.Duration(c.RetryBackoffMs) * time.Millisecond
}

func (c *Config) SessionWaitTimeout() time.Duration {
	return time.Duration(c.SessionWaitTimeoutS) * time.Second
}

func (c *Config) StopSettle() time.Duration {
	return time.Duration(c.StopSettleMs) * time.Millisecond
}

func (c *Config) ScanTimeout() time.Duration {
	return time.Duration(c.ScanTimeoutS) * time.Second
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
