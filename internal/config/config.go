// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every key when overriding it from the
// environment, e.g. IMU_STREAM_SERIAL_PORT.
const EnvPrefix = "IMU_STREAM"

// Source kinds accepted by SOURCE_KIND.
const (
	KindDummy  = "dummy"
	KindFile   = "file"
	KindSerial = "serial"
)

// Config holds all application configuration values.
type Config struct {
	// Source selection
	SourceKind string // dummy, file or serial
	SourceMode string // live or oneshot

	// Dummy
	DummyInterval time.Duration
	DummySeed     uint64

	// File replay
	FilePath     string
	FileRowDelay time.Duration

	// Serial link
	SerialPort        string
	SerialBaudRate    int
	SerialReadTimeout time.Duration

	// Scheduler
	Workers int

	// Logging
	LogLevel      string
	LogDev        bool
	LogFile       string // empty disables the rotating file
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
}

// defaults mirror the sample imu_stream_config.txt.
var defaults = map[string]any{
	"SOURCE_KIND":            KindDummy,
	"SOURCE_MODE":            "live",
	"DUMMY_INTERVAL_MS":      100,
	"DUMMY_SEED":             0,
	"FILE_PATH":              "",
	"FILE_ROW_DELAY_MS":      100,
	"SERIAL_PORT":            "",
	"SERIAL_BAUD_RATE":       115200,
	"SERIAL_READ_TIMEOUT_MS": 500,
	"WORKERS":                2,
	"LOG_LEVEL":              "info",
	"LOG_DEV":                true,
	"LOG_FILE":               "",
	"LOG_MAX_SIZE_MB":        10,
	"LOG_MAX_BACKUPS":        4,
	"LOG_MAX_AGE_DAYS":       180,
	"LOG_COMPRESS":           true,
}

// Load reads a KEY=VALUE configuration file (blank lines and # comments
// allowed) and returns a validated Config. An empty path yields the
// defaults plus any environment overrides.
func Load(configPath string) (*Config, error) {
	v := newViper()
	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return fromViper(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	return v
}

func fromViper(v *viper.Viper) (*Config, error) {
	for _, key := range v.AllKeys() {
		if _, ok := defaults[strings.ToUpper(key)]; !ok {
			return nil, fmt.Errorf("unknown config key: %q", strings.ToUpper(key))
		}
	}

	cfg := &Config{
		SourceKind: strings.ToLower(strings.TrimSpace(v.GetString("SOURCE_KIND"))),
		SourceMode: strings.ToLower(strings.TrimSpace(v.GetString("SOURCE_MODE"))),
		FilePath:   v.GetString("FILE_PATH"),
		SerialPort: v.GetString("SERIAL_PORT"),
		LogLevel:   v.GetString("LOG_LEVEL"),
		LogFile:    v.GetString("LOG_FILE"),
	}

	var err error
	ints := []struct {
		key string
		dst *int
	}{
		{"SERIAL_BAUD_RATE", &cfg.SerialBaudRate},
		{"WORKERS", &cfg.Workers},
		{"LOG_MAX_SIZE_MB", &cfg.LogMaxSizeMB},
		{"LOG_MAX_BACKUPS", &cfg.LogMaxBackups},
		{"LOG_MAX_AGE_DAYS", &cfg.LogMaxAgeDays},
	}
	for _, f := range ints {
		if *f.dst, err = getInt(v, f.key); err != nil {
			return nil, err
		}
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"DUMMY_INTERVAL_MS", &cfg.DummyInterval},
		{"FILE_ROW_DELAY_MS", &cfg.FileRowDelay},
		{"SERIAL_READ_TIMEOUT_MS", &cfg.SerialReadTimeout},
	}
	for _, f := range durations {
		ms, err := getInt(v, f.key)
		if err != nil {
			return nil, err
		}
		if ms < 0 {
			return nil, fmt.Errorf("%s must be >= 0, got %d", f.key, ms)
		}
		*f.dst = time.Duration(ms) * time.Millisecond
	}

	if cfg.DummySeed, err = cast.ToUint64E(v.Get("DUMMY_SEED")); err != nil {
		return nil, fmt.Errorf("invalid DUMMY_SEED %q: %w", v.GetString("DUMMY_SEED"), err)
	}
	if cfg.LogDev, err = getBool(v, "LOG_DEV"); err != nil {
		return nil, err
	}
	if cfg.LogCompress, err = getBool(v, "LOG_COMPRESS"); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getInt(v *viper.Viper, key string) (int, error) {
	n, err := cast.ToIntE(v.Get(key))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v.GetString(key), err)
	}
	return n, nil
}

func getBool(v *viper.Viper, key string) (bool, error) {
	b, err := cast.ToBoolE(v.Get(key))
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, v.GetString(key), err)
	}
	return b, nil
}

// Validate checks that the fields needed by the selected source are set.
// Callers that edit a loaded Config (e.g. from command line flags) should
// run it again.
func (c *Config) Validate() error {
	switch c.SourceMode {
	case "live", "oneshot":
	default:
		return fmt.Errorf("SOURCE_MODE must be live or oneshot, got %q", c.SourceMode)
	}

	switch c.SourceKind {
	case KindDummy:
		if c.SourceMode != "live" {
			return fmt.Errorf("SOURCE_MODE must be live for the dummy source")
		}
	case KindFile:
		if c.FilePath == "" {
			return fmt.Errorf("FILE_PATH is required")
		}
	case KindSerial:
		if c.SerialPort == "" {
			return fmt.Errorf("SERIAL_PORT is required")
		}
		if c.SerialBaudRate <= 0 {
			return fmt.Errorf("SERIAL_BAUD_RATE is required")
		}
		if c.SourceMode != "live" {
			return fmt.Errorf("SOURCE_MODE must be live for the serial source")
		}
	default:
		return fmt.Errorf("SOURCE_KIND must be dummy, file or serial, got %q", c.SourceKind)
	}

	if c.Workers < 1 {
		return fmt.Errorf("WORKERS must be >= 1, got %d", c.Workers)
	}
	return nil
}
