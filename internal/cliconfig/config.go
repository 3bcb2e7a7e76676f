package cliconfig

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bft-labs/fieldlog/internal/identity"
	"github.com/bft-labs/fieldlog/internal/naming"
	"github.com/bft-labs/fieldlog/pkg/wav"
)

// DefaultCatalogName is the catalog file created in the primary directory.
const DefaultCatalogName = "fieldlog.db"

// Config holds CLI configuration for fieldlog.
type Config struct {
	Label    string
	DeviceID int

	PrimaryDir string
	BackupDir  string
	Path       string
	FileName   string

	FileTime     time.Duration
	InitialDelay time.Duration
	Tick         time.Duration

	SampleRate   int
	Channels     int
	Bits         int
	BufferBytes  int
	MinFreeBytes int

	RandomBlinks bool
	BlinkTimeout time.Duration
	CPUSpeed     string
	Gain         string

	GPIORoot   string
	StatusGPIO []int
	SyncGPIO   []int
	ErrorGPIO  []int

	MQTTURL     string
	SyncMaster  bool
	SyncTimeout time.Duration

	SensorInterval time.Duration
	LightThreshold float64
	SimSensors     bool
	ModbusEndpoint string
	ModbusUnit     int
	I2CBus         string

	MetricsAddr string
	CatalogPath string
	LogLevel    string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Label:          naming.DefaultLabel,
		DeviceID:       identity.FromHardware,
		Path:           naming.DefaultPath,
		FileName:       naming.DefaultFileName,
		FileTime:       10 * time.Minute,
		Tick:           10 * time.Millisecond,
		SampleRate:     48000,
		Channels:       1,
		Bits:           16,
		BufferBytes:    64 << 10, // 64KiB
		MinFreeBytes:   64 << 20, // 64MiB
		SyncTimeout:    5 * time.Second,
		SensorInterval: time.Minute,
		ModbusUnit:     1,
		LogLevel:       "info",
	}
}

// Format returns the sample format described by the configuration.
func (c *Config) Format() wav.Format {
	return wav.Format{SampleRate: c.SampleRate, Channels: c.Channels, Bits: c.Bits}
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	if c.PrimaryDir == "" {
		return fmt.Errorf("primary-dir is required")
	}
	if c.BackupDir != "" && filepath.Clean(c.BackupDir) == filepath.Clean(c.PrimaryDir) {
		return fmt.Errorf("backup-dir must differ from primary-dir")
	}
	if c.FileTime <= 0 {
		return fmt.Errorf("file time must be positive")
	}
	if c.Tick <= 0 {
		return fmt.Errorf("tick must be positive")
	}
	if err := c.Format().Validate(); err != nil {
		return err
	}
	if c.BufferBytes < 1024 {
		return fmt.Errorf("buffer-bytes must be at least 1024")
	}
	if c.MQTTURL != "" && c.SyncTimeout <= 0 {
		return fmt.Errorf("sync-timeout must be positive when mqtt-url is set")
	}
	if c.DeviceID < identity.FromHardware {
		return fmt.Errorf("device-id must be %d (hardware) or non-negative", identity.FromHardware)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log level: %w", err)
	}

	if c.Label == "" {
		c.Label = naming.DefaultLabel
	}
	if c.Path == "" {
		c.Path = naming.DefaultPath
	}
	if c.FileName == "" {
		c.FileName = naming.DefaultFileName
	}
	if c.CatalogPath == "" {
		c.CatalogPath = filepath.Join(c.PrimaryDir, DefaultCatalogName)
	}
	return nil
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setSignedInt sets an int value from a pointer, zero and negative included.
func (s *configSetter) setSignedInt(flag string, value *int, dst *int) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setInts sets a list if not empty and flag not changed.
func (s *configSetter) setInts(flag string, value []int, dst *[]int) {
	if len(value) == 0 || s.changed[flag] {
		return
	}
	*dst = append([]int(nil), value...)
}

// setFloat sets a float64 value if positive and flag not changed.
func (s *configSetter) setFloat(flag string, value float64, dst *float64) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setSignedIntFromString is setIntFromString without the positivity check.
func (s *configSetter) setSignedIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = i
	return nil
}

// setIntsFromString parses a comma separated list such as "17,27".
func (s *configSetter) setIntsFromString(flag, value string, dst *[]int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	var out []int
	for _, part := range strings.Split(value, ",") {
		i, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return fmt.Errorf("parse %s: %w", flag, err)
		}
		out = append(out, i)
	}
	*dst = out
	return nil
}

// setFloatFromString parses a string to float64 and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setFloatFromString(flag, value string, dst *float64) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if f <= 0 {
		return nil
	}
	*dst = f
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
// Used for environment variables that come as strings.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
