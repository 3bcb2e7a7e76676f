package cliconfig

import (
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	Label          string  `toml:"label"`
	DeviceID       *int    `toml:"device_id"`
	PrimaryDir     string  `toml:"primary_dir"`
	BackupDir      string  `toml:"backup_dir"`
	Path           string  `toml:"path"`
	FileName       string  `toml:"file_name"`
	FileTime       string  `toml:"file_time"`
	InitialDelay   string  `toml:"initial_delay"`
	Tick           string  `toml:"tick"`
	SampleRate     int     `toml:"sample_rate"`
	Channels       int     `toml:"channels"`
	Bits           int     `toml:"bits"`
	BufferBytes    int     `toml:"buffer_bytes"`
	MinFreeBytes   int     `toml:"min_free_bytes"`
	RandomBlinks   *bool   `toml:"random_blinks"`
	BlinkTimeout   string  `toml:"blink_timeout"`
	CPUSpeed       string  `toml:"cpu_speed"`
	Gain           string  `toml:"gain"`
	GPIORoot       string  `toml:"gpio_root"`
	StatusGPIO     []int   `toml:"status_gpio"`
	SyncGPIO       []int   `toml:"sync_gpio"`
	ErrorGPIO      []int   `toml:"error_gpio"`
	MQTTURL        string  `toml:"mqtt_url"`
	SyncMaster     *bool   `toml:"sync_master"`
	SyncTimeout    string  `toml:"sync_timeout"`
	SensorInterval string  `toml:"sensor_interval"`
	LightThreshold float64 `toml:"light_threshold"`
	SimSensors     *bool   `toml:"sim_sensors"`
	ModbusEndpoint string  `toml:"modbus_endpoint"`
	ModbusUnit     int     `toml:"modbus_unit"`
	I2CBus         string  `toml:"i2c_bus"`
	MetricsAddr    string  `toml:"metrics_addr"`
	CatalogPath    string  `toml:"catalog"`
	LogLevel       string  `toml:"log_level"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.fieldlog/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".fieldlog", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("label", fc.Label, &cfg.Label)
	s.setSignedInt("device-id", fc.DeviceID, &cfg.DeviceID)
	s.setString("primary-dir", fc.PrimaryDir, &cfg.PrimaryDir)
	s.setString("backup-dir", fc.BackupDir, &cfg.BackupDir)
	s.setString("path", fc.Path, &cfg.Path)
	s.setString("file-name", fc.FileName, &cfg.FileName)
	s.setString("cpu-speed", fc.CPUSpeed, &cfg.CPUSpeed)
	s.setString("gain", fc.Gain, &cfg.Gain)
	s.setString("gpio-root", fc.GPIORoot, &cfg.GPIORoot)
	s.setString("mqtt-url", fc.MQTTURL, &cfg.MQTTURL)
	s.setString("modbus-endpoint", fc.ModbusEndpoint, &cfg.ModbusEndpoint)
	s.setString("i2c-bus", fc.I2CBus, &cfg.I2CBus)
	s.setString("metrics-addr", fc.MetricsAddr, &cfg.MetricsAddr)
	s.setString("catalog", fc.CatalogPath, &cfg.CatalogPath)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)

	durations := []struct {
		flag  string
		value string
		dst   *time.Duration
	}{
		{"file-time", fc.FileTime, &cfg.FileTime},
		{"initial-delay", fc.InitialDelay, &cfg.InitialDelay},
		{"tick", fc.Tick, &cfg.Tick},
		{"blink-timeout", fc.BlinkTimeout, &cfg.BlinkTimeout},
		{"sync-timeout", fc.SyncTimeout, &cfg.SyncTimeout},
		{"sensor-interval", fc.SensorInterval, &cfg.SensorInterval},
	}
	for _, d := range durations {
		if err := s.setDuration(d.flag, d.value, d.dst); err != nil {
			return err
		}
	}

	s.setInt("sample-rate", fc.SampleRate, &cfg.SampleRate)
	s.setInt("channels", fc.Channels, &cfg.Channels)
	s.setInt("bits", fc.Bits, &cfg.Bits)
	s.setInt("buffer-bytes", fc.BufferBytes, &cfg.BufferBytes)
	s.setInt("min-free-bytes", fc.MinFreeBytes, &cfg.MinFreeBytes)
	s.setInt("modbus-unit", fc.ModbusUnit, &cfg.ModbusUnit)

	s.setInts("status-gpio", fc.StatusGPIO, &cfg.StatusGPIO)
	s.setInts("sync-gpio", fc.SyncGPIO, &cfg.SyncGPIO)
	s.setInts("error-gpio", fc.ErrorGPIO, &cfg.ErrorGPIO)

	s.setFloat("light-threshold", fc.LightThreshold, &cfg.LightThreshold)

	s.setBool("random-blinks", fc.RandomBlinks, &cfg.RandomBlinks)
	s.setBool("sync-master", fc.SyncMaster, &cfg.SyncMaster)
	s.setBool("sim-sensors", fc.SimSensors, &cfg.SimSensors)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
