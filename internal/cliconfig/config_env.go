package cliconfig

import (
	"os"
	"time"
)

// ApplyEnvConfig applies configuration from environment variables (FIELDLOG_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("label", os.Getenv("FIELDLOG_LABEL"), &cfg.Label)
	s.setString("primary-dir", os.Getenv("FIELDLOG_PRIMARY_DIR"), &cfg.PrimaryDir)
	s.setString("backup-dir", os.Getenv("FIELDLOG_BACKUP_DIR"), &cfg.BackupDir)
	s.setString("path", os.Getenv("FIELDLOG_PATH"), &cfg.Path)
	s.setString("file-name", os.Getenv("FIELDLOG_FILE_NAME"), &cfg.FileName)
	s.setString("cpu-speed", os.Getenv("FIELDLOG_CPU_SPEED"), &cfg.CPUSpeed)
	s.setString("gain", os.Getenv("FIELDLOG_GAIN"), &cfg.Gain)
	s.setString("gpio-root", os.Getenv("FIELDLOG_GPIO_ROOT"), &cfg.GPIORoot)
	s.setString("mqtt-url", os.Getenv("FIELDLOG_MQTT_URL"), &cfg.MQTTURL)
	s.setString("modbus-endpoint", os.Getenv("FIELDLOG_MODBUS_ENDPOINT"), &cfg.ModbusEndpoint)
	s.setString("i2c-bus", os.Getenv("FIELDLOG_I2C_BUS"), &cfg.I2CBus)
	s.setString("metrics-addr", os.Getenv("FIELDLOG_METRICS_ADDR"), &cfg.MetricsAddr)
	s.setString("catalog", os.Getenv("FIELDLOG_CATALOG"), &cfg.CatalogPath)
	s.setString("log-level", os.Getenv("FIELDLOG_LOG_LEVEL"), &cfg.LogLevel)

	durations := []struct {
		flag string
		env  string
		dst  *time.Duration
	}{
		{"file-time", "FIELDLOG_FILE_TIME", &cfg.FileTime},
		{"initial-delay", "FIELDLOG_INITIAL_DELAY", &cfg.InitialDelay},
		{"tick", "FIELDLOG_TICK", &cfg.Tick},
		{"blink-timeout", "FIELDLOG_BLINK_TIMEOUT", &cfg.BlinkTimeout},
		{"sync-timeout", "FIELDLOG_SYNC_TIMEOUT", &cfg.SyncTimeout},
		{"sensor-interval", "FIELDLOG_SENSOR_INTERVAL", &cfg.SensorInterval},
	}
	for _, d := range durations {
		if err := s.setDuration(d.flag, os.Getenv(d.env), d.dst); err != nil {
			return err
		}
	}

	if err := s.setSignedIntFromString("device-id", os.Getenv("FIELDLOG_DEVICE_ID"), &cfg.DeviceID); err != nil {
		return err
	}
	ints := []struct {
		flag string
		env  string
		dst  *int
	}{
		{"sample-rate", "FIELDLOG_SAMPLE_RATE", &cfg.SampleRate},
		{"channels", "FIELDLOG_CHANNELS", &cfg.Channels},
		{"bits", "FIELDLOG_BITS", &cfg.Bits},
		{"buffer-bytes", "FIELDLOG_BUFFER_BYTES", &cfg.BufferBytes},
		{"min-free-bytes", "FIELDLOG_MIN_FREE_BYTES", &cfg.MinFreeBytes},
		{"modbus-unit", "FIELDLOG_MODBUS_UNIT", &cfg.ModbusUnit},
	}
	for _, i := range ints {
		if err := s.setIntFromString(i.flag, os.Getenv(i.env), i.dst); err != nil {
			return err
		}
	}

	if err := s.setIntsFromString("status-gpio", os.Getenv("FIELDLOG_STATUS_GPIO"), &cfg.StatusGPIO); err != nil {
		return err
	}
	if err := s.setIntsFromString("sync-gpio", os.Getenv("FIELDLOG_SYNC_GPIO"), &cfg.SyncGPIO); err != nil {
		return err
	}
	if err := s.setIntsFromString("error-gpio", os.Getenv("FIELDLOG_ERROR_GPIO"), &cfg.ErrorGPIO); err != nil {
		return err
	}

	if err := s.setFloatFromString("light-threshold", os.Getenv("FIELDLOG_LIGHT_THRESHOLD"), &cfg.LightThreshold); err != nil {
		return err
	}

	s.setBoolFromString("random-blinks", os.Getenv("FIELDLOG_RANDOM_BLINKS"), &cfg.RandomBlinks)
	s.setBoolFromString("sync-master", os.Getenv("FIELDLOG_SYNC_MASTER"), &cfg.SyncMaster)
	s.setBoolFromString("sim-sensors", os.Getenv("FIELDLOG_SIM_SENSORS"), &cfg.SimSensors)

	return nil
}
