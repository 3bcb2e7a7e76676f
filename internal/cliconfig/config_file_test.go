package cliconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestApplyFileConfig(t *testing.T) {
	trueVal := true
	zero := 0

	tests := []struct {
		name       string
		fileConfig FileConfig
		changed    map[string]bool
		initial    Config
		expected   Config
		wantErr    bool
	}{
		{
			name: "applies all valid config values",
			fileConfig: FileConfig{
				PrimaryDir:     "/media/sd0",
				BackupDir:      "/media/sd1",
				DeviceID:       &zero,
				FileTime:       "5m",
				LightThreshold: 80,
				BufferBytes:    1 << 16,
				SyncGPIO:       []int{22},
				RandomBlinks:   &trueVal,
			},
			changed: map[string]bool{},
			initial: Config{DeviceID: -1},
			expected: Config{
				PrimaryDir:     "/media/sd0",
				BackupDir:      "/media/sd1",
				DeviceID:       0,
				FileTime:       5 * time.Minute,
				LightThreshold: 80,
				BufferBytes:    1 << 16,
				SyncGPIO:       []int{22},
				RandomBlinks:   true,
			},
		},
		{
			name: "respects changed flags",
			fileConfig: FileConfig{
				PrimaryDir: "/config/dir",
				Label:      "config-label",
			},
			changed: map[string]bool{"primary-dir": true},
			initial: Config{
				PrimaryDir: "/flag/dir",
				Label:      "flag-label",
			},
			expected: Config{
				PrimaryDir: "/flag/dir", // unchanged because flag was set
				Label:      "config-label",
			},
		},
		{
			name:       "returns error for invalid duration",
			fileConfig: FileConfig{BlinkTimeout: "forever"},
			changed:    map[string]bool{},
			wantErr:    true,
		},
		{
			name:       "ignores zero values",
			fileConfig: FileConfig{},
			changed:    map[string]bool{},
			initial:    Config{PrimaryDir: "/keep", BufferBytes: 4096, DeviceID: 3},
			expected:   Config{PrimaryDir: "/keep", BufferBytes: 4096, DeviceID: 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.initial
			err := ApplyFileConfig(&cfg, tt.fileConfig, tt.changed)

			if tt.wantErr {
				if err == nil {
					t.Error("ApplyFileConfig() expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("ApplyFileConfig() unexpected error: %v", err)
			}

			if cfg.PrimaryDir != tt.expected.PrimaryDir {
				t.Errorf("PrimaryDir = %v, want %v", cfg.PrimaryDir, tt.expected.PrimaryDir)
			}
			if cfg.BackupDir != tt.expected.BackupDir {
				t.Errorf("BackupDir = %v, want %v", cfg.BackupDir, tt.expected.BackupDir)
			}
			if cfg.Label != tt.expected.Label {
				t.Errorf("Label = %v, want %v", cfg.Label, tt.expected.Label)
			}
			if cfg.DeviceID != tt.expected.DeviceID {
				t.Errorf("DeviceID = %v, want %v", cfg.DeviceID, tt.expected.DeviceID)
			}
			if cfg.FileTime != tt.expected.FileTime {
				t.Errorf("FileTime = %v, want %v", cfg.FileTime, tt.expected.FileTime)
			}
			if cfg.LightThreshold != tt.expected.LightThreshold {
				t.Errorf("LightThreshold = %v, want %v", cfg.LightThreshold, tt.expected.LightThreshold)
			}
			if cfg.BufferBytes != tt.expected.BufferBytes {
				t.Errorf("BufferBytes = %v, want %v", cfg.BufferBytes, tt.expected.BufferBytes)
			}
			if len(cfg.SyncGPIO) != len(tt.expected.SyncGPIO) {
				t.Errorf("SyncGPIO = %v, want %v", cfg.SyncGPIO, tt.expected.SyncGPIO)
			}
			if cfg.RandomBlinks != tt.expected.RandomBlinks {
				t.Errorf("RandomBlinks = %v, want %v", cfg.RandomBlinks, tt.expected.RandomBlinks)
			}
		})
	}
}

func TestLoadFileConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.toml")

	tomlContent := `
primary_dir = "/media/sd0"
device_id = 12
file_time = "15m"
light_threshold = 40.5
status_gpio = [17, 27]
random_blinks = true
mqtt_url = "mqtt://broker:1883/site1"
`

	if err := os.WriteFile(configPath, []byte(tomlContent), 0644); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	fc, err := LoadFileConfig(configPath)
	if err != nil {
		t.Fatalf("LoadFileConfig() error = %v", err)
	}

	if fc.PrimaryDir != "/media/sd0" {
		t.Errorf("PrimaryDir = %v, want /media/sd0", fc.PrimaryDir)
	}
	if fc.DeviceID == nil || *fc.DeviceID != 12 {
		t.Errorf("DeviceID = %v, want 12", fc.DeviceID)
	}
	if fc.FileTime != "15m" {
		t.Errorf("FileTime = %v, want 15m", fc.FileTime)
	}
	if fc.LightThreshold != 40.5 {
		t.Errorf("LightThreshold = %v, want 40.5", fc.LightThreshold)
	}
	if len(fc.StatusGPIO) != 2 || fc.StatusGPIO[1] != 27 {
		t.Errorf("StatusGPIO = %v, want [17 27]", fc.StatusGPIO)
	}
	if fc.RandomBlinks == nil || !*fc.RandomBlinks {
		t.Errorf("RandomBlinks = %v, want true", fc.RandomBlinks)
	}
	if fc.MQTTURL != "mqtt://broker:1883/site1" {
		t.Errorf("MQTTURL = %v", fc.MQTTURL)
	}
}

func TestLoadFileConfig_InvalidFile(t *testing.T) {
	_, err := LoadFileConfig("/nonexistent/path/config.toml")
	if err == nil {
		t.Error("LoadFileConfig() expected error for nonexistent file")
	}
}

func TestLoadFileConfig_InvalidTOML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.toml")

	invalidContent := `
primary_dir = "/test"
this is not valid toml
`

	if err := os.WriteFile(configPath, []byte(invalidContent), 0644); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	_, err := LoadFileConfig(configPath)
	if err == nil {
		t.Error("LoadFileConfig() expected error for invalid TOML")
	}
}

func TestDefaultConfigPath(t *testing.T) {
	path := DefaultConfigPath()

	if path != "" && !strings.Contains(path, ".fieldlog") {
		t.Errorf("DefaultConfigPath() = %v, should contain .fieldlog", path)
	}
}

func TestFileExists(t *testing.T) {
	tmpDir := t.TempDir()
	existingFile := filepath.Join(tmpDir, "exists.txt")

	if err := os.WriteFile(existingFile, []byte("test"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	if !FileExists(existingFile) {
		t.Error("FileExists() = false, want true for existing file")
	}

	if FileExists(filepath.Join(tmpDir, "nonexistent.txt")) {
		t.Error("FileExists() = true, want false for nonexistent file")
	}
}
