package app

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/fieldlog/internal/cliconfig"
	"github.com/bft-labs/fieldlog/internal/domain"
	"github.com/bft-labs/fieldlog/pkg/log"
)

func stackConfig(t *testing.T) cliconfig.Config {
	t.Helper()
	cfg := cliconfig.DefaultConfig()
	cfg.PrimaryDir = t.TempDir()
	cfg.BackupDir = t.TempDir()
	cfg.DeviceID = 3
	cfg.SampleRate = 8000
	cfg.BufferBytes = 16 << 10
	cfg.MinFreeBytes = 1024
	cfg.FileTime = 500 * time.Millisecond
	cfg.SimSensors = true
	cfg.SensorInterval = 100 * time.Millisecond
	require.NoError(t, cfg.Validate())
	return cfg
}

func wavFiles(t *testing.T, root string) []string {
	t.Helper()
	var out []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(p, ".wav") {
			out = append(out, p)
		}
		return nil
	})
	require.NoError(t, err)
	return out
}

func TestBuild_WiresConfiguredAdapters(t *testing.T) {
	cfg := stackConfig(t)

	st, err := Build(cfg, log.NewNoopLogger(), "test", WithRegistry(prometheus.NewRegistry()))
	require.NoError(t, err)
	defer st.Close()

	require.Equal(t, domain.DeviceIdentity{ID: 3, Source: domain.ProvenanceConfigured}, st.Identity)
	require.NotNil(t, st.Engine)
	require.NotNil(t, st.Sensors)
	require.NotNil(t, st.Catalog)
	require.NotNil(t, st.Collector)
	require.Equal(t, StateStopped, st.Runner.State())
}

func TestBuild_InvalidFormat(t *testing.T) {
	cfg := stackConfig(t)
	cfg.BufferBytes = 0

	_, err := Build(cfg, nil, "test")
	require.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestStack_RecordsInRealTime(t *testing.T) {
	if testing.Short() {
		t.Skip("records in real time")
	}
	cfg := stackConfig(t)
	cfg.BackupDir = ""

	st, err := Build(cfg, log.NewNoopLogger(), "test")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()
	require.NoError(t, st.Runner.Run(ctx))
	require.Equal(t, StateStopped, st.Runner.State())

	sessions, err := st.Catalog.Sessions(context.Background(), 0)
	require.NoError(t, err)
	require.NotEmpty(t, sessions)
	require.NoError(t, st.Close())

	require.GreaterOrEqual(t, len(wavFiles(t, cfg.PrimaryDir)), 2)
}
