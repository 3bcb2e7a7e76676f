package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/fieldlog"
	"github.com/bft-labs/fieldlog/internal/adapters/sim"
	"github.com/bft-labs/fieldlog/internal/adapters/sqlite"
	"github.com/bft-labs/fieldlog/internal/app"
	"github.com/bft-labs/fieldlog/internal/cliconfig"
	"github.com/bft-labs/fieldlog/internal/domain"
	"github.com/bft-labs/fieldlog/pkg/log"
)

// exitReboot tells the supervisor that the halt console asked for a reboot.
const exitReboot = 3

const longHelp = `
Record a continuous sample stream into fixed-length WAV files on a primary
and an optional mirrored backup card.

Highlights:
  - Files are capped by duration and rotated without gaps; the backup lags
    the primary by at most one tick.
  - Write faults leave marker files next to the recordings; a failing backup
    is dropped, a failing primary halts with a blink code until "reboot" is
    typed on the console.
  - Optional random sync blinks, MQTT file-boundary sync, environmental
    sensors (simulated, Modbus TCP or SHTC3 on I2C), Prometheus metrics and
    a SQLite recording catalog.
`

var exampleUsage = strings.TrimSpace(`
  fieldlog record --primary-dir /media/sd0 --backup-dir /media/sd1 --file-time 10m
  fieldlog record --config $HOME/.fieldlog/config.toml --random-blinks --mqtt-url mqtt://broker:1883/site1
  fieldlog sessions --primary-dir /media/sd0 --limit 20
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return fieldlog.Version
}

// loadConfig applies the config file and the environment to cfg. Flags set
// on cmd win over both.
func loadConfig(cmd *cobra.Command, cfg *cliconfig.Config, cfgPath string) error {
	cfgFile := cfgPath
	if cfgFile == "" {
		cfgFile = cliconfig.DefaultConfigPath()
	}

	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		fc, err := cliconfig.LoadFileConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(cfg, fc, changed); err != nil {
			return err
		}
	}

	// FIELDLOG_* override the file but not the flags.
	return cliconfig.ApplyEnvConfig(cfg, changed)
}

// redacted masks the broker password before the configuration is logged.
func redacted(cfg cliconfig.Config) cliconfig.Config {
	if u, err := url.Parse(cfg.MQTTURL); err == nil && u.User != nil {
		cfg.MQTTURL = u.Redacted()
	}
	return cfg
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	logger := cliconfig.Logger()

	root := &cobra.Command{
		Use:           "fieldlog",
		Short:         "Dual-card streaming WAV recorder for field data loggers",
		Long:          strings.TrimSpace(longHelp),
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.fieldlog/config.toml)")

	record := &cobra.Command{
		Use:   "record",
		Short: "Record until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(cmd, &cfg, cfgPath); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			logger = cliconfig.LoggerAt(cfg.LogLevel)
			logger.Info().Interface("config", redacted(cfg)).Msg("configuration")

			st, err := app.Build(cfg, log.NewZerologAdapterWithLogger(logger), getVersion(),
				app.WithClock(sim.SystemClock{}),
				app.WithConsole(os.Stdin),
			)
			if err != nil {
				return fmt.Errorf("build recorder: %w", err)
			}
			defer func() {
				if err := st.Close(); err != nil {
					logger.Warn().Err(err).Msg("closing adapters")
				}
			}()
			logger.Info().Str("identity", st.Identity.String()).Msg("device identity")

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return st.Runner.Run(ctx)
		},
	}
	addRecordFlags(record.Flags(), &cfg)

	var limit int
	var faults bool
	sessions := &cobra.Command{
		Use:   "sessions",
		Short: "List recorded files from the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(cmd, &cfg, cfgPath); err != nil {
				return err
			}
			if cfg.CatalogPath == "" {
				if cfg.PrimaryDir == "" {
					return errors.New("primary-dir or catalog is required")
				}
				cfg.CatalogPath = filepath.Join(cfg.PrimaryDir, cliconfig.DefaultCatalogName)
			}
			cat, err := sqlite.Open(cfg.CatalogPath, sim.SystemClock{}, log.NewZerologAdapterWithLogger(logger.Level(zerolog.WarnLevel)))
			if err != nil {
				return err
			}
			defer cat.Close()
			if faults {
				return printFaults(cmd.Context(), cat)
			}
			return printSessions(cmd.Context(), cat, limit)
		},
	}
	sessions.Flags().StringVar(&cfg.PrimaryDir, "primary-dir", cfg.PrimaryDir, "primary card mount point holding the catalog")
	sessions.Flags().StringVar(&cfg.CatalogPath, "catalog", cfg.CatalogPath, "catalog database (default: <primary-dir>/fieldlog.db)")
	sessions.Flags().IntVar(&limit, "limit", 50, "number of newest sessions to list, 0 for all")
	sessions.Flags().BoolVar(&faults, "faults", false, "list write faults instead of sessions")

	version := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), root.Version)
		},
	}

	root.AddCommand(record, sessions, version)

	if err := root.Execute(); err != nil {
		if errors.Is(err, domain.ErrRebootRequested) {
			logger.Warn().Msg("reboot requested")
			os.Exit(exitReboot)
		}
		logger.Error().Err(err).Msg("fieldlog")
		os.Exit(1)
	}
}

func addRecordFlags(fs *pflag.FlagSet, cfg *cliconfig.Config) {
	fs.StringVar(&cfg.Label, "label", cfg.Label, "label used by the LABEL template token")
	fs.IntVar(&cfg.DeviceID, "device-id", cfg.DeviceID, "device id, -1 derives it from the machine id")

	fs.StringVar(&cfg.PrimaryDir, "primary-dir", cfg.PrimaryDir, "primary card mount point")
	fs.StringVar(&cfg.BackupDir, "backup-dir", cfg.BackupDir, "backup card mount point (optional)")
	fs.StringVar(&cfg.Path, "path", cfg.Path, "data directory template")
	fs.StringVar(&cfg.FileName, "file-name", cfg.FileName, "file name template")

	fs.DurationVar(&cfg.FileTime, "file-time", cfg.FileTime, "maximum duration of one file")
	fs.DurationVar(&cfg.InitialDelay, "initial-delay", cfg.InitialDelay, "wait before the first file")
	fs.DurationVar(&cfg.Tick, "tick", cfg.Tick, "update interval")

	fs.IntVar(&cfg.SampleRate, "sample-rate", cfg.SampleRate, "sampling rate in Hz")
	fs.IntVar(&cfg.Channels, "channels", cfg.Channels, "number of channels")
	fs.IntVar(&cfg.Bits, "bits", cfg.Bits, "bits per sample (8, 16, 24 or 32)")
	fs.IntVar(&cfg.BufferBytes, "buffer-bytes", cfg.BufferBytes, "acquisition ring size")
	fs.IntVar(&cfg.MinFreeBytes, "min-free-bytes", cfg.MinFreeBytes, "free space required on the primary card")

	fs.BoolVar(&cfg.RandomBlinks, "random-blinks", cfg.RandomBlinks, "emit a random sync code on the sync indicator")
	fs.DurationVar(&cfg.BlinkTimeout, "blink-timeout", cfg.BlinkTimeout, "dim the indicators after this time, 0 never")
	fs.StringVar(&cfg.CPUSpeed, "cpu-speed", cfg.CPUSpeed, "CPU speed written to the file header")
	fs.StringVar(&cfg.Gain, "gain", cfg.Gain, "gain written to the file header")

	fs.StringVar(&cfg.GPIORoot, "gpio-root", cfg.GPIORoot, "sysfs GPIO directory")
	fs.IntSliceVar(&cfg.StatusGPIO, "status-gpio", cfg.StatusGPIO, "GPIO numbers of the status LEDs")
	fs.IntSliceVar(&cfg.SyncGPIO, "sync-gpio", cfg.SyncGPIO, "GPIO numbers of the sync LEDs")
	fs.IntSliceVar(&cfg.ErrorGPIO, "error-gpio", cfg.ErrorGPIO, "GPIO numbers of the error LEDs")

	fs.StringVar(&cfg.MQTTURL, "mqtt-url", cfg.MQTTURL, "broker for file boundary sync, e.g. mqtt://host:1883/site1")
	fs.BoolVar(&cfg.SyncMaster, "sync-master", cfg.SyncMaster, "announce the start of every file")
	fs.DurationVar(&cfg.SyncTimeout, "sync-timeout", cfg.SyncTimeout, "wait for the start signal at most this long")

	fs.DurationVar(&cfg.SensorInterval, "sensor-interval", cfg.SensorInterval, "environmental sampling interval")
	fs.Float64Var(&cfg.LightThreshold, "light-threshold", cfg.LightThreshold, "darken the LEDs below this illumination in lux, 0 never")
	fs.BoolVar(&cfg.SimSensors, "sim-sensors", cfg.SimSensors, "record simulated sensors")
	fs.StringVar(&cfg.ModbusEndpoint, "modbus-endpoint", cfg.ModbusEndpoint, "Modbus TCP probe, e.g. 10.0.0.5:502")
	fs.IntVar(&cfg.ModbusUnit, "modbus-unit", cfg.ModbusUnit, "Modbus unit id of the probe")
	fs.StringVar(&cfg.I2CBus, "i2c-bus", cfg.I2CBus, "I2C bus device of an SHTC3 sensor, e.g. /dev/i2c-1")

	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "serve Prometheus metrics on this address")
	fs.StringVar(&cfg.CatalogPath, "catalog", cfg.CatalogPath, "catalog database (default: <primary-dir>/fieldlog.db)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
}

func printSessions(ctx context.Context, cat *sqlite.Catalog, limit int) error {
	sessions, err := cat.Sessions(ctx, limit)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "START\tDEVICE\tFILE\tBYTES\tDURATION\tCLOSE")
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			s.Start.Format(time.RFC3339), s.Device, s.Name, s.Bytes, s.Duration.Round(time.Millisecond), s.CloseReason)
	}
	return w.Flush()
}

func printFaults(ctx context.Context, cat *sqlite.Catalog) error {
	faults, err := cat.Faults(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "AT\tROLE\tDEVICE\tKIND\tRESTARTS\tMARKER")
	for _, f := range faults {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			f.At.Format(time.RFC3339), f.Role, f.Device, f.Kind, f.Restarts, f.Marker)
	}
	return w.Flush()
}
