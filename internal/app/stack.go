package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bft-labs/fieldlog/internal/adapters/fs"
	"github.com/bft-labs/fieldlog/internal/adapters/gpio"
	"github.com/bft-labs/fieldlog/internal/adapters/i2c"
	"github.com/bft-labs/fieldlog/internal/adapters/metrics"
	"github.com/bft-labs/fieldlog/internal/adapters/modbus"
	"github.com/bft-labs/fieldlog/internal/adapters/mqtt"
	"github.com/bft-labs/fieldlog/internal/adapters/sim"
	"github.com/bft-labs/fieldlog/internal/adapters/sqlite"
	"github.com/bft-labs/fieldlog/internal/cliconfig"
	"github.com/bft-labs/fieldlog/internal/domain"
	"github.com/bft-labs/fieldlog/internal/engine"
	"github.com/bft-labs/fieldlog/internal/identity"
	"github.com/bft-labs/fieldlog/internal/ports"
	"github.com/bft-labs/fieldlog/internal/sensors"
	"github.com/bft-labs/fieldlog/pkg/blink"
	"github.com/bft-labs/fieldlog/pkg/log"
)

// Stack is a recorder assembled from configuration, with the adapters it owns.
type Stack struct {
	Runner    *Runner
	Engine    *engine.Engine
	Sensors   *engine.SensorRecorder
	Catalog   *sqlite.Catalog
	Collector *metrics.Collector
	Identity  domain.DeviceIdentity

	closers []func() error
}

// Metadata is the snapshot written as <base>-metadata.yml next to every file.
type Metadata struct {
	Software   string   `yaml:"software"`
	Label      string   `yaml:"label"`
	DeviceID   int      `yaml:"device_id"`
	IDSource   string   `yaml:"device_id_source"`
	SampleRate int      `yaml:"sample_rate"`
	Channels   int      `yaml:"channels"`
	Bits       int      `yaml:"bits"`
	FileTime   string   `yaml:"file_time"`
	Backup     bool     `yaml:"backup"`
	Sync       string   `yaml:"sync,omitempty"`
	Sensors    []string `yaml:"sensors,omitempty"`
}

// BuildOption configures Build.
type BuildOption func(*buildOptions)

type buildOptions struct {
	clock    ports.Clock
	console  io.Reader
	registry *prometheus.Registry
}

// WithClock replaces the system clock.
func WithClock(c ports.Clock) BuildOption {
	return func(o *buildOptions) {
		o.clock = c
	}
}

// WithConsole reads the halt console from r, typically os.Stdin.
func WithConsole(r io.Reader) BuildOption {
	return func(o *buildOptions) {
		o.console = r
	}
}

// WithRegistry registers the metrics with reg instead of a private registry.
func WithRegistry(reg *prometheus.Registry) BuildOption {
	return func(o *buildOptions) {
		o.registry = reg
	}
}

// Build creates every adapter named by cfg and wires them into an engine
// and a runner. cfg must be validated. On error all adapters created so far
// are closed.
func Build(cfg cliconfig.Config, logger log.Logger, version string, opts ...BuildOption) (*Stack, error) {
	o := buildOptions{clock: sim.SystemClock{}}
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}

	st := &Stack{Identity: identity.Resolve(cfg.DeviceID)}
	built := false
	defer func() {
		if !built {
			_ = st.Close()
		}
	}()

	source, err := sim.NewSource(o.clock, cfg.Format(), cfg.BufferBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	}

	primary := fs.Open("primary", cfg.PrimaryDir, fs.WithLogger(logger))
	st.closers = append(st.closers, primary.Close)
	var backup ports.StorageDevice
	if cfg.BackupDir != "" {
		v := fs.Open("backup", cfg.BackupDir, fs.WithLogger(logger))
		st.closers = append(st.closers, v.Close)
		backup = v
	}

	gpioRoot := cfg.GPIORoot
	if gpioRoot == "" {
		gpioRoot = gpio.DefaultRoot
	}
	statusPins, err := indicatorPins(gpioRoot, "status", cfg.StatusGPIO, logger)
	if err != nil {
		return nil, err
	}
	syncPins, err := indicatorPins(gpioRoot, "sync", cfg.SyncGPIO, logger)
	if err != nil {
		return nil, err
	}
	var errInd *blink.Indicator
	if len(cfg.ErrorGPIO) > 0 {
		errPins, err := indicatorPins(gpioRoot, "error", cfg.ErrorGPIO, logger)
		if err != nil {
			return nil, err
		}
		errInd = blink.New(o.clock, errPins...)
	}

	var control ports.ControlInput
	if o.console != nil {
		control = sim.NewConsole(o.console, logger)
	}

	var hook engine.SyncHook = engine.NopHook{}
	if cfg.MQTTURL != "" {
		bus, err := mqtt.Dial(cfg.MQTTURL, logger)
		if err != nil {
			return nil, fmt.Errorf("sync bus: %w", err)
		}
		st.closers = append(st.closers, bus.Close)
		hook = &engine.BusHook{
			Bus:     bus,
			Master:  cfg.SyncMaster,
			ID:      st.Identity.ID,
			Timeout: cfg.SyncTimeout,
			Logger:  logger,
		}
	}

	st.Collector = metrics.NewCollector("", o.registry)
	emitters := []engine.EventEmitter{st.Collector}
	if cfg.CatalogPath != "" {
		cat, err := sqlite.Open(cfg.CatalogPath, o.clock, logger)
		if err != nil {
			logger.Warn("recording catalog unavailable", log.String("path", cfg.CatalogPath), log.Err(err))
		} else {
			st.Catalog = cat
			st.closers = append(st.closers, cat.Close)
			emitters = append(emitters, cat)
		}
	}

	latch := &RebootLatch{}
	eng, err := engine.New(engine.Options{
		Source:         source,
		Primary:        primary,
		Backup:         backup,
		Clock:          o.clock,
		Label:          cfg.Label,
		Identity:       st.Identity,
		Status:         blink.New(o.clock, statusPins...),
		ErrorIndicator: errInd,
		SyncIndicator:  blink.New(o.clock, syncPins...),
		Hook:           hook,
		Control:        control,
		Rebooter:       latch,
		Logger:         logger,
		Emitters:       emitters,
		Format:         cfg.Format(),
		Header: engine.HeaderInfo{
			CPUSpeed: cfg.CPUSpeed,
			Channels: strconv.Itoa(cfg.Channels),
			Gain:     cfg.Gain,
		},
	})
	if err != nil {
		return nil, err
	}
	st.Engine = eng

	providers, err := st.sensorProviders(cfg, o.clock)
	if err != nil {
		return nil, err
	}
	software := "fieldlog " + version
	meta := Metadata{
		Software:   software,
		Label:      cfg.Label,
		DeviceID:   st.Identity.ID,
		IDSource:   st.Identity.Source.String(),
		SampleRate: cfg.SampleRate,
		Channels:   cfg.Channels,
		Bits:       cfg.Bits,
		FileTime:   cfg.FileTime.String(),
		Backup:     backup != nil,
	}
	if cfg.MQTTURL != "" {
		meta.Sync = "follower"
		if cfg.SyncMaster {
			meta.Sync = "master"
		}
	}

	runnerOpts := []RunnerOption{WithRebootLatch(latch)}
	if providers.Len() > 0 {
		for _, s := range providers.Sensors() {
			meta.Sensors = append(meta.Sensors, s.Name+"/"+s.Unit)
		}
		st.Sensors = engine.NewSensorRecorder(st.Engine, providers, engine.SensorConfig{
			Interval:       cfg.SensorInterval,
			LightThreshold: cfg.LightThreshold,
		})
		runnerOpts = append(runnerOpts, WithUpdater(st.Sensors))
	}
	if cfg.MetricsAddr != "" {
		runnerOpts = append(runnerOpts, WithWorker("metrics", serveMetrics(cfg.MetricsAddr, st.Collector.Handler(), logger)))
	}

	st.Runner = NewRunner(RunnerConfig{
		Tick:         cfg.Tick,
		FileTime:     cfg.FileTime,
		InitialDelay: cfg.InitialDelay,
		MinFreeBytes: uint64(cfg.MinFreeBytes),
		CheckBackup:  backup != nil,
		Setup: engine.SetupConfig{
			Path:         cfg.Path,
			FileName:     cfg.FileName,
			Software:     software,
			RandomBlinks: cfg.RandomBlinks,
			BlinkTimeout: cfg.BlinkTimeout,
		},
		Metadata: meta,
	}, st.Engine, logger, runnerOpts...)
	built = true
	return st, nil
}

// sensorProviders opens the configured sensor providers.
func (st *Stack) sensorProviders(cfg cliconfig.Config, clock ports.Clock) (*sensors.Multi, error) {
	var providers []ports.SensorProvider
	if cfg.SimSensors {
		providers = append(providers, sim.NewSensors(clock))
	}
	if cfg.ModbusEndpoint != "" {
		probe, err := modbus.Dial(modbus.Config{
			Endpoint: cfg.ModbusEndpoint,
			UnitID:   uint8(cfg.ModbusUnit),
			Timeout:  time.Second,
			Channels: modbus.DefaultChannels,
		})
		if err != nil {
			return nil, err
		}
		st.closers = append(st.closers, probe.Close)
		providers = append(providers, probe)
	}
	if cfg.I2CBus != "" {
		bus, err := i2c.OpenBus(cfg.I2CBus)
		if err != nil {
			return nil, fmt.Errorf("i2c bus %s: %w", cfg.I2CBus, err)
		}
		st.closers = append(st.closers, bus.Close)
		providers = append(providers, i2c.NewSHTC3(bus))
	}
	return sensors.NewMulti(providers...), nil
}

// indicatorPins opens GPIO pins, or a logging pin when none are configured.
func indicatorPins(root, name string, numbers []int, logger log.Logger) ([]blink.Pin, error) {
	if len(numbers) == 0 {
		return []blink.Pin{sim.NewLogPin(name, logger)}, nil
	}
	pins, err := gpio.OpenAll(root, numbers, logger)
	if err != nil {
		return nil, fmt.Errorf("%s pins: %w", name, err)
	}
	out := make([]blink.Pin, len(pins))
	for i, p := range pins {
		out[i] = p
	}
	return out, nil
}

func serveMetrics(addr string, handler http.Handler, logger log.Logger) Worker {
	return func(ctx context.Context) error {
		mux := http.NewServeMux()
		mux.Handle("/metrics", handler)
		srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		errCh := make(chan error, 1)
		go func() { errCh <- srv.ListenAndServe() }()
		logger.Info("metrics endpoint", log.String("addr", addr))

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// Close releases the adapters in reverse order of creation.
func (st *Stack) Close() error {
	var errs []error
	for i := len(st.closers) - 1; i >= 0; i-- {
		if err := st.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	st.closers = nil
	return errors.Join(errs...)
}
