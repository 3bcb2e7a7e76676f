package app

import (
	"context"
	"errors"
	"time"

	"github.com/bft-labs/fieldlog/internal/domain"
	"github.com/bft-labs/fieldlog/internal/engine"
	"github.com/bft-labs/fieldlog/internal/ports"
)

// Recorder is the part of the engine driven by the runner.
type Recorder interface {
	Check(minBytes uint64, checkBackup bool) error
	InitialDelay(d time.Duration)
	DelayElapsed() bool
	Setup(cfg engine.SetupConfig) error
	StartWithMetadata(fileTime time.Duration, snapshot any) error
	Update() bool
	Close() error
	State() engine.State
}

// Updater performs one tick. The engine and the sensor recorder both satisfy it.
type Updater interface {
	Update() bool
}

// contextSetter is implemented by recorders that block inside Update.
type contextSetter interface {
	SetContext(ctx context.Context)
}

// Worker is a background service run next to the tick loop, such as the
// metrics endpoint. It must return once ctx is done.
type Worker func(ctx context.Context) error

// RunnerConfig contains the settings of one recording run.
type RunnerConfig struct {
	Tick         time.Duration
	FileTime     time.Duration
	InitialDelay time.Duration
	MinFreeBytes uint64
	CheckBackup  bool
	Setup        engine.SetupConfig

	// Metadata is written next to every file when not nil.
	Metadata any
}

// Runner is the scheduler of the recording engine: it performs the
// pre-flight check, the initial delay, Setup and Start, and then calls
// Update once per tick until the context ends or a reboot was requested.
type Runner struct {
	config    RunnerConfig
	recorder  Recorder
	updater   Updater
	reboot    *RebootLatch
	lifecycle *Lifecycle
	logger    ports.Logger
	workers   map[string]Worker
	newTicker func(time.Duration) (<-chan time.Time, func())
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithUpdater replaces the recorder as the per-tick updater, for example
// with a sensor recorder wrapping the same engine.
func WithUpdater(u Updater) RunnerOption {
	return func(r *Runner) {
		r.updater = u
	}
}

// WithRebootLatch sets the latch shared with the engine's Rebooter option.
func WithRebootLatch(l *RebootLatch) RunnerOption {
	return func(r *Runner) {
		r.reboot = l
	}
}

// WithWorker adds a named background worker.
func WithWorker(name string, w Worker) RunnerOption {
	return func(r *Runner) {
		r.workers[name] = w
	}
}

// withTicker replaces the wall-clock ticker in tests.
func withTicker(fn func(time.Duration) (<-chan time.Time, func())) RunnerOption {
	return func(r *Runner) {
		r.newTicker = fn
	}
}

func systemTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// NewRunner creates a runner for recorder.
func NewRunner(config RunnerConfig, recorder Recorder, logger ports.Logger, opts ...RunnerOption) *Runner {
	r := &Runner{
		config:    config,
		recorder:  recorder,
		updater:   recorder,
		reboot:    &RebootLatch{},
		lifecycle: NewLifecycle(logger),
		logger:    logger,
		workers:   make(map[string]Worker),
		newTicker: systemTicker,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// State returns the lifecycle state of the runner.
func (r *Runner) State() State {
	return r.lifecycle.State()
}

// Run records until ctx is done, which is a clean shutdown and returns nil.
// It returns domain.ErrRebootRequested after the reboot sequence was
// received in the halted state.
func (r *Runner) Run(ctx context.Context) error {
	if !r.lifecycle.CanStart() {
		return domain.ErrInvalidState
	}
	if err := r.lifecycle.TransitionTo(StateStarting, "run"); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	r.lifecycle.SetCancel(cancel)
	if cs, ok := r.recorder.(contextSetter); ok {
		cs.SetContext(runCtx)
	}
	r.startWorkers(runCtx)

	ticks, stop := r.newTicker(r.config.Tick)
	defer stop()

	if err := r.prepare(runCtx, ticks); err != nil {
		return r.shutdown(err)
	}
	if err := r.lifecycle.TransitionTo(StateRunning, r.recorder.State().String()); err != nil {
		return r.shutdown(err)
	}

	for {
		select {
		case <-runCtx.Done():
			return r.shutdown(runCtx.Err())
		case <-ticks:
			r.updater.Update()
			if r.reboot.Requested() {
				return r.shutdown(domain.ErrRebootRequested)
			}
		}
	}
}

// prepare runs everything up to the first recorded tick. A recorder that
// halts on the way is not an error: the tick loop keeps servicing it.
func (r *Runner) prepare(ctx context.Context, ticks <-chan time.Time) error {
	if err := r.recorder.Check(r.config.MinFreeBytes, r.config.CheckBackup); err != nil {
		r.logger.Error("pre-flight check failed", ports.Err(err))
		return nil
	}

	r.recorder.InitialDelay(r.config.InitialDelay)
	for !r.recorder.DelayElapsed() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticks:
			r.recorder.Update()
		}
	}

	bo := newBackoff(DefaultBackoffInitial, DefaultBackoffMax)
	for {
		err := r.recorder.Setup(r.config.Setup)
		if err == nil {
			break
		}
		if errors.Is(err, domain.ErrHalted) {
			return nil
		}
		r.logger.Warn("setup failed, retrying",
			ports.Err(err),
			ports.Duration("backoff", bo.Current()),
		)
		if werr := bo.Wait(ctx); werr != nil {
			return werr
		}
	}

	err := r.recorder.StartWithMetadata(r.config.FileTime, r.config.Metadata)
	if errors.Is(err, domain.ErrHalted) {
		return nil
	}
	return err
}

func (r *Runner) startWorkers(ctx context.Context) {
	for name, w := range r.workers {
		r.lifecycle.AddWorker()
		go func(name string, w Worker) {
			defer r.lifecycle.WorkerDone()
			if err := w(ctx); err != nil && !errors.Is(err, context.Canceled) {
				r.logger.Error("worker failed", ports.String("worker", name), ports.Err(err))
			}
		}(name, w)
	}
}

// shutdown closes the recorder, stops the workers and maps cause to the
// result of Run.
func (r *Runner) shutdown(cause error) error {
	clean := cause == nil ||
		errors.Is(cause, context.Canceled) ||
		errors.Is(cause, context.DeadlineExceeded) ||
		errors.Is(cause, domain.ErrRebootRequested)
	if clean {
		_ = r.lifecycle.TransitionTo(StateStopping, "shutdown")
	}

	var errs []error
	if err := r.recorder.Close(); err != nil {
		r.logger.Error("closing recorder failed", ports.Err(err))
		errs = append(errs, err)
	}
	r.lifecycle.Cancel()
	if err := r.lifecycle.WaitWithTimeout(ShutdownTimeout); err != nil {
		errs = append(errs, err)
	}

	if !clean {
		_ = r.lifecycle.TransitionTo(StateCrashed, cause.Error())
		return errors.Join(append([]error{cause}, errs...)...)
	}
	if len(errs) > 0 {
		_ = r.lifecycle.TransitionTo(StateCrashed, "close failed")
	} else {
		_ = r.lifecycle.TransitionTo(StateStopped, "shutdown")
	}
	if errors.Is(cause, domain.ErrRebootRequested) {
		return errors.Join(append([]error{cause}, errs...)...)
	}
	return errors.Join(errs...)
}
