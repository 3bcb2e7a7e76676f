package engine

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bft-labs/fieldlog/internal/domain"
	"github.com/bft-labs/fieldlog/internal/naming"
	"github.com/bft-labs/fieldlog/internal/ports"
	"github.com/bft-labs/fieldlog/internal/stream"
	"github.com/bft-labs/fieldlog/pkg/blink"
	"github.com/bft-labs/fieldlog/pkg/log"
	"github.com/bft-labs/fieldlog/pkg/wav"
)

// DefaultMaxRestarts is the number of write faults after which a device is given up.
const DefaultMaxRestarts = 5

// minRecordingSize is the size below which recordings left in the newest
// data directory are treated as aborted and removed by Check.
const minRecordingSize = 1024

const rebootCommand = "reboot"

// HeaderInfo is the static description written into every file header.
type HeaderInfo struct {
	CPUSpeed string
	Channels string
	Gain     string
}

// Options holds the collaborators and settings of an Engine.
type Options struct {
	Source  ports.DataSource
	Primary ports.StorageDevice
	// Backup is optional.
	Backup ports.StorageDevice
	Clock  ports.Clock

	Label    string
	Identity domain.DeviceIdentity

	// Status shows the recording state. Created without pins when nil.
	Status *blink.Indicator
	// ErrorIndicator shows halt codes. The status indicator is used when nil.
	ErrorIndicator *blink.Indicator
	// SyncIndicator emits the random sync code. Created without pins when nil.
	SyncIndicator *blink.Indicator

	Hook     SyncHook
	Control  ports.ControlInput
	Rebooter ports.Rebooter
	Logger   log.Logger
	Emitters []EventEmitter

	MaxRestarts   int
	Format        wav.Format
	Header        HeaderInfo
	WriteInterval time.Duration
	StarveTimeout time.Duration
	ChunkSize     int
}

// SetupConfig holds the per-run settings applied by Setup.
type SetupConfig struct {
	Path         string
	FileName     string
	Software     string
	RandomBlinks bool
	BlinkTimeout time.Duration
}

type device int

const (
	primaryDevice device = iota
	backupDevice
)

// Engine turns the continuous data source into a sequence of capped-duration
// files on a primary and an optional mirrored backup device.
//
// Update must be called once per tick from a single goroutine. No method
// blocks, except that a SyncHook may wait for a bounded time at rotation.
type Engine struct {
	lifecycle

	opts    Options
	clock   ports.Clock
	source  ports.DataSource
	logger  log.Logger
	status  *blink.Indicator
	sync    *blink.Indicator
	errInd  *blink.Indicator
	primary *stream.Writer
	backup  *stream.Writer

	label        string
	pathName     string
	fileTemplate string
	prevName     string
	header       wav.Header
	randomBlinks bool
	blinkTimeout time.Duration
	metadata     []byte

	fileTime      time.Duration
	writeInterval time.Duration
	counter       int
	restarts      int
	haltCode      int
	nextStore     device
	backupRotate  bool
	backupEnded   bool

	blinkStart time.Time
	blinkPhase int
	syncStart  time.Time
	delayUntil time.Time
	rebootPos  int

	// reopening is set while a file replaces one that faulted with an overrun.
	reopening bool

	// ctx bounds the sync hook at rotation.
	ctx context.Context
}

// New creates an engine in the Idle state.
func New(opts Options) (*Engine, error) {
	if opts.Source == nil || opts.Primary == nil || opts.Clock == nil {
		return nil, fmt.Errorf("%w: source, primary device and clock are required", domain.ErrInvalidConfig)
	}
	if err := opts.Format.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	if opts.Hook == nil {
		opts.Hook = NopHook{}
	}
	if opts.MaxRestarts <= 0 {
		opts.MaxRestarts = DefaultMaxRestarts
	}
	if opts.WriteInterval <= 0 {
		opts.WriteInterval = opts.Source.BufferTime() / 4
	}
	if opts.Label == "" {
		opts.Label = naming.DefaultLabel
	}
	if opts.Status == nil {
		opts.Status = blink.New(opts.Clock)
	}
	if opts.SyncIndicator == nil {
		opts.SyncIndicator = blink.New(opts.Clock)
	}

	e := &Engine{
		lifecycle: lifecycle{
			state:    StateIdle,
			logger:   opts.Logger,
			emitters: opts.Emitters,
		},
		opts:   opts,
		clock:  opts.Clock,
		source: opts.Source,
		logger: opts.Logger,
		status: opts.Status,
		sync:   opts.SyncIndicator,
		errInd: opts.ErrorIndicator,
		label:  opts.Label,
		ctx:    context.Background(),
	}
	wopts := []stream.Option{
		stream.WithStarveTimeout(opts.StarveTimeout),
	}
	if opts.ChunkSize > 0 {
		wopts = append(wopts, stream.WithChunkSize(opts.ChunkSize))
	}
	e.primary = stream.New(opts.Source, opts.Primary, opts.Clock, opts.Format,
		append(wopts, stream.WithLogger(opts.Logger))...)
	if opts.Backup != nil {
		e.backup = stream.New(opts.Source, opts.Backup, opts.Clock, opts.Format,
			append(wopts, stream.WithLogger(opts.Logger))...)
	}
	return e, nil
}

// Saving reports whether the engine is recording.
func (e *Engine) Saving() bool { return e.State() == StateRecording }

// HaltCode returns the code shown while halted, zero otherwise.
func (e *Engine) HaltCode() int { return e.haltCode }

// Restarts returns the number of write faults since Setup.
func (e *Engine) Restarts() int { return e.restarts }

// BaseName returns the name of the current primary file without extension.
func (e *Engine) BaseName() string { return e.primary.Session().BaseName() }

// PathName returns the expanded data directory.
func (e *Engine) PathName() string { return e.pathName }

// Status returns the status indicator.
func (e *Engine) Status() *blink.Indicator { return e.status }

// SyncIndicator returns the sync code indicator.
func (e *Engine) SyncIndicator() *blink.Indicator { return e.sync }

// Primary returns the primary storage device.
func (e *Engine) Primary() ports.StorageDevice { return e.opts.Primary }

// Clock returns the engine clock.
func (e *Engine) Clock() ports.Clock { return e.clock }

// Logger returns the engine logger.
func (e *Engine) Logger() log.Logger { return e.logger }

func (e *Engine) backupOK() bool {
	return e.backup != nil && !e.backupEnded && e.opts.Backup.Available()
}

func (e *Engine) writer(d device) *stream.Writer {
	if d == backupDevice {
		return e.backup
	}
	return e.primary
}

// Check removes aborted recordings from the newest data directory and
// verifies that the primary device has minBytes free. A failing primary
// halts the engine with code 1. With checkBackup the backup device is
// ended unless it can hold as much as the primary has free.
func (e *Engine) Check(minBytes uint64, checkBackup bool) error {
	if n, err := e.opts.Primary.CleanDir(minRecordingSize, ".wav"); err != nil {
		e.logger.Warn("cleaning data directory failed", log.Device(e.opts.Primary.Name()), log.Err(err))
	} else if n > 0 {
		e.logger.Info("removed aborted recordings", log.Device(e.opts.Primary.Name()), log.Int("files", n))
	}
	if !e.opts.Primary.CheckCapacity(minBytes) {
		err := fmt.Errorf("%s: %w", e.opts.Primary.Name(), domain.ErrCapacityLow)
		e.halt(domain.HaltCapacity, err)
		return err
	}
	if checkBackup && e.backupOK() {
		free := e.opts.Primary.Free()
		if !e.opts.Backup.CheckCapacity(free) {
			e.endBackup("backup smaller than free space on primary")
		}
	}
	return nil
}

// InitialDelay double-blinks the status indicator until d has elapsed.
// Poll DelayElapsed and call Update while waiting.
func (e *Engine) InitialDelay(d time.Duration) {
	e.delayUntil = e.clock.Now().Add(d)
	if d > 0 {
		e.status.SetTiming(2*time.Second, 100*time.Millisecond, 200*time.Millisecond)
		e.status.SetDouble()
	}
}

// DelayElapsed reports whether the initial delay is over.
func (e *Engine) DelayElapsed() bool {
	return !e.clock.Now().Before(e.delayUntil)
}

// Setup resolves the path and file name templates, sets the data
// directories and prepares the file headers. It resets the restart counter.
func (e *Engine) Setup(cfg SetupConfig) error {
	if s := e.State(); s != StateConfiguring {
		if err := e.TransitionTo(StateConfiguring, "setup"); err != nil {
			return err
		}
	}
	if cfg.Path == "" {
		cfg.Path = naming.DefaultPath
	}
	if cfg.FileName == "" {
		cfg.FileName = naming.DefaultFileName
	}

	now := e.clock.Now()
	e.pathName = naming.Sanitize(naming.Expand(cfg.Path, e.values(now)))
	e.fileTemplate = strings.TrimSuffix(cfg.FileName, path.Ext(cfg.FileName)) + ".wav"
	e.prevName = ""
	e.randomBlinks = cfg.RandomBlinks
	e.blinkTimeout = cfg.BlinkTimeout
	e.restarts = 0
	e.counter = 0

	if err := e.opts.Primary.SetDataDir(e.pathName); err != nil {
		return fmt.Errorf("primary data directory: %w", err)
	}
	if e.backupOK() {
		if err := e.opts.Backup.SetDataDir(e.pathName); err != nil {
			e.logger.Warn("backup data directory failed", log.Err(err))
			e.endBackup("data directory failed")
		}
	}

	e.header = wav.Header{Format: e.opts.Format}
	e.header.SetTag(wav.TagSoftware, cfg.Software)
	e.header.SetTag(wav.TagDateTime, "")
	if e.opts.Header.CPUSpeed != "" {
		e.header.SetTag(wav.TagCPU, e.opts.Header.CPUSpeed)
	}
	if e.opts.Header.Channels != "" {
		e.header.SetTag(wav.TagChannels, e.opts.Header.Channels)
	}
	if e.opts.Header.Gain != "" {
		e.header.SetTag(wav.TagGain, e.opts.Header.Gain)
	}
	if e.opts.Identity.Set() {
		e.header.SetTag(wav.TagDeviceID, fmt.Sprint(e.opts.Identity.ID))
	}

	e.logger.Info("setup",
		log.String("path", e.pathName),
		log.String("file", e.fileTemplate),
		log.String("identity", e.opts.Identity.String()),
		log.Bool("random_blinks", e.randomBlinks),
		log.Duration("blink_timeout", e.blinkTimeout),
		log.Bool("backup", e.backupOK()),
	)
	return nil
}

func (e *Engine) values(now time.Time) naming.Values {
	id := -1
	if e.opts.Identity.Set() {
		id = e.opts.Identity.ID
	}
	return naming.Values{Label: e.label, ID: id, Count: e.counter, Time: now}
}

// Start starts recording files of at most fileTime each.
func (e *Engine) Start(fileTime time.Duration) error {
	return e.StartWithMetadata(fileTime, nil)
}

// StartWithMetadata starts recording and writes snapshot as YAML next to
// every recorded file. A nil snapshot writes nothing.
func (e *Engine) StartWithMetadata(fileTime time.Duration, snapshot any) error {
	if fileTime <= 0 {
		return fmt.Errorf("%w: file time must be positive", domain.ErrInvalidConfig)
	}
	e.metadata = nil
	if snapshot != nil {
		data, err := yaml.Marshal(snapshot)
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		e.metadata = data
	}
	if err := e.TransitionTo(StateRecording, "start"); err != nil {
		return err
	}

	e.fileTime = fileTime
	e.writeInterval = e.opts.WriteInterval
	if !e.source.Running() {
		if err := e.source.Start(); err != nil {
			e.halt(domain.HaltOpenFailed, fmt.Errorf("start source: %w", err))
			return domain.ErrHalted
		}
	}
	e.primary.Begin(fileTime, e.writeInterval)
	if e.backup != nil {
		e.backup.Begin(fileTime, e.writeInterval)
		e.backup.SyncTo(e.primary)
	}
	e.nextStore = primaryDevice
	e.backupRotate = false

	interval := 2 * time.Second
	if fileTime > 30*time.Second {
		interval = 5 * time.Second
	}
	e.status.SetTiming(interval, 100*time.Millisecond, 200*time.Millisecond)
	if e.randomBlinks {
		e.sync.SetTiming(5*time.Second, 100*time.Millisecond, 1200*time.Millisecond)
		e.sync.ClearSwitchTimes()
	}

	e.logger.Info("recording started",
		log.Duration("file_time", fileTime),
		log.Duration("write_interval", e.writeInterval),
		log.Duration("buffer_time", e.source.BufferTime()),
		log.Int("byte_rate", e.source.ByteRate()),
	)

	e.openPrimary()
	if e.State() == StateHalted {
		return domain.ErrHalted
	}
	if e.backupOK() {
		e.openBackup()
	}
	e.blinkStart = e.clock.Now()
	e.blinkPhase = 0
	return nil
}

// Update performs one tick: a bounded write on one device, at most one
// rotation, indicator updates, blink timeout handling and sync code
// flushing. While halted it services the error indicator and the control
// input. It reports whether data was written.
func (e *Engine) Update() bool {
	switch e.State() {
	case StateHalted:
		e.serviceHalt()
		return false
	case StateRecording:
	default:
		e.status.Update()
		return false
	}

	did := e.step()
	if e.State() != StateRecording {
		return did
	}

	if e.primary.EndSession() {
		e.rotatePrimary()
		if e.State() != StateRecording {
			return did
		}
	} else if e.backupRotate && e.backupOK() && e.backup.EndSession() {
		e.rotateBackup()
	}

	e.status.Update()
	e.sync.Update()
	if e.errInd != nil {
		e.errInd.Update()
	}

	e.checkBlinkTimeout()

	if e.randomBlinks && e.sync.NSwitchTimes() >= blink.MaxTransitions/2 {
		e.flushBlinks()
	}
	return did
}

// step drives the primary writer, or the backup writer on the tick after a
// primary write.
func (e *Engine) step() bool {
	if e.nextStore == backupDevice {
		e.nextStore = primaryDevice
		if e.backupOK() && e.backup.Full() {
			// A full backup file waits for its rotation.
			e.backupRotate = true
		} else if e.backupOK() {
			n, err := e.backup.Step()
			if err != nil {
				e.handleFault(backupDevice, err)
				return false
			}
			e.emitWrite(e.opts.Backup.Name(), n)
			return n > 0
		}
	}

	n, err := e.primary.Step()
	if err != nil {
		e.handleFault(primaryDevice, err)
		return false
	}
	e.emitWrite(e.opts.Primary.Name(), n)
	if n > 0 && e.backupOK() {
		e.nextStore = backupDevice
	}
	return n > 0
}

func (e *Engine) emitWrite(device string, n int) {
	if n <= 0 {
		return
	}
	for _, em := range e.opts.Emitters {
		em.OnWrite(device, n)
	}
}

func (e *Engine) emitClosed(w *stream.Writer) {
	s := w.Session()
	for _, em := range e.opts.Emitters {
		em.OnSessionClosed(s)
	}
}

func (e *Engine) emitOpened(w *stream.Writer) {
	s := w.Session()
	for _, em := range e.opts.Emitters {
		em.OnSessionOpened(s)
	}
}

func (e *Engine) rotatePrimary() {
	e.emitClosed(e.primary)
	e.flushBlinks()
	e.logger.Info("file complete",
		log.Device(e.opts.Primary.Name()),
		log.String("file", e.primary.Session().Name),
		log.Duration("duration", e.primary.Session().Duration),
	)
	if err := e.opts.Hook.Synchronize(e.ctx); err != nil {
		e.logger.Warn("synchronization failed", log.Err(err))
	}
	e.openPrimary()
	if e.backupOK() {
		e.backupRotate = true
	}
}

func (e *Engine) rotateBackup() {
	e.backupRotate = false
	e.emitClosed(e.backup)
	e.openBackup()
}

func (e *Engine) nextName(now time.Time) string {
	e.counter++
	return naming.Expand(e.fileTemplate, e.values(now))
}

func (e *Engine) openPrimary() {
	now := e.clock.Now()
	name := e.nextName(now)
	if name != e.prevName {
		e.opts.Primary.ResetFileCounter()
		if e.backup != nil {
			e.opts.Backup.ResetFileCounter()
		}
	}
	e.prevName = name

	fname, err := e.opts.Primary.NextFilename(name)
	if err != nil {
		e.halt(domain.HaltNameSpace, err)
		return
	}
	n, err := e.primary.Open(fname, e.headerAt(now))
	if errors.Is(err, domain.ErrOpenFailed) {
		e.halt(domain.HaltOpenFailed, err)
		return
	}
	e.syncStart = now
	e.emitOpened(e.primary)
	e.logger.Info("file opened",
		log.Device(e.opts.Primary.Name()),
		log.String("file", fname),
		log.Int("counter", e.counter),
	)

	e.status.SetSingle()
	e.status.BlinkSingle(0, 2*time.Second)
	base := domain.BaseName(fname)
	if e.randomBlinks {
		e.sync.SetRandom(now.UnixNano() ^ int64(e.opts.Identity.ID))
		e.sync.BlinkMultiple(5, 0, 200*time.Millisecond, 200*time.Millisecond)
		e.startBlinkLog(e.opts.Primary, base)
	}
	e.writeMetadata(e.opts.Primary, base)

	e.afterOpen(primaryDevice, n, err)
}

func (e *Engine) openBackup() {
	now := e.clock.Now()
	name := e.prevName
	fname, err := e.opts.Backup.NextFilename(name)
	if err != nil {
		e.logger.Error("backup file name", log.Err(err))
		e.endBackup("no file name")
		return
	}
	n, err := e.backup.Open(fname, e.headerAt(now))
	if errors.Is(err, domain.ErrOpenFailed) {
		e.logger.Error("backup open failed", log.Err(err))
		e.endBackup("open failed")
		return
	}
	e.emitOpened(e.backup)
	e.logger.Info("file opened", log.Device(e.opts.Backup.Name()), log.String("file", fname))

	base := domain.BaseName(fname)
	if e.randomBlinks {
		e.startBlinkLog(e.opts.Backup, base)
	}
	e.writeMetadata(e.opts.Backup, base)

	e.afterOpen(backupDevice, n, err)
}

// afterOpen handles the result of the write pass of a fresh file. An
// overrun there resynchronises the cursor and leaves a marker on the
// primary device, unless the file replaces one that already faulted with an
// overrun. Other faults surface on the next step.
func (e *Engine) afterOpen(d device, n int, err error) {
	w := e.writer(d)
	dev := w.Device()
	e.emitWrite(dev.Name(), n)
	if err == nil {
		return
	}
	if !errors.Is(err, domain.ErrOverrun) {
		e.logger.Warn("first write failed", log.Device(dev.Name()), log.Err(err))
		return
	}
	skipped := w.Resync()
	if !e.reopening {
		marker := w.Session().BaseName() + "-error0-overrun.msg"
		if d == backupDevice {
			marker = w.Session().BaseName() + "-backup-error0-overrun.msg"
		}
		e.touch(e.opts.Primary, marker)
	}
	e.logger.Warn("overrun at open",
		log.Device(dev.Name()),
		log.Int("skipped", skipped),
		log.Duration("buffer_time", e.source.BufferTime()),
	)
	n, err = w.Step()
	if err != nil {
		e.logger.Warn("write after resync failed", log.Device(dev.Name()), log.Err(err))
		return
	}
	e.emitWrite(dev.Name(), n)
}

func (e *Engine) headerAt(now time.Time) *wav.Header {
	h := e.header
	h.Tags = append([]wav.Tag(nil), e.header.Tags...)
	h.SetTag(wav.TagDateTime, now.Format("2006-01-02T15:04:05"))
	return &h
}

func (e *Engine) touch(dev ports.StorageDevice, name string) {
	if !dev.Available() {
		return
	}
	f, err := dev.Create(name)
	if err != nil {
		e.logger.Warn("cannot create file", log.Device(dev.Name()), log.String("file", name), log.Err(err))
		return
	}
	f.Close()
}

func (e *Engine) writeMetadata(dev ports.StorageDevice, base string) {
	if e.metadata == nil {
		return
	}
	f, err := dev.Create(base + "-metadata.yml")
	if err != nil {
		e.logger.Warn("cannot write metadata", log.Device(dev.Name()), log.Err(err))
		return
	}
	defer f.Close()
	if _, err := f.Write(e.metadata); err != nil {
		e.logger.Warn("cannot write metadata", log.Device(dev.Name()), log.Err(err))
	}
}

// handleFault closes the file of the faulty writer, leaves a marker on the
// primary device and opens a new file, or gives the device up.
func (e *Engine) handleFault(d device, err error) {
	w := e.writer(d)
	kind := domain.FaultKindOf(err)
	session := w.Session()
	wasOpen := w.IsOpen()
	if ferr := w.Finish(domain.CloseFault); ferr != nil {
		e.logger.Warn("closing faulty file failed", log.Device(w.Device().Name()), log.Err(ferr))
	}
	if wasOpen {
		e.emitClosed(w)
	}
	e.restarts++

	base := session.BaseName()
	if base == "" {
		base = e.BaseName()
	}
	var marker string
	if d == backupDevice {
		marker = fmt.Sprintf("%s-backup-error%d-%s.msg", base, e.restarts, kind)
	} else {
		marker = fmt.Sprintf("%s-error%d-%s.msg", base, e.restarts, kind)
	}
	e.touch(e.opts.Primary, marker)

	fault := domain.Fault{
		Kind:     kind,
		Device:   w.Device().Name(),
		Backup:   d == backupDevice,
		Restarts: e.restarts,
		Marker:   marker,
		Err:      err,
	}
	for _, em := range e.opts.Emitters {
		em.OnFault(fault)
	}
	e.logger.Error("write fault",
		log.String("kind", string(kind)),
		log.Device(fault.Device),
		log.Int("restarts", e.restarts),
		log.Duration("buffer_time", e.source.BufferTime()),
		log.Duration("write_time", session.Duration),
		log.Err(err),
	)

	if kind == domain.FaultSourceStarved {
		e.restartSource()
	}
	e.reopening = kind == domain.FaultOverrun
	defer func() { e.reopening = false }()

	if d == backupDevice {
		switch {
		case kind == domain.FaultNothingWritten:
			e.endBackup("nothing written")
		case e.restarts >= e.opts.MaxRestarts:
			e.endBackup("too many restarts")
		default:
			e.openBackup()
		}
		return
	}

	switch {
	case kind == domain.FaultNothingWritten:
		e.halt(domain.HaltNothingWrote, err)
	case e.restarts >= e.opts.MaxRestarts:
		e.halt(domain.HaltTooManyFault, fmt.Errorf("%d restarts: %w", e.restarts, err))
	default:
		e.openPrimary()
	}
}

func (e *Engine) restartSource() {
	if e.source.Running() {
		e.source.Stop()
	}
	if err := e.source.Start(); err != nil {
		e.logger.Error("restarting source failed", log.Err(err))
		return
	}
	e.logger.Warn("source restarted")
}

func (e *Engine) endBackup(reason string) {
	if e.backup == nil || e.backupEnded {
		return
	}
	if e.backup.IsOpen() {
		if err := e.backup.Finish(domain.CloseFault); err != nil {
			e.logger.Warn("closing backup file failed", log.Err(err))
		}
		e.emitClosed(e.backup)
	}
	e.backupEnded = true
	e.backupRotate = false
	e.nextStore = primaryDevice
	e.opts.Backup.End()
	e.logger.Warn("backup storage disabled", log.Device(e.opts.Backup.Name()), log.String("reason", reason))
}

func (e *Engine) checkBlinkTimeout() {
	if e.blinkTimeout <= 0 {
		return
	}
	elapsed := e.clock.Now().Sub(e.blinkStart)
	if e.blinkPhase == 0 && elapsed > e.blinkTimeout {
		e.blinkPhase = 1
		e.logger.Debug("blink timeout, indicators dimmed")
	}
	if e.blinkPhase == 1 && elapsed > 2*e.blinkTimeout {
		e.blinkPhase = 2
	}
	// Pins stay off once timed out, even if something enabled them again.
	if e.blinkPhase >= 1 {
		e.status.DisablePin(0)
		e.sync.ClearPins()
	}
	if e.blinkPhase >= 2 {
		e.status.DisablePin(1)
	}
}

// timedOut reports whether status pin i is off for good after the blink timeout.
func (e *Engine) timedOut(i int) bool {
	return (i == 0 && e.blinkPhase >= 1) || (i == 1 && e.blinkPhase >= 2)
}

// enableIndicatorPins drives the status and sync pins again, except those
// switched off by the blink timeout.
func (e *Engine) enableIndicatorPins() {
	for i := 0; i < e.status.NumPins(); i++ {
		if !e.timedOut(i) {
			e.status.EnablePin(i)
		}
	}
	if e.blinkPhase == 0 {
		e.sync.EnablePins()
	}
}

// SetContext bounds blocking work inside Update, such as waiting for the
// start signal at rotation. It must be called before recording starts.
func (e *Engine) SetContext(ctx context.Context) {
	e.ctx = ctx
}

// Close finalises both files immediately.
func (e *Engine) Close() error {
	if e.State() != StateRecording {
		return nil
	}
	e.flushBlinks()
	var errs []error
	if e.primary.IsOpen() {
		errs = append(errs, e.primary.Close())
		e.emitClosed(e.primary)
	}
	if e.backup != nil && e.backup.IsOpen() {
		errs = append(errs, e.backup.Close())
		e.emitClosed(e.backup)
	}
	e.sync.Clear()
	e.status.SetTiming(2*time.Second, 100*time.Millisecond, 200*time.Millisecond)
	e.status.SetDouble()
	if err := e.TransitionTo(StateClosed, "close"); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
