package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bft-labs/fieldlog/internal/adapters/memfs"
	"github.com/bft-labs/fieldlog/internal/adapters/sim"
	"github.com/bft-labs/fieldlog/internal/domain"
	"github.com/bft-labs/fieldlog/pkg/blink"
	"github.com/bft-labs/fieldlog/pkg/wav"
)

const tick = 100 * time.Millisecond

// testFormat produces 2000 bytes per second; the 4096 byte ring holds 2.048 s.
var testFormat = wav.Format{SampleRate: 1000, Channels: 1, Bits: 16}

type recordingPin struct {
	mu   sync.Mutex
	on   bool
	sets int
}

func (p *recordingPin) Set(on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.on = on
	p.sets++
}

func (p *recordingPin) Sets() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sets
}

type fakeRebooter struct{ calls int }

func (r *fakeRebooter) Reboot() error {
	r.calls++
	return nil
}

type countingHook struct{ calls int }

func (h *countingHook) Synchronize(context.Context) error {
	h.calls++
	return nil
}

type sessionEvent struct {
	session domain.FileSession
	at      time.Time
}

type recordingEmitter struct {
	NopEmitter
	clock  *sim.ManualClock
	opened []sessionEvent
	closed []sessionEvent
	faults []domain.Fault
	states []State
	writes map[string]int
}

func (r *recordingEmitter) OnStateChange(previous, current State, reason string) {
	r.states = append(r.states, current)
}

func (r *recordingEmitter) OnSessionOpened(s domain.FileSession) {
	r.opened = append(r.opened, sessionEvent{s, r.clock.Now()})
}

func (r *recordingEmitter) OnSessionClosed(s domain.FileSession) {
	r.closed = append(r.closed, sessionEvent{s, r.clock.Now()})
}

func (r *recordingEmitter) OnFault(f domain.Fault) {
	r.faults = append(r.faults, f)
}

func (r *recordingEmitter) OnWrite(device string, n int) {
	if r.writes == nil {
		r.writes = make(map[string]int)
	}
	r.writes[device] += n
}

func (r *recordingEmitter) closedOn(device string) []sessionEvent {
	var out []sessionEvent
	for _, ev := range r.closed {
		if ev.session.Device == device {
			out = append(out, ev)
		}
	}
	return out
}

type harness struct {
	clock      *sim.ManualClock
	source     *sim.Source
	primary    *memfs.Volume
	backup     *memfs.Volume
	engine     *Engine
	events     *recordingEmitter
	hook       *countingHook
	rebooter   *fakeRebooter
	input      *sim.Input
	statusPins []*recordingPin
	syncPin    *recordingPin
	errPin     *recordingPin
}

type harnessOption func(*Options, *harness)

func withoutBackup() harnessOption {
	return func(o *Options, h *harness) {
		o.Backup = nil
	}
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	clock := sim.NewManualClock(time.Date(2024, 8, 28, 10, 15, 0, 0, time.UTC))
	src, err := sim.NewSource(clock, testFormat, 4096)
	require.NoError(t, err)

	h := &harness{
		clock:      clock,
		source:     src,
		primary:    memfs.New("primary", 1<<30),
		backup:     memfs.New("backup", 1<<30),
		events:     &recordingEmitter{clock: clock},
		hook:       &countingHook{},
		rebooter:   &fakeRebooter{},
		input:      &sim.Input{},
		statusPins: []*recordingPin{{}, {}},
		syncPin:    &recordingPin{},
		errPin:     &recordingPin{},
	}
	o := Options{
		Source:         src,
		Primary:        h.primary,
		Backup:         h.backup,
		Clock:          clock,
		Label:          "meadow",
		Identity:       domain.DeviceIdentity{ID: 7, Source: domain.ProvenanceConfigured},
		Status:         blink.New(clock, h.statusPins[0], h.statusPins[1]),
		SyncIndicator:  blink.New(clock, h.syncPin),
		ErrorIndicator: blink.New(clock, h.errPin),
		Hook:           h.hook,
		Control:        h.input,
		Rebooter:       h.rebooter,
		Emitters:       []EventEmitter{h.events},
		Format:         testFormat,
		Header:         HeaderInfo{CPUSpeed: "600MHz", Channels: "1", Gain: "20dB"},
	}
	for _, opt := range opts {
		opt(&o, h)
	}
	e, err := New(o)
	require.NoError(t, err)
	h.engine = e
	return h
}

func (h *harness) setup(t *testing.T, cfg SetupConfig) {
	t.Helper()
	if cfg.Path == "" {
		cfg.Path = "LABELID2"
	}
	if cfg.FileName == "" {
		cfg.FileName = "recNUM"
	}
	if cfg.Software == "" {
		cfg.Software = "fieldlog test"
	}
	require.NoError(t, h.engine.Setup(cfg))
}

func (h *harness) start(t *testing.T, cfg SetupConfig, fileTime time.Duration) {
	t.Helper()
	h.setup(t, cfg)
	require.NoError(t, h.engine.Start(fileTime))
}

// run advances the clock tick by tick and calls update after each tick.
func (h *harness) run(d time.Duration, update func() bool) {
	for elapsed := time.Duration(0); elapsed < d; elapsed += tick {
		h.clock.Advance(tick)
		update()
	}
}

const dataDir = "meadow07"

type hookFunc func() error

func (f hookFunc) Synchronize(context.Context) error { return f() }

// ctxHook records the error of the context it is called with.
type ctxHook struct {
	calls int
	errs  []error
}

func (h *ctxHook) Synchronize(ctx context.Context) error {
	h.calls++
	h.errs = append(h.errs, ctx.Err())
	return ctx.Err()
}
