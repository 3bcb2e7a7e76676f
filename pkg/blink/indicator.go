package blink

import (
	"math/rand"
	"time"
)

// MaxTransitions is the capacity of an indicator's transition log.
const MaxTransitions = 256

// Pin is a digital output.
type Pin interface {
	Set(on bool)
}

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

// Mode is the blink pattern of an indicator.
type Mode int

const (
	ModeOff Mode = iota
	ModeOn
	ModeSingle
	ModeDouble
	ModeTriple
	ModeTimed
	ModeRandom
)

// String returns a human-readable representation of the mode.
func (m Mode) String() string {
	switch m {
	case ModeOff:
		return "off"
	case ModeOn:
		return "on"
	case ModeSingle:
		return "single"
	case ModeDouble:
		return "double"
	case ModeTriple:
		return "triple"
	case ModeTimed:
		return "timed"
	case ModeRandom:
		return "random"
	default:
		return "unknown"
	}
}

// Timing parametrises the pulse patterns.
//
// For pulse modes each Interval starts with n pulses of length On separated
// by Off. In random mode pulses last between On and Off and gaps between On
// and Interval.
type Timing struct {
	Interval time.Duration
	On       time.Duration
	Off      time.Duration
}

// DefaultTiming is used until SetTiming is called.
var DefaultTiming = Timing{
	Interval: 2 * time.Second,
	On:       50 * time.Millisecond,
	Off:      150 * time.Millisecond,
}

// Transition is a logical state change of an indicator.
type Transition struct {
	Time time.Time
	On   bool
}

type burst struct {
	start time.Time
	n     int
	on    time.Duration
	off   time.Duration
}

// state returns the burst state at now. active is false before the burst
// starts and after its last pulse.
func (b *burst) state(now time.Time) (on, active, done bool) {
	elapsed := now.Sub(b.start)
	if elapsed < 0 {
		return false, false, false
	}
	period := b.on + b.off
	if period <= 0 {
		return false, false, true
	}
	k := int(elapsed / period)
	if k >= b.n {
		return false, false, true
	}
	return elapsed%period < b.on, true, false
}

// Indicator is one logical LED, possibly mirrored on several pins.
//
// An Indicator is not safe for concurrent use.
type Indicator struct {
	clock   Clock
	pins    []Pin
	enabled []bool

	mode   Mode
	pulses int
	timing Timing
	start  time.Time

	rng      *rand.Rand
	randOn   bool
	randNext time.Time

	burst *burst

	on  bool
	log *Ring[Transition]
}

// New creates an indicator driving pins. An indicator without pins still
// keeps its logical state and transition log.
func New(clock Clock, pins ...Pin) *Indicator {
	b := &Indicator{
		clock:   clock,
		pins:    pins,
		enabled: make([]bool, len(pins)),
		timing:  DefaultTiming,
		log:     NewRing[Transition](MaxTransitions),
	}
	for i := range b.enabled {
		b.enabled[i] = true
	}
	b.start = clock.Now()
	return b
}

// Available reports whether the indicator has at least one pin.
func (b *Indicator) Available() bool { return len(b.pins) > 0 }

// Mode returns the current pattern.
func (b *Indicator) Mode() Mode { return b.mode }

// Timing returns the current timing.
func (b *Indicator) Timing() Timing { return b.timing }

// IsOn returns the logical state as of the last Update.
func (b *Indicator) IsOn() bool { return b.on }

// SetTiming changes the timing of the pulse patterns.
func (b *Indicator) SetTiming(interval, on, off time.Duration) {
	b.timing = Timing{Interval: interval, On: on, Off: off}
}

func (b *Indicator) setMode(m Mode, pulses int) {
	b.mode = m
	b.pulses = pulses
	b.start = b.clock.Now()
	b.Update()
}

// Clear switches the indicator off and cancels a pending burst.
func (b *Indicator) Clear() {
	b.burst = nil
	b.setMode(ModeOff, 0)
}

// SetOn switches the indicator on permanently.
func (b *Indicator) SetOn() { b.setMode(ModeOn, 0) }

// SetSingle blinks once per interval.
func (b *Indicator) SetSingle() { b.setMode(ModeSingle, 1) }

// SetDouble blinks twice per interval.
func (b *Indicator) SetDouble() { b.setMode(ModeDouble, 2) }

// SetTriple blinks three times per interval.
func (b *Indicator) SetTriple() { b.setMode(ModeTriple, 3) }

// SetTimed blinks n times per interval. It is used to show error codes.
func (b *Indicator) SetTimed(n int) {
	if n < 1 {
		n = 1
	}
	b.setMode(ModeTimed, n)
}

// SetRandom starts a pseudo-random pulse train. The same seed and timing
// produce the same train.
func (b *Indicator) SetRandom(seed int64) {
	b.rng = rand.New(rand.NewSource(seed))
	b.randOn = false
	b.randNext = b.clock.Now().Add(b.randomGap())
	b.setMode(ModeRandom, 0)
}

func (b *Indicator) uniform(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(b.rng.Int63n(int64(hi-lo)+1))
}

func (b *Indicator) randomPulse() time.Duration {
	return b.uniform(b.timing.On, b.timing.Off)
}

func (b *Indicator) randomGap() time.Duration {
	return b.uniform(b.timing.On, b.timing.Interval)
}

// BlinkSingle schedules one pulse of length on after delay.
func (b *Indicator) BlinkSingle(delay, on time.Duration) {
	b.BlinkMultiple(1, delay, on, 0)
}

// BlinkMultiple schedules a burst of n pulses after delay. The burst
// overrides the current mode while it lasts.
func (b *Indicator) BlinkMultiple(n int, delay, on, off time.Duration) {
	if n < 1 || on <= 0 {
		return
	}
	b.burst = &burst{start: b.clock.Now().Add(delay), n: n, on: on, off: off}
	b.Update()
}

func (b *Indicator) modeState(now time.Time) bool {
	switch b.mode {
	case ModeOn:
		return true
	case ModeSingle, ModeDouble, ModeTriple, ModeTimed:
		t := b.timing
		period := t.On + t.Off
		if t.Interval <= 0 || period <= 0 {
			return false
		}
		phase := now.Sub(b.start) % t.Interval
		if phase < 0 {
			return false
		}
		k := int(phase / period)
		if k >= b.pulses {
			return false
		}
		return phase%period < t.On
	case ModeRandom:
		for !now.Before(b.randNext) {
			b.randOn = !b.randOn
			if b.randOn {
				b.randNext = b.randNext.Add(b.randomPulse())
			} else {
				b.randNext = b.randNext.Add(b.randomGap())
			}
		}
		return b.randOn
	default:
		return false
	}
}

// Update evaluates the indicator at the current time, drives the enabled
// pins and logs a transition if the logical state changed. It returns the
// logical state.
func (b *Indicator) Update() bool {
	now := b.clock.Now()
	on := b.modeState(now)
	if b.burst != nil {
		s, active, done := b.burst.state(now)
		switch {
		case done:
			b.burst = nil
		case active:
			on = s
		}
	}
	if on != b.on {
		b.on = on
		b.log.Push(Transition{Time: now, On: on})
		b.drive()
	}
	return b.on
}

func (b *Indicator) drive() {
	for i, p := range b.pins {
		if b.enabled[i] {
			p.Set(b.on)
		}
	}
}

// DisablePin switches pin i off and stops driving it.
func (b *Indicator) DisablePin(i int) {
	if i < 0 || i >= len(b.pins) || !b.enabled[i] {
		return
	}
	b.pins[i].Set(false)
	b.enabled[i] = false
}

// DisablePins switches all pins off and stops driving them.
func (b *Indicator) DisablePins() {
	for i := range b.pins {
		b.DisablePin(i)
	}
}

// EnablePin resumes driving pin i with the current logical state.
func (b *Indicator) EnablePin(i int) {
	if i < 0 || i >= len(b.pins) || b.enabled[i] {
		return
	}
	b.enabled[i] = true
	b.pins[i].Set(b.on)
}

// EnablePins resumes driving all pins with the current logical state.
func (b *Indicator) EnablePins() {
	for i := range b.pins {
		b.EnablePin(i)
	}
}

// NumPins returns the number of attached pins.
func (b *Indicator) NumPins() int { return len(b.pins) }

// ClearPins switches all pins off and detaches them. The logical model keeps running.
func (b *Indicator) ClearPins() {
	b.DisablePins()
	b.pins = nil
	b.enabled = nil
}

// SwitchTimes drains the transition log.
func (b *Indicator) SwitchTimes() []Transition { return b.log.Drain() }

// NSwitchTimes returns the number of pending transition records.
func (b *Indicator) NSwitchTimes() int { return b.log.Len() }

// ClearSwitchTimes discards pending transition records.
func (b *Indicator) ClearSwitchTimes() { b.log.Clear() }

// DroppedSwitchTimes returns how many records were lost to ring overflow.
func (b *Indicator) DroppedSwitchTimes() int { return b.log.Dropped() }
