package engine

import (
	"math"
	"strconv"
	"time"

	"github.com/bft-labs/fieldlog/internal/ports"
	"github.com/bft-labs/fieldlog/pkg/log"
)

// luxUnit marks light sensors.
const luxUnit = "lx"

// SensorConfig configures a SensorRecorder.
type SensorConfig struct {
	// Interval between measurements.
	Interval time.Duration

	// LightThreshold in lux below which indicator pins are dark. Zero
	// disables the check.
	LightThreshold float64
}

// SensorRecorder decorates an Engine with periodic environmental sampling.
// Every completed measurement is appended to <base>-sensors.csv on the
// primary device. Recording itself is never affected by the sensors.
type SensorRecorder struct {
	*Engine

	provider ports.SensorProvider
	cfg      SensorConfig
	sensors  []ports.Sensor
	light    []int

	next     time.Time
	waiting  bool
	sampled  time.Time
	csvBase  string
	dimmed   bool
	deferred int
}

// NewSensorRecorder wraps e.
func NewSensorRecorder(e *Engine, provider ports.SensorProvider, cfg SensorConfig) *SensorRecorder {
	s := &SensorRecorder{
		Engine:   e,
		provider: provider,
		cfg:      cfg,
		sensors:  provider.Sensors(),
	}
	for i, sn := range s.sensors {
		if sn.Unit == luxUnit {
			s.light = append(s.light, i)
		}
	}
	return s
}

// Update runs one engine tick and then advances the sensor sampling.
func (s *SensorRecorder) Update() bool {
	did := s.Engine.Update()
	if !s.Saving() {
		return did
	}
	now := s.clock.Now()
	if !s.waiting && !now.Before(s.next) {
		if s.indicatorsOn() {
			s.deferred++
			return did
		}
		if err := s.provider.Trigger(now); err != nil {
			s.logger.Warn("sensor trigger failed", log.Err(err))
		}
		s.waiting = true
		s.sampled = now
		s.next = now.Add(s.cfg.Interval)
	}
	if s.waiting {
		values, ready, err := s.provider.Collect()
		if err != nil {
			s.logger.Warn("sensor read failed", log.Err(err))
		}
		if ready {
			s.waiting = false
			s.record(values)
			s.applyLight(values)
		}
	}
	return did
}

// indicatorsOn reports whether a lit LED would spoil a light reading.
func (s *SensorRecorder) indicatorsOn() bool {
	if len(s.light) == 0 || s.dimmed {
		return false
	}
	return s.status.IsOn() || s.sync.IsOn()
}

// Deferred returns how many measurements were postponed because an
// indicator was on.
func (s *SensorRecorder) Deferred() int { return s.deferred }

func (s *SensorRecorder) record(values []float64) {
	base := s.BaseName()
	if base == "" {
		return
	}
	dev := s.Primary()
	var rows [][]string
	if base != s.csvBase {
		head := []string{"time"}
		for _, sn := range s.sensors {
			head = append(head, sn.Name+"/"+sn.Unit)
		}
		rows = append(rows, head)
		s.csvBase = base
	}
	row := []string{s.sampled.Format("2006-01-02T15:04:05.000")}
	for i := range s.sensors {
		v := math.NaN()
		if i < len(values) {
			v = values[i]
		}
		row = append(row, strconv.FormatFloat(v, 'f', 3, 64))
	}
	rows = append(rows, row)
	s.appendCSV(dev, base+"-sensors.csv", rows, false)
}

// applyLight darkens the status and sync pins when the brightest light
// sensor reads below the threshold and lights them again above it.
func (s *SensorRecorder) applyLight(values []float64) {
	if s.cfg.LightThreshold <= 0 || len(s.light) == 0 {
		return
	}
	maxLux := math.Inf(-1)
	for _, i := range s.light {
		if i < len(values) && !math.IsNaN(values[i]) {
			maxLux = math.Max(maxLux, values[i])
		}
	}
	if math.IsInf(maxLux, -1) {
		return
	}
	dim := maxLux < s.cfg.LightThreshold
	if dim == s.dimmed {
		return
	}
	s.dimmed = dim
	if dim {
		s.status.DisablePins()
		s.sync.DisablePins()
	} else {
		s.enableIndicatorPins()
	}
	s.logger.Info("indicator pins",
		log.Bool("dark", dim),
		log.Float64("illumination", maxLux),
		log.Float64("threshold", s.cfg.LightThreshold),
	)
}
