package sim

import (
	"math"
	"time"

	"github.com/bft-labs/fieldlog/internal/ports"
)

// Sensors is a synthetic temperature, humidity and light provider. A
// measurement becomes ready Latency after its trigger.
type Sensors struct {
	Latency time.Duration

	clock     ports.Clock
	light     float64
	triggered time.Time
	pending   bool
}

// NewSensors creates a provider with a daylight illumination of 20000 lx.
func NewSensors(clock ports.Clock) *Sensors {
	return &Sensors{clock: clock, light: 20000}
}

// SetLight sets the illumination reported by the next measurements.
func (s *Sensors) SetLight(lx float64) { s.light = lx }

// Sensors implements ports.SensorProvider.
func (s *Sensors) Sensors() []ports.Sensor {
	return []ports.Sensor{
		{Name: "temperature", Unit: "C"},
		{Name: "humidity", Unit: "%"},
		{Name: "illumination", Unit: "lx"},
	}
}

// Trigger implements ports.SensorProvider.
func (s *Sensors) Trigger(now time.Time) error {
	s.triggered = now
	s.pending = true
	return nil
}

// Collect implements ports.SensorProvider.
func (s *Sensors) Collect() ([]float64, bool, error) {
	if !s.pending || s.clock.Now().Sub(s.triggered) < s.Latency {
		return nil, false, nil
	}
	s.pending = false
	h := float64(s.triggered.Hour()) + float64(s.triggered.Minute())/60
	temp := 15 + 5*math.Sin(2*math.Pi*(h-9)/24)
	return []float64{temp, 60 - temp, s.light}, true, nil
}
