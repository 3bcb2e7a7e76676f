package i2c

import (
	"errors"
	"time"

	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/shtc3"

	"github.com/bft-labs/fieldlog/internal/ports"
)

// thermohygrometer is the part of the SHTC3 driver the provider uses.
type thermohygrometer interface {
	WakeUp() error
	Sleep() error
	ReadTemperatureHumidity() (int32, int16, error)
}

type reading struct {
	values []float64
	err    error
}

// SHTC3 implements ports.SensorProvider for a Sensirion SHTC3 temperature
// and humidity sensor. Each measurement wakes the sensor, reads it and puts
// it back to sleep on a separate goroutine.
type SHTC3 struct {
	dev     thermohygrometer
	results chan reading
	busy    bool
}

// NewSHTC3 creates a provider for the sensor on bus.
func NewSHTC3(bus drivers.I2C) *SHTC3 {
	dev := shtc3.New(bus)
	return newSHTC3(&dev)
}

func newSHTC3(dev thermohygrometer) *SHTC3 {
	return &SHTC3{dev: dev, results: make(chan reading, 1)}
}

// Sensors implements ports.SensorProvider.
func (s *SHTC3) Sensors() []ports.Sensor {
	return []ports.Sensor{
		{Name: "temperature", Unit: "C"},
		{Name: "humidity", Unit: "%"},
	}
}

// Trigger implements ports.SensorProvider.
func (s *SHTC3) Trigger(time.Time) error {
	if s.busy {
		return nil
	}
	s.busy = true
	go func() {
		s.results <- s.measure()
	}()
	return nil
}

func (s *SHTC3) measure() reading {
	if err := s.dev.WakeUp(); err != nil {
		return reading{err: err}
	}
	milliC, rhx100, err := s.dev.ReadTemperatureHumidity()
	err = errors.Join(err, s.dev.Sleep())
	if err != nil {
		return reading{err: err}
	}
	return reading{values: []float64{float64(milliC) / 1000, float64(rhx100) / 100}}
}

// Collect implements ports.SensorProvider. A failed measurement reports no
// values and the error.
func (s *SHTC3) Collect() ([]float64, bool, error) {
	select {
	case r := <-s.results:
		s.busy = false
		return r.values, true, r.err
	default:
		return nil, false, nil
	}
}

var _ ports.SensorProvider = (*SHTC3)(nil)
