package ports

import "time"

// Sensor describes one channel of a sensor provider.
type Sensor struct {
	Name string
	Unit string
}

// SensorProvider samples environmental sensors in two phases so that a slow
// bus never blocks a tick: Trigger starts a conversion, Collect polls for it.
type SensorProvider interface {
	// Sensors lists the channels in the order of the sampled values.
	Sensors() []Sensor

	// Trigger starts a measurement.
	Trigger(now time.Time) error

	// Collect returns the values of the last triggered measurement. ready is
	// false while the measurement is still in progress.
	Collect() (values []float64, ready bool, err error)
}
