// Package sensors composes environmental sensor providers.
package sensors

import (
	"errors"
	"math"
	"time"

	"github.com/bft-labs/fieldlog/internal/ports"
)

// Multi samples several providers as one. A measurement is ready once every
// provider delivered its values.
type Multi struct {
	providers []ports.SensorProvider
	values    [][]float64
	ready     []bool
}

// NewMulti composes providers in order.
func NewMulti(providers ...ports.SensorProvider) *Multi {
	return &Multi{
		providers: providers,
		values:    make([][]float64, len(providers)),
		ready:     make([]bool, len(providers)),
	}
}

// Len returns the number of composed providers.
func (m *Multi) Len() int { return len(m.providers) }

// Sensors implements ports.SensorProvider.
func (m *Multi) Sensors() []ports.Sensor {
	var out []ports.Sensor
	for _, p := range m.providers {
		out = append(out, p.Sensors()...)
	}
	return out
}

// Trigger implements ports.SensorProvider.
func (m *Multi) Trigger(now time.Time) error {
	var errs []error
	for i, p := range m.providers {
		m.values[i] = nil
		m.ready[i] = false
		if err := p.Trigger(now); err != nil {
			errs = append(errs, err)
			m.ready[i] = true
		}
	}
	return errors.Join(errs...)
}

// Collect implements ports.SensorProvider. Channels of providers that failed
// are reported as NaN.
func (m *Multi) Collect() ([]float64, bool, error) {
	var errs []error
	for i, p := range m.providers {
		if m.ready[i] {
			continue
		}
		v, ok, err := p.Collect()
		if err != nil {
			errs = append(errs, err)
			m.ready[i] = true
			continue
		}
		if ok {
			m.values[i] = v
			m.ready[i] = true
		}
	}
	for _, r := range m.ready {
		if !r {
			return nil, false, errors.Join(errs...)
		}
	}
	var out []float64
	for i, p := range m.providers {
		n := len(p.Sensors())
		v := m.values[i]
		for j := 0; j < n; j++ {
			if j < len(v) {
				out = append(out, v[j])
			} else {
				out = append(out, math.NaN())
			}
		}
	}
	return out, true, errors.Join(errs...)
}
