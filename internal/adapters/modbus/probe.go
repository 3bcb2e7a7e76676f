// Package modbus reads environmental probes over Modbus TCP.
package modbus

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/goburrow/modbus"

	"github.com/bft-labs/fieldlog/internal/ports"
)

// Function codes for register reads.
const (
	HoldingRegisters uint8 = 3
	InputRegisters   uint8 = 4
)

// Channel maps one 16-bit register to a sensor value: value = raw * Scale.
type Channel struct {
	Name    string
	Unit    string
	FC      uint8
	Address uint16
	Scale   float64
	Signed  bool
}

// Config describes a probe reachable over Modbus TCP.
type Config struct {
	Endpoint string
	UnitID   uint8
	Timeout  time.Duration
	Channels []Channel
}

// DefaultChannels is the register layout of the common RS485/TCP
// temperature, humidity and light transmitters: three input registers
// holding tenths of a degree, tenths of a percent and lux.
var DefaultChannels = []Channel{
	{Name: "temperature", Unit: "C", FC: InputRegisters, Address: 0, Scale: 0.1, Signed: true},
	{Name: "humidity", Unit: "%", FC: InputRegisters, Address: 1, Scale: 0.1},
	{Name: "illumination", Unit: "lx", FC: InputRegisters, Address: 2, Scale: 1},
}

// registerReader is the part of modbus.Client the probe uses.
type registerReader interface {
	ReadHoldingRegisters(address, quantity uint16) ([]byte, error)
	ReadInputRegisters(address, quantity uint16) ([]byte, error)
}

type result struct {
	values []float64
	err    error
}

// Probe implements ports.SensorProvider. Trigger starts a read of all
// channels on a separate goroutine; Collect picks up the result without
// blocking.
type Probe struct {
	client   registerReader
	closer   func() error
	channels []Channel
	results  chan result
	busy     bool
}

// Dial connects to the probe described by cfg.
func Dial(cfg Config) (*Probe, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("modbus probe: endpoint required")
	}
	if len(cfg.Channels) == 0 {
		return nil, errors.New("modbus probe: at least one channel required")
	}
	h := modbus.NewTCPClientHandler(cfg.Endpoint)
	h.SlaveId = cfg.UnitID
	h.Timeout = cfg.Timeout
	if err := h.Connect(); err != nil {
		return nil, fmt.Errorf("modbus probe %s: %w", cfg.Endpoint, err)
	}
	p := newProbe(modbus.NewClient(h), cfg.Channels)
	p.closer = h.Close
	return p, nil
}

func newProbe(client registerReader, channels []Channel) *Probe {
	return &Probe{
		client:   client,
		channels: channels,
		results:  make(chan result, 1),
	}
}

// Sensors implements ports.SensorProvider.
func (p *Probe) Sensors() []ports.Sensor {
	out := make([]ports.Sensor, len(p.channels))
	for i, ch := range p.channels {
		out[i] = ports.Sensor{Name: ch.Name, Unit: ch.Unit}
	}
	return out
}

// Trigger implements ports.SensorProvider. A trigger while a read is still
// running is ignored.
func (p *Probe) Trigger(time.Time) error {
	if p.busy {
		return nil
	}
	p.busy = true
	go func() {
		values, err := p.readAll()
		p.results <- result{values, err}
	}()
	return nil
}

// Collect implements ports.SensorProvider.
func (p *Probe) Collect() ([]float64, bool, error) {
	select {
	case r := <-p.results:
		p.busy = false
		return r.values, true, r.err
	default:
		return nil, false, nil
	}
}

func (p *Probe) readAll() ([]float64, error) {
	values := make([]float64, len(p.channels))
	var errs []error
	for i, ch := range p.channels {
		v, err := p.read(ch)
		if err != nil {
			values[i] = math.NaN()
			errs = append(errs, fmt.Errorf("%s: %w", ch.Name, err))
			continue
		}
		values[i] = v
	}
	return values, errors.Join(errs...)
}

func (p *Probe) read(ch Channel) (float64, error) {
	var (
		raw []byte
		err error
	)
	switch ch.FC {
	case HoldingRegisters:
		raw, err = p.client.ReadHoldingRegisters(ch.Address, 1)
	case InputRegisters, 0:
		raw, err = p.client.ReadInputRegisters(ch.Address, 1)
	default:
		return 0, fmt.Errorf("unsupported function code %d", ch.FC)
	}
	if err != nil {
		return 0, err
	}
	if len(raw) < 2 {
		return 0, errors.New("short register payload")
	}
	reg := uint16(raw[0])<<8 | uint16(raw[1])
	v := float64(reg)
	if ch.Signed {
		v = float64(int16(reg))
	}
	scale := ch.Scale
	if scale == 0 {
		scale = 1
	}
	return v * scale, nil
}

// Close closes the connection.
func (p *Probe) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer()
}

var _ ports.SensorProvider = (*Probe)(nil)
