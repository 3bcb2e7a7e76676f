//go:build !linux

package i2c

import "errors"

// Bus is unavailable outside Linux.
type Bus struct{}

// OpenBus always fails outside Linux.
func OpenBus(path string) (*Bus, error) {
	return nil, errors.New("i2c: i2c-dev is only available on linux")
}

// Tx implements the tinygo I2C shape.
func (b *Bus) Tx(addr uint16, w, r []byte) error {
	return errors.New("i2c: not supported")
}

// Close does nothing.
func (b *Bus) Close() error { return nil }
