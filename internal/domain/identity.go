package domain

import "fmt"

// Provenance tells where a device identifier came from.
type Provenance int

const (
	ProvenanceUnset Provenance = iota
	ProvenanceDefault
	ProvenanceConfigured
	ProvenanceHardware
)

// String returns a human-readable representation of the provenance.
func (p Provenance) String() string {
	switch p {
	case ProvenanceDefault:
		return "default"
	case ProvenanceConfigured:
		return "configured"
	case ProvenanceHardware:
		return "read from device"
	default:
		return "not set"
	}
}

// DeviceIdentity is the integer id of a logger used in path and file templates.
type DeviceIdentity struct {
	ID     int
	Source Provenance
}

// Set reports whether an id is available.
func (d DeviceIdentity) Set() bool {
	return d.Source != ProvenanceUnset
}

// String formats the id for log lines.
func (d DeviceIdentity) String() string {
	return fmt.Sprintf("%d (%s)", d.ID, d.Source)
}
