// Package identity resolves the integer id a logger uses in its path and
// file name templates.
package identity

import (
	"hash/fnv"

	"github.com/denisbrodbeck/machineid"

	"github.com/bft-labs/fieldlog/internal/domain"
)

// FromHardware requests the id derived from the machine.
const FromHardware = -1

// MaxHardwareID bounds ids derived from the machine id.
const MaxHardwareID = 128

const appID = "fieldlog"

// machineID is replaced in tests.
var machineID = func() (string, error) { return machineid.ProtectedID(appID) }

// Resolve returns the identity for a configured id. Non-negative ids are
// used as given. FromHardware derives a stable id in [0, MaxHardwareID)
// from the machine id and falls back to the default id 0 when the machine
// id cannot be read. Any other negative value leaves the id unset.
func Resolve(configured int) domain.DeviceIdentity {
	switch {
	case configured >= 0:
		return domain.DeviceIdentity{ID: configured, Source: domain.ProvenanceConfigured}
	case configured == FromHardware:
		id, err := machineID()
		if err != nil || id == "" {
			return domain.DeviceIdentity{ID: 0, Source: domain.ProvenanceDefault}
		}
		h := fnv.New32a()
		h.Write([]byte(id))
		return domain.DeviceIdentity{ID: int(h.Sum32() % MaxHardwareID), Source: domain.ProvenanceHardware}
	default:
		return domain.DeviceIdentity{ID: -1, Source: domain.ProvenanceUnset}
	}
}
