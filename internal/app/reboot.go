package app

import "sync/atomic"

// RebootLatch implements ports.Rebooter for a process supervised by an init
// system: the reboot is recorded and the runner exits with
// domain.ErrRebootRequested, leaving the restart to the supervisor.
type RebootLatch struct {
	requested atomic.Bool
}

// Reboot implements ports.Rebooter.
func (r *RebootLatch) Reboot() error {
	r.requested.Store(true)
	return nil
}

// Requested reports whether a reboot was requested.
func (r *RebootLatch) Requested() bool {
	return r.requested.Load()
}
