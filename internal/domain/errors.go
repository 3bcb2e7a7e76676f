package domain

import "errors"

// Write faults reported by a stream writer. Each one drives its own recovery
// path in the engine.
var (
	// ErrNotOpen is returned when a writer is stepped without an open file.
	ErrNotOpen = errors.New("fieldlog: file not open")

	// ErrAlreadyFull is returned when the current file reached its cap but was not rotated yet.
	ErrAlreadyFull = errors.New("fieldlog: file already full")

	// ErrSourceStarved is returned when the data source stopped producing.
	ErrSourceStarved = errors.New("fieldlog: no data available")

	// ErrOverrun is returned when the producer lapped the writer's read cursor.
	ErrOverrun = errors.New("fieldlog: buffer overrun")

	// ErrNothingWritten is returned when the medium accepted zero bytes.
	ErrNothingWritten = errors.New("fieldlog: nothing written")
)

// Rotation faults.
var (
	// ErrDeviceUnavailable is returned when a storage device is absent or ended.
	ErrDeviceUnavailable = errors.New("fieldlog: storage device unavailable")

	// ErrNameSpaceExhausted is returned when no free file name is left for a template.
	ErrNameSpaceExhausted = errors.New("fieldlog: file name space exhausted")

	// ErrOpenFailed is returned when a device rejects the creation of a file.
	ErrOpenFailed = errors.New("fieldlog: failed to open file")
)

// ErrCapacityLow is returned by the pre-flight check of a storage device.
var ErrCapacityLow = errors.New("fieldlog: not enough free space")

// Lifecycle errors.
var (
	// ErrHalted is returned by operations attempted on a halted engine.
	ErrHalted = errors.New("fieldlog: halted")

	// ErrInvalidState is returned for operations not allowed in the current engine state.
	ErrInvalidState = errors.New("fieldlog: invalid state transition")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("fieldlog: invalid configuration")

	// ErrRebootRequested is returned by the runner once the reboot sequence was received.
	ErrRebootRequested = errors.New("fieldlog: reboot requested")

	// ErrShutdownTimeout is returned when background workers did not stop in time.
	ErrShutdownTimeout = errors.New("fieldlog: shutdown timeout")

	// ErrSyncTimeout is returned by a sync bus that did not see a start signal in time.
	ErrSyncTimeout = errors.New("fieldlog: no start signal")
)
