package ports

import (
	"errors"
	"time"
)

// ErrDataLost is returned by DataSource.ReadAt when the requested bytes were
// already overwritten by the producer.
var ErrDataLost = errors.New("ports: data overwritten")

// DataSource is the producer side of the acquisition pipeline: a fixed-size
// ring of bytes filled by DMA, addressed by a monotonic byte index.
//
// Head is the index one past the newest byte. Bytes in
// [Head-Capacity, Head) are readable; older bytes are gone.
type DataSource interface {
	// Start starts (or restarts) acquisition.
	Start() error

	// Stop stops acquisition. Buffered bytes stay readable.
	Stop()

	// Running reports whether the producer is filling the ring.
	Running() bool

	// Capacity returns the ring size in bytes.
	Capacity() int

	// Head returns the monotonic index one past the newest byte.
	Head() uint64

	// ReadAt copies bytes starting at the monotonic index off into p.
	ReadAt(p []byte, off uint64) (int, error)

	// ByteRate returns the number of bytes produced per second.
	ByteRate() int

	// BufferTime returns the signal time held by a full ring.
	BufferTime() time.Duration
}

// Clock is the time source of the core.
type Clock interface {
	Now() time.Time
}
