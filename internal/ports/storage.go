package ports

import "io"

// File is an open file on a storage device.
type File interface {
	io.Writer
	io.WriterAt

	// Sync flushes written data to the medium.
	Sync() error

	// Close closes the file.
	Close() error

	// Name returns the file name relative to the data directory.
	Name() string
}

// StorageDevice is a removable storage medium holding the data directory.
type StorageDevice interface {
	// Name identifies the device in logs and markers.
	Name() string

	// Available reports whether the device can be written to.
	Available() bool

	// End marks the device unavailable until it is re-initialised.
	End()

	// CheckCapacity verifies that at least minBytes are free. On failure the
	// device is ended.
	CheckCapacity(minBytes uint64) bool

	// Free returns the free space in bytes.
	Free() uint64

	// SetDataDir sets and creates the directory new files are placed in.
	SetDataDir(dir string) error

	// DataDir returns the current data directory.
	DataDir() string

	// NextFilename returns a name derived from name that does not exist yet.
	NextFilename(name string) (string, error)

	// ResetFileCounter restarts the NUM/ANUM counter.
	ResetFileCounter()

	// Create creates or truncates a file in the data directory.
	Create(name string) (File, error)

	// Append opens a file in the data directory for appending, creating it if needed.
	Append(name string) (File, error)

	// CleanDir removes files with extension ext smaller than minSize from the
	// newest data directory and returns how many were removed.
	CleanDir(minSize int64, ext string) (int, error)
}
