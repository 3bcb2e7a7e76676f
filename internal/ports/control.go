package ports

import "context"

// ControlInput is the console byte stream read while halted.
type ControlInput interface {
	// ReadByte returns the next pending byte. ok is false when no input is pending.
	ReadByte() (b byte, ok bool)
}

// Rebooter restarts the device.
type Rebooter interface {
	Reboot() error
}

// SyncBus carries start and end-of-file signals between loggers.
type SyncBus interface {
	// SendEndFile announces that the logger with the given id closed a file.
	SendEndFile(id int) error

	// SendStart tells the other loggers to open their next file.
	SendStart() error

	// WaitStart blocks until a start signal arrives or ctx is done.
	WaitStart(ctx context.Context) error
}

// Pin is a digital output driving an indicator LED.
type Pin interface {
	Set(on bool)
}
