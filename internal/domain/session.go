package domain

import (
	"path"
	"strings"
	"time"
)

// FileSession is the logical recording unit: one bounded-duration output file
// plus the metadata needed to name and account for it.
type FileSession struct {
	// ID uniquely identifies the session across devices and restarts.
	ID string

	// Device is the name of the storage device holding the file.
	Device string

	// Name is the file name relative to the device's data directory.
	Name string

	// Counter is the sequential session number within the engine run.
	Counter int

	// Start is the clock time at which the file was opened.
	Start time.Time

	// MaxDuration is the duration cap of the file.
	MaxDuration time.Duration

	// Bytes is the number of payload bytes written so far.
	Bytes int64

	// Duration is the recorded signal time covered by Bytes.
	Duration time.Duration

	// CloseReason is set when the session is finalised.
	CloseReason string
}

// BaseName returns the file name without extension.
func (s FileSession) BaseName() string {
	return BaseName(s.Name)
}

// BaseName strips the extension from a file name.
func BaseName(name string) string {
	return strings.TrimSuffix(name, path.Ext(name))
}

// Close reasons.
const (
	CloseRotated  = "rotated"
	CloseFault    = "fault"
	CloseShutdown = "shutdown"
)
