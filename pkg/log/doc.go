// Package log provides the logging abstraction used across fieldlog.
//
// The recorder never writes to a global console. Every component receives a
// Logger at construction time and reports faults, rotations and state changes
// as structured fields.
//
// # Usage
//
// Use the zerolog adapter:
//
//	logger := log.NewZerologAdapterWithLogger(zerolog.New(os.Stderr))
//
// Or the no-op logger in tests:
//
//	logger := log.NewNoopLogger()
//
// Attach fields that should appear on every line:
//
//	devLog := log.With(logger, log.Device("primary"))
package log
