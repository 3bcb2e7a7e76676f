// Package ports defines the interfaces that connect the recorder core to
// hardware and infrastructure adapters.
//
// The engine (internal/engine) and the stream writers (internal/stream) depend
// only on these interfaces. Adapters (internal/adapters) implement them on top
// of the file system, simulated DMA sources, GPIO pins, MQTT, Modbus or I2C.
//
// # Port Interfaces
//
//   - [DataSource]: producer ring buffer with a monotonic byte index
//   - [StorageDevice] and [File]: removable storage holding the recordings
//   - [Clock]: time source for sessions and indicators
//   - [SensorProvider]: two-phase environmental sensor sampling
//   - [ControlInput] and [Rebooter]: halt console and device reset
//   - [SyncBus]: inter-device start/end-of-file signalling
//   - [Logger]: structured logging abstraction
//
// None of the core-facing methods block. Adapters that talk to slow buses do
// their I/O on their own goroutines and expose results through polls.
package ports
