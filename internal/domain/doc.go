// Package domain contains the core entities and error taxonomy of fieldlog.
//
// It has no dependencies on storage, transport or logging.
//
// # Entities
//
//   - [FileSession]: one capped-duration recording file and its accounting
//   - [DeviceIdentity]: logger id with its provenance
//   - [Fault]: a handled write fault with its on-disk kind
//
// # Errors
//
// Write faults, rotation faults and lifecycle errors are sentinel values that
// callers match with errors.Is. [FaultKindOf] maps them to marker file names.
package domain
