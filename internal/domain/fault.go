package domain

import "errors"

// FaultKind is the short name of a write fault as it appears in marker file names.
type FaultKind string

const (
	FaultNone           FaultKind = ""
	FaultNotOpen        FaultKind = "notopen"
	FaultAlreadyFull    FaultKind = "full"
	FaultSourceStarved  FaultKind = "nodata"
	FaultOverrun        FaultKind = "overrun"
	FaultNothingWritten FaultKind = "nowrite"
	FaultUnknown        FaultKind = "unknown"
)

// FaultKindOf maps a writer error to its kind.
func FaultKindOf(err error) FaultKind {
	switch {
	case err == nil:
		return FaultNone
	case errors.Is(err, ErrNotOpen):
		return FaultNotOpen
	case errors.Is(err, ErrAlreadyFull):
		return FaultAlreadyFull
	case errors.Is(err, ErrSourceStarved):
		return FaultSourceStarved
	case errors.Is(err, ErrOverrun):
		return FaultOverrun
	case errors.Is(err, ErrNothingWritten):
		return FaultNothingWritten
	default:
		return FaultUnknown
	}
}

// Fault describes one write fault as handled by the engine.
type Fault struct {
	Kind     FaultKind
	Device   string
	Backup   bool
	Restarts int
	Marker   string
	Err      error
}

// Halt codes shown on the error indicator as a repeating multi-pulse.
const (
	HaltCapacity     = 1
	HaltNameSpace    = 3
	HaltOpenFailed   = 4
	HaltNothingWrote = 5
	HaltTooManyFault = 6
)
