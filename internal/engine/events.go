package engine

import "github.com/bft-labs/fieldlog/internal/domain"

// EventEmitter receives engine events. Emitters are called synchronously
// from Update and must not block.
type EventEmitter interface {
	OnStateChange(previous, current State, reason string)
	OnSessionOpened(s domain.FileSession)
	OnSessionClosed(s domain.FileSession)
	OnFault(f domain.Fault)
	OnWrite(device string, n int)
}

// NopEmitter ignores all events. Embed it to implement a subset.
type NopEmitter struct{}

func (NopEmitter) OnStateChange(previous, current State, reason string) {}
func (NopEmitter) OnSessionOpened(s domain.FileSession)                 {}
func (NopEmitter) OnSessionClosed(s domain.FileSession)                 {}
func (NopEmitter) OnFault(f domain.Fault)                               {}
func (NopEmitter) OnWrite(device string, n int)                         {}
