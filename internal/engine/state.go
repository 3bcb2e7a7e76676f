package engine

import (
	"sync"

	"github.com/bft-labs/fieldlog/internal/domain"
	"github.com/bft-labs/fieldlog/pkg/log"
)

// State is the lifecycle state of the recording engine.
type State int

const (
	StateIdle State = iota
	StateConfiguring
	StateRecording
	StateHalted
	StateClosed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateConfiguring:
		return "Configuring"
	case StateRecording:
		return "Recording"
	case StateHalted:
		return "Halted"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// lifecycle guards the engine state. State may be read from other
// goroutines, for example by a signal handler.
type lifecycle struct {
	mu       sync.RWMutex
	state    State
	logger   log.Logger
	emitters []EventEmitter
}

func (l *lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

func validTransition(from, to State) bool {
	switch from {
	case StateIdle:
		return to == StateConfiguring || to == StateHalted
	case StateConfiguring:
		return to == StateRecording || to == StateHalted
	case StateRecording:
		return to == StateClosed || to == StateHalted
	case StateClosed:
		return to == StateConfiguring || to == StateRecording || to == StateHalted
	default:
		return false
	}
}

// TransitionTo moves to a new state. Halted is terminal.
func (l *lifecycle) TransitionTo(newState State, reason string) error {
	l.mu.Lock()
	oldState := l.state
	if oldState == StateHalted {
		l.mu.Unlock()
		return domain.ErrHalted
	}
	if !validTransition(oldState, newState) {
		l.mu.Unlock()
		return domain.ErrInvalidState
	}
	l.state = newState
	l.mu.Unlock()

	for _, em := range l.emitters {
		em.OnStateChange(oldState, newState, reason)
	}

	l.logger.Info("state transition",
		log.String("from", oldState.String()),
		log.String("to", newState.String()),
		log.String("reason", reason),
	)
	return nil
}
