package engine

import (
	"time"

	"github.com/bft-labs/fieldlog/internal/domain"
	"github.com/bft-labs/fieldlog/pkg/blink"
	"github.com/bft-labs/fieldlog/pkg/log"
)

func (e *Engine) errorIndicator() *blink.Indicator {
	if e.errInd != nil && e.errInd.Available() {
		return e.errInd
	}
	return e.status
}

// halt stops recording for good. The error indicator repeats code as a
// multi-pulse until the device is rebooted.
func (e *Engine) halt(code int, err error) {
	e.haltCode = code
	if e.source.Running() {
		e.source.Stop()
	}
	if e.primary.IsOpen() {
		if ferr := e.primary.Finish(domain.CloseFault); ferr != nil {
			e.logger.Warn("closing primary file failed", log.Err(ferr))
		}
		e.emitClosed(e.primary)
	}
	if e.backup != nil && e.backup.IsOpen() {
		if ferr := e.backup.Finish(domain.CloseFault); ferr != nil {
			e.logger.Warn("closing backup file failed", log.Err(ferr))
		}
		e.emitClosed(e.backup)
	}

	e.status.Clear()
	e.sync.Clear()
	ind := e.errorIndicator()
	on, off := 200*time.Millisecond, 200*time.Millisecond
	ind.SetTiming(max(2*time.Second, time.Duration(code)*(on+off)+time.Second), on, off)
	ind.SetTimed(code)

	e.rebootPos = 0
	e.logger.Error("halted",
		log.Int("code", code),
		log.Int("restarts", e.restarts),
		log.Err(err),
	)
	if terr := e.TransitionTo(StateHalted, err.Error()); terr != nil {
		e.logger.Warn("halt transition", log.Err(terr))
	}
}

// serviceHalt keeps the error code blinking and matches the control input
// against the reboot command. Any mismatching byte restarts the match.
func (e *Engine) serviceHalt() {
	e.errorIndicator().Update()
	if e.opts.Control == nil {
		return
	}
	for {
		b, ok := e.opts.Control.ReadByte()
		if !ok {
			return
		}
		if b != rebootCommand[e.rebootPos] {
			e.rebootPos = 0
			continue
		}
		e.rebootPos++
		if e.rebootPos == len(rebootCommand) {
			e.rebootPos = 0
			e.reboot()
		}
	}
}

func (e *Engine) reboot() {
	e.logger.Warn("reboot requested", log.Int("code", e.haltCode))
	if e.opts.Rebooter == nil {
		e.logger.Error("no rebooter configured")
		return
	}
	if err := e.opts.Rebooter.Reboot(); err != nil {
		e.logger.Error("reboot failed", log.Err(err))
	}
}
