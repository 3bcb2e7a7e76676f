package sim

import "github.com/bft-labs/fieldlog/pkg/log"

// LogPin is an indicator pin that logs its level changes.
type LogPin struct {
	name   string
	logger log.Logger
	on     bool
}

// NewLogPin creates a pin reporting to logger.
func NewLogPin(name string, logger log.Logger) *LogPin {
	return &LogPin{name: name, logger: logger}
}

// Set implements ports.Pin.
func (p *LogPin) Set(on bool) {
	if p.on == on {
		return
	}
	p.on = on
	p.logger.Debug("pin", log.String("pin", p.name), log.Bool("on", on))
}

// On returns the current level.
func (p *LogPin) On() bool { return p.on }
