package engine

import (
	"encoding/csv"
	"strconv"

	"github.com/bft-labs/fieldlog/internal/ports"
	"github.com/bft-labs/fieldlog/pkg/log"
)

func (e *Engine) startBlinkLog(dev ports.StorageDevice, base string) {
	e.appendCSV(dev, base+"-blinks.csv", [][]string{{"time/ms", "on"}}, true)
}

// flushBlinks appends the pending sync code transitions to the blink logs of
// the current files, as milliseconds since the primary file was opened.
func (e *Engine) flushBlinks() {
	if !e.randomBlinks || e.sync.NSwitchTimes() == 0 {
		return
	}
	records := e.sync.SwitchTimes()
	rows := make([][]string, len(records))
	for i, r := range records {
		on := "0"
		if r.On {
			on = "1"
		}
		rows[i] = []string{strconv.FormatInt(r.Time.Sub(e.syncStart).Milliseconds(), 10), on}
	}
	if base := e.primary.Session().BaseName(); base != "" {
		e.appendCSV(e.opts.Primary, base+"-blinks.csv", rows, false)
	}
	if e.backupOK() {
		if base := e.backup.Session().BaseName(); base != "" {
			e.appendCSV(e.opts.Backup, base+"-blinks.csv", rows, false)
		}
	}
	if d := e.sync.DroppedSwitchTimes(); d > 0 {
		e.logger.Debug("sync code records overwritten", log.Int("dropped", d))
	}
}

func (e *Engine) appendCSV(dev ports.StorageDevice, name string, rows [][]string, create bool) {
	if !dev.Available() {
		return
	}
	open := dev.Append
	if create {
		open = dev.Create
	}
	f, err := open(name)
	if err != nil {
		e.logger.Warn("cannot open log", log.Device(dev.Name()), log.String("file", name), log.Err(err))
		return
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		e.logger.Warn("cannot write log", log.Device(dev.Name()), log.String("file", name), log.Err(err))
	}
}
