// Package gpio drives indicator LEDs through the Linux sysfs GPIO interface.
package gpio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/bft-labs/fieldlog/internal/ports"
	"github.com/bft-labs/fieldlog/pkg/log"
)

// DefaultRoot is the sysfs GPIO class directory.
const DefaultRoot = "/sys/class/gpio"

// Pin is an output line. Write failures are logged once per level change and
// never reach the caller.
type Pin struct {
	number int
	value  string
	logger log.Logger
	on     bool
	set    bool
}

// Open exports line number under root and configures it as an output.
func Open(root string, number int, logger log.Logger) (*Pin, error) {
	if root == "" {
		root = DefaultRoot
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	dir := filepath.Join(root, "gpio"+strconv.Itoa(number))
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(filepath.Join(root, "export"), []byte(strconv.Itoa(number)), 0o200); err != nil {
			return nil, fmt.Errorf("export gpio %d: %w", number, err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "direction"), []byte("out"), 0o644); err != nil {
		return nil, fmt.Errorf("configure gpio %d: %w", number, err)
	}
	p := &Pin{number: number, value: filepath.Join(dir, "value"), logger: logger}
	p.Set(false)
	return p, nil
}

// Set implements ports.Pin.
func (p *Pin) Set(on bool) {
	if p.set && p.on == on {
		return
	}
	p.on, p.set = on, true
	v := "0"
	if on {
		v = "1"
	}
	if err := os.WriteFile(p.value, []byte(v), 0o644); err != nil {
		p.logger.Warn("gpio write failed", log.Int("gpio", p.number), log.Err(err))
	}
}

// OpenAll opens the given lines in order.
func OpenAll(root string, numbers []int, logger log.Logger) ([]ports.Pin, error) {
	pins := make([]ports.Pin, 0, len(numbers))
	for _, n := range numbers {
		p, err := Open(root, n, logger)
		if err != nil {
			return nil, err
		}
		pins = append(pins, p)
	}
	return pins, nil
}

var _ ports.Pin = (*Pin)(nil)
