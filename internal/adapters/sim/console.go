package sim

import (
	"bufio"
	"io"
	"sync"

	"github.com/bft-labs/fieldlog/pkg/log"
)

// Console is a ports.ControlInput fed from a reader on its own goroutine.
type Console struct {
	ch chan byte
}

// NewConsole starts reading r. Bytes that arrive while the buffer is full are dropped.
func NewConsole(r io.Reader, logger log.Logger) *Console {
	c := &Console{ch: make(chan byte, 256)}
	go func() {
		br := bufio.NewReader(r)
		for {
			b, err := br.ReadByte()
			if err != nil {
				if err != io.EOF {
					logger.Warn("console read failed", log.Err(err))
				}
				return
			}
			select {
			case c.ch <- b:
			default:
			}
		}
	}()
	return c
}

// ReadByte implements ports.ControlInput.
func (c *Console) ReadByte() (byte, bool) {
	select {
	case b := <-c.ch:
		return b, true
	default:
		return 0, false
	}
}

// Input is a ports.ControlInput fed programmatically.
type Input struct {
	mu  sync.Mutex
	buf []byte
}

// Type queues s as if it had been typed on the console.
func (in *Input) Type(s string) {
	in.mu.Lock()
	in.buf = append(in.buf, s...)
	in.mu.Unlock()
}

// ReadByte implements ports.ControlInput.
func (in *Input) ReadByte() (byte, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if len(in.buf) == 0 {
		return 0, false
	}
	b := in.buf[0]
	in.buf = in.buf[1:]
	return b, true
}
