package sim

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/bits"
	"time"

	"github.com/bft-labs/fieldlog/internal/ports"
	"github.com/bft-labs/fieldlog/pkg/wav"
)

// Source is a ports.DataSource that fills a power-of-two ring with a sine
// tone at the byte rate of its format, driven by a clock. Production is
// evaluated lazily whenever the ring is observed.
type Source struct {
	clock  ports.Clock
	format wav.Format
	freq   float64
	buf    []byte

	running bool
	stalled bool
	since   time.Time
	base    uint64
	head    uint64
}

// NewSource creates a stopped source. capacity is rounded up to a power of
// two and to whole frames.
func NewSource(clock ports.Clock, format wav.Format, capacity int) (*Source, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	if capacity < format.BlockAlign() {
		return nil, fmt.Errorf("sim: ring of %d bytes smaller than one frame", capacity)
	}
	c := 1 << bits.Len(uint(capacity-1))
	c -= c % format.BlockAlign()
	return &Source{
		clock:  clock,
		format: format,
		freq:   440,
		buf:    make([]byte, c),
	}, nil
}

// SetTone changes the generated frequency.
func (s *Source) SetTone(hz float64) { s.freq = hz }

// Stall freezes or resumes production while the source keeps reporting
// itself as running. It simulates a hung DMA transfer.
func (s *Source) Stall(stall bool) {
	s.advance()
	s.stalled = stall
	s.since = s.clock.Now()
	s.base = s.head
}

// Start implements ports.DataSource.
func (s *Source) Start() error {
	s.advance()
	s.running = true
	s.since = s.clock.Now()
	s.base = s.head
	return nil
}

// Stop implements ports.DataSource.
func (s *Source) Stop() {
	s.advance()
	s.running = false
}

// Running implements ports.DataSource.
func (s *Source) Running() bool { return s.running }

// Capacity implements ports.DataSource.
func (s *Source) Capacity() int { return len(s.buf) }

// ByteRate implements ports.DataSource.
func (s *Source) ByteRate() int { return s.format.ByteRate() }

// BufferTime implements ports.DataSource.
func (s *Source) BufferTime() time.Duration {
	return s.format.Duration(int64(len(s.buf)))
}

// Head implements ports.DataSource.
func (s *Source) Head() uint64 {
	s.advance()
	return s.head
}

// ReadAt implements ports.DataSource.
func (s *Source) ReadAt(p []byte, off uint64) (int, error) {
	s.advance()
	c := uint64(len(s.buf))
	if s.head > c && off < s.head-c {
		return 0, ports.ErrDataLost
	}
	if off >= s.head {
		return 0, nil
	}
	n := 0
	for n < len(p) && off < s.head {
		i := off % c
		m := copy(p[n:], s.buf[i:min(c, i+(s.head-off))])
		n += m
		off += uint64(m)
	}
	return n, nil
}

func (s *Source) advance() {
	if !s.running || s.stalled {
		return
	}
	elapsed := s.clock.Now().Sub(s.since)
	if elapsed <= 0 {
		return
	}
	target := s.base + uint64(s.format.Bytes(elapsed))
	if target <= s.head {
		return
	}
	from := s.head
	c := uint64(len(s.buf))
	if target-from > c {
		from = target - c
	}
	s.fill(from, target)
	s.head = target
}

// fill generates the frames covering the byte range [from, to).
func (s *Source) fill(from, to uint64) {
	ba := uint64(s.format.BlockAlign())
	width := (s.format.Bits + 7) / 8
	amp := 0.3 * float64(int64(1)<<(s.format.Bits-1)-1)
	c := uint64(len(s.buf))
	var frame [32]byte
	for off := from - from%ba; off < to; off += ba {
		n := float64(off / ba)
		v := int64(amp * math.Sin(2*math.Pi*s.freq*n/float64(s.format.SampleRate)))
		if s.format.Bits == 8 {
			v += 128
		}
		binary.LittleEndian.PutUint64(frame[:8], uint64(v))
		for ch := 0; ch < s.format.Channels; ch++ {
			for b := 0; b < width; b++ {
				s.buf[(off+uint64(ch*width+b))%c] = frame[b]
			}
		}
	}
}
